package alerts

import (
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// Severity grades a violation by how far outside the fence the animal
// is and how much care it needs.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityFor buckets distance outside the fence at 100/500/1000
// meters, then bumps the level for animals that are sick or need
// attention.
func severityFor(distanceMeters float64, health model.HealthStatus) Severity {
	var base Severity
	switch {
	case distanceMeters < 100:
		base = SeverityLow
	case distanceMeters < 500:
		base = SeverityMedium
	case distanceMeters < 1000:
		base = SeverityHigh
	default:
		base = SeverityCritical
	}

	switch health {
	case model.Sick:
		switch base {
		case SeverityLow:
			return SeverityMedium
		case SeverityMedium:
			return SeverityHigh
		default:
			return SeverityCritical
		}
	case model.NeedsAttention:
		switch base {
		case SeverityLow:
			return SeverityLow
		case SeverityMedium:
			return SeverityHigh
		default:
			return SeverityCritical
		}
	}
	return base
}

// violationActions lists the follow-ups a rancher should take, scaled
// by distance and the animal's condition.
func violationActions(distanceMeters float64, health model.HealthStatus) []string {
	actions := []string{
		"Locate and verify animal position",
		"Check for physical injuries or distress",
	}
	switch {
	case distanceMeters > 1000:
		actions = append(actions, "Deploy search team immediately", "Notify ranch manager")
	case distanceMeters > 500:
		actions = append(actions, "Send ranch hand to retrieve", "Monitor movement pattern")
	default:
		actions = append(actions, "Guide animal back to fenced area")
	}
	if health == model.Sick {
		actions = append([]string{"URGENT: sick animal requires immediate attention"}, actions...)
	} else if health == model.NeedsAttention {
		actions = append(actions, "Monitor health condition closely")
	}
	return actions
}
