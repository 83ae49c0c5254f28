package model

import (
	"time"

	"github.com/paulmach/orb"
)

// HealthStatus classifies an animal's condition.
type HealthStatus string

const (
	Healthy        HealthStatus = "healthy"
	NeedsAttention HealthStatus = "needs_attention"
	Sick           HealthStatus = "sick"
)

// Valid reports whether s is a recognized health status.
func (s HealthStatus) Valid() bool {
	switch s {
	case Healthy, NeedsAttention, Sick:
		return true
	}
	return false
}

// Entity is a tracked animal. Position is orb convention: Point[0] is
// longitude, Point[1] is latitude.
type Entity struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Age        int          `json:"age,omitempty"`
	Health     HealthStatus `json:"health"`
	Position   orb.Point    `json:"position"`
	LastUpdate time.Time    `json:"last_update"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Boundary is a geofence: a simple closed polygon ring.
type Boundary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Ring   orb.Ring `json:"ring"`
	Active bool     `json:"active"`
}

// Resource is a static point of interest on the ranch (water trough,
// feed station, shelter).
type Resource struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	Position orb.Point `json:"position"`
}
