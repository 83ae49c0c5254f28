package store

import (
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// BoundariesFromConfig converts boundary seeds into records, closing
// open rings.
func BoundariesFromConfig(defs []config.BoundaryDef) []model.Boundary {
	out := make([]model.Boundary, 0, len(defs))
	for _, d := range defs {
		ring := make(orb.Ring, 0, len(d.Coordinates)+1)
		for _, c := range d.Coordinates {
			ring = append(ring, orb.Point{c[0], c[1]})
		}
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		out = append(out, model.Boundary{
			ID:     d.ID,
			Name:   d.Name,
			Ring:   ring,
			Active: d.Active,
		})
	}
	return out
}

// Seed loads the configured boundaries, entities, and resources into
// the store. Called at startup and on config reload.
func (s *Store) Seed(cfg *config.RanchConfig) {
	s.ReplaceBoundaries(BoundariesFromConfig(cfg.Boundaries))

	now := time.Now().UTC()
	for _, e := range cfg.Entities {
		health := model.HealthStatus(e.Health)
		if !health.Valid() {
			health = model.Healthy
		}
		s.PutEntity(model.Entity{
			ID:         e.ID,
			Name:       e.Name,
			Age:        e.Age,
			Health:     health,
			Position:   orb.Point{e.Lng, e.Lat},
			LastUpdate: now,
			CreatedAt:  now,
		})
	}
	for _, r := range cfg.Resources {
		s.PutResource(model.Resource{
			ID:       r.ID,
			Name:     r.Name,
			Kind:     r.Kind,
			Position: orb.Point{r.Lng, r.Lat},
		})
	}
}
