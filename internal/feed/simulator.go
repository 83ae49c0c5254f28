// Package feed produces position samples: a random-walk simulator for
// development and an MQTT subscriber for real GPS collars. Both hand
// samples to the ingest queue and never touch tracker state directly.
package feed

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/geo"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/store"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

const degreesPerMeter = 1.0 / 111000

// SubmitFunc hands a sample to the ingest queue; false means the
// queue was full and the sample was dropped.
type SubmitFunc func(tracker.Sample) bool

// Simulator moves every entity on a jittered interval with a bounded
// random drift, mostly staying inside the first active boundary.
type Simulator struct {
	store  *store.Store
	submit SubmitFunc
	conf   config.SimulatorConf
	rng    *rand.Rand
}

// NewSimulator creates a Simulator reading herd positions from st.
func NewSimulator(st *store.Store, conf config.SimulatorConf, submit SubmitFunc) *Simulator {
	return &Simulator{
		store:  st,
		submit: submit,
		conf:   conf,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run emits samples until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	slog.Info("position simulator started",
		"min_interval_ms", s.conf.MinIntervalMs,
		"max_interval_ms", s.conf.MaxIntervalMs,
		"drift_meters", s.conf.DriftMeters)
	for {
		interval := s.nextInterval()
		select {
		case <-ctx.Done():
			slog.Info("position simulator stopped")
			return
		case <-time.After(interval):
		}

		var home orb.Ring
		for _, b := range s.store.ActiveBoundaries() {
			home = b.Ring
			break
		}

		now := time.Now().UTC()
		for _, e := range s.store.Entities() {
			next := s.step(e, home)
			if !s.submit(tracker.Sample{EntityID: e.ID, Position: next, Timestamp: now}) {
				slog.Warn("ingest queue full, simulator sample dropped", "entity_id", e.ID)
			}
		}
	}
}

func (s *Simulator) nextInterval() time.Duration {
	min := time.Duration(s.conf.MinIntervalMs) * time.Millisecond
	max := time.Duration(s.conf.MaxIntervalMs) * time.Millisecond
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

// step walks the entity by a random bearing and 10–100% of the
// configured drift. A step that leaves the home boundary is usually
// pulled back toward the centroid; a small escape chance lets animals
// actually break out so violations occur.
func (s *Simulator) step(e model.Entity, home orb.Ring) orb.Point {
	maxDrift := s.conf.DriftMeters * degreesPerMeter
	angle := s.rng.Float64() * 2 * math.Pi
	dist := (0.1 + 0.9*s.rng.Float64()) * maxDrift

	next := orb.Point{
		e.Position.Lon() + dist*math.Cos(angle),
		e.Position.Lat() + dist*math.Sin(angle),
	}
	if !geo.ValidPoint(next) {
		return e.Position
	}
	if len(home) == 0 || geo.Contains(home, next) {
		return next
	}
	if s.rng.Float64() < s.conf.EscapeChance {
		return next
	}
	// Pull back toward the pasture center, never faster than one
	// drift step: an animal far from the centroid would otherwise
	// jump further than any real sample could.
	c, _ := planar.CentroidArea(home)
	dx := (c.Lon() - e.Position.Lon()) * 0.1
	dy := (c.Lat() - e.Position.Lat()) * 0.1
	if d := math.Hypot(dx, dy); d > maxDrift {
		dx *= maxDrift / d
		dy *= maxDrift / d
	}
	return orb.Point{e.Position.Lon() + dx, e.Position.Lat() + dy}
}
