// Package engine is the pipeline core: it drains the sample queue
// through the tracker, keeps the record store's positions current,
// derives alerts from transitions, and publishes deltas to the hub.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/alerts"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/geo"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/ingest"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/metrics"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/store"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

// Engine connects the position feeds to the tracker, alert manager,
// and broadcast hub. All tracker and store mutation flows through one
// consumer loop.
type Engine struct {
	tracker *tracker.Tracker
	store   *store.Store
	alerts  *alerts.Manager
	pub     alerts.Publisher
	pump    *ingest.Pump[tracker.Sample]
}

// New creates an Engine and starts its consumer loop. pub receives an
// entity_update envelope for every applied sample; it may be nil.
func New(ctx context.Context, tr *tracker.Tracker, st *store.Store, am *alerts.Manager, pub alerts.Publisher, conf config.EngineConf) *Engine {
	e := &Engine{
		tracker: tr,
		store:   st,
		alerts:  am,
		pub:     pub,
	}
	e.pump = ingest.NewPump(ctx, 1, conf.SampleQueueDepth, e.process)
	return e
}

// Submit enqueues a sample without blocking. Returns false if the
// queue is full and the sample was dropped.
func (e *Engine) Submit(s tracker.Sample) bool {
	if !e.pump.Submit(s) {
		metrics.SamplesRejected.WithLabelValues("queue_full").Inc()
		return false
	}
	metrics.SamplesEnqueued.Inc()
	return true
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	return e.pump.Utilization()
}

// Shutdown drains the sample queue.
func (e *Engine) Shutdown() {
	e.pump.Drain()
}

func (e *Engine) process(_ context.Context, s tracker.Sample) {
	transitions, err := e.tracker.Observe(s)
	if err != nil {
		switch {
		case errors.Is(err, tracker.ErrOutOfOrderSample):
			metrics.SamplesRejected.WithLabelValues("out_of_order").Inc()
		case errors.Is(err, tracker.ErrInvalidSample):
			metrics.SamplesRejected.WithLabelValues("invalid").Inc()
		default:
			metrics.SamplesRejected.WithLabelValues("other").Inc()
		}
		slog.Warn("sample dropped", "entity_id", s.EntityID, "err", err)
		return
	}
	metrics.SamplesProcessed.Inc()

	ent, err := e.store.Entity(s.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		// First sighting of an unknown collar: register it.
		ent = model.Entity{
			ID:         s.EntityID,
			Name:       s.EntityID,
			Health:     model.Healthy,
			Position:   s.Position,
			LastUpdate: s.Timestamp,
		}
		e.store.PutEntity(ent)
	} else {
		_ = e.store.UpdateEntityPosition(s.EntityID, s.Position, s.Timestamp)
	}

	e.publishEntityUpdate(s)

	for _, tr := range transitions {
		metrics.Transitions.WithLabelValues(string(tr.To)).Inc()
		distance := 0.0
		if tr.To == event.Outside {
			if b, err := e.store.Boundary(tr.BoundaryID); err == nil {
				distance = geo.DistanceOutsideMeters(b.Ring, tr.Position)
			}
			slog.Info("geofence exit", "entity_id", tr.EntityID, "boundary", tr.BoundaryName, "distance_m", distance)
		} else {
			slog.Info("geofence enter", "entity_id", tr.EntityID, "boundary", tr.BoundaryName)
		}
		e.alerts.HandleTransition(tr, distance, ent.Health)
	}
}

func (e *Engine) publishEntityUpdate(s tracker.Sample) {
	if e.pub == nil {
		return
	}
	pos := s.Position
	ts := s.Timestamp
	env, err := event.New(event.TypeEntityUpdate, event.EntityDelta{
		ID:         s.EntityID,
		Position:   &pos,
		LastUpdate: &ts,
	})
	if err != nil {
		slog.Error("encode entity update failed", "entity_id", s.EntityID, "err", err)
		return
	}
	e.pub.Publish(env)
}

// ReportQueueGauge refreshes the queue utilization gauge. The api
// readiness probe calls it on each scrape-adjacent read.
func (e *Engine) ReportQueueGauge() float64 {
	u := e.pump.Utilization()
	metrics.IngestQueueUtilization.Set(u)
	return u
}

// Warm seeds the tracker's cold-start baseline from the store's
// current positions so a restart does not spray transition events.
func (e *Engine) Warm() {
	now := time.Now().UTC()
	for _, ent := range e.store.Entities() {
		_, err := e.tracker.Observe(tracker.Sample{
			EntityID:  ent.ID,
			Position:  ent.Position,
			Timestamp: now,
		})
		if err != nil {
			slog.Warn("warm-up observation failed", "entity_id", ent.ID, "err", err)
		}
	}
}
