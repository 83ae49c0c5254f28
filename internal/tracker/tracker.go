// Package tracker owns the per-entity containment state machine. It
// consumes position samples, applies the containment predicate against
// the active boundary set, and emits a transition event on each
// observed flip and nothing else.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/geo"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

var (
	// ErrInvalidSample marks a sample with a malformed coordinate or
	// timestamp. The sample is dropped; state is unchanged.
	ErrInvalidSample = errors.New("invalid sample")

	// ErrOutOfOrderSample marks a sample older than the last applied
	// sample for the same entity. The sample is dropped; state is
	// unchanged.
	ErrOutOfOrderSample = errors.New("out-of-order sample")
)

// Sample is one position measurement for one entity.
type Sample struct {
	EntityID  string    `json:"entity_id"`
	Position  orb.Point `json:"position"`
	Timestamp time.Time `json:"timestamp"`
}

// boundarySet is an immutable snapshot of the active fences. Reload
// replaces the whole pointer, never mutates in place, so in-flight
// observations always see a coherent set.
type boundarySet struct {
	boundaries []model.Boundary
}

type entityState struct {
	lastApplied time.Time
	containment map[string]event.Containment // boundary id → status
}

// Tracker holds the derived containment view. It is not authoritative:
// the view is rebuilt from scratch (cold start, no events) after a
// restart or boundary reload.
type Tracker struct {
	mu       sync.Mutex
	active   atomic.Pointer[boundarySet]
	entities map[string]*entityState
}

// New creates a Tracker over the given active boundary set.
func New(boundaries []model.Boundary) *Tracker {
	t := &Tracker{entities: make(map[string]*entityState)}
	t.Reload(boundaries)
	return t
}

// Reload atomically replaces the active boundary set. Inactive fences
// are filtered out here. Entities keep their recorded statuses for
// surviving boundaries; a boundary new to an entity cold-starts on
// that entity's next observation.
func (t *Tracker) Reload(boundaries []model.Boundary) {
	active := make([]model.Boundary, 0, len(boundaries))
	for _, b := range boundaries {
		if b.Active {
			active = append(active, b)
		}
	}
	t.active.Store(&boundarySet{boundaries: active})
}

// ActiveBoundaryCount returns the number of fences currently checked
// per sample.
func (t *Tracker) ActiveBoundaryCount() int {
	return len(t.active.Load().boundaries)
}

// Observe applies one sample and returns the transitions it caused.
// State update and event emission are atomic per call: a rejected
// sample changes nothing.
func (t *Tracker) Observe(s Sample) ([]event.Transition, error) {
	if s.EntityID == "" {
		return nil, fmt.Errorf("%w: entity id is empty", ErrInvalidSample)
	}
	if s.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: timestamp is zero", ErrInvalidSample)
	}
	if !geo.ValidPoint(s.Position) {
		return nil, fmt.Errorf("%w: coordinate %v out of range", ErrInvalidSample, s.Position)
	}

	set := t.active.Load()

	t.mu.Lock()
	defer t.mu.Unlock()

	st, seen := t.entities[s.EntityID]
	if seen && s.Timestamp.Before(st.lastApplied) {
		return nil, fmt.Errorf("%w: sample at %s precedes last applied %s for entity %s",
			ErrOutOfOrderSample, s.Timestamp.Format(time.RFC3339Nano), st.lastApplied.Format(time.RFC3339Nano), s.EntityID)
	}
	if !seen {
		st = &entityState{containment: make(map[string]event.Containment)}
		t.entities[s.EntityID] = st
	}

	var transitions []event.Transition
	for _, b := range set.boundaries {
		status := event.Outside
		if geo.Contains(b.Ring, s.Position) {
			status = event.Inside
		}
		prev, known := st.containment[b.ID]
		if known && prev != status {
			transitions = append(transitions, event.Transition{
				EntityID:     s.EntityID,
				BoundaryID:   b.ID,
				BoundaryName: b.Name,
				From:         prev,
				To:           status,
				Position:     s.Position,
				Timestamp:    s.Timestamp,
			})
		}
		st.containment[b.ID] = status
	}
	st.lastApplied = s.Timestamp

	return transitions, nil
}

// Status returns the recorded containment for (entity, boundary), or
// false if the pair has never been observed.
func (t *Tracker) Status(entityID, boundaryID string) (event.Containment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.entities[entityID]
	if !ok {
		return "", false
	}
	c, ok := st.containment[boundaryID]
	return c, ok
}
