// Package store is the in-memory record store for entities, boundaries
// and resources. The tracking core only reads snapshots from it; bulk
// reads served over HTTP bypass the event stream entirely.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Store holds all records behind one RWMutex. Reads copy out, so
// callers never observe a torn record.
type Store struct {
	mu         sync.RWMutex
	entities   map[string]model.Entity
	boundaries map[string]model.Boundary
	resources  map[string]model.Resource
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entities:   make(map[string]model.Entity),
		boundaries: make(map[string]model.Boundary),
		resources:  make(map[string]model.Resource),
	}
}

// ── Entities ──────────────────────────────────────────────────────────

// PutEntity inserts or replaces an entity record.
func (s *Store) PutEntity(e model.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entities[e.ID] = e
}

// Entity returns the entity with the given id.
func (s *Store) Entity(id string) (model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return model.Entity{}, ErrNotFound
	}
	return e, nil
}

// Entities returns all entity records sorted by id.
func (s *Store) Entities() []model.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateEntityPosition moves an entity and stamps last_update.
func (s *Store) UpdateEntityPosition(id string, p orb.Point, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}
	e.Position = p
	e.LastUpdate = ts
	s.entities[id] = e
	return nil
}

// UpdateEntityHealth changes an entity's health classification.
func (s *Store) UpdateEntityHealth(id string, h model.HealthStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return ErrNotFound
	}
	e.Health = h
	e.LastUpdate = time.Now().UTC()
	s.entities[id] = e
	return nil
}

// DeleteEntity removes an entity. Deleting an absent id is a no-op.
func (s *Store) DeleteEntity(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
}

// ── Boundaries ────────────────────────────────────────────────────────

// PutBoundary inserts or replaces a boundary record.
func (s *Store) PutBoundary(b model.Boundary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boundaries[b.ID] = b
}

// Boundary returns the boundary with the given id.
func (s *Store) Boundary(id string) (model.Boundary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boundaries[id]
	if !ok {
		return model.Boundary{}, ErrNotFound
	}
	return b, nil
}

// Boundaries returns all boundary records sorted by id.
func (s *Store) Boundaries() []model.Boundary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Boundary, 0, len(s.boundaries))
	for _, b := range s.boundaries {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveBoundaries returns the currently active boundary set.
func (s *Store) ActiveBoundaries() []model.Boundary {
	all := s.Boundaries()
	out := all[:0]
	for _, b := range all {
		if b.Active {
			out = append(out, b)
		}
	}
	return out
}

// ReplaceBoundaries swaps the whole boundary set in one critical
// section, so a snapshot read never mixes old and new fences.
func (s *Store) ReplaceBoundaries(bs []model.Boundary) {
	next := make(map[string]model.Boundary, len(bs))
	for _, b := range bs {
		next[b.ID] = b
	}
	s.mu.Lock()
	s.boundaries = next
	s.mu.Unlock()
}

// DeleteBoundary removes a boundary. Deleting an absent id is a no-op.
func (s *Store) DeleteBoundary(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.boundaries, id)
}

// ── Resources ─────────────────────────────────────────────────────────

// PutResource inserts or replaces a resource record.
func (s *Store) PutResource(r model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.ID] = r
}

// Resource returns the resource with the given id.
func (s *Store) Resource(id string) (model.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[id]
	if !ok {
		return model.Resource{}, ErrNotFound
	}
	return r, nil
}

// Resources returns all resource records sorted by id.
func (s *Store) Resources() []model.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteResource removes a resource. Deleting an absent id is a no-op.
func (s *Store) DeleteResource(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, id)
}
