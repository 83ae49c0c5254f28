// Package client reconciles a full-state snapshot with a live delta
// stream into a coherent local view, reconnecting with backoff when
// the stream drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/alerts"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// ErrGaveUp is returned by Run after the reconnect budget is spent.
// The owner must explicitly restart the reconciler.
var ErrGaveUp = errors.New("reconnect attempts exhausted")

// ErrSnapshotTimeout marks a snapshot fetch that did not resolve in
// time; it is handled as a connection failure, not surfaced as fatal.
var ErrSnapshotTimeout = errors.New("snapshot fetch timed out")

// State is the reconciler's connection status as surfaced to its
// owner.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSynced       State = "synced"
	StateGaveUp       State = "gave_up"
)

// Snapshot is the bulk read that seeds the local view. The api
// package serves exactly this shape at /v1/state.
type Snapshot struct {
	Entities      []model.Entity        `json:"entities"`
	Boundaries    []model.Boundary      `json:"boundaries"`
	Resources     []model.Resource      `json:"resources"`
	Notifications []alerts.Notification `json:"notifications"`
	Timestamp     time.Time             `json:"timestamp"`
}

// Stream is one live connection to the hub.
type Stream interface {
	// Read blocks until the next envelope arrives.
	Read() (event.Envelope, error)
	// WriteHeartbeat sends a client-side liveness message.
	WriteHeartbeat() error
	Close() error
}

// DialFunc opens a stream. SnapshotFunc performs the bulk read.
type (
	DialFunc     func(ctx context.Context) (Stream, error)
	SnapshotFunc func(ctx context.Context) (*Snapshot, error)
)

// Options tune reconnection behavior.
type Options struct {
	SnapshotTimeout time.Duration
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	MaxAttempts     int
	// OnStatus, if set, is called on every state change.
	OnStatus func(State)
}

// View is the reconciled local state. Stale is set while disconnected;
// the data is retained, not cleared.
type View struct {
	Entities      map[string]model.Entity
	Boundaries    map[string]model.Boundary
	Resources     map[string]model.Resource
	Notifications map[string]alerts.Notification
	Stale         bool
}

// Reconciler merges snapshot + deltas for one subscriber.
type Reconciler struct {
	dial  DialFunc
	fetch SnapshotFunc
	opts  Options

	mu    sync.Mutex
	state State
	view  View
}

// New creates a Reconciler in the Disconnected state.
func New(dial DialFunc, fetch SnapshotFunc, opts Options) *Reconciler {
	if opts.SnapshotTimeout <= 0 {
		opts.SnapshotTimeout = 10 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return &Reconciler{
		dial:  dial,
		fetch: fetch,
		opts:  opts,
		state: StateDisconnected,
		view: View{
			Entities:      make(map[string]model.Entity),
			Boundaries:    make(map[string]model.Boundary),
			Resources:     make(map[string]model.Resource),
			Notifications: make(map[string]alerts.Notification),
		},
	}
}

// State returns the current connection state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// View returns a copy of the local state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := View{
		Entities:      make(map[string]model.Entity, len(r.view.Entities)),
		Boundaries:    make(map[string]model.Boundary, len(r.view.Boundaries)),
		Resources:     make(map[string]model.Resource, len(r.view.Resources)),
		Notifications: make(map[string]alerts.Notification, len(r.view.Notifications)),
		Stale:         r.view.Stale,
	}
	for k, v := range r.view.Entities {
		out.Entities[k] = v
	}
	for k, v := range r.view.Boundaries {
		out.Boundaries[k] = v
	}
	for k, v := range r.view.Resources {
		out.Resources[k] = v
	}
	for k, v := range r.view.Notifications {
		out.Notifications[k] = v
	}
	return out
}

// Run connects, syncs, and applies deltas until ctx is cancelled or
// the reconnect budget is spent. Each drop retains local state flagged
// stale and resynchronizes via a fresh snapshot; there are no
// resumption tokens.
func (r *Reconciler) Run(ctx context.Context) error {
	attempt := 0
	for {
		r.setState(StateConnecting)
		synced, err := r.session(ctx)
		if ctx.Err() != nil {
			r.setState(StateDisconnected)
			return ctx.Err()
		}
		r.markStale()
		r.setState(StateDisconnected)
		if synced {
			attempt = 0
		}
		attempt++
		if attempt > r.opts.MaxAttempts {
			r.setState(StateGaveUp)
			return fmt.Errorf("%w after %d attempts: %v", ErrGaveUp, r.opts.MaxAttempts, err)
		}
		delay := r.backoff(attempt)
		slog.Warn("stream lost, reconnecting", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session runs one connect→sync→live cycle. It reports whether the
// Synced state was reached before the stream broke.
func (r *Reconciler) session(ctx context.Context) (synced bool, err error) {
	stream, err := r.dial(ctx)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}
	defer stream.Close()

	type readResult struct {
		env event.Envelope
		err error
	}
	reads := make(chan readResult)
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go func() {
		for {
			env, err := stream.Read()
			select {
			case reads <- readResult{env: env, err: err}:
			case <-readCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	// Fetch the snapshot while buffering anything already streaming.
	snapCtx, cancelSnap := context.WithTimeout(ctx, r.opts.SnapshotTimeout)
	defer cancelSnap()
	type snapResult struct {
		snap *Snapshot
		err  error
	}
	snapC := make(chan snapResult, 1)
	go func() {
		snap, err := r.fetch(snapCtx)
		snapC <- snapResult{snap: snap, err: err}
	}()

	var buffered []event.Envelope
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case rr := <-reads:
			if rr.err != nil {
				return false, fmt.Errorf("stream read: %w", rr.err)
			}
			buffered = append(buffered, rr.env)
			continue
		case sr := <-snapC:
			if sr.err != nil {
				if snapCtx.Err() == context.DeadlineExceeded {
					return false, ErrSnapshotTimeout
				}
				return false, fmt.Errorf("snapshot: %w", sr.err)
			}
			r.applySnapshot(sr.snap)
			for _, env := range buffered {
				r.Apply(env)
			}
			r.setState(StateSynced)
		}
		break
	}

	// Live loop.
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case rr := <-reads:
			if rr.err != nil {
				return true, fmt.Errorf("stream read: %w", rr.err)
			}
			if rr.env.Type == event.TypeHeartbeat {
				_ = stream.WriteHeartbeat()
				continue
			}
			r.Apply(rr.env)
		}
	}
}

func (r *Reconciler) applySnapshot(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Entities = make(map[string]model.Entity, len(s.Entities))
	for _, e := range s.Entities {
		r.view.Entities[e.ID] = e
	}
	r.view.Boundaries = make(map[string]model.Boundary, len(s.Boundaries))
	for _, b := range s.Boundaries {
		r.view.Boundaries[b.ID] = b
	}
	r.view.Resources = make(map[string]model.Resource, len(s.Resources))
	for _, res := range s.Resources {
		r.view.Resources[res.ID] = res
	}
	r.view.Notifications = make(map[string]alerts.Notification, len(s.Notifications))
	for _, n := range s.Notifications {
		r.view.Notifications[n.ID] = n
	}
	r.view.Stale = false
}

// Apply merges one envelope into the local view. Unknown types are
// ignored; removals of absent ids are no-ops.
func (r *Reconciler) Apply(env event.Envelope) {
	switch env.Type {
	case event.TypeEntityUpdate:
		var d event.EntityDelta
		if err := json.Unmarshal(env.Data, &d); err != nil || d.ID == "" {
			return
		}
		r.mu.Lock()
		if d.Removed {
			delete(r.view.Entities, d.ID)
		} else {
			e := r.view.Entities[d.ID]
			e.ID = d.ID
			if d.Name != nil {
				e.Name = *d.Name
			}
			if d.Health != nil {
				e.Health = *d.Health
			}
			if d.Position != nil {
				e.Position = *d.Position
			}
			if d.LastUpdate != nil {
				e.LastUpdate = *d.LastUpdate
			}
			r.view.Entities[d.ID] = e
		}
		r.mu.Unlock()

	case event.TypeNotificationCreated, event.TypeNotificationUpdated:
		var n alerts.Notification
		if err := json.Unmarshal(env.Data, &n); err != nil || n.ID == "" {
			return
		}
		r.mu.Lock()
		r.view.Notifications[n.ID] = n
		r.mu.Unlock()

	case event.TypeNotificationRemoved:
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.ID == "" {
			return
		}
		r.mu.Lock()
		delete(r.view.Notifications, ref.ID)
		r.mu.Unlock()

	case event.TypeConnectionStatus, event.TypeHeartbeat:
		// Liveness and lifecycle only; nothing to merge.

	default:
		// Forward compatibility: unknown types are not fatal.
	}
}

func (r *Reconciler) markStale() {
	r.mu.Lock()
	r.view.Stale = true
	r.mu.Unlock()
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	changed := r.state != s
	r.state = s
	r.mu.Unlock()
	if changed && r.opts.OnStatus != nil {
		r.opts.OnStatus(s)
	}
}

func (r *Reconciler) backoff(attempt int) time.Duration {
	d := r.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.opts.BackoffMax {
			return r.opts.BackoffMax
		}
	}
	if d > r.opts.BackoffMax {
		d = r.opts.BackoffMax
	}
	return d
}
