// Package alerts materializes notifications from domain events and
// owns their lifecycle: dedup, read state, eviction, auto-expiry.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/metrics"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

// Category classifies a notification.
type Category string

const (
	CategoryViolation Category = "violation"
	CategorySystem    Category = "system"
	CategorySuccess   Category = "success"
	CategoryWarning   Category = "warning"
	CategoryError     Category = "error"
)

// Priority orders notifications for the consumer.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a user-facing record with read/priority/expiry
// lifecycle. Mutated only through the Manager.
type Notification struct {
	ID         string     `json:"id"`
	Category   Category   `json:"category"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"created_at"`
	Read       bool       `json:"read"`
	Priority   Priority   `json:"priority"`
	AutoExpire bool       `json:"auto_expire"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Pinned     bool       `json:"pinned"`
	Payload    any        `json:"payload,omitempty"`
	Actions    []string   `json:"actions,omitempty"`

	dedupKey string
}

// Params are the inputs to Notify.
type Params struct {
	Category   Category
	Title      string
	Message    string
	Priority   Priority
	AutoExpire bool
	Duration   time.Duration
	Pinned     bool
	Payload    any
	Actions    []string

	dedupKey string
}

// Publisher receives every notification lifecycle event. The broadcast
// hub satisfies it; tests substitute a recorder.
type Publisher interface {
	Publish(event.Envelope)
}

// Options tune the manager.
type Options struct {
	// MaxNotifications bounds the live set; oldest non-pinned entries
	// are evicted first. Pinned entries may push the set past the
	// bound rather than be dropped.
	MaxNotifications int
	// DefaultExpiry is used when an auto-expiring notification gives
	// no duration.
	DefaultExpiry time.Duration
	// ExpireViolations lets violation alerts auto-expire. Off by
	// default: a herd outside the fence should not silently vanish.
	ExpireViolations bool
}

// Manager owns the live notification set. All mutation goes through
// its methods; queries copy out.
type Manager struct {
	mu     sync.Mutex
	opts   Options
	pub    Publisher
	items  []*Notification // index 0 = most recent
	dedup  map[string]string
	expiry expiryHeap
	wake   chan struct{}
	now    func() time.Time
}

// NewManager creates a Manager publishing lifecycle events to pub.
// pub may be nil.
func NewManager(opts Options, pub Publisher) *Manager {
	if opts.MaxNotifications <= 0 {
		opts.MaxNotifications = 100
	}
	if opts.DefaultExpiry <= 0 {
		opts.DefaultExpiry = 30 * time.Second
	}
	return &Manager{
		opts:  opts,
		pub:   pub,
		dedup: make(map[string]string),
		wake:  make(chan struct{}, 1),
		now:   time.Now,
	}
}

// Run drives the expiry sweep until ctx is cancelled. One timer serves
// the whole set; per-notification timers would leak under churn.
func (m *Manager) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		var fire <-chan time.Time
		m.mu.Lock()
		next, ok := m.expiry.peek()
		m.mu.Unlock()
		if ok {
			d := time.Until(next)
			if d < 0 {
				d = 0
			}
			timer.Reset(d)
			fire = timer.C
		}
		select {
		case <-ctx.Done():
			if fire != nil && !timer.Stop() {
				<-timer.C
			}
			return
		case <-m.wake:
			if fire != nil && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-fire:
			m.sweep(m.now())
		}
	}
}

// Notify creates a notification, inserts it at the head of the
// collection, and enforces the size bound. It always succeeds.
func (m *Manager) Notify(p Params) Notification {
	m.mu.Lock()
	n, evicted := m.insertLocked(p)
	out := *n
	m.mu.Unlock()

	metrics.NotificationsCreated.WithLabelValues(string(p.Category)).Inc()
	m.publish(event.TypeNotificationCreated, out)
	for _, id := range evicted {
		m.publishRemoved(id)
	}
	m.kick()
	return out
}

func (m *Manager) insertLocked(p Params) (*Notification, []string) {
	now := m.now()
	n := &Notification{
		ID:         uuid.New().String(),
		Category:   p.Category,
		Title:      p.Title,
		Message:    p.Message,
		CreatedAt:  now,
		Priority:   p.Priority,
		AutoExpire: p.AutoExpire,
		Pinned:     p.Pinned,
		Payload:    p.Payload,
		Actions:    p.Actions,
		dedupKey:   p.dedupKey,
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	if n.AutoExpire {
		d := p.Duration
		if d <= 0 {
			d = m.opts.DefaultExpiry
		}
		at := now.Add(d)
		n.ExpiresAt = &at
		m.expiry.push(at, n.ID)
	}
	if n.dedupKey != "" {
		m.dedup[n.dedupKey] = n.ID
	}

	m.items = append([]*Notification{n}, m.items...)
	return n, m.evictLocked()
}

// evictLocked trims from the tail, skipping pinned entries. If only
// pinned entries remain past the bound, the bound is exceeded rather
// than a pinned alert dropped. Returns the evicted ids so the caller
// can publish removals outside the lock.
func (m *Manager) evictLocked() []string {
	var evicted []string
	for len(m.items) > m.opts.MaxNotifications {
		victim := -1
		for i := len(m.items) - 1; i >= 0; i-- {
			if !m.items[i].Pinned {
				victim = i
				break
			}
		}
		if victim < 0 {
			break
		}
		removed := m.items[victim]
		m.items = append(m.items[:victim], m.items[victim+1:]...)
		m.forgetLocked(removed)
		evicted = append(evicted, removed.ID)
	}
	return evicted
}

// forgetLocked clears secondary indexes for a notification leaving
// the set.
func (m *Manager) forgetLocked(n *Notification) {
	if n.dedupKey != "" && m.dedup[n.dedupKey] == n.ID {
		delete(m.dedup, n.dedupKey)
	}
}

// MarkRead flags a notification as read. A read violation alert no
// longer absorbs repeat transitions. No-op for an absent id.
func (m *Manager) MarkRead(id string) {
	m.mu.Lock()
	n := m.findLocked(id)
	if n == nil || n.Read {
		m.mu.Unlock()
		return
	}
	n.Read = true
	m.forgetLocked(n)
	out := *n
	m.mu.Unlock()
	m.publish(event.TypeNotificationUpdated, out)
}

// MarkAllRead flags every live notification as read.
func (m *Manager) MarkAllRead() {
	m.mu.Lock()
	var changed []Notification
	for _, n := range m.items {
		if !n.Read {
			n.Read = true
			m.forgetLocked(n)
			changed = append(changed, *n)
		}
	}
	m.mu.Unlock()
	for _, n := range changed {
		m.publish(event.TypeNotificationUpdated, n)
	}
}

// Remove deletes a notification by id. No-op for an absent id.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	removed := m.removeLocked(id)
	m.mu.Unlock()
	if removed {
		m.publishRemoved(id)
	}
}

func (m *Manager) removeLocked(id string) bool {
	for i, n := range m.items {
		if n.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			m.forgetLocked(n)
			return true
		}
	}
	return false
}

// Clear removes every notification matching pred; a nil pred clears
// everything. Returns the number removed.
func (m *Manager) Clear(pred func(Notification) bool) int {
	m.mu.Lock()
	var removedIDs []string
	kept := m.items[:0]
	for _, n := range m.items {
		if pred == nil || pred(*n) {
			m.forgetLocked(n)
			removedIDs = append(removedIDs, n.ID)
		} else {
			kept = append(kept, n)
		}
	}
	m.items = kept
	m.mu.Unlock()

	for _, id := range removedIDs {
		m.publishRemoved(id)
	}
	return len(removedIDs)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Category   Category
	UnreadOnly bool
	Since      time.Time
}

// List returns copies of the live notifications matching f, newest
// first.
func (m *Manager) List(f Filter) []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, 0, len(m.items))
	for _, n := range m.items {
		if f.Category != "" && n.Category != f.Category {
			continue
		}
		if f.UnreadOnly && n.Read {
			continue
		}
		if !f.Since.IsZero() && n.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, *n)
	}
	return out
}

// UnreadCount returns the number of unread notifications.
func (m *Manager) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Len returns the size of the live set.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// HandleTransition turns a boundary transition into the matching
// notification. distanceMeters is how far outside the fence the
// entity is (0 when returning inside); health adjusts severity.
func (m *Manager) HandleTransition(tr event.Transition, distanceMeters float64, health model.HealthStatus) {
	key := fmt.Sprintf("violation|%s|%s|%s", tr.EntityID, tr.BoundaryID, tr.To)

	if tr.To == event.Outside {
		if m.refreshViolation(key, tr) {
			return
		}
		sev := severityFor(distanceMeters, health)
		m.mu.Lock()
		n, evicted := m.insertLocked(Params{
			Category:   CategoryViolation,
			Title:      fmt.Sprintf("%s left %s", tr.EntityID, tr.BoundaryName),
			Message:    fmt.Sprintf("%s crossed outside %s, about %.0f m from the fence (severity %s)", tr.EntityID, tr.BoundaryName, distanceMeters, sev),
			Priority:   PriorityHigh,
			AutoExpire: m.opts.ExpireViolations,
			Pinned:     true,
			Payload:    tr,
			Actions:    violationActions(distanceMeters, health),
			dedupKey:   key,
		})
		n.CreatedAt = tr.Timestamp
		out := *n
		m.mu.Unlock()
		metrics.NotificationsCreated.WithLabelValues(string(CategoryViolation)).Inc()
		m.publish(event.TypeNotificationCreated, out)
		for _, id := range evicted {
			m.publishRemoved(id)
		}
		m.kick()
		return
	}

	// Return to inside: always a fresh, short-lived notice. The open
	// violation alert stays until explicitly dismissed.
	m.Notify(Params{
		Category:   CategorySuccess,
		Title:      fmt.Sprintf("%s back in %s", tr.EntityID, tr.BoundaryName),
		Message:    fmt.Sprintf("%s returned inside %s", tr.EntityID, tr.BoundaryName),
		Priority:   PriorityLow,
		AutoExpire: true,
		Payload:    tr,
	})
}

// refreshViolation bumps the timestamp of a live, unread violation
// alert for the same pair instead of duplicating it.
func (m *Manager) refreshViolation(key string, tr event.Transition) bool {
	m.mu.Lock()
	id, ok := m.dedup[key]
	if !ok {
		m.mu.Unlock()
		return false
	}
	n := m.findLocked(id)
	if n == nil || n.Read {
		delete(m.dedup, key)
		m.mu.Unlock()
		return false
	}
	n.CreatedAt = tr.Timestamp
	n.Payload = tr
	if n.AutoExpire {
		d := m.opts.DefaultExpiry
		at := m.now().Add(d)
		n.ExpiresAt = &at
		m.expiry.push(at, n.ID)
	}
	m.promoteLocked(n.ID)
	out := *n
	m.mu.Unlock()

	metrics.NotificationsDeduped.Inc()
	m.publish(event.TypeNotificationUpdated, out)
	m.kick()
	return true
}

// promoteLocked moves a notification to the head (most recent).
func (m *Manager) promoteLocked(id string) {
	for i, n := range m.items {
		if n.ID == id {
			if i == 0 {
				return
			}
			m.items = append(m.items[:i], m.items[i+1:]...)
			m.items = append([]*Notification{n}, m.items...)
			return
		}
	}
}

func (m *Manager) findLocked(id string) *Notification {
	for _, n := range m.items {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// sweep removes every notification whose deadline has passed. Heap
// entries outlive refreshes; an entry only fires if it still matches
// the notification's current deadline.
func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var expired []string
	for {
		at, id, ok := m.expiry.popDue(now)
		if !ok {
			break
		}
		n := m.findLocked(id)
		if n == nil || n.ExpiresAt == nil || !n.ExpiresAt.Equal(at) {
			continue // removed earlier or deadline refreshed
		}
		m.removeLocked(id)
		expired = append(expired, id)
	}
	m.mu.Unlock()

	for _, id := range expired {
		metrics.NotificationsExpired.Inc()
		m.publishRemoved(id)
	}
	if len(expired) > 0 {
		slog.Debug("notifications expired", "count", len(expired))
	}
}

func (m *Manager) kick() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) publish(typ string, n Notification) {
	if m.pub == nil {
		return
	}
	env, err := event.New(typ, n)
	if err != nil {
		slog.Error("encode notification event failed", "type", typ, "err", err)
		return
	}
	m.pub.Publish(env)
}

func (m *Manager) publishRemoved(id string) {
	if m.pub == nil {
		return
	}
	env, err := event.New(event.TypeNotificationRemoved, map[string]string{"id": id})
	if err != nil {
		return
	}
	m.pub.Publish(env)
}
