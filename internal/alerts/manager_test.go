package alerts

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// recorder captures published envelopes in order.
type recorder struct {
	mu   sync.Mutex
	envs []event.Envelope
}

func (r *recorder) Publish(env event.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.envs))
	for i, e := range r.envs {
		out[i] = e.Type
	}
	return out
}

func newTestManager(opts Options, pub Publisher) *Manager {
	m := NewManager(opts, pub)
	m.now = func() time.Time { return fixedNow }
	return m
}

func exitTransition(entity string, at time.Time) event.Transition {
	return event.Transition{
		EntityID:     entity,
		BoundaryID:   "b1",
		BoundaryName: "pasture",
		From:         event.Inside,
		To:           event.Outside,
		Position:     orb.Point{1.5, 0.5},
		Timestamp:    at,
	}
}

func enterTransition(entity string, at time.Time) event.Transition {
	tr := exitTransition(entity, at)
	tr.From, tr.To = event.Outside, event.Inside
	return tr
}

func TestNotify_Basics(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(Options{}, rec)

	n := m.Notify(Params{Category: CategorySystem, Title: "online", Message: "tracking started"})
	if n.ID == "" {
		t.Fatal("notification should get an id")
	}
	if n.Priority != PriorityNormal {
		t.Errorf("default priority = %s, want normal", n.Priority)
	}
	if n.Read {
		t.Error("new notification should start unread")
	}
	if m.Len() != 1 || m.UnreadCount() != 1 {
		t.Errorf("Len/UnreadCount = %d/%d, want 1/1", m.Len(), m.UnreadCount())
	}
	got := rec.types()
	if len(got) != 1 || got[0] != event.TypeNotificationCreated {
		t.Errorf("published %v, want [notification_created]", got)
	}
}

func TestHandleTransition_DedupUnreadViolation(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(Options{}, rec)

	first := exitTransition("e1", fixedNow)
	m.HandleTransition(first, 250, model.Healthy)
	if m.Len() != 1 {
		t.Fatalf("Len after first exit = %d, want 1", m.Len())
	}

	// Same pair flips again while the alert is unread: no second
	// notification, the existing one is refreshed.
	second := exitTransition("e1", fixedNow.Add(time.Minute))
	m.HandleTransition(second, 400, model.Healthy)
	if m.Len() != 1 {
		t.Fatalf("Len after repeat exit = %d, want 1 (deduped)", m.Len())
	}
	n := m.List(Filter{})[0]
	if !n.CreatedAt.Equal(second.Timestamp) {
		t.Errorf("refreshed alert CreatedAt = %v, want second transition time %v", n.CreatedAt, second.Timestamp)
	}
	got := rec.types()
	want := []string{event.TypeNotificationCreated, event.TypeNotificationUpdated}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestHandleTransition_ReadViolationNotDeduped(t *testing.T) {
	m := newTestManager(Options{}, nil)

	m.HandleTransition(exitTransition("e1", fixedNow), 50, model.Healthy)
	m.MarkRead(m.List(Filter{})[0].ID)

	// Once acknowledged, a repeat exit is news again.
	m.HandleTransition(exitTransition("e1", fixedNow.Add(time.Minute)), 50, model.Healthy)
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2 (read alert must not absorb repeats)", m.Len())
	}
}

func TestHandleTransition_ReturnInsideKeepsViolation(t *testing.T) {
	m := newTestManager(Options{}, nil)

	m.HandleTransition(exitTransition("e1", fixedNow), 50, model.Healthy)
	m.HandleTransition(enterTransition("e1", fixedNow.Add(time.Minute)), 0, model.Healthy)

	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if got := m.List(Filter{Category: CategoryViolation}); len(got) != 1 {
		t.Errorf("violation alerts = %d, want 1 (return inside must not resolve it)", len(got))
	}
	back := m.List(Filter{Category: CategorySuccess})
	if len(back) != 1 || !back[0].AutoExpire {
		t.Errorf("back-inside notice = %+v, want one auto-expiring success", back)
	}
}

func TestEviction_BoundAndOrder(t *testing.T) {
	m := newTestManager(Options{MaxNotifications: 3}, nil)

	for i := 0; i < 5; i++ {
		m.Notify(Params{Category: CategorySystem, Title: fmt.Sprintf("n%d", i)})
	}
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	got := m.List(Filter{})
	// Newest first; the two oldest were evicted.
	for i, want := range []string{"n4", "n3", "n2"} {
		if got[i].Title != want {
			t.Errorf("items[%d] = %s, want %s", i, got[i].Title, want)
		}
	}
}

func TestEviction_PinnedSurvive(t *testing.T) {
	m := newTestManager(Options{MaxNotifications: 2}, nil)

	m.Notify(Params{Category: CategoryViolation, Title: "p0", Pinned: true})
	m.Notify(Params{Category: CategoryViolation, Title: "p1", Pinned: true})
	m.Notify(Params{Category: CategoryViolation, Title: "p2", Pinned: true})
	// Only pinned entries: the bound is exceeded, nothing is dropped.
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (pinned must not be evicted)", m.Len())
	}

	// A plain notification arriving now is the only eviction candidate
	// once another one pushes past the bound.
	m.Notify(Params{Category: CategorySystem, Title: "plain"})
	m.Notify(Params{Category: CategorySystem, Title: "newer"})
	titles := make(map[string]bool)
	for _, n := range m.List(Filter{}) {
		titles[n.Title] = true
	}
	if !titles["p0"] || !titles["p1"] || !titles["p2"] {
		t.Errorf("pinned entries missing from %v", titles)
	}
	if titles["plain"] {
		t.Error("oldest non-pinned entry should have been evicted")
	}
}

func TestSweep_ExpiresDueNotifications(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(Options{DefaultExpiry: 10 * time.Second}, rec)

	m.Notify(Params{Category: CategorySuccess, Title: "short", AutoExpire: true})
	m.Notify(Params{Category: CategorySystem, Title: "keep"})

	m.sweep(fixedNow.Add(5 * time.Second))
	if m.Len() != 2 {
		t.Fatalf("premature sweep removed something: Len = %d", m.Len())
	}

	m.sweep(fixedNow.Add(11 * time.Second))
	if m.Len() != 1 {
		t.Fatalf("Len after expiry = %d, want 1", m.Len())
	}
	if m.List(Filter{})[0].Title != "keep" {
		t.Errorf("wrong notification survived: %s", m.List(Filter{})[0].Title)
	}
	types := rec.types()
	if types[len(types)-1] != event.TypeNotificationRemoved {
		t.Errorf("expiry should publish a removal, got %v", types)
	}
}

func TestSweep_RefreshRestartsDeadline(t *testing.T) {
	m := newTestManager(Options{DefaultExpiry: 10 * time.Second, ExpireViolations: true}, nil)

	m.HandleTransition(exitTransition("e1", fixedNow), 50, model.Healthy)

	// Refresh at t+8s pushes the deadline to t+18s.
	m.now = func() time.Time { return fixedNow.Add(8 * time.Second) }
	m.HandleTransition(exitTransition("e1", fixedNow.Add(8*time.Second)), 50, model.Healthy)

	// The original t+10s deadline is stale and must not fire.
	m.sweep(fixedNow.Add(11 * time.Second))
	if m.Len() != 1 {
		t.Fatalf("stale heap entry expired a refreshed alert: Len = %d", m.Len())
	}

	m.sweep(fixedNow.Add(19 * time.Second))
	if m.Len() != 0 {
		t.Fatalf("refreshed deadline should have fired: Len = %d", m.Len())
	}
}

func TestRemove_Idempotent(t *testing.T) {
	rec := &recorder{}
	m := newTestManager(Options{}, rec)

	n := m.Notify(Params{Category: CategorySystem, Title: "once"})
	m.Remove(n.ID)
	m.Remove(n.ID)
	m.Remove("no-such-id")
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
	removed := 0
	for _, typ := range rec.types() {
		if typ == event.TypeNotificationRemoved {
			removed++
		}
	}
	if removed != 1 {
		t.Errorf("published %d removals, want exactly 1", removed)
	}
}

func TestMarkRead_ClearsDedup(t *testing.T) {
	m := newTestManager(Options{}, nil)

	m.HandleTransition(exitTransition("e1", fixedNow), 50, model.Healthy)
	id := m.List(Filter{})[0].ID
	m.MarkRead(id)
	m.MarkRead(id) // second call is a no-op
	if m.UnreadCount() != 0 {
		t.Errorf("UnreadCount = %d, want 0", m.UnreadCount())
	}
	if len(m.dedup) != 0 {
		t.Errorf("dedup index should be empty after MarkRead, has %d entries", len(m.dedup))
	}
}

func TestMarkAllReadAndClear(t *testing.T) {
	m := newTestManager(Options{}, nil)
	m.Notify(Params{Category: CategorySystem, Title: "a"})
	m.Notify(Params{Category: CategoryWarning, Title: "b"})
	m.Notify(Params{Category: CategorySystem, Title: "c"})

	m.MarkAllRead()
	if m.UnreadCount() != 0 {
		t.Errorf("UnreadCount = %d, want 0", m.UnreadCount())
	}

	removed := m.Clear(func(n Notification) bool { return n.Category == CategorySystem })
	if removed != 2 || m.Len() != 1 {
		t.Errorf("Clear removed %d, Len = %d; want 2 and 1", removed, m.Len())
	}
	if m.Clear(nil) != 1 || m.Len() != 0 {
		t.Error("nil predicate should clear everything")
	}
}

func TestList_Filters(t *testing.T) {
	m := newTestManager(Options{}, nil)
	m.Notify(Params{Category: CategorySystem, Title: "sys"})
	m.Notify(Params{Category: CategoryWarning, Title: "warn"})
	m.MarkRead(m.List(Filter{Category: CategorySystem})[0].ID)

	if got := m.List(Filter{Category: CategoryWarning}); len(got) != 1 || got[0].Title != "warn" {
		t.Errorf("category filter: got %+v", got)
	}
	if got := m.List(Filter{UnreadOnly: true}); len(got) != 1 || got[0].Title != "warn" {
		t.Errorf("unread filter: got %+v", got)
	}
	if got := m.List(Filter{Since: fixedNow.Add(time.Hour)}); len(got) != 0 {
		t.Errorf("since filter: got %+v", got)
	}
}

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		distance float64
		health   model.HealthStatus
		want     Severity
	}{
		{50, model.Healthy, SeverityLow},
		{250, model.Healthy, SeverityMedium},
		{750, model.Healthy, SeverityHigh},
		{1500, model.Healthy, SeverityCritical},
		{50, model.NeedsAttention, SeverityLow},
		{250, model.NeedsAttention, SeverityHigh},
		{50, model.Sick, SeverityMedium},
		{250, model.Sick, SeverityHigh},
		{1500, model.Sick, SeverityCritical},
	}
	for _, tc := range cases {
		if got := severityFor(tc.distance, tc.health); got != tc.want {
			t.Errorf("severityFor(%v, %s) = %s, want %s", tc.distance, tc.health, got, tc.want)
		}
	}
}
