package engine_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/alerts"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/config"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/engine"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/event"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/model"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/store"
	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/tracker"
)

// Warm stamps its baseline with the wall clock, so samples are offset
// from now rather than a fixed date.
var start = time.Now().UTC()

type recorder struct {
	mu   sync.Mutex
	envs []event.Envelope
}

func (r *recorder) Publish(env event.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
}

func (r *recorder) byType(typ string) []event.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Envelope
	for _, e := range r.envs {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	eng   *engine.Engine
	store *store.Store
	am    *alerts.Manager
	rec   *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New()
	st.PutBoundary(model.Boundary{
		ID:     "b1",
		Name:   "pasture",
		Ring:   orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}},
		Active: true,
	})
	st.PutEntity(model.Entity{ID: "e1", Name: "Bima", Health: model.Healthy, Position: orb.Point{0.5, 0.5}})

	rec := &recorder{}
	am := alerts.NewManager(alerts.Options{}, rec)
	tr := tracker.New(st.Boundaries())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	eng := engine.New(ctx, tr, st, am, rec, config.EngineConf{SampleQueueDepth: 64})
	return &fixture{eng: eng, store: st, am: am, rec: rec}
}

func (f *fixture) submit(t *testing.T, entity string, lng, lat float64, offset time.Duration) {
	t.Helper()
	ok := f.eng.Submit(tracker.Sample{
		EntityID:  entity,
		Position:  orb.Point{lng, lat},
		Timestamp: start.Add(offset),
	})
	if !ok {
		t.Fatalf("Submit rejected with room in queue")
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_SampleUpdatesStoreAndPublishes(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "e1", 0.6, 0.5, 0)

	waitFor(t, func() bool {
		e, err := f.store.Entity("e1")
		return err == nil && e.Position == (orb.Point{0.6, 0.5})
	}, "store position not updated")

	updates := f.rec.byType(event.TypeEntityUpdate)
	if len(updates) != 1 {
		t.Fatalf("entity updates published = %d, want 1", len(updates))
	}
	var d event.EntityDelta
	if err := json.Unmarshal(updates[0].Data, &d); err != nil {
		t.Fatal(err)
	}
	if d.ID != "e1" || d.Position == nil || *d.Position != (orb.Point{0.6, 0.5}) {
		t.Errorf("delta = %+v", d)
	}
	if d.Name != nil || d.Health != nil {
		t.Error("position sample should not carry name or health")
	}
}

func TestEngine_ExitRaisesViolationAlert(t *testing.T) {
	f := newFixture(t)
	f.eng.Warm() // baseline: e1 inside b1

	f.submit(t, "e1", 1.5, 0.5, time.Hour)
	waitFor(t, func() bool {
		return len(f.am.List(alerts.Filter{Category: alerts.CategoryViolation})) == 1
	}, "no violation alert after exit")

	n := f.am.List(alerts.Filter{Category: alerts.CategoryViolation})[0]
	if n.Priority != alerts.PriorityHigh || !n.Pinned {
		t.Errorf("violation alert = %+v, want pinned high priority", n)
	}
	if len(n.Actions) == 0 {
		t.Error("violation alert should carry follow-up actions")
	}

	// Return inside: a success notice, violation retained.
	f.submit(t, "e1", 0.5, 0.5, 2*time.Hour)
	waitFor(t, func() bool {
		return len(f.am.List(alerts.Filter{Category: alerts.CategorySuccess})) == 1
	}, "no back-inside notice")
	if got := f.am.List(alerts.Filter{Category: alerts.CategoryViolation}); len(got) != 1 {
		t.Errorf("violation alerts = %d, want 1 retained", len(got))
	}
}

func TestEngine_WarmPreventsStartupAlerts(t *testing.T) {
	f := newFixture(t)
	f.eng.Warm()

	// Same position again: no transitions, no alerts.
	f.submit(t, "e1", 0.5, 0.5, time.Hour)
	waitFor(t, func() bool { return len(f.rec.byType(event.TypeEntityUpdate)) == 1 }, "sample not processed")
	if f.am.Len() != 0 {
		t.Errorf("alerts after warm restart = %d, want 0", f.am.Len())
	}
}

func TestEngine_UnknownCollarRegistered(t *testing.T) {
	f := newFixture(t)
	f.submit(t, "SAPI-999", 0.5, 0.5, 0)

	waitFor(t, func() bool {
		_, err := f.store.Entity("SAPI-999")
		return err == nil
	}, "unknown collar not registered")
	e, _ := f.store.Entity("SAPI-999")
	if e.Health != model.Healthy {
		t.Errorf("new collar health = %s, want healthy default", e.Health)
	}
}

func TestEngine_RejectedSamplesLeaveNoTrace(t *testing.T) {
	f := newFixture(t)
	f.eng.Warm()

	f.submit(t, "e1", 0.6, 0.5, 2*time.Hour)
	waitFor(t, func() bool {
		e, _ := f.store.Entity("e1")
		return e.Position == (orb.Point{0.6, 0.5})
	}, "fresh sample not applied")

	// Out of order: older than the warm baseline and the fresh sample.
	before := len(f.rec.byType(event.TypeEntityUpdate))
	f.eng.Submit(tracker.Sample{
		EntityID:  "e1",
		Position:  orb.Point{5, 5},
		Timestamp: start.Add(-time.Hour),
	})
	f.eng.Shutdown()

	if got := len(f.rec.byType(event.TypeEntityUpdate)); got != before {
		t.Errorf("rejected sample published %d updates", got-before)
	}
	e, _ := f.store.Entity("e1")
	if e.Position != (orb.Point{0.6, 0.5}) {
		t.Errorf("rejected sample moved the entity: %v", e.Position)
	}
	if f.am.Len() != 0 {
		t.Errorf("rejected sample produced %d alerts", f.am.Len())
	}
}
