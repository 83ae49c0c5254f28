package ingest_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Yuriowindiatmoko2401/MVP-GIS-Sumbawa-Digital-Ranch/internal/ingest"
)

func TestPump_ProcessesInOrderWithSingleConsumer(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int
	)
	p := ingest.NewPump(context.Background(), 1, 16, func(_ context.Context, v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	for i := 0; i < 10; i++ {
		if !p.Submit(i) {
			t.Fatalf("Submit(%d) rejected with room in queue", i)
		}
	}
	p.Drain()

	if len(got) != 10 {
		t.Fatalf("processed %d items, want 10", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d, out of order", i, v)
		}
	}
}

func TestPump_SubmitRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	p := ingest.NewPump(context.Background(), 1, 2, func(_ context.Context, _ int) {
		<-block
	})

	// One in flight, two queued; the next must be rejected, not block.
	accepted := 0
	for i := 0; i < 10; i++ {
		if p.Submit(i) {
			accepted++
		}
	}
	if accepted >= 10 {
		t.Fatal("full queue should reject submissions")
	}
	if p.QueueLen() != p.QueueCap() {
		t.Errorf("QueueLen = %d, want full (%d)", p.QueueLen(), p.QueueCap())
	}
	if p.Utilization() != 1 {
		t.Errorf("Utilization = %v, want 1", p.Utilization())
	}
	close(block)
	p.Drain()
}

func TestPump_ContextCancelStopsConsumers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	processed := make(chan int, 1)
	p := ingest.NewPump(ctx, 1, 4, func(_ context.Context, v int) {
		select {
		case processed <- v:
		default:
		}
	})

	p.Submit(1)
	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("item not processed")
	}

	cancel()
	// After cancel the consumer is gone; queued items just sit there.
	time.Sleep(10 * time.Millisecond)
	p.Submit(2)
	select {
	case v := <-processed:
		t.Fatalf("processed %d after cancel", v)
	case <-time.After(50 * time.Millisecond):
	}
}
