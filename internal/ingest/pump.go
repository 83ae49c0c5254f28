// Package ingest provides the bounded queue that connects position
// producers to a single consumer loop.
package ingest

import (
	"context"
	"sync"
)

// Pump is a fixed-size goroutine pool with a bounded input queue.
// With n=1 it serializes all mutation through one consumer, which is
// how the tracker and alert manager are driven.
type Pump[T any] struct {
	queue   chan T
	process func(ctx context.Context, t T)
	wg      sync.WaitGroup
}

// NewPump creates and starts a pump with n consumers and queue capacity cap.
func NewPump[T any](ctx context.Context, n, cap int, fn func(context.Context, T)) *Pump[T] {
	p := &Pump[T]{
		queue:   make(chan T, cap),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *Pump[T]) run(ctx context.Context) {
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues an item without blocking (returns false if full).
func (p *Pump[T]) Submit(t T) bool {
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for all consumers to finish.
func (p *Pump[T]) Drain() {
	close(p.queue)
	p.wg.Wait()
}

// QueueLen returns how many items are currently queued.
func (p *Pump[T]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *Pump[T]) QueueCap() int {
	return cap(p.queue)
}

// Utilization returns queue used / capacity (0–1).
func (p *Pump[T]) Utilization() float64 {
	if cap(p.queue) == 0 {
		return 0
	}
	return float64(len(p.queue)) / float64(cap(p.queue))
}
