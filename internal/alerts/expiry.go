package alerts

import (
	"container/heap"
	"time"
)

// expiryEntry pairs a deadline with a notification id. Entries are
// never cancelled in place: a refresh pushes a new entry and the old
// one is ignored on pop when its deadline no longer matches.
type expiryEntry struct {
	at time.Time
	id string
}

type expiryHeap struct {
	entries []expiryEntry
}

func (h *expiryHeap) Len() int            { return len(h.entries) }
func (h *expiryHeap) Less(i, j int) bool  { return h.entries[i].at.Before(h.entries[j].at) }
func (h *expiryHeap) Swap(i, j int)       { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }
func (h *expiryHeap) Push(x any)          { h.entries = append(h.entries, x.(expiryEntry)) }
func (h *expiryHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	h.entries = old[:n-1]
	return e
}

// push schedules id for removal at the given deadline.
func (h *expiryHeap) push(at time.Time, id string) {
	heap.Push(h, expiryEntry{at: at, id: id})
}

// peek returns the earliest pending deadline.
func (h *expiryHeap) peek() (time.Time, bool) {
	if len(h.entries) == 0 {
		return time.Time{}, false
	}
	return h.entries[0].at, true
}

// popDue removes and returns the earliest entry whose deadline is at
// or before now.
func (h *expiryHeap) popDue(now time.Time) (time.Time, string, bool) {
	if len(h.entries) == 0 || h.entries[0].at.After(now) {
		return time.Time{}, "", false
	}
	e := heap.Pop(h).(expiryEntry)
	return e.at, e.id, true
}
