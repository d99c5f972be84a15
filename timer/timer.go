// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package timer provides the abstract scheduling boundary the MAC state
// machine runs on (spec §5: "scheduling" means posting a callback to run
// at a logical timestamp, single-threaded, no preemption), plus a
// deterministic VirtualClock reference implementation used by tests and
// cmd/tschsim in place of a real discrete-event simulation kernel.
package timer

import "container/heap"

// Scheduler is the collaborator a MAC instance drives its slot ticks and
// sub-timers through. Microseconds are the unit throughout, matching the
// TimeslotTemplate offsets in spec §3/§6.
type Scheduler interface {
	// After posts fn to run once, delayUs microseconds from now.
	After(delayUs uint64, fn func())
	// Now returns the current logical time in microseconds.
	Now() uint64
}

type event struct {
	at  uint64
	seq uint64 // insertion order, breaks ties FIFO per spec §5 "Ordering guarantees"
	fn  func()
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// VirtualClock is a single-threaded, deterministic discrete-event
// scheduler: Advance/Run pop and execute due events in (time, insertion
// order), exactly the ordering guarantee spec §5 requires. It has no
// goroutines and no real-time behavior, making MAC behavior reproducible
// in tests.
type VirtualClock struct {
	now    uint64
	seq    uint64
	events eventHeap
}

// NewVirtualClock returns a VirtualClock starting at time 0.
func NewVirtualClock() *VirtualClock {
	vc := &VirtualClock{}
	heap.Init(&vc.events)
	return vc
}

func (vc *VirtualClock) Now() uint64 { return vc.now }

func (vc *VirtualClock) After(delayUs uint64, fn func()) {
	heap.Push(&vc.events, &event{at: vc.now + delayUs, seq: vc.seq, fn: fn})
	vc.seq++
}

// Advance runs every event due at or before now+durationUs, in (time,
// insertion) order, setting vc.Now() to each event's time as it runs,
// and leaves vc.Now() at now+durationUs when done.
func (vc *VirtualClock) Advance(durationUs uint64) {
	deadline := vc.now + durationUs
	for vc.events.Len() > 0 && vc.events[0].at <= deadline {
		e := heap.Pop(&vc.events).(*event)
		vc.now = e.at
		e.fn()
	}
	if vc.now < deadline {
		vc.now = deadline
	}
}

// Run drains every pending event, including ones scheduled by events
// that fire during the drain, until the queue is empty.
func (vc *VirtualClock) Run() {
	for vc.events.Len() > 0 {
		e := heap.Pop(&vc.events).(*event)
		vc.now = e.at
		e.fn()
	}
}

// Pending reports how many events are still queued.
func (vc *VirtualClock) Pending() int { return vc.events.Len() }
