// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package timer

import "testing"

func TestVirtualClockOrdering(t *testing.T) {
	vc := NewVirtualClock()
	var order []int
	vc.After(10, func() { order = append(order, 1) })
	vc.After(5, func() { order = append(order, 2) })
	vc.After(5, func() { order = append(order, 3) }) // same time as #2, posted after -> FIFO tie-break

	vc.Run()
	want := []int{2, 3, 1}
	if len(order) != len(want) {
		t.Fatalf("got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v want %v", order, want)
		}
	}
	if vc.Now() != 10 {
		t.Fatalf("expected clock at 10, got %d", vc.Now())
	}
}

func TestVirtualClockAdvanceWindow(t *testing.T) {
	vc := NewVirtualClock()
	fired := false
	vc.After(100, func() { fired = true })
	vc.Advance(50)
	if fired {
		t.Fatalf("event should not have fired yet")
	}
	if vc.Now() != 50 {
		t.Fatalf("expected now=50, got %d", vc.Now())
	}
	vc.Advance(50)
	if !fired {
		t.Fatalf("expected event to fire by t=100")
	}
	if vc.Now() != 100 {
		t.Fatalf("expected now=100, got %d", vc.Now())
	}
}

func TestVirtualClockCascadingEvents(t *testing.T) {
	vc := NewVirtualClock()
	count := 0
	var step func()
	step = func() {
		count++
		if count < 5 {
			vc.After(1, step)
		}
	}
	vc.After(1, step)
	vc.Run()
	if count != 5 {
		t.Fatalf("expected 5 cascaded ticks, got %d", count)
	}
}
