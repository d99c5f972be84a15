// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package txqueue

import "testing"

func TestEnqueuePeekPop(t *testing.T) {
	q := New(1)
	if _, ok := q.PeekForTxLink(0x1111, false); ok {
		t.Fatalf("expected no entry before enqueue")
	}
	q.Enqueue(0x1111, 7, []byte("frame-a"))
	e, ok := q.PeekForTxLink(0x1111, false)
	if !ok || e.Handle != 7 {
		t.Fatalf("expected handle 7, got %+v ok=%v", e, ok)
	}
	if be, ok := q.LinkBE(0x1111); !ok || be != 1 {
		t.Fatalf("expected new FIFO linkBE == minBE 1, got %d ok=%v", be, ok)
	}
	q.PopHead(0x1111)
	if q.Len(0x1111) != 0 {
		t.Fatalf("expected empty queue after pop")
	}
	if _, ok := q.PeekForTxLink(0x1111, false); ok {
		t.Fatalf("expected FIFO removed once drained")
	}
}

func TestSharedLinkBackoffDecrementsOnPeek(t *testing.T) {
	q := New(1)
	q.Enqueue(0x2222, 1, []byte("x"))
	q.HeadResetSharedBackoff(0x2222, 2)

	if _, ok := q.PeekForTxLink(0x2222, true); ok {
		t.Fatalf("expected backoff to suppress peek, cwBackoff=2")
	}
	e, _ := q.PeekForTxLink(0x2222, false)
	if e.CWBackoff != 1 {
		t.Fatalf("expected cwBackoff decremented to 1, got %d", e.CWBackoff)
	}

	if _, ok := q.PeekForTxLink(0x2222, true); ok {
		t.Fatalf("expected backoff to still suppress peek, cwBackoff=1")
	}
	e, ok := q.PeekForTxLink(0x2222, true)
	if !ok || e.CWBackoff != 0 {
		t.Fatalf("expected cwBackoff reached 0 and entry now peekable, got %+v ok=%v", e, ok)
	}
}

func TestHeadAdvanceRetry(t *testing.T) {
	q := New(1)
	q.Enqueue(0x3333, 1, []byte("x"))
	n, ok := q.HeadAdvanceRetry(0x3333)
	if !ok || n != 1 {
		t.Fatalf("expected retry count 1, got %d ok=%v", n, ok)
	}
	n, _ = q.HeadAdvanceRetry(0x3333)
	if n != 2 {
		t.Fatalf("expected retry count 2, got %d", n)
	}
	if _, ok := q.HeadAdvanceRetry(0x9999); ok {
		t.Fatalf("expected no FIFO for unknown dst")
	}
}

func TestFIFOOrdering(t *testing.T) {
	q := New(1)
	q.Enqueue(0x4444, 1, []byte("first"))
	q.Enqueue(0x4444, 2, []byte("second"))
	e, _ := q.PeekForTxLink(0x4444, false)
	if e.Handle != 1 {
		t.Fatalf("expected FIFO order, head handle == 1, got %d", e.Handle)
	}
	q.PopHead(0x4444)
	e, _ = q.PeekForTxLink(0x4444, false)
	if e.Handle != 2 {
		t.Fatalf("expected second entry now at head, got handle %d", e.Handle)
	}
}
