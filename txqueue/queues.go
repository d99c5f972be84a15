// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package txqueue implements TxQueues: the per-destination FIFOs the MAC
// state machine drains one head entry at a time per TX link (spec §4.3).
package txqueue

import "github.com/tve/tschmac/macaddr"

// Entry is one queued outbound frame.
type Entry struct {
	Handle    uint8  // msduHandle from the originating MCPS-DATA.request
	Packet    []byte // fully encoded MAC frame, ready for PHY.pdDataRequest
	NbRetries uint8
	CWBackoff uint8 // shared-link contention-window backoff, consumed by PeekForTxLink
}

type perDst struct {
	dst    macaddr.Short
	fifo   []*Entry
	linkBE uint8
}

// Queues holds one FIFO per destination address.
type Queues struct {
	minBE uint8
	byDst map[macaddr.Short]*perDst
	order []macaddr.Short // insertion order, for deterministic telemetry/iteration
}

// New returns an empty TxQueues using minBE as the initial linkBE for any
// newly created per-destination FIFO (macMinBE in the PIB).
func New(minBE uint8) *Queues {
	return &Queues{minBE: minBE, byDst: make(map[macaddr.Short]*perDst)}
}

// Enqueue appends a frame to the FIFO for dst, creating it with
// linkBE == macMinBE if this is the first frame to that destination.
func (q *Queues) Enqueue(dst macaddr.Short, handle uint8, packet []byte) {
	pd, ok := q.byDst[dst]
	if !ok {
		pd = &perDst{dst: dst, linkBE: q.minBE}
		q.byDst[dst] = pd
		q.order = append(q.order, dst)
	}
	pd.fifo = append(pd.fifo, &Entry{Handle: handle, Packet: packet})
}

// PeekForTxLink returns the head entry of the FIFO addressed to dst, if
// any. On a shared link, an entry whose head is still backing off
// (CWBackoff != 0) is not returned; instead its CWBackoff is decremented
// as a side effect of this call and PeekForTxLink reports no entry for
// this slot.
func (q *Queues) PeekForTxLink(dst macaddr.Short, shared bool) (*Entry, bool) {
	pd, ok := q.byDst[dst]
	if !ok || len(pd.fifo) == 0 {
		return nil, false
	}
	head := pd.fifo[0]
	if shared && head.CWBackoff != 0 {
		head.CWBackoff--
		return nil, false
	}
	return head, true
}

// PopHead removes the head entry of dst's FIFO, deleting the FIFO itself
// if it becomes empty.
func (q *Queues) PopHead(dst macaddr.Short) {
	pd, ok := q.byDst[dst]
	if !ok || len(pd.fifo) == 0 {
		return
	}
	pd.fifo = pd.fifo[1:]
	if len(pd.fifo) == 0 {
		delete(q.byDst, dst)
		q.removeFromOrder(dst)
	}
}

// HeadAdvanceRetry increments the head entry's NbRetries and returns the
// new count. ok is false if dst has no FIFO or it is empty.
func (q *Queues) HeadAdvanceRetry(dst macaddr.Short) (nbRetries uint8, ok bool) {
	pd, present := q.byDst[dst]
	if !present || len(pd.fifo) == 0 {
		return 0, false
	}
	pd.fifo[0].NbRetries++
	return pd.fifo[0].NbRetries, true
}

// HeadRetries returns the head entry's current NbRetries without
// modifying it. ok is false if dst has no FIFO or it is empty.
func (q *Queues) HeadRetries(dst macaddr.Short) (nbRetries uint8, ok bool) {
	pd, present := q.byDst[dst]
	if !present || len(pd.fifo) == 0 {
		return 0, false
	}
	return pd.fifo[0].NbRetries, true
}

// HeadResetSharedBackoff sets the head entry's CWBackoff to cwBackoff
// (drawn by the caller per spec §4.4 handleTxFailure).
func (q *Queues) HeadResetSharedBackoff(dst macaddr.Short, cwBackoff uint8) {
	pd, ok := q.byDst[dst]
	if !ok || len(pd.fifo) == 0 {
		return
	}
	pd.fifo[0].CWBackoff = cwBackoff
}

// LinkBE returns the current backoff exponent for dst's FIFO.
func (q *Queues) LinkBE(dst macaddr.Short) (be uint8, ok bool) {
	pd, present := q.byDst[dst]
	if !present {
		return 0, false
	}
	return pd.linkBE, true
}

// SetLinkBE updates the backoff exponent for dst's FIFO, if it exists.
func (q *Queues) SetLinkBE(dst macaddr.Short, be uint8) {
	if pd, ok := q.byDst[dst]; ok {
		pd.linkBE = be
	}
}

// Len reports the number of queued entries for dst.
func (q *Queues) Len(dst macaddr.Short) int {
	pd, ok := q.byDst[dst]
	if !ok {
		return 0
	}
	return len(pd.fifo)
}

func (q *Queues) removeFromOrder(dst macaddr.Short) {
	for i, d := range q.order {
		if d == dst {
			q.order = append(q.order[:i], q.order[i+1:]...)
			return
		}
	}
}
