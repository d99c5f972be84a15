// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package simmedium is a reference PHY: a synchronous, scheduler-driven
// stand-in for real radio hardware that implements phy.Service/delivers
// phy.Callbacks, wired through a shared Medium so several MAC instances
// can exchange frames inside one discrete-event run. It exists to drive
// the core MacStateMachine end to end without touching real hardware;
// it is not a propagation or energy model (those stay external
// collaborators per the core's scope).
package simmedium

import (
	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/timer"
)

// NodeID identifies a Radio attached to a Medium. It has no relation to
// 802.15.4 addressing; a Medium groups Radios purely for delivery.
type NodeID uint32

// LogFunc matches the teacher's LogPrintf signature for debug output.
type LogFunc func(format string, v ...interface{})

func noopLog(string, ...interface{}) {}

// txWindow records the airtime interval [start, end) of one
// transmission, kept around past its own end so that a later-delivering
// frame can still ask "did anything else occupy the channel while I was
// transmitting" instead of sampling a live set at delivery time.
type txWindow struct {
	id         NodeID
	start, end uint64
}

// Medium fans a Radio's transmission out to every other attached Radio
// that is listening (TRX_ON RX) at delivery time, and reports CCA busy
// while any attached Radio has an airtime window open. Delivery is
// scheduled txAirtime+propDelay microseconds after the PdDataRequest
// that started it, mirroring sx1276.Radio's TxChan/RxChan pair but
// replacing goroutine-fed channels with Clock callbacks (spec §5: no
// concurrency inside the core, and the PHY collaborator here plays by
// the same single-threaded rule for determinism).
type Medium struct {
	clock     timer.Scheduler
	txAirtime uint64 // microseconds a PSDU occupies the channel
	propDelay uint64 // microseconds from end of airtime to indication
	radios    map[NodeID]*Radio
	active    map[NodeID]struct{} // radios currently occupying the channel
	windows   []txWindow          // airtime history, for collision detection
	log       LogFunc
}

// NewMedium returns an empty Medium. txAirtime and propDelay are both in
// microseconds, on the same clock the attached MACs run against.
func NewMedium(clock timer.Scheduler, txAirtime, propDelay uint64) *Medium {
	return &Medium{
		clock:     clock,
		txAirtime: txAirtime,
		propDelay: propDelay,
		radios:    make(map[NodeID]*Radio),
		active:    make(map[NodeID]struct{}),
		log:       noopLog,
	}
}

// SetLogger installs fn as the medium's debug-log sink. Radios do not log
// on their own.
func (md *Medium) SetLogger(fn LogFunc) {
	if fn == nil {
		fn = noopLog
	}
	md.log = fn
}

// Attach creates and registers a new Radio on this medium.
func (md *Medium) Attach(id NodeID) *Radio {
	r := &Radio{id: id, medium: md}
	md.radios[id] = r
	return r
}

// busy reports whether any radio other than exclude currently has an
// open airtime window — the medium-wide view CCARequest consults.
func (md *Medium) busy(exclude NodeID) bool {
	for id := range md.active {
		if id != exclude {
			return true
		}
	}
	return false
}

// transmit starts id's airtime window, delivers the frame to every
// other attached, listening Radio after txAirtime+propDelay, and
// confirms the sender's PdDataRequest after txAirtime. A frame is
// dropped at delivery (not delivered to anyone) if any other radio's
// airtime window overlapped id's transmission at any point during it —
// a collision on the shared medium. The window is recorded at transmit
// start and checked by interval overlap at delivery time, not sampled
// from the live `active` set: by the time a frame delivers, the sender
// (and any overlapping sender) has already cleared its own `active`
// entry in its txAirtime confirm callback, which fires strictly before
// delivery.
func (md *Medium) transmit(id NodeID, psdu []byte) {
	start := md.clock.Now()
	end := start + md.txAirtime
	md.active[id] = struct{}{}
	md.windows = append(md.windows, txWindow{id: id, start: start, end: end})
	sender := md.radios[id]

	md.clock.After(md.txAirtime, func() {
		delete(md.active, id)
		if sender.cb != nil {
			sender.cb.PdDataConfirm(phy.StatusSuccess)
		}
	})

	md.clock.After(md.txAirtime+md.propDelay, func() {
		collided := md.collidedDuring(id, start, end)
		for otherID, r := range md.radios {
			if otherID == id {
				continue
			}
			if r.trxState != phy.RxOn {
				continue
			}
			if collided {
				md.log("simmedium: frame from %d collided, dropped at %d", id, otherID)
				continue
			}
			r.cb.PdDataIndication(psdu, 255)
		}
	})
}

// collidedDuring reports whether any transmission other than senderID's
// own occupied the channel at any point during [start, end) — a
// collision on the shared medium, affecting every receiver alike
// regardless of which radio it belonged to (including senderID's own
// receiver transmitting concurrently, the half-duplex case).
func (md *Medium) collidedDuring(senderID NodeID, start, end uint64) bool {
	for _, w := range md.windows {
		if w.id == senderID {
			continue
		}
		if w.start < end && start < w.end {
			return true
		}
	}
	return false
}

// Radio is one Medium-attached PHY, implementing phy.Service.
type Radio struct {
	id       NodeID
	medium   *Medium
	cb       phy.Callbacks
	trxState phy.TrxState
	channel  uint8
	fading   float64
}

// SetCallbacks wires the radio to its owning MAC's phy.Callbacks
// implementation. Must be called before any request method.
func (r *Radio) SetCallbacks(cb phy.Callbacks) { r.cb = cb }

// PdDataRequest starts transmitting psdu on the medium.
func (r *Radio) PdDataRequest(psdu []byte) {
	r.medium.transmit(r.id, psdu)
}

// SetTrxStateRequest changes the radio's TRX state and confirms
// immediately — real turnaround time is folded into the timeslot
// template's own offsets (tsCCAOffset, tsTxOffset, ...), not modeled a
// second time here.
func (r *Radio) SetTrxStateRequest(state phy.TrxState) {
	r.trxState = state
	if r.cb != nil {
		r.cb.SetTrxStateConfirm(phy.StatusSuccess, state)
	}
}

// CCARequest reports CCABusy if the medium has any other open airtime
// window, CCATrxOff if this radio isn't RX_ON, else CCAIdle.
func (r *Radio) CCARequest() {
	var status phy.CCAStatus
	switch {
	case r.trxState != phy.RxOn:
		status = phy.CCATrxOff
	case r.medium.busy(r.id):
		status = phy.CCABusy
	default:
		status = phy.CCAIdle
	}
	if r.cb != nil {
		r.cb.CcaConfirm(status)
	}
}

// SetAttributeRequest stores the channel or fading-bias attribute and
// confirms immediately; simmedium has no real RF to tune.
func (r *Radio) SetAttributeRequest(attr phy.Attribute, value float64) {
	switch attr {
	case phy.AttrCurrentChannel:
		r.channel = uint8(value)
	case phy.AttrLinkFadingBias:
		r.fading = value
	}
	if r.cb != nil {
		r.cb.SetAttributeConfirm(phy.StatusSuccess, attr)
	}
}
