// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package tsch implements the MacStateMachine: the IEEE 802.15.4e TSCH
// slot-by-slot sequencing engine that drives a PHY collaborator through
// CCA, transmission, ACK wait, and reception wait, consulting the
// schedule and transmit queues once per slot (spec §4.4). This is the
// core of the module; everything else (frame codec, schedule database,
// transmit queues, PHY/timer boundaries) exists to serve this package.
package tsch

import (
	"fmt"
	"math/rand"

	"github.com/tve/tschmac/frame"
	"github.com/tve/tschmac/macaddr"
	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/schedule"
	"github.com/tve/tschmac/timer"
	"github.com/tve/tschmac/txqueue"
)

// maxPsduLen is aMaxPHYPacketSize from the 802.15.4 PHY constants table:
// the largest PSDU (header+payload+FCS) a frame may serialize to.
const maxPsduLen = 127

// phyPhase disambiguates what an incoming PHY confirm means in the
// current state, the way sx1276.Radio's mode byte disambiguates its
// interrupt handler.
type phyPhase uint8

const (
	phaseNone phyPhase = iota
	phaseCCARxOn
	phaseCCAResult
	phaseTxOnForData
	phaseDataSent
	phaseRxOnForAck
	phaseRxOnForSlot
	phaseTxOnForAck
	phaseAckSent
)

// txContext is the bookkeeping kept alive across a slot's sub-timers for
// whichever frame is currently outstanding (sent, awaiting CCA, or
// awaiting ACK).
type txContext struct {
	dst              macaddr.Short
	handle           uint8
	seqNum           uint8
	seqNumSuppressed bool
}

// MAC is a single TSCH MAC state machine instance. Per spec §5, all of
// its mutable state is owned by one goroutine-free, single-threaded
// instance driven entirely by Clock callbacks; nothing here is safe for
// concurrent use from multiple goroutines, by design.
type MAC struct {
	PIB      PIB
	Tmpl     TimeslotTemplate
	Schedule *schedule.DB
	Queues   *txqueue.Queues
	Phy      phy.Service
	Clock    timer.Scheduler
	Hopping  *schedule.HoppingSequence

	OnDataConfirm    func(McpsDataConfirm)
	OnDataIndication func(McpsDataIndication)

	event EventFunc
	log   LogFunc

	running bool
	state   State
	phase   phyPhase

	current    schedule.CurrentLink
	activeLink schedule.ActiveLink
	hasLink    bool

	pendingEntry   *txqueue.Entry
	pendingAckByte []byte
	txDst          macaddr.Short
	tx             txContext

	seqNum uint8
	rng    *rand.Rand
}

// New constructs a MAC wired to the given collaborators. seed drives the
// per-device shared-link backoff draw stream (spec §9 design note: a
// seeded stream, not global math/rand, so runs are reproducible).
func New(sdb *schedule.DB, q *txqueue.Queues, p phy.Service, clk timer.Scheduler, hopping *schedule.HoppingSequence, seed int64) *MAC {
	return &MAC{
		PIB:      DefaultPIB(),
		Tmpl:     DefaultTimeslotTemplate(),
		Schedule: sdb,
		Queues:   q,
		Phy:      p,
		Clock:    clk,
		Hopping:  hopping,
		event:    noopEvent,
		log:      noopLog,
		state:    Idle,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// SetLogger installs fn as the debug-log sink, matching the teacher's
// SetLogger/LogPrintf idiom.
func (m *MAC) SetLogger(fn LogFunc) {
	if fn == nil {
		fn = noopLog
	}
	m.log = fn
}

// SetEventFunc installs fn as the telemetry sink.
func (m *MAC) SetEventFunc(fn EventFunc) {
	if fn == nil {
		fn = noopEvent
	}
	m.event = fn
}

func (m *MAC) emit(kind EventKind, note string) {
	m.event(Event{Kind: kind, ASN: m.PIB.MacASN, Note: note})
}

func (m *MAC) confirmData(handle uint8, status McpsDataStatus) {
	if m.OnDataConfirm != nil {
		m.OnDataConfirm(McpsDataConfirm{Handle: handle, Status: status})
	}
}

func (m *MAC) nextSeqNum() uint8 {
	s := m.seqNum
	m.seqNum++
	return s
}

// MlmeSetSlotframeRequest implements MLME-SET-SLOTFRAME.request.
func (m *MAC) MlmeSetSlotframeRequest(handle uint8, op schedule.Operation, size uint16) MlmeSetSlotframeConfirm {
	err := m.Schedule.SetSlotframe(handle, op, size)
	return MlmeSetSlotframeConfirm{Handle: handle, Status: mapSlotframeStatus(err)}
}

func mapSlotframeStatus(err error) MlmeSetSlotframeConfirmStatus {
	switch err {
	case nil:
		return SlotframeSuccess
	case schedule.ErrInvalidParameter:
		return SlotframeInvalidParameter
	case schedule.ErrSlotframeNotFound:
		return SlotframeNotFound
	case schedule.ErrMaxExceeded:
		return SlotframeMaxExceeded
	default:
		return SlotframeInvalidParameter
	}
}

// MlmeSetLinkRequest implements MLME-SET-LINK.request. Modifying or
// deleting the currently active link is deferred to the next ASN
// boundary (spec §3 Lifecycle, §4.4 step 3).
func (m *MAC) MlmeSetLinkRequest(op schedule.Operation, p schedule.LinkParams) MlmeSetLinkConfirm {
	deferred, err := m.Schedule.SetLink(op, p, &m.current)
	status := mapLinkStatus(err)
	if err == nil && deferred {
		status = LinkModificationDeferred
	}
	return MlmeSetLinkConfirm{SlotframeHandle: p.SlotframeHandle, LinkHandle: p.LinkHandle, Status: status}
}

func mapLinkStatus(err error) MlmeSetLinkConfirmStatus {
	switch err {
	case nil:
		return LinkSuccess
	case schedule.ErrInvalidParameter:
		return LinkInvalidParameter
	case schedule.ErrSlotframeNotFound, schedule.ErrUnknownLink:
		return LinkNotFound
	default:
		return LinkInvalidParameter
	}
}

// MlmeTschModeRequest implements MLME-TSCH-MODE.request: ON begins
// ticking such that the first serviced slot is ASN 0; OFF stops ticking.
func (m *MAC) MlmeTschModeRequest(on bool) MlmeTschModeConfirm {
	if on {
		if m.running {
			return MlmeTschModeConfirm{Status: TschModeOnIgnored}
		}
		m.running = true
		// tick's first call increments MacASN before servicing the slot, so
		// park it one below zero here — wrapping to 0 on that increment,
		// same as the original's m_macASN = -1.
		m.PIB.MacASN = ^uint64(0)
		m.state = Idle
		m.scheduleNextTick()
		return MlmeTschModeConfirm{Status: TschModeSuccess}
	}
	if !m.running {
		return MlmeTschModeConfirm{Status: TschModeOffIgnored}
	}
	m.running = false
	return MlmeTschModeConfirm{Status: TschModeSuccess}
}

// McpsDataRequest implements MCPS-DATA.request: it builds and enqueues
// the full data frame immediately (spec I4: the sequence number
// increments on enqueue), leaving transmission itself to the slot-tick
// sequencer. Synchronous validation failures (FrameTooLong,
// InvalidAddress) are returned directly, as both the matching
// McpsDataStatus and a wrapped sentinel error from this package's §7
// TxError taxonomy; the asynchronous outcomes (Success,
// ChannelAccessFailure, NoAck) carry no error here and arrive later via
// OnDataConfirm.
func (m *MAC) McpsDataRequest(req McpsDataRequest) (McpsDataStatus, error) {
	if req.DstMode == macaddr.ModeReserved || req.SrcMode == macaddr.ModeReserved {
		return McpsInvalidAddress, fmt.Errorf("tsch: mcps-data.request: %w", ErrInvalidAddress)
	}
	ackTx := req.AckTx && req.DstShort != macaddr.BroadcastShort
	h := &frame.Header{
		Type:             frame.FrameTypeData,
		Version:          2,
		AckRequest:       ackTx,
		PanIDCompression: req.DstPan == m.PIB.PanID,
		SeqNum:           m.nextSeqNum(),
		DstAddrMode:      req.DstMode,
		DstPanID:         req.DstPan,
		DstShort:         req.DstShort,
		DstExtended:      req.DstExtended,
		SrcAddrMode:      req.SrcMode,
		SrcPanID:         m.PIB.PanID,
		SrcShort:         m.PIB.ShortAddress,
		SrcExtended:      m.PIB.ExtendedAddress,
	}
	encoded, err := frame.Encode(h, req.Payload)
	if err != nil {
		return McpsFrameTooLong, fmt.Errorf("tsch: mcps-data.request: %w: %v", ErrFrameTooLong, err)
	}
	if len(encoded) > maxPsduLen {
		return McpsFrameTooLong, fmt.Errorf("tsch: mcps-data.request: %w: %d bytes exceeds aMaxPHYPacketSize", ErrFrameTooLong, len(encoded))
	}
	m.Queues.Enqueue(req.DstShort, req.MsduHandle, encoded)
	return McpsSuccess, nil
}
