// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import (
	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/schedule"
)

func (m *MAC) scheduleNextTick() {
	if !m.running {
		return
	}
	m.Clock.After(m.Tmpl.TimeslotLength, m.tick)
}

// tick runs one slot boundary, spec §4.4 "Slot tick" steps 1-7.
func (m *MAC) tick() {
	if !m.running {
		return
	}

	// Step 1: advance ASN.
	m.PIB.MacASN++

	// Step 2: resolve the previous slot's dangling *_END state.
	switch m.state {
	case AckPendingEnd:
		m.emit(EventTxFailedNoAck, "")
		m.handleTxFailure()
	case PktWaitEnd:
		m.emit(EventRxMiss, "")
	}
	m.state = Idle
	m.phase = phaseNone
	m.pendingEntry = nil
	m.pendingAckByte = nil

	// Step 3: apply any deferred link mutation.
	if err := m.Schedule.ApplyPending(); err != nil {
		m.log("tsch: deferred link mutation failed: %v", err)
	}

	// Step 4: find this slot's active link, if any.
	link, ok := m.Schedule.Lookup(m.PIB.MacASN)
	if !ok {
		m.current = schedule.CurrentLink{}
		m.hasLink = false
		m.Phy.SetTrxStateRequest(phy.TrxOff)
		m.emit(EventSleep, "")
		m.scheduleNextTick()
		return
	}
	m.activeLink = link
	m.hasLink = true
	m.current = schedule.CurrentLink{SlotframeHandle: link.SlotframeHandle, LinkHandle: link.LinkHandle, Active: true}

	// Step 5: channel hopping.
	if m.PIB.HoppingEnabled && m.Hopping != nil {
		ch := m.Hopping.Channel(m.PIB.MacASN, link.ChannelOffset)
		m.Phy.SetAttributeRequest(phy.AttrCurrentChannel, float64(ch))
		m.Phy.SetAttributeRequest(phy.AttrLinkFadingBias, fadingBiasFor(link.FadingBias, ch))
	}

	// Steps 6/7: arm the TX or RX sub-sequence for this slot.
	switch {
	case link.Options.TX():
		m.armTxSlot()
	case link.Options.RX():
		m.armRxSlot()
	}
	m.scheduleNextTick()
}

// fadingBiasFor returns the per-channel bias for ch if link carries one,
// else the neutral bias of 1 (spec §4.4 step 5: "phyLinkFadingBias = ch
// ... bias[ch-11] || 1").
func fadingBiasFor(bias []float64, ch uint8) float64 {
	idx := int(ch) - 11
	if idx < 0 || idx >= len(bias) {
		return 1
	}
	return bias[idx]
}

// armTxSlot implements step 6: if a frame is queued for this TX link,
// schedule the CCA or direct-send sub-sequence; otherwise stay off the
// air for the slot.
func (m *MAC) armTxSlot() {
	link := m.activeLink
	entry, ok := m.Queues.PeekForTxLink(link.NodeAddr, link.Options.Shared())
	if !ok {
		m.emit(EventEmptyBuffer, "")
		return
	}
	if m.PIB.CCAEnabled {
		m.Clock.After(m.Tmpl.CCAOffset, func() { m.startCCA(entry) })
	} else {
		m.Clock.After(m.Tmpl.TxOffset, func() { m.startDirectSend(entry) })
	}
}

// armRxSlot implements step 7: turn RX on at tsRxOffset and listen for
// tsRxWait, forcing TRX off if nothing arrives in that window.
func (m *MAC) armRxSlot() {
	m.Clock.After(m.Tmpl.RxOffset, func() { m.startRxWindow() })
}
