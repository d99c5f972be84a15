// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import (
	"github.com/tve/tschmac/frame"
	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/txqueue"
)

// startCCA begins the CCA transmit sub-sequence (spec §4.4 "Transmit
// sub-sequence", CCA branch).
func (m *MAC) startCCA(entry *txqueue.Entry) {
	m.state = CCA
	m.pendingEntry = entry
	m.txDst = m.activeLink.NodeAddr
	m.phase = phaseCCARxOn
	m.Phy.SetTrxStateRequest(phy.RxOn)
}

// startDirectSend begins the direct (no-CCA) transmit sub-sequence.
func (m *MAC) startDirectSend(entry *txqueue.Entry) {
	m.state = Sending
	m.pendingEntry = entry
	m.txDst = m.activeLink.NodeAddr
	m.phase = phaseTxOnForData
	m.Phy.SetTrxStateRequest(phy.TxOn)
}

// abortChannelAccess ends a CCA attempt in failure: the head entry is
// dropped (not retried — spec §9 Open Question decision) and
// MCPS-DATA.confirm(ChannelAccessFailure) fires.
func (m *MAC) abortChannelAccess(kind EventKind) {
	m.emit(kind, "")
	entry := m.pendingEntry
	m.pendingEntry = nil
	m.phase = phaseNone
	m.state = Idle
	if entry == nil {
		return
	}
	m.confirmData(entry.Handle, McpsChannelAccessFailure)
	m.Queues.PopHead(m.txDst)
}

// onDataSent runs once the data frame's PdDataConfirm arrives. A
// non-success PHY status is treated as an ordinary TX failure (spec §7:
// "PhyError... propagated into the state machine's existing failure
// paths").
func (m *MAC) onDataSent(status phy.Status) {
	entry := m.pendingEntry
	m.pendingEntry = nil
	if entry == nil {
		m.state = Idle
		return
	}
	if status != phy.StatusSuccess {
		m.tx = txContext{dst: m.txDst, handle: entry.Handle}
		m.handleTxFailure()
		m.state = Idle
		return
	}

	hdr, _, err := frame.Decode(entry.Packet)
	if err != nil {
		m.log("tsch: internal: could not re-decode own outbound frame: %v", err)
		m.state = Idle
		return
	}

	if !hdr.AckRequest {
		m.emit(EventTxSuccess, "")
		m.confirmData(entry.Handle, McpsSuccess)
		m.Queues.PopHead(m.txDst)
		m.state = Idle
		return
	}

	m.tx = txContext{dst: m.txDst, handle: entry.Handle, seqNum: hdr.SeqNum, seqNumSuppressed: hdr.SeqNumSuppression}
	asn := m.PIB.MacASN
	m.Clock.After(m.Tmpl.RxAckDelay, func() {
		if m.PIB.MacASN != asn {
			return
		}
		m.state = AckPending
		m.phase = phaseRxOnForAck
		m.Phy.SetTrxStateRequest(phy.RxOn)
	})
}

// handleTxFailure implements spec §4.4 "handleTxFailure": shared-link
// contention-window backoff growth, retry counting, and retry-exhaustion
// drop.
func (m *MAC) handleTxFailure() {
	dst := m.tx.dst
	if m.hasLink && m.activeLink.Options.Shared() {
		retries, _ := m.Queues.HeadRetries(dst)
		be, ok := m.Queues.LinkBE(dst)
		if ok {
			if retries > 0 && be < m.PIB.MaxBE {
				be++
				m.Queues.SetLinkBE(dst, be)
			}
			cw := uint8(m.rng.Intn(1 << be))
			m.Queues.HeadResetSharedBackoff(dst, cw)
		}
	}
	n, ok := m.Queues.HeadAdvanceRetry(dst)
	if ok && n >= m.PIB.MaxFrameRetries {
		m.emit(EventMaxRetries, "")
		m.confirmData(m.tx.handle, McpsNoAck)
		m.Queues.PopHead(dst)
	}
	m.tx = txContext{}
}
