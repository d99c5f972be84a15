// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import "github.com/tve/tschmac/phy"

// The methods in this file implement phy.Callbacks: the PHY collaborator
// calls these to deliver confirms for requests the MAC issued, and the
// phase field (set immediately before each request) disambiguates what
// each confirm means, mirroring sx1276.Radio's mode-dispatch pattern.

// PdDataConfirm delivers the outcome of a PdDataRequest.
func (m *MAC) PdDataConfirm(status phy.Status) {
	switch m.phase {
	case phaseDataSent:
		m.phase = phaseNone
		m.onDataSent(status)
	case phaseAckSent:
		m.phase = phaseNone
		m.pendingAckByte = nil
		m.state = Idle
	default:
		m.log("tsch: unexpected PdDataConfirm in phase %d", m.phase)
	}
}

// CcaConfirm delivers the outcome of a CCARequest.
func (m *MAC) CcaConfirm(status phy.CCAStatus) {
	if m.phase != phaseCCAResult {
		return
	}
	switch status {
	case phy.CCAIdle:
		m.phase = phaseTxOnForData
		m.state = Sending
		m.Phy.SetTrxStateRequest(phy.TxOn)
	case phy.CCABusy:
		m.phase = phaseNone
		m.abortChannelAccess(EventChannelBusy)
	case phy.CCATrxOff:
		m.phase = phaseNone
		m.abortChannelAccess(EventChannelAccessFailure)
	}
}

// SetTrxStateConfirm delivers the outcome of a SetTrxStateRequest. A
// non-success status is a PhyError; per spec §7 it is logged and the
// slot is abandoned, relying on the next ASN tick to recover the
// machine.
func (m *MAC) SetTrxStateConfirm(status phy.Status, state phy.TrxState) {
	if status != phy.StatusSuccess {
		m.log("tsch: setTrxState(%v) failed: %v", state, status)
		m.state = Idle
		m.phase = phaseNone
		m.pendingEntry = nil
		return
	}
	switch m.phase {
	case phaseCCARxOn:
		m.phase = phaseCCAResult
		m.Phy.CCARequest()
	case phaseTxOnForData:
		m.phase = phaseDataSent
		m.Phy.PdDataRequest(m.pendingEntry.Packet)
	case phaseTxOnForAck:
		m.phase = phaseAckSent
		m.Phy.PdDataRequest(m.pendingAckByte)
	case phaseRxOnForAck:
		m.phase = phaseNone
		m.onAckWaitRxReady()
	case phaseRxOnForSlot:
		m.phase = phaseNone
		m.onRxWindowReady()
	}
}

// SetAttributeConfirm delivers the outcome of a SetAttributeRequest
// (channel hop / fading bias). Nothing in the state machine blocks on
// it; a failure is logged only.
func (m *MAC) SetAttributeConfirm(status phy.Status, attr phy.Attribute) {
	if status != phy.StatusSuccess {
		m.log("tsch: setAttribute(%v) failed: %v", attr, status)
	}
}

// EdConfirm delivers the outcome of an energy-detection scan. The core
// state machine does not issue ED requests; this exists to satisfy
// phy.Callbacks.
func (m *MAC) EdConfirm(status phy.Status, level uint8) {
	m.log("tsch: unexpected edConfirm(%v, %d)", status, level)
}
