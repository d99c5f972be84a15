// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import (
	"encoding/binary"

	"github.com/tve/tschmac/frame"
	"github.com/tve/tschmac/macaddr"
	"github.com/tve/tschmac/phy"
)

// startRxWindow begins the receive sub-sequence (spec §4.4 step 7).
func (m *MAC) startRxWindow() {
	m.state = Rx
	m.phase = phaseRxOnForSlot
	m.Phy.SetTrxStateRequest(phy.RxOn)
}

// onRxWindowReady arms the RX-wait timeout once the PHY confirms RX_ON,
// per spec §4.4 step 7: "on SetTrxStateConfirm(RX_ON) arm a timer at
// tsRxWait µs to force transition RX → PKT_WAIT_END".
func (m *MAC) onRxWindowReady() {
	asn := m.PIB.MacASN
	m.Clock.After(m.Tmpl.RxWait, func() {
		if m.PIB.MacASN != asn || m.state != Rx {
			return
		}
		m.state = PktWaitEnd
		m.Phy.SetTrxStateRequest(phy.TrxOff)
	})
}

// onAckWaitRxReady arms the ACK-wait timeout once the PHY confirms RX_ON
// for an outstanding ACK (spec §4.4 "Transmit sub-sequence").
func (m *MAC) onAckWaitRxReady() {
	asn := m.PIB.MacASN
	m.Clock.After(m.Tmpl.AckWait, func() {
		if m.PIB.MacASN != asn || m.state != AckPending {
			return
		}
		m.state = AckPendingEnd
		m.Phy.SetTrxStateRequest(phy.TrxOff)
	})
}

// PdDataIndication is called by the PHY collaborator on frame reception
// (spec §4.4 "Receive sub-sequence").
func (m *MAC) PdDataIndication(psdu []byte, lqi uint8) {
	hdr, payload, err := frame.Decode(psdu)
	if err != nil {
		m.emit(EventFcsDrop, err.Error())
		return
	}

	if m.PIB.PromiscuousMode {
		if hdr.Type != frame.FrameTypeAck {
			m.deliverIndication(hdr, payload, lqi)
		}
		m.emit(EventRxDelivered, "")
		return
	}

	if !m.passesFilter(hdr) {
		m.emit(EventFilterDrop, "")
		return
	}

	if hdr.Type == frame.FrameTypeAck {
		m.handleAckReceived(hdr)
		return
	}

	if m.state == Rx || m.state == PktWaitEnd {
		m.deliverIndication(hdr, payload, lqi)
		m.emit(EventRxDelivered, "")
		if hdr.AckRequest {
			m.sendAck(hdr)
		}
		m.state = Idle
	}
}

func (m *MAC) handleAckReceived(hdr *frame.Header) {
	if m.state != AckPending && m.state != AckPendingEnd {
		return
	}
	matched := false
	if m.tx.seqNumSuppressed && hdr.SeqNumSuppression {
		matched = true
	} else if !hdr.SeqNumSuppression && hdr.SeqNum == m.tx.seqNum {
		matched = true
	}
	if matched {
		m.emit(EventTxSuccess, "")
		m.confirmData(m.tx.handle, McpsSuccess)
		m.Queues.PopHead(m.tx.dst)
	} else {
		m.handleTxFailure()
	}
	m.tx = txContext{}
	m.state = Idle
	m.phase = phaseNone
}

// sendAck schedules the SendAck sub-step: after tsTxAckDelay the state
// machine goes through the same TX_ON / pdDataRequest path as a direct
// send, but for a constructed ACK instead of a queue head.
func (m *MAC) sendAck(dataHdr *frame.Header) {
	ackBytes := m.buildAck(dataHdr)
	if ackBytes == nil {
		return
	}
	asn := m.PIB.MacASN
	m.Clock.After(m.Tmpl.TxAckDelay, func() {
		if m.PIB.MacASN != asn {
			return
		}
		m.state = Sending
		m.phase = phaseTxOnForAck
		m.pendingAckByte = ackBytes
		m.Phy.SetTrxStateRequest(phy.TxOn)
	})
}

// buildAck constructs the ACK frame for dataHdr per spec §4.4 "Ack
// construction": version 2, both address modes NONE, no PAN ID,
// sequence-number suppression mirrored from the data frame, a single
// ACK-IE carrying an implementation-defined non-zero timing correction.
func (m *MAC) buildAck(dataHdr *frame.Header) []byte {
	ack := &frame.Header{
		Type:              frame.FrameTypeAck,
		Version:           2,
		DstAddrMode:       macaddr.ModeNone,
		SrcAddrMode:       macaddr.ModeNone,
		SeqNumSuppression: dataHdr.SeqNumSuppression,
		IEPresent:         true,
	}
	if !dataHdr.SeqNumSuppression {
		ack.SeqNum = dataHdr.SeqNum
	}
	const timingCorrection = 1
	content := make([]byte, 2)
	binary.BigEndian.PutUint16(content, timingCorrection)
	ack.IEs = []frame.IE{{ID: frame.AckIEID, Content: content}}

	encoded, err := frame.Encode(ack, nil)
	if err != nil {
		m.log("tsch: failed to build ack: %v", err)
		return nil
	}
	return encoded
}

// passesFilter implements spec §4.4's level-3 receive filter.
func (m *MAC) passesFilter(hdr *frame.Header) bool {
	if (hdr.IEPresent || hdr.SeqNumSuppression) && hdr.Version != 2 {
		return false
	}

	switch hdr.DstAddrMode {
	case macaddr.ModeShort:
		if hdr.DstShort != m.PIB.ShortAddress && hdr.DstShort != macaddr.BroadcastShort {
			return false
		}
	case macaddr.ModeExtended:
		if hdr.DstExtended != m.PIB.ExtendedAddress {
			return false
		}
	}

	if hdr.DstAddrMode != macaddr.ModeNone {
		if hdr.DstPanID != m.PIB.PanID && hdr.DstPanID != macaddr.BroadcastPAN {
			return false
		}
	}

	if hdr.Type == frame.FrameTypeBeacon {
		if m.PIB.PanID != macaddr.BroadcastPAN && hdr.DstPanID != m.PIB.PanID {
			return false
		}
	}

	return true
}

func (m *MAC) deliverIndication(hdr *frame.Header, payload []byte, lqi uint8) {
	if m.OnDataIndication == nil {
		return
	}
	m.OnDataIndication(McpsDataIndication{
		SrcMode:     hdr.SrcAddrMode,
		SrcShort:    hdr.SrcShort,
		SrcExtended: hdr.SrcExtended,
		DstMode:     hdr.DstAddrMode,
		DstShort:    hdr.DstShort,
		DstExtended: hdr.DstExtended,
		PanID:       hdr.DstPanID,
		Lqi:         lqi,
		SeqNum:      hdr.SeqNum,
		Payload:     payload,
	})
}
