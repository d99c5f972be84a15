// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import (
	"errors"
	"testing"

	"github.com/tve/tschmac/frame"
	"github.com/tve/tschmac/macaddr"
	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/schedule"
	"github.com/tve/tschmac/timer"
	"github.com/tve/tschmac/txqueue"
)

// fakePhy is a synchronous PHY test double: every request resolves
// immediately via a direct call back into the MAC's phy.Callbacks
// methods, the same way a real PHY would eventually call back but
// without any simulated propagation delay.
type fakePhy struct {
	cb         phy.Callbacks
	ccaStatus  phy.CCAStatus
	dataStatus phy.Status
	trxStatus  phy.Status
	sent       [][]byte
	attrs      map[phy.Attribute]float64
}

func newFakePhy() *fakePhy {
	return &fakePhy{ccaStatus: phy.CCAIdle, dataStatus: phy.StatusSuccess, trxStatus: phy.StatusSuccess, attrs: map[phy.Attribute]float64{}}
}

func (p *fakePhy) PdDataRequest(psdu []byte) {
	p.sent = append(p.sent, append([]byte{}, psdu...))
	p.cb.PdDataConfirm(p.dataStatus)
}
func (p *fakePhy) SetTrxStateRequest(state phy.TrxState) { p.cb.SetTrxStateConfirm(p.trxStatus, state) }
func (p *fakePhy) CCARequest()                           { p.cb.CcaConfirm(p.ccaStatus) }
func (p *fakePhy) SetAttributeRequest(attr phy.Attribute, value float64) {
	p.attrs[attr] = value
	p.cb.SetAttributeConfirm(phy.StatusSuccess, attr)
}

func newTestMAC(t *testing.T, fp *fakePhy) (*MAC, *timer.VirtualClock, *schedule.DB, *txqueue.Queues) {
	t.Helper()
	clk := timer.NewVirtualClock()
	sdb := schedule.New()
	q := txqueue.New(1)
	hopping := schedule.NewDefaultHoppingSequence(1, 16)
	m := New(sdb, q, fp, clk, hopping, 42)
	fp.cb = m
	m.PIB.PanID = 0xcafe
	m.PIB.ShortAddress = 0x1111
	return m, clk, sdb, q
}

func TestSingleTxLinkNoAckDrainsQueue(t *testing.T) {
	fp := newFakePhy()
	m, clk, sdb, _ := newTestMAC(t, fp)
	sdb.SetSlotframe(1, schedule.Add, 1)
	sdb.SetLink(schedule.Add, schedule.LinkParams{SlotframeHandle: 1, LinkHandle: 1, Timeslot: 0, Options: schedule.OptionTX, NodeAddr: 0x2222}, nil)

	var confirms []McpsDataConfirm
	m.OnDataConfirm = func(c McpsDataConfirm) { confirms = append(confirms, c) }

	status, err := m.McpsDataRequest(McpsDataRequest{
		SrcMode: macaddr.ModeShort, DstMode: macaddr.ModeShort,
		DstPan: 0xcafe, DstShort: 0x2222, MsduHandle: 7, AckTx: false,
		Payload: []byte("hello"),
	})
	if status != McpsSuccess || err != nil {
		t.Fatalf("McpsDataRequest: status=%v err=%v", status, err)
	}

	m.MlmeTschModeRequest(true)
	clk.Advance(m.Tmpl.TimeslotLength + m.Tmpl.TxOffset + 1000)

	if len(confirms) != 1 || confirms[0].Status != McpsSuccess || confirms[0].Handle != 7 {
		t.Fatalf("expected one Success confirm for handle 7, got %+v", confirms)
	}
	if len(fp.sent) != 1 {
		t.Fatalf("expected exactly one frame transmitted, got %d", len(fp.sent))
	}
}

func TestMcpsDataRequestRejectsReservedAddressMode(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)

	status, err := m.McpsDataRequest(McpsDataRequest{SrcMode: macaddr.ModeReserved, DstMode: macaddr.ModeShort, DstShort: 0x2222, Payload: []byte("x")})
	if status != McpsInvalidAddress {
		t.Fatalf("expected McpsInvalidAddress, got %v", status)
	}
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected wrapped ErrInvalidAddress, got %v", err)
	}
}

func TestMcpsDataConfirmErrWrapsTxErrorSentinels(t *testing.T) {
	cases := []struct {
		status McpsDataStatus
		want   error
	}{
		{McpsSuccess, nil},
		{McpsFrameTooLong, ErrFrameTooLong},
		{McpsInvalidAddress, ErrInvalidAddress},
		{McpsChannelAccessFailure, ErrChannelAccessFailure},
		{McpsNoAck, ErrNoAck},
	}
	for _, c := range cases {
		confirm := McpsDataConfirm{Handle: 9, Status: c.status}
		got := confirm.Err()
		if c.want == nil {
			if got != nil {
				t.Errorf("%v: expected nil error, got %v", c.status, got)
			}
			continue
		}
		if !errors.Is(got, c.want) {
			t.Errorf("%v: expected wrapped %v, got %v", c.status, c.want, got)
		}
	}
}

func TestCCABusyDropsHeadWithChannelAccessFailure(t *testing.T) {
	fp := newFakePhy()
	fp.ccaStatus = phy.CCABusy
	m, clk, sdb, q := newTestMAC(t, fp)
	sdb.SetSlotframe(1, schedule.Add, 1)
	sdb.SetLink(schedule.Add, schedule.LinkParams{SlotframeHandle: 1, LinkHandle: 1, Timeslot: 0, Options: schedule.OptionTX, NodeAddr: 0x3333}, nil)

	var confirms []McpsDataConfirm
	m.OnDataConfirm = func(c McpsDataConfirm) { confirms = append(confirms, c) }
	if _, err := m.McpsDataRequest(McpsDataRequest{SrcMode: macaddr.ModeShort, DstMode: macaddr.ModeShort, DstPan: 0xcafe, DstShort: 0x3333, MsduHandle: 1, Payload: []byte("x")}); err != nil {
		t.Fatalf("McpsDataRequest: %v", err)
	}

	m.MlmeTschModeRequest(true)
	clk.Advance(m.Tmpl.TimeslotLength + m.Tmpl.CCAOffset + 1000)

	if len(confirms) != 1 || confirms[0].Status != McpsChannelAccessFailure {
		t.Fatalf("expected ChannelAccessFailure confirm, got %+v", confirms)
	}
	if q.Len(0x3333) != 0 {
		t.Fatalf("expected head entry dropped on CCA failure, not retried")
	}
}

func TestHandleTxFailureSharedLinkBackoffGrowth(t *testing.T) {
	fp := newFakePhy()
	m, _, _, q := newTestMAC(t, fp)
	m.PIB.MaxBE = 7
	m.PIB.MaxFrameRetries = 5
	q.Enqueue(0x4444, 3, []byte("frame"))
	m.activeLink = schedule.ActiveLink{Options: schedule.OptionTX | schedule.OptionShared}
	m.hasLink = true
	m.tx = txContext{dst: 0x4444, handle: 3}

	// First failure: prior retries == 0, so linkBE must NOT grow yet.
	m.handleTxFailure()
	be, _ := q.LinkBE(0x4444)
	if be != 1 {
		t.Fatalf("expected linkBE unchanged at minBE=1 after first failure, got %d", be)
	}
	retries, _ := q.HeadRetries(0x4444)
	if retries != 1 {
		t.Fatalf("expected nbRetries=1, got %d", retries)
	}

	m.tx = txContext{dst: 0x4444, handle: 3}
	m.handleTxFailure()
	be, _ = q.LinkBE(0x4444)
	if be != 2 {
		t.Fatalf("expected linkBE grown to 2 after second failure (prior retries>0), got %d", be)
	}
}

func TestHandleTxFailureDropsAtMaxRetries(t *testing.T) {
	fp := newFakePhy()
	m, _, _, q := newTestMAC(t, fp)
	m.PIB.MaxFrameRetries = 2
	q.Enqueue(0x5555, 9, []byte("frame"))
	m.activeLink = schedule.ActiveLink{Options: schedule.OptionTX}
	m.hasLink = true

	var confirms []McpsDataConfirm
	m.OnDataConfirm = func(c McpsDataConfirm) { confirms = append(confirms, c) }

	m.tx = txContext{dst: 0x5555, handle: 9}
	m.handleTxFailure()
	if q.Len(0x5555) != 1 {
		t.Fatalf("expected entry to survive first failure")
	}
	m.tx = txContext{dst: 0x5555, handle: 9}
	m.handleTxFailure()
	if q.Len(0x5555) != 0 {
		t.Fatalf("expected entry dropped at macMaxFrameRetries")
	}
	if len(confirms) != 1 || confirms[0].Status != McpsNoAck {
		t.Fatalf("expected NoAck confirm, got %+v", confirms)
	}
}

func TestBuildAckMirrorsSeqNumSuppression(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)

	dataHdr := &frame.Header{Type: frame.FrameTypeData, Version: 2, SeqNum: 55}
	ackBytes := m.buildAck(dataHdr)
	ack, _, err := frame.Decode(ackBytes)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack.Type != frame.FrameTypeAck || ack.DstAddrMode != macaddr.ModeNone || ack.SrcAddrMode != macaddr.ModeNone {
		t.Fatalf("unexpected ack shape: %+v", ack)
	}
	if ack.SeqNum != 55 {
		t.Fatalf("expected echoed seqnum 55, got %d", ack.SeqNum)
	}

	suppressed := &frame.Header{Type: frame.FrameTypeData, Version: 2, SeqNumSuppression: true}
	ackBytes = m.buildAck(suppressed)
	ack, _, err = frame.Decode(ackBytes)
	if err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if !ack.SeqNumSuppression {
		t.Fatalf("expected seqnum suppression mirrored onto ack")
	}
}

func TestPassesFilterPanAndShortAddress(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)

	good := &frame.Header{Type: frame.FrameTypeData, Version: 2, DstAddrMode: macaddr.ModeShort, DstPanID: m.PIB.PanID, DstShort: m.PIB.ShortAddress}
	if !m.passesFilter(good) {
		t.Fatalf("expected matching PAN+short address to pass")
	}
	wrongPan := &frame.Header{Type: frame.FrameTypeData, Version: 2, DstAddrMode: macaddr.ModeShort, DstPanID: 0x0001, DstShort: m.PIB.ShortAddress}
	if m.passesFilter(wrongPan) {
		t.Fatalf("expected mismatched PAN to fail filter")
	}
	broadcastPan := &frame.Header{Type: frame.FrameTypeData, Version: 2, DstAddrMode: macaddr.ModeShort, DstPanID: macaddr.BroadcastPAN, DstShort: m.PIB.ShortAddress}
	if !m.passesFilter(broadcastPan) {
		t.Fatalf("expected broadcast PAN to pass")
	}
	broadcastAddr := &frame.Header{Type: frame.FrameTypeData, Version: 2, DstAddrMode: macaddr.ModeShort, DstPanID: m.PIB.PanID, DstShort: macaddr.BroadcastShort}
	if !m.passesFilter(broadcastAddr) {
		t.Fatalf("expected broadcast short address to pass")
	}
	wrongAddr := &frame.Header{Type: frame.FrameTypeData, Version: 2, DstAddrMode: macaddr.ModeShort, DstPanID: m.PIB.PanID, DstShort: 0x9999}
	if m.passesFilter(wrongAddr) {
		t.Fatalf("expected mismatched short address to fail filter")
	}
}

func TestMlmeSetSlotframeAndLinkStatusMapping(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)

	c := m.MlmeSetSlotframeRequest(1, schedule.Add, 10)
	if c.Status != SlotframeSuccess {
		t.Fatalf("expected success, got %v", c.Status)
	}
	c = m.MlmeSetSlotframeRequest(1, schedule.Add, 10)
	if c.Status != SlotframeInvalidParameter {
		t.Fatalf("expected invalid parameter on dup add, got %v", c.Status)
	}
	lc := m.MlmeSetLinkRequest(schedule.Add, schedule.LinkParams{SlotframeHandle: 1, LinkHandle: 1, Timeslot: 0, Options: schedule.OptionTX})
	if lc.Status != LinkSuccess {
		t.Fatalf("expected link add success, got %v", lc.Status)
	}
	lc = m.MlmeSetLinkRequest(schedule.Modify, schedule.LinkParams{SlotframeHandle: 9, LinkHandle: 1, Timeslot: 0})
	if lc.Status != LinkNotFound {
		t.Fatalf("expected not-found for missing slotframe, got %v", lc.Status)
	}
}

func TestBroadcastForcesAckRequestOff(t *testing.T) {
	fp := newFakePhy()
	m, clk, sdb, _ := newTestMAC(t, fp)
	sdb.SetSlotframe(1, schedule.Add, 1)
	sdb.SetLink(schedule.Add, schedule.LinkParams{SlotframeHandle: 1, LinkHandle: 1, Timeslot: 0, Options: schedule.OptionTX, NodeAddr: macaddr.BroadcastShort}, nil)

	var confirms []McpsDataConfirm
	m.OnDataConfirm = func(c McpsDataConfirm) { confirms = append(confirms, c) }

	status, err := m.McpsDataRequest(McpsDataRequest{
		SrcMode: macaddr.ModeShort, DstMode: macaddr.ModeShort,
		DstPan: 0xcafe, DstShort: macaddr.BroadcastShort, MsduHandle: 4, AckTx: true,
		Payload: []byte("beacon-ish"),
	})
	if status != McpsSuccess || err != nil {
		t.Fatalf("McpsDataRequest: status=%v err=%v", status, err)
	}

	m.MlmeTschModeRequest(true)
	clk.Advance(m.Tmpl.TimeslotLength + m.Tmpl.TxOffset + 1000)

	if len(fp.sent) != 1 {
		t.Fatalf("expected exactly one frame transmitted, got %d", len(fp.sent))
	}
	hdr, _, err := frame.Decode(fp.sent[0])
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	if hdr.AckRequest {
		t.Fatalf("expected ackRequest forced off for broadcast destination")
	}
	if m.state != Idle {
		t.Fatalf("expected state to return to Idle immediately (no ACK wait armed), got %v", m.state)
	}
	if len(confirms) != 1 || confirms[0].Status != McpsSuccess || confirms[0].Handle != 4 {
		t.Fatalf("expected immediate Success confirm since no ack is awaited, got %+v", confirms)
	}
}

func TestMlmeTschModeIgnoresDoubleOn(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)
	c := m.MlmeTschModeRequest(true)
	if c.Status != TschModeSuccess {
		t.Fatalf("expected success turning on, got %v", c.Status)
	}
	c = m.MlmeTschModeRequest(true)
	if c.Status != TschModeOnIgnored {
		t.Fatalf("expected already-on, got %v", c.Status)
	}
}

func TestPromiscuousModeDeliversWithoutFilterOrAck(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)
	m.PIB.PromiscuousMode = true

	var indications []McpsDataIndication
	m.OnDataIndication = func(ind McpsDataIndication) { indications = append(indications, ind) }

	hdr := &frame.Header{
		Type: frame.FrameTypeData, Version: 2,
		DstAddrMode: macaddr.ModeShort, DstPanID: 0x0001, DstShort: 0x9999,
		SrcAddrMode: macaddr.ModeShort, SrcPanID: 0x0001, SrcShort: 0x8888,
	}
	psdu, err := frame.Encode(hdr, []byte("sniffed"))
	if err != nil {
		t.Fatalf("frame.Encode: %v", err)
	}

	m.PdDataIndication(psdu, 200)

	if len(indications) != 1 {
		t.Fatalf("expected one indication despite failing the address filter, got %d", len(indications))
	}
	if string(indications[0].Payload) != "sniffed" {
		t.Fatalf("unexpected payload %q", indications[0].Payload)
	}
	if len(fp.sent) != 0 {
		t.Fatalf("expected no ACK to be sent in promiscuous mode, got %d sends", len(fp.sent))
	}
}

func TestPromiscuousModeIgnoresAckFrames(t *testing.T) {
	fp := newFakePhy()
	m, _, _, _ := newTestMAC(t, fp)
	m.PIB.PromiscuousMode = true

	var indications []McpsDataIndication
	m.OnDataIndication = func(ind McpsDataIndication) { indications = append(indications, ind) }

	ack := &frame.Header{Type: frame.FrameTypeAck, Version: 2, DstAddrMode: macaddr.ModeNone, SrcAddrMode: macaddr.ModeNone}
	psdu, err := frame.Encode(ack, nil)
	if err != nil {
		t.Fatalf("frame.Encode: %v", err)
	}

	m.PdDataIndication(psdu, 200)

	if len(indications) != 0 {
		t.Fatalf("expected no data indication for a sniffed ACK, got %d", len(indications))
	}
}
