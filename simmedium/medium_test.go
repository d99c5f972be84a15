// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package simmedium

import (
	"testing"

	"github.com/tve/tschmac/phy"
	"github.com/tve/tschmac/timer"
)

type recordingCallbacks struct {
	dataConfirms []phy.Status
	indications  [][]byte
	ccaResults   []phy.CCAStatus
}

func (c *recordingCallbacks) PdDataConfirm(status phy.Status) { c.dataConfirms = append(c.dataConfirms, status) }
func (c *recordingCallbacks) PdDataIndication(psdu []byte, lqi uint8) {
	c.indications = append(c.indications, psdu)
}
func (c *recordingCallbacks) CcaConfirm(status phy.CCAStatus) { c.ccaResults = append(c.ccaResults, status) }
func (c *recordingCallbacks) SetTrxStateConfirm(status phy.Status, state phy.TrxState) {}
func (c *recordingCallbacks) SetAttributeConfirm(status phy.Status, attr phy.Attribute) {}
func (c *recordingCallbacks) EdConfirm(status phy.Status, level uint8)                  {}

func TestDeliveryToListeningReceiver(t *testing.T) {
	clk := timer.NewVirtualClock()
	md := NewMedium(clk, 1000, 100)
	tx := md.Attach(1)
	rx := md.Attach(2)

	txCB, rxCB := &recordingCallbacks{}, &recordingCallbacks{}
	tx.SetCallbacks(txCB)
	rx.SetCallbacks(rxCB)

	rx.SetTrxStateRequest(phy.RxOn)
	tx.PdDataRequest([]byte("hello"))
	clk.Advance(2000)

	if len(txCB.dataConfirms) != 1 || txCB.dataConfirms[0] != phy.StatusSuccess {
		t.Fatalf("expected one Success confirm, got %+v", txCB.dataConfirms)
	}
	if len(rxCB.indications) != 1 || string(rxCB.indications[0]) != "hello" {
		t.Fatalf("expected receiver to get the frame, got %+v", rxCB.indications)
	}
}

func TestReceiverNotListeningGetsNothing(t *testing.T) {
	clk := timer.NewVirtualClock()
	md := NewMedium(clk, 1000, 100)
	tx := md.Attach(1)
	rx := md.Attach(2)
	txCB, rxCB := &recordingCallbacks{}, &recordingCallbacks{}
	tx.SetCallbacks(txCB)
	rx.SetCallbacks(rxCB)

	rx.SetTrxStateRequest(phy.TrxOff)
	tx.PdDataRequest([]byte("hello"))
	clk.Advance(2000)

	if len(rxCB.indications) != 0 {
		t.Fatalf("expected no indication for a non-listening receiver, got %+v", rxCB.indications)
	}
}

func TestCCABusyWhileAnotherRadioTransmits(t *testing.T) {
	clk := timer.NewVirtualClock()
	md := NewMedium(clk, 1000, 100)
	a := md.Attach(1)
	b := md.Attach(2)
	aCB, bCB := &recordingCallbacks{}, &recordingCallbacks{}
	a.SetCallbacks(aCB)
	b.SetCallbacks(bCB)

	b.SetTrxStateRequest(phy.RxOn)
	a.PdDataRequest([]byte("busy-channel"))
	b.CCARequest()

	if len(bCB.ccaResults) != 1 || bCB.ccaResults[0] != phy.CCABusy {
		t.Fatalf("expected CCABusy while another radio transmits, got %+v", bCB.ccaResults)
	}
}

func TestCCAIdleWhenChannelFree(t *testing.T) {
	clk := timer.NewVirtualClock()
	md := NewMedium(clk, 1000, 100)
	a := md.Attach(1)
	aCB := &recordingCallbacks{}
	a.SetCallbacks(aCB)

	a.SetTrxStateRequest(phy.RxOn)
	a.CCARequest()

	if len(aCB.ccaResults) != 1 || aCB.ccaResults[0] != phy.CCAIdle {
		t.Fatalf("expected CCAIdle on a free channel, got %+v", aCB.ccaResults)
	}
}

func TestOverlappingTransmissionsCollideAtSharedReceiver(t *testing.T) {
	clk := timer.NewVirtualClock()
	md := NewMedium(clk, 1000, 100)
	a, b, rx := md.Attach(1), md.Attach(2), md.Attach(3)
	aCB, bCB, rxCB := &recordingCallbacks{}, &recordingCallbacks{}, &recordingCallbacks{}
	a.SetCallbacks(aCB)
	b.SetCallbacks(bCB)
	rx.SetCallbacks(rxCB)

	rx.SetTrxStateRequest(phy.RxOn)
	a.PdDataRequest([]byte("from-a"))
	b.PdDataRequest([]byte("from-b"))
	clk.Advance(2000)

	if len(rxCB.indications) != 0 {
		t.Fatalf("expected both overlapping frames to collide and be dropped, got %+v", rxCB.indications)
	}
	if len(aCB.dataConfirms) != 1 || len(bCB.dataConfirms) != 1 {
		t.Fatalf("expected both senders to still get their own PdDataConfirm")
	}
}
