// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package phy declares the boundary between the TSCH MAC state machine
// and the physical layer it drives. The PHY itself — radio hardware,
// propagation, energy modeling — is an external collaborator (spec §1
// Non-goals); this package only names the request/confirm/indication
// primitives from spec §6 so the MAC and a PHY implementation can be
// compiled and tested independently of each other.
package phy

// TrxState is the transceiver state requested via SetTrxStateRequest and
// reported back via SetTrxStateConfirm.
type TrxState uint8

const (
	TrxOff TrxState = iota
	RxOn
	TxOn
	TrxSwitching
	TrxStart
	ForceTrxOff
)

func (s TrxState) String() string {
	switch s {
	case TrxOff:
		return "TRX_OFF"
	case RxOn:
		return "RX_ON"
	case TxOn:
		return "TX_ON"
	case TrxSwitching:
		return "TRX_SWITCHING"
	case TrxStart:
		return "TRX_START"
	case ForceTrxOff:
		return "FORCE_TRX_OFF"
	default:
		return "TRX_UNKNOWN"
	}
}

// CCAStatus is the outcome of a clear-channel assessment.
type CCAStatus uint8

const (
	CCAIdle CCAStatus = iota
	CCABusy
	CCATrxOff
)

// Status is the generic confirm status shared by pdDataConfirm,
// setTrxStateConfirm and setAttributeConfirm.
type Status uint8

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusTrxOff
	StatusBusy
)

// Attribute names a PLME-SET-ATTRIBUTE target.
type Attribute uint8

const (
	AttrCurrentChannel Attribute = iota
	AttrLinkFadingBias
)

// Callbacks is implemented by the MAC state machine; a PHY calls these
// to deliver confirms and indications for requests the MAC issued.
type Callbacks interface {
	PdDataConfirm(status Status)
	PdDataIndication(psdu []byte, lqi uint8)
	CcaConfirm(status CCAStatus)
	SetTrxStateConfirm(status Status, state TrxState)
	SetAttributeConfirm(status Status, attr Attribute)
	EdConfirm(status Status, level uint8)
}

// Service is implemented by a PHY; the MAC state machine issues requests
// against it and receives confirms/indications through the Callbacks it
// was constructed with.
type Service interface {
	PdDataRequest(psdu []byte)
	SetTrxStateRequest(state TrxState)
	CCARequest()
	SetAttributeRequest(attr Attribute, value float64)
}
