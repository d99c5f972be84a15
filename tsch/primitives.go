// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import (
	"fmt"

	"github.com/tve/tschmac/macaddr"
)

// McpsDataStatus is the typed MCPS-DATA.confirm status (spec §6/§7).
type McpsDataStatus uint8

const (
	McpsSuccess McpsDataStatus = iota
	McpsFrameTooLong
	McpsInvalidAddress
	McpsChannelAccessFailure
	McpsNoAck
)

func (s McpsDataStatus) String() string {
	switch s {
	case McpsSuccess:
		return "SUCCESS"
	case McpsFrameTooLong:
		return "FRAME_TOO_LONG"
	case McpsInvalidAddress:
		return "INVALID_ADDRESS"
	case McpsChannelAccessFailure:
		return "CHANNEL_ACCESS_FAILURE"
	case McpsNoAck:
		return "NO_ACK"
	default:
		return "UNKNOWN"
	}
}

// McpsDataRequest carries the fields of an MCPS-DATA.request (spec §6).
type McpsDataRequest struct {
	SrcMode     macaddr.Mode
	DstMode     macaddr.Mode
	DstPan      macaddr.PANID
	DstShort    macaddr.Short
	DstExtended macaddr.Extended
	MsduHandle  uint8
	AckTx       bool
	Payload     []byte
}

// McpsDataConfirm carries the fields of an MCPS-DATA.confirm.
type McpsDataConfirm struct {
	Handle uint8
	Status McpsDataStatus
}

// Err returns the wrapped §7 TxError sentinel matching c.Status, or nil
// on McpsSuccess, the way McpsDataRequest's synchronous return already
// does for the validation failures it catches before enqueueing.
func (c McpsDataConfirm) Err() error {
	switch c.Status {
	case McpsSuccess:
		return nil
	case McpsFrameTooLong:
		return fmt.Errorf("tsch: mcps-data.confirm(handle=%d): %w", c.Handle, ErrFrameTooLong)
	case McpsInvalidAddress:
		return fmt.Errorf("tsch: mcps-data.confirm(handle=%d): %w", c.Handle, ErrInvalidAddress)
	case McpsChannelAccessFailure:
		return fmt.Errorf("tsch: mcps-data.confirm(handle=%d): %w", c.Handle, ErrChannelAccessFailure)
	case McpsNoAck:
		return fmt.Errorf("tsch: mcps-data.confirm(handle=%d): %w", c.Handle, ErrNoAck)
	default:
		return fmt.Errorf("tsch: mcps-data.confirm(handle=%d): unknown status %v", c.Handle, c.Status)
	}
}

// McpsDataIndication carries the fields of an MCPS-DATA.indication.
type McpsDataIndication struct {
	SrcMode     macaddr.Mode
	SrcShort    macaddr.Short
	SrcExtended macaddr.Extended
	DstMode     macaddr.Mode
	DstShort    macaddr.Short
	DstExtended macaddr.Extended
	PanID       macaddr.PANID
	Lqi         uint8
	SeqNum      uint8
	Payload     []byte
}

// MlmeSetSlotframeConfirm carries the fields of an
// MLME-SET-SLOTFRAME.confirm.
type MlmeSetSlotframeConfirm struct {
	Handle uint8
	Status MlmeSetSlotframeConfirmStatus
}

// MlmeSetLinkConfirm carries the fields of an MLME-SET-LINK.confirm.
type MlmeSetLinkConfirm struct {
	SlotframeHandle uint8
	LinkHandle      uint16
	Status          MlmeSetLinkConfirmStatus
}

// MlmeTschModeConfirm carries the fields of an MLME-TSCH-MODE.confirm.
type MlmeTschModeConfirm struct {
	Status MlmeTschModeConfirmStatus
}
