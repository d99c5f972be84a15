// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import "errors"

// TxError sentinels from spec §7 taxonomy (c) — reasons MAC-DATA.confirm
// can fail a send. McpsDataRequest wraps these for its own synchronous
// rejections; McpsDataConfirm.Err wraps them for the asynchronous
// outcomes delivered via OnDataConfirm, so a caller that wants a plain
// Go error instead of switching on McpsDataStatus can use errors.Is
// against these.
var (
	ErrFrameTooLong         = errors.New("tsch: frame too long")
	ErrInvalidAddress       = errors.New("tsch: invalid address")
	ErrChannelAccessFailure = errors.New("tsch: channel access failure")
	ErrNoAck                = errors.New("tsch: no ack received")
)

// MlmeSetSlotframeConfirmStatus is the typed MLME-SET-SLOTFRAME.confirm
// status, supplemented from the original implementation's confirm enum
// (SPEC_FULL.md §12) alongside the plain schedule package errors.
type MlmeSetSlotframeConfirmStatus uint8

const (
	SlotframeSuccess MlmeSetSlotframeConfirmStatus = iota
	SlotframeInvalidParameter
	SlotframeNotFound
	SlotframeMaxExceeded
)

func (s MlmeSetSlotframeConfirmStatus) String() string {
	switch s {
	case SlotframeSuccess:
		return "SUCCESS"
	case SlotframeInvalidParameter:
		return "INVALID_PARAMETER"
	case SlotframeNotFound:
		return "NOT_FOUND"
	case SlotframeMaxExceeded:
		return "MAX_SLOTFRAMES_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// MlmeSetLinkConfirmStatus is the typed MLME-SET-LINK.confirm status.
type MlmeSetLinkConfirmStatus uint8

const (
	LinkSuccess MlmeSetLinkConfirmStatus = iota
	LinkInvalidParameter
	LinkNotFound
	LinkModificationDeferred
)

func (s MlmeSetLinkConfirmStatus) String() string {
	switch s {
	case LinkSuccess:
		return "SUCCESS"
	case LinkInvalidParameter:
		return "INVALID_PARAMETER"
	case LinkNotFound:
		return "UNKNOWN_LINK"
	case LinkModificationDeferred:
		return "MODIFICATION_DEFERRED"
	default:
		return "UNKNOWN"
	}
}

// MlmeTschModeConfirmStatus is the typed MLME-TSCH-MODE.confirm status.
type MlmeTschModeConfirmStatus uint8

const (
	TschModeSuccess MlmeTschModeConfirmStatus = iota
	TschModeOnIgnored
	TschModeOffIgnored
)

func (s MlmeTschModeConfirmStatus) String() string {
	switch s {
	case TschModeSuccess:
		return "SUCCESS"
	case TschModeOnIgnored:
		return "ALREADY_ON"
	case TschModeOffIgnored:
		return "ALREADY_OFF"
	default:
		return "UNKNOWN"
	}
}
