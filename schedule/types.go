// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package schedule implements the ScheduleDB: the slotframe/link
// scheduling database that tells the MAC state machine, for a given ASN,
// which link (if any) is active, whether it is TX or RX, whether it is
// shared, and which channel offset and peer address it carries (spec
// §4.2).
package schedule

import "github.com/tve/tschmac/macaddr"

// Operation selects the MLME-SET-SLOTFRAME/MLME-SET-LINK verb.
type Operation uint8

const (
	Add Operation = iota
	Modify
	Delete
)

// LinkOption is the link-options bitfield from spec §3.
type LinkOption uint8

const (
	OptionTX LinkOption = 1 << iota
	OptionRX
	OptionShared
	OptionTimekeeping
)

func (o LinkOption) TX() bool          { return o&OptionTX != 0 }
func (o LinkOption) RX() bool          { return o&OptionRX != 0 }
func (o LinkOption) Shared() bool      { return o&OptionShared != 0 }
func (o LinkOption) Timekeeping() bool { return o&OptionTimekeeping != 0 }

// LinkType distinguishes a normal link from an advertising one. Spec's
// Non-goals mean ADVERTISING links are scheduled identically to NORMAL
// ones — the type is carried for completeness (and telemetry) only.
type LinkType uint8

const (
	Normal LinkType = iota
	Advertising
)

// Link is a single scheduled timeslot binding within a Slotframe.
type Link struct {
	SlotframeHandle uint8
	LinkHandle      uint16
	Timeslot        uint16
	ChannelOffset   uint16
	Options         LinkOption
	Type            LinkType
	NodeAddr        macaddr.Short // peer; macaddr.BroadcastShort for broadcast/advertising
	FadingBias      []float64     // opaque per-channel bias payload, nil for broadcast/advertising
	TxID            uint32        // telemetry only
	RxID            uint32        // telemetry only
}

// LinkParams carries the fields of an MLME-SET-LINK.request.
type LinkParams struct {
	SlotframeHandle uint8
	LinkHandle      uint16
	Timeslot        uint16
	ChannelOffset   uint16
	Options         LinkOption
	Type            LinkType
	NodeAddr        macaddr.Short
	FadingBias      []float64
	TxID            uint32
	RxID            uint32
}

// ActiveLink is the result of a Lookup: the link in service for the
// current ASN, with the fields the MAC state machine needs at slot-tick
// time.
type ActiveLink struct {
	SlotframeHandle uint8
	LinkHandle      uint16
	Timeslot        uint16
	ChannelOffset   uint16
	Options         LinkOption
	Type            LinkType
	NodeAddr        macaddr.Short
	FadingBias      []float64
}

// CurrentLink is the transient per-slot record of which link (if any) is
// in service, used both by the MAC state machine and by SetLink to
// decide whether a mutation must be deferred (spec §3 "Lifecycle").
type CurrentLink struct {
	SlotframeHandle uint8
	LinkHandle      uint16
	Active          bool
}
