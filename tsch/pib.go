// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

import "github.com/tve/tschmac/macaddr"

// PIB holds the PAN Information Base attributes a MAC instance tracks
// (spec §3).
type PIB struct {
	MacASN          uint64
	MinBE           uint8
	MaxBE           uint8
	MaxFrameRetries uint8
	PanID           macaddr.PANID
	ShortAddress    macaddr.Short
	ExtendedAddress macaddr.Extended
	PromiscuousMode bool
	CCAEnabled      bool
	HoppingEnabled  bool
}

// DefaultPIB returns the PIB defaults named in spec §3.
func DefaultPIB() PIB {
	return PIB{
		MinBE:           1,
		MaxBE:           7,
		MaxFrameRetries: 5,
		CCAEnabled:      true,
		HoppingEnabled:  true,
	}
}

// TimeslotTemplate holds the microsecond offsets that govern slot timing
// (spec §3, defaults in §6).
type TimeslotTemplate struct {
	CCAOffset      uint64
	CCA            uint64
	TxOffset       uint64
	RxOffset       uint64
	RxAckDelay     uint64
	TxAckDelay     uint64
	RxWait         uint64
	AckWait        uint64
	RxTx           uint64
	MaxAck         uint64
	MaxTx          uint64
	TimeslotLength uint64
}

// DefaultTimeslotTemplate returns the default offsets from spec §6.
func DefaultTimeslotTemplate() TimeslotTemplate {
	return TimeslotTemplate{
		CCAOffset:      1800,
		CCA:            128,
		TxOffset:       2120,
		RxOffset:       1120,
		RxAckDelay:     800,
		TxAckDelay:     1000,
		RxWait:         2200,
		AckWait:        400,
		RxTx:           192,
		MaxAck:         2400,
		MaxTx:          4256,
		TimeslotLength: 10000,
	}
}
