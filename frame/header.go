// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package frame implements the IEEE 802.15.4/15.4e MAC frame codec: the
// variable-length frame-control field, optional sequence number, optional
// source/destination PAN IDs and addresses, optional auxiliary security
// header (reserved fields only — no cipher suite), optional chain of
// Information Elements, and the 2-byte FCS trailer (spec §4.1).
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/tve/tschmac/macaddr"
)

// FrameType is the 3-bit frame-type subfield of the frame control word.
type FrameType uint8

const (
	FrameTypeBeacon  FrameType = 0
	FrameTypeData    FrameType = 1
	FrameTypeAck     FrameType = 2
	FrameTypeCommand FrameType = 3
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeBeacon:
		return "beacon"
	case FrameTypeData:
		return "data"
	case FrameTypeAck:
		return "ack"
	case FrameTypeCommand:
		return "command"
	default:
		return "reserved"
	}
}

// KeyIDMode selects the auxiliary security header's key identifier shape.
type KeyIDMode uint8

const (
	KeyIDImplicit KeyIDMode = 0
	KeyIDIndex    KeyIDMode = 1
	KeyIDShort    KeyIDMode = 2
	KeyIDLong     KeyIDMode = 3
)

// AuxSecurityHeader reserves the wire layout of the 802.15.4 auxiliary
// security header without implementing any cipher suite (spec §1
// Non-goals: "No security suite is implemented beyond reserving the
// header fields").
type AuxSecurityHeader struct {
	SecurityLevel uint8 // 3 bits
	KeyIDMode     KeyIDMode
	FrameCounter  uint32
	KeySource     []byte // 0, 4, or 8 bytes depending on KeyIDMode
	KeyIndex      uint8  // present unless KeyIDMode == KeyIDImplicit
}

func (a *AuxSecurityHeader) controlByte() byte {
	return (a.SecurityLevel & 0x7) | (uint8(a.KeyIDMode)&0x3)<<3
}

// serializedSize returns the on-wire length of the auxiliary security
// header: 5 bytes base (control + 4-byte frame counter) plus the key-id
// material spec §4.1's table calls out (5/6/10/14 total).
func (a *AuxSecurityHeader) serializedSize() int {
	switch a.KeyIDMode {
	case KeyIDImplicit:
		return 5
	case KeyIDIndex:
		return 6
	case KeyIDShort:
		return 10
	case KeyIDLong:
		return 14
	default:
		return 5
	}
}

// Header is a decoded 802.15.4/15.4e MAC header, excluding the payload and
// the trailing FCS (handled by Encode/Decode directly).
type Header struct {
	Type              FrameType
	Version           uint8 // 0, 1, or 2
	SecurityEnabled   bool
	FramePending      bool
	AckRequest        bool
	PanIDCompression  bool
	SeqNumSuppression bool // only meaningful when Version == 2
	IEPresent         bool // only meaningful when Version == 2
	SeqNum            uint8

	DstAddrMode macaddr.Mode
	DstPanID    macaddr.PANID
	DstShort    macaddr.Short
	DstExtended macaddr.Extended

	SrcAddrMode macaddr.Mode
	SrcPanID    macaddr.PANID
	SrcShort    macaddr.Short
	SrcExtended macaddr.Extended

	AuxSecurity *AuxSecurityHeader

	// IEs is the chain of Information Elements to encode when IEPresent
	// is set. TerminatorPayloadIEs selects which of the two terminators
	// (spec §4.1) closes the chain: true for the payload-IE terminator
	// (0x7E, "payload IEs follow"), false for the no-payload terminator
	// (0x7F, "end of IEs").
	IEs                  []IE
	TerminatorPayloadIEs bool
}

// hasSeqNum reports whether the 1-byte sequence number field is present
// on the wire: always for v<2, or for v==2 when suppression is off.
func (h *Header) hasSeqNum() bool {
	return h.Version != 2 || !h.SeqNumSuppression
}

// panIDPresence implements spec §4.1's PAN-ID presence table.
func panIDPresence(version uint8, compression bool, dstMode, srcMode macaddr.Mode) (dstPresent, srcPresent bool) {
	dstAddr := dstMode != macaddr.ModeNone
	srcAddr := srcMode != macaddr.ModeNone

	if version == 2 {
		if !compression {
			if dstAddr {
				return true, false
			}
			if srcAddr {
				return false, true
			}
			return false, false
		}
		// compression == true
		switch {
		case dstAddr && srcAddr:
			return true, false
		case dstAddr != srcAddr: // exactly one address present
			return false, false
		default: // neither address present
			return true, false
		}
	}

	// v < 2: both PAN IDs present independently, unless compression is
	// on and both addresses are present, in which case only Dst is on
	// the wire and Src is inferred equal to Dst on decode.
	if compression && dstAddr && srcAddr {
		return true, false
	}
	return dstAddr, srcAddr
}

func addrSize(mode macaddr.Mode) int {
	switch mode {
	case macaddr.ModeShort:
		return 2
	case macaddr.ModeExtended:
		return 8
	default:
		return 0
	}
}

func frameControl(h *Header) uint16 {
	var fc uint16
	fc |= uint16(h.Type) & 0x7
	if h.SecurityEnabled {
		fc |= 1 << 3
	}
	if h.FramePending {
		fc |= 1 << 4
	}
	if h.AckRequest {
		fc |= 1 << 5
	}
	if h.PanIDCompression {
		fc |= 1 << 6
	}
	if h.Version == 2 {
		if h.SeqNumSuppression {
			fc |= 1 << 8
		}
		if h.IEPresent {
			fc |= 1 << 9
		}
	}
	fc |= (uint16(h.DstAddrMode) & 0x3) << 10
	fc |= (uint16(h.Version) & 0x3) << 12
	fc |= (uint16(h.SrcAddrMode) & 0x3) << 14
	return fc
}

func parseFrameControl(fc uint16, h *Header) {
	h.Type = FrameType(fc & 0x7)
	h.SecurityEnabled = fc&(1<<3) != 0
	h.FramePending = fc&(1<<4) != 0
	h.AckRequest = fc&(1<<5) != 0
	h.PanIDCompression = fc&(1<<6) != 0
	h.DstAddrMode = macaddr.Mode((fc >> 10) & 0x3)
	h.Version = uint8((fc >> 12) & 0x3)
	h.SrcAddrMode = macaddr.Mode((fc >> 14) & 0x3)
	if h.Version == 2 {
		h.SeqNumSuppression = fc&(1<<8) != 0
		h.IEPresent = fc&(1<<9) != 0
	}
}

// Encode serializes header followed by payload, appending the FCS
// trailer iff ChecksumEnabled is set (spec invariant I6).
func Encode(h *Header, payload []byte) ([]byte, error) {
	if h.Type > FrameTypeCommand {
		return nil, fmt.Errorf("frame: encode: %w", ErrReservedType)
	}
	if h.Version > 2 {
		return nil, fmt.Errorf("frame: encode: %w", ErrUnsupportedVersion)
	}

	buf := make([]byte, 2, 32+len(payload))
	binary.LittleEndian.PutUint16(buf, frameControl(h))

	if h.hasSeqNum() {
		buf = append(buf, h.SeqNum)
	}

	dstPan, srcPan := panIDPresence(h.Version, h.PanIDCompression, h.DstAddrMode, h.SrcAddrMode)

	if dstPan {
		buf = appendU16(buf, uint16(h.DstPanID))
	}
	if h.DstAddrMode == macaddr.ModeShort {
		buf = appendU16(buf, uint16(h.DstShort))
	} else if h.DstAddrMode == macaddr.ModeExtended {
		buf = appendU64(buf, uint64(h.DstExtended))
	}
	if srcPan {
		buf = appendU16(buf, uint16(h.SrcPanID))
	}
	if h.SrcAddrMode == macaddr.ModeShort {
		buf = appendU16(buf, uint16(h.SrcShort))
	} else if h.SrcAddrMode == macaddr.ModeExtended {
		buf = appendU64(buf, uint64(h.SrcExtended))
	}

	if h.SecurityEnabled {
		if h.AuxSecurity == nil {
			return nil, fmt.Errorf("frame: encode: security enabled but no auxiliary header set")
		}
		a := h.AuxSecurity
		buf = append(buf, a.controlByte())
		buf = appendU32(buf, a.FrameCounter)
		switch a.KeyIDMode {
		case KeyIDImplicit:
		case KeyIDIndex:
			buf = append(buf, a.KeyIndex)
		case KeyIDShort:
			buf = append(buf, padKeySource(a.KeySource, 4)...)
			buf = append(buf, a.KeyIndex)
		case KeyIDLong:
			buf = append(buf, padKeySource(a.KeySource, 8)...)
			buf = append(buf, a.KeyIndex)
		}
	}

	if h.Version == 2 && h.IEPresent {
		terminator := TerminatorNoPayload
		if h.TerminatorPayloadIEs {
			terminator = TerminatorPayload
		}
		buf = append(buf, encodeIEChain(h.IEs, terminator)...)
	}

	buf = append(buf, payload...)

	if ChecksumEnabled {
		c := fcs(buf)
		buf = appendU16(buf, c)
	}
	return buf, nil
}

// Decode parses an on-wire frame into a Header and its payload bytes. It
// always strips the trailing 2-byte FCS and, when ChecksumEnabled is set,
// verifies it (spec invariant I6: a frame failing FCS is silently
// dropped, surfaced here as ErrFcsMismatch for the caller to act on).
func Decode(buf []byte) (*Header, []byte, error) {
	if ChecksumEnabled {
		if len(buf) < 2 {
			return nil, nil, ErrFrameTooShort
		}
		data, trailer := buf[:len(buf)-2], buf[len(buf)-2:]
		if fcs(data) != binary.LittleEndian.Uint16(trailer) {
			return nil, nil, ErrFcsMismatch
		}
		buf = data
	} else {
		if len(buf) < 2 {
			return nil, nil, ErrFrameTooShort
		}
		buf = buf[:len(buf)-2]
	}

	if len(buf) < 2 {
		return nil, nil, ErrFrameTooShort
	}
	h := &Header{}
	parseFrameControl(binary.LittleEndian.Uint16(buf[:2]), h)
	buf = buf[2:]

	if h.Type > FrameTypeCommand {
		return nil, nil, ErrReservedType
	}
	if h.Version > 2 {
		return nil, nil, ErrUnsupportedVersion
	}

	if h.hasSeqNum() {
		if len(buf) < 1 {
			return nil, nil, ErrFrameTooShort
		}
		h.SeqNum = buf[0]
		buf = buf[1:]
	}

	dstPan, srcPan := panIDPresence(h.Version, h.PanIDCompression, h.DstAddrMode, h.SrcAddrMode)

	if dstPan {
		v, rest, err := readU16(buf)
		if err != nil {
			return nil, nil, err
		}
		h.DstPanID = macaddr.PANID(v)
		buf = rest
	}
	if h.DstAddrMode == macaddr.ModeShort {
		v, rest, err := readU16(buf)
		if err != nil {
			return nil, nil, err
		}
		h.DstShort = macaddr.Short(v)
		buf = rest
	} else if h.DstAddrMode == macaddr.ModeExtended {
		v, rest, err := readU64(buf)
		if err != nil {
			return nil, nil, err
		}
		h.DstExtended = macaddr.Extended(v)
		buf = rest
	}

	if srcPan {
		v, rest, err := readU16(buf)
		if err != nil {
			return nil, nil, err
		}
		h.SrcPanID = macaddr.PANID(v)
		buf = rest
	} else if h.Version < 2 && h.PanIDCompression &&
		h.DstAddrMode != macaddr.ModeNone && h.SrcAddrMode != macaddr.ModeNone {
		// v<2, compression on, both addresses present: Src PAN ID is
		// inferred equal to Dst (spec §4.1).
		h.SrcPanID = h.DstPanID
	}
	if h.SrcAddrMode == macaddr.ModeShort {
		v, rest, err := readU16(buf)
		if err != nil {
			return nil, nil, err
		}
		h.SrcShort = macaddr.Short(v)
		buf = rest
	} else if h.SrcAddrMode == macaddr.ModeExtended {
		v, rest, err := readU64(buf)
		if err != nil {
			return nil, nil, err
		}
		h.SrcExtended = macaddr.Extended(v)
		buf = rest
	}

	if h.SecurityEnabled {
		if len(buf) < 5 {
			return nil, nil, ErrFrameTooShort
		}
		a := &AuxSecurityHeader{}
		ctrl := buf[0]
		a.SecurityLevel = ctrl & 0x7
		a.KeyIDMode = KeyIDMode((ctrl >> 3) & 0x3)
		fc, rest, err := readU32(buf[1:])
		if err != nil {
			return nil, nil, err
		}
		a.FrameCounter = fc
		buf = rest
		switch a.KeyIDMode {
		case KeyIDImplicit:
		case KeyIDIndex:
			if len(buf) < 1 {
				return nil, nil, ErrFrameTooShort
			}
			a.KeyIndex = buf[0]
			buf = buf[1:]
		case KeyIDShort:
			if len(buf) < 5 {
				return nil, nil, ErrFrameTooShort
			}
			a.KeySource = append([]byte{}, buf[:4]...)
			a.KeyIndex = buf[4]
			buf = buf[5:]
		case KeyIDLong:
			if len(buf) < 9 {
				return nil, nil, ErrFrameTooShort
			}
			a.KeySource = append([]byte{}, buf[:8]...)
			a.KeyIndex = buf[8]
			buf = buf[9:]
		}
		h.AuxSecurity = a
	}

	if h.Version == 2 && h.IEPresent {
		ies, terminatorID, rest, err := decodeIEChain(buf)
		if err != nil {
			return nil, nil, err
		}
		h.IEs = ies
		h.TerminatorPayloadIEs = terminatorID == TerminatorPayload
		buf = rest
	}

	payload := append([]byte{}, buf...)
	return h, payload, nil
}

func padKeySource(src []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, src)
	return out
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readU16(buf []byte) (uint16, []byte, error) {
	if len(buf) < 2 {
		return 0, nil, ErrFrameTooShort
	}
	return binary.LittleEndian.Uint16(buf[:2]), buf[2:], nil
}

func readU32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, ErrFrameTooShort
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}

func readU64(buf []byte) (uint64, []byte, error) {
	if len(buf) < 8 {
		return 0, nil, ErrFrameTooShort
	}
	return binary.LittleEndian.Uint64(buf[:8]), buf[8:], nil
}
