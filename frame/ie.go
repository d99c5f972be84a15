// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package frame

import "encoding/binary"

// Information Element terminator IDs. A header IE chain ends in one of
// these: the payload terminator says payload IEs follow next, the
// no-payload terminator says the header chain is the end of the line.
const (
	TerminatorPayload   uint8 = 0x7E
	TerminatorNoPayload uint8 = 0x7F
	AckIEID             uint8 = 0x1E
)

// IE is a single 802.15.4e Information Element: a two-octet descriptor
// (length, type, id) followed by Length content bytes.
type IE struct {
	ID      uint8
	Payload bool // type bit: false = header IE, true = payload IE
	Content []byte
}

func (ie IE) descriptor() uint16 {
	var typeBit uint16
	if ie.Payload {
		typeBit = 1
	}
	return uint16(len(ie.Content)&0x7F) | (typeBit << 7) | (uint16(ie.ID) << 8)
}

func decodeDescriptor(d uint16) (length int, payload bool, id uint8) {
	length = int(d & 0x7F)
	payload = (d>>7)&1 != 0
	id = uint8(d >> 8)
	return
}

// encodeIEChain serializes ies in order and appends the terminator IE
// implied by terminatorID (TerminatorPayload or TerminatorNoPayload).
func encodeIEChain(ies []IE, terminatorID uint8) []byte {
	var buf []byte
	for _, ie := range ies {
		var desc [2]byte
		binary.LittleEndian.PutUint16(desc[:], ie.descriptor())
		buf = append(buf, desc[:]...)
		buf = append(buf, ie.Content...)
	}
	term := IE{ID: terminatorID}
	var desc [2]byte
	binary.LittleEndian.PutUint16(desc[:], term.descriptor())
	buf = append(buf, desc[:]...)
	return buf
}

// decodeIEChain parses a chain of IE descriptors from buf, stopping at the
// first terminator (length 0, id TerminatorPayload or TerminatorNoPayload)
// or returning ErrUnsupportedIE if the buffer runs out first.
func decodeIEChain(buf []byte) (ies []IE, terminatorID uint8, rest []byte, err error) {
	for {
		if len(buf) < 2 {
			return nil, 0, nil, ErrUnsupportedIE
		}
		d := binary.LittleEndian.Uint16(buf[:2])
		length, payload, id := decodeDescriptor(d)
		buf = buf[2:]
		if length == 0 && (id == TerminatorPayload || id == TerminatorNoPayload) {
			return ies, id, buf, nil
		}
		if len(buf) < length {
			return nil, 0, nil, ErrUnsupportedIE
		}
		content := make([]byte, length)
		copy(content, buf[:length])
		ies = append(ies, IE{ID: id, Payload: payload, Content: content})
		buf = buf[length:]
	}
}

// BuildAckIE encodes the single ACK-IE carrying a 16-bit timing correction
// value (big-endian, per spec — the one field in this codec that isn't
// little-endian), terminated by the no-payload terminator, as spec's Ack
// construction rule requires.
func BuildAckIE(timingCorrection uint16) []byte {
	content := make([]byte, 2)
	binary.BigEndian.PutUint16(content, timingCorrection)
	ackIE := IE{ID: AckIEID, Payload: false, Content: content}
	return encodeIEChain([]IE{ackIE}, TerminatorNoPayload)
}

// ParseAckIE extracts the timing-correction value from an encoded ACK IE
// chain (the bytes after the header, as produced by BuildAckIE).
func ParseAckIE(buf []byte) (timingCorrection uint16, err error) {
	ies, _, _, err := decodeIEChain(buf)
	if err != nil {
		return 0, err
	}
	for _, ie := range ies {
		if ie.ID == AckIEID && len(ie.Content) == 2 {
			return binary.BigEndian.Uint16(ie.Content), nil
		}
	}
	return 0, ErrUnsupportedIE
}
