// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package tsch

// State is one of the MacStateMachine states from spec §4.4.
type State uint8

const (
	Idle State = iota
	CCA
	Sending
	AckPending
	AckPendingEnd
	Rx
	PktWaitEnd
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case CCA:
		return "CCA"
	case Sending:
		return "SENDING"
	case AckPending:
		return "ACK_PENDING"
	case AckPendingEnd:
		return "ACK_PENDING_END"
	case Rx:
		return "RX"
	case PktWaitEnd:
		return "PKT_WAIT_END"
	default:
		return "UNKNOWN"
	}
}
