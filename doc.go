// Copyright 2016 by Thorsten von Eicken, see LICENSE file

// Package tschmac provides the core of an IEEE 802.15.4e TSCH (Time-Slotted
// Channel Hopping) MAC sublayer for use inside a discrete-event network
// simulator: the per-slot MAC state machine (package tsch), the
// slotframe/link scheduling database (package schedule), the per-destination
// transmit queues (package txqueue), and the 802.15.4/15.4e MAC frame codec
// (package frame). The physical layer, the event scheduler, and the
// upper-layer datapath are external collaborators; see phy and timer for
// their boundaries, and simmedium for a reference in-process PHY used by
// this module's own tests and cmd/tschsim.
package tschmac
