// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package schedule

// maxSlotframes bounds the number of concurrent slotframes a device may
// own. The handle is 8 bits wide, but a device juggling this many
// independently-sized slotframes is already a configuration error.
const maxSlotframes = 64

type slotframe struct {
	handle uint8
	size   uint16
	links  map[uint16]*Link
}

// pendingLink is a deferred SetLink mutation, applied by ApplyPending at
// the next ASN boundary (spec §3 Lifecycle, §4.4 step 3).
type pendingLink struct {
	op     Operation
	params LinkParams
}

// DB is the ScheduleDB: the slotframe/link database consulted once per
// slot tick by the MAC state machine.
type DB struct {
	slotframes map[uint8]*slotframe
	pending    *pendingLink
}

// New returns an empty ScheduleDB.
func New() *DB {
	return &DB{slotframes: make(map[uint8]*slotframe)}
}

// SetSlotframe implements the MLME-SET-SLOTFRAME primitive.
func (db *DB) SetSlotframe(handle uint8, op Operation, size uint16) error {
	switch op {
	case Add:
		if _, ok := db.slotframes[handle]; ok {
			return ErrInvalidParameter
		}
		if len(db.slotframes) >= maxSlotframes {
			return ErrMaxExceeded
		}
		if size == 0 {
			return ErrInvalidParameter
		}
		db.slotframes[handle] = &slotframe{handle: handle, size: size, links: make(map[uint16]*Link)}
		return nil
	case Modify:
		sf, ok := db.slotframes[handle]
		if !ok {
			return ErrSlotframeNotFound
		}
		if size == 0 {
			return ErrInvalidParameter
		}
		sf.size = size
		return nil
	case Delete:
		if _, ok := db.slotframes[handle]; !ok {
			return ErrSlotframeNotFound
		}
		delete(db.slotframes, handle)
		return nil
	default:
		return ErrInvalidParameter
	}
}

// SetLink implements the MLME-SET-LINK primitive. If the targeted link is
// the currently active one (per active), the mutation is stored as
// pending and applied by the next ApplyPending call instead of taking
// effect immediately; deferred reports true in that case.
func (db *DB) SetLink(op Operation, p LinkParams, active *CurrentLink) (deferred bool, err error) {
	if op == Add {
		sf, ok := db.slotframes[p.SlotframeHandle]
		if !ok {
			return false, ErrSlotframeNotFound
		}
		if _, exists := sf.links[p.LinkHandle]; exists {
			return false, ErrInvalidParameter
		}
		if p.Timeslot >= sf.size {
			return false, ErrInvalidParameter
		}
		if other := sf.linkAtTimeslot(p.Timeslot, nil); other != nil {
			return false, ErrInvalidParameter
		}
		sf.links[p.LinkHandle] = linkFromParams(p)
		return false, nil
	}

	sf, ok := db.slotframes[p.SlotframeHandle]
	if !ok {
		return false, ErrSlotframeNotFound
	}
	if _, exists := sf.links[p.LinkHandle]; !exists {
		return false, ErrUnknownLink
	}

	if active != nil && active.Active && active.SlotframeHandle == p.SlotframeHandle && active.LinkHandle == p.LinkHandle {
		db.pending = &pendingLink{op: op, params: p}
		return true, nil
	}

	switch op {
	case Modify:
		if p.Timeslot >= sf.size {
			return false, ErrInvalidParameter
		}
		if other := sf.linkAtTimeslot(p.Timeslot, &p.LinkHandle); other != nil {
			return false, ErrInvalidParameter
		}
		sf.links[p.LinkHandle] = linkFromParams(p)
		return false, nil
	case Delete:
		delete(sf.links, p.LinkHandle)
		return false, nil
	default:
		return false, ErrInvalidParameter
	}
}

// ApplyPending applies a deferred link mutation stored by a prior SetLink
// call, if any. It is called once per ASN boundary by the MAC state
// machine (spec §4.4 step 3), unconditionally: by the time the next tick
// runs, the link that triggered the deferral is no longer current.
func (db *DB) ApplyPending() error {
	if db.pending == nil {
		return nil
	}
	p := db.pending
	db.pending = nil
	sf, ok := db.slotframes[p.params.SlotframeHandle]
	if !ok {
		return ErrSlotframeNotFound
	}
	switch p.op {
	case Modify:
		if _, exists := sf.links[p.params.LinkHandle]; !exists {
			return ErrUnknownLink
		}
		sf.links[p.params.LinkHandle] = linkFromParams(p.params)
	case Delete:
		delete(sf.links, p.params.LinkHandle)
	}
	return nil
}

// HasPending reports whether a deferred link mutation is waiting to be
// applied.
func (db *DB) HasPending() bool {
	return db.pending != nil
}

// Lookup finds the active link, if any, for the given ASN (spec §4.2).
func (db *DB) Lookup(asn uint64) (ActiveLink, bool) {
	var best *slotframe
	var bestLink *Link
	for _, sf := range db.slotframes {
		if sf.size == 0 {
			continue
		}
		ts := uint16(asn % uint64(sf.size))
		l := sf.linkAtTimeslot(ts, nil)
		if l == nil {
			continue
		}
		if best == nil || sf.handle < best.handle {
			best = sf
			bestLink = l
		}
	}
	if bestLink == nil {
		return ActiveLink{}, false
	}
	return ActiveLink{
		SlotframeHandle: best.handle,
		LinkHandle:      bestLink.LinkHandle,
		Timeslot:        bestLink.Timeslot,
		ChannelOffset:   bestLink.ChannelOffset,
		Options:         bestLink.Options,
		Type:            bestLink.Type,
		NodeAddr:        bestLink.NodeAddr,
		FadingBias:      bestLink.FadingBias,
	}, true
}

// linkAtTimeslot returns the link occupying ts in this slotframe, if any,
// excluding the link keyed by exclude (used by Modify to not collide with
// itself). exclude == nil excludes nothing.
func (sf *slotframe) linkAtTimeslot(ts uint16, exclude *uint16) *Link {
	for h, l := range sf.links {
		if exclude != nil && h == *exclude {
			continue
		}
		if l.Timeslot == ts {
			return l
		}
	}
	return nil
}

func linkFromParams(p LinkParams) *Link {
	return &Link{
		SlotframeHandle: p.SlotframeHandle,
		LinkHandle:      p.LinkHandle,
		Timeslot:        p.Timeslot,
		ChannelOffset:   p.ChannelOffset,
		Options:         p.Options,
		Type:            p.Type,
		NodeAddr:        p.NodeAddr,
		FadingBias:      p.FadingBias,
		TxID:            p.TxID,
		RxID:            p.RxID,
	}
}
