// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package schedule

import "errors"

var (
	ErrInvalidParameter  = errors.New("schedule: invalid parameter")
	ErrSlotframeNotFound = errors.New("schedule: slotframe not found")
	ErrUnknownLink       = errors.New("schedule: unknown link")
	ErrMaxExceeded       = errors.New("schedule: maximum slotframe count exceeded")
)
