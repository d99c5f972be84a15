// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package frame

import "errors"

// Errors returned by Encode, Decode and ParseAckIE. Decode returns them
// unwrapped; Encode wraps them with context, so compare with errors.Is.
var (
	ErrFrameTooShort      = errors.New("frame: too short")
	ErrReservedType       = errors.New("frame: reserved frame type")
	ErrUnsupportedIE      = errors.New("frame: malformed information element chain")
	ErrFcsMismatch        = errors.New("frame: fcs mismatch")
	ErrUnsupportedVersion = errors.New("frame: unsupported frame version")
)
