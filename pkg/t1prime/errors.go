package t1prime

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller-facing illegal-argument conditions: no
// protocol state is touched when these are returned.
var (
	ErrIllegalArgument = errors.New("t1prime: error in function arguments")
	ErrNotActive       = errors.New("t1prime: link is not active")
)

// Error is the library-wide 32-bit composite status: bit 31 is the
// error indicator, bits 30-24 the library id, 23-16 the module id,
// 15-8 the function id, 7-0 the reason.
type Error uint32

const (
	errorBit             uint32 = 1 << 31
	libraryID            uint32 = 0x42
	reasonOutOfMemory    byte   = 0xFE
	reasonIllegalArg     byte   = 0xFD
	reasonTooLittleData  byte   = 0xFC
	reasonInvalidState   byte   = 0xFB
	reasonProgrammingErr byte   = 0xFA
	reasonUnspecified    byte   = 0xFF
)

// Module ids.
const (
	moduleMachine byte = 0x01
	moduleFacade  byte = 0x02
	moduleActivate byte = 0x03
)

// Function ids.
const (
	funcTransceive byte = 0x01
	funcActivate   byte = 0x02
	funcSetIFSD    byte = 0x03
	funcSPOR       byte = 0x04
	funcSSWR       byte = 0x05
)

// Reason codes for the taxonomy in spec §7, outside the reserved
// module-independent range 0xF0-0xFF.
const (
	ReasonTransport     byte = 0x01
	ReasonFraming       byte = 0x02
	ReasonProtocol      byte = 0x03
	ReasonTimeout       byte = 0x04
	ReasonAborted       byte = 0x05
	ReasonUnrecoverable byte = 0x06
	ReasonInvalidCIP    byte = 0x07
)

var reasonDescriptions = map[byte]string{
	reasonOutOfMemory:    "out of memory",
	reasonIllegalArg:     "illegal argument",
	reasonTooLittleData:  "too little data",
	reasonInvalidState:   "invalid state",
	reasonProgrammingErr: "programming error",
	reasonUnspecified:    "unspecified error",
	ReasonTransport:      "transport fault",
	ReasonFraming:        "framing error",
	ReasonProtocol:       "protocol error",
	ReasonTimeout:        "timeout",
	ReasonAborted:        "aborted",
	ReasonUnrecoverable:  "unrecoverable protocol error",
	ReasonInvalidCIP:     "invalid CIP",
}

func newError(module, function, reason byte) Error {
	return Error(errorBit | libraryID<<24 | uint32(module)<<16 | uint32(function)<<8 | uint32(reason))
}

// Library returns the 7-bit library id, always 0x42 for this package.
func (e Error) Library() byte { return byte(e>>24) & 0x7F }

// Module returns the 8-bit module id.
func (e Error) Module() byte { return byte(e >> 16) }

// Function returns the 8-bit function id.
func (e Error) Function() byte { return byte(e >> 8) }

// Reason returns the 8-bit reason code.
func (e Error) Reason() byte { return byte(e) }

func (e Error) Error() string {
	desc, ok := reasonDescriptions[e.Reason()]
	if !ok {
		desc = "unknown reason"
	}
	return fmt.Sprintf("t1prime: %s (module=0x%02x function=0x%02x reason=0x%02x)", desc, e.Module(), e.Function(), e.Reason())
}

// Is reports whether target is an Error carrying the same reason,
// so callers can write errors.Is(err, t1prime.ErrorWithReason(t1prime.ReasonTimeout)).
func (e Error) Is(target error) bool {
	other, ok := target.(Error)
	if !ok {
		return false
	}
	return e.Reason() == other.Reason()
}

// ErrorWithReason builds a bare Error carrying only a reason, useful as
// a comparison target with errors.Is.
func ErrorWithReason(reason byte) Error {
	return Error(errorBit | reason)
}
