package eeprom

import "errors"

// Sentinel errors returned by device operations.
//
// Callers should use [errors.Is] to check error types.
var (
	// ErrOutOfRange indicates an address or range outside the device bounds.
	//
	// This is a programming error: callers are expected to validate region
	// bounds against [Device.Size] before issuing I/O.
	ErrOutOfRange = errors.New("eeprom: address out of range")

	// ErrClosed indicates the device has already been closed.
	ErrClosed = errors.New("eeprom: closed")
)

// Device is a synchronous byte-addressable non-volatile store.
//
// Addresses run from 0 to Size()-1. All operations complete before
// returning; there is no buffering visible to the caller. Implementations
// are not required to be safe for concurrent use.
type Device interface {
	// ReadByte returns the byte stored at addr.
	ReadByte(addr int) (byte, error)

	// WriteByte stores b at addr.
	WriteByte(addr int, b byte) error

	// Fill writes b to every address in [addr, addr+length).
	Fill(addr, length int, b byte) error

	// Size returns the number of addressable bytes.
	Size() int
}

// checkRange validates that [addr, addr+length) lies within a device of
// the given size. length may be zero.
func checkRange(addr, length, size int) error {
	if addr < 0 || length < 0 || addr > size || size-addr < length {
		return ErrOutOfRange
	}

	return nil
}
