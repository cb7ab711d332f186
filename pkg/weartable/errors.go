package weartable

import "errors"

// Sentinel errors returned by weartable operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, weartable.ErrUnformatted) {
//	    // region was never formatted, or was damaged: re-Attach
//	}
var (
	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: capacity or item size out of range, payload length
	// not matching the table's item size, negative start address.
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("weartable: invalid input")

	// ErrFull indicates every slot in the table is enabled.
	//
	// Capacity is fixed at construction and never grows.
	//
	// Recovery: delete records, or rebuild with a larger capacity.
	ErrFull = errors.New("weartable: full")

	// ErrNoRecord indicates the cursor does not point at a usable record.
	//
	// Returned by Select on a disabled slot, by Delete/Update with no
	// valid cursor, and by Top/Next when no enabled record remains.
	ErrNoRecord = errors.New("weartable: no record")

	// ErrNotAttached indicates a storage operation was attempted before a
	// successful [Store.Attach].
	ErrNotAttached = errors.New("weartable: storage not attached")

	// ErrUnformatted indicates the storage region failed marker or size
	// validation.
	//
	// Recovery: call [Store.Attach], which reformats a region that does
	// not validate. Reformatting is destructive.
	ErrUnformatted = errors.New("weartable: storage unformatted")

	// ErrOutOfRange indicates the region would not fit on the device.
	//
	// Recovery: use a smaller capacity/item size or a larger device.
	ErrOutOfRange = errors.New("weartable: region exceeds device")

	// ErrCountMismatch indicates post-save verification failed: the count
	// byte read back from the device does not equal the in-memory counter.
	//
	// Recovery: retry the save, or re-Attach if the region is damaged.
	ErrCountMismatch = errors.New("weartable: stored count mismatch")
)
