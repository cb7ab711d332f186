// Package weartable provides a fixed-capacity record table with
// wear-leveled persistence to EEPROM-class devices.
//
// weartable targets small configuration-style datasets on hardware whose
// non-volatile cells tolerate a bounded number of write cycles. The whole
// in-memory collection is persisted as one unit into a circular buffer of
// fixed-size records, so repeated saves walk across the physical cells
// instead of hammering one spot (see Atmel application note AVR101).
//
// # Basic Usage
//
//	tbl, err := weartable.NewTable(16, 8) // 16 records of 8 bytes
//	if err != nil {
//	    // invalid capacity or item size
//	}
//
//	_ = tbl.Insert([]byte("record-a"))
//	_ = tbl.Insert([]byte("record-b"))
//
//	store := weartable.NewStore(dev, tbl)
//	if err := store.Attach(0, 16); err != nil {
//	    // region invalid, or device too small
//	}
//
//	_ = store.Save()
//	// ...power cycle...
//	_ = store.Load()
//
// After a restart, Attach recovers the current write position purely from
// the status bytes stored on the device; no separate bookkeeping record
// exists.
//
// # Concurrency
//
// weartable is single-context by design: no operation suspends, and no
// locking is performed. A table, its store, and the underlying device are
// shared mutable state; callers running in more than one goroutine must
// serialize access themselves.
//
// # Error Handling
//
// All failures are reported as sentinel errors checked with [errors.Is];
// nothing panics on bad device contents. [ErrUnformatted] means the region
// failed marker validation and needs a (destructive) re-Attach.
package weartable
