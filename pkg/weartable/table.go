package weartable

import "fmt"

// noSlot marks a cursor that does not point at any slot.
const noSlot = -1

// slot is one arena entry. The payload buffer is allocated once at
// construction and reused for the slot's entire lifetime; "deletion" only
// clears the enabled flag.
type slot struct {
	payload []byte
	enabled bool
}

// Table is a fixed-capacity in-memory collection of fixed-size payloads.
//
// Slots live in an arena sized at construction; no slot is ever added or
// freed afterwards. A single cursor addresses the current record for
// Select/Update/Delete, and Top/Next move it across enabled slots in
// physical order.
//
// A Table must be obtained via [NewTable]; the zero value is not usable.
type Table struct {
	_ [0]func() // prevent external construction

	slots    []slot
	itemSize int
	current  int
	counter  int
}

// NewTable allocates a table with exactly capacity slots of itemSize-byte
// payloads.
//
// The cursor starts unset; Insert or Top establish it.
//
// Possible errors: [ErrInvalidInput] (capacity or item size out of range).
func NewTable(capacity, itemSize int) (*Table, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity must be >= 1, got %d: %w", capacity, ErrInvalidInput)
	}

	if capacity > maxTableCapacity {
		return nil, fmt.Errorf("capacity %d exceeds max %d: %w", capacity, maxTableCapacity, ErrInvalidInput)
	}

	if itemSize < 1 {
		return nil, fmt.Errorf("item size must be >= 1, got %d: %w", itemSize, ErrInvalidInput)
	}

	if itemSize > maxItemSizeBytes {
		return nil, fmt.Errorf("item size %d exceeds max %d: %w", itemSize, maxItemSizeBytes, ErrInvalidInput)
	}

	slots := make([]slot, capacity)
	for i := range slots {
		slots[i].payload = make([]byte, itemSize)
	}

	return &Table{
		slots:    slots,
		itemSize: itemSize,
		current:  noSlot,
	}, nil
}

// Capacity returns the fixed number of slots.
func (t *Table) Capacity() int {
	return len(t.slots)
}

// ItemSize returns the fixed payload size in bytes.
func (t *Table) ItemSize() int {
	return t.itemSize
}

// Counter returns the number of enabled records.
func (t *Table) Counter() int {
	return t.counter
}

// Insert stores item in the first disabled slot scanning from the head.
//
// Deleted slots are reused at their original position. On success the
// cursor points at the inserted record. On [ErrFull] nothing changes,
// the cursor included.
//
// Possible errors: [ErrInvalidInput] (payload length), [ErrFull].
func (t *Table) Insert(item []byte) error {
	if len(item) != t.itemSize {
		return fmt.Errorf("payload is %d bytes, want %d: %w", len(item), t.itemSize, ErrInvalidInput)
	}

	for i := range t.slots {
		if t.slots[i].enabled {
			continue
		}

		t.slots[i].enabled = true
		copy(t.slots[i].payload, item)
		t.current = i
		t.counter++

		return nil
	}

	return ErrFull
}

// Select returns a copy of the payload at the cursor.
//
// Possible errors: [ErrNoRecord] (cursor unset or slot disabled).
func (t *Table) Select() ([]byte, error) {
	if t.current == noSlot || !t.slots[t.current].enabled {
		return nil, ErrNoRecord
	}

	out := make([]byte, t.itemSize)
	copy(out, t.slots[t.current].payload)

	return out, nil
}

// Update overwrites the payload at the cursor.
//
// The enabled flag is deliberately not checked: updating a deleted slot
// rewrites its content without re-enabling it, and the record stays
// invisible to Select/Top/Next until the slot is reused by Insert.
//
// Possible errors: [ErrInvalidInput] (payload length), [ErrNoRecord]
// (cursor unset).
func (t *Table) Update(item []byte) error {
	if len(item) != t.itemSize {
		return fmt.Errorf("payload is %d bytes, want %d: %w", len(item), t.itemSize, ErrInvalidInput)
	}

	if t.current == noSlot {
		return ErrNoRecord
	}

	copy(t.slots[t.current].payload, item)

	return nil
}

// Delete clears the enabled flag at the cursor and decrements the counter.
//
// The slot's payload is retained; Insert will reuse the slot at its
// original position.
//
// Possible errors: [ErrNoRecord] (cursor unset).
func (t *Table) Delete() error {
	if t.current == noSlot {
		return ErrNoRecord
	}

	t.slots[t.current].enabled = false
	t.counter--

	return nil
}

// Clean disables every slot and resets the cursor and counter.
// The arena is retained; payload bytes are not cleared.
func (t *Table) Clean() {
	for i := range t.slots {
		t.slots[i].enabled = false
	}

	t.current = noSlot
	t.counter = 0
}

// Top moves the cursor to the first enabled slot.
//
// Possible errors: [ErrNoRecord] (no enabled record; cursor left unset).
func (t *Table) Top() error {
	t.current = 0
	if !t.slots[0].enabled {
		return t.Next()
	}

	return nil
}

// Next moves the cursor to the next enabled slot, skipping disabled ones.
//
// Walking past the last enabled slot unsets the cursor and returns
// [ErrNoRecord].
func (t *Table) Next() error {
	if t.current == noSlot {
		return ErrNoRecord
	}

	for i := t.current + 1; i < len(t.slots); i++ {
		if t.slots[i].enabled {
			t.current = i

			return nil
		}
	}

	t.current = noSlot

	return ErrNoRecord
}

// payloadAt exposes a slot's backing buffer to the storage layer.
// Callers must not retain the slice across table mutations.
func (t *Table) payloadAt(i int) ([]byte, bool) {
	return t.slots[i].payload, t.slots[i].enabled
}

// setEnabledAt restores a slot's enabled flag when reconstructing the
// table from storage. The counter is not adjusted; stored records carry
// the flag they were saved with.
func (t *Table) setEnabledAt(i int, enabled bool) {
	t.slots[i].enabled = enabled
}
