package eeprom

// Mem is a RAM-backed [Device].
//
// Every write increments a per-cell counter, so tests and tools can
// verify how evenly a storage layout spreads writes across cells.
// The zero value is not usable; construct with [NewMem].
type Mem struct {
	cells  []byte
	writes []uint64
}

// NewMem returns a zero-filled in-memory device with size addressable bytes.
// It panics if size < 1; device sizing is a configuration decision made
// before any I/O can happen.
func NewMem(size int) *Mem {
	if size < 1 {
		panic("eeprom: NewMem size must be >= 1")
	}

	return &Mem{
		cells:  make([]byte, size),
		writes: make([]uint64, size),
	}
}

// ReadByte returns the byte stored at addr.
func (m *Mem) ReadByte(addr int) (byte, error) {
	err := checkRange(addr, 1, len(m.cells))
	if err != nil {
		return 0, err
	}

	return m.cells[addr], nil
}

// WriteByte stores b at addr and bumps the cell's write counter.
func (m *Mem) WriteByte(addr int, b byte) error {
	err := checkRange(addr, 1, len(m.cells))
	if err != nil {
		return err
	}

	m.cells[addr] = b
	m.writes[addr]++

	return nil
}

// Fill writes b to every address in [addr, addr+length).
//
// Each filled cell counts as one write, matching what a byte-at-a-time
// driver would do to real hardware.
func (m *Mem) Fill(addr, length int, b byte) error {
	err := checkRange(addr, length, len(m.cells))
	if err != nil {
		return err
	}

	for i := addr; i < addr+length; i++ {
		m.cells[i] = b
		m.writes[i]++
	}

	return nil
}

// Size returns the number of addressable bytes.
func (m *Mem) Size() int {
	return len(m.cells)
}

// Writes returns the number of times addr has been written since
// construction or the last [Mem.ResetWear].
func (m *Mem) Writes(addr int) uint64 {
	if addr < 0 || addr >= len(m.writes) {
		return 0
	}

	return m.writes[addr]
}

// WriteCounts returns a copy of the per-cell write counters.
func (m *Mem) WriteCounts() []uint64 {
	out := make([]uint64, len(m.writes))
	copy(out, m.writes)

	return out
}

// ResetWear zeroes all write counters. Cell contents are unchanged.
func (m *Mem) ResetWear() {
	clear(m.writes)
}
