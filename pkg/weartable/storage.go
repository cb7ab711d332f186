package weartable

import (
	"fmt"

	"github.com/calvinalkan/wearstore/pkg/eeprom"
)

// Store persists a [Table] into a circular buffer on a [eeprom.Device].
//
// Every Save rewrites the whole live collection starting at the next
// physical record slot, so consecutive saves spread writes across the
// region instead of rewriting one spot. The current write position is
// recoverable from the status bytes alone, which is what makes the layout
// survive restarts without any separate bookkeeping record.
//
// A Store is created detached; call [Store.Attach] before any other
// operation.
type Store struct {
	_ [0]func() // prevent external construction

	dev   eeprom.Device
	table *Table

	reg      region
	attached bool

	// Write frontier recovered by Check: the status byte address of the
	// most recent save and its paired record slot address.
	topStatus int
	topData   int
}

// NewStore returns a detached store binding table to dev.
func NewStore(dev eeprom.Device, table *Table) *Store {
	return &Store{dev: dev, table: table}
}

// Attach validates and, if necessary, formats the region of dev starting
// at start with room for items records.
//
// A region whose markers or size byte do not validate is reformatted:
// zero-filled end to end, then markers and size rewritten. That is the
// intended first-use path and it is destructive. A region that already
// validates is left untouched, so attaching twice with the same
// parameters preserves stored data.
//
// Attach finishes with [Store.Check] and returns its result.
//
// Possible errors: [ErrInvalidInput], [ErrOutOfRange], [ErrUnformatted],
// device I/O errors.
func (s *Store) Attach(start, items int) error {
	s.attached = false

	if items < 1 || items > maxItems {
		return fmt.Errorf("items must be in [1,%d], got %d: %w", maxItems, items, ErrInvalidInput)
	}

	if start < 0 {
		return fmt.Errorf("start must be >= 0, got %d: %w", start, ErrInvalidInput)
	}

	reg := region{start: start, items: items, recordSize: s.table.ItemSize() + 1}

	if reg.nextFree() > s.dev.Size() {
		return fmt.Errorf("region [%d,%d) on %d-byte device: %w",
			start, reg.nextFree(), s.dev.Size(), ErrOutOfRange)
	}

	s.reg = reg
	s.attached = true

	formatted, err := s.isFormatted()
	if err != nil {
		return err
	}

	if !formatted {
		err = s.format()
		if err != nil {
			return err
		}
	}

	return s.Check()
}

// isFormatted reports whether the markers and size byte validate.
func (s *Store) isFormatted() (bool, error) {
	begin, err := s.dev.ReadByte(s.reg.start)
	if err != nil {
		return false, fmt.Errorf("reading begin marker: %w", err)
	}

	end, err := s.dev.ReadByte(s.reg.endMarkerAddr())
	if err != nil {
		return false, fmt.Errorf("reading end marker: %w", err)
	}

	size, err := s.dev.ReadByte(s.reg.sizeAddr())
	if err != nil {
		return false, fmt.Errorf("reading size byte: %w", err)
	}

	return begin == beginMarker && end == endMarker && size == byte(s.reg.items), nil
}

// format zero-fills the whole region and writes the markers and size byte.
func (s *Store) format() error {
	err := s.dev.Fill(s.reg.start, s.reg.size(), 0x00)
	if err != nil {
		return fmt.Errorf("zero-filling region: %w", err)
	}

	err = s.dev.WriteByte(s.reg.start, beginMarker)
	if err != nil {
		return fmt.Errorf("writing begin marker: %w", err)
	}

	err = s.dev.WriteByte(s.reg.endMarkerAddr(), endMarker)
	if err != nil {
		return fmt.Errorf("writing end marker: %w", err)
	}

	err = s.dev.WriteByte(s.reg.sizeAddr(), byte(s.reg.items))
	if err != nil {
		return fmt.Errorf("writing size byte: %w", err)
	}

	return nil
}

// Check validates the region and recovers the write frontier.
//
// Validation fails with [ErrUnformatted] if either marker or the size
// byte does not match. On success the top pointers reflect the most
// recent save, recovered purely from on-device state.
//
// Possible errors: [ErrNotAttached], [ErrUnformatted], device I/O errors.
func (s *Store) Check() error {
	if !s.attached {
		return ErrNotAttached
	}

	formatted, err := s.isFormatted()
	if err != nil {
		return err
	}

	if !formatted {
		return ErrUnformatted
	}

	return s.recoverTop()
}

// recoverTop walks the circular status buffer comparing each byte to its
// predecessor with one-byte wraparound arithmetic. The walk advances
// while next == current+1 (mod 256) and stops at the write frontier; the
// last address still satisfying the relation is the top status pointer.
//
// The walk is bounded by the slot count: a full monotonic cycle would
// require the per-lap increment sum (== items) to be 0 mod 256, which is
// impossible for 1..255 slots.
func (s *Store) recoverTop() error {
	cur := s.reg.statusStart()
	next := s.reg.incStatus(cur)

	for range s.reg.items {
		curVal, err := s.dev.ReadByte(cur)
		if err != nil {
			return fmt.Errorf("reading status byte at %d: %w", cur, err)
		}

		nextVal, err := s.dev.ReadByte(next)
		if err != nil {
			return fmt.Errorf("reading status byte at %d: %w", next, err)
		}

		if nextVal != curVal+1 {
			break
		}

		cur = next
		next = s.reg.incStatus(next)
	}

	s.topStatus = cur
	s.topData = s.reg.dataAddrFor(cur)

	return nil
}

// advanceTop moves the write frontier one slot forward and stamps the new
// slot's generation byte with the old frontier's value plus one (mod 256),
// extending the monotonic run that recoverTop looks for.
func (s *Store) advanceTop() error {
	val, err := s.dev.ReadByte(s.topStatus)
	if err != nil {
		return fmt.Errorf("reading status byte at %d: %w", s.topStatus, err)
	}

	s.topStatus = s.reg.incStatus(s.topStatus)

	err = s.dev.WriteByte(s.topStatus, val+1)
	if err != nil {
		return fmt.Errorf("stamping status byte at %d: %w", s.topStatus, err)
	}

	s.topData = s.reg.dataAddrFor(s.topStatus)

	return nil
}

// Save persists every enabled record to the device.
//
// The write frontier advances by exactly one slot, then the live
// collection is written at successive circular record positions starting
// there. The live count lands in the byte immediately preceding the
// starting record. Save verifies the region afterwards and reads the
// count byte back; a mismatch with the in-memory counter fails the save.
//
// Possible errors: [ErrNotAttached], [ErrUnformatted], [ErrCountMismatch],
// device I/O errors.
func (s *Store) Save() error {
	err := s.Check()
	if err != nil {
		return err
	}

	err = s.advanceTop()
	if err != nil {
		return err
	}

	statusAddr := s.topStatus
	dataAddr := s.topData

	walk := s.table.Top()
	for walk == nil {
		payload, enabled := s.table.payloadAt(s.table.current)

		err = s.writeRecord(dataAddr, payload, enabled)
		if err != nil {
			return err
		}

		statusAddr = s.reg.incStatus(statusAddr)
		dataAddr = s.reg.dataAddrFor(statusAddr)
		walk = s.table.Next()
	}

	err = s.dev.WriteByte(s.topData-1, byte(s.table.Counter()))
	if err != nil {
		return fmt.Errorf("writing count byte: %w", err)
	}

	err = s.Check()
	if err != nil {
		return err
	}

	stored, err := s.dev.ReadByte(s.topData - 1)
	if err != nil {
		return fmt.Errorf("reading count byte back: %w", err)
	}

	if int(stored) != s.table.Counter() {
		return fmt.Errorf("stored %d, counter %d: %w", stored, s.table.Counter(), ErrCountMismatch)
	}

	return nil
}

// Load reconstructs the table from the most recent save.
//
// The table is cleaned first, then the stored count byte is read from the
// byte preceding the top record and that many records are inserted from
// the top record position onward, following the same circular mapping
// Save uses. Each record's enabled flag is restored as stored.
//
// A failed insert part way through leaves the table partially populated;
// there is no rollback.
//
// Possible errors: [ErrNotAttached], [ErrUnformatted], [ErrFull] (wrapped,
// when the stored count exceeds the table capacity), device I/O errors.
func (s *Store) Load() error {
	err := s.Check()
	if err != nil {
		return err
	}

	s.table.Clean()

	count, err := s.dev.ReadByte(s.topData - 1)
	if err != nil {
		return fmt.Errorf("reading count byte: %w", err)
	}

	statusAddr := s.topStatus
	dataAddr := s.topData

	for idx := range int(count) {
		payload, enabled, err := s.readRecord(dataAddr)
		if err != nil {
			return err
		}

		err = s.table.Insert(payload)
		if err != nil {
			return fmt.Errorf("loading record %d of %d: %w", idx+1, count, err)
		}

		s.table.setEnabledAt(s.table.current, enabled)

		statusAddr = s.reg.incStatus(statusAddr)
		dataAddr = s.reg.dataAddrFor(statusAddr)
	}

	return nil
}

// TopAddress returns the device address of the record slot that holds the
// most recent save (equivalently, where the next Load reads from).
//
// Possible errors: [ErrNotAttached].
func (s *Store) TopAddress() (int, error) {
	if !s.attached {
		return 0, ErrNotAttached
	}

	return s.topData, nil
}

// NextFreeAddress returns the first device address past the region,
// usable as the start of another region on the same device.
//
// Possible errors: [ErrNotAttached].
func (s *Store) NextFreeAddress() (int, error) {
	if !s.attached {
		return 0, ErrNotAttached
	}

	return s.reg.nextFree(), nil
}

// writeRecord writes one payload plus its enabled-flag byte at addr.
func (s *Store) writeRecord(addr int, payload []byte, enabled bool) error {
	for i, b := range payload {
		err := s.dev.WriteByte(addr+i, b)
		if err != nil {
			return fmt.Errorf("writing record at %d: %w", addr, err)
		}
	}

	flag := byte(0)
	if enabled {
		flag = recordEnabled
	}

	err := s.dev.WriteByte(addr+len(payload), flag)
	if err != nil {
		return fmt.Errorf("writing record flag at %d: %w", addr, err)
	}

	return nil
}

// readRecord reads one payload plus its enabled-flag byte from addr.
func (s *Store) readRecord(addr int) ([]byte, bool, error) {
	payload := make([]byte, s.table.ItemSize())

	for i := range payload {
		b, err := s.dev.ReadByte(addr + i)
		if err != nil {
			return nil, false, fmt.Errorf("reading record at %d: %w", addr, err)
		}

		payload[i] = b
	}

	flag, err := s.dev.ReadByte(addr + len(payload))
	if err != nil {
		return nil, false, fmt.Errorf("reading record flag at %d: %w", addr, err)
	}

	return payload, flag != 0, nil
}

// IsAttached reports whether a successful Attach has happened.
func (s *Store) IsAttached() bool {
	return s.attached
}

// Items returns the attached region's record capacity.
//
// Possible errors: [ErrNotAttached].
func (s *Store) Items() (int, error) {
	if !s.attached {
		return 0, ErrNotAttached
	}

	return s.reg.items, nil
}
