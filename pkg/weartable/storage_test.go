package weartable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/wearstore/pkg/eeprom"
)

// newAttached builds a table + store over a fresh in-memory device sized
// exactly for one region at the given start address.
func newAttached(t *testing.T, start, items, itemSize int) (*eeprom.Mem, *Table, *Store) {
	t.Helper()

	tbl, err := NewTable(items, itemSize)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	recordSize := itemSize + 1
	dev := eeprom.NewMem(start + items + headerOverhead + items*recordSize)

	store := NewStore(dev, tbl)

	err = store.Attach(start, items)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}

	return dev, tbl, store
}

// dump reads the full device contents.
func dump(t *testing.T, dev eeprom.Device) []byte {
	t.Helper()

	out := make([]byte, dev.Size())

	for addr := range out {
		b, err := dev.ReadByte(addr)
		if err != nil {
			t.Fatalf("ReadByte(%d): %v", addr, err)
		}

		out[addr] = b
	}

	return out
}

func Test_Attach_Formats_Fresh_Device_With_Markers_And_Size(t *testing.T) {
	t.Parallel()

	dev, _, store := newAttached(t, 3, 4, 8)

	begin, _ := dev.ReadByte(3)
	size, _ := dev.ReadByte(4)
	end, _ := dev.ReadByte(3 + 4 + 2)

	if begin != 0x42 {
		t.Errorf("begin marker = %#x, want 0x42", begin)
	}

	if size != 4 {
		t.Errorf("size byte = %d, want 4", size)
	}

	if end != 0x45 {
		t.Errorf("end marker = %#x, want 0x45", end)
	}

	if err := store.Check(); err != nil {
		t.Errorf("Check after Attach: %v", err)
	}

	// Fresh region: the frontier sits at slot 0.
	top, err := store.TopAddress()
	if err != nil {
		t.Fatalf("TopAddress: %v", err)
	}

	wantTop := 3 + 4 + headerOverhead
	if top != wantTop {
		t.Errorf("TopAddress = %d, want %d", top, wantTop)
	}
}

func Test_Attach_Preserves_Data_When_Region_Already_Formatted(t *testing.T) {
	t.Parallel()

	dev, tbl, store := newAttached(t, 0, 4, 8)

	for _, s := range []string{"a", "b"} {
		if err := tbl.Insert(pad(s, 8)); err != nil {
			t.Fatalf("Insert %q: %v", s, err)
		}
	}

	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	before := dump(t, dev)

	// Re-attach with identical parameters: no reformat may happen.
	if err := store.Attach(0, 4); err != nil {
		t.Fatalf("second Attach: %v", err)
	}

	if diff := cmp.Diff(before, dump(t, dev)); diff != "" {
		t.Errorf("re-attach altered device contents (-before +after):\n%s", diff)
	}

	tbl.Clean()

	if err := store.Load(); err != nil {
		t.Fatalf("Load after re-attach: %v", err)
	}

	want := [][]byte{pad("a", 8), pad("b", 8)}
	if diff := cmp.Diff(want, collect(t, tbl)); diff != "" {
		t.Errorf("records after re-attach + Load (-want +got):\n%s", diff)
	}
}

func Test_Attach_Rejects_Invalid_Parameters(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable(4, 8)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	store := NewStore(eeprom.NewMem(1024), tbl)

	tests := []struct {
		name    string
		start   int
		items   int
		wantErr error
	}{
		{"zero items", 0, 0, ErrInvalidInput},
		{"items above 255", 0, 256, ErrInvalidInput},
		{"negative start", -1, 4, ErrInvalidInput},
	}

	for _, tt := range tests {
		attachErr := store.Attach(tt.start, tt.items)
		if !errors.Is(attachErr, tt.wantErr) {
			t.Errorf("%s: Attach(%d, %d) = %v, want %v", tt.name, tt.start, tt.items, attachErr, tt.wantErr)
		}
	}
}

func Test_Attach_Fails_When_Region_Exceeds_Device(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable(4, 8)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	// Region needs 4+4+4*9 = 44 bytes; give one byte too few.
	store := NewStore(eeprom.NewMem(43), tbl)

	attachErr := store.Attach(0, 4)
	if !errors.Is(attachErr, ErrOutOfRange) {
		t.Errorf("Attach on undersized device = %v, want ErrOutOfRange", attachErr)
	}

	// Storage operations stay unavailable after the failed attach.
	if saveErr := store.Save(); !errors.Is(saveErr, ErrNotAttached) {
		t.Errorf("Save after failed Attach = %v, want ErrNotAttached", saveErr)
	}
}

func Test_Check_Fails_After_Marker_Corruption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr func(items int) int
	}{
		{"begin marker", func(int) int { return 0 }},
		{"size byte", func(int) int { return 1 }},
		{"end marker", func(items int) int { return items + 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev, _, store := newAttached(t, 0, 4, 8)

			if err := dev.WriteByte(tt.addr(4), 0xFF); err != nil {
				t.Fatalf("corrupting byte: %v", err)
			}

			if err := store.Check(); !errors.Is(err, ErrUnformatted) {
				t.Errorf("Check on corrupted %s = %v, want ErrUnformatted", tt.name, err)
			}

			if err := store.Save(); !errors.Is(err, ErrUnformatted) {
				t.Errorf("Save on corrupted %s = %v, want ErrUnformatted", tt.name, err)
			}
		})
	}
}

func Test_Save_Then_Load_Roundtrips_The_Live_Set(t *testing.T) {
	t.Parallel()

	_, tbl, store := newAttached(t, 0, 8, 8)

	for i := range 6 {
		if err := tbl.Insert(pad(fmt.Sprintf("rec-%d", i), 8)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	// Delete rec-1 and rec-4, update rec-2 in place.
	walkTo := func(pos int) {
		t.Helper()

		if err := tbl.Top(); err != nil {
			t.Fatalf("Top: %v", err)
		}

		for range pos {
			if err := tbl.Next(); err != nil {
				t.Fatalf("Next: %v", err)
			}
		}
	}

	walkTo(1)

	if err := tbl.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	walkTo(1) // rec-2 is now the second enabled record

	if err := tbl.Update(pad("rec-2b", 8)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	walkTo(3) // rec-4

	if err := tbl.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	want := collect(t, tbl)

	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tbl.Clean()

	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(want, collect(t, tbl)); diff != "" {
		t.Errorf("round-tripped live set (-want +got):\n%s", diff)
	}

	if got := tbl.Counter(); got != len(want) {
		t.Errorf("Counter after Load = %d, want %d", got, len(want))
	}
}

func Test_Save_Roundtrips_Empty_Table(t *testing.T) {
	t.Parallel()

	_, tbl, store := newAttached(t, 0, 4, 8)

	if err := store.Save(); err != nil {
		t.Fatalf("Save of empty table: %v", err)
	}

	if err := tbl.Insert(pad("junk", 8)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := tbl.Counter(); got != 0 {
		t.Errorf("Counter after loading empty save = %d, want 0", got)
	}
}

// dropWriteDevice swallows writes to one address, simulating a cell that
// no longer accepts writes.
type dropWriteDevice struct {
	*eeprom.Mem

	dropAddr int
}

func (d *dropWriteDevice) WriteByte(addr int, b byte) error {
	if addr == d.dropAddr {
		return nil
	}

	return d.Mem.WriteByte(addr, b)
}

func Test_Save_Fails_When_Count_Byte_Does_Not_Verify(t *testing.T) {
	t.Parallel()

	const (
		items    = 4
		itemSize = 8
	)

	recordSize := itemSize + 1
	dataStart := items + headerOverhead

	// The first save advances the frontier to slot 1, so its count byte
	// lands on the last byte of record slot 0.
	dev := &dropWriteDevice{
		Mem:      eeprom.NewMem(items + headerOverhead + items*recordSize),
		dropAddr: dataStart + recordSize - 1,
	}

	tbl, err := NewTable(items, itemSize)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	store := NewStore(dev, tbl)

	if attachErr := store.Attach(0, items); attachErr != nil {
		t.Fatalf("Attach: %v", attachErr)
	}

	if insErr := tbl.Insert(pad("a", itemSize)); insErr != nil {
		t.Fatalf("Insert: %v", insErr)
	}

	saveErr := store.Save()
	if !errors.Is(saveErr, ErrCountMismatch) {
		t.Errorf("Save with dead count cell = %v, want ErrCountMismatch", saveErr)
	}
}

func Test_Load_Preserves_Partial_State_When_Stored_Count_Exceeds_Capacity(t *testing.T) {
	t.Parallel()

	const items = 4

	dev, tbl, store := newAttached(t, 0, items, 8)

	for i := range items {
		if err := tbl.Insert(pad(fmt.Sprintf("r%d", i), 8)); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	if err := store.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Inflate the stored count beyond the table capacity.
	top, err := store.TopAddress()
	if err != nil {
		t.Fatalf("TopAddress: %v", err)
	}

	if err := dev.WriteByte(top-1, items+1); err != nil {
		t.Fatalf("corrupting count byte: %v", err)
	}

	loadErr := store.Load()
	if !errors.Is(loadErr, ErrFull) {
		t.Fatalf("Load with inflated count = %v, want wrapped ErrFull", loadErr)
	}

	// No rollback: the table holds everything inserted before the failure.
	if got := tbl.Counter(); got != items {
		t.Errorf("Counter after failed Load = %d, want %d", got, items)
	}
}

func Test_Storage_Operations_Fail_Before_Attach(t *testing.T) {
	t.Parallel()

	tbl, err := NewTable(4, 8)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	store := NewStore(eeprom.NewMem(64), tbl)

	if checkErr := store.Check(); !errors.Is(checkErr, ErrNotAttached) {
		t.Errorf("Check = %v, want ErrNotAttached", checkErr)
	}

	if saveErr := store.Save(); !errors.Is(saveErr, ErrNotAttached) {
		t.Errorf("Save = %v, want ErrNotAttached", saveErr)
	}

	if loadErr := store.Load(); !errors.Is(loadErr, ErrNotAttached) {
		t.Errorf("Load = %v, want ErrNotAttached", loadErr)
	}

	if _, topErr := store.TopAddress(); !errors.Is(topErr, ErrNotAttached) {
		t.Errorf("TopAddress = %v, want ErrNotAttached", topErr)
	}

	if _, nfaErr := store.NextFreeAddress(); !errors.Is(nfaErr, ErrNotAttached) {
		t.Errorf("NextFreeAddress = %v, want ErrNotAttached", nfaErr)
	}
}

func Test_NextFreeAddress_Allows_Stacking_A_Second_Region(t *testing.T) {
	t.Parallel()

	tblA, err := NewTable(4, 8)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	tblB, err := NewTable(2, 8)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}

	// Region A: 4+4+4*9 = 44 bytes. Region B: 2+4+2*9 = 24 bytes.
	dev := eeprom.NewMem(44 + 24)

	storeA := NewStore(dev, tblA)
	if attachErr := storeA.Attach(0, 4); attachErr != nil {
		t.Fatalf("Attach A: %v", attachErr)
	}

	next, err := storeA.NextFreeAddress()
	if err != nil {
		t.Fatalf("NextFreeAddress: %v", err)
	}

	if next != 44 {
		t.Errorf("NextFreeAddress = %d, want 44", next)
	}

	storeB := NewStore(dev, tblB)
	if attachErr := storeB.Attach(next, 2); attachErr != nil {
		t.Fatalf("Attach B at %d: %v", next, attachErr)
	}

	// The two regions round-trip independently.
	if insErr := tblA.Insert(pad("aa", 8)); insErr != nil {
		t.Fatalf("Insert A: %v", insErr)
	}

	if insErr := tblB.Insert(pad("bb", 8)); insErr != nil {
		t.Fatalf("Insert B: %v", insErr)
	}

	if saveErr := storeA.Save(); saveErr != nil {
		t.Fatalf("Save A: %v", saveErr)
	}

	if saveErr := storeB.Save(); saveErr != nil {
		t.Fatalf("Save B: %v", saveErr)
	}

	tblA.Clean()
	tblB.Clean()

	if loadErr := storeA.Load(); loadErr != nil {
		t.Fatalf("Load A: %v", loadErr)
	}

	if loadErr := storeB.Load(); loadErr != nil {
		t.Fatalf("Load B: %v", loadErr)
	}

	gotA, selErr := func() ([]byte, error) { _ = tblA.Top(); return tblA.Select() }()
	if selErr != nil {
		t.Fatalf("Select A: %v", selErr)
	}

	if diff := cmp.Diff(pad("aa", 8), gotA); diff != "" {
		t.Errorf("region A payload (-want +got):\n%s", diff)
	}

	gotB, selErr := func() ([]byte, error) { _ = tblB.Top(); return tblB.Select() }()
	if selErr != nil {
		t.Fatalf("Select B: %v", selErr)
	}

	if diff := cmp.Diff(pad("bb", 8), gotB); diff != "" {
		t.Errorf("region B payload (-want +got):\n%s", diff)
	}
}
