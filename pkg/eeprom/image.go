package eeprom

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// ExportImage writes a byte-for-byte copy of the device contents to path.
//
// The write goes through a temp file + rename, so a crash mid-export never
// leaves a truncated image behind.
func ExportImage(dev Device, path string) error {
	buf := make([]byte, dev.Size())

	for addr := range buf {
		b, err := dev.ReadByte(addr)
		if err != nil {
			return fmt.Errorf("reading device at %d: %w", addr, err)
		}

		buf[addr] = b
	}

	err := atomic.WriteFile(path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("writing image %s: %w", path, err)
	}

	return nil
}

// ImportImage loads an image file into a new in-memory device.
//
// The resulting [Mem] has fresh wear counters; only cell contents are
// restored.
func ImportImage(path string) (*Mem, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return nil, fmt.Errorf("reading image %s: %w", path, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("eeprom: image %s is empty: %w", path, ErrOutOfRange)
	}

	mem := NewMem(len(data))
	copy(mem.cells, data)

	return mem, nil
}
