package eeprom

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// File is a [Device] backed by an mmap'd image file.
//
// The file holds the raw device contents byte for byte, so an image can be
// copied between hosts or inspected with standard tools. Writes land in the
// shared mapping immediately; call [File.Sync] to force them to stable
// storage before relying on durability.
//
// A File must be obtained via [OpenFile]; the zero value is not usable.
type File struct {
	_ [0]func() // prevent external construction

	fd       int
	data     []byte
	path     string
	isClosed bool
}

// OpenFile opens or creates a device image at path with the given size.
//
// A missing file is created zero-filled, which matches factory-fresh
// EEPROM contents as far as the formatting layer is concerned. An existing
// file must be exactly size bytes; a mismatch means the image belongs to a
// differently-sized device and is rejected rather than silently truncated
// or grown.
func OpenFile(path string, size int) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("eeprom: path is required: %w", ErrOutOfRange)
	}

	if size < 1 {
		return nil, fmt.Errorf("eeprom: size must be >= 1, got %d: %w", size, ErrOutOfRange)
	}

	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_CREAT, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var st syscall.Stat_t

	err = syscall.Fstat(fd, &st)
	if err != nil {
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	switch {
	case st.Size == 0:
		// Fresh image: extend to the device size. Ftruncate zero-fills.
		err = syscall.Ftruncate(fd, int64(size))
		if err != nil {
			_ = syscall.Close(fd)

			return nil, fmt.Errorf("ftruncate %s: %w", path, err)
		}
	case st.Size != int64(size):
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("eeprom: image %s is %d bytes, want %d: %w", path, st.Size, size, ErrOutOfRange)
	}

	data, err := syscall.Mmap(fd, 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		_ = syscall.Close(fd)

		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &File{fd: fd, data: data, path: path}, nil
}

// ReadByte returns the byte stored at addr.
func (f *File) ReadByte(addr int) (byte, error) {
	if f.isClosed {
		return 0, ErrClosed
	}

	err := checkRange(addr, 1, len(f.data))
	if err != nil {
		return 0, err
	}

	return f.data[addr], nil
}

// WriteByte stores b at addr.
func (f *File) WriteByte(addr int, b byte) error {
	if f.isClosed {
		return ErrClosed
	}

	err := checkRange(addr, 1, len(f.data))
	if err != nil {
		return err
	}

	f.data[addr] = b

	return nil
}

// Fill writes b to every address in [addr, addr+length).
func (f *File) Fill(addr, length int, b byte) error {
	if f.isClosed {
		return ErrClosed
	}

	err := checkRange(addr, length, len(f.data))
	if err != nil {
		return err
	}

	for i := addr; i < addr+length; i++ {
		f.data[i] = b
	}

	return nil
}

// Size returns the number of addressable bytes.
func (f *File) Size() int {
	return len(f.data)
}

// Path returns the image file path.
func (f *File) Path() string {
	return f.path
}

// Sync flushes the mapping to stable storage with a synchronous msync.
// The mapping starts page-aligned, which satisfies macOS range requirements.
func (f *File) Sync() error {
	if f.isClosed {
		return ErrClosed
	}

	err := unix.Msync(f.data, unix.MS_SYNC)
	if err != nil {
		return fmt.Errorf("msync %s: %w", f.path, err)
	}

	return nil
}

// Close releases the mapping and the file descriptor.
//
// After Close, all other methods return [ErrClosed].
// Close is idempotent; subsequent calls are no-ops.
func (f *File) Close() error {
	if f.isClosed {
		return nil
	}

	f.isClosed = true

	if f.data != nil {
		_ = syscall.Munmap(f.data)
		f.data = nil
	}

	if f.fd >= 0 {
		_ = syscall.Close(f.fd)
		f.fd = -1
	}

	return nil
}
