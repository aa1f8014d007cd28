package logstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/natefinch/atomic"
	"golang.org/x/sys/unix"

	"github.com/calvinalkan/logstore/internal/fsutil"
)

// index owns the sparse, fixed-width index file: an 8-byte "next ID"
// counter followed by a dense array of 8-byte slots.
//
// It is mmap-backed when possible; on mmap failure it falls back to
// pread/pwrite against the descriptor for every access. All methods
// assume the caller holds the owning [Store]'s mutex — index has no
// locking of its own.
type index struct {
	fd   int
	data []byte // nil when falling back to pread/pwrite

	capacity        uint64 // slots addressable without growing
	growthIncrement uint64
	growthEvents    uint64
}

// openIndex opens or creates the index file at path. growthIncrement must
// already be normalized (see Options.normalizedGrowthIncrement).
//
// A brand new index file is materialized via [atomic.WriteFile]: the
// 8-byte zero count prefix is written to a temp file in the same
// directory and renamed into place, so no process ever observes a
// half-written prefix. The bulk of the capacity is then extended
// sparsely, same as on every later growth.
func openIndex(path string, growthIncrement uint64) (*index, error) {
	existed, err := indexFileExists(path)
	if err != nil {
		return nil, err
	}

	if !existed {
		err = atomic.WriteFile(path, bytes.NewReader(make([]byte, indexPrefixSize)))
		if err != nil {
			return nil, fmt.Errorf("create index file: %w: %w", err, ErrIO)
		}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w: %w", err, ErrIO)
	}

	idx := &index{fd: fd, growthIncrement: growthIncrement}

	ok := false

	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	var st unix.Stat_t

	err = fsutil.Retry(func() error { return unix.Fstat(fd, &st) })
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w: %w", err, ErrIO)
	}

	if st.Size < indexPrefixSize {
		return nil, fmt.Errorf("index file size %d smaller than prefix %d: %w", st.Size, indexPrefixSize, ErrIO)
	}

	idx.capacity = uint64(st.Size-indexPrefixSize) / slotSize

	if idx.capacity == 0 {
		err = idx.growFileLocked(growthIncrement)
		if err != nil {
			return nil, err
		}

		idx.growthEvents++
	}

	idx.tryMap()

	ok = true

	return idx, nil
}

// indexFileExists reports whether path already exists as a regular file.
func indexFileExists(path string) (bool, error) {
	var st unix.Stat_t

	err := unix.Stat(path, &st)
	if err == nil {
		return true, nil
	}

	if err == unix.ENOENT { //nolint:errorlint // unix syscall errors are bare errno values
		return false, nil
	}

	return false, fmt.Errorf("stat index file: %w: %w", err, ErrIO)
}

// tryMap attempts to memory-map the index file for its full current
// capacity. On failure it leaves idx.data nil: every subsequent access
// falls back to pread/pwrite.
func (idx *index) tryMap() {
	length := int(indexPrefixSize + idx.capacity*slotSize)

	data, err := unix.Mmap(idx.fd, 0, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		idx.data = nil

		return
	}

	idx.data = data
}

// growFileLocked sparsely extends the index file by increment slots: it
// writes a single zero byte at the new last byte offset, leaving the
// extension a hole rather than allocating real blocks.
func (idx *index) growFileLocked(increment uint64) error {
	newCapacity := idx.capacity + increment
	if newCapacity > maxSlotCapacity {
		return fmt.Errorf("index growth to %d slots exceeds maximum capacity %d: %w", newCapacity, maxSlotCapacity, ErrInvalid)
	}

	newSize, err := safeUint64ToInt64(indexPrefixSize + newCapacity*slotSize)
	if err != nil {
		return err
	}

	_, err = fsutil.Pwrite(idx.fd, []byte{0}, newSize-1)
	if err != nil {
		return fmt.Errorf("extend index file: %w: %w", err, ErrIO)
	}

	idx.capacity = newCapacity

	return nil
}

// grow grows the index file by one growth increment, remapping it if a
// mapping is in use. mmap regions can't be resized under a live mapping
// on all platforms, so growth unmaps first. If the remap fails, the index
// falls back to non-mapped operation rather than failing the growth
// itself: the file is already extended and valid, only the fast path is
// lost.
func (idx *index) grow() error {
	wasMapped := idx.data != nil

	if wasMapped {
		err := unix.Munmap(idx.data)
		if err != nil {
			return fmt.Errorf("unmap index file before growth: %w: %w", err, ErrIO)
		}

		idx.data = nil
	}

	err := idx.growFileLocked(idx.growthIncrement)
	if err != nil {
		return err
	}

	idx.growthEvents++

	if wasMapped {
		idx.tryMap()
	}

	return nil
}

// ensureCapacityFor grows the index by one increment when countAfter (the
// count MakeID is about to store) has reached capacity. Called by MakeID
// before it persists the incremented count.
//
// Growth triggers as soon as countAfter reaches capacity, not only once it
// exceeds it: a store is full the moment count==capacity (slot
// capacity-1 is the last addressable slot), so the next MakeID must grow
// before, not after, that point is reached.
func (idx *index) ensureCapacityFor(countAfter uint64) error {
	if countAfter < idx.capacity {
		return nil
	}

	return idx.grow()
}

// readCount reads the index file's "next ID" counter.
func (idx *index) readCount() (uint64, error) {
	if idx.data != nil {
		return decodeCount(idx.data[:indexPrefixSize]), nil
	}

	buf := make([]byte, indexPrefixSize)

	_, err := fsutil.Pread(idx.fd, buf, 0)
	if err != nil {
		return 0, fmt.Errorf("read index count: %w: %w", err, ErrIO)
	}

	return decodeCount(buf), nil
}

// writeCount persists the index file's "next ID" counter.
func (idx *index) writeCount(count uint64) error {
	buf := encodeCount(count)

	if idx.data != nil {
		copy(idx.data[:indexPrefixSize], buf[:])

		return nil
	}

	_, err := fsutil.Pwrite(idx.fd, buf[:], 0)
	if err != nil {
		return fmt.Errorf("write index count: %w: %w", err, ErrIO)
	}

	return nil
}

// readSlot reads the raw (not yet decoded) slot value for id.
func (idx *index) readSlot(id uint64) (uint64, error) {
	off := slotOffsetAt(id)

	if idx.data != nil {
		return binary.LittleEndian.Uint64(idx.data[off : off+slotSize]), nil
	}

	buf := make([]byte, slotSize)

	_, err := fsutil.Pread(idx.fd, buf, off)
	if err != nil {
		return 0, fmt.Errorf("read index slot %d: %w: %w", id, err, ErrIO)
	}

	return binary.LittleEndian.Uint64(buf), nil
}

// writeSlot persists the raw slot value for id.
func (idx *index) writeSlot(id uint64, raw uint64) error {
	off := slotOffsetAt(id)

	if idx.data != nil {
		binary.LittleEndian.PutUint64(idx.data[off:off+slotSize], raw)

		return nil
	}

	var buf [slotSize]byte
	binary.LittleEndian.PutUint64(buf[:], raw)

	_, err := fsutil.Pwrite(idx.fd, buf[:], off)
	if err != nil {
		return fmt.Errorf("write index slot %d: %w: %w", id, err, ErrIO)
	}

	return nil
}

// sync forces durability of the index: msync over the mapped region when
// mapped, otherwise fsync the descriptor.
func (idx *index) sync() error {
	if idx.data != nil {
		err := unix.Msync(idx.data, unix.MS_SYNC)
		if err != nil {
			return fmt.Errorf("msync index: %w: %w", err, ErrIO)
		}

		return nil
	}

	err := fsutil.Retry(func() error { return unix.Fsync(idx.fd) })
	if err != nil {
		return fmt.Errorf("fsync index: %w: %w", err, ErrIO)
	}

	return nil
}

// close unmaps (if mapped) and closes the descriptor.
func (idx *index) close() error {
	var err error

	if idx.data != nil {
		err = unix.Munmap(idx.data)
		idx.data = nil
	}

	closeErr := unix.Close(idx.fd)
	idx.fd = -1

	if err != nil {
		return fmt.Errorf("unmap index: %w: %w", err, ErrIO)
	}

	if closeErr != nil {
		return fmt.Errorf("close index: %w: %w", closeErr, ErrIO)
	}

	return nil
}
