package logstore

import "fmt"

// MakeID atomically reserves the next ID and returns it, growing the index
// once the reservation brings the count up to capacity.
//
// The returned ID's slot is left zero ("allocated but unwritten"); no log
// record is written until the first [Store.Put].
func (s *Store) MakeID() (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	id := s.count
	nextCount := s.count + 1

	if err := s.index.ensureCapacityFor(nextCount); err != nil {
		return 0, err
	}

	if err := s.index.writeCount(nextCount); err != nil {
		return 0, err
	}

	s.count = nextCount

	return id, nil
}

// Put writes bytes as the new value for id, provided rev matches the ID's
// current revision, and returns nothing on success.
//
// rev must equal 0 for an ID that has never been written (Allocated
// state), or the ID's current revision otherwise: the revision returned by
// Get, which is one more than the rev passed to the last successful Put. A mismatch fails with [ErrConflict] and leaves
// the log and index untouched.
func (s *Store) Put(id ID, value []byte, rev Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if len(value) == 0 {
		return fmt.Errorf("put: value must be non-empty: %w", ErrInvalid)
	}

	if uint64(len(value)) > maxValueSize {
		return fmt.Errorf("put: value exceeds maximum size %d: %w", maxValueSize, ErrInvalid)
	}

	if err := s.checkIDInRange(id); err != nil {
		return err
	}

	raw, err := s.index.readSlot(id)
	if err != nil {
		return err
	}

	currentRev, err := revisionOf(raw)
	if err != nil {
		return err
	}

	if currentRev != rev {
		return fmt.Errorf("put: id %d has revision %d, caller supplied %d: %w", id, currentRev, rev, ErrConflict)
	}

	offset, err := s.log.append(id, value)
	if err != nil {
		return err
	}

	newRev := rev + 1

	err = s.index.writeSlot(id, encodeSlot(offset, newRev))
	if err != nil {
		return err
	}

	return nil
}

// Get reads the current value and revision for id.
//
// Returns [ErrNotFound] for a never-written or removed ID, and
// [ErrTampered] when the log record at the slot's stored offset carries a
// different ID than expected.
func (s *Store) Get(id ID) ([]byte, Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, ErrClosed
	}

	if err := s.checkIDInRange(id); err != nil {
		return nil, 0, err
	}

	raw, err := s.index.readSlot(id)
	if err != nil {
		return nil, 0, err
	}

	if raw == slotRemoved {
		return nil, 0, ErrNotFound
	}

	if raw == 0 {
		return nil, 0, ErrNotFound
	}

	offset := decodeSlotOffset(raw)
	rev := decodeSlotRevision(raw)

	header, err := s.log.readHeader(offset)
	if err != nil {
		return nil, 0, err
	}

	if header.ID != id {
		return nil, 0, fmt.Errorf("get: log record at offset %d has id %d, expected %d: %w", offset, header.ID, id, ErrTampered)
	}

	if header.Size == 0 {
		return nil, 0, ErrNotFound
	}

	if header.Size > maxValueSize {
		return nil, 0, fmt.Errorf("get: log record at offset %d claims size %d, exceeds maximum %d: %w", offset, header.Size, maxValueSize, ErrNoMem)
	}

	value, err := s.log.readPayload(offset, header.Size)
	if err != nil {
		return nil, 0, err
	}

	return value, rev, nil
}

// Remove marks id removed: writes the all-ones sentinel into its slot and
// appends a tombstone record to the log. The ID is never recycled and its
// log space is never reclaimed. Removing an already-removed ID succeeds
// again and appends another tombstone record to the log.
func (s *Store) Remove(id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if err := s.checkIDInRange(id); err != nil {
		return err
	}

	if err := s.log.appendTombstone(id); err != nil {
		return err
	}

	return s.index.writeSlot(id, slotRemoved)
}

// Exists reports whether id has been allocated and currently holds a live
// value: false for an out-of-range id, a never-written id, and a removed
// id alike. It promotes the three-way Absent/Live/Removed check every
// caller would otherwise have to open-code around Get's error to a single
// boolean.
func (s *Store) Exists(id ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	if err := s.checkIDInRange(id); err != nil {
		return false, nil //nolint:nilerr // out-of-range means "does not exist", not a caller error
	}

	raw, err := s.index.readSlot(id)
	if err != nil {
		return false, err
	}

	return raw != slotRemoved && raw != 0, nil
}

// checkIDInRange validates that id has actually been allocated (id <
// count). Callers must hold s.mu.
func (s *Store) checkIDInRange(id ID) error {
	if id >= s.count {
		return fmt.Errorf("id %d is out of range (count %d): %w", id, s.count, ErrInvalid)
	}

	return nil
}

// revisionOf returns the current revision encoded in a slot's raw value,
// treating the removed sentinel as an unmatchable revision: a removed ID
// has no meaningful revision, so any caller-supplied rev fails to match
// and Put reports CONFLICT rather than silently resurrecting the ID.
func revisionOf(raw uint64) (Revision, error) {
	if raw == slotRemoved {
		return 0, fmt.Errorf("put: id has been removed: %w", ErrConflict)
	}

	if raw == 0 {
		return 0, nil
	}

	return decodeSlotRevision(raw), nil
}
