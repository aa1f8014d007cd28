package logstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// indexSuffix is appended to Options.Path to form the sister index file's
// path.
const indexSuffix = "-index"

// Store is a handle to one (log, index) file pair. The zero value is not
// usable; obtain a Store via [Open].
//
// A Store must not be used after [Store.Close] returns; doing so returns
// [ErrClosed] from every method other than Close, which returns nil.
type Store struct {
	mu sync.Mutex // guards every field below

	log   *logFile
	index *index

	count       uint64 // next ID to assign
	syncOnClose bool
	closed      bool
}

// Open opens the log file at path for reading and writing, creating it if
// absent, and opens or creates the sister index file at path+"-index".
// The log is not opened with O_APPEND: records are appended by positional
// writes at the cached log size.
//
// Possible errors: [ErrInvalid] for malformed Options, [ErrIO] for any
// filesystem error.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("path is required: %w", ErrInvalid)
	}

	dir := filepath.Dir(opts.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create directory: %w: %w", err, ErrIO)
		}
	}

	growthIncrement := opts.normalizedGrowthIncrement()

	idx, err := openIndex(opts.Path+indexSuffix, growthIncrement)
	if err != nil {
		return nil, err
	}

	log, err := openLog(opts.Path)
	if err != nil {
		_ = idx.close()

		return nil, err
	}

	count, err := idx.readCount()
	if err != nil {
		_ = log.close()
		_ = idx.close()

		return nil, err
	}

	return &Store{
		log:         log,
		index:       idx,
		count:       count,
		syncOnClose: opts.resolvedSyncOnClose(),
	}, nil
}

// Close syncs (when Options.SyncOnClose is true, the default), releases
// the index mapping, and closes both descriptors.
// Close is idempotent: later calls return nil, and after the first call
// every other method returns [ErrClosed].
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	var syncErr error
	if s.syncOnClose {
		syncErr = s.syncLocked()
	}

	indexErr := s.index.close()
	logErr := s.log.close()

	if syncErr != nil {
		return syncErr
	}

	if indexErr != nil {
		return indexErr
	}

	return logErr
}

// Sync forces durability: fsyncs the log descriptor, then msyncs the
// index mapping (or fsyncs the index descriptor when unmapped).
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	return s.syncLocked()
}

func (s *Store) syncLocked() error {
	if err := s.log.sync(); err != nil {
		return err
	}

	return s.index.sync()
}

// Stats returns a point-in-time snapshot of the store's internal
// bookkeeping.
func (s *Store) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Stats{}, ErrClosed
	}

	return Stats{
		Count:        s.count,
		Capacity:     s.index.capacity,
		LogSize:      s.log.size,
		GrowthEvents: s.index.growthEvents,
		Mapped:       s.index.data != nil,
	}, nil
}

// Len returns the number of IDs ever allocated. This counts removed and
// never-written IDs too; there is no separate live-count maintained
// alongside the index.
func (s *Store) Len() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	return s.count, nil
}

// Cap returns the index's current slot capacity.
func (s *Store) Cap() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	return s.index.capacity, nil
}
