package logstore

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/logstore/internal/fsutil"
)

// logFile owns the append-only log: a concatenation of {id, size, payload}
// records with no padding between them. Like [index], it has no locking
// of its own; callers hold the owning [Store]'s mutex.
type logFile struct {
	fd   int
	size int64 // cached length; the source of truth for the next write offset
}

// openLog opens or creates the log file at path.
func openLog(path string) (*logFile, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w: %w", err, ErrIO)
	}

	var st unix.Stat_t

	err = fsutil.Retry(func() error { return unix.Fstat(fd, &st) })
	if err != nil {
		_ = unix.Close(fd)

		return nil, fmt.Errorf("stat log file: %w: %w", err, ErrIO)
	}

	return &logFile{fd: fd, size: st.Size}, nil
}

// append writes a record header for id with the given payload, followed by
// the payload itself, as a single write at the current log tail. It
// returns the offset the record header was written at (the value stored in
// the corresponding index slot) and advances the cached size.
//
// size == 0 is used for tombstones (no payload follows the header).
func (l *logFile) append(id uint64, payload []byte) (uint64, error) {
	offset := l.size

	buf := make([]byte, logHeaderSize+len(payload))
	header := encodeLogHeader(logRecordHeader{ID: id, Size: uint64(len(payload))})
	copy(buf[:logHeaderSize], header[:])
	copy(buf[logHeaderSize:], payload)

	_, err := fsutil.Pwrite(l.fd, buf, offset)
	if err != nil {
		return 0, fmt.Errorf("append log record: %w: %w", err, ErrIO)
	}

	l.size += int64(len(buf))

	return uint64(offset), nil
}

// appendTombstone writes a zero-payload record for id, marking it removed
// on the log. Tombstones are never read back through readPayload; Get
// treats a slotRemoved index slot as not-found before ever consulting the
// log.
func (l *logFile) appendTombstone(id uint64) error {
	_, err := l.append(id, nil)

	return err
}

// readHeader reads and decodes the 16-byte record header at offset.
func (l *logFile) readHeader(offset uint64) (logRecordHeader, error) {
	off, err := safeUint64ToInt64(offset)
	if err != nil {
		return logRecordHeader{}, err
	}

	buf := make([]byte, logHeaderSize)

	n, err := fsutil.Pread(l.fd, buf, off)
	if err != nil {
		return logRecordHeader{}, fmt.Errorf("read log header: %w: %w", err, ErrIO)
	}

	if n != logHeaderSize {
		return logRecordHeader{}, fmt.Errorf("short read of log header (%d of %d bytes): %w", n, logHeaderSize, ErrIO)
	}

	return decodeLogHeader(buf), nil
}

// readPayload reads size bytes of payload immediately following the record
// header at offset.
func (l *logFile) readPayload(offset uint64, size uint64) ([]byte, error) {
	payloadOff, err := safeUint64ToInt64(offset + logHeaderSize)
	if err != nil {
		return nil, err
	}

	n, err := safeUint64ToInt(size)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, n)

	read, err := fsutil.Pread(l.fd, buf, payloadOff)
	if err != nil {
		return nil, fmt.Errorf("read log payload: %w: %w", err, ErrIO)
	}

	if read != n {
		return nil, fmt.Errorf("short read of log payload (%d of %d bytes): %w", read, n, ErrIO)
	}

	return buf, nil
}

// sync forces the log durable.
func (l *logFile) sync() error {
	err := fsutil.Retry(func() error { return unix.Fsync(l.fd) })
	if err != nil {
		return fmt.Errorf("fsync log: %w: %w", err, ErrIO)
	}

	return nil
}

// close closes the log descriptor.
func (l *logFile) close() error {
	err := unix.Close(l.fd)
	l.fd = -1

	if err != nil {
		return fmt.Errorf("close log: %w: %w", err, ErrIO)
	}

	return nil
}
