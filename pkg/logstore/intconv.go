package logstore

import "fmt"

// safeUint64ToInt64 converts a uint64 to int64, returning [ErrInvalid] if
// the value doesn't fit. Used when translating slot/log offsets (stored as
// uint64 per the wire format) into the signed offsets syscalls expect.
func safeUint64ToInt64(v uint64) (int64, error) {
	if v > uint64(1)<<63-1 {
		return 0, fmt.Errorf("value %d overflows int64: %w", v, ErrInvalid)
	}

	return int64(v), nil
}

// safeUint64ToInt converts a uint64 to int, returning [ErrInvalid] if the
// value doesn't fit in the platform's int width.
func safeUint64ToInt(v uint64) (int, error) {
	const maxInt = int(^uint(0) >> 1)
	if v > uint64(maxInt) {
		return 0, fmt.Errorf("value %d overflows int: %w", v, ErrInvalid)
	}

	return int(v), nil
}
