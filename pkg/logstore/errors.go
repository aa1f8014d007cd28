package logstore

import "errors"

// Sentinel errors returned by logstore operations.
//
// Callers should classify errors with [errors.Is]:
//
//	if errors.Is(err, logstore.ErrConflict) {
//	    // reread and retry with the fresh revision
//	}
var (
	// ErrIO indicates an unexpected filesystem or mmap error survived
	// EINTR retry.
	ErrIO = errors.New("logstore: io")

	// ErrNoMem is returned by Get when a log record header claims a
	// payload larger than the maximum value size, before a buffer of that
	// size is allocated. Failed allocations themselves are not caught and
	// reported as ErrNoMem.
	ErrNoMem = errors.New("logstore: no memory")

	// ErrInvalid indicates malformed arguments or an exceeded limit: an
	// empty Options.Path, a zero-length or oversized Put payload, an
	// out-of-range ID, or an index growth past the maximum slot capacity.
	ErrInvalid = errors.New("logstore: invalid input")

	// ErrNotFound indicates a lookup of a never-written or removed ID.
	ErrNotFound = errors.New("logstore: not found")

	// ErrConflict indicates Put was called with a stale revision.
	ErrConflict = errors.New("logstore: conflict")

	// ErrTampered indicates the log record header's ID does not match the
	// ID recorded in the index slot that pointed at it. This implies
	// corruption or misuse of the log/index file pair.
	ErrTampered = errors.New("logstore: tampered")

	// ErrClosed indicates an operation was attempted on a Store after
	// Close returned.
	ErrClosed = errors.New("logstore: closed")
)

// descriptions maps each sentinel error to a short human-readable string,
// backing [Describe].
var descriptions = map[error]string{
	ErrIO:       "unexpected filesystem or mmap error",
	ErrNoMem:    "allocation failure",
	ErrInvalid:  "invalid argument",
	ErrNotFound: "id not found",
	ErrConflict: "stale revision",
	ErrTampered: "log record id mismatch",
	ErrClosed:   "store is closed",
}

// Describe returns a short human-readable description of an error code
// returned by this package. It returns ("", false) for any error not
// defined by this package, including nil and wrapped errors that are not
// exactly one of the sentinels above (use [errors.Is] against the
// individual sentinels for that).
func Describe(code error) (string, bool) {
	s, ok := descriptions[code]

	return s, ok
}
