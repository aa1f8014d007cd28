// Package logstore is an append-only key/value store for long-lived
// services that need durable storage of small-to-medium opaque values
// identified by monotonically assigned integer keys.
//
// It provides O(1) lookup via a dense, mmap-backed on-disk index and O(1)
// amortized writes via log append. It targets workloads where reads
// exhibit temporal locality (callers cache deserialized objects above
// this store) and writes arrive at a high rate but only need to survive
// crashes at explicit sync points.
//
// # Basic usage
//
//	s, err := logstore.Open(logstore.Options{Path: "/var/lib/svc/data.log"})
//	if err != nil {
//	    // handle error
//	}
//	defer s.Close()
//
//	id, err := s.MakeID()
//	err = s.Put(id, []byte("hello"), 0)
//	value, rev, err := s.Get(id)
//
// # Concurrency
//
// Every public operation executes synchronously on the caller's thread
// under a single store-wide mutex. Concurrent opens of the same path
// from different processes, or from multiple [Store] handles in the same
// process, are unsupported.
//
// # Error Handling
//
// Operations return one of a fixed set of sentinel errors ([ErrIO],
// [ErrNoMem], [ErrInvalid], [ErrNotFound], [ErrConflict], [ErrTampered],
// [ErrClosed]); classify them with [errors.Is]:
//
//	if errors.Is(err, logstore.ErrConflict) {
//	    // reread and retry with the fresh revision
//	}
//
// # Durability
//
// Writes may reside in OS buffers until [Store.Sync] is called. Callers
// trading throughput for durability (periodic Sync, e.g. once per
// second) are explicitly supported.
//
// # Non-goals
//
// No compaction or garbage collection of superseded log records, no
// secondary indexing, no cross-process coordination, no network
// exposure, no encryption or checksums beyond the identity sanity check
// performed by [ErrTampered], no ID recycling after removal.
package logstore
