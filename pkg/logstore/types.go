package logstore

// ID identifies a value stored in a [Store]. IDs are assigned by
// [Store.MakeID], monotonically increasing from 0, and are never reused.
type ID = uint64

// Revision is the per-ID version counter attached by [Store.Put]. It is 0
// for an ID that has never been written, and increments by 1 on every
// successful Put.
type Revision = uint16

// Options configures [Open].
type Options struct {
	// Path is the filesystem path to the log file. The sister index file
	// is created alongside it at Path+"-index".
	//
	// Required.
	Path string

	// GrowthIncrement is the number of slots the index file grows by each
	// time it runs out of capacity. Zero selects
	// defaultGrowthIncrement (10,000). Non-zero values are clamped to
	// [minGrowthIncrement, maxGrowthIncrement].
	GrowthIncrement uint64

	// SyncOnClose causes [Store.Close] to call [Store.Sync] before
	// releasing resources. Default true. The field only takes effect when
	// set through [Options.WithSyncOnClose]; assigning it directly leaves
	// the default (sync on close) in place.
	SyncOnClose bool

	// syncOnCloseSet distinguishes an explicit false from the zero value,
	// since SyncOnClose defaults to true.
	syncOnCloseSet bool
}

// WithSyncOnClose returns a copy of opts with SyncOnClose explicitly set.
// Use this to opt out of the default.
func (opts Options) WithSyncOnClose(sync bool) Options {
	opts.SyncOnClose = sync
	opts.syncOnCloseSet = true

	return opts
}

// normalizedGrowthIncrement returns opts.GrowthIncrement clamped to
// [minGrowthIncrement, maxGrowthIncrement], substituting the default when
// unset.
func (opts Options) normalizedGrowthIncrement() uint64 {
	g := opts.GrowthIncrement
	if g == 0 {
		g = defaultGrowthIncrement
	}

	if g < minGrowthIncrement {
		g = minGrowthIncrement
	}

	if g > maxGrowthIncrement {
		g = maxGrowthIncrement
	}

	return g
}

// resolvedSyncOnClose returns whether Close should sync, defaulting to
// true when the caller never set the field explicitly.
func (opts Options) resolvedSyncOnClose() bool {
	if !opts.syncOnCloseSet {
		return true
	}

	return opts.SyncOnClose
}

// Stats is a point-in-time snapshot of a [Store]'s internal bookkeeping,
// primarily intended for benchmarking and instrumentation.
type Stats struct {
	// Count is the number of IDs ever allocated via MakeID.
	Count uint64

	// Capacity is the current number of slots the index file can address
	// without growing.
	Capacity uint64

	// LogSize is the current length of the log file in bytes.
	LogSize int64

	// GrowthEvents is the number of times the index file has been grown
	// since this Store was opened, including the initial growth Open
	// performs on an empty index file. It is not persisted across opens.
	GrowthEvents uint64

	// Mapped reports whether the index file is currently memory-mapped.
	// When false, all index access falls back to pread/pwrite.
	Mapped bool
}
