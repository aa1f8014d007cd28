package logstore

// Hardcoded implementation limits.
//
// These exist to keep arithmetic safely away from overflow boundaries and
// to bound resource usage for configurations this package does not
// exercise. A Put payload above maxValueSize and an index growth past
// maxSlotCapacity return [ErrInvalid]; an Options.GrowthIncrement outside
// its bounds is clamped instead.
const (
	// minGrowthIncrement and maxGrowthIncrement bound
	// [Options.GrowthIncrement] to 4096-65536 slots, chosen to keep the
	// first mapping small but useful.
	minGrowthIncrement = 4_096
	maxGrowthIncrement = 65_536

	// defaultGrowthIncrement is used when Options.GrowthIncrement is zero.
	defaultGrowthIncrement = 10_000

	// maxValueSize is the largest payload Put accepts: 2^48-1 bytes. The
	// index slot's offset field is 48 bits wide, so a log growing past
	// this size could never be addressed from the index anyway.
	maxValueSize = (1 << 48) - 1

	// maxSlotCapacity is the largest number of slots the index file may
	// address. Bounded well below 2^48 (the offset field width) so that
	// capacity*8 (the index file's slot-array size) never overflows
	// int64, which file size and mmap length arithmetic both require.
	maxSlotCapacity = uint64(1) << 40
)
