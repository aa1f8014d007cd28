package logstore

import "encoding/binary"

// On-disk layout constants.
//
// Index file:
//
//	offset 0          : uint64 count            (next ID to assign)
//	offset 8 + 8*i     : uint64 slot[i]
//
// Log file (one record per successful Put and per Remove):
//
//	offset 0  : uint64 id
//	offset 8  : uint64 size    (0 for a tombstone)
//	offset 16 : size bytes     (payload, absent for tombstones)
const (
	indexPrefixSize = 8  // bytes reserved for the count field
	slotSize        = 8  // bytes per index slot
	logHeaderSize   = 16 // bytes per log record header

	// slotRemoved is the raw slot value denoting a removed ID. The codec
	// is never applied to this sentinel.
	slotRemoved = ^uint64(0)

	// offsetMask extracts the low 48 bits of an encoded slot: the log
	// offset of the record header for the slot's current revision.
	offsetMask = (uint64(1) << 48) - 1

	// revisionShift is where the 16-bit revision lives in an encoded slot.
	revisionShift = 48
)

// slotOffsetAt returns the byte offset of slot i within the index file.
func slotOffsetAt(i uint64) int64 {
	return int64(indexPrefixSize + i*slotSize)
}

// encodeSlot packs a log offset and revision into a single 64-bit slot
// value using explicit shifts and masks.
//
// offset must fit in 48 bits and rev in 16 bits; callers are responsible
// for bounds-checking before calling this (see limits.go).
func encodeSlot(offset uint64, rev uint16) uint64 {
	return (uint64(rev) << revisionShift) | (offset & offsetMask)
}

// decodeSlotOffset extracts the log offset from an encoded slot. Must not
// be called on the slotRemoved sentinel.
func decodeSlotOffset(slot uint64) uint64 {
	return slot & offsetMask
}

// decodeSlotRevision extracts the revision from an encoded slot. Must not
// be called on the slotRemoved sentinel.
func decodeSlotRevision(slot uint64) uint16 {
	return uint16(slot >> revisionShift)
}

// encodeCount serializes the index file's "next ID" counter.
func encodeCount(count uint64) [indexPrefixSize]byte {
	var buf [indexPrefixSize]byte
	binary.LittleEndian.PutUint64(buf[:], count)

	return buf
}

// decodeCount reads the index file's "next ID" counter from its prefix.
func decodeCount(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// logRecordHeader is the 16-byte header preceding every log record's
// payload: the record's ID and the payload size (0 for a tombstone).
type logRecordHeader struct {
	ID   uint64
	Size uint64
}

// encodeLogHeader serializes a log record header.
func encodeLogHeader(h logRecordHeader) [logHeaderSize]byte {
	var buf [logHeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.ID)
	binary.LittleEndian.PutUint64(buf[8:16], h.Size)

	return buf
}

// decodeLogHeader deserializes a log record header.
func decodeLogHeader(buf []byte) logRecordHeader {
	return logRecordHeader{
		ID:   binary.LittleEndian.Uint64(buf[0:8]),
		Size: binary.LittleEndian.Uint64(buf[8:16]),
	}
}
