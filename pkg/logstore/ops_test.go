package logstore_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/logstore/pkg/logstore"
)

func openTestStore(t *testing.T) *logstore.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "store.log")

	s, err := logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func Test_Open_On_Fresh_Path_Yields_Empty_Store_With_Positive_Capacity(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	count, err := s.Len()
	if err != nil {
		t.Fatalf("Len: %v", err)
	}

	if count != 0 {
		t.Errorf("Len() = %d, want 0", count)
	}

	cap, err := s.Cap()
	if err != nil {
		t.Fatalf("Cap: %v", err)
	}

	if cap == 0 {
		t.Errorf("Cap() = 0, want > 0")
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.LogSize != 0 {
		t.Errorf("Stats().LogSize = %d, want 0", stats.LogSize)
	}
}

func Test_MakeID_Returns_Sequential_IDs_Starting_At_Zero(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	const n = 1000

	for i := range n {
		id, err := s.MakeID()
		if err != nil {
			t.Fatalf("MakeID() at i=%d: %v", i, err)
		}

		if id != uint64(i) {
			t.Fatalf("MakeID() at i=%d = %d, want %d", i, id, i)
		}
	}
}

func Test_MakeID_Put_Get_On_Fresh_Store(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if id != 0 {
		t.Fatalf("MakeID() = %d, want 0", id)
	}

	payload := []byte{0x01, 0x02, 0x03, 0x04}

	if err := s.Put(id, payload, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, rev, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("Get() value mismatch (-want +got):\n%s", diff)
	}

	if rev != 1 {
		t.Errorf("Get() revision = %d, want 1", rev)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.LogSize != 20 {
		t.Errorf("Stats().LogSize = %d, want 20", stats.LogSize)
	}
}

func Test_Put_With_Stale_Revision_Fails_With_Conflict(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if err := s.Put(id, []byte{0x01, 0x02, 0x03, 0x04}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	aBytes, aRev, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get (a): %v", err)
	}

	bBytes, bRev, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get (b): %v", err)
	}

	if aRev != 1 || bRev != 1 {
		t.Fatalf("both reads should observe revision 1, got aRev=%d bRev=%d", aRev, bRev)
	}

	if err := s.Put(id, aBytes, aRev); err != nil {
		t.Fatalf("Put with current revision should succeed: %v", err)
	}

	err = s.Put(id, bBytes, bRev)
	if !errors.Is(err, logstore.ErrConflict) {
		t.Fatalf("second Put with stale revision: got err=%v, want ErrConflict", err)
	}

	_, newRev, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get after conflict: %v", err)
	}

	if newRev != 2 {
		t.Errorf("revision after one successful re-put = %d, want 2", newRev)
	}
}

func Test_Bulk_Put_Survives_Close_And_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.log")

	const n = 1000

	s, err := logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	for i := range n {
		id, err := s.MakeID()
		if err != nil {
			t.Fatalf("MakeID at i=%d: %v", i, err)
		}

		value := make([]byte, 4)
		binary.LittleEndian.PutUint32(value, uint32(i))

		if err := s.Put(id, value, 0); err != nil {
			t.Fatalf("Put at i=%d: %v", i, err)
		}
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	for i := range n {
		value, rev, err := s.Get(uint64(i))
		if err != nil {
			t.Fatalf("Get(%d) after reopen: %v", i, err)
		}

		want := make([]byte, 4)
		binary.LittleEndian.PutUint32(want, uint32(i))

		if diff := cmp.Diff(want, value); diff != "" {
			t.Errorf("Get(%d) value mismatch after reopen (-want +got):\n%s", i, diff)
		}

		if rev != 1 {
			t.Errorf("Get(%d) revision after reopen = %d, want 1", i, rev)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.LogSize != int64(n*(16+4)) {
		t.Errorf("Stats().LogSize after reopen = %d, want %d", stats.LogSize, n*(16+4))
	}
}

func Test_Remove_Makes_ID_NotFound_And_OutOfRange_Remove_Is_Invalid(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if err := s.Put(id, []byte{0x01}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	_, _, err = s.Get(id)
	if !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("Get after Remove: got err=%v, want ErrNotFound", err)
	}

	err = s.Remove(^uint64(0))
	if !errors.Is(err, logstore.ErrInvalid) {
		t.Errorf("Remove(out-of-range id): got err=%v, want ErrInvalid", err)
	}
}

func Test_Remove_Is_Idempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("first Remove: %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("second Remove on already-removed id should succeed, got: %v", err)
	}
}

func Test_Index_Grows_After_Growth_Increment_MakeID_Calls(t *testing.T) {
	t.Parallel()

	const growth = 4096 // minGrowthIncrement

	path := filepath.Join(t.TempDir(), "store.log")

	s, err := logstore.Open(logstore.Options{Path: path, GrowthIncrement: growth})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.GrowthEvents != 1 {
		t.Fatalf("GrowthEvents after Open = %d, want 1", stats.GrowthEvents)
	}

	for range growth {
		if _, err := s.MakeID(); err != nil {
			t.Fatalf("MakeID: %v", err)
		}
	}

	stats, err = s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.GrowthEvents != 2 {
		t.Errorf("GrowthEvents after %d MakeID calls = %d, want 2", growth, stats.GrowthEvents)
	}

	wantIndexSize := int64(8 + 2*growth*8)

	info, err := os.Stat(path + "-index")
	if err != nil {
		t.Fatalf("stat index file: %v", err)
	}

	if info.Size() != wantIndexSize {
		t.Errorf("index file size = %d, want %d", info.Size(), wantIndexSize)
	}
}

func Test_Put_With_Empty_Value_Is_Invalid(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	err = s.Put(id, nil, 0)
	if !errors.Is(err, logstore.ErrInvalid) {
		t.Errorf("Put(nil): got err=%v, want ErrInvalid", err)
	}

	err = s.Put(id, []byte{}, 0)
	if !errors.Is(err, logstore.ErrInvalid) {
		t.Errorf("Put([]byte{}): got err=%v, want ErrInvalid", err)
	}
}

func Test_Get_Returns_NotFound_For_Allocated_But_Never_Written_ID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	_, _, err = s.Get(id)
	if !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("Get(allocated-unwritten): got err=%v, want ErrNotFound", err)
	}
}

func Test_Get_Returns_NoMem_When_Log_Record_Claims_Size_Beyond_Maximum(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.log")

	s, err := logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if err := s.Put(id, []byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open log file for corruption: %v", err)
	}

	// The record header is {id uint64, size uint64}; overwrite the size
	// field (bytes 8-16 of the first, only, record) with a value past the
	// maximum a real Put could ever have written.
	oversized := make([]byte, 8)
	binary.LittleEndian.PutUint64(oversized, (uint64(1)<<48)+1)

	if _, err := f.WriteAt(oversized, 8); err != nil {
		t.Fatalf("corrupt log record size: %v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("close corrupted log file: %v", err)
	}

	s, err = logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	_, _, err = s.Get(id)
	if !errors.Is(err, logstore.ErrNoMem) {
		t.Errorf("Get with oversized on-disk record size: got err=%v, want ErrNoMem", err)
	}
}

func Test_Get_And_Put_Reject_IDs_Never_Returned_By_MakeID(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	_, _, err := s.Get(0)
	if !errors.Is(err, logstore.ErrInvalid) {
		t.Errorf("Get(0) on empty store: got err=%v, want ErrInvalid", err)
	}

	err = s.Put(0, []byte{1}, 0)
	if !errors.Is(err, logstore.ErrInvalid) {
		t.Errorf("Put(0) on empty store: got err=%v, want ErrInvalid", err)
	}
}

func Test_Put_On_Removed_ID_Fails_With_Conflict(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	if err := s.Put(id, []byte{1}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	err = s.Put(id, []byte{2}, 1)
	if !errors.Is(err, logstore.ErrConflict) {
		t.Errorf("Put(removed id): got err=%v, want ErrConflict", err)
	}
}

func Test_LogSize_Equals_Sum_Of_Header_Plus_Payload_Sizes_After_K_Puts(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	sizes := []int{1, 4, 16, 1024, 4096}

	var want int64

	for _, size := range sizes {
		id, err := s.MakeID()
		if err != nil {
			t.Fatalf("MakeID: %v", err)
		}

		if err := s.Put(id, make([]byte, size), 0); err != nil {
			t.Fatalf("Put size=%d: %v", size, err)
		}

		want += int64(16 + size)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.LogSize != want {
		t.Errorf("LogSize = %d, want %d", stats.LogSize, want)
	}
}

func Test_RoundTrip_Put_Then_Get_Preserves_Bytes_And_Increments_Revision(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	sizes := []int{1, 2, 3, 7, 8, 255, 4096, 1 << 16}

	for _, size := range sizes {
		id, err := s.MakeID()
		if err != nil {
			t.Fatalf("MakeID: %v", err)
		}

		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i)
		}

		if err := s.Put(id, payload, 0); err != nil {
			t.Fatalf("Put size=%d: %v", size, err)
		}

		got, rev, err := s.Get(id)
		if err != nil {
			t.Fatalf("Get size=%d: %v", size, err)
		}

		if diff := cmp.Diff(payload, got); diff != "" {
			t.Errorf("Get size=%d value mismatch (-want +got):\n%s", size, diff)
		}

		if rev != 1 {
			t.Errorf("Get size=%d revision = %d, want 1", size, rev)
		}
	}
}

func Test_Exists_Reflects_Allocated_Written_And_Removed_States(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)

	unallocated, err := s.Exists(0)
	if err != nil {
		t.Fatalf("Exists(unallocated): %v", err)
	}

	if unallocated {
		t.Error("Exists(unallocated) = true, want false")
	}

	id, err := s.MakeID()
	if err != nil {
		t.Fatalf("MakeID: %v", err)
	}

	unwritten, err := s.Exists(id)
	if err != nil {
		t.Fatalf("Exists(unwritten): %v", err)
	}

	if unwritten {
		t.Error("Exists(allocated-unwritten) = true, want false")
	}

	if err := s.Put(id, []byte{1}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	written, err := s.Exists(id)
	if err != nil {
		t.Fatalf("Exists(written): %v", err)
	}

	if !written {
		t.Error("Exists(written) = false, want true")
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	removed, err := s.Exists(id)
	if err != nil {
		t.Fatalf("Exists(removed): %v", err)
	}

	if removed {
		t.Error("Exists(removed) = true, want false")
	}
}

func Test_Operations_Return_ErrClosed_After_Close(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.log")

	s, err := logstore.Open(logstore.Options{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}

	if _, err := s.MakeID(); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("MakeID after Close: got err=%v, want ErrClosed", err)
	}

	if err := s.Put(0, []byte{1}, 0); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("Put after Close: got err=%v, want ErrClosed", err)
	}

	if _, _, err := s.Get(0); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("Get after Close: got err=%v, want ErrClosed", err)
	}

	if err := s.Remove(0); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("Remove after Close: got err=%v, want ErrClosed", err)
	}

	if _, err := s.Exists(0); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("Exists after Close: got err=%v, want ErrClosed", err)
	}

	if err := s.Sync(); !errors.Is(err, logstore.ErrClosed) {
		t.Errorf("Sync after Close: got err=%v, want ErrClosed", err)
	}
}
