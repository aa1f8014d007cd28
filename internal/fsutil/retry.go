// Package fsutil provides small helpers shared by the index and log files:
// EINTR-retrying wrappers around the raw syscalls logstore issues directly
// against file descriptors.
package fsutil

import (
	"errors"

	"golang.org/x/sys/unix"
)

// maxEINTRRetries bounds retry loops so a pathological signal storm can't
// spin forever. In practice this limit is never hit: a single syscall being
// interrupted by a signal thousands of times in a row indicates something
// else is very wrong with the process.
const maxEINTRRetries = 10000

// Retry calls fn, retrying while it returns unix.EINTR, up to a bounded
// number of attempts. The last error (including a final EINTR, if the
// bound is exhausted) is returned unchanged.
func Retry(fn func() error) error {
	var err error

	for range maxEINTRRetries {
		err = fn()
		if err == nil || !errors.Is(err, unix.EINTR) {
			return err
		}
	}

	return err
}

// Pread reads len(buf) bytes from fd at offset off, retrying on EINTR and
// retrying short reads until buf is full, at EOF, or a non-EINTR error
// occurs. It returns the number of bytes read.
func Pread(fd int, buf []byte, off int64) (int, error) {
	total := 0

	for total < len(buf) {
		var n int

		err := Retry(func() error {
			var readErr error
			n, readErr = unix.Pread(fd, buf[total:], off+int64(total))

			return readErr
		})
		if err != nil {
			return total, err
		}

		if n == 0 {
			// EOF.
			return total, nil
		}

		total += n
	}

	return total, nil
}

// Pwrite writes all of buf to fd at offset off, retrying on EINTR and
// retrying short writes until all bytes are written or a non-EINTR error
// occurs.
func Pwrite(fd int, buf []byte, off int64) (int, error) {
	total := 0

	for total < len(buf) {
		var n int

		err := Retry(func() error {
			var writeErr error
			n, writeErr = unix.Pwrite(fd, buf[total:], off+int64(total))

			return writeErr
		})
		if err != nil {
			return total, err
		}

		total += n
	}

	return total, nil
}
