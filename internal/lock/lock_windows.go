//go:build windows

package lock

import (
	"os"

	"golang.org/x/sys/windows"
)

// tryLockExclusive takes a non-blocking exclusive byte-range lock covering
// the whole file. LockFileEx is scoped to the file handle, matching the
// unix flock(2) path's per-open-file-description exclusion.
func tryLockExclusive(f *os.File) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1, 0,
		ol,
	)
}

func unlock(f *os.File) {
	ol := new(windows.Overlapped)
	_ = windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}
