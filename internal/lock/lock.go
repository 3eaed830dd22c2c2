// Package lock implements the daemon lock: an OS-advisory exclusive file
// lock on run/daemon.lock that rejects a second instance on the same base
// directory, per spec.md §4.2. Grounded on sa6mwa-lockd's
// internal/storage/disk/filelock_unix.go advisory-locking idiom, adapted to
// fail fast instead of blocking (a duplicate daemon must report
// AlreadyRunning rather than wait) and to flock(2) instead of fcntl(2)
// record locking, since fcntl locks only exclude across processes, not
// across two open file descriptions within one process.
package lock

import (
	"fmt"
	"os"
	"strconv"
)

// ErrAlreadyRunning is returned by Acquire when another process already
// holds the lock on the same path.
var ErrAlreadyRunning = fmt.Errorf("already running")

// Lock represents a held daemon lock. Release it on shutdown.
type Lock struct {
	file *os.File
	path string
}

// Acquire opens (creating if necessary) the lock file at path and takes a
// non-blocking exclusive advisory lock on it. On contention it returns
// ErrAlreadyRunning. On success it writes the current process id into the
// file for debugging, per spec.md §3's daemon lock record.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open daemon lock: %w", err)
	}

	if err := tryLockExclusive(f); err != nil {
		f.Close()
		return nil, ErrAlreadyRunning
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	}

	return &Lock{file: f, path: path}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlock(l.file)
	return l.file.Close()
}
