//go:build unix

package lock

import (
	"os"

	"golang.org/x/sys/unix"
)

// tryLockExclusive attempts a non-blocking exclusive lock, failing fast on
// contention instead of the blocking LOCK_EX a generic file lock would use
// — the daemon lock must report AlreadyRunning immediately. flock(2) rather
// than fcntl(2) record locking is deliberate: fcntl locks are scoped to the
// (process, inode) pair, so two open file descriptions in the same process
// never conflict with each other, only across processes. flock locks are
// scoped to the open file description itself, so the exclusion holds both
// within a process (a second Acquire on an already-held path fails) and
// across processes (a second daemon instance fails), matching spec.md
// §4.2's single-writer guarantee in both cases.
func tryLockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
