//go:build !windows

package auditsqlite

import "golang.org/x/sys/unix"

// flockLock acquires an exclusive advisory file lock (Unix implementation),
// serializing access to the SQLite file across process restarts so a
// rolling redeploy never has two writers open against the same database.
func flockLock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX)
}

// flockUnlock releases the file lock acquired by flockLock.
func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
