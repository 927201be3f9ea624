package locks

import (
	"github.com/gofrs/flock"

	"github.com/condatools/recipebump/internal/errors"
)

// FileLock serializes workers across OS processes on the same host by flocking a file.
// Each worker process receives the lock file path at startup and constructs its own
// handle; the kernel arbitrates between processes.
type FileLock struct {
	flock *flock.Flock
}

// NewFileLock returns a cross-process lock bound to the given file.
func NewFileLock(path string) *FileLock {
	return &FileLock{flock: flock.New(path)}
}

// AcquireLock blocks until the file lock is acquired.
func (lock *FileLock) AcquireLock() error {
	if err := lock.flock.Lock(); err != nil {
		return errors.WithStackTraceAndPrefix(err, "unable to lock file %q", lock.flock.Path())
	}

	return nil
}

// ReleaseLock releases the file lock. Releasing a lock this handle does not hold returns
// ErrNotAcquired.
func (lock *FileLock) ReleaseLock() error {
	if !lock.flock.Locked() {
		return ErrNotAcquired{Lock: lock.String()}
	}

	if err := lock.flock.Unlock(); err != nil {
		return errors.WithStackTraceAndPrefix(err, "unable to unlock file %q", lock.flock.Path())
	}

	return nil
}

func (lock *FileLock) String() string {
	return "file lock on " + lock.flock.Path()
}
