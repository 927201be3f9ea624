// Package locks provides the mutual-exclusion primitives used to serialize access to
// shared resources while many recipe migrations run concurrently. The same migration
// code runs under goroutines, separate OS processes, or a distributed worker fleet, so
// every backend hides behind the Lock interface and is installed by the executor at
// worker startup.
package locks

// Lock is the interface every lock backend must implement.
type Lock interface {
	// AcquireLock acquires the lock, blocking until it is available.
	AcquireLock() error

	// ReleaseLock releases the lock. Releasing a lock that is not held is an error.
	ReleaseLock() error

	// String returns a human-readable representation of the lock.
	String() string
}

// WithLock acquires the given lock, executes the given action, and releases the lock.
func WithLock(lock Lock, action func() error) (finalErr error) {
	if err := lock.AcquireLock(); err != nil {
		return err
	}

	defer func() {
		// We release in a deferred function so that the lock is released even if the
		// action panics. We use a named return variable so that a release error is
		// still returned when the action itself succeeded.
		if err := lock.ReleaseLock(); err != nil && finalErr == nil {
			finalErr = err
		}
	}()

	return action()
}

// NoopLock is substituted when no concurrency backend is configured so that code paths
// needing "the lock" never special-case the absence of concurrency. Acquire always
// succeeds immediately; release never reports an error.
type NoopLock struct{}

// NewNoopLock returns a lock that does nothing.
func NewNoopLock() *NoopLock {
	return &NoopLock{}
}

func (lock *NoopLock) AcquireLock() error { return nil }

func (lock *NoopLock) ReleaseLock() error { return nil }

func (lock *NoopLock) String() string { return "no-op lock" }
