package locks

import "sync"

// Reentrant wraps another Lock with recursion-count semantics: the owner of a Reentrant
// handle may acquire it repeatedly without blocking itself, and the underlying lock is
// only released once the recursion counter returns to zero.
//
// Each worker constructs its own Reentrant handle around the shared backend lock, so the
// counter is owned by exactly one worker and never crosses execution-mode boundaries.
type Reentrant struct {
	inner Lock
	mu    sync.Mutex
	depth int
}

// NewReentrant wraps the given backend lock in a reentrant handle.
func NewReentrant(inner Lock) *Reentrant {
	return &Reentrant{inner: inner}
}

// AcquireLock increments the recursion counter, acquiring the underlying lock only on
// the first (outermost) acquire.
func (lock *Reentrant) AcquireLock() error {
	lock.mu.Lock()
	if lock.depth > 0 {
		lock.depth++
		lock.mu.Unlock()

		return nil
	}
	lock.mu.Unlock()

	// The outermost acquire blocks on the backend without holding the counter mutex, so
	// nested acquires by the owner never deadlock against it.
	if err := lock.inner.AcquireLock(); err != nil {
		return err
	}

	lock.mu.Lock()
	lock.depth++
	lock.mu.Unlock()

	return nil
}

// ReleaseLock decrements the recursion counter, releasing the underlying lock once the
// counter returns to zero. Releasing an unheld lock returns ErrNotAcquired.
func (lock *Reentrant) ReleaseLock() error {
	lock.mu.Lock()

	if lock.depth == 0 {
		lock.mu.Unlock()
		return ErrNotAcquired{Lock: lock.String()}
	}

	lock.depth--
	release := lock.depth == 0
	lock.mu.Unlock()

	if release {
		return lock.inner.ReleaseLock()
	}

	return nil
}

func (lock *Reentrant) String() string {
	return "reentrant " + lock.inner.String()
}
