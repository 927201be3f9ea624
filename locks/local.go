package locks

import "sync"

// LocalLock serializes goroutines within a single process. One instance is shared by all
// workers of a thread-mode pool.
type LocalLock struct {
	mu   sync.Mutex
	held bool
	cond *sync.Cond
}

// NewLocalLock returns an in-process lock.
func NewLocalLock() *LocalLock {
	lock := &LocalLock{}
	lock.cond = sync.NewCond(&lock.mu)

	return lock
}

// AcquireLock blocks until the lock is free, then takes it.
func (lock *LocalLock) AcquireLock() error {
	lock.mu.Lock()
	defer lock.mu.Unlock()

	for lock.held {
		lock.cond.Wait()
	}

	lock.held = true

	return nil
}

// ReleaseLock frees the lock. Releasing an unheld lock returns ErrNotAcquired rather
// than panicking the way an unbalanced sync.Mutex unlock would.
func (lock *LocalLock) ReleaseLock() error {
	lock.mu.Lock()
	defer lock.mu.Unlock()

	if !lock.held {
		return ErrNotAcquired{Lock: lock.String()}
	}

	lock.held = false
	lock.cond.Signal()

	return nil
}

func (lock *LocalLock) String() string { return "local thread lock" }
