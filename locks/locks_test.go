package locks_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/condatools/recipebump/locks"
)

func TestLocalLockSerializesGoroutines(t *testing.T) {
	t.Parallel()

	lock := locks.NewLocalLock()
	sharedResource := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, lock.AcquireLock())
			defer lock.ReleaseLock() //nolint:errcheck
			sharedResource++
		}()
	}

	wg.Wait()

	require.Equal(t, 100, sharedResource, "concurrent access to shared resource managed incorrectly")
}

func TestLocalLockReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	lock := locks.NewLocalLock()

	err := lock.ReleaseLock()
	require.Error(t, err)

	var notAcquired locks.ErrNotAcquired
	require.ErrorAs(t, err, &notAcquired)
}

func TestReentrantAcquireTwiceDoesNotSelfDeadlock(t *testing.T) {
	t.Parallel()

	lock := locks.NewReentrant(locks.NewLocalLock())

	done := make(chan struct{})
	go func() {
		defer close(done)

		require.NoError(t, lock.AcquireLock())
		require.NoError(t, lock.AcquireLock())
		require.NoError(t, lock.ReleaseLock())
		require.NoError(t, lock.ReleaseLock())
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reentrant acquire blocked against itself")
	}
}

func TestReentrantHoldsBackendUntilLastRelease(t *testing.T) {
	t.Parallel()

	backend := locks.NewLocalLock()
	ownerA := locks.NewReentrant(backend)
	ownerB := locks.NewReentrant(backend)

	require.NoError(t, ownerA.AcquireLock())
	require.NoError(t, ownerA.AcquireLock())

	acquired := make(chan struct{})
	go func() {
		require.NoError(t, ownerB.AcquireLock())
		close(acquired)
	}()

	// First release leaves the recursion counter at 1, so B must still be blocked.
	require.NoError(t, ownerA.ReleaseLock())

	select {
	case <-acquired:
		t.Fatal("second owner acquired the lock before the outermost release")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, ownerA.ReleaseLock())

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second owner never acquired the lock after the outermost release")
	}

	require.NoError(t, ownerB.ReleaseLock())
}

func TestReentrantReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	lock := locks.NewReentrant(locks.NewLocalLock())

	var notAcquired locks.ErrNotAcquired
	require.ErrorAs(t, lock.ReleaseLock(), &notAcquired)
}

func TestWithLockReleasesOnActionError(t *testing.T) {
	t.Parallel()

	lock := locks.NewLocalLock()

	err := locks.WithLock(lock, func() error {
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// The lock must have been released despite the action failing.
	require.NoError(t, lock.AcquireLock())
	require.NoError(t, lock.ReleaseLock())
}

func TestNoopLockAlwaysSucceeds(t *testing.T) {
	t.Parallel()

	lock := locks.NewNoopLock()

	require.NoError(t, lock.AcquireLock())
	require.NoError(t, lock.ReleaseLock())
	require.NoError(t, lock.ReleaseLock())
}

func TestFileLockReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	lock := locks.NewFileLock(t.TempDir() + "/bump.lock")

	var notAcquired locks.ErrNotAcquired
	require.ErrorAs(t, lock.ReleaseLock(), &notAcquired)
}

func TestFileLockAcquireRelease(t *testing.T) {
	t.Parallel()

	lock := locks.NewFileLock(t.TempDir() + "/bump.lock")

	require.NoError(t, lock.AcquireLock())
	require.NoError(t, lock.ReleaseLock())
}
