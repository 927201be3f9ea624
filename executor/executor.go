// Package executor runs migration tasks concurrently under one of three execution modes:
// goroutines within one process, workers serialized across OS processes on the same
// host, or a distributed fleet coordinated through DynamoDB. Each worker resolves its
// lock handle once, at startup, via an initializer, so migration code never touches
// global mutable state to find "the lock".
package executor

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/condatools/recipebump/internal/errors"
	"github.com/condatools/recipebump/locks"
)

// Kind selects the execution mode of a pool.
type Kind string

const (
	// KindThread runs workers as goroutines sharing one in-process lock.
	KindThread Kind = "thread"

	// KindProcess runs workers that serialize against other recipebump processes on the
	// same host through a lock file.
	KindProcess Kind = "process"

	// KindCluster runs workers that serialize against a distributed fleet through a
	// named DynamoDB lock.
	KindCluster Kind = "cluster"

	// KindNone runs tasks sequentially with a no-op lock.
	KindNone Kind = "none"
)

// Kinds lists every supported execution mode.
var Kinds = []Kind{KindThread, KindProcess, KindCluster, KindNone}

// Task is one unit of migration work. The lock passed in is the worker's own reentrant
// handle over the pool's shared backend; it guards only the narrow shared resource and
// must never be held across network fetches.
type Task func(lock locks.Lock) error

// Config carries the settings needed to construct lock backends per execution mode.
type Config struct {
	Kind       Kind
	MaxWorkers int

	// LockDir is where the process-mode lock file lives.
	LockDir string

	// LockName, LockTable and AwsRegion configure the cluster-mode DynamoDB lock.
	LockName  string
	LockTable string
	AwsRegion string
}

// initializer resolves a worker's lock handle at startup.
type initializer func() (locks.Lock, error)

// Pool executes tasks on a fixed set of workers. Every worker holds its own reentrant
// lock handle, constructed by the pool's initializer when the worker starts and torn
// down when the pool stops.
type Pool struct {
	tasks     chan Task
	wg        sync.WaitGroup
	mu        sync.Mutex
	allErrors *multierror.Error
}

// NewPool starts a worker pool for the given execution mode.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	init, err := lockInitializer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	pool := &Pool{tasks: make(chan Task)}

	for i := 0; i < maxWorkers; i++ {
		pool.wg.Add(1)

		go pool.worker(init)
	}

	return pool, nil
}

// Submit hands a task to the pool, blocking until a worker picks it up.
func (pool *Pool) Submit(task Task) {
	pool.tasks <- task
}

// Wait stops accepting tasks, waits for all submitted tasks to complete, and returns the
// accumulated task errors, if any.
func (pool *Pool) Wait() error {
	close(pool.tasks)
	pool.wg.Wait()

	pool.mu.Lock()
	defer pool.mu.Unlock()

	return pool.allErrors.ErrorOrNil()
}

func (pool *Pool) worker(init initializer) {
	defer pool.wg.Done()

	lock, err := init()
	if err != nil {
		pool.recordError(err)

		// The worker cannot run without its lock handle; drain so Wait does not hang.
		for range pool.tasks {
		}

		return
	}

	for task := range pool.tasks {
		func() {
			defer errors.Recover(func(cause error) {
				pool.recordError(cause)
			})

			if err := task(lock); err != nil {
				pool.recordError(err)
			}
		}()
	}
}

func (pool *Pool) recordError(err error) {
	pool.mu.Lock()
	defer pool.mu.Unlock()

	pool.allErrors = multierror.Append(pool.allErrors, err)
}

// lockInitializer returns the per-worker lock constructor for the configured mode. The
// thread backend is shared directly; the process backend hands each worker the lock
// file path so the kernel arbitrates; the cluster backend is constructed by name inside
// each worker so all workers resolve to the same DynamoDB item.
func lockInitializer(ctx context.Context, cfg Config) (initializer, error) {
	switch cfg.Kind {
	case KindThread:
		shared := locks.NewLocalLock()

		return func() (locks.Lock, error) {
			return locks.NewReentrant(shared), nil
		}, nil
	case KindProcess:
		lockFile := filepath.Join(cfg.LockDir, "recipebump.lock")

		return func() (locks.Lock, error) {
			return locks.NewReentrant(locks.NewFileLock(lockFile)), nil
		}, nil
	case KindCluster:
		name := cfg.LockName
		if name == "" {
			name = "recipebump"
		}

		return func() (locks.Lock, error) {
			lock, err := locks.NewDynamoLock(ctx, name, cfg.LockTable, cfg.AwsRegion)
			if err != nil {
				return nil, err
			}

			return locks.NewReentrant(lock), nil
		}, nil
	case KindNone:
		return func() (locks.Lock, error) {
			return locks.NewNoopLock(), nil
		}, nil
	default:
		return nil, errors.Errorf("unknown execution mode %q", cfg.Kind)
	}
}
