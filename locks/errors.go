package locks

// Custom error types

// ErrNotAcquired is returned when releasing a lock that has no matching acquire. This is
// a programming error in the caller's lock discipline, not a transient condition.
type ErrNotAcquired struct {
	Lock string
}

func (err ErrNotAcquired) Error() string {
	return "cannot release " + err.Lock + ": lock is not acquired"
}
