// Package errors contains helper functions for wrapping errors with stack traces and panic recovery.
package errors

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Errorf creates a new error and wraps it in an Error type that contains the stack trace.
func Errorf(message string, args ...any) error {
	err := fmt.Errorf(message, args...)
	return goerrors.Wrap(err, 1)
}

// WithStackTrace wraps the given error in an Error type that contains the stack trace.
// If the given error is nil, return nil.
func WithStackTrace(err error) error {
	if err == nil {
		return nil
	}

	return goerrors.Wrap(err, 1)
}

// WithStackTraceAndPrefix wraps the given error in an Error type that contains the stack
// trace and has the given message prepended as part of the error message. If the given
// error is nil, return nil.
func WithStackTraceAndPrefix(err error, message string, args ...any) error {
	if err == nil {
		return nil
	}

	return goerrors.WrapPrefix(err, fmt.Sprintf(message, args...), 1)
}

// ErrorStack returns a string that contains both the error message and the callstack, or
// an empty string if the error carries no stack trace.
func ErrorStack(err error) string {
	for {
		if err, ok := err.(interface{ ErrorStack() string }); ok {
			return err.ErrorStack()
		}

		if err = errors.Unwrap(err); err == nil {
			return ""
		}
	}
}

// As finds the first error in err's tree that matches target, and if one is found, sets
// target to that error value and returns true. Otherwise, it returns false.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Recover tries to recover from panics, and if it succeeds, calls the given onPanic
// function with an error that explains the cause of the panic. This function should only
// be called from a defer statement.
func Recover(onPanic func(cause error)) {
	if rec := recover(); rec != nil {
		err, isError := rec.(error)
		if !isError {
			err = fmt.Errorf("%v", rec)
		}

		onPanic(WithStackTrace(err))
	}
}
