// Package errors holds the sentinel errors shared by the archive, HILOW and
// rollup packages, plus helpers for wrapping and classifying them.
package errors

import (
	"errors"
	"fmt"
)

var (
	// Archive write-time integrity
	ErrDuplicateTimestamp = errors.New("archive record already exists at timestamp")
	ErrOutOfOrder         = errors.New("archive record timestamp is not newer than the newest stored record")

	// Read miss. Callers that treat "no data" as a zero result should check for it.
	ErrNotFound = errors.New("not found")

	// Finalize-time station health signal
	ErrNoSamplesThisInterval = errors.New("no samples received this archive interval")

	// Durable store failures
	ErrStoreIO        = errors.New("store I/O failure")
	ErrSchemaMissing  = errors.New("schema missing")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// Is is a convenience wrapper for errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper for errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// StoreIO marks err as a durable-store failure for operation op. Both
// ErrStoreIO and the original cause remain reachable through errors.Is.
func StoreIO(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreIO, err)
}

// IsStoreIO returns true if err is a durable-store failure.
func IsStoreIO(err error) bool {
	return errors.Is(err, ErrStoreIO)
}

// IsNotFound returns true if err is a read miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIntegrity returns true if err was raised by archive write-time checks.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrDuplicateTimestamp) || errors.Is(err, ErrOutOfOrder)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
