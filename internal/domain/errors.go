package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint (slug, domain, email)
	// would be violated.
	ErrDuplicate = errors.New("already exists")

	// ErrMailboxExists is returned by the mail platform client when the account
	// is already present. Provisioning treats it as success.
	ErrMailboxExists = errors.New("mailbox already exists")

	// ErrMailboxNotFound is returned by the mail platform client when the
	// account is absent. Deprovisioning treats it as success.
	ErrMailboxNotFound = errors.New("mailbox not found")
)

// ValidationError is a user-facing rejection of malformed input. It never
// carries side effects and is reported synchronously.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation rejection.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// TransientError marks an external failure (network, timeout, 5xx) that the
// job queue should retry with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is eligible for a queue retry.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
