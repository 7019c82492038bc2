package domain

import "errors"

// ValidationError indicates input rejected before any network call was
// made. It is never retried automatically.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Is allows errors.Is matching against ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Sentinel for errors.Is checks.
var ErrValidation = errors.New("validation failed")

// IsValidation reports whether err is (or wraps) a validation rejection.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
