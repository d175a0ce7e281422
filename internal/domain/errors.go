package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrProviderFailure = errors.New("provider failure")
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UpstreamProviderError is returned when the real image provider fails. The
// message is surfaced to the caller unchanged.
type UpstreamProviderError struct {
	Message string
	Err     error
}

func (e *UpstreamProviderError) Error() string {
	return e.Message
}

func (e *UpstreamProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderFailure}
	}
	return []error{ErrProviderFailure, e.Err}
}

// ProxyUpstreamError carries the status returned by the host behind a
// canonical URL.
type ProxyUpstreamError struct {
	Status int
}

func (e *ProxyUpstreamError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.Status)
}
