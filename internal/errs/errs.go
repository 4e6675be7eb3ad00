package errs

import (
	"errors"
	"fmt"
)

// Domain error taxonomy. Handlers map these onto HTTP statuses; services
// wrap them with context via fmt.Errorf("...: %w", err).
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicate         = errors.New("duplicate reference")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSignature         = errors.New("invalid webhook signature")
	ErrUnsupported       = errors.New("operation not supported by provider")
)

// ValidationError marks malformed or ineligible input. Never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ProviderError wraps an upstream processor failure. Retryable is a hint
// for callers that own a retry schedule; compensation still runs either way.
type ProviderError struct {
	Provider  string
	Op        string
	Code      string
	Msg       string
	Retryable bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %s (%s)", e.Provider, e.Op, e.Msg, e.Code)
}

func IsProvider(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
