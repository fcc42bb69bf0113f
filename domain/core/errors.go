package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Input validation errors. These abort the operation at the boundary.
	ErrInputValidation      = errors.New("input validation failed")
	ErrInvalidFeatureVector = fmt.Errorf("%w: invalid feature vector", ErrInputValidation)
	ErrInvalidFormula       = fmt.Errorf("%w: invalid formula definition", ErrInputValidation)
	ErrInvalidConfig        = fmt.Errorf("%w: invalid configuration", ErrInputValidation)
	ErrUnknownFormula       = fmt.Errorf("%w: unknown formula type", ErrInputValidation)
	ErrInvalidMessage       = fmt.Errorf("%w: invalid secret message", ErrInputValidation)
	ErrInvalidName          = fmt.Errorf("%w: name has no letters", ErrInputValidation)

	// Data availability errors. These are isolated per domain and surfaced as warnings.
	ErrInsufficientData   = errors.New("insufficient data for analysis")
	ErrDatasetUnavailable = errors.New("domain dataset unavailable")

	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrHistoryNotFound = fmt.Errorf("%w: evolution history", ErrNotFound)
	ErrJobNotFound     = fmt.Errorf("%w: evolution job", ErrNotFound)

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrSeedMismatch     = errors.New("seed mismatch")
)

// NewFeatureError reports a malformed feature on a vector.
func NewFeatureError(feature string, reason string) error {
	return fmt.Errorf("%w: feature %s %s", ErrInvalidFeatureVector, feature, reason)
}

// NewConfigError reports an out-of-bounds configuration field.
func NewConfigError(field string, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrInvalidConfig, field, reason)
}

// NewInsufficientDataError reports a domain below the minimum sample size.
func NewInsufficientDataError(domain string, got, want int) error {
	return fmt.Errorf("%w: domain %s has %d entities, need %d", ErrInsufficientData, domain, got, want)
}

// Error checking helpers
func IsInputValidationError(err error) bool {
	return errors.Is(err, ErrInputValidation)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrSeedMismatch)
}
