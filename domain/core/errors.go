package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors - detected before any statistic is produced
	ErrConfiguration     = errors.New("invalid configuration")
	ErrRankDeficient     = fmt.Errorf("%w: design matrix is not full column rank", ErrConfiguration)
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrConfiguration)
	ErrNullMismatch      = fmt.Errorf("%w: null distribution parameterization does not match", ErrConfiguration)
	ErrInsufficientData  = fmt.Errorf("%w: insufficient observations", ErrConfiguration)

	// Statistic errors
	ErrUndefinedStatistic = errors.New("undefined statistic: zero-variance sample")

	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: batch run", ErrNotFound)
)

// Error constructors with context
func NewConfigurationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, reason)
}

func NewDimensionError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d rows, expected %d", ErrDimensionMismatch, what, got, want)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func IsUndefinedStatistic(err error) bool {
	return errors.Is(err, ErrUndefinedStatistic)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
