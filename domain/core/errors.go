package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrEntityNotFound  = fmt.Errorf("%w: entity", ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column", ErrNotFound)
	ErrFeatureNotFound = fmt.Errorf("%w: feature vector", ErrNotFound)
	ErrResultNotFound  = fmt.Errorf("%w: test result", ErrNotFound)

	// Ingestion validation errors (class a: rejected at the boundary)
	ErrEmptyName     = errors.New("entity name is empty")
	ErrEmptyDomain   = errors.New("entity domain is empty")
	ErrInvalidRecord = errors.New("invalid entity record")

	// Configuration errors (class d: fail fast before computation)
	ErrUnknownTestKind   = errors.New("unknown test kind")
	ErrUnknownCorrection = errors.New("unknown correction method")
	ErrInvalidSpec       = errors.New("invalid test spec")

	// Determinism errors
	ErrVersionMismatch = errors.New("extractor version mismatch")
	ErrHashMismatch    = errors.New("hash mismatch")

	// Data errors
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrEmptyDataset     = errors.New("dataset has no rows")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewSpecError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidSpec, field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsIngestionError(err error) bool {
	return errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrEmptyDomain) ||
		errors.Is(err, ErrInvalidRecord)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownTestKind) ||
		errors.Is(err, ErrUnknownCorrection) ||
		errors.Is(err, ErrInvalidSpec)
}
