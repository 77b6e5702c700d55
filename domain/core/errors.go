package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Catalog errors
	ErrMetricNotFound = errors.New("metric not found in catalog")

	// Validation errors
	ErrMissingColumns  = errors.New("required columns missing")
	ErrNonNumeric      = errors.New("item column holds non-numeric values")
	ErrOutOfDomain     = errors.New("item values outside declared domain")
	ErrColumnNotFound  = errors.New("column not found")
	ErrColumnExists    = errors.New("column already exists")
	ErrLengthMismatch  = errors.New("column length mismatch")
	ErrDefinitionMixed = errors.New("datasets scored from different metric definitions")

	// Estimation errors
	ErrInsufficientData = errors.New("insufficient data for estimation")
	ErrNoConvergence    = errors.New("model fit did not converge")
	ErrSingularModel    = errors.New("model design matrix is singular")
	ErrEquityMismatch   = errors.New("equity group labels differ between timepoints")
)

// Error constructors with context
func NewMissingColumnsError(columns []string) error {
	return fmt.Errorf("%w: %v", ErrMissingColumns, columns)
}

func NewNonNumericError(columns []string) error {
	return fmt.Errorf("%w: %v", ErrNonNumeric, columns)
}

func NewOutOfDomainError(column string, domain string) error {
	return fmt.Errorf("%w: column %s expects %s", ErrOutOfDomain, column, domain)
}

func NewMetricNotFoundError(name string) error {
	return fmt.Errorf("%w: %q", ErrMetricNotFound, name)
}

func NewEquityMismatchError(onlyFirst, onlySecond []string) error {
	return fmt.Errorf("%w: only in first %v, only in second %v", ErrEquityMismatch, onlyFirst, onlySecond)
}

// Error checking helpers
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingColumns) ||
		errors.Is(err, ErrNonNumeric) ||
		errors.Is(err, ErrOutOfDomain)
}

func IsEstimationError(err error) bool {
	return errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNoConvergence) ||
		errors.Is(err, ErrSingularModel) ||
		errors.Is(err, ErrEquityMismatch)
}
