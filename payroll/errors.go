/*
errors.go - Centralized error types for the compensation engine

ERROR CATEGORIES:
  1. Input errors - invalid hours, profiles, sales, periods, report groups
  2. Lookup errors - missing therapist profile

Every error is reported to the immediate caller. Nothing inside the engine
retries: there is no transient failure mode in the calculator itself.

USAGE:
  if errors.Is(err, payroll.ErrInvalidHours) {
      // reject the entry, surface to the user
  }
*/
package payroll

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidHours is returned for non-positive or non-finite hours.
	ErrInvalidHours = errors.New("invalid hours")

	// ErrMissingProfile is returned when no therapist profile exists for an id.
	ErrMissingProfile = errors.New("therapist profile not found")

	// ErrInvalidProfile is returned by NewProfile on a malformed profile.
	ErrInvalidProfile = errors.New("invalid therapist profile")

	// ErrInconsistentSale is returned when a sale's items, subtotal and total disagree.
	ErrInconsistentSale = errors.New("inconsistent sale")

	// ErrInvalidPeriod is returned for unknown period kinds or end-before-start windows.
	ErrInvalidPeriod = errors.New("invalid period")

	ErrInvalidReportGroup = errors.New("invalid report group")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidHoursError keeps the rejected raw value for the caller's message.
type InvalidHoursError struct {
	Raw string
}

func (e *InvalidHoursError) Error() string {
	return fmt.Sprintf("invalid hours %q: must be a finite number greater than 0", e.Raw)
}

func (e *InvalidHoursError) Unwrap() error { return ErrInvalidHours }

// MissingProfileError names the therapist that could not be found.
type MissingProfileError struct {
	TherapistID TherapistID
}

func (e *MissingProfileError) Error() string {
	return fmt.Sprintf("therapist profile not found: %s", e.TherapistID)
}

func (e *MissingProfileError) Unwrap() error { return ErrMissingProfile }

type InvalidProfileError struct {
	Field  string
	Reason string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid profile %s: %s", e.Field, e.Reason)
}

func (e *InvalidProfileError) Unwrap() error { return ErrInvalidProfile }

// InconsistentSaleError reports which reconciliation check failed.
type InconsistentSaleError struct {
	SaleID   SaleID
	Reason   string
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *InconsistentSaleError) Error() string {
	if e.Expected.IsZero() && e.Actual.IsZero() {
		return fmt.Sprintf("inconsistent sale %s: %s", e.SaleID, e.Reason)
	}
	return fmt.Sprintf("inconsistent sale %s: %s (expected %s, got %s)",
		e.SaleID, e.Reason, e.Expected.StringFixed(2), e.Actual.StringFixed(2))
}

func (e *InconsistentSaleError) Unwrap() error { return ErrInconsistentSale }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidProfile) ||
		errors.Is(err, ErrInconsistentSale) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidReportGroup)
}

// IsNotFound returns true if the error indicates a missing therapist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMissingProfile)
}
