/*
Package payroll provides the therapist compensation engine.

PURPOSE:
  Turns logged therapist hours and attributed sales revenue into a
  compensation breakdown: wage, holiday pay, employer NIC, commission and
  the therapist/salon split. The engine never owns customer, service or
  authentication data; it reads therapist profiles from a directory and
  revenue from a sales feed.

KEY CONCEPTS IN THIS FILE (types.go):
  - TherapistID: opaque therapist identifier
  - EmploymentType: closed two-case variant (employed, self-employed)
  - Profile: the employment facts the calculator needs
  - HoursEntry: one append-only line of the hours ledger

DESIGN PRINCIPLES:
  1. Precision: money and hours are decimal.Decimal, never float64
  2. Validation at the boundary: NewProfile and NewHours reject bad input,
     the calculator never parses or validates
  3. Append-only: hours and sales are recorded, never edited

SEE ALSO:
  - commission.go: Breakdown computation
  - ledger.go: Hours ledger
  - period.go: Window arithmetic
  - engine.go: Orchestration of ledger + revenue + calculator
*/
package payroll

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TherapistID string
type EntryID string
type SaleID string

// =============================================================================
// EMPLOYMENT TYPE - Closed variant
// =============================================================================

// EmploymentType is either Employed or SelfEmployed. The zero value is
// invalid so an unset field never silently selects a branch.
type EmploymentType uint8

const (
	Employed EmploymentType = iota + 1
	SelfEmployed
)

// ParseEmploymentType accepts the wire names "employed" and "self-employed".
func ParseEmploymentType(s string) (EmploymentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "employed":
		return Employed, nil
	case "self-employed", "self_employed", "selfemployed":
		return SelfEmployed, nil
	default:
		return 0, &InvalidProfileError{Field: "employment_type", Reason: fmt.Sprintf("unknown employment type %q", s)}
	}
}

func (e EmploymentType) String() string {
	switch e {
	case Employed:
		return "employed"
	case SelfEmployed:
		return "self-employed"
	default:
		return "unknown"
	}
}

func (e EmploymentType) Valid() bool { return e == Employed || e == SelfEmployed }

// =============================================================================
// PROFILE - Read-only view of a therapist's employment
// =============================================================================

// Profile is owned by user management; the engine only reads it.
type Profile struct {
	ID             TherapistID
	Name           string
	EmploymentType EmploymentType
	// HourlyRate is positive for employed therapists and zero otherwise.
	HourlyRate decimal.Decimal
}

// NewProfile builds a validated profile. Employed therapists need a positive
// hourly rate; for self-employed therapists the rate is dropped.
func NewProfile(id TherapistID, name string, employment EmploymentType, hourlyRate decimal.Decimal) (Profile, error) {
	if strings.TrimSpace(string(id)) == "" {
		return Profile{}, &InvalidProfileError{Field: "id", Reason: "therapist id is required"}
	}
	if !employment.Valid() {
		return Profile{}, &InvalidProfileError{Field: "employment_type", Reason: "employment type is required"}
	}
	p := Profile{ID: id, Name: strings.TrimSpace(name), EmploymentType: employment}
	if employment == Employed {
		if !hourlyRate.IsPositive() {
			return Profile{}, &InvalidProfileError{Field: "hourly_rate", Reason: "hourly rate must be greater than 0 for employed therapists"}
		}
		p.HourlyRate = hourlyRate
	} else {
		p.HourlyRate = decimal.Zero
	}
	return p, nil
}

// =============================================================================
// HOURS
// =============================================================================

// NewHours converts a raw number of hours into a decimal, rejecting
// non-finite and non-positive values.
func NewHours(h float64) (decimal.Decimal, error) {
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return decimal.Zero, &InvalidHoursError{Raw: fmt.Sprint(h)}
	}
	return decimal.NewFromFloat(h), nil
}

// ParseHours is NewHours for form and JSON string input.
func ParseHours(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, &InvalidHoursError{Raw: s}
	}
	return d, nil
}

// HoursEntry is one line of the hours ledger. Several entries on the same
// day are all counted.
type HoursEntry struct {
	ID          EntryID
	TherapistID TherapistID
	Date        time.Time // calendar date, midnight UTC
	Hours       decimal.Decimal
	CreatedAt   time.Time
}

// =============================================================================
// DATES
// =============================================================================

const DateLayout = "2006-01-02"

// Date strips the clock from t and returns its calendar day as midnight UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
