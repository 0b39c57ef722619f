/*
store.go - Persistence interfaces for hours, profiles and sales

APPEND-ONLY CONTRACT:
  HoursStore and SaleStore expose no Update or Delete. Corrections to hours
  are made by the surrounding application, outside this engine.

IMPLEMENTATIONS:
  - payroll/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: Embedded SQLite
  - store/postgres/postgres.go: PostgreSQL via pgx
*/
package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// HoursStore persists hours entries. APPEND-ONLY.
type HoursStore interface {
	// AppendHours persists one entry. Same-day entries are kept side by side.
	AppendHours(ctx context.Context, entry HoursEntry) error

	// LoadHours returns all entries for a therapist in insertion order.
	LoadHours(ctx context.Context, therapistID TherapistID) ([]HoursEntry, error)

	// SumHours totals entries whose date lies in [from, to] (calendar days).
	SumHours(ctx context.Context, therapistID TherapistID, from, to time.Time) (decimal.Decimal, error)
}

// ProfileStore is the therapist directory plus the writes user management
// needs to keep it populated.
type ProfileStore interface {
	Directory

	// SaveProfile inserts or replaces a profile.
	SaveProfile(ctx context.Context, p Profile) error
}

// Directory is the read side the engine depends on.
type Directory interface {
	// Profile returns ErrMissingProfile (as *MissingProfileError) when absent.
	Profile(ctx context.Context, id TherapistID) (Profile, error)

	// ListProfiles returns all profiles ordered by name.
	ListProfiles(ctx context.Context) ([]Profile, error)
}

// SaleStore persists recorded sales. APPEND-ONLY.
type SaleStore interface {
	RevenueLookup

	AppendSale(ctx context.Context, sale Sale) error

	// TotalRevenue sums item revenue of every sale in [start, end].
	TotalRevenue(ctx context.Context, start, end time.Time) (decimal.Decimal, error)

	// RevenueByGroup totals item revenue and units sold per group for
	// sales in [start, end]. Line order is unspecified.
	RevenueByGroup(ctx context.Context, group ReportGroup, start, end time.Time) ([]RevenueGroupTotal, error)
}

// Store is everything the engine and API need from one backend.
type Store interface {
	HoursStore
	ProfileStore
	SaleStore
}
