/*
ledger.go - Append-only hours ledger

PURPOSE:
  Records how many hours each therapist worked on a given day and answers
  "how many hours in this window". The ledger is the only mutator in the
  engine; everything else is derived.

INVARIANTS:
  1. APPEND-ONLY: no update, no delete
  2. hours > 0 and finite on every entry
  3. Same-day entries are summed, never merged or overwritten

ORDERING:
  Entries come back in insertion order. Sorting by date for display is the
  caller's job.

CONCURRENCY:
  Two concurrent appends for the same therapist and day do not conflict;
  both count toward the total.
*/
package payroll

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HoursLedger is the hours side of the engine.
type HoursLedger interface {
	// AddEntry validates and appends. Returns ErrInvalidHours on hours <= 0.
	AddEntry(ctx context.Context, therapistID TherapistID, date time.Time, hours decimal.Decimal) (HoursEntry, error)

	// TotalHours sums entries dated within [start, end]. Zero when none match.
	TotalHours(ctx context.Context, therapistID TherapistID, start, end time.Time) (decimal.Decimal, error)

	// Entries yields the therapist's entries in insertion order. The store is
	// read when the sequence is ranged over, and again on every new range.
	Entries(ctx context.Context, therapistID TherapistID) iter.Seq2[HoursEntry, error]
}

// =============================================================================
// DEFAULT LEDGER - Implementation using HoursStore
// =============================================================================

type DefaultLedger struct {
	Store HoursStore

	// Now stamps CreatedAt; tests pin it.
	Now func() time.Time
}

func NewLedger(store HoursStore) *DefaultLedger {
	return &DefaultLedger{Store: store, Now: time.Now}
}

func (l *DefaultLedger) AddEntry(ctx context.Context, therapistID TherapistID, date time.Time, hours decimal.Decimal) (HoursEntry, error) {
	if !hours.IsPositive() {
		return HoursEntry{}, &InvalidHoursError{Raw: hours.String()}
	}
	entry := HoursEntry{
		ID:          EntryID(uuid.NewString()),
		TherapistID: therapistID,
		Date:        Date(date),
		Hours:       hours,
		CreatedAt:   l.Now().UTC(),
	}
	if err := l.Store.AppendHours(ctx, entry); err != nil {
		return HoursEntry{}, err
	}
	return entry, nil
}

// AddHours is AddEntry for raw float input, rejecting NaN and infinities.
func (l *DefaultLedger) AddHours(ctx context.Context, therapistID TherapistID, date time.Time, hours float64) (HoursEntry, error) {
	h, err := NewHours(hours)
	if err != nil {
		return HoursEntry{}, err
	}
	return l.AddEntry(ctx, therapistID, date, h)
}

func (l *DefaultLedger) TotalHours(ctx context.Context, therapistID TherapistID, start, end time.Time) (decimal.Decimal, error) {
	if end.Before(start) {
		return decimal.Zero, nil
	}
	return l.Store.SumHours(ctx, therapistID, Date(start), Date(end))
}

func (l *DefaultLedger) Entries(ctx context.Context, therapistID TherapistID) iter.Seq2[HoursEntry, error] {
	return func(yield func(HoursEntry, error) bool) {
		entries, err := l.Store.LoadHours(ctx, therapistID)
		if err != nil {
			yield(HoursEntry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// CollectEntries drains Entries into a slice.
func CollectEntries(seq iter.Seq2[HoursEntry, error]) ([]HoursEntry, error) {
	var out []HoursEntry
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
