// Package store provides Store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	hours    map[payroll.TherapistID][]payroll.HoursEntry
	profiles map[payroll.TherapistID]payroll.Profile
	sales    []payroll.Sale
	saleIDs  map[payroll.SaleID]bool
}

var _ payroll.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		hours:    make(map[payroll.TherapistID][]payroll.HoursEntry),
		profiles: make(map[payroll.TherapistID]payroll.Profile),
		saleIDs:  make(map[payroll.SaleID]bool),
	}
}

// =============================================================================
// HOURS
// =============================================================================

// AppendHours adds a single entry at the end of the therapist's list. Append-only.
func (m *Memory) AppendHours(_ context.Context, entry payroll.HoursEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hours[entry.TherapistID] = append(m.hours[entry.TherapistID], entry)
	return nil
}

func (m *Memory) LoadHours(_ context.Context, therapistID payroll.TherapistID) ([]payroll.HoursEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payroll.HoursEntry, len(m.hours[therapistID]))
	copy(result, m.hours[therapistID])
	return result, nil
}

func (m *Memory) SumHours(_ context.Context, therapistID payroll.TherapistID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := payroll.Window{Start: from, End: to}
	total := decimal.Zero
	for _, e := range m.hours[therapistID] {
		if window.ContainsDate(e.Date) {
			total = total.Add(e.Hours)
		}
	}
	return total, nil
}

// =============================================================================
// PROFILES
// =============================================================================

func (m *Memory) SaveProfile(_ context.Context, p payroll.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
	return nil
}

func (m *Memory) Profile(_ context.Context, id payroll.TherapistID) (payroll.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[id]
	if !ok {
		return payroll.Profile{}, &payroll.MissingProfileError{TherapistID: id}
	}
	return p, nil
}

func (m *Memory) ListProfiles(_ context.Context) ([]payroll.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payroll.Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name == result[j].Name {
			return result[i].ID < result[j].ID
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// =============================================================================
// SALES
// =============================================================================

// AppendSale adds a sale. A repeated sale ID is ignored so client retries
// do not double count revenue.
func (m *Memory) AppendSale(_ context.Context, sale payroll.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saleIDs[sale.ID] {
		return nil
	}
	sale.Items = append([]payroll.LineItem(nil), sale.Items...)
	m.sales = append(m.sales, sale)
	m.saleIDs[sale.ID] = true
	return nil
}

func (m *Memory) RevenueFor(_ context.Context, therapistID payroll.TherapistID, start, end time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumSales(start, end, func(s payroll.Sale) bool { return s.TherapistID == therapistID }), nil
}

func (m *Memory) TotalRevenue(_ context.Context, start, end time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sumSales(start, end, func(payroll.Sale) bool { return true }), nil
}

func (m *Memory) sumSales(start, end time.Time, match func(payroll.Sale) bool) decimal.Decimal {
	window := payroll.Window{Start: start, End: end}
	total := decimal.Zero
	for _, s := range m.sales {
		if match(s) && window.Contains(s.Date) {
			total = total.Add(payroll.ItemsRevenue(s))
		}
	}
	return total
}

func (m *Memory) RevenueByGroup(_ context.Context, group payroll.ReportGroup, start, end time.Time) ([]payroll.RevenueGroupTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := payroll.Window{Start: start, End: end}
	grouper := payroll.NewRevenueGrouper(group)
	for _, s := range m.sales {
		if window.Contains(s.Date) {
			grouper.Add(s)
		}
	}
	return grouper.Totals(), nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hours = make(map[payroll.TherapistID][]payroll.HoursEntry)
	m.profiles = make(map[payroll.TherapistID]payroll.Profile)
	m.sales = nil
	m.saleIDs = make(map[payroll.SaleID]bool)
	return nil
}
