package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestStore_Profiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	beth, _ := payroll.NewProfile("th-2", "Beth", payroll.SelfEmployed, decimal.Zero)
	amy, _ := payroll.NewProfile("th-1", "Amy", payroll.Employed, d("12.50"))
	require.NoError(t, store.SaveProfile(ctx, beth))
	require.NoError(t, store.SaveProfile(ctx, amy))

	got, err := store.Profile(ctx, "th-1")
	require.NoError(t, err)
	assert.Equal(t, "Amy", got.Name)
	assert.Equal(t, payroll.Employed, got.EmploymentType)
	assert.True(t, d("12.5").Equal(got.HourlyRate))

	list, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Amy", list[0].Name)
	assert.Equal(t, "Beth", list[1].Name)

	// Upsert replaces in place.
	amy.HourlyRate = d("13")
	require.NoError(t, store.SaveProfile(ctx, amy))
	got, err = store.Profile(ctx, "th-1")
	require.NoError(t, err)
	assert.True(t, d("13").Equal(got.HourlyRate))
}

func TestStore_Profile_Missing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Profile(context.Background(), "ghost")
	assert.ErrorIs(t, err, payroll.ErrMissingProfile)
}

func TestStore_Hours(t *testing.T) {
	// GIVEN: entries written through the ledger, out of date order
	// THEN: load keeps insertion order and sums are exact

	store := newTestStore(t)
	ctx := context.Background()
	ledger := payroll.NewLedger(store)

	_, err := ledger.AddEntry(ctx, "th-1", day(2024, 3, 10), d("7.25"))
	require.NoError(t, err)
	_, err = ledger.AddEntry(ctx, "th-1", day(2024, 3, 2), d("0.1"))
	require.NoError(t, err)
	_, err = ledger.AddEntry(ctx, "th-1", day(2024, 3, 2), d("0.2"))
	require.NoError(t, err)
	_, err = ledger.AddEntry(ctx, "th-1", day(2024, 4, 1), d("8"))
	require.NoError(t, err)

	entries, err := store.LoadHours(ctx, "th-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, day(2024, 3, 10), entries[0].Date)
	assert.Equal(t, day(2024, 3, 2), entries[1].Date)

	w := payroll.WindowFor(payroll.PeriodMonth, day(2024, 3, 15))
	total, err := ledger.TotalHours(ctx, "th-1", w.Start, w.End)
	require.NoError(t, err)
	assert.True(t, d("7.55").Equal(total), "got %s", total)
}

func TestStore_Sales_RevenueAndIdempotency(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sale := payroll.Sale{
		ID:          "s-1",
		Date:        time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		TherapistID: "th-1",
		Items: []payroll.LineItem{
			{Name: "Massage", Price: d("45"), Quantity: 2, Discount: d("5")},
			{Name: "Oil", Price: d("12.50"), Quantity: 1, Discount: decimal.Zero},
		},
		Subtotal:      d("102.50"),
		Discount:      d("5"),
		Total:         d("97.50"),
		PaymentMethod: payroll.PaymentCard,
		Status:        payroll.SaleCompleted,
	}
	require.NoError(t, store.AppendSale(ctx, sale))
	require.NoError(t, store.AppendSale(ctx, sale), "replayed sale is ignored")

	other := sale
	other.ID = "s-2"
	other.TherapistID = "th-2"
	other.Date = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendSale(ctx, other))

	march := payroll.WindowFor(payroll.PeriodMonth, day(2024, 3, 1))
	rev, err := store.RevenueFor(ctx, "th-1", march.Start, march.End)
	require.NoError(t, err)
	assert.True(t, d("97.5").Equal(rev), "got %s", rev)

	all, err := store.TotalRevenue(ctx, march.Start, march.End)
	require.NoError(t, err)
	assert.True(t, d("97.5").Equal(all), "april sale excluded, got %s", all)
}

func TestStore_EngineRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	amy, _ := payroll.NewProfile("th-1", "Amy", payroll.Employed, d("12"))
	require.NoError(t, store.SaveProfile(ctx, amy))

	engine := payroll.NewEngine(store, nil)
	for i := 1; i <= 20; i++ {
		_, err := engine.AddHoursEntry(ctx, "th-1", day(2024, 2, i), d("8"))
		require.NoError(t, err)
	}
	_, err := engine.RecordSale(ctx, payroll.Sale{
		Date:          time.Date(2024, 2, 12, 15, 0, 0, 0, time.UTC),
		TherapistID:   "th-1",
		Items:         []payroll.LineItem{{Name: "Package", Price: d("3000"), Quantity: 1, Discount: decimal.Zero}},
		Subtotal:      d("3000"),
		Discount:      decimal.Zero,
		Total:         d("3000"),
		PaymentMethod: payroll.PaymentCash,
	})
	require.NoError(t, err)

	c, err := engine.CommissionFor(ctx, "th-1", payroll.PeriodMonth, day(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, d("1978.464").Equal(c.Breakdown.TherapistShare), "got %s", c.Breakdown.TherapistShare)
}

func TestStore_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	amy, _ := payroll.NewProfile("th-1", "Amy", payroll.Employed, d("12"))
	require.NoError(t, store.SaveProfile(ctx, amy))
	require.NoError(t, store.Reset(ctx))

	list, err := store.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStore_RevenueByGroup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sales := []payroll.Sale{
		{
			ID: "s-1", Date: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
			TherapistID: "th-1", TherapistName: "Amy", CustomerID: "c-1", CustomerName: "Zoe",
			Items: []payroll.LineItem{
				{Name: "Massage", Category: "service", Price: d("45"), Quantity: 2, Discount: d("9")},
				{Name: "Oil", Category: "product", Price: d("12.50"), Quantity: 1, Discount: d("1.25")},
			},
		},
		{
			ID: "s-2", Date: time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC),
			TherapistID: "th-2", CustomerName: "Walk-in",
			Items: []payroll.LineItem{{Name: "Massage", Category: "service", Price: d("45"), Quantity: 1, Discount: decimal.Zero}},
		},
		{
			ID: "s-3", Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			TherapistID: "th-1",
			Items:       []payroll.LineItem{{Name: "Facial", Price: d("60"), Quantity: 1, Discount: decimal.Zero}},
		},
	}
	for _, s := range sales {
		s.Subtotal = payroll.GrossItemsTotal(s)
		s.Total = payroll.ItemsRevenue(s)
		s.Discount = s.Subtotal.Sub(s.Total)
		s.PaymentMethod = payroll.PaymentCash
		s.Status = payroll.SaleCompleted
		require.NoError(t, store.AppendSale(ctx, s))
	}

	march := payroll.WindowFor(payroll.PeriodMonth, day(2024, 3, 1))
	byKey := func(group payroll.ReportGroup) map[string]payroll.RevenueGroupTotal {
		lines, err := store.RevenueByGroup(ctx, group, march.Start, march.End)
		require.NoError(t, err)
		out := make(map[string]payroll.RevenueGroupTotal, len(lines))
		for _, l := range lines {
			out[l.Key] = l
		}
		return out
	}

	therapists := byKey(payroll.GroupTherapist)
	require.Len(t, therapists, 2, "april sale excluded")
	assert.Equal(t, "Amy", therapists["th-1"].Label)
	assert.True(t, d("92.25").Equal(therapists["th-1"].Amount), "got %s", therapists["th-1"].Amount)
	assert.EqualValues(t, 3, therapists["th-1"].Count)
	assert.Empty(t, therapists["th-2"].Label)

	customers := byKey(payroll.GroupCustomer)
	require.Len(t, customers, 2)
	assert.Equal(t, "Zoe", customers["c-1"].Label)
	assert.True(t, d("45").Equal(customers["Walk-in"].Amount))

	services := byKey(payroll.GroupService)
	require.Len(t, services, 2)
	assert.True(t, d("126").Equal(services["Massage"].Amount), "got %s", services["Massage"].Amount)
	assert.EqualValues(t, 3, services["Massage"].Count)
	assert.Equal(t, "product", services["Oil"].Category)
}

func TestStore_LoadHours_BadCreatedAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "salon.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	require.NoError(t, store.AppendHours(ctx, payroll.HoursEntry{
		ID: "e-1", TherapistID: "th-1", Date: day(2024, 3, 1), Hours: d("8"), CreatedAt: time.Now(),
	}))

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer raw.Close()
	_, err = raw.ExecContext(ctx, `UPDATE hours_entries SET created_at = 'yesterday' WHERE id = 'e-1'`)
	require.NoError(t, err)

	_, err = store.LoadHours(ctx, "th-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "created_at")
}
