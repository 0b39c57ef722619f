package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/warp/salon-engine/payroll"
	"github.com/warp/salon-engine/store/postgres"
)

// setupStore starts a throwaway PostgreSQL container, migrates it and
// returns a connected store.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("salon_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		tcpostgres.BasicWaitStrategies(),
		testcontainers.WithLabels(map[string]string{
			"test":      "salon-store",
			"test-name": t.Name(),
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate test container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.MigrateUp(url))

	assertVersion(t, url, 3)

	// The latest migration rolls back and re-applies cleanly.
	assert.Error(t, postgres.MigrateDown(url, 0))
	require.NoError(t, postgres.MigrateDown(url, 1))
	assertVersion(t, url, 2)
	require.NoError(t, postgres.MigrateUp(url))
	assertVersion(t, url, 3)

	store, err := postgres.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func assertVersion(t *testing.T, url string, want uint) {
	t.Helper()
	version, dirty, err := postgres.MigrationVersion(url)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, want, version)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, dd int) time.Time {
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
}

func TestPostgresStore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	amy, err := payroll.NewProfile("th-1", "Amy", payroll.Employed, d("12"))
	require.NoError(t, err)
	beth, err := payroll.NewProfile("th-2", "Beth", payroll.SelfEmployed, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, store.SaveProfile(ctx, beth))
	require.NoError(t, store.SaveProfile(ctx, amy))

	t.Run("profiles", func(t *testing.T) {
		list, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Amy", list[0].Name)
		assert.True(t, d("12").Equal(list[0].HourlyRate))

		_, err = store.Profile(ctx, "ghost")
		assert.ErrorIs(t, err, payroll.ErrMissingProfile)
	})

	engine := payroll.NewEngine(store, nil)

	t.Run("hours keep insertion order", func(t *testing.T) {
		_, err := engine.AddHoursEntry(ctx, "th-1", day(2024, 2, 20), d("8"))
		require.NoError(t, err)
		_, err = engine.AddHoursEntry(ctx, "th-1", day(2024, 2, 1), d("0.25"))
		require.NoError(t, err)

		entries, err := store.LoadHours(ctx, "th-1")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, day(2024, 2, 20), entries[0].Date)
		assert.Equal(t, "0.25", entries[1].Hours.String())
	})

	t.Run("commission over stored data", func(t *testing.T) {
		sale := payroll.Sale{
			ID:            "s-1",
			Date:          time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC),
			TherapistID:   "th-2",
			Items:         []payroll.LineItem{{Name: "Facial", Price: d("250"), Quantity: 4, Discount: decimal.Zero}},
			Subtotal:      d("1000"),
			Discount:      decimal.Zero,
			Total:         d("1000"),
			PaymentMethod: payroll.PaymentCard,
		}
		_, err := engine.RecordSale(ctx, sale)
		require.NoError(t, err)
		_, err = engine.RecordSale(ctx, sale)
		require.NoError(t, err, "replay is ignored")

		c, err := engine.CommissionFor(ctx, "th-2", payroll.PeriodMonth, day(2024, 2, 1))
		require.NoError(t, err)
		assert.True(t, d("400").Equal(c.Breakdown.TherapistShare), "got %s", c.Breakdown.TherapistShare)

		hours, err := store.SumHours(ctx, "th-1", day(2024, 2, 1), day(2024, 2, 29))
		require.NoError(t, err)
		assert.True(t, d("8.25").Equal(hours), "got %s", hours)
	})

	t.Run("values keep full precision", func(t *testing.T) {
		cara, err := payroll.NewProfile("th-3", "Cara", payroll.Employed, d("11.44444"))
		require.NoError(t, err)
		require.NoError(t, store.SaveProfile(ctx, cara))

		_, err = engine.AddHoursEntry(ctx, "th-3", day(2024, 3, 4), d("7.33333"))
		require.NoError(t, err)

		_, err = engine.RecordSale(ctx, payroll.Sale{
			ID:            "s-precise",
			Date:          time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC),
			TherapistID:   "th-3",
			Items:         []payroll.LineItem{{Name: "Brow shape", Price: d("10.005"), Quantity: 3, Discount: d("0.00001")}},
			Subtotal:      d("30.015"),
			Discount:      d("0.00001"),
			Total:         d("30.01499"),
			PaymentMethod: payroll.PaymentCash,
		})
		require.NoError(t, err)

		got, err := store.Profile(ctx, "th-3")
		require.NoError(t, err)
		assert.True(t, d("11.44444").Equal(got.HourlyRate), "rate %s", got.HourlyRate)

		march := payroll.WindowFor(payroll.PeriodMonth, day(2024, 3, 1))
		hours, err := store.SumHours(ctx, "th-3", march.Start, march.End)
		require.NoError(t, err)
		assert.True(t, d("7.33333").Equal(hours), "hours %s", hours)

		revenue, err := store.RevenueFor(ctx, "th-3", march.Start, march.End)
		require.NoError(t, err)
		assert.True(t, d("30.01499").Equal(revenue), "revenue %s", revenue)
	})

	t.Run("revenue by group", func(t *testing.T) {
		sales := []payroll.Sale{
			{
				ID: "s-g1", Date: time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC),
				TherapistID: "th-1", TherapistName: "Amy", CustomerID: "c-1", CustomerName: "Zoe",
				Items: []payroll.LineItem{
					{Name: "Massage", Category: "service", Price: d("45"), Quantity: 2, Discount: d("9")},
					{Name: "Oil", Category: "product", Price: d("12.50"), Quantity: 1, Discount: d("1.25")},
				},
			},
			{
				ID: "s-g2", Date: time.Date(2024, 4, 3, 10, 0, 0, 0, time.UTC),
				TherapistID: "th-2", CustomerName: "Walk-in",
				Items: []payroll.LineItem{{Name: "Massage", Category: "service", Price: d("45"), Quantity: 1, Discount: decimal.Zero}},
			},
		}
		for _, sale := range sales {
			sale.Subtotal = payroll.GrossItemsTotal(sale)
			sale.Total = payroll.ItemsRevenue(sale)
			sale.Discount = sale.Subtotal.Sub(sale.Total)
			sale.PaymentMethod = payroll.PaymentCard
			_, err := engine.RecordSale(ctx, sale)
			require.NoError(t, err)
		}

		april := payroll.WindowFor(payroll.PeriodMonth, day(2024, 4, 1))
		byKey := func(group payroll.ReportGroup) map[string]payroll.RevenueGroupTotal {
			lines, err := store.RevenueByGroup(ctx, group, april.Start, april.End)
			require.NoError(t, err)
			out := make(map[string]payroll.RevenueGroupTotal, len(lines))
			for _, l := range lines {
				out[l.Key] = l
			}
			return out
		}

		therapists := byKey(payroll.GroupTherapist)
		require.Len(t, therapists, 2)
		assert.Equal(t, "Amy", therapists["th-1"].Label)
		assert.True(t, d("92.25").Equal(therapists["th-1"].Amount), "got %s", therapists["th-1"].Amount)
		assert.EqualValues(t, 3, therapists["th-1"].Count)

		customers := byKey(payroll.GroupCustomer)
		assert.Equal(t, "Zoe", customers["c-1"].Label)
		assert.True(t, d("45").Equal(customers["Walk-in"].Amount))

		services := byKey(payroll.GroupService)
		assert.True(t, d("126").Equal(services["Massage"].Amount), "got %s", services["Massage"].Amount)
		assert.Equal(t, "product", services["Oil"].Category)

		report, err := engine.RevenueBreakdown(ctx, april, payroll.GroupTherapist)
		require.NoError(t, err)
		require.Len(t, report.Lines, 2)
		assert.Equal(t, "Beth", report.Lines[1].Label, "label filled from the directory")
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx))
		list, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
