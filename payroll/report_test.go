package payroll_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/payroll"
)

func item(name, category, price string, qty int64, discount string) payroll.LineItem {
	return payroll.LineItem{Name: name, Category: category, Price: d(price), Quantity: qty, Discount: d(discount)}
}

// recordAprilSales books four April sales and one in May. th-gone has no
// profile.
func recordAprilSales(t *testing.T, engine *payroll.Engine) {
	t.Helper()
	ctx := context.Background()

	sales := []payroll.Sale{
		{
			ID: "s-1", Date: ts(2024, 4, 2, 10, 0, 0, 0), TherapistID: "th-1",
			CustomerID: "c-1", CustomerName: "Zoe",
			Items: []payroll.LineItem{
				item("Massage", "service", "45", 2, "9"),
				item("Oil", "product", "12.50", 1, "1.25"),
			},
		},
		{
			ID: "s-2", Date: ts(2024, 4, 9, 15, 0, 0, 0), TherapistID: "th-2",
			CustomerName: "Walk-in Wendy",
			Items:        []payroll.LineItem{item("Massage", "service", "45", 1, "0")},
		},
		{
			ID: "s-3", Date: ts(2024, 4, 30, 23, 59, 59, 999), TherapistID: "th-1",
			Items: []payroll.LineItem{item("Facial", "service", "60", 1, "0")},
		},
		{
			ID: "s-4", Date: ts(2024, 5, 1, 0, 0, 0, 0), TherapistID: "th-2",
			Items: []payroll.LineItem{item("Facial", "service", "100", 1, "0")},
		},
		{
			ID: "s-5", Date: ts(2024, 4, 20, 11, 0, 0, 0), TherapistID: "th-gone",
			Items: []payroll.LineItem{item("Facial", "service", "30", 1, "0")},
		},
	}
	for _, s := range sales {
		s.Subtotal = payroll.GrossItemsTotal(s)
		s.Discount = s.Subtotal.Sub(payroll.ItemsRevenue(s))
		s.Total = payroll.ItemsRevenue(s)
		s.PaymentMethod = payroll.PaymentCard
		_, err := engine.RecordSale(ctx, s)
		require.NoError(t, err)
	}
}

type groupLine struct {
	key, label, amount string
	count              int64
}

func assertLines(t *testing.T, want []groupLine, got []payroll.RevenueGroupTotal) {
	t.Helper()
	require.Len(t, got, len(want))
	for i, w := range want {
		assert.Equal(t, w.key, got[i].Key, "line %d key", i)
		assert.Equal(t, w.label, got[i].Label, "line %d label", i)
		assertDecimal(t, w.amount, got[i].Amount, w.label)
		assert.Equal(t, w.count, got[i].Count, "line %d count", i)
	}
}

func TestEngine_RevenueBreakdown(t *testing.T) {
	// GIVEN: April sales across two known therapists and one without a profile
	// WHEN: Grouping April by therapist, customer and service
	// THEN: Amounts are net item revenue, counts are units, May is excluded

	engine, _ := newTestEngine(t)
	recordAprilSales(t, engine)
	april := payroll.WindowFor(payroll.PeriodMonth, day(2024, 4, 15))
	ctx := context.Background()

	t.Run("therapist", func(t *testing.T) {
		report, err := engine.RevenueBreakdown(ctx, april, payroll.GroupTherapist)
		require.NoError(t, err)

		assertLines(t, []groupLine{
			{"th-1", "Amy", "152.25", 4},
			{"th-2", "Beth", "45", 1},
			{"th-gone", "th-gone", "30", 1},
		}, report.Lines)
		assertDecimal(t, "227.25", report.Amount, "total")
		assert.EqualValues(t, 6, report.Count)
		assertDecimal(t, "38.0625", report.Lines[0].Average(), "average")
	})

	t.Run("customer", func(t *testing.T) {
		report, err := engine.RevenueBreakdown(ctx, april, payroll.GroupCustomer)
		require.NoError(t, err)

		assertLines(t, []groupLine{
			{"c-1", "Zoe", "92.25", 3},
			{"", payroll.UnknownCustomer, "90", 2},
			{"Walk-in Wendy", "Walk-in Wendy", "45", 1},
		}, report.Lines)
	})

	t.Run("service", func(t *testing.T) {
		report, err := engine.RevenueBreakdown(ctx, april, payroll.GroupService)
		require.NoError(t, err)

		assertLines(t, []groupLine{
			{"Massage", "Massage", "126", 3},
			{"Facial", "Facial", "90", 2},
			{"Oil", "Oil", "11.25", 1},
		}, report.Lines)
		assert.Equal(t, "product", report.Lines[2].Category)
		assertDecimal(t, "42", report.Lines[0].Average(), "massage average")
	})

	t.Run("grouped totals match the summary", func(t *testing.T) {
		total, err := engine.RevenueSummary(ctx, april)
		require.NoError(t, err)
		for _, g := range []payroll.ReportGroup{payroll.GroupTherapist, payroll.GroupCustomer, payroll.GroupService} {
			report, err := engine.RevenueBreakdown(ctx, april, g)
			require.NoError(t, err)
			assert.True(t, total.Equal(report.Amount), "%s: %s != %s", g, report.Amount, total)
		}
	})
}

func TestEngine_RevenueBreakdown_EmptyWindow(t *testing.T) {
	engine, _ := newTestEngine(t)

	report, err := engine.RevenueBreakdown(context.Background(), payroll.WindowFor(payroll.PeriodDay, day(2024, 1, 1)), payroll.GroupService)
	require.NoError(t, err)
	assert.Empty(t, report.Lines)
	assert.True(t, report.Amount.IsZero())
}

func TestEngine_RevenueBreakdown_InvalidGroup(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.RevenueBreakdown(context.Background(), payroll.WindowFor(payroll.PeriodMonth, day(2024, 4, 1)), "colour")
	assert.ErrorIs(t, err, payroll.ErrInvalidReportGroup)
	assert.True(t, payroll.IsClientError(err))
}

func TestParseReportGroup(t *testing.T) {
	g, err := payroll.ParseReportGroup(" Service ")
	require.NoError(t, err)
	assert.Equal(t, payroll.GroupService, g)

	_, err = payroll.ParseReportGroup("")
	assert.ErrorIs(t, err, payroll.ErrInvalidReportGroup)
}

func TestRevenueGroupTotal_AverageOfEmptyLine(t *testing.T) {
	assert.True(t, payroll.RevenueGroupTotal{}.Average().IsZero())
}
