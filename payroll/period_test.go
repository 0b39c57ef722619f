package payroll_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/salon-engine/payroll"
)

func ts(y int, m time.Month, day, h, min, s, ms int) time.Time {
	return time.Date(y, m, day, h, min, s, ms*int(time.Millisecond), time.UTC)
}

func TestWindowFor_Day(t *testing.T) {
	w := payroll.WindowFor(payroll.PeriodDay, ts(2024, time.March, 5, 14, 30, 0, 0))

	assert.Equal(t, ts(2024, time.March, 5, 0, 0, 0, 0), w.Start)
	assert.Equal(t, ts(2024, time.March, 5, 23, 59, 59, 999), w.End)
}

func TestWindowFor_Week_StartsSunday(t *testing.T) {
	// 2024-03-06 is a Wednesday; the week starts Sunday 2024-03-03.
	w := payroll.WindowFor(payroll.PeriodWeek, ts(2024, time.March, 6, 9, 0, 0, 0))

	assert.Equal(t, ts(2024, time.March, 3, 0, 0, 0, 0), w.Start)
	assert.Equal(t, ts(2024, time.March, 9, 23, 59, 59, 999), w.End)
	assert.Equal(t, time.Sunday, w.Start.Weekday())
}

func TestWindowFor_Week_OnSunday(t *testing.T) {
	w := payroll.WindowFor(payroll.PeriodWeek, ts(2024, time.March, 3, 18, 0, 0, 0))
	assert.Equal(t, ts(2024, time.March, 3, 0, 0, 0, 0), w.Start)
}

func TestWindowFor_Week_CrossesMonth(t *testing.T) {
	// Friday 2024-03-01 belongs to the week starting Sunday 2024-02-25.
	w := payroll.WindowFor(payroll.PeriodWeek, ts(2024, time.March, 1, 0, 0, 0, 0))
	assert.Equal(t, ts(2024, time.February, 25, 0, 0, 0, 0), w.Start)
	assert.Equal(t, ts(2024, time.March, 2, 23, 59, 59, 999), w.End)
}

func TestWindowFor_Month_LeapYear(t *testing.T) {
	w := payroll.WindowFor(payroll.PeriodMonth, ts(2024, time.February, 15, 0, 0, 0, 0))

	assert.Equal(t, ts(2024, time.February, 1, 0, 0, 0, 0), w.Start)
	assert.Equal(t, ts(2024, time.February, 29, 23, 59, 59, 999), w.End)
}

func TestWindowFor_Month_Lengths(t *testing.T) {
	cases := map[time.Month]int{
		time.January: 31, time.February: 28, time.April: 30, time.December: 31,
	}
	for m, last := range cases {
		w := payroll.WindowFor(payroll.PeriodMonth, ts(2023, m, 10, 0, 0, 0, 0))
		assert.Equal(t, last, w.End.Day(), "month %s", m)
		assert.Equal(t, m, w.End.Month())
	}
}

func TestWindowFor_Year(t *testing.T) {
	w := payroll.WindowFor(payroll.PeriodYear, ts(2025, time.July, 4, 12, 0, 0, 0))

	assert.Equal(t, ts(2025, time.January, 1, 0, 0, 0, 0), w.Start)
	assert.Equal(t, ts(2025, time.December, 31, 23, 59, 59, 999), w.End)
}

func TestWindowFor_KeepsLocation(t *testing.T) {
	loc := time.FixedZone("BST", 3600)
	w := payroll.WindowFor(payroll.PeriodDay, time.Date(2024, time.June, 1, 0, 30, 0, 0, loc))

	assert.Equal(t, loc, w.Start.Location())
	assert.Equal(t, 1, w.Start.Day())
}

func TestParsePeriodKind(t *testing.T) {
	k, err := payroll.ParsePeriodKind("Month")
	require.NoError(t, err)
	assert.Equal(t, payroll.PeriodMonth, k)

	_, err = payroll.ParsePeriodKind("fortnight")
	assert.ErrorIs(t, err, payroll.ErrInvalidPeriod)
}

func TestWindow_ContainsDate_Inclusive(t *testing.T) {
	w := payroll.WindowFor(payroll.PeriodMonth, ts(2024, time.February, 15, 0, 0, 0, 0))

	assert.True(t, w.ContainsDate(ts(2024, time.February, 1, 0, 0, 0, 0)))
	assert.True(t, w.ContainsDate(ts(2024, time.February, 29, 0, 0, 0, 0)))
	assert.False(t, w.ContainsDate(ts(2024, time.March, 1, 0, 0, 0, 0)))
	assert.False(t, w.ContainsDate(ts(2024, time.January, 31, 0, 0, 0, 0)))
}

func TestWindow_Validate(t *testing.T) {
	ok := payroll.DateWindow(ts(2024, 1, 1, 0, 0, 0, 0), ts(2024, 1, 31, 0, 0, 0, 0))
	assert.NoError(t, ok.Validate())

	bad := payroll.Window{Start: ts(2024, 2, 1, 0, 0, 0, 0), End: ts(2024, 1, 1, 0, 0, 0, 0)}
	assert.ErrorIs(t, bad.Validate(), payroll.ErrInvalidPeriod)
}
