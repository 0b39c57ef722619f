/*
commission.go - Therapist compensation calculator

PURPOSE:
  Maps (profile, hours, revenue) to a Breakdown. Pure: no I/O, no clock,
  no errors. Inputs are validated upstream (NewProfile, NewHours, sale
  validation); a negative rate or revenue is a caller bug, and an
  employment type outside the two variants panics.

SELF-EMPLOYED:
  therapistShare = revenue * 0.40
  salonShare     = revenue * 0.60

EMPLOYED:
  wage           = hours * hourlyRate
  holidayPay     = wage * 0.12
  employerNIC    = wage * 0.138
  costs          = wage + holidayPay + employerNIC
  commission     = max(revenue - costs, 0) * 0.10
  therapistShare = wage + commission
  salonShare     = revenue - therapistShare

  Commission is taken on revenue minus ALL labour costs, employer NIC
  included, even though the therapist never receives the NIC. Keep this
  order of operations.

RECONCILIATION:
  therapistShare + salonShare == revenue for both branches. With decimal
  arithmetic this holds exactly.

ROUNDING:
  None here. Breakdown.Rounded() rounds to pennies for presentation.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATES
// =============================================================================

// Rates are the percentages the salon applies. Business policy, not law:
// overrides come from configuration.
type Rates struct {
	SelfEmployedShare decimal.Decimal // therapist's share of revenue when self-employed
	HolidayPay        decimal.Decimal // fraction of wage
	EmployerNIC       decimal.Decimal // fraction of wage
	Commission        decimal.Decimal // fraction of revenue left after labour costs
}

func DefaultRates() Rates {
	return Rates{
		SelfEmployedShare: decimal.RequireFromString("0.40"),
		HolidayPay:        decimal.RequireFromString("0.12"),
		EmployerNIC:       decimal.RequireFromString("0.138"),
		Commission:        decimal.RequireFromString("0.10"),
	}
}

// Valid reports whether every rate is a fraction in [0, 1].
func (r Rates) Valid() bool {
	one := decimal.NewFromInt(1)
	for _, v := range []decimal.Decimal{r.SelfEmployedShare, r.HolidayPay, r.EmployerNIC, r.Commission} {
		if v.IsNegative() || v.GreaterThan(one) {
			return false
		}
	}
	return true
}

// SalonShare is the salon's fraction of a self-employed therapist's revenue.
func (r Rates) SalonShare() decimal.Decimal {
	return decimal.NewFromInt(1).Sub(r.SelfEmployedShare)
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// Breakdown is recomputed on every request and never persisted.
// Wage, HolidayPay, EmployerNIC, Costs and Commission are zero for
// self-employed therapists.
type Breakdown struct {
	EmploymentType EmploymentType
	Revenue        decimal.Decimal
	Hours          decimal.Decimal
	HourlyRate     decimal.Decimal
	Wage           decimal.Decimal
	HolidayPay     decimal.Decimal
	EmployerNIC    decimal.Decimal
	Costs          decimal.Decimal
	Commission     decimal.Decimal
	TherapistShare decimal.Decimal
	SalonShare     decimal.Decimal
}

// Rounded returns a copy with every money field rounded to 2 places.
// Hours are left as recorded.
func (b Breakdown) Rounded() Breakdown {
	r := b
	for _, f := range []*decimal.Decimal{
		&r.Revenue, &r.HourlyRate, &r.Wage, &r.HolidayPay, &r.EmployerNIC,
		&r.Costs, &r.Commission, &r.TherapistShare, &r.SalonShare,
	} {
		*f = f.Round(2)
	}
	return r
}

// Reconciles checks therapistShare + salonShare == revenue.
func (b Breakdown) Reconciles() bool {
	return b.TherapistShare.Add(b.SalonShare).Equal(b.Revenue)
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Rates Rates
}

func NewCalculator(rates Rates) *Calculator {
	return &Calculator{Rates: rates}
}

var defaultCalculator = Calculator{Rates: DefaultRates()}

// Compute uses the default rates.
func Compute(profile Profile, hours, revenue decimal.Decimal) Breakdown {
	return defaultCalculator.Compute(profile, hours, revenue)
}

// Compute produces the breakdown for one therapist over one window.
func (c *Calculator) Compute(profile Profile, hours, revenue decimal.Decimal) Breakdown {
	b := Breakdown{
		EmploymentType: profile.EmploymentType,
		Revenue:        revenue,
		Hours:          hours,
		Wage:           decimal.Zero,
		HolidayPay:     decimal.Zero,
		EmployerNIC:    decimal.Zero,
		Costs:          decimal.Zero,
		Commission:     decimal.Zero,
		HourlyRate:     decimal.Zero,
	}

	switch profile.EmploymentType {
	case SelfEmployed:
		b.TherapistShare = revenue.Mul(c.Rates.SelfEmployedShare)
		b.SalonShare = revenue.Mul(c.Rates.SalonShare())
	case Employed:
		b.HourlyRate = profile.HourlyRate
		b.Wage = hours.Mul(profile.HourlyRate)
		b.HolidayPay = b.Wage.Mul(c.Rates.HolidayPay)
		b.EmployerNIC = b.Wage.Mul(c.Rates.EmployerNIC)
		b.Costs = b.Wage.Add(b.HolidayPay).Add(b.EmployerNIC)

		profit := decimal.Max(revenue.Sub(b.Costs), decimal.Zero)
		b.Commission = profit.Mul(c.Rates.Commission)

		b.TherapistShare = b.Wage.Add(b.Commission)
		b.SalonShare = revenue.Sub(b.TherapistShare)
	default:
		// Profiles come from NewProfile or a store scan, both of which
		// reject unknown variants.
		panic(fmt.Sprintf("payroll: unknown employment type %d for %s", profile.EmploymentType, profile.ID))
	}
	return b
}
