/*
revenue.go - Sales feed and revenue attribution

PURPOSE:
  The calculator needs one number per therapist per window: the revenue
  they generated. That number is the sum, over the therapist's sales in
  the window, of price * quantity - discount for every line item.

  The point of sale sends subtotal as the gross sum of price * quantity
  and spreads the sale discount over the items' discount fields, so the
  net item revenue of a consistent sale equals its total.

CONSISTENCY CHECK:
  A sale is accepted only when
    |sum(price * quantity) - subtotal|  <= 0.01
    |subtotal - discount - total|       <= 0.01
  with non-negative prices and discounts and quantities of at least 1.
*/
package payroll

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RevenueLookup yields the revenue attributable to a therapist in a window.
type RevenueLookup interface {
	RevenueFor(ctx context.Context, therapistID TherapistID, start, end time.Time) (decimal.Decimal, error)
}

// =============================================================================
// SALE
// =============================================================================

type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentOther PaymentMethod = "other"
)

type SaleStatus string

const (
	SalePending   SaleStatus = "pending"
	SaleCompleted SaleStatus = "completed"
	SaleRefunded  SaleStatus = "refunded"
	SaleCancelled SaleStatus = "cancelled"
)

type LineItem struct {
	Name     string
	Category string
	Price    decimal.Decimal
	Quantity int64
	Discount decimal.Decimal
}

// Revenue is price * quantity - discount.
func (li LineItem) Revenue() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(li.Quantity)).Sub(li.Discount)
}

type Sale struct {
	ID            SaleID
	Date          time.Time
	TherapistID   TherapistID
	TherapistName string
	CustomerID    string
	CustomerName  string
	Items         []LineItem
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	Status        SaleStatus
	Notes         string
}

// ItemsRevenue is the revenue a sale attributes to its therapist.
func ItemsRevenue(s Sale) decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Revenue())
	}
	return total
}

// GrossItemsTotal is the sum of price * quantity before any discount.
func GrossItemsTotal(s Sale) decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}

var saleTolerance = decimal.RequireFromString("0.01")

// Validate runs the consistency check and fills defaults for status and
// payment method.
func (s *Sale) Validate() error {
	if strings.TrimSpace(string(s.TherapistID)) == "" {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "therapist is required"}
	}
	if s.Date.IsZero() {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "date is required"}
	}
	if len(s.Items) == 0 {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "at least one item is required"}
	}
	for i, item := range s.Items {
		switch {
		case strings.TrimSpace(item.Name) == "":
			return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("item %d: name is required", i)}
		case item.Price.IsNegative():
			return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("item %d: price cannot be negative", i)}
		case item.Quantity < 1:
			return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("item %d: quantity must be at least 1", i)}
		case item.Discount.IsNegative():
			return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("item %d: discount cannot be negative", i)}
		}
	}
	if s.Subtotal.IsNegative() || s.Discount.IsNegative() || s.Total.IsNegative() {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "subtotal, discount and total cannot be negative"}
	}

	gross := GrossItemsTotal(*s)
	if gross.Sub(s.Subtotal).Abs().GreaterThan(saleTolerance) {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "subtotal does not match items total", Expected: gross, Actual: s.Subtotal}
	}
	expectedTotal := s.Subtotal.Sub(s.Discount)
	if expectedTotal.Sub(s.Total).Abs().GreaterThan(saleTolerance) {
		return &InconsistentSaleError{SaleID: s.ID, Reason: "total does not match subtotal minus discount", Expected: expectedTotal, Actual: s.Total}
	}

	switch s.PaymentMethod {
	case PaymentCash, PaymentCard, PaymentOther:
	default:
		return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("unknown payment method %q", s.PaymentMethod)}
	}
	switch s.Status {
	case "":
		s.Status = SaleCompleted
	case SalePending, SaleCompleted, SaleRefunded, SaleCancelled:
	default:
		return &InconsistentSaleError{SaleID: s.ID, Reason: fmt.Sprintf("unknown status %q", s.Status)}
	}
	return nil
}
