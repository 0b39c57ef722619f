/*
report.go - Revenue grouped by therapist, customer or service

PURPOSE:
  The back office reads revenue three ways: who earned it, who paid it and
  what was sold. Each line carries the net item revenue, the units sold
  and the average per unit.

GROUP KEYS:
  therapist  sale therapist ID, labelled with the therapist's name
  customer   customer ID, else customer name; sales with neither are
             grouped under an empty key labelled "Unknown"
  service    item name, with the item's category

  Amount is sum(price * quantity - discount) and Count is sum(quantity),
  over every item of every sale in the window.
*/
package payroll

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ReportGroup selects how revenue is grouped.
type ReportGroup string

const (
	GroupTherapist ReportGroup = "therapist"
	GroupCustomer  ReportGroup = "customer"
	GroupService   ReportGroup = "service"
)

// UnknownCustomer labels sales recorded without a customer.
const UnknownCustomer = "Unknown"

func ParseReportGroup(s string) (ReportGroup, error) {
	switch g := ReportGroup(strings.ToLower(strings.TrimSpace(s))); g {
	case GroupTherapist, GroupCustomer, GroupService:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidReportGroup, s)
	}
}

// RevenueGroupTotal is one line of a grouped revenue report.
type RevenueGroupTotal struct {
	Key      string
	Label    string
	Category string // service only
	Amount   decimal.Decimal
	Count    int64
}

// Average is revenue per unit sold, zero for an empty line.
func (g RevenueGroupTotal) Average() decimal.Decimal {
	if g.Count == 0 {
		return decimal.Zero
	}
	return g.Amount.Div(decimal.NewFromInt(g.Count))
}

// RevenueBreakdown is a grouped revenue report for one window.
type RevenueBreakdown struct {
	Window Window
	Group  ReportGroup
	Lines  []RevenueGroupTotal
	Amount decimal.Decimal
	Count  int64
}

// =============================================================================
// GROUPER - Shared by stores that aggregate in Go
// =============================================================================

// RevenueGrouper folds sale items into per-group totals.
type RevenueGrouper struct {
	group ReportGroup
	order []string
	lines map[string]*RevenueGroupTotal
}

func NewRevenueGrouper(group ReportGroup) *RevenueGrouper {
	return &RevenueGrouper{group: group, lines: make(map[string]*RevenueGroupTotal)}
}

// Add counts every item of the sale.
func (g *RevenueGrouper) Add(s Sale) {
	for _, item := range s.Items {
		key, label, category := groupKey(g.group, s, item)
		line, ok := g.lines[key]
		if !ok {
			line = &RevenueGroupTotal{Key: key, Amount: decimal.Zero}
			g.lines[key] = line
			g.order = append(g.order, key)
		}
		if line.Label == "" {
			line.Label = label
		}
		if line.Category == "" {
			line.Category = category
		}
		line.Amount = line.Amount.Add(item.Revenue())
		line.Count += item.Quantity
	}
}

// Totals returns the lines in first-seen order.
func (g *RevenueGrouper) Totals() []RevenueGroupTotal {
	out := make([]RevenueGroupTotal, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, *g.lines[key])
	}
	return out
}

func groupKey(group ReportGroup, s Sale, item LineItem) (key, label, category string) {
	switch group {
	case GroupTherapist:
		return string(s.TherapistID), s.TherapistName, ""
	case GroupCustomer:
		key = s.CustomerID
		if key == "" {
			key = s.CustomerName
		}
		return key, s.CustomerName, ""
	default:
		return item.Name, item.Name, item.Category
	}
}

// sortGroupTotals orders lines by amount, highest first, then by label.
func sortGroupTotals(lines []RevenueGroupTotal) {
	sort.SliceStable(lines, func(i, j int) bool {
		if c := lines[i].Amount.Cmp(lines[j].Amount); c != 0 {
			return c > 0
		}
		if lines[i].Label != lines[j].Label {
			return lines[i].Label < lines[j].Label
		}
		return lines[i].Key < lines[j].Key
	})
}
