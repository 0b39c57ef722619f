/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  payroll domain types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Decimal amounts travel as strings. Responses carry money rounded to two
  places; hours are returned as recorded. Requests accept either a JSON
  number or a string for amounts.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/payroll"
)

// =============================================================================
// THERAPISTS
// =============================================================================

type TherapistDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmploymentType string `json:"employment_type"`
	HourlyRate     string `json:"hourly_rate"`
}

type CreateTherapistRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EmploymentType string `json:"employment_type"`
	HourlyRate     Amount `json:"hourly_rate"`
}

func toTherapistDTO(p payroll.Profile) TherapistDTO {
	return TherapistDTO{
		ID:             string(p.ID),
		Name:           p.Name,
		EmploymentType: p.EmploymentType.String(),
		HourlyRate:     p.HourlyRate.StringFixed(2),
	}
}

// =============================================================================
// HOURS
// =============================================================================

type AddHoursRequest struct {
	Date  string     `json:"date"`
	Hours HoursInput `json:"hours"`
}

type HoursEntryDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Hours     string `json:"hours"`
	CreatedAt string `json:"created_at"`
}

type HoursListDTO struct {
	TherapistID string          `json:"therapist_id"`
	Entries     []HoursEntryDTO `json:"entries"`
	Total       string          `json:"total"`
}

func toHoursEntryDTO(e payroll.HoursEntry) HoursEntryDTO {
	return HoursEntryDTO{
		ID:        string(e.ID),
		Date:      e.Date.Format(payroll.DateLayout),
		Hours:     e.Hours.String(),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// COMMISSION
// =============================================================================

type CommissionDTO struct {
	TherapistID    string `json:"therapist_id"`
	Name           string `json:"name"`
	From           string `json:"from"`
	To             string `json:"to"`
	EmploymentType string `json:"employment_type"`
	Revenue        string `json:"revenue"`
	Hours          string `json:"hours"`
	HourlyRate     string `json:"hourly_rate,omitempty"`
	Wage           string `json:"wage"`
	HolidayPay     string `json:"holiday_pay"`
	EmployerNIC    string `json:"employer_nic"`
	Costs          string `json:"costs"`
	Commission     string `json:"commission"`
	TherapistShare string `json:"therapist_share"`
	SalonShare     string `json:"salon_share"`
}

func toCommissionDTO(c payroll.Commission) CommissionDTO {
	b := c.Breakdown.Rounded()
	dto := CommissionDTO{
		TherapistID:    string(c.TherapistID),
		Name:           c.Name,
		From:           c.Window.Start.Format(payroll.DateLayout),
		To:             c.Window.End.Format(payroll.DateLayout),
		EmploymentType: b.EmploymentType.String(),
		Revenue:        b.Revenue.StringFixed(2),
		Hours:          b.Hours.String(),
		Wage:           b.Wage.StringFixed(2),
		HolidayPay:     b.HolidayPay.StringFixed(2),
		EmployerNIC:    b.EmployerNIC.StringFixed(2),
		Costs:          b.Costs.StringFixed(2),
		Commission:     b.Commission.StringFixed(2),
		TherapistShare: b.TherapistShare.StringFixed(2),
		SalonShare:     b.SalonShare.StringFixed(2),
	}
	if b.EmploymentType == payroll.Employed {
		dto.HourlyRate = b.HourlyRate.StringFixed(2)
	}
	return dto
}

// =============================================================================
// SALES
// =============================================================================

type LineItemRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Price    Amount `json:"price"`
	Quantity int64  `json:"quantity"`
	Discount Amount `json:"discount"`
}

type RecordSaleRequest struct {
	ID            string            `json:"id"`
	Date          string            `json:"date"`
	TherapistID   string            `json:"therapist_id"`
	TherapistName string            `json:"therapist_name"`
	CustomerID    string            `json:"customer_id"`
	CustomerName  string            `json:"customer_name"`
	Items         []LineItemRequest `json:"items"`
	Subtotal      Amount            `json:"subtotal"`
	Discount      Amount            `json:"discount"`
	Total         Amount            `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Status        string            `json:"status"`
	Notes         string            `json:"notes"`
}

type SaleDTO struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	TherapistID string `json:"therapist_id"`
	Revenue     string `json:"revenue"`
	Total       string `json:"total"`
	Status      string `json:"status"`
}

// toSale converts the request. The date may be RFC 3339 or a bare
// YYYY-MM-DD, which is taken as midnight UTC.
func (req RecordSaleRequest) toSale() (payroll.Sale, error) {
	date, err := parseSaleTime(req.Date)
	if err != nil {
		return payroll.Sale{}, err
	}
	items := make([]payroll.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = payroll.LineItem{
			Name:     it.Name,
			Category: it.Category,
			Price:    it.Price.Decimal,
			Quantity: it.Quantity,
			Discount: it.Discount.Decimal,
		}
	}
	return payroll.Sale{
		ID:            payroll.SaleID(req.ID),
		Date:          date,
		TherapistID:   payroll.TherapistID(req.TherapistID),
		TherapistName: req.TherapistName,
		CustomerID:    req.CustomerID,
		CustomerName:  req.CustomerName,
		Items:         items,
		Subtotal:      req.Subtotal.Decimal,
		Discount:      req.Discount.Decimal,
		Total:         req.Total.Decimal,
		PaymentMethod: payroll.PaymentMethod(strings.ToLower(req.PaymentMethod)),
		Status:        payroll.SaleStatus(strings.ToLower(req.Status)),
		Notes:         req.Notes,
	}, nil
}

func parseSaleTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return payroll.ParseDate(s)
}

func toSaleDTO(s payroll.Sale) SaleDTO {
	return SaleDTO{
		ID:          string(s.ID),
		Date:        s.Date.Format(time.RFC3339),
		TherapistID: string(s.TherapistID),
		Revenue:     payroll.ItemsRevenue(s).StringFixed(2),
		Total:       s.Total.StringFixed(2),
		Status:      string(s.Status),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

type RevenueSummaryDTO struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Revenue string `json:"revenue"`
}

type RevenueGroupDTO struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Category string `json:"category,omitempty"`
	Amount   string `json:"amount"`
	Count    int64  `json:"count"`
	Average  string `json:"average"`
}

type RevenueReportDTO struct {
	From   string            `json:"from"`
	To     string            `json:"to"`
	Group  string            `json:"group"`
	Lines  []RevenueGroupDTO `json:"lines"`
	Amount string            `json:"amount"`
	Count  int64             `json:"count"`
}

func toRevenueReportDTO(r payroll.RevenueBreakdown) RevenueReportDTO {
	dto := RevenueReportDTO{
		From:   r.Window.Start.Format(payroll.DateLayout),
		To:     r.Window.End.Format(payroll.DateLayout),
		Group:  string(r.Group),
		Lines:  make([]RevenueGroupDTO, 0, len(r.Lines)),
		Amount: r.Amount.StringFixed(2),
		Count:  r.Count,
	}
	for _, line := range r.Lines {
		dto.Lines = append(dto.Lines, RevenueGroupDTO{
			Key:      line.Key,
			Label:    line.Label,
			Category: line.Category,
			Amount:   line.Amount.StringFixed(2),
			Count:    line.Count,
			Average:  line.Average().StringFixed(2),
		})
	}
	return dto
}

type PayrollLineDTO struct {
	CommissionDTO
	Error string `json:"error,omitempty"`
}

type PayrollRunDTO struct {
	From                string           `json:"from"`
	To                  string           `json:"to"`
	Lines               []PayrollLineDTO `json:"lines"`
	TotalRevenue        string           `json:"total_revenue"`
	TotalTherapistShare string           `json:"total_therapist_share"`
	TotalSalonShare     string           `json:"total_salon_share"`
	Failed              int              `json:"failed"`
	GeneratedAt         string           `json:"generated_at,omitempty"`
}

func toPayrollRunDTO(run payroll.PayrollRun) PayrollRunDTO {
	dto := PayrollRunDTO{
		From:                run.Window.Start.Format(payroll.DateLayout),
		To:                  run.Window.End.Format(payroll.DateLayout),
		Lines:               make([]PayrollLineDTO, len(run.Lines)),
		TotalRevenue:        run.TotalRevenue.StringFixed(2),
		TotalTherapistShare: run.TotalTherapistShare.StringFixed(2),
		TotalSalonShare:     run.TotalSalonShare.StringFixed(2),
		Failed:              run.Failed,
	}
	for i, line := range run.Lines {
		if line.Err != nil {
			dto.Lines[i] = PayrollLineDTO{
				CommissionDTO: CommissionDTO{
					TherapistID: string(line.Commission.TherapistID),
					Name:        line.Commission.Name,
					From:        dto.From,
					To:          dto.To,
				},
				Error: line.Err.Error(),
			}
			continue
		}
		dto.Lines[i] = PayrollLineDTO{CommissionDTO: toCommissionDTO(line.Commission)}
	}
	return dto
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Amount decodes a decimal from a JSON number or string. An absent value
// decodes as zero.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "" || raw == "null" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid amount %q", raw)
	}
	a.Decimal = d
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Decimal.String())
}

// HoursInput keeps the raw number or string; payroll.ParseHours decides
// what is valid so bad input maps to invalid_hours.
type HoursInput string

func (h *HoursInput) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "null" {
		raw = ""
	}
	*h = HoursInput(raw)
	return nil
}
