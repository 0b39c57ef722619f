/*
Package postgres provides a PostgreSQL-backed implementation of payroll.Store.

Same contract as store/sqlite: append-only hours and sales, upserted
profiles. Money and hours live in NUMERIC columns and cross the wire as
text so shopspring/decimal sees the exact stored value. Sums are done in
SQL where NUMERIC arithmetic is exact.

Schema is managed by golang-migrate from the embedded migrations/ folder;
call MigrateUp before New.
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/payroll"
)

// Store implements payroll.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ payroll.Store = (*Store)(nil)

// New connects to databaseURL with every session in UTC.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// =============================================================================
// HOURS
// =============================================================================

func (s *Store) AppendHours(ctx context.Context, entry payroll.HoursEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO hours_entries (id, therapist_id, work_date, hours, created_at)
		VALUES ($1, $2, $3::date, $4::numeric, $5)
	`, string(entry.ID), string(entry.TherapistID), entry.Date.Format(payroll.DateLayout), entry.Hours.String(), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append hours entry: %w", err)
	}
	return nil
}

func (s *Store) LoadHours(ctx context.Context, therapistID payroll.TherapistID) ([]payroll.HoursEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, therapist_id, to_char(work_date, 'YYYY-MM-DD'), hours::text, created_at
		FROM hours_entries
		WHERE therapist_id = $1
		ORDER BY seq
	`, string(therapistID))
	if err != nil {
		return nil, fmt.Errorf("failed to query hours: %w", err)
	}
	defer rows.Close()

	var entries []payroll.HoursEntry
	for rows.Next() {
		var (
			e                       payroll.HoursEntry
			id, therapist, workDate string
			hours                   string
		)
		if err := rows.Scan(&id, &therapist, &workDate, &hours, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hours entry: %w", err)
		}
		e.ID = payroll.EntryID(id)
		e.TherapistID = payroll.TherapistID(therapist)
		if e.Date, err = payroll.ParseDate(workDate); err != nil {
			return nil, err
		}
		if e.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("hours entry %s: %w", id, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) SumHours(ctx context.Context, therapistID payroll.TherapistID, from, to time.Time) (decimal.Decimal, error) {
	return s.sum(ctx, `
		SELECT COALESCE(SUM(hours), 0)::text
		FROM hours_entries
		WHERE therapist_id = $1 AND work_date BETWEEN $2::date AND $3::date
	`, string(therapistID), from.Format(payroll.DateLayout), to.Format(payroll.DateLayout))
}

// =============================================================================
// PROFILES
// =============================================================================

func (s *Store) SaveProfile(ctx context.Context, p payroll.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO therapists (id, name, employment_type, hourly_rate)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			employment_type = EXCLUDED.employment_type,
			hourly_rate = EXCLUDED.hourly_rate,
			updated_at = NOW()
	`, string(p.ID), p.Name, p.EmploymentType.String(), p.HourlyRate.String())
	if err != nil {
		return fmt.Errorf("failed to save therapist: %w", err)
	}
	return nil
}

func (s *Store) Profile(ctx context.Context, id payroll.TherapistID) (payroll.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, employment_type, hourly_rate::text FROM therapists WHERE id = $1
	`, string(id))
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return payroll.Profile{}, &payroll.MissingProfileError{TherapistID: id}
	}
	return p, err
}

func (s *Store) ListProfiles(ctx context.Context) ([]payroll.Profile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, employment_type, hourly_rate::text FROM therapists ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query therapists: %w", err)
	}
	defer rows.Close()

	var profiles []payroll.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row pgx.Row) (payroll.Profile, error) {
	var (
		p                    payroll.Profile
		id, employment, rate string
	)
	if err := row.Scan(&id, &p.Name, &employment, &rate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan therapist: %w", err)
	}
	p.ID = payroll.TherapistID(id)

	var err error
	if p.EmploymentType, err = payroll.ParseEmploymentType(employment); err != nil {
		return p, fmt.Errorf("therapist %s: %w", id, err)
	}
	if p.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return p, fmt.Errorf("therapist %s: bad hourly rate %q: %w", id, rate, err)
	}
	return p, nil
}

// =============================================================================
// SALES
// =============================================================================

// AppendSale stores a sale and its items in one transaction. A sale ID
// already on file is ignored.
func (s *Store) AppendSale(ctx context.Context, sale payroll.Sale) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO sales
		(id, sold_at, therapist_id, therapist_name, customer_id, customer_name,
		 subtotal, discount, total, payment_method, status, notes)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
		        $7::numeric, $8::numeric, $9::numeric, $10, $11, NULLIF($12, ''))
		ON CONFLICT (id) DO NOTHING
	`,
		string(sale.ID), sale.Date.UTC(), string(sale.TherapistID),
		sale.TherapistName, sale.CustomerID, sale.CustomerName,
		sale.Subtotal.String(), sale.Discount.String(), sale.Total.String(),
		string(sale.PaymentMethod), string(sale.Status), sale.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to append sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, item := range sale.Items {
		batch.Queue(`
			INSERT INTO sale_items (sale_id, position, name, category, price, quantity, discount)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5::numeric, $6, $7::numeric)
		`, string(sale.ID), i, item.Name, item.Category, item.Price.String(), item.Quantity, item.Discount.String())
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append sale items: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) RevenueFor(ctx context.Context, therapistID payroll.TherapistID, start, end time.Time) (decimal.Decimal, error) {
	return s.sum(ctx, `
		SELECT COALESCE(SUM(i.price * i.quantity - i.discount), 0)::text
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.therapist_id = $1 AND s.sold_at BETWEEN $2 AND $3
	`, string(therapistID), start.UTC(), end.UTC())
}

func (s *Store) TotalRevenue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	return s.sum(ctx, `
		SELECT COALESCE(SUM(i.price * i.quantity - i.discount), 0)::text
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.sold_at BETWEEN $1 AND $2
	`, start.UTC(), end.UTC())
}

// groupColumns maps a report group to its key, label and category
// expressions. Values are fixed here, never taken from input.
var groupColumns = map[payroll.ReportGroup][3]string{
	payroll.GroupTherapist: {"s.therapist_id", "COALESCE(MAX(s.therapist_name), '')", "''"},
	payroll.GroupCustomer:  {"COALESCE(s.customer_id, s.customer_name, '')", "COALESCE(MAX(s.customer_name), '')", "''"},
	payroll.GroupService:   {"i.name", "MAX(i.name)", "COALESCE(MAX(i.category), '')"},
}

// RevenueByGroup groups and sums in SQL.
func (s *Store) RevenueByGroup(ctx context.Context, group payroll.ReportGroup, start, end time.Time) ([]payroll.RevenueGroupTotal, error) {
	cols, ok := groupColumns[group]
	if !ok {
		return nil, fmt.Errorf("%w: %q", payroll.ErrInvalidReportGroup, group)
	}
	query := fmt.Sprintf(`
		SELECT %[1]s AS group_key, %[2]s, %[3]s,
		       SUM(i.price * i.quantity - i.discount)::text,
		       SUM(i.quantity)::bigint
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.sold_at BETWEEN $1 AND $2
		GROUP BY group_key
	`, cols[0], cols[1], cols[2])

	rows, err := s.pool.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to group revenue: %w", err)
	}
	defer rows.Close()

	var lines []payroll.RevenueGroupTotal
	for rows.Next() {
		var (
			line   payroll.RevenueGroupTotal
			amount string
		)
		if err := rows.Scan(&line.Key, &line.Label, &line.Category, &amount, &line.Count); err != nil {
			return nil, fmt.Errorf("failed to scan revenue group: %w", err)
		}
		if line.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad revenue %q: %w", amount, err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Reset clears all data. Dev and tests only.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE sale_items, sales, hours_entries, therapists RESTART IDENTITY`)
	return err
}

func (s *Store) sum(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	var raw string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum: %w", err)
	}
	return decimal.NewFromString(raw)
}
