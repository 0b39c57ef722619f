/*
Package sqlite provides a SQLite-backed implementation of payroll.Store.

PURPOSE:
  Single-file persistence for a salon running the engine on one box. The
  PostgreSQL store in store/postgres implements the same interface for
  shared deployments.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on hours_entries, sales or sale_items
  - Therapist profiles are the only upserted rows

KEY TABLES:
  therapists:     Directory of profiles
  hours_entries:  Ledger of hours, seq keeps insertion order
  sales:          Sales feed header rows
  sale_items:     Line items, the source of attributed revenue

MONEY AND HOURS:
  Stored as TEXT and summed in Go with shopspring/decimal, so totals are
  exact and match the in-memory store digit for digit.

DATES:
  hours_entries.work_date is YYYY-MM-DD. sales.sold_at is UTC with a fixed
  millisecond layout so string comparison orders correctly.

CONCURRENCY:
  sync.RWMutex around the handle; SQLite allows one writer at a time.

USAGE:
  store, err := sqlite.New("./data/salon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store, nil)

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/salon-engine/payroll"
)

// saleTimeLayout sorts lexically when every value is UTC.
const saleTimeLayout = "2006-01-02T15:04:05.000Z"

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ payroll.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS therapists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		employment_type TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_therapists_name ON therapists(name);

	-- Hours ledger (append-only)
	CREATE TABLE IF NOT EXISTS hours_entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		therapist_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hours_therapist_date
		ON hours_entries(therapist_id, work_date);

	-- Sales feed (append-only)
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		sold_at TEXT NOT NULL,
		therapist_id TEXT NOT NULL,
		therapist_name TEXT,
		customer_id TEXT,
		customer_name TEXT,
		subtotal TEXT NOT NULL,
		discount TEXT NOT NULL,
		total TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sales_therapist_sold_at
		ON sales(therapist_id, sold_at);
	CREATE INDEX IF NOT EXISTS idx_sales_sold_at ON sales(sold_at);

	CREATE TABLE IF NOT EXISTS sale_items (
		sale_id TEXT NOT NULL REFERENCES sales(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		price TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		discount TEXT NOT NULL,
		PRIMARY KEY (sale_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HOURS (payroll.HoursStore)
// =============================================================================

// AppendHours adds an entry to the ledger.
func (s *Store) AppendHours(ctx context.Context, entry payroll.HoursEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hours_entries (id, therapist_id, work_date, hours, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.TherapistID,
		entry.Date.Format(payroll.DateLayout),
		entry.Hours.String(),
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append hours entry: %w", err)
	}
	return nil
}

// LoadHours returns a therapist's entries in insertion order.
func (s *Store) LoadHours(ctx context.Context, therapistID payroll.TherapistID) ([]payroll.HoursEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, therapist_id, work_date, hours, created_at
		FROM hours_entries
		WHERE therapist_id = ?
		ORDER BY seq ASC
	`, therapistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hours: %w", err)
	}
	defer rows.Close()

	var entries []payroll.HoursEntry
	for rows.Next() {
		e, err := scanHoursEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumHours totals entries dated within [from, to].
func (s *Store) SumHours(ctx context.Context, therapistID payroll.TherapistID, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT hours FROM hours_entries
		WHERE therapist_id = ? AND work_date BETWEEN ? AND ?
	`, therapistID, from.Format(payroll.DateLayout), to.Format(payroll.DateLayout))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum hours: %w", err)
	}
	defer rows.Close()

	return sumDecimals(rows)
}

func scanHoursEntry(rows *sql.Rows) (payroll.HoursEntry, error) {
	var (
		e         payroll.HoursEntry
		workDate  string
		hours     string
		createdAt string
	)
	if err := rows.Scan(&e.ID, &e.TherapistID, &workDate, &hours, &createdAt); err != nil {
		return e, fmt.Errorf("failed to scan hours entry: %w", err)
	}

	var err error
	if e.Date, err = payroll.ParseDate(workDate); err != nil {
		return e, fmt.Errorf("hours entry %s: %w", e.ID, err)
	}
	if e.Hours, err = decimal.NewFromString(hours); err != nil {
		return e, fmt.Errorf("hours entry %s: bad hours %q: %w", e.ID, hours, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return e, fmt.Errorf("hours entry %s: bad created_at %q: %w", e.ID, createdAt, err)
	}
	return e, nil
}

// =============================================================================
// PROFILES (payroll.ProfileStore)
// =============================================================================

// SaveProfile inserts or replaces a therapist profile.
func (s *Store) SaveProfile(ctx context.Context, p payroll.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO therapists (id, name, employment_type, hourly_rate, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			employment_type = excluded.employment_type,
			hourly_rate = excluded.hourly_rate,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.EmploymentType.String(), p.HourlyRate.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save therapist: %w", err)
	}
	return nil
}

// Profile returns a therapist profile or *payroll.MissingProfileError.
func (s *Store) Profile(ctx context.Context, id payroll.TherapistID) (payroll.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, employment_type, hourly_rate FROM therapists WHERE id = ?
	`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return payroll.Profile{}, &payroll.MissingProfileError{TherapistID: id}
	}
	return p, err
}

// ListProfiles returns every therapist ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]payroll.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, employment_type, hourly_rate FROM therapists ORDER BY name, id
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

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (payroll.Profile, error) {
	var (
		p          payroll.Profile
		employment string
		rate       string
	)
	if err := row.Scan(&p.ID, &p.Name, &employment, &rate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, fmt.Errorf("failed to scan therapist: %w", err)
	}

	var err error
	if p.EmploymentType, err = payroll.ParseEmploymentType(employment); err != nil {
		return p, fmt.Errorf("therapist %s: %w", p.ID, err)
	}
	if p.HourlyRate, err = decimal.NewFromString(rate); err != nil {
		return p, fmt.Errorf("therapist %s: bad hourly rate %q: %w", p.ID, rate, err)
	}
	return p, nil
}

// =============================================================================
// SALES (payroll.SaleStore)
// =============================================================================

// AppendSale stores a sale and its items atomically. A sale ID already on
// file is ignored.
func (s *Store) AppendSale(ctx context.Context, sale payroll.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO sales
		(id, sold_at, therapist_id, therapist_name, customer_id, customer_name,
		 subtotal, discount, total, payment_method, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.ID,
		sale.Date.UTC().Format(saleTimeLayout),
		sale.TherapistID,
		nullString(sale.TherapistName),
		nullString(sale.CustomerID),
		nullString(sale.CustomerName),
		sale.Subtotal.String(),
		sale.Discount.String(),
		sale.Total.String(),
		sale.PaymentMethod,
		sale.Status,
		nullString(sale.Notes),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("failed to append sale: %w", err)
	}

	for i, item := range sale.Items {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO sale_items (sale_id, position, name, category, price, quantity, discount)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, sale.ID, i, item.Name, nullString(item.Category), item.Price.String(), item.Quantity, item.Discount.String())
		if err != nil {
			return fmt.Errorf("failed to append sale item: %w", err)
		}
	}

	return sqlTx.Commit()
}

// RevenueFor sums item revenue of a therapist's sales in [start, end].
func (s *Store) RevenueFor(ctx context.Context, therapistID payroll.TherapistID, start, end time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumItems(ctx, `
		SELECT i.price, i.quantity, i.discount
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.therapist_id = ? AND s.sold_at BETWEEN ? AND ?
	`, therapistID, formatSaleTime(start), formatSaleTime(end))
}

// TotalRevenue sums item revenue of every sale in [start, end].
func (s *Store) TotalRevenue(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sumItems(ctx, `
		SELECT i.price, i.quantity, i.discount
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.sold_at BETWEEN ? AND ?
	`, formatSaleTime(start), formatSaleTime(end))
}

func (s *Store) sumItems(ctx context.Context, query string, args ...any) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var (
			price, discount string
			item            payroll.LineItem
		)
		if err := rows.Scan(&price, &item.Quantity, &discount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan sale item: %w", err)
		}
		if err := parseItemAmounts(&item, price, discount); err != nil {
			return decimal.Zero, err
		}
		total = total.Add(item.Revenue())
	}
	return total, rows.Err()
}

// RevenueByGroup reads each item in the window with its sale's therapist
// and customer, then groups in Go so the TEXT decimals stay exact.
func (s *Store) RevenueByGroup(ctx context.Context, group payroll.ReportGroup, start, end time.Time) ([]payroll.RevenueGroupTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.therapist_id, COALESCE(s.therapist_name, ''),
		       COALESCE(s.customer_id, ''), COALESCE(s.customer_name, ''),
		       i.name, COALESCE(i.category, ''), i.price, i.quantity, i.discount
		FROM sale_items i JOIN sales s ON s.id = i.sale_id
		WHERE s.sold_at BETWEEN ? AND ?
		ORDER BY s.sold_at, s.id, i.position
	`, formatSaleTime(start), formatSaleTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	grouper := payroll.NewRevenueGrouper(group)
	for rows.Next() {
		var (
			sale            payroll.Sale
			item            payroll.LineItem
			price, discount string
		)
		if err := rows.Scan(
			&sale.TherapistID, &sale.TherapistName,
			&sale.CustomerID, &sale.CustomerName,
			&item.Name, &item.Category, &price, &item.Quantity, &discount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sale item: %w", err)
		}
		if err := parseItemAmounts(&item, price, discount); err != nil {
			return nil, err
		}
		sale.Items = []payroll.LineItem{item}
		grouper.Add(sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouper.Totals(), nil
}

func parseItemAmounts(item *payroll.LineItem, price, discount string) error {
	var err error
	if item.Price, err = decimal.NewFromString(price); err != nil {
		return fmt.Errorf("bad item price %q: %w", price, err)
	}
	if item.Discount, err = decimal.NewFromString(discount); err != nil {
		return fmt.Errorf("bad item discount %q: %w", discount, err)
	}
	return nil
}

func formatSaleTime(t time.Time) string {
	return t.UTC().Format(saleTimeLayout)
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data. Dev and tests only.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"sale_items", "sales", "hours_entries", "therapists"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func sumDecimals(rows *sql.Rows) (decimal.Decimal, error) {
	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad decimal %q: %w", raw, err)
		}
		total = total.Add(v)
	}
	return total, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
