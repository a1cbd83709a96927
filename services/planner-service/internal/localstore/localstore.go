// Package localstore is a durable on-disk copy of the planner state, backed
// by SQLite. It implements the same store interfaces as the Postgres layer so
// the planner keeps serving trainers and customers when the primary database
// is unreachable, and can run entirely from this store in single-node mode.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS customers (
	id       TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	age      INTEGER NOT NULL DEFAULT 0,
	weight   REAL NOT NULL DEFAULT 0,
	premium  INTEGER NOT NULL DEFAULT 0,
	sessions INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reservations (
	id            TEXT PRIMARY KEY,
	customer_id   TEXT NOT NULL,
	customer_name TEXT NOT NULL,
	date          TEXT NOT NULL,
	time_slot     TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reservations_date_slot ON reservations (date, time_slot);
CREATE INDEX IF NOT EXISTS idx_reservations_customer ON reservations (customer_id);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const settingsKey = "time_range"

// Store is a SQLite-backed implementation of the reservation store, the
// customer ledger and the settings store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite allows a single writer; more connections just fight over the
	// file lock and turn into SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ReadyCheck reports whether the database file is still usable.
func (s *Store) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	}
}

// Add inserts the reservation, enforcing the per-slot capacity inside the
// transaction. SQLite's single-writer lock makes the count-then-insert pair
// atomic with respect to other writers.
func (s *Store) Add(ctx context.Context, r model.Reservation, maxPerSlot int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT count(*) FROM reservations WHERE date = ? AND time_slot = ?
	`, r.Date, r.TimeSlot).Scan(&count)
	if err != nil {
		return err
	}
	if count >= maxPerSlot {
		return booking.ErrSlotFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reservations (id, customer_id, customer_name, date, time_slot, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.CustomerID, r.CustomerName, r.Date, r.TimeSlot, r.Description, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ByDate(ctx context.Context, date string) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE date = ?
		ORDER BY time_slot, created_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (s *Store) ByDateRange(ctx context.Context, from, to string) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE date >= ? AND date <= ?
		ORDER BY date, time_slot, created_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (s *Store) ByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE customer_id = ?
		ORDER BY date, time_slot
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (s *Store) CountForSlot(ctx context.Context, date, slot string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM reservations WHERE date = ? AND time_slot = ?
	`, date, slot).Scan(&count)
	return count, err
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	return err
}

func scanReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		var r model.Reservation
		var createdAt string
		if err := rows.Scan(&r.ID, &r.CustomerID, &r.CustomerName, &r.Date, &r.TimeSlot, &r.Description, &createdAt); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("reservation %s: bad created_at: %w", r.ID, err)
		}
		r.CreatedAt = ts
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- customer ledger ---

func (s *Store) AddCustomer(ctx context.Context, c model.Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, age, weight, premium, sessions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			age = excluded.age,
			weight = excluded.weight,
			premium = excluded.premium,
			sessions = excluded.sessions
	`, c.ID, c.Name, c.Age, c.Weight, c.Premium, c.Sessions)
	return err
}

func (s *Store) UpdateCustomer(ctx context.Context, id string, upd model.CustomerUpdate) error {
	var sets []string
	var args []any
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Age != nil {
		add("age", *upd.Age)
	}
	if upd.Weight != nil {
		add("weight", *upd.Weight)
	}
	if upd.Premium != nil {
		add("premium", *upd.Premium)
	}
	if upd.Sessions != nil {
		add("sessions", *upd.Sessions)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = ?`, strings.Join(sets, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (model.Customer, bool, error) {
	var c model.Customer
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, age, weight, premium, sessions FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Age, &c.Weight, &c.Premium, &c.Sessions)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Customer{}, false, nil
		}
		return model.Customer{}, false, err
	}
	return c, true, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, age, weight, premium, sessions FROM customers ORDER BY lower(name)
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Age, &c.Weight, &c.Premium, &c.Sessions); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) DebitOneSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE customers SET sessions = max(sessions - 1, 0) WHERE id = ?
	`, id)
	return err
}

// CustomerLedger adapts the store's customer methods to the ledger interface
// used by the booking engine. Store itself serves as the reservation store.
type CustomerLedger struct {
	s *Store
}

func (s *Store) Customers() *CustomerLedger {
	return &CustomerLedger{s: s}
}

func (l *CustomerLedger) Add(ctx context.Context, c model.Customer) error {
	return l.s.AddCustomer(ctx, c)
}

func (l *CustomerLedger) Update(ctx context.Context, id string, upd model.CustomerUpdate) error {
	return l.s.UpdateCustomer(ctx, id, upd)
}

func (l *CustomerLedger) Delete(ctx context.Context, id string) error {
	return l.s.DeleteCustomer(ctx, id)
}

func (l *CustomerLedger) Get(ctx context.Context, id string) (model.Customer, bool, error) {
	return l.s.GetCustomer(ctx, id)
}

func (l *CustomerLedger) List(ctx context.Context) ([]model.Customer, error) {
	return l.s.ListCustomers(ctx)
}

func (l *CustomerLedger) DebitOneSession(ctx context.Context, id string) error {
	return l.s.DebitOneSession(ctx, id)
}

// --- settings store ---

func (s *Store) LoadSettings(ctx context.Context) (model.TimeRangeSettings, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = ?
	`, settingsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TimeRangeSettings{}, false, nil
		}
		return model.TimeRangeSettings{}, false, err
	}

	var settings model.TimeRangeSettings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.TimeRangeSettings{}, false, err
	}
	return settings, true, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings model.TimeRangeSettings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, settingsKey, string(raw))
	return err
}
