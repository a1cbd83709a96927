// Package storage implements the planner's repositories on PostgreSQL. It is
// the primary, authoritative store; the per-slot capacity invariant is
// enforced here with a serialized conditional insert rather than trusted to
// the engine's advisory pre-check.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mobrickeu-cmd/gym-planner/libs/db"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/outbox"
)

type ReservationRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewReservationRepository(pool *db.Pool, outboxRepo *outbox.Repository) *ReservationRepository {
	return &ReservationRepository{pool: pool, outbox: outboxRepo}
}

// Add inserts the reservation only if the (date, slot) pair still has spare
// capacity. An advisory transaction lock on the pair serializes concurrent
// writers, so two clients passing the engine's pre-check simultaneously
// cannot both land in a slot with one seat left.
func (r *ReservationRepository) Add(ctx context.Context, res model.Reservation, maxPerSlot int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, res.Date+"|"+res.TimeSlot); err != nil {
		return err
	}

	var inserted string
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations (id, customer_id, customer_name, date, time_slot, description, created_at)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE (SELECT count(*) FROM reservations WHERE date = $4 AND time_slot = $5) < $8
		RETURNING id
	`, res.ID, res.CustomerID, res.CustomerName, res.Date, res.TimeSlot, res.Description, res.CreatedAt, maxPerSlot).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return booking.ErrSlotFull
		}
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"reservation_id": res.ID,
		"customer_id":    res.CustomerID,
		"date":           res.Date,
		"time_slot":      res.TimeSlot,
		"created_at":     res.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   res.ID,
		EventType:     outbox.EventReservationBooked,
		Payload:       payload,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *ReservationRepository) ByDate(ctx context.Context, date string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE date = $1
		ORDER BY time_slot, created_at
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// ByDateRange loads a whole inclusive date span in one query; the month grid
// renders from a single round trip instead of one per day.
func (r *ReservationRepository) ByDateRange(ctx context.Context, from, to string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE date >= $1 AND date <= $2
		ORDER BY date, time_slot, created_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) ByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, customer_id, customer_name, date, time_slot, description, created_at
		FROM reservations
		WHERE customer_id = $1
		ORDER BY date, time_slot
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func (r *ReservationRepository) CountForSlot(ctx context.Context, date, slot string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM reservations WHERE date = $1 AND time_slot = $2
	`, date, slot).Scan(&count)
	return count, err
}

func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{"reservation_id": id})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reservation",
		AggregateID:   id,
		EventType:     outbox.EventReservationDeleted,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanReservations(rows pgx.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.CustomerID,
			&res.CustomerName,
			&res.Date,
			&res.TimeSlot,
			&res.Description,
			&res.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
