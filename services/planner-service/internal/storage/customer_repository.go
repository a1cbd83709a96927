package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/mobrickeu-cmd/gym-planner/libs/db"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

type CustomerRepository struct {
	pool *db.Pool
}

func NewCustomerRepository(pool *db.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) Add(ctx context.Context, c model.Customer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO customers (id, name, age, weight, premium, sessions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			weight = EXCLUDED.weight,
			premium = EXCLUDED.premium,
			sessions = EXCLUDED.sessions,
			updated_at = now()
	`, c.ID, c.Name, c.Age, c.Weight, c.Premium, c.Sessions)
	return err
}

// Update applies only the non-nil fields.
func (r *CustomerRepository) Update(ctx context.Context, id string, upd model.CustomerUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
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

	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $1`, strings.Join(sets, ", "))
	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

// Delete removes the customer only. Reservations referencing the id are left
// in place: they carry their own name snapshot and listings already redact
// for everyone but the trainer.
func (r *CustomerRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	return err
}

func (r *CustomerRepository) Get(ctx context.Context, id string) (model.Customer, bool, error) {
	var c model.Customer
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, age, weight, premium, sessions
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Age, &c.Weight, &c.Premium, &c.Sessions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Customer{}, false, nil
		}
		return model.Customer{}, false, err
	}
	return c, true, nil
}

func (r *CustomerRepository) List(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, age, weight, premium, sessions
		FROM customers
		ORDER BY lower(name)
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

// DebitOneSession floors the balance at zero; debiting an exhausted or
// unknown customer is a no-op, never an error.
func (r *CustomerRepository) DebitOneSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE customers
		SET sessions = GREATEST(sessions - 1, 0),
			updated_at = now()
		WHERE id = $1
	`, id)
	return err
}
