// Package booking implements the slot-availability and reservation engine:
// admission decisions for booking attempts, the commit plus session-credit
// debit that must stay consistent with them, and the per-viewer projections
// of a day's reservations.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/calendar"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
)

// ReservationStore owns all reservation records.
//
// Add must enforce the per-slot capacity atomically (conditional insert or an
// equivalent serializing constraint) and return ErrSlotFull when the slot
// already holds maxPerSlot reservations: the engine's own capacity pre-check
// is advisory only, for responsive UI under concurrent writers.
type ReservationStore interface {
	Add(ctx context.Context, r model.Reservation, maxPerSlot int) error
	ByDate(ctx context.Context, date string) ([]model.Reservation, error)
	// ByDateRange returns reservations for every date in [from, to],
	// inclusive, in a single query.
	ByDateRange(ctx context.Context, from, to string) ([]model.Reservation, error)
	ByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error)
	CountForSlot(ctx context.Context, date, slot string) (int, error)
	Delete(ctx context.Context, id string) error
}

// CustomerLedger owns all customer records and their session-credit balances.
type CustomerLedger interface {
	Add(ctx context.Context, c model.Customer) error
	Update(ctx context.Context, id string, upd model.CustomerUpdate) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.Customer, bool, error)
	List(ctx context.Context) ([]model.Customer, error)
	// DebitOneSession floors at zero and never fails on an exhausted balance.
	DebitOneSession(ctx context.Context, id string) error
}

// Requester is the opaque identity supplied by the API layer. The engine
// performs no identity verification.
type Requester struct {
	Role       model.Role
	CustomerID string
}

// Request is one booking attempt for a (date, slot) pair.
type Request struct {
	Date        string
	TimeSlot    string
	Description string
	Requester   Requester
}

// Engine coordinates Policy, ReservationStore and CustomerLedger. It holds no
// persistent state of its own.
type Engine struct {
	reservations ReservationStore
	ledger       CustomerLedger
	policy       *policy.Manager
	logger       *slog.Logger

	now   func() time.Time
	newID func() string
}

// Option adjusts an Engine, mainly so tests can pin the clock and ids.
type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(reservations ReservationStore, ledger CustomerLedger, policyManager *policy.Manager, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		reservations: reservations,
		ledger:       ledger,
		policy:       policyManager,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Book runs the admission checks in order (capacity, temporal, eligibility),
// commits the reservation, and debits one session for customer requesters.
// The debit happens only after the reservation write is accepted and before
// success is reported to the caller.
func (e *Engine) Book(ctx context.Context, req Request) (model.Reservation, error) {
	settings := e.policy.Current(ctx)

	year, month, day, err := calendar.ParseDate(req.Date)
	if err != nil {
		return model.Reservation{}, err
	}
	if !calendar.ValidSlot(req.TimeSlot) {
		return model.Reservation{}, ErrSlotOutOfRange
	}
	if !slotInWindow(req.TimeSlot, settings) {
		return model.Reservation{}, ErrSlotOutOfRange
	}

	// Advisory capacity hint; the store re-checks under its own guard.
	count, err := e.reservations.CountForSlot(ctx, req.Date, req.TimeSlot)
	if err != nil {
		return model.Reservation{}, err
	}
	if count >= settings.MaxReservationsPerSlot {
		return model.Reservation{}, ErrSlotFull
	}

	if calendar.IsPastDate(year, month, day, e.now()) {
		return model.Reservation{}, ErrPastDate
	}

	var customer model.Customer
	if req.Requester.Role == model.RoleCustomer {
		c, ok, err := e.ledger.Get(ctx, req.Requester.CustomerID)
		if err != nil {
			return model.Reservation{}, err
		}
		if !ok {
			return model.Reservation{}, ErrNoProfile
		}
		if c.Sessions <= 0 {
			return model.Reservation{}, ErrNoSessionsRemaining
		}
		customer = c
	}

	reservation := model.Reservation{
		ID:          e.newID(),
		Date:        req.Date,
		TimeSlot:    req.TimeSlot,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   e.now(),
	}
	if req.Requester.Role == model.RoleCustomer {
		reservation.CustomerID = customer.ID
		reservation.CustomerName = customer.Name
	} else {
		reservation.CustomerID = model.TrainerCustomerID
		reservation.CustomerName = model.TrainerDisplayName
	}

	if err := e.reservations.Add(ctx, reservation, settings.MaxReservationsPerSlot); err != nil {
		return model.Reservation{}, err
	}

	if req.Requester.Role == model.RoleCustomer {
		if err := e.ledger.DebitOneSession(ctx, customer.ID); err != nil {
			// The reservation is committed; a lost debit degrades to stale
			// credit rather than a failed booking.
			e.logger.Error("session debit failed after commit",
				"customer_id", customer.ID,
				"reservation_id", reservation.ID,
				"err", err,
			)
		}
	}

	e.logger.Info("reservation committed",
		"reservation_id", reservation.ID,
		"date", reservation.Date,
		"time_slot", reservation.TimeSlot,
		"role", string(req.Requester.Role),
	)
	return reservation, nil
}

// Remove deletes a reservation by id. Authorization is the caller's concern.
func (e *Engine) Remove(ctx context.Context, id string) error {
	return e.reservations.Delete(ctx, id)
}

func slotInWindow(slot string, s model.TimeRangeSettings) bool {
	for _, candidate := range calendar.Slots(s.StartHour, s.EndHour) {
		if candidate == slot {
			return true
		}
	}
	return false
}
