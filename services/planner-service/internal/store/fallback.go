// Package store composes the Postgres repositories with the local SQLite
// copy. Reads go to Postgres first and fall back to the local copy when it
// is unreachable; accepted writes are mirrored into the local copy so the
// fallback stays close to the primary, and a write that only lands locally
// is still reported as committed.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/localstore"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/policy"
)

const defaultRemoteTimeout = 3 * time.Second

// domainError reports whether err is a deliberate rejection rather than an
// infrastructure failure. Rejections must reach the caller unchanged; falling
// back on them would turn "slot full" into a double booking.
func domainError(err error) bool {
	return errors.Is(err, booking.ErrSlotFull)
}

type guard struct {
	logger  *slog.Logger
	timeout time.Duration
}

func (g guard) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

func (g guard) fellBack(op string, err error) {
	g.logger.Warn("primary store unavailable, serving local copy", "op", op, "err", err)
}

func (g guard) mirrorFailed(op string, err error) {
	g.logger.Warn("local copy update failed", "op", op, "err", err)
}

// Reservations is the fallback reservation store.
type Reservations struct {
	remote booking.ReservationStore
	local  *localstore.Store
	guard
}

func NewReservations(remote booking.ReservationStore, local *localstore.Store, logger *slog.Logger) *Reservations {
	return &Reservations{
		remote: remote,
		local:  local,
		guard:  guard{logger: logger, timeout: defaultRemoteTimeout},
	}
}

func (s *Reservations) Add(ctx context.Context, r model.Reservation, maxPerSlot int) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.Add(rctx, r, maxPerSlot)
	cancel()
	if err == nil {
		if merr := s.local.Add(ctx, r, maxPerSlot); merr != nil && !domainError(merr) {
			s.mirrorFailed("reservations.add", merr)
		}
		return nil
	}
	if domainError(err) {
		return err
	}
	s.fellBack("reservations.add", err)
	return s.local.Add(ctx, r, maxPerSlot)
}

func (s *Reservations) ByDate(ctx context.Context, date string) ([]model.Reservation, error) {
	rctx, cancel := s.bound(ctx)
	out, err := s.remote.ByDate(rctx, date)
	cancel()
	if err == nil {
		return out, nil
	}
	s.fellBack("reservations.by_date", err)
	return s.local.ByDate(ctx, date)
}

func (s *Reservations) ByDateRange(ctx context.Context, from, to string) ([]model.Reservation, error) {
	rctx, cancel := s.bound(ctx)
	out, err := s.remote.ByDateRange(rctx, from, to)
	cancel()
	if err == nil {
		return out, nil
	}
	s.fellBack("reservations.by_date_range", err)
	return s.local.ByDateRange(ctx, from, to)
}

func (s *Reservations) ByCustomer(ctx context.Context, customerID string) ([]model.Reservation, error) {
	rctx, cancel := s.bound(ctx)
	out, err := s.remote.ByCustomer(rctx, customerID)
	cancel()
	if err == nil {
		return out, nil
	}
	s.fellBack("reservations.by_customer", err)
	return s.local.ByCustomer(ctx, customerID)
}

func (s *Reservations) CountForSlot(ctx context.Context, date, slot string) (int, error) {
	rctx, cancel := s.bound(ctx)
	count, err := s.remote.CountForSlot(rctx, date, slot)
	cancel()
	if err == nil {
		return count, nil
	}
	s.fellBack("reservations.count", err)
	return s.local.CountForSlot(ctx, date, slot)
}

func (s *Reservations) Delete(ctx context.Context, id string) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.Delete(rctx, id)
	cancel()
	if err == nil {
		if merr := s.local.Delete(ctx, id); merr != nil {
			s.mirrorFailed("reservations.delete", merr)
		}
		return nil
	}
	s.fellBack("reservations.delete", err)
	return s.local.Delete(ctx, id)
}

// Customers is the fallback customer ledger.
type Customers struct {
	remote booking.CustomerLedger
	local  *localstore.CustomerLedger
	guard
}

func NewCustomers(remote booking.CustomerLedger, local *localstore.Store, logger *slog.Logger) *Customers {
	return &Customers{
		remote: remote,
		local:  local.Customers(),
		guard:  guard{logger: logger, timeout: defaultRemoteTimeout},
	}
}

func (s *Customers) Add(ctx context.Context, c model.Customer) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.Add(rctx, c)
	cancel()
	if err == nil {
		if merr := s.local.Add(ctx, c); merr != nil {
			s.mirrorFailed("customers.add", merr)
		}
		return nil
	}
	s.fellBack("customers.add", err)
	return s.local.Add(ctx, c)
}

func (s *Customers) Update(ctx context.Context, id string, upd model.CustomerUpdate) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.Update(rctx, id, upd)
	cancel()
	if err == nil {
		if merr := s.local.Update(ctx, id, upd); merr != nil {
			s.mirrorFailed("customers.update", merr)
		}
		return nil
	}
	s.fellBack("customers.update", err)
	return s.local.Update(ctx, id, upd)
}

func (s *Customers) Delete(ctx context.Context, id string) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.Delete(rctx, id)
	cancel()
	if err == nil {
		if merr := s.local.Delete(ctx, id); merr != nil {
			s.mirrorFailed("customers.delete", merr)
		}
		return nil
	}
	s.fellBack("customers.delete", err)
	return s.local.Delete(ctx, id)
}

func (s *Customers) Get(ctx context.Context, id string) (model.Customer, bool, error) {
	rctx, cancel := s.bound(ctx)
	c, ok, err := s.remote.Get(rctx, id)
	cancel()
	if err == nil {
		return c, ok, nil
	}
	s.fellBack("customers.get", err)
	return s.local.Get(ctx, id)
}

func (s *Customers) List(ctx context.Context) ([]model.Customer, error) {
	rctx, cancel := s.bound(ctx)
	out, err := s.remote.List(rctx)
	cancel()
	if err == nil {
		return out, nil
	}
	s.fellBack("customers.list", err)
	return s.local.List(ctx)
}

func (s *Customers) DebitOneSession(ctx context.Context, id string) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.DebitOneSession(rctx, id)
	cancel()
	if err == nil {
		if merr := s.local.DebitOneSession(ctx, id); merr != nil {
			s.mirrorFailed("customers.debit", merr)
		}
		return nil
	}
	s.fellBack("customers.debit", err)
	return s.local.DebitOneSession(ctx, id)
}

// Settings is the fallback settings store.
type Settings struct {
	remote policy.Store
	local  *localstore.Store
	guard
}

func NewSettings(remote policy.Store, local *localstore.Store, logger *slog.Logger) *Settings {
	return &Settings{
		remote: remote,
		local:  local,
		guard:  guard{logger: logger, timeout: defaultRemoteTimeout},
	}
}

func (s *Settings) LoadSettings(ctx context.Context) (model.TimeRangeSettings, bool, error) {
	rctx, cancel := s.bound(ctx)
	settings, ok, err := s.remote.LoadSettings(rctx)
	cancel()
	if err == nil {
		return settings, ok, nil
	}
	s.fellBack("settings.load", err)
	return s.local.LoadSettings(ctx)
}

func (s *Settings) SaveSettings(ctx context.Context, settings model.TimeRangeSettings) error {
	rctx, cancel := s.bound(ctx)
	err := s.remote.SaveSettings(rctx, settings)
	cancel()
	if err == nil {
		if merr := s.local.SaveSettings(ctx, settings); merr != nil {
			s.mirrorFailed("settings.save", merr)
		}
		return nil
	}
	s.fellBack("settings.save", err)
	return s.local.SaveSettings(ctx, settings)
}
