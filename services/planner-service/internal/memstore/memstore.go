// Package memstore provides in-memory implementations of the engine's
// persistence interfaces with controlled fixtures for tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

// Reservations is an in-memory booking.ReservationStore.
type Reservations struct {
	mu   sync.Mutex
	rows []model.Reservation
}

func NewReservations() *Reservations { return &Reservations{} }

func (s *Reservations) Add(_ context.Context, r model.Reservation, maxPerSlot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, existing := range s.rows {
		if existing.Date == r.Date && existing.TimeSlot == r.TimeSlot {
			count++
		}
	}
	if count >= maxPerSlot {
		return booking.ErrSlotFull
	}
	s.rows = append(s.rows, r)
	return nil
}

func (s *Reservations) ByDate(_ context.Context, date string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Reservations) ByDateRange(_ context.Context, from, to string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Reservations) ByCustomer(_ context.Context, customerID string) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Reservation
	for _, r := range s.rows {
		if r.CustomerID == customerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Reservations) CountForSlot(_ context.Context, date, slot string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.rows {
		if r.Date == date && r.TimeSlot == slot {
			count++
		}
	}
	return count, nil
}

func (s *Reservations) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

// Customers is an in-memory booking.CustomerLedger.
type Customers struct {
	mu   sync.Mutex
	rows map[string]model.Customer
}

func NewCustomers(seed ...model.Customer) *Customers {
	s := &Customers{rows: map[string]model.Customer{}}
	for _, c := range seed {
		s.rows[c.ID] = c
	}
	return s
}

func (s *Customers) Add(_ context.Context, c model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[c.ID] = c
	return nil
}

func (s *Customers) Update(_ context.Context, id string, upd model.CustomerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil
	}
	if upd.Name != nil {
		c.Name = *upd.Name
	}
	if upd.Age != nil {
		c.Age = *upd.Age
	}
	if upd.Weight != nil {
		c.Weight = *upd.Weight
	}
	if upd.Premium != nil {
		c.Premium = *upd.Premium
	}
	if upd.Sessions != nil {
		c.Sessions = *upd.Sessions
	}
	s.rows[id] = c
	return nil
}

func (s *Customers) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *Customers) Get(_ context.Context, id string) (model.Customer, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	return c, ok, nil
}

func (s *Customers) List(_ context.Context) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Customer, 0, len(s.rows))
	for _, c := range s.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Customers) DebitOneSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[id]
	if !ok {
		return nil
	}
	if c.Sessions > 0 {
		c.Sessions--
	}
	s.rows[id] = c
	return nil
}

// Settings is an in-memory policy.Store.
type Settings struct {
	mu    sync.Mutex
	value model.TimeRangeSettings
	set   bool
	// FailSave forces SaveSettings to return this error when non-nil.
	FailSave error
}

func NewSettings() *Settings { return &Settings{} }

func (s *Settings) LoadSettings(_ context.Context) (model.TimeRangeSettings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, s.set, nil
}

func (s *Settings) SaveSettings(_ context.Context, v model.TimeRangeSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		return s.FailSave
	}
	s.value = v
	s.set = true
	return nil
}
