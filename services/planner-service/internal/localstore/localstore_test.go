package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/booking"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "planner.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testReservation(id, customerID, date, slot string) model.Reservation {
	return model.Reservation{
		ID:           id,
		CustomerID:   customerID,
		CustomerName: "Test Customer",
		Date:         date,
		TimeSlot:     slot,
		CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestReservations_CapacityEnforced(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, testReservation("r1", "c1", "2025-06-10", "09:00"), 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add(ctx, testReservation("r2", "c2", "2025-06-10", "09:00"), 2); err != nil {
		t.Fatalf("second add: %v", err)
	}
	err := s.Add(ctx, testReservation("r3", "c3", "2025-06-10", "09:00"), 2)
	if !errors.Is(err, booking.ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got %v", err)
	}

	count, err := s.CountForSlot(ctx, "2025-06-10", "09:00")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 reservations in slot, got %d", count)
	}
}

func TestReservations_ByDateSortedAndRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	r := testReservation("r1", "c1", "2025-06-10", "10:00")
	r.Description = "leg day"
	if err := s.Add(ctx, r, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, testReservation("r2", "c2", "2025-06-10", "08:00"), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ctx, testReservation("r3", "c1", "2025-06-11", "08:00"), 1); err != nil {
		t.Fatalf("add: %v", err)
	}

	byDate, err := s.ByDate(ctx, "2025-06-10")
	if err != nil {
		t.Fatalf("by date: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("expected 2 reservations, got %d", len(byDate))
	}
	if byDate[0].TimeSlot != "08:00" || byDate[1].TimeSlot != "10:00" {
		t.Fatalf("expected slot order 08:00,10:00, got %s,%s", byDate[0].TimeSlot, byDate[1].TimeSlot)
	}
	if byDate[1].Description != "leg day" {
		t.Fatalf("description lost: %q", byDate[1].Description)
	}
	if !byDate[1].CreatedAt.Equal(r.CreatedAt) {
		t.Fatalf("created_at lost: %s", byDate[1].CreatedAt)
	}

	byCustomer, err := s.ByCustomer(ctx, "c1")
	if err != nil {
		t.Fatalf("by customer: %v", err)
	}
	if len(byCustomer) != 2 {
		t.Fatalf("expected 2 reservations for c1, got %d", len(byCustomer))
	}
	if byCustomer[0].Date != "2025-06-10" || byCustomer[1].Date != "2025-06-11" {
		t.Fatalf("expected date order, got %s,%s", byCustomer[0].Date, byCustomer[1].Date)
	}
}

func TestReservations_ByDateRangeInclusive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, r := range []struct{ id, date, slot string }{
		{"r1", "2025-05-31", "09:00"},
		{"r2", "2025-06-01", "09:00"},
		{"r3", "2025-06-15", "09:00"},
		{"r4", "2025-06-30", "09:00"},
		{"r5", "2025-07-01", "09:00"},
	} {
		if err := s.Add(ctx, testReservation(r.id, "c1", r.date, r.slot), 1); err != nil {
			t.Fatalf("add %s: %v", r.id, err)
		}
	}

	got, err := s.ByDateRange(ctx, "2025-06-01", "2025-06-30")
	if err != nil {
		t.Fatalf("by date range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 reservations inside the range, got %d", len(got))
	}
	if got[0].Date != "2025-06-01" || got[2].Date != "2025-06-30" {
		t.Fatalf("both range bounds must be included, got %s..%s", got[0].Date, got[2].Date)
	}
}

func TestReservations_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, testReservation("r1", "c1", "2025-06-10", "09:00"), 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	count, err := s.CountForSlot(ctx, "2025-06-10", "09:00")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty slot after delete, got %d", count)
	}
	// Deleting an unknown id is a no-op.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestCustomers_CRUDAndDebit(t *testing.T) {
	s := openTestStore(t)
	ledger := s.Customers()
	ctx := context.Background()

	c := model.Customer{ID: "c1", Name: "Ana", Age: 31, Weight: 62.5, Premium: true, Sessions: 2}
	if err := ledger.Add(ctx, c); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, ok, err := ledger.Get(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got != c {
		t.Fatalf("customer round trip mismatch: %+v", got)
	}

	newName := "Ana B"
	newSessions := 5
	if err := ledger.Update(ctx, "c1", model.CustomerUpdate{Name: &newName, Sessions: &newSessions}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _, _ = ledger.Get(ctx, "c1")
	if got.Name != "Ana B" || got.Sessions != 5 {
		t.Fatalf("partial update wrong: %+v", got)
	}
	if got.Age != 31 || !got.Premium {
		t.Fatalf("untouched fields changed: %+v", got)
	}

	if err := ledger.DebitOneSession(ctx, "c1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	got, _, _ = ledger.Get(ctx, "c1")
	if got.Sessions != 4 {
		t.Fatalf("expected 4 sessions after debit, got %d", got.Sessions)
	}

	zero := 0
	if err := ledger.Update(ctx, "c1", model.CustomerUpdate{Sessions: &zero}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := ledger.DebitOneSession(ctx, "c1"); err != nil {
		t.Fatalf("debit at zero: %v", err)
	}
	got, _, _ = ledger.Get(ctx, "c1")
	if got.Sessions != 0 {
		t.Fatalf("debit must floor at zero, got %d", got.Sessions)
	}

	if err := ledger.Delete(ctx, "c1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, ok, err = ledger.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatalf("customer still present after delete")
	}
}

func TestCustomers_ListSortedByName(t *testing.T) {
	s := openTestStore(t)
	ledger := s.Customers()
	ctx := context.Background()

	for _, c := range []model.Customer{
		{ID: "c1", Name: "zoe"},
		{ID: "c2", Name: "Bert"},
		{ID: "c3", Name: "ana"},
	} {
		if err := ledger.Add(ctx, c); err != nil {
			t.Fatalf("add %s: %v", c.ID, err)
		}
	}

	list, err := ledger.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 customers, got %d", len(list))
	}
	if list[0].Name != "ana" || list[1].Name != "Bert" || list[2].Name != "zoe" {
		t.Fatalf("expected case-insensitive name order, got %s,%s,%s", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestSettings_RoundTripAndMissing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadSettings(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected no settings in a fresh store")
	}

	want := model.TimeRangeSettings{StartHour: 6, EndHour: 22, MaxReservationsPerSlot: 3}
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.LoadSettings(ctx)
	if err != nil || !ok {
		t.Fatalf("load after save: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Fatalf("settings round trip mismatch: %+v", got)
	}

	want.EndHour = 20
	if err := s.SaveSettings(ctx, want); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _, _ = s.LoadSettings(ctx)
	if got.EndHour != 20 {
		t.Fatalf("overwrite lost: %+v", got)
	}
}
