package booking

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/calendar"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

// RedactedName is what viewers other than the trainer and the owning
// customer see in place of a reservation's identity.
const RedactedName = "reserved"

// SlotStatus is one slot on the day board.
type SlotStatus struct {
	Slot      string `json:"slot"`
	Occupancy int    `json:"occupancy"`
	Full      bool   `json:"full"`
}

// DayBoard is the availability projection for a single date.
type DayBoard struct {
	Date            string       `json:"date"`
	Slots           []SlotStatus `json:"slots"`
	AvailabilityPct int          `json:"availability_pct"`
	Reservations    int          `json:"reservations"`
}

// DayBoard computes occupancy per slot and the day-level availability
// percentage. The percentage counts distinct occupied slots, not total
// reservations: a slot holding 3 of 5 seats still counts once.
func (e *Engine) DayBoard(ctx context.Context, date string) (DayBoard, error) {
	if _, _, _, err := calendar.ParseDate(date); err != nil {
		return DayBoard{}, err
	}
	settings := e.policy.Current(ctx)
	reservations, err := e.reservations.ByDate(ctx, date)
	if err != nil {
		return DayBoard{}, err
	}

	occupancy := make(map[string]int, len(reservations))
	for _, r := range reservations {
		occupancy[r.TimeSlot]++
	}

	slots := calendar.Slots(settings.StartHour, settings.EndHour)
	board := DayBoard{
		Date:         date,
		Slots:        make([]SlotStatus, 0, len(slots)),
		Reservations: len(reservations),
	}
	for _, slot := range slots {
		n := occupancy[slot]
		board.Slots = append(board.Slots, SlotStatus{
			Slot:      slot,
			Occupancy: n,
			Full:      n >= settings.MaxReservationsPerSlot,
		})
	}
	board.AvailabilityPct = availabilityPct(slots, occupancy)
	return board, nil
}

func availabilityPct(slots []string, occupancy map[string]int) int {
	if len(slots) == 0 {
		return 0
	}
	free := 0
	for _, slot := range slots {
		if occupancy[slot] == 0 {
			free++
		}
	}
	return int(math.Round(100 * float64(free) / float64(len(slots))))
}

// MonthDay is one cell of the month grid.
type MonthDay struct {
	Day             int    `json:"day"`
	Date            string `json:"date"`
	Reservations    int    `json:"reservations"`
	AvailabilityPct int    `json:"availability_pct"`
	Today           bool   `json:"today"`
	Past            bool   `json:"past"`
}

// MonthGrid is the calendar month projection: leading blank cells for a
// Monday-first week layout plus per-day occupancy summaries.
type MonthGrid struct {
	Year          int        `json:"year"`
	Month         int        `json:"month"`
	LeadingBlanks int        `json:"leading_blanks"`
	Days          []MonthDay `json:"days"`
}

// ErrMonthOutOfRange guards the browsable window of the month grid.
var ErrMonthOutOfRange = errors.New("month outside the browsable range")

func (e *Engine) MonthGrid(ctx context.Context, year int, month time.Month) (MonthGrid, error) {
	now := e.now()
	if !calendar.IsValidDateRange(year, month, now) {
		return MonthGrid{}, ErrMonthOutOfRange
	}
	settings := e.policy.Current(ctx)
	slots := calendar.Slots(settings.StartHour, settings.EndHour)

	grid := MonthGrid{
		Year:          year,
		Month:         int(month),
		LeadingBlanks: calendar.FirstWeekday(year, month),
	}
	days := calendar.DaysInMonth(year, month)
	reservations, err := e.reservations.ByDateRange(ctx,
		calendar.FormatDate(year, month, 1),
		calendar.FormatDate(year, month, days))
	if err != nil {
		return MonthGrid{}, err
	}
	occupancyByDate := make(map[string]map[string]int)
	for _, r := range reservations {
		occ := occupancyByDate[r.Date]
		if occ == nil {
			occ = make(map[string]int)
			occupancyByDate[r.Date] = occ
		}
		occ[r.TimeSlot]++
	}

	for day := 1; day <= days; day++ {
		date := calendar.FormatDate(year, month, day)
		occupancy := occupancyByDate[date]
		total := 0
		for _, n := range occupancy {
			total += n
		}
		grid.Days = append(grid.Days, MonthDay{
			Day:             day,
			Date:            date,
			Reservations:    total,
			AvailabilityPct: availabilityPct(slots, occupancy),
			Today:           calendar.IsToday(year, month, day, now),
			Past:            calendar.IsPastDate(year, month, day, now),
		})
	}
	return grid, nil
}

// ReservationView is what a particular viewer is allowed to see of one
// reservation. Identity and description are redacted for everyone except the
// trainer and the owning customer; redaction is a projection, never stored.
type ReservationView struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	TimeSlot     string `json:"time_slot"`
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name"`
	Description  string `json:"description,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	Redacted     bool   `json:"redacted"`
}

// RenderFor applies the per-record visibility rule for a viewer.
func RenderFor(r model.Reservation, role model.Role, viewerCustomerID string) ReservationView {
	if role == model.RoleTrainer || (viewerCustomerID != "" && r.CustomerID == viewerCustomerID) {
		return ReservationView{
			ID:           r.ID,
			Date:         r.Date,
			TimeSlot:     r.TimeSlot,
			CustomerID:   r.CustomerID,
			CustomerName: r.CustomerName,
			Description:  r.Description,
			CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	return ReservationView{
		ID:           r.ID,
		Date:         r.Date,
		TimeSlot:     r.TimeSlot,
		CustomerName: RedactedName,
		Redacted:     true,
	}
}

// ReservationsForDate lists a date's reservations sorted by time slot, each
// rendered through the viewer's visibility rule.
func (e *Engine) ReservationsForDate(ctx context.Context, date string, viewer Requester) ([]ReservationView, error) {
	reservations, err := e.reservations.ByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reservations, func(i, j int) bool {
		return reservations[i].TimeSlot < reservations[j].TimeSlot
	})
	views := make([]ReservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, RenderFor(r, viewer.Role, viewer.CustomerID))
	}
	return views, nil
}

// ReservationsForCustomer lists one customer's reservations for that customer
// or the trainer.
func (e *Engine) ReservationsForCustomer(ctx context.Context, customerID string, viewer Requester) ([]ReservationView, error) {
	reservations, err := e.reservations.ByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Date != reservations[j].Date {
			return reservations[i].Date < reservations[j].Date
		}
		return reservations[i].TimeSlot < reservations[j].TimeSlot
	})
	views := make([]ReservationView, 0, len(reservations))
	for _, r := range reservations {
		views = append(views, RenderFor(r, viewer.Role, viewer.CustomerID))
	}
	return views, nil
}
