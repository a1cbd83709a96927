package model

import "time"

type Role string

const (
	RoleTrainer  Role = "trainer"
	RoleCustomer Role = "customer"
)

// TrainerCustomerID marks reservations made by the trainer: they carry no
// customer link and never consume session credit.
const (
	TrainerCustomerID  = "trainer"
	TrainerDisplayName = "Gym Trainer"
)

// Customer holds a consumable session-credit balance. Sessions is decremented
// by one per successful customer booking and is never negative.
type Customer struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Age      int     `json:"age"`
	Weight   float64 `json:"weight"`
	Premium  bool    `json:"premium"`
	Sessions int     `json:"sessions"`
}

// CustomerUpdate is a partial update; nil fields are left untouched.
type CustomerUpdate struct {
	Name     *string  `json:"name,omitempty"`
	Age      *int     `json:"age,omitempty"`
	Weight   *float64 `json:"weight,omitempty"`
	Premium  *bool    `json:"premium,omitempty"`
	Sessions *int     `json:"sessions,omitempty"`
}

// Reservation is immutable once created; the only mutation is deletion.
// CustomerName is a snapshot taken at booking time and is intentionally not
// kept in sync with later customer renames.
type Reservation struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	Date         string    `json:"date"`      // YYYY-MM-DD
	TimeSlot     string    `json:"time_slot"` // HH:00
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// TimeRangeSettings is the trainer-configured booking policy. The bookable
// window is [StartHour, EndHour] inclusive on both ends.
type TimeRangeSettings struct {
	StartHour              int `json:"startHour"`
	EndHour                int `json:"endHour"`
	MaxReservationsPerSlot int `json:"maxReservationsPerSlot"`
}

func DefaultTimeRangeSettings() TimeRangeSettings {
	return TimeRangeSettings{StartHour: 8, EndHour: 20, MaxReservationsPerSlot: 1}
}

// Normalize backfills MaxReservationsPerSlot for settings stored before the
// field existed.
func (s TimeRangeSettings) Normalize() TimeRangeSettings {
	if s.MaxReservationsPerSlot < 1 {
		s.MaxReservationsPerSlot = 1
	}
	return s
}
