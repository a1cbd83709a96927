package booking

import "errors"

// Admission refusals. These are surfaced to the user as final decisions;
// none of them warrants a retry.
var (
	// ErrSlotFull means the slot already holds maxReservationsPerSlot
	// reservations. Returned by the advisory pre-check and, authoritatively,
	// by the store's capacity-guarded insert.
	ErrSlotFull = errors.New("time slot is full")

	// ErrPastDate guards bookings on dates strictly before today. The UI
	// never offers past dates, but the engine refuses independently.
	ErrPastDate = errors.New("cannot book a past date")

	// ErrSlotOutOfRange rejects slots outside the configured window, which
	// makes bookings in a range removed by a settings change impossible.
	ErrSlotOutOfRange = errors.New("time slot is outside the bookable window")

	// ErrNoProfile means a customer-role requester has no linked customer
	// record.
	ErrNoProfile = errors.New("no customer profile")

	// ErrNoSessionsRemaining means the customer's session credit is spent.
	ErrNoSessionsRemaining = errors.New("no sessions remaining")
)
