package outbox

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it describes. The Kafka topic name
// equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Topics emitted by the planner.
const (
	EventReservationBooked  = "planner.reservation.booked.v1"
	EventReservationDeleted = "planner.reservation.deleted.v1"
	EventSettingsUpdated    = "planner.settings.updated.v1"
)
