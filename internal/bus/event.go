package bus

import "time"

// Event kinds published by the relay.
const (
	KindStatus = "relay.status"
	KindLog    = "relay.log"
	KindEntry  = "relay.entry"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
