package radio

// EventType tags the events a radio backend can deliver.
type EventType int

const (
	// EventRoleStarted signals that the station role came up
	EventRoleStarted EventType = iota
	// EventLinkConnected signals a link layer association
	EventLinkConnected
	// EventLinkDisconnected signals a lost or failed association
	EventLinkDisconnected
	// EventAddressAcquired signals a usable address on the station role
	EventAddressAcquired
	// EventPeerJoined signals a peer joining the local access point
	EventPeerJoined
)

func (t EventType) String() string {
	switch t {
	case EventRoleStarted:
		return "role started"
	case EventLinkConnected:
		return "link connected"
	case EventLinkDisconnected:
		return "link disconnected"
	case EventAddressAcquired:
		return "address acquired"
	case EventPeerJoined:
		return "peer joined"
	default:
		return "invalid"
	}
}

// Event is a single driver notification. Address is only set for
// EventAddressAcquired.
type Event struct {
	Type    EventType
	Address string
}

// EventClient delivers driver events to one subscriber.
type EventClient struct {
	Events     chan *Event
	Id         uint32
	cancelChan chan struct{}
	radio      Radio
}

// Cancel unsubscribes the client from its radio.
func (c *EventClient) Cancel() {
	c.radio.deleteClient(c.Id)

	close(c.cancelChan)
}
