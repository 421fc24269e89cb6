package network

// UpdateType tags the connection updates a manager reports.
type UpdateType int

const (
	// UpdateConnected reports a usable address on the client link
	UpdateConnected UpdateType = iota
	// UpdateDisconnected reports the loss of an established link
	UpdateDisconnected
	// UpdateConnectFailed reports that all connection retries were used up
	UpdateConnectFailed
)

func (t UpdateType) String() string {
	switch t {
	case UpdateConnected:
		return "connected"
	case UpdateDisconnected:
		return "disconnected"
	case UpdateConnectFailed:
		return "connect failed"
	default:
		return "invalid"
	}
}

// Update is a single outward notification. Address is only set for
// UpdateConnected.
type Update struct {
	Type    UpdateType
	Address string
}

// StatusClient delivers connection updates to one subscriber.
type StatusClient struct {
	Updates    chan *Update
	Id         uint32
	cancelChan chan struct{}
	manager    *Manager
}

// Cancel unsubscribes the client from its manager.
func (c *StatusClient) Cancel() {
	c.manager.deleteClient(c.Id)

	close(c.cancelChan)
}
