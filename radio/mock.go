package radio

import (
	"sync"
	"time"
)

// check Mock compliance to the Radio interface during compile time
var _ Radio = (*Mock)(nil)

// MockConfig customizes the behavior of a mock radio.
type MockConfig struct {
	// Respond makes the mock answer connect commands on its own with a
	// link connection and an acquired address, so the daemon can be run
	// on a development machine without real hardware.
	Respond bool

	// Networks are returned from every scan.
	Networks []*Network
}

// Mock is an in-memory radio. It records issued commands and lets the
// owner deliver events by hand through Emit.
type Mock struct {
	mtx          sync.Mutex
	respond      bool
	networks     []*Network
	started      bool
	mode         Mode
	connectSsid  string
	connectPsk   string
	connects     int
	disconnects  int
	hotspot      *HotspotConfig
	addresses    map[Role]*StaticAddress
	clients      map[uint32]*EventClient
	nextClientId uint32
}

func NewMock(config *MockConfig) *Mock {
	mock := &Mock{
		addresses: make(map[Role]*StaticAddress),
		clients:   make(map[uint32]*EventClient),
	}

	if config != nil {
		mock.respond = config.Respond
		mock.networks = config.Networks
	}

	return mock
}

func (m *Mock) Start() error {
	m.mtx.Lock()
	m.started = true
	m.mtx.Unlock()

	return nil
}

func (m *Mock) Stop() error {
	m.mtx.Lock()
	m.started = false
	m.mtx.Unlock()

	return nil
}

func (m *Mock) SetMode(mode Mode) error {
	m.mtx.Lock()
	previous := m.mode
	m.mode = mode
	m.mtx.Unlock()

	// a mode change that brings up the station role starts it
	if mode.HasClient() && !previous.HasClient() {
		m.Emit(&Event{Type: EventRoleStarted})
	}

	return nil
}

func (m *Mock) Connect(ssid string, passphrase string) error {
	m.mtx.Lock()
	m.connectSsid = ssid
	m.connectPsk = passphrase
	m.connects++
	respond := m.respond
	m.mtx.Unlock()

	if respond {
		go func() {
			time.Sleep(10 * time.Millisecond)
			m.Emit(&Event{Type: EventLinkConnected})
			m.Emit(&Event{Type: EventAddressAcquired, Address: "192.168.100.50"})
		}()
	}

	return nil
}

func (m *Mock) Disconnect() error {
	m.mtx.Lock()
	m.disconnects++
	m.mtx.Unlock()

	return nil
}

func (m *Mock) ConfigureHotspot(config *HotspotConfig) error {
	m.mtx.Lock()
	m.hotspot = config
	m.mtx.Unlock()

	return nil
}

func (m *Mock) SetStaticAddress(role Role, address *StaticAddress) error {
	m.mtx.Lock()
	m.addresses[role] = address
	m.mtx.Unlock()

	return nil
}

func (m *Mock) Scan() ([]*Network, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.networks, nil
}

func (m *Mock) Subscribe() *EventClient {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	client := &EventClient{
		Events:     make(chan *Event, 16),
		cancelChan: make(chan struct{}),
		radio:      m,
	}

	client.Id = m.nextClientId
	m.nextClientId++

	m.clients[client.Id] = client

	return client
}

func (m *Mock) deleteClient(id uint32) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.clients, id)
}

// Emit delivers an event to all subscribed clients.
func (m *Mock) Emit(event *Event) {
	m.mtx.Lock()
	clients := make([]*EventClient, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		case <-client.cancelChan:
		}
	}
}

// Mode returns the last mode set on the mock.
func (m *Mock) Mode() Mode {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.mode
}

// ConnectTarget returns the credentials of the last connect command.
func (m *Mock) ConnectTarget() (string, string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.connectSsid, m.connectPsk
}

// Connects returns how many connect commands were issued.
func (m *Mock) Connects() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.connects
}

// Disconnects returns how many disconnect commands were issued.
func (m *Mock) Disconnects() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.disconnects
}

// Hotspot returns the last hotspot configuration.
func (m *Mock) Hotspot() *HotspotConfig {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.hotspot
}

// StaticAddressFor returns the static address assigned to a role.
func (m *Mock) StaticAddressFor(role Role) *StaticAddress {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.addresses[role]
}

// SetNetworks replaces the scan results.
func (m *Mock) SetNetworks(networks []*Network) {
	m.mtx.Lock()
	m.networks = networks
	m.mtx.Unlock()
}
