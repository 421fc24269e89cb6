package network

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provisd/radio"
)

const (
	// MaxSsidLen is the longest ssid the radio accepts, in bytes.
	MaxSsidLen = 32
	// MaxPassphraseLen is the longest passphrase the radio accepts, in bytes.
	MaxPassphraseLen = 64

	// DefaultMaxRetries bounds automatic reconnection attempts.
	DefaultMaxRetries = 6
)

// ErrNotConnected is returned when the client link has no address.
var ErrNotConnected = errors.New("client link is not connected")

// linkState is the state of the client link.
type linkState int

const (
	linkIdle linkState = iota
	linkConnecting
	linkConnected
	linkFailed
)

// attempt tracks one connection target and its retry budget.
type attempt struct {
	ssid       string
	passphrase string
	retries    int
}

type nextClient struct {
	sync.Mutex
	id uint32
}

// Config configures a connectivity manager.
type Config struct {
	Radio      radio.Radio
	Logger     Logger
	MaxRetries int

	// Hotspot settings used when the access point role comes up
	HotspotSsid       string
	HotspotPassphrase string
	HotspotChannel    int
	HotspotMaxPeers   int
	HotspotAddress    string
	HotspotGateway    string
	HotspotNetmask    string
}

// Manager owns the operating mode and the client link of one radio. All
// driver events funnel through its single consumer goroutine, which
// turns them into a small set of outward updates.
type Manager struct {
	log        Logger
	radio      radio.Radio
	maxRetries int
	hotspot    radio.HotspotConfig
	hotspotNet radio.StaticAddress

	mtx     sync.Mutex
	mode    radio.Mode
	link    linkState
	address string
	attempt *attempt

	scanner scanner

	events     *radio.EventClient
	clients    map[uint32]*StatusClient
	nextClient nextClient
	quit       chan struct{}
}

func NewManager(config *Config) *Manager {
	manager := &Manager{
		radio:      config.Radio,
		maxRetries: config.MaxRetries,
		hotspot: radio.HotspotConfig{
			Ssid:       config.HotspotSsid,
			Passphrase: config.HotspotPassphrase,
			Channel:    config.HotspotChannel,
			MaxPeers:   config.HotspotMaxPeers,
		},
		hotspotNet: radio.StaticAddress{
			Address: config.HotspotAddress,
			Gateway: config.HotspotGateway,
			Netmask: config.HotspotNetmask,
		},
		clients: make(map[uint32]*StatusClient),
		quit:    make(chan struct{}),
	}

	if config.Logger != nil {
		manager.log = config.Logger
	} else {
		manager.log = noopLogger{}
	}

	if manager.maxRetries <= 0 {
		manager.maxRetries = DefaultMaxRetries
	}

	return manager
}

// Start brings the radio up in client-only mode and begins consuming
// its events. It is meant to be called once per manager.
func (m *Manager) Start() error {
	m.events = m.radio.Subscribe()

	go m.consumeEvents()

	err := m.radio.SetMode(radio.ModeClient)
	if err != nil {
		return errors.Errorf("could not enter client mode: %v", err)
	}

	err = m.radio.Start()
	if err != nil {
		return errors.Errorf("could not start radio: %v", err)
	}

	return nil
}

// Stop ends event consumption and shuts the radio down.
func (m *Manager) Stop() error {
	close(m.quit)

	if m.events != nil {
		m.events.Cancel()
	}

	err := m.radio.Stop()
	if err != nil {
		return errors.Errorf("could not stop radio: %v", err)
	}

	return nil
}

// Connect aims the client link at the given network. The outcome
// arrives asynchronously on subscribed status clients; the call itself
// never blocks on the radio link.
func (m *Manager) Connect(ssid string, passphrase string) error {
	if ssid == "" {
		return errors.Errorf("ssid must not be empty")
	}

	// the radio silently stops accepting oversized fields, so cut them
	// down to what fits
	if len(ssid) > MaxSsidLen {
		m.log.Warnf("truncating ssid of %d bytes", len(ssid))
		ssid = ssid[:MaxSsidLen]
	}
	if len(passphrase) > MaxPassphraseLen {
		m.log.Warnf("truncating passphrase of %d bytes", len(passphrase))
		passphrase = passphrase[:MaxPassphraseLen]
	}

	m.mtx.Lock()

	m.attempt = &attempt{
		ssid:       ssid,
		passphrase: passphrase,
	}
	m.link = linkConnecting
	m.address = ""

	mode := m.mode
	m.mtx.Unlock()

	if !mode.HasClient() {
		next := radio.ModeClient
		if mode.HasHotspot() {
			next = radio.ModeCombined
		}

		err := m.setMode(next)
		if err != nil {
			return errors.Errorf("could not enable client role: %v", err)
		}
	}

	// drop any stale link before aiming at the new network
	err := m.radio.Disconnect()
	if err != nil {
		m.log.Warnf("could not disconnect stale link: %v", err)
	}

	m.log.Infof("connecting to %v", ssid)

	err = m.radio.Connect(ssid, passphrase)
	if err != nil {
		return errors.Errorf("could not connect: %v", err)
	}

	return nil
}

// StartHotspot enables the access point role next to the client role.
// Re-entering an already active hotspot is a no-op.
func (m *Manager) StartHotspot() error {
	m.mtx.Lock()
	active := m.mode.HasHotspot()
	m.mtx.Unlock()

	if active {
		m.log.Debugf("hotspot already active")
		return nil
	}

	err := m.radio.ConfigureHotspot(&m.hotspot)
	if err != nil {
		return errors.Errorf("could not configure hotspot: %v", err)
	}

	// keep the client role alongside the hotspot, so scanning and
	// connecting remain possible while peers are on the hotspot
	err = m.setMode(radio.ModeCombined)
	if err != nil {
		return errors.Errorf("could not enter combined mode: %v", err)
	}

	err = m.radio.SetStaticAddress(radio.RoleHotspot, &m.hotspotNet)
	if err != nil {
		return errors.Errorf("could not assign hotspot address: %v", err)
	}

	m.log.Infof("started hotspot %v on %v", m.hotspot.Ssid, m.hotspotNet.Address)

	return nil
}

// StopHotspot drops the access point role, reverting to client-only mode.
func (m *Manager) StopHotspot() error {
	err := m.setMode(radio.ModeClient)
	if err != nil {
		return errors.Errorf("could not leave hotspot mode: %v", err)
	}

	m.log.Infof("stopped hotspot")

	return nil
}

// Scan kicks off a network discovery. At most one scan is in flight at
// any time; concurrent requests get ErrScanBusy.
func (m *Manager) Scan(callback func([]*radio.Network)) error {
	return m.scanner.scan(m.radio, m.log, callback)
}

// CurrentAddress returns the address of the client link, or
// ErrNotConnected while there is none.
func (m *Manager) CurrentAddress() (string, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.link != linkConnected {
		return "", ErrNotConnected
	}

	return m.address, nil
}

// Mode returns the current operating mode.
func (m *Manager) Mode() radio.Mode {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.mode
}

func (m *Manager) setMode(mode radio.Mode) error {
	m.mtx.Lock()
	m.mode = mode
	m.mtx.Unlock()

	return m.radio.SetMode(mode)
}

// consumeEvents is the single consumer of driver events. Nothing else
// may mutate the link state.
func (m *Manager) consumeEvents() {
	for {
		select {
		case event, ok := <-m.events.Events:
			if !ok {
				return
			}

			m.handleEvent(event)
		case <-m.quit:
			return
		}
	}
}

func (m *Manager) handleEvent(event *radio.Event) {
	m.log.Debugf("radio event: %v", event.Type)

	switch event.Type {
	case radio.EventRoleStarted:
		m.handleRoleStarted()
	case radio.EventLinkConnected:
		// a link layer association says nothing about reachability,
		// only an acquired address does
		m.log.Infof("link established, waiting for address")
	case radio.EventLinkDisconnected:
		m.handleDisconnected()
	case radio.EventAddressAcquired:
		m.handleAddressAcquired(event.Address)
	case radio.EventPeerJoined:
		m.log.Infof("a peer joined the hotspot")
	}
}

func (m *Manager) handleRoleStarted() {
	m.mtx.Lock()
	hasClient := m.mode.HasClient()
	attempt := m.attempt
	m.mtx.Unlock()

	if !hasClient || attempt == nil {
		return
	}

	m.log.Debugf("client role started, issuing connect to %v", attempt.ssid)

	err := m.radio.Connect(attempt.ssid, attempt.passphrase)
	if err != nil {
		m.log.Errorf("could not connect after role start: %v", err)
	}
}

func (m *Manager) handleDisconnected() {
	m.mtx.Lock()

	wasConnected := m.link == linkConnected
	m.link = linkIdle
	m.address = ""

	attempt := m.attempt

	var retry bool
	var failed bool

	if attempt != nil {
		if attempt.retries < m.maxRetries {
			attempt.retries++
			retry = true
		} else {
			failed = true
			m.attempt = nil
			m.link = linkFailed
		}
	}

	m.mtx.Unlock()

	if wasConnected {
		m.log.Infof("client link lost")
		m.notify(&Update{Type: UpdateDisconnected})
	}

	if retry {
		m.log.Debugf("reconnecting to %v (attempt %d of %d)",
			attempt.ssid, attempt.retries, m.maxRetries)

		err := m.radio.Connect(attempt.ssid, attempt.passphrase)
		if err != nil {
			m.log.Errorf("could not reconnect: %v", err)
		}
	}

	if failed {
		m.log.Warnf("gave up connecting after %d retries", m.maxRetries)
		m.notify(&Update{Type: UpdateConnectFailed})
	}
}

func (m *Manager) handleAddressAcquired(address string) {
	m.mtx.Lock()

	m.link = linkConnected
	m.address = address

	// a fresh address restores the full retry budget
	if m.attempt != nil {
		m.attempt.retries = 0
	}

	m.mtx.Unlock()

	m.log.Infof("client link connected with address %v", address)

	m.notify(&Update{Type: UpdateConnected, Address: address})
}

// Subscribe returns a client that receives all future connection
// updates until it is cancelled.
func (m *Manager) Subscribe() *StatusClient {
	client := &StatusClient{
		Updates:    make(chan *Update, 8),
		cancelChan: make(chan struct{}),
		manager:    m,
	}

	m.nextClient.Lock()
	client.Id = m.nextClient.id
	m.nextClient.id++
	m.nextClient.Unlock()

	m.mtx.Lock()
	m.clients[client.Id] = client
	m.mtx.Unlock()

	return client
}

func (m *Manager) deleteClient(id uint32) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	delete(m.clients, id)
}

func (m *Manager) notify(update *Update) {
	m.mtx.Lock()
	clients := make([]*StatusClient, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.Updates <- update:
		case <-client.cancelChan:
		}
	}
}
