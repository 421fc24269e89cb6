package provisioning

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/radio"
	"github.com/the-lightning-land/provisd/setupdb"
)

// DefaultGraceDelay is how long the final status message may travel to
// the browser before the session tears down.
const DefaultGraceDelay = 2 * time.Second

// Phase is the state of a provisioning session.
type Phase int

const (
	// PhaseIdle means no session is active
	PhaseIdle Phase = iota
	// PhaseAwaitingInput means the portal is open, waiting for credentials
	PhaseAwaitingInput
	// PhaseConnecting means credentials were submitted, outcome pending
	PhaseConnecting
	// PhaseSucceeded means the device reached the target network
	PhaseSucceeded
	// PhaseFailed means the last attempt failed; more input is welcome
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingInput:
		return "awaiting input"
	case PhaseConnecting:
		return "connecting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// Network is the slice of the connectivity manager the controller uses.
type Network interface {
	Connect(ssid string, passphrase string) error
	StartHotspot() error
	StopHotspot() error
	Scan(callback func([]*radio.Network)) error
	Subscribe() *network.StatusClient
}

// Transport is the browser-facing session the controller talks through.
type Transport interface {
	Start() error
	Stop() error
	Send(v interface{}) error
}

// Store persists credentials that connected successfully.
type Store interface {
	SetWifiConnection(connection *setupdb.WifiConnection) error
}

// Config configures a provisioning controller.
type Config struct {
	Network    Network
	Transport  Transport
	Store      Store
	Logger     Logger
	GraceDelay time.Duration
}

type eventKind int

const (
	eventSubmitted eventKind = iota
	eventFailed
	eventSucceeded
)

// sessionEvent is the tagged union the session loop wakes on.
type sessionEvent struct {
	kind       eventKind
	ssid       string
	passphrase string
	address    string
}

// Controller runs provisioning sessions. It is the only writer of
// session state; the transport and the connectivity manager merely feed
// events into its loop.
type Controller struct {
	log        Logger
	network    Network
	transport  Transport
	store      Store
	graceDelay time.Duration

	mtx        sync.Mutex
	active     bool
	phase      Phase
	pending    string
	pendingPsk string
	events     chan *sessionEvent

	updates *network.StatusClient
	quit    chan struct{}
}

func NewController(config *Config) *Controller {
	controller := &Controller{
		network:    config.Network,
		transport:  config.Transport,
		store:      config.Store,
		graceDelay: config.GraceDelay,
		phase:      PhaseIdle,
		quit:       make(chan struct{}),
	}

	if config.Logger != nil {
		controller.log = config.Logger
	} else {
		controller.log = noopLogger{}
	}

	if controller.graceDelay <= 0 {
		controller.graceDelay = DefaultGraceDelay
	}

	return controller
}

// Start subscribes the controller to connection updates. Updates
// arriving outside an active session are dropped.
func (c *Controller) Start() error {
	c.updates = c.network.Subscribe()

	go c.consumeUpdates()

	return nil
}

// Stop unsubscribes and ends the session loop, if one is running.
func (c *Controller) Stop() error {
	close(c.quit)

	if c.updates != nil {
		c.updates.Cancel()
	}

	return nil
}

// StartSession opens the portal and brings the hotspot up. Starting an
// already running session is a no-op, so a nervously pressed trigger
// cannot open a second portal.
func (c *Controller) StartSession() error {
	c.mtx.Lock()

	if c.active {
		c.mtx.Unlock()
		c.log.Infof("a provisioning session is already running")
		return nil
	}

	c.active = true
	c.phase = PhaseAwaitingInput
	c.events = make(chan *sessionEvent, 8)

	c.mtx.Unlock()

	err := c.network.StartHotspot()
	if err != nil {
		c.endSession()
		return errors.Errorf("could not start hotspot: %v", err)
	}

	err = c.transport.Start()
	if err != nil {
		_ = c.network.StopHotspot()
		c.endSession()
		return errors.Errorf("could not start transport: %v", err)
	}

	go c.sessionLoop()

	c.log.Infof("provisioning session started")

	return nil
}

// Phase returns the current session phase.
func (c *Controller) Phase() Phase {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if !c.active {
		return PhaseIdle
	}

	return c.phase
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.active
}

// ReceiveMessage parses one inbound browser message. Anything that does
// not follow the protocol is dropped without a reply.
func (c *Controller) ReceiveMessage(data []byte) {
	var msg inboundMessage

	err := json.Unmarshal(data, &msg)
	if err != nil {
		c.log.Debugf("dropping unparsable message: %v", err)
		return
	}

	if msg.Scan == scanStart {
		c.handleScanRequest()
	}

	if msg.Ssid != nil && msg.Password != nil {
		c.handleSubmission(*msg.Ssid, *msg.Password)
	} else if msg.Ssid != nil || msg.Password != nil {
		c.log.Debugf("dropping incomplete credential submission")
	}
}

func (c *Controller) handleScanRequest() {
	err := c.network.Scan(c.sendWifiList)
	if err == network.ErrScanBusy {
		// the running scan will answer the earlier request; this one
		// goes unanswered
		c.log.Debugf("scan already in flight, dropping request")
		return
	}
	if err != nil {
		c.log.Errorf("could not start scan: %v", err)
	}
}

func (c *Controller) sendWifiList(networks []*radio.Network) {
	entries := make([]*wifiEntry, 0, len(networks))

	for _, n := range networks {
		entries = append(entries, &wifiEntry{
			Ssid:      n.Ssid,
			Rssi:      n.SignalStrength,
			Encrypted: n.Encrypted,
		})
	}

	err := c.transport.Send(&wifiListMessage{WifiList: entries})
	if err != nil {
		c.log.Errorf("could not send scan results: %v", err)
	}
}

func (c *Controller) handleSubmission(ssid string, passphrase string) {
	if len(ssid) > network.MaxSsidLen {
		ssid = ssid[:network.MaxSsidLen]
	}
	if len(passphrase) > network.MaxPassphraseLen {
		passphrase = passphrase[:network.MaxPassphraseLen]
	}

	c.enqueue(&sessionEvent{
		kind:       eventSubmitted,
		ssid:       ssid,
		passphrase: passphrase,
	})
}

// consumeUpdates forwards connection outcomes into the session loop.
func (c *Controller) consumeUpdates() {
	for {
		select {
		case update, ok := <-c.updates.Updates:
			if !ok {
				return
			}

			switch update.Type {
			case network.UpdateConnected:
				c.enqueue(&sessionEvent{kind: eventSucceeded, address: update.Address})
			case network.UpdateConnectFailed:
				c.enqueue(&sessionEvent{kind: eventFailed})
			}
		case <-c.quit:
			return
		}
	}
}

// enqueue hands an event to the session loop without ever blocking the
// caller. Events outside an active session are dropped.
func (c *Controller) enqueue(event *sessionEvent) {
	c.mtx.Lock()
	active := c.active
	events := c.events
	c.mtx.Unlock()

	if !active {
		return
	}

	select {
	case events <- event:
	default:
		c.log.Warnf("session loop is congested, dropping event")
	}
}

// sessionLoop is the single writer of session state. Each wake drains
// every pending event and applies them in a fixed order, so a stale
// failure can never overtake a success that arrived in the same batch.
func (c *Controller) sessionLoop() {
	c.mtx.Lock()
	events := c.events
	c.mtx.Unlock()

	for {
		select {
		case event := <-events:
			var submitted *sessionEvent
			var failed bool
			var succeeded *sessionEvent

			batch := []*sessionEvent{event}

		drain:
			for {
				select {
				case more := <-events:
					batch = append(batch, more)
				default:
					break drain
				}
			}

			for _, e := range batch {
				switch e.kind {
				case eventSubmitted:
					submitted = e
				case eventFailed:
					failed = true
				case eventSucceeded:
					succeeded = e
				}
			}

			if submitted != nil {
				c.processSubmission(submitted)
			}

			if failed {
				c.processFailure()
			}

			if succeeded != nil {
				if c.processSuccess(succeeded) {
					return
				}
			}
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) processSubmission(event *sessionEvent) {
	c.mtx.Lock()
	c.pending = event.ssid
	c.pendingPsk = event.passphrase
	c.phase = PhaseConnecting
	c.mtx.Unlock()

	c.log.Infof("credentials submitted for %v", event.ssid)

	err := c.network.Connect(event.ssid, event.passphrase)
	if err != nil {
		c.log.Errorf("could not connect: %v", err)
	}
}

func (c *Controller) processFailure() {
	c.mtx.Lock()

	if c.phase != PhaseConnecting {
		c.mtx.Unlock()
		return
	}

	c.phase = PhaseFailed
	ssid := c.pending

	// the session stays open, so another password can be tried right
	// away without touching the trigger again
	c.phase = PhaseAwaitingInput

	c.mtx.Unlock()

	c.log.Warnf("could not connect to %v, awaiting new credentials", ssid)

	err := c.transport.Send(&statusMessage{
		Status: statusFailed,
		Ssid:   ssid,
	})
	if err != nil {
		c.log.Errorf("could not send failure status: %v", err)
	}
}

// processSuccess finishes the session. It reports true when the
// session ended and the loop should exit.
func (c *Controller) processSuccess(event *sessionEvent) bool {
	c.mtx.Lock()

	if c.phase != PhaseConnecting {
		c.mtx.Unlock()
		return false
	}

	c.phase = PhaseSucceeded
	ssid := c.pending
	passphrase := c.pendingPsk

	c.mtx.Unlock()

	c.log.Infof("connected to %v with address %v", ssid, event.address)

	err := c.transport.Send(&statusMessage{
		Status: statusConnected,
		Ssid:   ssid,
		Ip:     event.address,
	})
	if err != nil {
		c.log.Errorf("could not send success status: %v", err)
	}

	if c.store != nil {
		err := c.store.SetWifiConnection(&setupdb.WifiConnection{
			Ssid: ssid,
			Psk:  passphrase,
		})
		if err != nil {
			c.log.Errorf("could not save credentials: %v", err)
		}
	}

	// let the final status reach the browser before tearing down
	time.Sleep(c.graceDelay)

	err = c.transport.Stop()
	if err != nil {
		c.log.Errorf("could not stop transport: %v", err)
	}

	err = c.network.StopHotspot()
	if err != nil {
		c.log.Errorf("could not stop hotspot: %v", err)
	}

	c.endSession()

	c.log.Infof("provisioning session finished")

	return true
}

func (c *Controller) endSession() {
	c.mtx.Lock()
	c.active = false
	c.phase = PhaseIdle
	c.pending = ""
	c.pendingPsk = ""
	c.mtx.Unlock()
}
