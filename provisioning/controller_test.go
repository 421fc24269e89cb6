package provisioning

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/radio"
	"github.com/the-lightning-land/provisd/setupdb"
)

// fakeTransport records everything a session says to the browser.
type fakeTransport struct {
	mtx      sync.Mutex
	started  int
	stopped  int
	messages []interface{}
	sent     chan interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		sent: make(chan interface{}, 16),
	}
}

func (t *fakeTransport) Start() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.started++

	return nil
}

func (t *fakeTransport) Stop() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.stopped++

	return nil
}

func (t *fakeTransport) Send(v interface{}) error {
	t.mtx.Lock()
	t.messages = append(t.messages, v)
	t.mtx.Unlock()

	t.sent <- v

	return nil
}

func (t *fakeTransport) starts() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.started
}

func (t *fakeTransport) stops() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.stopped
}

func (t *fakeTransport) next(tt *testing.T) interface{} {
	tt.Helper()

	select {
	case v := <-t.sent:
		return v
	case <-time.After(time.Second):
		tt.Fatal("timed out waiting for an outbound message")
		return nil
	}
}

// fakeStore records saved credentials.
type fakeStore struct {
	mtx        sync.Mutex
	connection *setupdb.WifiConnection
}

func (s *fakeStore) SetWifiConnection(connection *setupdb.WifiConnection) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	s.connection = connection

	return nil
}

func (s *fakeStore) saved() *setupdb.WifiConnection {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.connection
}

type fixture struct {
	mock       *radio.Mock
	manager    *network.Manager
	transport  *fakeTransport
	store      *fakeStore
	controller *Controller
}

func newFixture(t *testing.T, respond bool) *fixture {
	t.Helper()

	mock := radio.NewMock(&radio.MockConfig{
		Respond: respond,
		Networks: []*radio.Network{
			{Ssid: "Home", SignalStrength: -54, Encrypted: true},
			{Ssid: "Cafe", SignalStrength: -70, Encrypted: false},
		},
	})

	manager := network.NewManager(&network.Config{
		Radio:           mock,
		MaxRetries:      1,
		HotspotSsid:     "Setup",
		HotspotChannel:  5,
		HotspotMaxPeers: 2,
		HotspotAddress:  "192.168.100.1",
		HotspotGateway:  "192.168.100.1",
		HotspotNetmask:  "255.255.255.0",
	})

	require.NoError(t, manager.Start())

	t.Cleanup(func() {
		_ = manager.Stop()
	})

	transport := newFakeTransport()
	store := &fakeStore{}

	controller := NewController(&Config{
		Network:    manager,
		Transport:  transport,
		Store:      store,
		GraceDelay: 10 * time.Millisecond,
	})

	require.NoError(t, controller.Start())

	t.Cleanup(func() {
		_ = controller.Stop()
	})

	return &fixture{
		mock:       mock,
		manager:    manager,
		transport:  transport,
		store:      store,
		controller: controller,
	}
}

func TestStartSessionBringsUpHotspotAndPortal(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())

	require.True(t, f.controller.Active())
	require.Equal(t, PhaseAwaitingInput, f.controller.Phase())
	require.Equal(t, 1, f.transport.starts())
	require.Equal(t, radio.ModeCombined, f.mock.Mode())

	hotspot := f.mock.Hotspot()
	require.NotNil(t, hotspot)
	require.Equal(t, "Setup", hotspot.Ssid)
}

func TestStartSessionIsIdempotent(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())
	require.NoError(t, f.controller.StartSession())

	require.Equal(t, 1, f.transport.starts())
}

func TestScanRequestAnswersWithNetworkList(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())

	f.controller.ReceiveMessage([]byte(`{"scan":"start"}`))

	msg, ok := f.transport.next(t).(*wifiListMessage)
	require.True(t, ok)
	require.Len(t, msg.WifiList, 2)
	require.Equal(t, "Home", msg.WifiList[0].Ssid)
	require.Equal(t, -54, msg.WifiList[0].Rssi)
	require.True(t, msg.WifiList[0].Encrypted)
}

func TestScanRequestAnswersWithEmptyList(t *testing.T) {
	f := newFixture(t, false)
	f.mock.SetNetworks(nil)

	require.NoError(t, f.controller.StartSession())

	f.controller.ReceiveMessage([]byte(`{"scan":"start"}`))

	msg, ok := f.transport.next(t).(*wifiListMessage)
	require.True(t, ok)
	require.NotNil(t, msg.WifiList)
	require.Empty(t, msg.WifiList)
}

func TestSubmissionConnectsAndFinishesSession(t *testing.T) {
	f := newFixture(t, true)

	require.NoError(t, f.controller.StartSession())

	f.controller.ReceiveMessage([]byte(`{"ssid":"Home","password":"secret123"}`))

	msg, ok := f.transport.next(t).(*statusMessage)
	require.True(t, ok)
	require.Equal(t, statusConnected, msg.Status)
	require.Equal(t, "Home", msg.Ssid)
	require.Equal(t, "192.168.100.50", msg.Ip)

	// credentials that worked get persisted
	require.Eventually(t, func() bool {
		return f.store.saved() != nil
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, "Home", f.store.saved().Ssid)
	require.Equal(t, "secret123", f.store.saved().Psk)

	// after the grace delay the portal and the hotspot go away
	require.Eventually(t, func() bool {
		return f.transport.stops() == 1
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.mock.Mode() == radio.ModeClient
	}, time.Second, 10*time.Millisecond)

	require.False(t, f.controller.Active())
}

func TestFailedAttemptKeepsSessionOpen(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())

	f.controller.ReceiveMessage([]byte(`{"ssid":"Home","password":"wrong"}`))

	require.Eventually(t, func() bool {
		return f.mock.Connects() > 0
	}, time.Second, 10*time.Millisecond)

	// exhaust the retry budget
	f.mock.Emit(&radio.Event{Type: radio.EventLinkDisconnected})
	f.mock.Emit(&radio.Event{Type: radio.EventLinkDisconnected})

	msg, ok := f.transport.next(t).(*statusMessage)
	require.True(t, ok)
	require.Equal(t, statusFailed, msg.Status)
	require.Equal(t, "Home", msg.Ssid)
	require.Empty(t, msg.Ip)

	// the session stays open for another try
	require.True(t, f.controller.Active())
	require.Equal(t, PhaseAwaitingInput, f.controller.Phase())

	f.controller.ReceiveMessage([]byte(`{"ssid":"Home","password":"right"}`))

	require.Eventually(t, func() bool {
		_, psk := f.mock.ConnectTarget()
		return psk == "right"
	}, time.Second, 10*time.Millisecond)
}

func TestIncompleteSubmissionIsDropped(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())

	f.controller.ReceiveMessage([]byte(`{"ssid":"Home"}`))
	f.controller.ReceiveMessage([]byte(`{"password":"secret"}`))
	f.controller.ReceiveMessage([]byte(`this is not json`))

	require.Never(t, func() bool {
		return f.mock.Connects() > 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	require.Equal(t, PhaseAwaitingInput, f.controller.Phase())
}

func TestMessagesOutsideSessionAreDropped(t *testing.T) {
	f := newFixture(t, false)

	f.controller.ReceiveMessage([]byte(`{"ssid":"Home","password":"secret"}`))

	require.Never(t, func() bool {
		return f.mock.Connects() > 0
	}, 100*time.Millisecond, 10*time.Millisecond)

	require.Equal(t, PhaseIdle, f.controller.Phase())
}

func TestOversizedCredentialsAreTruncated(t *testing.T) {
	f := newFixture(t, false)

	require.NoError(t, f.controller.StartSession())

	longSsid := `"WWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWWW"`
	f.controller.ReceiveMessage([]byte(`{"ssid":` + longSsid + `,"password":"secret"}`))

	require.Eventually(t, func() bool {
		ssid, _ := f.mock.ConnectTarget()
		return ssid != ""
	}, time.Second, 10*time.Millisecond)

	ssid, _ := f.mock.ConnectTarget()
	require.Len(t, ssid, network.MaxSsidLen)
}
