package device

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/provisd/connectivity"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/provisioning"
	"github.com/the-lightning-land/provisd/radio"
	"github.com/the-lightning-land/provisd/setupdb"
)

// fakeTrigger lets the test press the button by hand.
type fakeTrigger struct {
	presses chan bool
}

func (t *fakeTrigger) Start() error {
	return nil
}

func (t *fakeTrigger) Stop() error {
	return nil
}

func (t *fakeTrigger) Presses() <-chan bool {
	return t.presses
}

// nullTransport swallows everything the session would tell a browser.
type nullTransport struct {
	mtx     sync.Mutex
	started int
}

func (t *nullTransport) Start() error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	t.started++

	return nil
}

func (t *nullTransport) Stop() error {
	return nil
}

func (t *nullTransport) Send(v interface{}) error {
	return nil
}

func (t *nullTransport) starts() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	return t.started
}

type deviceFixture struct {
	mock       *radio.Mock
	trigger    *fakeTrigger
	transport  *nullTransport
	controller *provisioning.Controller
	device     *Device
	done       chan error
}

func startDevice(t *testing.T) *deviceFixture {
	t.Helper()

	mock := radio.NewMock(&radio.MockConfig{Respond: true})

	manager := network.NewManager(&network.Config{
		Radio: mock,
	})

	require.NoError(t, manager.Start())

	t.Cleanup(func() {
		_ = manager.Stop()
	})

	db, err := setupdb.Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	transport := &nullTransport{}

	controller := provisioning.NewController(&provisioning.Config{
		Network:    manager,
		Transport:  transport,
		Store:      db,
		GraceDelay: 10 * time.Millisecond,
	})

	require.NoError(t, controller.Start())

	t.Cleanup(func() {
		_ = controller.Stop()
	})

	reporter := connectivity.NewReporter(manager)

	t.Cleanup(reporter.Stop)

	trigger := &fakeTrigger{presses: make(chan bool)}

	device := New(&Config{
		Trigger:      trigger,
		Network:      manager,
		Provisioning: controller,
		DB:           db,
		Reporter:     reporter,
	})

	done := make(chan error, 1)

	go func() {
		done <- device.Run()
	}()

	t.Cleanup(func() {
		device.Shutdown()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("device did not shut down")
		}
	})

	return &deviceFixture{
		mock:       mock,
		trigger:    trigger,
		transport:  transport,
		controller: controller,
		device:     device,
		done:       done,
	}
}

func TestTriggerPressOpensSession(t *testing.T) {
	f := startDevice(t)

	select {
	case f.trigger.presses <- true:
	case <-time.After(time.Second):
		t.Fatal("the device is not listening for presses")
	}

	require.Eventually(t, func() bool {
		return f.controller.Active()
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, 1, f.transport.starts())
}

func TestSavedConnectionAttemptedAtStartup(t *testing.T) {
	mock := radio.NewMock(&radio.MockConfig{Respond: true})

	manager := network.NewManager(&network.Config{
		Radio: mock,
	})

	require.NoError(t, manager.Start())

	t.Cleanup(func() {
		_ = manager.Stop()
	})

	db, err := setupdb.Open(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, db.SetWifiConnection(&setupdb.WifiConnection{
		Ssid: "Home",
		Psk:  "secret123",
	}))

	reporter := connectivity.NewReporter(manager)

	t.Cleanup(reporter.Stop)

	device := New(&Config{
		Trigger:  &fakeTrigger{presses: make(chan bool)},
		Network:  manager,
		DB:       db,
		Reporter: reporter,
	})

	done := make(chan error, 1)

	go func() {
		done <- device.Run()
	}()

	t.Cleanup(func() {
		device.Shutdown()
		<-done
	})

	require.Eventually(t, func() bool {
		ssid, _ := mock.ConnectTarget()
		return ssid == "Home"
	}, time.Second, 10*time.Millisecond)

	// the responding mock then brings the device online
	require.Eventually(t, func() bool {
		return reporter.CurrentState() == connectivity.Online
	}, time.Second, 10*time.Millisecond)
}
