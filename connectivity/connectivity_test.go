package connectivity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/radio"
)

func startReporter(t *testing.T) (*radio.Mock, Reporter) {
	t.Helper()

	mock := radio.NewMock(nil)

	manager := network.NewManager(&network.Config{
		Radio: mock,
	})

	require.NoError(t, manager.Start())

	t.Cleanup(func() {
		_ = manager.Stop()
	})

	reporter := NewReporter(manager)

	t.Cleanup(reporter.Stop)

	return mock, reporter
}

func TestStartsOffline(t *testing.T) {
	_, reporter := startReporter(t)

	require.Equal(t, Offline, reporter.CurrentState())
}

func TestGoesOnlineWithAddress(t *testing.T) {
	mock, reporter := startReporter(t)

	mock.Emit(&radio.Event{Type: radio.EventAddressAcquired, Address: "10.0.0.2"})

	require.Eventually(t, func() bool {
		return reporter.CurrentState() == Online
	}, time.Second, 10*time.Millisecond)
}

func TestGoesOfflineOnDisconnect(t *testing.T) {
	mock, reporter := startReporter(t)

	mock.Emit(&radio.Event{Type: radio.EventAddressAcquired, Address: "10.0.0.2"})

	require.Eventually(t, func() bool {
		return reporter.CurrentState() == Online
	}, time.Second, 10*time.Millisecond)

	mock.Emit(&radio.Event{Type: radio.EventLinkDisconnected})

	require.Eventually(t, func() bool {
		return reporter.CurrentState() == Offline
	}, time.Second, 10*time.Millisecond)
}

func TestWaitForStateChange(t *testing.T) {
	mock, reporter := startReporter(t)

	done := make(chan bool, 1)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		done <- reporter.WaitForStateChange(ctx, Offline)
	}()

	mock.Emit(&radio.Event{Type: radio.EventAddressAcquired, Address: "10.0.0.2"})

	select {
	case changed := <-done:
		require.True(t, changed)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the state change")
	}
}

func TestWaitForStateChangeHonorsContext(t *testing.T) {
	_, reporter := startReporter(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.False(t, reporter.WaitForStateChange(ctx, Offline))
}
