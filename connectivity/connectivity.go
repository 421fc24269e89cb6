package connectivity

import (
	"context"
	"sync"

	"github.com/the-lightning-land/provisd/network"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Online:
		return "ONLINE"
	default:
		return "INVALID STATE"
	}
}

// Reporter answers whether the device currently reaches a network.
type Reporter interface {
	CurrentState() State
	WaitForStateChange(ctx context.Context, sourceState State) bool
	Stop()
}

// Network is the slice of the connectivity manager a reporter needs.
type Network interface {
	Subscribe() *network.StatusClient
}

type networkReporter struct {
	mtx     sync.Mutex
	state   State
	changed chan struct{}
	client  *network.StatusClient
	quit    chan struct{}
}

// NewReporter derives online/offline state from the connection updates
// of the given manager.
func NewReporter(net Network) Reporter {
	reporter := &networkReporter{
		state:   Offline,
		changed: make(chan struct{}),
		client:  net.Subscribe(),
		quit:    make(chan struct{}),
	}

	go reporter.consume()

	return reporter
}

func (r *networkReporter) consume() {
	for {
		var update *network.Update

		select {
		case u, ok := <-r.client.Updates:
			if !ok {
				return
			}
			update = u
		case <-r.quit:
			return
		}

		var state State

		switch update.Type {
		case network.UpdateConnected:
			state = Online
		case network.UpdateDisconnected, network.UpdateConnectFailed:
			state = Offline
		default:
			continue
		}

		r.mtx.Lock()
		if state != r.state {
			r.state = state
			close(r.changed)
			r.changed = make(chan struct{})
		}
		r.mtx.Unlock()
	}
}

func (r *networkReporter) CurrentState() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.state
}

// WaitForStateChange blocks until the state differs from sourceState or
// the context ends. It reports false when the context ended first.
func (r *networkReporter) WaitForStateChange(ctx context.Context, sourceState State) bool {
	for {
		r.mtx.Lock()
		state := r.state
		changed := r.changed
		r.mtx.Unlock()

		if state != sourceState {
			return true
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}

func (r *networkReporter) Stop() {
	close(r.quit)
	r.client.Cancel()
}
