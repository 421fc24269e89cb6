package trigger

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
)

// check MockTrigger compliance to its interface during compile time
var _ Trigger = (*MockTrigger)(nil)

// MockTrigger simulates button presses through a small HTTP endpoint,
// for running the daemon on a machine without a wired button.
type MockTrigger struct {
	log      Logger
	listen   string
	listener net.Listener
	presses  chan bool
	quit     chan struct{}
}

// MockTriggerConfig configures the mock endpoint.
type MockTriggerConfig struct {
	// Listen is where press requests are accepted (ex. localhost:5000)
	Listen string
	Logger Logger
}

func NewMockTrigger(config *MockTriggerConfig) *MockTrigger {
	trigger := &MockTrigger{
		listen:  config.Listen,
		presses: make(chan bool),
		quit:    make(chan struct{}),
	}

	if config.Logger != nil {
		trigger.log = config.Logger
	} else {
		trigger.log = noopLogger{}
	}

	return trigger
}

func (t *MockTrigger) Start() error {
	lis, err := net.Listen("tcp", t.listen)
	if err != nil {
		return errors.Errorf("could not listen on %v: %v", t.listen, err)
	}

	t.listener = lis

	router := mux.NewRouter()
	router.HandleFunc("/press", func(w http.ResponseWriter, r *http.Request) {
		select {
		case t.presses <- true:
			w.WriteHeader(http.StatusNoContent)
		case <-t.quit:
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
		}
	}).Methods(http.MethodPost)

	go func() {
		err := http.Serve(lis, router)
		if err != nil {
			t.log.Debugf("mock trigger server finished: %v", err)
		}
	}()

	t.log.Infof("simulate a button press with: curl -X POST http://%v/press", t.listen)

	return nil
}

func (t *MockTrigger) Stop() error {
	close(t.quit)

	if t.listener != nil {
		err := t.listener.Close()
		if err != nil {
			return errors.Errorf("could not close listener: %v", err)
		}
	}

	return nil
}

func (t *MockTrigger) Presses() <-chan bool {
	return t.presses
}
