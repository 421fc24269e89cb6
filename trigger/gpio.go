package trigger

import (
	"time"

	"github.com/go-errors/errors"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// check GpioTrigger compliance to its interface during compile time
var _ Trigger = (*GpioTrigger)(nil)

// how long the pin needs to stay settled before a press counts
const debounce = 180 * time.Millisecond

// GpioTriggerConfig configures the button pin.
type GpioTriggerConfig struct {
	// Pin is the name of the button pin (ex. GPIO10)
	Pin    string
	Logger Logger
}

// GpioTrigger reports presses of a push button wired to a GPIO pin.
type GpioTrigger struct {
	log     Logger
	pinName string
	pin     gpio.PinIn
	presses chan bool
	quit    chan struct{}
}

func NewGpioTrigger(config *GpioTriggerConfig) *GpioTrigger {
	trigger := &GpioTrigger{
		pinName: config.Pin,
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

func (t *GpioTrigger) Start() error {
	_, err := host.Init()
	if err != nil {
		return errors.Errorf("could not initialize host: %v", err)
	}

	pin := gpioreg.ByName(t.pinName)
	if pin == nil {
		return errors.Errorf("could not find pin %v", t.pinName)
	}

	err = pin.In(gpio.PullUp, gpio.FallingEdge)
	if err != nil {
		return errors.Errorf("could not configure pin %v: %v", t.pinName, err)
	}

	t.pin = pin

	go t.watch()

	return nil
}

func (t *GpioTrigger) Stop() error {
	close(t.quit)

	return nil
}

func (t *GpioTrigger) Presses() <-chan bool {
	return t.presses
}

func (t *GpioTrigger) watch() {
	var last time.Time

	for {
		select {
		case <-t.quit:
			return
		default:
		}

		if !t.pin.WaitForEdge(time.Second) {
			continue
		}

		if time.Since(last) < debounce {
			continue
		}

		last = time.Now()

		t.log.Debugf("button press on %v", t.pinName)

		select {
		case t.presses <- true:
		case <-t.quit:
			return
		}
	}
}
