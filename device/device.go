package device

import (
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provisd/connectivity"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/provisioning"
	"github.com/the-lightning-land/provisd/setupdb"
	"github.com/the-lightning-land/provisd/trigger"
)

// Config holds the collaborators the device loop coordinates.
type Config struct {
	Trigger      trigger.Trigger
	Network      *network.Manager
	Provisioning *provisioning.Controller
	DB           *setupdb.DB
	Reporter     connectivity.Reporter
	Logger       Logger
}

// Device ties the setup trigger, the network manager and the
// provisioning controller together into a single run loop.
type Device struct {
	trigger      trigger.Trigger
	network      *network.Manager
	provisioning *provisioning.Controller
	db           *setupdb.DB
	reporter     connectivity.Reporter
	log          Logger
	done         chan struct{}
}

func New(config *Config) *Device {
	device := &Device{
		trigger:      config.Trigger,
		network:      config.Network,
		provisioning: config.Provisioning,
		db:           config.DB,
		reporter:     config.Reporter,
		done:         make(chan struct{}),
	}

	if config.Logger != nil {
		device.log = config.Logger
	} else {
		device.log = noopLogger{}
	}

	return device
}

// Run blocks until Shutdown is called. It reacts to setup trigger
// presses by opening a provisioning session and logs connectivity
// updates as they come in.
func (d *Device) Run() error {
	updates := d.network.Subscribe()
	defer updates.Cancel()

	if err := d.trigger.Start(); err != nil {
		return errors.Errorf("could not start trigger: %v", err)
	}
	defer func() {
		if err := d.trigger.Stop(); err != nil {
			d.log.Warnf("could not stop trigger: %v", err)
		}
	}()

	d.maybeConnectSavedWifi()

	for {
		select {
		case <-d.trigger.Presses():
			d.log.Infof("Setup trigger pressed, starting provisioning session")

			if err := d.provisioning.StartSession(); err != nil {
				d.log.Errorf("Could not start provisioning session: %v", err)
			}
		case update, ok := <-updates.Updates:
			if !ok {
				continue
			}

			switch update.Type {
			case network.UpdateConnected:
				d.log.Infof("Network connected with address %v", update.Address)
			case network.UpdateDisconnected:
				d.log.Infof("Network disconnected")
			case network.UpdateConnectFailed:
				d.log.Warnf("Network connection attempt failed")
			}
		case <-d.done:
			return nil
		}
	}
}

// Shutdown stops the run loop.
func (d *Device) Shutdown() {
	close(d.done)
}

// maybeConnectSavedWifi attempts a connection with previously saved
// credentials. It does nothing when the device is already online or
// when no credentials were ever saved.
func (d *Device) maybeConnectSavedWifi() {
	if d.reporter.CurrentState() == connectivity.Online {
		d.log.Debugf("Already online, not attempting saved wifi connection")
		return
	}

	connection, err := d.db.GetWifiConnection()
	if err != nil {
		d.log.Errorf("Could not read saved wifi connection: %v", err)
		return
	}

	if connection == nil {
		d.log.Debugf("No saved wifi connection available")
		return
	}

	d.log.Infof("Attempting saved wifi connection to %v", connection.Ssid)

	if err := d.network.Connect(connection.Ssid, connection.Psk); err != nil {
		d.log.Errorf("Could not connect to %v: %v", connection.Ssid, err)
	}
}
