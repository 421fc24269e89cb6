package main

import (
	"net/http"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/the-lightning-land/provisd/connectivity"
	"github.com/the-lightning-land/provisd/device"
	"github.com/the-lightning-land/provisd/network"
	"github.com/the-lightning-land/provisd/portal"
	"github.com/the-lightning-land/provisd/provisioning"
	"github.com/the-lightning-land/provisd/radio"
	"github.com/the-lightning-land/provisd/setupdb"
	"github.com/the-lightning-land/provisd/setuplog"
	"github.com/the-lightning-land/provisd/trigger"
	// Blank import to set up profiling HTTP handlers.
	_ "net/http/pprof"
)

var (
	// Commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// Version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// Date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// provisdMain is the true entry point for provisd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func provisdMain() error {
	setupLog := setuplog.New()

	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.AddHook(setupLog)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	if cfg.Profiling != nil && cfg.Profiling.Listen != "" {
		go func() {
			log.Infof("Starting profiling server on %v", cfg.Profiling.Listen)
			// Redirect the root path
			http.Handle("/", http.RedirectHandler("/debug/pprof", http.StatusSeeOther))
			// All other handlers are registered on DefaultServeMux through the import of pprof
			err := http.ListenAndServe(cfg.Profiling.Listen, nil)
			if err != nil {
				log.Errorf("Could not run profiler: %v", err)
			}
		}()
	}

	// setup.db persistently stores all settings and saved credentials
	db, err := setupdb.Open(cfg.DataDir)
	if err != nil {
		return errors.Errorf("Could not open setup.db: %v", err)
	}

	log.Infof("Opened setup.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close setup.db: %v", err)
		} else {
			log.Info("Closed setup.db.")
		}
	}()

	// The wireless radio all connectivity runs through
	var r radio.Radio

	switch cfg.Radio {
	case "wpa":
		r = radio.NewWpaRadio(&radio.WpaRadioConfig{
			Interface:        cfg.Wpa.Interface,
			HotspotInterface: cfg.Wpa.HotspotInterface,
			Logger:           log.New().WithField("system", "radio"),
		})

		log.Infof("Created wpa_supplicant radio on %v.", cfg.Wpa.Interface)
	case "mock":
		r = radio.NewMock(&radio.MockConfig{
			Respond: true,
			Networks: []*radio.Network{
				{Ssid: "Home", SignalStrength: -54, Encrypted: true},
				{Ssid: "Cafe", SignalStrength: -70, Encrypted: false},
			},
		})

		log.Info("Created a mock radio.")
	default:
		return errors.Errorf("Unknown radio type %v", cfg.Radio)
	}

	// The setup trigger that opens a provisioning session
	var t trigger.Trigger

	switch cfg.Trigger {
	case "gpio":
		t = trigger.NewGpioTrigger(&trigger.GpioTriggerConfig{
			Pin:    cfg.Gpio.Pin,
			Logger: log.New().WithField("system", "trigger"),
		})

		log.Infof("Created GPIO trigger on pin %v.", cfg.Gpio.Pin)
	case "mock":
		t = trigger.NewMockTrigger(&trigger.MockTriggerConfig{
			Listen: cfg.Mock.Listen,
			Logger: log.New().WithField("system", "trigger"),
		})

		log.Info("Created a mock trigger.")
	default:
		return errors.Errorf("Unknown trigger type %v", cfg.Trigger)
	}

	// The connectivity manager owning the radio
	manager := network.NewManager(&network.Config{
		Radio:             r,
		Logger:            log.New().WithField("system", "network"),
		MaxRetries:        cfg.MaxRetries,
		HotspotSsid:       cfg.Hotspot.Ssid,
		HotspotPassphrase: cfg.Hotspot.Passphrase,
		HotspotChannel:    cfg.Hotspot.Channel,
		HotspotMaxPeers:   cfg.Hotspot.MaxPeers,
		HotspotAddress:    "192.168.100.1",
		HotspotGateway:    "192.168.100.1",
		HotspotNetmask:    "255.255.255.0",
	})

	if err := manager.Start(); err != nil {
		return errors.Errorf("Could not start network manager: %v", err)
	}

	log.Info("Started network manager.")

	defer func() {
		err := manager.Stop()
		if err != nil {
			log.Errorf("Could not properly stop network manager: %v", err)
		} else {
			log.Info("Stopped network manager.")
		}
	}()

	// The setup portal served to peers of the hotspot
	p := portal.New(&portal.Config{
		Listen: cfg.PortalListen,
		Logger: log.New().WithField("system", "portal"),
	})

	log.Infof("Created setup portal on %v.", cfg.PortalListen)

	// The provisioning controller running setup sessions
	controller := provisioning.NewController(&provisioning.Config{
		Network:   manager,
		Transport: p,
		Store:     db,
		Logger:    log.New().WithField("system", "provisioning"),
	})

	p.SetReceiver(controller)

	if err := controller.Start(); err != nil {
		return errors.Errorf("Could not start provisioning controller: %v", err)
	}

	log.Info("Started provisioning controller.")

	defer func() {
		controller.Stop()
		log.Info("Stopped provisioning controller.")
	}()

	// Online/offline state derived from connection updates
	reporter := connectivity.NewReporter(manager)

	defer reporter.Stop()

	// Central controller for everything the device does
	dev := device.New(&device.Config{
		Trigger:      t,
		Network:      manager,
		Provisioning: controller,
		DB:           db,
		Reporter:     reporter,
		Logger:       log.New().WithField("system", "device"),
	})

	log.Info("Created device.")

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, stopping device...")
		dev.Shutdown()
	}()

	// blocks until the device is shut down
	err = dev.Run()
	if err != nil {
		return errors.Errorf("Failed running device: %v", err)
	}

	// finish with no error
	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := provisdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running provisd.")
		}
		os.Exit(1)
	}
}
