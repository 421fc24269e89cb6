package main

import (
	"github.com/jessevdk/go-flags"
)

type wpaConfig struct {
	Interface        string `long:"interface" description:"Wireless interface used for the station role"`
	HotspotInterface string `long:"hotspotinterface" description:"Wireless interface used for the hotspot role"`
}

type gpioConfig struct {
	Pin string `long:"pin" description:"GPIO pin the setup button is wired to"`
}

type mockConfig struct {
	Listen string `long:"listen" description:"Listen address for simulated button presses (ex. localhost:5000)"`
}

type hotspotConfig struct {
	Ssid       string `long:"ssid" description:"SSID the setup hotspot announces"`
	Passphrase string `long:"passphrase" description:"WPA2 passphrase of the setup hotspot, empty for an open network"`
	Channel    int    `long:"channel" description:"Channel the setup hotspot operates on"`
	MaxPeers   int    `long:"maxpeers" description:"Maximum number of simultaneously connected peers"`
}

type profilingConfig struct {
	Listen string `long:"listen" description:"Add a HTTP server listening on this address for profiling (ex. localhost:6060)"`
}

type config struct {
	ShowVersion  bool             `short:"v" long:"version" description:"Display version information and exit"`
	Debug        bool             `short:"d" long:"debug" description:"Start in debug mode"`
	DataDir      string           `long:"datadir" description:"The directory to store provisd's data within"`
	Radio        string           `long:"radio" description:"The radio controller" choice:"wpa" choice:"mock"`
	Trigger      string           `long:"trigger" description:"The setup trigger" choice:"gpio" choice:"mock"`
	PortalListen string           `long:"portallisten" description:"Listen address of the setup portal"`
	MaxRetries   int              `long:"maxretries" description:"Connection attempts before a network is given up on"`
	Wpa          *wpaConfig       `group:"Wpa" namespace:"wpa"`
	Gpio         *gpioConfig      `group:"Gpio" namespace:"gpio"`
	Mock         *mockConfig      `group:"Mock" namespace:"mock"`
	Hotspot      *hotspotConfig   `group:"Hotspot" namespace:"hotspot"`
	Profiling    *profilingConfig `group:"Profiling" namespace:"profiling"`
}

// loadConfig applies the defaults and parses command line options on
// top of them.
func loadConfig() (*config, error) {
	defaultCfg := config{
		DataDir:      "./data",
		Radio:        "wpa",
		Trigger:      "gpio",
		PortalListen: ":80",
		Wpa: &wpaConfig{
			Interface:        "wlan0",
			HotspotInterface: "wlan0",
		},
		Gpio: &gpioConfig{
			Pin: "GPIO3",
		},
		Mock: &mockConfig{
			Listen: "localhost:5000",
		},
		Hotspot: &hotspotConfig{
			Ssid:     "Setup",
			Channel:  5,
			MaxPeers: 2,
		},
	}

	cfg := defaultCfg

	if _, err := flags.Parse(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
