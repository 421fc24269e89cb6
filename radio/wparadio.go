package radio

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/provisd/radio/wpa"
)

// check WpaRadio compliance to the Radio interface during compile time
var _ Radio = (*WpaRadio)(nil)

const (
	// how long to wait for an address after the link came up before
	// reporting the link as lost
	addressTimeout = 20 * time.Second

	// how long a scan may take before returning what was found so far
	scanTimeout = 10 * time.Second
)

// WpaRadioConfig configures the wpa_supplicant backed radio.
type WpaRadioConfig struct {
	// Interface is the wireless interface serving the station role (ex. wlan0)
	Interface string
	// HotspotInterface is the interface serving the access point role (ex. uap0)
	HotspotInterface string
	Logger           Logger
}

// WpaRadio drives the station role through the wpa_supplicant D-Bus
// interface and the access point role through a managed hostapd process.
type WpaRadio struct {
	log            Logger
	wpa            *wpa.Wpa
	ifname         string
	hotspotIfname  string
	iface          *wpa.Interface
	states         *wpa.StateClient
	mode           Mode
	hotspot        *HotspotConfig
	hostapd        *exec.Cmd
	hostapdConf    string
	clients        map[uint32]*EventClient
	nextClientId   uint32
	mtx            sync.Mutex
	quit           chan struct{}
	addressWatches sync.WaitGroup
}

func NewWpaRadio(config *WpaRadioConfig) *WpaRadio {
	radio := &WpaRadio{
		ifname:        config.Interface,
		hotspotIfname: config.HotspotInterface,
		wpa:           wpa.New(),
		clients:       make(map[uint32]*EventClient),
		quit:          make(chan struct{}),
	}

	if config.Logger != nil {
		radio.log = config.Logger
	} else {
		radio.log = noopLogger{}
	}

	return radio
}

func (r *WpaRadio) Start() error {
	err := r.wpa.Start()
	if err != nil {
		return errors.Errorf("could not start wpa: %v", err)
	}

	iface, err := r.wpa.GetInterface(r.ifname)
	if err != nil {
		_ = r.wpa.Stop()
		return errors.Errorf("could not find interface %v: %v", r.ifname, err)
	}

	r.iface = iface

	states, err := r.iface.StateChanges()
	if err != nil {
		_ = r.wpa.Stop()
		return errors.Errorf("could not listen for state changes: %v", err)
	}

	r.states = states

	go r.translateStates()

	r.emit(&Event{Type: EventRoleStarted})

	return nil
}

func (r *WpaRadio) Stop() error {
	close(r.quit)

	if r.states != nil {
		r.states.Cancel()
	}

	r.stopHostapd()

	err := r.wpa.Stop()
	if err != nil {
		return errors.Errorf("could not stop wpa: %v", err)
	}

	return nil
}

// translateStates turns supplicant interface states into radio events.
// An association is only worth an address watch, never a connected
// address by itself.
func (r *WpaRadio) translateStates() {
	for state := range r.states.States {
		r.log.Debugf("supplicant state %v", state.State)

		switch state.State {
		case "completed":
			r.emit(&Event{Type: EventLinkConnected})

			r.addressWatches.Add(1)
			go r.watchAddress()
		case "disconnected":
			r.emit(&Event{Type: EventLinkDisconnected})
		}
	}
}

// watchAddress waits until the station interface carries a usable IPv4
// address and reports it. Running DHCP is the job of the host system,
// so all that is left here is observing the result.
func (r *WpaRadio) watchAddress() {
	defer r.addressWatches.Done()

	deadline := time.Now().Add(addressTimeout)

	for time.Now().Before(deadline) {
		select {
		case <-r.quit:
			return
		case <-time.After(500 * time.Millisecond):
		}

		address, err := interfaceAddress(r.ifname)
		if err != nil {
			continue
		}

		r.emit(&Event{Type: EventAddressAcquired, Address: address})
		return
	}

	r.log.Warnf("no address appeared on %v within %v", r.ifname, addressTimeout)
	r.emit(&Event{Type: EventLinkDisconnected})
}

func interfaceAddress(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}

		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLinkLocalUnicast() {
			continue
		}

		return ip.String(), nil
	}

	return "", errors.Errorf("no usable address on %v", name)
}

func (r *WpaRadio) SetMode(mode Mode) error {
	r.mtx.Lock()
	previous := r.mode
	r.mode = mode
	hotspot := r.hotspot
	r.mtx.Unlock()

	r.log.Infof("switching mode %v -> %v", previous, mode)

	if mode.HasHotspot() && !previous.HasHotspot() {
		if hotspot == nil {
			return errors.Errorf("no hotspot configuration available")
		}

		err := r.startHostapd(hotspot)
		if err != nil {
			return errors.Errorf("could not start hostapd: %v", err)
		}
	}

	if !mode.HasHotspot() && previous.HasHotspot() {
		r.stopHostapd()
	}

	if !mode.HasClient() && previous.HasClient() {
		_ = r.iface.Disconnect()
	}

	return nil
}

func (r *WpaRadio) Connect(ssid string, passphrase string) error {
	err := r.iface.RemoveAllNetworks()
	if err != nil {
		r.log.Warnf("could not remove stale networks: %v", err)
	}

	network, err := r.iface.AddNetwork(ssid, passphrase)
	if err != nil {
		return errors.Errorf("could not add network: %v", err)
	}

	err = r.iface.SelectNetwork(network)
	if err != nil {
		return errors.Errorf("could not select network: %v", err)
	}

	return nil
}

func (r *WpaRadio) Disconnect() error {
	err := r.iface.Disconnect()
	if err != nil {
		return errors.Errorf("could not disconnect: %v", err)
	}

	return nil
}

func (r *WpaRadio) ConfigureHotspot(config *HotspotConfig) error {
	r.mtx.Lock()
	r.hotspot = config
	active := r.mode.HasHotspot()
	r.mtx.Unlock()

	if active {
		r.stopHostapd()

		err := r.startHostapd(config)
		if err != nil {
			return errors.Errorf("could not restart hostapd: %v", err)
		}
	}

	return nil
}

func (r *WpaRadio) SetStaticAddress(role Role, address *StaticAddress) error {
	ifname := r.ifname
	if role == RoleHotspot {
		ifname = r.hotspotIfname
	}

	prefix, err := netmaskPrefix(address.Netmask)
	if err != nil {
		return err
	}

	cmd := exec.Command("ip", "addr", "replace",
		fmt.Sprintf("%s/%d", address.Address, prefix), "dev", ifname)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.Errorf("could not assign address to %v: %v (%s)", ifname, err, out)
	}

	return nil
}

func netmaskPrefix(netmask string) (int, error) {
	ip := net.ParseIP(netmask)
	if ip == nil || ip.To4() == nil {
		return 0, errors.Errorf("invalid netmask %v", netmask)
	}

	prefix, _ := net.IPMask(ip.To4()).Size()

	return prefix, nil
}

// Scan triggers an active scan and collects the visible networks. It
// blocks until the supplicant reports completion or the scan timeout
// passes, whichever comes first.
func (r *WpaRadio) Scan() ([]*Network, error) {
	done, err := r.iface.ScanDone()
	if err != nil {
		return nil, errors.Errorf("could not listen for scan completion: %v", err)
	}

	defer done.Cancel()

	err = r.iface.Scan()
	if err != nil {
		return nil, errors.Errorf("could not scan: %v", err)
	}

	select {
	case <-done.ScanDone:
	case <-time.After(scanTimeout):
		r.log.Warnf("scan did not complete within %v, using partial results", scanTimeout)
	case <-r.quit:
		return nil, errors.Errorf("radio is shutting down")
	}

	bsss, err := r.iface.BSSs()
	if err != nil {
		return nil, errors.Errorf("could not get scan results: %v", err)
	}

	var networks []*Network

	for _, bss := range bsss {
		b, err := bss.GetAll()
		if err != nil {
			continue
		}

		if b.Ssid == "" {
			continue
		}

		networks = append(networks, &Network{
			Ssid:           b.Ssid,
			SignalStrength: b.Signal,
			Encrypted:      b.Encrypted,
		})
	}

	return networks, nil
}

func (r *WpaRadio) Subscribe() *EventClient {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	client := &EventClient{
		Events:     make(chan *Event, 16),
		cancelChan: make(chan struct{}),
		radio:      r,
	}

	client.Id = r.nextClientId
	r.nextClientId++

	r.clients[client.Id] = client

	return client
}

func (r *WpaRadio) deleteClient(id uint32) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	delete(r.clients, id)
}

func (r *WpaRadio) emit(event *Event) {
	r.mtx.Lock()
	clients := make([]*EventClient, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		case <-client.cancelChan:
		}
	}
}

func (r *WpaRadio) startHostapd(config *HotspotConfig) error {
	conf := fmt.Sprintf("interface=%s\n"+
		"driver=nl80211\n"+
		"ssid=%s\n"+
		"hw_mode=g\n"+
		"channel=%d\n"+
		"max_num_sta=%d\n",
		r.hotspotIfname, config.Ssid, config.Channel, config.MaxPeers)

	if config.Passphrase != "" {
		conf += fmt.Sprintf("wpa=2\n"+
			"wpa_passphrase=%s\n"+
			"wpa_key_mgmt=WPA-PSK\n"+
			"rsn_pairwise=CCMP\n",
			config.Passphrase)
	}

	path := filepath.Join(os.TempDir(), "provisd-hostapd.conf")

	err := os.WriteFile(path, []byte(conf), 0600)
	if err != nil {
		return errors.Errorf("could not write hostapd configuration: %v", err)
	}

	cmd := exec.Command("hostapd", path)

	err = cmd.Start()
	if err != nil {
		return errors.Errorf("could not run hostapd: %v", err)
	}

	r.mtx.Lock()
	r.hostapd = cmd
	r.hostapdConf = path
	r.mtx.Unlock()

	r.log.Infof("started hostapd for %v on channel %v", config.Ssid, config.Channel)

	return nil
}

func (r *WpaRadio) stopHostapd() {
	r.mtx.Lock()
	cmd := r.hostapd
	conf := r.hostapdConf
	r.hostapd = nil
	r.hostapdConf = ""
	r.mtx.Unlock()

	if cmd == nil {
		return
	}

	err := cmd.Process.Kill()
	if err != nil {
		r.log.Warnf("could not stop hostapd: %v", err)
	}

	_ = cmd.Wait()

	if conf != "" {
		_ = os.Remove(conf)
	}

	r.log.Infof("stopped hostapd")
}
