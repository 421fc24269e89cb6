package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type Interface struct {
	wpa  *Wpa
	name string
	obj  dbus.BusObject
}

// Name returns the kernel name of the managed interface.
func (i *Interface) Name() string {
	return i.name
}

func (i *Interface) Scan() error {
	call := i.obj.Call(ifaceName+".Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return errors.Errorf("could not scan: %v", call.Err)
	}

	return nil
}

func (i *Interface) Disconnect() error {
	call := i.obj.Call(ifaceName+".Disconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not disconnect: %v", call.Err)
	}

	return nil
}

type ScanDoneClient struct {
	ScanDone <-chan bool
	Cancel   func()
}

func (i *Interface) ScanDone() (*ScanDoneClient, error) {
	changeChan := make(chan bool)
	signalChan := make(chan *dbus.Signal)

	client := &ScanDoneClient{
		ScanDone: changeChan,
		Cancel: func() {
			i.wpa.conn.RemoveSignal(signalChan)

			_ = i.wpa.conn.BusObject().RemoveMatchSignal(ifaceName, "ScanDone", dbus.WithMatchObjectPath(i.obj.Path()))

			close(signalChan)
			close(changeChan)
		},
	}

	go func() {
		i.wpa.conn.Signal(signalChan)

		for signal := range signalChan {
			if signal.Name == ifaceName+".ScanDone" && signal.Path == i.obj.Path() {
				done, ok := signal.Body[0].(bool)
				if !ok {
					continue
				}

				changeChan <- done
			}
		}
	}()

	call := i.wpa.conn.BusObject().AddMatchSignal(ifaceName, "ScanDone", dbus.WithMatchObjectPath(i.obj.Path()))
	if call.Err != nil {
		return nil, errors.Errorf("could not add signal: %v", call.Err)
	}

	return client, nil
}

type StateChange struct {
	State string
}

type StateClient struct {
	States <-chan *StateChange
	Cancel func()
}

// StateChanges delivers the supplicant interface state whenever it
// changes (scanning, associating, completed, disconnected, ...).
func (i *Interface) StateChanges() (*StateClient, error) {
	stateChan := make(chan *StateChange)
	signalChan := make(chan *dbus.Signal)

	client := &StateClient{
		States: stateChan,
		Cancel: func() {
			i.wpa.conn.RemoveSignal(signalChan)

			_ = i.wpa.conn.BusObject().RemoveMatchSignal(ifaceName, "PropertiesChanged", dbus.WithMatchObjectPath(i.obj.Path()))

			close(signalChan)
			close(stateChan)
		},
	}

	go func() {
		i.wpa.conn.Signal(signalChan)

		for signal := range signalChan {
			if signal.Name != ifaceName+".PropertiesChanged" || signal.Path != i.obj.Path() {
				continue
			}

			props, ok := signal.Body[0].(map[string]dbus.Variant)
			if !ok {
				continue
			}

			val, ok := props["State"]
			if !ok {
				continue
			}

			state, ok := val.Value().(string)
			if !ok {
				continue
			}

			stateChan <- &StateChange{State: state}
		}
	}()

	call := i.wpa.conn.BusObject().AddMatchSignal(ifaceName, "PropertiesChanged", dbus.WithMatchObjectPath(i.obj.Path()))
	if call.Err != nil {
		return nil, errors.Errorf("could not add signal: %v", call.Err)
	}

	return client, nil
}

func (i *Interface) BSSs() ([]*BSS, error) {
	v, err := i.obj.GetProperty(ifaceName + ".BSSs")
	if err != nil {
		return nil, errors.Errorf("could not get bsss: %v", err)
	}

	objectPaths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert result: %v", err)
	}

	var bsss []*BSS

	for _, objectPath := range objectPaths {
		bsss = append(bsss, &BSS{
			obj: i.wpa.conn.Object(busName, objectPath),
		})
	}

	return bsss, nil
}

func (i *Interface) AddNetwork(ssid string, psk string) (*Network, error) {
	args := map[string]interface{}{}

	if psk != "" {
		args["ssid"] = ssid
		args["psk"] = psk
	} else {
		args["ssid"] = ssid
		args["key_mgmt"] = "NONE"
	}

	call := i.obj.Call(ifaceName+".AddNetwork", 0, args)
	if call.Err != nil {
		return nil, errors.Errorf("could not add network: %v", call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	netObj := i.wpa.conn.Object(busName, objPath)

	return &Network{
		wpa: i.wpa,
		obj: netObj,
	}, nil
}

// SelectNetwork makes the supplicant associate with the given network.
func (i *Interface) SelectNetwork(net *Network) error {
	call := i.obj.Call(ifaceName+".SelectNetwork", 0, net.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not select network: %v", call.Err)
	}

	return nil
}

func (i *Interface) RemoveAllNetworks() error {
	call := i.obj.Call(ifaceName+".RemoveAllNetworks", 0)
	if call.Err != nil {
		return errors.Errorf("could not remove all networks: %v", call.Err)
	}

	return nil
}
