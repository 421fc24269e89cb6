package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

type BSS struct {
	obj dbus.BusObject
}

func (b *BSS) String() string {
	return string(b.obj.Path())
}

type Bss struct {
	Ssid      string
	Signal    int
	Encrypted bool
}

func (b *BSS) GetAll() (*Bss, error) {
	call := b.obj.Call("org.freedesktop.DBus.Properties.GetAll", 0, busName+".BSS")
	if call.Err != nil {
		return nil, errors.Errorf("could not get all properties: %v", call.Err)
	}

	props, ok := call.Body[0].(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Errorf("could not convert output")
	}

	bss := Bss{}

	if val, ok := props["SSID"]; ok {
		if ssid, ok := val.Value().([]byte); ok {
			bss.Ssid = string(ssid)
		} else {
			return nil, errors.Errorf("could not convert SSID to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property SSID was missing")
	}

	if val, ok := props["Signal"]; ok {
		if signal, ok := val.Value().(int16); ok {
			bss.Signal = int(signal)
		}
	}

	// a network counts as encrypted when either RSN or WPA key
	// management is announced
	for _, name := range []string{"RSN", "WPA"} {
		val, ok := props[name]
		if !ok {
			continue
		}

		keys, ok := val.Value().(map[string]dbus.Variant)
		if !ok {
			continue
		}

		if mgmt, ok := keys["KeyMgmt"]; ok {
			if list, ok := mgmt.Value().([]string); ok && len(list) > 0 {
				bss.Encrypted = true
			}
		}
	}

	return &bss, nil
}
