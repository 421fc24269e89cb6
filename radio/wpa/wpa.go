package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	busName       = "fi.w1.wpa_supplicant1"
	rootPath      = "/fi/w1/wpa_supplicant1"
	rootInterface = "fi.w1.wpa_supplicant1"
	ifaceName     = "fi.w1.wpa_supplicant1.Interface"
)

// Wpa holds the system bus connection to wpa_supplicant.
type Wpa struct {
	conn *dbus.Conn
}

func New() *Wpa {
	return &Wpa{}
}

func (w *Wpa) Start() error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return errors.Errorf("could not connect to system bus: %v", err)
	}

	w.conn = conn

	return nil
}

func (w *Wpa) Stop() error {
	if w.conn == nil {
		return nil
	}

	err := w.conn.Close()
	if err != nil {
		return errors.Errorf("could not close system bus connection: %v", err)
	}

	w.conn = nil

	return nil
}

// GetInterface resolves the managed interface with the given name.
func (w *Wpa) GetInterface(name string) (*Interface, error) {
	call := w.conn.Object(busName, rootPath).Call(rootInterface+".GetInterface", 0, name)
	if call.Err != nil {
		return nil, errors.Errorf("could not get interface %v: %v", name, call.Err)
	}

	var objPath dbus.ObjectPath
	err := call.Store(&objPath)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return &Interface{
		wpa:  w,
		name: name,
		obj:  w.conn.Object(busName, objPath),
	}, nil
}
