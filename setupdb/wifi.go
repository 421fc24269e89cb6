package setupdb

var (
	settingsBucket    = []byte("settings")
	wifiConnectionKey = []byte("wifiConnection")
)

// WifiConnection is the last network the device joined successfully.
type WifiConnection struct {
	Ssid string `json:"ssid"`
	Psk  string `json:"psk"`
}

func (db *DB) SetWifiConnection(connection *WifiConnection) error {
	return db.setJSON(settingsBucket, wifiConnectionKey, connection)
}

func (db *DB) GetWifiConnection() (*WifiConnection, error) {
	connection := &WifiConnection{}

	found, err := db.getJSON(settingsBucket, wifiConnectionKey, connection)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return connection, nil
}
