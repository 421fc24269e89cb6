package provisioning

// inboundMessage is what a browser may send. Ssid and Password are
// pointers so a missing field can be told apart from an empty one.
type inboundMessage struct {
	Scan     string  `json:"scan"`
	Ssid     *string `json:"ssid"`
	Password *string `json:"password"`
}

const scanStart = "start"

type wifiEntry struct {
	Ssid      string `json:"ssid"`
	Rssi      int    `json:"rssi"`
	Encrypted bool   `json:"encrypted"`
}

type wifiListMessage struct {
	WifiList []*wifiEntry `json:"wifi_list"`
}

const (
	statusConnected = "connected"
	statusFailed    = "failed"
)

type statusMessage struct {
	Status string `json:"status"`
	Ssid   string `json:"ssid"`
	Ip     string `json:"ip,omitempty"`
}
