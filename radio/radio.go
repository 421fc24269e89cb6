package radio

// Mode describes which roles the radio currently serves.
type Mode int

const (
	// ModeClient runs the station role only
	ModeClient Mode = iota
	// ModeHotspot runs the local access point role only
	ModeHotspot
	// ModeCombined runs both roles at the same time
	ModeCombined
)

func (m Mode) String() string {
	switch m {
	case ModeClient:
		return "client"
	case ModeHotspot:
		return "hotspot"
	case ModeCombined:
		return "combined"
	default:
		return "invalid"
	}
}

// HasClient reports whether the station role is part of the mode.
func (m Mode) HasClient() bool {
	return m == ModeClient || m == ModeCombined
}

// HasHotspot reports whether the access point role is part of the mode.
func (m Mode) HasHotspot() bool {
	return m == ModeHotspot || m == ModeCombined
}

// Role names one of the two radio roles for role-scoped commands.
type Role int

const (
	RoleClient Role = iota
	RoleHotspot
)

// Network is a single discovered wireless network.
type Network struct {
	Ssid           string
	SignalStrength int
	Encrypted      bool
}

// HotspotConfig carries the access point settings.
type HotspotConfig struct {
	Ssid       string
	Passphrase string
	Channel    int
	MaxPeers   int
}

// StaticAddress assigns a fixed address to one of the roles.
type StaticAddress struct {
	Address string
	Gateway string
	Netmask string
}

// Radio is the driver every backend implements. Commands return as soon
// as they were issued; outcomes arrive as events on subscribed clients.
type Radio interface {
	Start() error
	Stop() error
	SetMode(mode Mode) error
	Connect(ssid string, passphrase string) error
	Disconnect() error
	ConfigureHotspot(config *HotspotConfig) error
	SetStaticAddress(role Role, address *StaticAddress) error
	Scan() ([]*Network, error)
	Subscribe() *EventClient
	deleteClient(uint32)
}
