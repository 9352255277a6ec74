package domain

import (
	"regexp"
	"strings"
)

// WpsMethod selects the WPS provisioning method for a connection attempt.
type WpsMethod int

const (
	// WpsPBC is push-button configuration.
	WpsPBC WpsMethod = iota
	// WpsDisplay means the local device displays a PIN the peer enters.
	WpsDisplay
	// WpsKeypad means the local device enters a PIN the peer displays.
	WpsKeypad
	WpsLabel
)

func (m WpsMethod) String() string {
	switch m {
	case WpsPBC:
		return "pbc"
	case WpsDisplay:
		return "display"
	case WpsKeypad:
		return "keypad"
	case WpsLabel:
		return "label"
	}
	return "unknown"
}

// Invert returns the method the responder side must use for the
// initiator's method: a displayed PIN is entered on the other end.
func (m WpsMethod) Invert() WpsMethod {
	switch m {
	case WpsDisplay:
		return WpsKeypad
	case WpsKeypad:
		return WpsDisplay
	}
	return m
}

// WpsInfo carries the method and, for PIN flows, the PIN itself.
type WpsInfo struct {
	Method WpsMethod `json:"method"`
	Pin    string    `json:"pin,omitempty"`
}

// Group-owner intent bounds. MaxGroupOwnerIntent wins ties toward the
// owner role; AutoGroupOwnerIntent lets the policy pick a value.
const (
	MinGroupOwnerIntent  = 0
	MaxGroupOwnerIntent  = 15
	AutoGroupOwnerIntent = -1
)

// ConnectConfig is a client's request to form or join a group with a
// specific peer. At most one non-empty config is in flight at a time;
// it is the "saved peer config" the machine validates authorization
// decisions against.
type ConnectConfig struct {
	PeerAddress string  `json:"peer_address"`
	Wps         WpsInfo `json:"wps"`
	// GroupOwnerIntent biases the owner-role election, AutoGroupOwnerIntent
	// delegates the choice.
	GroupOwnerIntent int `json:"group_owner_intent"`
	// NetID is PersistentNetID to persist the resulting profile,
	// TemporaryNetID otherwise.
	NetID int `json:"net_id"`
	// JoinExistingGroup connects to a group the peer already operates
	// instead of negotiating a new one.
	JoinExistingGroup bool `json:"join_existing_group"`

	// NetworkName and Passphrase, when both set, request the
	// fast-connection shortcut: the group is formed directly from the
	// supplied credentials with no provision discovery.
	NetworkName string `json:"network_name,omitempty"`
	Passphrase  string `json:"-"`
	// Frequency pins the group operating frequency in MHz, 0 for auto.
	Frequency int `json:"frequency,omitempty"`
}

// IsFastConnection reports whether the config carries direct credentials.
func (c *ConnectConfig) IsFastConnection() bool {
	return c.NetworkName != "" && c.Passphrase != ""
}

// Empty reports whether no connection target is pending.
func (c *ConnectConfig) Empty() bool {
	return c.PeerAddress == "" && c.NetworkName == ""
}

// Invalidate resets the config to the empty state.
func (c *ConnectConfig) Invalidate() {
	*c = ConnectConfig{}
}

var macRe = regexp.MustCompile(`^([0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2}$`)

// ValidAddress reports whether addr is a well-formed MAC address.
func ValidAddress(addr string) bool {
	return macRe.MatchString(addr)
}

const networkNamePrefix = "DIRECT-"

// Validate rejects malformed connect requests at the command boundary,
// before anything is enqueued into the protocol pipeline.
func (c *ConnectConfig) Validate() error {
	if c.IsFastConnection() {
		if !strings.HasPrefix(c.NetworkName, networkNamePrefix) {
			return ErrInvalidConfig
		}
		// SSID is capped at 32 octets; the passphrase range is the WPA2 one.
		if len(c.NetworkName) > 32 {
			return ErrInvalidConfig
		}
		if len(c.Passphrase) < 8 || len(c.Passphrase) > 63 {
			return ErrInvalidConfig
		}
		if c.PeerAddress != "" && !ValidAddress(c.PeerAddress) {
			return ErrInvalidConfig
		}
		return nil
	}
	if !ValidAddress(c.PeerAddress) {
		return ErrInvalidConfig
	}
	if c.GroupOwnerIntent != AutoGroupOwnerIntent &&
		(c.GroupOwnerIntent < MinGroupOwnerIntent || c.GroupOwnerIntent > MaxGroupOwnerIntent) {
		return ErrInvalidConfig
	}
	if (c.Wps.Method == WpsKeypad) && c.Wps.Pin == "" {
		return ErrInvalidConfig
	}
	return nil
}
