package domain

import "strings"

// PeerStatus describes the negotiation status of a discovered peer.
type PeerStatus int

const (
	PeerConnected PeerStatus = iota
	PeerInvited
	PeerFailed
	PeerAvailable
	PeerUnavailable
)

func (s PeerStatus) String() string {
	switch s {
	case PeerConnected:
		return "connected"
	case PeerInvited:
		return "invited"
	case PeerFailed:
		return "failed"
	case PeerAvailable:
		return "available"
	case PeerUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// WPS configuration method bits advertised by a peer.
const (
	WpsConfigDisplay    uint16 = 0x0008
	WpsConfigPushbutton uint16 = 0x0080
	WpsConfigKeypad     uint16 = 0x0100
)

// Device capability bits (IEEE 802.11 P2P device capability bitmap).
const (
	DeviceCapServiceDiscovery      = 1 << 0
	DeviceCapClientDiscoverability = 1 << 1
	DeviceCapConcurrentOperation   = 1 << 2
	DeviceCapInfraManaged          = 1 << 3
	DeviceCapDeviceLimit           = 1 << 4
	DeviceCapInvitationProcedure   = 1 << 5
)

// Group capability bits (IEEE 802.11 P2P group capability bitmap).
const (
	GroupCapGroupOwner          = 1 << 0
	GroupCapPersistentGroup     = 1 << 1
	GroupCapGroupLimit          = 1 << 2
	GroupCapIntraBSSDist        = 1 << 3
	GroupCapCrossConnection     = 1 << 4
	GroupCapPersistentReconnect = 1 << 5
	GroupCapGroupFormation      = 1 << 6
)

// Peer represents a remote device seen during discovery or negotiation.
// Peers live only in memory; they are created on the first discovery event
// that references their device address and dropped on loss or teardown.
type Peer struct {
	// Address is the peer's P2P device address, the stable identifier.
	Address string `json:"address"`
	// InterfaceAddress is the address of the interface the peer currently
	// operates on; may differ from Address and may be empty until a
	// negotiation event reveals it.
	InterfaceAddress  string `json:"interface_address,omitempty"`
	Name              string `json:"name"`
	PrimaryDeviceType string `json:"primary_device_type,omitempty"`

	WpsConfigMethods uint16 `json:"wps_config_methods"`
	DeviceCapability uint8  `json:"device_capability"`
	GroupCapability  uint8  `json:"group_capability"`
	// GroupCapabilityKnown marks GroupCapability as a real value from the
	// driver rather than the zero default.
	GroupCapabilityKnown bool       `json:"group_capability_known"`
	Status               PeerStatus `json:"status"`

	// DikID identifies the peer's device identity key when it advertised
	// directed-identity information, 0 when absent. Used for reinvocation.
	DikID int `json:"dik_id,omitempty"`

	WfdInfo []byte `json:"wfd_info,omitempty"`
}

// IsGroupOwner reports whether the peer currently operates an active group.
func (p *Peer) IsGroupOwner() bool {
	return p.GroupCapability&GroupCapGroupOwner != 0
}

// IsGroupLimitReached reports whether the peer advertised that its group
// cannot accept more members.
func (p *Peer) IsGroupLimitReached() bool {
	return p.GroupCapability&GroupCapGroupLimit != 0
}

// IsDeviceLimitReached reports whether the peer cannot participate in
// additional groups.
func (p *Peer) IsDeviceLimitReached() bool {
	return p.DeviceCapability&DeviceCapDeviceLimit != 0
}

// SupportsInvitation reports whether the peer implements the invitation
// procedure, a prerequisite for persistent-group reinvocation.
func (p *Peer) SupportsInvitation() bool {
	return p.DeviceCapability&DeviceCapInvitationProcedure != 0
}

// SupportsWps reports whether the peer advertises the given WPS method.
func (p *Peer) SupportsWps(method uint16) bool {
	return p.WpsConfigMethods&method != 0
}

// Update merges a fresh discovery snapshot into the peer, preserving
// fields the snapshot leaves unset.
func (p *Peer) Update(in Peer) {
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.InterfaceAddress != "" {
		p.InterfaceAddress = in.InterfaceAddress
	}
	if in.PrimaryDeviceType != "" {
		p.PrimaryDeviceType = in.PrimaryDeviceType
	}
	if in.WpsConfigMethods != 0 {
		p.WpsConfigMethods = in.WpsConfigMethods
	}
	p.DeviceCapability = in.DeviceCapability
	if in.GroupCapabilityKnown {
		p.GroupCapability = in.GroupCapability
		p.GroupCapabilityKnown = true
	}
	if in.DikID != 0 {
		p.DikID = in.DikID
	}
	if len(in.WfdInfo) > 0 {
		p.WfdInfo = in.WfdInfo
	}
}

// NormalizeAddress lower-cases a MAC address so map lookups are stable
// regardless of how the driver formats events.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
