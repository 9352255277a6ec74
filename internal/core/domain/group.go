package domain

import "net"

// Network id sentinels mirroring the driver's network table conventions.
const (
	// TemporaryNetID requests a group that is forgotten on teardown.
	TemporaryNetID = -1
	// PersistentNetID requests that the driver persist the group profile.
	PersistentNetID = -2
)

// GroupMember is a station that joined a group we own.
type GroupMember struct {
	// DeviceAddress is the member's P2P device address when it could be
	// resolved from the peer table, otherwise equal to InterfaceAddress.
	DeviceAddress    string `json:"device_address"`
	InterfaceAddress string `json:"interface_address"`
	IP               net.IP `json:"ip,omitempty"`
}

// Group is the single active P2P group, created when the driver reports
// group-started and destroyed on group-removed.
type Group struct {
	Interface   string `json:"interface"`
	NetworkID   int    `json:"network_id"`
	NetworkName string `json:"network_name"`
	// IsOwner is true when the local device won the owner role.
	IsOwner    bool   `json:"is_owner"`
	Owner      Peer   `json:"owner"`
	Passphrase string `json:"passphrase,omitempty"`
	Frequency  int    `json:"frequency,omitempty"`

	// Members is maintained only in the owner role.
	Members []GroupMember `json:"members,omitempty"`
}

// IsPersistent reports whether the group is backed by a stored profile.
func (g *Group) IsPersistent() bool {
	return g.NetworkID >= 0 || g.NetworkID == PersistentNetID
}

// AddMember records a joined station, replacing any entry with the same
// interface address.
func (g *Group) AddMember(m GroupMember) {
	for i := range g.Members {
		if g.Members[i].InterfaceAddress == m.InterfaceAddress {
			g.Members[i] = m
			return
		}
	}
	g.Members = append(g.Members, m)
}

// RemoveMember drops the station with the given interface address and
// reports whether it was present.
func (g *Group) RemoveMember(interfaceAddress string) bool {
	for i := range g.Members {
		if g.Members[i].InterfaceAddress == interfaceAddress {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			return true
		}
	}
	return false
}

// MemberByDeviceAddress looks a member up by device address.
func (g *Group) MemberByDeviceAddress(addr string) (GroupMember, bool) {
	for _, m := range g.Members {
		if m.DeviceAddress == addr {
			return m, true
		}
	}
	return GroupMember{}, false
}

// SetMemberIP associates a DHCP lease with a member.
func (g *Group) SetMemberIP(interfaceAddress string, ip net.IP) {
	for i := range g.Members {
		if g.Members[i].InterfaceAddress == interfaceAddress {
			g.Members[i].IP = ip
			return
		}
	}
}

// PersistentGroup is a stored group profile that can be reinvoked later
// without a fresh negotiation. Profiles survive group teardown and are
// reloaded from the driver's own store on enable.
type PersistentGroup struct {
	NetworkID    int    `json:"network_id"`
	NetworkName  string `json:"network_name"`
	OwnerAddress string `json:"owner_address"`
	// IsOwner is true when the local device owns the stored profile.
	IsOwner bool     `json:"is_owner"`
	Clients []string `json:"clients,omitempty"`
}

// HasClient reports whether the given device address is on the stored
// client list.
func (pg *PersistentGroup) HasClient(addr string) bool {
	for _, c := range pg.Clients {
		if NormalizeAddress(c) == NormalizeAddress(addr) {
			return true
		}
	}
	return false
}

// RemoveClient prunes a client from the profile and reports whether the
// list is empty afterwards.
func (pg *PersistentGroup) RemoveClient(addr string) bool {
	norm := NormalizeAddress(addr)
	for i, c := range pg.Clients {
		if NormalizeAddress(c) == norm {
			pg.Clients = append(pg.Clients[:i], pg.Clients[i+1:]...)
			break
		}
	}
	return len(pg.Clients) == 0
}
