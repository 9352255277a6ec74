package domain

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupMembership(t *testing.T) {
	g := Group{Interface: "p2p-wlan0-0", IsOwner: true}

	g.AddMember(GroupMember{DeviceAddress: "aa:bb:cc:dd:ee:01", InterfaceAddress: "aa:bb:cc:dd:ee:11"})
	g.AddMember(GroupMember{DeviceAddress: "aa:bb:cc:dd:ee:02", InterfaceAddress: "aa:bb:cc:dd:ee:12"})
	assert.Len(t, g.Members, 2)

	// Re-adding the same interface address replaces, not appends.
	g.AddMember(GroupMember{DeviceAddress: "aa:bb:cc:dd:ee:03", InterfaceAddress: "aa:bb:cc:dd:ee:11"})
	assert.Len(t, g.Members, 2)
	m, ok := g.MemberByDeviceAddress("aa:bb:cc:dd:ee:03")
	assert.True(t, ok)
	assert.Equal(t, "aa:bb:cc:dd:ee:11", m.InterfaceAddress)

	g.SetMemberIP("aa:bb:cc:dd:ee:12", net.ParseIP("192.168.49.55"))
	m, _ = g.MemberByDeviceAddress("aa:bb:cc:dd:ee:02")
	assert.Equal(t, "192.168.49.55", m.IP.String())

	assert.True(t, g.RemoveMember("aa:bb:cc:dd:ee:11"))
	assert.False(t, g.RemoveMember("aa:bb:cc:dd:ee:11"))
	assert.Len(t, g.Members, 1)
}

func TestGroupIsPersistent(t *testing.T) {
	assert.False(t, (&Group{NetworkID: TemporaryNetID}).IsPersistent())
	assert.True(t, (&Group{NetworkID: PersistentNetID}).IsPersistent())
	assert.True(t, (&Group{NetworkID: 4}).IsPersistent())
}

func TestPersistentGroupClients(t *testing.T) {
	pg := PersistentGroup{Clients: []string{"AA:BB:CC:DD:EE:01", "aa:bb:cc:dd:ee:02"}}

	// Lookup is case-insensitive.
	assert.True(t, pg.HasClient("aa:bb:cc:dd:ee:01"))
	assert.False(t, pg.HasClient("aa:bb:cc:dd:ee:09"))

	// RemoveClient reports whether the list drained.
	assert.False(t, pg.RemoveClient("AA:BB:CC:DD:EE:02"))
	assert.Len(t, pg.Clients, 1)
	assert.True(t, pg.RemoveClient("aa:bb:cc:dd:ee:01"))
	assert.Empty(t, pg.Clients)
}

func TestPeerUpdatePreservesUnsetFieldsAndGroupCapability(t *testing.T) {
	p := Peer{
		Address:          "aa:bb:cc:dd:ee:01",
		Name:             "old-name",
		InterfaceAddress: "aa:bb:cc:dd:ee:11",
		WpsConfigMethods: WpsConfigPushbutton,
	}
	p.Update(Peer{Address: "aa:bb:cc:dd:ee:01", DeviceCapability: DeviceCapServiceDiscovery})

	assert.Equal(t, "old-name", p.Name)
	assert.Equal(t, "aa:bb:cc:dd:ee:11", p.InterfaceAddress)
	assert.Equal(t, WpsConfigPushbutton, p.WpsConfigMethods)
	assert.Equal(t, uint8(DeviceCapServiceDiscovery), p.DeviceCapability)

	// Group capability only sticks when marked known.
	p.Update(Peer{GroupCapability: GroupCapGroupOwner})
	assert.False(t, p.GroupCapabilityKnown)
	p.Update(Peer{GroupCapability: GroupCapGroupOwner, GroupCapabilityKnown: true})
	assert.True(t, p.IsGroupOwner())
}
