package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConnectConfig
		wantErr bool
	}{
		{
			name: "valid pbc connect",
			cfg:  ConnectConfig{PeerAddress: "aa:bb:cc:dd:ee:ff", GroupOwnerIntent: AutoGroupOwnerIntent},
		},
		{
			name:    "malformed address",
			cfg:     ConnectConfig{PeerAddress: "aa:bb:cc", GroupOwnerIntent: AutoGroupOwnerIntent},
			wantErr: true,
		},
		{
			name:    "intent out of range",
			cfg:     ConnectConfig{PeerAddress: "aa:bb:cc:dd:ee:ff", GroupOwnerIntent: 16},
			wantErr: true,
		},
		{
			name:    "keypad without pin",
			cfg:     ConnectConfig{PeerAddress: "aa:bb:cc:dd:ee:ff", GroupOwnerIntent: 7, Wps: WpsInfo{Method: WpsKeypad}},
			wantErr: true,
		},
		{
			name: "keypad with pin",
			cfg:  ConnectConfig{PeerAddress: "aa:bb:cc:dd:ee:ff", GroupOwnerIntent: 7, Wps: WpsInfo{Method: WpsKeypad, Pin: "12345670"}},
		},
		{
			name: "fast connection",
			cfg:  ConnectConfig{NetworkName: "DIRECT-ab-test", Passphrase: "secret123"},
		},
		{
			name:    "fast connection bad prefix",
			cfg:     ConnectConfig{NetworkName: "HOME-net", Passphrase: "secret123"},
			wantErr: true,
		},
		{
			name:    "fast connection short passphrase",
			cfg:     ConnectConfig{NetworkName: "DIRECT-ab", Passphrase: "short"},
			wantErr: true,
		},
		{
			name:    "fast connection ssid too long",
			cfg:     ConnectConfig{NetworkName: "DIRECT-0123456789012345678901234567890", Passphrase: "secret123"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWpsMethodInvert(t *testing.T) {
	assert.Equal(t, WpsKeypad, WpsDisplay.Invert())
	assert.Equal(t, WpsDisplay, WpsKeypad.Invert())
	assert.Equal(t, WpsPBC, WpsPBC.Invert())
}

func TestPeerCapabilities(t *testing.T) {
	p := Peer{
		DeviceCapability: DeviceCapInvitationProcedure | DeviceCapDeviceLimit,
		GroupCapability:  GroupCapGroupOwner | GroupCapGroupLimit,
	}
	assert.True(t, p.SupportsInvitation())
	assert.True(t, p.IsDeviceLimitReached())
	assert.True(t, p.IsGroupOwner())
	assert.True(t, p.IsGroupLimitReached())
}

func TestPeerUpdatePreservesUnsetFields(t *testing.T) {
	p := Peer{Address: "aa:bb:cc:dd:ee:ff", Name: "living-room-tv", WpsConfigMethods: WpsConfigPushbutton}
	p.Update(Peer{Address: "aa:bb:cc:dd:ee:ff", GroupCapability: GroupCapGroupOwner, GroupCapabilityKnown: true})

	assert.Equal(t, "living-room-tv", p.Name)
	assert.Equal(t, WpsConfigPushbutton, p.WpsConfigMethods)
	assert.True(t, p.GroupCapabilityKnown)
	assert.True(t, p.IsGroupOwner())
}

func TestPersistentGroupRemoveClient(t *testing.T) {
	pg := PersistentGroup{
		NetworkID:   3,
		NetworkName: "DIRECT-xy",
		Clients:     []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"},
	}

	empty := pg.RemoveClient("AA:BB:CC:DD:EE:01")
	assert.False(t, empty)
	assert.Len(t, pg.Clients, 1)

	empty = pg.RemoveClient("aa:bb:cc:dd:ee:02")
	assert.True(t, empty)
}

func TestGroupMembers(t *testing.T) {
	g := Group{Interface: "p2p-wlan0-0", IsOwner: true}
	g.AddMember(GroupMember{InterfaceAddress: "02:11:22:33:44:55", DeviceAddress: "aa:bb:cc:dd:ee:01"})
	g.AddMember(GroupMember{InterfaceAddress: "02:11:22:33:44:55", DeviceAddress: "aa:bb:cc:dd:ee:01"})
	assert.Len(t, g.Members, 1, "re-join replaces the existing entry")

	m, ok := g.MemberByDeviceAddress("aa:bb:cc:dd:ee:01")
	assert.True(t, ok)
	assert.Equal(t, "02:11:22:33:44:55", m.InterfaceAddress)

	assert.True(t, g.RemoveMember("02:11:22:33:44:55"))
	assert.False(t, g.RemoveMember("02:11:22:33:44:55"))
}
