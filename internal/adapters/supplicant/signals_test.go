package supplicant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbus "github.com/godbus/dbus/v5"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

func TestParseServiceTlvs(t *testing.T) {
	// Two records: bonjour (proto 1, tid 7, status 0, payload 0xAB) and
	// upnp (proto 2, tid 8, status 3, empty payload).
	raw := []byte{
		0x04, 0x00, 0x01, 0x07, 0x00, 0xAB,
		0x03, 0x00, 0x02, 0x08, 0x03,
	}
	out := parseServiceTlvs(raw)
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0].Protocol)
	assert.Equal(t, uint8(7), out[0].TransactionID)
	assert.Equal(t, []byte{0xAB}, out[0].Data)
	assert.Equal(t, 3, out[1].Status)
	assert.Empty(t, out[1].Data)
}

func TestParseServiceTlvsTruncated(t *testing.T) {
	// Declared length runs past the buffer; nothing usable.
	assert.Empty(t, parseServiceTlvs([]byte{0x10, 0x00, 0x01}))
}

func TestMacRoundTrip(t *testing.T) {
	raw := []byte{0xaa, 0xbb, 0xcc, 0x00, 0x11, 0x22}
	s := macString(raw)
	assert.Equal(t, "aa:bb:cc:00:11:22", s)
	assert.Equal(t, raw, macBytes(s))
	assert.Nil(t, macBytes("not-a-mac"))
}

func TestAddressFromPath(t *testing.T) {
	p := dbus.ObjectPath("/fi/w1/wpa_supplicant1/Interfaces/3/Peers/aabbcc001122")
	assert.Equal(t, "aa:bb:cc:00:11:22", addressFromPath(p))
	assert.Empty(t, addressFromPath("/fi/w1/wpa_supplicant1/Interfaces/3"))
}

func TestNetworkIDFromPath(t *testing.T) {
	p := dbus.ObjectPath("/fi/w1/wpa_supplicant1/Interfaces/3/PersistentGroups/7")
	assert.Equal(t, 7, networkIDFromPath(p))
	assert.Equal(t, domain.TemporaryNetID,
		networkIDFromPath("/fi/w1/wpa_supplicant1/Interfaces/3"))
}

func TestServiceArgs(t *testing.T) {
	args, err := serviceArgs("bonjour 0b5f6166706f766572746370c00c000c01 0474657374c027")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", args["service_type"].Value())

	args, err = serviceArgs("upnp 10 uuid:6859dede-8574-59ab-9332-123456789012")
	require.NoError(t, err)
	assert.Equal(t, int32(0x10), args["version"].Value())

	_, err = serviceArgs("bogus x y")
	assert.Error(t, err)
}

func TestPeerFromProps(t *testing.T) {
	props := map[string]dbus.Variant{
		"DeviceAddress":    dbus.MakeVariant([]byte{0xaa, 0xbb, 0xcc, 0x00, 0x11, 0x22}),
		"DeviceName":       dbus.MakeVariant("kitchen-display"),
		"config_method":    dbus.MakeVariant(uint16(domain.WpsConfigPushbutton)),
		"devicecapability": dbus.MakeVariant(byte(domain.DeviceCapServiceDiscovery)),
		"groupcapability":  dbus.MakeVariant(byte(domain.GroupCapGroupOwner)),
	}
	peer := peerFromProps(props)
	assert.Equal(t, "aa:bb:cc:00:11:22", peer.Address)
	assert.Equal(t, "kitchen-display", peer.Name)
	assert.True(t, peer.IsGroupOwner())
	assert.True(t, peer.GroupCapabilityKnown)
	assert.Equal(t, domain.PeerAvailable, peer.Status)
}

func TestWpsMethodString(t *testing.T) {
	assert.Equal(t, "pbc", wpsMethodString(domain.WpsPBC))
	assert.Equal(t, "display", wpsMethodString(domain.WpsDisplay))
	assert.Equal(t, "keypad", wpsMethodString(domain.WpsKeypad))
}
