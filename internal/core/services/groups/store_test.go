package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// fakeDriver implements NetworkTable.
type fakeDriver struct {
	networks    []domain.PersistentGroup
	removed     []int
	clientLists map[int][]string
	saveCount   int
	listErr     error
}

func newFakeDriver(networks ...domain.PersistentGroup) *fakeDriver {
	return &fakeDriver{networks: networks, clientLists: make(map[int][]string)}
}

func (f *fakeDriver) ListNetworks() ([]domain.PersistentGroup, error) {
	return f.networks, f.listErr
}

func (f *fakeDriver) RemoveNetwork(id int) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeDriver) SetClientList(id int, clients []string) error {
	f.clientLists[id] = clients
	return nil
}

func (f *fakeDriver) SaveConfig() error {
	f.saveCount++
	return nil
}

func storeWith(t *testing.T, networks ...domain.PersistentGroup) (*Store, *fakeDriver) {
	t.Helper()
	drv := newFakeDriver(networks...)
	s := NewStore(drv)
	require.NoError(t, s.Reload())
	return s, drv
}

func TestReloadAndLookup(t *testing.T) {
	s, _ := storeWith(t,
		domain.PersistentGroup{NetworkID: 1, OwnerAddress: "aa:bb:cc:dd:ee:01", NetworkName: "DIRECT-go"},
		domain.PersistentGroup{NetworkID: 2, IsOwner: true, Clients: []string{"aa:bb:cc:dd:ee:02"}},
	)

	pg, ok := s.FindByOwner("AA:BB:CC:DD:EE:01")
	require.True(t, ok)
	assert.Equal(t, 1, pg.NetworkID)

	pg, ok = s.FindOwnedWithClient("aa:bb:cc:dd:ee:02")
	require.True(t, ok)
	assert.Equal(t, 2, pg.NetworkID)

	_, ok = s.FindByOwner("aa:bb:cc:dd:ee:99")
	assert.False(t, ok)
}

func TestPruneClientKeepsNonEmptyProfile(t *testing.T) {
	s, drv := storeWith(t, domain.PersistentGroup{
		NetworkID: 5, IsOwner: true,
		Clients: []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02"},
	})

	changed, err := s.PruneClient(5, "aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, drv.removed, "profile with remaining clients is not deleted")
	assert.Equal(t, []string{"aa:bb:cc:dd:ee:02"}, drv.clientLists[5])

	pg, ok := s.ByID(5)
	require.True(t, ok)
	assert.Len(t, pg.Clients, 1)
}

func TestPruneLastClientDeletesProfile(t *testing.T) {
	s, drv := storeWith(t, domain.PersistentGroup{
		NetworkID: 5, IsOwner: true, Clients: []string{"aa:bb:cc:dd:ee:01"},
	})

	changed, err := s.PruneClient(5, "aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []int{5}, drv.removed)

	_, ok := s.ByID(5)
	assert.False(t, ok)
}

func TestPruneUnknownIsNoop(t *testing.T) {
	s, drv := storeWith(t, domain.PersistentGroup{NetworkID: 5, IsOwner: true, Clients: []string{"aa:bb:cc:dd:ee:01"}})

	changed, err := s.PruneClient(9, "aa:bb:cc:dd:ee:01")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.PruneClient(5, "aa:bb:cc:dd:ee:99")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, drv.removed)
}

func TestDeleteAll(t *testing.T) {
	s, drv := storeWith(t,
		domain.PersistentGroup{NetworkID: 1},
		domain.PersistentGroup{NetworkID: 2},
	)
	require.NoError(t, s.DeleteAll())
	assert.Len(t, drv.removed, 2)
	assert.Empty(t, s.Snapshot())
}

func TestDecideReinvoke(t *testing.T) {
	s, _ := storeWith(t,
		domain.PersistentGroup{NetworkID: 1, OwnerAddress: "aa:bb:cc:dd:ee:01"},
		domain.PersistentGroup{NetworkID: 2, IsOwner: true, Clients: []string{"aa:bb:cc:dd:ee:02"}},
	)
	persistent := domain.ConnectConfig{PeerAddress: "aa:bb:cc:dd:ee:01", NetID: domain.PersistentNetID}
	capable := domain.Peer{Address: "aa:bb:cc:dd:ee:01", DeviceCapability: domain.DeviceCapInvitationProcedure}

	t.Run("peer owns the stored group", func(t *testing.T) {
		d := DecideReinvoke(s, &capable, persistent)
		assert.True(t, d.Reinvoke)
		assert.Equal(t, 1, d.NetworkID)
		assert.False(t, d.Invite)
	})

	t.Run("we own a profile listing the peer", func(t *testing.T) {
		peer := capable
		peer.Address = "aa:bb:cc:dd:ee:02"
		d := DecideReinvoke(s, &peer, domain.ConnectConfig{PeerAddress: peer.Address, NetID: domain.PersistentNetID})
		assert.True(t, d.Reinvoke)
		assert.Equal(t, 2, d.NetworkID)
		assert.True(t, d.Invite)
	})

	t.Run("temporary request never reinvokes", func(t *testing.T) {
		cfg := persistent
		cfg.NetID = domain.TemporaryNetID
		assert.False(t, DecideReinvoke(s, &capable, cfg).Reinvoke)
	})

	t.Run("peer without invitation support", func(t *testing.T) {
		peer := capable
		peer.DeviceCapability = 0
		assert.False(t, DecideReinvoke(s, &peer, persistent).Reinvoke)
	})

	t.Run("device limit degrades to fresh negotiation", func(t *testing.T) {
		peer := capable
		peer.DeviceCapability |= domain.DeviceCapDeviceLimit
		assert.False(t, DecideReinvoke(s, &peer, persistent).Reinvoke)
	})

	t.Run("no stored profile degrades to fresh negotiation", func(t *testing.T) {
		peer := capable
		peer.Address = "aa:bb:cc:dd:ee:99"
		cfg := persistent
		cfg.PeerAddress = peer.Address
		assert.False(t, DecideReinvoke(s, &peer, cfg).Reinvoke)
	})
}
