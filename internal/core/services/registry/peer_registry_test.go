package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

func TestPeerRegistryUpdateNewAndMerge(t *testing.T) {
	r := NewPeerRegistry()

	p, isNew := r.Update(domain.Peer{Address: "AA:BB:CC:DD:EE:FF", Name: "printer"})
	assert.True(t, isNew)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", p.Address, "addresses are normalized")
	assert.Equal(t, domain.PeerAvailable, p.Status)

	// Second sighting merges instead of duplicating.
	_, isNew = r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:ff", GroupCapability: domain.GroupCapGroupOwner, GroupCapabilityKnown: true})
	assert.False(t, isNew)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Get("AA:bb:CC:dd:EE:ff")
	assert.True(t, ok)
	assert.Equal(t, "printer", got.Name)
	assert.True(t, got.IsGroupOwner())
}

func TestPeerRegistryRejectsEmptyAddress(t *testing.T) {
	r := NewPeerRegistry()
	p, isNew := r.Update(domain.Peer{Name: "ghost"})
	assert.Nil(t, p)
	assert.False(t, isNew)
	assert.Equal(t, 0, r.Len())
}

func TestMarkLostOutsideConnection(t *testing.T) {
	r := NewPeerRegistry()
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:01"})

	changed := r.MarkLost("aa:bb:cc:dd:ee:01", false)
	assert.True(t, changed)
	assert.False(t, r.Has("aa:bb:cc:dd:ee:01"))
}

func TestMarkLostDuringConnectionRetainsPeer(t *testing.T) {
	r := NewPeerRegistry()
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:01"})
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:02"})

	// The in-flight peer stays visible; the bystander is dropped.
	assert.False(t, r.MarkLost("aa:bb:cc:dd:ee:01", true))
	assert.True(t, r.Has("aa:bb:cc:dd:ee:01"))
	assert.True(t, r.MarkLost("aa:bb:cc:dd:ee:02", false))

	// Resolution with a different survivor evicts the parked peer.
	changed := r.ResolveLost("")
	assert.True(t, changed)
	assert.False(t, r.Has("aa:bb:cc:dd:ee:01"))
}

func TestResolveLostSparesSurvivor(t *testing.T) {
	r := NewPeerRegistry()
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:01"})
	r.MarkLost("aa:bb:cc:dd:ee:01", true)

	changed := r.ResolveLost("aa:bb:cc:dd:ee:01")
	assert.False(t, changed)
	assert.True(t, r.Has("aa:bb:cc:dd:ee:01"))
}

func TestSetStatusAndReset(t *testing.T) {
	r := NewPeerRegistry()
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:01"})

	assert.True(t, r.SetStatus("aa:bb:cc:dd:ee:01", domain.PeerInvited))
	assert.False(t, r.SetStatus("aa:bb:cc:dd:ee:01", domain.PeerInvited), "same status is not a change")
	assert.False(t, r.SetStatus("aa:bb:cc:dd:ee:99", domain.PeerConnected), "unknown peer")

	assert.True(t, r.ResetStatuses())
	got, _ := r.Get("aa:bb:cc:dd:ee:01")
	assert.Equal(t, domain.PeerAvailable, got.Status)
}

func TestClear(t *testing.T) {
	r := NewPeerRegistry()
	r.Update(domain.Peer{Address: "aa:bb:cc:dd:ee:01"})
	r.MarkLost("aa:bb:cc:dd:ee:01", true)

	r.Clear()
	assert.Equal(t, 0, r.Len())
	// A stale resolve after clear must be a no-op.
	assert.False(t, r.ResolveLost(""))
}
