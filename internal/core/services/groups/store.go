// Package groups maintains the cache of persistent group profiles and
// decides between reinvoking a stored profile and negotiating afresh.
package groups

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// NetworkTable is the slice of the driver surface the store needs: the
// persisted network list and its mutation calls.
type NetworkTable interface {
	ListNetworks() ([]domain.PersistentGroup, error)
	RemoveNetwork(networkID int) error
	SetClientList(networkID int, clients []string) error
	SaveConfig() error
}

// Store caches the driver's persisted group profiles. The driver's own
// store is authoritative; Reload refreshes the cache from it on enable
// and after any mutation. Owned by the state machine goroutine.
type Store struct {
	driver NetworkTable
	byID   map[int]*domain.PersistentGroup
}

// NewStore creates an empty cache over the driver's network table.
func NewStore(driver NetworkTable) *Store {
	return &Store{
		driver: driver,
		byID:   make(map[int]*domain.PersistentGroup),
	}
}

// Reload replaces the cache with the driver's current network list.
func (s *Store) Reload() error {
	list, err := s.driver.ListNetworks()
	if err != nil {
		return fmt.Errorf("list networks: %w", err)
	}
	s.byID = make(map[int]*domain.PersistentGroup, len(list))
	for _, pg := range list {
		stored := pg
		s.byID[pg.NetworkID] = &stored
	}
	logrus.WithField("count", len(s.byID)).Debug("persistent groups reloaded")
	return nil
}

// Snapshot returns a copy of every cached profile.
func (s *Store) Snapshot() []domain.PersistentGroup {
	out := make([]domain.PersistentGroup, 0, len(s.byID))
	for _, pg := range s.byID {
		out = append(out, *pg)
	}
	return out
}

// ByID looks up a profile by network id.
func (s *Store) ByID(networkID int) (*domain.PersistentGroup, bool) {
	pg, ok := s.byID[networkID]
	return pg, ok
}

// FindByOwner looks for a profile whose remembered owner is the given
// device address, the reinvocation candidate when we would be the client.
func (s *Store) FindByOwner(ownerAddress string) (*domain.PersistentGroup, bool) {
	norm := domain.NormalizeAddress(ownerAddress)
	for _, pg := range s.byID {
		if !pg.IsOwner && domain.NormalizeAddress(pg.OwnerAddress) == norm {
			return pg, true
		}
	}
	return nil, false
}

// FindOwnedWithClient looks for a profile we own that remembers the peer
// as a client, the reinvocation candidate when we would be the owner.
func (s *Store) FindOwnedWithClient(clientAddress string) (*domain.PersistentGroup, bool) {
	for _, pg := range s.byID {
		if pg.IsOwner && pg.HasClient(clientAddress) {
			return pg, true
		}
	}
	return nil, false
}

// PruneClient removes a remembered client from the profile holding it.
// A profile whose client list empties is deleted outright from the
// driver store. Returns whether anything changed.
func (s *Store) PruneClient(networkID int, clientAddress string) (bool, error) {
	pg, ok := s.byID[networkID]
	if !ok {
		return false, nil
	}
	if !pg.HasClient(clientAddress) {
		return false, nil
	}
	if empty := pg.RemoveClient(clientAddress); empty {
		return true, s.Delete(networkID)
	}
	if err := s.driver.SetClientList(networkID, pg.Clients); err != nil {
		return true, fmt.Errorf("set client list: %w", err)
	}
	return true, s.driver.SaveConfig()
}

// Delete removes a profile from both the cache and the driver store.
func (s *Store) Delete(networkID int) error {
	delete(s.byID, networkID)
	if err := s.driver.RemoveNetwork(networkID); err != nil {
		return fmt.Errorf("remove network %d: %w", networkID, err)
	}
	return s.driver.SaveConfig()
}

// DeleteAll wipes every stored profile, the factory-reset path.
func (s *Store) DeleteAll() error {
	var firstErr error
	for id := range s.byID {
		if err := s.driver.RemoveNetwork(id); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("remove network %d: %w", id, err)
		}
	}
	s.byID = make(map[int]*domain.PersistentGroup)
	if firstErr != nil {
		return firstErr
	}
	return s.driver.SaveConfig()
}

// ReinvokeDecision is the outcome of the reinvoke-or-negotiate choice.
type ReinvokeDecision struct {
	// Reinvoke is true when a stored profile should be reinvoked.
	Reinvoke  bool
	NetworkID int
	// Invite is true when the profile is reinvoked by inviting the peer
	// into a group we own rather than asking it to bring its group up.
	Invite bool
}

// DecideReinvoke resolves whether connecting to the peer can skip fresh
// negotiation. Persistent reinvocation requires the request to ask for a
// persistent group, the peer to support the invitation procedure, and a
// matching stored profile on either side. Cached capability flags that
// rule the peer out (device limit, group limit on its active group)
// degrade gracefully to fresh negotiation.
func DecideReinvoke(s *Store, peer *domain.Peer, cfg domain.ConnectConfig) ReinvokeDecision {
	if cfg.NetID != domain.PersistentNetID || cfg.JoinExistingGroup {
		return ReinvokeDecision{}
	}
	if peer == nil || !peer.SupportsInvitation() {
		return ReinvokeDecision{}
	}
	if peer.IsDeviceLimitReached() {
		return ReinvokeDecision{}
	}
	if peer.GroupCapabilityKnown && peer.IsGroupOwner() {
		// The peer already operates a group; reinvocation cannot apply.
		return ReinvokeDecision{}
	}
	if pg, ok := s.FindByOwner(peer.Address); ok {
		return ReinvokeDecision{Reinvoke: true, NetworkID: pg.NetworkID}
	}
	if pg, ok := s.FindOwnedWithClient(peer.Address); ok {
		return ReinvokeDecision{Reinvoke: true, NetworkID: pg.NetworkID, Invite: true}
	}
	return ReinvokeDecision{}
}
