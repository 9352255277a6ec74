// Package registry holds the in-memory peer table and the active group.
// Both are owned by the state machine goroutine; nothing here locks, the
// single ordered event queue is the synchronization.
package registry

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// PeerRegistry maps device address to the last known peer snapshot. An
// address appears at most once. The lost set parks peers whose loss
// events arrive mid-connection so the attempt's subject is not evicted
// prematurely.
type PeerRegistry struct {
	peers map[string]*domain.Peer
	lost  map[string]*domain.Peer
}

// NewPeerRegistry creates an empty registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		peers: make(map[string]*domain.Peer),
		lost:  make(map[string]*domain.Peer),
	}
}

// Update merges a discovery snapshot into the table, creating the peer
// on first sight. Returns the stored peer and whether it is new.
func (r *PeerRegistry) Update(in domain.Peer) (*domain.Peer, bool) {
	addr := domain.NormalizeAddress(in.Address)
	if addr == "" {
		return nil, false
	}
	if p, ok := r.peers[addr]; ok {
		p.Update(in)
		return p, false
	}
	p := in
	p.Address = addr
	if p.Status == 0 && !knownStatus(in.Status) {
		p.Status = domain.PeerAvailable
	}
	r.peers[addr] = &p
	logrus.WithFields(logrus.Fields{
		"address": addr,
		"name":    p.Name,
	}).Debug("peer discovered")
	return &p, true
}

func knownStatus(s domain.PeerStatus) bool {
	return s >= domain.PeerConnected && s <= domain.PeerUnavailable
}

// Get looks up a peer by address.
func (r *PeerRegistry) Get(addr string) (*domain.Peer, bool) {
	p, ok := r.peers[domain.NormalizeAddress(addr)]
	return p, ok
}

// Has reports whether the address was ever discovered and is still
// present.
func (r *PeerRegistry) Has(addr string) bool {
	_, ok := r.peers[domain.NormalizeAddress(addr)]
	return ok
}

// Remove drops a peer outright and reports whether it was present.
func (r *PeerRegistry) Remove(addr string) bool {
	norm := domain.NormalizeAddress(addr)
	if _, ok := r.peers[norm]; !ok {
		return false
	}
	delete(r.peers, norm)
	return true
}

// MarkLost handles a peer-lost event. When the address belongs to the
// in-flight connection the peer is parked in the lost set instead of
// being removed; otherwise it is dropped. Reports whether the visible
// table changed.
func (r *PeerRegistry) MarkLost(addr string, inFlight bool) bool {
	norm := domain.NormalizeAddress(addr)
	p, ok := r.peers[norm]
	if !ok {
		return false
	}
	if inFlight {
		r.lost[norm] = p
		return false
	}
	delete(r.peers, norm)
	return true
}

// ResolveLost merges the lost set back into removal once the connection
// attempt settles. The surviving address (the peer we just connected to,
// if any) is spared. Reports whether the visible table changed.
func (r *PeerRegistry) ResolveLost(surviving string) bool {
	changed := false
	norm := domain.NormalizeAddress(surviving)
	for addr := range r.lost {
		delete(r.lost, addr)
		if addr == norm {
			continue
		}
		if _, ok := r.peers[addr]; ok {
			delete(r.peers, addr)
			changed = true
		}
	}
	return changed
}

// ForgetLost drops a single address from the lost set without touching
// the visible table.
func (r *PeerRegistry) ForgetLost(addr string) {
	delete(r.lost, domain.NormalizeAddress(addr))
}

// SetStatus updates a peer's negotiation status, reporting whether the
// peer exists and the status changed.
func (r *PeerRegistry) SetStatus(addr string, status domain.PeerStatus) bool {
	p, ok := r.peers[domain.NormalizeAddress(addr)]
	if !ok || p.Status == status {
		return false
	}
	p.Status = status
	return true
}

// UpdateGroupCapability caches a fresh capability bitmask on the peer.
func (r *PeerRegistry) UpdateGroupCapability(addr string, capability uint8) {
	if p, ok := r.peers[domain.NormalizeAddress(addr)]; ok {
		p.GroupCapability = capability
		p.GroupCapabilityKnown = true
	}
}

// ResetStatuses returns every invited/connected peer to available, used
// when a group tears down.
func (r *PeerRegistry) ResetStatuses() bool {
	changed := false
	for _, p := range r.peers {
		if p.Status == domain.PeerConnected || p.Status == domain.PeerInvited {
			p.Status = domain.PeerAvailable
			changed = true
		}
	}
	return changed
}

// Snapshot returns a copy of the visible peer table.
func (r *PeerRegistry) Snapshot() []domain.Peer {
	out := make([]domain.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// Len returns the number of visible peers.
func (r *PeerRegistry) Len() int {
	return len(r.peers)
}

// Clear empties both the visible table and the lost set.
func (r *PeerRegistry) Clear() {
	r.peers = make(map[string]*domain.Peer)
	r.lost = make(map[string]*domain.Peer)
}
