// Package approver implements delegation of connection-authorization
// decisions to registered external listeners, keyed by peer address.
package approver

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// WildcardAddress matches any peer when no specific registration exists.
const WildcardAddress = "02:00:00:00:00:00"

type key struct {
	owner   string
	address string
}

type entry struct {
	owner    string
	address  string
	approver ports.Approver
}

// Registry maps (owning client, peer address) to the delegate that
// receives authorization requests instead of the local dialog. At most
// one registration exists per pair; a conflicting registration detaches
// the prior one. Owned by the state machine goroutine.
type Registry struct {
	entries map[key]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[key]*entry)}
}

// Attach registers a delegate for the peer address (or WildcardAddress).
// An existing registration for the same pair is detached with reason
// "replaced".
func (r *Registry) Attach(owner, address string, a ports.Approver) {
	k := key{owner: owner, address: domain.NormalizeAddress(address)}
	if prev, ok := r.entries[k]; ok {
		prev.approver.Detached(ports.DetachReplaced)
	}
	r.entries[k] = &entry{owner: owner, address: k.address, approver: a}
	logrus.WithFields(logrus.Fields{
		"owner":   owner,
		"address": k.address,
	}).Debug("external approver attached")
}

// Detach removes the registration for the pair, reporting whether one
// existed.
func (r *Registry) Detach(owner, address string, reason ports.DetachReason) bool {
	k := key{owner: owner, address: domain.NormalizeAddress(address)}
	e, ok := r.entries[k]
	if !ok {
		return false
	}
	delete(r.entries, k)
	e.approver.Detached(reason)
	return true
}

// DetachOwner drops every registration the client owns, used when the
// client disconnects.
func (r *Registry) DetachOwner(owner string) {
	for k, e := range r.entries {
		if k.owner == owner {
			delete(r.entries, k)
			e.approver.Detached(ports.DetachClientGone)
		}
	}
}

// DetachAddress drops every registration bound to a removed peer.
func (r *Registry) DetachAddress(address string) {
	norm := domain.NormalizeAddress(address)
	for k, e := range r.entries {
		if k.address == norm {
			delete(r.entries, k)
			e.approver.Detached(ports.DetachPeerRemoved)
		}
	}
}

// Lookup finds the delegate for a peer address, preferring an exact
// registration over a wildcard one. The second return is false when no
// delegation applies and the local dialog path should run.
func (r *Registry) Lookup(address string) (ports.Approver, bool) {
	norm := domain.NormalizeAddress(address)
	var wildcard ports.Approver
	for k, e := range r.entries {
		if k.address == norm {
			return e.approver, true
		}
		if k.address == domain.NormalizeAddress(WildcardAddress) {
			wildcard = e.approver
		}
	}
	if wildcard != nil {
		return wildcard, true
	}
	return nil, false
}

// Clear detaches everything, used on disable.
func (r *Registry) Clear(reason ports.DetachReason) {
	for k, e := range r.entries {
		delete(r.entries, k)
		e.approver.Detached(reason)
	}
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	return len(r.entries)
}
