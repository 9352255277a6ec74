package ports

import "github.com/lcalzada-xor/wfdirect/internal/core/domain"

// ClientNotifier fans lifecycle notifications out to attached clients.
// How notifications reach a client process is the transport's concern;
// the core only emits them. Implementations must not call back into the
// core synchronously.
type ClientNotifier interface {
	PeersChanged(peers []domain.Peer)
	ThisDeviceChanged(dev domain.DeviceInfo)
	DiscoveryChanged(started bool)
	// ConnectionChanged reports a group forming or tearing down. group is
	// nil once no group is active.
	ConnectionChanged(group *domain.Group)
	GroupStarted(group domain.Group)
	GroupRemoved()
	PersistentGroupsChanged(groups []domain.PersistentGroup)
	ConnectFailed(peerAddress string, reason domain.FailureReason)
	// ProvisioningPin surfaces a generated or received WPS PIN for
	// display.
	ProvisioningPin(peerAddress, pin string)
	// ServiceResponse delivers a demultiplexed frame-based response to
	// its owning client.
	ServiceResponse(clientID string, resp domain.ServiceResponse, sourceAddress string)
	UsdServiceFound(clientID string, ev domain.UsdServiceDiscovered)
	UsdSessionEnded(clientID string, sessionID int, reason int)
	// P2pStateChanged reports the feature going enabled/disabled.
	P2pStateChanged(enabled bool)
}

// DetachReason tells an external approver why its registration ended.
type DetachReason int

const (
	// DetachReplaced means a newer registration took the slot.
	DetachReplaced DetachReason = iota
	// DetachClientGone means the owning client disconnected.
	DetachClientGone
	// DetachPeerRemoved means the associated peer left the table.
	DetachPeerRemoved
	// DetachExplicit means the owner removed the registration itself.
	DetachExplicit
)

func (r DetachReason) String() string {
	switch r {
	case DetachReplaced:
		return "replaced"
	case DetachClientGone:
		return "client_gone"
	case DetachPeerRemoved:
		return "peer_removed"
	}
	return "explicit"
}

// Approver is a registered external delegate for connection
// authorization decisions on a peer address (or the wildcard).
type Approver interface {
	DecisionSource
	// Detached tells the approver its registration was dropped.
	Detached(reason DetachReason)
}
