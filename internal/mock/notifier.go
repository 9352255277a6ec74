package mock

import (
	"sync"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// Notifier records every client-facing notification for inspection.
type Notifier struct {
	mu sync.Mutex

	peers         [][]domain.Peer
	device        []domain.DeviceInfo
	discovery     []bool
	connection    []*domain.Group
	groupsStarted []domain.Group
	groupsRemoved int
	persistent    [][]domain.PersistentGroup
	failures      []ConnectFailure
	pins          []PinNotice
	serviceResps  []ServiceNotice
	usdFound      []UsdNotice
	usdEnded      []int
	p2pStates     []bool
}

// ConnectFailure is one recorded failure notification.
type ConnectFailure struct {
	PeerAddress string
	Reason      domain.FailureReason
}

// PinNotice is one recorded PIN display.
type PinNotice struct {
	PeerAddress string
	Pin         string
}

// ServiceNotice is one recorded frame-based service response delivery.
type ServiceNotice struct {
	ClientID      string
	Response      domain.ServiceResponse
	SourceAddress string
}

// UsdNotice is one recorded session-based discovery match.
type UsdNotice struct {
	ClientID string
	Event    domain.UsdServiceDiscovered
}

func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) PeersChanged(peers []domain.Peer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	snap := make([]domain.Peer, len(peers))
	copy(snap, peers)
	n.peers = append(n.peers, snap)
}

func (n *Notifier) ThisDeviceChanged(dev domain.DeviceInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.device = append(n.device, dev)
}

func (n *Notifier) DiscoveryChanged(started bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.discovery = append(n.discovery, started)
}

func (n *Notifier) ConnectionChanged(group *domain.Group) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if group == nil {
		n.connection = append(n.connection, nil)
		return
	}
	g := *group
	n.connection = append(n.connection, &g)
}

func (n *Notifier) GroupStarted(group domain.Group) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groupsStarted = append(n.groupsStarted, group)
}

func (n *Notifier) GroupRemoved() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.groupsRemoved++
}

func (n *Notifier) PersistentGroupsChanged(groups []domain.PersistentGroup) {
	n.mu.Lock()
	defer n.mu.Unlock()
	snap := make([]domain.PersistentGroup, len(groups))
	copy(snap, groups)
	n.persistent = append(n.persistent, snap)
}

func (n *Notifier) ConnectFailed(peerAddress string, reason domain.FailureReason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, ConnectFailure{PeerAddress: peerAddress, Reason: reason})
}

func (n *Notifier) ProvisioningPin(peerAddress, pin string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pins = append(n.pins, PinNotice{PeerAddress: peerAddress, Pin: pin})
}

func (n *Notifier) ServiceResponse(clientID string, resp domain.ServiceResponse, sourceAddress string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.serviceResps = append(n.serviceResps, ServiceNotice{ClientID: clientID, Response: resp, SourceAddress: sourceAddress})
}

func (n *Notifier) UsdServiceFound(clientID string, ev domain.UsdServiceDiscovered) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usdFound = append(n.usdFound, UsdNotice{ClientID: clientID, Event: ev})
}

func (n *Notifier) UsdSessionEnded(clientID string, sessionID int, reason int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.usdEnded = append(n.usdEnded, sessionID)
}

func (n *Notifier) P2pStateChanged(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.p2pStates = append(n.p2pStates, enabled)
}

// LastPeers returns the most recent peer snapshot, nil when none was
// broadcast.
func (n *Notifier) LastPeers() []domain.Peer {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.peers) == 0 {
		return nil
	}
	return n.peers[len(n.peers)-1]
}

// Failures returns the recorded failure notifications.
func (n *Notifier) Failures() []ConnectFailure {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ConnectFailure, len(n.failures))
	copy(out, n.failures)
	return out
}

// Pins returns the recorded PIN notices.
func (n *Notifier) Pins() []PinNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]PinNotice, len(n.pins))
	copy(out, n.pins)
	return out
}

// ServiceResponses returns the recorded service deliveries.
func (n *Notifier) ServiceResponses() []ServiceNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]ServiceNotice, len(n.serviceResps))
	copy(out, n.serviceResps)
	return out
}

// UsdMatches returns the recorded session-based matches.
func (n *Notifier) UsdMatches() []UsdNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]UsdNotice, len(n.usdFound))
	copy(out, n.usdFound)
	return out
}

// GroupsStarted returns the recorded group announcements.
func (n *Notifier) GroupsStarted() []domain.Group {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.Group, len(n.groupsStarted))
	copy(out, n.groupsStarted)
	return out
}

// GroupsRemoved counts group teardown notifications.
func (n *Notifier) GroupsRemoved() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.groupsRemoved
}

// P2pStates returns the recorded enable/disable toggles.
func (n *Notifier) P2pStates() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bool(nil), n.p2pStates...)
}

// DiscoveryChanges returns the recorded discovery toggles.
func (n *Notifier) DiscoveryChanges() []bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]bool(nil), n.discovery...)
}

// Connections returns the recorded connection snapshots.
func (n *Notifier) Connections() []*domain.Group {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*domain.Group(nil), n.connection...)
}
