package app

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// arbiter grants the radio unconditionally. On hosts where another
// service shares the radio this is the integration point.
type arbiter struct{}

func (arbiter) RequestInterface(requestor string, resolved func(approved bool)) ports.ResourceDecision {
	return ports.ResourceProceed
}

// headlessApprover is the fallback decision source when no external
// approver is registered for the requesting peer. PBC requests are
// accepted, PIN flows are rejected because nobody can type one.
type headlessApprover struct{}

func (headlessApprover) RequestApproval(req ports.ApprovalRequest, respond func(ports.ApprovalResult)) {
	accepted := req.Config.Wps.Method == domain.WpsPBC
	logrus.WithFields(logrus.Fields{
		"kind":     req.Kind.String(),
		"peer":     req.Peer.Address,
		"method":   req.Config.Wps.Method.String(),
		"accepted": accepted,
	}).Info("headless authorization decision")
	go respond(ports.ApprovalResult{Accepted: accepted})
}

// keepWifiPolicy never drops the infrastructure connection for a P2P
// group; the attempt fails instead.
type keepWifiPolicy struct{}

func (keepWifiPolicy) PromptDropWifi(peer domain.Peer, respond func(drop bool)) {
	logrus.WithField("peer", peer.Address).Info("frequency conflict, keeping infrastructure wifi")
	go respond(false)
}

// logNotifier writes client notifications to the structured log. The
// web surface polls state instead of subscribing, so the log is the
// only push channel in the daemon build.
type logNotifier struct{}

var _ ports.ClientNotifier = logNotifier{}

func (logNotifier) PeersChanged(peers []domain.Peer) {
	logrus.WithField("count", len(peers)).Debug("peers changed")
}

func (logNotifier) ThisDeviceChanged(dev domain.DeviceInfo) {
	logrus.WithFields(logrus.Fields{"name": dev.Name, "address": dev.Address}).Debug("device changed")
}

func (logNotifier) DiscoveryChanged(started bool) {
	logrus.WithField("started", started).Debug("discovery changed")
}

func (logNotifier) ConnectionChanged(group *domain.Group) {
	if group == nil {
		logrus.Info("connection cleared")
		return
	}
	logrus.WithFields(logrus.Fields{
		"interface": group.Interface,
		"owner":     group.IsOwner,
	}).Info("connection changed")
}

func (logNotifier) GroupStarted(group domain.Group) {
	logrus.WithFields(logrus.Fields{
		"interface": group.Interface,
		"network":   group.NetworkName,
		"owner":     group.IsOwner,
	}).Info("group started")
}

func (logNotifier) GroupRemoved() {
	logrus.Info("group removed")
}

func (logNotifier) PersistentGroupsChanged(groups []domain.PersistentGroup) {
	logrus.WithField("count", len(groups)).Debug("persistent groups changed")
}

func (logNotifier) ConnectFailed(peerAddress string, reason domain.FailureReason) {
	logrus.WithFields(logrus.Fields{
		"peer":   peerAddress,
		"reason": reason.String(),
	}).Warn("connect failed")
}

func (logNotifier) ProvisioningPin(peerAddress, pin string) {
	logrus.WithFields(logrus.Fields{"peer": peerAddress, "pin": pin}).Info("provisioning pin")
}

func (logNotifier) ServiceResponse(clientID string, resp domain.ServiceResponse, sourceAddress string) {
	logrus.WithFields(logrus.Fields{
		"client": clientID,
		"source": sourceAddress,
		"tid":    resp.TransactionID,
	}).Debug("service response")
}

func (logNotifier) UsdServiceFound(clientID string, ev domain.UsdServiceDiscovered) {
	logrus.WithFields(logrus.Fields{
		"client": clientID,
		"peer":   ev.PeerAddress,
	}).Info("usd service found")
}

func (logNotifier) UsdSessionEnded(clientID string, sessionID int, reason int) {
	logrus.WithFields(logrus.Fields{
		"client":  clientID,
		"session": sessionID,
		"reason":  reason,
	}).Debug("usd session ended")
}

func (logNotifier) P2pStateChanged(enabled bool) {
	logrus.WithField("enabled", enabled).Info("p2p state changed")
}
