package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// handleGroupCreationFailure unwinds a formation attempt: it stops the
// in-flight driver operation, settles the journal record, tells the
// requesting client, evicts peers whose loss was parked during the
// attempt and restarts discovery so the next attempt starts from a live
// peer table. Calling it twice for the same attempt is harmless; every
// step either no-ops or is safe to repeat.
func (m *Machine) handleGroupCreationFailure(reason domain.FailureReason) {
	if m.pendingConfig.Empty() && !m.sessionOpen {
		if m.state.isDescendantOf(stateGroupCreating) {
			m.transitionTo(stateInactive)
		}
		return
	}
	peer := domain.NormalizeAddress(m.pendingConfig.PeerAddress)
	logrus.WithFields(logrus.Fields{
		"peer":   peer,
		"reason": reason.String(),
	}).Info("group formation failed")

	if reason != domain.ReasonGroupRemoved {
		if err := m.deps.Driver.CancelConnect(); err != nil {
			logrus.WithError(err).Debug("cancel connect failed")
		}
	}
	m.closeSession(false, reason)

	if peer != "" {
		m.peers.SetStatus(peer, domain.PeerFailed)
	}
	// Loss events parked while the attempt owned the peer now take
	// effect, the failed peer included.
	m.peers.ResolveLost("")
	m.broadcastPeers()

	if peer != "" {
		m.deps.Notifier.ConnectFailed(peer, reason)
	}

	m.pendingConfig.Invalidate()
	m.pendingClientID = ""
	m.pendingPin = ""
	m.auth = nil

	if err := m.deps.Driver.Find(ports.ScanFull, 0, m.opts.DiscoveryTimeout); err != nil {
		logrus.WithError(err).Debug("post-failure discovery restart failed")
	} else {
		m.discoveryActive = true
		m.deps.Notifier.DiscoveryChanged(true)
	}

	if m.state.isDescendantOf(stateGroupCreating) {
		m.transitionTo(stateInactive)
	}
}
