package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// enterGroupCreating opens the single-flight window. Discovery is
// suspended so scan dwells do not starve the negotiation exchange.
func (m *Machine) enterGroupCreating() {
	m.armTimer(timerGroupCreate, m.opts.GroupCreateTimeout)
	if m.discoveryActive {
		if err := m.deps.Driver.StopFind(); err != nil {
			logrus.WithError(err).Debug("stop find on formation start failed")
		}
		m.discoveryActive = false
		m.deps.Notifier.DiscoveryChanged(false)
	}
}

func (m *Machine) exitGroupCreating() {
	m.cancelTimer(timerGroupCreate)
}

// handleGroupCreating is the parent of every formation leaf: it enforces
// the one-attempt-at-a-time invariant and owns the outcomes every leaf
// shares.
func (m *Machine) handleGroupCreating(msg message) bool {
	switch msg.kind {
	case cmdConnect, cmdCreateGroup, cmdRemoveGroup, cmdStartDiscovery:
		m.reply(msg, domain.ErrBusy)
		return true

	case cmdCancelConnect:
		m.handleGroupCreationFailure(domain.ReasonCancelled)
		m.reply(msg, nil)
		return true

	case msgTimerFired:
		if msg.timer != timerGroupCreate {
			return false
		}
		m.handleGroupCreationFailure(domain.ReasonTimedOut)
		return true

	case cbTetherReady:
		cb := msg.payload.(tetherReady)
		if !cb.ok {
			logrus.WithField("interface", cb.iface).Error("tethering failed, removing group")
			_ = m.deps.Driver.GroupRemove(cb.iface)
			m.handleGroupCreationFailure(domain.ReasonError)
			return true
		}
		m.transitionTo(stateGroupCreated)
		return true

	case msgDriverEvent:
		switch ev := msg.payload.(domain.DriverEvent).(type) {
		case domain.GroupStarted:
			return m.completeFormation(ev.Group)

		case domain.GroupRemoved:
			m.handleGroupCreationFailure(domain.ReasonGroupRemoved)
			return true

		case domain.GoNegotiationRequest, domain.InvitationReceived:
			// A second peer knocking while one attempt is in flight:
			// park the request until this attempt settles.
			m.deferMessage(msg)
			return true
		}
		return false
	}
	return false
}

// completeFormation promotes a started group interface into the active
// group, starting the role-specific network plumbing. The owner role
// waits in place for the tethering callback; the client role moves on
// immediately while addressing runs.
func (m *Machine) completeFormation(g domain.Group) bool {
	group := g
	if !group.IsOwner && group.Owner.Address == "" {
		if m.pendingConfig.PeerAddress == "" {
			logrus.Warn("group started with unresolvable owner, removing")
			_ = m.deps.Driver.GroupRemove(group.Interface)
			m.handleGroupCreationFailure(domain.ReasonError)
			return true
		}
		group.Owner.Address = domain.NormalizeAddress(m.pendingConfig.PeerAddress)
	}
	if !group.IsOwner {
		if p, ok := m.peers.Get(group.Owner.Address); ok {
			addr := group.Owner.Address
			group.Owner = *p
			group.Owner.Address = addr
		}
	}
	m.group = &group
	_ = m.deps.Driver.SetGroupIdle(group.Interface, m.opts.GroupIdleTimeout)

	if group.IsOwner {
		iface := group.Interface
		if err := m.deps.Tether.StartTethering(iface, func(ok bool) {
			m.post(message{kind: cbTetherReady, payload: tetherReady{iface: iface, ok: ok}})
		}); err != nil {
			logrus.WithError(err).Error("tethering start failed, removing group")
			_ = m.deps.Driver.GroupRemove(iface)
			m.group = nil
			m.handleGroupCreationFailure(domain.ReasonError)
		}
		return true
	}

	if err := m.deps.IP.Start(group.Interface, ports.ProvisionDHCP, func(res ports.IPProvisionResult) {
		m.post(message{kind: cbIPProvision, payload: ipProvisionDone{result: res}})
	}); err != nil {
		logrus.WithError(err).Error("ip provisioning start failed, removing group")
		_ = m.deps.Driver.GroupRemove(group.Interface)
		m.group = nil
		m.handleGroupCreationFailure(domain.ReasonError)
		return true
	}
	m.peers.SetStatus(group.Owner.Address, domain.PeerConnected)
	m.transitionTo(stateGroupCreated)
	return true
}

// beginIncomingAuthorization routes an inbound request to whichever
// decision source claims the peer and parks the machine in the matching
// authorization state.
func (m *Machine) beginIncomingAuthorization(a *authContext) {
	m.auth = a
	// The peer may be brand new; negotiation requests are allowed to
	// introduce it.
	if !m.peers.Has(a.peerAddress) {
		m.peers.Update(domain.Peer{Address: a.peerAddress, Status: domain.PeerAvailable})
		m.broadcastPeers()
	}
	if a.kind == ports.ApprovalInvitation {
		m.transitionTo(stateUserAuthInvite)
		return
	}
	m.transitionTo(stateUserAuthNegotiation)
}

// enterUserAuth issues the approval request. An external approver
// registered for the peer (or the wildcard) takes precedence over the
// local dialog.
func (m *Machine) enterUserAuth() {
	a := m.auth
	if a == nil {
		logrus.Error("authorization state entered without context")
		return
	}
	var peer domain.Peer
	if p, ok := m.peers.Get(a.peerAddress); ok {
		peer = *p
	} else {
		peer = domain.Peer{Address: a.peerAddress}
	}
	req := ports.ApprovalRequest{
		Kind: a.kind,
		Peer: peer,
		Config: domain.ConnectConfig{
			PeerAddress: a.peerAddress,
			Wps:         domain.WpsInfo{Method: a.wpsMethod},
			NetID:       a.networkID,
		},
	}
	var src ports.DecisionSource = m.deps.UI
	if ap, ok := m.approvers.Lookup(a.peerAddress); ok {
		logrus.WithField("peer", a.peerAddress).Debug("authorization delegated to external approver")
		src = ap
	}
	kind, addr := a.kind, a.peerAddress
	src.RequestApproval(req, func(res ports.ApprovalResult) {
		m.post(message{kind: cbApprovalDecision, payload: approvalDecision{
			kind:        kind,
			peerAddress: addr,
			result:      res,
		}})
	})
}

// decisionMatches guards against a stale approver answer authorizing a
// different request than the one on screen.
func (m *Machine) decisionMatches(d approvalDecision) bool {
	if m.auth == nil || m.auth.kind != d.kind ||
		domain.NormalizeAddress(d.peerAddress) != m.auth.peerAddress {
		logrus.WithFields(logrus.Fields{
			"kind": d.kind.String(),
			"peer": d.peerAddress,
		}).Debug("stale authorization decision dropped")
		return false
	}
	return true
}

func (m *Machine) handleUserAuthNegotiation(msg message) bool {
	if msg.kind != cbApprovalDecision {
		return false
	}
	d := msg.payload.(approvalDecision)
	if !m.decisionMatches(d) {
		return true
	}
	if !d.result.Accepted {
		m.transitionTo(stateRejectWait)
		return true
	}
	m.pendingConfig = domain.ConnectConfig{
		PeerAddress:      m.auth.peerAddress,
		Wps:              domain.WpsInfo{Method: m.auth.wpsMethod, Pin: d.result.Pin},
		GroupOwnerIntent: domain.AutoGroupOwnerIntent,
		NetID:            domain.TemporaryNetID,
	}
	m.pendingClientID = ""
	m.peers.SetStatus(m.auth.peerAddress, domain.PeerInvited)
	m.broadcastPeers()
	m.openSession("incoming_negotiation")
	m.connectPending(false)
	return true
}

func (m *Machine) handleUserAuthInvite(msg message) bool {
	if msg.kind != cbApprovalDecision {
		return false
	}
	d := msg.payload.(approvalDecision)
	if !m.decisionMatches(d) {
		return true
	}
	if !d.result.Accepted {
		m.transitionTo(stateRejectWait)
		return true
	}
	a := m.auth
	m.pendingClientID = ""
	m.peers.SetStatus(a.peerAddress, domain.PeerInvited)
	m.broadcastPeers()

	if a.persistent {
		if pg, ok := m.persistents.FindByOwner(a.peerAddress); ok {
			m.pendingConfig = domain.ConnectConfig{PeerAddress: a.peerAddress, NetID: pg.NetworkID}
			m.openSession("invitation_reinvoke")
			dik := 0
			if p, ok := m.peers.Get(a.peerAddress); ok {
				dik = p.DikID
			}
			if err := m.deps.Driver.Reinvoke(pg.NetworkID, a.peerAddress, dik); err != nil {
				logrus.WithError(err).Warn("reinvoke of invited profile failed")
				m.handleGroupCreationFailure(domain.ReasonError)
				return true
			}
			m.transitionTo(stateGroupNegotiation)
			return true
		}
	}

	// Fresh invitation: join the inviter's running group.
	method := domain.WpsPBC
	if d.result.Pin != "" {
		method = domain.WpsKeypad
	}
	m.pendingConfig = domain.ConnectConfig{
		PeerAddress:       a.peerAddress,
		Wps:               domain.WpsInfo{Method: method, Pin: d.result.Pin},
		JoinExistingGroup: true,
		NetID:             domain.TemporaryNetID,
	}
	m.openSession("invitation_join")
	m.connectPending(true)
	return true
}

// connectPending issues the driver connect for the pending config and
// advances to negotiation. A generated display PIN is surfaced to
// clients.
func (m *Machine) connectPending(join bool) {
	pin, err := m.deps.Driver.Connect(m.pendingConfig, join)
	if err != nil {
		logrus.WithError(err).Warn("driver connect failed")
		m.handleGroupCreationFailure(domain.ReasonError)
		return
	}
	if pin != "" {
		m.pendingPin = pin
		m.deps.Notifier.ProvisioningPin(m.pendingConfig.PeerAddress, pin)
	}
	m.transitionTo(stateGroupNegotiation)
}

func (m *Machine) handleProvisionDiscovery(msg message) bool {
	switch msg.kind {
	case msgDriverEvent:
		switch ev := msg.payload.(domain.DriverEvent).(type) {
		case domain.ProvisionDiscoveryResponse:
			if ev.IsRequest {
				return false
			}
			if domain.NormalizeAddress(ev.PeerAddress) != domain.NormalizeAddress(m.pendingConfig.PeerAddress) {
				logrus.WithField("peer", ev.PeerAddress).Debug("provision response from unexpected peer dropped")
				return true
			}
			if ev.Pin != "" {
				m.pendingPin = ev.Pin
				m.deps.Notifier.ProvisioningPin(ev.PeerAddress, ev.Pin)
			}
			if m.pendingConfig.Wps.Method == domain.WpsKeypad && m.pendingConfig.Wps.Pin == "" && ev.Pin == "" {
				// The peer is displaying a PIN we have to type; ask for it
				// and stay here until it arrives.
				m.requestPinEntry()
				return true
			}
			if ev.Pin != "" {
				m.pendingConfig.Wps.Pin = ev.Pin
			}
			m.connectPending(m.pendingConfig.JoinExistingGroup)
			return true

		case domain.ProvisionDiscoveryFailure:
			if domain.NormalizeAddress(ev.PeerAddress) != domain.NormalizeAddress(m.pendingConfig.PeerAddress) {
				return true
			}
			m.handleGroupCreationFailure(domain.ReasonProvDiscoveryFailed)
			return true
		}
		return false

	case cbApprovalDecision:
		// PIN entry answer for the keypad flow.
		d := msg.payload.(approvalDecision)
		if domain.NormalizeAddress(d.peerAddress) != domain.NormalizeAddress(m.pendingConfig.PeerAddress) {
			return true
		}
		if !d.result.Accepted || d.result.Pin == "" {
			m.handleGroupCreationFailure(domain.ReasonUserRejected)
			return true
		}
		m.pendingConfig.Wps.Pin = d.result.Pin
		m.connectPending(m.pendingConfig.JoinExistingGroup)
		return true
	}
	return false
}

// requestPinEntry asks the local dialog for the PIN the peer displays.
func (m *Machine) requestPinEntry() {
	var peer domain.Peer
	if p, ok := m.peers.Get(m.pendingConfig.PeerAddress); ok {
		peer = *p
	} else {
		peer = domain.Peer{Address: m.pendingConfig.PeerAddress}
	}
	addr := m.pendingConfig.PeerAddress
	m.deps.UI.RequestApproval(ports.ApprovalRequest{
		Kind:   ports.ApprovalNegotiation,
		Peer:   peer,
		Config: m.pendingConfig,
	}, func(res ports.ApprovalResult) {
		m.post(message{kind: cbApprovalDecision, payload: approvalDecision{
			kind:        ports.ApprovalNegotiation,
			peerAddress: addr,
			result:      res,
		}})
	})
}

func (m *Machine) handleGroupNegotiation(msg message) bool {
	if msg.kind != msgDriverEvent {
		return false
	}
	switch ev := msg.payload.(domain.DriverEvent).(type) {
	case domain.GoNegotiationSuccess:
		logrus.Debug("owner negotiation succeeded")
		return true

	case domain.GroupFormationSuccess:
		logrus.Debug("group formation succeeded")
		return true

	case domain.GoNegotiationFailure:
		switch ev.Status {
		case domain.StatusNoCommonChannels:
			m.transitionTo(stateFrequencyConflict)
		case domain.StatusRejectedByUser:
			m.handleGroupCreationFailure(domain.ReasonPeerRejected)
		default:
			logrus.WithField("status", ev.Status).Info("owner negotiation failed")
			m.handleGroupCreationFailure(domain.ReasonNegotiationFailed)
		}
		return true

	case domain.GroupFormationFailure:
		logrus.WithField("reason", ev.Reason).Info("group formation failed")
		m.handleGroupCreationFailure(domain.ReasonNegotiationFailed)
		return true

	case domain.InvitationResult:
		switch ev.Status {
		case domain.StatusSuccess:
			// The group interface follows in its own event.
			return true
		case domain.StatusUnknownGroup:
			// The peer no longer knows the persisted profile; drop the
			// stale record and negotiate from scratch.
			m.pruneStaleReinvocation()
			m.fallbackToNegotiation()
			return true
		case domain.StatusInfoUnavailable:
			if m.opts.WaitForInvitation {
				logrus.WithField("peer", m.pendingConfig.PeerAddress).
					Info("peer deferred reinvocation, waiting for its invitation")
				m.closeSession(false, domain.ReasonNone)
				m.transitionTo(stateInactive)
				return true
			}
			m.fallbackToNegotiation()
			return true
		default:
			logrus.WithField("status", ev.Status).Info("invitation failed")
			m.handleGroupCreationFailure(domain.ReasonInvitationFailed)
			return true
		}
	}
	return false
}

// pruneStaleReinvocation removes the persisted record that the peer just
// disclaimed, whether it was the peer's group or ours with the peer as
// client.
func (m *Machine) pruneStaleReinvocation() {
	addr := domain.NormalizeAddress(m.pendingConfig.PeerAddress)
	if pg, ok := m.persistents.FindOwnedWithClient(addr); ok {
		if _, err := m.persistents.PruneClient(pg.NetworkID, addr); err != nil {
			logrus.WithError(err).Warn("stale client prune failed")
		}
	} else if pg, ok := m.persistents.FindByOwner(addr); ok {
		if err := m.persistents.Delete(pg.NetworkID); err != nil {
			logrus.WithError(err).Warn("stale profile delete failed")
		}
	} else {
		return
	}
	m.deps.Notifier.PersistentGroupsChanged(m.persistents.Snapshot())
}

// fallbackToNegotiation restarts the attempt as a fresh negotiation
// after a reinvocation dead-ends.
func (m *Machine) fallbackToNegotiation() {
	cfg := m.pendingConfig
	cfg.NetID = domain.TemporaryNetID
	m.pendingConfig = cfg
	if err := m.deps.Driver.ProvisionDiscovery(cfg); err != nil {
		logrus.WithError(err).Warn("fallback provision discovery failed")
		m.handleGroupCreationFailure(domain.ReasonProvDiscoveryFailed)
		return
	}
	m.transitionTo(stateProvisionDiscovery)
}

// enterFrequencyConflict asks whether the infrastructure connection may
// be dropped to free the radio.
func (m *Machine) enterFrequencyConflict() {
	var peer domain.Peer
	if p, ok := m.peers.Get(m.pendingConfig.PeerAddress); ok {
		peer = *p
	} else {
		peer = domain.Peer{Address: m.pendingConfig.PeerAddress}
	}
	m.deps.Conflict.PromptDropWifi(peer, func(drop bool) {
		m.post(message{kind: cbFreqConflictDecision, payload: freqConflictDecision{dropWifi: drop}})
	})
}

func (m *Machine) handleFrequencyConflict(msg message) bool {
	if msg.kind != cbFreqConflictDecision {
		return false
	}
	d := msg.payload.(freqConflictDecision)
	if !d.dropWifi {
		m.handleGroupCreationFailure(domain.ReasonUserRejected)
		return true
	}
	// Radio freed: retry the same attempt from idle.
	cfg := m.pendingConfig
	clientID := m.pendingClientID
	m.closeSession(false, domain.ReasonNoCommonChannel)
	m.transitionTo(stateInactive)
	m.replay = append(m.replay, message{kind: cmdConnect, payload: connectRequest{clientID: clientID, cfg: cfg}})
	return true
}

// enterRejectWait tells the peer no and lingers briefly so its retries
// do not immediately reopen the dialog.
func (m *Machine) enterRejectWait() {
	if m.auth != nil {
		if err := m.deps.Driver.Reject(m.auth.peerAddress); err != nil {
			logrus.WithError(err).Debug("reject send failed")
		}
	}
	m.armTimer(timerRejectWait, m.opts.RejectWaitDelay)
}

func (m *Machine) handleRejectWait(msg message) bool {
	switch msg.kind {
	case msgTimerFired:
		if msg.timer != timerRejectWait && msg.timer != timerGroupCreate {
			return false
		}
		// Either the linger delay or the formation backstop ends the
		// wait; nothing failed, so no failure routine.
		m.transitionTo(stateInactive)
		return true
	case msgDriverEvent:
		switch msg.payload.(domain.DriverEvent).(type) {
		case domain.GoNegotiationRequest, domain.ProvisionDiscoveryResponse, domain.InvitationReceived:
			// The peer retrying straight after a rejection; swallow it.
			return true
		}
	}
	return false
}
