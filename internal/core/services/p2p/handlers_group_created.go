package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// enterGroupCreated settles the formation attempt: the journal record
// closes as connected and the group is announced. Transient attempt
// state is dropped; the group itself is now the source of truth.
func (m *Machine) enterGroupCreated() {
	m.cancelTimer(timerIdleShutdown)
	m.closeSession(true, domain.ReasonNone)
	m.pendingConfig.Invalidate()
	m.pendingClientID = ""
	m.pendingPin = ""
	m.auth = nil

	if m.group == nil {
		logrus.Error("group state entered without a group")
		m.transitionTo(stateInactive)
		return
	}
	if m.group.IsOwner {
		// Latency beats battery while stations are being served.
		_ = m.deps.Driver.SetPowerSave(m.group.Interface, false)
	}
	if m.group.IsPersistent() {
		if err := m.persistents.Reload(); err != nil {
			logrus.WithError(err).Warn("persistent group reload failed")
		} else {
			m.deps.Notifier.PersistentGroupsChanged(m.persistents.Snapshot())
		}
	}
	logrus.WithFields(logrus.Fields{
		"interface": m.group.Interface,
		"owner":     m.group.IsOwner,
		"network":   m.group.NetworkName,
	}).Info("group up")
	m.deps.Notifier.GroupStarted(*m.group)
	m.deps.Notifier.ConnectionChanged(m.group)
	m.broadcastPeers()
}

func (m *Machine) exitGroupCreated() {
	m.teardownGroupResources()
}

// teardownGroupResources releases everything the group held: tethering
// or addressing, routes, driver caches and peer statuses. Safe to call
// with no group.
func (m *Machine) teardownGroupResources() {
	if m.group == nil {
		return
	}
	iface := m.group.Interface
	if m.group.IsOwner {
		if err := m.deps.Tether.StopTethering(iface); err != nil {
			logrus.WithError(err).Debug("tethering stop failed")
		}
	} else {
		if err := m.deps.IP.Stop(iface); err != nil {
			logrus.WithError(err).Debug("ip provisioning stop failed")
		}
		if err := m.deps.Routes.RemoveInterfaceRoutes(iface); err != nil {
			logrus.WithError(err).Debug("route removal failed")
		}
	}
	_ = m.deps.Driver.Flush()
	m.group = nil
	if m.peers.ResetStatuses() {
		m.broadcastPeers()
	}
	logrus.WithField("interface", iface).Info("group down")
	m.deps.Notifier.GroupRemoved()
	m.deps.Notifier.ConnectionChanged(nil)
}

// handleGroupCreated runs the life of an established group: station
// membership, addressing, invitations extending the group and its
// removal.
func (m *Machine) handleGroupCreated(msg message) bool {
	switch msg.kind {
	case cmdConnect:
		req := msg.payload.(connectRequest)
		m.reply(msg, m.inviteToGroup(req.cfg))
		return true

	case cmdCreateGroup:
		m.reply(msg, domain.ErrBusy)
		return true

	case cmdCancelConnect:
		m.reply(msg, nil)
		return true

	case cmdRemoveGroup:
		if m.group == nil {
			m.reply(msg, nil)
			m.transitionTo(stateInactive)
			return true
		}
		iface := m.group.Interface
		m.transitionTo(stateOngoingGroupRemoval)
		if err := m.deps.Driver.GroupRemove(iface); err != nil {
			// Driver refused; tear down locally so state cannot wedge.
			logrus.WithError(err).Warn("group remove failed, forcing local teardown")
			m.reply(msg, err)
			m.transitionTo(stateInactive)
			return true
		}
		m.reply(msg, nil)
		return true

	case cbIPProvision:
		cb := msg.payload.(ipProvisionDone)
		return m.handleIPProvisioned(cb.result)

	case cbTetherReady:
		// Late duplicate from the formation phase.
		return true

	case msgDriverEvent:
		return m.handleGroupCreatedEvent(msg.payload.(domain.DriverEvent))
	}
	return false
}

func (m *Machine) handleGroupCreatedEvent(ev domain.DriverEvent) bool {
	if m.group == nil {
		return false
	}
	switch ev := ev.(type) {
	case domain.GroupRemoved:
		if ev.Interface != "" && ev.Interface != m.group.Interface {
			return true
		}
		m.transitionTo(stateInactive)
		return true

	case domain.GroupStarted:
		// Already in a group; a second one is dropped, not adopted.
		logrus.WithField("interface", ev.Group.Interface).Warn("second group started, removing")
		_ = m.deps.Driver.GroupRemove(ev.Group.Interface)
		return true

	case domain.StationConnected:
		addr := domain.NormalizeAddress(ev.DeviceAddress)
		m.group.AddMember(domain.GroupMember{
			DeviceAddress:    addr,
			InterfaceAddress: domain.NormalizeAddress(ev.InterfaceAddress),
			IP:               ev.IP,
		})
		if !m.peers.Has(addr) {
			m.peers.Update(domain.Peer{Address: addr})
		}
		m.peers.SetStatus(addr, domain.PeerConnected)
		m.broadcastPeers()
		m.deps.Notifier.ConnectionChanged(m.group)
		return true

	case domain.StationDisconnected:
		m.group.RemoveMember(domain.NormalizeAddress(ev.InterfaceAddress))
		addr := domain.NormalizeAddress(ev.DeviceAddress)
		m.peers.SetStatus(addr, domain.PeerAvailable)
		m.broadcastPeers()
		m.deps.Notifier.ConnectionChanged(m.group)
		return true

	case domain.FrequencyChanged:
		if ev.Interface == m.group.Interface {
			m.group.Frequency = ev.Frequency
			m.deps.Notifier.ConnectionChanged(m.group)
		}
		return true

	case domain.ProvisionDiscoveryResponse:
		if !ev.IsRequest || !m.group.IsOwner {
			return false
		}
		// A station asking to join; route it to user authorization.
		m.beginJoinAuthorization(domain.NormalizeAddress(ev.PeerAddress), ev.Method)
		return true

	case domain.GoNegotiationRequest:
		if !m.group.IsOwner {
			return false
		}
		m.beginJoinAuthorization(domain.NormalizeAddress(ev.SourceAddress), ev.Method)
		return true

	case domain.InvitationReceived:
		// Cannot service an invitation while a group is up.
		logrus.WithField("peer", ev.SourceAddress).Debug("invitation ignored while in group")
		return true

	case domain.InvitationResult:
		if ev.Status != domain.StatusSuccess {
			logrus.WithField("status", ev.Status).Info("group invitation declined")
			if m.pendingConfig.PeerAddress != "" {
				m.peers.SetStatus(m.pendingConfig.PeerAddress, domain.PeerFailed)
				m.deps.Notifier.ConnectFailed(m.pendingConfig.PeerAddress, domain.ReasonInvitationFailed)
				m.pendingConfig.Invalidate()
				m.broadcastPeers()
			}
		}
		return true
	}
	return false
}

// handleIPProvisioned finishes the client-role bring-up once addressing
// settles.
func (m *Machine) handleIPProvisioned(res ports.IPProvisionResult) bool {
	if m.group == nil || res.Interface != m.group.Interface {
		return true
	}
	if !res.Success {
		logrus.WithField("interface", res.Interface).Error("ip provisioning failed, removing group")
		_ = m.deps.Driver.GroupRemove(m.group.Interface)
		return true
	}
	if err := m.deps.Routes.AddInterfaceRoute(res.Interface, res.Address, res.Gateway); err != nil {
		logrus.WithError(err).Warn("interface route install failed")
	}
	logrus.WithFields(logrus.Fields{
		"interface": res.Interface,
		"address":   res.Address,
	}).Info("group addressing complete")
	m.deps.Notifier.ConnectionChanged(m.group)
	return true
}

// inviteToGroup extends the running group to another discovered peer.
func (m *Machine) inviteToGroup(cfg domain.ConnectConfig) error {
	if m.group == nil {
		return domain.ErrBusy
	}
	peer, ok := m.peers.Get(cfg.PeerAddress)
	if !ok {
		return domain.ErrUnknownPeer
	}
	if m.group.IsOwner && m.group.Owner.IsDeviceLimitReached() {
		return domain.ErrBusy
	}
	if err := m.deps.Driver.Invite(*m.group, peer.Address); err != nil {
		return err
	}
	m.pendingConfig = domain.ConnectConfig{PeerAddress: peer.Address}
	m.peers.SetStatus(peer.Address, domain.PeerInvited)
	m.broadcastPeers()
	return nil
}

// beginJoinAuthorization parks the group in the join-authorization leaf
// for the asking station.
func (m *Machine) beginJoinAuthorization(peerAddress string, method domain.WpsMethod) {
	m.auth = &authContext{
		kind:        ports.ApprovalJoin,
		peerAddress: peerAddress,
		wpsMethod:   method,
	}
	if !m.peers.Has(peerAddress) {
		m.peers.Update(domain.Peer{Address: peerAddress})
		m.broadcastPeers()
	}
	m.transitionTo(stateUserAuthJoin)
}

// enterUserAuthJoin reuses the shared authorization entry; the join kind
// is carried in the context.
func (m *Machine) enterUserAuthJoin() {
	m.enterUserAuth()
}

func (m *Machine) handleUserAuthJoin(msg message) bool {
	if msg.kind != cbApprovalDecision {
		return false
	}
	d := msg.payload.(approvalDecision)
	if !m.decisionMatches(d) {
		return true
	}
	a := m.auth
	if m.group == nil {
		m.transitionTo(stateInactive)
		return true
	}
	if !d.result.Accepted {
		logrus.WithField("peer", a.peerAddress).Info("join rejected")
		if err := m.deps.Driver.Reject(a.peerAddress); err != nil {
			logrus.WithError(err).Debug("reject send failed")
		}
		m.auth = nil
		m.transitionTo(stateGroupCreated)
		return true
	}

	iface := m.group.Interface
	target := firstNonEmpty(a.joinInterfaceAddress, a.peerAddress)
	var err error
	switch a.wpsMethod {
	case domain.WpsKeypad:
		if d.result.Pin == "" {
			err = domain.ErrInvalidConfig
		} else {
			err = m.deps.Driver.StartWpsPinKeypad(iface, d.result.Pin)
		}
	case domain.WpsDisplay:
		var pin string
		pin, err = m.deps.Driver.StartWpsPinDisplay(iface, target)
		if err == nil && pin != "" {
			m.deps.Notifier.ProvisioningPin(a.peerAddress, pin)
		}
	default:
		err = m.deps.Driver.StartWpsPbc(iface, target)
	}
	if err != nil {
		logrus.WithError(err).Warn("wps start for joining station failed")
	} else {
		m.peers.SetStatus(a.peerAddress, domain.PeerInvited)
		m.broadcastPeers()
	}
	m.auth = nil
	m.transitionTo(stateGroupCreated)
	return true
}

// handleOngoingGroupRemoval waits out a removal we initiated so a fresh
// connect cannot race the interface going away.
func (m *Machine) handleOngoingGroupRemoval(msg message) bool {
	switch msg.kind {
	case cmdConnect, cmdCreateGroup, cmdRemoveGroup:
		m.reply(msg, domain.ErrBusy)
		return true

	case msgDriverEvent:
		switch msg.payload.(domain.DriverEvent).(type) {
		case domain.GroupRemoved:
			m.transitionTo(stateInactive)
			return true
		case domain.StationConnected, domain.StationDisconnected:
			// Membership churn during teardown is moot.
			return true
		}
		return false
	}
	return false
}
