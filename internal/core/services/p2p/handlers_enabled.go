package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/groups"
)

// handleEnabled is the Enabled parent: peer table maintenance, service
// discovery and the commands legal whenever the interface is up.
func (m *Machine) handleEnabled(msg message) bool {
	switch msg.kind {
	case msgDriverEvent:
		return m.handleEnabledEvent(msg.payload.(domain.DriverEvent))

	case cmdClientAttach:
		req := msg.payload.(attachRequest)
		m.clients[req.clientID] = &clientInfo{id: req.clientID, name: req.name, active: req.active}
		m.reply(msg, nil)
		if req.active {
			m.cancelTimer(timerIdleShutdown)
		}
		return true

	case cmdClientDetach:
		req := msg.payload.(detachRequest)
		m.releaseClientDriverState(req.clientID)
		m.detachClientState(req.clientID)
		m.reply(msg, nil)
		m.evaluateIdleShutdown()
		return true

	case cmdStartDiscovery:
		req := msg.payload.(discoveryRequest)
		if err := m.deps.Driver.Find(req.scan, req.freq, m.opts.DiscoveryTimeout); err != nil {
			m.reply(msg, err)
			return true
		}
		m.discoveryActive = true
		m.deps.Notifier.DiscoveryChanged(true)
		m.reply(msg, nil)
		return true

	case cmdStopDiscovery:
		err := m.deps.Driver.StopFind()
		if err == nil && m.discoveryActive {
			m.discoveryActive = false
			m.deps.Notifier.DiscoveryChanged(false)
		}
		m.reply(msg, err)
		return true

	case cmdAddServiceRequest:
		req := msg.payload.(serviceRequestAdd)
		stored, err := m.tracker.AddRequest(req.clientID, req.req)
		if err != nil {
			m.reply(msg, err)
			return true
		}
		if err := m.reissueServiceQuery(); err != nil {
			m.tracker.RemoveRequest(req.clientID, stored.TransactionID)
			m.reply(msg, err)
			return true
		}
		*req.out = stored.TransactionID
		m.reply(msg, nil)
		return true

	case cmdRemoveServiceRequest:
		req := msg.payload.(serviceRequestRemove)
		if !m.tracker.RemoveRequest(req.clientID, req.transactionID) {
			m.reply(msg, domain.ErrNoServiceRequests)
			return true
		}
		m.reply(msg, m.reissueServiceQuery())
		return true

	case cmdDiscoverServices:
		if !m.tracker.HasRequests() {
			m.reply(msg, domain.ErrNoServiceRequests)
			return true
		}
		if err := m.reissueServiceQuery(); err != nil {
			m.reply(msg, err)
			return true
		}
		if err := m.deps.Driver.Find(0, 0, m.opts.DiscoveryTimeout); err != nil {
			m.reply(msg, err)
			return true
		}
		m.discoveryActive = true
		m.deps.Notifier.DiscoveryChanged(true)
		m.reply(msg, nil)
		return true

	case cmdAddLocalService:
		req := msg.payload.(localServiceAdd)
		if err := m.deps.Driver.ServiceAdd(req.svc.Entries); err != nil {
			m.reply(msg, err)
			return true
		}
		m.tracker.AddLocalService(req.clientID, req.svc)
		m.reply(msg, nil)
		return true

	case cmdRemoveLocalService:
		req := msg.payload.(localServiceRemove)
		svc, ok := m.tracker.RemoveLocalService(req.clientID, req.entries)
		if !ok {
			m.reply(msg, domain.ErrNoServiceRequests)
			return true
		}
		m.reply(msg, m.deps.Driver.ServiceRemove(svc.Entries))
		return true

	case cmdStartUsdDiscovery:
		req := msg.payload.(usdStart)
		id, err := m.deps.Driver.StartUsdDiscovery(req.cfg, m.opts.DiscoveryTimeout)
		if err != nil {
			m.reply(msg, err)
			return true
		}
		if err := m.tracker.AddSession(domain.UsdSession{ClientID: req.clientID, SessionID: id, Kind: domain.UsdDiscovery, Config: req.cfg}); err != nil {
			_ = m.deps.Driver.StopUsdDiscovery(id)
			m.reply(msg, err)
			return true
		}
		*req.out = id
		m.reply(msg, nil)
		return true

	case cmdStartUsdAdvertisement:
		req := msg.payload.(usdStart)
		// One advertisement per client; check before touching the driver.
		probe := domain.UsdSession{ClientID: req.clientID, SessionID: -1, Kind: domain.UsdAdvertisement}
		if err := m.tracker.AddSession(probe); err != nil {
			m.reply(msg, err)
			return true
		}
		m.tracker.RemoveSession(-1)
		id, err := m.deps.Driver.StartUsdAdvertisement(req.cfg, m.opts.DiscoveryTimeout)
		if err != nil {
			m.reply(msg, err)
			return true
		}
		_ = m.tracker.AddSession(domain.UsdSession{ClientID: req.clientID, SessionID: id, Kind: domain.UsdAdvertisement, Config: req.cfg})
		*req.out = id
		m.reply(msg, nil)
		return true

	case cmdStopUsdDiscovery, cmdStopUsdAdvertisement:
		req := msg.payload.(usdStop)
		s, ok := m.tracker.Session(req.sessionID)
		if !ok || s.ClientID != req.clientID {
			m.reply(msg, domain.ErrNoServiceRequests)
			return true
		}
		m.tracker.RemoveSession(req.sessionID)
		if s.Kind == domain.UsdAdvertisement {
			m.reply(msg, m.deps.Driver.StopUsdAdvertisement(req.sessionID))
		} else {
			m.reply(msg, m.deps.Driver.StopUsdDiscovery(req.sessionID))
		}
		return true

	case cmdSetDeviceName:
		req := msg.payload.(setDeviceName)
		if !domain.ValidDeviceName(req.name) {
			m.reply(msg, domain.ErrInvalidConfig)
			return true
		}
		if err := m.deps.Driver.SetDeviceName(req.name); err != nil {
			m.reply(msg, err)
			return true
		}
		m.thisDevice.Name = req.name
		if m.deps.Settings != nil {
			if err := m.deps.Settings.SaveDeviceName(req.name); err != nil {
				logrus.WithError(err).Warn("device name persist failed")
			}
		}
		_ = m.deps.Driver.SetSsidPostfix("-" + req.name)
		m.broadcastDevice()
		m.reply(msg, nil)
		return true

	case cmdFactoryReset:
		if err := m.persistents.DeleteAll(); err != nil {
			logrus.WithError(err).Warn("persistent group wipe failed")
		}
		m.peers.Clear()
		_ = m.deps.Driver.Flush()
		_ = m.deps.Driver.ServiceFlush()
		m.thisDevice.Name = domain.DefaultDeviceName("")
		if m.deps.Settings != nil {
			_ = m.deps.Settings.SaveDeviceName(m.thisDevice.Name)
		}
		_ = m.deps.Driver.SetDeviceName(m.thisDevice.Name)
		m.broadcastPeers()
		m.broadcastDevice()
		m.deps.Notifier.PersistentGroupsChanged(nil)
		m.reply(msg, nil)
		return true

	case msgTimerFired:
		if msg.timer != timerIdleShutdown {
			return false
		}
		if !m.hasActiveClients() && m.group == nil {
			logrus.Info("idle shutdown")
			m.startDisable()
		}
		return true
	}
	return false
}

func (m *Machine) handleEnabledEvent(ev domain.DriverEvent) bool {
	switch ev := ev.(type) {
	case domain.PeerFound:
		m.peers.Update(ev.Peer)
		m.broadcastPeers()
		return true

	case domain.PeerLost:
		inFlight := domain.NormalizeAddress(ev.Address) == m.inFlightAddress()
		if m.peers.MarkLost(ev.Address, inFlight) {
			m.approvers.DetachAddress(ev.Address)
			m.broadcastPeers()
		}
		return true

	case domain.FindStopped:
		if m.discoveryActive {
			m.discoveryActive = false
			m.deps.Notifier.DiscoveryChanged(false)
		}
		return true

	case domain.ServiceDiscoveryResponse:
		for _, resp := range ev.Responses {
			owner, ok := m.tracker.OwnerOf(resp.TransactionID)
			if !ok {
				logrus.WithField("transaction_id", resp.TransactionID).Debug("service response without owner dropped")
				continue
			}
			m.deps.Notifier.ServiceResponse(owner.ClientID, resp, ev.SourceAddress)
		}
		return true

	case domain.UsdServiceDiscovered:
		s, ok := m.tracker.Session(ev.SessionID)
		if !ok {
			return true
		}
		m.deps.Notifier.UsdServiceFound(s.ClientID, ev)
		return true

	case domain.UsdSessionTerminated:
		s, ok := m.tracker.RemoveSession(ev.SessionID)
		if !ok {
			return true
		}
		m.deps.Notifier.UsdSessionEnded(s.ClientID, ev.SessionID, ev.Reason)
		return true

	case domain.GroupStarted:
		// No formation in flight: an unexpected group. Remove it rather
		// than crash on an unresolvable owner.
		logrus.WithField("interface", ev.Group.Interface).Warn("unexpected group started, removing")
		_ = m.deps.Driver.GroupRemove(ev.Group.Interface)
		return true
	}
	return false
}

// releaseClientDriverState undoes a departing client's driver-side
// footprint: its USD sessions, advertisements and its share of the
// aggregate service query.
func (m *Machine) releaseClientDriverState(clientID string) {
	sessions, services, dropped := m.tracker.DetachClient(clientID)
	for _, s := range sessions {
		if s.Kind == domain.UsdAdvertisement {
			_ = m.deps.Driver.StopUsdAdvertisement(s.SessionID)
		} else {
			_ = m.deps.Driver.StopUsdDiscovery(s.SessionID)
		}
	}
	for _, svc := range services {
		_ = m.deps.Driver.ServiceRemove(svc.Entries)
	}
	if dropped {
		if err := m.reissueServiceQuery(); err != nil {
			logrus.WithError(err).Warn("service query reissue failed")
		}
	}
}

// reissueServiceQuery installs the current aggregate frame-based query
// in the driver, cancelling the previous aggregate first, or cancels
// outright when no requests remain.
func (m *Machine) reissueServiceQuery() error {
	if prev := m.tracker.DriverRequestID(); prev != "" {
		if err := m.deps.Driver.CancelServiceDiscovery(prev); err != nil {
			logrus.WithError(err).Debug("cancel of previous aggregate query failed")
		}
		m.tracker.SetDriverRequestID("")
	}
	if !m.tracker.HasRequests() {
		return nil
	}
	id, err := m.deps.Driver.RequestServiceDiscovery(m.tracker.QueryTarget(), m.tracker.AggregateQuery())
	if err != nil {
		return err
	}
	m.tracker.SetDriverRequestID(id)
	return nil
}

// evaluateIdleShutdown arms the idle timer when nothing needs the
// interface anymore.
func (m *Machine) evaluateIdleShutdown() {
	if !m.hasActiveClients() && m.group == nil {
		m.armTimer(timerIdleShutdown, m.opts.IdleShutdownTimeout)
	}
}

// enterInactive clears the single in-flight negotiation target; the
// pending config must never survive into idle.
func (m *Machine) enterInactive() {
	m.pendingConfig.Invalidate()
	m.pendingClientID = ""
	m.pendingPin = ""
	m.auth = nil
	m.cancelTimer(timerGroupCreate)
	m.evaluateIdleShutdown()
}

// handleInactive starts outbound attempts and routes inbound requests
// to user authorization.
func (m *Machine) handleInactive(msg message) bool {
	switch msg.kind {
	case cmdConnect:
		req := msg.payload.(connectRequest)
		m.reply(msg, m.startConnect(req))
		return true

	case cmdCreateGroup:
		req := msg.payload.(createGroupRequest)
		m.reply(msg, m.startAutonomousGroup(req))
		return true

	case cmdCancelConnect:
		// Nothing in flight; cancel is trivially satisfied.
		m.reply(msg, nil)
		return true

	case msgDriverEvent:
		switch ev := msg.payload.(domain.DriverEvent).(type) {
		case domain.GoNegotiationRequest:
			m.beginIncomingAuthorization(&authContext{
				kind:        ports.ApprovalNegotiation,
				peerAddress: domain.NormalizeAddress(ev.SourceAddress),
				wpsMethod:   ev.Method,
			})
			return true

		case domain.ProvisionDiscoveryResponse:
			if !ev.IsRequest {
				return false
			}
			// A peer probing us ahead of negotiation; authorize like an
			// incoming negotiation.
			m.beginIncomingAuthorization(&authContext{
				kind:        ports.ApprovalNegotiation,
				peerAddress: domain.NormalizeAddress(ev.PeerAddress),
				wpsMethod:   ev.Method,
			})
			return true

		case domain.InvitationReceived:
			m.beginIncomingAuthorization(&authContext{
				kind:        ports.ApprovalInvitation,
				peerAddress: domain.NormalizeAddress(firstNonEmpty(ev.OwnerAddress, ev.SourceAddress)),
				networkID:   ev.NetworkID,
				persistent:  ev.Persistent,
			})
			return true
		}
		return false
	}
	return false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// startConnect validates and launches an outbound formation attempt.
// Validation failures reject synchronously with no state change.
func (m *Machine) startConnect(req connectRequest) error {
	cfg := req.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.IsFastConnection() {
		m.pendingConfig = cfg
		m.pendingClientID = req.clientID
		m.openSession("fast_connection")
		if err := m.deps.Driver.GroupAddWithConfig(cfg.NetworkName, cfg.Passphrase,
			cfg.NetID == domain.PersistentNetID, cfg.Frequency, cfg.PeerAddress, cfg.JoinExistingGroup); err != nil {
			m.handleGroupCreationFailure(domain.ReasonError)
			return err
		}
		m.transitionTo(stateGroupNegotiation)
		return nil
	}

	peer, ok := m.peers.Get(cfg.PeerAddress)
	if !ok {
		return domain.ErrUnknownPeer
	}

	m.pendingConfig = cfg
	m.pendingClientID = req.clientID
	m.peers.SetStatus(peer.Address, domain.PeerInvited)
	m.broadcastPeers()

	if d := groups.DecideReinvoke(m.persistents, peer, cfg); d.Reinvoke {
		m.openSession("reinvocation")
		if err := m.deps.Driver.Reinvoke(d.NetworkID, peer.Address, peer.DikID); err == nil {
			m.transitionTo(stateGroupNegotiation)
			return nil
		} else {
			logrus.WithError(err).Debug("reinvoke failed, falling back to negotiation")
			m.closeSession(false, domain.ReasonError)
		}
	}

	m.openSession("negotiation")
	if err := m.deps.Driver.ProvisionDiscovery(cfg); err != nil {
		m.handleGroupCreationFailure(domain.ReasonProvDiscoveryFailed)
		return err
	}
	m.transitionTo(stateProvisionDiscovery)
	return nil
}

// startAutonomousGroup brings a group up with this device as owner.
func (m *Machine) startAutonomousGroup(req createGroupRequest) error {
	cfg := req.cfg
	m.pendingClientID = req.clientID
	switch {
	case cfg.IsFastConnection():
		if err := cfg.Validate(); err != nil {
			return err
		}
		m.pendingConfig = cfg
		m.openSession("autonomous_fast")
		if err := m.deps.Driver.GroupAddWithConfig(cfg.NetworkName, cfg.Passphrase,
			cfg.NetID == domain.PersistentNetID, cfg.Frequency, "", false); err != nil {
			m.handleGroupCreationFailure(domain.ReasonError)
			return err
		}
	case cfg.NetID >= 0:
		// Reinvoke a stored profile as owner.
		if _, ok := m.persistents.ByID(cfg.NetID); !ok {
			return domain.ErrInvalidConfig
		}
		m.openSession("autonomous_reinvoke")
		if err := m.deps.Driver.GroupAdd(cfg.NetID, true); err != nil {
			m.handleGroupCreationFailure(domain.ReasonError)
			return err
		}
	default:
		m.openSession("autonomous")
		if err := m.deps.Driver.GroupAdd(domain.TemporaryNetID, cfg.NetID == domain.PersistentNetID); err != nil {
			m.handleGroupCreationFailure(domain.ReasonError)
			return err
		}
	}
	m.transitionTo(stateGroupNegotiation)
	return nil
}
