package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// handleRoot is the last stop of the handler chain: the defaults that
// apply in every state. Commands that reached here were not legal in
// the current state; driver events that reached here are stale or
// irrelevant and must no-op rather than fault.
func (m *Machine) handleRoot(msg message) bool {
	switch msg.kind {
	case cmdStatus:
		req := msg.payload.(statusRequest)
		*req.out = m.statusSnapshot()
		m.reply(msg, nil)

	case cmdClientAttach:
		req := msg.payload.(attachRequest)
		m.clients[req.clientID] = &clientInfo{id: req.clientID, name: req.name, active: req.active}
		m.reply(msg, nil)

	case cmdClientDetach:
		req := msg.payload.(detachRequest)
		m.detachClientState(req.clientID)
		m.reply(msg, nil)

	case cmdRegisterApprover:
		req := msg.payload.(approverRegister)
		m.approvers.Attach(req.clientID, req.address, req.approver)
		m.reply(msg, nil)

	case cmdUnregisterApprover:
		req := msg.payload.(approverUnregister)
		m.approvers.Detach(req.clientID, req.address, ports.DetachExplicit)
		m.reply(msg, nil)

	case cmdConnect, cmdCancelConnect, cmdCreateGroup, cmdRemoveGroup,
		cmdStartDiscovery, cmdStopDiscovery, cmdDiscoverServices,
		cmdAddServiceRequest, cmdRemoveServiceRequest,
		cmdAddLocalService, cmdRemoveLocalService,
		cmdStartUsdDiscovery, cmdStopUsdDiscovery,
		cmdStartUsdAdvertisement, cmdStopUsdAdvertisement,
		cmdSetDeviceName, cmdFactoryReset:
		m.reply(msg, domain.ErrDisabled)

	case msgDriverEvent:
		logrus.WithFields(logrus.Fields{
			"state": m.state.String(),
			"event": eventName(msg.payload.(domain.DriverEvent)),
		}).Debug("event dropped in current state")

	case msgTimerFired:
		// A live-generation timer with no handler in the current subtree
		// is meaningless here; drop it.

	case cbArbitration, cbApprovalDecision, cbFreqConflictDecision,
		cbTetherReady, cbIPProvision, cbDisableDone:
		logrus.WithFields(logrus.Fields{
			"state":    m.state.String(),
			"callback": msg.kind.String(),
		}).Debug("callback dropped in current state")

	default:
		m.reply(msg, domain.ErrDisabled)
	}
	return true
}

// handleNotSupported rejects everything: the hardware is absent.
func (m *Machine) handleNotSupported(msg message) bool {
	switch msg.kind {
	case cmdStatus, cmdClientAttach, cmdClientDetach:
		return false // root handles bookkeeping
	case msgDriverEvent, msgTimerFired:
		return false
	default:
		m.reply(msg, domain.ErrNotSupported)
		return true
	}
}

// detachClientState releases everything a departing client owns. Driver
// cleanup only applies while enabled; callers in enabled states issue
// it before delegating here.
func (m *Machine) detachClientState(clientID string) {
	delete(m.clients, clientID)
	m.tracker.DetachClient(clientID)
	m.approvers.DetachOwner(clientID)
}

func (m *Machine) statusSnapshot() Status {
	var group *domain.Group
	if m.group != nil {
		g := *m.group
		g.Members = append([]domain.GroupMember(nil), m.group.Members...)
		group = &g
	}
	return Status{
		State:            m.state.String(),
		Available:        m.available,
		ThisDevice:       m.thisDevice,
		Peers:            m.peers.Snapshot(),
		Group:            group,
		PersistentGroups: m.persistents.Snapshot(),
		DiscoveryActive:  m.discoveryActive,
		PendingPeer:      m.pendingConfig.PeerAddress,
		Clients:          len(m.clients),
	}
}

func eventName(ev domain.DriverEvent) string {
	switch ev.(type) {
	case domain.PeerFound:
		return "peer_found"
	case domain.PeerLost:
		return "peer_lost"
	case domain.FindStopped:
		return "find_stopped"
	case domain.GoNegotiationRequest:
		return "go_negotiation_request"
	case domain.GoNegotiationSuccess:
		return "go_negotiation_success"
	case domain.GoNegotiationFailure:
		return "go_negotiation_failure"
	case domain.GroupFormationSuccess:
		return "group_formation_success"
	case domain.GroupFormationFailure:
		return "group_formation_failure"
	case domain.GroupStarted:
		return "group_started"
	case domain.GroupRemoved:
		return "group_removed"
	case domain.ProvisionDiscoveryResponse:
		return "provision_discovery_response"
	case domain.ProvisionDiscoveryFailure:
		return "provision_discovery_failure"
	case domain.InvitationReceived:
		return "invitation_received"
	case domain.InvitationResult:
		return "invitation_result"
	case domain.FrequencyChanged:
		return "frequency_changed"
	case domain.StationConnected:
		return "station_connected"
	case domain.StationDisconnected:
		return "station_disconnected"
	case domain.ServiceDiscoveryResponse:
		return "service_discovery_response"
	case domain.UsdServiceDiscovered:
		return "usd_service_discovered"
	case domain.UsdSessionTerminated:
		return "usd_session_terminated"
	}
	return "unknown"
}
