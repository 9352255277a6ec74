package p2p

import (
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// handleDisabled is the Disabled parent: the interface is down, and the
// only way forward is an active client asking for it.
func (m *Machine) handleDisabled(msg message) bool {
	switch msg.kind {
	case cmdClientAttach:
		req := msg.payload.(attachRequest)
		m.clients[req.clientID] = &clientInfo{id: req.clientID, name: req.name, active: req.active}
		m.reply(msg, nil)
		if req.active {
			m.checkAndEnable()
		}
		return true

	case msgDriverEvent:
		// Stale events from a previous enablement; ignore.
		return true
	}
	return false
}

func (m *Machine) handleDisabledIdle(msg message) bool {
	return false
}

// handleWaitingArbitration parks a deferred enable until the arbiter's
// user decision re-enters the queue.
func (m *Machine) handleWaitingArbitration(msg message) bool {
	switch msg.kind {
	case cbArbitration:
		res := msg.payload.(arbitrationResolved)
		if res.approved {
			m.enable()
		} else {
			logrus.Info("interface creation rejected by arbitration")
			m.transitionTo(stateDisabledIdle)
		}
		return true
	}
	return false
}

// checkAndEnable starts the enable sequence when at least one active
// client wants the interface. The resource arbiter may grant, deny or
// defer to a user decision.
func (m *Machine) checkAndEnable() {
	if !m.hasActiveClients() {
		return
	}
	decision := m.deps.Arbiter.RequestInterface("p2p", func(approved bool) {
		m.post(message{kind: cbArbitration, payload: arbitrationResolved{approved: approved}})
	})
	switch decision {
	case ports.ResourceProceed:
		m.enable()
	case ports.ResourceAbort:
		logrus.Warn("interface creation denied, device unavailable")
		m.available = false
		m.thisDevice.Status = domain.PeerUnavailable
		m.broadcastDevice()
	case ports.ResourceDeferred:
		m.transitionTo(stateWaitingArbitration)
	}
}

// enable brings the driver interface up, applies the advertised
// identity and loads persisted group profiles, then lands in Inactive.
func (m *Machine) enable() {
	if err := m.deps.Driver.SetupInterface(m.opts.InterfaceName); err != nil {
		logrus.WithError(err).Error("interface setup failed")
		m.available = false
		m.transitionTo(stateDisabledIdle)
		return
	}
	if addr, err := m.deps.Driver.DeviceAddress(); err == nil {
		m.thisDevice.Address = addr
	} else {
		logrus.WithError(err).Warn("device address unavailable")
	}
	m.applyDeviceName()
	if err := m.persistents.Reload(); err != nil {
		logrus.WithError(err).Warn("persistent group reload failed")
	}
	m.available = true
	m.thisDevice.Status = domain.PeerAvailable
	m.transitionTo(stateInactive)
	m.deps.Notifier.P2pStateChanged(true)
	m.deps.Notifier.PersistentGroupsChanged(m.persistents.Snapshot())
	m.broadcastDevice()
	logrus.WithField("interface", m.opts.InterfaceName).Info("p2p enabled")
}

// applyDeviceName resolves the advertised name (settings store first,
// generated default otherwise) and pushes it to the driver.
func (m *Machine) applyDeviceName() {
	name := m.thisDevice.Name
	if m.deps.Settings != nil {
		if stored, ok, err := m.deps.Settings.DeviceName(); err == nil && ok {
			name = stored
		}
	}
	if name == "" {
		name = domain.DefaultDeviceName("")
		if m.deps.Settings != nil {
			if err := m.deps.Settings.SaveDeviceName(name); err != nil {
				logrus.WithError(err).Warn("device name persist failed")
			}
		}
	}
	m.thisDevice.Name = name
	if err := m.deps.Driver.SetDeviceName(name); err != nil {
		logrus.WithError(err).Warn("set device name failed")
	}
	if err := m.deps.Driver.SetSsidPostfix("-" + name); err != nil {
		logrus.WithError(err).Warn("set ssid postfix failed")
	}
}

// startDisable drains in-flight state and tears the interface down:
// peers cleared, service state cleared, any active group removed, then
// a bounded Disabling phase.
func (m *Machine) startDisable() {
	logrus.Info("p2p disabling")
	if m.group != nil {
		if err := m.deps.Driver.GroupRemove(m.group.Interface); err != nil {
			logrus.WithError(err).Warn("group remove during disable failed")
		}
		m.teardownGroupResources()
	}
	m.pendingConfig.Invalidate()
	m.pendingPin = ""
	m.auth = nil
	m.closeSession(false, domain.ReasonCancelled)
	m.peers.Clear()
	m.tracker.Clear()
	m.approvers.Clear(ports.DetachClientGone)
	m.discoveryActive = false
	m.broadcastPeers()
	m.transitionTo(stateDisabling)
}

// enterDisabling bounds the teardown with the disable timer and posts
// completion back through the queue so intervening events are deferred,
// not lost.
func (m *Machine) enterDisabling() {
	m.armTimer(timerDisable, m.opts.DisableTimeout)
	if err := m.deps.Driver.TeardownInterface(m.opts.InterfaceName); err != nil {
		logrus.WithError(err).Warn("interface teardown failed")
	}
	m.post(message{kind: cbDisableDone})
}

// handleDisabling defers everything except its own completion; deferred
// messages replay once Disabled commits.
func (m *Machine) handleDisabling(msg message) bool {
	switch msg.kind {
	case cbDisableDone:
		m.finishDisable()
		return true
	case msgTimerFired:
		if msg.timer != timerDisable {
			return false
		}
		logrus.Warn("disable timed out")
		m.finishDisable()
		return true
	case cmdStatus:
		return false
	default:
		m.deferMessage(msg)
		return true
	}
}

func (m *Machine) finishDisable() {
	m.cancelTimer(timerDisable)
	m.available = false
	m.thisDevice.Status = domain.PeerUnavailable
	m.transitionTo(stateDisabledIdle)
	m.deps.Notifier.P2pStateChanged(false)
	m.broadcastDevice()
	logrus.Info("p2p disabled")
	// An active client may have attached while disabling.
	m.checkAndEnable()
}
