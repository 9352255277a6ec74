// Package p2p implements the connection/group lifecycle state machine.
// All client commands, driver events, collaborator callbacks and timer
// firings funnel into one ordered queue; a single goroutine dequeues
// them one at a time and drives the peer registry, service discovery
// tracker, approver registry and persistent group store. No other
// goroutine touches that state.
package p2p

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/approver"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/discovery"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/groups"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/registry"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wfdirect",
		Name:      "state_transitions_total",
		Help:      "State machine transitions by target state",
	}, []string{"to"})
	connectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wfdirect",
		Name:      "connect_attempts_total",
		Help:      "Group formation attempts started",
	})
	connectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wfdirect",
		Name:      "connect_failures_total",
		Help:      "Group formation attempts that failed, by reason",
	}, []string{"reason"})
	peersVisible = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wfdirect",
		Name:      "peers_visible",
		Help:      "Peers currently in the registry",
	})
	deferredMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wfdirect",
		Name:      "deferred_messages_total",
		Help:      "Messages deferred for replay in a stable state",
	})
)

// Deps are the external collaborators the machine drives. All of them
// are required except Journal and Settings, which degrade to no-ops
// when nil.
type Deps struct {
	Driver   ports.Driver
	Events   ports.DriverEvents
	Arbiter  ports.ResourceArbiter
	IP       ports.IPProvisioner
	Routes   ports.NetworkRoutes
	Tether   ports.TetherController
	UI       ports.DecisionSource
	Conflict ports.FrequencyConflictPrompt
	Notifier ports.ClientNotifier
	Journal  ports.SessionJournal
	Settings ports.SettingsStore
}

// Options tune the machine's timers and policies.
type Options struct {
	// Supported is false when the hardware lacks P2P; the machine then
	// parks in NotSupported forever.
	Supported     bool
	InterfaceName string
	DeviceName    string

	GroupCreateTimeout  time.Duration
	DisableTimeout      time.Duration
	IdleShutdownTimeout time.Duration
	RejectWaitDelay     time.Duration
	DiscoveryTimeout    time.Duration
	GroupIdleTimeout    time.Duration

	// WaitForInvitation keeps an attempt pending when the peer answers
	// reinvocation with "information currently unavailable" instead of
	// falling back to fresh negotiation immediately.
	WaitForInvitation bool
}

// DefaultOptions are production timings.
func DefaultOptions() Options {
	return Options{
		Supported:           true,
		InterfaceName:       "p2p-dev-wlan0",
		GroupCreateTimeout:  2 * time.Minute,
		DisableTimeout:      5 * time.Second,
		IdleShutdownTimeout: 150 * time.Second,
		RejectWaitDelay:     2 * time.Second,
		DiscoveryTimeout:    2 * time.Minute,
		GroupIdleTimeout:    10 * time.Minute,
	}
}

type clientInfo struct {
	id   string
	name string
	// active clients keep the interface up; passive ones only listen.
	active bool
}

// authContext is the pending incoming request a user-authorization
// state is waiting on. Decisions are validated against it so a stale
// approver response cannot approve a different peer.
type authContext struct {
	kind        ports.ApprovalKind
	peerAddress string
	// wpsMethod is the method the peer proposed, local perspective.
	wpsMethod domain.WpsMethod
	// invitation fields.
	networkID  int
	persistent bool
	// join holds the station's interface address for join requests.
	joinInterfaceAddress string
}

type handlerFunc func(*Machine, message) bool

// Machine is the lifecycle state machine.
type Machine struct {
	opts Options
	deps Deps

	queue  chan message
	replay []message

	state    StateID
	deferred []message
	timerGen map[timerKind]uint64

	handlers map[StateID]handlerFunc
	enterFns map[StateID]func()
	exitFns  map[StateID]func()

	peers       *registry.PeerRegistry
	tracker     *discovery.Tracker
	approvers   *approver.Registry
	persistents *groups.Store

	clients map[string]*clientInfo

	thisDevice      domain.DeviceInfo
	pendingConfig   domain.ConnectConfig
	pendingClientID string
	pendingPin      string
	auth            *authContext
	group           *domain.Group
	discoveryActive bool
	available       bool

	sessionID   uint
	sessionOpen bool
}

// New wires a machine. Run must be called before any command.
func New(opts Options, deps Deps) *Machine {
	m := &Machine{
		opts:        opts,
		deps:        deps,
		queue:       make(chan message, 64),
		timerGen:    make(map[timerKind]uint64),
		peers:       registry.NewPeerRegistry(),
		tracker:     discovery.NewTracker(),
		approvers:   approver.NewRegistry(),
		persistents: groups.NewStore(deps.Driver),
		clients:     make(map[string]*clientInfo),
	}
	m.thisDevice = domain.DeviceInfo{
		Name:   opts.DeviceName,
		Status: domain.PeerUnavailable,
	}
	m.handlers = map[StateID]handlerFunc{
		stateRoot:                (*Machine).handleRoot,
		stateNotSupported:        (*Machine).handleNotSupported,
		stateDisabling:           (*Machine).handleDisabling,
		stateDisabled:            (*Machine).handleDisabled,
		stateDisabledIdle:        (*Machine).handleDisabledIdle,
		stateWaitingArbitration:  (*Machine).handleWaitingArbitration,
		stateEnabled:             (*Machine).handleEnabled,
		stateInactive:            (*Machine).handleInactive,
		stateGroupCreating:       (*Machine).handleGroupCreating,
		stateUserAuthInvite:      (*Machine).handleUserAuthInvite,
		stateUserAuthNegotiation: (*Machine).handleUserAuthNegotiation,
		stateProvisionDiscovery:  (*Machine).handleProvisionDiscovery,
		stateGroupNegotiation:    (*Machine).handleGroupNegotiation,
		stateFrequencyConflict:   (*Machine).handleFrequencyConflict,
		stateRejectWait:          (*Machine).handleRejectWait,
		stateGroupCreated:        (*Machine).handleGroupCreated,
		stateUserAuthJoin:        (*Machine).handleUserAuthJoin,
		stateOngoingGroupRemoval: (*Machine).handleOngoingGroupRemoval,
	}
	m.enterFns = map[StateID]func(){
		stateInactive:            m.enterInactive,
		stateGroupCreating:       m.enterGroupCreating,
		stateUserAuthInvite:      m.enterUserAuth,
		stateUserAuthNegotiation: m.enterUserAuth,
		stateFrequencyConflict:   m.enterFrequencyConflict,
		stateRejectWait:          m.enterRejectWait,
		stateGroupCreated:        m.enterGroupCreated,
		stateUserAuthJoin:        m.enterUserAuthJoin,
		stateDisabling:           m.enterDisabling,
	}
	m.exitFns = map[StateID]func(){
		stateGroupCreating: m.exitGroupCreating,
		stateGroupCreated:  m.exitGroupCreated,
	}
	if opts.Supported {
		m.state = stateDisabledIdle
	} else {
		m.state = stateNotSupported
	}
	return m
}

// Run consumes the queue until the context ends. It must run on exactly
// one goroutine.
func (m *Machine) Run(ctx context.Context) error {
	logrus.WithField("state", m.state.String()).Info("state machine started")
	for {
		var msg message
		if len(m.replay) > 0 {
			msg = m.replay[0]
			m.replay = m.replay[1:]
		} else {
			select {
			case <-ctx.Done():
				m.drainOnShutdown()
				return ctx.Err()
			case msg = <-m.queue:
			case ev, ok := <-m.deps.Events.Events():
				if !ok {
					return nil
				}
				msg = message{kind: msgDriverEvent, payload: ev}
			}
		}
		m.process(msg)
	}
}

// drainOnShutdown fails queued synchronous commands so callers do not
// hang across daemon exit.
func (m *Machine) drainOnShutdown() {
	for {
		select {
		case msg := <-m.queue:
			m.reply(msg, domain.ErrDisabled)
		default:
			return
		}
	}
}

// post enqueues a message from any goroutine.
func (m *Machine) post(msg message) {
	m.queue <- msg
}

// command posts a message and waits for its synchronous outcome.
func (m *Machine) command(kind msgKind, payload any) error {
	reply := make(chan error, 1)
	m.post(message{kind: kind, payload: payload, reply: reply})
	return <-reply
}

// reply resolves a command's reply channel exactly once.
func (m *Machine) reply(msg message, err error) {
	if msg.reply != nil {
		msg.reply <- err
		msg.reply = nil
	}
}

// process walks the handler chain from the current state to the root.
func (m *Machine) process(msg message) {
	if msg.kind == msgTimerFired && !m.timerCurrent(msg) {
		return
	}
	for s := m.state; ; s = parentOf[s] {
		if h, ok := m.handlers[s]; ok && h(m, msg) {
			return
		}
		if s == stateRoot {
			return
		}
	}
}

// transitionTo commits a state change: exit hooks run from the current
// leaf up to the common ancestor, enter hooks from below the ancestor
// down to the target, then deferred messages are released for replay in
// their original order.
func (m *Machine) transitionTo(target StateID) {
	if target == m.state {
		return
	}
	logrus.WithFields(logrus.Fields{
		"from": m.state.String(),
		"to":   target.String(),
	}).Debug("state transition")
	transitionsTotal.WithLabelValues(target.String()).Inc()

	ancestor := commonAncestor(m.state, target)
	for s := m.state; s != ancestor; s = parentOf[s] {
		if fn, ok := m.exitFns[s]; ok {
			fn()
		}
	}
	var down []StateID
	for s := target; s != ancestor; s = parentOf[s] {
		down = append(down, s)
	}
	m.state = target
	for i := len(down) - 1; i >= 0; i-- {
		if fn, ok := m.enterFns[down[i]]; ok {
			fn()
		}
	}
	if len(m.deferred) > 0 {
		m.replay = append(m.replay, m.deferred...)
		m.deferred = nil
	}
}

func commonAncestor(a, b StateID) StateID {
	for s := a; ; s = parentOf[s] {
		if b.isDescendantOf(s) {
			return s
		}
		if s == stateRoot {
			return stateRoot
		}
	}
}

// deferMessage parks a message until the next transition commits.
// Replay preserves arrival order.
func (m *Machine) deferMessage(msg message) {
	deferredMessages.Inc()
	m.deferred = append(m.deferred, msg)
}

// State returns the current state name, safe only for the run goroutine
// and tests that do not race the loop.
func (m *Machine) stateName() string {
	return m.state.String()
}

// broadcastPeers pushes the current peer table to clients and refreshes
// the gauge.
func (m *Machine) broadcastPeers() {
	peersVisible.Set(float64(m.peers.Len()))
	m.deps.Notifier.PeersChanged(m.peers.Snapshot())
}

func (m *Machine) broadcastDevice() {
	m.deps.Notifier.ThisDeviceChanged(m.thisDevice)
}

// inFlightAddress is the peer address of the active connection attempt,
// empty when none is.
func (m *Machine) inFlightAddress() string {
	if m.state.isDescendantOf(stateGroupCreating) && !m.pendingConfig.Empty() {
		return domain.NormalizeAddress(m.pendingConfig.PeerAddress)
	}
	if m.group != nil {
		return domain.NormalizeAddress(m.group.Owner.Address)
	}
	return ""
}

// hasActiveClients reports whether any attached client keeps the
// interface up.
func (m *Machine) hasActiveClients() bool {
	for _, c := range m.clients {
		if c.active {
			return true
		}
	}
	return false
}

// openSession starts a journal record for a formation attempt.
func (m *Machine) openSession(flavor string) {
	connectAttempts.Inc()
	m.sessionOpen = true
	if m.deps.Journal == nil {
		return
	}
	id, err := m.deps.Journal.OpenSession(ports.ConnectionSession{
		PeerAddress: m.pendingConfig.PeerAddress,
		Flavor:      flavor,
		StartedAt:   time.Now(),
	})
	if err != nil {
		logrus.WithError(err).Warn("session journal open failed")
		m.sessionID = 0
		return
	}
	m.sessionID = id
}

// closeSession ends the journal record; closing twice is a no-op, which
// keeps the failure routine idempotent.
func (m *Machine) closeSession(connected bool, reason domain.FailureReason) {
	if !m.sessionOpen {
		return
	}
	m.sessionOpen = false
	if !connected {
		connectFailures.WithLabelValues(reason.String()).Inc()
	}
	if m.deps.Journal == nil || m.sessionID == 0 {
		return
	}
	if err := m.deps.Journal.CloseSession(m.sessionID, connected, reason); err != nil {
		logrus.WithError(err).Warn("session journal close failed")
	}
}
