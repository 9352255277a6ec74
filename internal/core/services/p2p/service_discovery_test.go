package p2p

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/mock"
)

func TestServiceResponsesRoutedByTransactionID(t *testing.T) {
	h := newHarness(t)
	first := h.attach()
	second, err := h.m.AttachClient("second", true)
	require.NoError(t, err)

	tid1, err := h.m.AddServiceRequest(first, domain.ServiceRequest{
		Protocol: domain.ServiceTypeBonjour,
		Query:    []byte{0x01, 0x02},
	})
	require.NoError(t, err)
	tid2, err := h.m.AddServiceRequest(second, domain.ServiceRequest{
		Protocol: domain.ServiceTypeUPnP,
		Query:    []byte{0x03},
	})
	require.NoError(t, err)
	require.NotEqual(t, tid1, tid2)

	h.drv.Emit(domain.ServiceDiscoveryResponse{
		SourceAddress: peerA,
		Responses: []domain.ServiceResponse{
			{TransactionID: tid1, Protocol: domain.ServiceTypeBonjour, Data: []byte{0xaa}},
			{TransactionID: tid2, Protocol: domain.ServiceTypeUPnP, Data: []byte{0xbb}},
			{TransactionID: 250, Protocol: domain.ServiceTypeBonjour, Data: []byte{0xcc}},
		},
	})

	require.Eventually(t, func() bool {
		return len(h.notifier.ServiceResponses()) == 2
	}, time.Second, 2*time.Millisecond)
	// The unowned transaction id never reaches a client.
	time.Sleep(20 * time.Millisecond)
	delivered := h.notifier.ServiceResponses()
	require.Len(t, delivered, 2)
	assert.Equal(t, peerA, delivered[0].SourceAddress)
}

func TestServiceRequestReissuesAggregate(t *testing.T) {
	h := newHarness(t)
	id := h.attach()

	first, err := h.m.AddServiceRequest(id, domain.ServiceRequest{Protocol: domain.ServiceTypeBonjour, Query: []byte{0x01}})
	require.NoError(t, err)
	assert.Equal(t, 1, h.drv.CallCount("RequestServiceDiscovery"))

	tid, err := h.m.AddServiceRequest(id, domain.ServiceRequest{Protocol: domain.ServiceTypeUPnP, Query: []byte{0x02}})
	require.NoError(t, err)
	// Second registration cancels and reissues the aggregate.
	assert.Equal(t, 2, h.drv.CallCount("RequestServiceDiscovery"))
	assert.Equal(t, 1, h.drv.CallCount("CancelServiceDiscovery"))

	require.NoError(t, h.m.RemoveServiceRequest(id, tid))
	assert.Equal(t, 3, h.drv.CallCount("RequestServiceDiscovery"))

	// Removing the last request cancels outright without reissuing.
	require.NoError(t, h.m.RemoveServiceRequest(id, first))
	assert.Equal(t, 3, h.drv.CallCount("RequestServiceDiscovery"))
	assert.Equal(t, 3, h.drv.CallCount("CancelServiceDiscovery"))
}

func TestDiscoverServicesWithoutRequests(t *testing.T) {
	h := newHarness(t)
	h.attach()
	err := h.m.DiscoverServices()
	assert.ErrorIs(t, err, domain.ErrNoServiceRequests)
}

func TestUsdAdvertisementOnePerClient(t *testing.T) {
	h := newHarness(t)
	id := h.attach()

	sid, err := h.m.StartUsdAdvertisement(id, domain.UsdConfig{ServiceName: "printer"})
	require.NoError(t, err)

	_, err = h.m.StartUsdAdvertisement(id, domain.UsdConfig{ServiceName: "second"})
	assert.ErrorIs(t, err, domain.ErrServiceLimit)

	require.NoError(t, h.m.StopUsdAdvertisement(id, sid))
	_, err = h.m.StartUsdAdvertisement(id, domain.UsdConfig{ServiceName: "second"})
	assert.NoError(t, err)
}

func TestUsdMatchRoutedToOwningClient(t *testing.T) {
	h := newHarness(t)
	id := h.attach()

	sid, err := h.m.StartUsdDiscovery(id, domain.UsdConfig{ServiceName: "display"})
	require.NoError(t, err)

	h.drv.Emit(domain.UsdServiceDiscovered{SessionID: sid, PeerAddress: peerA, ServiceInfo: []byte("tv")})
	require.Eventually(t, func() bool {
		matches := h.notifier.UsdMatches()
		return len(matches) == 1 && matches[0].Event.PeerAddress == peerA
	}, time.Second, 2*time.Millisecond)

	// A match for a dead session is dropped.
	h.drv.Emit(domain.UsdServiceDiscovered{SessionID: sid + 99, PeerAddress: peerB})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, h.notifier.UsdMatches(), 1)
}

func TestDetachReleasesClientDriverState(t *testing.T) {
	h := newHarness(t)
	keeper := h.attach()
	leaver, err := h.m.AttachClient("leaver", true)
	require.NoError(t, err)

	_, err = h.m.StartUsdAdvertisement(leaver, domain.UsdConfig{ServiceName: "ephemeral"})
	require.NoError(t, err)
	require.NoError(t, h.m.AddLocalService(leaver, domain.LocalService{
		Protocol: domain.ServiceTypeBonjour,
		Entries:  []string{"bonjour 0b5f6e616d655f74"},
	}))

	require.NoError(t, h.m.DetachClient(leaver))

	assert.Equal(t, 1, h.drv.CallCount("StopUsdAdvertisement"))
	assert.Equal(t, 1, h.drv.CallCount("ServiceRemove"))
	_ = keeper
}

// White-box: a cancelled timer's firing must be discarded by the
// generation check even though the message already sits in the queue.
func TestCancelledTimerFiringIsStale(t *testing.T) {
	drv := mock.NewDriver("02:00:00:00:00:01")
	m := New(DefaultOptions(), Deps{
		Driver: drv, Events: drv,
		Arbiter:  &mock.Arbiter{},
		IP:       &mock.IPProvisioner{},
		Routes:   &mock.Routes{},
		Tether:   &mock.Tether{},
		UI:       &mock.Dialog{},
		Conflict: &mock.ConflictPrompt{},
		Notifier: mock.NewNotifier(),
	})

	m.armTimer(timerGroupCreate, time.Millisecond)
	m.cancelTimer(timerGroupCreate)

	select {
	case msg := <-m.queue:
		require.Equal(t, msgTimerFired, msg.kind)
		assert.False(t, m.timerCurrent(msg), "cancelled firing must be stale")
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	// Re-arming bumps the generation; the fresh firing is current.
	m.armTimer(timerGroupCreate, time.Millisecond)
	select {
	case msg := <-m.queue:
		assert.True(t, m.timerCurrent(msg))
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

// White-box: running the failure routine twice must not duplicate
// driver calls or client notifications.
func TestFailureRoutineIdempotent(t *testing.T) {
	drv := mock.NewDriver("02:00:00:00:00:01")
	notifier := mock.NewNotifier()
	m := New(DefaultOptions(), Deps{
		Driver: drv, Events: drv,
		Arbiter:  &mock.Arbiter{},
		IP:       &mock.IPProvisioner{},
		Routes:   &mock.Routes{},
		Tether:   &mock.Tether{},
		UI:       &mock.Dialog{},
		Conflict: &mock.ConflictPrompt{},
		Notifier: notifier,
	})
	m.state = stateProvisionDiscovery
	m.pendingConfig = pbcConfig(peerA)
	m.openSession("negotiation")

	m.handleGroupCreationFailure(domain.ReasonTimedOut)
	assert.Equal(t, stateInactive, m.state)
	assert.Equal(t, 1, drv.CallCount("CancelConnect"))
	require.Len(t, notifier.Failures(), 1)

	m.handleGroupCreationFailure(domain.ReasonTimedOut)
	assert.Equal(t, 1, drv.CallCount("CancelConnect"))
	assert.Len(t, notifier.Failures(), 1)
}

// White-box: the handler chain bubbles an unhandled command from a leaf
// to the root default.
func TestHandlerChainBubblesToRoot(t *testing.T) {
	drv := mock.NewDriver("02:00:00:00:00:01")
	m := New(DefaultOptions(), Deps{
		Driver: drv, Events: drv,
		Arbiter:  &mock.Arbiter{},
		IP:       &mock.IPProvisioner{},
		Routes:   &mock.Routes{},
		Tether:   &mock.Tether{},
		UI:       &mock.Dialog{},
		Conflict: &mock.ConflictPrompt{},
		Notifier: mock.NewNotifier(),
	})
	m.state = stateDisabledIdle

	reply := make(chan error, 1)
	m.process(message{kind: cmdStartDiscovery, payload: discoveryRequest{}, reply: reply})
	assert.ErrorIs(t, <-reply, domain.ErrDisabled)

	var out Status
	reply = make(chan error, 1)
	m.process(message{kind: cmdStatus, payload: statusRequest{out: &out}, reply: reply})
	require.NoError(t, <-reply)
	assert.Equal(t, "DisabledIdle", out.State)
}
