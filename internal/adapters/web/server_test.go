package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
	"github.com/lcalzada-xor/wfdirect/internal/core/services/p2p"
	"github.com/lcalzada-xor/wfdirect/internal/mock"
)

func newTestServer(t *testing.T) (*Server, *mock.Driver) {
	t.Helper()
	drv := mock.NewDriver("02:00:de:ad:be:ef")
	machine := p2p.New(p2p.Options{
		Supported:           true,
		InterfaceName:       "p2p-dev-wlan0",
		DeviceName:          "test-device",
		GroupCreateTimeout:  time.Second,
		DisableTimeout:      50 * time.Millisecond,
		IdleShutdownTimeout: time.Hour,
		RejectWaitDelay:     10 * time.Millisecond,
		DiscoveryTimeout:    time.Second,
	}, p2p.Deps{
		Driver:   drv,
		Events:   drv,
		Arbiter:  &mock.Arbiter{Decision: ports.ResourceProceed},
		IP:       &mock.IPProvisioner{Address: "192.168.49.10", Gateway: "192.168.49.1"},
		Routes:   &mock.Routes{},
		Tether:   &mock.Tether{},
		UI:       &mock.Dialog{Accept: true},
		Conflict: &mock.ConflictPrompt{},
		Notifier: mock.NewNotifier(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		machine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	s := NewServer("127.0.0.1:0", machine, nil)
	id, err := machine.AttachClient("http-test", true)
	require.NoError(t, err)
	s.clientID = id
	require.Eventually(t, func() bool {
		st, err := machine.Snapshot()
		return err == nil && st.State == "Inactive"
	}, time.Second, 5*time.Millisecond)
	return s, drv
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status p2p.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "Inactive", status.State)
	assert.True(t, status.Available)
}

func TestDiscoveryEndpoints(t *testing.T) {
	s, drv := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/discovery/start?scan=social", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotZero(t, drv.CallCount("Find("))

	rec = do(t, s, http.MethodPost, "/api/discovery/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestDiscoveryStartRejectsBadFreq(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/discovery/start?scan=freq", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectUnknownPeerMapsToBadRequest(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"peer_address":"aa:bb:cc:dd:ee:01","group_owner_intent":-1}`
	rec := do(t, s, http.MethodPost, "/api/connect", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectInvalidBody(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/connect", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveGroupWithoutGroupConflicts(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodDelete, "/api/group", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionsWithoutJournal(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/sessions?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetDeviceName(t *testing.T) {
	s, drv := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/device/name", `{"name":"lab-display"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lab-display", drv.DeviceName())

	rec = do(t, s, http.MethodPut, "/api/device/name", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
