package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

func newTestAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	a, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "wfdirect.db"))
	require.NoError(t, err)
	return a
}

func TestSessionJournalRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	id, err := a.OpenSession(ports.ConnectionSession{
		PeerAddress: "aa:bb:cc:dd:ee:01",
		Flavor:      "negotiation",
		StartedAt:   time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, a.CloseSession(id, false, domain.ReasonTimedOut))

	sessions, err := a.RecentSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", sessions[0].PeerAddress)
	assert.Equal(t, domain.ReasonTimedOut, sessions[0].Reason)
	assert.False(t, sessions[0].Connected)
	assert.False(t, sessions[0].EndedAt.IsZero())
}

func TestCloseSessionIdempotent(t *testing.T) {
	a := newTestAdapter(t)

	id, err := a.OpenSession(ports.ConnectionSession{PeerAddress: "aa:bb:cc:dd:ee:02", Flavor: "fast_connection"})
	require.NoError(t, err)

	require.NoError(t, a.CloseSession(id, true, domain.ReasonNone))
	// A late duplicate close must not overwrite the recorded outcome.
	require.NoError(t, a.CloseSession(id, false, domain.ReasonError))

	sessions, err := a.RecentSessions(1)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Connected)
	assert.Equal(t, domain.ReasonNone, sessions[0].Reason)
}

func TestCloseUnknownSessionIsNoop(t *testing.T) {
	a := newTestAdapter(t)
	assert.NoError(t, a.CloseSession(999, false, domain.ReasonError))
}

func TestRecentSessionsOrderAndLimit(t *testing.T) {
	a := newTestAdapter(t)

	for i := 0; i < 5; i++ {
		_, err := a.OpenSession(ports.ConnectionSession{
			PeerAddress: "aa:bb:cc:dd:ee:03",
			StartedAt:   time.Now().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
	sessions, err := a.RecentSessions(3)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.True(t, sessions[0].StartedAt.After(sessions[1].StartedAt))
}

func TestSettingsRoundTrip(t *testing.T) {
	a := newTestAdapter(t)

	_, ok, err := a.DeviceName()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.SaveDeviceName("kitchen-display"))
	name, ok, err := a.DeviceName()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kitchen-display", name)

	// Overwrite keeps a single row.
	require.NoError(t, a.SaveDeviceName("hall-display"))
	name, _, err = a.DeviceName()
	require.NoError(t, err)
	assert.Equal(t, "hall-display", name)
}

func TestInvitationFallbackPolicy(t *testing.T) {
	a := newTestAdapter(t)

	_, set, err := a.InvitationFallbackPolicy()
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, a.SaveInvitationFallbackPolicy(true))
	wait, set, err := a.InvitationFallbackPolicy()
	require.NoError(t, err)
	assert.True(t, set)
	assert.True(t, wait)

	require.NoError(t, a.SaveInvitationFallbackPolicy(false))
	wait, _, err = a.InvitationFallbackPolicy()
	require.NoError(t, err)
	assert.False(t, wait)
}
