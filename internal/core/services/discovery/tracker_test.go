package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

func TestAddRequestAssignsNonZeroIDs(t *testing.T) {
	tr := NewTracker()

	seen := make(map[uint8]bool)
	for i := 0; i < 10; i++ {
		r, err := tr.AddRequest("client-a", domain.ServiceRequest{Protocol: domain.ServiceTypeBonjour, Query: []byte{0x01}})
		require.NoError(t, err)
		assert.NotZero(t, r.TransactionID)
		assert.False(t, seen[r.TransactionID], "transaction ids must be unique")
		seen[r.TransactionID] = true
	}
}

func TestTransactionIDWrapsSkippingInUse(t *testing.T) {
	tr := NewTracker()
	tr.nextTransactionID = domain.MaxServiceTransactionID

	r1, err := tr.AddRequest("a", domain.ServiceRequest{Query: []byte{1}})
	require.NoError(t, err)
	assert.Equal(t, uint8(domain.MaxServiceTransactionID), r1.TransactionID)

	// Wrap back to the minimum, never zero.
	r2, err := tr.AddRequest("a", domain.ServiceRequest{Query: []byte{2}})
	require.NoError(t, err)
	assert.Equal(t, uint8(domain.MinServiceTransactionID), r2.TransactionID)

	// An id still in use is skipped on the next wrap.
	tr.nextTransactionID = domain.MaxServiceTransactionID
	r3, err := tr.AddRequest("a", domain.ServiceRequest{Query: []byte{3}})
	require.NoError(t, err)
	assert.NotEqual(t, r1.TransactionID, r3.TransactionID)
}

func TestAggregateQueryContainsAllClients(t *testing.T) {
	tr := NewTracker()

	r1, err := tr.AddRequest("client-a", domain.ServiceRequest{Protocol: domain.ServiceTypeBonjour, Query: []byte{0xaa, 0xbb}})
	require.NoError(t, err)
	r2, err := tr.AddRequest("client-b", domain.ServiceRequest{Protocol: domain.ServiceTypeUPnP, Query: []byte{0xcc}})
	require.NoError(t, err)

	blob := tr.AggregateQuery()
	// Each TLV: 2 length bytes + protocol + transaction id + payload.
	assert.Equal(t, (4+2)+(4+1), len(blob))
	assert.Contains(t, string(blob), string([]byte{r1.TransactionID, 0xaa, 0xbb}))
	assert.Contains(t, string(blob), string([]byte{r2.TransactionID, 0xcc}))

	// Removing one leaves the other in the aggregate.
	assert.True(t, tr.RemoveRequest("client-a", r1.TransactionID))
	blob = tr.AggregateQuery()
	assert.Equal(t, 4+1, len(blob))
	assert.True(t, tr.HasRequests())

	assert.True(t, tr.RemoveRequest("client-b", r2.TransactionID))
	assert.False(t, tr.HasRequests())
	assert.Empty(t, tr.AggregateQuery())
}

func TestOwnerOfDemultiplexesResponses(t *testing.T) {
	tr := NewTracker()
	r, err := tr.AddRequest("client-a", domain.ServiceRequest{Query: []byte{1}})
	require.NoError(t, err)

	owner, ok := tr.OwnerOf(r.TransactionID)
	require.True(t, ok)
	assert.Equal(t, "client-a", owner.ClientID)

	_, ok = tr.OwnerOf(r.TransactionID + 1)
	assert.False(t, ok, "responses with no matching owner are dropped")
}

func TestQueryTarget(t *testing.T) {
	tr := NewTracker()
	_, err := tr.AddRequest("a", domain.ServiceRequest{Query: []byte{1}, PeerAddress: "aa:bb:cc:dd:ee:01"})
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:dd:ee:01", tr.QueryTarget())

	_, err = tr.AddRequest("b", domain.ServiceRequest{Query: []byte{2}})
	require.NoError(t, err)
	assert.Equal(t, wildcardAddress, tr.QueryTarget(), "mixed targets widen to broadcast")
}

func TestUsdAdvertisementOnePerClient(t *testing.T) {
	tr := NewTracker()

	require.NoError(t, tr.AddSession(domain.UsdSession{ClientID: "a", SessionID: 1, Kind: domain.UsdAdvertisement}))
	err := tr.AddSession(domain.UsdSession{ClientID: "a", SessionID: 2, Kind: domain.UsdAdvertisement})
	assert.ErrorIs(t, err, domain.ErrServiceLimit)

	// Discovery sessions are not limited to one.
	require.NoError(t, tr.AddSession(domain.UsdSession{ClientID: "a", SessionID: 3, Kind: domain.UsdDiscovery}))
	require.NoError(t, tr.AddSession(domain.UsdSession{ClientID: "a", SessionID: 4, Kind: domain.UsdDiscovery}))
}

func TestDetachClientClearsEverything(t *testing.T) {
	tr := NewTracker()
	_, err := tr.AddRequest("a", domain.ServiceRequest{Query: []byte{1}})
	require.NoError(t, err)
	tr.AddLocalService("a", domain.LocalService{Entries: []string{"bonjour deadbeef 00"}})
	require.NoError(t, tr.AddSession(domain.UsdSession{ClientID: "a", SessionID: 7, Kind: domain.UsdDiscovery}))

	sessions, services, dropped := tr.DetachClient("a")
	assert.Len(t, sessions, 1)
	assert.Len(t, services, 1)
	assert.True(t, dropped)
	assert.False(t, tr.HasRequests())

	_, ok := tr.Session(7)
	assert.False(t, ok)
}
