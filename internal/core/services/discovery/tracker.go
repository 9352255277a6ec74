// Package discovery tracks per-client service discovery state for both
// sub-protocols: frame-based query/response and session-based (USD)
// discovery/advertisement. Owned by the state machine goroutine.
package discovery

import (
	"bytes"
	"encoding/binary"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// wildcardAddress broadcasts the aggregate query to every peer.
const wildcardAddress = "00:00:00:00:00:00"

// Tracker owns all outstanding service requests, advertisements and USD
// sessions, keyed by owning client.
type Tracker struct {
	requests map[string][]*domain.ServiceRequest
	services map[string][]*domain.LocalService
	sessions map[int]*domain.UsdSession

	nextTransactionID uint8
	// driverRequestID is the identifier of the aggregate frame-based
	// query currently installed in the driver, empty when none is.
	driverRequestID string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		requests:          make(map[string][]*domain.ServiceRequest),
		services:          make(map[string][]*domain.LocalService),
		sessions:          make(map[int]*domain.UsdSession),
		nextTransactionID: domain.MinServiceTransactionID,
	}
}

// AddRequest registers a frame-based query for a client, assigning it a
// fresh non-zero transaction id. Returns the stored request.
func (t *Tracker) AddRequest(clientID string, req domain.ServiceRequest) (*domain.ServiceRequest, error) {
	id, ok := t.allocTransactionID()
	if !ok {
		return nil, domain.ErrServiceLimit
	}
	stored := req
	stored.ClientID = clientID
	stored.TransactionID = id
	t.requests[clientID] = append(t.requests[clientID], &stored)
	logrus.WithFields(logrus.Fields{
		"client":         clientID,
		"transaction_id": id,
		"protocol":       stored.Protocol,
	}).Debug("service request added")
	return &stored, nil
}

// allocTransactionID hands out ids in 1..255, wrapping and skipping ids
// still held by an outstanding request.
func (t *Tracker) allocTransactionID() (uint8, bool) {
	inUse := make(map[uint8]bool)
	for _, reqs := range t.requests {
		for _, r := range reqs {
			inUse[r.TransactionID] = true
		}
	}
	if len(inUse) >= domain.MaxServiceTransactionID {
		return 0, false
	}
	for {
		id := t.nextTransactionID
		if t.nextTransactionID == domain.MaxServiceTransactionID {
			t.nextTransactionID = domain.MinServiceTransactionID
		} else {
			t.nextTransactionID++
		}
		if !inUse[id] {
			return id, true
		}
	}
}

// RemoveRequest deletes one request by transaction id, reporting whether
// it existed and belonged to the client.
func (t *Tracker) RemoveRequest(clientID string, transactionID uint8) bool {
	reqs := t.requests[clientID]
	for i, r := range reqs {
		if r.TransactionID == transactionID {
			t.requests[clientID] = append(reqs[:i], reqs[i+1:]...)
			if len(t.requests[clientID]) == 0 {
				delete(t.requests, clientID)
			}
			return true
		}
	}
	return false
}

// OwnerOf resolves a response transaction id back to the owning request.
// Responses with no owner are dropped by the caller.
func (t *Tracker) OwnerOf(transactionID uint8) (*domain.ServiceRequest, bool) {
	for _, reqs := range t.requests {
		for _, r := range reqs {
			if r.TransactionID == transactionID {
				return r, true
			}
		}
	}
	return nil, false
}

// HasRequests reports whether any frame-based query is outstanding.
func (t *Tracker) HasRequests() bool {
	return len(t.requests) > 0
}

// AggregateQuery concatenates every outstanding query into the single
// driver-level payload, each TLV prefixed with its little-endian length,
// its protocol and its transaction id.
func (t *Tracker) AggregateQuery() []byte {
	var buf bytes.Buffer
	for _, reqs := range t.requests {
		for _, r := range reqs {
			// TLV: length covers protocol + transaction id + payload.
			var length [2]byte
			binary.LittleEndian.PutUint16(length[:], uint16(len(r.Query)+2))
			buf.Write(length[:])
			buf.WriteByte(byte(r.Protocol))
			buf.WriteByte(r.TransactionID)
			buf.Write(r.Query)
		}
	}
	return buf.Bytes()
}

// QueryTarget is the peer address for the aggregate request; narrowed
// only when every request targets the same peer.
func (t *Tracker) QueryTarget() string {
	target := ""
	first := true
	for _, reqs := range t.requests {
		for _, r := range reqs {
			addr := r.PeerAddress
			if addr == "" {
				return wildcardAddress
			}
			if first {
				target = addr
				first = false
			} else if target != addr {
				return wildcardAddress
			}
		}
	}
	if target == "" {
		return wildcardAddress
	}
	return target
}

// DriverRequestID returns the installed aggregate request identifier.
func (t *Tracker) DriverRequestID() string {
	return t.driverRequestID
}

// SetDriverRequestID records the identifier of the aggregate request
// currently installed in the driver, empty to clear.
func (t *Tracker) SetDriverRequestID(id string) {
	t.driverRequestID = id
}

// AddLocalService registers a frame-based advertisement for a client.
func (t *Tracker) AddLocalService(clientID string, svc domain.LocalService) *domain.LocalService {
	stored := svc
	stored.ClientID = clientID
	t.services[clientID] = append(t.services[clientID], &stored)
	return &stored
}

// RemoveLocalService deletes one advertisement by matching entries,
// returning it for driver-side removal.
func (t *Tracker) RemoveLocalService(clientID string, entries []string) (*domain.LocalService, bool) {
	svcs := t.services[clientID]
	for i, s := range svcs {
		if equalEntries(s.Entries, entries) {
			t.services[clientID] = append(svcs[:i], svcs[i+1:]...)
			if len(t.services[clientID]) == 0 {
				delete(t.services, clientID)
			}
			return s, true
		}
	}
	return nil, false
}

func equalEntries(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AddSession records a live USD session. Advertisement sessions are
// strictly one per client; discovery sessions may grow beyond one.
func (t *Tracker) AddSession(s domain.UsdSession) error {
	if s.Kind == domain.UsdAdvertisement {
		for _, existing := range t.sessions {
			if existing.ClientID == s.ClientID && existing.Kind == domain.UsdAdvertisement {
				return domain.ErrServiceLimit
			}
		}
	}
	stored := s
	t.sessions[s.SessionID] = &stored
	return nil
}

// Session resolves a session id back to its record.
func (t *Tracker) Session(sessionID int) (*domain.UsdSession, bool) {
	s, ok := t.sessions[sessionID]
	return s, ok
}

// RemoveSession drops a session record, returning it.
func (t *Tracker) RemoveSession(sessionID int) (*domain.UsdSession, bool) {
	s, ok := t.sessions[sessionID]
	if ok {
		delete(t.sessions, sessionID)
	}
	return s, ok
}

// DetachClient clears everything a client owns when it goes away.
// Returns the USD sessions and local services that need driver-side
// teardown, and whether any frame-based request was dropped (meaning the
// aggregate query must be reissued or cancelled).
func (t *Tracker) DetachClient(clientID string) (sessions []domain.UsdSession, services []domain.LocalService, droppedRequests bool) {
	if _, ok := t.requests[clientID]; ok {
		delete(t.requests, clientID)
		droppedRequests = true
	}
	for _, s := range t.services[clientID] {
		services = append(services, *s)
	}
	delete(t.services, clientID)
	for id, s := range t.sessions {
		if s.ClientID == clientID {
			sessions = append(sessions, *s)
			delete(t.sessions, id)
		}
	}
	return sessions, services, droppedRequests
}

// Clear drops all state, used on disable.
func (t *Tracker) Clear() {
	t.requests = make(map[string][]*domain.ServiceRequest)
	t.services = make(map[string][]*domain.LocalService)
	t.sessions = make(map[int]*domain.UsdSession)
	t.driverRequestID = ""
}
