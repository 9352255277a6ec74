package p2p

import (
	"github.com/google/uuid"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// The methods below are the client-facing surface. Each posts a command
// into the ordered queue and blocks until the machine has processed it;
// validation failures surface here synchronously and never enter the
// protocol pipeline. Safe to call from any goroutine.

// AttachClient registers a client. Active clients keep the interface
// up; attaching the first active client triggers the enable sequence.
// Returns the client id used in subsequent calls.
func (m *Machine) AttachClient(name string, active bool) (string, error) {
	id := uuid.NewString()
	err := m.command(cmdClientAttach, attachRequest{clientID: id, name: name, active: active})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DetachClient unregisters a client, releasing its service requests,
// advertisements, sessions and approver registrations. Detaching the
// last active client starts the idle-shutdown timer.
func (m *Machine) DetachClient(clientID string) error {
	return m.command(cmdClientDetach, detachRequest{clientID: clientID})
}

// StartDiscovery begins a peer discovery pass.
func (m *Machine) StartDiscovery(scan ports.ScanType, freq int) error {
	return m.command(cmdStartDiscovery, discoveryRequest{scan: scan, freq: freq})
}

// StopDiscovery cancels an ongoing discovery pass.
func (m *Machine) StopDiscovery() error {
	return m.command(cmdStopDiscovery, nil)
}

// Connect starts a group formation attempt with a previously discovered
// peer, or extends the active group with an invitation when one exists.
// Exactly one attempt may be in flight; a concurrent attempt fails with
// ErrBusy.
func (m *Machine) Connect(clientID string, cfg domain.ConnectConfig) error {
	return m.command(cmdConnect, connectRequest{clientID: clientID, cfg: cfg})
}

// CancelConnect abandons the in-flight attempt cooperatively.
func (m *Machine) CancelConnect() error {
	return m.command(cmdCancelConnect, nil)
}

// CreateGroup brings up an autonomous group with this device as owner.
// A fast-connection config creates the group from direct credentials; a
// config naming a persisted network id reinvokes that profile.
func (m *Machine) CreateGroup(clientID string, cfg domain.ConnectConfig) error {
	return m.command(cmdCreateGroup, createGroupRequest{clientID: clientID, cfg: cfg})
}

// RemoveGroup tears the active group down.
func (m *Machine) RemoveGroup() error {
	return m.command(cmdRemoveGroup, nil)
}

// AddServiceRequest registers a frame-based service query and reissues
// the aggregate driver query. Returns the assigned transaction id.
func (m *Machine) AddServiceRequest(clientID string, req domain.ServiceRequest) (uint8, error) {
	var id uint8
	err := m.command(cmdAddServiceRequest, serviceRequestAdd{clientID: clientID, req: req, out: &id})
	return id, err
}

// RemoveServiceRequest drops one query; the aggregate is reissued, or
// cancelled when it was the last.
func (m *Machine) RemoveServiceRequest(clientID string, transactionID uint8) error {
	return m.command(cmdRemoveServiceRequest, serviceRequestRemove{clientID: clientID, transactionID: transactionID})
}

// DiscoverServices issues the aggregate query and a discovery pass.
// Fails with ErrNoServiceRequests when nothing is registered.
func (m *Machine) DiscoverServices() error {
	return m.command(cmdDiscoverServices, nil)
}

// AddLocalService registers a frame-based service advertisement.
func (m *Machine) AddLocalService(clientID string, svc domain.LocalService) error {
	return m.command(cmdAddLocalService, localServiceAdd{clientID: clientID, svc: svc})
}

// RemoveLocalService withdraws an advertisement.
func (m *Machine) RemoveLocalService(clientID string, entries []string) error {
	return m.command(cmdRemoveLocalService, localServiceRemove{clientID: clientID, entries: entries})
}

// StartUsdDiscovery starts a session-based discovery subscription and
// returns its session id.
func (m *Machine) StartUsdDiscovery(clientID string, cfg domain.UsdConfig) (int, error) {
	var id int
	err := m.command(cmdStartUsdDiscovery, usdStart{clientID: clientID, cfg: cfg, out: &id})
	return id, err
}

// StopUsdDiscovery stops a discovery session.
func (m *Machine) StopUsdDiscovery(clientID string, sessionID int) error {
	return m.command(cmdStopUsdDiscovery, usdStop{clientID: clientID, sessionID: sessionID})
}

// StartUsdAdvertisement starts a session-based advertisement, one per
// client, and returns its session id.
func (m *Machine) StartUsdAdvertisement(clientID string, cfg domain.UsdConfig) (int, error) {
	var id int
	err := m.command(cmdStartUsdAdvertisement, usdStart{clientID: clientID, cfg: cfg, out: &id})
	return id, err
}

// StopUsdAdvertisement stops an advertisement session.
func (m *Machine) StopUsdAdvertisement(clientID string, sessionID int) error {
	return m.command(cmdStopUsdAdvertisement, usdStop{clientID: clientID, sessionID: sessionID})
}

// RegisterApprover delegates authorization decisions for the peer
// address (or approver.WildcardAddress) to the given delegate.
func (m *Machine) RegisterApprover(clientID, address string, a ports.Approver) error {
	return m.command(cmdRegisterApprover, approverRegister{clientID: clientID, address: address, approver: a})
}

// UnregisterApprover removes a delegation.
func (m *Machine) UnregisterApprover(clientID, address string) error {
	return m.command(cmdUnregisterApprover, approverUnregister{clientID: clientID, address: address})
}

// SetDeviceName updates and persists the advertised device name.
func (m *Machine) SetDeviceName(name string) error {
	return m.command(cmdSetDeviceName, setDeviceName{name: name})
}

// FactoryReset wipes persisted group profiles and settings.
func (m *Machine) FactoryReset() error {
	return m.command(cmdFactoryReset, nil)
}

// Status is a diagnostic snapshot of the machine.
type Status struct {
	State            string                   `json:"state"`
	Available        bool                     `json:"available"`
	ThisDevice       domain.DeviceInfo        `json:"this_device"`
	Peers            []domain.Peer            `json:"peers"`
	Group            *domain.Group            `json:"group,omitempty"`
	PersistentGroups []domain.PersistentGroup `json:"persistent_groups"`
	DiscoveryActive  bool                     `json:"discovery_active"`
	PendingPeer      string                   `json:"pending_peer,omitempty"`
	Clients          int                      `json:"clients"`
}

// Snapshot captures the machine state for the debug surface.
func (m *Machine) Snapshot() (Status, error) {
	var out Status
	err := m.command(cmdStatus, statusRequest{out: &out})
	return out, err
}
