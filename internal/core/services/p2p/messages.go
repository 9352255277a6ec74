package p2p

import (
	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// msgKind tags every item flowing through the machine's queue: client
// commands, driver events, marshaled collaborator callbacks and timer
// firings all share the one ordered stream.
type msgKind int

const (
	msgDriverEvent msgKind = iota
	msgTimerFired

	cmdClientAttach
	cmdClientDetach
	cmdStartDiscovery
	cmdStopDiscovery
	cmdConnect
	cmdCancelConnect
	cmdCreateGroup
	cmdRemoveGroup
	cmdAddServiceRequest
	cmdRemoveServiceRequest
	cmdDiscoverServices
	cmdAddLocalService
	cmdRemoveLocalService
	cmdStartUsdDiscovery
	cmdStopUsdDiscovery
	cmdStartUsdAdvertisement
	cmdStopUsdAdvertisement
	cmdRegisterApprover
	cmdUnregisterApprover
	cmdSetDeviceName
	cmdFactoryReset
	cmdStatus

	// Marshaled collaborator callbacks.
	cbArbitration
	cbApprovalDecision
	cbFreqConflictDecision
	cbTetherReady
	cbIPProvision
	cbDisableDone
)

func (k msgKind) String() string {
	switch k {
	case msgDriverEvent:
		return "driver_event"
	case msgTimerFired:
		return "timer"
	case cmdClientAttach:
		return "client_attach"
	case cmdClientDetach:
		return "client_detach"
	case cmdStartDiscovery:
		return "start_discovery"
	case cmdStopDiscovery:
		return "stop_discovery"
	case cmdConnect:
		return "connect"
	case cmdCancelConnect:
		return "cancel_connect"
	case cmdCreateGroup:
		return "create_group"
	case cmdRemoveGroup:
		return "remove_group"
	case cmdAddServiceRequest:
		return "add_service_request"
	case cmdRemoveServiceRequest:
		return "remove_service_request"
	case cmdDiscoverServices:
		return "discover_services"
	case cmdAddLocalService:
		return "add_local_service"
	case cmdRemoveLocalService:
		return "remove_local_service"
	case cmdStartUsdDiscovery:
		return "start_usd_discovery"
	case cmdStopUsdDiscovery:
		return "stop_usd_discovery"
	case cmdStartUsdAdvertisement:
		return "start_usd_advertisement"
	case cmdStopUsdAdvertisement:
		return "stop_usd_advertisement"
	case cmdRegisterApprover:
		return "register_approver"
	case cmdUnregisterApprover:
		return "unregister_approver"
	case cmdSetDeviceName:
		return "set_device_name"
	case cmdFactoryReset:
		return "factory_reset"
	case cmdStatus:
		return "status"
	case cbArbitration:
		return "arbitration_resolved"
	case cbApprovalDecision:
		return "approval_decision"
	case cbFreqConflictDecision:
		return "freq_conflict_decision"
	case cbTetherReady:
		return "tether_ready"
	case cbIPProvision:
		return "ip_provision_result"
	case cbDisableDone:
		return "disable_done"
	}
	return "unknown"
}

// message is one queue item. reply, when non-nil, receives the
// synchronous outcome of a command exactly once.
type message struct {
	kind    msgKind
	payload any
	// generation validates timer firings against the arm-time counter.
	generation uint64
	timer      timerKind
	reply      chan error
}

// Command payloads.

type attachRequest struct {
	clientID string
	name     string
	// active marks clients whose presence keeps the interface up.
	active bool
}

type detachRequest struct {
	clientID string
}

type discoveryRequest struct {
	scan ports.ScanType
	freq int
}

type connectRequest struct {
	clientID string
	cfg      domain.ConnectConfig
}

type createGroupRequest struct {
	clientID string
	cfg      domain.ConnectConfig
}

type serviceRequestAdd struct {
	clientID string
	req      domain.ServiceRequest
	// out receives the assigned transaction id.
	out *uint8
}

type serviceRequestRemove struct {
	clientID      string
	transactionID uint8
}

type localServiceAdd struct {
	clientID string
	svc      domain.LocalService
}

type localServiceRemove struct {
	clientID string
	entries  []string
}

type usdStart struct {
	clientID string
	cfg      domain.UsdConfig
	// out receives the driver-assigned session id.
	out *int
}

type usdStop struct {
	clientID  string
	sessionID int
}

type approverRegister struct {
	clientID string
	address  string
	approver ports.Approver
}

type approverUnregister struct {
	clientID string
	address  string
}

type setDeviceName struct {
	name string
}

type statusRequest struct {
	out *Status
}

// Callback payloads.

type arbitrationResolved struct {
	approved bool
}

type approvalDecision struct {
	kind        ports.ApprovalKind
	peerAddress string
	result      ports.ApprovalResult
}

type freqConflictDecision struct {
	dropWifi bool
}

type tetherReady struct {
	iface string
	ok    bool
}

type ipProvisionDone struct {
	result ports.IPProvisionResult
}
