package domain

import "errors"

// Sentinel errors returned synchronously at the command boundary.
var (
	// ErrBusy rejects a second group-formation attempt while one is in
	// flight; the machine allows exactly one protocol session at a time.
	ErrBusy = errors.New("operation in progress")
	// ErrUnknownPeer rejects a connect to an address never discovered.
	ErrUnknownPeer = errors.New("unknown peer address")
	// ErrInvalidConfig rejects malformed connection parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotSupported is returned when the hardware lacks P2P support.
	ErrNotSupported = errors.New("p2p not supported")
	// ErrDisabled is returned for protocol commands while the interface
	// is down.
	ErrDisabled = errors.New("p2p disabled")
	// ErrNoServiceRequests rejects a service discovery scan with nothing
	// to ask for.
	ErrNoServiceRequests = errors.New("no service requests registered")
	// ErrServiceLimit is returned when no service transaction id or
	// session slot is free.
	ErrServiceLimit = errors.New("service request limit reached")
	// ErrStaleDecision rejects an authorization decision that no longer
	// matches the pending connection attempt.
	ErrStaleDecision = errors.New("decision does not match pending request")
)

// FailureReason classifies why a connection attempt or operation ended.
type FailureReason int

const (
	ReasonNone FailureReason = iota
	ReasonError
	ReasonBusy
	ReasonUnsupported
	ReasonTimedOut
	ReasonUserRejected
	ReasonPeerRejected
	ReasonProvDiscoveryFailed
	ReasonNegotiationFailed
	ReasonNoCommonChannel
	ReasonGroupRemoved
	ReasonInvitationFailed
	ReasonCancelled
)

func (r FailureReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonError:
		return "error"
	case ReasonBusy:
		return "busy"
	case ReasonUnsupported:
		return "unsupported"
	case ReasonTimedOut:
		return "timed_out"
	case ReasonUserRejected:
		return "user_rejected"
	case ReasonPeerRejected:
		return "peer_rejected"
	case ReasonProvDiscoveryFailed:
		return "provision_discovery_failed"
	case ReasonNegotiationFailed:
		return "negotiation_failed"
	case ReasonNoCommonChannel:
		return "no_common_channel"
	case ReasonGroupRemoved:
		return "group_removed"
	case ReasonInvitationFailed:
		return "invitation_failed"
	case ReasonCancelled:
		return "cancelled"
	}
	return "unknown"
}

// P2P status codes carried by negotiation and invitation results.
const (
	StatusSuccess                  = 0
	StatusInfoUnavailable          = 1
	StatusIncompatibleParameters   = 2
	StatusLimitReached             = 3
	StatusInvalidParameters        = 4
	StatusUnableToAccommodate      = 5
	StatusPreviousProtocolError    = 6
	StatusNoCommonChannels         = 7
	StatusUnknownGroup             = 8
	StatusBothGroupOwners          = 9
	StatusIncompatibleProvisioning = 10
	StatusRejectedByUser           = 11
)
