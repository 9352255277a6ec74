package ports

import "github.com/lcalzada-xor/wfdirect/internal/core/domain"

// ResourceDecision is the arbiter's answer to an interface-creation
// request.
type ResourceDecision int

const (
	// ResourceProceed grants the radio resource immediately.
	ResourceProceed ResourceDecision = iota
	// ResourceAbort denies it; the requestor reports unavailability.
	ResourceAbort
	// ResourceDeferred parks the requestor until a later user decision
	// re-enters its queue.
	ResourceDeferred
)

// ResourceArbiter serializes creation of the P2P interface against other
// consumers of the same radio. A deferred answer is resolved later by
// calling the supplied func from any goroutine; the caller marshals it.
type ResourceArbiter interface {
	RequestInterface(requestor string, resolved func(approved bool)) ResourceDecision
}

// ProvisionMode selects how a client-role group interface gets its
// address.
type ProvisionMode int

const (
	ProvisionDHCP ProvisionMode = iota
	ProvisionLinkLocal
)

// IPProvisionResult is delivered asynchronously once provisioning
// settles.
type IPProvisionResult struct {
	Interface string
	Success   bool
	Address   string
	Gateway   string
}

// IPProvisioner obtains an address for a client-role group interface.
// The done callback fires on an arbitrary goroutine; the caller marshals
// it onto its queue before acting on it.
type IPProvisioner interface {
	Start(iface string, mode ProvisionMode, done func(IPProvisionResult)) error
	Stop(iface string) error
}

// NetworkRoutes is the slice of the local networking layer the daemon
// needs: installing the interface route after a client-role lease.
type NetworkRoutes interface {
	AddInterfaceRoute(iface, address, gateway string) error
	RemoveInterfaceRoutes(iface string) error
}

// TetherController readies the owner-role side: the DHCP server serving
// joined stations. ready fires asynchronously.
type TetherController interface {
	StartTethering(iface string, ready func(ok bool)) error
	StopTethering(iface string) error
}

// ApprovalKind identifies which user decision is being requested.
type ApprovalKind int

const (
	ApprovalNegotiation ApprovalKind = iota
	ApprovalInvitation
	ApprovalJoin
)

func (k ApprovalKind) String() string {
	switch k {
	case ApprovalNegotiation:
		return "negotiation"
	case ApprovalInvitation:
		return "invitation"
	}
	return "join"
}

// ApprovalResult is a user's or delegate's answer to a connection
// authorization request.
type ApprovalResult struct {
	Accepted bool
	// Pin carries the user-entered PIN for keypad flows.
	Pin string
}

// ApprovalRequest is everything a decision source needs to present the
// request.
type ApprovalRequest struct {
	Kind   ApprovalKind
	Peer   domain.Peer
	Config domain.ConnectConfig
	// Pin is a PIN to display for display flows.
	Pin string
}

// DecisionSource resolves a connection authorization. The local dialog
// collaborator and a registered external approver both implement it; the
// machine picks whichever applies when authorization is needed. respond
// may fire on any goroutine and is marshaled by the caller.
type DecisionSource interface {
	RequestApproval(req ApprovalRequest, respond func(ApprovalResult))
}

// FrequencyConflictPrompt asks whether to drop the infrastructure Wi-Fi
// connection to free the radio for the P2P group.
type FrequencyConflictPrompt interface {
	PromptDropWifi(peer domain.Peer, respond func(drop bool))
}
