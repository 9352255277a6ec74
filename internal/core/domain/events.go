package domain

import "net"

// DriverEvent is one asynchronous notification from the supplicant.
// Events may arrive out of causal order across sessions and may reference
// addresses that are no longer relevant; consumers must tolerate both.
type DriverEvent interface {
	driverEvent()
}

// PeerFound reports a device seen during discovery.
type PeerFound struct {
	Peer Peer
}

// PeerLost reports a device that aged out of the driver's cache.
type PeerLost struct {
	Address string
}

// FindStopped reports that the discovery window elapsed or was cancelled.
type FindStopped struct{}

// GoNegotiationRequest is an incoming owner-negotiation attempt from a
// peer. Method is the WPS method the peer proposed, already inverted to
// the local side's perspective.
type GoNegotiationRequest struct {
	SourceAddress string
	Method        WpsMethod
}

// GoNegotiationSuccess reports the GO negotiation exchange completing.
type GoNegotiationSuccess struct{}

// GoNegotiationFailure reports the exchange failing with a P2P status.
type GoNegotiationFailure struct {
	Status int
}

// GroupFormationSuccess reports WPS provisioning over the negotiated
// link completing.
type GroupFormationSuccess struct{}

// GroupFormationFailure reports provisioning failing after negotiation.
type GroupFormationFailure struct {
	Reason string
}

// GroupStarted reports a group interface coming up.
type GroupStarted struct {
	Group Group
}

// GroupRemoved reports a group interface going away.
type GroupRemoved struct {
	Interface string
	IsOwner   bool
}

// ProvisionDiscoveryResponse reports the peer answering our provision
// discovery request. Pin is set for the display flow.
type ProvisionDiscoveryResponse struct {
	PeerAddress string
	Method      WpsMethod
	Pin         string
	IsRequest   bool
}

// ProvisionDiscoveryFailure reports the exchange failing or timing out.
type ProvisionDiscoveryFailure struct {
	PeerAddress string
	Status      int
}

// InvitationReceived is an incoming invitation to join a group, either a
// fresh one the source operates or a persistent reinvocation.
type InvitationReceived struct {
	SourceAddress string
	OwnerAddress  string
	Bssid         string
	NetworkID     int
	Persistent    bool
}

// InvitationResult reports the outcome of an invitation we sent.
type InvitationResult struct {
	Bssid  string
	Status int
}

// FrequencyChanged reports the group moving to a new operating channel.
type FrequencyChanged struct {
	Interface string
	Frequency int
}

// StationConnected reports a station joining a group we own.
type StationConnected struct {
	InterfaceAddress string
	DeviceAddress    string
	IP               net.IP
}

// StationDisconnected reports a station leaving a group we own.
type StationDisconnected struct {
	InterfaceAddress string
	DeviceAddress    string
}

// ServiceDiscoveryResponse carries frame-based service response TLVs.
type ServiceDiscoveryResponse struct {
	SourceAddress   string
	UpdateIndicator int
	Responses       []ServiceResponse
}

// UsdServiceDiscovered reports a session-based discovery match.
type UsdServiceDiscovered struct {
	SessionID     int
	PeerSessionID int
	PeerAddress   string
	ServiceInfo   []byte
}

// UsdSessionTerminated reports a session-based discovery or
// advertisement session ending, by timeout or explicit stop.
type UsdSessionTerminated struct {
	SessionID     int
	Reason        int
	Advertisement bool
}

func (PeerFound) driverEvent()                  {}
func (PeerLost) driverEvent()                   {}
func (FindStopped) driverEvent()                {}
func (GoNegotiationRequest) driverEvent()       {}
func (GoNegotiationSuccess) driverEvent()       {}
func (GoNegotiationFailure) driverEvent()       {}
func (GroupFormationSuccess) driverEvent()      {}
func (GroupFormationFailure) driverEvent()      {}
func (GroupStarted) driverEvent()               {}
func (GroupRemoved) driverEvent()               {}
func (ProvisionDiscoveryResponse) driverEvent() {}
func (ProvisionDiscoveryFailure) driverEvent()  {}
func (InvitationReceived) driverEvent()         {}
func (InvitationResult) driverEvent()           {}
func (FrequencyChanged) driverEvent()           {}
func (StationConnected) driverEvent()           {}
func (StationDisconnected) driverEvent()        {}
func (ServiceDiscoveryResponse) driverEvent()   {}
func (UsdServiceDiscovered) driverEvent()       {}
func (UsdSessionTerminated) driverEvent()       {}
