package ports

import (
	"time"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// ScanType selects how wide a discovery pass sweeps.
type ScanType int

const (
	// ScanFull sweeps every supported channel.
	ScanFull ScanType = iota
	// ScanSocial sweeps only the social channels (1, 6, 11).
	ScanSocial
	// ScanSingleFreq dwells on one frequency, used to find a specific
	// peer faster.
	ScanSingleFreq
)

// Driver is the synchronous command surface of the supplicant. Calls
// report immediate acceptance only; protocol-level outcomes (peer not
// responding, negotiation result) arrive later through the event stream.
// The driver never retries internally.
type Driver interface {
	// SetupInterface brings the P2P management interface up and returns
	// its name.
	SetupInterface(name string) error
	TeardownInterface(name string) error

	DeviceAddress() (string, error)
	SetDeviceName(name string) error
	SetSsidPostfix(postfix string) error

	Find(scan ScanType, freq int, timeout time.Duration) error
	StopFind() error
	// Flush drops the driver's peer and service caches.
	Flush() error
	ServiceFlush() error

	// Connect starts or continues a group formation with the configured
	// peer. For the display WPS flow the generated PIN is returned.
	Connect(cfg domain.ConnectConfig, joinExisting bool) (pin string, err error)
	CancelConnect() error
	ProvisionDiscovery(cfg domain.ConnectConfig) error
	Reject(peerAddress string) error

	GroupAdd(networkID int, persistent bool) error
	// GroupAddWithConfig forms a group directly from credentials, the
	// fast-connection path.
	GroupAddWithConfig(name, passphrase string, persistent bool, freq int, peerAddress string, join bool) error
	GroupRemove(iface string) error
	SetGroupIdle(iface string, timeout time.Duration) error
	SetPowerSave(iface string, enable bool) error

	// WPS enrollment on an owned group interface, used when admitting a
	// joining station.
	StartWpsPbc(iface, peerInterfaceAddress string) error
	StartWpsPinKeypad(iface, pin string) error
	// StartWpsPinDisplay generates and registers a PIN for the peer to
	// type.
	StartWpsPinDisplay(iface, peerInterfaceAddress string) (string, error)
	CancelWps(iface string) error

	Invite(group domain.Group, peerAddress string) error
	Reinvoke(networkID int, peerAddress string, dikID int) error
	GroupCapability(peerAddress string) (uint8, error)

	// ListNetworks enumerates the driver's persisted group profiles.
	ListNetworks() ([]domain.PersistentGroup, error)
	RemoveNetwork(networkID int) error
	SetClientList(networkID int, clients []string) error
	SaveConfig() error

	// Frame-based service discovery. RequestServiceDiscovery returns the
	// driver-side identifier used to cancel the aggregate request.
	ServiceAdd(entries []string) error
	ServiceRemove(entries []string) error
	RequestServiceDiscovery(peerAddress string, query []byte) (string, error)
	CancelServiceDiscovery(identifier string) error

	// Session-based (unsynchronized) service discovery.
	StartUsdDiscovery(cfg domain.UsdConfig, timeout time.Duration) (int, error)
	StopUsdDiscovery(sessionID int) error
	StartUsdAdvertisement(cfg domain.UsdConfig, timeout time.Duration) (int, error)
	StopUsdAdvertisement(sessionID int) error
}

// DriverEvents exposes the supplicant's asynchronous notification
// stream. The consumer marshals every event onto its own queue; the
// channel is never read from more than one goroutine.
type DriverEvents interface {
	Events() <-chan domain.DriverEvent
}
