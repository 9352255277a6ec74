// Package mock provides an in-memory supplicant used by tests and by
// mock mode, where the daemon runs against synthetic peers instead of
// real hardware.
package mock

import (
	"fmt"
	"sync"
	"time"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

var (
	_ ports.Driver       = (*Driver)(nil)
	_ ports.DriverEvents = (*Driver)(nil)
)

// Driver implements ports.Driver and ports.DriverEvents against
// in-memory state. Every command is recorded; tests script outcomes by
// injecting per-method errors and emitting events.
type Driver struct {
	mu sync.Mutex

	events chan domain.DriverEvent
	calls  []string

	// errs maps a method name to the error its next calls return.
	errs map[string]error

	// Pin is returned from Connect, modeling the display flow.
	Pin string

	address   string
	name      string
	networks  []domain.PersistentGroup
	nextUsdID int

	findActive bool
}

// NewDriver creates a mock with a buffered event stream.
func NewDriver(address string) *Driver {
	return &Driver{
		events:  make(chan domain.DriverEvent, 64),
		errs:    make(map[string]error),
		address: address,
	}
}

// Events exposes the event stream for the machine to consume.
func (d *Driver) Events() <-chan domain.DriverEvent { return d.events }

// Emit delivers an event as if the supplicant raised it.
func (d *Driver) Emit(ev domain.DriverEvent) { d.events <- ev }

// Close ends the event stream.
func (d *Driver) Close() { close(d.events) }

// FailWith makes the named method return err until cleared with nil.
func (d *Driver) FailWith(method string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.errs, method)
		return
	}
	d.errs[method] = err
}

// Calls returns the recorded command sequence.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallCount counts recorded calls of one method.
func (d *Driver) CallCount(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == method || len(c) > len(method) && c[:len(method)+1] == method+"(" {
			n++
		}
	}
	return n
}

// SetNetworks seeds the persisted profile table.
func (d *Driver) SetNetworks(networks []domain.PersistentGroup) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.networks = networks
}

func (d *Driver) record(call string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, call)
	name := call
	for i := 0; i < len(call); i++ {
		if call[i] == '(' {
			name = call[:i]
			break
		}
	}
	return d.errs[name]
}

func (d *Driver) SetupInterface(name string) error { return d.record("SetupInterface(" + name + ")") }
func (d *Driver) TeardownInterface(name string) error {
	return d.record("TeardownInterface(" + name + ")")
}

func (d *Driver) DeviceAddress() (string, error) {
	if err := d.record("DeviceAddress"); err != nil {
		return "", err
	}
	return d.address, nil
}

func (d *Driver) SetDeviceName(name string) error {
	if err := d.record("SetDeviceName(" + name + ")"); err != nil {
		return err
	}
	d.mu.Lock()
	d.name = name
	d.mu.Unlock()
	return nil
}

// DeviceName returns the last configured name.
func (d *Driver) DeviceName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

func (d *Driver) SetSsidPostfix(postfix string) error {
	return d.record("SetSsidPostfix(" + postfix + ")")
}

func (d *Driver) Find(scan ports.ScanType, freq int, timeout time.Duration) error {
	if err := d.record(fmt.Sprintf("Find(%d,%d)", scan, freq)); err != nil {
		return err
	}
	d.mu.Lock()
	d.findActive = true
	d.mu.Unlock()
	return nil
}

func (d *Driver) StopFind() error {
	if err := d.record("StopFind"); err != nil {
		return err
	}
	d.mu.Lock()
	d.findActive = false
	d.mu.Unlock()
	return nil
}

// FindActive reports whether discovery is running.
func (d *Driver) FindActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findActive
}

func (d *Driver) Flush() error        { return d.record("Flush") }
func (d *Driver) ServiceFlush() error { return d.record("ServiceFlush") }

func (d *Driver) Connect(cfg domain.ConnectConfig, joinExisting bool) (string, error) {
	if err := d.record(fmt.Sprintf("Connect(%s,join=%t)", cfg.PeerAddress, joinExisting)); err != nil {
		return "", err
	}
	return d.Pin, nil
}

func (d *Driver) CancelConnect() error { return d.record("CancelConnect") }

func (d *Driver) ProvisionDiscovery(cfg domain.ConnectConfig) error {
	return d.record("ProvisionDiscovery(" + cfg.PeerAddress + ")")
}

func (d *Driver) Reject(peerAddress string) error {
	return d.record("Reject(" + peerAddress + ")")
}

func (d *Driver) GroupAdd(networkID int, persistent bool) error {
	return d.record(fmt.Sprintf("GroupAdd(%d,persistent=%t)", networkID, persistent))
}

func (d *Driver) GroupAddWithConfig(name, passphrase string, persistent bool, freq int, peerAddress string, join bool) error {
	return d.record("GroupAddWithConfig(" + name + ")")
}

func (d *Driver) GroupRemove(iface string) error {
	return d.record("GroupRemove(" + iface + ")")
}

func (d *Driver) SetGroupIdle(iface string, timeout time.Duration) error {
	return d.record("SetGroupIdle(" + iface + ")")
}

func (d *Driver) SetPowerSave(iface string, enable bool) error {
	return d.record(fmt.Sprintf("SetPowerSave(%s,%t)", iface, enable))
}

func (d *Driver) StartWpsPbc(iface, peerInterfaceAddress string) error {
	return d.record("StartWpsPbc(" + peerInterfaceAddress + ")")
}

func (d *Driver) StartWpsPinKeypad(iface, pin string) error {
	return d.record("StartWpsPinKeypad")
}

func (d *Driver) StartWpsPinDisplay(iface, peerInterfaceAddress string) (string, error) {
	if err := d.record("StartWpsPinDisplay(" + peerInterfaceAddress + ")"); err != nil {
		return "", err
	}
	return "12345670", nil
}

func (d *Driver) CancelWps(iface string) error { return d.record("CancelWps") }

func (d *Driver) Invite(group domain.Group, peerAddress string) error {
	return d.record("Invite(" + peerAddress + ")")
}

func (d *Driver) Reinvoke(networkID int, peerAddress string, dikID int) error {
	return d.record(fmt.Sprintf("Reinvoke(%d,%s)", networkID, peerAddress))
}

func (d *Driver) GroupCapability(peerAddress string) (uint8, error) {
	if err := d.record("GroupCapability(" + peerAddress + ")"); err != nil {
		return 0, err
	}
	return 0, nil
}

func (d *Driver) ListNetworks() ([]domain.PersistentGroup, error) {
	if err := d.record("ListNetworks"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]domain.PersistentGroup, len(d.networks))
	copy(out, d.networks)
	return out, nil
}

func (d *Driver) RemoveNetwork(networkID int) error {
	if err := d.record(fmt.Sprintf("RemoveNetwork(%d)", networkID)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.networks {
		if d.networks[i].NetworkID == networkID {
			d.networks = append(d.networks[:i], d.networks[i+1:]...)
			break
		}
	}
	return nil
}

func (d *Driver) SetClientList(networkID int, clients []string) error {
	if err := d.record(fmt.Sprintf("SetClientList(%d)", networkID)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.networks {
		if d.networks[i].NetworkID == networkID {
			d.networks[i].Clients = clients
			break
		}
	}
	return nil
}

func (d *Driver) SaveConfig() error { return d.record("SaveConfig") }

func (d *Driver) ServiceAdd(entries []string) error {
	return d.record(fmt.Sprintf("ServiceAdd(%d)", len(entries)))
}

func (d *Driver) ServiceRemove(entries []string) error {
	return d.record(fmt.Sprintf("ServiceRemove(%d)", len(entries)))
}

func (d *Driver) RequestServiceDiscovery(peerAddress string, query []byte) (string, error) {
	if err := d.record("RequestServiceDiscovery(" + peerAddress + ")"); err != nil {
		return "", err
	}
	return fmt.Sprintf("req-%d", len(d.Calls())), nil
}

func (d *Driver) CancelServiceDiscovery(identifier string) error {
	return d.record("CancelServiceDiscovery(" + identifier + ")")
}

func (d *Driver) StartUsdDiscovery(cfg domain.UsdConfig, timeout time.Duration) (int, error) {
	if err := d.record("StartUsdDiscovery"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUsdID++
	return d.nextUsdID, nil
}

func (d *Driver) StopUsdDiscovery(sessionID int) error {
	return d.record(fmt.Sprintf("StopUsdDiscovery(%d)", sessionID))
}

func (d *Driver) StartUsdAdvertisement(cfg domain.UsdConfig, timeout time.Duration) (int, error) {
	if err := d.record("StartUsdAdvertisement"); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextUsdID++
	return d.nextUsdID, nil
}

func (d *Driver) StopUsdAdvertisement(sessionID int) error {
	return d.record(fmt.Sprintf("StopUsdAdvertisement(%d)", sessionID))
}
