// Package supplicant drives wpa_supplicant's P2P surface over D-Bus
// (fi.w1.wpa_supplicant1). Commands are synchronous method calls on the
// management interface object; protocol outcomes arrive as signals and
// are translated onto the adapter's event channel.
package supplicant

import (
	"fmt"
	"strings"
	"sync"
	"time"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

const (
	busName  = "fi.w1.wpa_supplicant1"
	rootPath = dbus.ObjectPath("/fi/w1/wpa_supplicant1")

	rootIface       = "fi.w1.wpa_supplicant1"
	ifaceIface      = "fi.w1.wpa_supplicant1.Interface"
	p2pIface        = "fi.w1.wpa_supplicant1.Interface.P2PDevice"
	wpsIface        = "fi.w1.wpa_supplicant1.Interface.WPS"
	peerIface       = "fi.w1.wpa_supplicant1.Peer"
	groupIface      = "fi.w1.wpa_supplicant1.Group"
	persistentIface = "fi.w1.wpa_supplicant1.PersistentGroup"
	propsIface      = "org.freedesktop.DBus.Properties"
)

var (
	_ ports.Driver       = (*Adapter)(nil)
	_ ports.DriverEvents = (*Adapter)(nil)
)

// Adapter converses with one wpa_supplicant management interface.
type Adapter struct {
	bus  *dbus.Conn
	root dbus.BusObject

	mu        sync.Mutex
	ifacePath dbus.ObjectPath
	// groupPaths maps group interface names to their object paths so
	// removal can address the right object.
	groupPaths map[string]dbus.ObjectPath
	// peerAddrs caches peer object path to device address for lost
	// signals, which only carry the path.
	peerAddrs map[dbus.ObjectPath]string
	// sdRefs maps our request identifiers to the supplicant's 64-bit
	// references.
	sdRefs    map[string]uint64
	nextSdRef int
	// usdSessions maps session ids to publish/subscribe object paths.
	usdSessions map[int]dbus.ObjectPath
	nextUsd     int

	events  chan domain.DriverEvent
	signals chan *dbus.Signal
	done    chan struct{}
}

// New connects to the system bus. Setup of the P2P interface happens in
// SetupInterface, driven by the state machine.
func New() (*Adapter, error) {
	bus, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("supplicant: connect system bus: %w", err)
	}
	a := &Adapter{
		bus:         bus,
		root:        bus.Object(busName, rootPath),
		groupPaths:  make(map[string]dbus.ObjectPath),
		peerAddrs:   make(map[dbus.ObjectPath]string),
		sdRefs:      make(map[string]uint64),
		usdSessions: make(map[int]dbus.ObjectPath),
		events:      make(chan domain.DriverEvent, 128),
		signals:     make(chan *dbus.Signal, 128),
		done:        make(chan struct{}),
	}
	return a, nil
}

// Events exposes the translated signal stream.
func (a *Adapter) Events() <-chan domain.DriverEvent { return a.events }

// Close stops signal translation and releases the bus.
func (a *Adapter) Close() error {
	close(a.done)
	a.bus.RemoveSignal(a.signals)
	close(a.events)
	return a.bus.Close()
}

func (a *Adapter) iface() dbus.BusObject {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bus.Object(busName, a.ifacePath)
}

func (a *Adapter) call(method string, args ...any) error {
	return a.iface().Call(p2pIface+"."+method, 0, args...).Err
}

// SetupInterface attaches to (or creates) the named management
// interface and starts translating its signals.
func (a *Adapter) SetupInterface(name string) error {
	var path dbus.ObjectPath
	err := a.root.Call(rootIface+".GetInterface", 0, name).Store(&path)
	if err != nil {
		args := map[string]any{"Ifname": name}
		if err := a.root.Call(rootIface+".CreateInterface", 0, args).Store(&path); err != nil {
			return fmt.Errorf("supplicant: create interface %s: %w", name, err)
		}
	}
	a.mu.Lock()
	a.ifacePath = path
	a.mu.Unlock()

	if err := a.bus.AddMatchSignal(
		dbus.WithMatchPathNamespace(path),
	); err != nil {
		return fmt.Errorf("supplicant: subscribe signals: %w", err)
	}
	a.bus.Signal(a.signals)
	go a.translate()
	logrus.WithFields(logrus.Fields{
		"interface": name,
		"path":      string(path),
	}).Info("supplicant interface attached")
	return nil
}

// TeardownInterface detaches from the interface, leaving it to the
// supplicant.
func (a *Adapter) TeardownInterface(name string) error {
	a.mu.Lock()
	path := a.ifacePath
	a.ifacePath = ""
	a.mu.Unlock()
	if path == "" {
		return nil
	}
	return a.bus.RemoveMatchSignal(dbus.WithMatchPathNamespace(path))
}

// DeviceAddress reads the device's own P2P address.
func (a *Adapter) DeviceAddress() (string, error) {
	variant, err := a.iface().GetProperty(p2pIface + ".DeviceAddress")
	if err != nil {
		return "", fmt.Errorf("supplicant: device address: %w", err)
	}
	raw, ok := variant.Value().([]byte)
	if !ok || len(raw) != 6 {
		return "", fmt.Errorf("supplicant: malformed device address")
	}
	return macString(raw), nil
}

func (a *Adapter) setDeviceConfig(key string, value any) error {
	cfg := map[string]dbus.Variant{key: dbus.MakeVariant(value)}
	return a.iface().Call(propsIface+".Set", 0, p2pIface, "P2PDeviceConfig", dbus.MakeVariant(cfg)).Err
}

func (a *Adapter) SetDeviceName(name string) error {
	return a.setDeviceConfig("DeviceName", name)
}

func (a *Adapter) SetSsidPostfix(postfix string) error {
	return a.setDeviceConfig("SsidPostfix", postfix)
}

// Find starts discovery. The supplicant expresses scope through the
// DiscoveryType argument and an optional frequency pin.
func (a *Adapter) Find(scan ports.ScanType, freq int, timeout time.Duration) error {
	args := map[string]dbus.Variant{
		"Timeout": dbus.MakeVariant(int32(timeout / time.Second)),
	}
	switch scan {
	case ports.ScanSocial:
		args["DiscoveryType"] = dbus.MakeVariant("social")
	case ports.ScanSingleFreq:
		args["DiscoveryType"] = dbus.MakeVariant("social")
		args["Frequency"] = dbus.MakeVariant(int32(freq))
	default:
		args["DiscoveryType"] = dbus.MakeVariant("start_with_full")
	}
	return a.call("Find", args)
}

func (a *Adapter) StopFind() error { return a.call("StopFind") }

func (a *Adapter) Flush() error        { return a.call("Flush") }
func (a *Adapter) ServiceFlush() error { return a.call("FlushService") }

// Connect starts or continues group formation. The supplicant returns
// the generated PIN for display flows, empty otherwise.
func (a *Adapter) Connect(cfg domain.ConnectConfig, joinExisting bool) (string, error) {
	args := map[string]dbus.Variant{
		"peer":       dbus.MakeVariant(a.peerPath(cfg.PeerAddress)),
		"wps_method": dbus.MakeVariant(wpsMethodString(cfg.Wps.Method)),
		"join":       dbus.MakeVariant(joinExisting),
	}
	if cfg.Wps.Pin != "" {
		args["pin"] = dbus.MakeVariant(cfg.Wps.Pin)
	}
	if cfg.GroupOwnerIntent != domain.AutoGroupOwnerIntent {
		args["go_intent"] = dbus.MakeVariant(int32(cfg.GroupOwnerIntent))
	}
	if cfg.NetID == domain.PersistentNetID {
		args["persistent"] = dbus.MakeVariant(true)
	}
	if cfg.Frequency > 0 {
		args["frequency"] = dbus.MakeVariant(int32(cfg.Frequency))
	}
	var pin string
	if err := a.iface().Call(p2pIface+".Connect", 0, args).Store(&pin); err != nil {
		return "", fmt.Errorf("supplicant: connect: %w", err)
	}
	return pin, nil
}

func (a *Adapter) CancelConnect() error { return a.call("Cancel") }

func (a *Adapter) ProvisionDiscovery(cfg domain.ConnectConfig) error {
	return a.call("ProvisionDiscoveryRequest",
		a.peerPath(cfg.PeerAddress), wpsMethodString(cfg.Wps.Method))
}

func (a *Adapter) Reject(peerAddress string) error {
	return a.call("RejectPeer", a.peerPath(peerAddress))
}

func (a *Adapter) GroupAdd(networkID int, persistent bool) error {
	args := map[string]dbus.Variant{
		"persistent": dbus.MakeVariant(persistent),
	}
	if networkID >= 0 {
		args["persistent_group_object"] = dbus.MakeVariant(a.persistentPath(networkID))
	}
	return a.call("GroupAdd", args)
}

func (a *Adapter) GroupAddWithConfig(name, passphrase string, persistent bool, freq int, peerAddress string, join bool) error {
	if join && peerAddress != "" {
		cfg := domain.ConnectConfig{
			PeerAddress: peerAddress,
			Wps:         domain.WpsInfo{Method: domain.WpsPBC},
			NetworkName: name,
			Passphrase:  passphrase,
		}
		_, err := a.Connect(cfg, true)
		return err
	}
	args := map[string]dbus.Variant{
		"ssid":       dbus.MakeVariant([]byte(name)),
		"passphrase": dbus.MakeVariant(passphrase),
		"persistent": dbus.MakeVariant(persistent),
	}
	if freq > 0 {
		args["frequency"] = dbus.MakeVariant(int32(freq))
	}
	return a.call("GroupAdd", args)
}

// GroupRemove disconnects the group through its own interface object.
func (a *Adapter) GroupRemove(iface string) error {
	a.mu.Lock()
	path, ok := a.groupPaths[iface]
	a.mu.Unlock()
	if !ok {
		// Fall back to the management interface's active group.
		return a.call("Disconnect")
	}
	return a.bus.Object(busName, path).Call(ifaceIface+".Disconnect", 0).Err
}

func (a *Adapter) SetGroupIdle(iface string, timeout time.Duration) error {
	return a.setDeviceConfig("GroupIdle", uint32(timeout/time.Second))
}

func (a *Adapter) SetPowerSave(iface string, enable bool) error {
	a.mu.Lock()
	path, ok := a.groupPaths[iface]
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.bus.Object(busName, path).
		Call(propsIface+".Set", 0, ifaceIface, "PowerSave", dbus.MakeVariant(enable)).Err
}

func (a *Adapter) wps(iface string, args map[string]dbus.Variant) (map[string]dbus.Variant, error) {
	a.mu.Lock()
	path, ok := a.groupPaths[iface]
	a.mu.Unlock()
	obj := a.iface()
	if ok {
		obj = a.bus.Object(busName, path)
	}
	var out map[string]dbus.Variant
	if err := obj.Call(wpsIface+".Start", 0, args).Store(&out); err != nil {
		return nil, fmt.Errorf("supplicant: wps start: %w", err)
	}
	return out, nil
}

func (a *Adapter) StartWpsPbc(iface, peerInterfaceAddress string) error {
	args := map[string]dbus.Variant{
		"Role": dbus.MakeVariant("registrar"),
		"Type": dbus.MakeVariant("pbc"),
	}
	if peerInterfaceAddress != "" {
		args["P2PDeviceAddress"] = dbus.MakeVariant(macBytes(peerInterfaceAddress))
	}
	_, err := a.wps(iface, args)
	return err
}

func (a *Adapter) StartWpsPinKeypad(iface, pin string) error {
	_, err := a.wps(iface, map[string]dbus.Variant{
		"Role": dbus.MakeVariant("registrar"),
		"Type": dbus.MakeVariant("pin"),
		"Pin":  dbus.MakeVariant(pin),
	})
	return err
}

func (a *Adapter) StartWpsPinDisplay(iface, peerInterfaceAddress string) (string, error) {
	args := map[string]dbus.Variant{
		"Role": dbus.MakeVariant("registrar"),
		"Type": dbus.MakeVariant("pin"),
	}
	if peerInterfaceAddress != "" {
		args["P2PDeviceAddress"] = dbus.MakeVariant(macBytes(peerInterfaceAddress))
	}
	out, err := a.wps(iface, args)
	if err != nil {
		return "", err
	}
	if v, ok := out["Pin"]; ok {
		if pin, ok := v.Value().(string); ok {
			return pin, nil
		}
	}
	return "", nil
}

func (a *Adapter) CancelWps(iface string) error {
	a.mu.Lock()
	path, ok := a.groupPaths[iface]
	a.mu.Unlock()
	obj := a.iface()
	if ok {
		obj = a.bus.Object(busName, path)
	}
	return obj.Call(wpsIface+".Cancel", 0).Err
}

func (a *Adapter) Invite(group domain.Group, peerAddress string) error {
	args := map[string]dbus.Variant{
		"peer": dbus.MakeVariant(a.peerPath(peerAddress)),
	}
	if group.IsPersistent() && group.NetworkID >= 0 {
		args["persistent_group_object"] = dbus.MakeVariant(a.persistentPath(group.NetworkID))
	}
	return a.call("Invite", args)
}

func (a *Adapter) Reinvoke(networkID int, peerAddress string, dikID int) error {
	args := map[string]dbus.Variant{
		"peer":                    dbus.MakeVariant(a.peerPath(peerAddress)),
		"persistent_group_object": dbus.MakeVariant(a.persistentPath(networkID)),
	}
	if dikID > 0 {
		args["dik_id"] = dbus.MakeVariant(int32(dikID))
	}
	return a.call("Invite", args)
}

func (a *Adapter) GroupCapability(peerAddress string) (uint8, error) {
	obj := a.bus.Object(busName, a.peerPath(peerAddress))
	variant, err := obj.GetProperty(peerIface + ".groupcapability")
	if err != nil {
		return 0, fmt.Errorf("supplicant: group capability: %w", err)
	}
	if b, ok := variant.Value().(byte); ok {
		return b, nil
	}
	return 0, fmt.Errorf("supplicant: malformed group capability")
}

// ListNetworks enumerates the supplicant's persistent group objects.
func (a *Adapter) ListNetworks() ([]domain.PersistentGroup, error) {
	variant, err := a.iface().GetProperty(p2pIface + ".PersistentGroups")
	if err != nil {
		return nil, fmt.Errorf("supplicant: persistent groups: %w", err)
	}
	paths, ok := variant.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, fmt.Errorf("supplicant: malformed persistent group list")
	}
	out := make([]domain.PersistentGroup, 0, len(paths))
	for _, p := range paths {
		pg, err := a.readPersistentGroup(p)
		if err != nil {
			logrus.WithError(err).WithField("path", string(p)).Debug("skipping unreadable profile")
			continue
		}
		out = append(out, pg)
	}
	return out, nil
}

func (a *Adapter) readPersistentGroup(path dbus.ObjectPath) (domain.PersistentGroup, error) {
	obj := a.bus.Object(busName, path)
	variant, err := obj.GetProperty(persistentIface + ".Properties")
	if err != nil {
		return domain.PersistentGroup{}, err
	}
	props, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return domain.PersistentGroup{}, fmt.Errorf("malformed profile properties")
	}
	pg := domain.PersistentGroup{NetworkID: networkIDFromPath(path)}
	if v, ok := props["ssid"]; ok {
		if s, ok := v.Value().(string); ok {
			pg.NetworkName = strings.Trim(s, "\"")
		}
	}
	if v, ok := props["bssid"]; ok {
		if s, ok := v.Value().(string); ok {
			pg.OwnerAddress = domain.NormalizeAddress(s)
		}
	}
	if v, ok := props["mode"]; ok {
		if s, ok := v.Value().(string); ok {
			pg.IsOwner = s == "3"
		}
	}
	if v, ok := props["p2p_client_list"]; ok {
		if s, ok := v.Value().(string); ok && s != "" {
			for _, c := range strings.Fields(s) {
				pg.Clients = append(pg.Clients, domain.NormalizeAddress(c))
			}
		}
	}
	return pg, nil
}

func (a *Adapter) RemoveNetwork(networkID int) error {
	return a.call("RemovePersistentGroup", a.persistentPath(networkID))
}

func (a *Adapter) SetClientList(networkID int, clients []string) error {
	obj := a.bus.Object(busName, a.persistentPath(networkID))
	props := map[string]dbus.Variant{
		"p2p_client_list": dbus.MakeVariant(strings.Join(clients, " ")),
	}
	return obj.Call(propsIface+".Set", 0, persistentIface, "Properties", dbus.MakeVariant(props)).Err
}

func (a *Adapter) SaveConfig() error {
	return a.iface().Call(ifaceIface+".SaveConfig", 0).Err
}

func (a *Adapter) ServiceAdd(entries []string) error {
	for _, e := range entries {
		args, err := serviceArgs(e)
		if err != nil {
			return err
		}
		if err := a.call("AddService", args); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) ServiceRemove(entries []string) error {
	for _, e := range entries {
		args, err := serviceArgs(e)
		if err != nil {
			return err
		}
		if err := a.call("DeleteService", args); err != nil {
			return err
		}
	}
	return nil
}

// RequestServiceDiscovery issues the aggregate TLV query and returns a
// local identifier wrapping the supplicant's reference.
func (a *Adapter) RequestServiceDiscovery(peerAddress string, query []byte) (string, error) {
	args := map[string]dbus.Variant{
		"tlv": dbus.MakeVariant(query),
	}
	if peerAddress != "" && peerAddress != "00:00:00:00:00:00" {
		args["peer_object"] = dbus.MakeVariant(a.peerPath(peerAddress))
	}
	var ref uint64
	if err := a.iface().Call(p2pIface+".ServiceDiscoveryRequest", 0, args).Store(&ref); err != nil {
		return "", fmt.Errorf("supplicant: service discovery request: %w", err)
	}
	a.mu.Lock()
	a.nextSdRef++
	id := fmt.Sprintf("sd-%d", a.nextSdRef)
	a.sdRefs[id] = ref
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) CancelServiceDiscovery(identifier string) error {
	a.mu.Lock()
	ref, ok := a.sdRefs[identifier]
	delete(a.sdRefs, identifier)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.call("ServiceDiscoveryCancelRequest", ref)
}

func (a *Adapter) usdStart(method, serviceName string, cfg domain.UsdConfig, timeout time.Duration) (int, error) {
	args := map[string]dbus.Variant{
		"srv_name": dbus.MakeVariant(serviceName),
		"ttl":      dbus.MakeVariant(int32(timeout / time.Second)),
	}
	if len(cfg.ServiceInfo) > 0 {
		args["srv_info"] = dbus.MakeVariant(cfg.ServiceInfo)
	}
	if cfg.Frequency > 0 {
		args["freq"] = dbus.MakeVariant(int32(cfg.Frequency))
	}
	if len(cfg.FrequencyList) > 0 {
		list := make([]int32, len(cfg.FrequencyList))
		for i, f := range cfg.FrequencyList {
			list[i] = int32(f)
		}
		args["freq_list"] = dbus.MakeVariant(list)
	}
	var path dbus.ObjectPath
	if err := a.iface().Call(p2pIface+"."+method, 0, args).Store(&path); err != nil {
		return 0, fmt.Errorf("supplicant: %s: %w", method, err)
	}
	a.mu.Lock()
	a.nextUsd++
	id := a.nextUsd
	a.usdSessions[id] = path
	a.mu.Unlock()
	return id, nil
}

func (a *Adapter) usdStop(method string, sessionID int) error {
	a.mu.Lock()
	path, ok := a.usdSessions[sessionID]
	delete(a.usdSessions, sessionID)
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.call(method, path)
}

func (a *Adapter) StartUsdDiscovery(cfg domain.UsdConfig, timeout time.Duration) (int, error) {
	return a.usdStart("NANSubscribe", cfg.ServiceName, cfg, timeout)
}

func (a *Adapter) StopUsdDiscovery(sessionID int) error {
	return a.usdStop("NANCancelSubscribe", sessionID)
}

func (a *Adapter) StartUsdAdvertisement(cfg domain.UsdConfig, timeout time.Duration) (int, error) {
	return a.usdStart("NANPublish", cfg.ServiceName, cfg, timeout)
}

func (a *Adapter) StopUsdAdvertisement(sessionID int) error {
	return a.usdStop("NANCancelPublish", sessionID)
}

// peerPath derives the supplicant's peer object path from a device
// address.
func (a *Adapter) peerPath(address string) dbus.ObjectPath {
	a.mu.Lock()
	base := a.ifacePath
	a.mu.Unlock()
	suffix := strings.ReplaceAll(domain.NormalizeAddress(address), ":", "")
	return dbus.ObjectPath(string(base) + "/Peers/" + suffix)
}

func (a *Adapter) persistentPath(networkID int) dbus.ObjectPath {
	a.mu.Lock()
	base := a.ifacePath
	a.mu.Unlock()
	return dbus.ObjectPath(fmt.Sprintf("%s/PersistentGroups/%d", base, networkID))
}
