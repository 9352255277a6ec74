package supplicant

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/telemetry"
)

// translate drains the raw signal channel and forwards domain events.
// Runs until Close.
func (a *Adapter) translate() {
	for {
		select {
		case <-a.done:
			return
		case sig, ok := <-a.signals:
			if !ok {
				return
			}
			if ev := a.convert(sig); ev != nil {
				telemetry.DriverEvents.WithLabelValues(fmt.Sprintf("%T", ev)).Inc()
				select {
				case a.events <- ev:
				case <-a.done:
					return
				}
			}
		}
	}
}

func (a *Adapter) convert(sig *dbus.Signal) domain.DriverEvent {
	switch sig.Name {
	case p2pIface + ".DeviceFound":
		return a.onDeviceFound(sig)
	case p2pIface + ".DeviceFoundProperties":
		return a.onDeviceFoundProperties(sig)
	case p2pIface + ".DeviceLost":
		return a.onDeviceLost(sig)
	case p2pIface + ".FindStopped":
		return domain.FindStopped{}
	case p2pIface + ".GONegotiationRequest":
		return a.onNegotiationRequest(sig)
	case p2pIface + ".GONegotiationSuccess":
		return domain.GoNegotiationSuccess{}
	case p2pIface + ".GONegotiationFailure":
		return domain.GoNegotiationFailure{Status: dictInt(argDict(sig, 0), "status")}
	case p2pIface + ".GroupFormationFailure":
		reason, _ := argString(sig, 0)
		return domain.GroupFormationFailure{Reason: reason}
	case p2pIface + ".WpsFailed":
		reason, _ := argString(sig, 0)
		return domain.GroupFormationFailure{Reason: reason}
	case p2pIface + ".GroupStarted":
		return a.onGroupStarted(sig)
	case p2pIface + ".GroupFinished":
		return a.onGroupFinished(sig)
	case p2pIface + ".InvitationReceived":
		return a.onInvitationReceived(sig)
	case p2pIface + ".InvitationResult":
		props := argDict(sig, 0)
		return domain.InvitationResult{
			Status: dictInt(props, "status"),
			Bssid:  dictMac(props, "BSSID"),
		}
	case p2pIface + ".ProvisionDiscoveryRequestDisplayPin":
		// Peer asks us to display; pin arrives as second argument.
		pin, _ := argString(sig, 1)
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsDisplay,
			Pin:         pin,
			IsRequest:   true,
		}
	case p2pIface + ".ProvisionDiscoveryResponseDisplayPin":
		pin, _ := argString(sig, 1)
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsDisplay,
			Pin:         pin,
		}
	case p2pIface + ".ProvisionDiscoveryRequestEnterPin":
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsKeypad,
			IsRequest:   true,
		}
	case p2pIface + ".ProvisionDiscoveryResponseEnterPin":
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsKeypad,
		}
	case p2pIface + ".ProvisionDiscoveryPBCRequest":
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsPBC,
			IsRequest:   true,
		}
	case p2pIface + ".ProvisionDiscoveryPBCResponse":
		return domain.ProvisionDiscoveryResponse{
			PeerAddress: a.peerAddress(sig, 0),
			Method:      domain.WpsPBC,
		}
	case p2pIface + ".ProvisionDiscoveryFailure":
		status := 0
		if len(sig.Body) > 1 {
			if v, ok := sig.Body[1].(int32); ok {
				status = int(v)
			}
		}
		return domain.ProvisionDiscoveryFailure{
			PeerAddress: a.peerAddress(sig, 0),
			Status:      status,
		}
	case p2pIface + ".ServiceDiscoveryResponse":
		return a.onServiceDiscoveryResponse(sig)
	case p2pIface + ".NANDiscoveryResult":
		return a.onUsdDiscoveryResult(sig)
	case p2pIface + ".NANPublishTerminated":
		return a.onUsdTerminated(sig, true)
	case p2pIface + ".NANSubscribeTerminated":
		return a.onUsdTerminated(sig, false)
	case ifaceIface + ".StaAuthorized":
		addr, _ := argString(sig, 0)
		return domain.StationConnected{
			InterfaceAddress: domain.NormalizeAddress(addr),
			DeviceAddress:    a.stationDeviceAddress(addr),
		}
	case ifaceIface + ".StaDeauthorized":
		addr, _ := argString(sig, 0)
		return domain.StationDisconnected{
			InterfaceAddress: domain.NormalizeAddress(addr),
			DeviceAddress:    a.stationDeviceAddress(addr),
		}
	case propsIface + ".PropertiesChanged":
		return a.onPropertiesChanged(sig)
	}
	return nil
}

func (a *Adapter) onDeviceFound(sig *dbus.Signal) domain.DriverEvent {
	path, ok := argPath(sig, 0)
	if !ok {
		return nil
	}
	peer, err := a.readPeer(path)
	if err != nil {
		logrus.WithError(err).WithField("path", string(path)).Debug("peer vanished before read")
		return nil
	}
	a.mu.Lock()
	a.peerAddrs[path] = peer.Address
	a.mu.Unlock()
	return domain.PeerFound{Peer: peer}
}

func (a *Adapter) onDeviceFoundProperties(sig *dbus.Signal) domain.DriverEvent {
	path, ok := argPath(sig, 0)
	if !ok {
		return nil
	}
	peer := peerFromProps(argDict(sig, 1))
	if peer.Address == "" {
		return nil
	}
	a.mu.Lock()
	a.peerAddrs[path] = peer.Address
	a.mu.Unlock()
	return domain.PeerFound{Peer: peer}
}

func (a *Adapter) onDeviceLost(sig *dbus.Signal) domain.DriverEvent {
	path, ok := argPath(sig, 0)
	if !ok {
		return nil
	}
	a.mu.Lock()
	addr, known := a.peerAddrs[path]
	delete(a.peerAddrs, path)
	a.mu.Unlock()
	if !known {
		// Last path segment is the address without separators.
		addr = addressFromPath(path)
	}
	if addr == "" {
		return nil
	}
	return domain.PeerLost{Address: addr}
}

func (a *Adapter) onNegotiationRequest(sig *dbus.Signal) domain.DriverEvent {
	source := a.peerAddress(sig, 0)
	if source == "" {
		return nil
	}
	// dev_passwd_id tells us which side holds the PIN; translate to the
	// method the local side must run.
	method := domain.WpsPBC
	if len(sig.Body) > 1 {
		if id, ok := sig.Body[1].(uint16); ok {
			switch id {
			case 1: // peer entered a PIN from our label/display
				method = domain.WpsDisplay
			case 5: // peer will display, we type
				method = domain.WpsKeypad
			}
		}
	}
	return domain.GoNegotiationRequest{SourceAddress: source, Method: method}
}

func (a *Adapter) onGroupStarted(sig *dbus.Signal) domain.DriverEvent {
	props := argDict(sig, 0)
	group := domain.Group{NetworkID: domain.TemporaryNetID}
	if v, ok := props["role"]; ok {
		if s, ok := v.Value().(string); ok {
			group.IsOwner = s == "GO"
		}
	}
	var ifacePath dbus.ObjectPath
	if v, ok := props["interface_object"]; ok {
		ifacePath, _ = v.Value().(dbus.ObjectPath)
	}
	if ifacePath != "" {
		obj := a.bus.Object(busName, ifacePath)
		if v, err := obj.GetProperty(ifaceIface + ".Ifname"); err == nil {
			if s, ok := v.Value().(string); ok {
				group.Interface = s
			}
		}
	}
	if v, ok := props["persistent_group_object"]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			group.NetworkID = networkIDFromPath(p)
		}
	}
	var groupPath dbus.ObjectPath
	if v, ok := props["group_object"]; ok {
		groupPath, _ = v.Value().(dbus.ObjectPath)
	}
	if groupPath != "" {
		obj := a.bus.Object(busName, groupPath)
		if v, err := obj.GetProperty(groupIface + ".SSID"); err == nil {
			if raw, ok := v.Value().([]byte); ok {
				group.NetworkName = string(raw)
			}
		}
		if v, err := obj.GetProperty(groupIface + ".Passphrase"); err == nil {
			if s, ok := v.Value().(string); ok {
				group.Passphrase = s
			}
		}
		if v, err := obj.GetProperty(groupIface + ".Frequency"); err == nil {
			switch f := v.Value().(type) {
			case uint16:
				group.Frequency = int(f)
			case int32:
				group.Frequency = int(f)
			}
		}
		if v, err := obj.GetProperty(groupIface + ".BSSID"); err == nil {
			if raw, ok := v.Value().([]byte); ok && len(raw) == 6 {
				group.Owner.InterfaceAddress = macString(raw)
			}
		}
	}
	if group.Interface != "" {
		a.mu.Lock()
		a.groupPaths[group.Interface] = ifacePath
		a.mu.Unlock()
	}
	return domain.GroupStarted{Group: group}
}

func (a *Adapter) onGroupFinished(sig *dbus.Signal) domain.DriverEvent {
	props := argDict(sig, 0)
	ev := domain.GroupRemoved{}
	if v, ok := props["role"]; ok {
		if s, ok := v.Value().(string); ok {
			ev.IsOwner = s == "GO"
		}
	}
	if v, ok := props["interface_object"]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			a.mu.Lock()
			for name, gp := range a.groupPaths {
				if gp == p {
					ev.Interface = name
					delete(a.groupPaths, name)
					break
				}
			}
			a.mu.Unlock()
		}
	}
	return ev
}

func (a *Adapter) onInvitationReceived(sig *dbus.Signal) domain.DriverEvent {
	props := argDict(sig, 0)
	ev := domain.InvitationReceived{
		SourceAddress: dictMac(props, "sa"),
		OwnerAddress:  dictMac(props, "go_dev_addr"),
		Bssid:         dictMac(props, "bssid"),
		NetworkID:     domain.TemporaryNetID,
	}
	if v, ok := props["persistent_id"]; ok {
		if id, ok := v.Value().(int32); ok {
			ev.NetworkID = int(id)
			ev.Persistent = true
		}
	}
	if ev.SourceAddress == "" && ev.OwnerAddress == "" {
		return nil
	}
	return ev
}

func (a *Adapter) onServiceDiscoveryResponse(sig *dbus.Signal) domain.DriverEvent {
	props := argDict(sig, 0)
	ev := domain.ServiceDiscoveryResponse{}
	if v, ok := props["peer_object"]; ok {
		if p, ok := v.Value().(dbus.ObjectPath); ok {
			a.mu.Lock()
			addr, known := a.peerAddrs[p]
			a.mu.Unlock()
			if !known {
				addr = addressFromPath(p)
			}
			ev.SourceAddress = addr
		}
	}
	if v, ok := props["update_indicator"]; ok {
		if u, ok := v.Value().(uint16); ok {
			ev.UpdateIndicator = int(u)
		}
	}
	if v, ok := props["tlvs"]; ok {
		if raw, ok := v.Value().([]byte); ok {
			ev.Responses = parseServiceTlvs(raw)
		}
	}
	return ev
}

func (a *Adapter) onUsdDiscoveryResult(sig *dbus.Signal) domain.DriverEvent {
	props := argDict(sig, 0)
	ev := domain.UsdServiceDiscovered{
		SessionID:     a.usdSessionFor(props, "subscribe_id"),
		PeerSessionID: dictInt(props, "peer_publish_id"),
		PeerAddress:   dictMac(props, "peer_addr"),
	}
	if v, ok := props["ssi"]; ok {
		if raw, ok := v.Value().([]byte); ok {
			ev.ServiceInfo = raw
		}
	}
	if ev.SessionID == 0 {
		return nil
	}
	return ev
}

func (a *Adapter) onUsdTerminated(sig *dbus.Signal, advertisement bool) domain.DriverEvent {
	props := argDict(sig, 0)
	key := "subscribe_id"
	if advertisement {
		key = "publish_id"
	}
	id := a.usdSessionFor(props, key)
	if id == 0 {
		return nil
	}
	a.mu.Lock()
	delete(a.usdSessions, id)
	a.mu.Unlock()
	return domain.UsdSessionTerminated{
		SessionID:     id,
		Reason:        dictInt(props, "reason"),
		Advertisement: advertisement,
	}
}

// usdSessionFor maps the supplicant's publish/subscribe id, carried as
// the trailing path element of the session object, back to our id.
func (a *Adapter) usdSessionFor(props map[string]dbus.Variant, key string) int {
	v, ok := props[key]
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	switch val := v.Value().(type) {
	case dbus.ObjectPath:
		for id, p := range a.usdSessions {
			if p == val {
				return id
			}
		}
	case int32:
		for id, p := range a.usdSessions {
			if networkIDFromPath(p) == int(val) {
				return id
			}
		}
	}
	return 0
}

// onPropertiesChanged surfaces group frequency moves; everything else on
// the properties interface is noise for us.
func (a *Adapter) onPropertiesChanged(sig *dbus.Signal) domain.DriverEvent {
	if len(sig.Body) < 2 {
		return nil
	}
	iface, ok := sig.Body[0].(string)
	if !ok || iface != groupIface {
		return nil
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	v, ok := changed["Frequency"]
	if !ok {
		return nil
	}
	freq := 0
	switch f := v.Value().(type) {
	case uint16:
		freq = int(f)
	case int32:
		freq = int(f)
	}
	if freq == 0 {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, gp := range a.groupPaths {
		if strings.HasPrefix(string(sig.Path), string(gp)) {
			return domain.FrequencyChanged{Interface: name, Frequency: freq}
		}
	}
	return nil
}

// readPeer pulls the full property set of a peer object.
func (a *Adapter) readPeer(path dbus.ObjectPath) (domain.Peer, error) {
	obj := a.bus.Object(busName, path)
	var props map[string]dbus.Variant
	if err := obj.Call(propsIface+".GetAll", 0, peerIface).Store(&props); err != nil {
		return domain.Peer{}, fmt.Errorf("peer properties: %w", err)
	}
	peer := peerFromProps(props)
	if peer.Address == "" {
		return domain.Peer{}, fmt.Errorf("peer without device address")
	}
	return peer, nil
}

func peerFromProps(props map[string]dbus.Variant) domain.Peer {
	peer := domain.Peer{Status: domain.PeerAvailable}
	peer.Address = dictMac(props, "DeviceAddress")
	if v, ok := props["DeviceName"]; ok {
		if s, ok := v.Value().(string); ok {
			peer.Name = s
		}
	}
	if v, ok := props["PrimaryDeviceType"]; ok {
		if raw, ok := v.Value().([]byte); ok && len(raw) == 8 {
			peer.PrimaryDeviceType = fmt.Sprintf("%d-%08X-%d",
				binary.BigEndian.Uint16(raw[0:2]),
				binary.BigEndian.Uint32(raw[2:6]),
				binary.BigEndian.Uint16(raw[6:8]))
		}
	}
	if v, ok := props["config_method"]; ok {
		if m, ok := v.Value().(uint16); ok {
			peer.WpsConfigMethods = m
		}
	}
	if v, ok := props["devicecapability"]; ok {
		if b, ok := v.Value().(byte); ok {
			peer.DeviceCapability = b
		}
	}
	if v, ok := props["groupcapability"]; ok {
		if b, ok := v.Value().(byte); ok {
			peer.GroupCapability = b
			peer.GroupCapabilityKnown = true
		}
	}
	if v, ok := props["IEs"]; ok {
		if raw, ok := v.Value().([]byte); ok && len(raw) > 0 {
			peer.WfdInfo = raw
		}
	}
	return peer
}

// stationDeviceAddress resolves a station's device address from the
// cached peer table, falling back to the interface address.
func (a *Adapter) stationDeviceAddress(ifaceAddr string) string {
	norm := domain.NormalizeAddress(ifaceAddr)
	suffix := strings.ReplaceAll(norm, ":", "")
	a.mu.Lock()
	defer a.mu.Unlock()
	for p, addr := range a.peerAddrs {
		if strings.HasSuffix(string(p), suffix) {
			return addr
		}
	}
	return norm
}

func (a *Adapter) peerAddress(sig *dbus.Signal, idx int) string {
	path, ok := argPath(sig, idx)
	if !ok {
		return ""
	}
	a.mu.Lock()
	addr, known := a.peerAddrs[path]
	a.mu.Unlock()
	if known {
		return addr
	}
	return addressFromPath(path)
}

// parseServiceTlvs splits an aggregate response blob into per-record
// responses: little-endian length, protocol, transaction id, status,
// then data.
func parseServiceTlvs(raw []byte) []domain.ServiceResponse {
	var out []domain.ServiceResponse
	for len(raw) >= 2 {
		length := int(binary.LittleEndian.Uint16(raw[0:2]))
		raw = raw[2:]
		if length < 3 || length > len(raw) {
			break
		}
		rec := raw[:length]
		raw = raw[length:]
		out = append(out, domain.ServiceResponse{
			Protocol:      int(rec[0]),
			TransactionID: rec[1],
			Status:        int(rec[2]),
			Data:          append([]byte(nil), rec[3:]...),
		})
	}
	return out
}

func argPath(sig *dbus.Signal, idx int) (dbus.ObjectPath, bool) {
	if len(sig.Body) <= idx {
		return "", false
	}
	p, ok := sig.Body[idx].(dbus.ObjectPath)
	return p, ok
}

func argString(sig *dbus.Signal, idx int) (string, bool) {
	if len(sig.Body) <= idx {
		return "", false
	}
	s, ok := sig.Body[idx].(string)
	return s, ok
}

func argDict(sig *dbus.Signal, idx int) map[string]dbus.Variant {
	if len(sig.Body) <= idx {
		return nil
	}
	d, ok := sig.Body[idx].(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	return d
}

func dictInt(props map[string]dbus.Variant, key string) int {
	v, ok := props[key]
	if !ok {
		return 0
	}
	switch n := v.Value().(type) {
	case int32:
		return int(n)
	case uint16:
		return int(n)
	case byte:
		return int(n)
	}
	return 0
}

func dictMac(props map[string]dbus.Variant, key string) string {
	v, ok := props[key]
	if !ok {
		return ""
	}
	switch val := v.Value().(type) {
	case []byte:
		if len(val) == 6 {
			return macString(val)
		}
	case string:
		return domain.NormalizeAddress(val)
	}
	return ""
}

func macString(raw []byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		raw[0], raw[1], raw[2], raw[3], raw[4], raw[5])
}

func macBytes(addr string) []byte {
	parts := strings.Split(domain.NormalizeAddress(addr), ":")
	if len(parts) != 6 {
		return nil
	}
	out := make([]byte, 6)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return nil
		}
		out[i] = byte(n)
	}
	return out
}

// addressFromPath recovers a device address from a peer object path,
// whose last segment is the address without separators.
func addressFromPath(path dbus.ObjectPath) string {
	segs := strings.Split(string(path), "/")
	last := segs[len(segs)-1]
	if len(last) != 12 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(last[i : i+2])
	}
	return strings.ToLower(b.String())
}

// networkIDFromPath extracts the numeric trailing element of a
// persistent group object path.
func networkIDFromPath(path dbus.ObjectPath) int {
	segs := strings.Split(string(path), "/")
	n, err := strconv.Atoi(segs[len(segs)-1])
	if err != nil {
		return domain.TemporaryNetID
	}
	return n
}

func wpsMethodString(m domain.WpsMethod) string {
	switch m {
	case domain.WpsDisplay:
		return "display"
	case domain.WpsKeypad:
		return "keypad"
	case domain.WpsLabel:
		return "label"
	}
	return "pbc"
}

// serviceArgs translates a driver-format service entry string
// ("bonjour <query-hex> <response-hex>" or "upnp <version> <service>")
// into AddService/DeleteService arguments.
func serviceArgs(entry string) (map[string]dbus.Variant, error) {
	fields := strings.Fields(entry)
	if len(fields) < 3 {
		return nil, fmt.Errorf("supplicant: malformed service entry %q", entry)
	}
	switch fields[0] {
	case "bonjour":
		query, err := hexBytes(fields[1])
		if err != nil {
			return nil, fmt.Errorf("supplicant: service entry query: %w", err)
		}
		resp, err := hexBytes(fields[2])
		if err != nil {
			return nil, fmt.Errorf("supplicant: service entry response: %w", err)
		}
		return map[string]dbus.Variant{
			"service_type": dbus.MakeVariant("bonjour"),
			"query":        dbus.MakeVariant(query),
			"response":     dbus.MakeVariant(resp),
		}, nil
	case "upnp":
		version, err := strconv.ParseInt(fields[1], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("supplicant: service entry version: %w", err)
		}
		return map[string]dbus.Variant{
			"service_type": dbus.MakeVariant("upnp"),
			"version":      dbus.MakeVariant(int32(version)),
			"service":      dbus.MakeVariant(strings.Join(fields[2:], " ")),
		}, nil
	}
	return nil, fmt.Errorf("supplicant: unknown service type %q", fields[0])
}

func hexBytes(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		n, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i/2] = byte(n)
	}
	return out, nil
}
