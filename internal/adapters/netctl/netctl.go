// Package netctl implements the host-networking collaborators by
// shelling out to the standard Linux tooling: a DHCP client for the
// client role, dnsmasq for the owner role and ip(8) for routes.
package netctl

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// execCmd allows mocking exec.CommandContext in tests
var execCmd = exec.CommandContext

var (
	_ ports.IPProvisioner    = (*DHCPClient)(nil)
	_ ports.NetworkRoutes    = (*Routes)(nil)
	_ ports.TetherController = (*Tether)(nil)
)

// DHCPClient provisions a client-role group interface with udhcpc.
type DHCPClient struct {
	// BinaryPath overrides the udhcpc location, for tests.
	BinaryPath string
	Timeout    time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewDHCPClient() *DHCPClient {
	return &DHCPClient{
		BinaryPath: "udhcpc",
		Timeout:    30 * time.Second,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Start runs the DHCP client in the background and reports the lease
// through done. Link-local assignment skips the external client.
func (d *DHCPClient) Start(iface string, mode ports.ProvisionMode, done func(ports.IPProvisionResult)) error {
	if mode == ports.ProvisionLinkLocal {
		go done(ports.IPProvisionResult{
			Interface: iface,
			Success:   true,
			Address:   linkLocalAddress(iface),
		})
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	d.mu.Lock()
	if old, ok := d.cancels[iface]; ok {
		old()
	}
	d.cancels[iface] = cancel
	d.mu.Unlock()

	go func() {
		defer cancel()
		// -q quits after the first lease, -f keeps it in foreground so
		// the context can kill it.
		out, err := execCmd(ctx, d.BinaryPath, "-i", iface, "-q", "-f", "-n").CombinedOutput()
		res := ports.IPProvisionResult{Interface: iface}
		if err != nil {
			logrus.WithError(err).WithField("interface", iface).Warn("dhcp client failed")
		} else {
			res.Address, res.Gateway = parseLease(string(out))
			res.Success = res.Address != ""
		}
		d.mu.Lock()
		delete(d.cancels, iface)
		d.mu.Unlock()
		done(res)
	}()
	return nil
}

// Stop kills an in-flight DHCP client for the interface.
func (d *DHCPClient) Stop(iface string) error {
	d.mu.Lock()
	cancel, ok := d.cancels[iface]
	delete(d.cancels, iface)
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}

// parseLease extracts address and gateway from udhcpc's lease output.
func parseLease(out string) (address, gateway string) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "ip:", "lease:":
			address = strings.TrimSuffix(fields[1], ",")
		case "router:", "gateway:":
			gateway = strings.TrimSuffix(fields[1], ",")
		}
	}
	return address, gateway
}

// linkLocalAddress derives a stable 169.254 address from the interface
// MAC, per the usual P2P fallback.
func linkLocalAddress(iface string) string {
	ifc, err := net.InterfaceByName(iface)
	if err != nil || len(ifc.HardwareAddr) < 2 {
		return "169.254.1.1"
	}
	hw := ifc.HardwareAddr
	a, b := hw[len(hw)-2], hw[len(hw)-1]
	// Avoid the reserved .0 and .255 host parts.
	if b == 0 {
		b = 1
	}
	if a == 255 {
		a = 254
	}
	return fmt.Sprintf("169.254.%d.%d", a, b)
}

// Routes installs and removes interface routes with ip(8).
type Routes struct {
	BinaryPath string
}

func NewRoutes() *Routes {
	return &Routes{BinaryPath: "ip"}
}

func (r *Routes) AddInterfaceRoute(iface, address, gateway string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if gateway != "" {
		out, err := execCmd(ctx, r.BinaryPath, "route", "replace", "default", "via", gateway, "dev", iface).CombinedOutput()
		if err != nil {
			return fmt.Errorf("netctl: add route via %s: %w (%s)", gateway, err, strings.TrimSpace(string(out)))
		}
		return nil
	}
	out, err := execCmd(ctx, r.BinaryPath, "route", "replace", subnetOf(address), "dev", iface).CombinedOutput()
	if err != nil {
		return fmt.Errorf("netctl: add interface route: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (r *Routes) RemoveInterfaceRoutes(iface string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := execCmd(ctx, r.BinaryPath, "route", "flush", "dev", iface).CombinedOutput()
	if err != nil {
		return fmt.Errorf("netctl: flush routes: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// subnetOf widens an address to its /24, which is what the group's DHCP
// range occupies.
func subnetOf(address string) string {
	ip := net.ParseIP(address)
	if ip == nil {
		return address
	}
	return ip.Mask(net.CIDRMask(24, 32)).String() + "/24"
}

// Tether runs dnsmasq on an owner-role group interface.
type Tether struct {
	BinaryPath string
	// Subnet is the owner-side address block, x.y.z.1 serves as our
	// address and the DHCP range covers .50-.150.
	Subnet string

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewTether() *Tether {
	return &Tether{
		BinaryPath: "dnsmasq",
		Subnet:     "192.168.49",
		cancels:    make(map[string]context.CancelFunc),
	}
}

// StartTethering assigns the owner address and starts the DHCP server.
// ready fires once dnsmasq is up or has failed to launch.
func (t *Tether) StartTethering(iface string, ready func(ok bool)) error {
	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	if old, ok := t.cancels[iface]; ok {
		old()
	}
	t.cancels[iface] = cancel
	t.mu.Unlock()

	go func() {
		addrCtx, addrCancel := context.WithTimeout(ctx, 5*time.Second)
		defer addrCancel()
		if out, err := execCmd(addrCtx, "ip", "addr", "replace", t.Subnet+".1/24", "dev", iface).CombinedOutput(); err != nil {
			logrus.WithError(err).WithField("out", strings.TrimSpace(string(out))).Warn("owner address assignment failed")
			ready(false)
			return
		}

		cmd := execCmd(ctx, t.BinaryPath,
			"--no-daemon",
			"--interface="+iface,
			"--bind-interfaces",
			"--dhcp-range="+t.Subnet+".50,"+t.Subnet+".150,12h",
			"--port=0",
		)
		if err := cmd.Start(); err != nil {
			logrus.WithError(err).Warn("dnsmasq launch failed")
			ready(false)
			return
		}
		ready(true)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Warn("dnsmasq exited")
		}
	}()
	return nil
}

func (t *Tether) StopTethering(iface string) error {
	t.mu.Lock()
	cancel, ok := t.cancels[iface]
	delete(t.cancels, iface)
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return nil
}
