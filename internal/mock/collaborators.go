package mock

import (
	"sync"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

// Arbiter answers interface requests with a fixed decision. A deferred
// decision is resolved later through Resolve.
type Arbiter struct {
	Decision ports.ResourceDecision

	mu       sync.Mutex
	resolved func(bool)
}

func (a *Arbiter) RequestInterface(requestor string, resolved func(bool)) ports.ResourceDecision {
	if a.Decision == ports.ResourceDeferred {
		a.mu.Lock()
		a.resolved = resolved
		a.mu.Unlock()
	}
	return a.Decision
}

// Resolve answers a previously deferred request.
func (a *Arbiter) Resolve(approved bool) {
	a.mu.Lock()
	fn := a.resolved
	a.resolved = nil
	a.mu.Unlock()
	if fn != nil {
		fn(approved)
	}
}

// IPProvisioner completes immediately with a canned lease unless Hold is
// set, in which case Release delivers it on demand.
type IPProvisioner struct {
	Address string
	Gateway string
	Fail    bool
	Hold    bool

	mu   sync.Mutex
	done func(ports.IPProvisionResult)

	stopped []string
}

func (p *IPProvisioner) Start(iface string, mode ports.ProvisionMode, done func(ports.IPProvisionResult)) error {
	res := ports.IPProvisionResult{
		Interface: iface,
		Success:   !p.Fail,
		Address:   p.Address,
		Gateway:   p.Gateway,
	}
	if p.Hold {
		p.mu.Lock()
		p.done = func(ports.IPProvisionResult) { done(res) }
		p.mu.Unlock()
		return nil
	}
	done(res)
	return nil
}

func (p *IPProvisioner) Stop(iface string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = append(p.stopped, iface)
	return nil
}

// Release delivers a held provisioning result.
func (p *IPProvisioner) Release() {
	p.mu.Lock()
	fn := p.done
	p.done = nil
	p.mu.Unlock()
	if fn != nil {
		fn(ports.IPProvisionResult{})
	}
}

// Stopped lists interfaces provisioning was stopped on.
func (p *IPProvisioner) Stopped() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.stopped))
	copy(out, p.stopped)
	return out
}

// Routes records route changes.
type Routes struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (r *Routes) AddInterfaceRoute(iface, address, gateway string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, iface)
	return nil
}

func (r *Routes) RemoveInterfaceRoutes(iface string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, iface)
	return nil
}

func (r *Routes) Added() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.added))
	copy(out, r.added)
	return out
}

func (r *Routes) Removed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.removed))
	copy(out, r.removed)
	return out
}

// Tether reports readiness immediately unless Fail is set.
type Tether struct {
	Fail bool

	mu      sync.Mutex
	stopped []string
}

func (t *Tether) StartTethering(iface string, ready func(ok bool)) error {
	ready(!t.Fail)
	return nil
}

func (t *Tether) StopTethering(iface string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = append(t.stopped, iface)
	return nil
}

func (t *Tether) Stopped() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.stopped))
	copy(out, t.stopped)
	return out
}

// Dialog auto-answers authorization requests. With Hold set the answer
// waits until Respond.
type Dialog struct {
	Accept bool
	Pin    string
	Hold   bool

	mu       sync.Mutex
	respond  func(ports.ApprovalResult)
	requests []ports.ApprovalRequest
}

func (d *Dialog) RequestApproval(req ports.ApprovalRequest, respond func(ports.ApprovalResult)) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	if d.Hold {
		d.respond = respond
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	respond(ports.ApprovalResult{Accepted: d.Accept, Pin: d.Pin})
}

// Respond answers a held request.
func (d *Dialog) Respond(res ports.ApprovalResult) {
	d.mu.Lock()
	fn := d.respond
	d.respond = nil
	d.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// Requests returns every approval request seen.
func (d *Dialog) Requests() []ports.ApprovalRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]ports.ApprovalRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

// ConflictPrompt answers the drop-infrastructure-Wi-Fi question.
type ConflictPrompt struct {
	Drop bool
	Hold bool

	mu      sync.Mutex
	respond func(bool)
	asked   int
}

func (c *ConflictPrompt) PromptDropWifi(peer domain.Peer, respond func(drop bool)) {
	c.mu.Lock()
	c.asked++
	if c.Hold {
		c.respond = respond
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	respond(c.Drop)
}

func (c *ConflictPrompt) Respond(drop bool) {
	c.mu.Lock()
	fn := c.respond
	c.respond = nil
	c.mu.Unlock()
	if fn != nil {
		fn(drop)
	}
}

func (c *ConflictPrompt) Asked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asked
}
