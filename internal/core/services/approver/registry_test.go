package approver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lcalzada-xor/wfdirect/internal/core/ports"
)

type fakeApprover struct {
	detachedWith []ports.DetachReason
}

func (f *fakeApprover) RequestApproval(_ ports.ApprovalRequest, _ func(ports.ApprovalResult)) {}

func (f *fakeApprover) Detached(reason ports.DetachReason) {
	f.detachedWith = append(f.detachedWith, reason)
}

func TestAttachReplacesPriorRegistration(t *testing.T) {
	r := NewRegistry()
	first := &fakeApprover{}
	second := &fakeApprover{}

	r.Attach("client-a", "AA:BB:CC:DD:EE:FF", first)
	r.Attach("client-a", "aa:bb:cc:dd:ee:ff", second)

	assert.Equal(t, []ports.DetachReason{ports.DetachReplaced}, first.detachedWith)
	assert.Equal(t, 1, r.Len())

	got, ok := r.Lookup("aa:bb:cc:dd:ee:ff")
	assert.True(t, ok)
	assert.Same(t, second, got.(*fakeApprover))
}

func TestLookupPrefersExactOverWildcard(t *testing.T) {
	r := NewRegistry()
	exact := &fakeApprover{}
	wild := &fakeApprover{}
	r.Attach("client-a", WildcardAddress, wild)
	r.Attach("client-b", "aa:bb:cc:dd:ee:01", exact)

	got, ok := r.Lookup("aa:bb:cc:dd:ee:01")
	assert.True(t, ok)
	assert.Same(t, exact, got.(*fakeApprover))

	got, ok = r.Lookup("aa:bb:cc:dd:ee:99")
	assert.True(t, ok)
	assert.Same(t, wild, got.(*fakeApprover))
}

func TestLookupWithoutRegistration(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("aa:bb:cc:dd:ee:01")
	assert.False(t, ok)
}

func TestDetachOwnerAndAddress(t *testing.T) {
	r := NewRegistry()
	a := &fakeApprover{}
	b := &fakeApprover{}
	r.Attach("client-a", "aa:bb:cc:dd:ee:01", a)
	r.Attach("client-b", "aa:bb:cc:dd:ee:01", b)

	r.DetachOwner("client-a")
	assert.Equal(t, []ports.DetachReason{ports.DetachClientGone}, a.detachedWith)
	assert.Equal(t, 1, r.Len())

	r.DetachAddress("AA:BB:CC:DD:EE:01")
	assert.Equal(t, []ports.DetachReason{ports.DetachPeerRemoved}, b.detachedWith)
	assert.Equal(t, 0, r.Len())
}

func TestDetachMissingIsFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Detach("nobody", "aa:bb:cc:dd:ee:01", ports.DetachExplicit))
}
