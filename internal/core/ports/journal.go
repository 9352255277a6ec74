package ports

import (
	"time"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

// ConnectionSession is one group-formation attempt as recorded in the
// session journal. A session opens when the attempt starts and must be
// closed exactly once with an end reason.
type ConnectionSession struct {
	ID          uint
	PeerAddress string
	// Flavor distinguishes fresh negotiation, reinvocation, fast
	// connection and join.
	Flavor    string
	StartedAt time.Time
	EndedAt   time.Time
	Reason    domain.FailureReason
	// Connected marks sessions that reached an established group.
	Connected bool
	GroupRole string
	Frequency int
}

// SessionJournal persists connection attempts for diagnostics. Closing
// an already-closed or unknown session is a no-op, which keeps the
// machine's failure routine idempotent.
type SessionJournal interface {
	OpenSession(s ConnectionSession) (uint, error)
	CloseSession(id uint, connected bool, reason domain.FailureReason) error
	RecentSessions(limit int) ([]ConnectionSession, error)
}

// SettingsStore persists the small set of user-visible settings that
// must survive restarts.
type SettingsStore interface {
	DeviceName() (string, bool, error)
	SaveDeviceName(name string) error
	InvitationFallbackPolicy() (waitForInvitation bool, set bool, err error)
	SaveInvitationFallbackPolicy(waitForInvitation bool) error
}
