package p2p

import (
	"time"

	"github.com/sirupsen/logrus"
)

// timerKind identifies the machine's timers. Each kind carries its own
// monotonically incrementing generation: a firing whose generation does
// not match the current one is stale and ignored. This replaces
// unreliable cancel-a-pending-timer semantics.
type timerKind int

const (
	timerGroupCreate timerKind = iota
	timerDisable
	timerIdleShutdown
	timerRejectWait
)

func (k timerKind) String() string {
	switch k {
	case timerGroupCreate:
		return "group_create"
	case timerDisable:
		return "disable"
	case timerIdleShutdown:
		return "idle_shutdown"
	case timerRejectWait:
		return "reject_wait"
	}
	return "unknown"
}

// armTimer schedules a firing for the kind, invalidating any earlier
// arm of the same kind.
func (m *Machine) armTimer(k timerKind, d time.Duration) {
	m.timerGen[k]++
	gen := m.timerGen[k]
	time.AfterFunc(d, func() {
		m.post(message{kind: msgTimerFired, timer: k, generation: gen})
	})
}

// cancelTimer invalidates any pending firing of the kind. The scheduled
// func may still run; the generation check drops it.
func (m *Machine) cancelTimer(k timerKind) {
	m.timerGen[k]++
}

// timerCurrent reports whether a firing's generation is still live.
func (m *Machine) timerCurrent(msg message) bool {
	if msg.generation == m.timerGen[msg.timer] {
		return true
	}
	logrus.WithFields(logrus.Fields{
		"timer":      msg.timer.String(),
		"generation": msg.generation,
		"current":    m.timerGen[msg.timer],
	}).Debug("stale timer ignored")
	return false
}
