package mock

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lcalzada-xor/wfdirect/internal/core/domain"
)

var mockNames = []string{
	"Pixel 8", "Galaxy S24", "ThinkPad X1", "DIRECT-TV-Living", "Shield TV",
	"Deco X60", "OnePlus 12", "Chromecast", "EPSON-Printer", "Xperia 5",
}

// Scenario feeds the mock driver a population of synthetic peers so the
// daemon can be exercised end to end without hardware. Peers appear
// while discovery runs and occasionally age out.
type Scenario struct {
	drv   *Driver
	rng   *rand.Rand
	peers []domain.Peer
}

// NewScenario builds a population of count synthetic peers.
func NewScenario(drv *Driver, count int, seed int64) *Scenario {
	rng := rand.New(rand.NewSource(seed))
	s := &Scenario{drv: drv, rng: rng}
	for i := 0; i < count; i++ {
		s.peers = append(s.peers, domain.Peer{
			Address:          fmt.Sprintf("02:%02x:%02x:%02x:%02x:%02x", rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256)),
			Name:             mockNames[i%len(mockNames)],
			WpsConfigMethods: domain.WpsConfigPushbutton | domain.WpsConfigDisplay,
			DeviceCapability: domain.DeviceCapServiceDiscovery | domain.DeviceCapInvitationProcedure,
		})
	}
	return s
}

// Run emits discovery traffic until the context ends.
func (s *Scenario) Run(ctx context.Context, interval time.Duration) {
	logrus.WithField("peers", len(s.peers)).Info("mock scenario running")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.drv.FindActive() || len(s.peers) == 0 {
				continue
			}
			p := s.peers[s.rng.Intn(len(s.peers))]
			if s.rng.Intn(10) == 0 {
				s.drv.Emit(domain.PeerLost{Address: p.Address})
				continue
			}
			s.drv.Emit(domain.PeerFound{Peer: p})
		}
	}
}
