package testhelpers

import (
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// IntegrationSuite wires an FP and any number of PPs over a MockNetwork
// driven by a manual scheduler
type IntegrationSuite struct {
	T         *testing.T
	Logger    *logger.Logger
	Sched     *event.Manual
	Network   *MockNetwork
	FP        *lce.LCE
	Portables []*MockPortable

	fpEvents []lce.Event
}

// NewIntegrationSuite creates a suite with an FP attached
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	log := logger.Nop()
	if testing.Verbose() {
		log = logger.New(logger.Config{Level: "debug", Format: "text"})
	}

	sched := event.NewManual()
	n := NewMockNetwork(sched)
	s := &IntegrationSuite{
		T:       t,
		Logger:  log,
		Sched:   sched,
		Network: n,
	}

	cfg := lce.DefaultConfig()
	cfg.Mode = lce.ModeFP
	s.FP = lce.New(cfg, sched, n.FPTransport(), log)
	s.FP.AddObserver(func(ev lce.Event) { s.fpEvents = append(s.fpEvents, ev) })
	n.AttachFP(s.FP)
	return s
}

// CreatePortable adds a PP with the identity built from emc and psn
func (s *IntegrationSuite) CreatePortable(emc uint16, psn uint32) *MockPortable {
	ipui := identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: emc, PSN: psn}}
	p := NewMockPortable(s.Network, ipui, s.Logger)
	s.Portables = append(s.Portables, p)
	return p
}

// FPEvents returns the events observed on the FP
func (s *IntegrationSuite) FPEvents() []lce.Event {
	return append([]lce.Event(nil), s.fpEvents...)
}

// FPCount returns how many FP events of type t were observed
func (s *IntegrationSuite) FPCount(t lce.EventType) int {
	n := 0
	for _, ev := range s.fpEvents {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Run delivers everything posted so far
func (s *IntegrationSuite) Run() {
	s.Sched.Drain()
}

// Advance moves simulated time forward
func (s *IntegrationSuite) Advance(d time.Duration) {
	s.Sched.Advance(d)
}

// WaitFor advances simulated time in steps until condition holds
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	const step = 100 * time.Millisecond
	for waited := time.Duration(0); waited <= timeout; waited += step {
		s.Sched.Drain()
		if condition() {
			return true
		}
		s.Sched.Advance(step)
	}
	s.T.Logf("Timeout waiting for: %s", message)
	return false
}

// Cleanup shuts both sides down and delivers the resulting releases
func (s *IntegrationSuite) Cleanup() {
	for _, p := range s.Portables {
		p.LCE.Shutdown()
	}
	s.FP.Shutdown()
	s.Sched.Drain()
}
