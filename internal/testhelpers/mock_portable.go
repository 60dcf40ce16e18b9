package testhelpers

import (
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// MockPortable is a PP link control entity attached to a MockNetwork
type MockPortable struct {
	IPUI identity.IPUI
	LCE  *lce.LCE

	events []lce.Event
}

// NewMockPortable creates a portable with ipui and attaches it to n
func NewMockPortable(n *MockNetwork, ipui identity.IPUI, log *logger.Logger) *MockPortable {
	p := &MockPortable{IPUI: ipui}
	cfg := lce.DefaultConfig()
	cfg.Mode = lce.ModePP
	cfg.LocalIPUI = ipui
	cfg.LocalTPUI = identity.DefaultTPUI(ipui)
	if log == nil {
		log = logger.Nop()
	}
	p.LCE = lce.New(cfg, n.sched, n.PPTransport(func() *lce.LCE { return p.LCE }), log)
	p.LCE.AddObserver(func(ev lce.Event) { p.events = append(p.events, ev) })
	n.AttachPP(p.LCE)
	return p
}

// Events returns the LCE events observed so far
func (p *MockPortable) Events() []lce.Event {
	return append([]lce.Event(nil), p.events...)
}

// Count returns how many events of type t were observed
func (p *MockPortable) Count(t lce.EventType) int {
	n := 0
	for _, ev := range p.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// Links returns the links of the portable
func (p *MockPortable) Links() []lce.LinkInfo {
	return p.LCE.Links()
}
