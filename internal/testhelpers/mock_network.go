package testhelpers

import (
	"errors"
	"sync"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
)

// ErrNoFixedPart is returned when a PP dials without an attached FP
var ErrNoFixedPart = errors.New("no fixed part attached")

// MockNetwork connects one FP LCE and any number of PP LCEs in memory.
// Frames are delivered through the scheduler, never synchronously.
type MockNetwork struct {
	mu     sync.RWMutex
	sched  event.Scheduler
	fp     *lce.LCE
	pps    []*lce.LCE
	frames []MockFrame
	pages  [][]byte

	// Drop partitions the network: frames, releases and cipher
	// indications are lost while set
	Drop bool
}

// MockFrame records a frame sent on the mock network
type MockFrame struct {
	FromFP bool
	Data   []byte
}

// NewMockNetwork creates a mock network delivering on sched
func NewMockNetwork(sched event.Scheduler) *MockNetwork {
	return &MockNetwork{sched: sched}
}

// AttachFP sets the fixed part
func (n *MockNetwork) AttachFP(l *lce.LCE) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fp = l
}

// AttachPP adds a portable
func (n *MockNetwork) AttachPP(l *lce.LCE) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pps = append(n.pps, l)
}

// FPTransport returns the transport of the fixed part
func (n *MockNetwork) FPTransport() lce.Transport {
	return &fpTransport{n: n}
}

// PPTransport returns the transport of a portable. The returned
// transport dials the FP; pages reach the PP through AttachPP.
func (n *MockNetwork) PPTransport(self func() *lce.LCE) lce.Transport {
	return &ppTransport{n: n, self: self}
}

// Frames returns a copy of all frames sent so far
func (n *MockNetwork) Frames() []MockFrame {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]MockFrame, len(n.frames))
	copy(out, n.frames)
	return out
}

// Pages returns a copy of all pages broadcast so far
func (n *MockNetwork) Pages() [][]byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([][]byte, len(n.pages))
	copy(out, n.pages)
	return out
}

func (n *MockNetwork) record(fromFP bool, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.frames = append(n.frames, MockFrame{FromFP: fromFP, Data: append([]byte(nil), data...)})
}

type fpTransport struct {
	n *MockNetwork
}

// Dial fails: a fixed part reaches portables by paging
func (t *fpTransport) Dial(link lce.LinkID, peer identity.IPUI) (lce.Bearer, error) {
	return nil, errors.New("fixed part cannot dial")
}

func (t *fpTransport) Page(data []byte) error {
	t.n.mu.Lock()
	t.n.pages = append(t.n.pages, append([]byte(nil), data...))
	pps := append([]*lce.LCE(nil), t.n.pps...)
	t.n.mu.Unlock()

	for _, pp := range pps {
		pp := pp
		page := append([]byte(nil), data...)
		t.n.sched.Post(func() { pp.PageIndication(page) })
	}
	return nil
}

type ppTransport struct {
	n    *MockNetwork
	self func() *lce.LCE
}

func (t *ppTransport) Dial(link lce.LinkID, peer identity.IPUI) (lce.Bearer, error) {
	t.n.mu.RLock()
	fp := t.n.fp
	t.n.mu.RUnlock()
	if fp == nil {
		return nil, ErrNoFixedPart
	}

	pp := t.self()
	ppSide := &mockBearer{n: t.n, fromFP: false}
	fpSide := &mockBearer{n: t.n, fromFP: true}
	ppSide.remote, ppSide.remoteLink = fp, 0
	fpSide.remote, fpSide.remoteLink = pp, link
	ppSide.peer, fpSide.peer = fpSide, ppSide

	t.n.sched.Post(func() {
		ppSide.remoteLink = fp.Accept(fpSide)
		pp.BearerWritable(link)
	})
	return ppSide, nil
}

func (t *ppTransport) Page(data []byte) error {
	return errors.New("portable cannot page")
}

// mockBearer is one end of an in-memory bearer
type mockBearer struct {
	n          *MockNetwork
	fromFP     bool
	remote     *lce.LCE
	remoteLink lce.LinkID
	peer       *mockBearer
	writeShut  bool
	closed     bool
}

func (b *mockBearer) Send(frame []byte) error {
	if b.closed || b.writeShut {
		return errors.New("bearer closed")
	}
	b.n.record(b.fromFP, frame)
	data := append([]byte(nil), frame...)
	b.deliver(func() { b.remote.Receive(b.remoteLink, data) })
	return nil
}

// deliver runs fn on the scheduler unless the network is partitioned or
// the remote end is gone
func (b *mockBearer) deliver(fn func()) {
	if b.n.Drop {
		return
	}
	b.n.sched.Post(func() {
		if !b.peer.closed {
			fn()
		}
	})
}

func (b *mockBearer) CloseWrite() error {
	if b.writeShut || b.closed {
		return nil
	}
	b.writeShut = true
	b.deliver(func() { b.remote.BearerClosed(b.remoteLink, nil) })
	return nil
}

func (b *mockBearer) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.writeShut {
		return nil
	}
	b.deliver(func() { b.remote.BearerClosed(b.remoteLink, nil) })
	return nil
}

// SetEncryption switches both ends; the remote side sees an indication
func (b *mockBearer) SetEncryption(enabled bool) error {
	if b.closed {
		return errors.New("bearer closed")
	}
	b.deliver(func() { b.remote.EncryptionIndication(b.remoteLink, enabled) })
	return nil
}
