package network

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostCall struct {
	kind    string
	link    lce.LinkID
	frame   []byte
	enabled bool
	err     error
}

// fakeHost records bearer events. Its methods run on the loop.
type fakeHost struct {
	calls   chan hostCall
	nextID  lce.LinkID
	bearers map[lce.LinkID]lce.Bearer
}

func newFakeHost() *fakeHost {
	return &fakeHost{calls: make(chan hostCall, 64), bearers: make(map[lce.LinkID]lce.Bearer)}
}

func (h *fakeHost) Accept(b lce.Bearer) lce.LinkID {
	h.nextID++
	h.bearers[h.nextID] = b
	h.calls <- hostCall{kind: "accept", link: h.nextID}
	return h.nextID
}

func (h *fakeHost) BearerWritable(id lce.LinkID) {
	h.calls <- hostCall{kind: "writable", link: id}
}

func (h *fakeHost) BearerClosed(id lce.LinkID, err error) {
	h.calls <- hostCall{kind: "closed", link: id, err: err}
}

func (h *fakeHost) Receive(id lce.LinkID, frame []byte) {
	h.calls <- hostCall{kind: "receive", link: id, frame: frame}
}

func (h *fakeHost) EncryptionIndication(id lce.LinkID, enabled bool) {
	h.calls <- hostCall{kind: "cipher", link: id, enabled: enabled}
}

func (h *fakeHost) PageIndication(data []byte) {
	h.calls <- hostCall{kind: "page", frame: data}
}

func (h *fakeHost) next(t *testing.T) hostCall {
	t.Helper()
	select {
	case c := <-h.calls:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for host call")
		return hostCall{}
	}
}

type node struct {
	loop *event.Loop
	host *fakeHost
	tr   *Transport
}

func startNode(t *testing.T, cfg Config) *node {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	loop := event.NewLoop(nil)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()

	n := &node{loop: loop, host: newFakeHost(), tr: NewTransport(cfg, loop, nil)}
	n.tr.SetHost(n.host)
	t.Cleanup(func() {
		_ = n.tr.Close()
		cancel()
		wg.Wait()
	})
	return n
}

// on runs fn on the node's loop
func (n *node) on(t *testing.T, fn func() error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, n.loop.Do(ctx, fn))
}

type countingStats struct {
	mu      sync.Mutex
	in, out uint64
}

func (s *countingStats) BytesReceived(n uint64) { s.mu.Lock(); s.in += n; s.mu.Unlock() }
func (s *countingStats) BytesSent(n uint64)     { s.mu.Lock(); s.out += n; s.mu.Unlock() }

func (s *countingStats) totals() (uint64, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.in, s.out
}

func TestTransport_LinkLifecycle(t *testing.T) {
	fp := startNode(t, Config{Listen: "127.0.0.1:0"})
	fpStats := &countingStats{}
	fp.tr.SetStats(fpStats)
	require.NoError(t, fp.tr.Listen())
	require.NotNil(t, fp.tr.Addr())

	pp := startNode(t, Config{FPAddress: fp.tr.Addr().String()})

	var ppBearer lce.Bearer
	pp.on(t, func() error {
		var err error
		ppBearer, err = pp.tr.Dial(1, identity.IPUI{})
		return err
	})

	assert.Equal(t, hostCall{kind: "writable", link: 1}, pp.host.next(t))
	accepted := fp.host.next(t)
	require.Equal(t, "accept", accepted.kind)

	// PP to FP
	pp.on(t, func() error { return ppBearer.Send([]byte{0x05, 0x54, 0x01}) })
	got := fp.host.next(t)
	assert.Equal(t, "receive", got.kind)
	assert.Equal(t, accepted.link, got.link)
	assert.Equal(t, []byte{0x05, 0x54, 0x01}, got.frame)

	// FP to PP
	fpBearer := fp.host.bearers[accepted.link]
	fp.on(t, func() error { return fpBearer.Send([]byte{0x85, 0x56}) })
	got = pp.host.next(t)
	assert.Equal(t, hostCall{kind: "receive", link: 1, frame: []byte{0x85, 0x56}}, got)

	// cipher switch is indicated on the far side
	fp.on(t, func() error { return fpBearer.(lce.Encrypter).SetEncryption(true) })
	assert.Equal(t, hostCall{kind: "cipher", link: 1, enabled: true}, pp.host.next(t))

	// orderly release: PP half-closes, FP sees the end of stream and
	// closes, which completes the release on the PP
	pp.on(t, func() error { return ppBearer.CloseWrite() })
	got = fp.host.next(t)
	assert.Equal(t, "closed", got.kind)
	assert.NoError(t, got.err)
	fp.on(t, func() error { return fpBearer.Close() })

	got = pp.host.next(t)
	assert.Equal(t, "closed", got.kind)
	assert.Equal(t, lce.LinkID(1), got.link)

	in, out := fpStats.totals()
	assert.Equal(t, uint64(FrameHeaderSize+3), in)
	assert.Equal(t, uint64(2*FrameHeaderSize+3), out)

	pp.on(t, func() error { return ppBearer.Close() })
	assert.ErrorIs(t, ppBearer.Send([]byte{1}), ErrBearerClosed)
	assert.Equal(t, 0, pp.tr.Bearers())
}

func TestTransport_DialFailure(t *testing.T) {
	fp := startNode(t, Config{Listen: "127.0.0.1:0"})
	require.NoError(t, fp.tr.Listen())
	addr := fp.tr.Addr().String()
	require.NoError(t, fp.tr.Close())

	pp := startNode(t, Config{FPAddress: addr, DialTimeout: time.Second})
	var b lce.Bearer
	pp.on(t, func() error {
		var err error
		b, err = pp.tr.Dial(3, identity.IPUI{})
		return err
	})

	// sending before the connection exists is refused
	assert.ErrorIs(t, b.Send([]byte{1}), ErrNotConnected)

	got := pp.host.next(t)
	assert.Equal(t, "closed", got.kind)
	assert.Equal(t, lce.LinkID(3), got.link)
	assert.Error(t, got.err)
}

func TestTransport_DialWithoutAddress(t *testing.T) {
	n := startNode(t, Config{})
	_, err := n.tr.Dial(1, identity.IPUI{})
	assert.ErrorIs(t, err, ErrNoFPAddress)
	assert.ErrorIs(t, n.tr.Page([]byte{1}), ErrNoPageAddress)
}

func TestTransport_Paging(t *testing.T) {
	pp := startNode(t, Config{PageListen: "127.0.0.1:0"})
	require.NoError(t, pp.tr.ListenPages())
	require.NotNil(t, pp.tr.PageAddr())

	fp := startNode(t, Config{PageAddress: pp.tr.PageAddr().String()})
	page := lce.EncodeShortPage(identity.TPUI(0xe1234))
	require.NoError(t, fp.tr.Page(page))

	got := pp.host.next(t)
	assert.Equal(t, "page", got.kind)
	assert.Equal(t, page, got.frame)
}

func TestTransport_ListenWithoutHost(t *testing.T) {
	tr := NewTransport(Config{Listen: "127.0.0.1:0"}, event.NewLoop(nil), nil)
	assert.ErrorIs(t, tr.Listen(), ErrNoHost)
	assert.ErrorIs(t, tr.ListenPages(), ErrNoHost)
}
