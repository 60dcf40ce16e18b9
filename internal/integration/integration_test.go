//go:build integration
// +build integration

package integration

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/clms"
	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/fp"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/metrics"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/network"
	"github.com/dbehnke/dect-nwk/pkg/peer"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
	"github.com/dbehnke/dect-nwk/pkg/web"
)

const (
	wait = 5 * time.Second
	tick = 20 * time.Millisecond
)

var ari = identity.ARI{Class: identity.ARIClassA, EMC: 0x08ae, FPN: 0x1d2e3}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "warn", Format: "text", Output: os.Stderr})
}

// runLoop runs loop until the test ends. stop runs on the loop first.
func runLoop(t *testing.T, loop *event.Loop, stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), wait)
		_ = loop.Do(stopCtx, func() error {
			stop()
			return nil
		})
		cancelStop()
		cancel()
		<-done
	})
}

// on runs fn on loop and waits for it
func on(t *testing.T, loop *event.Loop, fn func() error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	require.NoError(t, loop.Do(ctx, fn))
}

// messages collects published MQTT messages
type messages struct {
	mu   sync.Mutex
	list []mqtt.MessageEvent
}

func (m *messages) PublishPortable(mqtt.PortableEvent) error { return nil }
func (m *messages) PublishCall(mqtt.CallEvent) error         { return nil }
func (m *messages) HandleCommand(string, mqtt.CommandHandler) {}

func (m *messages) PublishMessage(ev mqtt.MessageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, ev)
	return nil
}

func (m *messages) all() []mqtt.MessageEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mqtt.MessageEvent(nil), m.list...)
}

type fixedPart struct {
	loop    *event.Loop
	tr      *network.Transport
	app     *fp.App
	db      *database.DB
	metrics *metrics.Collector
	pub     *messages
}

func startFP(t *testing.T, pageAddr string) *fixedPart {
	t.Helper()
	log := testLogger()

	db, err := database.NewDB(database.Config{Path: ":memory:"}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixedPart{
		loop:    event.NewLoop(log),
		db:      db,
		metrics: metrics.NewCollector(),
		pub:     &messages{},
	}
	f.tr = network.NewTransport(network.Config{Listen: "127.0.0.1:0", PageAddress: pageAddr}, f.loop, log)
	f.tr.SetStats(f.metrics)
	t.Cleanup(func() { _ = f.tr.Close() })

	cfg := lce.DefaultConfig()
	cfg.PartialReleaseTimeout = 200 * time.Millisecond
	cfg.PageTimeout = time.Second
	l := lce.New(cfg, f.loop, f.tr, log)
	f.tr.SetHost(l)
	l.AddObserver(f.metrics.Observe)

	f.app, err = fp.New(fp.Config{
		ARI:          ari,
		PLI:          31,
		LocationArea: 1,
		Registration: config.RegistrationConfig{
			Enabled:        true,
			ACL:            "PERMIT:ALL",
			ExtensionStart: 11,
			AssignTPUI:     true,
		},
	}, l, fp.Options{DB: db, Metrics: f.metrics, Publisher: f.pub}, log)
	require.NoError(t, err)

	require.NoError(t, f.tr.Listen())
	runLoop(t, f.loop, func() {
		f.app.Close()
		l.Shutdown()
	})
	return f
}

func (f *fixedPart) portable(ipui identity.IPUI) (peer.Snapshot, bool) {
	for _, p := range f.app.Portables() {
		if p.IPUI == ipui.String() {
			return p, true
		}
	}
	return peer.Snapshot{}, false
}

// portablePart is a handset on its own loop and transport. Its fields
// are only touched on the loop; the test reads them through get.
type portablePart struct {
	ipui identity.IPUI
	loop *event.Loop
	tr   *network.Transport
	lce  *lce.LCE
	mm   *mm.MM
	cc   *cc.CC
	clms *clms.CLMS

	mu       sync.Mutex
	attached bool
	incoming int
	active   *cc.Call
	released []sfmt.ReleaseCode
}

func startPP(t *testing.T, f *fixedPart, psn uint32, pageListen string) *portablePart {
	t.Helper()
	log := testLogger()
	p := &portablePart{
		ipui: identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: 0x08ae, PSN: psn}},
		loop: event.NewLoop(log),
	}
	p.tr = network.NewTransport(network.Config{
		FPAddress:  f.tr.Addr().String(),
		PageListen: pageListen,
	}, p.loop, log)
	t.Cleanup(func() { _ = p.tr.Close() })

	cfg := lce.DefaultConfig()
	cfg.Mode = lce.ModePP
	cfg.PartialReleaseTimeout = 200 * time.Millisecond
	cfg.LocalIPUI = p.ipui
	cfg.LocalTPUI = identity.DefaultTPUI(p.ipui)
	p.lce = lce.New(cfg, p.loop, p.tr, log)
	p.tr.SetHost(p.lce)

	var err error
	p.mm, err = mm.New(p.lce, mm.Ops{
		AccessRightsCfm: func(ep *mm.Endpoint, accept bool, res *mm.AccessRightsAccept, err error) {
			if accept {
				_ = p.mm.LocateReq(ep, &mm.LocateRequest{})
			}
		},
		LocateCfm: func(ep *mm.Endpoint, accept bool, res *mm.LocateAccept, err error) {
			p.mu.Lock()
			p.attached = accept
			p.mu.Unlock()
		},
	}, mm.Config{}, log)
	require.NoError(t, err)

	p.cc, err = cc.New(p.lce, cc.Ops{
		SetupInd: func(c *cc.Call, msg *cc.Setup) {
			p.mu.Lock()
			p.incoming++
			p.mu.Unlock()
			_ = p.cc.AlertReq(c, &cc.Progress{})
			_ = p.cc.ConnectReq(c, &cc.Progress{})
		},
		ConnectInd: func(c *cc.Call, msg *cc.Progress) { p.setActive(c) },
		ConnectCfm: p.setActive,
		ReleaseInd: func(c *cc.Call, reason sfmt.ReleaseCode) {
			p.mu.Lock()
			p.active = nil
			p.released = append(p.released, reason)
			p.mu.Unlock()
		},
		ReleaseCfm: func(c *cc.Call, err error) { p.setActive(nil) },
	}, cc.Config{FixedIdentity: &sfmt.FixedIdentity{Kind: sfmt.FixedIDARI, ARI: ari}}, log)
	require.NoError(t, err)

	p.clms, err = clms.New(p.lce, clms.Ops{}, log)
	require.NoError(t, err)

	if pageListen != "" {
		require.NoError(t, p.tr.ListenPages())
	}
	runLoop(t, p.loop, p.lce.Shutdown)
	return p
}

func (p *portablePart) setActive(c *cc.Call) {
	p.mu.Lock()
	p.active = c
	p.mu.Unlock()
}

func (p *portablePart) get(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

// attach subscribes and locates, then waits for the locate accept
func (p *portablePart) attach(t *testing.T) {
	t.Helper()
	on(t, p.loop, func() error {
		ep, err := p.mm.Endpoint(identity.IPUI{})
		if err != nil {
			return err
		}
		return p.mm.AccessRightsReq(ep, &mm.AccessRightsRequest{})
	})
	require.Eventually(t, func() bool {
		var ok bool
		p.get(func() { ok = p.attached })
		return ok
	}, wait, tick, "portable %s attached", p.ipui)
}

// reservePort returns a free loopback UDP address
func reservePort(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())
	return addr
}

func TestAttachOverTCP(t *testing.T) {
	f := startFP(t, "")
	p := startPP(t, f, 0x83d1e, "")

	p.attach(t)

	snap, ok := f.portable(p.ipui)
	require.True(t, ok)
	assert.Equal(t, peer.StateAttached.String(), snap.State)
	assert.Equal(t, "11", snap.Extension)

	// the assigned TPUI is stored on the handset
	var tpui identity.TPUI
	on(t, p.loop, func() error {
		tpui = p.lce.LocalTPUI()
		return nil
	})
	assert.Equal(t, identity.TPUIIndividualAssigned, tpui.Type())

	rec, err := database.NewPortableRepository(f.db.GetDB()).GetByIPUI(p.ipui.String())
	require.NoError(t, err)
	assert.Equal(t, "11", rec.Extension)

	assert.Equal(t, 1, f.metrics.GetAttached())
	assert.Equal(t, uint64(1), f.metrics.GetAccessRights())
	assert.NotZero(t, f.metrics.GetBytesReceived())

	// idle links are released
	require.Eventually(t, func() bool { return len(f.app.Links()) == 0 }, wait, tick)
}

func TestMessageOverTCP(t *testing.T) {
	f := startFP(t, "")
	p := startPP(t, f, 0x83d1e, "")
	p.attach(t)

	on(t, p.loop, func() error {
		return p.clms.SendVariable(identity.IPUI{}, &clms.Variable{
			Display: &sfmt.Display{Text: []byte("hello fixed part")},
		})
	})

	require.Eventually(t, func() bool { return len(f.pub.all()) == 1 }, wait, tick)
	msg := f.pub.all()[0]
	assert.Equal(t, p.ipui.String(), msg.IPUI)
	assert.Equal(t, "hello fixed part", msg.Text)
}

func TestPagedCallOverTCP(t *testing.T) {
	pageAddr := reservePort(t)
	f := startFP(t, pageAddr)
	a := startPP(t, f, 0x83d1e, "")
	b := startPP(t, f, 0x83d1f, pageAddr)
	a.attach(t)
	b.attach(t)

	// the callee has to be paged once its link is gone
	require.Eventually(t, func() bool { return len(f.app.Links()) == 0 }, wait, tick)

	var call *cc.Call
	on(t, a.loop, func() error {
		var err error
		call, err = a.cc.SetupReq(identity.IPUI{}, &cc.Setup{
			CalledPartyNumber: &sfmt.CalledPartyNumber{Address: []byte("12")},
			SendingComplete:   &sfmt.SendingComplete{},
		})
		return err
	})

	require.Eventually(t, func() bool {
		calls := f.app.Calls()
		return len(calls) == 1 && calls[0].State == fp.CallConnected
	}, wait, tick, "call connected")
	b.get(func() { assert.Equal(t, 1, b.incoming) })
	a.get(func() { assert.Equal(t, call, a.active) })

	on(t, a.loop, func() error { return a.cc.ReleaseReq(call, sfmt.ReleaseNormal) })

	require.Eventually(t, func() bool { return len(f.app.Calls()) == 0 }, wait, tick)
	require.Eventually(t, func() bool {
		var n int
		b.get(func() { n = len(b.released) })
		return n == 1
	}, wait, tick)

	recs, err := database.NewCallRecordRepository(f.db.GetDB()).GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Answered)
	assert.Equal(t, "12", recs[0].Called)
	assert.Equal(t, uint64(1), f.metrics.GetCallsAnswered())
}

func TestWebAPIOverTCP(t *testing.T) {
	f := startFP(t, "")
	p := startPP(t, f, 0x83d1e, "")
	p.attach(t)

	server := web.NewServer(config.WebConfig{Enabled: true}, testLogger(), f.app, f.db)
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/portables")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []peer.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, p.ipui.String(), list[0].IPUI)
	assert.Equal(t, "attached", list[0].State)
}
