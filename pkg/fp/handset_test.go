package fp

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dbehnke/dect-nwk/internal/testhelpers"
	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/clms"
	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/metrics"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
	"github.com/dbehnke/dect-nwk/pkg/ss"
	"github.com/dbehnke/dect-nwk/pkg/web"
)

var testARI = identity.ARI{Class: identity.ARIClassA, EMC: 0x08ae, FPN: 0x1d2e3}

// recorder stands in for the dashboard hub and the MQTT publisher
type recorder struct {
	mu       sync.Mutex
	kinds    []string
	calls    []web.CallInfo
	portable []mqtt.PortableEvent
	callEvs  []mqtt.CallEvent
	messages []mqtt.MessageEvent
	commands map[string]mqtt.CommandHandler
}

func newRecorder() *recorder {
	return &recorder{commands: make(map[string]mqtt.CommandHandler)}
}

func (r *recorder) BroadcastPortable(kind, ipui, extension string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, kind)
}

func (r *recorder) BroadcastCall(call web.CallInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) PublishPortable(ev mqtt.PortableEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.portable = append(r.portable, ev)
	return nil
}

func (r *recorder) PublishCall(ev mqtt.CallEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callEvs = append(r.callEvs, ev)
	return nil
}

func (r *recorder) PublishMessage(ev mqtt.MessageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, ev)
	return nil
}

func (r *recorder) HandleCommand(suffix string, h mqtt.CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[suffix] = h
}

func (r *recorder) hasKind(kind string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// fixture is a fixed part application over a mock network
type fixture struct {
	suite   *testhelpers.IntegrationSuite
	db      *database.DB
	app     *App
	rec     *recorder
	metrics *metrics.Collector
}

func testConfig() Config {
	return Config{
		ARI:          testARI,
		PLI:          31,
		LocationArea: 1,
		Registration: config.RegistrationConfig{
			Enabled:        true,
			ACL:            "PERMIT:ALL",
			ExtensionStart: 11,
			AssignTPUI:     true,
		},
	}
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := newDetachedFixture(t)
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	f.start(t, cfg)
	return f
}

// newDetachedFixture creates the network and registry without the
// application so tests can seed the registry first
func newDetachedFixture(t *testing.T) *fixture {
	t.Helper()
	suite := testhelpers.NewIntegrationSuite(t)
	db, err := database.NewDB(database.Config{Path: ":memory:"}, suite.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	t.Cleanup(suite.Cleanup)
	return &fixture{suite: suite, db: db, rec: newRecorder(), metrics: metrics.NewCollector()}
}

func (f *fixture) start(t *testing.T, cfg Config) {
	t.Helper()
	app, err := New(cfg, f.suite.FP, Options{
		DB:        f.db,
		Metrics:   f.metrics,
		Events:    f.rec,
		Publisher: f.rec,
	}, f.suite.Logger)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	f.app = app
}

func (f *fixture) portable(t *testing.T, ipui identity.IPUI) *database.Portable {
	t.Helper()
	rec, err := database.NewPortableRepository(f.db.GetDB()).GetByIPUI(ipui.String())
	require.NoError(t, err)
	return rec
}

// handset is a portable part with its own MM, CC, CISS and CLMS entities
type handset struct {
	*testhelpers.MockPortable
	mm   *mm.MM
	cc   *cc.CC
	ss   *ss.SS
	clms *clms.CLMS

	// answer picks up incoming calls at once
	answer bool

	accessErr  []error
	locateErr  []error
	terminated int
	setupAcks  int
	incoming   []*cc.Setup
	active     []*cc.Call
	released   []sfmt.ReleaseCode
	messages   []string
}

func newHandset(t *testing.T, f *fixture, psn uint32) *handset {
	t.Helper()
	h := &handset{MockPortable: f.suite.CreatePortable(0x08ae, psn), answer: true}
	var err error
	h.mm, err = mm.New(h.LCE, mm.Ops{
		AccessRightsCfm: func(ep *mm.Endpoint, accept bool, res *mm.AccessRightsAccept, err error) {
			h.accessErr = append(h.accessErr, err)
		},
		LocateCfm: func(ep *mm.Endpoint, accept bool, res *mm.LocateAccept, err error) {
			h.locateErr = append(h.locateErr, err)
		},
		AccessRightsTerminateInd: func(ep *mm.Endpoint, req *mm.AccessRightsTerminateRequest) {
			h.terminated++
			_ = h.mm.AccessRightsTerminateRes(ep)
		},
	}, mm.Config{}, f.suite.Logger)
	require.NoError(t, err)

	h.cc, err = cc.New(h.LCE, cc.Ops{
		SetupInd: func(c *cc.Call, msg *cc.Setup) {
			h.incoming = append(h.incoming, msg)
			if !h.answer {
				return
			}
			_ = h.cc.AlertReq(c, &cc.Progress{})
			_ = h.cc.ConnectReq(c, &cc.Progress{})
		},
		SetupAckInd: func(c *cc.Call, msg *cc.Progress) { h.setupAcks++ },
		ConnectInd:  func(c *cc.Call, msg *cc.Progress) { h.active = append(h.active, c) },
		ConnectCfm:  func(c *cc.Call) { h.active = append(h.active, c) },
		ReleaseInd: func(c *cc.Call, reason sfmt.ReleaseCode) {
			h.released = append(h.released, reason)
		},
	}, cc.Config{FixedIdentity: &sfmt.FixedIdentity{Kind: sfmt.FixedIDARI, ARI: testARI}}, f.suite.Logger)
	require.NoError(t, err)

	h.ss, err = ss.New(h.LCE, ss.Ops{}, f.suite.Logger)
	require.NoError(t, err)
	h.clms, err = clms.New(h.LCE, clms.Ops{
		VariableInd: func(link lce.LinkID, msg *clms.Variable) {
			if msg.Display != nil {
				h.messages = append(h.messages, string(msg.Display.Text))
			}
		},
	}, f.suite.Logger)
	require.NoError(t, err)
	return h
}

func (h *handset) endpoint(t *testing.T) *mm.Endpoint {
	t.Helper()
	ep, err := h.mm.Endpoint(identity.IPUI{})
	require.NoError(t, err)
	return ep
}

func (h *handset) subscribe(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, h.mm.AccessRightsReq(h.endpoint(t), &mm.AccessRightsRequest{}))
	f.suite.Run()
	require.NotEmpty(t, h.accessErr)
}

func (h *handset) locate(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, h.mm.LocateReq(h.endpoint(t), &mm.LocateRequest{}))
	f.suite.Run()
	require.NotEmpty(t, h.locateErr)
}

// attach subscribes and locates
func (h *handset) attach(t *testing.T, f *fixture) {
	t.Helper()
	h.subscribe(t, f)
	require.NoError(t, h.accessErr[len(h.accessErr)-1])
	h.locate(t, f)
	require.NoError(t, h.locateErr[len(h.locateErr)-1])
}

func (h *handset) dial(t *testing.T, number string) *cc.Call {
	t.Helper()
	c, err := h.cc.SetupReq(identity.IPUI{}, &cc.Setup{
		CalledPartyNumber: &sfmt.CalledPartyNumber{Address: []byte(number)},
		SendingComplete:   &sfmt.SendingComplete{},
	})
	require.NoError(t, err)
	return c
}
