// Package fp is the fixed part application: it keeps the portable
// registry, answers mobility management requests and switches internal
// calls between portables.
package fp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/access"
	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/clms"
	"github.com/dbehnke/dect-nwk/pkg/config"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/metrics"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/peer"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
	"github.com/dbehnke/dect-nwk/pkg/ss"
	"github.com/dbehnke/dect-nwk/pkg/web"
)

const (
	// sweepInterval is how often attached portables are checked for
	// the detach timeout and the call log is pruned
	sweepInterval = time.Minute
	// queryTimeout bounds a state query made from another goroutine
	queryTimeout = 2 * time.Second
)

var (
	// ErrNoRegistry is returned by New without a database
	ErrNoRegistry = errors.New("fp: portable registry required")
	// ErrUnknownPortable is returned for an IPUI or extension nobody has
	ErrUnknownPortable = errors.New("fp: unknown portable")
	// ErrUnknownCall is returned for a call id that is not in progress
	ErrUnknownCall = errors.New("fp: unknown call")
)

// Config holds the fixed part parameters
type Config struct {
	ARI          identity.ARI
	PLI          uint8
	LocationArea uint8
	Registration config.RegistrationConfig
	MM           mm.Config
	CC           cc.Config
	// CallRetention bounds the age of call log entries, zero keeps all
	CallRetention time.Duration
}

// ConfigFrom derives the application parameters from the daemon
// configuration. The ARI is class A.
func ConfigFrom(c *config.Config) Config {
	return Config{
		ARI:          identity.ARI{Class: identity.ARIClassA, EMC: c.FP.EMC, FPN: c.FP.FPN},
		PLI:          c.FP.PLI,
		LocationArea: c.FP.LocationArea,
		Registration: c.Registration,
		MM:           mm.Config{TimeoutScale: c.MM.TimeoutScale},
		CC:           cc.Config{ReleaseTimeout: c.CC.ReleaseTimeout},

		CallRetention: c.Database.CallRetention,
	}
}

// Broadcaster pushes state changes to dashboard clients
type Broadcaster interface {
	BroadcastPortable(kind, ipui, extension string)
	BroadcastCall(call web.CallInfo)
}

// Publisher forwards events to an MQTT broker and delivers commands
type Publisher interface {
	PublishPortable(event mqtt.PortableEvent) error
	PublishCall(event mqtt.CallEvent) error
	PublishMessage(event mqtt.MessageEvent) error
	HandleCommand(suffix string, h mqtt.CommandHandler)
}

// Options are the collaborators of the application. DB is required.
type Options struct {
	DB        *database.DB
	Metrics   *metrics.Collector
	Events    Broadcaster
	Publisher Publisher
}

// App is the fixed part application. Apart from the web.Source methods
// and Unsubscribe it must be used on the scheduler goroutine.
type App struct {
	cfg   Config
	lce   *lce.LCE
	sched event.Scheduler
	log   *logger.Logger

	mm   *mm.MM
	cc   *cc.CC
	ss   *ss.SS
	clms *clms.CLMS

	acl       *access.ACL
	portables *database.PortableRepository
	callLog   *CallLogger
	peers     *peer.PeerManager
	metrics   *metrics.Collector
	events    Broadcaster
	pub       Publisher

	// pending maps a link to the TPUI offered in LOCATE-ACCEPT
	pending map[lce.LinkID]assignment
	sweep   event.Timer

	mu       sync.RWMutex
	calls    map[uint64]*call
	nextCall uint64
}

type assignment struct {
	ipui identity.IPUI
	tpui identity.TPUI
}

// New wires the application onto an FP link control entity
func New(cfg Config, l *lce.LCE, opts Options, log *logger.Logger) (*App, error) {
	if opts.DB == nil {
		return nil, ErrNoRegistry
	}
	if log == nil {
		log = logger.Nop()
	}
	rule := cfg.Registration.ACL
	if rule == "" {
		rule = "PERMIT:ALL"
	}
	acl, err := access.ParseACL(rule)
	if err != nil {
		return nil, fmt.Errorf("registration acl: %w", err)
	}

	a := &App{
		cfg:       cfg,
		lce:       l,
		sched:     l.Scheduler(),
		log:       log.WithComponent("fp"),
		acl:       acl,
		portables: database.NewPortableRepository(opts.DB.GetDB()),
		callLog:   NewCallLogger(database.NewCallRecordRepository(opts.DB.GetDB()), log.WithComponent("calllog")),
		peers:     peer.NewPeerManager(),
		metrics:   opts.Metrics,
		events:    opts.Events,
		pub:       opts.Publisher,
		pending:   make(map[lce.LinkID]assignment),
		calls:     make(map[uint64]*call),
	}

	if a.mm, err = mm.New(l, a.mmOps(), cfg.MM, log); err != nil {
		return nil, err
	}
	ccCfg := cfg.CC
	if ccCfg.FixedIdentity == nil {
		ccCfg.FixedIdentity = &sfmt.FixedIdentity{Kind: sfmt.FixedIDARI, ARI: cfg.ARI}
	}
	if a.cc, err = cc.New(l, a.ccOps(), ccCfg, log); err != nil {
		return nil, err
	}
	if a.ss, err = ss.New(l, a.ssOps(), log); err != nil {
		return nil, err
	}
	if a.clms, err = clms.New(l, clms.Ops{VariableInd: a.variableInd}, log); err != nil {
		return nil, err
	}

	if err := a.load(); err != nil {
		return nil, err
	}
	l.SetTPUIFor(a.tpuiFor)
	l.AddObserver(a.observe)
	if a.pub != nil {
		a.registerCommands()
	}
	if cfg.Registration.DetachTimeout > 0 || cfg.CallRetention > 0 {
		a.armSweep()
	}

	a.log.Info("Fixed part ready",
		logger.String("ari", cfg.ARI.String()),
		logger.Int("portables", a.peers.Count()),
		logger.Bool("registration", cfg.Registration.Enabled))
	return a, nil
}

// load seeds the peer table from the registry. Every portable starts
// detached until it locates.
func (a *App) load() error {
	list, err := a.portables.List()
	if err != nil {
		return fmt.Errorf("loading registry: %w", err)
	}
	for i := range list {
		rec := &list[i]
		ipui, err := rec.Identity()
		if err != nil {
			a.log.Warn("Skipping registry entry",
				logger.String("ipui", rec.IPUI),
				logger.Error(err))
			continue
		}
		p := a.peers.AddPeer(ipui)
		p.SetExtension(rec.Extension)
		if rec.TPUI != 0 {
			p.SetTPUI(identity.TPUI(rec.TPUI))
		}
		if rec.Attached {
			if err := a.portables.SetAttached(rec.IPUI, false); err != nil {
				a.log.Warn("Failed to reset attach state", logger.Error(err))
			}
		}
	}
	return nil
}

// Close stops the housekeeping sweep
func (a *App) Close() {
	if a.sweep != nil {
		a.sweep.Stop()
		a.sweep = nil
	}
}

// SetEvents sets the dashboard broadcaster. It must be called before the
// scheduler runs.
func (a *App) SetEvents(b Broadcaster) {
	a.events = b
}

// Peers returns the live portable table
func (a *App) Peers() *peer.PeerManager {
	return a.peers
}

// tpuiFor is the identity a portable is paged with
func (a *App) tpuiFor(ipui identity.IPUI) identity.TPUI {
	if p := a.peers.GetPeer(ipui); p != nil {
		return p.GetTPUI()
	}
	return identity.DefaultTPUI(ipui)
}

// observe keeps the per-portable counters and link bindings current
func (a *App) observe(ev lce.Event) {
	if !ev.HasPeer {
		return
	}
	p := a.peers.GetPeer(ev.Peer)
	if p == nil {
		return
	}
	switch ev.Type {
	case lce.EventMessageIn:
		if link, ok := p.GetLink(); !ok || link != ev.Link {
			p.SetLink(ev.Link)
		}
		p.IncrementReceived()
	case lce.EventMessageOut:
		p.IncrementSent()
	case lce.EventLinkReleased:
		p.ClearLink(ev.Link)
	}
}

func (a *App) armSweep() {
	a.sweep = a.sched.AfterFunc(sweepInterval, func() {
		if a.cfg.Registration.DetachTimeout > 0 {
			for _, p := range a.peers.DetachTimedOutPeers(a.cfg.Registration.DetachTimeout) {
				a.log.Info("Portable timed out", logger.String("ipui", p.IPUI.String()))
				a.detached(p, "timeout")
			}
		}
		a.callLog.Prune(a.cfg.CallRetention, a.sched.Now())
		a.armSweep()
	})
}

type doer interface {
	Do(ctx context.Context, fn func() error) error
}

// run executes fn on the scheduler goroutine and waits for it. Schedulers
// without a loop, like the manual one in tests, run fn inline.
func (a *App) run(fn func() error) error {
	d, ok := a.sched.(doer)
	if !ok {
		return fn()
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return d.Do(ctx, fn)
}

// Portables implements web.Source
func (a *App) Portables() []peer.Snapshot {
	return a.peers.Snapshots()
}

// Links implements web.Source
func (a *App) Links() []lce.LinkInfo {
	var links []lce.LinkInfo
	err := a.run(func() error {
		links = a.lce.Links()
		return nil
	})
	if err != nil {
		a.log.Debug("Link query failed", logger.Error(err))
		return nil
	}
	return links
}

// Calls implements web.Source
func (a *App) Calls() []web.CallInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]web.CallInfo, 0, len(a.calls))
	for _, cl := range a.calls {
		out = append(out, cl.info())
	}
	sortCalls(out)
	return out
}

// Unsubscribe forgets a portable whose registry entry was deleted and
// tells it so. It is safe for concurrent use.
func (a *App) Unsubscribe(ipui string) {
	a.sched.Post(func() {
		var target *peer.Peer
		for _, p := range a.peers.GetAllPeers() {
			if p.IPUI.String() == ipui {
				target = p
				break
			}
		}
		if target == nil {
			return
		}
		a.terminate(target)
	})
}
