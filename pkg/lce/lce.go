package lce

import (
	"errors"
	"sort"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// Mode selects whether the LCE acts as fixed part or portable part
type Mode uint8

const (
	ModeFP Mode = iota
	ModePP
)

func (m Mode) String() string {
	if m == ModeFP {
		return "FP"
	}
	return "PP"
}

// ProtocolHandler receives the messages of one protocol discriminator
type ProtocolHandler interface {
	// Open is called for a message that matches no transaction. ta is
	// a synthetic responder-role transaction; the protocol confirms it
	// with ConfirmTransaction or answers with a rejection.
	Open(ta *Transaction, mt uint8, body []byte)
	// Receive is called for messages of an existing transaction
	Receive(ta *Transaction, mt uint8, body []byte)
	// Shutdown is called when the link carrying ta goes away
	Shutdown(ta *Transaction)
}

// EncryptionIndicator is implemented by protocols interested in cipher
// state changes of a link
type EncryptionIndicator interface {
	EncryptionIndication(link LinkID, enabled bool)
}

// Rebinder is implemented by protocols keeping per-link state. Rebind is
// called after the transactions of a paging link were moved onto the
// link that answered the page.
type Rebinder interface {
	Rebind(from, to LinkID)
}

// Config holds LCE parameters
type Config struct {
	Mode                  Mode
	MaxQueue              int
	ReleaseTimeout        time.Duration
	PartialReleaseTimeout time.Duration
	PageTimeout           time.Duration
	PageRetries           int

	// LocalIPUI and LocalTPUI identify the PP in PP mode
	LocalIPUI identity.IPUI
	LocalTPUI identity.TPUI

	// TPUIFor returns the TPUI to page a portable with in FP mode.
	// The default individual TPUI is used when nil.
	TPUIFor func(identity.IPUI) identity.TPUI
}

// DefaultConfig returns the default LCE parameters
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeFP,
		MaxQueue:              16,
		ReleaseTimeout:        5 * time.Second,
		PartialReleaseTimeout: 2 * time.Second,
		PageTimeout:           3 * time.Second,
		PageRetries:           3,
	}
}

type protocol struct {
	pd      PD
	maxTV   uint8
	handler ProtocolHandler
}

var errShutdown = errors.New("lce shutdown")

// LCE is the link control entity. All methods must be called on the
// scheduler goroutine.
type LCE struct {
	cfg       Config
	sched     event.Scheduler
	transport Transport
	codec     *sfmt.Codec
	log       *logger.Logger

	protocols map[PD]*protocol
	links     map[LinkID]*DataLink
	observers []Observer
	nextLink  LinkID
	nextTA    uint64
}

// New creates an LCE
func New(cfg Config, sched event.Scheduler, transport Transport, log *logger.Logger) *LCE {
	def := DefaultConfig()
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = def.MaxQueue
	}
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = def.ReleaseTimeout
	}
	if cfg.PartialReleaseTimeout <= 0 {
		cfg.PartialReleaseTimeout = def.PartialReleaseTimeout
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = def.PageTimeout
	}
	if cfg.PageRetries < 0 {
		cfg.PageRetries = def.PageRetries
	}
	if log == nil {
		log = logger.Nop()
	}

	return &LCE{
		cfg:       cfg,
		sched:     sched,
		transport: transport,
		codec:     sfmt.NewCodec(log),
		log:       log.WithComponent("lce"),
		protocols: make(map[PD]*protocol),
		links:     make(map[LinkID]*DataLink),
	}
}

// Mode returns whether this is an FP or PP
func (l *LCE) Mode() Mode {
	return l.cfg.Mode
}

// Scheduler returns the scheduler protocols arm their timers on
func (l *LCE) Scheduler() event.Scheduler {
	return l.sched
}

// AddObserver registers an event observer
func (l *LCE) AddObserver(o Observer) {
	l.observers = append(l.observers, o)
}

func (l *LCE) emit(ev Event) {
	if len(l.observers) == 0 {
		return
	}
	ev.Time = l.sched.Now()
	if dl, ok := l.links[ev.Link]; ok && dl.HasPeer {
		ev.Peer, ev.HasPeer = dl.Peer, true
	}
	for _, o := range l.observers {
		o(ev)
	}
}

// txDir and rxDir are the S-Format directions of sent and received messages
func (l *LCE) txDir() sfmt.Direction {
	if l.cfg.Mode == ModeFP {
		return sfmt.DirFPtoPP
	}
	return sfmt.DirPPtoFP
}

func (l *LCE) rxDir() sfmt.Direction {
	if l.cfg.Mode == ModeFP {
		return sfmt.DirPPtoFP
	}
	return sfmt.DirFPtoPP
}

// Parse decodes a received message body
func (l *LCE) Parse(desc *sfmt.MsgDesc, msg sfmt.Message, body []byte) error {
	return l.codec.Parse(desc, msg, body, l.rxDir())
}

// RegisterProtocol installs the handler for pd. maxTV bounds the
// transaction values allocated for the protocol; zero selects the maximum.
func (l *LCE) RegisterProtocol(pd PD, maxTV uint8, h ProtocolHandler) error {
	if _, ok := l.protocols[pd]; ok {
		return ErrProtocolRegistered
	}
	if maxTV > MaxTV {
		return ErrInvalidTransactionValue
	}
	if maxTV == 0 {
		maxTV = MaxTV
	}
	l.protocols[pd] = &protocol{pd: pd, maxTV: maxTV, handler: h}
	l.log.Debug("Protocol registered",
		logger.String("pd", pd.String()),
		logger.Int("max_tv", int(maxTV)))
	return nil
}

func (l *LCE) newLink() *DataLink {
	l.nextLink++
	dl := newDataLink(l.nextLink, l.sched.Now())
	l.links[dl.ID] = dl
	return dl
}

func (l *LCE) nextID() uint64 {
	l.nextTA++
	return l.nextTA
}

// Connect starts an outbound link to peer
func (l *LCE) Connect(peer identity.IPUI) (LinkID, error) {
	dl := l.newLink()
	dl.State = LinkEstablishPending
	if l.cfg.Mode == ModeFP {
		dl.Peer, dl.HasPeer = peer, true
	}

	b, err := l.transport.Dial(dl.ID, peer)
	if err != nil {
		l.destroy(dl)
		return 0, &LinkError{Link: dl.ID, Reason: ConnectFailed, Err: err}
	}
	dl.bearer = b
	l.log.Debug("Link connecting", logger.Uint32("link", uint32(dl.ID)))
	return dl.ID, nil
}

// findLink returns a usable link to peer. A PP has a single FP and any
// usable link serves.
func (l *LCE) findLink(peer identity.IPUI) *DataLink {
	var best *DataLink
	for _, dl := range l.links {
		if !dl.usable() {
			continue
		}
		if l.cfg.Mode == ModeFP && (!dl.HasPeer || dl.Peer != peer) {
			continue
		}
		if best == nil || dl.ID < best.ID {
			best = dl
		}
	}
	return best
}

// LinkFor returns a link to peer, paging the portable (FP) or connecting
// to the FP (PP) when no usable link exists.
func (l *LCE) LinkFor(peer identity.IPUI) (LinkID, error) {
	if dl := l.findLink(peer); dl != nil {
		stopTimer(dl.partialTimer)
		return dl.ID, nil
	}
	if l.cfg.Mode == ModePP {
		return l.Connect(peer)
	}
	return l.page(peer)
}

// Accept adopts an inbound bearer as an established link
func (l *LCE) Accept(b Bearer) LinkID {
	dl := l.newLink()
	dl.State = LinkEstablished
	dl.bearer = b
	l.log.Info("Link accepted", logger.Uint32("link", uint32(dl.ID)))
	l.emit(Event{Type: EventLinkEstablished, Link: dl.ID})
	l.idle(dl)
	return dl.ID
}

// BearerWritable reports that the bearer of an outbound link connected
func (l *LCE) BearerWritable(id LinkID) {
	dl, ok := l.links[id]
	if !ok || dl.State != LinkEstablishPending || dl.bearer == nil {
		return
	}
	dl.State = LinkEstablished
	l.log.Info("Link established",
		logger.Uint32("link", uint32(id)),
		logger.Int("queued", len(dl.queue)))
	l.emit(Event{Type: EventLinkEstablished, Link: id})
	l.flush(dl)
}

func (l *LCE) flush(dl *DataLink) {
	queue := dl.queue
	dl.queue = nil
	for _, frame := range queue {
		if err := l.transmit(dl, frame); err != nil {
			l.log.Warn("Flushing queued message failed",
				logger.Uint32("link", uint32(dl.ID)),
				logger.Error(err))
			return
		}
	}
}

// BearerClosed reports that the bearer of a link went away
func (l *LCE) BearerClosed(id LinkID, err error) {
	dl, ok := l.links[id]
	if !ok || dl.destroyed {
		return
	}
	switch dl.State {
	case LinkReleasePending:
		l.destroy(dl)
	case LinkEstablishPending:
		l.shutdownLink(dl, ConnectFailed, err)
	default:
		l.shutdownLink(dl, PeerReset, err)
	}
}

// SetPeer records the identity of the portable on a link
func (l *LCE) SetPeer(id LinkID, ipui identity.IPUI) error {
	dl, ok := l.links[id]
	if !ok {
		return ErrUnknownLink
	}
	if !dl.HasPeer || dl.Peer != ipui {
		l.log.Debug("Link peer identified",
			logger.Uint32("link", uint32(id)),
			logger.String("ipui", ipui.String()))
	}
	dl.Peer, dl.HasPeer = ipui, true
	return nil
}

// Peer returns the portable identity of a link
func (l *LCE) Peer(id LinkID) (identity.IPUI, bool) {
	dl, ok := l.links[id]
	if !ok {
		return identity.IPUI{}, false
	}
	return dl.Peer, dl.HasPeer
}

// SetLocalTPUI changes the TPUI a PP answers pages for
func (l *LCE) SetLocalTPUI(t identity.TPUI) {
	l.cfg.LocalTPUI = t
}

// SetTPUIFor replaces the lookup of the TPUI an FP pages a portable with
func (l *LCE) SetTPUIFor(fn func(identity.IPUI) identity.TPUI) {
	l.cfg.TPUIFor = fn
}

// LocalIPUI returns the identity of a PP
func (l *LCE) LocalIPUI() identity.IPUI {
	return l.cfg.LocalIPUI
}

// LocalTPUI returns the TPUI a PP answers pages for
func (l *LCE) LocalTPUI() identity.TPUI {
	return l.localTPUI()
}

func (l *LCE) localTPUI() identity.TPUI {
	if l.cfg.LocalTPUI != 0 {
		return l.cfg.LocalTPUI
	}
	return identity.DefaultTPUI(l.cfg.LocalIPUI)
}

// Encrypted reports the cipher state of a link
func (l *LCE) Encrypted(id LinkID) bool {
	dl, ok := l.links[id]
	return ok && dl.encrypted
}

// RequestEncryption asks the bearer to switch ciphering. Completion is
// reported through EncryptionIndication.
func (l *LCE) RequestEncryption(id LinkID, enabled bool) error {
	dl, ok := l.links[id]
	if !ok || dl.destroyed {
		return ErrUnknownLink
	}
	enc, ok := dl.bearer.(Encrypter)
	if !ok {
		return ErrEncryptionUnsupported
	}
	if err := enc.SetEncryption(enabled); err != nil {
		return err
	}
	l.sched.Post(func() { l.EncryptionIndication(id, enabled) })
	return nil
}

// EncryptionIndication reports a cipher state change of a link to every
// protocol implementing EncryptionIndicator
func (l *LCE) EncryptionIndication(id LinkID, enabled bool) {
	dl, ok := l.links[id]
	if !ok || dl.destroyed {
		return
	}
	dl.encrypted = enabled
	l.log.Debug("Encryption indication",
		logger.Uint32("link", uint32(id)),
		logger.Bool("enabled", enabled))

	for _, p := range l.sortedProtocols() {
		if ei, ok := p.handler.(EncryptionIndicator); ok {
			ei.EncryptionIndication(id, enabled)
		}
	}
}

func (l *LCE) sortedProtocols() []*protocol {
	ps := make([]*protocol, 0, len(l.protocols))
	for _, p := range l.protocols {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].pd < ps[j].pd })
	return ps
}

// OpenTransaction allocates the lowest free transaction value for pd on
// a link, in the initiator role
func (l *LCE) OpenTransaction(pd PD, id LinkID) (*Transaction, error) {
	p, ok := l.protocols[pd]
	if !ok {
		return nil, ErrUnknownProtocol
	}
	dl, ok := l.links[id]
	if !ok {
		return nil, ErrUnknownLink
	}
	if !dl.usable() {
		return nil, ErrLinkReleased
	}

	for tv := uint8(0); tv < p.maxTV; tv++ {
		key := taKey{pd: pd, tv: tv, role: RoleInitiator}
		if _, used := dl.transactions[key]; used {
			continue
		}
		ta := &Transaction{ID: l.nextID(), PD: pd, TV: tv, Role: RoleInitiator, State: TransactionOpen, Link: id}
		dl.transactions[key] = ta
		stopTimer(dl.partialTimer)
		l.emit(Event{Type: EventTransactionOpen, Link: id, PD: pd, TV: tv})
		return ta, nil
	}
	return nil, ErrNoTransactionValue
}

// ConfirmTransaction registers a transaction handed to Open
func (l *LCE) ConfirmTransaction(ta *Transaction) error {
	dl, ok := l.links[ta.Link]
	if !ok {
		return ErrUnknownLink
	}
	if !dl.usable() {
		return ErrLinkReleased
	}
	if ta.TV >= TVExtension {
		return ErrInvalidTransactionValue
	}
	key := ta.key()
	if cur, ok := dl.transactions[key]; ok && cur != ta {
		return ErrInvalidTransactionValue
	}
	dl.transactions[key] = ta
	ta.State = TransactionOpen
	stopTimer(dl.partialTimer)
	l.emit(Event{Type: EventTransactionOpen, Link: ta.Link, PD: ta.PD, TV: ta.TV})
	return nil
}

// Send builds msg and transmits it on ta, or queues it while the link
// is being established
func (l *LCE) Send(ta *Transaction, mt uint8, desc *sfmt.MsgDesc, msg sfmt.Message) error {
	dl, ok := l.links[ta.Link]
	if !ok {
		return ErrUnknownLink
	}
	if dl.shutting || dl.destroyed || dl.State == LinkReleasePending || dl.State == LinkReleased {
		return ErrLinkReleased
	}

	body, err := l.codec.Build(desc, msg, l.txDir())
	if err != nil {
		return err
	}
	buf := sfmt.NewBuffer()
	if err := buf.Append(body); err != nil {
		return err
	}
	hdr, err := buf.Push(HeaderSize)
	if err != nil {
		return err
	}
	ta.header(mt).Put(hdr)
	frame := append([]byte(nil), buf.Bytes()...)

	if err := l.transmit(dl, frame); err != nil {
		return err
	}
	l.log.Debug("TX "+desc.Name,
		logger.Uint32("link", uint32(dl.ID)),
		logger.String("ta", ta.String()),
		logger.Hex("frame", frame))
	l.emit(Event{Type: EventMessageOut, Link: dl.ID, PD: ta.PD, TV: ta.TV, MsgType: mt, Detail: desc.Name})
	return nil
}

func (l *LCE) transmit(dl *DataLink, frame []byte) error {
	switch {
	case dl.State == LinkEstablished && dl.bearer != nil:
		if err := dl.bearer.Send(frame); err != nil {
			l.sched.Post(func() { l.shutdownLink(dl, PeerReset, err) })
			return &LinkError{Link: dl.ID, Reason: PeerReset, Err: err}
		}
		return nil
	case dl.State == LinkEstablishPending:
		if len(dl.queue) >= l.cfg.MaxQueue {
			return ErrQueueFull
		}
		dl.queue = append(dl.queue, frame)
		return nil
	default:
		return ErrLinkReleased
	}
}

// CloseTransaction removes ta from its link and applies policy when it
// was the last transaction
func (l *LCE) CloseTransaction(ta *Transaction, policy ReleasePolicy) {
	if ta.State == TransactionClosed {
		return
	}
	ta.State = TransactionClosed

	dl, ok := l.links[ta.Link]
	if !ok {
		return
	}
	if cur, ok := dl.transactions[ta.key()]; ok && cur == ta {
		delete(dl.transactions, ta.key())
		l.emit(Event{Type: EventTransactionClosed, Link: dl.ID, PD: ta.PD, TV: ta.TV})
	}
	if dl.shutting || dl.destroyed || len(dl.transactions) > 0 {
		return
	}

	if policy == ReleasePartial {
		l.idle(dl)
		return
	}
	l.release(dl)
}

// idle arms the partial release timer of a link without transactions
func (l *LCE) idle(dl *DataLink) {
	if len(dl.transactions) > 0 || dl.destroyed {
		return
	}
	if dl.paging {
		// queued frames still go out once the paged portable answers
		if len(dl.queue) == 0 {
			l.destroy(dl)
		}
		return
	}
	stopTimer(dl.partialTimer)
	dl.partialTimer = l.sched.AfterFunc(l.cfg.PartialReleaseTimeout, func() {
		if len(dl.transactions) == 0 {
			l.log.Debug("Partial release timeout", logger.Uint32("link", uint32(dl.ID)))
			l.release(dl)
		}
	})
}

// ReleaseLink starts a normal release of a link
func (l *LCE) ReleaseLink(id LinkID) error {
	dl, ok := l.links[id]
	if !ok {
		return ErrUnknownLink
	}
	l.release(dl)
	return nil
}

func (l *LCE) release(dl *DataLink) {
	if dl.destroyed || dl.State == LinkReleasePending {
		return
	}
	stopTimer(dl.partialTimer)
	stopTimer(dl.pageTimer)
	if dl.bearer == nil {
		l.destroy(dl)
		return
	}

	dl.State = LinkReleasePending
	l.discardQueue(dl, "link released before establishment")
	if err := dl.bearer.CloseWrite(); err != nil {
		l.log.Debug("Bearer close write failed",
			logger.Uint32("link", uint32(dl.ID)),
			logger.Error(err))
	}
	dl.releaseTimer = l.sched.AfterFunc(l.cfg.ReleaseTimeout, func() {
		l.log.Debug("Release timeout", logger.Uint32("link", uint32(dl.ID)))
		l.destroy(dl)
	})
}

// shutdownLink shuts down every transaction of a link, MM last, and
// destroys it
func (l *LCE) shutdownLink(dl *DataLink, reason LinkErrorReason, err error) {
	if dl.shutting || dl.destroyed {
		return
	}
	dl.shutting = true
	lerr := &LinkError{Link: dl.ID, Reason: reason, Err: err}
	l.log.Info("Link shutdown",
		logger.Uint32("link", uint32(dl.ID)),
		logger.String("reason", lerr.Error()),
		logger.Int("transactions", len(dl.transactions)))

	tas := make([]*Transaction, 0, len(dl.transactions))
	for _, ta := range dl.transactions {
		tas = append(tas, ta)
	}
	sort.Slice(tas, func(i, j int) bool {
		a, b := tas[i], tas[j]
		if (a.PD == PDMM) != (b.PD == PDMM) {
			return b.PD == PDMM
		}
		if a.PD != b.PD {
			return a.PD < b.PD
		}
		if a.TV != b.TV {
			return a.TV < b.TV
		}
		return a.Role < b.Role
	})

	for _, ta := range tas {
		delete(dl.transactions, ta.key())
		ta.State = TransactionClosed
		if p, ok := l.protocols[ta.PD]; ok {
			p.handler.Shutdown(ta)
		}
		l.emit(Event{Type: EventTransactionClosed, Link: dl.ID, PD: ta.PD, TV: ta.TV, Detail: reason.String()})
	}
	l.destroy(dl)
}

// destroy frees a link. It runs exactly once per link.
func (l *LCE) destroy(dl *DataLink) {
	if dl.destroyed {
		return
	}
	dl.destroyed = true
	dl.State = LinkReleased
	dl.paging = false
	dl.stopTimers()
	l.discardQueue(dl, "link destroyed")
	if dl.bearer != nil {
		if err := dl.bearer.Close(); err != nil {
			l.log.Debug("Bearer close failed",
				logger.Uint32("link", uint32(dl.ID)),
				logger.Error(err))
		}
	}
	l.emit(Event{Type: EventLinkReleased, Link: dl.ID})
	delete(l.links, dl.ID)
	l.log.Debug("Link destroyed", logger.Uint32("link", uint32(dl.ID)))
}

// Receive dispatches a frame received on a link
func (l *LCE) Receive(id LinkID, frame []byte) {
	dl, ok := l.links[id]
	if !ok || dl.destroyed {
		l.log.Debug("Frame for unknown link dropped", logger.Uint32("link", uint32(id)))
		return
	}

	buf, err := sfmt.BufferFrom(frame)
	if err != nil {
		l.drop(dl, Header{}, err.Error())
		return
	}
	raw, err := buf.Pull(HeaderSize)
	if err != nil {
		l.drop(dl, Header{}, "short frame")
		return
	}
	h, err := ParseHeader(raw)
	if err != nil {
		l.drop(dl, h, err.Error())
		return
	}
	body := buf.Bytes()

	l.log.Debug("RX",
		logger.Uint32("link", uint32(id)),
		logger.String("pd", h.PD.String()),
		logger.Int("tv", int(h.TV)),
		logger.Hex("frame", frame))
	l.emit(Event{Type: EventMessageIn, Link: id, PD: h.PD, TV: h.TV, MsgType: h.MsgType})

	if h.PD == PDLCE {
		l.receiveLCE(dl, h, body)
		return
	}

	p, ok := l.protocols[h.PD]
	if !ok {
		l.drop(dl, h, "protocol not registered")
		return
	}

	if ta, ok := dl.transactions[taKey{pd: h.PD, tv: h.TV, role: h.LocalRole()}]; ok {
		p.handler.Receive(ta, h.MsgType, body)
		return
	}

	ta := &Transaction{
		ID:    l.nextID(),
		PD:    h.PD,
		TV:    h.TV,
		Role:  RoleResponder,
		State: TransactionPending,
		Link:  id,
	}
	p.handler.Open(ta, h.MsgType, body)
}

func (l *LCE) drop(dl *DataLink, h Header, reason string) {
	l.log.Debug("Message dropped",
		logger.Uint32("link", uint32(dl.ID)),
		logger.String("pd", h.PD.String()),
		logger.String("reason", reason))
	l.emit(Event{Type: EventDropped, Link: dl.ID, PD: h.PD, TV: h.TV, MsgType: h.MsgType, Detail: reason})
}

// discardQueue reports every frame still waiting for the bearer as
// dropped
func (l *LCE) discardQueue(dl *DataLink, reason string) {
	if len(dl.queue) > 0 {
		l.log.Warn("Discarding queued messages",
			logger.Uint32("link", uint32(dl.ID)),
			logger.Int("queued", len(dl.queue)),
			logger.String("reason", reason))
	}
	for _, frame := range dl.queue {
		h, err := ParseHeader(frame)
		if err != nil {
			continue
		}
		l.drop(dl, h, reason)
	}
	dl.queue = nil
}

// Shutdown shuts down every link
func (l *LCE) Shutdown() {
	ids := make([]LinkID, 0, len(l.links))
	for id := range l.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if dl, ok := l.links[id]; ok {
			l.shutdownLink(dl, PeerReset, errShutdown)
		}
	}
}

// Links returns a snapshot of all links
func (l *LCE) Links() []LinkInfo {
	out := make([]LinkInfo, 0, len(l.links))
	for _, dl := range l.links {
		out = append(out, dl.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
