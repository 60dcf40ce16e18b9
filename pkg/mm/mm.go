// Package mm implements DECT Mobility Management on top of the LCE.
//
// Every MM exchange is a procedure occupying one of the two slots of an
// endpoint. Procedures compete by priority, retransmit their last message
// once on the first initiator timeout and report every terminal outcome to
// the application exactly once.
package mm

import (
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// Config holds MM parameters
type Config struct {
	// TimeoutScale multiplies every procedure timeout; zero keeps the
	// standard values
	TimeoutScale float64
}

// Ops are the application callbacks. Nil callbacks are skipped; a nil
// indication of a responder procedure rejects the request.
type Ops struct {
	AccessRightsInd func(ep *Endpoint, req *AccessRightsRequest)
	AccessRightsCfm func(ep *Endpoint, accept bool, res *AccessRightsAccept, err error)

	AccessRightsTerminateInd func(ep *Endpoint, req *AccessRightsTerminateRequest)
	AccessRightsTerminateCfm func(ep *Endpoint, accept bool, err error)

	AuthenticateInd func(ep *Endpoint, req *AuthenticationRequest)
	AuthenticateCfm func(ep *Endpoint, accept bool, res *AuthenticationReply, err error)

	CipherInd func(ep *Endpoint, req *CipherRequest)
	CipherCfm func(ep *Endpoint, accept bool, err error)

	DetachInd func(ep *Endpoint, req *Detach)

	IdentityInd func(ep *Endpoint, req *IdentityRequest)
	IdentityCfm func(ep *Endpoint, accept bool, res *IdentityReply, err error)

	LocateInd func(ep *Endpoint, req *LocateRequest)
	LocateCfm func(ep *Endpoint, accept bool, res *LocateAccept, err error)

	TemporaryIdentityAssignInd func(ep *Endpoint, req *TemporaryIdentityAssign)
	TemporaryIdentityAssignCfm func(ep *Endpoint, accept bool, err error)

	InfoInd func(ep *Endpoint, req *InfoRequest)
	InfoCfm func(ep *Endpoint, accept bool, res *InfoAccept, err error)

	// Aborted reports the failure of a responder procedure after its
	// indication was delivered
	Aborted func(ep *Endpoint, t ProcedureType, err error)
}

// Endpoint is the MM state towards one peer, bound to the link carrying it
type Endpoint struct {
	Link lce.LinkID

	mm    *MM
	procs [2]*Procedure
}

// Peer returns the portable identity of the endpoint's link
func (ep *Endpoint) Peer() (identity.IPUI, bool) {
	return ep.mm.lce.Peer(ep.Link)
}

// Current returns the procedure type in the slot of role, or ProcNone
func (ep *Endpoint) Current(role lce.Role) ProcedureType {
	if p := ep.procs[role]; p != nil {
		return p.Type
	}
	return ProcNone
}

// Queued reports whether a responder procedure waits behind the initiator
func (ep *Endpoint) Queued() bool {
	p := ep.procs[lce.RoleResponder]
	return p != nil && p.state == procQueued
}

// MM is the mobility management entity
type MM struct {
	lce       *lce.LCE
	sched     event.Scheduler
	ops       Ops
	cfg       Config
	log       *logger.Logger
	endpoints map[lce.LinkID]*Endpoint
}

// New creates the MM entity and registers it with the LCE
func New(l *lce.LCE, ops Ops, cfg Config, log *logger.Logger) (*MM, error) {
	if log == nil {
		log = logger.Nop()
	}
	m := &MM{
		lce:       l,
		sched:     l.Scheduler(),
		ops:       ops,
		cfg:       cfg,
		log:       log.WithComponent("mm"),
		endpoints: make(map[lce.LinkID]*Endpoint),
	}
	if err := l.RegisterProtocol(lce.PDMM, 0, m); err != nil {
		return nil, err
	}
	l.AddObserver(func(ev lce.Event) {
		if ev.Type == lce.EventLinkReleased {
			delete(m.endpoints, ev.Link)
		}
	})
	return m, nil
}

// Endpoint returns the endpoint towards peer, establishing a link when
// none exists
func (m *MM) Endpoint(peer identity.IPUI) (*Endpoint, error) {
	id, err := m.lce.LinkFor(peer)
	if err != nil {
		return nil, err
	}
	return m.endpoint(id), nil
}

// EndpointFor returns the endpoint of an existing link
func (m *MM) EndpointFor(link lce.LinkID) *Endpoint {
	return m.endpoint(link)
}

func (m *MM) endpoint(link lce.LinkID) *Endpoint {
	ep, ok := m.endpoints[link]
	if !ok {
		ep = &Endpoint{Link: link, mm: m}
		m.endpoints[link] = ep
	}
	return ep
}

// gc forgets an endpoint without procedures
func (m *MM) gc(ep *Endpoint) {
	if ep.procs[lce.RoleInitiator] == nil && ep.procs[lce.RoleResponder] == nil {
		if m.endpoints[ep.Link] == ep {
			delete(m.endpoints, ep.Link)
		}
	}
}

// adopt registers ep again after gc dropped it. Applications keep the
// endpoint from a Cfm and may start the next procedure on it.
func (m *MM) adopt(ep *Endpoint) {
	if m.endpoints[ep.Link] != ep {
		m.endpoints[ep.Link] = ep
	}
}

func (m *MM) procedureFor(ta *lce.Transaction) *Procedure {
	ep, ok := m.endpoints[ta.Link]
	if !ok {
		return nil
	}
	for _, p := range ep.procs {
		if p != nil && p.ta == ta {
			return p
		}
	}
	return nil
}

func (m *MM) aborted(ep *Endpoint, t ProcedureType, err error) {
	if m.ops.Aborted != nil {
		m.ops.Aborted(ep, t, err)
	}
}

// requestType maps an unsolicited message to the procedure it starts at
// this side
func (m *MM) requestType(mt uint8) ProcedureType {
	fp := m.lce.Mode() == lce.ModeFP
	switch mt {
	case MsgAccessRightsRequest:
		if fp {
			return ProcAccessRights
		}
	case MsgAccessRightsTerminateRequest:
		return ProcAccessRightsTerminate
	case MsgAuthenticationRequest:
		return ProcAuthenticate
	case MsgCipherRequest:
		if !fp {
			return ProcCipher
		}
	case MsgDetach:
		if fp {
			return ProcDetach
		}
	case MsgIdentityRequest:
		if !fp {
			return ProcIdentity
		}
	case MsgLocateRequest:
		if fp {
			return ProcLocate
		}
	case MsgTemporaryIdentityAssign:
		if !fp {
			return ProcTemporaryIdentityAssign
		}
	case MsgInfoRequest:
		if fp {
			return ProcParameterRetrieval
		}
	}
	return ProcNone
}

// Open handles a message on a new transaction
func (m *MM) Open(ta *lce.Transaction, mt uint8, body []byte) {
	t := m.requestType(mt)
	if t == ProcNone {
		m.log.Debug("Unexpected message on new transaction dropped",
			logger.Uint32("link", uint32(ta.Link)),
			logger.Int("msg_type", int(mt)))
		return
	}

	ep := m.endpoint(ta.Link)
	p, run, err := m.respond(ep, ta, t, mt, body)
	if err != nil {
		m.log.Info("Request refused",
			logger.Uint32("link", uint32(ta.Link)),
			logger.String("procedure", t.String()),
			logger.Error(err))
		m.gc(ep)
		return
	}
	if run {
		m.dispatch(p, mt, body)
	}
}

// Receive handles a message of an existing transaction
func (m *MM) Receive(ta *lce.Transaction, mt uint8, body []byte) {
	p := m.procedureFor(ta)
	if p == nil || p.state != procActive {
		m.log.Debug("Message without active procedure dropped",
			logger.String("ta", ta.String()),
			logger.Int("msg_type", int(mt)))
		return
	}
	m.dispatch(p, mt, body)
}

// Shutdown aborts the procedure of a transaction whose link went away
func (m *MM) Shutdown(ta *lce.Transaction) {
	if p := m.procedureFor(ta); p != nil {
		if p.state == procQueued {
			m.finish(p)
			m.gc(p.ep)
			return
		}
		m.abort(p, lce.ErrLinkReleased)
	}
}

// Rebind moves endpoint state after a paged link was answered
func (m *MM) Rebind(from, to lce.LinkID) {
	ep, ok := m.endpoints[from]
	if !ok {
		return
	}
	delete(m.endpoints, from)
	ep.Link = to
	m.endpoints[to] = ep
}

// EncryptionIndication completes cipher procedures waiting for the link
func (m *MM) EncryptionIndication(link lce.LinkID, enabled bool) {
	ep, ok := m.endpoints[link]
	if !ok {
		return
	}
	for _, p := range ep.procs {
		if p != nil && p.Type == ProcCipher && p.state == procActive && p.waitEncryption {
			m.cipherDone(p, enabled)
		}
	}
}

func (m *MM) dispatch(p *Procedure, mt uint8, body []byte) {
	switch p.Type {
	case ProcAccessRights:
		m.rxAccessRights(p, mt, body)
	case ProcAccessRightsTerminate:
		m.rxAccessRightsTerminate(p, mt, body)
	case ProcAuthenticate:
		m.rxAuthenticate(p, mt, body)
	case ProcCipher:
		m.rxCipher(p, mt, body)
	case ProcDetach:
		m.rxDetach(p, mt, body)
	case ProcIdentity:
		m.rxIdentity(p, mt, body)
	case ProcLocate:
		m.rxLocate(p, mt, body)
	case ProcTemporaryIdentityAssign:
		m.rxTemporaryIdentityAssign(p, mt, body)
	case ProcParameterRetrieval:
		m.rxInfo(p, mt, body)
	}
}

// parseReply parses a reply received by an initiator procedure
func (m *MM) parseReply(p *Procedure, desc *sfmt.MsgDesc, msg sfmt.Message, body []byte) bool {
	if err := m.lce.Parse(desc, msg, body); err != nil {
		m.log.Info("Malformed reply",
			logger.String("msg", desc.Name),
			logger.Error(err))
		m.abort(p, err)
		return false
	}
	return true
}

// unexpected drops a message that does not fit the procedure state
func (m *MM) unexpected(p *Procedure, mt uint8) {
	m.log.Debug("Unexpected message",
		logger.String("procedure", p.Type.String()),
		logger.String("role", p.Role.String()),
		logger.Int("msg_type", int(mt)))
}

// responder returns the active responder procedure of type t
func (m *MM) responder(ep *Endpoint, t ProcedureType) (*Procedure, error) {
	p := ep.procs[lce.RoleResponder]
	if p == nil || p.Type != t || p.state != procActive {
		return nil, ErrNoRequest
	}
	return p, nil
}

func (m *MM) localIdentity() *sfmt.PortableIdentity {
	return &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: m.lce.LocalIPUI()}
}
