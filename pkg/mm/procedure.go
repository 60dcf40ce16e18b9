package mm

import (
	"errors"
	"fmt"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// Procedure errors. Failures reach the application through the
// confirmation callbacks, never as panics.
var (
	ErrBusy      = errors.New("procedure slot busy")
	ErrPriority  = errors.New("higher priority procedure active")
	ErrTimeout   = errors.New("procedure timeout")
	ErrRejected  = errors.New("procedure rejected")
	ErrPreempted = errors.New("procedure preempted")
	ErrNoRequest = errors.New("no request to answer")
)

// RejectError carries the reject reason received from the peer
type RejectError struct {
	Reason sfmt.RejectCode
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected: %s", e.Reason)
}

func (e *RejectError) Is(target error) bool {
	return target == ErrRejected
}

func rejectError(r *Reject) error {
	if r == nil || r.RejectReason == nil {
		return ErrRejected
	}
	return &RejectError{Reason: r.RejectReason.Reason}
}

// ProcedureType identifies an MM procedure
type ProcedureType uint8

const (
	ProcNone ProcedureType = iota
	ProcAccessRights
	ProcAccessRightsTerminate
	ProcAuthenticate
	ProcCipher
	ProcDetach
	ProcIdentity
	ProcLocate
	ProcTemporaryIdentityAssign
	ProcParameterRetrieval
)

// Priority orders procedures competing for an endpoint
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

type procDesc struct {
	name     string
	priority Priority
	timeout  time.Duration
}

// Timer values
const (
	TimeoutAccess   = 20 * time.Second
	TimeoutAuth     = 10 * time.Second
	TimeoutCipher   = 10 * time.Second
	TimeoutIdentity = 10 * time.Second
	TimeoutLocate   = 20 * time.Second
	TimeoutTID      = 10 * time.Second
	TimeoutInfo     = 10 * time.Second
)

var procedures = map[ProcedureType]procDesc{
	ProcAccessRights:            {"access rights", PriorityNormal, TimeoutAccess},
	ProcAccessRightsTerminate:   {"access rights terminate", PriorityLow, TimeoutAccess},
	ProcAuthenticate:            {"authentication", PriorityHigh, TimeoutAuth},
	ProcCipher:                  {"cipher", PriorityHigh, TimeoutCipher},
	ProcDetach:                  {"detach", PriorityLow, 0},
	ProcIdentity:                {"identity", PriorityHigh, TimeoutIdentity},
	ProcLocate:                  {"locate", PriorityNormal, TimeoutLocate},
	ProcTemporaryIdentityAssign: {"temporary identity assign", PriorityNormal, TimeoutTID},
	ProcParameterRetrieval:      {"parameter retrieval", PriorityNormal, TimeoutInfo},
}

func (t ProcedureType) String() string {
	if d, ok := procedures[t]; ok {
		return d.name
	}
	return "none"
}

// Priority returns the priority of the procedure type
func (t ProcedureType) Priority() Priority {
	return procedures[t].priority
}

type procState uint8

const (
	procNone procState = iota
	procActive
	// procQueued is a responder procedure waiting for the initiator slot
	// to complete
	procQueued
)

// sent is the last message of a procedure, kept for retransmission
type sent struct {
	mt   uint8
	desc *sfmt.MsgDesc
	held *sfmt.Collection
}

type received struct {
	mt   uint8
	body []byte
}

// Procedure is one MM exchange occupying a slot of an endpoint
type Procedure struct {
	Type ProcedureType
	Role lce.Role

	ep          *Endpoint
	state       procState
	ta          *lce.Transaction
	timer       event.Timer
	timeout     time.Duration
	retransmits int
	last        *sent
	pending     *received
	// fail reports a terminal failure; it runs at most once
	fail func(err error)
	// request holds the parsed request a responder answers
	request sfmt.Message
	// waitEncryption is set while a cipher procedure waits for the link
	waitEncryption bool
	// assigned is the TPUI a locate or assign awaits acknowledgement for
	assigned *sfmt.PortableIdentity
}

// Active reports whether the procedure occupies its slot as current
func (p *Procedure) Active() bool {
	return p.state == procActive
}

func (m *MM) arm(p *Procedure, d time.Duration) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timeout = d
	if d <= 0 {
		return
	}
	p.timer = m.sched.AfterFunc(d, func() { m.expire(p) })
}

// initiate starts a procedure in the initiator slot of ep
func (m *MM) initiate(ep *Endpoint, t ProcedureType, fail func(error)) (*Procedure, error) {
	if ep.procs[lce.RoleInitiator] != nil {
		return nil, ErrBusy
	}
	if rsp := ep.procs[lce.RoleResponder]; rsp != nil && rsp.state == procActive {
		if rsp.Type.Priority() >= t.Priority() {
			m.log.Debug("Procedure refused",
				logger.String("procedure", t.String()),
				logger.String("current", rsp.Type.String()))
			return nil, ErrPriority
		}
	}

	ta, err := m.lce.OpenTransaction(lce.PDMM, ep.Link)
	if err != nil {
		return nil, err
	}
	p := &Procedure{Type: t, Role: lce.RoleInitiator, ep: ep, state: procActive, ta: ta, fail: fail}
	ep.procs[lce.RoleInitiator] = p
	m.adopt(ep)
	if rsp := ep.procs[lce.RoleResponder]; rsp != nil && rsp.state == procActive {
		m.abort(rsp, ErrPreempted)
	}
	m.log.Debug("Procedure initiated",
		logger.Uint32("link", uint32(ep.Link)),
		logger.String("procedure", t.String()))
	return p, nil
}

// respond creates the responder procedure for a request received on ta.
// The request is queued when the current initiator procedure wins.
func (m *MM) respond(ep *Endpoint, ta *lce.Transaction, t ProcedureType, mt uint8, body []byte) (*Procedure, bool, error) {
	if ep.procs[lce.RoleResponder] != nil {
		return nil, false, ErrBusy
	}
	if err := m.lce.ConfirmTransaction(ta); err != nil {
		return nil, false, err
	}

	p := &Procedure{Type: t, Role: lce.RoleResponder, ep: ep, ta: ta}
	p.fail = func(err error) { m.aborted(ep, t, err) }
	ep.procs[lce.RoleResponder] = p
	m.adopt(ep)

	if ini := ep.procs[lce.RoleInitiator]; ini != nil && ini.state == procActive {
		if ini.Type.Priority() >= t.Priority() {
			p.state = procQueued
			p.pending = &received{mt: mt, body: append([]byte(nil), body...)}
			m.log.Debug("Procedure queued",
				logger.String("procedure", t.String()),
				logger.String("behind", ini.Type.String()))
			return p, false, nil
		}
		m.abort(ini, ErrPreempted)
	}

	p.state = procActive
	m.arm(p, m.timeout(t))
	return p, true, nil
}

// send transmits a procedure message and keeps it for retransmission
func (m *MM) send(p *Procedure, mt uint8, desc *sfmt.MsgDesc, msg sfmt.Message) error {
	if p.last != nil {
		p.last.held.Put()
	}
	p.last = &sent{mt: mt, desc: desc, held: sfmt.NewCollection(desc.Name, msg)}
	p.retransmits = 0
	return m.lce.Send(p.ta, mt, desc, msg)
}

// expire handles a procedure timeout. The first initiator timeout
// retransmits the last message; any other timeout aborts.
func (m *MM) expire(p *Procedure) {
	if p.state != procActive {
		return
	}
	if p.Role == lce.RoleInitiator && p.retransmits == 0 && p.last != nil {
		p.retransmits++
		m.log.Debug("Procedure retransmit",
			logger.Uint32("link", uint32(p.ep.Link)),
			logger.String("procedure", p.Type.String()))
		err := m.lce.Send(p.ta, p.last.mt, p.last.desc, p.last.held.Message())
		if err == nil {
			m.arm(p, p.timeout)
			return
		}
		m.log.Debug("Retransmit failed", logger.Error(err))
	}
	ep := p.ep
	m.abort(p, ErrTimeout)
	m.promote(ep)
}

// finish frees the slot of p
func (m *MM) finish(p *Procedure) {
	p.state = procNone
	if p.timer != nil {
		p.timer.Stop()
	}
	if p.last != nil {
		p.last.held.Put()
		p.last = nil
	}
	p.pending = nil
	if p.ep.procs[p.Role] == p {
		p.ep.procs[p.Role] = nil
	}
}

// complete ends a procedure successfully. A queued sibling is promoted
// after the caller has reported the outcome.
func (m *MM) complete(p *Procedure) {
	if p.state == procNone {
		return
	}
	m.finish(p)
	m.lce.CloseTransaction(p.ta, lce.ReleasePartial)
	m.log.Debug("Procedure complete",
		logger.Uint32("link", uint32(p.ep.Link)),
		logger.String("procedure", p.Type.String()))
	ep := p.ep
	if rsp := ep.procs[lce.RoleResponder]; rsp != nil && rsp.state == procQueued {
		m.sched.Post(func() { m.promote(ep) })
		return
	}
	m.gc(ep)
}

// abort ends a procedure with a failure reported through its callback
func (m *MM) abort(p *Procedure, err error) {
	if p.state == procNone {
		return
	}
	m.finish(p)
	m.lce.CloseTransaction(p.ta, lce.ReleasePartial)
	m.log.Info("Procedure failed",
		logger.Uint32("link", uint32(p.ep.Link)),
		logger.String("procedure", p.Type.String()),
		logger.String("role", p.Role.String()),
		logger.Error(err))
	if p.fail != nil {
		fail := p.fail
		p.fail = nil
		fail(err)
	}
	m.gc(p.ep)
}

// promote activates a queued responder procedure once the initiator slot
// is free and replays its request
func (m *MM) promote(ep *Endpoint) {
	rsp := ep.procs[lce.RoleResponder]
	if rsp == nil || rsp.state != procQueued || ep.procs[lce.RoleInitiator] != nil {
		return
	}
	rsp.state = procActive
	req := rsp.pending
	rsp.pending = nil
	m.arm(rsp, m.timeout(rsp.Type))
	m.log.Debug("Procedure promoted",
		logger.Uint32("link", uint32(ep.Link)),
		logger.String("procedure", rsp.Type.String()))
	m.dispatch(rsp, req.mt, req.body)
}

// reply sends the final message of a responder procedure and completes it
func (m *MM) reply(p *Procedure, mt uint8, desc *sfmt.MsgDesc, msg sfmt.Message) error {
	err := m.send(p, mt, desc, msg)
	if err != nil {
		m.abort(p, err)
		return err
	}
	m.complete(p)
	return nil
}

func (m *MM) timeout(t ProcedureType) time.Duration {
	d := procedures[t].timeout
	if m.cfg.TimeoutScale > 0 {
		d = time.Duration(float64(d) * m.cfg.TimeoutScale)
	}
	return d
}
