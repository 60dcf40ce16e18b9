// Package cc implements DECT Call Control for circuit-switched calls.
package cc

import (
	"errors"
	"fmt"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// CC errors
var (
	ErrState       = errors.New("call state does not allow this request")
	ErrTimeout     = errors.New("release timeout")
	ErrCallCleared = errors.New("call cleared")
)

// DefaultReleaseTimeout is how long RELEASE waits for RELEASE-COM
const DefaultReleaseTimeout = 20 * time.Second

// State is the call state
type State uint8

const (
	StateNull State = iota
	StateCallInitiated
	StateOverlapSending
	StateCallProceeding
	StateCallDelivered
	StateCallPresent
	StateCallReceived
	StateConnectPending
	StateActive
	StateReleasePending
	StateOverlapReceiving
	StateIncomingCallProceeding
)

var stateNames = map[State]string{
	StateNull:                   "T-00 null",
	StateCallInitiated:          "T-01 call initiated",
	StateOverlapSending:         "T-02 overlap sending",
	StateCallProceeding:         "T-03 call proceeding",
	StateCallDelivered:          "T-04 call delivered",
	StateCallPresent:            "T-06 call present",
	StateCallReceived:           "T-07 call received",
	StateConnectPending:         "T-08 connect pending",
	StateActive:                 "T-10 active",
	StateReleasePending:         "T-19 release pending",
	StateOverlapReceiving:       "T-22 overlap receiving",
	StateIncomingCallProceeding: "T-23 incoming call proceeding",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state %d", uint8(s))
}

// Config holds CC parameters
type Config struct {
	ReleaseTimeout time.Duration
	// FixedIdentity fills the fixed identity of outgoing SETUP messages
	// that carry none
	FixedIdentity *sfmt.FixedIdentity
}

// Ops are the application callbacks. A nil SetupInd rejects every
// incoming call.
type Ops struct {
	SetupInd    func(c *Call, msg *Setup)
	SetupAckInd func(c *Call, msg *Progress)
	CallProcInd func(c *Call, msg *Progress)
	AlertInd    func(c *Call, msg *Progress)
	ConnectInd  func(c *Call, msg *Progress)
	// ConnectCfm reports CONNECT-ACK for a call this side connected
	ConnectCfm func(c *Call)
	InfoInd    func(c *Call, msg *Info)
	// ReleaseInd reports a call cleared by the peer or by link loss
	ReleaseInd func(c *Call, reason sfmt.ReleaseCode)
	// ReleaseCfm reports the end of a locally requested release
	ReleaseCfm func(c *Call, err error)
}

// Call is one CC transaction
type Call struct {
	ID    uint64
	State State

	// Context is free for the application
	Context interface{}

	cc    *CC
	ta    *lce.Transaction
	timer event.Timer
}

// Link returns the link carrying the call
func (c *Call) Link() lce.LinkID {
	return c.ta.Link
}

// Role returns the transaction role of this side
func (c *Call) Role() lce.Role {
	return c.ta.Role
}

// Peer returns the portable identity of the call's link
func (c *Call) Peer() (identity.IPUI, bool) {
	return c.cc.lce.Peer(c.ta.Link)
}

func (c *Call) String() string {
	return fmt.Sprintf("call %d [%s]", c.ID, c.ta)
}

// CC is the call control entity
type CC struct {
	lce   *lce.LCE
	sched event.Scheduler
	ops   Ops
	cfg   Config
	log   *logger.Logger
	calls map[*lce.Transaction]*Call
	next  uint64
}

// New creates the CC entity and registers it with the LCE
func New(l *lce.LCE, ops Ops, cfg Config, log *logger.Logger) (*CC, error) {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = DefaultReleaseTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	c := &CC{
		lce:   l,
		sched: l.Scheduler(),
		ops:   ops,
		cfg:   cfg,
		log:   log.WithComponent("cc"),
		calls: make(map[*lce.Transaction]*Call),
	}
	if err := l.RegisterProtocol(lce.PDCC, 0, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Calls returns the number of calls in progress
func (c *CC) Calls() int {
	return len(c.calls)
}

func (c *CC) newCall(ta *lce.Transaction, state State) *Call {
	c.next++
	call := &Call{ID: c.next, State: state, cc: c, ta: ta}
	c.calls[ta] = call
	return call
}

func (c *CC) setState(call *Call, s State) {
	if call.State == s {
		return
	}
	c.log.Debug("Call state",
		logger.Uint64("call", call.ID),
		logger.String("from", call.State.String()),
		logger.String("to", s.String()))
	call.State = s
}

// free forgets a call and closes its transaction
func (c *CC) free(call *Call) {
	if call.timer != nil {
		call.timer.Stop()
	}
	c.setState(call, StateNull)
	delete(c.calls, call.ta)
	c.lce.CloseTransaction(call.ta, lce.ReleaseNormal)
}

func (c *CC) send(call *Call, mt uint8, desc *sfmt.MsgDesc, msg sfmt.Message) error {
	if err := c.lce.Send(call.ta, mt, desc, msg); err != nil {
		c.log.Info("Sending failed",
			logger.String("call", call.String()),
			logger.String("msg", desc.Name),
			logger.Error(err))
		return err
	}
	return nil
}

// SetupReq starts a call to peer. In PP mode peer is ignored and the
// call goes to the FP.
func (c *CC) SetupReq(peer identity.IPUI, msg *Setup) (*Call, error) {
	if msg.PortableIdentity == nil {
		pi := &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: peer}
		if c.lce.Mode() == lce.ModePP {
			pi.IPUI = c.lce.LocalIPUI()
		}
		msg.PortableIdentity = pi
	}
	if msg.FixedIdentity == nil {
		msg.FixedIdentity = c.cfg.FixedIdentity
	}
	if msg.BasicService == nil {
		msg.BasicService = &sfmt.BasicService{Class: sfmt.CallClassNormal, Service: sfmt.ServiceBasicSpeech}
	}

	link, err := c.lce.LinkFor(peer)
	if err != nil {
		return nil, err
	}
	ta, err := c.lce.OpenTransaction(lce.PDCC, link)
	if err != nil {
		return nil, err
	}
	state := StateCallInitiated
	if c.lce.Mode() == lce.ModeFP {
		state = StateCallPresent
	}
	call := c.newCall(ta, state)
	if err := c.send(call, MsgSetup, setupDesc, msg); err != nil {
		c.free(call)
		return nil, err
	}
	c.log.Info("Call setup",
		logger.String("call", call.String()),
		logger.String("peer", peer.String()))
	return call, nil
}

// SetupAckReq asks the PP for more digits
func (c *CC) SetupAckReq(call *Call, msg *Progress) error {
	if call.Role() != lce.RoleResponder || call.State != StateCallInitiated {
		return ErrState
	}
	if err := c.send(call, MsgSetupAck, setupAckDesc, msg); err != nil {
		return err
	}
	c.setState(call, StateOverlapSending)
	return nil
}

// CallProcReq reports that the call is proceeding
func (c *CC) CallProcReq(call *Call, msg *Progress) error {
	if call.Role() != lce.RoleResponder {
		return ErrState
	}
	next := StateCallProceeding
	switch call.State {
	case StateCallInitiated, StateOverlapSending:
	case StateCallPresent, StateOverlapReceiving:
		next = StateIncomingCallProceeding
	default:
		return ErrState
	}
	if err := c.send(call, MsgCallProc, callProcDesc, msg); err != nil {
		return err
	}
	c.setState(call, next)
	return nil
}

// AlertReq reports that the called party is being alerted
func (c *CC) AlertReq(call *Call, msg *Progress) error {
	if call.Role() != lce.RoleResponder {
		return ErrState
	}
	next := StateCallDelivered
	switch call.State {
	case StateCallInitiated, StateOverlapSending, StateCallProceeding:
	case StateCallPresent, StateOverlapReceiving, StateIncomingCallProceeding:
		next = StateCallReceived
	default:
		return ErrState
	}
	if err := c.send(call, MsgAlerting, alertingDesc, msg); err != nil {
		return err
	}
	c.setState(call, next)
	return nil
}

// ConnectReq answers the call. The call turns active when the peer
// acknowledges.
func (c *CC) ConnectReq(call *Call, msg *Progress) error {
	if call.Role() != lce.RoleResponder {
		return ErrState
	}
	switch call.State {
	case StateCallInitiated, StateOverlapSending, StateCallProceeding, StateCallDelivered,
		StateCallPresent, StateOverlapReceiving, StateIncomingCallProceeding, StateCallReceived:
	default:
		return ErrState
	}
	if err := c.send(call, MsgConnect, connectDesc, msg); err != nil {
		return err
	}
	c.setState(call, StateConnectPending)
	return nil
}

// InfoReq sends INFO during a call
func (c *CC) InfoReq(call *Call, msg *Info) error {
	if call.State == StateNull || call.State == StateReleasePending {
		return ErrState
	}
	return c.send(call, MsgInfo, infoDesc, msg)
}

// ReleaseReq clears the call. ReleaseCfm reports RELEASE-COM or the
// release timeout.
func (c *CC) ReleaseReq(call *Call, reason sfmt.ReleaseCode) error {
	if call.State == StateNull || call.State == StateReleasePending {
		return ErrState
	}
	msg := &Release{ReleaseReason: &sfmt.ReleaseReason{Reason: reason}}
	if err := c.send(call, MsgRelease, releaseMsgDesc, msg); err != nil {
		c.free(call)
		return err
	}
	c.setState(call, StateReleasePending)
	call.timer = c.sched.AfterFunc(c.cfg.ReleaseTimeout, func() { c.releaseTimeout(call) })
	return nil
}

// RejectReq refuses an incoming call with RELEASE-COM
func (c *CC) RejectReq(call *Call, reason sfmt.ReleaseCode) error {
	if call.Role() != lce.RoleResponder || call.State == StateNull ||
		call.State == StateActive || call.State == StateReleasePending {
		return ErrState
	}
	msg := &Release{ReleaseReason: &sfmt.ReleaseReason{Reason: reason}}
	err := c.send(call, MsgReleaseCom, releaseComMsgDesc, msg)
	c.log.Info("Call rejected",
		logger.String("call", call.String()),
		logger.String("reason", reason.String()))
	c.free(call)
	return err
}

func (c *CC) releaseTimeout(call *Call) {
	if call.State != StateReleasePending {
		return
	}
	c.log.Info("Release timeout", logger.String("call", call.String()))
	c.free(call)
	if c.ops.ReleaseCfm != nil {
		c.ops.ReleaseCfm(call, ErrTimeout)
	}
}

// releaseCom answers an unknown or invalid transaction without keeping it
func (c *CC) releaseCom(ta *lce.Transaction, reason sfmt.ReleaseCode) {
	msg := &Release{ReleaseReason: &sfmt.ReleaseReason{Reason: reason}}
	if err := c.lce.Send(ta, MsgReleaseCom, releaseComMsgDesc, msg); err != nil {
		c.log.Debug("Sending release complete failed", logger.Error(err))
	}
}

// Open handles a message on a new transaction
func (c *CC) Open(ta *lce.Transaction, mt uint8, body []byte) {
	if mt != MsgSetup {
		c.log.Debug("Message for unknown call",
			logger.String("ta", ta.String()),
			logger.Int("msg_type", int(mt)))
		if mt != MsgReleaseCom {
			c.releaseCom(ta, sfmt.ReleaseUnknownTransactionIdentifier)
		}
		return
	}

	msg := &Setup{}
	if err := c.lce.Parse(setupDesc, msg, body); err != nil {
		c.log.Info("Invalid setup", logger.String("ta", ta.String()), logger.Error(err))
		c.releaseCom(ta, sfmt.ReleaseReasonFor(err))
		return
	}
	if err := c.lce.ConfirmTransaction(ta); err != nil {
		c.log.Info("Setup refused", logger.String("ta", ta.String()), logger.Error(err))
		return
	}

	state := StateCallPresent
	if c.lce.Mode() == lce.ModeFP {
		state = StateCallInitiated
		if pi := msg.PortableIdentity; pi != nil && pi.Kind == sfmt.PortableIDIPUI {
			if err := c.lce.SetPeer(ta.Link, pi.IPUI); err != nil {
				c.log.Debug("Recording peer failed", logger.Error(err))
			}
		}
	}
	call := c.newCall(ta, state)
	c.log.Info("Incoming call", logger.String("call", call.String()))

	if c.ops.SetupInd == nil {
		_ = c.RejectReq(call, sfmt.ReleaseServiceNotImplemented)
		return
	}
	c.ops.SetupInd(call, msg)
}

// Receive handles a message of an existing call
func (c *CC) Receive(ta *lce.Transaction, mt uint8, body []byte) {
	call, ok := c.calls[ta]
	if !ok {
		return
	}

	switch mt {
	case MsgSetupAck, MsgCallProc, MsgAlerting, MsgConnect:
		c.rxProgress(call, mt, body)
	case MsgConnectAck:
		if call.State != StateConnectPending {
			c.unexpected(call, mt)
			return
		}
		if err := c.lce.Parse(connectAckDesc, &ConnectAck{}, body); err != nil {
			c.log.Debug("Malformed connect ack", logger.Error(err))
		}
		c.setState(call, StateActive)
		if c.ops.ConnectCfm != nil {
			c.ops.ConnectCfm(call)
		}
	case MsgInfo:
		msg := &Info{}
		if err := c.lce.Parse(infoDesc, msg, body); err != nil {
			c.log.Debug("Malformed info", logger.Error(err))
			return
		}
		if call.Role() == lce.RoleResponder && call.State == StateCallPresent && msg.CalledPartyNumber != nil {
			c.setState(call, StateOverlapReceiving)
		}
		if c.ops.InfoInd != nil {
			c.ops.InfoInd(call, msg)
		}
	case MsgRelease:
		msg := &Release{}
		if err := c.lce.Parse(releaseMsgDesc, msg, body); err != nil {
			c.log.Debug("Malformed release", logger.Error(err))
		}
		if call.State == StateReleasePending {
			// release collision
			c.releaseCom(ta, sfmt.ReleaseNormal)
			c.free(call)
			if c.ops.ReleaseCfm != nil {
				c.ops.ReleaseCfm(call, nil)
			}
			return
		}
		c.releaseCom(ta, sfmt.ReleaseNormal)
		c.free(call)
		if c.ops.ReleaseInd != nil {
			c.ops.ReleaseInd(call, msg.reason())
		}
	case MsgReleaseCom:
		msg := &Release{}
		if err := c.lce.Parse(releaseComMsgDesc, msg, body); err != nil {
			c.log.Debug("Malformed release complete", logger.Error(err))
		}
		pending := call.State == StateReleasePending
		c.free(call)
		if pending {
			if c.ops.ReleaseCfm != nil {
				c.ops.ReleaseCfm(call, nil)
			}
			return
		}
		if c.ops.ReleaseInd != nil {
			c.ops.ReleaseInd(call, msg.reason())
		}
	default:
		c.unexpected(call, mt)
	}
}

// rxProgress handles the replies of the called side
func (c *CC) rxProgress(call *Call, mt uint8, body []byte) {
	if call.Role() != lce.RoleInitiator {
		c.unexpected(call, mt)
		return
	}
	incoming := c.lce.Mode() == lce.ModeFP

	var (
		desc *sfmt.MsgDesc
		next State
		ind  func(*Call, *Progress)
	)
	switch mt {
	case MsgSetupAck:
		if incoming || call.State != StateCallInitiated {
			c.unexpected(call, mt)
			return
		}
		desc, next, ind = setupAckDesc, StateOverlapSending, c.ops.SetupAckInd
	case MsgCallProc:
		desc, next, ind = callProcDesc, StateCallProceeding, c.ops.CallProcInd
		if incoming {
			next = StateIncomingCallProceeding
		}
	case MsgAlerting:
		desc, next, ind = alertingDesc, StateCallDelivered, c.ops.AlertInd
		if incoming {
			next = StateCallReceived
		}
	case MsgConnect:
		desc, next, ind = connectDesc, StateActive, c.ops.ConnectInd
	}
	if call.State == StateActive || call.State == StateReleasePending {
		c.unexpected(call, mt)
		return
	}

	msg := &Progress{}
	if err := c.lce.Parse(desc, msg, body); err != nil {
		c.log.Debug("Malformed progress", logger.String("msg", desc.Name), logger.Error(err))
		return
	}
	c.setState(call, next)
	if mt == MsgConnect {
		if err := c.send(call, MsgConnectAck, connectAckDesc, &ConnectAck{}); err != nil {
			return
		}
	}
	if ind != nil {
		ind(call, msg)
	}
}

func (c *CC) unexpected(call *Call, mt uint8) {
	c.log.Debug("Unexpected message",
		logger.String("call", call.String()),
		logger.String("state", call.State.String()),
		logger.Int("msg_type", int(mt)))
}

// Shutdown clears a call whose link went away
func (c *CC) Shutdown(ta *lce.Transaction) {
	call, ok := c.calls[ta]
	if !ok {
		return
	}
	if call.timer != nil {
		call.timer.Stop()
	}
	pending := call.State == StateReleasePending
	call.State = StateNull
	delete(c.calls, ta)
	c.log.Info("Call cleared by link loss", logger.String("call", call.String()))
	if pending {
		if c.ops.ReleaseCfm != nil {
			c.ops.ReleaseCfm(call, ErrCallCleared)
		}
		return
	}
	if c.ops.ReleaseInd != nil {
		c.ops.ReleaseInd(call, sfmt.ReleaseUnknown)
	}
}
