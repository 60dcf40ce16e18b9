// Package ss implements call independent supplementary services (CISS).
package ss

import (
	"errors"
	"fmt"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// ErrReleased is returned for requests on a released session
var ErrReleased = errors.New("session released")

// Ops are the application callbacks. A nil RegisterInd rejects every
// incoming session.
type Ops struct {
	RegisterInd func(s *Session, msg *Register)
	FacilityInd func(s *Session, msg *Facility)
	// ReleaseInd reports a session ended by the peer or by link loss
	ReleaseInd func(s *Session, reason sfmt.ReleaseCode)
}

// Session is one CISS transaction
type Session struct {
	ID uint64

	// Context is free for the application
	Context interface{}

	ss       *SS
	ta       *lce.Transaction
	released bool
}

// Link returns the link carrying the session
func (s *Session) Link() lce.LinkID {
	return s.ta.Link
}

// Peer returns the portable identity of the session's link
func (s *Session) Peer() (identity.IPUI, bool) {
	return s.ss.lce.Peer(s.ta.Link)
}

func (s *Session) String() string {
	return fmt.Sprintf("ciss %d [%s]", s.ID, s.ta)
}

// SS is the supplementary services entity
type SS struct {
	lce      *lce.LCE
	ops      Ops
	log      *logger.Logger
	sessions map[*lce.Transaction]*Session
	next     uint64
}

// New creates the SS entity and registers it with the LCE
func New(l *lce.LCE, ops Ops, log *logger.Logger) (*SS, error) {
	if log == nil {
		log = logger.Nop()
	}
	s := &SS{
		lce:      l,
		ops:      ops,
		log:      log.WithComponent("ss"),
		sessions: make(map[*lce.Transaction]*Session),
	}
	if err := l.RegisterProtocol(lce.PDCISS, 0, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Sessions returns the number of open sessions
func (s *SS) Sessions() int {
	return len(s.sessions)
}

func (s *SS) newSession(ta *lce.Transaction) *Session {
	s.next++
	sess := &Session{ID: s.next, ss: s, ta: ta}
	s.sessions[ta] = sess
	return sess
}

func (s *SS) free(sess *Session) {
	sess.released = true
	delete(s.sessions, sess.ta)
	s.lce.CloseTransaction(sess.ta, lce.ReleaseNormal)
}

// SetupReq opens a session towards peer with CISS-REGISTER. In PP mode
// peer is ignored.
func (s *SS) SetupReq(peer identity.IPUI, msg *Register) (*Session, error) {
	if msg.PortableIdentity == nil {
		pi := &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: peer}
		if s.lce.Mode() == lce.ModePP {
			pi.IPUI = s.lce.LocalIPUI()
		}
		msg.PortableIdentity = pi
	}
	link, err := s.lce.LinkFor(peer)
	if err != nil {
		return nil, err
	}
	ta, err := s.lce.OpenTransaction(lce.PDCISS, link)
	if err != nil {
		return nil, err
	}
	sess := s.newSession(ta)
	if err := s.lce.Send(ta, MsgRegister, registerDesc, msg); err != nil {
		s.free(sess)
		return nil, fmt.Errorf("sending register: %w", err)
	}
	s.log.Debug("Session opened", logger.String("session", sess.String()))
	return sess, nil
}

// FacilityReq sends FACILITY within a session
func (s *SS) FacilityReq(sess *Session, msg *Facility) error {
	if sess.released {
		return ErrReleased
	}
	return s.lce.Send(sess.ta, MsgFacility, facilityDesc, msg)
}

// ReleaseReq ends a session with RELEASE-COM
func (s *SS) ReleaseReq(sess *Session, msg *ReleaseCom) error {
	if sess.released {
		return ErrReleased
	}
	if msg == nil {
		msg = &ReleaseCom{}
	}
	err := s.lce.Send(sess.ta, MsgReleaseCom, releaseComDesc, msg)
	s.log.Debug("Session released", logger.String("session", sess.String()))
	s.free(sess)
	return err
}

func (s *SS) releaseCom(ta *lce.Transaction, reason sfmt.ReleaseCode) {
	msg := &ReleaseCom{ReleaseReason: &sfmt.ReleaseReason{Reason: reason}}
	if err := s.lce.Send(ta, MsgReleaseCom, releaseComDesc, msg); err != nil {
		s.log.Debug("Sending release complete failed", logger.Error(err))
	}
}

// Open handles a message on a new transaction
func (s *SS) Open(ta *lce.Transaction, mt uint8, body []byte) {
	switch mt {
	case MsgRegister:
	case MsgReleaseCom:
		return
	default:
		s.releaseCom(ta, sfmt.ReleaseUnknownTransactionIdentifier)
		return
	}

	msg := &Register{}
	if err := s.lce.Parse(registerDesc, msg, body); err != nil {
		s.log.Info("Invalid register", logger.String("ta", ta.String()), logger.Error(err))
		s.releaseCom(ta, sfmt.ReleaseReasonFor(err))
		return
	}
	if err := s.lce.ConfirmTransaction(ta); err != nil {
		s.log.Info("Register refused", logger.String("ta", ta.String()), logger.Error(err))
		return
	}
	if s.lce.Mode() == lce.ModeFP {
		if pi := msg.PortableIdentity; pi != nil && pi.Kind == sfmt.PortableIDIPUI {
			if err := s.lce.SetPeer(ta.Link, pi.IPUI); err != nil {
				s.log.Debug("Recording peer failed", logger.Error(err))
			}
		}
	}
	sess := s.newSession(ta)
	if s.ops.RegisterInd == nil {
		_ = s.ReleaseReq(sess, &ReleaseCom{
			ReleaseReason: &sfmt.ReleaseReason{Reason: sfmt.ReleaseServiceNotImplemented},
		})
		return
	}
	s.ops.RegisterInd(sess, msg)
}

// Receive handles a message of an open session
func (s *SS) Receive(ta *lce.Transaction, mt uint8, body []byte) {
	sess, ok := s.sessions[ta]
	if !ok {
		return
	}
	switch mt {
	case MsgFacility:
		msg := &Facility{}
		if err := s.lce.Parse(facilityDesc, msg, body); err != nil {
			s.log.Debug("Malformed facility", logger.Error(err))
			return
		}
		if s.ops.FacilityInd != nil {
			s.ops.FacilityInd(sess, msg)
		}
	case MsgReleaseCom:
		msg := &ReleaseCom{}
		if err := s.lce.Parse(releaseComDesc, msg, body); err != nil {
			s.log.Debug("Malformed release complete", logger.Error(err))
		}
		s.free(sess)
		if s.ops.ReleaseInd != nil {
			s.ops.ReleaseInd(sess, msg.reason())
		}
	default:
		s.log.Debug("Unexpected message",
			logger.String("session", sess.String()),
			logger.Int("msg_type", int(mt)))
	}
}

// Shutdown ends a session whose link went away
func (s *SS) Shutdown(ta *lce.Transaction) {
	sess, ok := s.sessions[ta]
	if !ok {
		return
	}
	sess.released = true
	delete(s.sessions, ta)
	if s.ops.ReleaseInd != nil {
		s.ops.ReleaseInd(sess, sfmt.ReleaseUnknown)
	}
}
