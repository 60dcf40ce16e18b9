package mm

import (
	"errors"

	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

type rejectMsg struct {
	mt   uint8
	desc *sfmt.MsgDesc
}

// rejects lists the reject message of every procedure that has one
var rejects = map[ProcedureType]rejectMsg{
	ProcAccessRights:            {MsgAccessRightsReject, accessRightsRejectDesc},
	ProcAccessRightsTerminate:   {MsgAccessRightsTerminateReject, accessRightsTerminateRejectDesc},
	ProcAuthenticate:            {MsgAuthenticationReject, authenticationRejectDesc},
	ProcCipher:                  {MsgCipherReject, cipherRejectDesc},
	ProcLocate:                  {MsgLocateReject, locateRejectDesc},
	ProcTemporaryIdentityAssign: {MsgTemporaryIdentityAssignReject, temporaryIdentityAssignRejDesc},
	ProcParameterRetrieval:      {MsgInfoReject, infoRejectDesc},
}

var errNoReject = errors.New("procedure has no reject message")

// start sends the first message of an initiator procedure and arms its
// timer. A failed send is returned and not reported through the callback.
func (m *MM) start(p *Procedure, mt uint8, desc *sfmt.MsgDesc, msg sfmt.Message) error {
	p.request = msg
	if err := m.send(p, mt, desc, msg); err != nil {
		p.fail = nil
		m.abort(p, err)
		return err
	}
	m.arm(p, m.timeout(p.Type))
	return nil
}

// parseRequest parses the request of a responder procedure. A malformed
// request is rejected with the mapped reason where a reject exists.
func (m *MM) parseRequest(p *Procedure, desc *sfmt.MsgDesc, msg sfmt.Message, body []byte) bool {
	err := m.lce.Parse(desc, msg, body)
	if err == nil {
		p.request = msg
		return true
	}
	m.log.Info("Malformed request",
		logger.String("msg", desc.Name),
		logger.Error(err))
	if rej, ok := rejects[p.Type]; ok {
		r := &Reject{RejectReason: &sfmt.RejectReason{Reason: sfmt.RejectReasonFor(err)}}
		if sendErr := m.send(p, rej.mt, rej.desc, r); sendErr != nil {
			m.log.Debug("Sending reject failed", logger.Error(sendErr))
		}
	}
	p.fail = nil
	m.abort(p, err)
	return false
}

// RejectReq rejects the current request of procedure type t
func (m *MM) RejectReq(ep *Endpoint, t ProcedureType, reason sfmt.RejectCode) error {
	p, err := m.responder(ep, t)
	if err != nil {
		return err
	}
	rej, ok := rejects[t]
	if !ok {
		return errNoReject
	}
	m.log.Info("Request rejected",
		logger.Uint32("link", uint32(ep.Link)),
		logger.String("procedure", t.String()),
		logger.String("reason", reason.String()))
	return m.reply(p, rej.mt, rej.desc, &Reject{RejectReason: &sfmt.RejectReason{Reason: reason}})
}

// noInd rejects a request no application callback handles
func (m *MM) noInd(p *Procedure) {
	m.log.Debug("No handler for request", logger.String("procedure", p.Type.String()))
	p.fail = nil
	if rej, ok := rejects[p.Type]; ok {
		_ = m.reply(p, rej.mt, rej.desc, &Reject{RejectReason: &sfmt.RejectReason{Reason: sfmt.RejectIncompatibleService}})
		return
	}
	m.complete(p)
}

// rxReject handles the reject message of an initiator procedure
func (m *MM) rxReject(p *Procedure, body []byte, cfm func(err error)) {
	rej := &Reject{}
	if !m.parseReply(p, rejects[p.Type].desc, rej, body) {
		return
	}
	p.fail = nil
	m.complete(p)
	if cfm != nil {
		cfm(rejectError(rej))
	}
}

// succeed completes an initiator procedure, suppressing its failure path
func (m *MM) succeed(p *Procedure) {
	p.fail = nil
	m.complete(p)
}

// --- access rights

// AccessRightsReq subscribes the PP. A nil portable identity is filled
// with the local IPUI.
func (m *MM) AccessRightsReq(ep *Endpoint, req *AccessRightsRequest) error {
	p, err := m.initiate(ep, ProcAccessRights, func(err error) {
		if m.ops.AccessRightsCfm != nil {
			m.ops.AccessRightsCfm(ep, false, nil, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	if req.PortableIdentity == nil {
		req.PortableIdentity = m.localIdentity()
	}
	return m.start(p, MsgAccessRightsRequest, accessRightsRequestDesc, req)
}

// AccessRightsRes accepts the current access rights request
func (m *MM) AccessRightsRes(ep *Endpoint, res *AccessRightsAccept) error {
	p, err := m.responder(ep, ProcAccessRights)
	if err != nil {
		return err
	}
	if res.PortableIdentity == nil {
		res.PortableIdentity = p.request.(*AccessRightsRequest).PortableIdentity
	}
	return m.reply(p, MsgAccessRightsAccept, accessRightsAcceptDesc, res)
}

func (m *MM) rxAccessRights(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgAccessRightsAccept:
			res := &AccessRightsAccept{}
			if !m.parseReply(p, accessRightsAcceptDesc, res, body) {
				return
			}
			m.succeed(p)
			if m.ops.AccessRightsCfm != nil {
				m.ops.AccessRightsCfm(ep, true, res, nil)
			}
		case MsgAccessRightsReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.AccessRightsCfm != nil {
					m.ops.AccessRightsCfm(ep, false, nil, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	if mt != MsgAccessRightsRequest {
		m.unexpected(p, mt)
		return
	}
	req := &AccessRightsRequest{}
	if !m.parseRequest(p, accessRightsRequestDesc, req, body) {
		return
	}
	m.learnPeer(ep, req.PortableIdentity)
	if m.ops.AccessRightsInd == nil {
		m.noInd(p)
		return
	}
	m.ops.AccessRightsInd(ep, req)
}

// learnPeer records the IPUI a portable announced on the link
func (m *MM) learnPeer(ep *Endpoint, pi *sfmt.PortableIdentity) {
	if m.lce.Mode() != lce.ModeFP || pi == nil || pi.Kind != sfmt.PortableIDIPUI {
		return
	}
	if err := m.lce.SetPeer(ep.Link, pi.IPUI); err != nil {
		m.log.Debug("Recording peer failed", logger.Error(err))
	}
}

// --- access rights terminate

// AccessRightsTerminateReq removes a subscription. A PP may leave the
// portable identity nil to use its own.
func (m *MM) AccessRightsTerminateReq(ep *Endpoint, req *AccessRightsTerminateRequest) error {
	p, err := m.initiate(ep, ProcAccessRightsTerminate, func(err error) {
		if m.ops.AccessRightsTerminateCfm != nil {
			m.ops.AccessRightsTerminateCfm(ep, false, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	if req.PortableIdentity == nil {
		if m.lce.Mode() == lce.ModePP {
			req.PortableIdentity = m.localIdentity()
		} else if peer, ok := ep.Peer(); ok {
			req.PortableIdentity = &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: peer}
		}
	}
	return m.start(p, MsgAccessRightsTerminateRequest, accessRightsTerminateRequestDesc, req)
}

// AccessRightsTerminateRes accepts the current terminate request
func (m *MM) AccessRightsTerminateRes(ep *Endpoint) error {
	p, err := m.responder(ep, ProcAccessRightsTerminate)
	if err != nil {
		return err
	}
	return m.reply(p, MsgAccessRightsTerminateAccept, accessRightsTerminateAcceptDesc, &Ack{})
}

func (m *MM) rxAccessRightsTerminate(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgAccessRightsTerminateAccept:
			if !m.parseReply(p, accessRightsTerminateAcceptDesc, &Ack{}, body) {
				return
			}
			m.succeed(p)
			if m.ops.AccessRightsTerminateCfm != nil {
				m.ops.AccessRightsTerminateCfm(ep, true, nil)
			}
		case MsgAccessRightsTerminateReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.AccessRightsTerminateCfm != nil {
					m.ops.AccessRightsTerminateCfm(ep, false, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	if mt != MsgAccessRightsTerminateRequest {
		m.unexpected(p, mt)
		return
	}
	req := &AccessRightsTerminateRequest{}
	if !m.parseRequest(p, accessRightsTerminateRequestDesc, req, body) {
		return
	}
	m.learnPeer(ep, req.PortableIdentity)
	if m.ops.AccessRightsTerminateInd == nil {
		m.noInd(p)
		return
	}
	m.ops.AccessRightsTerminateInd(ep, req)
}

// --- authentication

// AuthenticateReq challenges the peer
func (m *MM) AuthenticateReq(ep *Endpoint, req *AuthenticationRequest) error {
	p, err := m.initiate(ep, ProcAuthenticate, func(err error) {
		if m.ops.AuthenticateCfm != nil {
			m.ops.AuthenticateCfm(ep, false, nil, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	return m.start(p, MsgAuthenticationRequest, authenticationRequestDesc, req)
}

// AuthenticateRes answers the current challenge
func (m *MM) AuthenticateRes(ep *Endpoint, res *AuthenticationReply) error {
	p, err := m.responder(ep, ProcAuthenticate)
	if err != nil {
		return err
	}
	return m.reply(p, MsgAuthenticationReply, authenticationReplyDesc, res)
}

func (m *MM) rxAuthenticate(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgAuthenticationReply:
			res := &AuthenticationReply{}
			if !m.parseReply(p, authenticationReplyDesc, res, body) {
				return
			}
			m.succeed(p)
			if m.ops.AuthenticateCfm != nil {
				m.ops.AuthenticateCfm(ep, true, res, nil)
			}
		case MsgAuthenticationReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.AuthenticateCfm != nil {
					m.ops.AuthenticateCfm(ep, false, nil, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	if mt != MsgAuthenticationRequest {
		m.unexpected(p, mt)
		return
	}
	req := &AuthenticationRequest{}
	if !m.parseRequest(p, authenticationRequestDesc, req, body) {
		return
	}
	if m.ops.AuthenticateInd == nil {
		m.noInd(p)
		return
	}
	m.ops.AuthenticateInd(ep, req)
}

// --- cipher

// CipherReq asks the PP to switch ciphering. The procedure completes when
// the link reports the new cipher state.
func (m *MM) CipherReq(ep *Endpoint, req *CipherRequest) error {
	p, err := m.initiate(ep, ProcCipher, func(err error) {
		if m.ops.CipherCfm != nil {
			m.ops.CipherCfm(ep, false, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	p.waitEncryption = true
	return m.start(p, MsgCipherRequest, cipherRequestDesc, req)
}

// CipherRes answers the current cipher request. Accepting switches the
// bearer cipher; rejecting sends CIPHER-REJECT with reason.
func (m *MM) CipherRes(ep *Endpoint, accept bool, reason sfmt.RejectCode) error {
	p, err := m.responder(ep, ProcCipher)
	if err != nil {
		return err
	}
	if !accept {
		return m.reply(p, MsgCipherReject, cipherRejectDesc, &Reject{RejectReason: &sfmt.RejectReason{Reason: reason}})
	}

	enable := true
	if req, ok := p.request.(*CipherRequest); ok && req.CipherInfo != nil {
		enable = req.CipherInfo.Enable
	}
	if err := m.lce.RequestEncryption(ep.Link, enable); err != nil {
		m.log.Info("Cipher switch failed",
			logger.Uint32("link", uint32(ep.Link)),
			logger.Error(err))
		rej := &Reject{RejectReason: &sfmt.RejectReason{Reason: sfmt.RejectCipherAlgorithmNotSupported}}
		if replyErr := m.reply(p, MsgCipherReject, cipherRejectDesc, rej); replyErr != nil {
			return replyErr
		}
		return err
	}
	p.waitEncryption = true
	return nil
}

func (m *MM) rxCipher(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		if mt != MsgCipherReject {
			m.unexpected(p, mt)
			return
		}
		m.rxReject(p, body, func(err error) {
			if m.ops.CipherCfm != nil {
				m.ops.CipherCfm(ep, false, err)
			}
		})
		return
	}

	if mt != MsgCipherRequest {
		m.unexpected(p, mt)
		return
	}
	req := &CipherRequest{}
	if !m.parseRequest(p, cipherRequestDesc, req, body) {
		return
	}
	if m.ops.CipherInd == nil {
		if err := m.CipherRes(ep, true, 0); err != nil {
			m.log.Debug("Automatic cipher answer failed", logger.Error(err))
		}
		return
	}
	m.ops.CipherInd(ep, req)
}

func (m *MM) cipherDone(p *Procedure, enabled bool) {
	want := true
	if req, ok := p.request.(*CipherRequest); ok && req.CipherInfo != nil {
		want = req.CipherInfo.Enable
	}
	p.waitEncryption = false
	m.succeed(p)
	if p.Role == lce.RoleInitiator && m.ops.CipherCfm != nil {
		var err error
		if enabled != want {
			err = ErrRejected
		}
		m.ops.CipherCfm(p.ep, enabled == want, err)
	}
}

// --- detach

// DetachReq announces that the PP detaches. There is no reply; the
// procedure completes once the message is sent.
func (m *MM) DetachReq(ep *Endpoint, req *Detach) error {
	p, err := m.initiate(ep, ProcDetach, nil)
	if err != nil {
		m.gc(ep)
		return err
	}
	if req.PortableIdentity == nil {
		req.PortableIdentity = m.localIdentity()
	}
	if err := m.send(p, MsgDetach, detachDesc, req); err != nil {
		m.abort(p, err)
		return err
	}
	m.complete(p)
	return nil
}

func (m *MM) rxDetach(p *Procedure, mt uint8, body []byte) {
	if mt != MsgDetach || p.Role != lce.RoleResponder {
		m.unexpected(p, mt)
		return
	}
	req := &Detach{}
	if !m.parseRequest(p, detachDesc, req, body) {
		return
	}
	ep := p.ep
	m.learnPeer(ep, req.PortableIdentity)
	p.fail = nil
	m.complete(p)
	if m.ops.DetachInd != nil {
		m.ops.DetachInd(ep, req)
	}
}

// --- identity

// IdentityReq asks the PP for identities
func (m *MM) IdentityReq(ep *Endpoint, req *IdentityRequest) error {
	p, err := m.initiate(ep, ProcIdentity, func(err error) {
		if m.ops.IdentityCfm != nil {
			m.ops.IdentityCfm(ep, false, nil, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	return m.start(p, MsgIdentityRequest, identityRequestDesc, req)
}

// IdentityRes answers the current identity request
func (m *MM) IdentityRes(ep *Endpoint, res *IdentityReply) error {
	p, err := m.responder(ep, ProcIdentity)
	if err != nil {
		return err
	}
	return m.reply(p, MsgIdentityReply, identityReplyDesc, res)
}

func (m *MM) rxIdentity(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		if mt != MsgIdentityReply {
			m.unexpected(p, mt)
			return
		}
		res := &IdentityReply{}
		if !m.parseReply(p, identityReplyDesc, res, body) {
			return
		}
		for _, ie := range res.PortableIdentity.Items {
			m.learnPeer(ep, ie.(*sfmt.PortableIdentity))
		}
		m.succeed(p)
		if m.ops.IdentityCfm != nil {
			m.ops.IdentityCfm(ep, true, res, nil)
		}
		return
	}

	if mt != MsgIdentityRequest {
		m.unexpected(p, mt)
		return
	}
	req := &IdentityRequest{}
	if !m.parseRequest(p, identityRequestDesc, req, body) {
		return
	}
	if m.ops.IdentityInd == nil {
		res := &IdentityReply{}
		res.PortableIdentity.Add(m.localIdentity())
		if err := m.IdentityRes(ep, res); err != nil {
			m.log.Debug("Automatic identity reply failed", logger.Error(err))
		}
		return
	}
	m.ops.IdentityInd(ep, req)
}

// --- locate

// LocateReq updates the PP location. A nil portable identity is filled
// with the local IPUI.
func (m *MM) LocateReq(ep *Endpoint, req *LocateRequest) error {
	p, err := m.initiate(ep, ProcLocate, func(err error) {
		if m.ops.LocateCfm != nil {
			m.ops.LocateCfm(ep, false, nil, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	if req.PortableIdentity == nil {
		req.PortableIdentity = m.localIdentity()
	}
	return m.start(p, MsgLocateRequest, locateRequestDesc, req)
}

// LocateRes accepts the current locate request. A TPUI portable identity
// in res assigns it; the procedure then waits for the acknowledgement.
func (m *MM) LocateRes(ep *Endpoint, res *LocateAccept) error {
	p, err := m.responder(ep, ProcLocate)
	if err != nil {
		return err
	}
	if res.PortableIdentity == nil {
		res.PortableIdentity = p.request.(*LocateRequest).PortableIdentity
	}
	if res.PortableIdentity.Kind != sfmt.PortableIDTPUI {
		return m.reply(p, MsgLocateAccept, locateAcceptDesc, res)
	}

	if err := m.send(p, MsgLocateAccept, locateAcceptDesc, res); err != nil {
		m.abort(p, err)
		return err
	}
	p.assigned = res.PortableIdentity
	m.arm(p, m.timeout(ProcTemporaryIdentityAssign))
	return nil
}

func (m *MM) rxLocate(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgLocateAccept:
			res := &LocateAccept{}
			if !m.parseReply(p, locateAcceptDesc, res, body) {
				return
			}
			if pi := res.PortableIdentity; pi.Kind == sfmt.PortableIDTPUI {
				m.assignTPUI(pi)
				if err := m.send(p, MsgTemporaryIdentityAssignAck, temporaryIdentityAssignAckDesc, &Ack{}); err != nil {
					m.log.Debug("Sending assign ack failed", logger.Error(err))
				}
			}
			m.succeed(p)
			if m.ops.LocateCfm != nil {
				m.ops.LocateCfm(ep, true, res, nil)
			}
		case MsgLocateReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.LocateCfm != nil {
					m.ops.LocateCfm(ep, false, nil, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	switch {
	case mt == MsgLocateRequest && p.request == nil:
		req := &LocateRequest{}
		if !m.parseRequest(p, locateRequestDesc, req, body) {
			return
		}
		m.learnPeer(ep, req.PortableIdentity)
		if m.ops.LocateInd == nil {
			m.noInd(p)
			return
		}
		m.ops.LocateInd(ep, req)
	case mt == MsgTemporaryIdentityAssignAck && p.assigned != nil:
		m.assignDone(p, nil)
	case mt == MsgTemporaryIdentityAssignReject && p.assigned != nil:
		rej := &Reject{}
		if err := m.lce.Parse(temporaryIdentityAssignRejDesc, rej, body); err != nil {
			m.log.Debug("Malformed assign reject", logger.Error(err))
		}
		m.assignDone(p, rejectError(rej))
	default:
		m.unexpected(p, mt)
	}
}

// assignDone ends a responder procedure that assigned an identity
func (m *MM) assignDone(p *Procedure, err error) {
	ep := p.ep
	p.fail = nil
	m.complete(p)
	if m.ops.TemporaryIdentityAssignCfm != nil {
		m.ops.TemporaryIdentityAssignCfm(ep, err == nil, err)
	}
}

func (m *MM) assignTPUI(pi *sfmt.PortableIdentity) {
	if pi == nil || pi.Kind != sfmt.PortableIDTPUI {
		return
	}
	m.log.Info("TPUI assigned", logger.Uint32("tpui", uint32(pi.TPUI)))
	m.lce.SetLocalTPUI(pi.TPUI)
}

// --- temporary identity assign

// TemporaryIdentityAssignReq hands the PP a new identity
func (m *MM) TemporaryIdentityAssignReq(ep *Endpoint, req *TemporaryIdentityAssign) error {
	p, err := m.initiate(ep, ProcTemporaryIdentityAssign, func(err error) {
		if m.ops.TemporaryIdentityAssignCfm != nil {
			m.ops.TemporaryIdentityAssignCfm(ep, false, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	return m.start(p, MsgTemporaryIdentityAssign, temporaryIdentityAssignDesc, req)
}

// TemporaryIdentityAssignRes acknowledges the current assignment and
// adopts the identity
func (m *MM) TemporaryIdentityAssignRes(ep *Endpoint) error {
	p, err := m.responder(ep, ProcTemporaryIdentityAssign)
	if err != nil {
		return err
	}
	if req, ok := p.request.(*TemporaryIdentityAssign); ok {
		m.assignTPUI(req.PortableIdentity)
	}
	return m.reply(p, MsgTemporaryIdentityAssignAck, temporaryIdentityAssignAckDesc, &Ack{})
}

func (m *MM) rxTemporaryIdentityAssign(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgTemporaryIdentityAssignAck:
			if !m.parseReply(p, temporaryIdentityAssignAckDesc, &Ack{}, body) {
				return
			}
			m.succeed(p)
			if m.ops.TemporaryIdentityAssignCfm != nil {
				m.ops.TemporaryIdentityAssignCfm(ep, true, nil)
			}
		case MsgTemporaryIdentityAssignReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.TemporaryIdentityAssignCfm != nil {
					m.ops.TemporaryIdentityAssignCfm(ep, false, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	if mt != MsgTemporaryIdentityAssign {
		m.unexpected(p, mt)
		return
	}
	req := &TemporaryIdentityAssign{}
	if !m.parseRequest(p, temporaryIdentityAssignDesc, req, body) {
		return
	}
	if m.ops.TemporaryIdentityAssignInd == nil {
		if err := m.TemporaryIdentityAssignRes(ep); err != nil {
			m.log.Debug("Automatic assign ack failed", logger.Error(err))
		}
		return
	}
	m.ops.TemporaryIdentityAssignInd(ep, req)
}

// --- parameter retrieval

// InfoReq retrieves network parameters from the FP
func (m *MM) InfoReq(ep *Endpoint, req *InfoRequest) error {
	p, err := m.initiate(ep, ProcParameterRetrieval, func(err error) {
		if m.ops.InfoCfm != nil {
			m.ops.InfoCfm(ep, false, nil, err)
		}
	})
	if err != nil {
		m.gc(ep)
		return err
	}
	return m.start(p, MsgInfoRequest, infoRequestDesc, req)
}

// InfoRes supplies the requested parameters
func (m *MM) InfoRes(ep *Endpoint, res *InfoAccept) error {
	p, err := m.responder(ep, ProcParameterRetrieval)
	if err != nil {
		return err
	}
	return m.reply(p, MsgInfoAccept, infoAcceptDesc, res)
}

func (m *MM) rxInfo(p *Procedure, mt uint8, body []byte) {
	ep := p.ep
	if p.Role == lce.RoleInitiator {
		switch mt {
		case MsgInfoAccept:
			res := &InfoAccept{}
			if !m.parseReply(p, infoAcceptDesc, res, body) {
				return
			}
			m.succeed(p)
			if m.ops.InfoCfm != nil {
				m.ops.InfoCfm(ep, true, res, nil)
			}
		case MsgInfoReject:
			m.rxReject(p, body, func(err error) {
				if m.ops.InfoCfm != nil {
					m.ops.InfoCfm(ep, false, nil, err)
				}
			})
		default:
			m.unexpected(p, mt)
		}
		return
	}

	if mt != MsgInfoRequest {
		m.unexpected(p, mt)
		return
	}
	req := &InfoRequest{}
	if !m.parseRequest(p, infoRequestDesc, req, body) {
		return
	}
	if m.ops.InfoInd == nil {
		m.noInd(p)
		return
	}
	m.ops.InfoInd(ep, req)
}
