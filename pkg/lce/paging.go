package lce

import (
	"fmt"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// LCE message types
const (
	MsgPageResponse uint8 = 0x71
	MsgPageReject   uint8 = 0x72
)

// PageResponse is the LCE-PAGE-RESPONSE message
type PageResponse struct {
	PortableIdentity    *sfmt.PortableIdentity
	FixedIdentity       *sfmt.FixedIdentity
	NWKAssignedIdentity *sfmt.NWKAssignedIdentity
	CipherInfo          *sfmt.CipherInfo
	EscapeToProprietary *sfmt.EscapeToProprietary
}

// PageResponseDesc describes LCE-PAGE-RESPONSE
var PageResponseDesc = sfmt.NewMsgDesc("LCE-PAGE-RESPONSE",
	sfmt.Desc(sfmt.IEPortableIdentity, sfmt.PolicyNone, sfmt.PolicyMandatory),
	sfmt.Desc(sfmt.IEFixedIdentity, sfmt.PolicyNone, sfmt.PolicyOptional),
	sfmt.Desc(sfmt.IENWKAssignedIdentity, sfmt.PolicyNone, sfmt.PolicyOptional),
	sfmt.Desc(sfmt.IECipherInfo, sfmt.PolicyNone, sfmt.PolicyOptional),
	sfmt.Desc(sfmt.IEEscapeToProprietary, sfmt.PolicyNone, sfmt.PolicyOptional),
)

func (m *PageResponse) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.NWKAssignedIdentity),
		sfmt.Ref(&m.CipherInfo),
		sfmt.Ref(&m.EscapeToProprietary),
	}
}

// PageReject is the LCE-PAGE-REJECT message
type PageReject struct {
	PortableIdentity    *sfmt.PortableIdentity
	FixedIdentity       *sfmt.FixedIdentity
	RejectReason        *sfmt.RejectReason
	EscapeToProprietary *sfmt.EscapeToProprietary
}

// PageRejectDesc describes LCE-PAGE-REJECT
var PageRejectDesc = sfmt.NewMsgDesc("LCE-PAGE-REJECT",
	sfmt.Desc(sfmt.IEPortableIdentity, sfmt.PolicyMandatory, sfmt.PolicyNone),
	sfmt.Desc(sfmt.IEFixedIdentity, sfmt.PolicyOptional, sfmt.PolicyNone),
	sfmt.Desc(sfmt.IERejectReason, sfmt.PolicyOptional, sfmt.PolicyNone),
	sfmt.Desc(sfmt.IEEscapeToProprietary, sfmt.PolicyOptional, sfmt.PolicyNone),
)

func (m *PageReject) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.FixedIdentity),
		sfmt.Ref(&m.RejectReason),
		sfmt.Ref(&m.EscapeToProprietary),
	}
}

const (
	shortPageHeader = 0x1
	// ShortPageSize is the length of a short format page
	ShortPageSize = 3
)

// EncodeShortPage builds a short format B-Format page: a 4-bit header
// followed by the 20-bit TPUI.
func EncodeShortPage(t identity.TPUI) []byte {
	return []byte{
		shortPageHeader<<4 | byte(t>>16)&0x0f,
		byte(t >> 8),
		byte(t),
	}
}

// DecodeShortPage decodes a short format page
func DecodeShortPage(b []byte) (identity.TPUI, error) {
	if len(b) != ShortPageSize {
		return 0, fmt.Errorf("page: bad length %d", len(b))
	}
	if b[0]>>4 != shortPageHeader {
		return 0, fmt.Errorf("page: unsupported header %#x", b[0]>>4)
	}
	return identity.TPUI(b[0]&0x0f)<<16 | identity.TPUI(b[1])<<8 | identity.TPUI(b[2]), nil
}

func (l *LCE) tpuiFor(peer identity.IPUI) identity.TPUI {
	if l.cfg.TPUIFor != nil {
		return l.cfg.TPUIFor(peer)
	}
	return identity.DefaultTPUI(peer)
}

// page allocates a bearer-less link for peer and starts paging it
func (l *LCE) page(peer identity.IPUI) (LinkID, error) {
	dl := l.newLink()
	dl.State = LinkEstablishPending
	dl.Peer, dl.HasPeer = peer, true
	dl.paging = true
	dl.pageTPUI = l.tpuiFor(peer)

	if err := l.sendPage(dl); err != nil {
		l.destroy(dl)
		return 0, &LinkError{Link: dl.ID, Reason: ConnectFailed, Err: err}
	}
	l.log.Info("Paging portable",
		logger.Uint32("link", uint32(dl.ID)),
		logger.String("ipui", peer.String()),
		logger.String("tpui", fmt.Sprintf("%05x", uint32(dl.pageTPUI))))
	return dl.ID, nil
}

func (l *LCE) sendPage(dl *DataLink) error {
	if err := l.transport.Page(EncodeShortPage(dl.pageTPUI)); err != nil {
		return err
	}
	dl.pageTimer = l.sched.AfterFunc(l.cfg.PageTimeout, func() { l.pageTimeout(dl) })
	l.emit(Event{Type: EventPage, Link: dl.ID, Detail: fmt.Sprintf("attempt %d", dl.pageCount+1)})
	return nil
}

func (l *LCE) pageTimeout(dl *DataLink) {
	if dl.destroyed || !dl.paging {
		return
	}
	if dl.pageCount >= l.cfg.PageRetries {
		l.log.Info("Paging failed",
			logger.Uint32("link", uint32(dl.ID)),
			logger.Int("attempts", dl.pageCount+1))
		l.shutdownLink(dl, Timeout, nil)
		return
	}
	dl.pageCount++
	if err := l.sendPage(dl); err != nil {
		l.log.Warn("Page retransmission failed",
			logger.Uint32("link", uint32(dl.ID)),
			logger.Error(err))
		l.shutdownLink(dl, ConnectFailed, err)
	}
}

// pagingLink returns the pending paging link matching a page response
func (l *LCE) pagingLink(pi *sfmt.PortableIdentity) *DataLink {
	for _, dl := range l.links {
		if !dl.paging || dl.destroyed {
			continue
		}
		switch pi.Kind {
		case sfmt.PortableIDIPUI:
			if dl.Peer == pi.IPUI {
				return dl
			}
		case sfmt.PortableIDTPUI:
			if dl.pageTPUI == pi.TPUI {
				return dl
			}
		}
	}
	return nil
}

// lceTransaction is the unregistered transaction carrying LCE messages
func lceTransaction(link LinkID, tv uint8, role Role) *Transaction {
	return &Transaction{PD: PDLCE, TV: tv, Role: role, State: TransactionPending, Link: link}
}

func (l *LCE) receiveLCE(dl *DataLink, h Header, body []byte) {
	switch {
	case h.MsgType == MsgPageResponse && l.cfg.Mode == ModeFP:
		l.receivePageResponse(dl, h, body)
	case h.MsgType == MsgPageReject && l.cfg.Mode == ModePP:
		msg := &PageReject{}
		if err := l.Parse(PageRejectDesc, msg, body); err != nil {
			l.drop(dl, h, err.Error())
			return
		}
		reason := "none"
		if msg.RejectReason != nil {
			reason = msg.RejectReason.Reason.String()
		}
		l.log.Info("Page rejected",
			logger.Uint32("link", uint32(dl.ID)),
			logger.String("reason", reason))
		if len(dl.transactions) == 0 {
			l.release(dl)
		}
	default:
		l.drop(dl, h, "unexpected LCE message")
	}
}

func (l *LCE) receivePageResponse(dl *DataLink, h Header, body []byte) {
	msg := &PageResponse{}
	if err := l.Parse(PageResponseDesc, msg, body); err != nil {
		l.drop(dl, h, err.Error())
		l.release(dl)
		return
	}

	pending := l.pagingLink(msg.PortableIdentity)
	if pending == nil {
		l.log.Info("Unsolicited page response",
			logger.Uint32("link", uint32(dl.ID)))
		ta := lceTransaction(dl.ID, h.TV, h.LocalRole())
		rej := &PageReject{
			PortableIdentity: msg.PortableIdentity,
			RejectReason:     &sfmt.RejectReason{Reason: sfmt.RejectIPUIUnknown},
		}
		if err := l.Send(ta, MsgPageReject, PageRejectDesc, rej); err != nil {
			l.log.Debug("Sending page reject failed", logger.Error(err))
		}
		if len(dl.transactions) == 0 {
			l.release(dl)
		}
		return
	}
	l.fuse(pending, dl)
}

// fuse moves the state of a paging link onto the link that answered the
// page and destroys the paging link
func (l *LCE) fuse(pending, dl *DataLink) {
	stopTimer(pending.pageTimer)
	pending.paging = false
	stopTimer(dl.partialTimer)
	dl.Peer, dl.HasPeer = pending.Peer, true

	for key, ta := range pending.transactions {
		if _, taken := dl.transactions[key]; taken {
			l.log.Warn("Transaction collision on page response",
				logger.String("ta", ta.String()))
			continue
		}
		ta.Link = dl.ID
		dl.transactions[key] = ta
		delete(pending.transactions, key)
	}
	queue := pending.queue
	pending.queue = nil
	for _, frame := range queue {
		if err := l.transmit(dl, frame); err != nil {
			l.log.Warn("Flushing paged message failed",
				logger.Uint32("link", uint32(dl.ID)),
				logger.Error(err))
			break
		}
	}

	l.log.Info("Page response",
		logger.Uint32("link", uint32(dl.ID)),
		logger.Uint32("paging_link", uint32(pending.ID)),
		logger.String("ipui", dl.Peer.String()),
		logger.Int("transactions", len(dl.transactions)),
		logger.Int("queued", len(queue)))
	l.emit(Event{Type: EventPageResponse, Link: dl.ID, Detail: fmt.Sprintf("from link %d", pending.ID)})

	for _, p := range l.sortedProtocols() {
		if rb, ok := p.handler.(Rebinder); ok {
			rb.Rebind(pending.ID, dl.ID)
		}
	}

	if len(pending.transactions) > 0 {
		l.shutdownLink(pending, PeerReset, nil)
	} else {
		l.destroy(pending)
	}
	l.idle(dl)
}

// PageIndication handles a received B-Format page in PP mode. A page for
// the local TPUI is answered with LCE-PAGE-RESPONSE on a link to the FP.
func (l *LCE) PageIndication(data []byte) {
	if l.cfg.Mode != ModePP {
		return
	}
	tpui, err := DecodeShortPage(data)
	if err != nil {
		l.log.Debug("Page dropped", logger.Error(err))
		return
	}
	if tpui != l.localTPUI() {
		return
	}

	id, err := l.LinkFor(identity.IPUI{})
	if err != nil {
		l.log.Warn("Answering page failed", logger.Error(err))
		return
	}
	ta := lceTransaction(id, 0, RoleInitiator)
	msg := &PageResponse{
		PortableIdentity: &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: l.cfg.LocalIPUI},
	}
	if err := l.Send(ta, MsgPageResponse, PageResponseDesc, msg); err != nil {
		l.log.Warn("Sending page response failed", logger.Error(err))
		return
	}
	l.log.Info("Page answered", logger.Uint32("link", uint32(id)))
	l.emit(Event{Type: EventPageResponse, Link: id})
	if dl, ok := l.links[id]; ok {
		l.idle(dl)
	}
}
