// Package clms implements the ConnectionLess Message Service. Every
// message travels on its own transaction which is closed right after
// sending or receiving it.
package clms

import (
	"fmt"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// MsgVariable is the CLMS-VARIABLE message type
const MsgVariable uint8 = 0x01

var (
	pNone = sfmt.PolicyNone
	pOpt  = sfmt.PolicyOptional
)

// Variable is a connectionless message of variable length
type Variable struct {
	PortableIdentity   *sfmt.PortableIdentity
	Display            *sfmt.Display
	EventsNotification *sfmt.EventsNotification
	TimeDate           *sfmt.TimeDate
	IWUToIWU           *sfmt.IWUToIWU
	Escape             *sfmt.EscapeToProprietary
}

var variableDesc = sfmt.NewMsgDesc("CLMS-VARIABLE",
	sfmt.Optional(sfmt.IEPortableIdentity),
	sfmt.Desc(sfmt.IEMultiDisplay, pOpt, pNone),
	sfmt.Desc(sfmt.IEEventsNotification, pOpt, pNone),
	sfmt.Desc(sfmt.IETimeDate, pOpt, pNone),
	sfmt.Optional(sfmt.IEIWUToIWU),
	sfmt.Optional(sfmt.IEEscapeToProprietary),
)

func (m *Variable) Slots() []sfmt.Slot {
	return []sfmt.Slot{
		sfmt.Ref(&m.PortableIdentity),
		sfmt.Ref(&m.Display),
		sfmt.Ref(&m.EventsNotification),
		sfmt.Ref(&m.TimeDate),
		sfmt.Ref(&m.IWUToIWU),
		sfmt.Ref(&m.Escape),
	}
}

// Ops are the application callbacks
type Ops struct {
	// VariableInd reports a received message and the link it came on
	VariableInd func(link lce.LinkID, msg *Variable)
}

// CLMS is the connectionless message entity
type CLMS struct {
	lce *lce.LCE
	ops Ops
	log *logger.Logger
}

// New creates the CLMS entity and registers it with the LCE
func New(l *lce.LCE, ops Ops, log *logger.Logger) (*CLMS, error) {
	if log == nil {
		log = logger.Nop()
	}
	c := &CLMS{lce: l, ops: ops, log: log.WithComponent("clms")}
	if err := l.RegisterProtocol(lce.PDCLMS, 0, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SendVariable sends msg to peer. In PP mode peer is ignored. The link
// stays up for the partial release timeout after the message left.
func (c *CLMS) SendVariable(peer identity.IPUI, msg *Variable) error {
	link, err := c.lce.LinkFor(peer)
	if err != nil {
		return err
	}
	ta, err := c.lce.OpenTransaction(lce.PDCLMS, link)
	if err != nil {
		return err
	}
	defer c.lce.CloseTransaction(ta, lce.ReleasePartial)

	if err := c.lce.Send(ta, MsgVariable, variableDesc, msg); err != nil {
		return fmt.Errorf("sending %s: %w", variableDesc.Name, err)
	}
	c.log.Debug("Message sent",
		logger.Uint32("link", uint32(link)),
		logger.String("peer", peer.String()))
	return nil
}

// Open handles a received message. No transaction is kept.
func (c *CLMS) Open(ta *lce.Transaction, mt uint8, body []byte) {
	if mt != MsgVariable {
		c.log.Debug("Unknown message", logger.Int("msg_type", int(mt)))
		return
	}
	msg := &Variable{}
	if err := c.lce.Parse(variableDesc, msg, body); err != nil {
		c.log.Info("Invalid message", logger.String("ta", ta.String()), logger.Error(err))
		return
	}
	if c.ops.VariableInd != nil {
		c.ops.VariableInd(ta.Link, msg)
	}
	c.lce.CloseTransaction(ta, lce.ReleasePartial)
}

// Receive is never called: transactions close after one message
func (c *CLMS) Receive(ta *lce.Transaction, mt uint8, body []byte) {
	c.Open(ta, mt, body)
}

// Shutdown has nothing to clean up
func (c *CLMS) Shutdown(ta *lce.Transaction) {}
