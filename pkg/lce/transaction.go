package lce

import "fmt"

// TransactionState tracks whether a transaction is registered on its link
type TransactionState uint8

const (
	TransactionPending TransactionState = iota // synthetic, not yet confirmed
	TransactionOpen
	TransactionClosed
)

func (s TransactionState) String() string {
	switch s {
	case TransactionPending:
		return "pending"
	case TransactionOpen:
		return "open"
	default:
		return "closed"
	}
}

// ReleasePolicy is applied to the link when its last transaction closes
type ReleasePolicy uint8

const (
	// ReleaseNormal releases the link at once
	ReleaseNormal ReleasePolicy = iota
	// ReleasePartial keeps the link for the partial release timeout so a
	// follow-up transaction can reuse it
	ReleasePartial
)

// Transaction is one request/response exchange of a protocol on a link.
// It is unique per (PD, TV, Role) within its link.
type Transaction struct {
	ID    uint64
	PD    PD
	TV    uint8
	Role  Role
	State TransactionState
	Link  LinkID
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s/%d/%s@%d", t.PD, t.TV, t.Role, t.Link)
}

func (t *Transaction) key() taKey {
	return taKey{pd: t.PD, tv: t.TV, role: t.Role}
}

type taKey struct {
	pd   PD
	tv   uint8
	role Role
}

// header returns the header for a message sent on this transaction
func (t *Transaction) header(mt uint8) Header {
	return Header{Flag: t.Role == RoleResponder, TV: t.TV, PD: t.PD, MsgType: mt}
}
