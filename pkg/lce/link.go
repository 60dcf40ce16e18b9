package lce

import (
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
)

// LinkID identifies a data link within an LCE
type LinkID uint32

// LinkState is the data link state
type LinkState uint8

// Suspended, SuspendPending and ResumePending are never entered: link
// suspension is not used by the supported profiles.
const (
	LinkReleased LinkState = iota
	LinkEstablishPending
	LinkEstablished
	LinkReleasePending
	LinkSuspended
	LinkSuspendPending
	LinkResumePending
)

func (s LinkState) String() string {
	switch s {
	case LinkReleased:
		return "released"
	case LinkEstablishPending:
		return "establish-pending"
	case LinkEstablished:
		return "established"
	case LinkReleasePending:
		return "release-pending"
	case LinkSuspended:
		return "suspended"
	case LinkSuspendPending:
		return "suspend-pending"
	case LinkResumePending:
		return "resume-pending"
	default:
		return "unknown"
	}
}

// Bearer is the DLC connection underneath a data link
type Bearer interface {
	Send(frame []byte) error
	// CloseWrite starts an orderly release; the peer's close completes it
	CloseWrite() error
	Close() error
}

// Encrypter is implemented by bearers that can switch ciphering
type Encrypter interface {
	SetEncryption(enabled bool) error
}

// Transport establishes bearers and broadcasts pages
type Transport interface {
	// Dial starts connecting to peer. The host reports completion with
	// BearerWritable or BearerClosed.
	Dial(link LinkID, peer identity.IPUI) (Bearer, error)
	// Page broadcasts a B-Format page
	Page(data []byte) error
}

// DataLink is a DLC link to one peer carrying transactions of any protocol
type DataLink struct {
	ID      LinkID
	State   LinkState
	Peer    identity.IPUI
	HasPeer bool
	Created time.Time

	bearer       Bearer
	queue        [][]byte
	transactions map[taKey]*Transaction
	encrypted    bool
	shutting     bool
	destroyed    bool

	releaseTimer event.Timer
	partialTimer event.Timer

	// paging state of a bearer-less link waiting for a page response
	paging    bool
	pageTPUI  identity.TPUI
	pageCount int
	pageTimer event.Timer
}

func newDataLink(id LinkID, now time.Time) *DataLink {
	return &DataLink{
		ID:           id,
		Created:      now,
		transactions: make(map[taKey]*Transaction),
	}
}

// usable reports whether new transactions may be started on the link
func (dl *DataLink) usable() bool {
	if dl.shutting || dl.destroyed {
		return false
	}
	return dl.State == LinkEstablished || dl.State == LinkEstablishPending
}

func stopTimer(t event.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (dl *DataLink) stopTimers() {
	stopTimer(dl.releaseTimer)
	stopTimer(dl.partialTimer)
	stopTimer(dl.pageTimer)
}

// LinkInfo is a snapshot of a data link
type LinkInfo struct {
	ID           LinkID    `json:"id"`
	State        string    `json:"state"`
	Peer         string    `json:"peer,omitempty"`
	Transactions int       `json:"transactions"`
	Queued       int       `json:"queued"`
	Encrypted    bool      `json:"encrypted"`
	Paging       bool      `json:"paging"`
	Created      time.Time `json:"created"`
}

func (dl *DataLink) info() LinkInfo {
	li := LinkInfo{
		ID:           dl.ID,
		State:        dl.State.String(),
		Transactions: len(dl.transactions),
		Queued:       len(dl.queue),
		Encrypted:    dl.encrypted,
		Paging:       dl.paging,
		Created:      dl.Created,
	}
	if dl.HasPeer {
		li.Peer = dl.Peer.String()
	}
	return li
}
