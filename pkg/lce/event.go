package lce

import (
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
)

// EventType classifies LCE events delivered to observers
type EventType string

const (
	EventLinkEstablished   EventType = "link_established"
	EventLinkReleased      EventType = "link_released"
	EventTransactionOpen   EventType = "transaction_open"
	EventTransactionClosed EventType = "transaction_closed"
	EventPage              EventType = "page"
	EventPageResponse      EventType = "page_response"
	EventMessageIn         EventType = "message_in"
	EventMessageOut        EventType = "message_out"
	EventDropped           EventType = "dropped"
)

// Event describes something that happened in the LCE
type Event struct {
	Type    EventType
	Time    time.Time
	Link    LinkID
	Peer    identity.IPUI
	HasPeer bool
	PD      PD
	TV      uint8
	MsgType uint8
	Detail  string
}

// Observer receives LCE events on the scheduler goroutine. Observers must
// not block.
type Observer func(ev Event)
