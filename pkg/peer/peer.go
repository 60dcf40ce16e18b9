// Package peer tracks the portables currently known to a fixed part.
// The tracker is shared between the event loop and the web API and is
// safe for concurrent use.
package peer

import (
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
)

// State is the attach state of a portable
type State int

const (
	StateDetached State = iota
	StateRegistering
	StateAttached
)

// String returns the string representation of the attach state
func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateRegistering:
		return "registering"
	case StateAttached:
		return "attached"
	default:
		return "unknown"
	}
}

// Peer is a portable seen by the fixed part
type Peer struct {
	IPUI      identity.IPUI
	TPUI      identity.TPUI
	Extension string
	State     State

	// Link is the data link currently carrying the portable, valid while
	// HasLink is set
	Link    lce.LinkID
	HasLink bool

	AttachedAt time.Time
	LastHeard  time.Time

	MessagesReceived uint64
	MessagesSent     uint64
	Calls            uint64

	mu sync.RWMutex
}

// NewPeer creates a detached peer
func NewPeer(ipui identity.IPUI) *Peer {
	return &Peer{
		IPUI:  ipui,
		TPUI:  identity.DefaultTPUI(ipui),
		State: StateDetached,
	}
}

// SetState updates the attach state. Entering StateAttached stamps the
// attach time.
func (p *Peer) SetState(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if state == StateAttached && p.State != StateAttached {
		p.AttachedAt = time.Now()
	}
	p.State = state
}

// GetState returns the attach state
func (p *Peer) GetState() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.State
}

// SetLink binds the peer to a data link
func (p *Peer) SetLink(link lce.LinkID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Link, p.HasLink = link, true
	p.LastHeard = time.Now()
}

// ClearLink forgets link if it is the one the peer is bound to
func (p *Peer) ClearLink(link lce.LinkID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.HasLink || p.Link != link {
		return false
	}
	p.HasLink = false
	return true
}

// GetLink returns the bound link
func (p *Peer) GetLink() (lce.LinkID, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Link, p.HasLink
}

// SetTPUI records an assigned temporary identity
func (p *Peer) SetTPUI(t identity.TPUI) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TPUI = t
}

// GetTPUI returns the temporary identity used to page the portable
func (p *Peer) GetTPUI() identity.TPUI {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.TPUI
}

// SetExtension records the dialling number of the portable
func (p *Peer) SetExtension(ext string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Extension = ext
}

// GetExtension returns the dialling number
func (p *Peer) GetExtension() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Extension
}

// UpdateLastHeard updates the last heard timestamp to now
func (p *Peer) UpdateLastHeard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.LastHeard = time.Now()
}

// GetLastHeard returns the last heard timestamp
func (p *Peer) GetLastHeard() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.LastHeard
}

// IsTimedOut reports whether the peer was not heard within timeout
func (p *Peer) IsTimedOut(timeout time.Duration) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.LastHeard.IsZero() {
		return true
	}
	return time.Since(p.LastHeard) > timeout
}

// IncrementReceived counts a message from the portable
func (p *Peer) IncrementReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MessagesReceived++
	p.LastHeard = time.Now()
}

// IncrementSent counts a message to the portable
func (p *Peer) IncrementSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MessagesSent++
}

// IncrementCalls counts a call of the portable
func (p *Peer) IncrementCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
}

// Snapshot is a copy of a peer safe to hand to other goroutines
type Snapshot struct {
	IPUI             string    `json:"ipui"`
	TPUI             string    `json:"tpui"`
	Extension        string    `json:"extension,omitempty"`
	State            string    `json:"state"`
	Link             uint32    `json:"link,omitempty"`
	Online           bool      `json:"online"`
	AttachedAt       time.Time `json:"attached_at,omitempty"`
	LastHeard        time.Time `json:"last_heard,omitempty"`
	MessagesReceived uint64    `json:"messages_received"`
	MessagesSent     uint64    `json:"messages_sent"`
	Calls            uint64    `json:"calls"`
}

// Snapshot copies the peer
func (p *Peer) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{
		IPUI:             p.IPUI.String(),
		TPUI:             p.TPUI.String(),
		Extension:        p.Extension,
		State:            p.State.String(),
		Online:           p.HasLink,
		AttachedAt:       p.AttachedAt,
		LastHeard:        p.LastHeard,
		MessagesReceived: p.MessagesReceived,
		MessagesSent:     p.MessagesSent,
		Calls:            p.Calls,
	}
	if p.HasLink {
		s.Link = uint32(p.Link)
	}
	return s
}

// GetUptime returns how long the portable has been attached
func (p *Peer) GetUptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.State != StateAttached || p.AttachedAt.IsZero() {
		return 0
	}
	return time.Since(p.AttachedAt)
}
