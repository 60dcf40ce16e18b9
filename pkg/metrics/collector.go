package metrics

import (
	"sync"

	"github.com/dbehnke/dect-nwk/pkg/lce"
)

// Collector collects NWK layer metrics
type Collector struct {
	mu sync.RWMutex

	// Link metrics
	totalLinks  uint64
	activeLinks map[lce.LinkID]bool

	// Message metrics, keyed by protocol discriminator
	messagesReceived map[lce.PD]uint64
	messagesSent     map[lce.PD]uint64
	messagesDropped  uint64
	bytesReceived    uint64
	bytesSent        uint64

	// Paging metrics
	pagesSent     uint64
	pageResponses uint64

	// Mobility management metrics
	locates       uint64
	accessRights  uint64
	accessDenied  uint64
	attached      map[string]bool // key: IPUI string
	callsTotal    uint64
	callsAnswered uint64
	activeCalls   map[uint64]bool // key: call ID
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		activeLinks:      make(map[lce.LinkID]bool),
		messagesReceived: make(map[lce.PD]uint64),
		messagesSent:     make(map[lce.PD]uint64),
		attached:         make(map[string]bool),
		activeCalls:      make(map[uint64]bool),
	}
}

// Observe accounts an LCE event. It has the lce.Observer signature.
func (c *Collector) Observe(ev lce.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case lce.EventLinkEstablished:
		c.totalLinks++
		c.activeLinks[ev.Link] = true
	case lce.EventLinkReleased:
		delete(c.activeLinks, ev.Link)
	case lce.EventMessageIn:
		c.messagesReceived[ev.PD]++
	case lce.EventMessageOut:
		c.messagesSent[ev.PD]++
	case lce.EventDropped:
		c.messagesDropped++
	case lce.EventPage:
		c.pagesSent++
	case lce.EventPageResponse:
		c.pageResponses++
	}
}

// BytesReceived records received bytes
func (c *Collector) BytesReceived(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytesReceived += bytes
}

// BytesSent records sent bytes
func (c *Collector) BytesSent(bytes uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.bytesSent += bytes
}

// PortableAttached records a completed location registration
func (c *Collector) PortableAttached(ipui string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.locates++
	c.attached[ipui] = true
}

// PortableDetached records a detach or a timed out portable
func (c *Collector) PortableDetached(ipui string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.attached, ipui)
}

// AccessRightsGranted records a successful subscription
func (c *Collector) AccessRightsGranted() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accessRights++
}

// AccessDenied records a rejected access rights or locate request
func (c *Collector) AccessDenied() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.accessDenied++
}

// CallStarted records a call setup
func (c *Collector) CallStarted(callID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.callsTotal++
	c.activeCalls[callID] = true
}

// CallAnswered records a call reaching the active state
func (c *Collector) CallAnswered(callID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeCalls[callID] {
		c.callsAnswered++
	}
}

// CallEnded records a call release
func (c *Collector) CallEnded(callID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.activeCalls, callID)
}

// Reset resets all gauges (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeLinks = make(map[lce.LinkID]bool)
	c.attached = make(map[string]bool)
	c.activeCalls = make(map[uint64]bool)
	// Note: cumulative counters are kept
}

// Getters for metrics

// GetTotalLinks returns the number of links ever established
func (c *Collector) GetTotalLinks() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalLinks
}

// GetActiveLinks returns the number of established links
func (c *Collector) GetActiveLinks() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeLinks)
}

// GetMessagesReceived returns messages received per protocol
func (c *Collector) GetMessagesReceived() map[lce.PD]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyCounts(c.messagesReceived)
}

// GetMessagesSent returns messages sent per protocol
func (c *Collector) GetMessagesSent() map[lce.PD]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyCounts(c.messagesSent)
}

// GetMessagesDropped returns the number of discarded frames
func (c *Collector) GetMessagesDropped() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.messagesDropped
}

// GetBytesReceived returns total bytes received
func (c *Collector) GetBytesReceived() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesReceived
}

// GetBytesSent returns total bytes sent
func (c *Collector) GetBytesSent() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bytesSent
}

// GetPagesSent returns total pages broadcast
func (c *Collector) GetPagesSent() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pagesSent
}

// GetPageResponses returns total page responses
func (c *Collector) GetPageResponses() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageResponses
}

// GetLocates returns total completed location registrations
func (c *Collector) GetLocates() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locates
}

// GetAttached returns the number of attached portables
func (c *Collector) GetAttached() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.attached)
}

// GetAccessRights returns total granted subscriptions
func (c *Collector) GetAccessRights() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessRights
}

// GetAccessDenied returns total rejected requests
func (c *Collector) GetAccessDenied() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessDenied
}

// GetCallsTotal returns total call setups
func (c *Collector) GetCallsTotal() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callsTotal
}

// GetCallsAnswered returns total answered calls
func (c *Collector) GetCallsAnswered() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.callsAnswered
}

// GetActiveCalls returns the number of calls in progress
func (c *Collector) GetActiveCalls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.activeCalls)
}

func copyCounts(m map[lce.PD]uint64) map[lce.PD]uint64 {
	out := make(map[lce.PD]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
