package peer

import (
	"sort"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
)

// PeerManager manages all known portables in a thread-safe manner
type PeerManager struct {
	peers map[identity.IPUI]*Peer
	mu    sync.RWMutex
}

// NewPeerManager creates a new peer manager
func NewPeerManager() *PeerManager {
	return &PeerManager{
		peers: make(map[identity.IPUI]*Peer),
	}
}

// AddPeer returns the peer for ipui, creating it when unknown
func (pm *PeerManager) AddPeer(ipui identity.IPUI) *Peer {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if peer, exists := pm.peers[ipui]; exists {
		return peer
	}
	peer := NewPeer(ipui)
	pm.peers[ipui] = peer
	return peer
}

// GetPeer retrieves a peer by IPUI
func (pm *PeerManager) GetPeer(ipui identity.IPUI) *Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.peers[ipui]
}

// GetPeerByLink retrieves the peer bound to a data link
func (pm *PeerManager) GetPeerByLink(link lce.LinkID) *Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, peer := range pm.peers {
		if l, ok := peer.GetLink(); ok && l == link {
			return peer
		}
	}
	return nil
}

// GetPeerByExtension retrieves a peer by its dialling number
func (pm *PeerManager) GetPeerByExtension(ext string) *Peer {
	if ext == "" {
		return nil
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for _, peer := range pm.peers {
		if peer.GetExtension() == ext {
			return peer
		}
	}
	return nil
}

// RemovePeer removes a peer by IPUI
func (pm *PeerManager) RemovePeer(ipui identity.IPUI) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.peers, ipui)
}

// GetAllPeers returns all peers ordered by IPUI
func (pm *PeerManager) GetAllPeers() []*Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	peers := make([]*Peer, 0, len(pm.peers))
	for _, peer := range pm.peers {
		peers = append(peers, peer)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].IPUI.String() < peers[j].IPUI.String()
	})
	return peers
}

// Snapshots copies all peers
func (pm *PeerManager) Snapshots() []Snapshot {
	peers := pm.GetAllPeers()
	out := make([]Snapshot, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.Snapshot())
	}
	return out
}

// Count returns the number of known peers
func (pm *PeerManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.peers)
}

// CountAttached returns the number of attached peers
func (pm *PeerManager) CountAttached() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	n := 0
	for _, peer := range pm.peers {
		if peer.GetState() == StateAttached {
			n++
		}
	}
	return n
}

// DetachTimedOutPeers marks attached peers without a link that have not
// been heard from within timeout as detached and returns them
func (pm *PeerManager) DetachTimedOutPeers(timeout time.Duration) []*Peer {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var detached []*Peer
	for _, peer := range pm.peers {
		if _, online := peer.GetLink(); online {
			continue
		}
		if peer.GetState() == StateAttached && peer.IsTimedOut(timeout) {
			peer.SetState(StateDetached)
			detached = append(detached, peer)
		}
	}
	return detached
}
