package peer

import (
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
)

func portable(psn uint32) identity.IPUI {
	return identity.IPUI{Type: identity.IPUITypeN, IPEI: identity.IPEI{EMC: 0x08ae, PSN: psn}}
}

func TestPeerManager_New(t *testing.T) {
	mgr := NewPeerManager()

	if mgr == nil {
		t.Fatal("NewPeerManager returned nil")
	}
	if mgr.Count() != 0 {
		t.Errorf("Expected 0 peers, got %d", mgr.Count())
	}
}

func TestPeerManager_AddPeer(t *testing.T) {
	mgr := NewPeerManager()

	peer := mgr.AddPeer(portable(1))
	if peer == nil {
		t.Fatal("AddPeer returned nil")
	}
	if peer.IPUI != portable(1) {
		t.Errorf("Expected IPUI %s, got %s", portable(1), peer.IPUI)
	}

	// adding again returns the same peer
	if again := mgr.AddPeer(portable(1)); again != peer {
		t.Error("AddPeer created a duplicate")
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 peer, got %d", mgr.Count())
	}
}

func TestPeerManager_Lookups(t *testing.T) {
	mgr := NewPeerManager()
	a := mgr.AddPeer(portable(1))
	b := mgr.AddPeer(portable(2))
	a.SetExtension("11")
	b.SetExtension("12")
	b.SetLink(lce.LinkID(5))

	if got := mgr.GetPeer(portable(2)); got != b {
		t.Error("GetPeer returned wrong peer")
	}
	if got := mgr.GetPeer(portable(3)); got != nil {
		t.Error("Expected nil for unknown peer")
	}
	if got := mgr.GetPeerByLink(lce.LinkID(5)); got != b {
		t.Error("GetPeerByLink returned wrong peer")
	}
	if got := mgr.GetPeerByLink(lce.LinkID(6)); got != nil {
		t.Error("Expected nil for unknown link")
	}
	if got := mgr.GetPeerByExtension("11"); got != a {
		t.Error("GetPeerByExtension returned wrong peer")
	}
	if got := mgr.GetPeerByExtension(""); got != nil {
		t.Error("Empty extension matched a peer")
	}
}

func TestPeerManager_RemovePeer(t *testing.T) {
	mgr := NewPeerManager()
	mgr.AddPeer(portable(1))

	mgr.RemovePeer(portable(1))

	if mgr.Count() != 0 {
		t.Errorf("Expected 0 peers after removal, got %d", mgr.Count())
	}
	if mgr.GetPeer(portable(1)) != nil {
		t.Error("Expected peer to be removed")
	}
}

func TestPeerManager_GetAllPeers(t *testing.T) {
	mgr := NewPeerManager()
	for _, psn := range []uint32{3, 1, 2} {
		mgr.AddPeer(portable(psn))
	}

	peers := mgr.GetAllPeers()
	if len(peers) != 3 {
		t.Fatalf("Expected 3 peers, got %d", len(peers))
	}
	for i, psn := range []uint32{1, 2, 3} {
		if peers[i].IPUI != portable(psn) {
			t.Errorf("Peer %d: expected %s, got %s", i, portable(psn), peers[i].IPUI)
		}
	}

	snaps := mgr.Snapshots()
	if len(snaps) != 3 || snaps[0].IPUI != portable(1).String() {
		t.Errorf("Unexpected snapshots %+v", snaps)
	}
}

func TestPeerManager_DetachTimedOutPeers(t *testing.T) {
	mgr := NewPeerManager()

	stale := mgr.AddPeer(portable(1))
	stale.SetState(StateAttached)
	stale.mu.Lock()
	stale.LastHeard = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	online := mgr.AddPeer(portable(2))
	online.SetState(StateAttached)
	online.SetLink(lce.LinkID(1))
	online.mu.Lock()
	online.LastHeard = time.Now().Add(-time.Hour)
	online.mu.Unlock()

	fresh := mgr.AddPeer(portable(3))
	fresh.SetState(StateAttached)
	fresh.UpdateLastHeard()

	if n := len(mgr.DetachTimedOutPeers(time.Minute)); n != 1 {
		t.Errorf("Expected 1 detached peer, got %d", n)
	}
	if stale.GetState() != StateDetached {
		t.Error("Stale peer still attached")
	}
	if mgr.CountAttached() != 2 {
		t.Errorf("Expected 2 attached peers, got %d", mgr.CountAttached())
	}
}
