package metrics

import (
	"testing"

	"github.com/dbehnke/dect-nwk/pkg/lce"
)

func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
}

func TestCollector_LinkEvents(t *testing.T) {
	collector := NewCollector()

	collector.Observe(lce.Event{Type: lce.EventLinkEstablished, Link: 1})
	collector.Observe(lce.Event{Type: lce.EventLinkEstablished, Link: 2})
	if got := collector.GetActiveLinks(); got != 2 {
		t.Errorf("Expected 2 active links, got %d", got)
	}

	collector.Observe(lce.Event{Type: lce.EventLinkReleased, Link: 1})
	if got := collector.GetActiveLinks(); got != 1 {
		t.Errorf("Expected 1 active link after release, got %d", got)
	}
	if got := collector.GetTotalLinks(); got != 2 {
		t.Errorf("Expected 2 total links, got %d", got)
	}
}

func TestCollector_MessageEvents(t *testing.T) {
	collector := NewCollector()

	collector.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDMM})
	collector.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDMM})
	collector.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDCC})
	collector.Observe(lce.Event{Type: lce.EventMessageOut, PD: lce.PDCC})
	collector.Observe(lce.Event{Type: lce.EventDropped})
	collector.Observe(lce.Event{Type: lce.EventPage})
	collector.Observe(lce.Event{Type: lce.EventPageResponse})

	received := collector.GetMessagesReceived()
	if received[lce.PDMM] != 2 || received[lce.PDCC] != 1 {
		t.Errorf("unexpected received counts: %v", received)
	}
	if sent := collector.GetMessagesSent(); sent[lce.PDCC] != 1 {
		t.Errorf("unexpected sent counts: %v", sent)
	}
	if collector.GetMessagesDropped() != 1 {
		t.Errorf("Expected 1 dropped message, got %d", collector.GetMessagesDropped())
	}
	if collector.GetPagesSent() != 1 || collector.GetPageResponses() != 1 {
		t.Error("Expected one page and one page response")
	}

	// returned maps are copies
	received[lce.PDMM] = 100
	if collector.GetMessagesReceived()[lce.PDMM] != 2 {
		t.Error("Expected collector counts to be unaffected by caller writes")
	}
}

func TestCollector_ByteMetrics(t *testing.T) {
	collector := NewCollector()

	collector.BytesReceived(1024)
	collector.BytesSent(2048)

	if got := collector.GetBytesReceived(); got != 1024 {
		t.Errorf("Expected 1024 bytes received, got %d", got)
	}
	if got := collector.GetBytesSent(); got != 2048 {
		t.Errorf("Expected 2048 bytes sent, got %d", got)
	}
}

func TestCollector_MobilityMetrics(t *testing.T) {
	collector := NewCollector()

	collector.AccessRightsGranted()
	collector.AccessDenied()
	collector.PortableAttached("N:08ae00001")
	collector.PortableAttached("N:08ae00001")
	collector.PortableAttached("N:08ae00002")

	if got := collector.GetAttached(); got != 2 {
		t.Errorf("Expected 2 attached portables, got %d", got)
	}
	if got := collector.GetLocates(); got != 3 {
		t.Errorf("Expected 3 locates, got %d", got)
	}

	collector.PortableDetached("N:08ae00001")
	if got := collector.GetAttached(); got != 1 {
		t.Errorf("Expected 1 attached portable after detach, got %d", got)
	}
	if collector.GetAccessRights() != 1 || collector.GetAccessDenied() != 1 {
		t.Error("Expected one granted and one denied access request")
	}
}

func TestCollector_CallMetrics(t *testing.T) {
	collector := NewCollector()

	collector.CallStarted(1)
	collector.CallStarted(2)
	collector.CallAnswered(1)
	// unknown calls are not counted
	collector.CallAnswered(9)

	if got := collector.GetActiveCalls(); got != 2 {
		t.Errorf("Expected 2 active calls, got %d", got)
	}
	if got := collector.GetCallsAnswered(); got != 1 {
		t.Errorf("Expected 1 answered call, got %d", got)
	}

	collector.CallEnded(1)
	collector.CallEnded(2)
	if got := collector.GetActiveCalls(); got != 0 {
		t.Errorf("Expected 0 active calls, got %d", got)
	}
	if got := collector.GetCallsTotal(); got != 2 {
		t.Errorf("Expected 2 total calls, got %d", got)
	}
}

func TestCollector_Reset(t *testing.T) {
	collector := NewCollector()

	collector.Observe(lce.Event{Type: lce.EventLinkEstablished, Link: 1})
	collector.PortableAttached("N:08ae00001")
	collector.CallStarted(1)

	collector.Reset()

	if collector.GetActiveLinks() != 0 || collector.GetAttached() != 0 || collector.GetActiveCalls() != 0 {
		t.Error("Expected gauges to be reset")
	}
	if collector.GetTotalLinks() != 1 {
		t.Error("Expected cumulative counters to survive reset")
	}
}
