package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/lce"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Expected text/plain content type, got %q", ct)
	}
	return w.Body.String()
}

func TestHandler_Values(t *testing.T) {
	c := NewCollector()
	c.Observe(lce.Event{Type: lce.EventLinkEstablished, Link: 1})
	c.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDMM})
	c.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDCC})
	c.Observe(lce.Event{Type: lce.EventMessageIn, PD: lce.PDCC})
	c.BytesReceived(1024)
	c.PortableAttached("N:08ae083d1e")
	c.CallStarted(1)

	body := scrape(t, Handler(c))

	for _, want := range []string{
		"dect_links_total 1",
		"dect_links_active 1",
		`dect_messages_received_total{protocol="MM"} 1`,
		`dect_messages_received_total{protocol="CC"} 2`,
		"dect_bytes_received_total 1024",
		"dect_portables_attached 1",
		"dect_locates_total 1",
		"dect_calls_active 1",
	} {
		if !strings.Contains(body, want+"\n") {
			t.Errorf("Expected %q in output", want)
		}
	}
}

func TestHandler_EveryFamilyDescribed(t *testing.T) {
	body := scrape(t, Handler(NewCollector()))
	for _, f := range families {
		if !strings.Contains(body, fmt.Sprintf("# HELP %s ", f.name)) {
			t.Errorf("Missing HELP for %s", f.name)
		}
		if !strings.Contains(body, fmt.Sprintf("# TYPE %s %s\n", f.name, f.kind)) {
			t.Errorf("Missing TYPE for %s", f.name)
		}
	}
	// no protocol has been seen yet
	if strings.Contains(body, "protocol=") {
		t.Error("Expected no per-protocol samples")
	}
}

func TestHandler_RejectsPost(t *testing.T) {
	w := httptest.NewRecorder()
	Handler(NewCollector()).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestPrometheusServer(t *testing.T) {
	c := NewCollector()
	c.CallStarted(7)
	server := NewPrometheusServer(PrometheusConfig{Enabled: true, Port: 0}, c, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for server.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Get("http://" + server.Addr().String() + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(body), "dect_calls_total 1\n") {
		t.Errorf("Expected dect_calls_total 1, got:\n%s", body)
	}

	cancel()
	select {
	case err := <-errChan:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

func TestPrometheusServer_Disabled(t *testing.T) {
	server := NewPrometheusServer(PrometheusConfig{}, NewCollector(), nil)
	if err := server.Start(context.Background()); err != nil {
		t.Errorf("Expected nil error when disabled, got %v", err)
	}
	if server.Addr() != nil {
		t.Error("Expected no address when disabled")
	}
}
