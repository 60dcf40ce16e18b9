package metrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// family is one metric of the text exposition. Exactly one of value and
// perPD is set.
type family struct {
	name  string
	kind  string
	help  string
	value func(c *Collector) interface{}
	perPD func(c *Collector) map[lce.PD]uint64
}

var families = []family{
	{name: "dect_links_total", kind: "counter", help: "Data links established",
		value: func(c *Collector) interface{} { return c.GetTotalLinks() }},
	{name: "dect_links_active", kind: "gauge", help: "Data links currently established",
		value: func(c *Collector) interface{} { return c.GetActiveLinks() }},
	{name: "dect_messages_received_total", kind: "counter", help: "Messages received per protocol",
		perPD: (*Collector).GetMessagesReceived},
	{name: "dect_messages_sent_total", kind: "counter", help: "Messages sent per protocol",
		perPD: (*Collector).GetMessagesSent},
	{name: "dect_messages_dropped_total", kind: "counter", help: "Frames discarded by the link control entity",
		value: func(c *Collector) interface{} { return c.GetMessagesDropped() }},
	{name: "dect_bytes_received_total", kind: "counter", help: "Bearer bytes received",
		value: func(c *Collector) interface{} { return c.GetBytesReceived() }},
	{name: "dect_bytes_sent_total", kind: "counter", help: "Bearer bytes sent",
		value: func(c *Collector) interface{} { return c.GetBytesSent() }},
	{name: "dect_pages_total", kind: "counter", help: "Pages broadcast",
		value: func(c *Collector) interface{} { return c.GetPagesSent() }},
	{name: "dect_page_responses_total", kind: "counter", help: "Page responses received",
		value: func(c *Collector) interface{} { return c.GetPageResponses() }},
	{name: "dect_locates_total", kind: "counter", help: "Completed location registrations",
		value: func(c *Collector) interface{} { return c.GetLocates() }},
	{name: "dect_portables_attached", kind: "gauge", help: "Attached portables",
		value: func(c *Collector) interface{} { return c.GetAttached() }},
	{name: "dect_access_rights_total", kind: "counter", help: "Granted subscriptions",
		value: func(c *Collector) interface{} { return c.GetAccessRights() }},
	{name: "dect_access_denied_total", kind: "counter", help: "Rejected access rights and locate requests",
		value: func(c *Collector) interface{} { return c.GetAccessDenied() }},
	{name: "dect_calls_total", kind: "counter", help: "Call setups",
		value: func(c *Collector) interface{} { return c.GetCallsTotal() }},
	{name: "dect_calls_answered_total", kind: "counter", help: "Answered calls",
		value: func(c *Collector) interface{} { return c.GetCallsAnswered() }},
	{name: "dect_calls_active", kind: "gauge", help: "Calls in progress",
		value: func(c *Collector) interface{} { return c.GetActiveCalls() }},
}

// WriteText writes every metric of c in the Prometheus text format
func WriteText(w io.Writer, c *Collector) error {
	for _, f := range families {
		if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind); err != nil {
			return err
		}
		if f.perPD == nil {
			if _, err := fmt.Fprintf(w, "%s %v\n", f.name, f.value(c)); err != nil {
				return err
			}
			continue
		}
		counts := f.perPD(c)
		pds := make([]lce.PD, 0, len(counts))
		for pd := range counts {
			pds = append(pds, pd)
		}
		sort.Slice(pds, func(i, j int) bool { return pds[i] < pds[j] })
		for _, pd := range pds {
			if _, err := fmt.Fprintf(w, "%s{protocol=%q} %d\n", f.name, pd.String(), counts[pd]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Handler serves the metrics of c
func Handler(c *Collector) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_ = WriteText(w, c)
	})
}

// PrometheusServer serves the collector over HTTP
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger

	mu   sync.Mutex
	addr net.Addr
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.Nop()
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}
	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
	}
}

// Addr returns the address the server listens on, nil before Start bound it
func (s *PrometheusServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start serves metrics until ctx is cancelled. It returns ctx.Err() after
// a clean shutdown and nil at once when the server is disabled.
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, Handler(s.collector))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("Serving metrics",
		logger.String("addr", listener.Addr().String()),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
