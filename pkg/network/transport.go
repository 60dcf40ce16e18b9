// Package network carries data links over TCP and pages over UDP in
// place of a radio.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

// DefaultDialTimeout bounds a bearer connection attempt
const DefaultDialTimeout = 5 * time.Second

var (
	// ErrNoFPAddress is returned by Dial without a configured FP address
	ErrNoFPAddress = errors.New("no fixed part address configured")
	// ErrNoPageAddress is returned by Page without a configured page address
	ErrNoPageAddress = errors.New("no page address configured")
	// ErrNoHost is returned when the transport is used before SetHost
	ErrNoHost = errors.New("transport has no host")
)

// Host receives bearer events. Every call is made on the loop goroutine.
// *lce.LCE implements it.
type Host interface {
	Accept(b lce.Bearer) lce.LinkID
	BearerWritable(id lce.LinkID)
	BearerClosed(id lce.LinkID, err error)
	Receive(id lce.LinkID, frame []byte)
	EncryptionIndication(id lce.LinkID, enabled bool)
	PageIndication(data []byte)
}

// Stats counts bearer traffic. *metrics.Collector implements it.
type Stats interface {
	BytesReceived(bytes uint64)
	BytesSent(bytes uint64)
}

// Config holds transport addresses
type Config struct {
	// Listen is the TCP address links are accepted on (FP)
	Listen string
	// FPAddress is the TCP address links are dialled to (PP)
	FPAddress string
	// PageAddress is the UDP address pages are sent to (FP)
	PageAddress string
	// PageListen is the UDP address pages are received on (PP)
	PageListen  string
	DialTimeout time.Duration
}

// Transport implements lce.Transport on top of TCP and UDP
type Transport struct {
	cfg  Config
	loop *event.Loop
	log  *logger.Logger
	host Host

	mu       sync.Mutex
	stats    Stats
	bearers  map[*Bearer]struct{}
	listener net.Listener
	pageConn net.PacketConn
	pageOut  *net.UDPConn
	pageDst  *net.UDPAddr
}

// NewTransport creates a transport feeding loop
func NewTransport(cfg Config, loop *event.Loop, log *logger.Logger) *Transport {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &Transport{
		cfg:     cfg,
		loop:    loop,
		log:     log.WithComponent("network"),
		bearers: make(map[*Bearer]struct{}),
	}
}

// SetHost sets the receiver of bearer events. It must be called before
// Listen, ListenPages or the first Dial.
func (t *Transport) SetHost(h Host) {
	t.host = h
}

// SetStats sets the traffic counters
func (t *Transport) SetStats(s Stats) {
	t.mu.Lock()
	t.stats = s
	t.mu.Unlock()
}

func (t *Transport) countIn(n int) {
	t.mu.Lock()
	s := t.stats
	t.mu.Unlock()
	if s != nil {
		s.BytesReceived(uint64(n))
	}
}

func (t *Transport) countOut(n int) {
	t.mu.Lock()
	s := t.stats
	t.mu.Unlock()
	if s != nil {
		s.BytesSent(uint64(n))
	}
}

func (t *Transport) track(b *Bearer) {
	t.mu.Lock()
	t.bearers[b] = struct{}{}
	t.mu.Unlock()
}

func (t *Transport) forget(b *Bearer) {
	t.mu.Lock()
	delete(t.bearers, b)
	t.mu.Unlock()
}

// Bearers returns the number of open bearers
func (t *Transport) Bearers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.bearers)
}

// Listen accepts inbound links on the configured TCP address. Accepted
// connections are handed to Host.Accept on the loop.
func (t *Transport) Listen() error {
	if t.host == nil {
		return ErrNoHost
	}
	ln, err := net.Listen("tcp", t.cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", t.cfg.Listen, err)
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	t.log.Info("Accepting links", logger.String("addr", ln.Addr().String()))
	t.loop.Register("link-listener", func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
		defer stop()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			t.log.Debug("Bearer accepted", logger.String("remote", conn.RemoteAddr().String()))
			t.loop.Post(func() { t.accept(conn) })
		}
	})
	return nil
}

func (t *Transport) accept(conn net.Conn) {
	b := newBearer(t, 0)
	t.track(b)
	b.link = t.host.Accept(b)
	b.attach(conn)
}

// Addr returns the address links are accepted on, nil before Listen
func (t *Transport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// PageAddr returns the address pages are received on, nil before
// ListenPages
func (t *Transport) PageAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pageConn == nil {
		return nil
	}
	return t.pageConn.LocalAddr()
}

// ListenPages receives B-Format pages on the configured UDP address and
// hands them to Host.PageIndication on the loop
func (t *Transport) ListenPages() error {
	if t.host == nil {
		return ErrNoHost
	}
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(context.Background(), "udp", t.cfg.PageListen)
	if err != nil {
		return fmt.Errorf("failed to listen for pages on %s: %w", t.cfg.PageListen, err)
	}
	t.mu.Lock()
	t.pageConn = pc
	t.mu.Unlock()

	t.log.Info("Listening for pages", logger.String("addr", pc.LocalAddr().String()))
	t.loop.Register("page-listener", func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
		defer stop()
		buf := make([]byte, 64)
		for {
			n, _, err := pc.ReadFrom(buf)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			t.countIn(n)
			data := append([]byte(nil), buf[:n]...)
			t.loop.Post(func() { t.host.PageIndication(data) })
		}
	})
	return nil
}

// Dial implements lce.Transport. The connection is made in the
// background; completion is reported with BearerWritable or
// BearerClosed on the loop.
func (t *Transport) Dial(link lce.LinkID, peer identity.IPUI) (lce.Bearer, error) {
	if t.cfg.FPAddress == "" {
		return nil, ErrNoFPAddress
	}
	if t.host == nil {
		return nil, ErrNoHost
	}
	b := newBearer(t, link)
	t.track(b)

	addr, timeout := t.cfg.FPAddress, t.cfg.DialTimeout
	go func() {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		t.loop.Post(func() {
			if err != nil {
				t.forget(b)
				t.log.Warn("Bearer dial failed",
					logger.Uint32("link", uint32(link)),
					logger.String("addr", addr),
					logger.Error(err))
				t.host.BearerClosed(link, err)
				return
			}
			if b.attach(conn) {
				t.host.BearerWritable(link)
			}
		})
	}()
	return b, nil
}

// Page implements lce.Transport by sending the page as one datagram
func (t *Transport) Page(data []byte) error {
	if t.cfg.PageAddress == "" {
		return ErrNoPageAddress
	}
	out, raddr, err := t.pageSocket()
	if err != nil {
		return err
	}
	if _, err := out.WriteToUDP(data, raddr); err != nil {
		return fmt.Errorf("failed to send page: %w", err)
	}
	t.countOut(len(data))
	return nil
}

// pageSocket opens the broadcast socket pages are sent from on first use
func (t *Transport) pageSocket() (*net.UDPConn, *net.UDPAddr, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pageOut != nil {
		return t.pageOut, t.pageDst, nil
	}

	raddr, err := net.ResolveUDPAddr("udp", t.cfg.PageAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve page address: %w", err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open page socket: %w", err)
	}
	if err := enableBroadcast(conn); err != nil {
		t.log.Debug("Enabling broadcast failed", logger.Error(err))
	}
	t.pageOut, t.pageDst = conn, raddr
	return conn, raddr, nil
}

// Close stops listening and tears down every bearer. Readers registered
// on the loop are also stopped when the loop exits.
func (t *Transport) Close() error {
	t.mu.Lock()
	ln, pc, out := t.listener, t.pageConn, t.pageOut
	bearers := make([]*Bearer, 0, len(t.bearers))
	for b := range t.bearers {
		bearers = append(bearers, b)
	}
	t.mu.Unlock()

	var errs []error
	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if out != nil {
		_ = out.Close()
	}
	for _, b := range bearers {
		_ = b.Close()
	}
	return errors.Join(errs...)
}
