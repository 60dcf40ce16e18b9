package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
)

const (
	sendQueueSize = 64
	writeTimeout  = 5 * time.Second
)

var (
	// ErrBearerClosed is returned when sending on a closed bearer
	ErrBearerClosed = errors.New("bearer closed")
	// ErrNotConnected is returned when sending before the dial completed
	ErrNotConnected = errors.New("bearer not connected")
	// ErrSendQueueFull is returned when the writer cannot keep up
	ErrSendQueueFull = errors.New("bearer send queue full")
)

type outFrame struct {
	kind    uint8
	payload []byte
	// closeWrite half-closes the connection instead of writing
	closeWrite bool
}

// Bearer is a data link bearer over a TCP connection. Send, CloseWrite,
// Close and SetEncryption are called on the loop goroutine; reading and
// writing happen on goroutines of their own.
type Bearer struct {
	t    *Transport
	link lce.LinkID
	log  *logger.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
	out    chan outFrame

	reader *event.Registration
}

func newBearer(t *Transport, link lce.LinkID) *Bearer {
	return &Bearer{
		t:    t,
		link: link,
		log:  t.log,
		out:  make(chan outFrame, sendQueueSize),
	}
}

// Link returns the data link the bearer carries
func (b *Bearer) Link() lce.LinkID {
	return b.link
}

// attach binds a connected socket and starts the reader and writer. It
// runs on the loop goroutine.
func (b *Bearer) attach(conn net.Conn) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = conn.Close()
		return false
	}
	b.conn = conn
	b.mu.Unlock()

	go b.writeLoop(conn)
	b.reader = b.t.loop.Register(fmt.Sprintf("bearer-%d", b.link), b.readLoop)
	return true
}

func (b *Bearer) readLoop(ctx context.Context) error {
	conn := b.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		kind, payload, err := ReadFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var reported error
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				reported = err
			}
			b.t.loop.Post(func() { b.t.host.BearerClosed(b.link, reported) })
			return err
		}
		b.t.countIn(FrameHeaderSize + len(payload))

		switch kind {
		case FrameData:
			b.t.loop.Post(func() { b.t.host.Receive(b.link, payload) })
		case FrameCipher:
			enabled := len(payload) > 0 && payload[0] != 0
			b.t.loop.Post(func() { b.t.host.EncryptionIndication(b.link, enabled) })
		}
	}
}

func (b *Bearer) writeLoop(conn net.Conn) {
	for f := range b.out {
		if f.closeWrite {
			if cw, ok := conn.(interface{ CloseWrite() error }); ok {
				if err := cw.CloseWrite(); err != nil {
					b.log.Debug("Close write failed", logger.Uint32("link", uint32(b.link)), logger.Error(err))
				}
			} else {
				_ = conn.Close()
			}
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := WriteFrame(conn, f.kind, f.payload); err != nil {
			b.log.Debug("Bearer write failed", logger.Uint32("link", uint32(b.link)), logger.Error(err))
			_ = conn.Close()
			continue
		}
		b.t.countOut(FrameHeaderSize + len(f.payload))
	}
}

func (b *Bearer) enqueue(f outFrame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBearerClosed
	}
	if b.conn == nil {
		return ErrNotConnected
	}
	select {
	case b.out <- f:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Send queues an S-Format frame for transmission
func (b *Bearer) Send(frame []byte) error {
	if len(frame) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	return b.enqueue(outFrame{kind: FrameData, payload: frame})
}

// SetEncryption switches ciphering and tells the peer
func (b *Bearer) SetEncryption(enabled bool) error {
	var v byte
	if enabled {
		v = 1
	}
	return b.enqueue(outFrame{kind: FrameCipher, payload: []byte{v}})
}

// CloseWrite half-closes the connection once queued frames are written
func (b *Bearer) CloseWrite() error {
	return b.enqueue(outFrame{closeWrite: true})
}

// Close tears the connection down. Queued frames are discarded.
func (b *Bearer) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	conn := b.conn
	close(b.out)
	b.mu.Unlock()

	b.t.forget(b)
	if conn == nil {
		return nil
	}
	err := conn.Close()
	if b.reader != nil {
		// the reader exits on its own once the socket is closed
		go func() { _ = b.reader.Unregister() }()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
