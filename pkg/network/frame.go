package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame kinds carried on a bearer connection
const (
	FrameData   uint8 = 0x01 // S-Format message
	FrameCipher uint8 = 0x02 // cipher switch, one byte payload: 0 off, 1 on
)

const (
	// FrameHeaderSize is the kind byte plus the 16-bit payload length
	FrameHeaderSize = 3
	// MaxFrameSize bounds the payload of one frame
	MaxFrameSize = 4096
)

var (
	// ErrFrameTooLarge is returned for payloads above MaxFrameSize
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnknownFrame is returned for an unknown frame kind
	ErrUnknownFrame = errors.New("unknown frame kind")
)

// WriteFrame writes one frame
func WriteFrame(w io.Writer, kind uint8, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, FrameHeaderSize+len(payload))
	buf[0] = kind
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. A clean end of stream before the header
// returns io.EOF.
func ReadFrame(r io.Reader) (uint8, []byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	kind := hdr[0]
	if kind != FrameData && kind != FrameCipher {
		return 0, nil, fmt.Errorf("%w: 0x%02x", ErrUnknownFrame, kind)
	}
	n := int(binary.BigEndian.Uint16(hdr[1:3]))
	if n > MaxFrameSize {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, nil, err
	}
	return kind, payload, nil
}
