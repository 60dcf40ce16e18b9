package identity

import (
	"errors"
	"fmt"
)

// ErrShortIdentity is returned when an identity field holds fewer bits than its type requires
var ErrShortIdentity = errors.New("identity: not enough bits")

// ErrNotImplemented is returned for identity types this package does not encode
var ErrNotImplemented = errors.New("identity: type not implemented")

// bitWriter appends values MSB first
type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) write(v uint64, bits int) {
	for i := bits - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if (v>>uint(i))&1 == 1 {
			w.buf[w.n/8] |= 0x80 >> uint(w.n%8)
		}
		w.n++
	}
}

// bitReader reads values MSB first, never past limit bits
type bitReader struct {
	buf   []byte
	pos   int
	limit int
}

func newBitReader(buf []byte, bits int) (*bitReader, error) {
	if bits > len(buf)*8 {
		return nil, fmt.Errorf("%w: length %d exceeds %d bytes", ErrShortIdentity, bits, len(buf))
	}
	return &bitReader{buf: buf, limit: bits}, nil
}

func (r *bitReader) read(bits int) (uint64, error) {
	if r.pos+bits > r.limit {
		return 0, fmt.Errorf("%w: need %d, have %d", ErrShortIdentity, bits, r.limit-r.pos)
	}
	var v uint64
	for i := 0; i < bits; i++ {
		b := r.buf[r.pos/8] >> uint(7-r.pos%8) & 1
		v = v<<1 | uint64(b)
		r.pos++
	}
	return v, nil
}

func (r *bitReader) remaining() int {
	return r.limit - r.pos
}
