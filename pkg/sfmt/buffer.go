package sfmt

import "fmt"

const (
	// BufferSize is the capacity of a message buffer
	BufferSize = 256
	// HeadRoom is reserved in front of the payload for headers pushed later
	HeadRoom = 8
	// MaxBodySize is the largest S-Format body that fits behind the head-room
	MaxBodySize = BufferSize - HeadRoom
)

// Buffer is a fixed-size message buffer with head-room for the
// transaction header. The valid region is data[off:off+n].
type Buffer struct {
	data [BufferSize]byte
	off  int
	n    int
}

// NewBuffer returns an empty buffer with the default head-room
func NewBuffer() *Buffer {
	return &Buffer{off: HeadRoom}
}

// BufferFrom copies p into a new buffer without head-room
func BufferFrom(p []byte) (*Buffer, error) {
	if len(p) > BufferSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrBufferOverflow, len(p))
	}
	b := &Buffer{n: len(p)}
	copy(b.data[:], p)
	return b, nil
}

// Bytes returns the valid region. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data[b.off : b.off+b.n]
}

// Len returns the number of valid bytes
func (b *Buffer) Len() int {
	return b.n
}

// Headroom returns the number of bytes that can still be pushed
func (b *Buffer) Headroom() int {
	return b.off
}

// Reset empties the buffer and restores the default head-room
func (b *Buffer) Reset() {
	b.off = HeadRoom
	b.n = 0
}

// Reserve sets the head-room of an empty buffer
func (b *Buffer) Reserve(n int) error {
	if b.n != 0 {
		return fmt.Errorf("%w: reserve on non-empty buffer", ErrBufferOverflow)
	}
	if n < 0 || n > BufferSize {
		return fmt.Errorf("%w: reserve %d", ErrBufferOverflow, n)
	}
	b.off = n
	return nil
}

// Put extends the valid region by n bytes at the tail and returns the
// new bytes for the caller to fill.
func (b *Buffer) Put(n int) ([]byte, error) {
	if n < 0 || b.off+b.n+n > BufferSize {
		return nil, fmt.Errorf("%w: put %d with %d free", ErrBufferOverflow, n, BufferSize-b.off-b.n)
	}
	p := b.data[b.off+b.n : b.off+b.n+n]
	b.n += n
	return p, nil
}

// Append copies p to the tail
func (b *Buffer) Append(p []byte) error {
	dst, err := b.Put(len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// Push prepends n bytes into the head-room
func (b *Buffer) Push(n int) ([]byte, error) {
	if n < 0 || n > b.off {
		return nil, fmt.Errorf("%w: push %d with %d head-room", ErrBufferOverflow, n, b.off)
	}
	b.off -= n
	b.n += n
	return b.data[b.off : b.off+n], nil
}

// Pull consumes n bytes from the front
func (b *Buffer) Pull(n int) ([]byte, error) {
	if n < 0 || n > b.n {
		return nil, fmt.Errorf("%w: pull %d of %d", ErrShortBuffer, n, b.n)
	}
	p := b.data[b.off : b.off+n]
	b.off += n
	b.n -= n
	return p, nil
}
