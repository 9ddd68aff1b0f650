// Package audio provides the sinks the output loop writes to: a real-time
// oto player, a WAV file capture and a discarding sink.
package audio

import (
	"io"
	"sync"
)

// Ring is a byte ring buffer between the output loop and oto's pull-model
// player. Unlike a lossy audio buffer it never overwrites: the writer checks
// Free before writing a block, which is what gives the output loop its
// block-ready pacing.
type Ring struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	rd     int
	count  int
	closed bool
}

// NewRing creates a ring holding capacity bytes.
func NewRing(capacity int) *Ring {
	r := &Ring{buf: make([]byte, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Cap returns the capacity in bytes.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Free returns the number of bytes that can be written.
func (r *Ring) Free() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) - r.count
}

// Buffered returns the number of bytes waiting to be read.
func (r *Ring) Buffered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Write copies as much of p as fits and returns the count. It never blocks.
func (r *Ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	n := len(p)
	if free := len(r.buf) - r.count; n > free {
		n = free
	}
	wr := (r.rd + r.count) % len(r.buf)
	first := copy(r.buf[wr:], p[:n])
	copy(r.buf, p[first:n])
	r.count += n
	if n > 0 {
		r.cond.Signal()
	}
	return n, nil
}

// Read implements io.Reader. It blocks until data arrives, and returns
// io.EOF once the ring is closed and drained.
func (r *Ring) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count == 0 {
		if r.closed {
			return 0, io.EOF
		}
		r.cond.Wait()
	}
	n := len(p)
	if n > r.count {
		n = r.count
	}
	first := copy(p[:n], r.buf[r.rd:])
	copy(p[first:n], r.buf)
	r.rd = (r.rd + n) % len(r.buf)
	r.count -= n
	return n, nil
}

// Close wakes any blocked reader.
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

// putSamples encodes interleaved int16 samples as little-endian bytes into
// dst, growing it if needed.
func putSamples(dst []byte, samples []int16) []byte {
	dst = dst[:0]
	for _, s := range samples {
		dst = append(dst, byte(s), byte(s>>8))
	}
	return dst
}
