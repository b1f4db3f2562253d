package audio

import "sync/atomic"

// Ring is a fixed-capacity single-producer/single-consumer ring buffer.
//
// Exactly one goroutine may call Write and exactly one may call Read/Discard;
// Len, Free and Cap are safe from anywhere. Neither side allocates or locks,
// which makes Write safe to call from real-time audio callbacks.
type Ring[T any] struct {
	buf  []T
	mask uint64

	// head counts items ever read, tail counts items ever written.
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRing allocates a ring holding at least capacity items, rounded up to a
// power of two.
func NewRing[T any](capacity int) *Ring[T] {
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &Ring[T]{buf: make([]T, size), mask: uint64(size - 1)}
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

func (r *Ring[T]) Free() int { return r.Cap() - r.Len() }

// Write copies as many items as fit and returns how many were written.
func (r *Ring[T]) Write(items []T) int {
	tail := r.tail.Load()
	free := uint64(len(r.buf)) - (tail - r.head.Load())
	n := uint64(len(items))
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	start := tail & r.mask
	first := min(n, uint64(len(r.buf))-start)
	copy(r.buf[start:], items[:first])
	copy(r.buf, items[first:n])

	r.tail.Store(tail + n)
	return int(n)
}

// Read copies up to len(dst) items out of the ring.
func (r *Ring[T]) Read(dst []T) int {
	head := r.head.Load()
	avail := r.tail.Load() - head
	n := uint64(len(dst))
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	start := head & r.mask
	first := min(n, uint64(len(r.buf))-start)
	copy(dst, r.buf[start:start+first])
	copy(dst[first:n], r.buf)

	r.head.Store(head + n)
	return int(n)
}

// Discard drops everything currently readable. Consumer side only.
func (r *Ring[T]) Discard() {
	r.head.Store(r.tail.Load())
}
