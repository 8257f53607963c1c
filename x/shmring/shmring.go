// Package shmring is a single-producer, single-consumer byte ring.
//
// The producer side never blocks or allocates, so it may run in interrupt
// context. The consumer is a normal goroutine woken through Readable.
package shmring

import "sync/atomic"

type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	drops atomic.Uint32 // whole writes rejected by TryWriteAll

	readable chan struct{} // 0->>0 available edge
}

// New allocates a ring; size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:      make([]byte, size),
		mask:     uint32(size - 1),
		readable: make(chan struct{}, 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space is the number of bytes the producer can write now.
func (r *Ring) Space() int {
	return int(r.size() - (r.wr.Load() - r.rd.Load()))
}

// Available is the number of bytes the consumer can read now.
func (r *Ring) Available() int {
	return int(r.wr.Load() - r.rd.Load())
}

// Producer side

// TryWriteAll writes src only if it fits entirely, so consumers never see a
// torn record. A rejected write is counted in Drops.
func (r *Ring) TryWriteAll(src []byte) bool {
	if len(src) == 0 {
		return true
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	if len(src) > int(r.size()-(wr-rd)) {
		r.drops.Add(1)
		return false
	}
	r.put(wr, src)
	r.wr.Store(wr + uint32(len(src)))
	// Re-read rd after publishing so a consumer that drained concurrently
	// is still woken.
	if r.rd.Load() == wr {
		r.notify()
	}
	return true
}

func (r *Ring) put(wr uint32, src []byte) {
	idx := wr & r.mask
	first := copy(r.buf[idx:], src)
	if first < len(src) {
		copy(r.buf, src[first:])
	}
}

func (r *Ring) notify() {
	select {
	case r.readable <- struct{}{}:
	default:
	}
}

// Consumer side

// TryReadInto moves up to len(dst) bytes out of the ring.
func (r *Ring) TryReadInto(dst []byte) int {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	n := int(wr - rd)
	if n <= 0 {
		return 0
	}
	if n > len(dst) {
		n = len(dst)
	}
	idx := rd & r.mask
	first := copy(dst[:n], r.buf[idx:])
	if first < n {
		copy(dst[first:n], r.buf)
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}

// Readable receives a token when the ring goes from empty to non-empty.
// Tokens coalesce; drain until TryReadInto returns 0 after each wake.
func (r *Ring) Readable() <-chan struct{} { return r.readable }

// Drops reports how many TryWriteAll calls were rejected.
func (r *Ring) Drops() uint32 { return r.drops.Load() }
