// Package console carries text from interrupt context to a writer. Lines go
// into a single-producer ring; a goroutine drains it to the UART (or stdout).
package console

import (
	"context"
	"io"

	"clockmeter-go/x/shmring"
)

const (
	DefaultRingSize = 512
	chunk           = 64
)

// Sink is a meter.TextSink backed by a shmring.Ring. WriteLine may be called
// from one producer context only.
type Sink struct {
	ring *shmring.Ring
}

// New returns a sink with a ring of size bytes (power of two).
func New(size int) *Sink {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Sink{ring: shmring.New(size)}
}

// WriteLine queues line whole or not at all. It never blocks.
func (s *Sink) WriteLine(line []byte) bool { return s.ring.TryWriteAll(line) }

// Drops is the number of lines rejected because the ring was full.
func (s *Sink) Drops() uint32 { return s.ring.Drops() }

// Pending is the number of bytes waiting to be drained.
func (s *Sink) Pending() int { return s.ring.Available() }

// Run copies queued bytes to w until ctx is cancelled. Write errors are
// logged and the data is discarded.
func (s *Sink) Run(ctx context.Context, w io.Writer) {
	var buf [chunk]byte
	for {
		select {
		case <-ctx.Done():
			s.drain(w, buf[:])
			return
		case <-s.ring.Readable():
			s.drain(w, buf[:])
		}
	}
}

// Flush writes everything queued so far to w from the calling goroutine.
func (s *Sink) Flush(w io.Writer) {
	var buf [chunk]byte
	s.drain(w, buf[:])
}

func (s *Sink) drain(w io.Writer, buf []byte) {
	for {
		n := s.ring.TryReadInto(buf)
		if n == 0 {
			return
		}
		if _, err := w.Write(buf[:n]); err != nil {
			println("Error: console write:", err.Error())
		}
	}
}
