package meter

import "clockmeter-go/x/critical"

// PulseSource raises a notification at a fixed rate.
type PulseSource interface {
	// Start arms the source; handler runs in interrupt context once per
	// pulse. Re-arming is gapless.
	Start(handler func()) error
	// Ack clears the pending notification. It must be called exactly once
	// per notification; errcode.MissedAck or errcode.Overrun are fatal.
	Ack() error
}

// TickCounter is a free-running, wrapping counter. Read has no side effects.
type TickCounter interface {
	Read() uint32
}

// SharedCounter is the only way the meter reaches a counter register.
// Reads happen under the priority ceiling so no context sees a torn value.
type SharedCounter struct {
	r *critical.Resource[TickCounter]
}

// Share wraps a counter. Callers should drop their own reference to c.
func Share(c TickCounter) *SharedCounter {
	return &SharedCounter{r: critical.New(c)}
}

func (s *SharedCounter) Read() uint32 {
	c, g := s.r.Acquire()
	defer g.Release()
	return (*c).Read()
}

// TextSink takes one complete output line. It must not block; false means
// the line was dropped.
type TextSink interface {
	WriteLine(line []byte) bool
}

// Toggler is the heartbeat indicator. Toggle is best-effort.
type Toggler interface {
	Toggle()
}
