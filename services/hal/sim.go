//go:build !(rp2040 || rp2350)

package hal

import (
	"errors"
	"sync"
	"time"

	"clockmeter-go/errcode"
	"clockmeter-go/x/mathx"
)

// SimOscillator is a clock with a virtual time base. Cycles advance only
// when Advance is called.
type SimOscillator struct {
	mu      sync.Mutex
	hz      uint64
	elapsed time.Duration // virtual time since construction
	cycles  uint64
}

func NewSimOscillator(hz uint64) *SimOscillator { return &SimOscillator{hz: hz} }

func (o *SimOscillator) Hz() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hz
}

// Advance moves virtual time forward by d. Cycle counts are derived from
// the total elapsed time so repeated small steps do not drift.
func (o *SimOscillator) Advance(d time.Duration) {
	o.mu.Lock()
	o.elapsed += d
	sec := uint64(o.elapsed / time.Second)
	rem := uint64(o.elapsed % time.Second)
	o.cycles = sec*o.hz + rem*o.hz/uint64(time.Second)
	o.mu.Unlock()
}

// Cycles is the number of oscillator cycles since construction.
func (o *SimOscillator) Cycles() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cycles
}

// SimCounter counts oscillator cycles through a divider, wrapping at width.
type SimCounter struct {
	osc   *SimOscillator
	div   uint64
	width uint8
}

func NewSimCounter(osc *SimOscillator, div uint32, width uint8) *SimCounter {
	if div == 0 {
		div = 1
	}
	return &SimCounter{osc: osc, div: uint64(div), width: width}
}

func (c *SimCounter) Read() uint32 {
	return uint32(c.osc.Cycles()/c.div) & mathx.Mask(c.width)
}

// SimPulse is a pulse source on virtual time. Each Fire advances the
// oscillator by one period (when it has one) and raises a notification.
// With a non-zero Pace, Start also fires it from a ticker in real time.
type SimPulse struct {
	Pace time.Duration

	osc    *SimOscillator
	period time.Duration

	mu      sync.Mutex
	handler func()
	pending bool
	missed  bool
	stop    chan struct{}
	fired   uint32
}

// NewSimPulse returns a source with the given period. osc may be nil for a
// source that does not drive time.
func NewSimPulse(osc *SimOscillator, period time.Duration) *SimPulse {
	return &SimPulse{osc: osc, period: period}
}

func (p *SimPulse) Start(handler func()) error {
	if handler == nil {
		return errors.New("hal: nil pulse handler")
	}
	p.mu.Lock()
	if p.handler != nil {
		p.mu.Unlock()
		return errcode.AlreadyStarted
	}
	p.handler = handler
	if p.Pace > 0 {
		p.stop = make(chan struct{})
		go p.run(p.Pace, p.stop)
	}
	p.mu.Unlock()
	return nil
}

func (p *SimPulse) run(pace time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(pace)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			p.Fire()
		}
	}
}

// Stop ends real-time pacing. Fire keeps working.
func (p *SimPulse) Stop() {
	p.mu.Lock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.mu.Unlock()
}

// Fire raises one pulse and runs the handler synchronously, the way the
// interrupt would. It does nothing before Start.
func (p *SimPulse) Fire() {
	if p.osc != nil {
		p.osc.Advance(p.period)
	}
	p.mu.Lock()
	h := p.handler
	if h == nil {
		p.mu.Unlock()
		return
	}
	if p.pending {
		p.missed = true
	}
	p.pending = true
	p.fired++
	p.mu.Unlock()
	h()
}

// Ack clears the pending notification.
func (p *SimPulse) Ack() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler == nil {
		return errcode.NotStarted
	}
	if p.missed {
		return errcode.MissedAck
	}
	p.pending = false
	return nil
}

// Fired is the number of pulses raised so far.
func (p *SimPulse) Fired() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired
}

// SimPin is an in-memory output pin.
type SimPin struct {
	mu    sync.Mutex
	level bool
	edges uint32
}

func (p *SimPin) Set(level bool) {
	p.mu.Lock()
	if level != p.level {
		p.edges++
	}
	p.level = level
	p.mu.Unlock()
}

func (p *SimPin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Edges counts level changes.
func (p *SimPin) Edges() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.edges
}

// HostI2C implements drivers.I2C for host runs. Only addresses listed in
// Devices acknowledge.
type HostI2C struct {
	mu      sync.Mutex
	Devices map[uint16]bool
	LastTx  struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	if !h.Devices[addr] {
		return errcode.Wrap(errcode.Error, "i2c", "nack")
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}
