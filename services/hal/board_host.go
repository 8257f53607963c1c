//go:build !(rp2040 || rp2350)

package hal

import (
	"io"
	"os"
	"time"

	"clockmeter-go/services/meter"
	"clockmeter-go/x/timex"
)

// DefaultSimHz is the clock the host board pretends to run at.
const DefaultSimHz = 48_000_000

// SimConfig shapes a simulated board.
type SimConfig struct {
	ClockHz uint64
	Meter   meter.Config  // zero value means meter.Default()
	Pace    time.Duration // real-time pulse pacing; 0 = manual Step only
	Console io.Writer     // nil means os.Stdout
	I2CDevs []uint16
}

// SimBoard is a Board plus handles to drive it.
type SimBoard struct {
	Board
	Osc    *SimOscillator
	Ref    *SimPulse
	AuxRef *SimPulse
	Pin    *SimPin
	Bus    *HostI2C
}

// NewSim builds a host board. The reference pulse advances the oscillator
// by one reference interval on every Fire.
func NewSim(sc SimConfig) *SimBoard {
	cfg := sc.Meter
	if cfg.Prescale == 0 {
		cfg = meter.Default()
	}
	if sc.ClockHz == 0 {
		sc.ClockHz = DefaultSimHz
	}
	cfg.NominalHz = sc.ClockHz
	if sc.Console == nil {
		sc.Console = os.Stdout
	}
	osc := NewSimOscillator(sc.ClockHz)
	ref := NewSimPulse(osc, timex.Period(cfg.ReferenceHz))
	ref.Pace = sc.Pace
	aux := NewSimPulse(nil, timex.Period(cfg.ReferenceHz))
	pin := &SimPin{}
	i2c := &HostI2C{Devices: map[uint16]bool{}}
	for _, a := range sc.I2CDevs {
		i2c.Devices[a] = true
	}
	sb := &SimBoard{Osc: osc, Ref: ref, AuxRef: aux, Pin: pin, Bus: i2c}
	sb.Board = Board{
		Name:       "host-sim",
		Config:     cfg,
		Reference:  ref,
		Aux:        aux,
		Counter:    NewSimCounter(osc, cfg.Prescale, cfg.Width),
		AuxCounter: NewSimCounter(osc, cfg.Prescale, cfg.Width),
		LED:        pin,
		Console:    sc.Console,
		I2C:        i2c,
		Halt:       haltHost,
	}
	return sb
}

// Step fires the reference pulse once.
func (s *SimBoard) Step() { s.Ref.Fire() }

// Open returns the default host board, paced in real time.
func Open() (*Board, error) {
	sb := NewSim(SimConfig{Pace: timex.Period(meter.ReferenceHz)})
	return &sb.Board, nil
}

func haltHost(err error) {
	println("Fatal:", err.Error())
	panic(err)
}
