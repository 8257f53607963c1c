// Package hal brings up the board: reference pulse sources, tick counters,
// the heartbeat LED, the console and the secondary I²C bus. The concrete
// board is selected by build tags (RP2040 or the host simulation).
package hal

import (
	"io"

	"clockmeter-go/services/meter"

	"tinygo.org/x/drivers"
)

// Pin is a digital output.
type Pin interface {
	Set(level bool)
	Get() bool
}

// Board is everything the firmware needs after bring-up. Counters are
// running and pulse sources are configured but not armed.
type Board struct {
	Name   string
	Config meter.Config

	// Reference drives the "Expected" channel. Aux drives "Actual" and is
	// never started in the shipped configuration.
	Reference  meter.PulseSource
	Aux        meter.PulseSource
	Counter    meter.TickCounter
	AuxCounter meter.TickCounter

	LED     Pin
	Console io.Writer
	I2C     drivers.I2C

	// Halt reports a fatal configuration fault and does not return on
	// hardware.
	Halt func(error)
}

// Bindings attaches the board's hardware to the meter channels. Each counter
// is wrapped once so it is only reachable through its critical section.
func (b *Board) Bindings() []meter.Binding {
	return []meter.Binding{
		{Label: meter.LabelExpected, Pulse: b.Reference, Counter: meter.Share(b.Counter)},
		{Label: meter.LabelActual, Pulse: b.Aux, Counter: meter.Share(b.AuxCounter)},
	}
}

// I²C 7-bit addresses outside the reserved ranges.
const (
	firstI2CAddr = 0x08
	lastI2CAddr  = 0x77
)

// ScanI2C probes every non-reserved 7-bit address with a one-byte read and
// returns the addresses that answered.
func ScanI2C(bus drivers.I2C) []uint8 {
	if bus == nil {
		return nil
	}
	var found []uint8
	var rx [1]byte
	for a := uint16(firstI2CAddr); a <= lastI2CAddr; a++ {
		if err := bus.Tx(a, nil, rx[:]); err == nil {
			found = append(found, uint8(a))
		}
	}
	return found
}
