package meter

import (
	"strings"

	"clockmeter-go/errcode"
	"clockmeter-go/x/mathx"
)

// Reference design: a 1 Hz pulse and a ÷1000 prescaler make the raw 16-bit
// delta read directly in kHz.
const (
	ReferenceHz  = 1
	Prescale     = 1000
	CounterWidth = 16

	UnitMHz       = "MHz"
	LabelExpected = "Expected"
	LabelActual   = "Actual"

	// Banner is the first console line after reset.
	Banner = "Measuring clock frequency ..."

	// kHz per display unit; the fractional part is printed with
	// DecimalWidth(displayDivisor) digits.
	displayDivisor = 1000

	maxLabel = 16
	maxUnit  = 8
)

// ChannelConfig names one measurement channel.
type ChannelConfig struct {
	Label   string
	Dormant bool // sampled but never reported
}

// Topic is the bus token for the channel.
func (c ChannelConfig) Topic() string { return strings.ToLower(c.Label) }

// Config is fixed at build time by the board setup.
type Config struct {
	ReferenceHz uint32
	Prescale    uint32
	Width       uint8
	Unit        string

	// NominalHz is the clock the setup expects; 0 skips the alias check.
	NominalHz uint64

	Channels []ChannelConfig
}

// Default returns the reference design: one active "Expected" channel and a
// dormant "Actual" channel.
func Default() Config {
	return Config{
		ReferenceHz: ReferenceHz,
		Prescale:    Prescale,
		Width:       CounterWidth,
		Unit:        UnitMHz,
		Channels: []ChannelConfig{
			{Label: LabelExpected},
			{Label: LabelActual, Dormant: true},
		},
	}
}

// ScaleKHz is the number of kHz one counter tick represents per interval.
// Only meaningful on a validated Config.
func (c Config) ScaleKHz() uint32 {
	return uint32(uint64(c.Prescale) * uint64(c.ReferenceHz) / 1000)
}

// TicksPerInterval is the delta a clock of hz produces in one interval.
func (c Config) TicksPerInterval(hz uint64) uint64 {
	div := uint64(c.Prescale) * uint64(c.ReferenceHz)
	if div == 0 {
		return 0
	}
	return hz / div
}

// Validate checks the static constraints of a setup. Aliasing is only
// checked against NominalHz here, at boot; it is never detected per sample.
func (c Config) Validate() error {
	const op = "meter.Config"
	switch {
	case c.ReferenceHz == 0:
		return errcode.Wrap(errcode.InvalidConfig, op, "reference rate is zero")
	case c.Prescale == 0:
		return errcode.Wrap(errcode.InvalidConfig, op, "prescale is zero")
	case c.Width == 0 || c.Width > 32:
		return errcode.Wrap(errcode.InvalidConfig, op, "counter width out of range")
	case c.Unit == "" || len(c.Unit) > maxUnit:
		return errcode.Wrap(errcode.InvalidConfig, op, "bad unit")
	}
	prod := uint64(c.Prescale) * uint64(c.ReferenceHz)
	if prod%1000 != 0 || prod/1000 > uint64(^uint32(0)) {
		return errcode.Wrap(errcode.InvalidConfig, op, "prescale x reference rate must be a multiple of 1000")
	}
	if len(c.Channels) == 0 {
		return errcode.Wrap(errcode.InvalidConfig, op, "no channels")
	}
	seen := make(map[string]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Label == "" || len(ch.Label) > maxLabel {
			return errcode.Wrap(errcode.InvalidConfig, op, "bad channel label")
		}
		if seen[ch.Topic()] {
			return errcode.Wrap(errcode.InvalidConfig, op, "duplicate channel "+ch.Label)
		}
		seen[ch.Topic()] = true
	}
	if c.NominalHz > 0 && c.TicksPerInterval(c.NominalHz) >= mathx.Modulus(c.Width) {
		return errcode.Wrap(errcode.Aliasing, op, "nominal clock wraps the counter more than once per interval")
	}
	return nil
}
