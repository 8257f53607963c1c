// Package monitor is the host side of the meter: it reads the firmware's
// console lines, keeps running statistics per channel and exports them.
package monitor

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"clockmeter-go/errcode"
	"clockmeter-go/services/meter"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultBaud matches the firmware console.
const DefaultBaud = 115200

// Lines longer than this end the stream with an error.
const maxLine = 4096

// Reading is one parsed console line.
type Reading struct {
	Channel string
	Milli   uint64 // thousandths of Unit
	Unit    string
	At      time.Time
}

// Hz is the reading in Hz. Source only emits units UnitScale knows.
func (r Reading) Hz() float64 {
	scale, _ := UnitScale(r.Unit)
	return float64(r.Milli) * scale / 1e3
}

var unitScales = map[string]float64{
	"hz":  1,
	"khz": 1e3,
	"mhz": 1e6,
	"ghz": 1e9,
}

// UnitScale returns the Hz per unit for a frequency unit name. Case is
// ignored.
func UnitScale(unit string) (float64, bool) {
	v, ok := unitScales[strings.ToLower(unit)]
	return v, ok
}

// OpenSerial opens the firmware console port.
func OpenSerial(device string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "monitor.OpenSerial", Msg: device, Err: err}
	}
	return port, nil
}

// Source turns a byte stream into Readings.
//
// The first reading of each channel after a boot banner covers the
// interval from counter start to the first reference pulse and is dropped.
type Source struct {
	r       io.Reader
	now     func() time.Time
	invalid uint64
	skipped uint64
	boots   uint64
	warm    map[string]bool // channels already past their first post-boot reading
	booted  bool
}

func NewSource(r io.Reader) *Source {
	return &Source{r: r, now: time.Now, warm: make(map[string]bool)}
}

// Invalid is the number of lines that did not parse.
func (s *Source) Invalid() uint64 { return s.invalid }

// Skipped is the number of first post-boot readings dropped.
func (s *Source) Skipped() uint64 { return s.skipped }

// Boots is the number of boot banners seen.
func (s *Source) Boots() uint64 { return s.boots }

// Run calls fn for every well-formed line until the stream ends or ctx is
// cancelled. Malformed lines, such as a partial first line, are counted and
// skipped. io.EOF is not reported as an error.
func (s *Source) Run(ctx context.Context, fn func(Reading)) error {
	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, maxLine), maxLine)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Text()
		if strings.TrimSpace(line) == meter.Banner {
			s.boots++
			s.booted = true
			clear(s.warm)
			log.Debug("meter reset")
			continue
		}
		label, milli, unit, err := meter.ParseLine(line)
		if err == nil {
			if _, ok := UnitScale(unit); !ok {
				err = errcode.Wrap(errcode.InvalidLine, "monitor.Source", "unknown unit "+unit)
			}
		}
		if err != nil {
			s.invalid++
			log.Debugf("skipping console line %q: %v", line, err)
			continue
		}
		if s.booted && !s.warm[label] {
			s.warm[label] = true
			s.skipped++
			log.Debugf("dropping first %s reading after reset", label)
			continue
		}
		fn(Reading{Channel: label, Milli: milli, Unit: unit, At: s.now()})
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return &errcode.E{C: errcode.Error, Op: "monitor.Source", Err: err}
	}
	return ctx.Err()
}
