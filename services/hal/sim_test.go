//go:build !(rp2040 || rp2350)

package hal

import (
	"errors"
	"testing"
	"time"

	"clockmeter-go/errcode"
)

func TestSimOscillatorNoDrift(t *testing.T) {
	o := NewSimOscillator(48_000_000)
	for i := 0; i < 3000; i++ {
		o.Advance(time.Millisecond / 3)
	}
	// 3000 * 333333ns = 0.999999s
	if got, want := o.Cycles(), uint64(47_999_952); got != want {
		t.Fatalf("cycles = %d, want %d", got, want)
	}
	o.Advance(time.Second)
	if got, want := o.Cycles(), uint64(95_999_952); got != want {
		t.Fatalf("cycles after 1.999999s = %d, want %d", got, want)
	}
}

func TestSimCounterWraps(t *testing.T) {
	o := NewSimOscillator(48_000_000)
	c := NewSimCounter(o, 1000, 16)
	o.Advance(time.Second)
	if c.Read() != 48000 {
		t.Fatalf("read %d", c.Read())
	}
	o.Advance(time.Second)
	if got := c.Read(); got != 96000%65536 {
		t.Fatalf("read %d, want %d", got, 96000%65536)
	}
}

func TestSimPulseAckCycle(t *testing.T) {
	o := NewSimOscillator(1000)
	p := NewSimPulse(o, time.Second)
	p.Fire() // not started: no-op apart from time
	if p.Fired() != 0 {
		t.Fatal("fired before start")
	}
	if err := p.Ack(); !errors.Is(err, errcode.NotStarted) {
		t.Fatalf("Ack before Start = %v", err)
	}

	var acks int
	if err := p.Start(func() {
		if err := p.Ack(); err == nil {
			acks++
		}
	}); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(func() {}); !errors.Is(err, errcode.AlreadyStarted) {
		t.Fatalf("second Start = %v", err)
	}
	p.Fire()
	p.Fire()
	if acks != 2 || p.Fired() != 2 {
		t.Fatalf("acks=%d fired=%d", acks, p.Fired())
	}
	if o.Cycles() != 3000 {
		t.Fatalf("cycles = %d", o.Cycles())
	}
}

func TestSimPulseMissedAck(t *testing.T) {
	p := NewSimPulse(nil, time.Second)
	var errs []error
	first := true
	_ = p.Start(func() {
		if first {
			first = false
			return // no ack
		}
		errs = append(errs, p.Ack())
	})
	p.Fire()
	p.Fire()
	if len(errs) != 1 || !errors.Is(errs[0], errcode.MissedAck) {
		t.Fatalf("errs = %v", errs)
	}
}

func TestSimPulsePaced(t *testing.T) {
	p := NewSimPulse(nil, time.Second)
	p.Pace = time.Millisecond
	got := make(chan struct{}, 16)
	_ = p.Start(func() {
		_ = p.Ack()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	defer p.Stop()
	for i := 0; i < 3; i++ {
		select {
		case <-got:
		case <-time.After(time.Second):
			t.Fatal("paced pulse did not fire")
		}
	}
}

func TestScanI2C(t *testing.T) {
	bus := &HostI2C{Devices: map[uint16]bool{0x38: true, 0x68: true, 0x03: true}}
	got := ScanI2C(bus)
	if len(got) != 2 || got[0] != 0x38 || got[1] != 0x68 {
		t.Fatalf("scan = %x", got)
	}
	if ScanI2C(nil) != nil {
		t.Fatal("nil bus should scan empty")
	}
}
