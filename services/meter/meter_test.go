package meter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clockmeter-go/bus"
	"clockmeter-go/errcode"
	"clockmeter-go/types"
)

// ---- fakes ----

type fakePulse struct {
	handler func()
	starts  int
	pending bool
	ackErr  error
}

func (p *fakePulse) Start(h func()) error {
	p.starts++
	p.handler = h
	return nil
}

func (p *fakePulse) Ack() error {
	if p.ackErr != nil {
		return p.ackErr
	}
	p.pending = false
	return nil
}

// fire raises one pulse; a pulse raised before the previous one was acked
// is reported as missed.
func (p *fakePulse) fire() {
	if p.pending {
		p.ackErr = errcode.MissedAck
	}
	p.pending = true
	p.handler()
}

type fakeCounter struct{ v uint32 }

func (c *fakeCounter) Read() uint32     { return c.v }
func (c *fakeCounter) advance(n uint32) { c.v = (c.v + n) & 0xFFFF }

type fakeSink struct {
	lines []string
	full  bool
}

func (s *fakeSink) WriteLine(b []byte) bool {
	if s.full {
		return false
	}
	s.lines = append(s.lines, string(b))
	return true
}

type fakeLED struct{ n int }

func (l *fakeLED) Toggle() { l.n++ }

type rig struct {
	m          *Meter
	expP, actP *fakePulse
	expC, actC *fakeCounter
	sink       *fakeSink
	led        *fakeLED
	trapped    []error
}

func newRig(t *testing.T, queue int) *rig {
	t.Helper()
	r := &rig{
		expP: &fakePulse{}, actP: &fakePulse{},
		expC: &fakeCounter{}, actC: &fakeCounter{},
		sink: &fakeSink{}, led: &fakeLED{},
	}
	m, err := New(Default(), Deps{
		Bindings: []Binding{
			{Label: LabelExpected, Pulse: r.expP, Counter: Share(r.expC)},
			{Label: LabelActual, Pulse: r.actP, Counter: Share(r.actC)},
		},
		Sink:      r.sink,
		Indicator: r.led,
		Trap:      func(err error) { r.trapped = append(r.trapped, err) },
		QueueLen:  queue,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.m = m
	return r
}

// ---- tests ----

func TestSteadyClockPrintsSameLine(t *testing.T) {
	r := newRig(t, 16)
	for i := 0; i < 5; i++ {
		r.expC.advance(48000)
		r.expP.fire()
	}
	if len(r.sink.lines) != 5 {
		t.Fatalf("got %d lines", len(r.sink.lines))
	}
	for _, l := range r.sink.lines {
		if l != "Expected: 48.000 MHz\n" {
			t.Fatalf("line %q", l)
		}
	}
	if r.led.n != 5 {
		t.Fatalf("led toggled %d times", r.led.n)
	}
	ch, _ := r.m.Channel(LabelExpected)
	if ch.Previous() != (5*48000)%65536 {
		t.Fatalf("prev = %d", ch.Previous())
	}
}

func TestNonRoundFrequency(t *testing.T) {
	r := newRig(t, 4)
	r.expC.v = 65000
	r.expP.fire() // first interval is measured from zero
	r.expC.advance(48237)
	r.expP.fire()
	if got := r.sink.lines[1]; got != "Expected: 48.237 MHz\n" {
		t.Fatalf("line %q", got)
	}
}

func TestStartOnlyArmsActiveChannels(t *testing.T) {
	r := newRig(t, 4)
	if r.expP.starts != 1 || r.actP.starts != 0 {
		t.Fatalf("starts: expected=%d actual=%d", r.expP.starts, r.actP.starts)
	}
	if err := r.m.Start(); !errors.Is(err, errcode.AlreadyStarted) {
		t.Fatalf("second Start = %v", err)
	}
}

func TestDormantChannelIsSilent(t *testing.T) {
	r := newRig(t, 4)
	ch, _ := r.m.Channel("actual")
	r.actP.handler = func() { r.m.OnPulse(ch) }

	r.actC.advance(1234)
	r.actP.fire()

	if len(r.sink.lines) != 0 || r.led.n != 0 || len(r.m.Readings()) != 0 {
		t.Fatal("dormant channel produced output")
	}
	if ch.Previous() != 1234 || ch.Samples() != 1 {
		t.Fatalf("dormant channel not sampled: prev=%d n=%d", ch.Previous(), ch.Samples())
	}
}

func TestMissedAckTraps(t *testing.T) {
	r := newRig(t, 4)
	r.expP.pending = true // previous notification never cleared
	r.expP.fire()

	if len(r.trapped) != 1 {
		t.Fatalf("trap called %d times", len(r.trapped))
	}
	if !errors.Is(r.trapped[0], errcode.MissedAck) {
		t.Fatalf("trap err = %v", r.trapped[0])
	}
	if !strings.Contains(r.trapped[0].Error(), "Expected") {
		t.Fatalf("trap err lacks channel: %v", r.trapped[0])
	}
	if len(r.sink.lines) != 0 || r.m.Stats().Faults != 1 {
		t.Fatalf("fault path produced output: %+v", r.m.Stats())
	}
	if !errors.Is(r.m.Fault(), errcode.MissedAck) {
		t.Fatalf("Fault() = %v", r.m.Fault())
	}
}

func TestDefaultTrapPanics(t *testing.T) {
	p := &fakePulse{ackErr: errcode.Overrun}
	m, err := New(Default(), Deps{Bindings: []Binding{
		{Label: LabelExpected, Pulse: p, Counter: Share(&fakeCounter{})},
	}})
	if err != nil {
		t.Fatal(err)
	}
	ch, _ := m.Channel(LabelExpected)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	m.OnPulse(ch)
}

func TestDropsAreCounted(t *testing.T) {
	r := newRig(t, 1)
	r.sink.full = true
	for i := 0; i < 3; i++ {
		r.expC.advance(48000)
		r.expP.fire()
	}
	st := r.m.Stats()
	if st.Samples != 3 || st.LineDrops != 3 || st.QueueDrops != 2 {
		t.Fatalf("stats %+v", st)
	}
	if r.led.n != 3 {
		t.Fatalf("indicator should toggle regardless of sink, got %d", r.led.n)
	}
}

func TestNewRejectsBadBindings(t *testing.T) {
	cnt := Share(&fakeCounter{})
	cases := []struct {
		name string
		b    []Binding
		want errcode.Code
	}{
		{"unknown label", []Binding{{Label: "Other", Pulse: &fakePulse{}, Counter: cnt}}, errcode.UnknownChannel},
		{"active unbound", nil, errcode.InvalidConfig},
		{"no counter", []Binding{{Label: LabelExpected, Pulse: &fakePulse{}}}, errcode.InvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(Default(), Deps{Bindings: tc.b})
			if errcode.Of(err) != tc.want {
				t.Fatalf("New() = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestRunPublishes(t *testing.T) {
	r := newRig(t, 4)
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	values := conn.Subscribe(bus.T("meter", "+", "value"))
	info := conn.Subscribe(TopicInfo("expected"))
	state := conn.Subscribe(TopicState())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { r.m.Run(ctx, conn); close(done) }()

	expectPayload[types.ChannelInfo](t, info, func(ci types.ChannelInfo) bool {
		return ci.Label == LabelExpected && ci.ScaleKHz == 1 && ci.Width == 16
	})
	expectPayload[types.MeterState](t, state, func(s types.MeterState) bool {
		return s.Level == "running" && s.Kind == types.KindFrequency
	})

	r.expC.advance(48000)
	r.expP.fire()
	expectPayload[types.FrequencyValue](t, values, func(v types.FrequencyValue) bool {
		return v.Channel == LabelExpected && v.Delta == 48000 && v.KHz == 48000 && v.Seq == 1 && v.TS > 0
	})

	cancel()
	<-done
	expectPayload[types.MeterState](t, state, func(s types.MeterState) bool { return s.Level == "stopped" })
}

func expectPayload[P any](t *testing.T, sub *bus.Subscription, ok func(P) bool) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		p, isP := m.Payload.(P)
		if !isP {
			t.Fatalf("payload %T on %s", m.Payload, m.Topic)
		}
		if !ok(p) {
			t.Fatalf("unexpected payload %+v on %s", p, m.Topic)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout on %s", sub.Topic())
	}
}

func TestRunPublishesFaultState(t *testing.T) {
	r := newRig(t, 4)
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	state := conn.Subscribe(TopicState())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.m.Run(ctx, conn)
	expectPayload[types.MeterState](t, state, func(s types.MeterState) bool { return s.Level == "running" })

	// A fault stops readings for good, so the state must not wait for one.
	r.expP.ackErr = errcode.MissedAck
	for i := 0; i < 3; i++ {
		r.expP.fire()
	}
	expectPayload[types.MeterState](t, state, func(s types.MeterState) bool {
		return s.Level == "fault" && s.Status == string(errcode.MissedAck)
	})
	if len(r.trapped) != 3 {
		t.Fatalf("trap called %d times", len(r.trapped))
	}
}

func TestNonFatalAckErrorIsCountedNotTrapped(t *testing.T) {
	r := newRig(t, 4)
	r.expP.ackErr = errcode.NotStarted
	r.expP.fire()
	if len(r.trapped) != 0 {
		t.Fatalf("trap called for %v", r.trapped)
	}
	st := r.m.Stats()
	if st.Faults != 1 || st.Samples != 0 || len(r.sink.lines) != 0 {
		t.Fatalf("stats %+v lines %d", st, len(r.sink.lines))
	}
	if !errors.Is(r.m.Fault(), errcode.NotStarted) {
		t.Fatalf("Fault() = %v", r.m.Fault())
	}
}
