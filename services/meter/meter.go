package meter

import (
	"context"
	"sync/atomic"

	"clockmeter-go/bus"
	"clockmeter-go/errcode"
	"clockmeter-go/types"
	"clockmeter-go/x/timex"
)

const (
	defaultQueueLen = 8
	lineCap         = 64
)

// Binding attaches hardware to the channel with the same label.
// A dormant channel may leave Pulse nil.
type Binding struct {
	Label   string
	Pulse   PulseSource
	Counter *SharedCounter
}

// Deps are the collaborators of a Meter.
type Deps struct {
	Bindings  []Binding
	Sink      TextSink
	Indicator Toggler
	QueueLen  int

	// Trap is called on a configuration fault and is expected not to
	// return on hardware. nil panics.
	Trap func(error)
}

// Channel is one MeasurementChannel: a counter, a pulse source and the
// Sampler that owns its PreviousSample.
type Channel struct {
	cfg     ChannelConfig
	pulse   PulseSource
	counter *SharedCounter
	sampler Sampler
	line    [lineCap]byte
	m       *Meter
}

func (c *Channel) Config() ChannelConfig { return c.cfg }

// Previous exposes the channel's PreviousSample.
func (c *Channel) Previous() uint32 { return c.sampler.Previous() }

// Samples is the number of pulses this channel has handled.
func (c *Channel) Samples() uint32 { return c.sampler.Count() }

func (c *Channel) onPulse() { c.m.OnPulse(c) }

// Stats are counters readable from any goroutine.
type Stats struct {
	Samples    uint32
	LineDrops  uint32
	QueueDrops uint32
	Faults     uint32
}

// Meter owns the channels and the ISR-to-task reading queue.
type Meter struct {
	cfg      Config
	scale    uint32
	channels []*Channel
	sink     TextSink
	beat     Toggler
	trap     func(error)

	readings chan types.FrequencyValue
	faultC   chan struct{}
	started  atomic.Bool

	samples    atomic.Uint32
	lineDrops  atomic.Uint32
	queueDrops atomic.Uint32
	faults     atomic.Uint32
	fault      atomic.Value // error
}

// New validates cfg and binds hardware to every channel.
func New(cfg Config, d Deps) (*Meter, error) {
	const op = "meter.New"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	q := d.QueueLen
	if q <= 0 {
		q = defaultQueueLen
	}
	m := &Meter{
		cfg:      cfg,
		scale:    cfg.ScaleKHz(),
		sink:     d.Sink,
		beat:     d.Indicator,
		trap:     d.Trap,
		readings: make(chan types.FrequencyValue, q),
		faultC:   make(chan struct{}, 1),
	}
	for _, cc := range cfg.Channels {
		ch := &Channel{cfg: cc, sampler: Sampler{width: cfg.Width}, m: m}
		m.channels = append(m.channels, ch)
	}
	for _, b := range d.Bindings {
		ch, ok := m.Channel(b.Label)
		if !ok {
			return nil, errcode.Wrap(errcode.UnknownChannel, op, b.Label)
		}
		ch.pulse, ch.counter = b.Pulse, b.Counter
	}
	for _, ch := range m.channels {
		if ch.pulse != nil && ch.counter == nil {
			return nil, errcode.Wrap(errcode.InvalidConfig, op, "channel "+ch.cfg.Label+" has a pulse source but no counter")
		}
		if !ch.cfg.Dormant && ch.pulse == nil {
			return nil, errcode.Wrap(errcode.InvalidConfig, op, "active channel "+ch.cfg.Label+" is not bound")
		}
	}
	return m, nil
}

func (m *Meter) Config() Config { return m.cfg }

// Channel looks a channel up by label (case-insensitive).
func (m *Meter) Channel(label string) (*Channel, bool) {
	key := ChannelConfig{Label: label}.Topic()
	for _, ch := range m.channels {
		if ch.cfg.Topic() == key {
			return ch, true
		}
	}
	return nil, false
}

// Channels lists channels in configuration order.
func (m *Meter) Channels() []*Channel { return m.channels }

// Start arms the pulse source of every active channel. Dormant channels stay
// wired but unarmed.
func (m *Meter) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return errcode.AlreadyStarted
	}
	for _, ch := range m.channels {
		if ch.cfg.Dormant || ch.pulse == nil {
			continue
		}
		if err := ch.pulse.Start(ch.onPulse); err != nil {
			return &errcode.E{C: errcode.Of(err), Op: "meter.Start", Msg: ch.cfg.Label, Err: err}
		}
	}
	return nil
}

// OnPulse is the interrupt body for one channel's reference pulse. It does
// not block or allocate on the normal path.
func (m *Meter) OnPulse(ch *Channel) {
	if err := ch.pulse.Ack(); err != nil {
		m.raise(ch, err)
		return
	}
	raw := ch.counter.Read()
	delta := ch.sampler.Sample(raw)
	m.samples.Add(1)
	if ch.cfg.Dormant {
		return
	}

	khz := uint64(delta) * uint64(m.scale)
	line := AppendLine(ch.line[:0], ch.cfg.Label, khz, m.cfg.Unit)
	if m.sink == nil || !m.sink.WriteLine(line) {
		m.lineDrops.Add(1)
	}

	if m.beat != nil {
		m.beat.Toggle()
	}

	select {
	case m.readings <- types.FrequencyValue{
		Channel: ch.cfg.Label,
		Raw:     ch.sampler.Previous(),
		Delta:   delta,
		KHz:     uint32(khz),
		Seq:     ch.sampler.Count(),
	}:
	default:
		m.queueDrops.Add(1)
	}
}

// raise records a pulse fault and wakes Run. Fatal codes go to the trap;
// anything else is only counted.
func (m *Meter) raise(ch *Channel, err error) {
	m.faults.Add(1)
	e := &errcode.E{C: errcode.Of(err), Op: "pulse " + ch.cfg.Label, Err: err}
	m.fault.Store(error(e))
	select {
	case m.faultC <- struct{}{}:
	default:
	}
	if !errcode.Fatal(e.C) {
		return
	}
	if m.trap == nil {
		panic(e.Error())
	}
	m.trap(e)
}

// Fault returns the most recent pulse fault, if any.
func (m *Meter) Fault() error {
	if v := m.fault.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *Meter) Stats() Stats {
	return Stats{
		Samples:    m.samples.Load(),
		LineDrops:  m.lineDrops.Load(),
		QueueDrops: m.queueDrops.Load(),
		Faults:     m.faults.Load(),
	}
}

// Readings exposes the raw ISR queue. Use it instead of Run, not with it.
func (m *Meter) Readings() <-chan types.FrequencyValue { return m.readings }

// -----------------------------------------------------------------------------
// Bus publication
// -----------------------------------------------------------------------------

func TopicInfo(ch string) bus.Topic  { return bus.T("meter", ch, "info") }
func TopicValue(ch string) bus.Topic { return bus.T("meter", ch, "value") }
func TopicState() bus.Topic          { return bus.T("meter", "state") }

// Run publishes channel info, then every reading, until ctx is cancelled.
func (m *Meter) Run(ctx context.Context, conn *bus.Connection) {
	for _, ch := range m.channels {
		conn.Publish(bus.NewMessage(TopicInfo(ch.cfg.Topic()), types.ChannelInfo{
			Label:       ch.cfg.Label,
			Unit:        m.cfg.Unit,
			ReferenceHz: m.cfg.ReferenceHz,
			Prescale:    m.cfg.Prescale,
			Width:       m.cfg.Width,
			ScaleKHz:    m.scale,
			Dormant:     ch.cfg.Dormant,
		}, true))
	}
	m.publishState(conn, "running", "started")

	for {
		select {
		case <-ctx.Done():
			m.publishState(conn, "stopped", "context_cancelled")
			return
		case r := <-m.readings:
			r.TS = timex.NowMs()
			conn.Publish(bus.NewMessage(TopicValue(ChannelConfig{Label: r.Channel}.Topic()), r, true))
		case <-m.faultC:
			m.publishState(conn, "fault", string(errcode.Of(m.Fault())))
		}
	}
}

func (m *Meter) publishState(conn *bus.Connection, level, status string) {
	conn.Publish(bus.NewMessage(TopicState(), types.MeterState{
		Kind:   types.KindFrequency,
		Level:  level,
		Status: status,
		TS:     timex.NowMs(),
	}, true))
}
