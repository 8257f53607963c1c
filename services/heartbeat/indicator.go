package heartbeat

import "clockmeter-go/x/critical"

// Pin is the LED output.
type Pin interface {
	Set(level bool)
	Get() bool
}

// Indicator flips the LED once per reference pulse. The read-modify-write
// runs under the pin's critical section so task code and the interrupt
// never interleave on it.
type Indicator struct {
	r *critical.Resource[Pin]
}

func NewIndicator(p Pin) *Indicator {
	return &Indicator{r: critical.New(p)}
}

// Toggle is best-effort and safe in interrupt context.
func (i *Indicator) Toggle() {
	p, g := i.r.Acquire()
	defer g.Release()
	(*p).Set(!(*p).Get())
}

// Set forces the LED level.
func (i *Indicator) Set(on bool) {
	i.r.Lock(func(p *Pin) { (*p).Set(on) })
}

func (i *Indicator) On() bool {
	return critical.Read(i.r, func(p *Pin) bool { return (*p).Get() })
}
