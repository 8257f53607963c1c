//go:build rp2040 && !rp2350

package hal

import (
	"device/arm"
	"device/rp"
	"machine"
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"

	"clockmeter-go/errcode"
	"clockmeter-go/services/meter"
	"clockmeter-go/x/timex"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// The PWM divider tops out at ÷255, so the reference design's ÷1000 is
// split: ÷200 in the slice and a 20 Hz reference. One tick is still 4 kHz.
const (
	pwmDivider   = 200
	referenceHz  = 20
	consoleBaud  = 115200
	i2cFrequency = 100 * machine.KHz

	// Alarm 0 belongs to the TinyGo scheduler.
	refAlarm = 1
	auxAlarm = 2

	refSlice = 0
	auxSlice = 1
)

// -----------------------------------------------------------------------------
// TIMER
// -----------------------------------------------------------------------------

type timerType struct {
	timeHW   volatile.Register32
	timeLW   volatile.Register32
	timeHR   volatile.Register32
	timeLR   volatile.Register32
	alarm    [4]volatile.Register32
	armed    volatile.Register32
	timeRawH volatile.Register32
	timeRawL volatile.Register32
	dbgPause volatile.Register32
	pause    volatile.Register32
	intR     volatile.Register32
	intE     volatile.Register32
	intF     volatile.Register32
	intS     volatile.Register32
}

var timer = (*timerType)(unsafe.Pointer(rp.TIMER))

// alarmPulse is a periodic TIMER alarm. The deadline advances by exactly one
// period per pulse so the interval never accumulates handler latency.
type alarmPulse struct {
	idx      uint8
	periodUs uint32
	target   uint32
	irq      interrupt.Interrupt
	handler  func()
	pending  bool
	missed   bool
}

var (
	refPulse = alarmPulse{idx: refAlarm}
	auxPulse = alarmPulse{idx: auxAlarm}
)

// initAlarm prepares alarm a at hz. interrupt.New needs a constant IRQ per
// call site, hence the switch.
func initAlarm(a *alarmPulse, hz uint32) *alarmPulse {
	a.periodUs = timex.PeriodUs(hz)
	switch a.idx {
	case refAlarm:
		a.irq = interrupt.New(rp.IRQ_TIMER_IRQ_1, func(interrupt.Interrupt) { refPulse.isr() })
	case auxAlarm:
		a.irq = interrupt.New(rp.IRQ_TIMER_IRQ_2, func(interrupt.Interrupt) { auxPulse.isr() })
	}
	return a
}

func (a *alarmPulse) Start(handler func()) error {
	if a.handler != nil {
		return errcode.AlreadyStarted
	}
	a.handler = handler
	a.target = timer.timeRawL.Get() + a.periodUs
	timer.intR.Set(1 << a.idx)
	timer.intE.SetBits(1 << a.idx)
	a.irq.SetPriority(0x00)
	a.irq.Enable()
	timer.alarm[a.idx].Set(a.target)
	return nil
}

func (a *alarmPulse) isr() {
	if a.pending {
		a.missed = true
	}
	a.pending = true
	a.handler()
}

// Ack clears the alarm and arms the next deadline.
func (a *alarmPulse) Ack() error {
	if a.handler == nil {
		return errcode.NotStarted
	}
	if a.missed {
		return errcode.MissedAck
	}
	a.pending = false
	timer.intR.Set(1 << a.idx)
	a.target += a.periodUs
	timer.alarm[a.idx].Set(a.target)
	if int32(a.target-timer.timeRawL.Get()) <= 0 {
		return errcode.Overrun
	}
	return nil
}

// -----------------------------------------------------------------------------
// PWM slices as free-running counters
// -----------------------------------------------------------------------------

type pwmSlice struct {
	csr volatile.Register32
	div volatile.Register32
	ctr volatile.Register32
	cc  volatile.Register32
	top volatile.Register32
}

type pwmType struct {
	ch   [8]pwmSlice
	en   volatile.Register32
	intR volatile.Register32
	intE volatile.Register32
	intF volatile.Register32
	intS volatile.Register32
}

var pwm = (*pwmType)(unsafe.Pointer(rp.PWM))

const (
	pwmCSREn      = 1 << 0
	pwmDivIntPos  = 4
	pwmDivModeMsk = 3 << 4 // 0 = free-running from clk_sys
)

type pwmCounter struct{ slice uint8 }

// initCounter starts slice as a 16-bit counter of clk_sys/div. It is never
// stopped or reset afterwards.
func initCounter(slice uint8, div uint32) pwmCounter {
	s := &pwm.ch[slice]
	s.csr.Set(0)
	s.div.Set(div << pwmDivIntPos)
	s.top.Set(0xFFFF)
	s.ctr.Set(0)
	s.csr.ClearBits(pwmDivModeMsk)
	s.csr.SetBits(pwmCSREn)
	return pwmCounter{slice: slice}
}

func (c pwmCounter) Read() uint32 { return pwm.ch[c.slice].ctr.Get() & 0xFFFF }

// -----------------------------------------------------------------------------
// LED, console, I²C
// -----------------------------------------------------------------------------

type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) Set(b bool) { r.p.Set(b) }
func (r rp2Pin) Get() bool  { return r.p.Get() }

type uartConsole struct{ u *uartx.UART }

func (c uartConsole) Write(b []byte) (int, error) { return c.u.Write(b) }

// Open brings up the Pico: counters running, alarms configured but not
// armed, LED off, console on UART0 and I²C1 on its default pins.
func Open() (*Board, error) {
	cfg := meter.Default()
	cfg.Prescale = pwmDivider
	cfg.ReferenceHz = referenceHz
	cfg.NominalHz = uint64(machine.CPUFrequency())

	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	led.Low()

	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: consoleBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	}); err != nil {
		return nil, err
	}

	i2c := machine.I2C1
	if err := i2c.Configure(machine.I2CConfig{
		Frequency: i2cFrequency,
		SDA:       machine.I2C1_SDA_PIN,
		SCL:       machine.I2C1_SCL_PIN,
	}); err != nil {
		println("Warn: i2c1 configure failed:", err.Error())
	}

	return &Board{
		Name:       "pico",
		Config:     cfg,
		Reference:  initAlarm(&refPulse, referenceHz),
		Aux:        initAlarm(&auxPulse, referenceHz),
		Counter:    initCounter(refSlice, pwmDivider),
		AuxCounter: initCounter(auxSlice, pwmDivider),
		LED:        rp2Pin{p: led},
		Console:    uartConsole{u: u},
		I2C:        i2c,
		Halt:       haltMCU,
	}, nil
}

// haltMCU prints the fault and parks the core with interrupts off.
func haltMCU(err error) {
	interrupt.Disable()
	println("Fatal:", err.Error())
	machine.LED.High()
	for {
		arm.Asm("wfi")
	}
}
