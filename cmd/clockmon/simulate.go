package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"clockmeter-go/bus"
	"clockmeter-go/services/console"
	"clockmeter-go/services/hal"
	"clockmeter-go/services/heartbeat"
	"clockmeter-go/services/meter"
	"clockmeter-go/x/timex"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	simulateFreq  string
	simulateCount int
)

func init() {
	RootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVarP(&simulateFreq, "freq", "f", "48MHz", "simulated core clock")
	simulateCmd.Flags().IntVarP(&simulateCount, "count", "c", 0, "number of reference intervals; 0 runs in real time until interrupted")
}

// simulateRun drives the meter against a simulated board and copies its
// console to out. With count > 0 the pulses are stepped as fast as possible.
func simulateRun(ctx context.Context, out io.Writer, hz uint64, count int) error {
	sc := hal.SimConfig{ClockHz: hz, Console: out}
	if count <= 0 {
		sc.Pace = timex.Period(meter.ReferenceHz)
	}
	sb := hal.NewSim(sc)
	if err := sb.Config.Validate(); err != nil {
		return err
	}

	sink := console.New(console.DefaultRingSize)
	m, err := meter.New(sb.Config, meter.Deps{
		Bindings:  sb.Bindings(),
		Sink:      sink,
		Indicator: heartbeat.NewIndicator(sb.LED),
		Trap:      sb.Halt,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b := bus.NewBus(8)
	go m.Run(ctx, b.NewConnection("meter"))

	if err := m.Start(); err != nil {
		return err
	}
	if count > 0 {
		for i := 0; i < count; i++ {
			sb.Step()
			sink.Flush(sb.Console)
		}
	} else {
		sink.Run(ctx, sb.Console)
		sb.Ref.Stop()
	}
	st := m.Stats()
	log.Debugf("samples=%d line_drops=%d queue_drops=%d", st.Samples, st.LineDrops, st.QueueDrops)
	return nil
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the meter against a simulated clock and print its console",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		hz, err := parseFreq(simulateFreq)
		if err != nil {
			log.Fatal(err)
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := simulateRun(ctx, os.Stdout, uint64(hz), simulateCount); err != nil {
			log.Fatal(err)
		}
	},
}
