package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"clockmeter-go/services/monitor"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchPort    string
	watchBaud    int
	watchNominal string
	watchMetrics string
)

func init() {
	RootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVarP(&watchPort, "port", "p", "/dev/ttyACM0", "serial device of the firmware console")
	watchCmd.Flags().IntVarP(&watchBaud, "baud", "b", monitor.DefaultBaud, "console baud rate")
	watchCmd.Flags().StringVarP(&watchNominal, "nominal", "n", "", "expected clock, e.g. 48MHz; enables the ppm column")
	watchCmd.Flags().StringVarP(&watchMetrics, "metrics", "m", "", "serve Prometheus metrics on this address, e.g. :9110")
}

func printSummary(w io.Writer, s monitor.Summary) {
	fmt.Fprintf(w, "%-10s last=%.3f MHz mean=%.6f MHz sd=%.1f Hz min=%.3f max=%.3f n=%d",
		s.Channel, s.LastHz/1e6, s.MeanHz/1e6, s.StddevHz, s.MinHz/1e6, s.MaxHz/1e6, s.Count)
	if s.PPM != 0 {
		fmt.Fprintf(w, " ppm=%+.2f", s.PPM)
	}
	fmt.Fprintln(w)
}

// watchRun consumes console text from r until it ends or ctx is done,
// printing one summary line per reading.
func watchRun(ctx context.Context, r io.Reader, out io.Writer, nominalHz float64, exp *monitor.Exporter) error {
	stats := monitor.NewStats(nominalHz)
	src := monitor.NewSource(r)
	err := src.Run(ctx, func(rd monitor.Reading) {
		stats.Add(rd)
		sums := stats.Snapshot()
		for _, s := range sums {
			if s.Channel == rd.Channel {
				printSummary(out, s)
			}
		}
		if exp != nil {
			exp.Update(sums, src.Invalid())
		}
	})
	log.Debugf("%d console lines invalid, %d readings dropped after %d resets", src.Invalid(), src.Skipped(), src.Boots())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Read the firmware console and keep per-channel statistics",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		var nominal float64
		if watchNominal != "" {
			var err error
			if nominal, err = parseFreq(watchNominal); err != nil {
				log.Fatal(err)
			}
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		port, err := monitor.OpenSerial(watchPort, watchBaud)
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			<-ctx.Done()
			port.Close()
		}()

		var exp *monitor.Exporter
		if watchMetrics != "" {
			exp = monitor.NewExporter()
			go func() {
				if err := exp.Serve(ctx, watchMetrics); err != nil {
					log.Errorf("metrics server: %v", err)
				}
			}()
		}
		log.Infof("watching %s at %d baud", watchPort, watchBaud)
		if err := watchRun(ctx, port, os.Stdout, nominal, exp); err != nil && ctx.Err() == nil {
			log.Fatal(err)
		}
	},
}
