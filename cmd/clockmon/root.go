package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"clockmeter-go/errcode"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is the main entry point.
var RootCmd = &cobra.Command{
	Use:   "clockmon",
	Short: "Watch or simulate the clock frequency meter",
}

var rootVerboseFlag bool

func init() {
	RootCmd.PersistentFlags().BoolVarP(&rootVerboseFlag, "verbose", "v", false, "verbose output")
}

// ConfigureVerbosity configures log verbosity based on parsed flags.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if rootVerboseFlag {
		log.SetLevel(log.DebugLevel)
	}
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var freqSuffixes = []struct {
	suffix string
	mult   float64
}{
	{"ghz", 1e9},
	{"mhz", 1e6},
	{"khz", 1e3},
	{"hz", 1},
}

// parseFreq accepts "48000000", "48MHz", "48.5 mhz", "125kHz".
func parseFreq(s string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	mult := 1.0
	for _, fs := range freqSuffixes {
		if strings.HasSuffix(v, fs.suffix) {
			v = strings.TrimSpace(strings.TrimSuffix(v, fs.suffix))
			mult = fs.mult
			break
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, errcode.Wrap(errcode.InvalidConfig, "clockmon", fmt.Sprintf("bad frequency %q", s))
	}
	return f * mult, nil
}
