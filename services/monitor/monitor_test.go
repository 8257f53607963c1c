package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const consoleDump = "Measuring clock frequency ...\r\n" +
	"xpected: 47.99" + "\n" + // partial first line
	"Expected: 0.512 MHz\r\n" + // counter start to first pulse
	"Actual: 0.128 MHz\r\n" +
	"Expected: 48.000 MHz\r\n" +
	"Expected: 48.002 MHz\r\n" +
	"Info: i2c scan found 0x38\r\n" +
	"Expected: 47.998 MHz\r\n" +
	"Actual: 12.000 MHz\r\n"

func collect(t *testing.T, in string) ([]Reading, *Source) {
	src := NewSource(strings.NewReader(in))
	at := time.Unix(1700000000, 0)
	src.now = func() time.Time { return at }
	var got []Reading
	err := src.Run(context.Background(), func(r Reading) { got = append(got, r) })
	require.NoError(t, err)
	return got, src
}

func TestSourceParsesConsole(t *testing.T) {
	got, src := collect(t, consoleDump)
	require.Len(t, got, 4)
	require.Equal(t, uint64(2), src.Invalid())
	require.Equal(t, uint64(2), src.Skipped())
	require.Equal(t, uint64(1), src.Boots())
	require.Equal(t, "Expected", got[0].Channel)
	require.Equal(t, uint64(48000), got[0].Milli)
	require.Equal(t, "MHz", got[0].Unit)
	require.Equal(t, 48e6, got[0].Hz())
	require.Equal(t, uint64(47998), got[2].Milli)
	require.Equal(t, "Actual", got[3].Channel)
	require.Equal(t, 12e6, got[3].Hz())
}

func TestSourceDropsFirstReadingAfterReset(t *testing.T) {
	in := "Measuring clock frequency ...\n" +
		"Expected: 0.512 MHz\n" +
		"Expected: 48.000 MHz\n" +
		"Expected: 48.000 MHz\n" +
		"Expected: 48.000 MHz\n"
	got, src := collect(t, in)
	require.Len(t, got, 3)
	require.Equal(t, uint64(1), src.Skipped())
	require.Zero(t, src.Invalid())

	s := NewStats(48e6)
	for _, r := range got {
		s.Add(r)
	}
	exp := s.Snapshot()[0]
	require.Equal(t, uint64(3), exp.Count)
	require.Equal(t, 48e6, exp.MeanHz)
	require.Equal(t, 48e6, exp.MinHz)
}

func TestSourceResetMidStream(t *testing.T) {
	in := "Expected: 48.000 MHz\n" + // attached to a running meter
		"Measuring clock frequency ...\n" +
		"Expected: 0.300 MHz\n" +
		"Expected: 48.001 MHz\n"
	got, src := collect(t, in)
	require.Len(t, got, 2)
	require.Equal(t, uint64(48000), got[0].Milli)
	require.Equal(t, uint64(48001), got[1].Milli)
	require.Equal(t, uint64(1), src.Skipped())
}

func TestSourceScalesUnits(t *testing.T) {
	in := "Ref: 32.768 kHz\n" +
		"Core: 0.125 GHz\n" +
		"Tick: 1000.000 hz\n" +
		"Odd: 1.000 furlongs\n"
	got, src := collect(t, in)
	require.Len(t, got, 3)
	require.Equal(t, 32768.0, got[0].Hz())
	require.Equal(t, 125e6, got[1].Hz())
	require.Equal(t, 1000.0, got[2].Hz())
	require.Equal(t, uint64(1), src.Invalid())
}

func TestUnitScale(t *testing.T) {
	v, ok := UnitScale("MHz")
	require.True(t, ok)
	require.Equal(t, 1e6, v)
	_, ok = UnitScale("ppm")
	require.False(t, ok)
}

func TestSourceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := NewSource(strings.NewReader("Expected: 48.000 MHz\n"))
	err := src.Run(ctx, func(Reading) { t.Fatal("no readings after cancel") })
	require.ErrorIs(t, err, context.Canceled)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestSourceReportsReadErrors(t *testing.T) {
	err := NewSource(errReader{}).Run(context.Background(), func(Reading) {})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}

func TestStats(t *testing.T) {
	got, _ := collect(t, consoleDump)
	s := NewStats(48e6)
	for _, r := range got {
		s.Add(r)
	}
	sums := s.Snapshot()
	require.Len(t, sums, 2)

	act, exp := sums[0], sums[1]
	require.Equal(t, "Actual", act.Channel)
	require.Equal(t, uint64(1), act.Count)
	require.Zero(t, act.StddevHz)

	require.Equal(t, "Expected", exp.Channel)
	require.Equal(t, uint64(3), exp.Count)
	require.InDelta(t, 48e6, exp.MeanHz, 1e-3)
	require.Equal(t, 47.998e6, exp.MinHz)
	require.Equal(t, 48.002e6, exp.MaxHz)
	require.Equal(t, 47.998e6, exp.LastHz)
	require.Greater(t, exp.StddevHz, 1500.0)
	require.Less(t, exp.StddevHz, 2100.0)
	require.InDelta(t, 0, exp.PPM, 1e-6)
}

func TestPPM(t *testing.T) {
	tests := []struct {
		hz, nominal, want float64
	}{
		{48e6, 48e6, 0},
		{48.048e6, 48e6, 1000},
		{47.952e6, 48e6, -1000},
		{48e6, 0, 0},
	}
	for _, tt := range tests {
		require.InDelta(t, tt.want, PPM(tt.hz, tt.nominal), 1e-6)
	}
}

func TestExporter(t *testing.T) {
	s := NewStats(48e6)
	s.Add(Reading{Channel: "Expected", Milli: 48000, Unit: "MHz"})
	e := NewExporter()
	e.Update(s.Snapshot(), 2)

	ts := httptest.NewServer(e.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Contains(t, string(body), `clockmeter_frequency_hz{channel="Expected"} 4.8e+07`)
	require.Contains(t, string(body), `clockmeter_samples{channel="Expected"} 1`)
	require.Contains(t, string(body), `clockmeter_invalid_lines 2`)
}

func TestExporterServeStops(t *testing.T) {
	e := NewExporter()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return")
	}
}
