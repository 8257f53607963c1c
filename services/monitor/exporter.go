package monitor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "clockmeter"

// Exporter serves channel statistics as Prometheus gauges.
type Exporter struct {
	registry *prometheus.Registry

	hz      *prometheus.GaugeVec
	mean    *prometheus.GaugeVec
	stddev  *prometheus.GaugeVec
	ppm     *prometheus.GaugeVec
	samples *prometheus.GaugeVec
	invalid prometheus.Gauge
}

func gauge(name, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, []string{"channel"})
}

// NewExporter registers the gauges on a private registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		hz:       gauge("frequency_hz", "Last measured frequency"),
		mean:     gauge("frequency_mean_hz", "Running mean of measured frequency"),
		stddev:   gauge("frequency_stddev_hz", "Running standard deviation of measured frequency"),
		ppm:      gauge("frequency_offset_ppm", "Mean offset from the nominal frequency"),
		samples:  gauge("samples", "Readings seen"),
	}
	e.invalid = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "invalid_lines",
		Help:      "Console lines that did not parse",
	})
	e.registry.MustRegister(e.hz, e.mean, e.stddev, e.ppm, e.samples, e.invalid)
	return e
}

// Registry exposes the registry for tests and embedding.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Update copies a snapshot into the gauges.
func (e *Exporter) Update(sums []Summary, invalid uint64) {
	for _, s := range sums {
		e.hz.WithLabelValues(s.Channel).Set(s.LastHz)
		e.mean.WithLabelValues(s.Channel).Set(s.MeanHz)
		e.stddev.WithLabelValues(s.Channel).Set(s.StddevHz)
		e.ppm.WithLabelValues(s.Channel).Set(s.PPM)
		e.samples.WithLabelValues(s.Channel).Set(float64(s.Count))
	}
	e.invalid.Set(float64(invalid))
}

// Handler serves /metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve listens on addr until ctx is cancelled.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	log.Infof("serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
