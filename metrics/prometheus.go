package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider owns the Prometheus registry of the server and the WCS
// collectors recorded into it.
type Provider struct {
	reg *prometheus.Registry

	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	exceptions *prometheus.CounterVec
	lockWait   prometheus.Histogram
	configs    prometheus.Gauge
}

func NewProvider(version string) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := &Provider{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wcs_requests_total",
			Help: "WCS requests by protocol version, operation and HTTP status.",
		}, []string{"version", "request", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wcs_request_duration_seconds",
			Help:    "Time spent serving WCS requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"request"}),
		exceptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wcs_exceptions_total",
			Help: "OGC exceptions returned, by exception code.",
		}, []string{"code"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wcs_driver_lock_wait_seconds",
			Help:    "Time spent waiting for the raster driver lock.",
			Buckets: []float64{.0001, .001, .01, .05, .1, .5, 1, 5},
		}),
		configs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wcs_config_namespaces",
			Help: "Number of config namespaces currently loaded.",
		}),
	}

	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wcs_build_info",
		Help: "Build info for this binary (value is always 1).",
	}, []string{"version"})
	if version == "" {
		version = "dev"
	}
	build.WithLabelValues(version).Set(1)

	reg.MustRegister(p.requests, p.duration, p.exceptions, p.lockWait, p.configs, build)
	return p
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }

// ObserveRequest records one finished request from its metrics record.
func (p *Provider) ObserveRequest(info *MetricsInfo) {
	request, version := "unknown", "unknown"
	if info.WCS != nil {
		if info.WCS.Request != "" {
			request = info.WCS.Request
		}
		if info.WCS.Version != "" {
			version = info.WCS.Version
		}
		if info.WCS.Exception != "" {
			p.exceptions.WithLabelValues(info.WCS.Exception).Inc()
		}
	}
	p.requests.WithLabelValues(version, request, strconv.Itoa(info.HTTPStatus)).Inc()
	p.duration.WithLabelValues(request).Observe(info.ReqDuration.Seconds())
}

// ObserveLockWait records a driver lock acquisition.
func (p *Provider) ObserveLockWait(wait time.Duration) {
	p.lockWait.Observe(wait.Seconds())
}

// SetConfigNamespaces records the number of loaded namespaces.
func (p *Provider) SetConfigNamespaces(n int) {
	p.configs.Set(float64(n))
}

// Tee sends every record to each logger and to the Prometheus collectors.
type Tee struct {
	Provider *Provider
	Loggers  []Logger
}

func (t *Tee) Log(info *MetricsInfo) {
	if t.Provider != nil {
		t.Provider.ObserveRequest(info)
	}
	for _, l := range t.Loggers {
		l.Log(info)
	}
}
