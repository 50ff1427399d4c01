package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/relayview/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// namespace prefixes every metric name.
const namespace = "relayview"

// Metrics holds the relayview collectors.
//
// Design decision: each Metrics owns its registry instead of the global
// default one, so several instances (tests, embedded use) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// Relay metrics
	RelayAttempts *prometheus.CounterVec
	RelayDuration *prometheus.HistogramVec

	// Navigation metrics
	Navigations        *prometheus.CounterVec
	NavigationDuration *prometheus.HistogramVec
	Charsets           *prometheus.CounterVec
	FramesFailed       prometheus.Counter
	LinksRewritten     *prometheus.CounterVec
	AdsRemoved         prometheus.Counter

	// HTTP metrics of the serve command
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New creates Metrics with a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RelayAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_attempts_total",
				Help:      "Relay endpoint trials by endpoint and result.",
			},
			[]string{"endpoint", "result", "status"},
		),
		RelayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "relay_attempt_duration_seconds",
				Help:      "Duration of relay endpoint trials.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),

		Navigations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigations_total",
				Help:      "Finished navigations by state and document kind.",
			},
			[]string{"state", "kind"},
		),
		NavigationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "navigation_duration_seconds",
				Help:      "Duration of navigations from request to document.",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"state"},
		),
		Charsets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charset_decisions_total",
				Help:      "Charset decisions by encoding and evidence source.",
			},
			[]string{"charset", "source"},
		),
		FramesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_failed_total",
				Help:      "Frameset panes replaced by a failure notice.",
			},
		),
		LinksRewritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_total",
				Help:      "Links seen by the rewriter, by classification.",
			},
			[]string{"class"},
		),
		AdsRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ads_removed_total",
				Help:      "Elements removed by the ad classifier.",
			},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAttempt records one relay trial. It satisfies fetch.Observer.
func (m *Metrics) ObserveAttempt(endpoint string, statusCode int, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	status := "none"
	if statusCode != 0 {
		status = strconv.Itoa(statusCode)
	}
	m.RelayAttempts.WithLabelValues(endpoint, result, status).Inc()
	m.RelayDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Record records one finished navigation. It satisfies pipeline.Recorder.
func (m *Metrics) Record(_ context.Context, nav *model.Navigation) error {
	kind := string(nav.Kind)
	if kind == "" {
		kind = "unknown"
	}
	m.Navigations.WithLabelValues(string(nav.State), kind).Inc()
	m.NavigationDuration.WithLabelValues(string(nav.State)).Observe(nav.Duration().Seconds())

	if nav.Fetch != nil {
		m.Charsets.WithLabelValues(nav.Fetch.Charset.Name, nav.Fetch.Charset.Source.String()).Inc()
	}
	if failed := nav.FailedPanes(); failed > 0 {
		m.FramesFailed.Add(float64(failed))
	}

	s := nav.Rewrite
	m.LinksRewritten.WithLabelValues("same-origin").Add(float64(s.SameOrigin))
	m.LinksRewritten.WithLabelValues("cross-origin").Add(float64(s.CrossOrigin))
	m.LinksRewritten.WithLabelValues("non-navigable").Add(float64(s.NonNavigable))
	m.AdsRemoved.Add(float64(s.AdsRemoved))
	return nil
}

// Middleware records the method, route and status of every gin request.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// The route template keeps label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		m.RequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
