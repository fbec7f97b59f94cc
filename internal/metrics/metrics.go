// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/service"
)

// Collector implements service.Recorder on Prometheus counters and also
// provides the HTTP request histogram middleware.
type Collector struct {
	registrations prometheus.Counter
	logins        *prometheus.CounterVec
	oauthLogins   *prometheus.CounterVec
	tokensIssued  prometheus.Counter
	verifications *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	registry      *prometheus.Registry
}

var _ service.Recorder = (*Collector)(nil)

// NewCollector creates a Collector with its own registry. Using a
// private registry (not prometheus.DefaultRegisterer) keeps tests free
// to build as many collectors as they like without double-registration
// panics.
func NewCollector() *Collector {
	c := &Collector{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_registrations_total",
			Help: "Password accounts created.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Password login attempts by outcome.",
		}, []string{"outcome"}),
		oauthLogins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_oauth_logins_total",
			Help: "Completed OAuth logins by provider.",
		}, []string{"provider"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_token_pairs_issued_total",
			Help: "Token pairs issued.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_token_verifications_total",
			Help: "Token verifications by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authcore_http_request_duration_seconds",
			Help:    "HTTP request latency by method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "status"}),
		registry: prometheus.NewRegistry(),
	}

	c.registry.MustRegister(
		c.registrations,
		c.logins,
		c.oauthLogins,
		c.tokensIssued,
		c.verifications,
		c.httpDuration,
	)
	return c
}

func (c *Collector) UserRegistered() {
	c.registrations.Inc()
}

func (c *Collector) LoginSucceeded() {
	c.logins.WithLabelValues("success").Inc()
}

func (c *Collector) LoginFailed() {
	c.logins.WithLabelValues("failure").Inc()
}

func (c *Collector) OAuthLogin(provider string) {
	c.oauthLogins.WithLabelValues(provider).Inc()
}

func (c *Collector) TokensIssued() {
	c.tokensIssued.Inc()
}

func (c *Collector) TokenVerified(status auth.VerifyStatus) {
	var result string
	switch status {
	case auth.StatusValid:
		result = "valid"
	case auth.StatusExpired:
		result = "expired"
	default:
		result = "invalid"
	}
	c.verifications.WithLabelValues(result).Inc()
}

// Handler returns the /metrics exposition endpoint for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request latency per method and status class.
// Routes are intentionally not a label: bearer tokens and provider
// names in paths would explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		c.httpDuration.
			WithLabelValues(r.Method, strconv.Itoa(sw.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
