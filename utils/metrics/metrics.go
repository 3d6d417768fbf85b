package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Login outcomes recorded against auth_logins_total.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeDisabled           = "disabled"
	OutcomeRevoked            = "revoked"
	OutcomeExpired            = "expired"
	OutcomeInvalid            = "invalid"
	OutcomeStale              = "stale"
	OutcomeError              = "error"
)

// Metrics owns the Prometheus registry and the collectors the API reports.
// A private registry keeps test instances from colliding on the global one.
type Metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	logins          *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	logouts         prometheus.Counter
	revocations     *prometheus.CounterVec
}

// New registers the core collectors and returns the Metrics handle.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Login attempts by portal and outcome",
	}, []string{"portal", "outcome"})

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_refreshes_total",
		Help: "Refresh attempts by outcome",
	}, []string{"outcome"})

	logouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_logouts_total",
		Help: "Completed logouts",
	})

	revocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_revocations_total",
		Help: "Tokens added to the revocation set by reason",
	}, []string{"reason"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, logins, refreshes, logouts, revocations, goroutines)

	return &Metrics{
		registry:        registry,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		logins:          logins,
		refreshes:       refreshes,
		logouts:         logouts,
		revocations:     revocations,
	}
}

// RegisterRevocationSize exposes the live size of the revocation set as a
// gauge. Only backends that can count cheaply wire this up.
func (m *Metrics) RegisterRevocationSize(size func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "auth_revoked_tokens",
		Help: "Entries currently held in the revocation set",
	}, func() float64 {
		return float64(size())
	}))
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(portal, outcome string) {
	m.logins.WithLabelValues(portal, outcome).Inc()
}

// RecordRefresh counts a refresh attempt.
func (m *Metrics) RecordRefresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a completed logout.
func (m *Metrics) RecordLogout() {
	m.logouts.Inc()
}

// RecordRevocation counts a token entering the revocation set.
func (m *Metrics) RecordRevocation(reason string) {
	m.revocations.WithLabelValues(reason).Inc()
}

// Middleware observes every request. It uses the registered route pattern,
// not the raw URL, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		path := c.Route().Path
		if path == "" {
			path = "unmatched"
		}
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		m.requestTotal.WithLabelValues(labels...).Inc()
		m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() fiber.Handler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return func(c *fiber.Ctx) error {
		h(c.Context())
		return nil
	}
}
