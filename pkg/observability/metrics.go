package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the client-side session metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Authenticated request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Token lifecycle metrics
	RefreshTotal        *prometheus.CounterVec
	SessionExpiredTotal prometheus.Counter

	// Session controller metrics
	LoginTotal     *prometheus.CounterVec
	SignupTotal    *prometheus.CounterVec
	LogoutTotal    prometheus.Counter
	ReconcileTotal *prometheus.CounterVec
	Authenticated  prometheus.Gauge
}

// NewMetrics creates and registers all session metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_session_requests_total",
				Help: "Total number of authenticated requests by final status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_session_request_duration_seconds",
				Help:    "Authenticated request duration in seconds, including refresh and retry",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_session_refresh_total",
				Help: "Token refresh attempts by result",
			},
			[]string{"result"},
		),
		SessionExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_session_expired_total",
				Help: "Sessions terminated because the refresh token was rejected",
			},
		),
		LoginTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_session_login_total",
				Help: "Login attempts by result and accepted identifier field",
			},
			[]string{"result", "identifier"},
		),
		SignupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_session_signup_total",
				Help: "Signup attempts by result",
			},
			[]string{"result"},
		),
		LogoutTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pulse_session_logout_total",
				Help: "Explicit logouts",
			},
		),
		ReconcileTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_session_reconcile_total",
				Help: "Profile reconciliations by result",
			},
			[]string{"result"},
		),
		Authenticated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pulse_session_authenticated",
				Help: "1 while a user is materialised, 0 otherwise",
			},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RefreshTotal,
		m.SessionExpiredTotal,
		m.LoginTotal,
		m.SignupTotal,
		m.LogoutTotal,
		m.ReconcileTotal,
		m.Authenticated,
	)

	return m
}

// RecordRequest records the final outcome of an authenticated request
func (m *Metrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRefresh records a refresh attempt result
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

// RecordSessionExpired records a forced logout after refresh rejection
func (m *Metrics) RecordSessionExpired() {
	if m == nil {
		return
	}
	m.SessionExpiredTotal.Inc()
}

// RecordLogin records a login attempt
func (m *Metrics) RecordLogin(result, identifier string) {
	if m == nil {
		return
	}
	m.LoginTotal.WithLabelValues(result, identifier).Inc()
}

// RecordSignup records a signup attempt
func (m *Metrics) RecordSignup(result string) {
	if m == nil {
		return
	}
	m.SignupTotal.WithLabelValues(result).Inc()
}

// RecordLogout records an explicit logout
func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.LogoutTotal.Inc()
}

// RecordReconcile records a reconciliation result
func (m *Metrics) RecordReconcile(result string) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(result).Inc()
}

// SetAuthenticated updates the authenticated gauge
func (m *Metrics) SetAuthenticated(authenticated bool) {
	if m == nil {
		return
	}
	if authenticated {
		m.Authenticated.Set(1)
	} else {
		m.Authenticated.Set(0)
	}
}

// ServerMetrics holds HTTP metrics for the mock auth service
type ServerMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewServerMetrics creates and registers HTTP server metrics
func NewServerMetrics(registry prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_authmock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_authmock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
	registry.MustRegister(m.HTTPRequestsTotal, m.HTTPRequestDuration)
	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
