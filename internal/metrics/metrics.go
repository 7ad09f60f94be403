// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/diewo77/go-crm/httpx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Delivery outcomes for notifications.
const (
	DeliveryPushed  = "pushed"
	DeliveryOffline = "offline"
	DeliveryFailed  = "failed"
)

// Metrics bundles the application collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	WSConnections   prometheus.Gauge
	Notifications   *prometheus.CounterVec
	LeadConversions *prometheus.CounterVec
	AuthEvents      *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crm_ws_connections",
			Help: "Currently registered WebSocket connections.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_notifications_total",
			Help: "Notifications created, by real-time delivery outcome.",
		}, []string{"delivery"}),
		LeadConversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_lead_conversions_total",
			Help: "Lead conversion attempts by result.",
		}, []string{"result"}),
		AuthEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_auth_events_total",
			Help: "Authentication state machine events.",
		}, []string{"event"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
	}
	m.registry.MustRegister(
		m.WSConnections,
		m.Notifications,
		m.LeadConversions,
		m.AuthEvents,
		m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.WSConnections.Set(float64(n))
}

func (m *Metrics) Notification(delivery string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(delivery).Inc()
}

func (m *Metrics) Conversion(result string) {
	if m == nil {
		return
	}
	m.LeadConversions.WithLabelValues(result).Inc()
}

func (m *Metrics) AuthEvent(event string) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event).Inc()
}

// Middleware counts requests by method and status code.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		m.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.Status)).Inc()
	})
}
