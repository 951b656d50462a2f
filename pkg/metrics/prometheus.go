// Package metrics provides Prometheus metrics for the natya retargeting service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by FrameDropped.
const (
	ReasonIncomplete = "incomplete"
	ReasonInvalid    = "invalid"
	ReasonUnreliable = "unreliable"
	ReasonEstimator  = "estimator"
)

// Manager owns the retargeting metrics. A nil *Manager is valid and
// records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	framesProcessed prometheus.Counter
	framesDropped   *prometheus.CounterVec
	bonesWritten    prometheus.Counter
	bonesFrozen     prometheus.Counter
	unresolvedRoles prometheus.Gauge
	bindState       prometheus.Gauge
	poseConfidence  prometheus.Gauge
	retargetLatency prometheus.Histogram

	estimateLatency     prometheus.Histogram
	wsClients           prometheus.Gauge
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// metrics land on a fresh private registry.
func NewManager(opts ...Option) *Manager {
	reg := prometheus.NewRegistry()
	m := &Manager{
		namespace:        "natya",
		subsystem:        "retarget",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50},
		registry:         reg,
		gatherer:         reg,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of pose frames retargeted onto a rig",
	})

	m.framesDropped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total number of pose frames dropped, by reason",
		},
		[]string{"reason"},
	)

	m.bonesWritten = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bones_written_total",
		Help:      "Total number of bone rotations or part positions written",
	})

	m.bonesFrozen = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bones_frozen_total",
		Help:      "Total number of bone updates skipped by the confidence gate",
	})

	m.unresolvedRoles = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "unresolved_roles",
		Help:      "Number of bone roles the bound rig could not resolve",
	})

	m.bindState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "bind_state",
		Help:      "Dispatcher state: 0 unbound, 1 bound without skeleton, 2 bound with skeleton",
	})

	m.poseConfidence = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pose_confidence",
		Help:      "Mean landmark visibility of the last accepted frame",
	})

	m.retargetLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "latency_milliseconds",
		Help:      "Time spent retargeting one frame in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.estimateLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "estimator",
		Name:      "latency_milliseconds",
		Help:      "Time spent estimating landmarks for one camera frame in milliseconds",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	m.wsClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "server",
		Name:      "websocket_clients",
		Help:      "Number of connected pose stream clients",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "server",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "server",
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
}

// Handler returns an HTTP handler exposing the manager's registry.
func (m *Manager) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// FrameProcessed records one retargeted frame and its latency.
func (m *Manager) FrameProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.retargetLatency.Observe(float64(d.Microseconds()) / 1000)
}

// FrameDropped records one dropped frame.
func (m *Manager) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// BonesWritten adds to the written and frozen counters.
func (m *Manager) BonesWritten(written, frozen int) {
	if m == nil {
		return
	}
	m.bonesWritten.Add(float64(written))
	m.bonesFrozen.Add(float64(frozen))
}

// SetBinding records the dispatcher state and unresolved role count.
func (m *Manager) SetBinding(state, unresolved int) {
	if m == nil {
		return
	}
	m.bindState.Set(float64(state))
	m.unresolvedRoles.Set(float64(unresolved))
}

// SetPoseConfidence records the confidence of the last accepted frame.
func (m *Manager) SetPoseConfidence(c float64) {
	if m == nil {
		return
	}
	m.poseConfidence.Set(c)
}

// EstimateLatency records one estimator call.
func (m *Manager) EstimateLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.estimateLatency.Observe(float64(d.Microseconds()) / 1000)
}

// SetWebSocketClients records the number of stream subscribers.
func (m *Manager) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// HTTPRequest records one served request.
func (m *Manager) HTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, status).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(float64(d.Microseconds()) / 1000)
}
