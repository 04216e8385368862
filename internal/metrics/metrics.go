package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestOutcome classifies how a request engine call finished.
type RequestOutcome string

const (
	OutcomeSuccess        RequestOutcome = "success"
	OutcomeHTTPError      RequestOutcome = "http_error"
	OutcomeTimeout        RequestOutcome = "timeout"
	OutcomeSessionExpired RequestOutcome = "session_expired"
	OutcomeNetworkError   RequestOutcome = "network_error"
	OutcomeCanceled       RequestOutcome = "canceled"
)

// DedupResult reports whether a caller started a flight or joined one.
type DedupResult string

const (
	DedupLeader DedupResult = "leader"
	DedupShared DedupResult = "shared"
)

// RefreshResult captures the result of a token refresh attempt.
type RefreshResult string

const (
	RefreshSuccess      RefreshResult = "success"
	RefreshFailure      RefreshResult = "failure"
	RefreshMissingToken RefreshResult = "missing_token"
)

// CacheOperation identifies the cache method being instrumented.
type CacheOperation string

const (
	CacheOperationGet         CacheOperation = "get"
	CacheOperationSet         CacheOperation = "set"
	CacheOperationClear       CacheOperation = "clear"
	CacheOperationClearPrefix CacheOperation = "clear_prefix"
)

// CacheResult captures the result of a cache operation.
type CacheResult string

const (
	CacheHit     CacheResult = "hit"
	CacheMiss    CacheResult = "miss"
	CacheStored  CacheResult = "stored"
	CacheCleared CacheResult = "cleared"
	// CacheCorrupt marks a durable entry that failed to decode and was removed.
	CacheCorrupt CacheResult = "corrupt"
	CacheError   CacheResult = "error"
)

// Recorder publishes Prometheus metrics for client activity. A nil Recorder
// is valid and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	dedup           *prometheus.CounterVec
	refresh         *prometheus.CounterVec
	cacheOperations *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postsiva",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "Total backend API requests issued by the request engine.",
	}, []string{"method", "outcome", "status_code"})

	requestLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "postsiva",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for backend API requests.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60, 180},
	}, []string{"method", "outcome"})

	dedup := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postsiva",
		Subsystem: "client",
		Name:      "dedup_total",
		Help:      "Read requests that started or joined an in-flight request.",
	}, []string{"result"})

	refresh := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postsiva",
		Subsystem: "client",
		Name:      "refresh_total",
		Help:      "Access token refresh attempts by result.",
	}, []string{"result"})

	cacheOperations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "postsiva",
		Subsystem: "cache",
		Name:      "operations_total",
		Help:      "Response cache operations by namespace.",
	}, []string{"namespace", "operation", "result"})

	reg.MustRegister(requests, requestLatency, dedup, refresh, cacheOperations)

	return &Recorder{
		gatherer:        reg,
		handler:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		requests:        requests,
		requestLatency:  requestLatency,
		dedup:           dedup,
		refresh:         refresh,
		cacheOperations: cacheOperations,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveRequest records the outcome and latency of one engine call.
func (r *Recorder) ObserveRequest(method string, outcome RequestOutcome, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	methodLabel := strings.ToUpper(normalizeLabel(method))
	outcomeLabel := normalizeLabel(string(outcome))
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "none"
	}
	r.requests.WithLabelValues(methodLabel, outcomeLabel, statusLabel).Inc()
	r.requestLatency.WithLabelValues(methodLabel, outcomeLabel).Observe(duration.Seconds())
}

func (r *Recorder) ObserveDedup(result DedupResult) {
	if r == nil {
		return
	}
	r.dedup.WithLabelValues(normalizeLabel(string(result))).Inc()
}

func (r *Recorder) ObserveRefresh(result RefreshResult) {
	if r == nil {
		return
	}
	r.refresh.WithLabelValues(normalizeLabel(string(result))).Inc()
}

// ObserveCache records a cache operation. The namespace is the key segment
// before the first colon so label cardinality stays bounded.
func (r *Recorder) ObserveCache(key string, operation CacheOperation, result CacheResult) {
	if r == nil {
		return
	}
	opLabel := string(operation)
	if opLabel == "" {
		opLabel = string(CacheOperationGet)
	}
	r.cacheOperations.WithLabelValues(Namespace(key), opLabel, normalizeLabel(string(result))).Inc()
}

// Namespace extracts the leading key segment used as the cache metric label.
func Namespace(key string) string {
	key = strings.TrimSpace(key)
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		key = key[:idx]
	}
	return normalizeLabel(key)
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
