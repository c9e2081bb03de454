package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/nao1215/authgate/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace はメトリクス名の接頭辞。
const DefaultNamespace = "authgate"

// Metrics は認証ゲートのメトリクス。
// middleware.DecisionObserverとverifier.DurationRecorderを実装する。
type Metrics struct {
	decisions    *prometheus.CounterVec
	verification *prometheus.HistogramVec
	upstream     *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// NewMetrics は新しいレジストリにメトリクスを登録したMetricsを生成する。
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Total number of authentication gate and access decisions",
			},
			[]string{"stage", "outcome"},
		),
		verification: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "verification_duration_seconds",
				Help:      "Token verification latency in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"result"},
		),
		upstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of requests forwarded to upstream services",
			},
			[]string{"upstream", "code"},
		),
		gatherer: registry,
	}

	registry.MustRegister(
		m.decisions,
		m.verification,
		m.upstream,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveDecision は判定を数える。
func (m *Metrics) ObserveDecision(_ context.Context, d middleware.Decision) {
	m.decisions.WithLabelValues(string(d.Stage), string(d.Outcome)).Inc()
}

// ObserveVerification は検証の所要時間を記録する。resultはsuccessまたは失敗の分類。
func (m *Metrics) ObserveVerification(result string, d time.Duration) {
	m.verification.WithLabelValues(result).Observe(d.Seconds())
}

// ObserveUpstream は転送先への転送結果を数える。codeはHTTPステータスコード、通信失敗時は"error"。
func (m *Metrics) ObserveUpstream(upstream, code string) {
	m.upstream.WithLabelValues(upstream, code).Inc()
}

// Handler は/metricsのハンドラーを返す。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
