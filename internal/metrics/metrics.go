// Package metrics holds the prometheus collectors shared by the server, the
// worker and the CLI.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graphrag"

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	embedRequests *prometheus.CounterVec
	embedDuration *prometheus.HistogramVec
	embedTexts    *prometheus.CounterVec

	ingestedChunks prometheus.Counter
	mergedTriplets prometheus.Counter
	degraded       *prometheus.CounterVec
	queueMessages  *prometheus.CounterVec
}

// New registers all collectors plus the go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		embedRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_requests_total",
			Help:      "Embedding calls by provider and outcome",
		}, []string{"provider", "model", "status"}),
		embedDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embed_duration_seconds",
			Help:      "Embedding call duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		embedTexts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embed_texts_total",
			Help:      "Number of texts sent for embedding",
		}, []string{"provider", "model"}),
		ingestedChunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_chunks_total",
			Help:      "Chunks persisted by the ingestion pipeline",
		}),
		mergedTriplets: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merged_triplets_total",
			Help:      "Distinct triplets submitted to the graph store",
		}),
		degraded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degraded_total",
			Help:      "Retrieval stages that failed and were replaced by an empty list",
		}, []string{"stage"}),
		queueMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_messages_total",
			Help:      "Queue messages by queue and outcome",
		}, []string{"queue", "status"}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) RecordEmbed(provider, model string, texts int, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.embedRequests.WithLabelValues(provider, model, status).Inc()
	m.embedDuration.WithLabelValues(provider, model).Observe(d.Seconds())
	m.embedTexts.WithLabelValues(provider, model).Add(float64(texts))
}

func (m *Metrics) AddIngestedChunks(n int) { m.ingestedChunks.Add(float64(n)) }

func (m *Metrics) AddMergedTriplets(n int) { m.mergedTriplets.Add(float64(n)) }

// RecordDegraded matches query.DegradeFunc.
func (m *Metrics) RecordDegraded(stage string, _ error) {
	m.degraded.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordQueueMessage(queue, status string) {
	m.queueMessages.WithLabelValues(queue, status).Inc()
}
