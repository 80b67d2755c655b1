// Package metrics exposes graph-builder and worker activity as Prometheus
// collectors. Collectors live on a caller-supplied registry.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/depgraph/pkg/ai"
	"github.com/OFFIS-RIT/depgraph/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "depgraph"

// Collectors implements graph.Observer.
type Collectors struct {
	registry *prometheus.Registry

	vertices       *prometheus.CounterVec
	edges          prometheus.Counter
	sessions       *prometheus.CounterVec
	createDuration *prometheus.HistogramVec
	queueMessages  *prometheus.CounterVec
	scannedModules prometheus.Counter
	aiTokens       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collectors{
		registry: reg,
		vertices: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "vertices_total",
			Help:      "Vertices written by CreateVertex, by category and outcome (created, merged)",
		}, []string{"category", "outcome"}),
		edges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "edges_total",
			Help:      "Uses edges linked by CreateVertex",
		}),
		sessions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "sessions_total",
			Help:      "Backend sessions ended, by outcome (committed, rolled_back)",
		}, []string{"outcome"}),
		createDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "graph",
			Name:      "create_vertex_duration_seconds",
			Help:      "CreateVertex latency in seconds, by status",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"status"}),
		queueMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "messages_total",
			Help:      "Queue messages handled by the worker, by outcome (ok, retry, dead_letter, rejected)",
		}, []string{"outcome"}),
		scannedModules: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "modules_total",
			Help:      "System modules written by repository scans",
		}),
		aiTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "tokens_total",
			Help:      "Tokens consumed by AI requests, by kind (prompt, completion)",
		}, []string{"kind"}),
	}
}

func (c *Collectors) VertexCreated(cat common.Category) {
	c.vertices.WithLabelValues(string(cat), "created").Inc()
}

func (c *Collectors) VertexMerged(cat common.Category) {
	c.vertices.WithLabelValues(string(cat), "merged").Inc()
}

func (c *Collectors) EdgeLinked() { c.edges.Inc() }

func (c *Collectors) SessionCommitted() { c.sessions.WithLabelValues("committed").Inc() }

func (c *Collectors) SessionRolledBack() { c.sessions.WithLabelValues("rolled_back").Inc() }

func (c *Collectors) CreateVertexDone(d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.createDuration.WithLabelValues(status).Observe(d.Seconds())
}

// QueueMessage counts one handled queue message.
func (c *Collectors) QueueMessage(outcome string) {
	c.queueMessages.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ModulesScanned(n int) {
	c.scannedModules.Add(float64(n))
}

// AIUsage adds the token counts of m. Callers pass the metrics of a client
// and reset them afterwards.
func (c *Collectors) AIUsage(m ai.ModelMetrics) {
	c.aiTokens.WithLabelValues("prompt").Add(float64(m.InputTokens))
	c.aiTokens.WithLabelValues("completion").Add(float64(m.OutputTokens))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Push sends the registry to a Pushgateway under job. Short-lived commands
// use it instead of being scraped.
func (c *Collectors) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(c.registry).PushContext(ctx)
}

// Registry is exposed for tests and additional collectors.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}
