// Package metrics turns bus events into Prometheus series.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hanpama/graphpress/internal/eventbus"
	"github.com/hanpama/graphpress/internal/events"
)

const namespace = "graphpress"

// Metrics owns a registry and the collectors fed from the bus.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	loaderBatches  *prometheus.CounterVec
	loaderKeys     *prometheus.HistogramVec
	loaderDuration *prometheus.HistogramVec
	transactions   *prometheus.CounterVec
	resolverErrors *prometheus.CounterVec
}

// New registers every collector on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by status code",
		}, []string{"code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code"}),
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_operations_total",
			Help:      "Executed GraphQL operations",
		}, []string{"type", "status"}),
		loaderBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loader_batches_total",
			Help:      "Dispatched loader batches",
		}, []string{"loader", "status"}),
		loaderKeys: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_batch_keys",
			Help:      "Keys coalesced into one loader batch",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"loader"}),
		loaderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "loader_batch_duration_seconds",
			Help:      "Loader batch query latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"loader"}),
		transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Finished storage transactions by outcome",
		}, []string{"outcome"}),
		resolverErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_errors_total",
			Help:      "Failed field resolutions by error code",
		}, []string{"type", "field", "code"}),
	}
}

// Subscribe feeds m from b until the returned function is called.
func (m *Metrics) Subscribe(b *eventbus.Bus) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.SubscribeTo(b, func(_ context.Context, e events.HTTPFinish) {
			code := strconv.Itoa(e.Status)
			m.httpRequests.WithLabelValues(code).Inc()
			m.httpDuration.WithLabelValues(code).Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.GraphQLFinish) {
			m.operations.WithLabelValues(e.OperationType, status(len(e.Errors) == 0)).Inc()
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.LoaderBatch) {
			m.loaderBatches.WithLabelValues(e.Loader, status(e.Err == nil)).Inc()
			m.loaderKeys.WithLabelValues(e.Loader).Observe(float64(e.Keys))
			m.loaderDuration.WithLabelValues(e.Loader).Observe(e.Duration.Seconds())
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.Transaction) {
			m.transactions.WithLabelValues(e.Outcome).Inc()
		}),
		eventbus.SubscribeTo(b, func(_ context.Context, e events.ResolverError) {
			m.resolverErrors.WithLabelValues(e.ObjectType, e.Field, e.Code).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
