// Package metrics holds the Prometheus collectors of one embedding run.
// A batch job does not live long enough to be scraped, so the registry is
// pushed to a Pushgateway when the run ends.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "hospital_embed"

// Run is the metric set for a single run. A nil *Run records nothing.
type Run struct {
	reg *prometheus.Registry

	records       prometheus.Counter
	batches       prometheus.Counter
	embeddings    prometheus.Counter
	stored        prometheus.Counter
	errors        *prometheus.CounterVec
	batchDuration prometheus.Histogram
	embedDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// NewRun registers the run collectors on a fresh registry.
func NewRun() *Run {
	r := &Run{
		reg: prometheus.NewRegistry(),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_fetched_total",
			Help: "Records read from the search index",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batches_total",
			Help: "Batches stored in the vector store",
		}),
		embeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "embeddings_total",
			Help: "Embedding vectors returned by the provider",
		}),
		stored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "entries_stored_total",
			Help: "Entries written to the vector store",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total",
			Help: "Failures by pipeline stage",
		}, []string{"stage"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_duration_seconds",
			Help:    "Format, embed and store time per batch",
			Buckets: prometheus.DefBuckets,
		}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "embed_duration_seconds",
			Help:    "Provider call time per document",
			Buckets: prometheus.DefBuckets,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last run that stored every batch",
		}),
	}
	r.reg.MustRegister(r.records, r.batches, r.embeddings, r.stored, r.errors,
		r.batchDuration, r.embedDuration, r.lastSuccess)
	return r
}

func (r *Run) RecordsFetched(n int) {
	if r != nil {
		r.records.Add(float64(n))
	}
}

func (r *Run) BatchStored(entries int, took time.Duration) {
	if r != nil {
		r.batches.Inc()
		r.stored.Add(float64(entries))
		r.batchDuration.Observe(took.Seconds())
	}
}

func (r *Run) Embedded(took time.Duration) {
	if r != nil {
		r.embeddings.Inc()
		r.embedDuration.Observe(took.Seconds())
	}
}

func (r *Run) Failed(stage string) {
	if r != nil {
		r.errors.WithLabelValues(stage).Inc()
	}
}

func (r *Run) Succeeded(at time.Time) {
	if r != nil {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

// Push sends every collector to the Pushgateway at url under job,
// replacing what was pushed for job before.
func (r *Run) Push(ctx context.Context, url, job string) error {
	if r == nil {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", url, err)
	}
	return nil
}
