package backend

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reach-cloud/promptdex/internal/domain"
)

// Instrumented decorates a Backend with Prometheus request counters and
// latency histograms. Either collector may be nil, which turns that part of
// the decoration into plain delegation.
type Instrumented struct {
	next     Backend
	requests *prometheus.CounterVec   // labels: backend, op, status
	duration *prometheus.HistogramVec // labels: backend, op
}

// Instrument wraps b with metrics collection.
func Instrument(b Backend, requests *prometheus.CounterVec, duration *prometheus.HistogramVec) *Instrumented {
	return &Instrumented{next: b, requests: requests, duration: duration}
}

func (i *Instrumented) Init(ctx context.Context) error {
	start := time.Now()
	err := i.next.Init(ctx)
	i.record(OpInit, start, err)
	return err
}

func (i *Instrumented) Upsert(ctx context.Context, docs []domain.Document) (int, error) {
	start := time.Now()
	n, err := i.next.Upsert(ctx, docs)
	i.record(OpUpsert, start, err)
	return n, err
}

func (i *Instrumented) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchHit, error) {
	start := time.Now()
	hits, err := i.next.Search(ctx, vector, topK)
	i.record(OpSearch, start, err)
	return hits, err
}

func (i *Instrumented) Count(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := i.next.Count(ctx)
	i.record(OpCount, start, err)
	return n, err
}

func (i *Instrumented) Ready() bool { return i.next.Ready() }

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) record(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	if i.requests != nil {
		i.requests.WithLabelValues(i.next.Name(), op, status).Inc()
	}
	if i.duration != nil {
		i.duration.WithLabelValues(i.next.Name(), op).Observe(time.Since(start).Seconds())
	}
}
