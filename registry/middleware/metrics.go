package middleware

import (
	"context"
	"time"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/registry"
	"github.com/go-kit/kit/metrics"
)

var _ registry.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     registry.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc registry.Service) registry.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) Register(ctx context.Context, p participant.Participant, maxEpsilon, maxDelta float64) (participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "register").Add(1)
		mm.latency.With("method", "register").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Register(ctx, p, maxEpsilon, maxDelta)
}

func (mm *metricsMiddleware) Unregister(ctx context.Context, nodeID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "unregister").Add(1)
		mm.latency.With("method", "unregister").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Unregister(ctx, nodeID)
}

func (mm *metricsMiddleware) Get(ctx context.Context, nodeID string) (participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get").Add(1)
		mm.latency.With("method", "get").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Get(ctx, nodeID)
}

func (mm *metricsMiddleware) List(ctx context.Context, offset, limit uint64) (participant.ParticipantPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list").Add(1)
		mm.latency.With("method", "list").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.List(ctx, offset, limit)
}

func (mm *metricsMiddleware) UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "update-reputation").Add(1)
		mm.latency.With("method", "update-reputation").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.UpdateReputation(ctx, nodeID, delta, reason)
}

func (mm *metricsMiddleware) RecordContribution(ctx context.Context, nodeID string, reward float64) (participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "record-contribution").Add(1)
		mm.latency.With("method", "record-contribution").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RecordContribution(ctx, nodeID, reward)
}

func (mm *metricsMiddleware) Eligible(ctx context.Context, minReputation float64) ([]participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "eligible").Add(1)
		mm.latency.With("method", "eligible").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Eligible(ctx, minReputation)
}

func (mm *metricsMiddleware) TopN(ctx context.Context, n int) ([]participant.Participant, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "top-n").Add(1)
		mm.latency.With("method", "top-n").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.TopN(ctx, n)
}

func (mm *metricsMiddleware) Suspend(ctx context.Context, nodeID, reason string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "suspend").Add(1)
		mm.latency.With("method", "suspend").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Suspend(ctx, nodeID, reason)
}

func (mm *metricsMiddleware) Blacklist(ctx context.Context, nodeID, reason string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "blacklist").Add(1)
		mm.latency.With("method", "blacklist").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Blacklist(ctx, nodeID, reason)
}

func (mm *metricsMiddleware) Reactivate(ctx context.Context, nodeID, reason string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "reactivate").Add(1)
		mm.latency.With("method", "reactivate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Reactivate(ctx, nodeID, reason)
}

func (mm *metricsMiddleware) Statistics(ctx context.Context) (registry.Statistics, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "statistics").Add(1)
		mm.latency.With("method", "statistics").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Statistics(ctx)
}
