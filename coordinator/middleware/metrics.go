package middleware

import (
	"context"
	"time"

	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/round"
	"github.com/go-kit/kit/metrics"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) StartRound(ctx context.Context, cfg round.Config) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-round").Add(1)
		mm.latency.With("method", "start-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartRound(ctx, cfg)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, roundID string) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-round").Add(1)
		mm.latency.With("method", "get-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRound(ctx, roundID)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (round.RoundPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) SubmitModelUpdate(ctx context.Context, update model.Update) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-model-update").Add(1)
		mm.latency.With("method", "submit-model-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitModelUpdate(ctx, update)
}

func (mm *metricsMiddleware) SubmitGradientUpdate(ctx context.Context, update model.GradientUpdate) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-gradient-update").Add(1)
		mm.latency.With("method", "submit-gradient-update").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitGradientUpdate(ctx, update)
}

func (mm *metricsMiddleware) ExpireRounds(ctx context.Context) (int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "expire-rounds").Add(1)
		mm.latency.With("method", "expire-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ExpireRounds(ctx)
}

func (mm *metricsMiddleware) GlobalVersion() uint64 {
	return mm.svc.GlobalVersion()
}
