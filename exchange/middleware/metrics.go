package middleware

import (
	"context"
	"time"

	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/model"
	"github.com/go-kit/kit/metrics"
)

var _ exchange.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     exchange.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc exchange.Service) exchange.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) RegisterModel(ctx context.Context, summary model.Summary) (model.Summary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "register-model").Add(1)
		mm.latency.With("method", "register-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RegisterModel(ctx, summary)
}

func (mm *metricsMiddleware) GetModel(ctx context.Context, modelID string) (model.Summary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-model").Add(1)
		mm.latency.With("method", "get-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetModel(ctx, modelID)
}

func (mm *metricsMiddleware) ListModels(ctx context.Context, offset, limit uint64) (model.SummaryPage, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-models").Add(1)
		mm.latency.With("method", "list-models").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListModels(ctx, offset, limit)
}

func (mm *metricsMiddleware) RequestSharing(ctx context.Context, req model.SharingRequest) (model.SharingRequest, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "request-sharing").Add(1)
		mm.latency.With("method", "request-sharing").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RequestSharing(ctx, req)
}

func (mm *metricsMiddleware) HandleSharingRequest(ctx context.Context, req model.SharingRequest) (exchange.SharingResponse, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "handle-sharing-request").Add(1)
		mm.latency.With("method", "handle-sharing-request").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.HandleSharingRequest(ctx, req)
}

func (mm *metricsMiddleware) CompleteSharing(ctx context.Context, requestID string) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "complete-sharing").Add(1)
		mm.latency.With("method", "complete-sharing").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CompleteSharing(ctx, requestID)
}

func (mm *metricsMiddleware) RequestAggregation(ctx context.Context, req model.AggregationRequest) (model.Summary, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "request-aggregation").Add(1)
		mm.latency.With("method", "request-aggregation").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RequestAggregation(ctx, req)
}

func (mm *metricsMiddleware) SubmitMarketplaceBid(ctx context.Context, bid model.MarketplaceBid) (model.MarketplaceBid, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-marketplace-bid").Add(1)
		mm.latency.With("method", "submit-marketplace-bid").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitMarketplaceBid(ctx, bid)
}

func (mm *metricsMiddleware) ListBids(ctx context.Context, modelID string) ([]model.MarketplaceBid, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-bids").Add(1)
		mm.latency.With("method", "list-bids").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListBids(ctx, modelID)
}

func (mm *metricsMiddleware) RequestEvaluation(ctx context.Context, req model.EvaluationRequest) (model.EvaluationResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "request-evaluation").Add(1)
		mm.latency.With("method", "request-evaluation").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.RequestEvaluation(ctx, req)
}

func (mm *metricsMiddleware) SubmitEvaluationResult(ctx context.Context, result model.EvaluationResult) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-evaluation-result").Add(1)
		mm.latency.With("method", "submit-evaluation-result").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitEvaluationResult(ctx, result)
}

func (mm *metricsMiddleware) ListEvaluations(ctx context.Context, modelID string) ([]model.EvaluationResult, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-evaluations").Add(1)
		mm.latency.With("method", "list-evaluations").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListEvaluations(ctx, modelID)
}

func (mm *metricsMiddleware) SetPrivacyPolicy(ctx context.Context, policy model.PrivacyPolicy) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "set-privacy-policy").Add(1)
		mm.latency.With("method", "set-privacy-policy").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SetPrivacyPolicy(ctx, policy)
}

func (mm *metricsMiddleware) GetPrivacyPolicy(ctx context.Context, nodeID string) (model.PrivacyPolicy, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-privacy-policy").Add(1)
		mm.latency.With("method", "get-privacy-policy").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetPrivacyPolicy(ctx, nodeID)
}

func (mm *metricsMiddleware) CheckCompatibility(ctx context.Context, version model.Version, targetFramework string) bool {
	defer func(begin time.Time) {
		mm.counter.With("method", "check-compatibility").Add(1)
		mm.latency.With("method", "check-compatibility").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CheckCompatibility(ctx, version, targetFramework)
}

func (mm *metricsMiddleware) Cleanup(ctx context.Context) (int, int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "cleanup").Add(1)
		mm.latency.With("method", "cleanup").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Cleanup(ctx)
}

func (mm *metricsMiddleware) RunCleanup(ctx context.Context, interval time.Duration) error {
	return mm.svc.RunCleanup(ctx, interval)
}

func (mm *metricsMiddleware) Statistics(ctx context.Context) (exchange.Statistics, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "statistics").Add(1)
		mm.latency.With("method", "statistics").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Statistics(ctx)
}
