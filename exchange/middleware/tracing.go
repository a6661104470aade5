package middleware

import (
	"context"
	"time"

	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ exchange.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    exchange.Service
}

func Tracing(tracer trace.Tracer, svc exchange.Service) exchange.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) RegisterModel(ctx context.Context, summary model.Summary) (model.Summary, error) {
	ctx, span := tm.tracer.Start(ctx, "register-model", trace.WithAttributes(
		attribute.String("id", summary.ID),
		attribute.String("version", summary.Version),
	))
	defer span.End()

	return tm.svc.RegisterModel(ctx, summary)
}

func (tm *tracing) GetModel(ctx context.Context, modelID string) (model.Summary, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model", trace.WithAttributes(
		attribute.String("id", modelID),
	))
	defer span.End()

	return tm.svc.GetModel(ctx, modelID)
}

func (tm *tracing) ListModels(ctx context.Context, offset, limit uint64) (model.SummaryPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-models", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListModels(ctx, offset, limit)
}

func (tm *tracing) RequestSharing(ctx context.Context, req model.SharingRequest) (model.SharingRequest, error) {
	ctx, span := tm.tracer.Start(ctx, "request-sharing", trace.WithAttributes(
		attribute.String("requester", req.RequesterID),
		attribute.String("model_id", req.ModelID),
		attribute.String("sharing_type", string(req.SharingType)),
	))
	defer span.End()

	return tm.svc.RequestSharing(ctx, req)
}

func (tm *tracing) HandleSharingRequest(ctx context.Context, req model.SharingRequest) (exchange.SharingResponse, error) {
	ctx, span := tm.tracer.Start(ctx, "handle-sharing-request", trace.WithAttributes(
		attribute.String("id", req.ID),
		attribute.String("requester", req.RequesterID),
		attribute.String("sharing_type", string(req.SharingType)),
	))
	defer span.End()

	return tm.svc.HandleSharingRequest(ctx, req)
}

func (tm *tracing) CompleteSharing(ctx context.Context, requestID string) error {
	ctx, span := tm.tracer.Start(ctx, "complete-sharing", trace.WithAttributes(
		attribute.String("id", requestID),
	))
	defer span.End()

	return tm.svc.CompleteSharing(ctx, requestID)
}

func (tm *tracing) RequestAggregation(ctx context.Context, req model.AggregationRequest) (model.Summary, error) {
	ctx, span := tm.tracer.Start(ctx, "request-aggregation", trace.WithAttributes(
		attribute.String("algorithm", string(req.Algorithm)),
		attribute.Int("model_count", len(req.ModelIDs)),
	))
	defer span.End()

	return tm.svc.RequestAggregation(ctx, req)
}

func (tm *tracing) SubmitMarketplaceBid(ctx context.Context, bid model.MarketplaceBid) (model.MarketplaceBid, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-marketplace-bid", trace.WithAttributes(
		attribute.String("bidder", bid.BidderID),
		attribute.String("model_id", bid.ModelID),
	))
	defer span.End()

	return tm.svc.SubmitMarketplaceBid(ctx, bid)
}

func (tm *tracing) ListBids(ctx context.Context, modelID string) ([]model.MarketplaceBid, error) {
	ctx, span := tm.tracer.Start(ctx, "list-bids", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.ListBids(ctx, modelID)
}

func (tm *tracing) RequestEvaluation(ctx context.Context, req model.EvaluationRequest) (model.EvaluationResult, error) {
	ctx, span := tm.tracer.Start(ctx, "request-evaluation", trace.WithAttributes(
		attribute.String("model_id", req.ModelID),
		attribute.String("evaluator", req.EvaluatorID),
	))
	defer span.End()

	return tm.svc.RequestEvaluation(ctx, req)
}

func (tm *tracing) SubmitEvaluationResult(ctx context.Context, result model.EvaluationResult) error {
	ctx, span := tm.tracer.Start(ctx, "submit-evaluation-result", trace.WithAttributes(
		attribute.String("id", result.ID),
		attribute.String("model_id", result.ModelID),
	))
	defer span.End()

	return tm.svc.SubmitEvaluationResult(ctx, result)
}

func (tm *tracing) ListEvaluations(ctx context.Context, modelID string) ([]model.EvaluationResult, error) {
	ctx, span := tm.tracer.Start(ctx, "list-evaluations", trace.WithAttributes(
		attribute.String("model_id", modelID),
	))
	defer span.End()

	return tm.svc.ListEvaluations(ctx, modelID)
}

func (tm *tracing) SetPrivacyPolicy(ctx context.Context, policy model.PrivacyPolicy) error {
	ctx, span := tm.tracer.Start(ctx, "set-privacy-policy", trace.WithAttributes(
		attribute.String("node_id", policy.NodeID),
	))
	defer span.End()

	return tm.svc.SetPrivacyPolicy(ctx, policy)
}

func (tm *tracing) GetPrivacyPolicy(ctx context.Context, nodeID string) (model.PrivacyPolicy, error) {
	ctx, span := tm.tracer.Start(ctx, "get-privacy-policy", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.GetPrivacyPolicy(ctx, nodeID)
}

func (tm *tracing) CheckCompatibility(ctx context.Context, version model.Version, targetFramework string) bool {
	ctx, span := tm.tracer.Start(ctx, "check-compatibility", trace.WithAttributes(
		attribute.String("version", version.Version),
		attribute.String("framework", targetFramework),
	))
	defer span.End()

	return tm.svc.CheckCompatibility(ctx, version, targetFramework)
}

func (tm *tracing) Cleanup(ctx context.Context) (int, int, error) {
	ctx, span := tm.tracer.Start(ctx, "cleanup")
	defer span.End()

	return tm.svc.Cleanup(ctx)
}

func (tm *tracing) RunCleanup(ctx context.Context, interval time.Duration) error {
	return tm.svc.RunCleanup(ctx, interval)
}

func (tm *tracing) Statistics(ctx context.Context) (exchange.Statistics, error) {
	ctx, span := tm.tracer.Start(ctx, "statistics")
	defer span.End()

	return tm.svc.Statistics(ctx)
}
