package middleware

import (
	"context"

	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/round"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ coordinator.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) StartRound(ctx context.Context, cfg round.Config) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "start-round", trace.WithAttributes(
		attribute.String("algorithm", string(cfg.Algorithm)),
		attribute.Int("max_participants", cfg.MaxParticipants),
	))
	defer span.End()

	return tm.svc.StartRound(ctx, cfg)
}

func (tm *tracing) GetRound(ctx context.Context, roundID string) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.String("id", roundID),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, roundID)
}

func (tm *tracing) ListRounds(ctx context.Context, offset, limit uint64) (round.RoundPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracing) SubmitModelUpdate(ctx context.Context, update model.Update) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-model-update", trace.WithAttributes(
		attribute.String("round_id", update.RoundID),
		attribute.String("node_id", update.NodeID),
	))
	defer span.End()

	return tm.svc.SubmitModelUpdate(ctx, update)
}

func (tm *tracing) SubmitGradientUpdate(ctx context.Context, update model.GradientUpdate) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-gradient-update", trace.WithAttributes(
		attribute.String("round_id", update.RoundID),
		attribute.String("node_id", update.NodeID),
	))
	defer span.End()

	return tm.svc.SubmitGradientUpdate(ctx, update)
}

func (tm *tracing) ExpireRounds(ctx context.Context) (int, error) {
	ctx, span := tm.tracer.Start(ctx, "expire-rounds")
	defer span.End()

	return tm.svc.ExpireRounds(ctx)
}

func (tm *tracing) GlobalVersion() uint64 {
	return tm.svc.GlobalVersion()
}
