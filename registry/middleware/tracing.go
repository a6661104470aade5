package middleware

import (
	"context"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var _ registry.Service = (*tracing)(nil)

type tracing struct {
	tracer trace.Tracer
	svc    registry.Service
}

func Tracing(tracer trace.Tracer, svc registry.Service) registry.Service {
	return &tracing{tracer, svc}
}

func (tm *tracing) Register(ctx context.Context, p participant.Participant, maxEpsilon, maxDelta float64) (participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "register", trace.WithAttributes(
		attribute.String("node_id", p.ID),
	))
	defer span.End()

	return tm.svc.Register(ctx, p, maxEpsilon, maxDelta)
}

func (tm *tracing) Unregister(ctx context.Context, nodeID string) error {
	ctx, span := tm.tracer.Start(ctx, "unregister", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.Unregister(ctx, nodeID)
}

func (tm *tracing) Get(ctx context.Context, nodeID string) (participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "get-participant", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.Get(ctx, nodeID)
}

func (tm *tracing) List(ctx context.Context, offset, limit uint64) (participant.ParticipantPage, error) {
	ctx, span := tm.tracer.Start(ctx, "list-participants", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.List(ctx, offset, limit)
}

func (tm *tracing) UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "update-reputation", trace.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.Float64("delta", delta),
	))
	defer span.End()

	return tm.svc.UpdateReputation(ctx, nodeID, delta, reason)
}

func (tm *tracing) RecordContribution(ctx context.Context, nodeID string, reward float64) (participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "record-contribution", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.RecordContribution(ctx, nodeID, reward)
}

func (tm *tracing) Eligible(ctx context.Context, minReputation float64) ([]participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "eligible", trace.WithAttributes(
		attribute.Float64("min_reputation", minReputation),
	))
	defer span.End()

	return tm.svc.Eligible(ctx, minReputation)
}

func (tm *tracing) TopN(ctx context.Context, n int) ([]participant.Participant, error) {
	ctx, span := tm.tracer.Start(ctx, "top-n", trace.WithAttributes(
		attribute.Int("n", n),
	))
	defer span.End()

	return tm.svc.TopN(ctx, n)
}

func (tm *tracing) Suspend(ctx context.Context, nodeID, reason string) error {
	ctx, span := tm.tracer.Start(ctx, "suspend", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.Suspend(ctx, nodeID, reason)
}

func (tm *tracing) Blacklist(ctx context.Context, nodeID, reason string) error {
	ctx, span := tm.tracer.Start(ctx, "blacklist", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.Blacklist(ctx, nodeID, reason)
}

func (tm *tracing) Reactivate(ctx context.Context, nodeID, reason string) error {
	ctx, span := tm.tracer.Start(ctx, "reactivate", trace.WithAttributes(
		attribute.String("node_id", nodeID),
	))
	defer span.End()

	return tm.svc.Reactivate(ctx, nodeID, reason)
}

func (tm *tracing) Statistics(ctx context.Context) (registry.Statistics, error) {
	ctx, span := tm.tracer.Start(ctx, "statistics")
	defer span.End()

	return tm.svc.Statistics(ctx)
}
