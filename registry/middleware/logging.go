package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/registry"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    registry.Service
}

func Logging(logger *slog.Logger, svc registry.Service) registry.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) Register(ctx context.Context, p participant.Participant, maxEpsilon, maxDelta float64) (resp participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", p.ID),
				slog.String("name", p.Name),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register participant failed", args...)

			return
		}
		lm.logger.Info("Register participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Register(ctx, p, maxEpsilon, maxDelta)
}

func (lm *loggingMiddleware) Unregister(ctx context.Context, nodeID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Unregister participant failed", args...)

			return
		}
		lm.logger.Info("Unregister participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Unregister(ctx, nodeID)
}

func (lm *loggingMiddleware) Get(ctx context.Context, nodeID string) (resp participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get participant failed", args...)

			return
		}
		lm.logger.Info("Get participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Get(ctx, nodeID)
}

func (lm *loggingMiddleware) List(ctx context.Context, offset, limit uint64) (resp participant.ParticipantPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List participants failed", args...)

			return
		}
		lm.logger.Info("List participants completed successfully", args...)
	}(time.Now())

	return lm.svc.List(ctx, offset, limit)
}

func (lm *loggingMiddleware) UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (resp participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
			slog.Float64("delta", delta),
			slog.String("reason", reason),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Update reputation failed", args...)

			return
		}
		args = append(args, slog.Float64("reputation", resp.Reputation))
		lm.logger.Info("Update reputation completed successfully", args...)
	}(time.Now())

	return lm.svc.UpdateReputation(ctx, nodeID, delta, reason)
}

func (lm *loggingMiddleware) RecordContribution(ctx context.Context, nodeID string, reward float64) (resp participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
			slog.Float64("reward", reward),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Record contribution failed", args...)

			return
		}
		lm.logger.Info("Record contribution completed successfully", args...)
	}(time.Now())

	return lm.svc.RecordContribution(ctx, nodeID, reward)
}

func (lm *loggingMiddleware) Eligible(ctx context.Context, minReputation float64) (resp []participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Float64("min_reputation", minReputation),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Eligible participants failed", args...)

			return
		}
		args = append(args, slog.Int("count", len(resp)))
		lm.logger.Info("Eligible participants completed successfully", args...)
	}(time.Now())

	return lm.svc.Eligible(ctx, minReputation)
}

func (lm *loggingMiddleware) TopN(ctx context.Context, n int) (resp []participant.Participant, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("n", n),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Top participants failed", args...)

			return
		}
		lm.logger.Info("Top participants completed successfully", args...)
	}(time.Now())

	return lm.svc.TopN(ctx, n)
}

func (lm *loggingMiddleware) Suspend(ctx context.Context, nodeID, reason string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
			slog.String("reason", reason),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Suspend participant failed", args...)

			return
		}
		lm.logger.Info("Suspend participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Suspend(ctx, nodeID, reason)
}

func (lm *loggingMiddleware) Blacklist(ctx context.Context, nodeID, reason string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
			slog.String("reason", reason),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Blacklist participant failed", args...)

			return
		}
		lm.logger.Info("Blacklist participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Blacklist(ctx, nodeID, reason)
}

func (lm *loggingMiddleware) Reactivate(ctx context.Context, nodeID, reason string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", nodeID),
			),
			slog.String("reason", reason),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Reactivate participant failed", args...)

			return
		}
		lm.logger.Info("Reactivate participant completed successfully", args...)
	}(time.Now())

	return lm.svc.Reactivate(ctx, nodeID, reason)
}

func (lm *loggingMiddleware) Statistics(ctx context.Context) (resp registry.Statistics, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Registry statistics failed", args...)

			return
		}
		lm.logger.Info("Registry statistics completed successfully", args...)
	}(time.Now())

	return lm.svc.Statistics(ctx)
}
