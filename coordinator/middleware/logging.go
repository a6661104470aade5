package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/round"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) StartRound(ctx context.Context, cfg round.Config) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("algorithm", string(cfg.Algorithm)),
			slog.Int("max_participants", cfg.MaxParticipants),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start round failed", args...)

			return
		}
		args = append(args, slog.String("round_id", resp.ID), slog.Int("participant_count", len(resp.Participants)))
		lm.logger.Info("Start round completed successfully", args...)
	}(time.Now())

	return lm.svc.StartRound(ctx, cfg)
}

func (lm *loggingMiddleware) GetRound(ctx context.Context, roundID string) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.String("id", roundID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round failed", args...)

			return
		}
		lm.logger.Info("Get round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRound(ctx, roundID)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (resp round.RoundPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) SubmitModelUpdate(ctx context.Context, update model.Update) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("round_id", update.RoundID),
				slog.String("node_id", update.NodeID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit model update failed", args...)

			return
		}
		args = append(args, slog.String("round_status", string(resp.Status)))
		lm.logger.Info("Submit model update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitModelUpdate(ctx, update)
}

func (lm *loggingMiddleware) SubmitGradientUpdate(ctx context.Context, update model.GradientUpdate) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("update",
				slog.String("round_id", update.RoundID),
				slog.String("node_id", update.NodeID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit gradient update failed", args...)

			return
		}
		args = append(args, slog.String("round_status", string(resp.Status)))
		lm.logger.Info("Submit gradient update completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitGradientUpdate(ctx, update)
}

func (lm *loggingMiddleware) ExpireRounds(ctx context.Context) (expired int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("expired", expired),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Expire rounds failed", args...)

			return
		}
		lm.logger.Info("Expire rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ExpireRounds(ctx)
}

func (lm *loggingMiddleware) GlobalVersion() uint64 {
	return lm.svc.GlobalVersion()
}
