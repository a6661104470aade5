package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/model"
)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    exchange.Service
}

func Logging(logger *slog.Logger, svc exchange.Service) exchange.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) RegisterModel(ctx context.Context, summary model.Summary) (resp model.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", summary.ID),
				slog.String("version", summary.Version),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Register model failed", args...)

			return
		}
		lm.logger.Info("Register model completed successfully", args...)
	}(time.Now())

	return lm.svc.RegisterModel(ctx, summary)
}

func (lm *loggingMiddleware) GetModel(ctx context.Context, modelID string) (resp model.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("id", modelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model failed", args...)

			return
		}
		lm.logger.Info("Get model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModel(ctx, modelID)
}

func (lm *loggingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (resp model.SummaryPage, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List models failed", args...)

			return
		}
		lm.logger.Info("List models completed successfully", args...)
	}(time.Now())

	return lm.svc.ListModels(ctx, offset, limit)
}

func (lm *loggingMiddleware) RequestSharing(ctx context.Context, req model.SharingRequest) (resp model.SharingRequest, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("request",
				slog.String("requester", req.RequesterID),
				slog.String("model_id", req.ModelID),
				slog.String("sharing_type", string(req.SharingType)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Request sharing failed", args...)

			return
		}
		args = append(args, slog.String("request_id", resp.ID))
		lm.logger.Info("Request sharing completed successfully", args...)
	}(time.Now())

	return lm.svc.RequestSharing(ctx, req)
}

func (lm *loggingMiddleware) HandleSharingRequest(ctx context.Context, req model.SharingRequest) (resp exchange.SharingResponse, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("request",
				slog.String("id", req.ID),
				slog.String("requester", req.RequesterID),
				slog.String("sharing_type", string(req.SharingType)),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Handle sharing request failed", args...)

			return
		}
		lm.logger.Info("Handle sharing request completed successfully", args...)
	}(time.Now())

	return lm.svc.HandleSharingRequest(ctx, req)
}

func (lm *loggingMiddleware) CompleteSharing(ctx context.Context, requestID string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("request_id", requestID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Complete sharing failed", args...)

			return
		}
		lm.logger.Info("Complete sharing completed successfully", args...)
	}(time.Now())

	return lm.svc.CompleteSharing(ctx, requestID)
}

func (lm *loggingMiddleware) RequestAggregation(ctx context.Context, req model.AggregationRequest) (resp model.Summary, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("algorithm", string(req.Algorithm)),
			slog.Int("model_count", len(req.ModelIDs)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Request aggregation failed", args...)

			return
		}
		args = append(args, slog.String("result_id", resp.ID))
		lm.logger.Info("Request aggregation completed successfully", args...)
	}(time.Now())

	return lm.svc.RequestAggregation(ctx, req)
}

func (lm *loggingMiddleware) SubmitMarketplaceBid(ctx context.Context, bid model.MarketplaceBid) (resp model.MarketplaceBid, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("bid",
				slog.String("bidder", bid.BidderID),
				slog.String("model_id", bid.ModelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit marketplace bid failed", args...)

			return
		}
		args = append(args, slog.String("bid_id", resp.ID))
		lm.logger.Info("Submit marketplace bid completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitMarketplaceBid(ctx, bid)
}

func (lm *loggingMiddleware) ListBids(ctx context.Context, modelID string) (resp []model.MarketplaceBid, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("model_id", modelID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List bids failed", args...)

			return
		}
		args = append(args, slog.Int("bid_count", len(resp)))
		lm.logger.Info("List bids completed successfully", args...)
	}(time.Now())

	return lm.svc.ListBids(ctx, modelID)
}

func (lm *loggingMiddleware) RequestEvaluation(ctx context.Context, req model.EvaluationRequest) (resp model.EvaluationResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("evaluation",
				slog.String("model_id", req.ModelID),
				slog.String("evaluator", req.EvaluatorID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Request evaluation failed", args...)

			return
		}
		lm.logger.Info("Request evaluation completed successfully", args...)
	}(time.Now())

	return lm.svc.RequestEvaluation(ctx, req)
}

func (lm *loggingMiddleware) SubmitEvaluationResult(ctx context.Context, result model.EvaluationResult) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("evaluation",
				slog.String("id", result.ID),
				slog.String("model_id", result.ModelID),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit evaluation result failed", args...)

			return
		}
		lm.logger.Info("Submit evaluation result completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitEvaluationResult(ctx, result)
}

func (lm *loggingMiddleware) ListEvaluations(ctx context.Context, modelID string) (resp []model.EvaluationResult, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("model_id", modelID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List evaluations failed", args...)

			return
		}
		args = append(args, slog.Int("result_count", len(resp)))
		lm.logger.Info("List evaluations completed successfully", args...)
	}(time.Now())

	return lm.svc.ListEvaluations(ctx, modelID)
}

func (lm *loggingMiddleware) SetPrivacyPolicy(ctx context.Context, policy model.PrivacyPolicy) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", policy.NodeID),
			slog.Int("rule_count", len(policy.Rules)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Set privacy policy failed", args...)

			return
		}
		lm.logger.Info("Set privacy policy completed successfully", args...)
	}(time.Now())

	return lm.svc.SetPrivacyPolicy(ctx, policy)
}

func (lm *loggingMiddleware) GetPrivacyPolicy(ctx context.Context, nodeID string) (resp model.PrivacyPolicy, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("node_id", nodeID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get privacy policy failed", args...)

			return
		}
		lm.logger.Info("Get privacy policy completed successfully", args...)
	}(time.Now())

	return lm.svc.GetPrivacyPolicy(ctx, nodeID)
}

func (lm *loggingMiddleware) CheckCompatibility(ctx context.Context, version model.Version, targetFramework string) bool {
	return lm.svc.CheckCompatibility(ctx, version, targetFramework)
}

func (lm *loggingMiddleware) Cleanup(ctx context.Context) (requests int, bids int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("expired_requests", requests),
			slog.Int("expired_bids", bids),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Cleanup failed", args...)

			return
		}
		lm.logger.Info("Cleanup completed successfully", args...)
	}(time.Now())

	return lm.svc.Cleanup(ctx)
}

func (lm *loggingMiddleware) RunCleanup(ctx context.Context, interval time.Duration) error {
	return lm.svc.RunCleanup(ctx, interval)
}

func (lm *loggingMiddleware) Statistics(ctx context.Context) (resp exchange.Statistics, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Statistics failed", args...)

			return
		}
		lm.logger.Info("Statistics completed successfully", args...)
	}(time.Now())

	return lm.svc.Statistics(ctx)
}
