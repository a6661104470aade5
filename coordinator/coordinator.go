package coordinator

import (
	"context"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/round"
)

// Service runs bounded aggregation rounds. A round freezes its participant
// list at start, collects updates, and moves monotonically to completed or
// failed; terminal rounds never accept further submissions.
//
// Completion policy: a round completes when every frozen participant has
// reported, or when the configured quorum fraction has reported and the
// soft deadline has passed. The check runs synchronously after every
// accepted submission and on each sweeper tick, so it is deterministic. A
// round that outlives its configured lifetime without quorum fails.
type Service interface {
	StartRound(ctx context.Context, cfg round.Config) (round.Round, error)
	GetRound(ctx context.Context, roundID string) (round.Round, error)
	ListRounds(ctx context.Context, offset, limit uint64) (round.RoundPage, error)

	SubmitModelUpdate(ctx context.Context, update model.Update) (round.Round, error)
	SubmitGradientUpdate(ctx context.Context, update model.GradientUpdate) (round.Round, error)

	// ExpireRounds fails every active round past its lifetime. Safe to run
	// concurrently with submission handling.
	ExpireRounds(ctx context.Context) (int, error)

	GlobalVersion() uint64
}
