package coordinator_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/participant"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
	"github.com/aixprotocol/aix/round"
	"github.com/aixprotocol/aix/secagg"
)

const tolerance = 1e-6

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      coordinator.Service
	reg      registry.Service
	ledger   privacy.Ledger
	recorder *events.Recorder
	clk      *clock
}

// setup wires a coordinator over in-memory stores with a fixed clock and a
// deterministic noise source. maxEpsilon is the per-participant budget
// ceiling for every node registered through register.
func setup(t *testing.T, maxEpsilon float64, reputations map[string]float64) *fixture {
	t.Helper()

	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	ledger := privacy.NewLedger(storage.NewInMemoryStorage())
	recorder := &events.Recorder{}
	reg := registry.NewServiceWithClock(storage.NewInMemoryStorage(), ledger, events.Noop{}, clk.now)

	noise := privacy.NewNoiseEngine(rand.New(rand.NewSource(42)), 1000)
	svc := coordinator.NewServiceWithClock(
		storage.NewInMemoryStorage(), reg, ledger, noise, secagg.NewScheme(), recorder, clk.now,
	)

	for id, rep := range reputations {
		_, err := reg.Register(context.Background(), participant.Participant{ID: id, Reputation: rep}, maxEpsilon, 1e-2)
		require.NoError(t, err)
	}

	return &fixture{svc: svc, reg: reg, ledger: ledger, recorder: recorder, clk: clk}
}

func baseConfig() round.Config {
	return round.Config{
		Algorithm:       model.FederatedAveraging,
		MaxParticipants: 2,
		Quorum:          1.0,
		Epsilon:         1.0,
		Delta:           1e-5,
	}
}

func TestStartRoundFreezesTopParticipants(t *testing.T) {
	t.Parallel()

	f := setup(t, 10, map[string]float64{
		"p1": 0.9, "p2": 0.8, "p3": 0.7, "p4": 0.6, "p5": 0.5,
	})

	r, err := f.svc.StartRound(context.Background(), baseConfig())
	require.NoError(t, err)

	assert.Equal(t, round.Active, r.Status)
	assert.Equal(t, []string{"p1", "p2"}, r.Participants)
	assert.Equal(t, uint64(1), r.TargetVersion)
	assert.Equal(t, f.clk.t, r.StartedAt)

	require.Len(t, f.recorder.Events, 1)
	assert.Equal(t, events.RoundStarted, f.recorder.Events[0].Kind)
}

func TestStartRoundValidation(t *testing.T) {
	t.Parallel()

	f := setup(t, 10, map[string]float64{"p1": 0.9})

	cases := []struct {
		desc string
		cfg  round.Config
	}{
		{
			desc: "zero participants",
			cfg:  round.Config{Algorithm: model.FederatedAveraging, Quorum: 1.0},
		},
		{
			desc: "quorum above one",
			cfg:  round.Config{Algorithm: model.FederatedAveraging, MaxParticipants: 2, Quorum: 1.5},
		},
		{
			desc: "unknown algorithm",
			cfg:  round.Config{Algorithm: "gossip", MaxParticipants: 2, Quorum: 1.0},
		},
		{
			desc: "epsilon without delta",
			cfg:  round.Config{Algorithm: model.FederatedAveraging, MaxParticipants: 2, Quorum: 1.0, Epsilon: 1.0},
		},
		{
			desc: "delta out of range",
			cfg:  round.Config{Algorithm: model.FederatedAveraging, MaxParticipants: 2, Quorum: 1.0, Epsilon: 1.0, Delta: 1},
		},
		{
			desc: "negative epsilon",
			cfg:  round.Config{Algorithm: model.FederatedAveraging, MaxParticipants: 2, Quorum: 1.0, Epsilon: -1, Delta: 1e-5},
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			_, err := f.svc.StartRound(context.Background(), tc.cfg)
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
		})
	}
}

func TestStartRoundNoEligibleParticipants(t *testing.T) {
	t.Parallel()

	f := setup(t, 10, map[string]float64{"p1": 0.5})

	cfg := baseConfig()
	cfg.MinReputation = 0.95

	_, err := f.svc.StartRound(context.Background(), cfg)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestSubmitNonMember(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8, "p3": 0.7})

	r, err := f.svc.StartRound(ctx, baseConfig())
	require.NoError(t, err)
	require.NotContains(t, r.Participants, "p3")

	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p3",
		Deltas:     map[string][]float64{"w": {1}},
		NumSamples: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrNotMember)
}

func TestSubmitUnknownRound(t *testing.T) {
	t.Parallel()

	f := setup(t, 10, map[string]float64{"p1": 0.9})

	_, err := f.svc.SubmitModelUpdate(context.Background(), model.Update{
		RoundID:    "missing",
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1}},
		NumSamples: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrRoundClosed)
}

func TestSubmitDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	r, err := f.svc.StartRound(ctx, baseConfig())
	require.NoError(t, err)

	update := model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
	}
	_, err = f.svc.SubmitModelUpdate(ctx, update)
	require.NoError(t, err)

	_, err = f.svc.SubmitModelUpdate(ctx, update)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadySubmitted)
}

func TestRoundCompletesWhenAllReport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	r, err := f.svc.StartRound(ctx, baseConfig())
	require.NoError(t, err)

	first, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, round.Active, first.Status)

	done, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p2",
		Deltas:     map[string][]float64{"w": {3, 4}},
		NumSamples: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, round.Completed, done.Status)
	require.Contains(t, done.Result, "w")
	// Weighted by dataset size: 0.25*{1,2} + 0.75*{3,4}.
	assert.InDelta(t, 2.5, done.Result["w"][0], tolerance)
	assert.InDelta(t, 3.5, done.Result["w"][1], tolerance)

	assert.Equal(t, uint64(1), f.svc.GlobalVersion())

	p1, err := f.reg.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p1.Contributions)

	// Terminal rounds reject further submissions.
	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p2",
		Deltas:     map[string][]float64{"w": {5, 6}},
		NumSamples: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrRoundClosed)
}

func TestGradientSubmission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9})

	cfg := baseConfig()
	cfg.MaxParticipants = 1

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	done, err := f.svc.SubmitGradientUpdate(ctx, model.GradientUpdate{
		RoundID:    r.ID,
		NodeID:     "p1",
		Gradients:  map[string][]float64{"g": {0.5, -0.5}},
		NumSamples: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, round.Completed, done.Status)
	assert.InDelta(t, 0.5, done.Result["g"][0], tolerance)
	assert.InDelta(t, -0.5, done.Result["g"][1], tolerance)
}

func TestBudgetChargedBeforeAccept(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 0.5, map[string]float64{"p1": 0.9, "p2": 0.8})

	r, err := f.svc.StartRound(ctx, baseConfig())
	require.NoError(t, err)

	// The round asks for epsilon 1.0 against a ceiling of 0.5.
	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
		NoiseScale: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrBudgetExceeded)

	budget, err := f.ledger.Budget(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, budget.UsedEpsilon)

	// The rejection left no record, so a clean retry is accepted.
	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
	})
	require.NoError(t, err)
}

func TestRejectedNoiseLeavesBudgetIntact(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	// A round without a privacy budget cannot noise anything, so asking for
	// noise is refused outright and must not spend a thing.
	cfg := baseConfig()
	cfg.Epsilon = 0
	cfg.Delta = 0

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
		NoiseScale: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	budget, err := f.ledger.Budget(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, budget.UsedEpsilon)
	assert.Zero(t, budget.UsedDelta)

	got, err := f.svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, round.Active, got.Status)

	// The refusal left no record, so an unnoised retry is accepted.
	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
	})
	require.NoError(t, err)
}

func TestNoisySubmissionConsumesBudget(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10000, map[string]float64{"p1": 0.9})

	cfg := baseConfig()
	cfg.MaxParticipants = 1
	cfg.Epsilon = 1000

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	done, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
		NoiseScale: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, round.Completed, done.Status)

	budget, err := f.ledger.Budget(ctx, "p1")
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, budget.UsedEpsilon, tolerance)

	// With a huge epsilon the noise is negligible and the signal survives.
	assert.InDelta(t, 1.0, done.Result["w"][0], 0.05)
	assert.InDelta(t, 2.0, done.Result["w"][1], 0.05)
}

func TestQuorumClosesAfterSoftDeadline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8, "p3": 0.7, "p4": 0.6})

	cfg := baseConfig()
	cfg.MaxParticipants = 4
	cfg.Quorum = 0.5
	cfg.SoftDeadline = 10 * time.Minute

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	got, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1}},
		NumSamples: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, round.Active, got.Status)

	f.clk.advance(11 * time.Minute)

	// The second report brings the round to quorum past the soft deadline,
	// so it closes without waiting for the rest of the frozen list.
	got, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p2",
		Deltas:     map[string][]float64{"w": {3}},
		NumSamples: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, round.Completed, got.Status)
	assert.InDelta(t, 2.0, got.Result["w"][0], tolerance)
}

func TestQuorumWaitsBeforeSoftDeadline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8, "p3": 0.7, "p4": 0.6})

	cfg := baseConfig()
	cfg.MaxParticipants = 4
	cfg.Quorum = 0.5
	cfg.SoftDeadline = 10 * time.Minute

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	for _, id := range []string{"p1", "p2"} {
		got, err := f.svc.SubmitModelUpdate(ctx, model.Update{
			RoundID:    r.ID,
			NodeID:     id,
			Deltas:     map[string][]float64{"w": {1}},
			NumSamples: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, round.Active, got.Status)
	}
}

func TestRoundWithoutSubmissionsStaysActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	cfg := baseConfig()
	cfg.Quorum = 0.5
	cfg.SoftDeadline = time.Minute

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	// No lifetime is configured, so the sweeper leaves the round alone even
	// long past the soft deadline. Completion needs at least one report.
	f.clk.advance(24 * time.Hour)
	expired, err := f.svc.ExpireRounds(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	got, err := f.svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, round.Active, got.Status)
}

func TestExpireRounds(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	cfg := baseConfig()
	cfg.Lifetime = time.Hour

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1}},
		NumSamples: 1,
	})
	require.NoError(t, err)

	expired, err := f.svc.ExpireRounds(ctx)
	require.NoError(t, err)
	assert.Zero(t, expired)

	f.clk.advance(2 * time.Hour)

	expired, err = f.svc.ExpireRounds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, err := f.svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, round.Failed, got.Status)

	// Failed rounds produce no model and touch no reputation.
	assert.Zero(t, f.svc.GlobalVersion())
	p1, err := f.reg.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p1.Contributions)

	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p2",
		Deltas:     map[string][]float64{"w": {1}},
		NumSamples: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrRoundClosed)
}

func TestResultPreservesLayerShapes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9})

	cfg := baseConfig()
	cfg.MaxParticipants = 1

	r, err := f.svc.StartRound(ctx, cfg)
	require.NoError(t, err)

	done, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID: r.ID,
		NodeID:  "p1",
		Deltas: map[string][]float64{
			"dense":  {1, 2, 3},
			"output": {4, 5},
		},
		NumSamples: 1,
	})
	require.NoError(t, err)

	assert.Len(t, done.Result["dense"], 3)
	assert.Len(t, done.Result["output"], 2)
}

func TestMismatchedLayerSizesFailRound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := setup(t, 10, map[string]float64{"p1": 0.9, "p2": 0.8})

	r, err := f.svc.StartRound(ctx, baseConfig())
	require.NoError(t, err)

	_, err = f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p1",
		Deltas:     map[string][]float64{"w": {1, 2}},
		NumSamples: 1,
	})
	require.NoError(t, err)

	got, err := f.svc.SubmitModelUpdate(ctx, model.Update{
		RoundID:    r.ID,
		NodeID:     "p2",
		Deltas:     map[string][]float64{"w": {1, 2, 3}},
		NumSamples: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, round.Failed, got.Status)
	assert.Nil(t, got.Result)
}

func TestSubmitValidation(t *testing.T) {
	t.Parallel()

	f := setup(t, 10, map[string]float64{"p1": 0.9})

	_, err := f.svc.SubmitModelUpdate(context.Background(), model.Update{NodeID: "p1"})
	assert.ErrorIs(t, err, pkgerrors.ErrMissingField)

	_, err = f.svc.SubmitGradientUpdate(context.Background(), model.GradientUpdate{
		RoundID: "r1", NodeID: "p1",
	})
	assert.ErrorIs(t, err, pkgerrors.ErrMissingField)
}
