package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixprotocol/aix/participant"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newRegistry() (registry.Service, privacy.Ledger, *events.Recorder) {
	ledger := privacy.NewLedger(storage.NewInMemoryStorage())
	recorder := &events.Recorder{}
	svc := registry.NewServiceWithClock(storage.NewInMemoryStorage(), ledger, recorder, func() time.Time {
		return fixedNow
	})

	return svc, ledger, recorder
}

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()

	svc, ledger, recorder := newRegistry()

	p, err := svc.Register(context.Background(), participant.Participant{ID: "n1", Name: "alpha"}, 10, 1e-5)
	require.NoError(t, err)

	assert.Equal(t, participant.Active, p.Status)
	assert.InDelta(t, 0.5, p.Reputation, 1e-9)
	assert.Equal(t, fixedNow, p.RegisteredAt)

	budget, err := ledger.Budget(context.Background(), "n1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, budget.MaxEpsilon, 1e-9)

	require.Len(t, recorder.Events, 1)
	assert.Equal(t, events.ParticipantRegistered, recorder.Events[0].Kind)
	assert.Equal(t, "n1", recorder.Events[0].NodeID)
}

func TestRegisterMissingID(t *testing.T) {
	t.Parallel()

	svc, _, _ := newRegistry()

	_, err := svc.Register(context.Background(), participant.Participant{}, 10, 1e-5)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingField)
}

func TestRegisterDuplicate(t *testing.T) {
	t.Parallel()

	svc, _, _ := newRegistry()

	_, err := svc.Register(context.Background(), participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), participant.Participant{ID: "n1"}, 10, 1e-5)
	assert.ErrorIs(t, err, pkgerrors.ErrEntityExists)
}

func TestRegisterRollsBackOnLedgerFailure(t *testing.T) {
	t.Parallel()

	svc, ledger, _ := newRegistry()

	// A pre-existing budget makes the ledger open fail after the
	// participant record is created.
	require.NoError(t, ledger.Open(context.Background(), "n1", 5, 1e-5))

	_, err := svc.Register(context.Background(), participant.Participant{ID: "n1"}, 10, 1e-5)
	require.Error(t, err)

	_, err = svc.Get(context.Background(), "n1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestUpdateReputationBlend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	// A fresh participant with no contributions and an untouched budget
	// scores base 0.20 plus full budget health 0.25.
	svc, _, _ := newRegistry()
	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	p, err := svc.UpdateReputation(ctx, "n1", 0, "audit")
	require.NoError(t, err)
	assert.InDelta(t, 0.45, p.Reputation, 1e-9)
	assert.Equal(t, participant.Active, p.Status)

	// Advanced capabilities each add 0.1 on top of the blend.
	_, err = svc.Register(ctx, participant.Participant{
		ID:           "n2",
		Capabilities: []string{participant.CapSecureComputation, participant.CapDistillation},
	}, 10, 1e-5)
	require.NoError(t, err)

	p, err = svc.UpdateReputation(ctx, "n2", 0, "audit")
	require.NoError(t, err)
	assert.InDelta(t, 0.65, p.Reputation, 1e-9)
}

func TestUpdateReputationBudgetHealth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, ledger, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-2)
	require.NoError(t, err)
	require.NoError(t, ledger.Consume(ctx, "n1", 5, 1e-5))

	// Half the epsilon ceiling spent halves the budget component.
	p, err := svc.UpdateReputation(ctx, "n1", 0, "audit")
	require.NoError(t, err)
	assert.InDelta(t, 0.325, p.Reputation, 1e-9)
}

func TestUpdateReputationClamps(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	p, err := svc.UpdateReputation(ctx, "n1", 10, "bonus")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.Reputation, 1e-9)
	assert.Equal(t, participant.Active, p.Status)
}

func TestUpdateReputationBlacklists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, recorder := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	p, err := svc.UpdateReputation(ctx, "n1", -10, "fraud")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, p.Reputation, 1e-9)
	assert.Equal(t, participant.Blacklisted, p.Status)

	var kinds []events.Kind
	for _, e := range recorder.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, events.ParticipantBlacklisted)

	// Blacklisting is terminal: later positive updates never revive.
	p, err = svc.UpdateReputation(ctx, "n1", 10, "appeal")
	require.NoError(t, err)
	assert.Equal(t, participant.Blacklisted, p.Status)
}

func TestUpdateReputationSuspendsAndReactivates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	// Blend is 0.45 for a fresh participant, so -0.3 lands at 0.15,
	// between the blacklist and suspension thresholds.
	p, err := svc.UpdateReputation(ctx, "n1", -0.3, "missed rounds")
	require.NoError(t, err)
	assert.InDelta(t, 0.15, p.Reputation, 1e-9)
	assert.Equal(t, participant.Suspended, p.Status)

	// A neutral update recomputes the blend above the reactivation
	// threshold and lifts the suspension.
	p, err = svc.UpdateReputation(ctx, "n1", 0, "review")
	require.NoError(t, err)
	assert.InDelta(t, 0.45, p.Reputation, 1e-9)
	assert.Equal(t, participant.Active, p.Status)
}

func TestRecordContribution(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, recorder := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	p, err := svc.RecordContribution(ctx, "n1", 0.05)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), p.Contributions)
	assert.Equal(t, fixedNow, p.LastContribution)
	// Full recency, one contribution of experience, full budget health,
	// plus the round reward.
	assert.InDelta(t, 0.8025, p.Reputation, 1e-9)

	var found bool
	for _, e := range recorder.Events {
		if e.Kind == events.ReputationUpdated && e.Reason == "round contribution" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRecordContributionConcurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	const workers = 25

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordContribution(ctx, "n1", 0.05)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// The counter bump and the score refresh happen under one lock, so no
	// contribution is lost and the final score reflects all of them.
	p, err := svc.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), p.Contributions)
	// Full recency, 25 contributions of experience, full budget health,
	// plus the round reward.
	assert.InDelta(t, 0.8625, p.Reputation, 1e-9)
}

func TestRecordContributionUnknownNode(t *testing.T) {
	t.Parallel()

	svc, _, _ := newRegistry()

	_, err := svc.RecordContribution(context.Background(), "ghost", 0.05)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestEligibleFiltersAndSorts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	seed := []participant.Participant{
		{ID: "low", Reputation: 0.3},
		{ID: "mid", Reputation: 0.5},
		{ID: "high", Reputation: 0.9},
		{ID: "edge", Reputation: 0.4},
		{ID: "benched", Reputation: 0.8},
	}
	for _, p := range seed {
		_, err := svc.Register(ctx, p, 10, 1e-5)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Suspend(ctx, "benched", "maintenance"))

	eligible, err := svc.Eligible(ctx, 0.4)
	require.NoError(t, err)

	require.Len(t, eligible, 2)
	assert.Equal(t, "high", eligible[0].ID)
	assert.Equal(t, "mid", eligible[1].ID)
}

func TestTopN(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	for _, p := range []participant.Participant{
		{ID: "a", Reputation: 0.6},
		{ID: "b", Reputation: 0.9},
		{ID: "c", Reputation: 0.7},
	} {
		_, err := svc.Register(ctx, p, 10, 1e-5)
		require.NoError(t, err)
	}

	top, err := svc.TopN(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].ID)
	assert.Equal(t, "c", top[1].ID)

	all, err := svc.TopN(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)

	require.NoError(t, svc.Suspend(ctx, "n1", "flaky"))
	// Repeating the same transition is a no-op.
	require.NoError(t, svc.Suspend(ctx, "n1", "flaky"))

	require.NoError(t, svc.Reactivate(ctx, "n1", "recovered"))
	p, err := svc.Get(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, participant.Active, p.Status)

	require.NoError(t, svc.Blacklist(ctx, "n1", "fraud"))
	assert.ErrorIs(t, svc.Reactivate(ctx, "n1", "appeal"), pkgerrors.ErrBlacklisted)
	assert.ErrorIs(t, svc.Suspend(ctx, "n1", "whatever"), pkgerrors.ErrBlacklisted)
	// Already blacklisted, so a repeat blacklist is still a no-op.
	require.NoError(t, svc.Blacklist(ctx, "n1", "fraud"))
}

func TestUnregister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, ledger, _ := newRegistry()

	_, err := svc.Register(ctx, participant.Participant{ID: "n1"}, 10, 1e-5)
	require.NoError(t, err)
	require.NoError(t, svc.Unregister(ctx, "n1"))

	_, err = svc.Get(ctx, "n1")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	_, err = ledger.Budget(ctx, "n1")
	assert.Error(t, err)

	assert.ErrorIs(t, svc.Unregister(ctx, "n1"), pkgerrors.ErrNotFound)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	for _, p := range []participant.Participant{
		{ID: "a", Reputation: 0.6},
		{ID: "b", Reputation: 0.8},
		{ID: "c", Reputation: 0.4},
	} {
		_, err := svc.Register(ctx, p, 10, 1e-5)
		require.NoError(t, err)
	}
	require.NoError(t, svc.Suspend(ctx, "c", "flaky"))

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), stats.Total)
	assert.Equal(t, uint64(2), stats.Active)
	assert.Equal(t, uint64(1), stats.Suspended)
	assert.Equal(t, uint64(0), stats.Blacklisted)
	assert.InDelta(t, 0.6, stats.AverageReputation, 1e-9)
}

func TestListPagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newRegistry()

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := svc.Register(ctx, participant.Participant{ID: id}, 10, 1e-5)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), page.Total)
	assert.Len(t, page.Participants, 2)

	rest, err := svc.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, rest.Participants, 2)
}
