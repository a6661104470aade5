package coordinator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
	"github.com/aixprotocol/aix/round"
	"github.com/aixprotocol/aix/secagg"
	"github.com/google/uuid"
)

// reputationReward is the fixed nudge applied to every reporter of a
// completed round.
const reputationReward = 0.05

// defMinReputation gates round membership when the config leaves the
// threshold unset.
const defMinReputation = 0.5

type submission struct {
	layers map[string]*secagg.Ciphertext
	shapes map[string]int
	weight float64
}

// roundState holds the in-flight ciphertexts and the round's key pair. It
// never leaves the coordinator; only the decrypted aggregate is published.
type roundState struct {
	mu sync.Mutex

	keys        secagg.KeyPair
	submissions map[string]submission
}

type service struct {
	mu sync.Mutex

	roundsDB  storage.Storage
	registry  registry.Service
	ledger    privacy.Ledger
	noise     *privacy.NoiseEngine
	scheme    secagg.Scheme
	publisher events.Publisher
	now       func() time.Time

	states        map[string]*roundState
	globalVersion atomic.Uint64
}

func NewService(roundsDB storage.Storage, reg registry.Service, ledger privacy.Ledger, noise *privacy.NoiseEngine, scheme secagg.Scheme, publisher events.Publisher) Service {
	return &service{
		roundsDB:  roundsDB,
		registry:  reg,
		ledger:    ledger,
		noise:     noise,
		scheme:    scheme,
		publisher: publisher,
		now:       time.Now,
		states:    make(map[string]*roundState),
	}
}

// NewServiceWithClock fixes the clock for deterministic tests.
func NewServiceWithClock(roundsDB storage.Storage, reg registry.Service, ledger privacy.Ledger, noise *privacy.NoiseEngine, scheme secagg.Scheme, publisher events.Publisher, now func() time.Time) Service {
	svc := NewService(roundsDB, reg, ledger, noise, scheme, publisher).(*service)
	svc.now = now

	return svc
}

func (svc *service) StartRound(ctx context.Context, cfg round.Config) (round.Round, error) {
	if err := cfg.Validate(); err != nil {
		return round.Round{}, err
	}

	minReputation := cfg.MinReputation
	if minReputation <= 0 {
		minReputation = defMinReputation
	}
	eligible, err := svc.registry.Eligible(ctx, minReputation)
	if err != nil {
		return round.Round{}, err
	}
	if len(eligible) == 0 {
		return round.Round{}, errors.ErrNotFound
	}
	if len(eligible) > cfg.MaxParticipants {
		eligible = eligible[:cfg.MaxParticipants]
	}

	ids := make([]string, len(eligible))
	for i, p := range eligible {
		ids[i] = p.ID
	}

	keys, err := svc.scheme.GenerateKeyPair()
	if err != nil {
		return round.Round{}, err
	}

	r := round.Round{
		ID:            uuid.NewString(),
		Algorithm:     cfg.Algorithm,
		Participants:  ids,
		TargetVersion: svc.globalVersion.Load() + 1,
		Status:        round.Active,
		Config:        cfg,
		StartedAt:     svc.now(),
	}

	svc.mu.Lock()
	svc.states[r.ID] = &roundState{
		keys:        keys,
		submissions: make(map[string]submission),
	}
	svc.mu.Unlock()

	if err := svc.roundsDB.Create(ctx, r.ID, r); err != nil {
		svc.mu.Lock()
		delete(svc.states, r.ID)
		svc.mu.Unlock()

		return round.Round{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.RoundStarted,
		EntityID:   r.ID,
		Attributes: map[string]any{"participants": len(ids)},
		OccurredAt: svc.now(),
	})

	return r, nil
}

func (svc *service) GetRound(ctx context.Context, roundID string) (round.Round, error) {
	data, err := svc.roundsDB.Get(ctx, roundID)
	if err != nil {
		return round.Round{}, err
	}
	r, ok := data.(round.Round)
	if !ok {
		return round.Round{}, errors.ErrInvalidData
	}

	return r, nil
}

func (svc *service) ListRounds(ctx context.Context, offset, limit uint64) (round.RoundPage, error) {
	data, total, err := svc.roundsDB.List(ctx, offset, limit)
	if err != nil {
		return round.RoundPage{}, err
	}
	rounds := make([]round.Round, len(data))
	for i := range data {
		r, ok := data[i].(round.Round)
		if !ok {
			return round.RoundPage{}, errors.ErrInvalidData
		}
		rounds[i] = r
	}

	return round.RoundPage{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

func (svc *service) SubmitModelUpdate(ctx context.Context, update model.Update) (round.Round, error) {
	if err := update.Validate(); err != nil {
		return round.Round{}, err
	}

	return svc.submit(ctx, update.RoundID, update.NodeID, update.Deltas, update.NumSamples, update.NoiseScale)
}

func (svc *service) SubmitGradientUpdate(ctx context.Context, update model.GradientUpdate) (round.Round, error) {
	if err := update.Validate(); err != nil {
		return round.Round{}, err
	}

	return svc.submit(ctx, update.RoundID, update.NodeID, update.Gradients, update.NumSamples, update.NoiseScale)
}

// submit serializes all handling for one round behind its state lock: the
// membership and duplicate checks, the budget charge, noise, encryption and
// the completion check cannot interleave with another submission.
func (svc *service) submit(ctx context.Context, roundID, nodeID string, layers map[string][]float64, numSamples int, noiseScale float64) (round.Round, error) {
	state, err := svc.state(roundID)
	if err != nil {
		return round.Round{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	r, err := svc.GetRound(ctx, roundID)
	if err != nil {
		return round.Round{}, err
	}
	if r.Status != round.Active {
		return round.Round{}, errors.ErrRoundClosed
	}
	if !r.Member(nodeID) {
		return round.Round{}, errors.ErrNotMember
	}
	if _, ok := state.submissions[nodeID]; ok {
		return round.Round{}, errors.ErrAlreadySubmitted
	}

	if noiseScale > 0 {
		noised, err := svc.noise.AddNoiseMap(layers, r.Config.Epsilon, r.Config.Delta)
		if err != nil {
			return round.Round{}, err
		}
		// Charge only after the noise went through: a rejected submission
		// must leave the budget untouched, and an update whose epsilon
		// cannot be afforded is refused before it is recorded.
		if err := svc.ledger.Consume(ctx, nodeID, r.Config.Epsilon, r.Config.Delta); err != nil {
			return round.Round{}, err
		}
		layers = noised
	}

	sub := submission{
		layers: make(map[string]*secagg.Ciphertext, len(layers)),
		shapes: make(map[string]int, len(layers)),
		weight: float64(max(numSamples, 1)),
	}
	for name, vec := range layers {
		ct, err := svc.scheme.Encrypt(vec, state.keys.Public)
		if err != nil {
			return round.Round{}, err
		}
		sub.layers[name] = ct
		sub.shapes[name] = len(vec)
	}
	state.submissions[nodeID] = sub

	return svc.checkCompletion(ctx, r, state)
}

// checkCompletion runs under the round's state lock after every accepted
// submission.
func (svc *service) checkCompletion(ctx context.Context, r round.Round, state *roundState) (round.Round, error) {
	reported := len(state.submissions)
	total := len(r.Participants)

	allReported := reported == total
	quorumMet := float64(reported) >= r.Config.Quorum*float64(total)
	pastSoftDeadline := r.Config.SoftDeadline > 0 && svc.now().After(r.StartedAt.Add(r.Config.SoftDeadline))

	if !allReported && !(quorumMet && pastSoftDeadline) {
		return r, nil
	}

	return svc.complete(ctx, r, state)
}

func (svc *service) complete(ctx context.Context, r round.Round, state *roundState) (round.Round, error) {
	result, err := svc.combine(state)
	if err != nil {
		// Numeric failure must not leave the round ambiguous.
		return svc.fail(ctx, r, "aggregation failed")
	}

	r.Status = round.Completed
	r.EndedAt = svc.now()
	r.Result = result
	if err := svc.roundsDB.Update(ctx, r.ID, r); err != nil {
		return round.Round{}, err
	}

	version := svc.globalVersion.Add(1)

	for nodeID := range state.submissions {
		if _, err := svc.registry.RecordContribution(ctx, nodeID, reputationReward); err != nil {
			// Reputation bookkeeping failures are isolated from the round.
			continue
		}
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:     events.RoundCompleted,
		EntityID: r.ID,
		Attributes: map[string]any{
			"version":   version,
			"reporters": len(state.submissions),
		},
		OccurredAt: svc.now(),
	})

	svc.dropState(r.ID)

	return r, nil
}

// combine folds the ciphertexts per layer through the secure-aggregation
// scheme: scale by normalized dataset weight, add, then decrypt the single
// aggregate. Layers missing from some submissions are normalized by the
// weights that contributed.
func (svc *service) combine(state *roundState) (map[string][]float64, error) {
	if len(state.submissions) == 0 {
		return nil, errors.ErrNotFound
	}

	layerNames := make(map[string]int)
	for _, sub := range state.submissions {
		for name, size := range sub.shapes {
			if prev, ok := layerNames[name]; ok && prev != size {
				return nil, errors.ErrInvalidData
			}
			layerNames[name] = size
		}
	}

	result := make(map[string][]float64, len(layerNames))
	for name := range layerNames {
		var (
			cts     []*secagg.Ciphertext
			weights []float64
			wsum    float64
		)
		for _, sub := range state.submissions {
			ct, ok := sub.layers[name]
			if !ok {
				continue
			}
			cts = append(cts, ct)
			weights = append(weights, sub.weight)
			wsum += sub.weight
		}
		for i := range weights {
			weights[i] /= wsum
		}

		combined, err := svc.scheme.WeightedSum(cts, weights)
		if err != nil {
			return nil, err
		}
		vec, err := svc.scheme.Decrypt(combined, state.keys.Private)
		if err != nil {
			return nil, err
		}
		result[name] = vec
	}

	return result, nil
}

func (svc *service) ExpireRounds(ctx context.Context) (int, error) {
	page, err := svc.ListRounds(ctx, 0, 1000)
	if err != nil {
		return 0, err
	}

	expired := 0
	now := svc.now()
	for _, r := range page.Rounds {
		if r.Status != round.Active || r.Config.Lifetime <= 0 {
			continue
		}
		if now.Before(r.StartedAt.Add(r.Config.Lifetime)) {
			continue
		}

		state, err := svc.state(r.ID)
		if err != nil {
			continue
		}
		state.mu.Lock()
		// Re-read under the lock; a submission may have completed it.
		current, err := svc.GetRound(ctx, r.ID)
		if err == nil && current.Status == round.Active {
			if _, err := svc.fail(ctx, current, "lifetime exceeded"); err == nil {
				expired++
			}
		}
		state.mu.Unlock()
	}

	return expired, nil
}

// fail marks the round terminal. Failed rounds never produce a model and
// never touch reputation.
func (svc *service) fail(ctx context.Context, r round.Round, reason string) (round.Round, error) {
	r.Status = round.Failed
	r.EndedAt = svc.now()
	if err := svc.roundsDB.Update(ctx, r.ID, r); err != nil {
		return round.Round{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.RoundFailed,
		EntityID:   r.ID,
		Reason:     reason,
		OccurredAt: svc.now(),
	})

	svc.dropState(r.ID)

	return r, nil
}

func (svc *service) GlobalVersion() uint64 {
	return svc.globalVersion.Load()
}

func (svc *service) state(roundID string) (*roundState, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	state, ok := svc.states[roundID]
	if !ok {
		return nil, errors.ErrRoundClosed
	}

	return state, nil
}

func (svc *service) dropState(roundID string) {
	svc.mu.Lock()
	delete(svc.states, roundID)
	svc.mu.Unlock()
}
