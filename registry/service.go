package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
)

const defListLimit = 1000

type service struct {
	mu sync.Mutex

	participantsDB storage.Storage
	ledger         privacy.Ledger
	publisher      events.Publisher
	now            func() time.Time
}

func NewService(participantsDB storage.Storage, ledger privacy.Ledger, publisher events.Publisher) Service {
	return &service{
		participantsDB: participantsDB,
		ledger:         ledger,
		publisher:      publisher,
		now:            time.Now,
	}
}

// NewServiceWithClock fixes the clock for deterministic tests.
func NewServiceWithClock(participantsDB storage.Storage, ledger privacy.Ledger, publisher events.Publisher, now func() time.Time) Service {
	return &service{
		participantsDB: participantsDB,
		ledger:         ledger,
		publisher:      publisher,
		now:            now,
	}
}

func (svc *service) Register(ctx context.Context, p participant.Participant, maxEpsilon, maxDelta float64) (participant.Participant, error) {
	if p.ID == "" {
		return participant.Participant{}, errors.ErrMissingField
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	p.Status = participant.Active
	p.RegisteredAt = svc.now()
	if p.Reputation == 0 {
		p.Reputation = 0.5
	}

	if err := svc.participantsDB.Create(ctx, p.ID, p); err != nil {
		return participant.Participant{}, err
	}
	if err := svc.ledger.Open(ctx, p.ID, maxEpsilon, maxDelta); err != nil {
		// Roll back the half-applied registration.
		_ = svc.participantsDB.Delete(ctx, p.ID)

		return participant.Participant{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.ParticipantRegistered,
		NodeID:     p.ID,
		OccurredAt: svc.now(),
	})

	return p, nil
}

func (svc *service) Unregister(ctx context.Context, nodeID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, err := svc.get(ctx, nodeID); err != nil {
		return err
	}
	if err := svc.participantsDB.Delete(ctx, nodeID); err != nil {
		return err
	}

	return svc.ledger.Close(ctx, nodeID)
}

func (svc *service) Get(ctx context.Context, nodeID string) (participant.Participant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.get(ctx, nodeID)
}

func (svc *service) List(ctx context.Context, offset, limit uint64) (participant.ParticipantPage, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	data, total, err := svc.participantsDB.List(ctx, offset, limit)
	if err != nil {
		return participant.ParticipantPage{}, err
	}
	participants := make([]participant.Participant, len(data))
	for i := range data {
		p, ok := data[i].(participant.Participant)
		if !ok {
			return participant.ParticipantPage{}, errors.ErrInvalidData
		}
		participants[i] = p
	}

	return participant.ParticipantPage{
		Offset:       offset,
		Limit:        limit,
		Total:        total,
		Participants: participants,
	}, nil
}

func (svc *service) UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (participant.Participant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.updateReputation(ctx, nodeID, delta, reason)
}

// updateReputation expects the caller to hold svc.mu.
func (svc *service) updateReputation(ctx context.Context, nodeID string, delta float64, reason string) (participant.Participant, error) {
	p, err := svc.get(ctx, nodeID)
	if err != nil {
		return participant.Participant{}, err
	}

	budget, err := svc.ledger.Budget(ctx, nodeID)
	if err != nil {
		return participant.Participant{}, err
	}

	p.Reputation = clamp(blend(p, budget, svc.now()) + delta)

	p, err = svc.applyStatus(ctx, p, reason)
	if err != nil {
		return participant.Participant{}, err
	}

	if err := svc.participantsDB.Update(ctx, nodeID, p); err != nil {
		return participant.Participant{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.ReputationUpdated,
		NodeID:     nodeID,
		Reason:     reason,
		Attributes: map[string]any{"reputation": p.Reputation},
		OccurredAt: svc.now(),
	})

	return p, nil
}

// RecordContribution bumps the contribution counters and applies the fixed
// round reward in one atomic step: the lock is held across both writes so a
// concurrent call never sees the counter without the refreshed score.
func (svc *service) RecordContribution(ctx context.Context, nodeID string, reward float64) (participant.Participant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	p, err := svc.get(ctx, nodeID)
	if err != nil {
		return participant.Participant{}, err
	}

	p.Contributions++
	p.LastContribution = svc.now()
	if err := svc.participantsDB.Update(ctx, nodeID, p); err != nil {
		return participant.Participant{}, err
	}

	return svc.updateReputation(ctx, nodeID, reward, "round contribution")
}

func (svc *service) Eligible(ctx context.Context, minReputation float64) ([]participant.Participant, error) {
	all, err := svc.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]participant.Participant, 0, len(all))
	for _, p := range all {
		if p.Status == participant.Active && p.Reputation > minReputation {
			eligible = append(eligible, p)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Reputation > eligible[j].Reputation
	})

	return eligible, nil
}

func (svc *service) TopN(ctx context.Context, n int) ([]participant.Participant, error) {
	eligible, err := svc.Eligible(ctx, 0)
	if err != nil {
		return nil, err
	}
	if n < len(eligible) {
		eligible = eligible[:n]
	}

	return eligible, nil
}

func (svc *service) Suspend(ctx context.Context, nodeID, reason string) error {
	return svc.setStatus(ctx, nodeID, participant.Suspended, reason)
}

func (svc *service) Blacklist(ctx context.Context, nodeID, reason string) error {
	return svc.setStatus(ctx, nodeID, participant.Blacklisted, reason)
}

func (svc *service) Reactivate(ctx context.Context, nodeID, reason string) error {
	return svc.setStatus(ctx, nodeID, participant.Active, reason)
}

func (svc *service) Statistics(ctx context.Context) (Statistics, error) {
	all, err := svc.snapshot(ctx)
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Total: uint64(len(all))}
	var sum float64
	for _, p := range all {
		sum += p.Reputation
		switch p.Status {
		case participant.Active:
			stats.Active++
		case participant.Suspended:
			stats.Suspended++
		case participant.Blacklisted:
			stats.Blacklisted++
		}
	}
	if len(all) > 0 {
		stats.AverageReputation = sum / float64(len(all))
	}

	return stats, nil
}

func (svc *service) get(ctx context.Context, nodeID string) (participant.Participant, error) {
	data, err := svc.participantsDB.Get(ctx, nodeID)
	if err != nil {
		return participant.Participant{}, err
	}
	p, ok := data.(participant.Participant)
	if !ok {
		return participant.Participant{}, errors.ErrInvalidData
	}

	return p, nil
}

func (svc *service) snapshot(ctx context.Context) ([]participant.Participant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	data, _, err := svc.participantsDB.List(ctx, 0, defListLimit)
	if err != nil {
		return nil, err
	}

	all := make([]participant.Participant, 0, len(data))
	for i := range data {
		p, ok := data[i].(participant.Participant)
		if !ok {
			return nil, errors.ErrInvalidData
		}
		all = append(all, p)
	}

	return all, nil
}

// applyStatus derives the automatic lifecycle transition from the score.
// Blacklisting wins over suspension and is never reversed here.
func (svc *service) applyStatus(ctx context.Context, p participant.Participant, reason string) (participant.Participant, error) {
	if p.Status == participant.Blacklisted {
		return p, nil
	}

	switch {
	case p.Reputation < blacklistBelow:
		p.Status = participant.Blacklisted
		_ = svc.publisher.Publish(ctx, events.Event{
			Kind:       events.ParticipantBlacklisted,
			NodeID:     p.ID,
			Reason:     reason,
			OccurredAt: svc.now(),
		})
	case p.Reputation < suspendBelow && p.Status == participant.Active:
		p.Status = participant.Suspended
		_ = svc.publisher.Publish(ctx, events.Event{
			Kind:       events.ParticipantSuspended,
			NodeID:     p.ID,
			Reason:     reason,
			OccurredAt: svc.now(),
		})
	case p.Reputation > reactivateAbove && p.Status == participant.Suspended:
		p.Status = participant.Active
		_ = svc.publisher.Publish(ctx, events.Event{
			Kind:       events.ParticipantReactivated,
			NodeID:     p.ID,
			Reason:     reason,
			OccurredAt: svc.now(),
		})
	}

	return p, nil
}

func (svc *service) setStatus(ctx context.Context, nodeID string, status participant.Status, reason string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	p, err := svc.get(ctx, nodeID)
	if err != nil {
		return err
	}

	if p.Status == status {
		// Suspension and blacklisting are idempotent.
		return nil
	}
	if p.Status == participant.Blacklisted {
		return errors.ErrBlacklisted
	}

	p.Status = status
	if err := svc.participantsDB.Update(ctx, nodeID, p); err != nil {
		return err
	}

	kind := events.ParticipantReactivated
	switch status {
	case participant.Suspended:
		kind = events.ParticipantSuspended
	case participant.Blacklisted:
		kind = events.ParticipantBlacklisted
	}
	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       kind,
		NodeID:     nodeID,
		Reason:     reason,
		OccurredAt: svc.now(),
	})

	return nil
}
