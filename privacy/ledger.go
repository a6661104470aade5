package privacy

import (
	"context"
	"sync"
	"time"

	"github.com/aixprotocol/aix/participant"
	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/storage"
)

// Ledger accounts per-node differential-privacy spending. Consume is
// all-or-nothing: the affordability check and the charge happen under one
// lock so no concurrent operation can invalidate the check.
type Ledger interface {
	Open(ctx context.Context, nodeID string, maxEpsilon, maxDelta float64) error
	CanAfford(ctx context.Context, nodeID string, eps float64) (bool, error)
	Consume(ctx context.Context, nodeID string, eps, delta float64) error
	Reset(ctx context.Context, nodeID string, newMaxEpsilon float64) error
	Budget(ctx context.Context, nodeID string) (participant.PrivacyBudget, error)
	Close(ctx context.Context, nodeID string) error
}

type ledger struct {
	mu sync.Mutex

	budgetsDB storage.Storage
}

func NewLedger(budgetsDB storage.Storage) Ledger {
	return &ledger{
		budgetsDB: budgetsDB,
	}
}

func (l *ledger) Open(ctx context.Context, nodeID string, maxEpsilon, maxDelta float64) error {
	if nodeID == "" {
		return errors.ErrEmptyKey
	}
	if maxEpsilon <= 0 || maxDelta <= 0 {
		return errors.ErrInvalidData
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.budgetsDB.Create(ctx, nodeID, participant.PrivacyBudget{
		NodeID:     nodeID,
		MaxEpsilon: maxEpsilon,
		MaxDelta:   maxDelta,
		UpdatedAt:  time.Now(),
	})
}

func (l *ledger) CanAfford(ctx context.Context, nodeID string, eps float64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.budget(ctx, nodeID)
	if err != nil {
		return false, err
	}

	return b.CanAfford(eps), nil
}

func (l *ledger) Consume(ctx context.Context, nodeID string, eps, delta float64) error {
	if eps < 0 || delta < 0 {
		return errors.ErrInvalidData
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.budget(ctx, nodeID)
	if err != nil {
		return err
	}
	if !b.CanAfford(eps) || b.UsedDelta+delta > b.MaxDelta {
		return errors.ErrBudgetExceeded
	}

	b.UsedEpsilon += eps
	b.UsedDelta += delta
	if b.MinEpsilon == 0 || eps < b.MinEpsilon {
		b.MinEpsilon = eps
	}
	if b.MinDelta == 0 || delta < b.MinDelta {
		b.MinDelta = delta
	}
	b.UpdatedAt = time.Now()

	return l.budgetsDB.Update(ctx, nodeID, b)
}

// Reset zeroes spending for a new epoch. A non-positive newMaxEpsilon keeps
// the existing ceiling.
func (l *ledger) Reset(ctx context.Context, nodeID string, newMaxEpsilon float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.budget(ctx, nodeID)
	if err != nil {
		return err
	}

	b.UsedEpsilon = 0
	b.UsedDelta = 0
	b.MinEpsilon = 0
	b.MinDelta = 0
	if newMaxEpsilon > 0 {
		b.MaxEpsilon = newMaxEpsilon
	}
	b.UpdatedAt = time.Now()

	return l.budgetsDB.Update(ctx, nodeID, b)
}

func (l *ledger) Budget(ctx context.Context, nodeID string) (participant.PrivacyBudget, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.budget(ctx, nodeID)
}

func (l *ledger) Close(ctx context.Context, nodeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.budgetsDB.Delete(ctx, nodeID)
}

func (l *ledger) budget(ctx context.Context, nodeID string) (participant.PrivacyBudget, error) {
	data, err := l.budgetsDB.Get(ctx, nodeID)
	if err != nil {
		return participant.PrivacyBudget{}, err
	}
	b, ok := data.(participant.PrivacyBudget)
	if !ok {
		return participant.PrivacyBudget{}, errors.ErrInvalidData
	}

	return b, nil
}
