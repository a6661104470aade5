package round

import (
	"time"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/errors"
)

// Status is the round state machine: active -> completed | failed. Both
// completed and failed are terminal; a round never resumes.
type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Failed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Config bounds a round before it starts.
type Config struct {
	Algorithm       model.Algorithm `json:"algorithm"`
	MaxParticipants int             `json:"max_participants"`
	// MinReputation gates membership. Zero selects the default threshold.
	MinReputation float64 `json:"min_reputation"`
	// Quorum is the fraction of the frozen list that must report before the
	// soft deadline lets the round close early. 1.0 requires everyone.
	Quorum       float64       `json:"quorum"`
	SoftDeadline time.Duration `json:"soft_deadline"`
	Lifetime     time.Duration `json:"lifetime"`
	Epsilon      float64       `json:"epsilon"`
	Delta        float64       `json:"delta"`
}

func (c Config) Validate() error {
	if c.MaxParticipants <= 0 {
		return errors.ErrInvalidData
	}
	if c.Quorum <= 0 || c.Quorum > 1 {
		return errors.ErrInvalidData
	}
	// Epsilon and Delta are paired: both zero means the round carries no
	// privacy budget, otherwise both must be usable noise parameters so a
	// submission can never be charged for noise that cannot be produced.
	noBudget := c.Epsilon == 0 && c.Delta == 0
	if !noBudget && (c.Epsilon <= 0 || c.Delta <= 0 || c.Delta >= 1) {
		return errors.ErrInvalidData
	}

	return c.Algorithm.Validate()
}

// Round is one bounded aggregation episode. Participants is frozen at start:
// late joiners are rejected, not added.
type Round struct {
	ID            string          `json:"id"`
	Algorithm     model.Algorithm `json:"algorithm"`
	Participants  []string        `json:"participants"`
	TargetVersion uint64          `json:"target_version"`
	Status        Status          `json:"status"`
	Config        Config          `json:"config"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       time.Time       `json:"ended_at,omitempty"`
	// Result carries the aggregated per-layer deltas once completed.
	Result map[string][]float64 `json:"result,omitempty"`
}

// Member reports whether nodeID is in the frozen participant list.
func (r Round) Member(nodeID string) bool {
	for _, id := range r.Participants {
		if id == nodeID {
			return true
		}
	}

	return false
}

type RoundPage struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}
