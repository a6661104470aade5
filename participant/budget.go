package participant

import "time"

// PrivacyBudget tracks a participant's differential-privacy spending.
// UsedEpsilon never exceeds MaxEpsilon: a consume that would cross the
// ceiling is rejected outright, never clamped. MinEpsilon and MinDelta
// record the tightest single guarantee applied so far, not a sum.
type PrivacyBudget struct {
	NodeID      string    `json:"node_id"`
	MaxEpsilon  float64   `json:"max_epsilon"`
	MaxDelta    float64   `json:"max_delta"`
	UsedEpsilon float64   `json:"used_epsilon"`
	UsedDelta   float64   `json:"used_delta"`
	MinEpsilon  float64   `json:"min_epsilon,omitempty"`
	MinDelta    float64   `json:"min_delta,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UsedRatio reports the fraction of the epsilon ceiling already spent.
func (b PrivacyBudget) UsedRatio() float64 {
	if b.MaxEpsilon <= 0 {
		return 1
	}
	r := b.UsedEpsilon / b.MaxEpsilon
	if r > 1 {
		return 1
	}

	return r
}

// CanAfford reports whether eps more spending stays within the ceiling.
func (b PrivacyBudget) CanAfford(eps float64) bool {
	return b.UsedEpsilon+eps <= b.MaxEpsilon
}
