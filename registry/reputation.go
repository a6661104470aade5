package registry

import (
	"time"

	"github.com/aixprotocol/aix/participant"
)

const (
	weightBase       = 0.20
	weightRecency    = 0.30
	weightExperience = 0.25
	weightBudget     = 0.25

	recencyWindow   = 30 * 24 * time.Hour
	experienceCap   = 100
	suspendBelow    = 0.2
	blacklistBelow  = 0.1
	reactivateAbove = 0.4
)

// blend recomputes the reputation components from contribution history and
// budget health. Recency decays linearly over a 30-day window, experience is
// the contribution count capped at 100, budget health is the unspent
// fraction, and each advanced capability adds a fixed bonus.
func blend(p participant.Participant, budget participant.PrivacyBudget, now time.Time) float64 {
	recency := 0.0
	if !p.LastContribution.IsZero() {
		age := now.Sub(p.LastContribution)
		if age < 0 {
			age = 0
		}
		if age < recencyWindow {
			recency = 1 - float64(age)/float64(recencyWindow)
		}
	}

	experience := float64(p.Contributions) / experienceCap
	if experience > 1 {
		experience = 1
	}

	health := 1 - budget.UsedRatio()

	score := weightBase +
		weightRecency*recency +
		weightExperience*experience +
		weightBudget*health +
		p.CapabilityBonus()

	return clamp(score)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}
