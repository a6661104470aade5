package participant

import (
	"time"

	"github.com/aixprotocol/aix/pkg/errors"
)

// Status is the lifecycle state of a participant. Blacklisting is terminal:
// a blacklisted participant is never reactivated by reputation alone.
type Status string

const (
	Active      Status = "active"
	Suspended   Status = "suspended"
	Blacklisted Status = "blacklisted"
)

func (s Status) Validate() error {
	switch s {
	case Active, Suspended, Blacklisted:
		return nil
	default:
		return errors.ErrInvalidData
	}
}

// Capability names advertised by participants at registration.
const (
	CapFederatedLearning = "federated-learning"
	CapSecureComputation = "secure-computation"
	CapDistillation      = "knowledge-distillation"
	CapEvaluation        = "model-evaluation"
)

// advancedCapabilities each add a fixed bonus to the reputation blend.
var advancedCapabilities = []string{CapSecureComputation, CapDistillation}

type Participant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Capabilities     []string  `json:"capabilities"`
	Status           Status    `json:"status"`
	Reputation       float64   `json:"reputation"`
	Contributions    uint64    `json:"contributions"`
	LastContribution time.Time `json:"last_contribution"`
	RegisteredAt     time.Time `json:"registered_at"`
}

func (p Participant) HasCapability(name string) bool {
	for _, c := range p.Capabilities {
		if c == name {
			return true
		}
	}

	return false
}

// CapabilityBonus is +0.1 for each advanced capability the participant holds.
func (p Participant) CapabilityBonus() float64 {
	bonus := 0.0
	for _, c := range advancedCapabilities {
		if p.HasCapability(c) {
			bonus += 0.1
		}
	}

	return bonus
}

type ParticipantPage struct {
	Offset       uint64        `json:"offset"`
	Limit        uint64        `json:"limit"`
	Total        uint64        `json:"total"`
	Participants []Participant `json:"participants"`
}
