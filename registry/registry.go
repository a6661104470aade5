package registry

import (
	"context"

	"github.com/aixprotocol/aix/participant"
)

// Service tracks participant identity, capabilities, lifecycle status and
// reputation. Status transitions are side effects of reputation updates:
// below 0.2 an active participant is suspended, below 0.1 blacklisted
// (terminal), and a suspended participant above 0.4 is reactivated.
type Service interface {
	Register(ctx context.Context, p participant.Participant, maxEpsilon, maxDelta float64) (participant.Participant, error)
	Unregister(ctx context.Context, nodeID string) error
	Get(ctx context.Context, nodeID string) (participant.Participant, error)
	List(ctx context.Context, offset, limit uint64) (participant.ParticipantPage, error)

	UpdateReputation(ctx context.Context, nodeID string, delta float64, reason string) (participant.Participant, error)
	RecordContribution(ctx context.Context, nodeID string, reward float64) (participant.Participant, error)

	Eligible(ctx context.Context, minReputation float64) ([]participant.Participant, error)
	TopN(ctx context.Context, n int) ([]participant.Participant, error)

	Suspend(ctx context.Context, nodeID, reason string) error
	Blacklist(ctx context.Context, nodeID, reason string) error
	Reactivate(ctx context.Context, nodeID, reason string) error

	Statistics(ctx context.Context) (Statistics, error)
}

type Statistics struct {
	Total             uint64  `json:"total"`
	Active            uint64  `json:"active"`
	Suspended         uint64  `json:"suspended"`
	Blacklisted       uint64  `json:"blacklisted"`
	AverageReputation float64 `json:"average_reputation"`
}
