package events

import (
	"context"
	"time"
)

// Kind names a state transition emitted by the core. Every transition
// publishes exactly one typed event so tests can assert exact sequences.
type Kind string

const (
	ParticipantRegistered  Kind = "participant.registered"
	ParticipantSuspended   Kind = "participant.suspended"
	ParticipantBlacklisted Kind = "participant.blacklisted"
	ParticipantReactivated Kind = "participant.reactivated"
	ReputationUpdated      Kind = "participant.reputation-updated"

	RoundStarted   Kind = "round.started"
	RoundCompleted Kind = "round.completed"
	RoundFailed    Kind = "round.failed"

	ModelRegistered  Kind = "model.registered"
	SharingRequested Kind = "sharing.requested"
	SharingCompleted Kind = "sharing.completed"
	SharingExpired   Kind = "sharing.expired"
	BidSubmitted     Kind = "marketplace.bid-submitted"
	BidExpired       Kind = "marketplace.bid-expired"
	EvaluationStored Kind = "evaluation.stored"
)

// Event is the record handed to subscribers on every transition.
type Event struct {
	Kind       Kind           `json:"kind"`
	NodeID     string         `json:"node_id,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers events synchronously with respect to the emitting
// transition. Implementations must not block on remote delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop discards all events. Used where a component runs without wiring.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps events in order for tests.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.Events = append(r.Events, e)

	return nil
}
