package model

import (
	"time"

	"github.com/aixprotocol/aix/pkg/errors"
)

// SharingType is the closed set of payload kinds a sharing request can ask
// for. New kinds must be added here and handled exhaustively by the exchange.
type SharingType string

const (
	ShareModelSummary SharingType = "model-summary"
	ShareGradients    SharingType = "gradients"
	ShareDistillation SharingType = "knowledge-distillation"
	SharePerformance  SharingType = "performance-metrics"
)

func (t SharingType) Validate() error {
	switch t {
	case ShareModelSummary, ShareGradients, ShareDistillation, SharePerformance:
		return nil
	default:
		return errors.ErrInvalidData
	}
}

// PrivacyLevel orders sharing strictness: public < restricted < private <
// confidential. A request complies with a rule only if its declared level is
// at least as strict as the rule's.
type PrivacyLevel string

const (
	LevelPublic       PrivacyLevel = "public"
	LevelRestricted   PrivacyLevel = "restricted"
	LevelPrivate      PrivacyLevel = "private"
	LevelConfidential PrivacyLevel = "confidential"
)

var levelRank = map[PrivacyLevel]int{
	LevelPublic:       0,
	LevelRestricted:   1,
	LevelPrivate:      2,
	LevelConfidential: 3,
}

func (l PrivacyLevel) Validate() error {
	if _, ok := levelRank[l]; !ok {
		return errors.ErrInvalidData
	}

	return nil
}

// AtLeast reports whether l is as strict as other or stricter.
func (l PrivacyLevel) AtLeast(other PrivacyLevel) bool {
	return levelRank[l] >= levelRank[other]
}

// Algorithm selects a cross-model aggregation strategy.
type Algorithm string

const (
	FederatedAveraging Algorithm = "federated-averaging"
	EnsembleAveraging  Algorithm = "ensemble"
	StackedGeneral     Algorithm = "stacking"
	MetaLearning       Algorithm = "meta-learning"
)

func (a Algorithm) Validate() error {
	switch a {
	case FederatedAveraging, EnsembleAveraging, StackedGeneral, MetaLearning:
		return nil
	default:
		return errors.ErrInvalidData
	}
}

// SharingRequest asks another node for a model payload. It lives in the
// exchange's active-request table until completed or past ExpiresAt.
type SharingRequest struct {
	ID           string       `json:"id"`
	RequesterID  string       `json:"requester_id"`
	ModelID      string       `json:"model_id"`
	SharingType  SharingType  `json:"sharing_type"`
	Purpose      string       `json:"purpose,omitempty"`
	PrivacyLevel PrivacyLevel `json:"privacy_level"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

func (r SharingRequest) Validate() error {
	if r.RequesterID == "" || r.ModelID == "" {
		return errors.ErrMissingField
	}
	if err := r.SharingType.Validate(); err != nil {
		return err
	}

	return r.PrivacyLevel.Validate()
}

func (r SharingRequest) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// AggregationRequest asks the exchange to combine registered models.
type AggregationRequest struct {
	ModelIDs        []string  `json:"model_ids"`
	Algorithm       Algorithm `json:"algorithm"`
	Weights         []float64 `json:"weights,omitempty"`
	MinParticipants int       `json:"min_participants"`
}

func (r AggregationRequest) Validate() error {
	if len(r.ModelIDs) == 0 {
		return errors.ErrMissingField
	}
	if r.MinParticipants <= 0 {
		return errors.ErrInvalidData
	}

	return r.Algorithm.Validate()
}

// MarketplaceBid is a node's offer on a registered model. Bids accumulate
// per model until expiry-based cleanup removes them.
type MarketplaceBid struct {
	ID        string    `json:"id"`
	BidderID  string    `json:"bidder_id"`
	ModelID   string    `json:"model_id"`
	Amount    float64   `json:"amount,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (b MarketplaceBid) Validate() error {
	if b.BidderID == "" || b.ModelID == "" {
		return errors.ErrMissingField
	}

	return nil
}

func (b MarketplaceBid) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}

// PolicyRule gates one sharing type: who may receive it and how strict the
// request must declare itself. A "*" recipient admits any requester.
type PolicyRule struct {
	AllowedRecipients []string     `json:"allowed_recipients"`
	Level             PrivacyLevel `json:"level"`
}

func (r PolicyRule) Admits(requesterID string) bool {
	for _, id := range r.AllowedRecipients {
		if id == "*" || id == requesterID {
			return true
		}
	}

	return false
}

// PrivacyPolicy is a node's per-sharing-type rule set. Absence of a rule for
// a type denies it.
type PrivacyPolicy struct {
	NodeID    string                     `json:"node_id"`
	Rules     map[SharingType]PolicyRule `json:"rules"`
	UpdatedAt time.Time                  `json:"updated_at"`
}
