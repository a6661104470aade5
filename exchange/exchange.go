package exchange

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/aixprotocol/aix/evaluator"
	"github.com/aixprotocol/aix/model"
)

// Service is the intelligence-exchange surface: model registry, sharing
// lifecycle, cross-model aggregation, marketplace bidding, evaluation and
// per-node privacy-policy enforcement.
type Service interface {
	RegisterModel(ctx context.Context, summary model.Summary) (model.Summary, error)
	GetModel(ctx context.Context, modelID string) (model.Summary, error)
	ListModels(ctx context.Context, offset, limit uint64) (model.SummaryPage, error)

	RequestSharing(ctx context.Context, req model.SharingRequest) (model.SharingRequest, error)
	HandleSharingRequest(ctx context.Context, req model.SharingRequest) (SharingResponse, error)
	CompleteSharing(ctx context.Context, requestID string) error

	RequestAggregation(ctx context.Context, req model.AggregationRequest) (model.Summary, error)

	SubmitMarketplaceBid(ctx context.Context, bid model.MarketplaceBid) (model.MarketplaceBid, error)
	ListBids(ctx context.Context, modelID string) ([]model.MarketplaceBid, error)

	RequestEvaluation(ctx context.Context, req model.EvaluationRequest) (model.EvaluationResult, error)
	SubmitEvaluationResult(ctx context.Context, result model.EvaluationResult) error
	ListEvaluations(ctx context.Context, modelID string) ([]model.EvaluationResult, error)

	SetPrivacyPolicy(ctx context.Context, policy model.PrivacyPolicy) error
	GetPrivacyPolicy(ctx context.Context, nodeID string) (model.PrivacyPolicy, error)

	CheckCompatibility(ctx context.Context, version model.Version, targetFramework string) bool

	// Cleanup purges expired sharing requests and marketplace bids. It only
	// removes entries already past their terminal condition, so it is safe
	// alongside request handling.
	Cleanup(ctx context.Context) (int, int, error)
	RunCleanup(ctx context.Context, interval time.Duration) error

	Statistics(ctx context.Context) (Statistics, error)
}

// SharingResponse is the typed reply to a handled sharing request. Exactly
// one payload field is set, matching the request's sharing type.
type SharingResponse struct {
	RequestID   string            `json:"request_id"`
	SharingType model.SharingType `json:"sharing_type"`
	Summary     *model.Summary    `json:"summary,omitempty"`
	// Payload carries the encoded summary when compression kicked in, the
	// CBOR gradient envelope, or the distillation descriptor.
	Payload    []byte `json:"payload,omitempty"`
	Compressed bool   `json:"compressed,omitempty"`
}

type Statistics struct {
	Models          uint64 `json:"models"`
	ActiveRequests  uint64 `json:"active_requests"`
	BidsOutstanding uint64 `json:"bids_outstanding"`
	Evaluations     uint64 `json:"evaluations"`
}

// Config bounds the exchange's resource usage and identifies the local node.
type Config struct {
	NodeID               string
	MaxConcurrentSharing int
	MarketplaceEnabled   bool
	RequestTTL           time.Duration
	BidTTL               time.Duration
	// CompressionThreshold is the encoded-summary size above which the
	// summary responder compresses the payload.
	CompressionThreshold int
	// DatasetFor supplies the evaluation dataset per model. The default
	// generates a deterministic synthetic set.
	DatasetFor func(modelID string) (evaluator.Dataset, error)
}

const (
	defMaxConcurrentSharing = 10
	defRequestTTL           = 30 * time.Minute
	defBidTTL               = time.Hour
	defCompressionThreshold = 4 * 1024
)

func (c Config) withDefaults() Config {
	if c.MaxConcurrentSharing <= 0 {
		c.MaxConcurrentSharing = defMaxConcurrentSharing
	}
	if c.RequestTTL <= 0 {
		c.RequestTTL = defRequestTTL
	}
	if c.BidTTL <= 0 {
		c.BidTTL = defBidTTL
	}
	if c.CompressionThreshold <= 0 {
		c.CompressionThreshold = defCompressionThreshold
	}
	if c.DatasetFor == nil {
		c.DatasetFor = syntheticDataset
	}

	return c
}

// syntheticDataset derives a reproducible labeled set from the model id, so
// evaluation works out of the box on nodes without a local dataset.
func syntheticDataset(modelID string) (evaluator.Dataset, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(modelID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	const n = 100
	samples := make([][]float64, n)
	labels := make([]float64, n)
	for i := range samples {
		sample := make([]float64, 8)
		for j := range sample {
			sample[j] = rng.Float64()
		}
		samples[i] = sample
		if rng.Float64() < 0.5 {
			labels[i] = 1
		}
	}

	return evaluator.Dataset{Samples: samples, Labels: labels}, nil
}
