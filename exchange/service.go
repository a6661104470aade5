package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aixprotocol/aix/aggregator"
	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/evaluator"
	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"
)

type service struct {
	mu sync.Mutex

	cfg Config

	modelsDB      storage.Storage
	requestsDB    storage.Storage
	bidsDB        storage.Storage
	evaluationsDB storage.Storage
	policiesDB    storage.Storage

	aggregator  aggregator.Aggregator
	evaluator   *evaluator.Evaluator
	coordinator coordinator.Service
	publisher   events.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(cfg Config, modelsDB, requestsDB, bidsDB, evaluationsDB, policiesDB storage.Storage, agg aggregator.Aggregator, eval *evaluator.Evaluator, coord coordinator.Service, publisher events.Publisher, logger *slog.Logger) Service {
	return &service{
		cfg:           cfg.withDefaults(),
		modelsDB:      modelsDB,
		requestsDB:    requestsDB,
		bidsDB:        bidsDB,
		evaluationsDB: evaluationsDB,
		policiesDB:    policiesDB,
		aggregator:    agg,
		evaluator:     eval,
		coordinator:   coord,
		publisher:     publisher,
		logger:        logger,
		now:           time.Now,
	}
}

func (svc *service) RegisterModel(ctx context.Context, summary model.Summary) (model.Summary, error) {
	if err := summary.Validate(); err != nil {
		return model.Summary{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := svc.now()
	summary.Metadata.UpdatedAt = now

	// Registration is an idempotent upsert keyed by model id.
	if _, err := svc.modelsDB.Get(ctx, summary.ID); err == nil {
		if err := svc.modelsDB.Update(ctx, summary.ID, summary); err != nil {
			return model.Summary{}, err
		}
	} else {
		summary.Metadata.CreatedAt = now
		if err := svc.modelsDB.Create(ctx, summary.ID, summary); err != nil {
			return model.Summary{}, err
		}
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.ModelRegistered,
		EntityID:   summary.ID,
		OccurredAt: now,
	})

	return summary, nil
}

func (svc *service) GetModel(ctx context.Context, modelID string) (model.Summary, error) {
	data, err := svc.modelsDB.Get(ctx, modelID)
	if err != nil {
		return model.Summary{}, err
	}
	m, ok := data.(model.Summary)
	if !ok {
		return model.Summary{}, errors.ErrInvalidData
	}

	return m, nil
}

func (svc *service) ListModels(ctx context.Context, offset, limit uint64) (model.SummaryPage, error) {
	data, total, err := svc.modelsDB.List(ctx, offset, limit)
	if err != nil {
		return model.SummaryPage{}, err
	}
	summaries := make([]model.Summary, len(data))
	for i := range data {
		m, ok := data[i].(model.Summary)
		if !ok {
			return model.SummaryPage{}, errors.ErrInvalidData
		}
		summaries[i] = m
	}

	return model.SummaryPage{
		Offset:    offset,
		Limit:     limit,
		Total:     total,
		Summaries: summaries,
	}, nil
}

// RequestSharing records an outbound request. The requester's own policy is
// enforced here; the responder enforces its policy independently in
// HandleSharingRequest.
func (svc *service) RequestSharing(ctx context.Context, req model.SharingRequest) (model.SharingRequest, error) {
	if err := req.Validate(); err != nil {
		return model.SharingRequest{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	active, err := svc.activeRequestCount(ctx, req.RequesterID)
	if err != nil {
		return model.SharingRequest{}, err
	}
	if active >= svc.cfg.MaxConcurrentSharing {
		return model.SharingRequest{}, errors.ErrExhausted
	}

	if err := svc.checkPolicy(ctx, req.RequesterID, req); err != nil {
		return model.SharingRequest{}, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.CreatedAt = svc.now()
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = req.CreatedAt.Add(svc.cfg.RequestTTL)
	}

	if err := svc.requestsDB.Create(ctx, req.ID, req); err != nil {
		return model.SharingRequest{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.SharingRequested,
		NodeID:     req.RequesterID,
		EntityID:   req.ID,
		OccurredAt: svc.now(),
	})

	return req, nil
}

// HandleSharingRequest serves an inbound request against the local node's
// policy. Policy enforcement is asymmetric: this check is independent of
// whatever the requester's side allowed.
func (svc *service) HandleSharingRequest(ctx context.Context, req model.SharingRequest) (SharingResponse, error) {
	if err := req.Validate(); err != nil {
		return SharingResponse{}, err
	}
	if req.Expired(svc.now()) {
		return SharingResponse{}, errors.ErrExpired
	}

	if err := svc.checkPolicy(ctx, svc.cfg.NodeID, req); err != nil {
		// Policy details stay local; the remote caller sees a bare denial.
		svc.logger.Warn("sharing request denied",
			slog.String("requester", req.RequesterID),
			slog.String("sharing_type", string(req.SharingType)),
			slog.Any("error", err),
		)

		return SharingResponse{}, errors.ErrPolicyDenied
	}

	switch req.SharingType {
	case model.ShareModelSummary:
		return svc.respondSummary(ctx, req)
	case model.ShareGradients:
		return svc.respondGradients(ctx, req)
	case model.ShareDistillation:
		return svc.respondDistillation(ctx, req)
	case model.SharePerformance:
		return svc.respondPerformance(ctx, req)
	default:
		return SharingResponse{}, errors.ErrInvalidData
	}
}

func (svc *service) CompleteSharing(ctx context.Context, requestID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, err := svc.requestsDB.Get(ctx, requestID); err != nil {
		return err
	}
	if err := svc.requestsDB.Delete(ctx, requestID); err != nil {
		return err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.SharingCompleted,
		EntityID:   requestID,
		OccurredAt: svc.now(),
	})

	return nil
}

func (svc *service) RequestAggregation(ctx context.Context, req model.AggregationRequest) (model.Summary, error) {
	if err := req.Validate(); err != nil {
		return model.Summary{}, err
	}
	if len(req.ModelIDs) < req.MinParticipants {
		return model.Summary{}, errors.ErrInvalidData
	}

	models := make([]model.Summary, 0, len(req.ModelIDs))
	for _, id := range req.ModelIDs {
		m, err := svc.GetModel(ctx, id)
		if err != nil {
			return model.Summary{}, err
		}
		models = append(models, m)
	}

	return svc.aggregator.Aggregate(models, req.Algorithm, req.Weights)
}

func (svc *service) SubmitMarketplaceBid(ctx context.Context, bid model.MarketplaceBid) (model.MarketplaceBid, error) {
	if !svc.cfg.MarketplaceEnabled {
		return model.MarketplaceBid{}, errors.ErrMarketplaceDisabled
	}
	if err := bid.Validate(); err != nil {
		return model.MarketplaceBid{}, err
	}
	if _, err := svc.GetModel(ctx, bid.ModelID); err != nil {
		return model.MarketplaceBid{}, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if bid.ID == "" {
		bid.ID = uuid.NewString()
	}
	bid.CreatedAt = svc.now()
	if bid.ExpiresAt.IsZero() {
		bid.ExpiresAt = bid.CreatedAt.Add(svc.cfg.BidTTL)
	}

	bids, _ := svc.bids(ctx, bid.ModelID)
	bids = append(bids, bid)
	if err := svc.storeBids(ctx, bid.ModelID, bids); err != nil {
		return model.MarketplaceBid{}, err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.BidSubmitted,
		NodeID:     bid.BidderID,
		EntityID:   bid.ID,
		OccurredAt: svc.now(),
	})

	return bid, nil
}

func (svc *service) ListBids(ctx context.Context, modelID string) ([]model.MarketplaceBid, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	return svc.bids(ctx, modelID)
}

func (svc *service) RequestEvaluation(ctx context.Context, req model.EvaluationRequest) (model.EvaluationResult, error) {
	if err := req.Validate(); err != nil {
		return model.EvaluationResult{}, err
	}

	artifact, err := svc.GetModel(ctx, req.ModelID)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	dataset, err := svc.cfg.DatasetFor(req.ModelID)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	result, err := svc.evaluator.Evaluate(ctx, req, artifact, dataset)
	if err != nil {
		return model.EvaluationResult{}, err
	}

	if err := svc.SubmitEvaluationResult(ctx, result); err != nil {
		return model.EvaluationResult{}, err
	}

	return result, nil
}

func (svc *service) SubmitEvaluationResult(ctx context.Context, result model.EvaluationResult) error {
	if err := result.Validate(); err != nil {
		return err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	if err := svc.evaluationsDB.Create(ctx, result.ID, result); err != nil {
		return err
	}

	_ = svc.publisher.Publish(ctx, events.Event{
		Kind:       events.EvaluationStored,
		EntityID:   result.ID,
		OccurredAt: svc.now(),
	})

	return nil
}

func (svc *service) ListEvaluations(ctx context.Context, modelID string) ([]model.EvaluationResult, error) {
	data, _, err := svc.evaluationsDB.List(ctx, 0, 1000)
	if err != nil {
		return nil, err
	}

	results := make([]model.EvaluationResult, 0)
	for i := range data {
		r, ok := data[i].(model.EvaluationResult)
		if !ok {
			continue
		}
		if r.ModelID == modelID {
			results = append(results, r)
		}
	}

	return results, nil
}

// SetPrivacyPolicy replaces the stored policy wholesale; there is no
// partial merge.
func (svc *service) SetPrivacyPolicy(ctx context.Context, policy model.PrivacyPolicy) error {
	if policy.NodeID == "" {
		return errors.ErrMissingField
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	policy.UpdatedAt = svc.now()
	if _, err := svc.policiesDB.Get(ctx, policy.NodeID); err == nil {
		return svc.policiesDB.Update(ctx, policy.NodeID, policy)
	}

	return svc.policiesDB.Create(ctx, policy.NodeID, policy)
}

func (svc *service) GetPrivacyPolicy(ctx context.Context, nodeID string) (model.PrivacyPolicy, error) {
	data, err := svc.policiesDB.Get(ctx, nodeID)
	if err != nil {
		return model.PrivacyPolicy{}, err
	}
	p, ok := data.(model.PrivacyPolicy)
	if !ok {
		return model.PrivacyPolicy{}, errors.ErrInvalidData
	}

	return p, nil
}

// CheckCompatibility is false for breaking versions, and false when a
// target framework is named that the version does not list.
func (svc *service) CheckCompatibility(_ context.Context, version model.Version, targetFramework string) bool {
	if version.Breaking {
		return false
	}
	if targetFramework == "" {
		return true
	}
	for _, f := range version.SupportedFrameworks {
		if f == targetFramework {
			return true
		}
	}

	return false
}

func (svc *service) Statistics(ctx context.Context) (Statistics, error) {
	_, models, err := svc.modelsDB.List(ctx, 0, 1)
	if err != nil {
		return Statistics{}, err
	}
	_, requests, err := svc.requestsDB.List(ctx, 0, 1)
	if err != nil {
		return Statistics{}, err
	}
	_, evaluations, err := svc.evaluationsDB.List(ctx, 0, 1)
	if err != nil {
		return Statistics{}, err
	}

	bidData, _, err := svc.bidsDB.List(ctx, 0, 1000)
	if err != nil {
		return Statistics{}, err
	}
	var bids uint64
	for _, d := range bidData {
		if list, ok := d.([]model.MarketplaceBid); ok {
			bids += uint64(len(list))
		}
	}

	return Statistics{
		Models:          models,
		ActiveRequests:  requests,
		BidsOutstanding: bids,
		Evaluations:     evaluations,
	}, nil
}

func (svc *service) respondSummary(ctx context.Context, req model.SharingRequest) (SharingResponse, error) {
	m, err := svc.GetModel(ctx, req.ModelID)
	if err != nil {
		return SharingResponse{}, err
	}

	encoded, err := json.Marshal(m)
	if err != nil {
		return SharingResponse{}, err
	}

	resp := SharingResponse{
		RequestID:   req.ID,
		SharingType: req.SharingType,
	}

	if len(encoded) >= svc.cfg.CompressionThreshold {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return SharingResponse{}, err
		}
		if _, err := w.Write(encoded); err != nil {
			return SharingResponse{}, err
		}
		if err := w.Close(); err != nil {
			return SharingResponse{}, err
		}
		resp.Payload = buf.Bytes()
		resp.Compressed = true

		return resp, nil
	}

	resp.Summary = &m

	return resp, nil
}

// respondGradients hands gradient sharing off toward the coordinator: the
// reply points the requester at the round machinery instead of shipping raw
// gradients over the exchange.
func (svc *service) respondGradients(ctx context.Context, req model.SharingRequest) (SharingResponse, error) {
	if _, err := svc.GetModel(ctx, req.ModelID); err != nil {
		return SharingResponse{}, err
	}

	envelope := model.Update{
		RoundID: req.ID,
		NodeID:  svc.cfg.NodeID,
		Version: strconv.FormatUint(svc.coordinator.GlobalVersion(), 10),
	}
	payload, err := model.MarshalUpdateCBOR(envelope)
	if err != nil {
		return SharingResponse{}, err
	}

	return SharingResponse{
		RequestID:   req.ID,
		SharingType: req.SharingType,
		Payload:     payload,
	}, nil
}

// respondDistillation ships a weight-free teacher summary: architecture,
// shapes and the performance report, enough to train a student against.
func (svc *service) respondDistillation(ctx context.Context, req model.SharingRequest) (SharingResponse, error) {
	m, err := svc.GetModel(ctx, req.ModelID)
	if err != nil {
		return SharingResponse{}, err
	}

	distilled := m
	distilled.Layers = make([]model.LayerSpec, len(m.Layers))
	for i, l := range m.Layers {
		distilled.Layers[i] = model.LayerSpec{
			Name:  l.Name,
			Type:  l.Type,
			Shape: l.Shape,
		}
	}

	return SharingResponse{
		RequestID:   req.ID,
		SharingType: req.SharingType,
		Summary:     &distilled,
	}, nil
}

func (svc *service) respondPerformance(ctx context.Context, req model.SharingRequest) (SharingResponse, error) {
	m, err := svc.GetModel(ctx, req.ModelID)
	if err != nil {
		return SharingResponse{}, err
	}

	perf := model.Summary{
		ID:          m.ID,
		Version:     m.Version,
		Performance: m.Performance,
	}

	return SharingResponse{
		RequestID:   req.ID,
		SharingType: req.SharingType,
		Summary:     &perf,
	}, nil
}

func (svc *service) activeRequestCount(ctx context.Context, requesterID string) (int, error) {
	data, _, err := svc.requestsDB.List(ctx, 0, 1000)
	if err != nil {
		return 0, err
	}

	now := svc.now()
	count := 0
	for _, d := range data {
		r, ok := d.(model.SharingRequest)
		if !ok {
			continue
		}
		if r.RequesterID == requesterID && !r.Expired(now) {
			count++
		}
	}

	return count, nil
}

func (svc *service) bids(ctx context.Context, modelID string) ([]model.MarketplaceBid, error) {
	data, err := svc.bidsDB.Get(ctx, modelID)
	if err != nil {
		return nil, nil
	}
	bids, ok := data.([]model.MarketplaceBid)
	if !ok {
		return nil, errors.ErrInvalidData
	}

	return bids, nil
}

func (svc *service) storeBids(ctx context.Context, modelID string, bids []model.MarketplaceBid) error {
	if _, err := svc.bidsDB.Get(ctx, modelID); err == nil {
		return svc.bidsDB.Update(ctx, modelID, bids)
	}

	return svc.bidsDB.Create(ctx, modelID, bids)
}
