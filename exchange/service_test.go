package exchange_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixprotocol/aix/aggregator"
	"github.com/aixprotocol/aix/coordinator"
	"github.com/aixprotocol/aix/evaluator"
	"github.com/aixprotocol/aix/exchange"
	"github.com/aixprotocol/aix/model"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
	"github.com/aixprotocol/aix/pkg/events"
	"github.com/aixprotocol/aix/pkg/storage"
	"github.com/aixprotocol/aix/privacy"
	"github.com/aixprotocol/aix/registry"
	"github.com/aixprotocol/aix/secagg"
)

const localNode = "local-node"

type fx struct {
	svc      exchange.Service
	recorder *events.Recorder
}

func newExchange(t *testing.T, cfg exchange.Config) *fx {
	t.Helper()

	if cfg.NodeID == "" {
		cfg.NodeID = localNode
	}

	rng := rand.New(rand.NewSource(9))
	ledger := privacy.NewLedger(storage.NewInMemoryStorage())
	reg := registry.NewService(storage.NewInMemoryStorage(), ledger, events.Noop{})
	coord := coordinator.NewService(
		storage.NewInMemoryStorage(), reg, ledger,
		privacy.NewNoiseEngine(rand.New(rand.NewSource(1)), 1.0),
		secagg.NewScheme(), events.Noop{},
	)

	recorder := &events.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := exchange.NewService(cfg,
		storage.NewInMemoryStorage(), storage.NewInMemoryStorage(), storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(), storage.NewInMemoryStorage(),
		aggregator.New(rng.Float64), evaluator.New(rng), coord, recorder, logger,
	)

	return &fx{svc: svc, recorder: recorder}
}

func testSummary(id string, accuracy float64) model.Summary {
	return model.Summary{
		ID:           id,
		Version:      "1.0.0",
		Architecture: "mlp",
		Layers: []model.LayerSpec{
			{Name: "dense", Type: "dense", Shape: []int{2}, Weights: []float64{1, 2}},
		},
		Performance: model.PerformanceReport{Accuracy: accuracy, Loss: 1 - accuracy},
	}
}

// allowAll grants every sharing type to any requester at public strictness.
func allowAll(nodeID string) model.PrivacyPolicy {
	rules := make(map[model.SharingType]model.PolicyRule)
	for _, st := range []model.SharingType{
		model.ShareModelSummary, model.ShareGradients, model.ShareDistillation, model.SharePerformance,
	} {
		rules[st] = model.PolicyRule{AllowedRecipients: []string{"*"}, Level: model.LevelPublic}
	}

	return model.PrivacyPolicy{NodeID: nodeID, Rules: rules}
}

func sharingReq(requester, modelID string, st model.SharingType) model.SharingRequest {
	return model.SharingRequest{
		RequesterID:  requester,
		ModelID:      modelID,
		SharingType:  st,
		PrivacyLevel: model.LevelPublic,
	}
}

func TestRegisterModelUpsert(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{MarketplaceEnabled: true})

	m, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)
	assert.False(t, m.Metadata.CreatedAt.IsZero())

	revised := testSummary("m1", 0.95)
	_, err = f.svc.RegisterModel(ctx, revised)
	require.NoError(t, err)

	got, err := f.svc.GetModel(ctx, "m1")
	require.NoError(t, err)
	assert.InDelta(t, 0.95, got.Performance.Accuracy, 1e-9)

	page, err := f.svc.ListModels(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), page.Total)

	_, err = f.svc.RegisterModel(ctx, model.Summary{Version: "1.0.0"})
	assert.ErrorIs(t, err, pkgerrors.ErrMissingField)
}

func TestSharingPolicyEnforcement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	rules := map[model.SharingType]model.PolicyRule{
		model.ShareModelSummary: {AllowedRecipients: []string{"requester"}, Level: model.LevelPublic},
		model.SharePerformance:  {AllowedRecipients: []string{"*"}, Level: model.LevelPrivate},
	}

	cases := []struct {
		desc string
		req  model.SharingRequest
		err  error
	}{
		{
			desc: "no rule for sharing type denies",
			req:  sharingReq("requester", "m1", model.ShareGradients),
			err:  pkgerrors.ErrPolicyDenied,
		},
		{
			desc: "listed recipient admitted",
			req:  sharingReq("requester", "m1", model.ShareModelSummary),
		},
		{
			desc: "request below required strictness denied",
			req:  sharingReq("requester", "m1", model.SharePerformance),
			err:  pkgerrors.ErrPolicyDenied,
		},
		{
			desc: "stricter request passes wildcard rule",
			req: model.SharingRequest{
				RequesterID:  "requester",
				ModelID:      "m1",
				SharingType:  model.SharePerformance,
				PrivacyLevel: model.LevelConfidential,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			f := newExchange(t, exchange.Config{})
			require.NoError(t, f.svc.SetPrivacyPolicy(ctx, model.PrivacyPolicy{
				NodeID: "requester",
				Rules:  rules,
			}))

			_, err := f.svc.RequestSharing(ctx, tc.req)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSharingDeniedWithoutPolicy(t *testing.T) {
	t.Parallel()

	f := newExchange(t, exchange.Config{})

	_, err := f.svc.RequestSharing(context.Background(), sharingReq("stranger", "m1", model.ShareModelSummary))
	assert.ErrorIs(t, err, pkgerrors.ErrPolicyDenied)
}

func TestRequestSharingConcurrencyCeiling(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{MaxConcurrentSharing: 2})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll("requester")))

	for i := 0; i < 2; i++ {
		_, err := f.svc.RequestSharing(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
		require.NoError(t, err)
	}

	_, err := f.svc.RequestSharing(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	assert.ErrorIs(t, err, pkgerrors.ErrExhausted)

	// Another node has its own allowance.
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll("other")))
	_, err = f.svc.RequestSharing(ctx, sharingReq("other", "m1", model.ShareModelSummary))
	assert.NoError(t, err)
}

func TestHandleSharingRequestExpired(t *testing.T) {
	t.Parallel()

	f := newExchange(t, exchange.Config{})

	req := sharingReq("requester", "m1", model.ShareModelSummary)
	req.ExpiresAt = time.Now().Add(-time.Minute)

	_, err := f.svc.HandleSharingRequest(context.Background(), req)
	assert.ErrorIs(t, err, pkgerrors.ErrExpired)
}

func TestHandleSharingDenialIsGeneric(t *testing.T) {
	t.Parallel()

	f := newExchange(t, exchange.Config{})

	// The local node has no policy, so every inbound request gets the same
	// bare denial regardless of its details.
	_, err := f.svc.HandleSharingRequest(context.Background(), sharingReq("requester", "m1", model.ShareModelSummary))
	assert.ErrorIs(t, err, pkgerrors.ErrPolicyDenied)
}

func TestHandleSummarySharing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{CompressionThreshold: 64 * 1024})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll(localNode)))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	resp, err := f.svc.HandleSharingRequest(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	require.NoError(t, err)

	assert.False(t, resp.Compressed)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, "m1", resp.Summary.ID)

	_, err = f.svc.HandleSharingRequest(ctx, sharingReq("requester", "missing", model.ShareModelSummary))
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestHandleSummarySharingCompresses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{CompressionThreshold: 128})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll(localNode)))

	big := testSummary("m1", 0.8)
	big.Layers[0].Weights = make([]float64, 512)
	_, err := f.svc.RegisterModel(ctx, big)
	require.NoError(t, err)

	resp, err := f.svc.HandleSharingRequest(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	require.NoError(t, err)

	assert.True(t, resp.Compressed)
	assert.Nil(t, resp.Summary)
	require.NotEmpty(t, resp.Payload)

	decoded, err := io.ReadAll(flate.NewReader(bytes.NewReader(resp.Payload)))
	require.NoError(t, err)

	var got model.Summary
	require.NoError(t, json.Unmarshal(decoded, &got))
	assert.Equal(t, "m1", got.ID)
	assert.Len(t, got.Layers[0].Weights, 512)
}

func TestHandleDistillationStripsWeights(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll(localNode)))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	resp, err := f.svc.HandleSharingRequest(ctx, sharingReq("requester", "m1", model.ShareDistillation))
	require.NoError(t, err)

	require.NotNil(t, resp.Summary)
	require.Len(t, resp.Summary.Layers, 1)
	assert.Equal(t, []int{2}, resp.Summary.Layers[0].Shape)
	assert.Empty(t, resp.Summary.Layers[0].Weights)
	assert.InDelta(t, 0.8, resp.Summary.Performance.Accuracy, 1e-9)
}

func TestHandlePerformanceSharing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll(localNode)))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	resp, err := f.svc.HandleSharingRequest(ctx, sharingReq("requester", "m1", model.SharePerformance))
	require.NoError(t, err)

	require.NotNil(t, resp.Summary)
	assert.Empty(t, resp.Summary.Layers)
	assert.InDelta(t, 0.8, resp.Summary.Performance.Accuracy, 1e-9)
}

func TestHandleGradientSharing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll(localNode)))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	req := sharingReq("requester", "m1", model.ShareGradients)
	req.ID = "req-1"

	resp, err := f.svc.HandleSharingRequest(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Payload)

	envelope, err := model.UnmarshalUpdateCBOR(resp.Payload)
	require.NoError(t, err)
	assert.Equal(t, "req-1", envelope.RoundID)
	assert.Equal(t, localNode, envelope.NodeID)
	assert.Equal(t, "0", envelope.Version)
}

func TestCompleteSharing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll("requester")))

	req, err := f.svc.RequestSharing(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	require.NoError(t, err)

	require.NoError(t, f.svc.CompleteSharing(ctx, req.ID))
	assert.ErrorIs(t, f.svc.CompleteSharing(ctx, req.ID), pkgerrors.ErrNotFound)

	var kinds []events.Kind
	for _, e := range f.recorder.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, events.SharingCompleted)
}

func TestMarketplaceDisabled(t *testing.T) {
	t.Parallel()

	f := newExchange(t, exchange.Config{MarketplaceEnabled: false})

	_, err := f.svc.SubmitMarketplaceBid(context.Background(), model.MarketplaceBid{
		BidderID: "buyer", ModelID: "m1", Amount: 10,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrMarketplaceDisabled)
}

func TestMarketplaceBidLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{MarketplaceEnabled: true})

	_, err := f.svc.SubmitMarketplaceBid(ctx, model.MarketplaceBid{BidderID: "buyer", ModelID: "missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	_, err = f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	bid, err := f.svc.SubmitMarketplaceBid(ctx, model.MarketplaceBid{
		BidderID: "buyer", ModelID: "m1", Amount: 42,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, bid.ID)
	assert.True(t, bid.ExpiresAt.After(bid.CreatedAt))

	bids, err := f.svc.ListBids(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.InDelta(t, 42.0, bids[0].Amount, 1e-9)
}

func TestRequestAggregation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})

	a := testSummary("a", 0.8)
	b := testSummary("b", 0.9)
	b.Layers[0].Weights = []float64{3, 4}
	for _, m := range []model.Summary{a, b} {
		_, err := f.svc.RegisterModel(ctx, m)
		require.NoError(t, err)
	}

	out, err := f.svc.RequestAggregation(ctx, model.AggregationRequest{
		ModelIDs:        []string{"a", "b"},
		Algorithm:       model.FederatedAveraging,
		MinParticipants: 2,
	})
	require.NoError(t, err)

	layer, ok := out.Layer("dense")
	require.True(t, ok)
	assert.InDelta(t, 2.0, layer.Weights[0], 1e-9)
	assert.InDelta(t, 3.0, layer.Weights[1], 1e-9)

	_, err = f.svc.RequestAggregation(ctx, model.AggregationRequest{
		ModelIDs:        []string{"a"},
		Algorithm:       model.FederatedAveraging,
		MinParticipants: 2,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	_, err = f.svc.RequestAggregation(ctx, model.AggregationRequest{
		ModelIDs:        []string{"a", "missing"},
		Algorithm:       model.FederatedAveraging,
		MinParticipants: 1,
	})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestRequestEvaluationStoresResult(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	res, err := f.svc.RequestEvaluation(ctx, model.EvaluationRequest{
		ModelID: "m1",
		Metrics: []model.Metric{model.MetricAccuracy, model.MetricMSE},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Contains(t, res.Metrics, model.MetricAccuracy)
	assert.Len(t, res.Benchmarks, 4)

	stored, err := f.svc.ListEvaluations(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, res.ID, stored[0].ID)

	_, err = f.svc.RequestEvaluation(ctx, model.EvaluationRequest{ModelID: "missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestSubmitEvaluationResultDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})

	result := model.EvaluationResult{ID: "e1", ModelID: "m1"}
	require.NoError(t, f.svc.SubmitEvaluationResult(ctx, result))
	assert.ErrorIs(t, f.svc.SubmitEvaluationResult(ctx, result), pkgerrors.ErrEntityExists)
}

func TestCheckCompatibility(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{})

	version := model.Version{
		Version:             "2.0.0",
		SupportedFrameworks: []string{"pytorch", "onnx"},
	}

	assert.True(t, f.svc.CheckCompatibility(ctx, version, ""))
	assert.True(t, f.svc.CheckCompatibility(ctx, version, "onnx"))
	assert.False(t, f.svc.CheckCompatibility(ctx, version, "tensorflow"))

	version.Breaking = true
	assert.False(t, f.svc.CheckCompatibility(ctx, version, "onnx"))
}

func TestCleanupPurgesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{MarketplaceEnabled: true})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll("requester")))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)

	stale := sharingReq("requester", "m1", model.ShareModelSummary)
	stale.ExpiresAt = time.Now().Add(-time.Minute)
	_, err = f.svc.RequestSharing(ctx, stale)
	require.NoError(t, err)

	live, err := f.svc.RequestSharing(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	require.NoError(t, err)

	_, err = f.svc.SubmitMarketplaceBid(ctx, model.MarketplaceBid{
		BidderID: "buyer", ModelID: "m1", ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	fresh, err := f.svc.SubmitMarketplaceBid(ctx, model.MarketplaceBid{
		BidderID: "buyer", ModelID: "m1",
	})
	require.NoError(t, err)

	requests, bids, err := f.svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
	assert.Equal(t, 1, bids)

	remaining, err := f.svc.ListBids(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, fresh.ID, remaining[0].ID)

	require.NoError(t, f.svc.CompleteSharing(ctx, live.ID))

	var kinds []events.Kind
	for _, e := range f.recorder.Events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, events.SharingExpired)
	assert.Contains(t, kinds, events.BidExpired)
}

func TestStatistics(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newExchange(t, exchange.Config{MarketplaceEnabled: true})
	require.NoError(t, f.svc.SetPrivacyPolicy(ctx, allowAll("requester")))

	_, err := f.svc.RegisterModel(ctx, testSummary("m1", 0.8))
	require.NoError(t, err)
	_, err = f.svc.RequestSharing(ctx, sharingReq("requester", "m1", model.ShareModelSummary))
	require.NoError(t, err)
	_, err = f.svc.SubmitMarketplaceBid(ctx, model.MarketplaceBid{BidderID: "buyer", ModelID: "m1"})
	require.NoError(t, err)
	require.NoError(t, f.svc.SubmitEvaluationResult(ctx, model.EvaluationResult{ID: "e1", ModelID: "m1"}))

	stats, err := f.svc.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), stats.Models)
	assert.Equal(t, uint64(1), stats.ActiveRequests)
	assert.Equal(t, uint64(1), stats.BidsOutstanding)
	assert.Equal(t, uint64(1), stats.Evaluations)
}
