package evaluator_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aixprotocol/aix/evaluator"
	"github.com/aixprotocol/aix/model"
	pkgerrors "github.com/aixprotocol/aix/pkg/errors"
)

const tolerance = 1e-9

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// echoBackend predicts the first feature of each sample, which lets tests
// pick predictions directly.
type echoBackend struct{}

func (echoBackend) Infer(_ model.Summary, sample []float64) float64 { return sample[0] }

// timedBackend advances the shared fake clock by the first feature in
// milliseconds, simulating per-sample inference cost.
type timedBackend struct {
	clk *fakeClock
}

func (b timedBackend) Infer(_ model.Summary, sample []float64) float64 {
	b.clk.advance(time.Duration(sample[0]) * time.Millisecond)

	return sample[0]
}

type panicBackend struct{}

func (panicBackend) Infer(model.Summary, []float64) float64 { panic("numerics") }

// The benchmark deadline is derived from the injected clock but enforced by
// the real one, so fake clocks must sit in the real future.
func futureClock() *fakeClock {
	return &fakeClock{t: time.Now().Add(time.Hour)}
}

func dataset(predictions, labels []float64) evaluator.Dataset {
	samples := make([][]float64, len(predictions))
	for i, p := range predictions {
		samples[i] = []float64{p}
	}

	return evaluator.Dataset{Samples: samples, Labels: labels}
}

func TestEvaluateMetrics(t *testing.T) {
	t.Parallel()

	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(futureClock()),
		evaluator.WithBackend(echoBackend{}),
	)

	// Predictions classify as {1,0,1,0} against labels {1,0,0,1}: one true
	// positive, one false positive, one false negative.
	ds := dataset([]float64{0.9, 0.2, 0.7, 0.1}, []float64{1, 0, 0, 1})

	req := model.EvaluationRequest{
		ID:          "eval-1",
		ModelID:     "m1",
		EvaluatorID: "n1",
		Metrics: []model.Metric{
			model.MetricAccuracy, model.MetricPrecision, model.MetricRecall,
			model.MetricF1, model.MetricMSE, model.MetricMAE,
		},
	}

	res, err := e.Evaluate(context.Background(), req, model.Summary{ID: "m1", Version: "1.0.0"}, ds)
	require.NoError(t, err)

	assert.Equal(t, "eval-1", res.ID)
	assert.Equal(t, "m1", res.ModelID)
	assert.Equal(t, "n1", res.EvaluatorID)

	assert.InDelta(t, 0.5, res.Metrics[model.MetricAccuracy], tolerance)
	assert.InDelta(t, 0.5, res.Metrics[model.MetricPrecision], tolerance)
	assert.InDelta(t, 0.5, res.Metrics[model.MetricRecall], tolerance)
	assert.InDelta(t, 0.5, res.Metrics[model.MetricF1], tolerance)
	assert.InDelta(t, 0.3375, res.Metrics[model.MetricMSE], tolerance)
	assert.InDelta(t, 0.475, res.Metrics[model.MetricMAE], tolerance)
}

func TestEvaluateDefaultsToAccuracy(t *testing.T) {
	t.Parallel()

	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(futureClock()),
		evaluator.WithBackend(echoBackend{}),
	)

	ds := dataset([]float64{0.9, 0.1}, []float64{1, 0})

	res, err := e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, ds)
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	require.Contains(t, res.Metrics, model.MetricAccuracy)
	assert.InDelta(t, 1.0, res.Metrics[model.MetricAccuracy], tolerance)
}

func TestCrossValidationFolds(t *testing.T) {
	t.Parallel()

	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(futureClock()),
		evaluator.WithBackend(echoBackend{}),
	)

	// 100 items split into five folds of 20. Fold f carries f mismatched
	// labels, so the fold accuracies step down 1.00, 0.95, ... 0.80.
	preds := make([]float64, 100)
	labels := make([]float64, 100)
	for i := range preds {
		fold := i / 20
		pos := i % 20
		preds[i] = 0.9
		if pos < fold {
			labels[i] = 0
		} else {
			labels[i] = 1
		}
	}

	req := model.EvaluationRequest{
		ModelID:         "m1",
		Metrics:         []model.Metric{model.MetricAccuracy},
		CrossValidation: true,
	}

	res, err := e.Evaluate(context.Background(), req, model.Summary{}, dataset(preds, labels))
	require.NoError(t, err)

	require.Len(t, res.FoldScores, 5)
	for f, scores := range res.FoldScores {
		want := 1.0 - float64(f)*0.05
		assert.InDelta(t, want, scores[model.MetricAccuracy], tolerance)
	}
	assert.InDelta(t, 0.90, res.CrossValidation[model.MetricAccuracy], tolerance)
}

func TestBenchmarkTimings(t *testing.T) {
	t.Parallel()

	clk := futureClock()
	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(clk),
		evaluator.WithBackend(timedBackend{clk: clk}),
	)

	// Sample i costs i+1 milliseconds, so the latency distribution is the
	// ramp 1ms..100ms.
	preds := make([]float64, 100)
	labels := make([]float64, 100)
	for i := range preds {
		preds[i] = float64(i + 1)
	}

	res, err := e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, dataset(preds, labels))
	require.NoError(t, err)

	byKind := make(map[model.BenchmarkKind]model.BenchmarkResult)
	for _, b := range res.Benchmarks {
		byKind[b.Kind] = b
	}
	require.Len(t, byKind, 4)

	latency := byKind[model.BenchLatency]
	assert.Equal(t, 50*time.Millisecond+500*time.Microsecond, latency.AvgLatency)
	// Percentiles interpolate linearly between sorted samples.
	assert.InDelta(t, float64(95*time.Millisecond+50*time.Microsecond), float64(latency.P95Latency), 100)
	assert.InDelta(t, float64(99*time.Millisecond+10*time.Microsecond), float64(latency.P99Latency), 100)

	throughput := byKind[model.BenchThroughput]
	// 50 inferences over samples 1..50 take 1.275 fake seconds.
	assert.InDelta(t, 50.0/1.275, throughput.Throughput, 1e-6)

	util := byKind[model.BenchUtilization]
	assert.InDelta(t, throughput.Throughput/10000.0, util.DeviceUtilization, 1e-6)

	assert.Contains(t, byKind, model.BenchMemory)
}

func TestEvaluateValidation(t *testing.T) {
	t.Parallel()

	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(futureClock()),
		evaluator.WithBackend(echoBackend{}),
	)
	ds := dataset([]float64{0.5}, []float64{1})

	_, err := e.Evaluate(context.Background(), model.EvaluationRequest{}, model.Summary{}, ds)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingField)

	_, err = e.Evaluate(context.Background(), model.EvaluationRequest{
		ModelID: "m1",
		Metrics: []model.Metric{"bleu"},
	}, model.Summary{}, ds)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	_, err = e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, evaluator.Dataset{})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	_, err = e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, evaluator.Dataset{
		Samples: [][]float64{{1}},
		Labels:  []float64{1, 0},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
}

func TestEvaluateRecoversFromBackendPanic(t *testing.T) {
	t.Parallel()

	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(futureClock()),
		evaluator.WithBackend(panicBackend{}),
	)
	ds := dataset([]float64{0.5}, []float64{1})

	res, err := e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, ds)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	assert.Empty(t, res.ID)
}

func TestEvaluatedAtUsesInjectedClock(t *testing.T) {
	t.Parallel()

	clk := futureClock()
	e := evaluator.New(rand.New(rand.NewSource(1)),
		evaluator.WithClock(clk),
		evaluator.WithBackend(echoBackend{}),
	)
	ds := dataset([]float64{0.5}, []float64{1})

	res, err := e.Evaluate(context.Background(), model.EvaluationRequest{ModelID: "m1"}, model.Summary{}, ds)
	require.NoError(t, err)

	assert.Equal(t, clk.t, res.EvaluatedAt)
}
