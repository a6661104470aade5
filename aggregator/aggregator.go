// Package aggregator combines independent model summaries. Unlike round
// aggregation, inputs here are full artifacts that may have heterogeneous
// layer sets; federated averaging normalizes each layer by the weights that
// actually contributed to it.
package aggregator

import (
	"fmt"
	"time"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/errors"
	"github.com/google/uuid"
)

type Aggregator interface {
	Aggregate(models []model.Summary, algorithm model.Algorithm, weights []float64) (model.Summary, error)
}

type aggregator struct {
	rng func() float64
}

func New(rng func() float64) Aggregator {
	return &aggregator{rng: rng}
}

func (a *aggregator) Aggregate(models []model.Summary, algorithm model.Algorithm, weights []float64) (model.Summary, error) {
	if len(models) == 0 {
		return model.Summary{}, errors.ErrMissingField
	}
	if err := algorithm.Validate(); err != nil {
		return model.Summary{}, err
	}

	if len(weights) == 0 {
		weights = uniformWeights(len(models))
	}
	if len(weights) != len(models) {
		return model.Summary{}, errors.ErrInvalidData
	}

	switch algorithm {
	case model.FederatedAveraging:
		return a.federatedAverage(models, weights)
	case model.EnsembleAveraging:
		return a.ensembleAverage(models, weights)
	case model.StackedGeneral:
		return a.stackedGeneralization(models, weights)
	case model.MetaLearning:
		return a.metaAggregation(models, weights)
	default:
		return model.Summary{}, errors.ErrInvalidData
	}
}

// federatedAverage combines per-layer weight vectors by weighted mean.
// Models missing a layer are skipped for that layer and the divisor is the
// sum of weights that did contribute, which avoids biasing layers that only
// a subset of models carry.
func (a *aggregator) federatedAverage(models []model.Summary, weights []float64) (model.Summary, error) {
	layerNames := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range models {
		for _, l := range m.Layers {
			if !seen[l.Name] {
				seen[l.Name] = true
				layerNames = append(layerNames, l.Name)
			}
		}
	}

	layers := make([]model.LayerSpec, 0, len(layerNames))
	for _, name := range layerNames {
		var (
			acc       []float64
			shape     []int
			layerType string
			wsum      float64
		)
		for i, m := range models {
			l, ok := m.Layer(name)
			if !ok || len(l.Weights) == 0 {
				continue
			}
			if acc == nil {
				acc = make([]float64, len(l.Weights))
				shape = l.Shape
				layerType = l.Type
			}
			if len(l.Weights) != len(acc) {
				return model.Summary{}, fmt.Errorf("%w: layer %q has mismatched size", errors.ErrInvalidData, name)
			}
			for j, v := range l.Weights {
				acc[j] += v * weights[i]
			}
			wsum += weights[i]
		}
		if acc == nil || wsum == 0 {
			continue
		}
		for j := range acc {
			acc[j] /= wsum
		}
		layers = append(layers, model.LayerSpec{
			Name:    name,
			Type:    layerType,
			Shape:   shape,
			Weights: acc,
		})
	}

	out := a.newSummary("federated-average", models)
	out.Layers = layers
	out.Performance = mergePerformance(models, weights)

	return out, nil
}

// ensembleAverage leaves weights untouched and combines only the performance
// reports. Used when the caller will combine predictions, not parameters.
func (a *aggregator) ensembleAverage(models []model.Summary, weights []float64) (model.Summary, error) {
	out := a.newSummary("ensemble", models)
	out.Performance = mergePerformance(models, weights)
	out.Metadata.Tags = append(out.Metadata.Tags, "ensemble")

	return out, nil
}

// stackedGeneralization emits a meta-model whose single layer takes the base
// models' outputs as input. Weights are small uniform noise; training the
// combiner is an external concern.
func (a *aggregator) stackedGeneralization(models []model.Summary, weights []float64) (model.Summary, error) {
	n := len(models)
	metaWeights := make([]float64, n)
	for i := range metaWeights {
		metaWeights[i] = (a.rng() - 0.5) * 0.1
	}

	out := a.newSummary("stacked", models)
	out.Layers = []model.LayerSpec{{
		Name:    "meta-combiner",
		Type:    "dense",
		Shape:   []int{n, 1},
		Weights: metaWeights,
	}}
	out.Performance = mergePerformance(models, weights)

	return out, nil
}

// metaAggregation extracts a fixed 4-feature vector per base model
// (accuracy, loss, parameter count, training time) into a [4 x N] layer for
// an external meta-learner.
func (a *aggregator) metaAggregation(models []model.Summary, weights []float64) (model.Summary, error) {
	n := len(models)
	features := make([]float64, 0, 4*n)
	for _, m := range models {
		features = append(features,
			m.Performance.Accuracy,
			m.Performance.Loss,
			float64(m.ParameterCount()),
			m.Metadata.TrainingTime.Seconds(),
		)
	}

	out := a.newSummary("meta-learning", models)
	out.Layers = []model.LayerSpec{{
		Name:    "meta-features",
		Type:    "features",
		Shape:   []int{4, n},
		Weights: features,
	}}
	out.Performance = mergePerformance(models, weights)

	return out, nil
}

func (a *aggregator) newSummary(architecture string, models []model.Summary) model.Summary {
	now := time.Now()

	return model.Summary{
		ID:           uuid.NewString(),
		Version:      "1.0.0",
		Architecture: architecture,
		Metadata: model.Metadata{
			Description: fmt.Sprintf("aggregated from %d models", len(models)),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}

	return w
}
