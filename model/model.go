package model

import (
	"time"

	"github.com/aixprotocol/aix/pkg/errors"
)

// LayerSpec describes one layer of a model artifact: its shape and,
// when the layer is being exchanged, its flattened weights.
type LayerSpec struct {
	Name    string    `json:"name"`
	Type    string    `json:"type,omitempty"`
	Shape   []int     `json:"shape"`
	Weights []float64 `json:"weights,omitempty"`
}

// ParameterCount is the product of the layer's shape dimensions.
func (l LayerSpec) ParameterCount() int {
	if len(l.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range l.Shape {
		n *= d
	}

	return n
}

type PerformanceReport struct {
	Accuracy          float64            `json:"accuracy"`
	Loss              float64            `json:"loss"`
	F1Score           *float64           `json:"f1_score,omitempty"`
	DatasetSize       int                `json:"dataset_size"`
	TrainingEpochs    int                `json:"training_epochs"`
	ValidationMetrics map[string]float64 `json:"validation_metrics,omitempty"`
}

type Metadata struct {
	Description  string        `json:"description,omitempty"`
	Tags         []string      `json:"tags,omitempty"`
	TrainingTime time.Duration `json:"training_time,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Summary is the versioned artifact record used by the exchange. Summaries
// are registered once and superseded by new versions, never mutated in place.
type Summary struct {
	ID           string            `json:"id"`
	Version      string            `json:"version"`
	Architecture string            `json:"architecture"`
	Layers       []LayerSpec       `json:"layers"`
	Performance  PerformanceReport `json:"performance"`
	Metadata     Metadata          `json:"metadata"`
}

func (s Summary) Validate() error {
	if s.ID == "" || s.Version == "" {
		return errors.ErrMissingField
	}

	return nil
}

// ParameterCount sums parameters across all layers.
func (s Summary) ParameterCount() int {
	n := 0
	for _, l := range s.Layers {
		n += l.ParameterCount()
	}

	return n
}

// Layer returns the named layer, if present.
func (s Summary) Layer(name string) (LayerSpec, bool) {
	for _, l := range s.Layers {
		if l.Name == name {
			return l, true
		}
	}

	return LayerSpec{}, false
}

// Version describes compatibility of a released model version.
type Version struct {
	Version             string   `json:"version"`
	Breaking            bool     `json:"breaking"`
	SupportedFrameworks []string `json:"supported_frameworks,omitempty"`
}

type SummaryPage struct {
	Offset    uint64    `json:"offset"`
	Limit     uint64    `json:"limit"`
	Total     uint64    `json:"total"`
	Summaries []Summary `json:"summaries"`
}
