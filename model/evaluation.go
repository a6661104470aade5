package model

import (
	"time"

	"github.com/aixprotocol/aix/pkg/errors"
)

// Metric names an evaluation statistic the caller may request.
type Metric string

const (
	MetricAccuracy  Metric = "accuracy"
	MetricPrecision Metric = "precision"
	MetricRecall    Metric = "recall"
	MetricF1        Metric = "f1"
	MetricMSE       Metric = "mse"
	MetricMAE       Metric = "mae"
)

func (m Metric) Validate() error {
	switch m {
	case MetricAccuracy, MetricPrecision, MetricRecall, MetricF1, MetricMSE, MetricMAE:
		return nil
	default:
		return errors.ErrInvalidData
	}
}

// BenchmarkKind is the closed set of benchmark suites the evaluator runs.
type BenchmarkKind string

const (
	BenchLatency     BenchmarkKind = "latency"
	BenchThroughput  BenchmarkKind = "throughput"
	BenchMemory      BenchmarkKind = "memory"
	BenchUtilization BenchmarkKind = "device-utilization"
)

type EvaluationRequest struct {
	ID              string   `json:"id"`
	ModelID         string   `json:"model_id"`
	EvaluatorID     string   `json:"evaluator_id"`
	Metrics         []Metric `json:"metrics"`
	CrossValidation bool     `json:"cross_validation,omitempty"`
}

func (r EvaluationRequest) Validate() error {
	if r.ModelID == "" {
		return errors.ErrMissingField
	}
	for _, m := range r.Metrics {
		if err := m.Validate(); err != nil {
			return err
		}
	}

	return nil
}

type BenchmarkResult struct {
	Kind              BenchmarkKind `json:"kind"`
	AvgLatency        time.Duration `json:"avg_latency,omitempty"`
	P95Latency        time.Duration `json:"p95_latency,omitempty"`
	P99Latency        time.Duration `json:"p99_latency,omitempty"`
	Throughput        float64       `json:"throughput,omitempty"`
	MemoryBytes       uint64        `json:"memory_bytes,omitempty"`
	DeviceUtilization float64       `json:"device_utilization,omitempty"`
}

type EvaluationResult struct {
	ID          string             `json:"id"`
	ModelID     string             `json:"model_id"`
	EvaluatorID string             `json:"evaluator_id"`
	Metrics     map[Metric]float64 `json:"metrics"`
	Benchmarks  []BenchmarkResult  `json:"benchmarks"`
	// CrossValidation holds the per-metric mean across folds, when requested.
	CrossValidation map[Metric]float64   `json:"cross_validation,omitempty"`
	FoldScores      []map[Metric]float64 `json:"fold_scores,omitempty"`
	EvaluatedAt     time.Time            `json:"evaluated_at"`
}

func (r EvaluationResult) Validate() error {
	if r.ID == "" || r.ModelID == "" {
		return errors.ErrMissingField
	}

	return nil
}
