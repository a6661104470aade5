package evaluator

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/aixprotocol/aix/model"
)

const (
	latencySamples  = 100
	throughputBatch = 50
)

// runBenchmarks measures latency, throughput, memory and device utilization
// for single inferences over the dataset. Each suite checks the context so a
// caller-supplied deadline bounds the whole run.
func (e *Evaluator) runBenchmarks(ctx context.Context, artifact model.Summary, dataset Dataset) ([]model.BenchmarkResult, error) {
	deadline := e.clock.Now().Add(e.benchTime)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	latency, err := e.benchLatency(ctx, artifact, dataset)
	if err != nil {
		return nil, err
	}

	throughput, err := e.benchThroughput(ctx, artifact, dataset)
	if err != nil {
		return nil, err
	}

	memory := e.benchMemory(artifact, dataset)

	// Utilization is backend-reported in a real deployment; estimate it from
	// throughput against a nominal single-core budget here.
	utilization := model.BenchmarkResult{
		Kind:              model.BenchUtilization,
		DeviceUtilization: estimateUtilization(throughput.Throughput),
	}

	return []model.BenchmarkResult{latency, throughput, memory, utilization}, nil
}

func (e *Evaluator) benchLatency(ctx context.Context, artifact model.Summary, dataset Dataset) (model.BenchmarkResult, error) {
	samples := make([]time.Duration, 0, latencySamples)
	for i := 0; i < latencySamples; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		begin := e.clock.Now()
		e.backend.Infer(artifact, dataset.Samples[i%len(dataset.Samples)])
		samples = append(samples, e.clock.Now().Sub(begin))
	}
	if len(samples) == 0 {
		return model.BenchmarkResult{}, ctx.Err()
	}

	var total time.Duration
	for _, d := range samples {
		total += d
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	return model.BenchmarkResult{
		Kind:       model.BenchLatency,
		AvgLatency: total / time.Duration(len(samples)),
		P95Latency: percentile(samples, 0.95),
		P99Latency: percentile(samples, 0.99),
	}, nil
}

func (e *Evaluator) benchThroughput(ctx context.Context, artifact model.Summary, dataset Dataset) (model.BenchmarkResult, error) {
	begin := e.clock.Now()
	n := 0
	for i := 0; i < throughputBatch; i++ {
		if err := ctx.Err(); err != nil {
			break
		}
		e.backend.Infer(artifact, dataset.Samples[i%len(dataset.Samples)])
		n++
	}
	elapsed := e.clock.Now().Sub(begin)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}

	return model.BenchmarkResult{
		Kind:       model.BenchThroughput,
		Throughput: float64(n) / elapsed.Seconds(),
	}, nil
}

func (e *Evaluator) benchMemory(artifact model.Summary, dataset Dataset) model.BenchmarkResult {
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	e.backend.Infer(artifact, dataset.Samples[0])
	runtime.ReadMemStats(&after)

	var delta uint64
	if after.HeapAlloc > before.HeapAlloc {
		delta = after.HeapAlloc - before.HeapAlloc
	}

	return model.BenchmarkResult{
		Kind:        model.BenchMemory,
		MemoryBytes: delta,
	}
}

// percentile interpolates linearly between sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)

	return sorted[lo] + time.Duration(frac*float64(sorted[hi]-sorted[lo]))
}

func estimateUtilization(throughput float64) float64 {
	const nominal = 10000.0
	u := throughput / nominal
	if u > 1 {
		u = 1
	}

	return u
}
