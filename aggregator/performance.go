package aggregator

import "github.com/aixprotocol/aix/model"

// mergePerformance folds the input reports into one: weighted mean accuracy
// and loss, F1 averaged only over models that report it, dataset size and
// epochs as the maximum observed (a conservative upper bound), and
// validation metrics averaged per key across whichever models report them.
func mergePerformance(models []model.Summary, weights []float64) model.PerformanceReport {
	var (
		out   model.PerformanceReport
		wsum  float64
		f1sum float64
		f1n   int
	)

	valSums := make(map[string]float64)
	valCounts := make(map[string]int)

	for i, m := range models {
		w := weights[i]
		out.Accuracy += m.Performance.Accuracy * w
		out.Loss += m.Performance.Loss * w
		wsum += w

		if m.Performance.F1Score != nil {
			f1sum += *m.Performance.F1Score
			f1n++
		}
		if m.Performance.DatasetSize > out.DatasetSize {
			out.DatasetSize = m.Performance.DatasetSize
		}
		if m.Performance.TrainingEpochs > out.TrainingEpochs {
			out.TrainingEpochs = m.Performance.TrainingEpochs
		}
		for k, v := range m.Performance.ValidationMetrics {
			valSums[k] += v
			valCounts[k]++
		}
	}

	if wsum > 0 {
		out.Accuracy /= wsum
		out.Loss /= wsum
	}
	if f1n > 0 {
		f1 := f1sum / float64(f1n)
		out.F1Score = &f1
	}
	if len(valSums) > 0 {
		out.ValidationMetrics = make(map[string]float64, len(valSums))
		for k, sum := range valSums {
			out.ValidationMetrics[k] = sum / float64(valCounts[k])
		}
	}

	return out
}
