package evaluator

import (
	"math"

	"github.com/aixprotocol/aix/model"
)

const classThreshold = 0.5

// computeMetrics scores predictions against labels for the requested subset.
// Classification metrics threshold both sides at 0.5; MSE and MAE treat the
// labels as regression targets.
func computeMetrics(requested []model.Metric, predictions, labels []float64) map[model.Metric]float64 {
	if len(requested) == 0 {
		requested = []model.Metric{model.MetricAccuracy}
	}

	out := make(map[model.Metric]float64, len(requested))
	for _, m := range requested {
		switch m {
		case model.MetricAccuracy:
			out[m] = accuracy(predictions, labels)
		case model.MetricPrecision:
			p, _ := precisionRecall(predictions, labels)
			out[m] = p
		case model.MetricRecall:
			_, r := precisionRecall(predictions, labels)
			out[m] = r
		case model.MetricF1:
			p, r := precisionRecall(predictions, labels)
			out[m] = f1(p, r)
		case model.MetricMSE:
			out[m] = meanSquaredError(predictions, labels)
		case model.MetricMAE:
			out[m] = meanAbsoluteError(predictions, labels)
		}
	}

	return out
}

func accuracy(predictions, labels []float64) float64 {
	if len(predictions) == 0 {
		return 0
	}
	correct := 0
	for i := range predictions {
		if classify(predictions[i]) == classify(labels[i]) {
			correct++
		}
	}

	return float64(correct) / float64(len(predictions))
}

func precisionRecall(predictions, labels []float64) (float64, float64) {
	var tp, fp, fn float64
	for i := range predictions {
		pred := classify(predictions[i])
		actual := classify(labels[i])
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && actual:
			fn++
		}
	}

	precision := 0.0
	if tp+fp > 0 {
		precision = tp / (tp + fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = tp / (tp + fn)
	}

	return precision, recall
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}

	return 2 * precision * recall / (precision + recall)
}

func meanSquaredError(predictions, labels []float64) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for i := range predictions {
		d := predictions[i] - labels[i]
		sum += d * d
	}

	return sum / float64(len(predictions))
}

func meanAbsoluteError(predictions, labels []float64) float64 {
	if len(predictions) == 0 {
		return 0
	}
	var sum float64
	for i := range predictions {
		sum += math.Abs(predictions[i] - labels[i])
	}

	return sum / float64(len(predictions))
}

func classify(v float64) bool {
	return v >= classThreshold
}
