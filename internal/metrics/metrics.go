// Package metrics computes the classification and summary statistics that
// the sweeps report: ROC AUC, F1, accuracy, and five-number summaries of
// per-fold scores.
package metrics

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrSingleClass is returned by AUC when every label belongs to one class,
// which makes the ROC curve undefined.
var ErrSingleClass = errors.New("metrics: labels contain a single class")

// AUC returns the area under the ROC curve for the given binary labels and
// real-valued scores, where higher scores should indicate positive labels.
func AUC(labels []bool, scores []float64) (float64, error) {
	if len(labels) != len(scores) {
		return 0, errors.Errorf("metrics: %d labels but %d scores", len(labels), len(scores))
	}

	var pos int
	for _, l := range labels {
		if l {
			pos++
		}
	}
	if pos == 0 || pos == len(labels) {
		return 0, ErrSingleClass
	}

	// stat.ROC requires the scores in ascending order with the classes
	// permuted in tandem.
	y := make([]float64, len(scores))
	copy(y, scores)
	classes := make([]bool, len(labels))
	copy(classes, labels)
	stat.SortWeightedLabeled(y, classes, nil)

	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// F1 returns the harmonic mean of precision and recall for binary
// predictions. It returns 0 when no positive predictions or labels exist.
func F1(labels, preds []bool) float64 {
	var tp, fp, fn int
	for i := range labels {
		switch {
		case preds[i] && labels[i]:
			tp++
		case preds[i] && !labels[i]:
			fp++
		case !preds[i] && labels[i]:
			fn++
		}
	}
	if 2*tp+fp+fn == 0 {
		return 0
	}
	return 2 * float64(tp) / float64(2*tp+fp+fn)
}

// Accuracy returns the fraction of predictions matching the labels.
func Accuracy(labels, preds []bool) float64 {
	if len(labels) == 0 {
		return 0
	}
	var correct int
	for i := range labels {
		if labels[i] == preds[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(labels))
}

// Summary holds the statistics reported per allele across CV folds.
type Summary struct {
	Mean   float64
	Median float64
	Std    float64
	Min    float64
	Max    float64
}

// Summarize computes the Summary of a non-empty sample. Std is the
// population standard deviation.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	return Summary{
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Std:    stat.PopStdDev(sorted, nil),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
	}
}

// Percentile returns the p-th percentile (p in [0, 100]) of a non-empty
// sample using linear interpolation.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p/100, stat.LinInterp, sorted, nil)
}
