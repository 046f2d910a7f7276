package dataset

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
)

// Imputation method names accepted by ImputeForAllele.
const (
	ImputeNone = "none"
	ImputeMean = "mean"
	ImputeMICE = "mice"
)

const (
	minObservationsPerPeptide = 2
	minObservationsPerAllele  = 1

	miceMaxIterations = 25
	miceTolerance     = 1e-4
)

// Imputed is a pretraining set of target-allele affinities filled in from
// measurements of the same peptides against other alleles.
type Imputed struct {
	Peptides []string
	X        [][]float64
	Y        []float64
}

// Len returns the number of imputed training rows.
func (im *Imputed) Len() int { return len(im.Y) }

// ImputeForAllele builds the peptide x allele matrix of regression targets
// over the whole dataset, fills the missing cells with the requested method,
// and returns the filled column for the target allele. Peptides listed in
// exclude (the held-out test set) are dropped so the pretraining data cannot
// leak into evaluation, as are peptides observed for fewer than two alleles.
func ImputeForAllele(ctx context.Context, ds *Dataset, allele string, exclude map[string]struct{}, method string, maxIC50 float64) (*Imputed, error) {
	logger := ctxlog.FromContext(ctx)

	switch method {
	case ImputeMean, ImputeMICE:
	case ImputeNone:
		return nil, errors.Errorf("imputation method %q builds no data", method)
	default:
		return nil, errors.Errorf("unknown imputation method %q", method)
	}

	alleles := ds.Alleles()
	targetCol := -1
	cols := make([]string, 0, len(alleles))
	for _, name := range alleles {
		a, _ := ds.Allele(name)
		if a.Len() < minObservationsPerAllele {
			continue
		}
		if name == allele {
			targetCol = len(cols)
		}
		cols = append(cols, name)
	}
	if targetCol < 0 {
		return nil, errors.Errorf("allele %s not present in dataset", allele)
	}

	// Row index per peptide, observation counts first so sparse peptides
	// can be dropped before the matrix is allocated.
	observations := map[string]int{}
	for _, name := range cols {
		a, _ := ds.Allele(name)
		for _, p := range a.Peptides {
			observations[p]++
		}
	}

	var peptides []string
	rowOf := map[string]int{}
	for _, name := range cols {
		a, _ := ds.Allele(name)
		for _, p := range a.Peptides {
			if _, held := exclude[p]; held {
				continue
			}
			if observations[p] < minObservationsPerPeptide {
				continue
			}
			if _, seen := rowOf[p]; !seen {
				rowOf[p] = len(peptides)
				peptides = append(peptides, p)
			}
		}
	}
	if len(peptides) == 0 {
		return nil, errors.Errorf("no peptides with at least %d observations to impute from", minObservationsPerPeptide)
	}

	values := make([][]float64, len(peptides))
	observed := make([][]bool, len(peptides))
	for i := range values {
		values[i] = make([]float64, len(cols))
		observed[i] = make([]bool, len(cols))
	}
	for j, name := range cols {
		a, _ := ds.Allele(name)
		for i, p := range a.Peptides {
			row, ok := rowOf[p]
			if !ok {
				continue
			}
			values[row][j] = TargetFromIC50(a.IC50[i], maxIC50)
			observed[row][j] = true
		}
	}

	fillByMeans(values, observed)
	if method == ImputeMICE {
		refineIteratively(values, observed)
	}

	im := &Imputed{}
	for i, p := range peptides {
		encoded, err := EncodePeptide(p)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding imputed peptide %s", p)
		}
		im.Peptides = append(im.Peptides, p)
		im.X = append(im.X, encoded)
		im.Y = append(im.Y, values[i][targetCol])
	}

	logger.Info("Imputed pretraining data built.",
		"allele", allele, "method", method, "peptides", im.Len(), "alleles", len(cols))
	return im, nil
}

// fillByMeans replaces every missing cell with the row (peptide) mean,
// falling back to the column then the global mean.
func fillByMeans(values [][]float64, observed [][]bool) {
	nRows, nCols := len(values), len(values[0])

	rowMean := make([]float64, nRows)
	rowHas := make([]bool, nRows)
	colSum := make([]float64, nCols)
	colCount := make([]int, nCols)
	var globalSum float64
	var globalCount int

	for i := 0; i < nRows; i++ {
		var sum float64
		var count int
		for j := 0; j < nCols; j++ {
			if observed[i][j] {
				sum += values[i][j]
				count++
				colSum[j] += values[i][j]
				colCount[j]++
				globalSum += values[i][j]
				globalCount++
			}
		}
		if count > 0 {
			rowMean[i] = sum / float64(count)
			rowHas[i] = true
		}
	}

	globalMean := 0.0
	if globalCount > 0 {
		globalMean = globalSum / float64(globalCount)
	}

	for i := 0; i < nRows; i++ {
		for j := 0; j < nCols; j++ {
			if observed[i][j] {
				continue
			}
			switch {
			case rowHas[i]:
				values[i][j] = rowMean[i]
			case colCount[j] > 0:
				values[i][j] = colSum[j] / float64(colCount[j])
			default:
				values[i][j] = globalMean
			}
		}
	}
}

// refineIteratively sharpens the mean fill by alternating row and column
// conditional updates until the largest cell movement drops below tolerance.
func refineIteratively(values [][]float64, observed [][]bool) {
	nRows, nCols := len(values), len(values[0])

	for iter := 0; iter < miceMaxIterations; iter++ {
		rowMean := make([]float64, nRows)
		for i := 0; i < nRows; i++ {
			var sum float64
			for j := 0; j < nCols; j++ {
				sum += values[i][j]
			}
			rowMean[i] = sum / float64(nCols)
		}
		colMean := make([]float64, nCols)
		for j := 0; j < nCols; j++ {
			var sum float64
			for i := 0; i < nRows; i++ {
				sum += values[i][j]
			}
			colMean[j] = sum / float64(nRows)
		}

		var maxDelta float64
		for i := 0; i < nRows; i++ {
			for j := 0; j < nCols; j++ {
				if observed[i][j] {
					continue
				}
				updated := (rowMean[i] + colMean[j]) / 2
				if d := math.Abs(updated - values[i][j]); d > maxDelta {
					maxDelta = d
				}
				values[i][j] = updated
			}
		}
		if maxDelta < miceTolerance {
			break
		}
	}
}
