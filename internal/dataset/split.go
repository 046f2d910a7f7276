package dataset

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// Fold is one train/test partition of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold splits n rows into k shuffled folds. The permutation is cut into k
// near-equal contiguous test chunks, so every row appears in exactly one
// test set.
func KFold(n, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, errors.Errorf("need at least 2 folds, got %d", k)
	}
	if n < k {
		return nil, errors.Errorf("cannot split %d rows into %d folds", n, k)
	}

	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(n)

	folds := make([]Fold, k)
	base, extra := n/k, n%k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		test := perm[start : start+size]
		train := make([]int, 0, n-size)
		train = append(train, perm[:start]...)
		train = append(train, perm[start+size:]...)
		folds[i] = Fold{Train: train, Test: test}
		start += size
	}
	return folds, nil
}

// StratifiedSplit selects nTrain row indices for training while preserving
// the proportion of true strata between the train and test sides.
func StratifiedSplit(strata []bool, nTrain int, rng *rand.Rand) (train, test []int, err error) {
	n := len(strata)
	if nTrain <= 0 || nTrain >= n {
		return nil, nil, errors.Errorf("train size %d out of range for %d rows", nTrain, n)
	}

	var pos, neg []int
	for i, s := range strata {
		if s {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}
	rng.Shuffle(len(pos), func(i, j int) { pos[i], pos[j] = pos[j], pos[i] })
	rng.Shuffle(len(neg), func(i, j int) { neg[i], neg[j] = neg[j], neg[i] })

	nPos := int(math.Round(float64(nTrain) * float64(len(pos)) / float64(n)))
	if nPos > len(pos) {
		nPos = len(pos)
	}
	nNeg := nTrain - nPos
	if nNeg > len(neg) {
		nNeg = len(neg)
		nPos = nTrain - nNeg
	}

	train = append(train, pos[:nPos]...)
	train = append(train, neg[:nNeg]...)
	test = append(test, pos[nPos:]...)
	test = append(test, neg[nNeg:]...)
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// SubsampleSizes returns count training set sizes spaced evenly on a log
// scale between min and max, each bumped by one as in the reference sweep.
func SubsampleSizes(min, max, count int) []int {
	if count < 1 {
		return nil
	}
	if max < min {
		max = min
	}
	logMin, logMax := math.Log(float64(min)), math.Log(float64(max))
	sizes := make([]int, count)
	for i := range sizes {
		frac := 0.0
		if count > 1 {
			frac = float64(i) / float64(count-1)
		}
		sizes[i] = int(math.Exp(logMin+frac*(logMax-logMin))) + 1
	}
	return sizes
}

// RandomPeptideIndices draws n uniform random index 9-mers. They serve as
// random negative training samples with targets at the weak-affinity end.
func RandomPeptideIndices(rng *rand.Rand, n int) [][]float64 {
	X := make([][]float64, n)
	for i := range X {
		row := make([]float64, PeptideLength)
		for p := range row {
			row[p] = float64(rng.Intn(NumSymbols))
		}
		X[i] = row
	}
	return X
}
