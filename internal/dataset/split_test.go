package dataset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFold(t *testing.T) {
	t.Parallel()

	folds, err := KFold(10, 3, 42)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	seen := map[int]int{}
	for _, fold := range folds {
		assert.Len(t, fold.Train, 10-len(fold.Test))

		inTrain := map[int]bool{}
		for _, i := range fold.Train {
			inTrain[i] = true
		}
		for _, i := range fold.Test {
			seen[i]++
			assert.False(t, inTrain[i], "row %d is in both train and test", i)
		}
	}

	// Every row lands in exactly one test set.
	require.Len(t, seen, 10)
	for i, count := range seen {
		assert.Equal(t, 1, count, "row %d", i)
	}
}

func TestKFold_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := KFold(20, 4, 7)
	require.NoError(t, err)
	b, err := KFold(20, 4, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKFold_Errors(t *testing.T) {
	t.Parallel()

	_, err := KFold(10, 1, 0)
	require.Error(t, err)

	_, err = KFold(2, 3, 0)
	require.Error(t, err)
}

func TestStratifiedSplit(t *testing.T) {
	t.Parallel()

	// 30 strong binders out of 100 rows.
	strata := make([]bool, 100)
	for i := 0; i < 30; i++ {
		strata[i] = true
	}
	rng := rand.New(rand.NewSource(1))

	train, test, err := StratifiedSplit(strata, 50, rng)
	require.NoError(t, err)
	require.Len(t, train, 50)
	require.Len(t, test, 50)

	seen := map[int]bool{}
	trainPos := 0
	for _, i := range train {
		seen[i] = true
		if strata[i] {
			trainPos++
		}
	}
	for _, i := range test {
		assert.False(t, seen[i], "row %d is in both sides", i)
		seen[i] = true
	}
	assert.Len(t, seen, 100)

	// Proportion of positives is preserved, 30% of 50 is 15.
	assert.InDelta(t, 15, trainPos, 1)
}

func TestStratifiedSplit_Errors(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	_, _, err := StratifiedSplit([]bool{true, false}, 0, rng)
	require.Error(t, err)
	_, _, err = StratifiedSplit([]bool{true, false}, 2, rng)
	require.Error(t, err)
}

func TestSubsampleSizes(t *testing.T) {
	t.Parallel()

	sizes := SubsampleSizes(20, 2000, 10)
	require.Len(t, sizes, 10)

	// Endpoints hit min and max, give or take the float trip through exp(log).
	assert.InDelta(t, 21, sizes[0], 1)
	assert.InDelta(t, 2001, sizes[len(sizes)-1], 1)
	for i := 1; i < len(sizes); i++ {
		assert.GreaterOrEqual(t, sizes[i], sizes[i-1])
	}
}

func TestSubsampleSizes_Degenerate(t *testing.T) {
	t.Parallel()

	for _, s := range SubsampleSizes(5, 5, 3) {
		assert.InDelta(t, 6, s, 1)
	}
	assert.Len(t, SubsampleSizes(5, 5, 3), 3)
	assert.Nil(t, SubsampleSizes(10, 20, 0))
	for _, s := range SubsampleSizes(10, 5, 2) {
		assert.InDelta(t, 11, s, 1, "max below min is clamped up")
	}
}

func TestRandomPeptideIndices(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(3))
	X := RandomPeptideIndices(rng, 50)
	require.Len(t, X, 50)
	for _, row := range X {
		require.Len(t, row, PeptideLength)
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, float64(NumSymbols))
		}
	}
}
