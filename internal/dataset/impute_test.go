package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imputeTestDataset(t *testing.T) *Dataset {
	t.Helper()

	mustEncode := func(p string) []float64 {
		enc, err := EncodePeptide(p)
		require.NoError(t, err)
		return enc
	}
	build := func(name string, peptides []string, ic50 []float64) *AlleleData {
		a := &AlleleData{Name: name, Peptides: peptides, IC50: ic50}
		for _, p := range peptides {
			a.X = append(a.X, mustEncode(p))
		}
		return a
	}

	// p1 and p2 are measured for both helper alleles; the target allele only
	// has p1, so p2's target value must be imputed.
	return &Dataset{byAllele: map[string]*AlleleData{
		"A0101": build("A0101", []string{"SIINFEKLV", "GILGFVFTL"}, []float64{100, 1000}),
		"B0702": build("B0702", []string{"SIINFEKLV", "GILGFVFTL"}, []float64{200, 4000}),
		"A0201": build("A0201", []string{"SIINFEKLV"}, []float64{50}),
	}}
}

func TestImputeForAllele_Mean(t *testing.T) {
	t.Parallel()

	ds := imputeTestDataset(t)
	im, err := ImputeForAllele(context.Background(), ds, "A0201", nil, ImputeMean, 5000)
	require.NoError(t, err)
	require.Equal(t, 2, im.Len())

	byPeptide := map[string]float64{}
	for i, p := range im.Peptides {
		byPeptide[p] = im.Y[i]
	}

	// The observed cell keeps its measured target.
	assert.InDelta(t, TargetFromIC50(50, 5000), byPeptide["SIINFEKLV"], 1e-9)

	// The missing cell is the row (peptide) mean over the other alleles.
	want := (TargetFromIC50(1000, 5000) + TargetFromIC50(4000, 5000)) / 2
	assert.InDelta(t, want, byPeptide["GILGFVFTL"], 1e-9)
}

func TestImputeForAllele_MICE(t *testing.T) {
	t.Parallel()

	ds := imputeTestDataset(t)
	im, err := ImputeForAllele(context.Background(), ds, "A0201", nil, ImputeMICE, 5000)
	require.NoError(t, err)
	require.Equal(t, 2, im.Len())

	for _, y := range im.Y {
		assert.GreaterOrEqual(t, y, 0.0)
		assert.LessOrEqual(t, y, 1.0)
	}
}

func TestImputeForAllele_ExcludesHeldOutPeptides(t *testing.T) {
	t.Parallel()

	ds := imputeTestDataset(t)
	exclude := map[string]struct{}{"GILGFVFTL": {}}

	im, err := ImputeForAllele(context.Background(), ds, "A0201", exclude, ImputeMean, 5000)
	require.NoError(t, err)
	require.Equal(t, []string{"SIINFEKLV"}, im.Peptides)
}

func TestImputeForAllele_Errors(t *testing.T) {
	t.Parallel()

	ds := imputeTestDataset(t)

	_, err := ImputeForAllele(context.Background(), ds, "A0201", nil, ImputeNone, 5000)
	require.Error(t, err)

	_, err = ImputeForAllele(context.Background(), ds, "A0201", nil, "knn", 5000)
	require.Error(t, err)

	_, err = ImputeForAllele(context.Background(), ds, "C0102", nil, ImputeMean, 5000)
	require.Error(t, err)
}

func TestImputeForAllele_DropsSparsePeptides(t *testing.T) {
	t.Parallel()

	ds := imputeTestDataset(t)
	// KAFSPEVIV is observed for a single allele only.
	a, _ := ds.Allele("A0101")
	enc, err := EncodePeptide("KAFSPEVIV")
	require.NoError(t, err)
	a.Peptides = append(a.Peptides, "KAFSPEVIV")
	a.X = append(a.X, enc)
	a.IC50 = append(a.IC50, 300)

	im, err := ImputeForAllele(context.Background(), ds, "A0201", nil, ImputeMean, 5000)
	require.NoError(t, err)
	assert.NotContains(t, im.Peptides, "KAFSPEVIV")
}
