package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhcsweep/mhcsweep/internal/experiment"
	"github.com/mhcsweep/mhcsweep/internal/metrics"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

func sampleConfig(activation string, hidden int) searchspace.Config {
	return searchspace.Config{
		EmbeddingSize:   32,
		HiddenLayerSize: hidden,
		Activation:      activation,
		Loss:            "mse",
		Init:            "glorot_uniform",
		PretrainEpochs:  10,
		Epochs:          125,
		Dropout:         0.25,
		MaxIC50:         5000,
	}
}

func sampleRows() []experiment.AlleleResult {
	return []experiment.AlleleResult{
		{
			Allele:      "A0201",
			DatasetSize: 100,
			AUC:         metrics.Summary{Mean: 0.8, Median: 0.81, Std: 0.02, Min: 0.77, Max: 0.83},
			Accuracy:    metrics.Summary{Mean: 0.9, Median: 0.9, Std: 0.01, Min: 0.88, Max: 0.92},
			ConfigIdx:   0,
			Config:      sampleConfig("relu", 64),
		},
		{
			Allele:      "B0702",
			DatasetSize: 50,
			AUC:         metrics.Summary{Mean: 0.7, Median: 0.7, Std: 0.05, Min: 0.6, Max: 0.75},
			Accuracy:    metrics.Summary{Mean: 0.85, Median: 0.85, Std: 0.02, Min: 0.82, Max: 0.87},
			ConfigIdx:   1,
			Config:      sampleConfig("tanh", 512),
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestModelSelectionWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewModelSelectionWriter(path)
	require.NoError(t, err)

	rows := sampleRows()
	require.NoError(t, w.Append(rows[:1]))
	require.NoError(t, w.Append(rows[1:]))
	require.NoError(t, w.Close())

	records := readCSV(t, path)
	require.Len(t, records, 3, "header plus one row per result")
	assert.Equal(t, modelSelectionHeader, records[0])
	assert.Equal(t, "A0201", records[1][0])
	assert.Equal(t, "100", records[1][1])
	assert.Equal(t, "0.8", records[1][2])
	assert.Equal(t, "relu", records[1][15])
	assert.Equal(t, "B0702", records[2][0])
	assert.Equal(t, "512", records[2][14])
}

func TestModelSelectionWriter_HeaderOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	w, err := NewModelSelectionWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(sampleRows()[:1]))
	require.NoError(t, w.Append(nil), "an empty batch still flushes cleanly")
	require.NoError(t, w.Close())

	records := readCSV(t, path)
	require.Len(t, records, 2)
}

func TestWriteSensitivityCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sens.csv")
	rows := []experiment.SensitivityResult{
		{NumSamples: 21, Idx: 0, AUC: 0.75, F1: 0.5, Impute: false},
		{NumSamples: 21, Idx: 0, AUC: 0.8, F1: 0.6, Impute: true},
	}
	require.NoError(t, WriteSensitivityCSV(path, rows))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"num_samples", "idx", "auc", "f1", "impute"}, records[0])
	assert.Equal(t, []string{"21", "0", "0.75", "0.5", "false"}, records[1])
	assert.Equal(t, []string{"21", "0", "0.8", "0.6", "true"}, records[2])
}

func TestSummarizeByHyperparameter(t *testing.T) {
	t.Parallel()

	groups := SummarizeByHyperparameter(sampleRows())
	require.NotEmpty(t, groups)

	byKey := map[string]HyperparameterGroup{}
	for _, g := range groups {
		byKey[g.Hyperparameter+"="+g.Value] = g
	}

	relu, ok := byKey["activation=relu"]
	require.True(t, ok)
	assert.Equal(t, 1, relu.Configs)
	assert.InDelta(t, 0.8, relu.AUCQuartiles[1], 1e-9, "a single row is its own median")

	// Both rows share the same dropout, so that group spans two configs.
	dropout, ok := byKey["dropout_probability=0.25"]
	require.True(t, ok)
	assert.Equal(t, 2, dropout.Configs)
}

func TestLogSummary(t *testing.T) {
	t.Parallel()

	// Must not panic on an empty or populated summary.
	LogSummary(context.Background(), nil)
	LogSummary(context.Background(), SummarizeByHyperparameter(sampleRows()))
}

func TestPlotSensitivity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rows := []experiment.SensitivityResult{
		{NumSamples: 21, Idx: 0, AUC: 0.7, F1: 0.5},
		{NumSamples: 21, Idx: 0, AUC: 0.72, F1: 0.52},
		{NumSamples: 21, Idx: 0, AUC: 0.74, F1: 0.55, Impute: true},
		{NumSamples: 101, Idx: 1, AUC: 0.8, F1: 0.6},
		{NumSamples: 101, Idx: 1, AUC: 0.82, F1: 0.61},
		{NumSamples: 101, Idx: 1, AUC: 0.85, F1: 0.66, Impute: true},
	}

	paths, err := PlotSensitivity(dir, "A0201", sampleConfig("tanh", 64), "mice", rows)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	assert.Contains(t, paths[0], "A0201-auc-vs-nsamples-hidden-64-activation-tanh-impute-mice.png")
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestPlotSensitivity_NoRows(t *testing.T) {
	t.Parallel()

	_, err := PlotSensitivity(t.TempDir(), "A0201", sampleConfig("tanh", 64), "none", nil)
	require.Error(t, err)
}
