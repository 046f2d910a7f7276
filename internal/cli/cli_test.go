package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhcsweep/mhcsweep/internal/app"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"--binding-data-csv", "bdata.txt", "--results", "out.csv"}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.NotNil(t, cfg)

	assert.Equal(t, app.ModeModelSelection, cfg.Mode)
	assert.Equal(t, "bdata.txt", cfg.BindingDataCSV)
	assert.Equal(t, "out.csv", cfg.ResultsPath)
	assert.Equal(t, 5, cfg.CVFolds)
	assert.Equal(t, 125, cfg.TrainingEpochs)
	assert.Equal(t, 5, cfg.MinSamplesPerAllele)
	assert.InDelta(t, 0.25, cfg.MaxDropout, 1e-9)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 0, cfg.StatusPort)
}

func TestParse_SizeSensitivity(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{
		"--mode", "size-sensitivity",
		"--binding-data-csv", "bdata.txt",
		"--allele", "A0201",
		"--imputation", "MEAN",
		"--repeats", "5",
	}, out)
	require.NoError(t, err)
	require.False(t, shouldExit)

	assert.Equal(t, app.ModeSizeSensitivity, cfg.Mode)
	assert.Equal(t, "A0201", cfg.Allele)
	assert.Equal(t, "mean", cfg.Imputation, "imputation is lowercased")
	assert.Equal(t, 5, cfg.Repeats)
	assert.Equal(t, 10, cfg.DatasetSizes)
	assert.Equal(t, 20, cfg.MinTrainingSamples)
	assert.Equal(t, 2000, cfg.MaxTrainingSamples)
	assert.Equal(t, 100, cfg.RandomNegativeSamples)
	assert.Equal(t, 64, cfg.HiddenLayerSize)
	assert.Equal(t, 64, cfg.EmbeddingSize)
	assert.Equal(t, "tanh", cfg.Activation)
}

func TestParse_PositionalSearchPath(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{"--binding-data-csv", "bdata.txt", "--results", "out.csv", "grid.hcl"}, out)
	require.NoError(t, err)
	assert.Equal(t, "grid.hcl", cfg.SearchPath)
}

func TestParse_SearchFlagWinsOverPositional(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, _, err := Parse([]string{"--binding-data-csv", "bdata.txt", "--results", "out.csv", "--search", "a.hcl", "b.hcl"}, out)
	require.NoError(t, err)
	assert.Equal(t, "a.hcl", cfg.SearchPath)
}

func TestParse_NoBindingDataPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse(nil, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		args []string
	}{
		{"bad mode", []string{"--binding-data-csv", "b", "--results", "r", "--mode", "everything"}},
		{"bad log format", []string{"--binding-data-csv", "b", "--results", "r", "--log-format", "yaml"}},
		{"bad log level", []string{"--binding-data-csv", "b", "--results", "r", "--log-level", "loud"}},
		{"bad imputation", []string{"--binding-data-csv", "b", "--results", "r", "--imputation", "knn"}},
		{"missing results for model selection", []string{"--binding-data-csv", "b"}},
		{"unknown flag", []string{"--binding-data-csv", "b", "--results", "r", "--warp-speed"}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &bytes.Buffer{}
			_, _, err := Parse(tc.args, out)
			require.Error(t, err)

			exitErr, ok := err.(*ExitError)
			require.True(t, ok, "errors from Parse carry an exit code")
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestExitError_Message(t *testing.T) {
	t.Parallel()

	err := &ExitError{Code: 2, Message: "boom"}
	assert.Equal(t, "boom", err.Error())
}
