package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validModelSelection() Config {
	return Config{
		Mode:                ModeModelSelection,
		BindingDataCSV:      "bdata.txt",
		ResultsPath:         "out.csv",
		CVFolds:             5,
		TrainingEpochs:      125,
		MinSamplesPerAllele: 5,
		MaxDropout:          0.25,
		LogFormat:           "text",
		LogLevel:            "info",
	}
}

func validSizeSensitivity() Config {
	return Config{
		Mode:               ModeSizeSensitivity,
		BindingDataCSV:     "bdata.txt",
		Allele:             "A0201",
		Repeats:            3,
		DatasetSizes:       10,
		MinTrainingSamples: 20,
		MaxTrainingSamples: 2000,
		Imputation:         "mice",
		LogFormat:          "text",
		LogLevel:           "info",
	}
}

func TestNewConfig_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(validModelSelection())
	require.NoError(t, err)
	assert.Equal(t, ModeModelSelection, cfg.Mode)

	cfg, err = NewConfig(validSizeSensitivity())
	require.NoError(t, err)
	assert.Equal(t, ModeSizeSensitivity, cfg.Mode)
}

func TestNewConfig_Invalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		mutate func() Config
	}{
		{"missing binding data", func() Config {
			c := validModelSelection()
			c.BindingDataCSV = ""
			return c
		}},
		{"missing results path", func() Config {
			c := validModelSelection()
			c.ResultsPath = ""
			return c
		}},
		{"single CV fold", func() Config {
			c := validModelSelection()
			c.CVFolds = 1
			return c
		}},
		{"unknown mode", func() Config {
			c := validModelSelection()
			c.Mode = "benchmark"
			return c
		}},
		{"missing allele", func() Config {
			c := validSizeSensitivity()
			c.Allele = ""
			return c
		}},
		{"zero repeats", func() Config {
			c := validSizeSensitivity()
			c.Repeats = 0
			return c
		}},
		{"inverted sample range", func() Config {
			c := validSizeSensitivity()
			c.MaxTrainingSamples = 10
			return c
		}},
		{"unknown imputation", func() Config {
			c := validSizeSensitivity()
			c.Imputation = "knn"
			return c
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewConfig(tc.mutate())
			require.Error(t, err)
		})
	}
}

func TestNewLogger_Formats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newLogger("debug", "json", &buf)
	require.NotNil(t, logger)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	logger = newLogger("warn", "text", &buf)
	logger.Info("dropped")
	assert.Empty(t, buf.String(), "info is below the warn level")
	logger.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
