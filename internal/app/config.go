package app

import (
	"errors"
	"fmt"

	"github.com/mhcsweep/mhcsweep/internal/dataset"
)

// Sweep modes.
const (
	ModeModelSelection  = "model-selection"
	ModeSizeSensitivity = "size-sensitivity"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Mode string

	BindingDataCSV string // input measurements
	SearchPath     string // optional .hcl hyperparameter search space
	ResultsPath    string // output CSV

	// Model selection.
	CVFolds             int
	TrainingEpochs      int // 0 selects the automatic epoch rule
	MinSamplesPerAllele int
	MaxDropout          float64

	// Size sensitivity.
	Allele                string
	Repeats               int
	DatasetSizes          int
	MinTrainingSamples    int
	MaxTrainingSamples    int
	Imputation            string
	RandomNegativeSamples int
	PlotDir               string
	HiddenLayerSize       int
	EmbeddingSize         int
	Activation            string

	LogFormat  string
	LogLevel   string
	StatusPort int
	Seed       int64
}

// NewConfig validates a Config and returns it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BindingDataCSV == "" {
		return nil, errors.New("BindingDataCSV is a required configuration field and cannot be empty")
	}

	switch cfg.Mode {
	case ModeModelSelection:
		if cfg.ResultsPath == "" {
			return nil, errors.New("ResultsPath is required for model selection")
		}
		if cfg.CVFolds < 2 {
			return nil, fmt.Errorf("CVFolds must be at least 2, got %d", cfg.CVFolds)
		}
	case ModeSizeSensitivity:
		if cfg.Allele == "" {
			return nil, errors.New("Allele is required for size sensitivity")
		}
		if cfg.Repeats < 1 || cfg.DatasetSizes < 1 {
			return nil, fmt.Errorf("Repeats and DatasetSizes must be positive, got %d and %d", cfg.Repeats, cfg.DatasetSizes)
		}
		if cfg.MinTrainingSamples < 2 || cfg.MaxTrainingSamples < cfg.MinTrainingSamples {
			return nil, fmt.Errorf("bad training sample range [%d, %d]", cfg.MinTrainingSamples, cfg.MaxTrainingSamples)
		}
		switch cfg.Imputation {
		case dataset.ImputeNone, dataset.ImputeMean, dataset.ImputeMICE:
		default:
			return nil, fmt.Errorf("unknown imputation method %q", cfg.Imputation)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", cfg.Mode)
	}

	return &cfg, nil
}
