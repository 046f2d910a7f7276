// Package experiment drives the two sweeps: hyperparameter model selection
// with per-allele k-fold cross-validation, and single-allele dataset-size
// sensitivity. Both run sequentially: the model's weight state is the one
// shared mutable resource, explicitly snapshotted and restored between
// folds, alleles, and configurations.
package experiment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mhcsweep/mhcsweep/internal/dataset"
	"github.com/mhcsweep/mhcsweep/internal/neural"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

// Model is the slice of the predictor the sweeps depend on. neural.Network
// implements it; tests substitute stubs.
type Model interface {
	Fit(X [][]float64, y []float64, opts neural.FitOptions) error
	Predict(X [][]float64) ([]float64, error)
	Weights() []*mat.Dense
	SetWeights(ws []*mat.Dense) error
}

// NewModelFunc builds a fresh Model for one hyperparameter configuration.
type NewModelFunc func(cfg searchspace.Config, seed int64) (Model, error)

// NewNetwork is the default NewModelFunc, constructing the embedding or
// hotshot network the configuration calls for.
func NewNetwork(cfg searchspace.Config, seed int64) (Model, error) {
	ncfg := neural.Config{
		HiddenSizes: []int{cfg.HiddenLayerSize},
		Activation:  neural.Activation(cfg.Activation),
		Init:        neural.Init(cfg.Init),
		Loss:        neural.Loss(cfg.Loss),
		Dropout:     cfg.Dropout,
		Seed:        seed,
	}
	if cfg.EmbeddingSize > 0 {
		ncfg.InputSize = dataset.PeptideLength
		ncfg.NumSymbols = dataset.NumSymbols
		ncfg.EmbeddingSize = cfg.EmbeddingSize
		return neural.NewEmbeddingNetwork(ncfg)
	}
	ncfg.InputSize = dataset.PeptideLength * dataset.NumSymbols
	return neural.NewHotshotNetwork(ncfg)
}

// encodeInputs prepares an index matrix for the configured network family:
// passed through for embedding networks, one-hot expanded for hotshot.
func encodeInputs(cfg searchspace.Config, X [][]float64) [][]float64 {
	if cfg.EmbeddingSize > 0 {
		return X
	}
	return dataset.IndicesToHotshot(X, dataset.NumSymbols)
}

func fitOptions(epochs int) neural.FitOptions {
	return neural.FitOptions{Epochs: epochs}
}
