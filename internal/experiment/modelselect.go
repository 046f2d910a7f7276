package experiment

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
	"github.com/mhcsweep/mhcsweep/internal/dataset"
	"github.com/mhcsweep/mhcsweep/internal/metrics"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

// targetWeightUpdates drives the automatic epoch count when the caller
// passes zero training epochs.
const targetWeightUpdates = 250000

// AlleleResult is one row of the model-selection results table: the CV
// summary for a single allele under a single configuration.
type AlleleResult struct {
	Allele      string
	DatasetSize int
	AUC         metrics.Summary
	Accuracy    metrics.Summary
	ConfigIdx   int
	Config      searchspace.Config
}

// ModelSelectionOptions control the grid sweep.
type ModelSelectionOptions struct {
	CVFolds             int
	TrainingEpochs      int // 0 selects the automatic rule
	MinSamplesPerAllele int
	Seed                int64

	// NewModel defaults to NewNetwork.
	NewModel NewModelFunc

	// Progress, when non-nil, is called whenever the sweep advances to a
	// new configuration or allele.
	Progress func(configsDone, configsTotal int, allele string)
}

// RunModelSelection evaluates every configuration against every usable
// allele and hands each configuration's result rows to emit as soon as they
// are complete, so partial sweeps still produce output.
func RunModelSelection(ctx context.Context, ds *dataset.Dataset, configs []searchspace.Config, opts ModelSelectionOptions, emit func([]AlleleResult) error) error {
	logger := ctxlog.FromContext(ctx)

	if len(configs) == 0 {
		return errors.Errorf("no configurations to evaluate")
	}
	newModel := opts.NewModel
	if newModel == nil {
		newModel = NewNetwork
	}

	alleles := ds.Alleles()
	var elapsed []time.Duration

	for i, cfg := range configs {
		start := time.Now()
		logger.Info("Evaluating configuration.",
			"config", i+1, "total", len(configs),
			"embedding_size", cfg.EmbeddingSize, "hidden_layer_size", cfg.HiddenLayerSize,
			"activation", cfg.Activation, "init", cfg.Init,
			"dropout", cfg.Dropout, "pretrain_epochs", cfg.PretrainEpochs, "max_ic50", cfg.MaxIC50)

		progress := func(allele string) {
			if opts.Progress != nil {
				opts.Progress(i, len(configs), allele)
			}
		}
		rows, err := evaluateConfig(ctx, ds, alleles, i, cfg, opts, newModel, progress)
		if err != nil {
			return errors.Wrapf(err, "evaluating configuration %d", i)
		}
		if err := emit(rows); err != nil {
			return errors.Wrapf(err, "writing results for configuration %d", i)
		}

		elapsed = append(elapsed, time.Since(start))
		var mean time.Duration
		for _, d := range elapsed {
			mean += d
		}
		mean /= time.Duration(len(elapsed))
		remaining := time.Duration(len(configs)-i-1) * mean
		logger.Info("Configuration finished.",
			"config", i+1, "alleles", len(rows),
			"took", elapsed[len(elapsed)-1].Round(time.Millisecond),
			"estimated_remaining_hours", math.Round(remaining.Hours()*100)/100)
	}
	return nil
}

func evaluateConfig(ctx context.Context, ds *dataset.Dataset, alleles []string, configIdx int, cfg searchspace.Config, opts ModelSelectionOptions, newModel NewModelFunc, progress func(allele string)) ([]AlleleResult, error) {
	logger := ctxlog.FromContext(ctx)

	model, err := newModel(cfg, opts.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "building model")
	}
	initial := model.Weights()

	var rows []AlleleResult
	for _, name := range alleles {
		progress(name)

		a, _ := ds.Allele(name)
		if a.Len() < opts.MinSamplesPerAllele {
			logger.Warn("Skipping allele with too few samples.", "allele", name, "samples", a.Len())
			continue
		}

		X := encodeInputs(cfg, a.X)
		y := a.Targets(cfg.MaxIC50)

		if err := model.SetWeights(initial); err != nil {
			return nil, errors.Wrapf(err, "resetting weights for allele %s", name)
		}
		if cfg.PretrainEpochs > 0 {
			preX, preY := otherAlleleData(ds, alleles, name, cfg)
			if len(preX) > 0 {
				logger.Debug("Pretraining on other alleles.", "allele", name, "samples", len(preX), "epochs", cfg.PretrainEpochs)
				if err := model.Fit(preX, preY, fitOptions(cfg.PretrainEpochs)); err != nil {
					return nil, errors.Wrapf(err, "pretraining for allele %s", name)
				}
			}
		}

		aucs, accuracies, err := kfoldCrossValidation(ctx, model, X, y, a.IC50, cfg, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "cross-validating allele %s", name)
		}
		if len(aucs) == 0 {
			logger.Warn("Skipping allele: no usable CV folds.", "allele", name)
			continue
		}

		rows = append(rows, AlleleResult{
			Allele:      name,
			DatasetSize: a.Len(),
			AUC:         metrics.Summarize(aucs),
			Accuracy:    metrics.Summarize(accuracies),
			ConfigIdx:   configIdx,
			Config:      cfg,
		})
	}
	return rows, nil
}

// kfoldCrossValidation estimates per-fold AUC and accuracy for one allele,
// restoring the model to its pre-CV weights before every fold. Folds whose
// test labels are single-class are skipped with a notice.
func kfoldCrossValidation(ctx context.Context, model Model, X [][]float64, y []float64, ic50 []float64, cfg searchspace.Config, opts ModelSelectionOptions) (aucs, accuracies []float64, err error) {
	logger := ctxlog.FromContext(ctx)

	n := len(y)
	epochs := opts.TrainingEpochs
	if epochs == 0 {
		samplesPerFold := float64((opts.CVFolds-1)*n) / float64(opts.CVFolds)
		epochs = int(math.Ceil(targetWeightUpdates / samplesPerFold))
		logger.Info("Using automatic epoch count.", "epochs", epochs, "samples", n)
	}

	folds, err := dataset.KFold(n, opts.CVFolds, opts.Seed)
	if err != nil {
		return nil, nil, err
	}
	snapshot := model.Weights()

	for f, fold := range folds {
		labels := make([]bool, len(fold.Test))
		allStrong, noneStrong := true, true
		for i, idx := range fold.Test {
			labels[i] = ic50[idx] <= dataset.StrongBindingThreshold
			if labels[i] {
				noneStrong = false
			} else {
				allStrong = false
			}
		}
		if allStrong || noneStrong {
			logger.Warn("Skipping CV fold: all test labels identical.", "fold", f)
			continue
		}

		if err := model.SetWeights(snapshot); err != nil {
			return nil, nil, errors.Wrapf(err, "resetting weights for fold %d", f)
		}

		trainX := gather(X, fold.Train)
		trainY := gatherFloats(y, fold.Train)
		if err := model.Fit(trainX, trainY, fitOptions(epochs)); err != nil {
			return nil, nil, errors.Wrapf(err, "training fold %d", f)
		}

		preds, err := model.Predict(gather(X, fold.Test))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "predicting fold %d", f)
		}

		auc, err := metrics.AUC(labels, preds)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "scoring fold %d", f)
		}

		predicted := make([]bool, len(preds))
		for i, p := range preds {
			predicted[i] = dataset.IC50FromOutput(p, cfg.MaxIC50) <= dataset.StrongBindingThreshold
		}
		accuracy := metrics.Accuracy(labels, predicted)

		logger.Debug("CV fold scored.", "fold", f, "auc", auc, "accuracy", accuracy)
		aucs = append(aucs, auc)
		accuracies = append(accuracies, accuracy)
	}
	return aucs, accuracies, nil
}

// otherAlleleData stacks the encoded measurements of every allele except the
// one under evaluation, for pretraining.
func otherAlleleData(ds *dataset.Dataset, alleles []string, except string, cfg searchspace.Config) (X [][]float64, y []float64) {
	for _, name := range alleles {
		if name == except {
			continue
		}
		a, _ := ds.Allele(name)
		X = append(X, encodeInputs(cfg, a.X)...)
		y = append(y, a.Targets(cfg.MaxIC50)...)
	}
	return X, y
}

func gather(X [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = X[j]
	}
	return out
}

func gatherFloats(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}
