package experiment

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
	"github.com/mhcsweep/mhcsweep/internal/dataset"
	"github.com/mhcsweep/mhcsweep/internal/metrics"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

// SensitivityResult is one row of the dataset-size sensitivity table.
type SensitivityResult struct {
	NumSamples int
	Idx        int
	AUC        float64
	F1         float64
	Impute     bool
}

// SensitivityOptions control the dataset-size sweep.
type SensitivityOptions struct {
	Allele  string
	Repeats int

	NumSizes           int
	MinTrainingSamples int
	MaxTrainingSamples int

	TrainingEpochs        int
	RandomNegativeSamples int

	// Imputation is one of dataset.ImputeNone, ImputeMean, ImputeMICE.
	// Anything but none adds a second, pretrained arm per run.
	Imputation string

	Seed int64

	// NewModel defaults to NewNetwork.
	NewModel NewModelFunc

	// Progress, when non-nil, is called after every completed run.
	Progress func(done, total int, allele string)
}

// RunSizeSensitivity trains the configured predictor on log-spaced
// training-set sizes for one allele, with repeats, scoring AUC and F1 on the
// held-out remainder. With imputation enabled each run is repeated from the
// initial weights with cross-allele imputation pretraining.
func RunSizeSensitivity(ctx context.Context, ds *dataset.Dataset, cfg searchspace.Config, opts SensitivityOptions) ([]SensitivityResult, error) {
	logger := ctxlog.FromContext(ctx)

	allele := dataset.NormalizeAlleleName(opts.Allele)
	a, ok := ds.Allele(allele)
	if !ok {
		return nil, errors.Errorf("allele %s not present in dataset", allele)
	}
	n := a.Len()

	// The subsampled training set may use at most 2/3 of the allele's data.
	maxTrain := opts.MaxTrainingSamples
	if limit := 2 * n / 3; limit < maxTrain {
		maxTrain = limit
	}
	if maxTrain < opts.MinTrainingSamples {
		return nil, errors.Errorf("allele %s has %d samples, too few for training sets of %d", allele, n, opts.MinTrainingSamples)
	}
	sizes := dataset.SubsampleSizes(opts.MinTrainingSamples, maxTrain, opts.NumSizes)

	newModel := opts.NewModel
	if newModel == nil {
		newModel = NewNetwork
	}
	model, err := newModel(cfg, opts.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "building model")
	}
	initial := model.Weights()

	rng := rand.New(rand.NewSource(opts.Seed))
	labels := a.Labels()
	total := len(sizes) * opts.Repeats

	var results []SensitivityResult
	done := 0
	for i, nTrain := range sizes {
		for r := 0; r < opts.Repeats; r++ {
			logger.Info("Training model for sample size.",
				"allele", allele, "size_index", i+1, "sizes", len(sizes),
				"repeat", r+1, "train_samples", nTrain, "total_samples", n)

			trainIdx, testIdx, err := dataset.StratifiedSplit(labels, nTrain, rng)
			if err != nil {
				return nil, errors.Wrapf(err, "splitting %d training samples", nTrain)
			}
			train := a.Subset(trainIdx)
			test := a.Subset(testIdx)

			testLabels := test.Labels()
			if singleClass(testLabels) {
				logger.Warn("Skipping run: all test labels identical.", "train_samples", nTrain, "repeat", r)
				done++
				continue
			}

			trainX := encodeInputs(cfg, train.X)
			trainY := train.Targets(cfg.MaxIC50)
			sampler := negativeSampler(cfg, rng, opts.RandomNegativeSamples)

			if err := model.SetWeights(initial); err != nil {
				return nil, errors.Wrap(err, "resetting weights")
			}
			auc, f1, err := trainAndScore(model, trainX, trainY, test, cfg, opts.TrainingEpochs, sampler)
			if err != nil {
				return nil, errors.Wrapf(err, "training without imputation at size %d", nTrain)
			}
			logger.Info("Scored run.", "allele", allele, "impute", false, "train_samples", nTrain, "auc", auc, "f1", f1)
			results = append(results, SensitivityResult{NumSamples: nTrain, Idx: i, AUC: auc, F1: f1, Impute: false})

			if opts.Imputation != "" && opts.Imputation != dataset.ImputeNone {
				exclude := make(map[string]struct{}, len(test.Peptides))
				for _, p := range test.Peptides {
					exclude[p] = struct{}{}
				}
				imputed, err := dataset.ImputeForAllele(ctx, ds, allele, exclude, opts.Imputation, cfg.MaxIC50)
				if err != nil {
					logger.Warn("Skipping imputed arm.", "error", err)
					done++
					continue
				}

				if err := model.SetWeights(initial); err != nil {
					return nil, errors.Wrap(err, "resetting weights")
				}
				pretrain := cfg.PretrainEpochs
				if pretrain <= 0 {
					pretrain = 10
				}
				if err := model.Fit(encodeInputs(cfg, imputed.X), imputed.Y, fitOptions(pretrain)); err != nil {
					return nil, errors.Wrap(err, "pretraining on imputed data")
				}
				auc, f1, err := trainAndScore(model, trainX, trainY, test, cfg, opts.TrainingEpochs, sampler)
				if err != nil {
					return nil, errors.Wrapf(err, "training with imputation at size %d", nTrain)
				}
				logger.Info("Scored run.", "allele", allele, "impute", true, "train_samples", nTrain, "auc", auc, "f1", f1)
				results = append(results, SensitivityResult{NumSamples: nTrain, Idx: i, AUC: auc, F1: f1, Impute: true})
			}

			done++
			if opts.Progress != nil {
				opts.Progress(done, total, allele)
			}
		}
	}
	return results, nil
}

// trainAndScore fits the model and scores the held-out set. AUC uses the
// negated predicted IC50 as the score so stronger predicted binding ranks
// higher; F1 thresholds the predicted IC50 at the strong-binder cutoff.
func trainAndScore(model Model, trainX [][]float64, trainY []float64, test *dataset.AlleleData, cfg searchspace.Config, epochs int, sampler func() ([][]float64, []float64)) (auc, f1 float64, err error) {
	opts := fitOptions(epochs)
	opts.NegativeSampler = sampler
	if err := model.Fit(trainX, trainY, opts); err != nil {
		return 0, 0, err
	}

	preds, err := model.Predict(encodeInputs(cfg, test.X))
	if err != nil {
		return 0, 0, err
	}

	labels := test.Labels()
	scores := make([]float64, len(preds))
	predicted := make([]bool, len(preds))
	for i, p := range preds {
		ic50 := dataset.IC50FromOutput(p, cfg.MaxIC50)
		scores[i] = -ic50
		predicted[i] = ic50 <= dataset.StrongBindingThreshold
	}

	auc, err = metrics.AUC(labels, scores)
	if err != nil {
		return 0, 0, err
	}
	return auc, metrics.F1(labels, predicted), nil
}

// negativeSampler returns a per-epoch source of random negative peptides, or
// nil when disabled.
func negativeSampler(cfg searchspace.Config, rng *rand.Rand, n int) func() ([][]float64, []float64) {
	if n <= 0 {
		return nil
	}
	return func() ([][]float64, []float64) {
		X := encodeInputs(cfg, dataset.RandomPeptideIndices(rng, n))
		return X, make([]float64, n)
	}
}

func singleClass(labels []bool) bool {
	if len(labels) == 0 {
		return true
	}
	first := labels[0]
	for _, l := range labels[1:] {
		if l != first {
			return false
		}
	}
	return true
}
