package app

import (
	"context"
	"fmt"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
	"github.com/mhcsweep/mhcsweep/internal/dataset"
	"github.com/mhcsweep/mhcsweep/internal/experiment"
	"github.com/mhcsweep/mhcsweep/internal/report"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

// Run executes the configured sweep. It blocks until the sweep finishes or
// fails.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	if a.config.StatusPort > 0 {
		a.startStatusServer(ctx, a.config.StatusPort)
	}

	switch a.config.Mode {
	case ModeModelSelection:
		return a.runModelSelection(ctx)
	case ModeSizeSensitivity:
		return a.runSizeSensitivity(ctx)
	default:
		return fmt.Errorf("unknown mode %q", a.config.Mode)
	}
}

func (a *App) runModelSelection(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	ds, err := dataset.Load(ctx, a.config.BindingDataCSV)
	if err != nil {
		return fmt.Errorf("loading binding data: %w", err)
	}
	logger.Info("Loaded binding data.", "alleles", len(ds.Alleles()), "measurements", ds.Size())

	var space *searchspace.Space
	if a.config.SearchPath != "" {
		space, err = searchspace.Load(ctx, a.config.SearchPath, a.config.MaxDropout)
		if err != nil {
			return fmt.Errorf("loading search space: %w", err)
		}
	} else {
		space = searchspace.Default(a.config.MaxDropout)
	}
	configs := space.Enumerate(a.config.TrainingEpochs)
	logger.Info("Enumerated search space.", "configurations", len(configs))

	writer, err := report.NewModelSelectionWriter(a.config.ResultsPath)
	if err != nil {
		return err
	}
	defer writer.Close()

	var all []experiment.AlleleResult
	opts := experiment.ModelSelectionOptions{
		CVFolds:             a.config.CVFolds,
		TrainingEpochs:      a.config.TrainingEpochs,
		MinSamplesPerAllele: a.config.MinSamplesPerAllele,
		Seed:                a.config.Seed,
		Progress:            a.progress.update,
	}
	err = experiment.RunModelSelection(ctx, ds, configs, opts, func(rows []experiment.AlleleResult) error {
		all = append(all, rows...)
		return writer.Append(rows)
	})
	if err != nil {
		return err
	}

	report.LogSummary(ctx, report.SummarizeByHyperparameter(all))
	logger.Info("Model selection finished.", "results", a.config.ResultsPath, "rows", len(all))
	return nil
}

func (a *App) runSizeSensitivity(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	ds, err := dataset.Load(ctx, a.config.BindingDataCSV)
	if err != nil {
		return fmt.Errorf("loading binding data: %w", err)
	}
	logger.Info("Loaded binding data.", "alleles", len(ds.Alleles()), "measurements", ds.Size())

	cfg := searchspace.Config{
		EmbeddingSize:   a.config.EmbeddingSize,
		HiddenLayerSize: a.config.HiddenLayerSize,
		Activation:      a.config.Activation,
		Loss:            "mse",
		Init:            "glorot_uniform",
		PretrainEpochs:  10,
		Epochs:          a.config.TrainingEpochs,
		Dropout:         0,
		MaxIC50:         5000,
	}

	opts := experiment.SensitivityOptions{
		Allele:                a.config.Allele,
		Repeats:               a.config.Repeats,
		NumSizes:              a.config.DatasetSizes,
		MinTrainingSamples:    a.config.MinTrainingSamples,
		MaxTrainingSamples:    a.config.MaxTrainingSamples,
		TrainingEpochs:        a.config.TrainingEpochs,
		RandomNegativeSamples: a.config.RandomNegativeSamples,
		Imputation:            a.config.Imputation,
		Seed:                  a.config.Seed,
		Progress:              a.progress.update,
	}
	results, err := experiment.RunSizeSensitivity(ctx, ds, cfg, opts)
	if err != nil {
		return err
	}

	allele := dataset.NormalizeAlleleName(a.config.Allele)
	resultsPath := a.config.ResultsPath
	if resultsPath == "" {
		resultsPath = fmt.Sprintf("%s-size-sensitivity.csv", allele)
	}
	if err := report.WriteSensitivityCSV(resultsPath, results); err != nil {
		return err
	}
	logger.Info("Size sensitivity finished.", "results", resultsPath, "rows", len(results))

	if a.config.PlotDir != "" {
		paths, err := report.PlotSensitivity(a.config.PlotDir, allele, cfg, a.config.Imputation, results)
		if err != nil {
			return fmt.Errorf("plotting: %w", err)
		}
		for _, p := range paths {
			logger.Info("Wrote plot.", "path", p)
		}
	}
	return nil
}
