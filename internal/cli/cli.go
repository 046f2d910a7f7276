package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mhcsweep/mhcsweep/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("mhcsweep", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
MHCSweep - experiment runner for peptide-MHC binding affinity predictors.

Usage:
  mhcsweep [options] [SEARCH_PATH]

Arguments:
  SEARCH_PATH
    Optional path to an .hcl file or a directory of .hcl files describing the
    hyperparameter search space (model-selection mode). Omitted, the built-in
    reference grid is used.

Options:
`)
		flagSet.PrintDefaults()
	}

	modeFlag := flagSet.String("mode", app.ModeModelSelection, "Sweep to run. Options: 'model-selection' or 'size-sensitivity'.")
	bindingDataFlag := flagSet.String("binding-data-csv", "", "Path to the binding affinity measurements CSV.")
	searchFlag := flagSet.String("search", "", "Path to the search space file or directory.")
	resultsFlag := flagSet.String("results", "", "Path for the output results CSV.")

	cvFoldsFlag := flagSet.Int("cv-folds", 5, "Number of cross-validation folds per allele.")
	epochsFlag := flagSet.Int("training-epochs", 125, "Training epochs per model. 0 targets a fixed weight-update count.")
	minSamplesFlag := flagSet.Int("min-samples-per-allele", 5, "Skip alleles with fewer measurements than this.")
	maxDropoutFlag := flagSet.Float64("max-dropout", 0.25, "Upper dropout probability exposed to the search space.")

	alleleFlag := flagSet.String("allele", "A0201", "Allele for the size-sensitivity sweep.")
	repeatsFlag := flagSet.Int("repeats", 3, "Repeats per training-set size.")
	sizesFlag := flagSet.Int("dataset-sizes", 10, "Number of log-spaced training-set sizes.")
	minTrainFlag := flagSet.Int("min-training-samples", 20, "Smallest training-set size.")
	maxTrainFlag := flagSet.Int("max-training-samples", 2000, "Largest training-set size, clamped to 2/3 of the allele data.")
	imputationFlag := flagSet.String("imputation", "mice", "Imputation method for the pretrained arm. Options: 'none', 'mean', 'mice'.")
	negativesFlag := flagSet.Int("random-negative-samples", 100, "Random non-binding peptides mixed into every training epoch.")
	plotDirFlag := flagSet.String("plot-dir", "", "Directory for sensitivity box plots. Empty disables plotting.")
	hiddenFlag := flagSet.Int("hidden-layer-size", 64, "Hidden layer width of the sensitivity model.")
	embeddingFlag := flagSet.Int("embedding-size", 64, "Embedding output size of the sensitivity model. 0 uses one-hot input.")
	activationFlag := flagSet.String("activation", "tanh", "Hidden layer activation of the sensitivity model.")

	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status server. 0 is disabled.")
	seedFlag := flagSet.Int64("seed", 0, "Seed for every random number generator in the sweep.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	searchPath := *searchFlag
	if searchPath == "" && flagSet.NArg() > 0 {
		searchPath = flagSet.Arg(0)
	}

	if *bindingDataFlag == "" {
		slog.Debug("No binding data provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	mode := strings.ToLower(*modeFlag)
	if mode != app.ModeModelSelection && mode != app.ModeSizeSensitivity {
		return nil, false, &ExitError{Code: 2, Message: "invalid mode: must be 'model-selection' or 'size-sensitivity'"}
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	imputation := strings.ToLower(*imputationFlag)
	switch imputation {
	case "none", "mean", "mice":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid imputation: must be 'none', 'mean', or 'mice'"}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Mode:           mode,
		BindingDataCSV: *bindingDataFlag,
		SearchPath:     searchPath,
		ResultsPath:    *resultsFlag,

		CVFolds:             *cvFoldsFlag,
		TrainingEpochs:      *epochsFlag,
		MinSamplesPerAllele: *minSamplesFlag,
		MaxDropout:          *maxDropoutFlag,

		Allele:                *alleleFlag,
		Repeats:               *repeatsFlag,
		DatasetSizes:          *sizesFlag,
		MinTrainingSamples:    *minTrainFlag,
		MaxTrainingSamples:    *maxTrainFlag,
		Imputation:            imputation,
		RandomNegativeSamples: *negativesFlag,
		PlotDir:               *plotDirFlag,
		HiddenLayerSize:       *hiddenFlag,
		EmbeddingSize:         *embeddingFlag,
		Activation:            *activationFlag,

		LogFormat:  logFormat,
		LogLevel:   logLevel,
		StatusPort: *statusPortFlag,
		Seed:       *seedFlag,
	})

	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "mode", config.Mode)
	return config, false, nil
}
