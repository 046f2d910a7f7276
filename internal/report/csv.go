// Package report persists sweep results: the model-selection and
// sensitivity CSV tables, the per-hyperparameter quartile summary, and the
// sensitivity box plots.
package report

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"github.com/mhcsweep/mhcsweep/internal/experiment"
)

var modelSelectionHeader = []string{
	"allele_name", "dataset_size",
	"auc_mean", "auc_median", "auc_std", "auc_min", "auc_max",
	"accuracy_mean", "accuracy_median", "accuracy_std", "accuracy_min", "accuracy_max",
	"config_idx",
	"embedding_size", "hidden_layer_size", "activation", "loss", "init",
	"n_pretrain_epochs", "n_epochs", "dropout_probability", "max_ic50",
}

// ModelSelectionWriter appends per-allele result rows to a CSV file,
// flushing after every batch so an interrupted sweep still leaves a usable
// table behind.
type ModelSelectionWriter struct {
	f           *os.File
	w           *csv.Writer
	wroteHeader bool
}

// NewModelSelectionWriter creates (truncating) the results file.
func NewModelSelectionWriter(path string) (*ModelSelectionWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "creating results file %s", path)
	}
	return &ModelSelectionWriter{f: f, w: csv.NewWriter(f)}, nil
}

// Append writes one configuration's rows and flushes.
func (m *ModelSelectionWriter) Append(rows []experiment.AlleleResult) error {
	if !m.wroteHeader {
		if err := m.w.Write(modelSelectionHeader); err != nil {
			return errors.Wrap(err, "writing results header")
		}
		m.wroteHeader = true
	}
	for _, row := range rows {
		record := []string{
			row.Allele,
			strconv.Itoa(row.DatasetSize),
			formatFloat(row.AUC.Mean), formatFloat(row.AUC.Median), formatFloat(row.AUC.Std),
			formatFloat(row.AUC.Min), formatFloat(row.AUC.Max),
			formatFloat(row.Accuracy.Mean), formatFloat(row.Accuracy.Median), formatFloat(row.Accuracy.Std),
			formatFloat(row.Accuracy.Min), formatFloat(row.Accuracy.Max),
			strconv.Itoa(row.ConfigIdx),
			strconv.Itoa(row.Config.EmbeddingSize),
			strconv.Itoa(row.Config.HiddenLayerSize),
			row.Config.Activation,
			row.Config.Loss,
			row.Config.Init,
			strconv.Itoa(row.Config.PretrainEpochs),
			strconv.Itoa(row.Config.Epochs),
			formatFloat(row.Config.Dropout),
			formatFloat(row.Config.MaxIC50),
		}
		if err := m.w.Write(record); err != nil {
			return errors.Wrap(err, "writing results row")
		}
	}
	m.w.Flush()
	return errors.Wrap(m.w.Error(), "flushing results")
}

// Close flushes and closes the underlying file.
func (m *ModelSelectionWriter) Close() error {
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		m.f.Close()
		return errors.Wrap(err, "flushing results")
	}
	return m.f.Close()
}

// WriteSensitivityCSV writes the dataset-size sensitivity table.
func WriteSensitivityCSV(path string, rows []experiment.SensitivityResult) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating results file %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"num_samples", "idx", "auc", "f1", "impute"}); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, row := range rows {
		record := []string{
			strconv.Itoa(row.NumSamples),
			strconv.Itoa(row.Idx),
			formatFloat(row.AUC),
			formatFloat(row.F1),
			strconv.FormatBool(row.Impute),
		}
		if err := w.Write(record); err != nil {
			return errors.Wrap(err, "writing row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flushing results")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
