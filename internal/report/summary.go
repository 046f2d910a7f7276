package report

import (
	"context"
	"sort"
	"strconv"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
	"github.com/mhcsweep/mhcsweep/internal/experiment"
	"github.com/mhcsweep/mhcsweep/internal/metrics"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

// HyperparameterGroup aggregates all result rows sharing one value of one
// hyperparameter: the number of distinct configurations involved and the
// 25/50/75th percentiles of the per-allele AUC and accuracy means.
type HyperparameterGroup struct {
	Hyperparameter    string
	Value             string
	Configs           int
	AUCQuartiles      [3]float64
	AccuracyQuartiles [3]float64
}

var hyperparameterAccessors = []struct {
	name string
	get  func(searchspace.Config) string
}{
	{"embedding_size", func(c searchspace.Config) string { return strconv.Itoa(c.EmbeddingSize) }},
	{"hidden_layer_size", func(c searchspace.Config) string { return strconv.Itoa(c.HiddenLayerSize) }},
	{"activation", func(c searchspace.Config) string { return c.Activation }},
	{"loss", func(c searchspace.Config) string { return c.Loss }},
	{"init", func(c searchspace.Config) string { return c.Init }},
	{"n_pretrain_epochs", func(c searchspace.Config) string { return strconv.Itoa(c.PretrainEpochs) }},
	{"dropout_probability", func(c searchspace.Config) string { return formatFloat(c.Dropout) }},
	{"max_ic50", func(c searchspace.Config) string { return formatFloat(c.MaxIC50) }},
}

// SummarizeByHyperparameter groups the combined sweep rows by every
// hyperparameter in turn.
func SummarizeByHyperparameter(rows []experiment.AlleleResult) []HyperparameterGroup {
	var groups []HyperparameterGroup
	for _, hp := range hyperparameterAccessors {
		byValue := map[string][]experiment.AlleleResult{}
		for _, row := range rows {
			v := hp.get(row.Config)
			byValue[v] = append(byValue[v], row)
		}

		values := make([]string, 0, len(byValue))
		for v := range byValue {
			values = append(values, v)
		}
		sort.Strings(values)

		for _, v := range values {
			group := byValue[v]
			configs := map[int]struct{}{}
			aucs := make([]float64, 0, len(group))
			accuracies := make([]float64, 0, len(group))
			for _, row := range group {
				configs[row.ConfigIdx] = struct{}{}
				aucs = append(aucs, row.AUC.Mean)
				accuracies = append(accuracies, row.Accuracy.Mean)
			}
			groups = append(groups, HyperparameterGroup{
				Hyperparameter: hp.name,
				Value:          v,
				Configs:        len(configs),
				AUCQuartiles: [3]float64{
					metrics.Percentile(aucs, 25),
					metrics.Percentile(aucs, 50),
					metrics.Percentile(aucs, 75),
				},
				AccuracyQuartiles: [3]float64{
					metrics.Percentile(accuracies, 25),
					metrics.Percentile(accuracies, 50),
					metrics.Percentile(accuracies, 75),
				},
			})
		}
	}
	return groups
}

// LogSummary emits the hyperparameter summary through the context logger.
func LogSummary(ctx context.Context, groups []HyperparameterGroup) {
	logger := ctxlog.FromContext(ctx)
	for _, g := range groups {
		logger.Info("Hyperparameter summary.",
			"hyperparameter", g.Hyperparameter,
			"value", g.Value,
			"configs", g.Configs,
			"auc_q25", g.AUCQuartiles[0], "auc_q50", g.AUCQuartiles[1], "auc_q75", g.AUCQuartiles[2],
			"accuracy_q25", g.AccuracyQuartiles[0], "accuracy_q50", g.AccuracyQuartiles[1], "accuracy_q75", g.AccuracyQuartiles[2])
	}
}
