package report

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/mhcsweep/mhcsweep/internal/experiment"
	"github.com/mhcsweep/mhcsweep/internal/searchspace"
)

var (
	plainFill   = color.RGBA{R: 100, G: 149, B: 237, A: 255}
	imputedFill = color.RGBA{R: 219, G: 112, B: 147, A: 255}
)

// PlotSensitivity draws one box plot per metric (AUC and F1) of score versus
// training-set size, with separate boxes for the plain and imputed arms, and
// returns the written file paths.
func PlotSensitivity(dir, allele string, cfg searchspace.Config, imputeMethod string, rows []experiment.SensitivityResult) ([]string, error) {
	if len(rows) == 0 {
		return nil, errors.Errorf("no results to plot")
	}

	sizes := distinctSizes(rows)

	var paths []string
	for _, metric := range []string{"auc", "f1"} {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s %s vs training set size", allele, metric)
		p.X.Label.Text = fmt.Sprintf("# samples (subset of %s)", allele)
		p.Y.Label.Text = metric

		for s, size := range sizes {
			for _, impute := range []bool{false, true} {
				values := metricValues(rows, size, impute, metric)
				if len(values) == 0 {
					continue
				}
				loc := float64(s)
				if impute {
					loc += 0.25
				} else {
					loc -= 0.25
				}
				box, err := plotter.NewBoxPlot(vg.Points(16), loc, plotter.Values(values))
				if err != nil {
					return nil, errors.Wrapf(err, "box plot for size %d", size)
				}
				if impute {
					box.FillColor = imputedFill
				} else {
					box.FillColor = plainFill
				}
				p.Add(box)
			}
		}

		labels := make([]string, len(sizes))
		for i, size := range sizes {
			labels[i] = fmt.Sprintf("%d", size)
		}
		p.NominalX(labels...)

		name := fmt.Sprintf("%s-%s-vs-nsamples-hidden-%d-activation-%s-impute-%s.png",
			allele, metric, cfg.HiddenLayerSize, cfg.Activation, imputeMethod)
		path := filepath.Join(dir, name)
		if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
			return nil, errors.Wrapf(err, "saving plot %s", path)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func distinctSizes(rows []experiment.SensitivityResult) []int {
	seen := map[int]struct{}{}
	var sizes []int
	for _, row := range rows {
		if _, ok := seen[row.NumSamples]; !ok {
			seen[row.NumSamples] = struct{}{}
			sizes = append(sizes, row.NumSamples)
		}
	}
	sort.Ints(sizes)
	return sizes
}

func metricValues(rows []experiment.SensitivityResult, size int, impute bool, metric string) []float64 {
	var values []float64
	for _, row := range rows {
		if row.NumSamples != size || row.Impute != impute {
			continue
		}
		if metric == "auc" {
			values = append(values, row.AUC)
		} else {
			values = append(values, row.F1)
		}
	}
	return values
}
