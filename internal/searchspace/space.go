// Package searchspace defines the hyperparameter grid for model selection.
// The grid can be declared in an HCL file with a single `search` block; any
// attribute left out falls back to the built-in default grid. The CLI's
// --max-dropout value is exposed to the file as the `max_dropout` variable.
package searchspace

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/mhcsweep/mhcsweep/internal/ctxlog"
	"github.com/mhcsweep/mhcsweep/internal/fsutil"
)

// Config is one fully specified hyperparameter configuration. An
// EmbeddingSize of zero selects the one-hot "hotshot" network.
type Config struct {
	EmbeddingSize   int
	HiddenLayerSize int
	Activation      string
	Loss            string
	Init            string
	PretrainEpochs  int
	Epochs          int
	Dropout         float64
	MaxIC50         float64
}

// Space is the grid of hyperparameter values to sweep. The zero value of
// any field means "use the default for that axis".
type Space struct {
	Activations      []string  `hcl:"activations,optional"`
	Losses           []string  `hcl:"losses,optional"`
	Inits            []string  `hcl:"inits,optional"`
	PretrainEpochs   []int     `hcl:"pretrain_epochs,optional"`
	HiddenLayerSizes []int     `hcl:"hidden_layer_sizes,optional"`
	EmbeddingSizes   []int     `hcl:"embedding_sizes,optional"`
	Dropouts         []float64 `hcl:"dropouts,optional"`
	MaxIC50s         []float64 `hcl:"max_ic50,optional"`
}

// Default returns the reference grid: 128 configurations.
func Default(maxDropout float64) *Space {
	return &Space{
		Activations:      []string{"relu", "tanh"},
		Losses:           []string{"mse"},
		Inits:            []string{"glorot_uniform", "glorot_normal"},
		PretrainEpochs:   []int{0, 10},
		HiddenLayerSizes: []int{64, 512},
		EmbeddingSizes:   []int{0, 64},
		Dropouts:         []float64{0, maxDropout},
		MaxIC50s:         []float64{5000, 20000},
	}
}

type fileRoot struct {
	Searches []*Space `hcl:"search,block"`
}

// Load reads the search space from an .hcl file or a directory of them.
// Exactly one `search` block must exist across the discovered files; absent
// attributes fall back to the default grid.
func Load(ctx context.Context, path string, maxDropout float64) (*Space, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to find search files in %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl search files found in %s", path)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"max_dropout": cty.NumberFloatVal(maxDropout),
		},
	}

	parser := hclparse.NewParser()
	var spaces []*Space
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		spaces = append(spaces, root.Searches...)
	}

	if len(spaces) == 0 {
		return nil, fmt.Errorf("no search block found in %s", path)
	}
	if len(spaces) > 1 {
		return nil, fmt.Errorf("found %d search blocks in %s, want exactly one", len(spaces), path)
	}

	space := spaces[0]
	space.fillDefaults(maxDropout)
	if err := space.validate(); err != nil {
		return nil, fmt.Errorf("invalid search space in %s: %w", path, err)
	}

	logger.Info("Search space loaded.", "path", path, "configurations", len(space.Enumerate(0)))
	return space, nil
}

func (s *Space) fillDefaults(maxDropout float64) {
	def := Default(maxDropout)
	if len(s.Activations) == 0 {
		s.Activations = def.Activations
	}
	if len(s.Losses) == 0 {
		s.Losses = def.Losses
	}
	if len(s.Inits) == 0 {
		s.Inits = def.Inits
	}
	if len(s.PretrainEpochs) == 0 {
		s.PretrainEpochs = def.PretrainEpochs
	}
	if len(s.HiddenLayerSizes) == 0 {
		s.HiddenLayerSizes = def.HiddenLayerSizes
	}
	if len(s.EmbeddingSizes) == 0 {
		s.EmbeddingSizes = def.EmbeddingSizes
	}
	if len(s.Dropouts) == 0 {
		s.Dropouts = def.Dropouts
	}
	if len(s.MaxIC50s) == 0 {
		s.MaxIC50s = def.MaxIC50s
	}
}

func (s *Space) validate() error {
	for _, a := range s.Activations {
		if a != "relu" && a != "tanh" {
			return fmt.Errorf("unknown activation %q", a)
		}
	}
	for _, l := range s.Losses {
		if l != "mse" {
			return fmt.Errorf("unknown loss %q", l)
		}
	}
	for _, i := range s.Inits {
		if i != "glorot_uniform" && i != "glorot_normal" {
			return fmt.Errorf("unknown init %q", i)
		}
	}
	for _, e := range s.PretrainEpochs {
		if e < 0 {
			return fmt.Errorf("pretrain epochs must not be negative, got %d", e)
		}
	}
	for _, h := range s.HiddenLayerSizes {
		if h <= 0 {
			return fmt.Errorf("hidden layer size must be positive, got %d", h)
		}
	}
	for _, e := range s.EmbeddingSizes {
		if e < 0 {
			return fmt.Errorf("embedding size must not be negative, got %d", e)
		}
	}
	for _, d := range s.Dropouts {
		if d < 0 || d >= 1 {
			return fmt.Errorf("dropout must be in [0, 1), got %g", d)
		}
	}
	for _, m := range s.MaxIC50s {
		if m <= 1 {
			return fmt.Errorf("max_ic50 must be greater than 1, got %g", m)
		}
	}
	return nil
}

// Enumerate expands the grid into the full configuration list, nesting the
// axes in a fixed order so config indices are stable across runs.
func (s *Space) Enumerate(epochs int) []Config {
	var configs []Config
	for _, activation := range s.Activations {
		for _, loss := range s.Losses {
			for _, init := range s.Inits {
				for _, pretrain := range s.PretrainEpochs {
					for _, hidden := range s.HiddenLayerSizes {
						for _, embedding := range s.EmbeddingSizes {
							for _, dropout := range s.Dropouts {
								for _, maxIC50 := range s.MaxIC50s {
									configs = append(configs, Config{
										EmbeddingSize:   embedding,
										HiddenLayerSize: hidden,
										Activation:      activation,
										Loss:            loss,
										Init:            init,
										PretrainEpochs:  pretrain,
										Epochs:          epochs,
										Dropout:         dropout,
										MaxIC50:         maxIC50,
									})
								}
							}
						}
					}
				}
			}
		}
	}
	return configs
}
