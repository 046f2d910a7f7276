// Package neural implements the small feedforward regression networks the
// sweeps train: a one-hot ("hotshot") input variant and a variant with a
// trainable embedding table over peptide positions. Both use a sigmoid
// output unit, MSE loss, and minibatch SGD with momentum. Weights can be
// snapshotted and restored so a single model can be reset between
// cross-validation folds.
package neural

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Activation selects the hidden layer nonlinearity.
type Activation string

// Init selects the weight initialization scheme.
type Init string

// Loss selects the training loss.
type Loss string

const (
	ActivationReLU Activation = "relu"
	ActivationTanh Activation = "tanh"

	InitGlorotUniform Init = "glorot_uniform"
	InitGlorotNormal  Init = "glorot_normal"

	LossMSE Loss = "mse"
)

const (
	defaultLearningRate = 0.05
	defaultMomentum     = 0.9
	defaultBatchSize    = 32

	embeddingInitScale = 0.05
)

// Config describes a network. InputSize is the number of input columns: the
// peptide length for the embedding variant (index inputs), or the full
// one-hot width for the hotshot variant.
type Config struct {
	InputSize     int
	NumSymbols    int // embedding vocabulary size; unused by hotshot networks
	EmbeddingSize int
	HiddenSizes   []int
	Activation    Activation
	Init          Init
	Loss          Loss
	Dropout       float64

	LearningRate float64 // 0 selects the default
	Momentum     float64 // 0 selects the default
	BatchSize    int     // 0 selects the default
	Seed         int64
}

// Network is a feedforward regression model with output in [0, 1].
type Network struct {
	cfg       Config
	embedding *mat.Dense // NumSymbols x EmbeddingSize; nil for hotshot
	embVel    *mat.Dense
	layers    []*denseLayer
	rng       *rand.Rand
}

type denseLayer struct {
	w    *mat.Dense // in x out
	b    *mat.Dense // 1 x out
	velW *mat.Dense
	velB *mat.Dense
}

// NewHotshotNetwork builds a network over flattened one-hot inputs.
func NewHotshotNetwork(cfg Config) (*Network, error) {
	cfg.EmbeddingSize = 0
	return newNetwork(cfg)
}

// NewEmbeddingNetwork builds a network whose inputs are per-position symbol
// indices mapped through a trainable NumSymbols x EmbeddingSize table.
func NewEmbeddingNetwork(cfg Config) (*Network, error) {
	if cfg.EmbeddingSize <= 0 {
		return nil, errors.Errorf("embedding network requires a positive embedding size, got %d", cfg.EmbeddingSize)
	}
	if cfg.NumSymbols <= 0 {
		return nil, errors.Errorf("embedding network requires a positive symbol count, got %d", cfg.NumSymbols)
	}
	return newNetwork(cfg)
}

func newNetwork(cfg Config) (*Network, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("input size must be positive, got %d", cfg.InputSize)
	}
	switch cfg.Activation {
	case ActivationReLU, ActivationTanh:
	default:
		return nil, errors.Errorf("unknown activation %q", cfg.Activation)
	}
	switch cfg.Init {
	case InitGlorotUniform, InitGlorotNormal:
	default:
		return nil, errors.Errorf("unknown init %q", cfg.Init)
	}
	if cfg.Loss == "" {
		cfg.Loss = LossMSE
	}
	if cfg.Loss != LossMSE {
		return nil, errors.Errorf("unknown loss %q", cfg.Loss)
	}
	if cfg.Dropout < 0 || cfg.Dropout >= 1 {
		return nil, errors.Errorf("dropout must be in [0, 1), got %g", cfg.Dropout)
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = defaultLearningRate
	}
	if cfg.Momentum == 0 {
		cfg.Momentum = defaultMomentum
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	net := &Network{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}

	if cfg.EmbeddingSize > 0 {
		net.embedding = mat.NewDense(cfg.NumSymbols, cfg.EmbeddingSize, nil)
		net.embVel = mat.NewDense(cfg.NumSymbols, cfg.EmbeddingSize, nil)
		for i := 0; i < cfg.NumSymbols; i++ {
			for j := 0; j < cfg.EmbeddingSize; j++ {
				net.embedding.Set(i, j, (2*net.rng.Float64()-1)*embeddingInitScale)
			}
		}
	}

	sizes := append([]int{net.featureWidth()}, cfg.HiddenSizes...)
	sizes = append(sizes, 1)
	for l := 0; l < len(sizes)-1; l++ {
		in, out := sizes[l], sizes[l+1]
		layer := &denseLayer{
			w:    mat.NewDense(in, out, nil),
			b:    mat.NewDense(1, out, nil),
			velW: mat.NewDense(in, out, nil),
			velB: mat.NewDense(1, out, nil),
		}
		net.initWeights(layer.w, in, out)
		net.layers = append(net.layers, layer)
	}

	return net, nil
}

// featureWidth is the width of the first dense layer's input.
func (n *Network) featureWidth() int {
	if n.cfg.EmbeddingSize > 0 {
		return n.cfg.InputSize * n.cfg.EmbeddingSize
	}
	return n.cfg.InputSize
}

func (n *Network) initWeights(w *mat.Dense, fanIn, fanOut int) {
	switch n.cfg.Init {
	case InitGlorotUniform:
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		for i := 0; i < fanIn; i++ {
			for j := 0; j < fanOut; j++ {
				w.Set(i, j, (2*n.rng.Float64()-1)*limit)
			}
		}
	case InitGlorotNormal:
		std := math.Sqrt(2 / float64(fanIn+fanOut))
		for i := 0; i < fanIn; i++ {
			for j := 0; j < fanOut; j++ {
				w.Set(i, j, n.rng.NormFloat64()*std)
			}
		}
	}
}

// Weights returns deep copies of all trainable parameters: the embedding
// table (when present) followed by each layer's weight matrix and bias row.
func (n *Network) Weights() []*mat.Dense {
	var ws []*mat.Dense
	if n.embedding != nil {
		ws = append(ws, mat.DenseCopyOf(n.embedding))
	}
	for _, l := range n.layers {
		ws = append(ws, mat.DenseCopyOf(l.w), mat.DenseCopyOf(l.b))
	}
	return ws
}

// SetWeights restores parameters from a Weights snapshot and clears the
// momentum state, so training after a restore starts fresh.
func (n *Network) SetWeights(ws []*mat.Dense) error {
	want := 2 * len(n.layers)
	if n.embedding != nil {
		want++
	}
	if len(ws) != want {
		return errors.Errorf("weight snapshot has %d matrices, want %d", len(ws), want)
	}

	idx := 0
	assign := func(dst *mat.Dense) error {
		src := ws[idx]
		dr, dc := dst.Dims()
		sr, sc := src.Dims()
		if dr != sr || dc != sc {
			return errors.Errorf("weight matrix %d is %dx%d, want %dx%d", idx, sr, sc, dr, dc)
		}
		dst.Copy(src)
		idx++
		return nil
	}

	if n.embedding != nil {
		if err := assign(n.embedding); err != nil {
			return err
		}
		n.embVel.Zero()
	}
	for _, l := range n.layers {
		if err := assign(l.w); err != nil {
			return err
		}
		if err := assign(l.b); err != nil {
			return err
		}
		l.velW.Zero()
		l.velB.Zero()
	}
	return nil
}
