package neural

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FitOptions controls a single training run.
type FitOptions struct {
	Epochs int

	// NegativeSampler, when non-nil, is called once per epoch; the rows it
	// returns are mixed into that epoch's training data. The sweeps use it
	// to inject fresh random negative peptides every pass.
	NegativeSampler func() (X [][]float64, y []float64)
}

// Fit trains the network on X and y for the configured number of epochs,
// visiting shuffled minibatches.
func (n *Network) Fit(X [][]float64, y []float64, opts FitOptions) error {
	if len(X) == 0 {
		return errors.Errorf("no training data")
	}
	if len(X) != len(y) {
		return errors.Errorf("%d training rows but %d targets", len(X), len(y))
	}
	if opts.Epochs <= 0 {
		return errors.Errorf("epochs must be positive, got %d", opts.Epochs)
	}

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		epochX, epochY := X, y
		if opts.NegativeSampler != nil {
			negX, negY := opts.NegativeSampler()
			if len(negX) != len(negY) {
				return errors.Errorf("negative sampler returned %d rows but %d targets", len(negX), len(negY))
			}
			if len(negX) > 0 {
				epochX = make([][]float64, 0, len(X)+len(negX))
				epochX = append(append(epochX, X...), negX...)
				epochY = make([]float64, 0, len(y)+len(negY))
				epochY = append(append(epochY, y...), negY...)
			}
		}

		perm := n.rng.Perm(len(epochX))
		for start := 0; start < len(perm); start += n.cfg.BatchSize {
			end := start + n.cfg.BatchSize
			if end > len(perm) {
				end = len(perm)
			}
			if err := n.trainBatch(epochX, epochY, perm[start:end]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Predict runs a forward pass without dropout and returns the sigmoid
// outputs, one per input row.
func (n *Network) Predict(X [][]float64) ([]float64, error) {
	if len(X) == 0 {
		return nil, nil
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	features, err := n.featureMatrix(X, idx)
	if err != nil {
		return nil, err
	}

	activations, _, _ := n.forward(features, false)
	out := activations[len(activations)-1]
	preds := make([]float64, len(X))
	for i := range preds {
		preds[i] = out.At(i, 0)
	}
	return preds, nil
}

// featureMatrix assembles the first dense layer's input for the selected
// rows: a copy of the one-hot rows, or gathered embedding vectors.
func (n *Network) featureMatrix(X [][]float64, idx []int) (*mat.Dense, error) {
	features := mat.NewDense(len(idx), n.featureWidth(), nil)

	for i, row := range idx {
		x := X[row]
		if len(x) != n.cfg.InputSize {
			return nil, errors.Errorf("input row %d has %d columns, want %d", row, len(x), n.cfg.InputSize)
		}
		if n.embedding == nil {
			for j, v := range x {
				features.Set(i, j, v)
			}
			continue
		}
		for p, v := range x {
			sym := int(v)
			if sym < 0 || sym >= n.cfg.NumSymbols {
				return nil, errors.Errorf("input row %d position %d has symbol index %d outside [0, %d)", row, p, sym, n.cfg.NumSymbols)
			}
			for d := 0; d < n.cfg.EmbeddingSize; d++ {
				features.Set(i, p*n.cfg.EmbeddingSize+d, n.embedding.At(sym, d))
			}
		}
	}
	return features, nil
}

// forward runs the dense stack, returning per-layer activations (index 0 is
// the input), pre-activations, and dropout masks (nil entries where no mask
// was applied).
func (n *Network) forward(features *mat.Dense, train bool) (activations, preActivations []*mat.Dense, masks []*mat.Dense) {
	activations = []*mat.Dense{features}
	masks = make([]*mat.Dense, len(n.layers))

	a := features
	for l, layer := range n.layers {
		rows, _ := a.Dims()
		_, out := layer.w.Dims()

		z := mat.NewDense(rows, out, nil)
		z.Mul(a, layer.w)
		for i := 0; i < rows; i++ {
			for j := 0; j < out; j++ {
				z.Set(i, j, z.At(i, j)+layer.b.At(0, j))
			}
		}
		preActivations = append(preActivations, z)

		next := mat.NewDense(rows, out, nil)
		if l == len(n.layers)-1 {
			for i := 0; i < rows; i++ {
				for j := 0; j < out; j++ {
					next.Set(i, j, sigmoid(z.At(i, j)))
				}
			}
		} else {
			for i := 0; i < rows; i++ {
				for j := 0; j < out; j++ {
					next.Set(i, j, n.activate(z.At(i, j)))
				}
			}
			if train && n.cfg.Dropout > 0 {
				keep := 1 - n.cfg.Dropout
				mask := mat.NewDense(rows, out, nil)
				for i := 0; i < rows; i++ {
					for j := 0; j < out; j++ {
						if n.rng.Float64() < keep {
							mask.Set(i, j, 1/keep)
						}
					}
				}
				next.MulElem(next, mask)
				masks[l] = mask
			}
		}
		activations = append(activations, next)
		a = next
	}
	return activations, preActivations, masks
}

// trainBatch runs one forward/backward pass over the selected rows and
// applies the SGD updates.
func (n *Network) trainBatch(X [][]float64, y []float64, idx []int) error {
	features, err := n.featureMatrix(X, idx)
	if err != nil {
		return err
	}

	activations, preActivations, masks := n.forward(features, true)
	batch := float64(len(idx))

	// MSE gradient through the sigmoid output.
	out := activations[len(activations)-1]
	delta := mat.NewDense(len(idx), 1, nil)
	for i := range idx {
		a := out.At(i, 0)
		delta.Set(i, 0, 2*(a-y[idx[i]])/batch*a*(1-a))
	}

	for l := len(n.layers) - 1; l >= 0; l-- {
		layer := n.layers[l]
		prev := activations[l]
		in, outW := layer.w.Dims()

		gradW := mat.NewDense(in, outW, nil)
		gradW.Mul(prev.T(), delta)

		gradB := mat.NewDense(1, outW, nil)
		for j := 0; j < outW; j++ {
			var sum float64
			for i := range idx {
				sum += delta.At(i, j)
			}
			gradB.Set(0, j, sum)
		}

		var dPrev *mat.Dense
		if l > 0 || n.embedding != nil {
			dPrev = mat.NewDense(len(idx), in, nil)
			dPrev.Mul(delta, layer.w.T())
			if l > 0 {
				z := preActivations[l-1]
				mask := masks[l-1]
				for i := 0; i < len(idx); i++ {
					for j := 0; j < in; j++ {
						g := dPrev.At(i, j) * n.activatePrime(z.At(i, j))
						if mask != nil {
							g *= mask.At(i, j)
						}
						dPrev.Set(i, j, g)
					}
				}
			}
		}

		n.applySGD(layer.w, layer.velW, gradW)
		n.applySGD(layer.b, layer.velB, gradB)
		delta = dPrev
	}

	if n.embedding != nil {
		gradE := mat.NewDense(n.cfg.NumSymbols, n.cfg.EmbeddingSize, nil)
		for i, row := range idx {
			for p, v := range X[row] {
				sym := int(v)
				for d := 0; d < n.cfg.EmbeddingSize; d++ {
					col := p*n.cfg.EmbeddingSize + d
					gradE.Set(sym, d, gradE.At(sym, d)+delta.At(i, col))
				}
			}
		}
		n.applySGD(n.embedding, n.embVel, gradE)
	}
	return nil
}

func (n *Network) applySGD(param, vel, grad *mat.Dense) {
	vel.Scale(n.cfg.Momentum, vel)
	var step mat.Dense
	step.Scale(n.cfg.LearningRate, grad)
	vel.Sub(vel, &step)
	param.Add(param, vel)
}

func (n *Network) activate(z float64) float64 {
	switch n.cfg.Activation {
	case ActivationReLU:
		if z > 0 {
			return z
		}
		return 0
	default:
		return math.Tanh(z)
	}
}

func (n *Network) activatePrime(z float64) float64 {
	switch n.cfg.Activation {
	case ActivationReLU:
		if z > 0 {
			return 1
		}
		return 0
	default:
		t := math.Tanh(z)
		return 1 - t*t
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
