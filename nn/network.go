// Package nn implements a feed forward network over flat weight buffers.
//
// Every weight of every layer lives in one []float32, addressed through a Layout computed
// once at construction. The input vector of each example is the sum of its dense input and
// the rows its features select from a set of sparse embedding tables.
package nn

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/gorgonia/sparsenet/embed"
	"github.com/gorgonia/sparsenet/optim"
	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Network is a feed forward network with sparse embedding inputs.
//
// Predict may be called concurrently. Train, Update and Average must not run concurrently
// with anything else.
type Network struct {
	Config
	lumberjack

	layout   Layout
	weights  []float32
	gradient []float32
	stats    []float32 // running statistics of the normalized layers

	opt *optim.Optimizer
	emb *embed.Set
}

// New creates a new network with freshly initialized weights.
func New(conf Config) (*Network, error) {
	if err := conf.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid network config")
	}
	conf.Widths = append([]int(nil), conf.Widths...)
	conf.Embeddings = append([]int(nil), conf.Embeddings...)
	if conf.Offsets != nil {
		conf.Offsets = append([]int(nil), conf.Offsets...)
	}

	rule, err := optim.Get(conf.Optimizer.Rule)
	if err != nil {
		return nil, err
	}
	layout := NewLayout(conf.Widths, conf.Normalize)
	if err = layout.Check(); err != nil {
		return nil, errors.Wrap(err, "invalid layout")
	}
	emb, err := embed.New(conf.Embeddings, conf.Offsets, layout.NrIn(), rule.Slots())
	if err != nil {
		return nil, errors.Wrap(err, "cannot create embedding tables")
	}

	n := &Network{
		Config:     conf,
		lumberjack: makeLumberJack(),
		layout:     layout,
		weights:    make([]float32, layout.NrWeight),
		gradient:   make([]float32, layout.NrWeight),
		stats:      make([]float32, layout.NrStat),
		emb:        emb,
	}
	if n.opt, err = optim.New(conf.Optimizer, layout.NrWeight, emb); err != nil {
		return nil, err
	}
	n.init()
	return n, nil
}

// init draws the weight blocks from a He initialized Gaussian. Biases and shifts start at 0,
// gains and running variances at 1.
func (n *Network) init() {
	g := rng.NewGaussianGenerator(n.Seed)
	for _, l := range n.layout.Layers {
		std := math32.Sqrt(2 / float32(l.NI))
		w := n.weights[l.W:l.B]
		for i := range w {
			w[i] = float32(g.Gaussian(0, float64(std)))
		}
		if l.Normalized {
			vecf32.Trans(n.weights[l.Gain:l.Shift], 1)
			vecf32.Trans(n.stats[l.Var:l.BwdMean], 1)
		}
	}
}

// Layout returns the layout of the weights.
func (n *Network) Layout() Layout { return n.layout }

// Weights returns the flat weights. Writes go straight to the network.
func (n *Network) Weights() []float32 { return n.weights }

// Gradient returns the gradient the optimizer consumes. It is zero between updates.
func (n *Network) Gradient() []float32 { return n.gradient }

// Stats returns the running statistics of the normalized layers.
func (n *Network) Stats() []float32 { return n.stats }

// Embeddings returns the embedding tables.
func (n *Network) Embeddings() *embed.Set { return n.emb }

// Optimizer returns the optimizer.
func (n *Network) Optimizer() *optim.Optimizer { return n.opt }

// NewExample creates an Example sized for the network.
func (n *Network) NewExample() *Example { return NewExample(n.layout) }

// NewBatch creates a batch over the examples.
func (n *Network) NewBatch(examples ...*Example) *Batch {
	return &Batch{
		net:      n,
		Examples: examples,
		Gradient: borrowSlab(n.layout.NrWeight),
		sums:     borrowSlab(n.layout.NrStat),
	}
}

// Predict runs the forward pass over a single example. It only reads the network.
func (n *Network) Predict(eg *Example) { n.forward(eg, nil) }

// Train runs a forward pass, a backward pass and an update over the batch. It returns the
// summed loss.
func (n *Network) Train(b *Batch, loss LossFunc) float32 {
	b.Forward()
	retVal := b.Backward(loss)
	n.Update(b)
	return retVal
}

// Update folds the statistics collected by the batch into the running statistics, moves the
// batch gradient into the network gradient, and lets the optimizer consume it.
func (n *Network) Update(b *Batch) {
	if b.net != n {
		panic("batch belongs to a different network")
	}
	n.fold(b)

	count := b.Len()
	vecf32.Add(n.gradient, b.Gradient)
	zero(b.Gradient)
	if count == 0 {
		return
	}
	scale := 1 / float32(count)
	touched := n.emb.NrTouched()
	n.opt.Update(n.gradient, n.weights, scale, count)
	n.opt.UpdateEmbeddings(scale, count)
	n.log("step %d: %d examples, %d embedding rows updated, %d rows total", n.opt.Step(), count, touched, n.emb.Rows())
}

// Average replaces the weights with their averages. It returns false if the optimizer does
// not keep averages.
func (n *Network) Average() bool { return n.opt.Averaged(n.weights) }

// Params returns named tensor views over the weights and running statistics. The views share
// memory with the network.
func (n *Network) Params() map[string]*tensor.Dense {
	retVal := make(map[string]*tensor.Dense)
	view := func(name string, l Layer, data []float32, shape ...int) {
		retVal[fmt.Sprintf("%s%d", name, l.I)] = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
	}
	for _, l := range n.layout.Layers {
		view("W", l, n.weights[l.W:l.B], l.NO, l.NI)
		view("b", l, n.weights[l.B:l.B+l.NO], l.NO)
		if !l.Normalized {
			continue
		}
		view("gain", l, n.weights[l.Gain:l.Shift], l.NO)
		view("shift", l, n.weights[l.Shift:l.Shift+l.NO], l.NO)
		view("mean", l, n.stats[l.Mean:l.Var], l.NO)
		view("var", l, n.stats[l.Var:l.BwdMean], l.NO)
		view("bwdMean", l, n.stats[l.BwdMean:l.BwdVar], l.NO)
		view("bwdVar", l, n.stats[l.BwdVar:l.BwdVar+l.NO], l.NO)
	}
	return retVal
}

// forward computes the scores of eg and picks its guess and best class. If sums is not nil,
// the sum and the sum of squares of every pre-normalization value are added into the mean and
// variance slots of sums.
func (n *Network) forward(eg *Example, sums []float32) {
	x := eg.Fwd[0]
	if eg.Input != nil {
		if len(eg.Input) != len(x) {
			panic(errors.Errorf("expected a dense input of %d. Got %d", len(x), len(eg.Input)))
		}
		copy(x, eg.Input)
	} else {
		zero(x)
	}
	n.emb.Embed(eg.Features, x)

	last := n.layout.NrLayer() - 1
	for _, l := range n.layout.Layers {
		x, y := eg.Fwd[l.I], eg.Fwd[l.I+1]
		linear(y, n.weights[l.W:l.B], n.weights[l.B:l.B+l.NO], x, l.NO, l.NI)
		if l.Normalized {
			if sums != nil {
				for o, v := range y {
					sums[l.Mean+o] += v
					sums[l.Var+o] += v * v
				}
			}
			normalize(y, eg.Xhat[l.I],
				n.stats[l.Mean:l.Var], n.stats[l.Var:l.BwdMean],
				n.weights[l.Gain:l.Shift], n.weights[l.Shift:l.Shift+l.NO], n.Eps)
		}
		if l.I < last {
			activate(n.Activation, y)
		}
	}
	eg.choose()
}

// backward propagates the gradient of the scores of eg down to its input vector, adding the
// weight gradients into grad. The sums of dxhat and dxhat*xhat go into the backward slots of
// sums. An example whose score gradient is all zero contributes nothing and backward returns
// false.
func (n *Network) backward(eg *Example, grad, sums []float32) bool {
	if allZero(eg.Gradient()) {
		return false
	}
	last := n.layout.NrLayer() - 1
	for i := last; i >= 0; i-- {
		l := n.layout.Layers[i]
		dy := eg.Bwd[i+1]
		if i < last {
			activateBackward(n.Activation, dy, eg.Fwd[i+1])
		}
		if l.Normalized {
			var sumD, sumDX []float32
			if sums != nil {
				sumD, sumDX = sums[l.BwdMean:l.BwdVar], sums[l.BwdVar:l.BwdVar+l.NO]
			}
			normalizeBackward(dy, eg.Xhat[i],
				n.stats[l.Var:l.BwdMean], n.stats[l.BwdMean:l.BwdVar], n.stats[l.BwdVar:l.BwdVar+l.NO],
				n.weights[l.Gain:l.Shift], grad[l.Gain:l.Shift], grad[l.Shift:l.Shift+l.NO],
				sumD, sumDX, n.Eps)
		}
		linearBackward(eg.Bwd[i], grad[l.W:l.B], grad[l.B:l.B+l.NO], n.weights[l.W:l.B], eg.Fwd[i], dy, l.NO, l.NI)
	}
	return true
}

// fold moves the batch statistics into the running statistics and resets them.
func (n *Network) fold(b *Batch) {
	rho := n.Rho
	for _, l := range n.layout.Layers {
		if !l.Normalized {
			continue
		}
		if b.nrFwd > 0 {
			nf := float32(b.nrFwd)
			for o := 0; o < l.NO; o++ {
				mean := b.sums[l.Mean+o] / nf
				variance := b.sums[l.Var+o]/nf - mean*mean
				if variance < 0 {
					variance = 0
				}
				ema(n.stats, mean, l.Mean+o, rho)
				ema(n.stats, variance, l.Var+o, rho)
			}
		}
		if b.nrBwd > 0 {
			nb := float32(b.nrBwd)
			for o := 0; o < l.NO; o++ {
				ema(n.stats, b.sums[l.BwdMean+o]/nb, l.BwdMean+o, rho)
				ema(n.stats, b.sums[l.BwdVar+o]/nb, l.BwdVar+o, rho)
			}
		}
	}
	zero(b.sums)
	b.nrFwd, b.nrBwd = 0, 0
}
