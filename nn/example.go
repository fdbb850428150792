package nn

import (
	"fmt"

	"github.com/gorgonia/sparsenet/features"
	"github.com/pkg/errors"
)

// Example is a single input to the network together with every buffer a forward and backward
// pass over it needs.
//
// Guess and Best are -1 until a forward pass has found a candidate class.
type Example struct {
	Atoms    []uint64
	Features []features.Feature
	Input    []float32 // optional dense input, added to the embeddings

	Fwd  [][]float32 // Fwd[0] is the input vector, Fwd[i+1] the output of layer i
	Bwd  [][]float32 // gradients w.r.t. the matching Fwd buffers
	Xhat [][]float32 // normalized values per layer. nil for layers that are not normalized

	Scores  []float32 // aliases the last Fwd buffer
	Costs   []float32
	IsValid []bool

	Guess int     // highest scoring valid class
	Best  int     // highest scoring valid class with zero cost
	Cost  float32 // cost of the guess
	Loss  float32

	slab []float32
}

// NewExample creates an Example with buffers sized for the layout.
func NewExample(l Layout) *Example {
	size := l.NrClass()
	for _, w := range l.Widths {
		size += 2 * w
	}
	for _, layer := range l.Layers {
		if layer.Normalized {
			size += layer.NO
		}
	}

	eg := &Example{
		slab:    borrowSlab(size),
		Fwd:     make([][]float32, len(l.Widths)),
		Bwd:     make([][]float32, len(l.Widths)),
		Xhat:    make([][]float32, len(l.Layers)),
		IsValid: make([]bool, l.NrClass()),
	}
	buf := eg.slab
	take := func(n int) []float32 {
		retVal := buf[:n:n]
		buf = buf[n:]
		return retVal
	}
	for i, w := range l.Widths {
		eg.Fwd[i] = take(w)
		eg.Bwd[i] = take(w)
	}
	for i, layer := range l.Layers {
		if layer.Normalized {
			eg.Xhat[i] = take(layer.NO)
		}
	}
	eg.Costs = take(l.NrClass())
	eg.Scores = eg.Fwd[len(eg.Fwd)-1]
	eg.reset()
	return eg
}

// NrClass returns the number of classes.
func (eg *Example) NrClass() int { return len(eg.Scores) }

// Reset clears the example so it can be reused for a different input.
func (eg *Example) Reset() {
	zero(eg.slab)
	eg.Atoms = eg.Atoms[:0]
	eg.Features = eg.Features[:0]
	eg.Input = nil
	eg.reset()
}

func (eg *Example) reset() {
	for i := range eg.IsValid {
		eg.IsValid[i] = true
	}
	eg.Guess, eg.Best = -1, -1
	eg.Cost, eg.Loss = 0, 0
}

// SetFeatures replaces the features of the example.
func (eg *Example) SetFeatures(feats []features.Feature) {
	eg.Features = append(eg.Features[:0], feats...)
}

// SetCosts copies the per class costs.
func (eg *Example) SetCosts(costs []float32) {
	if len(costs) != len(eg.Costs) {
		panic(errors.Errorf("expected %d costs. Got %d", len(eg.Costs), len(costs)))
	}
	copy(eg.Costs, costs)
}

// SetValid copies the per class validity. A nil valid marks every class valid.
func (eg *Example) SetValid(valid []bool) {
	if valid == nil {
		for i := range eg.IsValid {
			eg.IsValid[i] = true
		}
		return
	}
	if len(valid) != len(eg.IsValid) {
		panic(errors.Errorf("expected %d validity flags. Got %d", len(eg.IsValid), len(valid)))
	}
	copy(eg.IsValid, valid)
}

// Gradient returns the gradient w.r.t. the scores. A loss function writes into it before the
// backward pass.
func (eg *Example) Gradient() []float32 { return eg.Bwd[len(eg.Bwd)-1] }

// Release returns the buffers of the example to the pool. The example must not be used after.
func (eg *Example) Release() {
	returnSlab(eg.slab)
	eg.slab = nil
	eg.Fwd, eg.Bwd, eg.Xhat = nil, nil, nil
	eg.Scores, eg.Costs = nil, nil
}

// choose picks the guess and best class from the scores.
// With no valid class, Guess and Best are -1 and Cost is 0.
func (eg *Example) choose() {
	eg.Guess, eg.Best = -1, -1
	eg.Cost = 0
	for c, s := range eg.Scores {
		if !eg.IsValid[c] {
			continue
		}
		if eg.Guess < 0 || s > eg.Scores[eg.Guess] {
			eg.Guess = c
		}
		if eg.Costs[c] == 0 && (eg.Best < 0 || s > eg.Scores[eg.Best]) {
			eg.Best = c
		}
	}
	if eg.Guess >= 0 {
		eg.Cost = eg.Costs[eg.Guess]
	}
}

func (eg *Example) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "Example{Guess: %d, Best: %d, Cost: %v, Scores: %v}", eg.Guess, eg.Best, eg.Cost, eg.Scores)
}
