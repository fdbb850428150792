package nn

import (
	"sync"

	"gorgonia.org/vecf32"
)

// LossFunc writes the gradient of a loss w.r.t. the scores of eg into eg.Gradient() and
// returns the loss. It runs after the forward pass, so Guess and Best are set.
type LossFunc func(eg *Example) float32

// Batch is a set of examples whose gradients are accumulated into one buffer before a single
// optimizer step.
type Batch struct {
	net      *Network
	Examples []*Example
	Gradient []float32

	sums         []float32 // batch sums for the running statistics, laid out like the statistics
	nrFwd, nrBwd int

	backprop []bool // examples whose input gradient is pending
}

// partial is what one worker accumulates over its share of the batch.
type partial struct {
	grad  []float32
	sums  []float32
	count int
	loss  float32
}

// Len returns the number of examples.
func (b *Batch) Len() int { return len(b.Examples) }

// Forward computes the scores of every example and collects the statistics the next Update
// folds into the network. Weights are only read.
func (b *Batch) Forward() {
	parts := b.run(false, func(i int, eg *Example, p *partial) {
		b.net.forward(eg, p.sums)
		p.count++
	})
	for _, p := range parts {
		vecf32.Add(b.sums, p.sums)
		b.nrFwd += p.count
		p.release()
	}
}

// Predict computes the scores of every example without collecting anything.
func (b *Batch) Predict() {
	parts := b.run(false, func(i int, eg *Example, p *partial) { b.net.forward(eg, nil) })
	for _, p := range parts {
		p.release()
	}
}

// Backward runs the backward pass over every example and accumulates the weight gradients
// into b.Gradient and the embedding gradients into the embedding tables. If loss is not nil
// it fills in the score gradients first. Otherwise the caller must have written them.
// Backward returns the summed loss.
//
// Each worker accumulates into its own buffers, which are merged in worker order. The
// embedding tables are then updated serially, in example order.
func (b *Batch) Backward(loss LossFunc) (retVal float32) {
	if cap(b.backprop) < len(b.Examples) {
		b.backprop = make([]bool, len(b.Examples))
	}
	b.backprop = b.backprop[:len(b.Examples)]

	parts := b.run(true, func(i int, eg *Example, p *partial) {
		if loss != nil {
			eg.Loss = loss(eg)
			p.loss += eg.Loss
		}
		b.backprop[i] = b.net.backward(eg, p.grad, p.sums)
		if b.backprop[i] {
			p.count++
		}
	})
	for _, p := range parts {
		vecf32.Add(b.Gradient, p.grad)
		vecf32.Add(b.sums, p.sums)
		b.nrBwd += p.count
		retVal += p.loss
		p.release()
	}

	emb := b.net.emb
	for i, eg := range b.Examples {
		if b.backprop[i] {
			emb.Backprop(eg.Features, eg.Bwd[0])
			b.backprop[i] = false
		}
	}
	return retVal
}

// Release returns the buffers of the batch and of its examples to the pool.
func (b *Batch) Release() {
	for _, eg := range b.Examples {
		eg.Release()
	}
	returnSlab(b.Gradient)
	returnSlab(b.sums)
	b.Examples, b.Gradient, b.sums = nil, nil, nil
}

// run splits the examples into contiguous chunks, one per worker, and calls fn on every
// example. It returns the partials in chunk order.
func (b *Batch) run(withGrad bool, fn func(i int, eg *Example, p *partial)) []*partial {
	n := len(b.Examples)
	workers := b.net.Workers
	if workers < 1 {
		workers = 1
	}
	if workers = minInt(workers, n); workers == 0 {
		return nil
	}
	size := (n + workers - 1) / workers

	var wg sync.WaitGroup
	parts := make([]*partial, 0, workers)
	for start := 0; start < n; start += size {
		end := minInt(start+size, n)
		p := &partial{sums: borrowSlab(b.net.layout.NrStat)}
		if withGrad {
			p.grad = borrowSlab(b.net.layout.NrWeight)
		}
		parts = append(parts, p)

		wg.Add(1)
		go func(start, end int, p *partial) {
			defer wg.Done()
			for i := start; i < end; i++ {
				fn(i, b.Examples[i], p)
			}
		}(start, end, p)
	}
	wg.Wait()
	return parts
}

func (p *partial) release() {
	returnSlab(p.grad)
	returnSlab(p.sums)
	p.grad, p.sums = nil, nil
}
