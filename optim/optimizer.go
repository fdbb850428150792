// Package optim implements the optimizer that turns accumulated gradients into weight updates.
//
// The update rule is chosen by name at construction and can be swapped without touching any
// caller. Dense parameters keep their rule state here; embedding rows keep theirs inline in
// the embedding tables.
package optim

import (
	"github.com/gorgonia/sparsenet/embed"
	"github.com/gorgonia/sparsenet/sparse"
	"github.com/pkg/errors"
)

// Optimizer applies an update rule to the dense weights of a network and to the rows of its
// embedding tables.
type Optimizer struct {
	Config
	rule Rule

	nrWeight int
	state    [][]float32 // rule state for the dense weights
	emb      *embed.Set
	step     int

	avg    *sparse.Averager
	before []float32
}

// New creates an Optimizer for nrWeight dense weights. emb may be nil. If it is not, its rows
// must carry at least as many state slots as the rule needs.
func New(conf Config, nrWeight int, emb *embed.Set) (*Optimizer, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid optimizer config %+v", conf)
	}
	if nrWeight < 0 {
		return nil, errors.Errorf("invalid weight count %d", nrWeight)
	}
	rule, err := Get(conf.Rule)
	if err != nil {
		return nil, err
	}
	if emb != nil && emb.Slots() < rule.Slots() {
		return nil, errors.Errorf("update rule %q needs %d slots per embedding row. The embedding tables have %d", rule.Name(), rule.Slots(), emb.Slots())
	}
	retVal := &Optimizer{
		Config:   conf,
		rule:     rule,
		nrWeight: nrWeight,
		state:    make([][]float32, rule.Slots()),
		emb:      emb,
	}
	for i := range retVal.state {
		retVal.state[i] = make([]float32, nrWeight)
	}
	if conf.Average {
		retVal.avg = sparse.NewAverager()
		retVal.before = make([]float32, nrWeight)
	}
	return retVal, nil
}

// Rule returns the update rule in use.
func (o *Optimizer) Rule() Rule { return o.rule }

// Step returns the number of dense updates applied so far.
func (o *Optimizer) Step() int { return o.step }

// State returns the rule state of the dense weights. A persistence layer may read or restore it.
func (o *Optimizer) State() [][]float32 { return o.state }

// NrTrainable returns the number of trainable scalars, embedding rows included.
func (o *Optimizer) NrTrainable() int {
	if o.emb == nil {
		return o.nrWeight
	}
	return o.nrWeight + o.emb.NrTrainable()
}

// Update applies the rule to weights using gradient*scale, then zeroes the gradient.
// count is the number of examples the gradient was accumulated over. With count == 0 Update
// does nothing.
func (o *Optimizer) Update(gradient, weights []float32, scale float32, count int) {
	if len(gradient) != o.nrWeight || len(weights) != o.nrWeight {
		panic(errors.Errorf("optimizer expects %d weights. Got %d weights and %d gradients", o.nrWeight, len(weights), len(gradient)))
	}
	if count == 0 {
		return
	}
	o.step++
	if o.avg != nil {
		copy(o.before, weights)
	}
	o.rule.Apply(weights, gradient, o.state, scale, o.step, o.Config)
	if o.avg != nil {
		for i, w := range weights {
			if w != o.before[i] {
				o.avg.Update(int32(i), o.before[i], w, o.step)
			}
		}
	}
	zero(gradient)
}

// UpdateRow applies the rule to a single embedding row and zeroes the row's gradient.
// Rules that correct for their own start up use the row's step, not the dense one, so a row
// created late in training starts from its first step.
func (o *Optimizer) UpdateRow(r embed.Row, scale float32) {
	step := r.Step
	if step < 1 {
		step = 1
	}
	o.rule.Apply(r.W, r.G, r.Slots, scale, step, o.Config)
	zero(r.G)
}

// UpdateEmbeddings applies the rule to every embedding row touched since the last call, then
// clears the touched set. With count == 0 it does nothing.
func (o *Optimizer) UpdateEmbeddings(scale float32, count int) {
	if o.emb == nil || count == 0 {
		return
	}
	o.emb.Touched(func(r embed.Row) { o.UpdateRow(r, scale) })
	o.emb.ClearTouched()
}

// Averaged writes the averaged value of every updated weight into weights.
// Weights that were never updated are left alone. It returns false if averaging is off.
func (o *Optimizer) Averaged(weights []float32) bool {
	if o.avg == nil {
		return false
	}
	if len(weights) != o.nrWeight {
		panic(errors.Errorf("optimizer expects %d weights. Got %d", o.nrWeight, len(weights)))
	}
	for _, e := range o.avg.Finalize(o.step) {
		weights[e.Key] = e.Value
	}
	return true
}

func zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}
