package sparsenet

import (
	"github.com/gorgonia/sparsenet/features"
	"github.com/gorgonia/sparsenet/nn"
)

type Config struct {
	Name      string
	NNConf    nn.Config
	Templates []features.Template
	Tables    []int // Tables[i] is the embedding table fed by Templates[i]
}

// Instance is a labelled input handed in by a training loop.
type Instance struct {
	Atoms []uint64
	Input []float32 // optional dense input
	Costs []float32 // per class cost. Zero cost classes are gold
	Valid []bool    // nil means every class is valid
}
