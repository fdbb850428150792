package nn

import (
	"runtime"

	"github.com/gorgonia/sparsenet/optim"
	"github.com/pkg/errors"
)

// Activation is the nonlinearity applied by hidden layers.
type Activation byte

const (
	ReLU Activation = iota
	Tanh
	Identity
)

func (a Activation) String() string {
	switch a {
	case ReLU:
		return "ReLU"
	case Tanh:
		return "Tanh"
	case Identity:
		return "Identity"
	}
	return "Unknown Activation"
}

// Config configures the neural network
type Config struct {
	Widths     []int      // layer widths, input width first, class count last
	Normalize  bool       // normalize hidden layers with running statistics
	Activation Activation // hidden layer activation
	Rho        float32    // decay of the running statistics
	Eps        float32    // added to the running variance

	Embeddings []int // row length of each embedding table
	Offsets    []int // where each table writes into the input. nil packs the tables from 0

	Optimizer optim.Config
	Workers   int   // goroutines per batch pass
	Seed      int64 // weight initialization seed
}

// DefaultConf returns a configuration for a network with nrIn inputs, nrClass outputs and the
// given hidden layer widths.
func DefaultConf(nrIn, nrClass int, hidden ...int) Config {
	widths := make([]int, 0, len(hidden)+2)
	widths = append(widths, nrIn)
	widths = append(widths, hidden...)
	widths = append(widths, nrClass)
	return Config{
		Widths:     widths,
		Activation: ReLU,
		Rho:        0.997,
		Eps:        1e-5,

		Optimizer: optim.DefaultConfig(),
		Workers:   runtime.NumCPU(),
		Seed:      1337,
	}
}

func (conf Config) IsValid() bool { return conf.validate() == nil }

func (conf Config) validate() error {
	var errs manyErr
	if len(conf.Widths) < 2 {
		errs = append(errs, errors.Errorf("expected at least 2 widths. Got %v", conf.Widths))
	}
	for i, w := range conf.Widths {
		if w <= 0 {
			errs = append(errs, errors.Errorf("width %d is %d", i, w))
		}
	}
	if conf.Activation > Identity {
		errs = append(errs, errors.Errorf("unknown activation %d", conf.Activation))
	}
	if conf.Normalize && (conf.Rho < 0 || conf.Rho >= 1 || conf.Eps <= 0) {
		errs = append(errs, errors.Errorf("invalid normalization parameters rho %v eps %v", conf.Rho, conf.Eps))
	}
	if conf.Offsets != nil && len(conf.Offsets) != len(conf.Embeddings) {
		errs = append(errs, errors.Errorf("%d embedding tables but %d offsets", len(conf.Embeddings), len(conf.Offsets)))
	}
	if !conf.Optimizer.IsValid() {
		errs = append(errs, errors.Errorf("invalid optimizer config %+v", conf.Optimizer))
	}
	if conf.Workers < 0 {
		errs = append(errs, errors.Errorf("invalid worker count %d", conf.Workers))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
