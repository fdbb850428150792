package optim

import "github.com/chewxy/math32"

// Rule is an update rule. Rules are stateless; any per-parameter state lives in the slots the
// Optimizer (or the embedding table) allocates for them.
type Rule interface {
	// Name is the name the rule is registered under.
	Name() string

	// Slots is the number of per-parameter state vectors the rule needs.
	Slots() int

	// Apply updates weights in place from gradient*scale. state holds Slots() vectors, each as
	// long as weights. step counts optimizer steps from 1. Apply does not zero the gradient.
	Apply(weights, gradient []float32, state [][]float32, scale float32, step int, conf Config)
}

// SGD is stochastic gradient descent with momentum. With Mu == 0 it is plain SGD.
//
//	v = mu*v + scale*g
//	w = w - eta*v
type SGD struct{}

func (SGD) Name() string { return "sgd" }
func (SGD) Slots() int   { return 1 }

func (SGD) Apply(weights, gradient []float32, state [][]float32, scale float32, step int, conf Config) {
	velocity := state[0]
	for i, g := range gradient {
		velocity[i] = conf.Mu*velocity[i] + scale*g
		weights[i] -= conf.Eta * velocity[i]
	}
}

// Adagrad scales every parameter's step by its accumulated squared gradient.
//
//	acc = acc + (scale*g)^2
//	w = w - eta*scale*g/(sqrt(acc)+eps)
type Adagrad struct{}

func (Adagrad) Name() string { return "adagrad" }
func (Adagrad) Slots() int   { return 1 }

func (Adagrad) Apply(weights, gradient []float32, state [][]float32, scale float32, step int, conf Config) {
	acc := state[0]
	for i, g := range gradient {
		g *= scale
		acc[i] += g * g
		weights[i] -= conf.Eta * g / (math32.Sqrt(acc[i]) + conf.Eps)
	}
}

// Adam keeps bias corrected first and second moment estimates, with Mu as beta1 and Rho as beta2.
type Adam struct{}

func (Adam) Name() string { return "adam" }
func (Adam) Slots() int   { return 2 }

func (Adam) Apply(weights, gradient []float32, state [][]float32, scale float32, step int, conf Config) {
	if step < 1 {
		step = 1
	}
	m, v := state[0], state[1]
	beta1, beta2 := conf.Mu, conf.Rho
	correction1 := 1 - math32.Pow(beta1, float32(step))
	correction2 := 1 - math32.Pow(beta2, float32(step))
	for i, g := range gradient {
		g *= scale
		m[i] = beta1*m[i] + (1-beta1)*g
		v[i] = beta2*v[i] + (1-beta2)*g*g
		mhat := m[i] / correction1
		vhat := v[i] / correction2
		weights[i] -= conf.Eta * mhat / (math32.Sqrt(vhat) + conf.Eps)
	}
}
