package optim

// Config configures an Optimizer.
type Config struct {
	Rule string  // name of a registered update rule
	Mu   float32 // momentum; beta1 for adam
	Eta  float32 // learning rate
	Eps  float32 // numerical stability term
	Rho  float32 // beta2 for adam

	Average bool // keep averaged weights
}

func DefaultConfig() Config {
	return Config{
		Rule: "adam",
		Mu:   0.9,
		Eta:  0.001,
		Eps:  1e-8,
		Rho:  0.999,
	}
}

func (conf Config) IsValid() bool {
	return conf.Rule != "" &&
		conf.Eta > 0 &&
		conf.Eps >= 0 &&
		conf.Mu >= 0 && conf.Mu < 1 &&
		conf.Rho >= 0 && conf.Rho < 1
}
