package nn

import (
	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/gonum"
	"gorgonia.org/vecf32"
)

var impl gonum.Implementation

// linear computes y = W·x + b.
func linear(y, w, b, x []float32, nO, nI int) {
	copy(y, b)
	impl.Sgemv(blas.NoTrans, nO, nI, 1, w, nI, x, 1, 1, y, 1)
}

// linearBackward accumulates dW += dy⊗x and db += dy, and writes dx = Wᵀ·dy.
func linearBackward(dx, dW, db, w, x, dy []float32, nO, nI int) {
	impl.Sger(nO, nI, 1, dy, 1, x, 1, dW, nI)
	vecf32.Add(db, dy)
	impl.Sgemv(blas.Trans, nO, nI, 1, w, nI, dy, 1, 0, dx, 1)
}

// normalize replaces y with (y-mean)/sqrt(variance+eps)*gain + shift and records the
// normalized values before the affine transform in xhat.
func normalize(y, xhat, mean, variance, gain, shift []float32, eps float32) {
	for i := range y {
		xhat[i] = (y[i] - mean[i]) / math32.Sqrt(variance[i]+eps)
		y[i] = xhat[i]*gain[i] + shift[i]
	}
}

// normalizeBackward turns the gradient w.r.t. the normalized output into the gradient w.r.t.
// the pre-normalization values, in place. It accumulates the gain and shift gradients, and
// the batch sums of dxhat and dxhat*xhat.
func normalizeBackward(dy, xhat, variance, bwdMean, bwdVar, gain, dGain, dShift, sumD, sumDX []float32, eps float32) {
	for i, d := range dy {
		dGain[i] += d * xhat[i]
		dShift[i] += d
		dxhat := d * gain[i]
		if sumD != nil {
			sumD[i] += dxhat
			sumDX[i] += dxhat * xhat[i]
		}
		dy[i] = (dxhat - bwdMean[i] - xhat[i]*bwdVar[i]) / math32.Sqrt(variance[i]+eps)
	}
}

func activate(a Activation, y []float32) {
	switch a {
	case ReLU:
		for i, v := range y {
			if v < 0 {
				y[i] = 0
			}
		}
	case Tanh:
		for i, v := range y {
			y[i] = math32.Tanh(v)
		}
	}
}

// activateBackward masks dy by the derivative of the activation, given its output y.
func activateBackward(a Activation, dy, y []float32) {
	switch a {
	case ReLU:
		for i, v := range y {
			if v <= 0 {
				dy[i] = 0
			}
		}
	case Tanh:
		for i, v := range y {
			dy[i] *= 1 - v*v
		}
	}
}

// ema folds a batch statistic into a running one.
func ema(running []float32, batch float32, i int, rho float32) {
	running[i] = rho*running[i] + (1-rho)*batch
}
