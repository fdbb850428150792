package nn

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorgonia/sparsenet/embed"
	"github.com/gorgonia/sparsenet/features"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/vecf32"
)

func randomExamples(n *Network, count int, r *rand.Rand) []*Example {
	retVal := make([]*Example, count)
	nrIn, nrClass := n.Layout().NrIn(), n.Layout().NrClass()
	for i := range retVal {
		eg := n.NewExample()
		eg.Input = make([]float32, nrIn)
		for j := range eg.Input {
			eg.Input[j] = r.Float32()*2 - 1
		}
		costs := make([]float32, nrClass)
		for c := range costs {
			costs[c] = 1
		}
		costs[r.Intn(nrClass)] = 0
		eg.SetCosts(costs)
		retVal[i] = eg
	}
	return retVal
}

func TestBatchOrderIndependence(t *testing.T) {
	for _, normalize := range []bool{false, true} {
		conf := testConf(4, 3, 6)
		conf.Normalize = normalize
		conf.Activation = Tanh
		conf.Workers = 3
		n, err := New(conf)
		require.NoError(t, err)

		r := rand.New(rand.NewSource(1))
		egs := randomExamples(n, 7, r)
		reversed := make([]*Example, len(egs))
		for i, eg := range egs {
			reversed[len(egs)-1-i] = eg
		}

		a := n.NewBatch(egs...)
		a.Forward()
		a.Backward(LogLoss)
		forward := append([]float32(nil), a.Gradient...)
		forwardSums := append([]float32(nil), a.sums...)

		b := n.NewBatch(reversed...)
		b.Forward()
		b.Backward(LogLoss)

		if !cmp.Equal(forward, b.Gradient, approx) {
			t.Errorf("normalize %v: %v", normalize, cmp.Diff(forward, b.Gradient, approx))
		}
		if !cmp.Equal(forwardSums, b.sums, approx, cmpopts.EquateEmpty()) {
			t.Errorf("normalize %v statistics: %v", normalize, cmp.Diff(forwardSums, b.sums, approx, cmpopts.EquateEmpty()))
		}
		assert.False(t, allZero(forward))

		b.Examples = nil
		a.Release()
		b.Release()
	}
}

func TestBatchWorkersAgree(t *testing.T) {
	conf := testConf(4, 3, 5)
	conf.Workers = 1
	serial, err := New(conf)
	require.NoError(t, err)
	conf.Workers = 4
	parallel, err := New(conf)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(2))
	egs := randomExamples(serial, 10, r)

	a := serial.NewBatch(egs...)
	a.Forward()
	a.Backward(LogLoss)
	expected := append([]float32(nil), a.Gradient...)
	scores := make([][]float32, len(egs))
	for i, eg := range egs {
		scores[i] = append([]float32(nil), eg.Scores...)
	}

	b := parallel.NewBatch(egs...)
	b.Forward()
	b.Backward(LogLoss)
	for i, eg := range egs {
		assert.Equal(t, scores[i], eg.Scores)
	}
	if !cmp.Equal(expected, b.Gradient, approx) {
		t.Errorf("%v", cmp.Diff(expected, b.Gradient, approx))
	}

	a.Examples = nil
	a.Release()
	b.Release()
}

func TestBatchPredict(t *testing.T) {
	conf := testConf(4, 3, 5)
	conf.Workers = 3
	n, err := New(conf)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(3))
	egs := randomExamples(n, 5, r)
	b := n.NewBatch(egs...)
	defer b.Release()
	b.Predict()

	eg := n.NewExample()
	defer eg.Release()
	for _, other := range egs {
		eg.Input = other.Input
		eg.SetCosts(other.Costs)
		n.Predict(eg)
		assert.Equal(t, eg.Scores, other.Scores)
		assert.Equal(t, eg.Guess, other.Guess)
		assert.Equal(t, vecf32.Argmax(other.Scores), other.Guess)
	}
	assert.True(t, allZero(b.sums), "prediction collects no statistics")
}

func TestBatchSharedNewKey(t *testing.T) {
	assert := assert.New(t)
	conf := testConf(3, 2, 4)
	conf.Activation = Tanh
	conf.Embeddings = []int{2}
	conf.Workers = 2
	n, err := New(conf)
	require.NoError(t, err)
	emb := n.Embeddings()

	shared := []features.Feature{{I: 0, Key: 0xfeed, Value: 1}}
	inputs := [][]float32{{0, 0, 1}, {0, 0, -1}}
	egs := make([]*Example, 2)
	for i := range egs {
		egs[i] = n.NewExample()
		egs[i].Input = inputs[i]
		egs[i].SetFeatures(shared)
		egs[i].SetCosts([]float32{0, 1})
	}

	b := n.NewBatch(egs...)
	defer b.Release()
	b.Forward()
	b.Backward(LogLoss)

	assert.Equal(1, emb.Len(0), "both examples share one new row")
	assert.Equal(1, emb.NrTouched())

	expected := make([]float32, 2)
	for _, eg := range egs {
		vecf32.Add(expected, eg.Bwd[0][:2])
	}
	var rows int
	emb.Touched(func(r embed.Row) {
		rows++
		assert.Equal(uint64(0xfeed), r.Key)
		if !cmp.Equal(expected, r.G, approx) {
			t.Errorf("%v", cmp.Diff(expected, r.G, approx))
		}
	})
	assert.Equal(1, rows)
	assert.False(allZero(expected))
}

func TestBatchEmpty(t *testing.T) {
	n, err := New(testConf(3, 2, 4))
	require.NoError(t, err)
	b := n.NewBatch()
	defer b.Release()
	b.Forward()
	assert.Equal(t, float32(0), b.Backward(LogLoss))
	n.Update(b)
	assert.Equal(t, 0, n.Optimizer().Step())
}

func TestBatchCallerGradient(t *testing.T) {
	n, err := New(testConf(3, 2, 4))
	require.NoError(t, err)

	eg := n.NewExample()
	eg.Input = []float32{1, 1, 1}
	b := n.NewBatch(eg)
	defer b.Release()
	b.Forward()
	copy(eg.Gradient(), []float32{0.5, -0.5})
	b.Backward(nil)

	l := n.Layout().Layers[1]
	assert.Equal(t, []float32{0.5, -0.5}, b.Gradient[l.B:l.B+l.NO], "the output bias gradient is the score gradient")
}
