package optim

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/gorgonia/sparsenet/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-5)

func TestConfig(t *testing.T) {
	assert.True(t, DefaultConfig().IsValid())

	conf := DefaultConfig()
	conf.Eta = 0
	assert.False(t, conf.IsValid())

	conf = DefaultConfig()
	conf.Rule = "nope"
	_, err := New(conf, 3, nil)
	assert.Error(t, err)

	_, err = New(DefaultConfig(), -1, nil)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	assert := assert.New(t)
	assert.Subset(Rules(), []string{"adagrad", "adam", "sgd"})

	assert.Error(Register("sgd", func() Rule { return SGD{} }), "duplicate names are rejected")
	assert.Error(Register("nilfactory", nil))
	assert.NoError(Register("plainsgd", func() Rule { return SGD{} }))
	assert.Contains(Rules(), "plainsgd")

	r, err := Get("adam")
	require.NoError(t, err)
	assert.Equal("adam", r.Name())
	assert.Equal(2, r.Slots())

	_, err = Get("unknown")
	assert.Error(err)

	assert.NoError(Register("nilrule", func() Rule { return nil }))
	_, err = Get("nilrule")
	assert.Error(err)
	conf := DefaultConfig()
	conf.Rule = "nilrule"
	_, err = New(conf, 2, nil)
	assert.Error(err)
}

func TestRules(t *testing.T) {
	var rules = []struct {
		name     string
		weights  []float32
		gradient []float32
		scale    float32
		expected []float32
	}{
		{"sgd", []float32{1, 2}, []float32{2, 4}, 0.5, []float32{0.9, 1.8}},
		{"adagrad", []float32{0, 0}, []float32{1, -2}, 1, []float32{-0.1, 0.1}},
		{"adam", []float32{0, 0}, []float32{1, -2}, 1, []float32{-0.1, 0.1}},
	}

	for _, r := range rules {
		conf := DefaultConfig()
		conf.Rule = r.name
		conf.Eta = 0.1
		conf.Mu = 0.9
		if r.name == "sgd" {
			conf.Mu = 0
		}
		o, err := New(conf, len(r.weights), nil)
		require.NoError(t, err, r.name)

		o.Update(r.gradient, r.weights, r.scale, 1)
		if !cmp.Equal(r.expected, r.weights, approx) {
			t.Errorf("%s: %v", r.name, cmp.Diff(r.expected, r.weights, approx))
		}
		assert.Equal(t, []float32{0, 0}, r.gradient, "%s must zero the gradient", r.name)
		assert.Equal(t, 1, o.Step())
	}
}

func TestMomentum(t *testing.T) {
	conf := DefaultConfig()
	conf.Rule = "sgd"
	conf.Mu = 0.5
	conf.Eta = 1
	o, err := New(conf, 1, nil)
	require.NoError(t, err)

	w := []float32{0}
	o.Update([]float32{1}, w, 1, 1)
	assert.Equal(t, []float32{-1}, w)
	o.Update([]float32{1}, w, 1, 1)
	assert.Equal(t, []float32{-2.5}, w, "velocity carries over between steps")
	assert.Equal(t, []float32{1.5}, o.State()[0])
}

func TestUpdateContract(t *testing.T) {
	o, err := New(DefaultConfig(), 2, nil)
	require.NoError(t, err)

	g := []float32{1, 1}
	w := []float32{1, 1}
	o.Update(g, w, 1, 0)
	assert.Equal(t, []float32{1, 1}, g, "count == 0 is a no-op")
	assert.Equal(t, []float32{1, 1}, w)
	assert.Equal(t, 0, o.Step())

	assert.Panics(t, func() { o.Update([]float32{1}, w, 1, 1) })
	assert.Panics(t, func() { o.Update(g, []float32{1, 2, 3}, 1, 1) })
	assert.Equal(t, 2, o.NrTrainable())
}

func TestUpdateEmbeddings(t *testing.T) {
	assert := assert.New(t)
	small, err := embed.New([]int{2}, nil, 2, 1)
	require.NoError(t, err)
	_, err = New(DefaultConfig(), 0, small)
	assert.Error(err, "adam needs two slots per row")

	emb, err := embed.New([]int{2}, nil, 2, 2)
	require.NoError(t, err)
	o, err := New(DefaultConfig(), 0, emb)
	require.NoError(t, err)

	emb.Accumulate(0, 99, []float32{1, -1})
	o.UpdateEmbeddings(1, 0)
	assert.Equal(1, emb.NrTouched(), "count == 0 leaves the touched rows alone")

	o.UpdateEmbeddings(1, 1)
	assert.Equal(0, emb.NrTouched())
	w := emb.Lookup(0, 99)
	assert.InDelta(-0.001, w[0], 1e-6)
	assert.InDelta(0.001, w[1], 1e-6)

	emb.Touched(func(r embed.Row) { t.Errorf("row %d should not be pending", r.Key) })
	emb.Accumulate(0, 99, []float32{0, 0})
	emb.Touched(func(r embed.Row) {
		assert.Equal([]float32{0, 0}, r.G, "gradients are zeroed after the update")
	})
	assert.Equal(2, o.NrTrainable())
}

func TestUpdateEmbeddingsLateRow(t *testing.T) {
	emb, err := embed.New([]int{2}, nil, 2, 2)
	require.NoError(t, err)
	o, err := New(DefaultConfig(), 0, emb)
	require.NoError(t, err)
	o.step = 1000

	emb.Accumulate(0, 7, []float32{1, -1})
	emb.Touched(func(r embed.Row) { assert.Equal(t, 1, r.Step) })
	o.UpdateEmbeddings(1, 1)
	w := emb.Lookup(0, 7)
	assert.InDelta(t, -0.001, w[0], 1e-6, "a new row takes a full first step")
	assert.InDelta(t, 0.001, w[1], 1e-6)

	emb.Accumulate(0, 7, []float32{1, -1})
	emb.Touched(func(r embed.Row) { assert.Equal(t, 2, r.Step) })
	o.UpdateEmbeddings(1, 1)
	w = emb.Lookup(0, 7)
	assert.InDelta(t, -0.002, w[0], 1e-5)
}

func TestAveraged(t *testing.T) {
	conf := DefaultConfig()
	conf.Rule = "sgd"
	conf.Mu = 0
	conf.Eta = 1
	conf.Average = true
	o, err := New(conf, 2, nil)
	require.NoError(t, err)

	w := []float32{0, 5}
	o.Update([]float32{1, 0}, w, 1, 1)
	o.Update([]float32{1, 0}, w, 1, 1)
	assert.Equal(t, []float32{-2, 5}, w)

	require.True(t, o.Averaged(w))
	assert.Equal(t, []float32{-0.5, 5}, w)

	plain, err := New(DefaultConfig(), 2, nil)
	require.NoError(t, err)
	assert.False(t, plain.Averaged(w))
}
