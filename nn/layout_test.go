package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectedNrWeight(widths []int, normalize bool) (nrWeight, nrStat int) {
	for i := 0; i < len(widths)-1; i++ {
		nI, nO := widths[i], widths[i+1]
		nrWeight += nO*nI + nO
		if normalize && i < len(widths)-2 {
			nrWeight += 2 * nO
			nrStat += 4 * nO
		}
	}
	return
}

func TestLayout(t *testing.T) {
	var layouts = []struct {
		widths    []int
		normalize bool
	}{
		{[]int{3, 4, 2}, false},
		{[]int{3, 4, 2}, true},
		{[]int{1, 1}, true},
		{[]int{5, 8, 8, 3}, true},
		{[]int{10, 7, 13, 2, 9}, false},
		{[]int{10, 7, 13, 2, 9}, true},
	}

	for _, tc := range layouts {
		l := NewLayout(tc.widths, tc.normalize)
		nrWeight, nrStat := expectedNrWeight(tc.widths, tc.normalize)
		assert.Equal(t, nrWeight, l.NrWeight, "%v %v", tc.widths, tc.normalize)
		assert.Equal(t, nrStat, l.NrStat, "%v %v", tc.widths, tc.normalize)
		assert.Equal(t, len(tc.widths)-1, l.NrLayer())
		assert.NoError(t, l.Check(), "%v %v", tc.widths, tc.normalize)

		var sum int
		for _, layer := range l.Layers {
			sum += layer.NrWeight()
		}
		assert.Equal(t, l.NrWeight, sum)
	}
}

func TestLayoutKnown(t *testing.T) {
	assert := assert.New(t)
	l := NewLayout([]int{3, 4, 2}, true)
	require.Len(t, l.Layers, 2)

	h := l.Layers[0]
	assert.Equal(0, h.W)
	assert.Equal(12, h.B)
	assert.Equal(16, h.Gain)
	assert.Equal(20, h.Shift)
	assert.Equal(0, h.Mean)
	assert.Equal(4, h.Var)
	assert.Equal(8, h.BwdMean)
	assert.Equal(12, h.BwdVar)
	assert.True(h.Normalized)

	out := l.Layers[1]
	assert.Equal(24, out.W)
	assert.Equal(32, out.B)
	assert.Equal(-1, out.Gain)
	assert.False(out.Normalized, "the output layer is never normalized")

	assert.Equal(34, l.NrWeight)
	assert.Equal(16, l.NrStat)
}

func TestLayoutCheck(t *testing.T) {
	l := NewLayout([]int{3, 4, 2}, false)
	l.Layers[1].B++
	assert.Error(t, l.Check(), "overlap with the next region")

	l = NewLayout([]int{3, 4, 2}, false)
	l.NrWeight++
	assert.Error(t, l.Check(), "short cover")

	l = NewLayout([]int{3, 4, 2}, true)
	l.Layers[0].Mean = 1
	assert.Error(t, l.Check())
}

func TestLayerIterator(t *testing.T) {
	it := NewLayerIterator([]int{3, 4, 2}, false)
	assert.Equal(t, 2, it.NrLayer())

	var seen []int
	for !it.Done() {
		seen = append(seen, it.Next().I)
	}
	assert.Equal(t, []int{0, 1}, seen)
	assert.Panics(t, func() { it.Next() })
}
