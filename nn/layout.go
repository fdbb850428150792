package nn

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Layer locates one layer transition in the flat weight and statistics arrays.
//
// The weight block W is row major [NO][NI]. Gain, Shift and the four statistics offsets are -1
// unless the layer is normalized.
type Layer struct {
	I      int
	NI, NO int

	W, B        int // offsets into the weights
	Gain, Shift int

	Mean, Var, BwdMean, BwdVar int // offsets into the statistics

	Normalized bool
}

// NrWeight is the number of weights the layer owns.
func (l Layer) NrWeight() int {
	n := l.NO*l.NI + l.NO
	if l.Normalized {
		n += 2 * l.NO
	}
	return n
}

// NrStat is the number of statistics the layer owns.
func (l Layer) NrStat() int {
	if l.Normalized {
		return 4 * l.NO
	}
	return 0
}

func (l Layer) Format(s fmt.State, c rune) {
	fmt.Fprintf(s, "Layer %d (%d→%d) W@%d b@%d", l.I, l.NI, l.NO, l.W, l.B)
	if l.Normalized {
		fmt.Fprintf(s, " gain@%d shift@%d stats@%d", l.Gain, l.Shift, l.Mean)
	}
}

// LayerIterator walks the layers of a network in order, computing where each layer lives in
// the flat arrays. Offsets are cumulative, so layers can only be visited in order.
type LayerIterator struct {
	widths    []int
	normalize bool

	i int
	w int // next free weight offset
	s int // next free statistics offset
}

// NewLayerIterator creates an iterator over the layers described by widths. With normalize,
// every hidden layer is normalized. The output layer never is.
func NewLayerIterator(widths []int, normalize bool) *LayerIterator {
	return &LayerIterator{widths: widths, normalize: normalize}
}

// NrLayer returns the number of layer transitions.
func (it *LayerIterator) NrLayer() int { return len(it.widths) - 1 }

// Done reports whether every layer has been visited.
func (it *LayerIterator) Done() bool { return it.i >= it.NrLayer() }

// Next returns the current layer and advances. It panics when called after the last layer.
func (it *LayerIterator) Next() Layer {
	if it.Done() {
		panic(errors.Errorf("layer iterator advanced past the last of %d layers", it.NrLayer()))
	}
	l := Layer{
		I:          it.i,
		NI:         it.widths[it.i],
		NO:         it.widths[it.i+1],
		Gain:       -1,
		Shift:      -1,
		Mean:       -1,
		Var:        -1,
		BwdMean:    -1,
		BwdVar:     -1,
		Normalized: it.normalize && it.i < it.NrLayer()-1,
	}
	l.W = it.w
	l.B = l.W + l.NO*l.NI
	it.w = l.B + l.NO
	if l.Normalized {
		l.Gain = it.w
		l.Shift = l.Gain + l.NO
		it.w = l.Shift + l.NO

		l.Mean = it.s
		l.Var = l.Mean + l.NO
		l.BwdMean = l.Var + l.NO
		l.BwdVar = l.BwdMean + l.NO
		it.s = l.BwdVar + l.NO
	}
	it.i++
	return l
}

// Layout is the precomputed position of every layer in the flat arrays of a network.
type Layout struct {
	Widths   []int
	Layers   []Layer
	NrWeight int
	NrStat   int
}

// NewLayout runs a LayerIterator over widths once and records the result.
func NewLayout(widths []int, normalize bool) Layout {
	ws := make([]int, len(widths))
	copy(ws, widths)
	it := NewLayerIterator(ws, normalize)
	retVal := Layout{Widths: ws}
	for !it.Done() {
		retVal.Layers = append(retVal.Layers, it.Next())
	}
	retVal.NrWeight = it.w
	retVal.NrStat = it.s
	return retVal
}

// NrLayer returns the number of layer transitions.
func (l Layout) NrLayer() int { return len(l.Layers) }

// NrIn returns the width of the input vector.
func (l Layout) NrIn() int { return l.Widths[0] }

// NrClass returns the width of the output vector.
func (l Layout) NrClass() int { return l.Widths[len(l.Widths)-1] }

// Check verifies that the weight regions of the layers neither overlap nor leave holes in
// [0, NrWeight), and likewise for the statistics.
func (l Layout) Check() error {
	var weights, stats []span
	for _, layer := range l.Layers {
		weights = append(weights,
			span{layer.W, layer.NO * layer.NI},
			span{layer.B, layer.NO})
		if layer.Normalized {
			weights = append(weights, span{layer.Gain, layer.NO}, span{layer.Shift, layer.NO})
			stats = append(stats,
				span{layer.Mean, layer.NO},
				span{layer.Var, layer.NO},
				span{layer.BwdMean, layer.NO},
				span{layer.BwdVar, layer.NO})
		}
		if layer.NrWeight() == 0 {
			return errors.Errorf("%v is empty", layer)
		}
	}
	if err := cover(weights, l.NrWeight); err != nil {
		return errors.Wrap(err, "weights")
	}
	if err := cover(stats, l.NrStat); err != nil {
		return errors.Wrap(err, "statistics")
	}
	return nil
}

type span struct{ start, size int }

func cover(spans []span, total int) error {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	var next int
	for _, s := range spans {
		switch {
		case s.start < next:
			return errors.Errorf("region [%d, %d) overlaps the previous region", s.start, s.start+s.size)
		case s.start > next:
			return errors.Errorf("hole at [%d, %d)", next, s.start)
		}
		next = s.start + s.size
	}
	if next != total {
		return errors.Errorf("regions cover [0, %d). Expected [0, %d)", next, total)
	}
	return nil
}
