package nn

import (
	"github.com/chewxy/math32"
)

// LogLoss is the negative log likelihood of the zero cost classes under a softmax over the
// valid classes. The gradient is the softmax minus the softmax renormalized over the zero cost
// classes. It is exactly zero when every valid class has zero cost, or when none has.
func LogLoss(eg *Example) float32 {
	d := eg.Gradient()
	zero(d)

	max := math32.Inf(-1)
	var nrValid, nrGold int
	for c, s := range eg.Scores {
		if !eg.IsValid[c] {
			continue
		}
		nrValid++
		if eg.Costs[c] == 0 {
			nrGold++
		}
		if s > max {
			max = s
		}
	}
	if nrGold == 0 || nrGold == nrValid {
		return 0
	}

	var z, zGold float32
	for c, s := range eg.Scores {
		if !eg.IsValid[c] {
			continue
		}
		e := math32.Exp(s - max)
		z += e
		if eg.Costs[c] == 0 {
			zGold += e
		}
	}
	for c, s := range eg.Scores {
		if !eg.IsValid[c] {
			continue
		}
		e := math32.Exp(s - max)
		d[c] = e / z
		if eg.Costs[c] == 0 {
			d[c] -= e / zGold
		}
	}
	return -math32.Log(zGold / z)
}

// Hinge pushes the best zero cost class above the highest scoring class with a cost by a
// margin of 1.
func Hinge(eg *Example) float32 {
	d := eg.Gradient()
	zero(d)
	if eg.Best < 0 {
		return 0
	}
	violator := -1
	for c, s := range eg.Scores {
		if !eg.IsValid[c] || eg.Costs[c] == 0 {
			continue
		}
		if violator < 0 || s > eg.Scores[violator] {
			violator = c
		}
	}
	if violator < 0 {
		return 0
	}
	margin := eg.Scores[violator] + 1 - eg.Scores[eg.Best]
	if margin <= 0 {
		return 0
	}
	d[violator] = 1
	d[eg.Best] = -1
	return margin
}
