package sparse

// Averager keeps a lazily averaged history of sparse weights.
//
// Three parallel sparse vectors are kept: the current value of each weight, the running total
// of value*time, and the time of the last update. A weight only pays for averaging when it
// changes, so untouched weights cost nothing.
type Averager struct {
	current Vector
	totals  Vector
	times   map[int32]int
}

// NewAverager creates a new Averager.
func NewAverager() *Averager { return &Averager{times: make(map[int32]int)} }

// Update records that the weight at key changed from before to after at time t.
//
// The first time a key is seen, before is assumed to have held since time 0.
func (a *Averager) Update(key int32, before, after float32, t int) {
	if !a.current.Has(key) {
		a.totals.Set(key, before*float32(t))
		a.current.Set(key, after)
		a.times[key] = t
		return
	}
	elapsed := float32(t - a.times[key])
	a.totals.Add(key, a.current.Get(key)*elapsed)
	a.current.Set(key, after)
	a.times[key] = t
}

// Average returns the averaged value of the weight at time t.
func (a *Averager) Average(key int32, t int) (avg float32, ok bool) {
	if !a.current.Has(key) {
		return 0, false
	}
	cur := a.current.Get(key)
	if t <= 0 {
		return cur, true
	}
	total := a.totals.Get(key) + cur*float32(t-a.times[key])
	return total / float32(t), true
}

// Finalize returns the averages of every tracked weight at time t.
func (a *Averager) Finalize(t int) Vector {
	retVal := make(Vector, 0, len(a.current))
	for _, e := range a.current {
		avg, _ := a.Average(e.Key, t)
		retVal = append(retVal, Entry{Key: e.Key, Value: avg})
	}
	return retVal
}

// Len returns the number of tracked weights.
func (a *Averager) Len() int { return len(a.current) }
