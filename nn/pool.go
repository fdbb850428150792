package nn

import "sync"

var (
	slabLock sync.Mutex
	slabPool = make(map[int]*sync.Pool)
)

// borrowSlab returns a zeroed []float32 of length n.
func borrowSlab(n int) []float32 {
	slabLock.Lock()
	p, ok := slabPool[n]
	slabLock.Unlock()
	if ok {
		retVal := p.Get().([]float32)
		zero(retVal)
		return retVal
	}
	return make([]float32, n)
}

// returnSlab puts a slab back for reuse.
func returnSlab(s []float32) {
	n := len(s)
	if n == 0 {
		return
	}
	slabLock.Lock()
	p, ok := slabPool[n]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return make([]float32, n) },
		}
		slabPool[n] = p
	}
	slabLock.Unlock()
	p.Put(s[:n:n])
}
