package pools

import (
	"sync"
)

// Float64SlicePool hands out scratch float64 slices for sort-based
// statistics (percentiles, bands) so large path cross-sections are not
// reallocated on every step
type Float64SlicePool struct {
	pool sync.Pool
	size int
}

// NewFloat64SlicePool creates a pool whose fresh slices have capacity size
func NewFloat64SlicePool(size int) *Float64SlicePool {
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, size)
				return &s
			},
		},
		size: size,
	}
}

// Get returns a slice of length n, growing it when the pooled one is too small
func (p *Float64SlicePool) Get(n int) []float64 {
	s := *(p.pool.Get().(*[]float64))
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

// Put returns a slice to the pool
func (p *Float64SlicePool) Put(f []float64) {
	if cap(f) < p.size {
		// Undersized slices are left to the GC
		return
	}
	f = f[:0]
	p.pool.Put(&f)
}

// Scratch is the shared pool used by the statistics packages
var Scratch = NewFloat64SlicePool(4096)
