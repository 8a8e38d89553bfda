package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64SlicePoolGet(t *testing.T) {
	p := NewFloat64SlicePool(8)

	s := p.Get(5)
	assert.Len(t, s, 5)
	p.Put(s)

	big := p.Get(100)
	assert.Len(t, big, 100)
	p.Put(big)

	again := p.Get(3)
	assert.Len(t, again, 3)
}
