package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_AllocateAcrossPageBoundary(t *testing.T) {
	p := NewPool[int]()

	ptrs := make([]*int, poolPageSize+5)
	for i := range ptrs {
		ptrs[i] = p.Allocate()
		*ptrs[i] = i
	}
	assert.Equal(t, poolPageSize+5, p.Allocated())

	for i, ptr := range ptrs {
		assert.Equal(t, i, *ptr)
	}
}

func TestPool_View(t *testing.T) {
	p := NewPool[string]()
	a := p.Allocate()
	*a = "first"
	b := p.Allocate()
	*b = "second"

	require.Equal(t, "first", *p.View(0))
	require.Equal(t, "second", *p.View(1))
}

func TestPool_ResetReclaimsAndZeroes(t *testing.T) {
	p := NewPool[int]()
	v := p.Allocate()
	*v = 7
	assert.Equal(t, 1, p.Allocated())

	p.Reset()
	assert.Equal(t, 0, p.Allocated())

	fresh := p.Allocate()
	assert.Equal(t, 0, *fresh)
}
