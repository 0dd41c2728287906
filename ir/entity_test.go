package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID_ClassOf(t *testing.T) {
	assert.Equal(t, IDClassMachineReg, ID(0).ClassOf())
	assert.Equal(t, IDClassMachineReg, ID(99).ClassOf())
	assert.Equal(t, IDClassInternal, ID(100).ClassOf())
	assert.Equal(t, IDClassInternal, ID(199).ClassOf())
	assert.Equal(t, IDClassUser, ID(201).ClassOf())
	assert.Equal(t, IDClassUser, ID(1_000_000).ClassOf())
}

func TestMuEntityHeader_NameAndDisplay(t *testing.T) {
	h := NewMuEntityHeader(42)
	assert.Equal(t, ID(42), h.ID())

	_, ok := h.Name()
	assert.False(t, ok)
	assert.Equal(t, "UNNAMED #42", h.Display())

	h.SetName("@foo")
	name, ok := h.Name()
	assert.True(t, ok)
	assert.Equal(t, "foo", name)
	assert.Equal(t, "foo #42", h.Display())

	h.SetName("%bar")
	name, _ = h.Name()
	assert.Equal(t, "bar", name)
}

func TestMuEntityHeader_Equal(t *testing.T) {
	a := NewMuEntityHeader(1)
	b := NewMuEntityHeader(1)
	c := NewMuEntityHeader(2)
	assert.True(t, a.Equal(&b))
	assert.False(t, a.Equal(&c))
}
