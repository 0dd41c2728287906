package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommonInstTable_LookupByOpAndName(t *testing.T) {
	tbl := NewCommonInstTable()

	d, err := tbl.Lookup(CommInstThreadExit)
	require.NoError(t, err)
	assert.Equal(t, "uvm.thread_exit", d.Name)
	assert.Equal(t, 0, d.NumArgs)
	assert.Equal(t, 0, d.NumResults)

	byName, err := tbl.LookupByName("uvm.native_pin")
	require.NoError(t, err)
	assert.Equal(t, CommInstNativePin, byName.Op)
	assert.Equal(t, "__mu_native_pin", byName.RuntimeSym)
}

func TestCommonInstTable_LookupUnknown(t *testing.T) {
	tbl := NewCommonInstTable()

	_, err := tbl.Lookup(CommonInstOp(9999))
	assert.Error(t, err)

	_, err = tbl.LookupByName("uvm.does_not_exist")
	assert.Error(t, err)
}

func TestCommonInstTable_Register(t *testing.T) {
	tbl := NewCommonInstTable()
	tbl.Register(&CommonInstDescriptor{
		Op:         CommonInstOp(500),
		Name:       "uvm.custom",
		RuntimeSym: "__mu_custom",
		NumArgs:    2,
		NumResults: 1,
	})

	d, err := tbl.Lookup(CommonInstOp(500))
	require.NoError(t, err)
	assert.Equal(t, "uvm.custom", d.Name)

	byName, err := tbl.LookupByName("uvm.custom")
	require.NoError(t, err)
	assert.Equal(t, CommonInstOp(500), byName.Op)
}
