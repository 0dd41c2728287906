package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstnlef/zebu-vm-sub001/ir"
)

func TestSnapshotResume_RoundTripsRegistryState(t *testing.T) {
	r := NewRegistry()

	i32ID := r.NextID()
	require.NoError(t, r.DeclareType(i32ID, ir.NewIntType(32)))
	r.SetName(i32ID, "i32", nil)

	constID := r.NextID()
	require.NoError(t, r.DeclareConst(constID, ir.NewConstantDef(constID, ir.NewIntType(32), ir.Constant{Kind: ir.ConstantKindInt, Int: 7})))

	globalID := r.NextID()
	require.NoError(t, r.DeclareGlobal(globalID, ir.NewGlobalCell(globalID, ir.NewIntType(32))))

	sigID := r.NextID()
	sig := &ir.FuncSig{MuEntityHeader: ir.NewMuEntityHeader(sigID), ID_: ir.SignatureID(sigID), Args: []*ir.Type{ir.NewIntType(32)}, Rets: []*ir.Type{ir.NewIntType(32)}}
	require.NoError(t, r.DeclareFuncSig(sigID, sig))

	funcID := r.NextID()
	require.NoError(t, r.DeclareFunc(funcID, ir.NewFunction(funcID, sig)))

	data, err := r.Snapshot()
	require.NoError(t, err)

	resumed, err := Resume(data)
	require.NoError(t, err)

	resumedType := resumed.GetType(i32ID)
	assert.Equal(t, ir.TypeKindInt, resumedType.Kind)
	assert.Equal(t, uint32(32), resumedType.IntWidth)

	name, ok := resumed.NameOf(i32ID)
	require.True(t, ok)
	assert.Equal(t, "i32", name)

	resumedConst := resumed.GetConst(constID)
	assert.Equal(t, uint64(7), resumedConst.Value.Int)

	resumedGlobal := resumed.GetGlobal(globalID)
	assert.Equal(t, ir.TypeKindInt, resumedGlobal.Typ.Kind)

	resumedSig := resumed.GetFuncSig(sigID)
	require.Len(t, resumedSig.Args, 1)
	require.Len(t, resumedSig.Rets, 1)
	assert.Equal(t, ir.SignatureID(sigID), resumedSig.ID_)

	resumedFunc := resumed.GetFunc(funcID)
	require.NotNil(t, resumedFunc.Sig)
	assert.Equal(t, sigID, resumedFunc.Sig.ID())
}

func TestResume_RearmsIDCounterPastHighestPersistedID(t *testing.T) {
	r := NewRegistry()
	id := r.NextID()
	require.NoError(t, r.DeclareType(id, ir.NewIntType(8)))

	data, err := r.Snapshot()
	require.NoError(t, err)

	resumed, err := Resume(data)
	require.NoError(t, err)

	next := resumed.NextID()
	assert.Greater(t, next, id)
}

func TestResume_RejectsUnknownVersion(t *testing.T) {
	_, err := Resume([]byte(`{"version": 999}`))
	assert.Error(t, err)
}

func TestResume_RejectsMalformedJSON(t *testing.T) {
	_, err := Resume([]byte(`not json`))
	assert.Error(t, err)
}
