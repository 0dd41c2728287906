package emit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
)

func newCompiled(t *testing.T, name string) *mc.MachineCode {
	t.Helper()
	mcd := mc.New(name, nil, mc.NewFrame(16))
	mcd.Frame.Finalize()
	mcd.Records = []*mc.Record{
		mc.NewSymbolic(name, mc.ASMLocation{}),
		mc.NewInstruction(&obj.Prog{As: x86.AMOVQ}, mc.ASMLocation{}, nil, nil),
		mc.NewBranch(&obj.Prog{As: x86.ACALL}, "callee", mc.ASMLocation{}, nil),
	}
	return mcd
}

func TestRender_EmitsExceptionLandingComment(t *testing.T) {
	mcd := newCompiled(t, "caller")
	mcd.Frame.AddExceptionCallsite(2, "exc_handler")

	out := Render(mcd)

	assert.Contains(t, out, "TEXT caller(SB)")
	assert.Contains(t, out, "-> callee")
	assert.Contains(t, out, "// exception landing: exc_handler")
}

func TestRender_SkipsNoppedRecords(t *testing.T) {
	mcd := newCompiled(t, "caller")
	mcd.Records[1].SetNop()

	out := Render(mcd)

	assert.NotContains(t, out, "MOVQ")
}

func TestFunction_NoOpWithoutDir(t *testing.T) {
	mcd := newCompiled(t, "noop")

	path, err := Function(mcd, Options{})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestFunction_WritesSanitizedFilename(t *testing.T) {
	dir := t.TempDir()
	mcd := newCompiled(t, "mu#func/1")

	path, err := Function(mcd, Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mu_func_1.s"), path)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "TEXT mu#func/1(SB)")
}

func TestContext_ConcatenatesAllFunctions(t *testing.T) {
	dir := t.TempDir()
	a := newCompiled(t, "a")
	b := newCompiled(t, "b")

	path, err := Context([]*mc.MachineCode{a, b}, Options{Dir: dir})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "TEXT a(SB)")
	assert.Contains(t, string(contents), "TEXT b(SB)")
}

func TestSanitize_ReplacesDisallowedFilenameCharacters(t *testing.T) {
	assert.Equal(t, "mu_func_1_2", sanitize("mu#func/1 2"))
	assert.Equal(t, "plain", sanitize("plain"))
}
