// Package emit renders a compiled MachineCode into the textual artifacts
// spec.md §4.4/§6 describe: one `.s` file per function version, a
// process-wide `context.s` concatenating every compiled version, and
// (gated by Options.DotFiles) `.muir.dot`/`.mc.dot` visualizations of the
// IR block graph and the
// selected machine code's block graph. Grounded on the teacher's
// wazevoapi debug-dump hooks (PrintSSA/PrintMachineIR toggles), reworked
// here into files rather than stderr dumps since this module hands its
// output to an external assembler rather than JIT-mapping it in-process.
package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/ir"
)

// Options controls where and what emit writes; the zero value emits only
// in-memory text (via Render) and writes nothing to disk.
type Options struct {
	Dir       string // output directory; empty disables file writes.
	DotFiles  bool   // also write .muir.dot/.mc.dot alongside the .s file.
}

// Render returns mcd's textual assembly listing: a function label followed
// by one line per non-nop record, in golang-asm's own Prog.String() syntax
// for instruction/branch records and a bare `name:` for symbolic ones.
func Render(mcd *mc.MachineCode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "TEXT %s(SB), $%d\n", mcd.FuncName, mcd.Frame.Size)
	for i, r := range mcd.Records {
		if r.IsNop() {
			continue
		}
		switch r.Kind {
		case mc.RecordSymbolic:
			fmt.Fprintf(&sb, "%s\n", r.String())
		default:
			fmt.Fprintf(&sb, "\t%s\n", r.String())
		}
		if landing, ok := mcd.Frame.LandingFor(i); ok {
			fmt.Fprintf(&sb, "\t// exception landing: %s\n", landing)
		}
	}
	return sb.String()
}

// Function writes mcd's rendered assembly to <dir>/<FuncName>.s, returning
// the path written. A no-op (empty path, nil error) when opts.Dir is empty.
func Function(mcd *mc.MachineCode, opts Options) (string, error) {
	if opts.Dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("emit %s: %w", mcd.FuncName, err)
	}
	path := filepath.Join(opts.Dir, sanitize(mcd.FuncName)+".s")
	if err := os.WriteFile(path, []byte(Render(mcd)), 0o644); err != nil {
		return "", fmt.Errorf("emit %s: %w", mcd.FuncName, err)
	}
	return path, nil
}

// Context concatenates every compiled function version's rendered
// assembly into <dir>/context.s, the single file handed to the external
// assembler for one batch compilation (spec.md §6 "the process-wide
// context assembles to one object").
func Context(all []*mc.MachineCode, opts Options) (string, error) {
	if opts.Dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("emit context: %w", err)
	}
	var sb strings.Builder
	for _, mcd := range all {
		sb.WriteString(Render(mcd))
		sb.WriteByte('\n')
	}
	path := filepath.Join(opts.Dir, "context.s")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("emit context: %w", err)
	}
	return path, nil
}

// DotFiles writes <dir>/<name>.muir.dot (the IR block graph, one node per
// block and one edge per terminal destination) and <dir>/<name>.mc.dot (the selected machine code's block
// successor graph), when opts.DotFiles is set.
func DotFiles(fv *ir.FunctionVersion, mcd *mc.MachineCode, opts Options) error {
	if !opts.DotFiles || opts.Dir == "" {
		return nil
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return fmt.Errorf("emit dot files for %s: %w", mcd.FuncName, err)
	}
	name := sanitize(mcd.FuncName)

	muir := renderMuIRDot(fv)
	if err := os.WriteFile(filepath.Join(opts.Dir, name+".muir.dot"), []byte(muir), 0o644); err != nil {
		return fmt.Errorf("emit %s.muir.dot: %w", name, err)
	}

	mcDot := renderMachineCodeDot(mcd)
	if err := os.WriteFile(filepath.Join(opts.Dir, name+".mc.dot"), []byte(mcDot), 0o644); err != nil {
		return fmt.Errorf("emit %s.mc.dot: %w", name, err)
	}
	return nil
}

func renderMuIRDot(fv *ir.FunctionVersion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", sanitize(fv.Display()))
	for id, blk := range fv.Blocks() {
		fmt.Fprintf(&sb, "  b%d [label=%q];\n", id, blk.Name())
		if term := blk.Tail(); term != nil {
			for _, d := range term.Dests() {
				fmt.Fprintf(&sb, "  b%d -> b%d;\n", id, d.Target.ID())
			}
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func renderMachineCodeDot(mcd *mc.MachineCode) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %s {\n", sanitize(mcd.FuncName))
	for _, b := range mcd.BlockList {
		fmt.Fprintf(&sb, "  b%d [label=\"block %d [%d,%d)\"];\n", b.ID, b.ID, b.Start, b.End)
		for _, s := range b.Succs() {
			fmt.Fprintf(&sb, "  b%d -> b%d;\n", b.ID, s)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func sanitize(name string) string {
	return strings.NewReplacer("/", "_", "#", "_", " ", "_", "%", "_").Replace(name)
}
