// Command muc is a minimal ahead-of-time driver over this module's
// pipeline: it resumes a boot image, compiles every defined function
// version against the selected ISA, and emits per-function assembly plus
// the process-wide context.s (spec.md §6). Grounded on the teacher's
// cmd/wazero (the dev-facing CLI entry point that wires RuntimeConfig
// options to flags and drives one call into the engine).
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jstnlef/zebu-vm-sub001/backend/isa/amd64"
	"github.com/jstnlef/zebu-vm-sub001/backend/isa/arm64"
	"github.com/jstnlef/zebu-vm-sub001/compiler"
	"github.com/jstnlef/zebu-vm-sub001/compiler/emit"
	"github.com/jstnlef/zebu-vm-sub001/compiler/isel"
	"github.com/jstnlef/zebu-vm-sub001/compiler/mc"
	"github.com/jstnlef/zebu-vm-sub001/internal/telemetry"
	"github.com/jstnlef/zebu-vm-sub001/vm"
)

func main() {
	bootImage := flag.String("boot-image", "", "path to a JSON boot image produced by vm.Registry.Snapshot (required)")
	emitDir := flag.String("emit-dir", "out", "directory to write per-function .s files and context.s into")
	targetISA := flag.String("isa", "amd64", "target instruction set architecture: amd64 or arm64")
	dotFiles := flag.Bool("dot-files", false, "also emit .muir.dot/.mc.dot visualization files")
	verbose := flag.Bool("v", false, "enable development (human-readable, debug-level) logging")
	flag.Parse()

	if *verbose {
		l, _ := zap.NewDevelopment()
		telemetry.SetLogger(l)
	}
	telemetry.DotFilesEnabled = *dotFiles

	if err := run(*bootImage, *emitDir, *targetISA, *dotFiles); err != nil {
		fmt.Fprintln(os.Stderr, "muc:", err)
		os.Exit(1)
	}
}

func run(bootImage, emitDir, targetISA string, dotFiles bool) error {
	if bootImage == "" {
		return fmt.Errorf("-boot-image is required")
	}
	data, err := os.ReadFile(bootImage)
	if err != nil {
		return fmt.Errorf("reading boot image: %w", err)
	}
	reg, err := vm.Resume(data)
	if err != nil {
		return fmt.Errorf("resuming registry: %w", err)
	}

	var isaKind vm.ISA
	var cg isel.CodeGenerator
	switch targetISA {
	case "amd64":
		isaKind, cg = vm.ISAAMD64, amd64.NewMachine()
	case "arm64":
		isaKind, cg = vm.ISAARM64, arm64.NewMachine()
	default:
		return fmt.Errorf("unknown target ISA %q (want amd64 or arm64)", targetISA)
	}
	cfg := vm.NewConfig(vm.WithEmitDir(emitDir), vm.WithDotFiles(dotFiles), vm.WithTargetISA(isaKind))

	var compiled []*mc.MachineCode
	for _, fvID := range reg.FuncVerIDs() {
		fv := reg.GetFuncVer(fvID)
		if !fv.Defined() {
			continue
		}
		mcd, err := compiler.Compile(fv, cg, reg.CommonInsts())
		if err != nil {
			telemetry.L().Sugar().Errorw("compile failed", "function_version", fv.Display(), "error", err)
			continue
		}
		if _, err := emit.Function(mcd, emit.Options{Dir: cfg.EmitDir, DotFiles: cfg.DotFiles}); err != nil {
			return fmt.Errorf("emitting %s: %w", mcd.FuncName, err)
		}
		if err := emit.DotFiles(fv, mcd, emit.Options{Dir: cfg.EmitDir, DotFiles: cfg.DotFiles}); err != nil {
			return fmt.Errorf("emitting dot files for %s: %w", mcd.FuncName, err)
		}
		if err := reg.DeclareCompiledFunc(fvID, mcd); err != nil {
			telemetry.L().Sugar().Warnw("compiled function already registered", "function_version", fv.Display())
		}
		compiled = append(compiled, mcd)
	}

	if _, err := emit.Context(compiled, emit.Options{Dir: emitDir}); err != nil {
		return fmt.Errorf("emitting context.s: %w", err)
	}
	telemetry.L().Sugar().Infow("compiled boot image", "functions", len(compiled), "isa", targetISA)
	return nil
}
