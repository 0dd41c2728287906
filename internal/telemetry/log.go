// Package telemetry centralizes structured logging and debug/validation
// flags for the compiler core. It mirrors wazero's wazevoapi debug-consts
// idiom (a handful of package-level booleans, here plain variables with no
// build tags) but backs
// actual log lines with zap rather than plain fmt.Fprintf, since every part
// of this module runs inside a shared VM process where uncorrelated
// println-style diagnostics from concurrent compiles are not useful.
package telemetry

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.Mutex
	logger *zap.Logger
)

// L returns the process-wide logger, lazily constructing a sane production
// default (JSON, info level) the first time it's needed so that packages
// which only log occasionally (the builder on commit, the VM registry on
// write) don't need an explicit Init call in tests.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		logger = l
	}
	return logger
}

// SetLogger overrides the process-wide logger, e.g. with a zaptest logger in
// tests or a development logger for CLI use.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

// ValidationEnabled mirrors wazevoapi.SSAValidationEnabled and is true by
// default. No package in this module reads it: compiler.Compile runs IR
// validation unconditionally.
var ValidationEnabled = true

// DotFilesEnabled records cmd/muc's -dot-files flag. No package in this
// module reads it; emit.DotFiles writes the .muir.dot and .mc.dot files
// only when its Options.DotFiles is set.
var DotFilesEnabled = false
