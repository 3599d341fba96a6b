// Package pyvm defines the Embedded Python VM adapter boundary (spec
// §4.J): a thin, replaceable contract between the core and whichever
// embedded Python runtime a host chooses to integrate. The core
// compiles and passes all tests with no Runner registered — the
// Embedded-VM tier simply downgrades to Unknown in that case. This
// package ships two Runner implementations: NullRunner (the default,
// zero-dependency) and StarlarkRunner (backed by go.starlark.net); a
// host is free to supply a third of its own.
package pyvm

import (
	"context"
	"time"
)

// ExecutionResult is what a Runner hands back after attempting to run
// one Python source fragment.
type ExecutionResult struct {
	Writes     map[string]string
	Confidence string
	Errors     []string
}

const (
	ConfidenceUnknown = "unknown"
)

// Runner is the contract an embedded Python runtime adapter must
// satisfy. allowedModules restricts the mocked environment exposed to
// the script to the functions spec §4.I enumerates (`d.*`,
// `bb.utils.*`, `oe.utils.*`) — never `subprocess`, network, or
// unrestricted file I/O.
type Runner interface {
	Run(ctx context.Context, code string, initialVars map[string]string, timeout time.Duration, allowedModules []string) (ExecutionResult, error)
}

// NullRunner is the zero-dependency adapter an Extractor uses when no
// other Runner is configured: every call reports Unknown rather than
// attempting execution. A host wanting real embedded-VM tier coverage
// either wires in StarlarkRunner or supplies its own Runner (e.g. a
// CGo-based CPython embedding, or a sandboxed subprocess pool)
// implementing the same contract.
type NullRunner struct{}

// Run always reports that no embedded runtime is available.
func (NullRunner) Run(ctx context.Context, code string, initialVars map[string]string, timeout time.Duration, allowedModules []string) (ExecutionResult, error) {
	return ExecutionResult{
		Confidence: ConfidenceUnknown,
		Errors:     []string{"no embedded python runtime configured"},
	}, nil
}
