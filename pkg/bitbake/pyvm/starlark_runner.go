package pyvm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.starlark.net/starlark"
)

// StarlarkRunner backs the Embedded-VM tier with go.starlark.net:
// Starlark is itself a deliberately restricted, Python-syntax dialect
// (no classes, no while, no try/except, no lambda, no eval/exec), which
// makes it a natural sandbox for the subset of anonymous-Python bodies
// spec §4.J asks an adapter to run. It is the only actual interpreter
// shipped; NullRunner remains the zero-dependency fallback.
type StarlarkRunner struct{}

// Run executes code as a Starlark program against a datastore seeded
// from initialVars, restricted to the modules named in allowedModules
// ("d", "bb.utils", "oe.utils"). Timeout is enforced by racing the
// interpreter against a timer; on expiry the goroutine running it is
// abandoned (Starlark gives no safe mid-instruction preemption hook in
// the version this module depends on) and Unknown is reported.
func (StarlarkRunner) Run(ctx context.Context, code string, initialVars map[string]string, timeout time.Duration, allowedModules []string) (ExecutionResult, error) {
	ds := newDataStore(initialVars)
	predeclared := starlark.StringDict{}
	allowed := toSet(allowedModules)
	if len(allowed) == 0 || allowed["d"] {
		predeclared["d"] = ds
	}
	if len(allowed) == 0 || allowed["bb.utils"] {
		predeclared["bb"] = newModule("bb", starlark.StringDict{"utils": newBBUtilsModule(ds)})
	}
	if len(allowed) == 0 || allowed["oe.utils"] {
		predeclared["oe"] = newModule("oe", starlark.StringDict{"utils": newOEUtilsModule(ds)})
	}

	type outcome struct {
		err error
	}
	done := make(chan outcome, 1)
	thread := &starlark.Thread{Name: "bbstat-python-block"}
	go func() {
		_, err := starlark.ExecFile(thread, "<anonymous-python>", code, predeclared)
		done <- outcome{err: err}
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case o := <-done:
		if o.err != nil {
			return ExecutionResult{Confidence: ConfidenceUnknown, Errors: []string{classifyError(o.err)}}, nil
		}
		return ExecutionResult{Writes: ds.dirtyWrites(), Confidence: "high"}, nil
	case <-runCtx.Done():
		return ExecutionResult{Confidence: ConfidenceUnknown, Errors: []string{"Timeout"}}, nil
	}
}

func classifyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "exceeded") || strings.Contains(msg, "cancelled"):
		return "Timeout"
	default:
		return fmt.Sprintf("VMError: %v", err)
	}
}

func toSet(items []string) map[string]bool {
	set := map[string]bool{}
	for _, i := range items {
		set[i] = true
	}
	return set
}

// newModule builds a frozen, attribute-only Starlark value exposing
// members, modeling a dotted namespace like `bb.utils`.
func newModule(name string, members starlark.StringDict) *module {
	return &module{name: name, members: members}
}

type module struct {
	name    string
	members starlark.StringDict
}

func (m *module) String() string        { return "<module " + m.name + ">" }
func (m *module) Type() string          { return "module" }
func (m *module) Freeze()               {}
func (m *module) Truth() starlark.Bool  { return true }
func (m *module) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: module") }

func (m *module) Attr(name string) (starlark.Value, error) {
	if v, ok := m.members[name]; ok {
		return v, nil
	}
	return nil, nil
}

func (m *module) AttrNames() []string {
	names := make([]string, 0, len(m.members))
	for k := range m.members {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var (
	_ starlark.Value    = (*module)(nil)
	_ starlark.HasAttrs = (*module)(nil)
)
