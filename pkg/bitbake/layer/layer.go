// Package layer implements the Layer Context (spec §4.F): layer.conf
// parsing, priority ordering, active-override computation, and
// .bbappend matching against a recipe base name.
package layer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/eval"
	"github.com/kraklabs/bbstat/pkg/bitbake/resolve"
	"github.com/kraklabs/bbstat/pkg/bitbake/syntax"
)

// Layer is one layer's identity and priority, derived from its layer.conf.
type Layer struct {
	Path         string
	Name         string
	Priority     int
	Depends      []string
	SeriesCompat []string
	FilePatterns []string
}

// BuildContext is the programmatic configuration surface (spec §6): a
// priority-sorted set of layers plus the machine/distro/override state
// used to evaluate recipes consistently across a run.
type BuildContext struct {
	Layers             []Layer
	Machine            string
	Distro             string
	GlobalVariables    map[string]string
	ActiveOverrides    []string
	IncludeSearchPaths []string
}

// noopHandler satisfies resolve.Handler while discarding everything but
// assignments, which ParseLayerConf reads straight off the Evaluator
// afterward; layer.conf files are not expected to declare shell/python
// functions worth recording.
type noopHandler struct{}

func (noopHandler) HandleAssignment(syntax.AssignmentData)     {}
func (noopHandler) HandleFlag(syntax.FlagData)                 {}
func (noopHandler) HandleInherit([]string)                     {}
func (noopHandler) HandleExport(syntax.ExportData)             {}
func (noopHandler) HandleShellFunction(syntax.ShellFunctionData) {}
func (noopHandler) HandlePythonFunction(syntax.PythonFunctionData) {}
func (noopHandler) HandleErrorNode(string)                     {}

// ParseLayerConf reads and evaluates conf/layer.conf at path, returning
// the Layer it describes. open is the same Opener contract resolve uses;
// layer.conf is parsed with the ordinary lexer/parser (spec §6: "parsed
// with the same lexer/parser but classified as CONFIG") and its
// top-level assignments folded through an Evaluator so that, e.g.,
// `BBFILE_PRIORITY_mylayer = "6"` can be read back by name.
func ParseLayerConf(open resolve.Opener, path string) (Layer, []diagnostic.Diagnostic, error) {
	r := resolve.New(open, 0)
	tree, parseDiags, err := r.ParseFile(path)
	if err != nil {
		return Layer{}, nil, fmt.Errorf("layer.conf %s: %w", path, err)
	}

	bag := &diagnostic.Bag{}
	bag.Add(parseDiags...)

	ev := eval.New(nil, 0, bag)
	r.Walk(path, filepath.Dir(path), tree, ev, resolve.WalkOptions{}, noopHandler{}, bag)
	ev.FoldOverrides()

	collections, _ := ev.GetValue("BBFILE_COLLECTIONS")
	names := strings.Fields(collections)
	if len(names) == 0 {
		bag.Add(diagnostic.Warnf(diagnostic.KindLayerConfInvalid,
			"%s: BBFILE_COLLECTIONS not set, layer has no name", path).WithPath(path))
		return Layer{Path: filepath.Dir(path)}, bag.All(), nil
	}
	name := names[0]

	priority := 0
	if raw, ok := ev.GetValue("BBFILE_PRIORITY_" + name); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			priority = n
		}
	}

	var depends, seriesCompat, patterns []string
	if raw, ok := ev.GetValue("LAYERDEPENDS_" + name); ok {
		depends = strings.Fields(raw)
	}
	if raw, ok := ev.GetValue("LAYERSERIES_COMPAT_" + name); ok {
		seriesCompat = strings.Fields(raw)
	}
	if raw, ok := ev.GetValue("BBFILE_PATTERN_" + name); ok {
		patterns = append(patterns, raw)
	}

	return Layer{
		Path:         filepath.Dir(path),
		Name:         name,
		Priority:     priority,
		Depends:      depends,
		SeriesCompat: seriesCompat,
		FilePatterns: patterns,
	}, bag.All(), nil
}

// NewBuildContext sorts layers high-priority-first and computes
// active_overrides as the ordered tuple spec §4.F defines: auto-derived
// machine classes, then distro, then caller-supplied extra overrides.
func NewBuildContext(layers []Layer, machine, distro string, extraOverrides []string) *BuildContext {
	sorted := make([]Layer, len(layers))
	copy(sorted, layers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	overrides := DeriveMachineOverrides(machine)
	if distro != "" {
		overrides = append(overrides, distro)
	}
	overrides = append(overrides, extraOverrides...)

	return &BuildContext{
		Layers:          sorted,
		Machine:         machine,
		Distro:          distro,
		GlobalVariables: map[string]string{},
		ActiveOverrides: overrides,
	}
}

// DeriveMachineOverrides computes the auto-derived machine-class
// overrides spec §4.F illustrates with `qemuarm64` ⇒ {arm, aarch64, 64,
// qemuarm64, class-target}. Classes are heuristic architecture-family
// substrings plus a bit-width marker plus the literal machine name,
// ending in class-target for the non-native (recipe-build) context this
// package always models (see DESIGN.md Open Question resolution).
func DeriveMachineOverrides(machine string) []string {
	if machine == "" {
		return nil
	}
	var out []string
	lower := strings.ToLower(machine)

	switch {
	case strings.Contains(lower, "aarch64") || strings.Contains(lower, "arm64"):
		out = append(out, "aarch64", "arm")
	case strings.Contains(lower, "arm"):
		out = append(out, "arm")
	}
	switch {
	case strings.Contains(lower, "mips64"):
		out = append(out, "mips64", "mips")
	case strings.Contains(lower, "mips"):
		out = append(out, "mips")
	}
	switch {
	case strings.Contains(lower, "x86_64") || strings.Contains(lower, "x86-64"):
		out = append(out, "x86_64", "x86")
	case strings.Contains(lower, "x86"):
		out = append(out, "x86")
	}
	if strings.Contains(lower, "64") {
		out = append(out, "64")
	}
	out = append(out, machine, "class-target")
	return out
}

// appendPattern matches a .bbappend file name against a recipe's base
// name (spec §4.F): an explicit version suffix matches exactly; `%`
// matches any single dot-separated version component.
func appendPattern(appendBase string) *regexp.Regexp {
	parts := strings.Split(appendBase, "%")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	pattern := "^" + strings.Join(parts, `[^.]+`) + "$"
	return regexp.MustCompile(pattern)
}

// MatchesAppend reports whether a .bbappend file (e.g.
// "busybox_1.36.%.bbappend") applies to a given recipe file (e.g.
// "busybox_1.36.1.bb"). "busybox_%.bbappend" does not match that recipe,
// since `%` stands for exactly one dot-free component.
func MatchesAppend(recipeFile, appendFile string) bool {
	recipeBase := strings.TrimSuffix(filepath.Base(recipeFile), filepath.Ext(recipeFile))
	appendBase := strings.TrimSuffix(filepath.Base(appendFile), filepath.Ext(appendFile))
	if !strings.Contains(appendBase, "%") {
		return recipeBase == appendBase
	}
	return appendPattern(appendBase).MatchString(recipeBase)
}

// MatchingAppends returns every entry of candidates whose base name
// matches recipeFile, in the order given (callers supply them already
// ordered by layer priority, per spec §4.F: "iterates layers in priority
// order and applies any .bbappend whose name matches").
func MatchingAppends(recipeFile string, candidates []string) []string {
	var out []string
	for _, c := range candidates {
		if MatchesAppend(recipeFile, c) {
			out = append(out, c)
		}
	}
	return out
}
