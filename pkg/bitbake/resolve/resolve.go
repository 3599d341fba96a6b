// Package resolve implements the Include/Inherit Resolver (spec §4.E):
// locating and parsing include/require/inherit targets, folding their
// statements into the caller's variable snapshot in source order, with
// cycle detection and a shared parse cache.
package resolve

import (
	"fmt"
	"path/filepath"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/eval"
	"github.com/kraklabs/bbstat/pkg/bitbake/syntax"
)

const defaultMaxIncludeDepth = 100

// Handler receives each top-level statement as the Resolver walks a tree,
// whether from the original file or spliced in from an include, require,
// or inherit target. Implemented by the Recipe Extractor (§4.K), which
// keeps Resolver free of any Recipe-shaped bookkeeping.
type Handler interface {
	HandleAssignment(data syntax.AssignmentData)
	HandleFlag(data syntax.FlagData)
	HandleInherit(classes []string)
	HandleExport(data syntax.ExportData)
	HandleShellFunction(data syntax.ShellFunctionData)
	HandlePythonFunction(data syntax.PythonFunctionData)
	HandleErrorNode(message string)
}

// Opener reads a file's full contents by path. Hosts supply this (spec
// §5: only the Lexer, the Resolver, and the Layer Context ever block on
// filesystem reads, and all such calls are synchronous and host-wrapped).
type Opener func(path string) ([]byte, error)

type cachedParse struct {
	tree  *syntax.Tree
	diags []diagnostic.Diagnostic
}

// Resolver owns the shared include-cache and performs path location,
// parsing, and statement-level merging for include/require/inherit.
type Resolver struct {
	open            Opener
	maxIncludeDepth int
	cache           map[string]*cachedParse
}

// New creates a Resolver. maxIncludeDepth <= 0 uses the spec's documented
// default of 100.
func New(open Opener, maxIncludeDepth int) *Resolver {
	if maxIncludeDepth <= 0 {
		maxIncludeDepth = defaultMaxIncludeDepth
	}
	return &Resolver{open: open, maxIncludeDepth: maxIncludeDepth, cache: map[string]*cachedParse{}}
}

// ParseFile parses path (via the shared cache), used by callers (e.g. the
// Recipe Extractor) to obtain the initial tree for the file under
// extraction, so every parse in a run — top-level or included — shares
// one cache.
func (r *Resolver) ParseFile(path string) (*syntax.Tree, []diagnostic.Diagnostic, error) {
	return r.parse(filepath.Clean(path))
}

func (r *Resolver) parse(path string) (*syntax.Tree, []diagnostic.Diagnostic, error) {
	if c, ok := r.cache[path]; ok {
		return c.tree, c.diags, nil
	}
	data, err := r.open(path)
	if err != nil {
		return nil, nil, err
	}
	tree, diags := syntax.Parse(data)
	r.cache[path] = &cachedParse{tree: tree, diags: diags}
	return tree, diags, nil
}

// locate tries baseDir/target first, then each of searchPaths/target in
// order, returning the first path that opens successfully.
func (r *Resolver) locate(baseDir, target string, searchPaths []string) (string, bool) {
	candidates := make([]string, 0, len(searchPaths)+1)
	candidates = append(candidates, filepath.Join(baseDir, target))
	for _, sp := range searchPaths {
		candidates = append(candidates, filepath.Join(sp, target))
	}
	for _, c := range candidates {
		c = filepath.Clean(c)
		if _, ok := r.cache[c]; ok {
			return c, true
		}
		if _, err := r.open(c); err == nil {
			return c, true
		}
	}
	return "", false
}

// Walk processes every top-level statement of tree in source order:
// assignments/flags/exports/shell-functions/python-functions are applied
// to ev and forwarded to handler; include/require/inherit targets are
// located, parsed, and walked recursively into the same ev/handler,
// splicing their statements in as if written at this point in the file.
// selfPath seeds the cycle-detection set so a file can never include
// itself, directly or transitively, more than zero times.
func (r *Resolver) Walk(selfPath, baseDir string, tree *syntax.Tree, ev *eval.Evaluator, opts WalkOptions, handler Handler, diags *diagnostic.Bag) {
	visiting := map[string]bool{}
	if selfPath != "" {
		visiting[filepath.Clean(selfPath)] = true
	}
	r.walkNodes(baseDir, tree.Root.Children, ev, opts, handler, diags, visiting, 0)
}

// WalkOptions carries the search paths and feature toggles that govern
// include/inherit resolution (spec §6 configuration options).
type WalkOptions struct {
	IncludeSearchPaths []string
	ClassSearchPaths   []string
	ResolveIncludes    bool // if false, include/require are skipped and no diagnostic is recorded
	ApplyInherits      bool // if false, inherit classes are recorded but not resolved
}

func (r *Resolver) walkNodes(baseDir string, children []syntax.Element, ev *eval.Evaluator, opts WalkOptions, handler Handler, diags *diagnostic.Bag, visiting map[string]bool, depth int) {
	for _, child := range children {
		node, ok := child.(*syntax.Node)
		if !ok {
			continue
		}
		r.walkOne(baseDir, node, ev, opts, handler, diags, visiting, depth)
	}
}

func (r *Resolver) walkOne(baseDir string, node *syntax.Node, ev *eval.Evaluator, opts WalkOptions, handler Handler, diags *diagnostic.Bag, visiting map[string]bool, depth int) {
	switch node.Kind {
	case syntax.KindVariableAssignment, syntax.KindOverrideAssignment:
		data := node.Payload.(syntax.AssignmentData)
		ev.Assign(data)
		handler.HandleAssignment(data)
	case syntax.KindVariableFlag:
		handler.HandleFlag(node.Payload.(syntax.FlagData))
	case syntax.KindExportStatement:
		data := node.Payload.(syntax.ExportData)
		if data.Assignment != nil {
			ev.Assign(*data.Assignment)
		}
		handler.HandleExport(data)
	case syntax.KindShellFunction:
		handler.HandleShellFunction(node.Payload.(syntax.ShellFunctionData))
	case syntax.KindPythonFunction, syntax.KindAnonymousPython:
		handler.HandlePythonFunction(node.Payload.(syntax.PythonFunctionData))
	case syntax.KindInheritStatement:
		data := node.Payload.(syntax.InheritData)
		handler.HandleInherit(data.Classes)
		if opts.ApplyInherits {
			for _, class := range data.Classes {
				r.resolveOne(baseDir, class+".bbclass", opts.ClassSearchPaths, ev, opts, handler, diags,
					visiting, depth, diagnostic.KindInheritMissing, diagnostic.Warning,
					fmt.Sprintf("could not resolve inherited class %s", class))
			}
		}
	case syntax.KindIncludeStatement:
		data := node.Payload.(syntax.IncludeData)
		if opts.ResolveIncludes {
			target := ev.Expand(data.Target)
			r.resolveOne(baseDir, target, opts.IncludeSearchPaths, ev, opts, handler, diags,
				visiting, depth, diagnostic.KindIncludeMissing, diagnostic.Warning,
				fmt.Sprintf("include target not found: %s", target))
		}
	case syntax.KindRequireStatement:
		data := node.Payload.(syntax.RequireData)
		if opts.ResolveIncludes {
			target := ev.Expand(data.Target)
			r.resolveOne(baseDir, target, opts.IncludeSearchPaths, ev, opts, handler, diags,
				visiting, depth, diagnostic.KindRequireMissing, diagnostic.Error,
				fmt.Sprintf("require target not found: %s", target))
		}
	case syntax.KindErrorNode:
		msg := ""
		if ed, ok := node.Payload.(syntax.ErrorData); ok {
			msg = ed.Message
		}
		handler.HandleErrorNode(msg)
	}
}

// resolveOne locates, parses, and recursively walks one include/require/
// inherit target, applying cycle detection and the include-depth bound.
func (r *Resolver) resolveOne(baseDir, target string, searchPaths []string, ev *eval.Evaluator, opts WalkOptions, handler Handler, diags *diagnostic.Bag, visiting map[string]bool, depth int, missingKind diagnostic.Kind, missingSeverity diagnostic.Severity, missingMessage string) {
	if depth >= r.maxIncludeDepth {
		diags.Add(diagnostic.Warnf(diagnostic.KindIncludeCycle, "max include depth (%d) exceeded resolving %s", r.maxIncludeDepth, target))
		return
	}

	path, found := r.locate(baseDir, target, searchPaths)
	if !found {
		diags.Add(diagnostic.New(missingSeverity, missingKind, missingMessage))
		return
	}
	if visiting[path] {
		diags.Add(diagnostic.Warnf(diagnostic.KindIncludeCycle, "include cycle detected at %s", path))
		return
	}

	tree, parseDiags, err := r.parse(path)
	if err != nil {
		diags.Add(diagnostic.New(missingSeverity, missingKind, missingMessage))
		return
	}
	diags.Add(parseDiags...)

	visiting[path] = true
	defer delete(visiting, path)

	r.walkNodes(filepath.Dir(path), tree.Root.Children, ev, opts, handler, diags, visiting, depth+1)
}
