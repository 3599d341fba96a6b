// Package extract implements the Recipe Extractor (spec §4.K): the
// orchestrator that drives every other package in pkg/bitbake against
// one recipe file, producing a fully populated Recipe plus whatever
// diagnostics the run accumulated along the way.
package extract

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/eval"
	"github.com/kraklabs/bbstat/pkg/bitbake/layer"
	"github.com/kraklabs/bbstat/pkg/bitbake/metrics"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyexec"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyparse"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyvm"
	"github.com/kraklabs/bbstat/pkg/bitbake/resolve"
	"github.com/kraklabs/bbstat/pkg/bitbake/syntax"
	"github.com/kraklabs/bbstat/pkg/bitbake/uri"
)

// Kind is the closed set of file kinds a recipe path can resolve to
// (spec §3 Recipe.kind).
type Kind string

const (
	KindRecipe  Kind = "RECIPE"
	KindAppend  Kind = "APPEND"
	KindClass   Kind = "CLASS"
	KindInclude Kind = "INCLUDE"
	KindConfig  Kind = "CONFIG"
)

// PythonBlockResult records one anonymous or named Python block found
// during extraction, and — for anonymous ones — the tier that executed
// it and what it observed.
type PythonBlockResult struct {
	Name      string
	Anonymous bool
	Executed  bool
	Tier      pyir.Tier
	Result    pyexec.Result
}

// Recipe is the Extractor's output: one file's fully projected metadata
// (spec §3 Recipe), frozen once Extract returns.
type Recipe struct {
	Path              string
	Kind              Kind
	PackageName       string
	BasePackageName   string
	PackageVersion    string
	Summary           string
	Description       string
	Homepage          string
	License           string
	Sources           []uri.SourceUri
	BuildDepends      []string
	RuntimeDepends    []string
	RuntimeRecommends []string
	Provides          []string
	RuntimeProvides   []string
	RuntimeConflicts  []string
	RuntimeReplaces   []string
	Inherits          []string
	Includes          []string
	ClassExtensions   []string
	TaskDepends       map[string]string
	Variables         map[string]string
	VariableFlags     map[string]map[string]string
	PythonBlocks      []PythonBlockResult
	ParseDiagnostics  []diagnostic.Diagnostic
}

// Extractor holds the configuration shared across many Extract calls.
// It carries no per-recipe state, so spec §5's "stateless across
// recipes, safe to invoke in parallel" invariant holds by construction:
// every mutable piece of a single run lives in the unexported run value
// created fresh inside Extract.
type Extractor struct {
	Open              resolve.Opener
	BuildContext      *layer.BuildContext
	MaxIncludeDepth   int
	MaxExpansionDepth int
	EmbeddedVMEnabled bool
	VMRunner          pyvm.Runner
	VMTimeout         time.Duration
	Logger            *slog.Logger
}

// New builds an Extractor with the spec's documented defaults: no
// embedded VM runner (NullRunner, i.e. that tier always reports
// Unknown) and a one-second per-block VM timeout.
func New(open resolve.Opener, bc *layer.BuildContext) *Extractor {
	if bc == nil {
		bc = &layer.BuildContext{}
	}
	return &Extractor{
		Open:         open,
		BuildContext: bc,
		VMRunner:     pyvm.NullRunner{},
		VMTimeout:    time.Second,
		Logger:       slog.Default(),
	}
}

var depVars = []string{
	"DEPENDS", "RDEPENDS", "RRECOMMENDS", "PROVIDES", "RPROVIDES", "RCONFLICTS", "RREPLACES",
}

// Extract runs steps 1-9 of spec §4.K against path, merging any
// .bbappend in appendCandidates whose base name matches it (spec §4.F),
// and returns the resulting Recipe. The returned Recipe is always
// non-nil; failures are recorded as diagnostics rather than aborting.
func (e *Extractor) Extract(ctx context.Context, path string, kind Kind, appendCandidates []string) *Recipe {
	start := time.Now()
	defer func() {
		metrics.RecordRecipeExtracted()
		metrics.ObserveExtractionDuration(time.Since(start))
	}()

	bag := &diagnostic.Bag{}
	r := resolve.New(e.Open, e.MaxIncludeDepth)

	parseStart := time.Now()
	tree, parseDiags, err := r.ParseFile(path)
	metrics.ObserveParseDuration(time.Since(parseStart))
	if err != nil {
		bag.Add(diagnostic.Errorf(diagnostic.KindParseError, "could not read %s: %v", path, err))
		fallback := eval.New(nil, 0, nil)
		fallback.SeedFilenameDefaults(path)
		pn, _ := fallback.GetValue("PN")
		return &Recipe{
			Path: path, Kind: kind, PackageName: pn,
			Variables: map[string]string{}, VariableFlags: map[string]map[string]string{}, ParseDiagnostics: bag.All(),
		}
	}
	bag.Add(parseDiags...)

	ev := eval.New(append([]string(nil), e.BuildContext.ActiveOverrides...), e.MaxExpansionDepth, bag)
	ev.SeedFilenameDefaults(path)
	for k, v := range e.BuildContext.GlobalVariables {
		ev.SeedDefault(k, v)
	}

	run := &extractionRun{ctx: ctx, ev: ev, diags: bag, extractor: e, variableFlags: map[string]map[string]string{}}
	run.collectIncludes(filepath.Dir(path), tree)

	opts := resolve.WalkOptions{
		IncludeSearchPaths: e.BuildContext.IncludeSearchPaths,
		ClassSearchPaths:   e.BuildContext.IncludeSearchPaths,
		ResolveIncludes:    true,
		ApplyInherits:      true,
	}
	r.Walk(path, filepath.Dir(path), tree, ev, opts, run, bag)

	for _, appendPath := range layer.MatchingAppends(path, appendCandidates) {
		appendTree, appendDiags, err := r.ParseFile(appendPath)
		if err != nil {
			bag.Add(diagnostic.Warnf(diagnostic.KindIncludeMissing, "could not read bbappend %s: %v", appendPath, err))
			continue
		}
		bag.Add(appendDiags...)
		run.collectIncludes(filepath.Dir(appendPath), appendTree)
		r.Walk(appendPath, filepath.Dir(appendPath), appendTree, ev, opts, run, bag)
	}

	pn, _ := ev.GetValue("PN")
	bpn, _ := ev.GetValue("BPN")
	overrides := append(append([]string(nil), e.BuildContext.ActiveOverrides...), pn, bpn)
	ev.SetOverrides(overrides)
	ev.FoldOverrides()

	rec := run.project(path, kind)
	rec.ParseDiagnostics = bag.All()
	for _, d := range rec.ParseDiagnostics {
		metrics.RecordDiagnostic(d.Severity)
	}
	for _, b := range rec.PythonBlocks {
		if b.Executed {
			metrics.RecordTier(b.Tier)
		}
	}
	return rec
}

// extractionRun is the resolve.Handler implementation for one Extract
// call; everything mutable about a single recipe's walk lives here.
type extractionRun struct {
	ctx           context.Context
	ev            *eval.Evaluator
	diags         *diagnostic.Bag
	extractor     *Extractor
	inherits      []string
	inheritsSeen  map[string]bool
	includes      []string
	overrideDeps  map[string][]string // dependency var -> extra override-qualified tokens, over-approximated (spec §4.K step 8)
	variableFlags map[string]map[string]string
	pythonBlocks  []PythonBlockResult
}

func (r *extractionRun) HandleAssignment(data syntax.AssignmentData) {
	if len(data.OverrideSuffix) == 0 {
		return
	}
	for _, v := range depVars {
		if data.Name != v {
			continue
		}
		first := data.OverrideSuffix[0]
		if first != "append" && first != "prepend" {
			continue
		}
		if r.overrideDeps == nil {
			r.overrideDeps = map[string][]string{}
		}
		r.overrideDeps[v] = append(r.overrideDeps[v], strings.Fields(r.ev.Expand(data.Value))...)
	}
}

func (r *extractionRun) HandleFlag(data syntax.FlagData) {
	if r.variableFlags[data.Variable] == nil {
		r.variableFlags[data.Variable] = map[string]string{}
	}
	r.variableFlags[data.Variable][data.Flag] = r.ev.Expand(data.Value)
}

func (r *extractionRun) HandleInherit(classes []string) {
	if r.inheritsSeen == nil {
		r.inheritsSeen = map[string]bool{}
	}
	for _, c := range classes {
		if r.inheritsSeen[c] {
			continue
		}
		r.inheritsSeen[c] = true
		r.inherits = append(r.inherits, c)
	}
}

func (r *extractionRun) HandleExport(data syntax.ExportData) {}

func (r *extractionRun) HandleShellFunction(data syntax.ShellFunctionData) {}

// HandlePythonFunction executes anonymous blocks immediately, in the
// same source-order position the Resolver encountered them (spec §4.K
// step 3), so later assignments observe their writes. Named python
// functions are recorded only, matching shell functions' treatment.
func (r *extractionRun) HandlePythonFunction(data syntax.PythonFunctionData) {
	if !data.Anonymous {
		r.pythonBlocks = append(r.pythonBlocks, PythonBlockResult{Name: data.Name, Anonymous: false})
		return
	}

	g, parseDiags := pyparse.ParseBlock(data.Body)
	r.diags.Add(parseDiags...)

	tier := pyir.SelectTier(g.ComplexityScore, r.extractor.EmbeddedVMEnabled)
	block := PythonBlockResult{Name: data.Name, Anonymous: true, Executed: true, Tier: tier}

	switch tier {
	case pyir.TierStatic:
		block.Result = pyexec.RunStatic(g)
	case pyir.TierHybrid:
		block.Result = pyexec.RunHybrid(r.ctx, g, r.ev)
	case pyir.TierEmbeddedVM:
		block.Result = r.runEmbeddedVM(data.Body)
	default:
		block.Result = pyexec.Result{Errors: []string{"embedded VM disabled; python block left unevaluated"}}
	}

	for name, w := range block.Result.Writes {
		if w.Confidence == pyexec.ConfidenceUnknown {
			continue
		}
		r.ev.Assign(syntax.AssignmentData{Name: name, Operator: syntax.OpAssign, Value: w.Value})
	}
	r.pythonBlocks = append(r.pythonBlocks, block)
}

func (r *extractionRun) runEmbeddedVM(body string) pyexec.Result {
	initial := map[string]string{}
	for _, name := range r.ev.Names() {
		if v, ok := r.ev.GetValue(name); ok {
			initial[name] = v
		}
	}
	res, err := r.extractor.VMRunner.Run(r.ctx, body, initial, r.extractor.VMTimeout, nil)
	if err != nil {
		return pyexec.Result{Errors: []string{err.Error()}}
	}
	out := pyexec.Result{Errors: append([]string(nil), res.Errors...)}
	out.Writes = map[string]pyexec.Write{}
	confidence := pyexec.Confidence(res.Confidence)
	for k, v := range res.Writes {
		out.Writes[k] = pyexec.Write{Value: v, Confidence: confidence}
	}
	return out
}

func (r *extractionRun) HandleErrorNode(message string) {
	r.diags.Add(diagnostic.Warnf(diagnostic.KindParseError, "error node: %s", message))
}

// collectIncludes records this tree's own top-level include/require
// targets (expanded against the snapshot at the time Extract calls
// this, i.e. before the bulk of the walk runs). resolve.Handler has no
// include-observation hook — the Resolver consumes include/require
// nodes internally and only forwards assignment/flag/inherit/shell/
// python/error payloads — so nested includes merged transparently from
// within an included file are not separately recorded here; this
// mirrors only the file's own textual include/require statements (see
// DESIGN.md).
func (r *extractionRun) collectIncludes(baseDir string, tree *syntax.Tree) {
	for _, child := range tree.Root.Children {
		node, ok := child.(*syntax.Node)
		if !ok {
			continue
		}
		switch node.Kind {
		case syntax.KindIncludeStatement:
			r.includes = append(r.includes, node.Payload.(syntax.IncludeData).Target)
		case syntax.KindRequireStatement:
			r.includes = append(r.includes, node.Payload.(syntax.RequireData).Target)
		}
	}
}

var checksumFlagKeys = map[string]bool{
	"md5sum": true, "sha1sum": true, "sha256sum": true, "sha512sum": true,
}

// project reads the known variables (spec §4.K step 6), parses each
// SRC_URI entry (step 7), folds the over-approximated override
// dependencies in (step 8), and returns the finished Recipe.
func (r *extractionRun) project(path string, kind Kind) *Recipe {
	get := func(name string) string {
		v, _ := r.ev.GetValue(name)
		return r.ev.Expand(v)
	}

	rec := &Recipe{
		Path:              path,
		Kind:              kind,
		PackageName:       get("PN"),
		BasePackageName:   get("BPN"),
		PackageVersion:    get("PV"),
		Summary:           get("SUMMARY"),
		Description:       get("DESCRIPTION"),
		Homepage:          get("HOMEPAGE"),
		License:           get("LICENSE"),
		BuildDepends:      dedupFields(get("DEPENDS"), r.overrideDeps["DEPENDS"]),
		RuntimeDepends:    dedupFields(get("RDEPENDS"), r.overrideDeps["RDEPENDS"]),
		RuntimeRecommends: dedupFields(get("RRECOMMENDS"), r.overrideDeps["RRECOMMENDS"]),
		Provides:          dedupFields(get("PROVIDES"), r.overrideDeps["PROVIDES"]),
		RuntimeProvides:   dedupFields(get("RPROVIDES"), r.overrideDeps["RPROVIDES"]),
		RuntimeConflicts:  dedupFields(get("RCONFLICTS"), r.overrideDeps["RCONFLICTS"]),
		RuntimeReplaces:   dedupFields(get("RREPLACES"), r.overrideDeps["RREPLACES"]),
		Inherits:          append([]string(nil), r.inherits...),
		Includes:          append([]string(nil), r.includes...),
		ClassExtensions:   strings.Fields(get("BBCLASSEXTEND")),
		TaskDepends:       map[string]string{},
		Variables:         map[string]string{},
		VariableFlags:     r.variableFlags,
		PythonBlocks:      r.pythonBlocks,
	}

	for _, name := range r.ev.Names() {
		v, _ := r.ev.GetValue(name)
		rec.Variables[name] = r.resolveEmbeddedExpressions(v)
	}
	rec.Summary = r.resolveEmbeddedExpressions(rec.Summary)
	rec.Description = r.resolveEmbeddedExpressions(rec.Description)
	rec.Homepage = r.resolveEmbeddedExpressions(rec.Homepage)
	rec.License = r.resolveEmbeddedExpressions(rec.License)

	for variable, flags := range r.variableFlags {
		if !strings.HasPrefix(variable, "do_") {
			continue
		}
		if v, ok := flags["depends"]; ok {
			rec.TaskDepends[variable] = v
		}
	}

	rec.Sources = r.parseSources(r.resolveEmbeddedExpressions(get("SRC_URI")))
	return rec
}

// resolveEmbeddedExpressions replaces every `${@...}` embedded Python
// expansion in text with its evaluated result (spec §4.K step 3's
// other half: `eval.Expand`'s `${VAR}` regex never matches the `@`
// sigil, so these survive untouched through ordinary variable expansion
// and folding; this runs once, after FoldOverrides, against a
// completely settled snapshot — see DESIGN.md for why that ordering was
// chosen over intercepting them mid-walk).
func (r *extractionRun) resolveEmbeddedExpressions(text string) string {
	if !strings.Contains(text, "${@") {
		return text
	}
	var b strings.Builder
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "${@")
		if start < 0 {
			b.WriteString(text[i:])
			break
		}
		start += i
		b.WriteString(text[i:start])
		end := matchingBrace(text, start+1)
		if end < 0 {
			b.WriteString(text[start:])
			break
		}
		expr := text[start+3 : end]
		b.WriteString(r.evalInlineExpression(expr))
		i = end + 1
	}
	return b.String()
}

// matchingBrace returns the index of the `}` matching the `{` at
// openIdx, tracking nested braces so a dict/set literal inside the
// expression doesn't close the substitution early.
func matchingBrace(text string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

const inlineResultVar = "__bbstat_inline_result__"

// evalInlineExpression parses and evaluates one `${@expr}` body against
// the final snapshot, honoring the same three-tier strategy anonymous
// blocks use. A Static/Hybrid-tier expression that cannot be resolved,
// or a disabled/failing Embedded VM tier, folds to an empty string with
// a diagnostic rather than aborting the whole recipe.
func (r *extractionRun) evalInlineExpression(expr string) string {
	g, v, parseDiags := pyparse.ParseInline(expr)
	r.diags.Add(parseDiags...)

	tier := pyir.SelectTier(g.ComplexityScore, r.extractor.EmbeddedVMEnabled)
	metrics.RecordTier(tier)
	switch tier {
	case pyir.TierStatic, pyir.TierHybrid:
		result, err := pyexec.EvalValue(r.ctx, g, r.ev, v)
		if err != nil {
			r.diags.Add(diagnostic.Warnf(diagnostic.KindParseError, "inline python expression %q: %v", expr, err))
			return ""
		}
		return result
	case pyir.TierEmbeddedVM:
		res := r.runEmbeddedVM(inlineResultVar + " = (" + expr + ")")
		if w, ok := res.Writes[inlineResultVar]; ok && w.Confidence != pyexec.ConfidenceUnknown {
			return w.Value
		}
		r.diags.Add(diagnostic.Warnf(diagnostic.KindParseError, "inline python expression %q: embedded VM produced no result", expr))
		return ""
	default:
		r.diags.Add(diagnostic.Warnf(diagnostic.KindParseError, "inline python expression %q: embedded VM disabled", expr))
		return ""
	}
}

// parseSources splits SRC_URI's already-folded value into individual
// entries (spec §4.K step 7), parses each via package uri, attaches
// matching SRCREV/SRCREV_<name>, and merges any SRC_URI[<name>.]sum
// flags that were written as separate VariableFlag statements rather
// than inline `;sha256sum=` parameters.
func (r *extractionRun) parseSources(raw string) []uri.SourceUri {
	entries := strings.Fields(raw)
	out := make([]uri.SourceUri, 0, len(entries))
	for _, entry := range entries {
		u, err := uri.Parse(entry, "")
		if err != nil {
			r.diags.Add(diagnostic.Warnf(diagnostic.KindInvalidURI, "%v", err))
			continue
		}
		if u.Git != nil {
			name := u.Git.Name
			if name == "" {
				name = "default"
			}
			if srcrev, ok := r.ev.GetValue("SRCREV_" + name); ok && srcrev != "" {
				u.Git.SrcRev = srcrev
			} else if srcrev, ok := r.ev.GetValue("SRCREV"); ok {
				u.Git.SrcRev = srcrev
			}
		}
		out = append(out, u)
	}
	r.applyChecksumFlags(out)
	return out
}

func (r *extractionRun) applyChecksumFlags(sources []uri.SourceUri) {
	flags := r.variableFlags["SRC_URI"]
	for flagName, value := range flags {
		key := flagName
		qualifier := ""
		if idx := strings.IndexByte(flagName, '.'); idx >= 0 {
			qualifier = flagName[:idx]
			key = flagName[idx+1:]
		}
		if !checksumFlagKeys[key] {
			continue
		}
		for i := range sources {
			if qualifier != "" {
				if sources[i].Git == nil || sources[i].Git.Name != qualifier {
					continue
				}
			}
			if _, exists := sources[i].Checksums[key]; exists {
				continue
			}
			sources[i].Checksums[key] = value
		}
	}
}

func dedupFields(base string, extra []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Fields(base) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	for _, tok := range extra {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}
