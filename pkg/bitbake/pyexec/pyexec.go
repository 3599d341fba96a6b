// Package pyexec implements the Python IR Executor (spec §4.I):
// the Static and Hybrid tiers that interpret a pyir.Graph without
// handing off to an embedded Python runtime. Both tiers are pure with
// respect to the outside world — no file I/O, no network, no random
// sources — only the variable snapshot changes.
package pyexec

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
)

// Confidence grades how much an executor trusts a computed write.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"    // Hybrid tier actually computed the value
	ConfidenceMedium  Confidence = "medium"  // Static tier resolved a pure-literal expression
	ConfidenceUnknown Confidence = "unknown" // could not be resolved without full interpretation
)

// Write is one variable mutation observed during execution.
type Write struct {
	Value      string
	Confidence Confidence
}

// Result is what a tier hands back to the Extractor: the reads/writes
// it observed, plus any errors that caused it to give up early (the
// Extractor's failure policy then falls back to a lower tier).
type Result struct {
	Reads  []string
	Writes map[string]Write
	Errors []string
}

func newResult() Result {
	return Result{Writes: map[string]Write{}}
}

// Snapshot is the variable datastore a Hybrid run reads from and
// writes into. The Extractor's eval.Evaluator satisfies this directly.
type Snapshot interface {
	GetValue(name string) (string, bool)
	Expand(text string) string
}

// RunStatic walks a graph's execution_order and records reads/writes
// symbolically without evaluating anything that is not a pure literal
// expression — spec §4.I: "still returns a result with confidence =
// MEDIUM for the variables it can trivially resolve... and UNKNOWN
// otherwise".
func RunStatic(g *pyir.Graph) Result {
	res := newResult()
	res.Reads = append(res.Reads, g.Reads...)
	for name, v := range g.Writes {
		if text, ok := literalValue(g, v); ok {
			res.Writes[name] = Write{Value: text, Confidence: ConfidenceMedium}
		} else {
			res.Writes[name] = Write{Confidence: ConfidenceUnknown}
		}
	}
	return res
}

// literalValue recursively resolves v if it is built entirely out of
// StringLiteral/Concat nodes (no variable reads, no calls) — the
// "trivially resolvable" case the Static tier is allowed to compute.
func literalValue(g *pyir.Graph, v pyir.ValueId) (string, bool) {
	op := g.Op(g.ProducerOf(v))
	switch op.Kind {
	case pyir.OpStringLiteral:
		return op.Literal, true
	case pyir.OpConcat:
		var b strings.Builder
		for _, part := range op.Args {
			text, ok := literalValue(g, part)
			if !ok {
				return "", false
			}
			b.WriteString(text)
		}
		return b.String(), true
	default:
		return "", false
	}
}

// listSep is the internal encoding used to represent a Python list as
// a string value, since spec's value model is string-only ("Strings
// are the universal value type"). Index/Slice inspect for it to decide
// list-style vs character-style indexing; see DESIGN.md.
const listSep = "\x00"

func encodeList(items []string) string { return strings.Join(items, listSep) }

func decodeList(s string) ([]string, bool) {
	if !strings.Contains(s, listSep) {
		return nil, false
	}
	return strings.Split(s, listSep), true
}

// tokensOf yields the items a ForLoop/ListComprehension iterates over:
// an explicitly list-encoded value decodes as-is, anything else falls
// back to spec §4.I's "space-separated tokens of the source string" —
// covering both `d.getVar('X').split()` (already list-encoded) and a
// bare `d.getVar('X')` (never encoded) uniformly.
func tokensOf(s string) []string {
	if items, ok := decodeList(s); ok {
		return items
	}
	return strings.Fields(s)
}

// interp holds the mutable state of one Hybrid execution: the SSA
// value store, the current variable snapshot's local overlay of
// writes, and the transient loop-variable bindings established by
// ForLoop/ListComprehension.
type interp struct {
	ctx      context.Context
	g        *pyir.Graph
	snap     Snapshot
	values   map[pyir.ValueId]string
	writes   map[string]Write
	overlay  map[string]string // writes observable to later reads within this run
	loopVars []map[string]string
	errs     []string
}

// RunHybrid interprets g's execution_order against snap, per spec
// §4.I's Hybrid-tier semantics. ctx is checked between top-level
// statements so a host can cancel a pathological loop; it is not a
// strict per-node budget.
func RunHybrid(ctx context.Context, g *pyir.Graph, snap Snapshot) Result {
	it := &interp{
		ctx:     ctx,
		g:       g,
		snap:    snap,
		values:  map[pyir.ValueId]string{},
		writes:  map[string]Write{},
		overlay: map[string]string{},
	}
	nested := nestedOpSet(g)
	for _, id := range g.ExecutionOrder {
		if nested[id] {
			// Already owned by an enclosing IfStmt/ForLoop/
			// ListComprehension body; running it here too would
			// execute it unconditionally instead of only when its
			// parent actually reaches it.
			continue
		}
		if err := ctx.Err(); err != nil {
			it.errs = append(it.errs, err.Error())
			break
		}
		if err := it.exec(id); err != nil {
			it.errs = append(it.errs, err.Error())
			break
		}
	}
	return Result{Reads: append([]string(nil), g.Reads...), Writes: it.writes, Errors: it.errs}
}

// nestedOpSet collects every OpId that appears inside some other Op's
// Body/ThenBody/ElseBody, since the arena records those nested Ops in
// ExecutionOrder at their construction position alongside top-level
// ones — the flat list alone does not distinguish "run once, here" from
// "run only when the owning control-flow Op says so".
func nestedOpSet(g *pyir.Graph) map[pyir.OpId]bool {
	nested := map[pyir.OpId]bool{}
	for _, op := range g.Operations {
		for _, id := range op.Body {
			nested[id] = true
		}
		for _, id := range op.ThenBody {
			nested[id] = true
		}
		for _, id := range op.ElseBody {
			nested[id] = true
		}
	}
	return nested
}

// exec runs one top-level or nested Op for its side effects, computing
// (and caching) its value along the way if it produces one.
func (it *interp) exec(id pyir.OpId) error {
	_, err := it.eval(id)
	return err
}

// eval computes (memoized) the value produced by the Op at id, running
// side effects for effectful kinds along the way.
func (it *interp) eval(id pyir.OpId) (string, error) {
	op := it.g.Op(id)
	if op.Result >= 0 {
		if v, ok := it.values[op.Result]; ok {
			return v, nil
		}
	}

	var result string
	var err error
	switch op.Kind {
	case pyir.OpStringLiteral:
		result = op.Literal
	case pyir.OpConcat:
		var b strings.Builder
		for _, a := range op.Args {
			s, e := it.evalValue(a)
			if e != nil {
				return "", e
			}
			b.WriteString(s)
		}
		result = b.String()
	case pyir.OpGetVar:
		result = it.lookupVar(op.Var, op.Expand)
	case pyir.OpSetVar:
		v, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		it.setVar(op.Var, v)
	case pyir.OpAppendVar:
		v, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		cur := it.lookupVar(op.Var, false)
		it.setVar(op.Var, joinSpace(cur, v))
	case pyir.OpPrependVar:
		v, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		cur := it.lookupVar(op.Var, false)
		it.setVar(op.Var, joinSpace(v, cur))
	case pyir.OpDelVar:
		it.setVar(op.Var, "")
	case pyir.OpContains:
		item, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		haystack := it.lookupVar(op.Var, false)
		if containsToken(haystack, item) {
			result, err = it.evalValue(op.Then)
		} else {
			result, err = it.evalValue(op.Else)
		}
	case pyir.OpFilter:
		items, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		haystack := strings.Fields(it.lookupVar(op.Var, false))
		set := map[string]bool{}
		for _, h := range haystack {
			set[h] = true
		}
		var kept []string
		for _, tok := range strings.Fields(items) {
			if set[tok] {
				kept = append(kept, tok)
			}
		}
		result = strings.Join(kept, " ")
	case pyir.OpVercmp:
		a, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		b, e := it.evalValue(op.Args[1])
		if e != nil {
			return "", e
		}
		result = strconv.Itoa(debianVercmp(a, b))
	case pyir.OpLen:
		a, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		if items, ok := decodeList(a); ok {
			result = strconv.Itoa(len(items))
		} else {
			result = strconv.Itoa(len(a))
		}
	case pyir.OpStringMethod:
		result, err = it.evalStringMethod(op)
	case pyir.OpIndex:
		x, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		idxS, e := it.evalValue(op.Args[1])
		if e != nil {
			return "", e
		}
		idx, e := strconv.Atoi(idxS)
		if e != nil {
			return "", fmt.Errorf("non-integer index %q", idxS)
		}
		result, err = indexValue(x, idx)
	case pyir.OpSlice:
		x, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		lo, e := it.evalOptionalInt(op.Args[1])
		if e != nil {
			return "", e
		}
		hi, e := it.evalOptionalInt(op.Args[2])
		if e != nil {
			return "", e
		}
		result = sliceValue(x, lo, hi)
	case pyir.OpCompare:
		a, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		b, e := it.evalValue(op.Args[1])
		if e != nil {
			return "", e
		}
		result = boolStr(compareValues(op.Literal, a, b))
	case pyir.OpLogical:
		a, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		aTrue := truthy(a)
		if op.Literal == "and" && !aTrue {
			result = a
			break
		}
		if op.Literal == "or" && aTrue {
			result = a
			break
		}
		b, e := it.evalValue(op.Args[1])
		if e != nil {
			return "", e
		}
		result = b
	case pyir.OpNot:
		a, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		result = boolStr(!truthy(a))
	case pyir.OpConditional:
		cond, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		if truthy(cond) {
			result, err = it.evalValue(op.Then)
		} else {
			result, err = it.evalValue(op.Else)
		}
	case pyir.OpListLiteral:
		items := make([]string, 0, len(op.Args))
		for _, a := range op.Args {
			s, e := it.evalValue(a)
			if e != nil {
				return "", e
			}
			items = append(items, s)
		}
		result = encodeList(items)
	case pyir.OpListComprehension:
		result, err = it.evalListComprehension(op)
	case pyir.OpForLoop:
		err = it.execForLoop(op)
	case pyir.OpIfStmt:
		cond, e := it.evalValue(op.Args[0])
		if e != nil {
			return "", e
		}
		body := op.ThenBody
		if !truthy(cond) {
			body = op.ElseBody
		}
		for _, nested := range body {
			if e := it.exec(nested); e != nil {
				return "", e
			}
		}
	case pyir.OpComplexPython:
		err = fmt.Errorf("complex_python op cannot be interpreted by the hybrid tier: %s", op.Literal)
	default:
		err = fmt.Errorf("unhandled op kind %q", op.Kind)
	}

	if err != nil {
		return "", err
	}
	if op.Result >= 0 {
		it.values[op.Result] = result
	}
	return result, nil
}

// evalValue is a small convenience wrapper for evaluating an operand
// ValueId by looking up its producing Op.
func (it *interp) evalValue(v pyir.ValueId) (string, error) {
	return it.eval(it.g.ProducerOf(v))
}

// EvalValue resolves a single ValueId to its string result using the
// Hybrid tier's interpreter, for the Recipe Extractor's inline
// `${@...}` expression sites (spec §4.K step 3): these are pure
// expressions rather than statement graphs, so there is no top-level
// execution_order to walk — only the one value the expression parser
// returned from pyparse.ParseInline needs computing. result is invalid
// (v < 0) if the expression fell back to ComplexPython; callers check
// that case themselves via the graph's ComplexityScore/Tier.
func EvalValue(ctx context.Context, g *pyir.Graph, snap Snapshot, v pyir.ValueId) (string, error) {
	it := &interp{
		ctx:     ctx,
		g:       g,
		snap:    snap,
		values:  map[pyir.ValueId]string{},
		writes:  map[string]Write{},
		overlay: map[string]string{},
	}
	return it.evalValue(v)
}

func (it *interp) evalOptionalInt(v pyir.ValueId) (int, error) {
	if v < 0 {
		return -1, nil
	}
	s, err := it.evalValue(v)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("non-integer slice bound %q", s)
	}
	return n, nil
}

// lookupVar resolves name against the innermost loop binding first
// (covering the bare-identifier-as-GetVar modeling pyparse uses for
// comprehension/loop variables), falling back to this run's write
// overlay and then the caller-supplied snapshot.
func (it *interp) lookupVar(name string, expand bool) string {
	for i := len(it.loopVars) - 1; i >= 0; i-- {
		if v, ok := it.loopVars[i][name]; ok {
			return v
		}
	}
	if v, ok := it.overlay[name]; ok {
		return v
	}
	if it.snap != nil {
		if v, ok := it.snap.GetValue(name); ok {
			if expand {
				return it.snap.Expand(v)
			}
			return v
		}
	}
	return ""
}

func (it *interp) setVar(name, value string) {
	it.overlay[name] = value
	it.writes[name] = Write{Value: value, Confidence: ConfidenceHigh}
}

func (it *interp) evalStringMethod(op pyir.Operation) (string, error) {
	receiver, err := it.evalValue(op.Args[0])
	if err != nil {
		return "", err
	}
	rest := op.Args[1:]
	argAt := func(i int) (string, error) {
		if i >= len(rest) {
			return "", fmt.Errorf("%s: missing argument %d", op.Literal, i)
		}
		return it.evalValue(rest[i])
	}
	switch op.Literal {
	case "split":
		if len(rest) == 0 {
			return encodeList(strings.Fields(receiver)), nil
		}
		sep, err := argAt(0)
		if err != nil {
			return "", err
		}
		return encodeList(strings.Split(receiver, sep)), nil
	case "strip":
		return strings.TrimSpace(receiver), nil
	case "lower":
		return strings.ToLower(receiver), nil
	case "upper":
		return strings.ToUpper(receiver), nil
	case "replace":
		a, err := argAt(0)
		if err != nil {
			return "", err
		}
		b, err := argAt(1)
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(receiver, a, b), nil
	case "startswith":
		prefix, err := argAt(0)
		if err != nil {
			return "", err
		}
		return boolStr(strings.HasPrefix(receiver, prefix)), nil
	case "endswith":
		suffix, err := argAt(0)
		if err != nil {
			return "", err
		}
		return boolStr(strings.HasSuffix(receiver, suffix)), nil
	case "bb_utils_which":
		item, err := argAt(0)
		if err != nil {
			return "", err
		}
		return whichToken(receiver, item), nil
	default:
		return "", fmt.Errorf("unsupported string method %q", op.Literal)
	}
}

// whichToken implements bb.utils.which's pure-semantics approximation:
// the executor has no filesystem access, so "the matched item" means
// item appears verbatim among receiver's colon- or whitespace-separated
// tokens (see DESIGN.md).
func whichToken(receiver, item string) string {
	var toks []string
	if strings.Contains(receiver, ":") {
		toks = strings.Split(receiver, ":")
	} else {
		toks = strings.Fields(receiver)
	}
	for _, t := range toks {
		if t == item {
			return item
		}
	}
	return ""
}

func containsToken(haystack, item string) bool {
	for _, t := range strings.Fields(haystack) {
		if t == item {
			return true
		}
	}
	return false
}

func indexValue(x string, idx int) (string, error) {
	if items, ok := decodeList(x); ok {
		if idx < 0 {
			idx += len(items)
		}
		if idx < 0 || idx >= len(items) {
			return "", fmt.Errorf("list index %d out of range", idx)
		}
		return items[idx], nil
	}
	runes := []rune(x)
	if idx < 0 {
		idx += len(runes)
	}
	if idx < 0 || idx >= len(runes) {
		return "", fmt.Errorf("string index %d out of range", idx)
	}
	return string(runes[idx]), nil
}

func sliceValue(x string, lo, hi int) string {
	if items, ok := decodeList(x); ok {
		lo, hi = clampSlice(lo, hi, len(items))
		return encodeList(items[lo:hi])
	}
	runes := []rune(x)
	lo, hi = clampSlice(lo, hi, len(runes))
	return string(runes[lo:hi])
}

func clampSlice(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi < 0 || hi > n {
		hi = n
	}
	if lo > n {
		lo = n
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func boolStr(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func truthy(s string) bool {
	return s != "" && s != "False" && s != "0"
}

func compareValues(op, a, b string) bool {
	if op == "in" {
		return containsToken(b, a) || strings.Contains(b, a)
	}
	if af, aok := parseFloat(a); aok {
		if bf, bok := parseFloat(b); bok {
			switch op {
			case "==":
				return af == bf
			case "!=":
				return af != bf
			case "<":
				return af < bf
			case ">":
				return af > bf
			case "<=":
				return af <= bf
			case ">=":
				return af >= bf
			}
		}
	}
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	}
	return false
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func joinSpace(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

func (it *interp) evalListComprehension(op pyir.Operation) (string, error) {
	source, err := it.evalValue(op.Args[0])
	if err != nil {
		return "", err
	}
	exprOp := op.Body[0]
	var condOp *pyir.OpId
	if len(op.Body) > 1 {
		condOp = &op.Body[1]
	}

	var out []string
	for _, tok := range tokensOf(source) {
		it.pushLoopVar(op.Var, tok)
		if condOp != nil {
			it.invalidateSubtree(*condOp)
			keep, e := it.eval(*condOp)
			if e != nil {
				it.popLoopVar()
				return "", e
			}
			if !truthy(keep) {
				it.popLoopVar()
				continue
			}
		}
		it.invalidateSubtree(exprOp)
		v, e := it.eval(exprOp)
		it.popLoopVar()
		if e != nil {
			return "", e
		}
		out = append(out, v)
	}
	return encodeList(out), nil
}

func (it *interp) execForLoop(op pyir.Operation) error {
	source, err := it.evalValue(op.Args[0])
	if err != nil {
		return err
	}
	for _, tok := range tokensOf(source) {
		it.pushLoopVar(op.Var, tok)
		for _, nested := range op.Body {
			it.invalidateSubtree(nested)
			if e := it.exec(nested); e != nil {
				it.popLoopVar()
				return e
			}
		}
		it.popLoopVar()
	}
	return nil
}

func (it *interp) pushLoopVar(name, value string) {
	it.loopVars = append(it.loopVars, map[string]string{name: value})
}

func (it *interp) popLoopVar() {
	it.loopVars = it.loopVars[:len(it.loopVars)-1]
}

// invalidateSubtree drops the cached value for id and everything it
// was computed from, so a body re-executed across loop iterations
// re-reads the (now-different) loop-variable binding instead of
// replaying a previous iteration's cached result.
func (it *interp) invalidateSubtree(id pyir.OpId) {
	op := it.g.Op(id)
	if op.Result >= 0 {
		delete(it.values, op.Result)
	}
	for _, a := range op.Args {
		it.invalidateSubtree(it.g.ProducerOf(a))
	}
	if op.Kind == pyir.OpContains || op.Kind == pyir.OpConditional {
		it.invalidateSubtree(it.g.ProducerOf(op.Then))
		it.invalidateSubtree(it.g.ProducerOf(op.Else))
	}
}
