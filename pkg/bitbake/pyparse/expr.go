package pyparse

import (
	"fmt"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
)

// exprParser is a small recursive-descent parser for the closed
// inline-expression grammar spec §4.H names. Anything outside that
// grammar surfaces as an error, which ParseInline turns into a
// ComplexPython sentinel rather than propagating a hard failure (the
// pipeline never aborts on unparseable Python, per spec §7).
type exprParser struct {
	toks []tok
	pos  int
	g    *pyir.Graph
}

func newExprParser(toks []tok, g *pyir.Graph) *exprParser {
	return &exprParser{toks: toks, g: g}
}

func (p *exprParser) peek() tok {
	if p.pos >= len(p.toks) {
		return tok{tEOF, ""}
	}
	return p.toks[p.pos]
}

func (p *exprParser) peekAt(off int) tok {
	if p.pos+off >= len(p.toks) {
		return tok{tEOF, ""}
	}
	return p.toks[p.pos+off]
}

func (p *exprParser) advance() tok {
	t := p.peek()
	p.pos++
	return t
}

func (p *exprParser) atIdent(s string) bool {
	t := p.peek()
	return t.kind == tIdent && t.text == s
}

func (p *exprParser) atPunct(s string) bool {
	t := p.peek()
	return t.kind == tPunct && t.text == s
}

func (p *exprParser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return fmt.Errorf("expected %q, got %q", s, p.peek().text)
	}
	p.advance()
	return nil
}

// parseExpr parses a full ternary-or-lower expression and requires the
// token stream to be fully consumed.
func (p *exprParser) parseExpr() (pyir.ValueId, error) {
	v, err := p.parseTernary()
	if err != nil {
		return 0, err
	}
	if p.peek().kind != tEOF {
		return 0, fmt.Errorf("unexpected trailing token %q", p.peek().text)
	}
	return v, nil
}

func (p *exprParser) parseTernary() (pyir.ValueId, error) {
	thenV, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if !p.atIdent("if") {
		return thenV, nil
	}
	p.advance()
	cond, err := p.parseOr()
	if err != nil {
		return 0, err
	}
	if !p.atIdent("else") {
		return 0, fmt.Errorf("expected 'else' in conditional expression")
	}
	p.advance()
	elseV, err := p.parseTernary()
	if err != nil {
		return 0, err
	}
	return p.g.Conditional(cond, thenV, elseV), nil
}

func (p *exprParser) parseOr() (pyir.ValueId, error) {
	left, err := p.parseAnd()
	if err != nil {
		return 0, err
	}
	for p.atIdent("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return 0, err
		}
		left = p.g.Logical("or", left, right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (pyir.ValueId, error) {
	left, err := p.parseNot()
	if err != nil {
		return 0, err
	}
	for p.atIdent("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		left = p.g.Logical("and", left, right)
	}
	return left, nil
}

func (p *exprParser) parseNot() (pyir.ValueId, error) {
	if p.atIdent("not") {
		p.advance()
		v, err := p.parseNot()
		if err != nil {
			return 0, err
		}
		return p.g.Not(v), nil
	}
	return p.parseComparison()
}

var compareOps = map[string]bool{"==": true, "!=": true, "<=": true, ">=": true, "<": true, ">": true}

func (p *exprParser) parseComparison() (pyir.ValueId, error) {
	left, err := p.parseAtomChain()
	if err != nil {
		return 0, err
	}
	if p.peek().kind == tPunct && compareOps[p.peek().text] {
		op := p.advance().text
		right, err := p.parseAtomChain()
		if err != nil {
			return 0, err
		}
		return p.g.Compare(op, left, right), nil
	}
	if p.atIdent("in") {
		p.advance()
		right, err := p.parseAtomChain()
		if err != nil {
			return 0, err
		}
		return p.g.Compare("in", left, right), nil
	}
	if p.atIdent("not") && p.peekAt(1).kind == tIdent && p.peekAt(1).text == "in" {
		p.advance()
		p.advance()
		right, err := p.parseAtomChain()
		if err != nil {
			return 0, err
		}
		return p.g.Not(p.g.Compare("in", left, right)), nil
	}
	return left, nil
}

// parseAtomChain parses one primary expression plus any trailing
// `.method(args)` / `[index]` / `[lo:hi]` chain.
func (p *exprParser) parseAtomChain() (pyir.ValueId, error) {
	v, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	for {
		switch {
		case p.atPunct("."):
			p.advance()
			if p.peek().kind != tIdent {
				return 0, fmt.Errorf("expected method name after '.'")
			}
			method := p.advance().text
			if err := p.expectPunct("("); err != nil {
				return 0, err
			}
			args, err := p.parseArgs()
			if err != nil {
				return 0, err
			}
			v = p.g.StringMethod(method, v, args...)
		case p.atPunct("["):
			p.advance()
			var lo, hi pyir.ValueId = -1, -1
			isSlice := false
			if !p.atPunct(":") {
				lo, err = p.parseTernary()
				if err != nil {
					return 0, err
				}
			}
			if p.atPunct(":") {
				isSlice = true
				p.advance()
				if !p.atPunct("]") {
					hi, err = p.parseTernary()
					if err != nil {
						return 0, err
					}
				}
			}
			if err := p.expectPunct("]"); err != nil {
				return 0, err
			}
			if isSlice {
				v = p.g.Slice(v, lo, hi)
			} else {
				v = p.g.Index(v, lo)
			}
		default:
			return v, nil
		}
	}
}

// parseArgs parses a comma-separated argument list up to and including
// the closing ')'.
func (p *exprParser) parseArgs() ([]pyir.ValueId, error) {
	var args []pyir.ValueId
	if p.atPunct(")") {
		p.advance()
		return args, nil
	}
	for {
		v, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.atPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *exprParser) parsePrimary() (pyir.ValueId, error) {
	t := p.peek()
	switch {
	case t.kind == tString:
		p.advance()
		return p.g.StringLiteral(t.text), nil
	case t.kind == tNumber:
		p.advance()
		return p.g.StringLiteral(t.text), nil
	case t.kind == tIdent && (t.text == "True" || t.text == "False"):
		p.advance()
		return p.g.StringLiteral(t.text), nil
	case p.atPunct("("):
		p.advance()
		v, err := p.parseTernary()
		if err != nil {
			return 0, err
		}
		if err := p.expectPunct(")"); err != nil {
			return 0, err
		}
		return v, nil
	case p.atPunct("["):
		return p.parseListLiteralOrComprehension()
	case t.kind == tIdent:
		next := p.peekAt(1)
		if next.kind == tPunct && (next.text == "." || next.text == "(") {
			return p.parseDottedCall()
		}
		// A bare name with no call or attribute access can only be a
		// reference to a list comprehension's own loop variable;
		// modeled as a GetVar read against that nominal binding
		// rather than the BitBake datastore (see DESIGN.md).
		p.advance()
		return p.g.GetVar(t.text, false), nil
	default:
		return 0, fmt.Errorf("unexpected token %q", t.text)
	}
}

// parseDottedCall handles a dotted name (`d.getVar`, `bb.utils.contains`,
// `len`, ...) followed by a call, dispatching to the closed function
// set spec §4.H names.
func (p *exprParser) parseDottedCall() (pyir.ValueId, error) {
	name := p.advance().text
	for p.atPunct(".") && p.peekAt(1).kind == tIdent {
		p.advance()
		name += "." + p.advance().text
	}
	if !p.atPunct("(") {
		return 0, fmt.Errorf("bare name reference %q is not supported", name)
	}
	p.advance()
	args, err := p.parseArgs()
	if err != nil {
		return 0, err
	}
	return dispatchCall(p.g, name, args)
}

func literalText(g *pyir.Graph, v pyir.ValueId) (string, bool) {
	op := g.Op(g.ProducerOf(v))
	if op.Kind == pyir.OpStringLiteral {
		return op.Literal, true
	}
	return "", false
}

// dispatchCall translates one recognized call form into IR Ops. Names
// not in this closed set return an error (caller falls back to
// ComplexPython).
func dispatchCall(g *pyir.Graph, name string, args []pyir.ValueId) (pyir.ValueId, error) {
	switch name {
	case "d.getVar":
		if len(args) == 0 {
			return 0, fmt.Errorf("d.getVar requires a variable name argument")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("d.getVar requires a literal variable name")
		}
		expand := false
		if len(args) > 1 {
			if txt, ok := literalText(g, args[1]); ok && txt == "True" {
				expand = true
			}
		}
		return g.GetVar(varName, expand), nil
	case "d.setVar", "d.appendVar", "d.prependVar":
		if len(args) < 2 {
			return 0, fmt.Errorf("%s requires (name, value)", name)
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("%s requires a literal variable name", name)
		}
		switch name {
		case "d.setVar":
			g.SetVar(varName, args[1])
		case "d.appendVar":
			g.AppendVar(varName, args[1])
		case "d.prependVar":
			g.PrependVar(varName, args[1])
		}
		return args[1], nil
	case "d.delVar":
		if len(args) < 1 {
			return 0, fmt.Errorf("d.delVar requires a variable name")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("d.delVar requires a literal variable name")
		}
		g.DelVar(varName)
		return g.StringLiteral(""), nil
	case "bb.utils.contains":
		if len(args) < 4 {
			return 0, fmt.Errorf("bb.utils.contains requires (var, item, truevalue, falsevalue[, d])")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("bb.utils.contains requires a literal variable name")
		}
		return g.Contains(varName, args[1], args[2], args[3]), nil
	case "bb.utils.filter":
		if len(args) < 2 {
			return 0, fmt.Errorf("bb.utils.filter requires (var, items[, d])")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("bb.utils.filter requires a literal variable name")
		}
		return g.Filter(varName, args[1]), nil
	case "bb.utils.vercmp":
		if len(args) < 2 {
			return 0, fmt.Errorf("bb.utils.vercmp requires (a, b)")
		}
		return g.Vercmp(args[0], args[1]), nil
	case "bb.utils.which":
		if len(args) < 2 {
			return 0, fmt.Errorf("bb.utils.which requires (path_var, item)")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("bb.utils.which requires a literal variable name")
		}
		// No dedicated Op kind exists for "which" in the closed set
		// spec §3 enumerates; modeled as a named StringMethod so
		// pyexec can dispatch on Literal=="bb_utils_which" without
		// growing that set (see DESIGN.md).
		return g.StringMethod("bb_utils_which", g.GetVar(varName, false), args[1]), nil
	case "oe.utils.conditional":
		if len(args) < 4 {
			return 0, fmt.Errorf("oe.utils.conditional requires (variable, checkvalue, truevalue, falsevalue[, d])")
		}
		varName, ok := literalText(g, args[0])
		if !ok {
			return 0, fmt.Errorf("oe.utils.conditional requires a literal variable name")
		}
		cmp := g.Compare("==", g.GetVar(varName, false), args[1])
		return g.Conditional(cmp, args[2], args[3]), nil
	case "oe.utils.any_distro_features", "oe.utils.all_distro_features":
		return dispatchDistroFeatures(g, name, args)
	case "len":
		if len(args) < 1 {
			return 0, fmt.Errorf("len requires one argument")
		}
		return g.Len(args[0]), nil
	default:
		return 0, fmt.Errorf("unsupported call %q", name)
	}
}

// dispatchDistroFeatures models oe.utils.any_distro_features/
// all_distro_features by chaining bb.utils.contains-style Contains Ops
// with Logical or/and, since neither is in pyir's enumerated Op set
// individually (see DESIGN.md).
func dispatchDistroFeatures(g *pyir.Graph, name string, args []pyir.ValueId) (pyir.ValueId, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s requires (d, features[, truevalue, falsevalue])", name)
	}
	featuresTxt, ok := literalText(g, args[1])
	if !ok {
		return 0, fmt.Errorf("%s requires a literal feature list", name)
	}
	features := strings.Fields(featuresTxt)
	if len(features) == 0 {
		return 0, fmt.Errorf("%s requires at least one feature", name)
	}
	trueV := g.StringLiteral("1")
	falseV := g.StringLiteral("")
	if len(args) > 2 {
		trueV = args[2]
	}
	if len(args) > 3 {
		falseV = args[3]
	}

	hasFeature := g.Contains("DISTRO_FEATURES", g.StringLiteral(features[0]), g.StringLiteral("1"), g.StringLiteral(""))
	cmp := g.Compare("!=", hasFeature, g.StringLiteral(""))
	for _, f := range features[1:] {
		next := g.Contains("DISTRO_FEATURES", g.StringLiteral(f), g.StringLiteral("1"), g.StringLiteral(""))
		nextCmp := g.Compare("!=", next, g.StringLiteral(""))
		if name == "oe.utils.any_distro_features" {
			cmp = g.Logical("or", cmp, nextCmp)
		} else {
			cmp = g.Logical("and", cmp, nextCmp)
		}
	}
	return g.Conditional(cmp, trueV, falseV), nil
}

// parseListLiteralOrComprehension parses `[a, b, c]` or
// `[expr for x in source (if cond)]`, assuming the opening '[' has not
// yet been consumed.
func (p *exprParser) parseListLiteralOrComprehension() (pyir.ValueId, error) {
	p.advance() // '['
	if p.atPunct("]") {
		p.advance()
		return p.g.ListLiteral(), nil
	}

	start := p.pos
	exprV, err := p.parseTernary()
	if err != nil {
		return 0, err
	}
	if p.atIdent("for") {
		return p.parseComprehensionTail(exprV)
	}
	_ = start

	items := []pyir.ValueId{exprV}
	for p.atPunct(",") {
		p.advance()
		v, err := p.parseTernary()
		if err != nil {
			return 0, err
		}
		items = append(items, v)
	}
	if err := p.expectPunct("]"); err != nil {
		return 0, err
	}
	return p.g.ListLiteral(items...), nil
}

// parseComprehensionTail parses the `for x in source (if cond)]` tail
// once the expression head and "for" have been recognized, emitting a
// ListComprehension Op whose Body references the expr/filter Ops built
// against the loop variable's (purely nominal) binding.
func (p *exprParser) parseComprehensionTail(exprV pyir.ValueId) (pyir.ValueId, error) {
	p.advance() // 'for'
	if p.peek().kind != tIdent {
		return 0, fmt.Errorf("expected loop variable name")
	}
	loopVar := p.advance().text
	if !p.atIdent("in") {
		return 0, fmt.Errorf("expected 'in' in list comprehension")
	}
	p.advance()
	source, err := p.parseAtomChain()
	if err != nil {
		return 0, err
	}

	condOp := pyir.OpId(-1)
	if p.atIdent("if") {
		p.advance()
		condV, err := p.parseTernary()
		if err != nil {
			return 0, err
		}
		condOp = p.g.ProducerOf(condV)
	}
	if err := p.expectPunct("]"); err != nil {
		return 0, err
	}
	exprOp := p.g.ProducerOf(exprV)
	return p.g.ListComprehension(source, loopVar, condOp, exprOp), nil
}
