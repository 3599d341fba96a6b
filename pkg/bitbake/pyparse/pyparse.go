// Package pyparse implements the Python IR Parser (spec §4.H):
// pattern-directed translation from Python source — either an inline
// `${@...}` expression or an anonymous-Python block body — into a
// pyir.Graph, falling back to the ComplexPython sentinel for anything
// outside the closed grammar this package recognizes.
package pyparse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
)

// ParseInline translates one `${@...}` inline expression (with the
// `@` prefix already stripped by the caller) into a pyir.Graph and the
// ValueId of its result. On any construct outside the closed grammar,
// the Graph instead contains a single ComplexPython Op and the
// returned ValueId is invalid (-1); a diagnostic explains why.
func ParseInline(expr string) (*pyir.Graph, pyir.ValueId, []diagnostic.Diagnostic) {
	g := pyir.NewGraph()

	if kw, bad := containsForbiddenKeyword(expr); bad {
		g.ComplexPython(fmt.Sprintf("disallowed construct %q", kw))
		return g, -1, []diagnostic.Diagnostic{diagnostic.Infof(diagnostic.KindPythonSyntax,
			"inline expression uses disallowed construct %q, falling back to embedded VM tier", kw)}
	}

	toks, err := tokenize(expr)
	if err != nil {
		g.ComplexPython(err.Error())
		return g, -1, []diagnostic.Diagnostic{diagnostic.Infof(diagnostic.KindPythonSyntax,
			"inline expression %q could not be tokenized: %v", expr, err)}
	}

	p := newExprParser(toks, g)
	v, err := p.parseExpr()
	if err != nil {
		fresh := pyir.NewGraph()
		fresh.ComplexPython(err.Error())
		return fresh, -1, []diagnostic.Diagnostic{diagnostic.Infof(diagnostic.KindPythonSyntax,
			"inline expression %q outside supported grammar: %v", expr, err)}
	}
	return g, v, nil
}

var (
	setVarPattern      = regexp.MustCompile(`^d\.setVar\(\s*(.+)\)$`)
	appendVarPattern   = regexp.MustCompile(`^d\.appendVar\(\s*(.+)\)$`)
	prependVarPattern  = regexp.MustCompile(`^d\.prependVar\(\s*(.+)\)$`)
	delVarPattern      = regexp.MustCompile(`^d\.delVar\(\s*(.+)\)$`)
	ifContainsPattern  = regexp.MustCompile(`^if\s+bb\.utils\.contains\((.+)\)\s*:\s*(.+)$`)
	forSplitPattern    = regexp.MustCompile(`^for\s+(\w+)\s+in\s+d\.getVar\((.+)\)\.split\(\)\s*:\s*(.+)$`)
)

// ParseBlock translates an anonymous-Python function body (spec
// §4.H block parser) line by line against a fixed pattern library.
// Any line matching none of the recognized shapes — or any line
// anywhere containing a disallowed construct — turns the *whole*
// block into a single ComplexPython Op, per spec.
func ParseBlock(src string) (*pyir.Graph, []diagnostic.Diagnostic) {
	if kw, bad := containsForbiddenKeyword(src); bad {
		g := pyir.NewGraph()
		g.ComplexPython(fmt.Sprintf("disallowed construct %q", kw))
		return g, []diagnostic.Diagnostic{diagnostic.Infof(diagnostic.KindPythonSyntax,
			"python block uses disallowed construct %q, falling back to embedded VM tier", kw)}
	}

	g := pyir.NewGraph()
	var diags []diagnostic.Diagnostic
	for _, rawLine := range strings.Split(src, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := parseBlockLine(g, line); err != nil {
			fresh := pyir.NewGraph()
			fresh.ComplexPython(err.Error())
			return fresh, []diagnostic.Diagnostic{diagnostic.Infof(diagnostic.KindPythonSyntax,
				"python block line %q outside supported pattern library: %v", line, err)}
		}
	}
	return g, diags
}

// parseBlockLine recognizes exactly one statement-shaped line and
// appends its IR to g, or returns an error describing why it could not.
func parseBlockLine(g *pyir.Graph, line string) error {
	if m := ifContainsPattern.FindStringSubmatch(line); m != nil {
		return parseIfContainsLine(g, m[1], m[2])
	}
	if m := forSplitPattern.FindStringSubmatch(line); m != nil {
		return parseForSplitLine(g, m[1], m[2], m[3])
	}
	return parseSimpleStatement(g, line)
}

// parseSimpleStatement recognizes a bare `d.setVar(...)` /
// `d.appendVar(...)` / `d.prependVar(...)` / `d.delVar(...)` call.
func parseSimpleStatement(g *pyir.Graph, line string) error {
	switch {
	case setVarPattern.MatchString(line):
		return evalCallStatement(g, line)
	case appendVarPattern.MatchString(line):
		return evalCallStatement(g, line)
	case prependVarPattern.MatchString(line):
		return evalCallStatement(g, line)
	case delVarPattern.MatchString(line):
		return evalCallStatement(g, line)
	default:
		return fmt.Errorf("line matches no recognized statement pattern")
	}
}

// evalCallStatement reuses the inline-expression parser to translate a
// single `d.xxxVar(...)` call statement, since its argument grammar
// (literal names, expressions as values) is identical to the inline
// expression grammar's call form.
func evalCallStatement(g *pyir.Graph, line string) error {
	toks, err := tokenize(line)
	if err != nil {
		return err
	}
	p := newExprParser(toks, g)
	_, err = p.parseExpr()
	return err
}

func parseIfContainsLine(g *pyir.Graph, containsArgs, thenStmt string) error {
	cond := "bb.utils.contains(" + containsArgs + ")"
	toks, err := tokenize(cond)
	if err != nil {
		return err
	}
	p := newExprParser(toks, g)
	condV, err := p.parseExpr()
	if err != nil {
		return err
	}

	if err := parseSimpleStatement(g, strings.TrimSpace(thenStmt)); err != nil {
		return err
	}
	thenOp := g.ExecutionOrder[len(g.ExecutionOrder)-1]
	g.IfStmt(condV, []pyir.OpId{thenOp}, nil)
	return nil
}

func parseForSplitLine(g *pyir.Graph, loopVar, getVarArgs, bodyStmt string) error {
	getVarExpr := "d.getVar(" + getVarArgs + ")"
	toks, err := tokenize(getVarExpr)
	if err != nil {
		return err
	}
	p := newExprParser(toks, g)
	source, err := p.parseExpr()
	if err != nil {
		return err
	}

	if err := parseSimpleStatement(g, strings.TrimSpace(bodyStmt)); err != nil {
		return err
	}
	bodyOp := g.ExecutionOrder[len(g.ExecutionOrder)-1]
	g.ForLoop(source, loopVar, []pyir.OpId{bodyOp})
	return nil
}
