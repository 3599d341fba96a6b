package syntax

import (
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/lexer"
)

// Parse tokenizes and parses src into a Tree. It never fails: unrecognised
// input is wrapped in ERROR_NODE children and reported via the returned
// diagnostics, and the tree's text always reproduces src byte for byte.
func Parse(src []byte) (*Tree, []diagnostic.Diagnostic) {
	p := &parser{toks: lexer.Tokenize(src), src: src}
	root := p.parseRoot()
	return &Tree{Root: root, Src: src}, p.diags
}

type parser struct {
	toks  []lexer.Token
	pos   int
	src   []byte
	diags []diagnostic.Diagnostic
}

func (p *parser) diagf(kind diagnostic.Kind, span lexer.Span, format string, args ...any) {
	d := diagnostic.Errorf(kind, format, args...).WithSpan(span.Start, span.End)
	p.diags = append(p.diags, d)
}

func (p *parser) peek() lexer.Token {
	if p.pos >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) lexer.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return lexer.Token{Kind: lexer.EOF}
	}
	return p.toks[i]
}

func (p *parser) advance() lexer.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool {
	return p.peek().Kind == lexer.EOF
}

// peekSignificant looks ahead n non-trivia tokens from the current
// position without consuming anything.
func (p *parser) peekSignificant(n int) lexer.Token {
	count := 0
	for i := p.pos; i < len(p.toks); i++ {
		if p.toks[i].Kind.IsTrivia() {
			continue
		}
		if count == n {
			return p.toks[i]
		}
		count++
	}
	return lexer.Token{Kind: lexer.EOF}
}

func (p *parser) parseRoot() *Node {
	root := &Node{Kind: KindRoot}
	for !p.atEOF() {
		tok := p.peek()
		if tok.Kind.IsTrivia() {
			root.Children = append(root.Children, TokenElem{Tok: p.advance()})
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			root.Children = append(root.Children, stmt)
		}
	}
	return root
}

// parseStatement dispatches on the current significant token and always
// makes forward progress.
func (p *parser) parseStatement() Element {
	tok := p.peek()
	switch tok.Kind {
	case lexer.KwInherit:
		return p.parseInherit()
	case lexer.KwInclude:
		return p.parseIncludeOrRequire(KindIncludeStatement)
	case lexer.KwRequire:
		return p.parseIncludeOrRequire(KindRequireStatement)
	case lexer.KwExport:
		return p.parseExport()
	case lexer.KwPython:
		return p.parsePython()
	case lexer.KwDef:
		return p.parseDefStyleFunction()
	case lexer.Ident:
		return p.parseIdentLed()
	default:
		return p.errorToLineEnd("unexpected token " + string(tok.Kind))
	}
}

// errorToLineEnd consumes tokens through the next Newline (inclusive) and
// wraps them in an ERROR_NODE, guaranteeing parseStatement always advances.
func (p *parser) errorToLineEnd(message string) *Node {
	var children []Element
	if p.atEOF() {
		// Nothing to consume: return an empty node; no diagnostic is
		// recorded for it.
		return &Node{Kind: KindErrorNode, Payload: ErrorData{Message: message}}
	}
	for !p.atEOF() {
		t := p.advance()
		children = append(children, TokenElem{Tok: t})
		if t.Kind == lexer.Newline {
			break
		}
	}
	n := &Node{Kind: KindErrorNode, Children: children, Payload: ErrorData{Message: message}}
	p.diagf(diagnostic.KindParseError, n.ElemSpan(), "%s", message)
	return n
}

func (p *parser) parseInherit() *Node {
	var children []Element
	children = append(children, TokenElem{Tok: p.advance()}) // 'inherit'
	var classes []string
	for {
		p.skipSpaceInto(&children)
		if p.peek().Kind == lexer.Ident {
			t := p.advance()
			children = append(children, TokenElem{Tok: t})
			classes = append(classes, t.Text)
			continue
		}
		break
	}
	p.consumeLineEnd(&children)
	return &Node{Kind: KindInheritStatement, Children: children, Payload: InheritData{Classes: classes}}
}

func (p *parser) parseIncludeOrRequire(kind NodeKind) *Node {
	var children []Element
	children = append(children, TokenElem{Tok: p.advance()}) // 'include'/'require'
	p.skipSpaceInto(&children)
	target := p.scanBareWordValue(&children)
	p.consumeLineEnd(&children)
	if kind == KindIncludeStatement {
		return &Node{Kind: kind, Children: children, Payload: IncludeData{Target: target}}
	}
	return &Node{Kind: kind, Children: children, Payload: RequireData{Target: target}}
}

// scanBareWordValue consumes non-trivia, non-newline tokens (idents,
// expansions, strings, colons, dots as part of a filename) up to end of
// line, appending them to children, and returns their concatenated text.
func (p *parser) scanBareWordValue(children *[]Element) string {
	var b strings.Builder
	for {
		tok := p.peek()
		if tok.Kind == lexer.Newline || tok.Kind == lexer.EOF || tok.Kind == lexer.Comment {
			break
		}
		if tok.Kind == lexer.Space {
			// Trailing whitespace before a comment/newline belongs to trivia,
			// but embedded whitespace (rare) is still part of the line; peek
			// ahead to decide whether more content follows.
			nxt := p.peekSignificantRaw(1)
			if nxt.Kind == lexer.Newline || nxt.Kind == lexer.EOF || nxt.Kind == lexer.Comment {
				break
			}
		}
		t := p.advance()
		*children = append(*children, TokenElem{Tok: t})
		if !t.Kind.IsTrivia() {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// peekSignificantRaw peeks n tokens ahead regardless of triviality.
func (p *parser) peekSignificantRaw(n int) lexer.Token {
	return p.peekAt(n)
}

func (p *parser) skipSpaceInto(children *[]Element) {
	for p.peek().Kind == lexer.Space {
		*children = append(*children, TokenElem{Tok: p.advance()})
	}
}

// consumeLineEnd consumes an optional trailing comment and the terminating
// newline (or EOF), appending them to children.
func (p *parser) consumeLineEnd(children *[]Element) {
	p.skipSpaceInto(children)
	if p.peek().Kind == lexer.Comment {
		*children = append(*children, TokenElem{Tok: p.advance()})
	}
	if p.peek().Kind == lexer.Newline {
		*children = append(*children, TokenElem{Tok: p.advance()})
	}
}

func (p *parser) parseExport() *Node {
	var children []Element
	children = append(children, TokenElem{Tok: p.advance()}) // 'export'
	p.skipSpaceInto(&children)

	if p.peek().Kind != lexer.Ident {
		p.diagf(diagnostic.KindParseError, p.peek().Span, "expected identifier after export")
		p.consumeLineEnd(&children)
		return &Node{Kind: KindExportStatement, Children: children, Payload: ExportData{}}
	}
	nameTok := p.advance()
	children = append(children, TokenElem{Tok: nameTok})

	// "export FOO = value" also carries an assignment; "export FOO" alone
	// just marks FOO for the process environment.
	save := p.pos
	var lookaheadChildren []Element
	p.skipSpaceInto(&lookaheadChildren)
	if op, ok := opFromTokenKind[p.peek().Kind]; ok {
		_ = op
		children = append(children, lookaheadChildren...)
		assign := p.parseAssignmentTail(nameTok, nil, &children)
		return &Node{Kind: KindExportStatement, Children: children, Payload: ExportData{Name: nameTok.Text, Assignment: &assign}}
	}
	p.pos = save
	p.consumeLineEnd(&children)
	return &Node{Kind: KindExportStatement, Children: children, Payload: ExportData{Name: nameTok.Text}}
}

// parseIdentLed handles the three statement shapes that start with an
// identifier: VARIABLE_ASSIGNMENT / OVERRIDE_ASSIGNMENT, VARIABLE_FLAG, and
// SHELL_FUNCTION.
func (p *parser) parseIdentLed() Element {
	nameTok := p.advance()
	var children []Element
	children = append(children, TokenElem{Tok: nameTok})

	suffix := p.scanOverrideSuffix(&children)

	if p.peek().Kind == lexer.LBracket {
		return p.parseFlag(nameTok, &children)
	}

	p.skipSpaceInto(&children)
	if _, ok := opFromTokenKind[p.peek().Kind]; ok {
		data := p.parseAssignmentTail(nameTok, suffix, &children)
		kind := KindVariableAssignment
		if len(suffix) > 0 {
			kind = KindOverrideAssignment
		}
		return &Node{Kind: kind, Children: children, Payload: data}
	}

	if p.peek().Kind == lexer.LParen {
		return p.parseShellFunction(nameTok, &children)
	}

	return p.errorToLineEndFrom(children, "unexpected token after identifier "+nameTok.Text)
}

func (p *parser) errorToLineEndFrom(prefix []Element, message string) *Node {
	children := prefix
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == lexer.Newline {
			children = append(children, TokenElem{Tok: p.advance()})
			break
		}
		children = append(children, TokenElem{Tok: p.advance()})
	}
	n := &Node{Kind: KindErrorNode, Children: children, Payload: ErrorData{Message: message}}
	p.diagf(diagnostic.KindParseError, n.ElemSpan(), "%s", message)
	return n
}

// scanOverrideSuffix consumes a chain of ":particle" qualifiers following a
// variable name, e.g. ":append:arm", returning the particle names in order.
func (p *parser) scanOverrideSuffix(children *[]Element) []string {
	var suffix []string
	for {
		switch p.peek().Kind {
		case lexer.ColonAppend:
			t := p.advance()
			*children = append(*children, TokenElem{Tok: t})
			suffix = append(suffix, "append")
		case lexer.ColonPrepend:
			t := p.advance()
			*children = append(*children, TokenElem{Tok: t})
			suffix = append(suffix, "prepend")
		case lexer.ColonRemove:
			t := p.advance()
			*children = append(*children, TokenElem{Tok: t})
			suffix = append(suffix, "remove")
		case lexer.Colon:
			if p.peekAt(1).Kind == lexer.Ident {
				colonTok := p.advance()
				identTok := p.advance()
				*children = append(*children, TokenElem{Tok: colonTok}, TokenElem{Tok: identTok})
				suffix = append(suffix, identTok.Text)
				continue
			}
			return suffix
		default:
			return suffix
		}
	}
}

func (p *parser) parseFlag(nameTok lexer.Token, children *[]Element) *Node {
	*children = append(*children, TokenElem{Tok: p.advance()}) // '['
	var flagName strings.Builder
	for p.peek().Kind != lexer.RBracket && !p.atEOF() && p.peek().Kind != lexer.Newline {
		t := p.advance()
		*children = append(*children, TokenElem{Tok: t})
		if !t.Kind.IsTrivia() {
			flagName.WriteString(t.Text)
		}
	}
	if p.peek().Kind == lexer.RBracket {
		*children = append(*children, TokenElem{Tok: p.advance()})
	}
	p.skipSpaceInto(children)

	op, ok := opFromTokenKind[p.peek().Kind]
	if !ok {
		n := &Node{Kind: KindVariableFlag, Children: *children,
			Payload: FlagData{Variable: nameTok.Text, Flag: flagName.String()}}
		p.diagf(diagnostic.KindParseError, n.ElemSpan(), "expected assignment operator after flag [%s]", flagName.String())
		p.consumeLineEnd(children)
		n.Children = *children
		return n
	}
	opTok := p.advance()
	*children = append(*children, TokenElem{Tok: opTok})
	p.skipSpaceInto(children)

	raw, value, _ := p.scanValue(children)
	p.consumeLineEnd(children)

	return &Node{Kind: KindVariableFlag, Children: *children, Payload: FlagData{
		Variable: nameTok.Text,
		Flag:     flagName.String(),
		Operator: op,
		Value:    value,
		RawValue: raw,
	}}
}

// parseAssignmentTail parses the operator and RHS of an assignment whose
// name/suffix have already been consumed into children.
func (p *parser) parseAssignmentTail(nameTok lexer.Token, suffix []string, children *[]Element) AssignmentData {
	opTok := p.advance()
	*children = append(*children, TokenElem{Tok: opTok})
	p.skipSpaceInto(children)

	op := opFromTokenKind[opTok.Kind]
	if len(suffix) > 0 {
		switch suffix[0] {
		case "append":
			op = OpOverrideAppend
		case "prepend":
			op = OpOverridePrepend
		case "remove":
			op = OpOverrideRemove
		}
	}

	valueStart := p.pos
	raw, value, valueSpan := p.scanValue(children)
	_ = valueStart
	if strings.TrimSpace(raw) == "" {
		p.diagf(diagnostic.KindEmptyAssignment, nameTok.Span, "empty assignment to %s", nameTok.Text)
	}
	p.consumeLineEnd(children)

	return AssignmentData{
		Name:           nameTok.Text,
		Operator:       op,
		OverrideSuffix: suffix,
		Value:          value,
		RawValue:       raw,
		NameSpan:       nameTok.Span,
		ValueSpan:      valueSpan,
	}
}

// scanValue consumes the right-hand side of an assignment up to (but not
// including) a trailing comment or terminating newline, honouring
// backslash-newline continuation for bare (unquoted) multi-line values. It
// appends every consumed token to children and returns (rawText,
// unquotedValue, span).
func (p *parser) scanValue(children *[]Element) (string, string, lexer.Span) {
	start := p.pos
	var raw strings.Builder
	firstSpan, lastSpan := lexer.Span{}, lexer.Span{}
	have := false

	for {
		tok := p.peek()
		switch tok.Kind {
		case lexer.Newline, lexer.EOF, lexer.Comment:
			goto done
		case lexer.Backslash:
			if p.peekAt(1).Kind == lexer.Newline {
				bs := p.advance()
				nl := p.advance()
				*children = append(*children, TokenElem{Tok: bs}, TokenElem{Tok: nl})
				continue
			}
		}
		t := p.advance()
		*children = append(*children, TokenElem{Tok: t})
		if !have {
			firstSpan = t.Span
			have = true
		}
		lastSpan = t.Span
		raw.WriteString(t.Text)
	}
done:
	_ = start
	rawText := raw.String()
	value := unquote(rawText)
	span := lexer.Span{}
	if have {
		span = lexer.Span{Start: firstSpan.Start, End: lastSpan.End}
	}
	return rawText, value, span
}

// unquote strips one layer of matching single/double quotes from a scanned
// value's raw text, trimming surrounding whitespace first. Unquoted or
// malformed values are returned trimmed but otherwise unchanged.
func unquote(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// parseShellFunction parses "name (...) { ...opaque... }".
func (p *parser) parseShellFunction(nameTok lexer.Token, children *[]Element) *Node {
	p.scanParenArgs(children)
	p.skipSpaceInto(children)

	if p.peek().Kind != lexer.LBrace {
		n := &Node{Kind: KindErrorNode, Children: *children, Payload: ErrorData{Message: "expected '{' in function body"}}
		p.diagf(diagnostic.KindParseError, n.ElemSpan(), "expected '{' after %s()", nameTok.Text)
		return n
	}
	body, bodySpan, ok := p.scanBracedBody(children)
	if !ok {
		p.diagf(diagnostic.KindUnbalancedBrace, bodySpan, "unbalanced braces in function body for %s", nameTok.Text)
	}
	p.consumeLineEnd(children)
	return &Node{Kind: KindShellFunction, Children: *children, Payload: ShellFunctionData{
		Name: nameTok.Text, Body: body, BodySpan: bodySpan,
	}}
}

// scanParenArgs consumes a balanced "(...)" group verbatim.
func (p *parser) scanParenArgs(children *[]Element) {
	if p.peek().Kind != lexer.LParen {
		return
	}
	*children = append(*children, TokenElem{Tok: p.advance()})
	depth := 1
	for depth > 0 && !p.atEOF() {
		t := p.advance()
		*children = append(*children, TokenElem{Tok: t})
		switch t.Kind {
		case lexer.LParen:
			depth++
		case lexer.RParen:
			depth--
		}
	}
}

// scanBracedBody consumes a balanced "{ ... }" group starting at the
// current LBrace token, and returns the raw source bytes strictly between
// the outer braces, plus the span of that body and whether braces balanced.
func (p *parser) scanBracedBody(children *[]Element) (string, lexer.Span, bool) {
	openTok := p.advance() // '{'
	*children = append(*children, TokenElem{Tok: openTok})
	bodyStart := openTok.Span.End

	depth := 1
	var bodyEnd int
	balanced := false
	for !p.atEOF() {
		t := p.peek()
		if t.Kind == lexer.LBrace {
			depth++
		} else if t.Kind == lexer.RBrace {
			depth--
			if depth == 0 {
				bodyEnd = t.Span.Start
				*children = append(*children, TokenElem{Tok: p.advance()})
				balanced = true
				break
			}
		}
		*children = append(*children, TokenElem{Tok: p.advance()})
	}
	if !balanced {
		bodyEnd = len(p.src)
	}
	span := lexer.Span{Start: bodyStart, End: bodyEnd}
	if bodyEnd < bodyStart {
		span = lexer.Span{Start: bodyStart, End: bodyStart}
	}
	return string(p.src[span.Start:span.End]), span, balanced
}

// parsePython parses "python [name] () { ... }" (named or anonymous).
func (p *parser) parsePython() *Node {
	var children []Element
	children = append(children, TokenElem{Tok: p.advance()}) // 'python'
	p.skipSpaceInto(&children)

	var name string
	anonymous := false
	if p.peek().Kind == lexer.Ident {
		t := p.advance()
		children = append(children, TokenElem{Tok: t})
		name = t.Text
		if name == "__anonymous" {
			anonymous = true
		}
		p.skipSpaceInto(&children)
	} else {
		anonymous = true
	}

	p.scanParenArgs(&children)
	p.skipSpaceInto(&children)

	if p.peek().Kind != lexer.LBrace {
		n := &Node{Kind: KindErrorNode, Children: children, Payload: ErrorData{Message: "expected '{' in python block"}}
		p.diagf(diagnostic.KindParseError, n.ElemSpan(), "expected '{' after python %s", name)
		return n
	}
	body, bodySpan, ok := p.scanBracedBody(&children)
	if !ok {
		p.diagf(diagnostic.KindUnbalancedBrace, bodySpan, "unbalanced braces in python block %s", name)
	}
	p.consumeLineEnd(&children)

	kind := KindPythonFunction
	if anonymous {
		kind = KindAnonymousPython
	}
	return &Node{Kind: kind, Children: children, Payload: PythonFunctionData{
		Name: name, Anonymous: anonymous, Body: body, BodySpan: bodySpan,
	}}
}

// parseDefStyleFunction parses a top-level "def name(...):" python function
// whose body is indentation-delimited rather than brace-delimited. The
// parser consumes raw source lines (via the token stream) until a line
// starts at column zero with non-trivia content, then slices the opaque
// body text from the original bytes.
func (p *parser) parseDefStyleFunction() *Node {
	var children []Element
	children = append(children, TokenElem{Tok: p.advance()}) // 'def'
	p.skipSpaceInto(&children)

	var name string
	if p.peek().Kind == lexer.Ident {
		t := p.advance()
		children = append(children, TokenElem{Tok: t})
		name = t.Text
	}

	// Consume the rest of the signature line (args, colon, trailing
	// comment) verbatim up to and including its newline.
	for p.peek().Kind != lexer.Newline && !p.atEOF() {
		children = append(children, TokenElem{Tok: p.advance()})
	}
	if p.peek().Kind == lexer.Newline {
		children = append(children, TokenElem{Tok: p.advance()})
	}

	bodyStart := p.pos
	for !p.atEOF() {
		lineStart := p.pos
		first := p.peek()
		if first.Kind == lexer.Newline {
			p.advance()
			continue
		}
		if first.Kind == lexer.Space {
			// Indented line: part of the body; skip to its newline.
			for p.peek().Kind != lexer.Newline && !p.atEOF() {
				p.advance()
			}
			if p.peek().Kind == lexer.Newline {
				p.advance()
			}
			continue
		}
		// Non-indented, non-blank line: body ends before it.
		p.pos = lineStart
		goto doneBody
	}
doneBody:
	bodyEnd := p.pos
	var bodySpan lexer.Span
	var bodyText string
	if bodyEnd > bodyStart {
		startByte := p.toks[bodyStart].Span.Start
		endByte := startByte
		if bodyEnd-1 < len(p.toks) {
			endByte = p.toks[bodyEnd-1].Span.End
		}
		bodySpan = lexer.Span{Start: startByte, End: endByte}
		bodyText = string(p.src[bodySpan.Start:bodySpan.End])
	}
	for i := bodyStart; i < bodyEnd; i++ {
		children = append(children, TokenElem{Tok: p.toks[i]})
	}
	p.pos = bodyEnd

	return &Node{Kind: KindPythonFunction, Children: children, Payload: PythonFunctionData{
		Name: name, DefStyle: true, Body: bodyText, BodySpan: bodySpan,
	}}
}
