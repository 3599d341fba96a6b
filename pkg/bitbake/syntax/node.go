// Package syntax builds a lossless, error-tolerant concrete syntax tree
// (CST) from a BitBake token stream (spec §3, §4.B). The parser never
// fails: malformed input becomes ErrorNode children alongside diagnostics,
// and the tree always covers the full input byte span.
package syntax

import (
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/lexer"
)

// NodeKind enumerates the composite syntax kinds defined in spec §3.
type NodeKind string

const (
	KindRoot                NodeKind = "ROOT"
	KindVariableAssignment  NodeKind = "VARIABLE_ASSIGNMENT"
	KindOverrideAssignment  NodeKind = "OVERRIDE_ASSIGNMENT"
	KindVariableFlag        NodeKind = "VARIABLE_FLAG"
	KindInheritStatement    NodeKind = "INHERIT_STATEMENT"
	KindIncludeStatement    NodeKind = "INCLUDE_STATEMENT"
	KindRequireStatement    NodeKind = "REQUIRE_STATEMENT"
	KindExportStatement     NodeKind = "EXPORT_STATEMENT"
	KindShellFunction       NodeKind = "SHELL_FUNCTION"
	KindPythonFunction      NodeKind = "PYTHON_FUNCTION"
	KindAnonymousPython     NodeKind = "ANONYMOUS_PYTHON"
	KindErrorNode           NodeKind = "ERROR_NODE"
)

// AssignOp is the closed set of assignment-operator semantics (spec §3).
type AssignOp string

const (
	OpAssign          AssignOp = "ASSIGN"
	OpImmediate       AssignOp = "IMMEDIATE"
	OpSoftDefault     AssignOp = "SOFT_DEFAULT"
	OpWeakDefault     AssignOp = "WEAK_DEFAULT"
	OpAppend          AssignOp = "APPEND"
	OpPrepend         AssignOp = "PREPEND"
	OpAppendNoSpace   AssignOp = "APPEND_NOSPACE"
	OpPrependNoSpace  AssignOp = "PREPEND_NOSPACE"
	OpOverrideAppend  AssignOp = "OVERRIDE_APPEND"
	OpOverridePrepend AssignOp = "OVERRIDE_PREPEND"
	OpOverrideRemove  AssignOp = "OVERRIDE_REMOVE"
)

// opFromTokenKind maps a lexer operator token to its AssignOp.
var opFromTokenKind = map[lexer.Kind]AssignOp{
	lexer.OpAssign:         OpAssign,
	lexer.OpImmediate:      OpImmediate,
	lexer.OpSoftDefault:    OpSoftDefault,
	lexer.OpWeakDefault:    OpWeakDefault,
	lexer.OpAppend:         OpAppend,
	lexer.OpPrepend:        OpPrepend,
	lexer.OpAppendNoSpace:  OpAppendNoSpace,
	lexer.OpPrependNoSpace: OpPrependNoSpace,
}

// Element is either a Token (trivia or significant) or a *Node. Every
// Element knows its own byte span and its verbatim source text, so that
// concatenating a subtree's elements reproduces that subtree's source.
type Element interface {
	ElemSpan() lexer.Span
	ElemText() string
}

// TokenElem wraps a lexer.Token so it can sit in a Node's Children list.
type TokenElem struct {
	Tok lexer.Token
}

func (t TokenElem) ElemSpan() lexer.Span { return t.Tok.Span }
func (t TokenElem) ElemText() string     { return t.Tok.Text }

// Node is an immutable CST node: a kind, an ordered list of children
// (tokens and/or nested nodes), and an optional structured Payload that
// gives O(1) access to the statement's semantic fields without re-walking
// raw tokens. Payload is nil for ROOT; ERROR_NODE carries ErrorData.
type Node struct {
	Kind     NodeKind
	Children []Element
	Payload  any
}

func (n *Node) ElemSpan() lexer.Span {
	if len(n.Children) == 0 {
		return lexer.Span{}
	}
	first := n.Children[0].ElemSpan()
	last := n.Children[len(n.Children)-1].ElemSpan()
	return lexer.Span{Start: first.Start, End: last.End}
}

func (n *Node) ElemText() string {
	var b strings.Builder
	for _, c := range n.Children {
		b.WriteString(c.ElemText())
	}
	return b.String()
}

// AssignmentData is the semantic payload of a VARIABLE_ASSIGNMENT or
// OVERRIDE_ASSIGNMENT node (spec §3 Assignment).
type AssignmentData struct {
	Name           string
	Operator       AssignOp
	OverrideSuffix []string // e.g. ["append", "arm"]; empty if none
	Value          string   // RHS with surrounding quotes stripped, if quoted
	RawValue       string   // RHS exactly as written, including quotes
	NameSpan       lexer.Span
	ValueSpan      lexer.Span
}

// FullName reconstructs "name[:suffix...]" from Name + OverrideSuffix,
// satisfying the invariant in spec §3.
func (a AssignmentData) FullName() string {
	if len(a.OverrideSuffix) == 0 {
		return a.Name
	}
	return a.Name + ":" + strings.Join(a.OverrideSuffix, ":")
}

// FlagData is the payload of a VARIABLE_FLAG node, e.g. SRC_URI[sha256sum].
type FlagData struct {
	Variable string
	Flag     string
	Operator AssignOp
	Value    string
	RawValue string
}

// InheritData is the payload of an INHERIT_STATEMENT node.
type InheritData struct {
	Classes []string
}

// IncludeData is the payload of an INCLUDE_STATEMENT node.
type IncludeData struct {
	Target string
}

// RequireData is the payload of a REQUIRE_STATEMENT node.
type RequireData struct {
	Target string
}

// ExportData is the payload of an EXPORT_STATEMENT node.
type ExportData struct {
	Name string
	// Assignment is non-nil when "export FOO = value" also carried an
	// assignment.
	Assignment *AssignmentData
}

// ShellFunctionData is the payload of a SHELL_FUNCTION node. Body is the
// opaque, uninterpreted byte range between the balanced braces.
type ShellFunctionData struct {
	Name     string
	Body     string
	BodySpan lexer.Span
}

// PythonFunctionData is the payload of a PYTHON_FUNCTION or
// ANONYMOUS_PYTHON node.
type PythonFunctionData struct {
	Name       string // empty for "python() { }" and def-style blocks with no name captured
	Anonymous  bool
	DefStyle   bool // true for top-level "def name():" blocks (indentation body)
	Body       string
	BodySpan   lexer.Span
}

// ErrorData is the payload of an ERROR_NODE.
type ErrorData struct {
	Message string
}

// Tree is the parse result: a ROOT node plus the source it was built from.
type Tree struct {
	Root *Node
	Src  []byte
}

// Text returns the tree's root text, which must equal the original source
// exactly (spec §8 round-trip invariant).
func (t *Tree) Text() string {
	if t.Root == nil {
		return ""
	}
	return t.Root.ElemText()
}

// Walk calls visit for the root node and every descendant node
// (pre-order), skipping plain tokens.
func Walk(n *Node, visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		if child, ok := c.(*Node); ok {
			Walk(child, visit)
		}
	}
}
