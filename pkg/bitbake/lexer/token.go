// Package lexer turns BitBake source bytes into a lossless token stream.
//
// The contract (spec §4.A) is: re-concatenating every token's Text
// reproduces the input exactly, lexing always terminates, and it never
// panics — any byte sequence it cannot classify becomes an Error token
// covering the minimal unrecognisable chunk, and scanning resumes at the
// next plausible boundary.
package lexer

// Kind is a closed-ish enumeration of token kinds. Unlike an AST node kind,
// every byte of the input is accounted for by some token, including
// whitespace and comments (trivia), so that Concat(tokens) == input.
type Kind string

const (
	// Literals / names
	Ident           Kind = "IDENT"
	String          Kind = "STRING"
	VarExpansion    Kind = "VAR_EXPANSION"
	PythonExpansion Kind = "PYTHON_EXPANSION"

	// Trivia
	Newline Kind = "NEWLINE"
	Comment Kind = "COMMENT"
	Space   Kind = "WHITESPACE"

	// Assignment operators
	OpAssign        Kind = "ASSIGN"         // =
	OpImmediate     Kind = "IMMEDIATE"      // :=
	OpSoftDefault   Kind = "SOFT_DEFAULT"   // ?=
	OpWeakDefault   Kind = "WEAK_DEFAULT"   // ??=
	OpAppend        Kind = "APPEND"         // +=
	OpPrepend       Kind = "PREPEND"        // =+
	OpAppendNoSpace Kind = "APPEND_NOSPACE" // .=
	OpPrependNoSpace Kind = "PREPEND_NOSPACE" // =.

	// Override particles and colon
	ColonAppend  Kind = "COLON_APPEND"  // :append
	ColonPrepend Kind = "COLON_PREPEND" // :prepend
	ColonRemove  Kind = "COLON_REMOVE"  // :remove
	Colon        Kind = "COLON"         // bare :

	// Keywords
	KwInherit Kind = "KW_INHERIT"
	KwInclude Kind = "KW_INCLUDE"
	KwRequire Kind = "KW_REQUIRE"
	KwExport  Kind = "KW_EXPORT"
	KwPython  Kind = "KW_PYTHON"
	KwDef     Kind = "KW_DEF"

	// Structural
	LParen    Kind = "LPAREN"
	RParen    Kind = "RPAREN"
	LBrace    Kind = "LBRACE"
	RBrace    Kind = "RBRACE"
	LBracket  Kind = "LBRACKET"
	RBracket  Kind = "RBRACKET"
	Semicolon Kind = "SEMICOLON"
	Backslash Kind = "BACKSLASH"

	Error Kind = "ERROR"
	EOF   Kind = "EOF"
)

// IsTrivia reports whether a token kind carries no syntactic weight beyond
// being reproduced verbatim (whitespace, comments, newlines).
func (k Kind) IsTrivia() bool {
	switch k {
	case Space, Comment, Newline:
		return true
	default:
		return false
	}
}

// Span is a half-open byte range [Start, End) into the lexed source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Token is {kind, text, byte_span} per spec §3.
type Token struct {
	Kind Kind
	Text string
	Span Span
}

var keywords = map[string]Kind{
	"inherit": KwInherit,
	"include": KwInclude,
	"require": KwRequire,
	"export":  KwExport,
	"python":  KwPython,
	"def":     KwDef,
}

// LookupKeyword returns the keyword Kind for word, and ok=true if word is
// one of the recognised keywords; otherwise it returns Ident, false.
func LookupKeyword(word string) (Kind, bool) {
	k, ok := keywords[word]
	if !ok {
		return Ident, false
	}
	return k, true
}
