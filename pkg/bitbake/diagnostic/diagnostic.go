// Package diagnostic defines the structured diagnostic records shared by
// every stage of the BitBake analysis pipeline (lexer, parser, resolver,
// evaluator, Python IR, extractor). No stage ever aborts on a diagnostic;
// each one is attached to the Recipe (or returned alongside a Tree) and
// left for the caller to threshold, per spec §7.
package diagnostic

import "fmt"

// Severity classifies how serious a Diagnostic is. It never changes
// control flow inside the core — only what a caller chooses to do with it.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
	Info    Severity = "info"
)

// Span is a half-open byte range [Start, End) into the source that produced
// a Diagnostic. A zero-value Span (Start == End == 0) means "no span".
type Span struct {
	Start int
	End   int
}

// Kind is a closed-ish set of diagnostic categories. New kinds may be added
// as the pipeline grows; callers should not assume exhaustiveness.
type Kind string

const (
	KindLexError           Kind = "lex_error"
	KindParseError         Kind = "parse_error"
	KindUnbalancedBrace    Kind = "unbalanced_brace"
	KindEmptyAssignment    Kind = "empty_assignment"
	KindIncludeMissing     Kind = "include_missing"
	KindRequireMissing     Kind = "require_missing"
	KindIncludeCycle       Kind = "include_cycle"
	KindInheritMissing     Kind = "inherit_missing"
	KindUnresolvedVariable Kind = "unresolved_variable"
	KindExpansionDepth     Kind = "expansion_depth_exceeded"
	KindInvalidURI         Kind = "invalid_uri"
	KindUnknownScheme      Kind = "unknown_scheme"
	KindPythonSyntax       Kind = "python_syntax"
	KindPythonTimeout      Kind = "python_timeout"
	KindPythonDenied       Kind = "python_denied"
	KindPythonInternal     Kind = "python_internal_error"
	KindPythonUnknown      Kind = "python_unknown_confidence"
	KindLayerConfMissing   Kind = "layer_conf_missing"
	KindLayerConfInvalid   Kind = "layer_conf_invalid"
	KindDuplicateLayerName Kind = "duplicate_layer_name"
)

// Diagnostic is a structured record: {severity, kind, message, path, byte_span?}.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	Path     string   `json:"path,omitempty"`
	Span     *Span    `json:"span,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Path != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", d.Severity, d.Kind, d.Message, d.Path)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Kind, d.Message)
}

// New builds a Diagnostic with no span and no path; use the With* helpers
// to attach context as it becomes known to the caller.
func New(sev Severity, kind Kind, message string) Diagnostic {
	return Diagnostic{Severity: sev, Kind: kind, Message: message}
}

// WithPath returns a copy of d with Path set.
func (d Diagnostic) WithPath(path string) Diagnostic {
	d.Path = path
	return d
}

// WithSpan returns a copy of d with Span set to [start, end).
func (d Diagnostic) WithSpan(start, end int) Diagnostic {
	s := Span{Start: start, End: end}
	d.Span = &s
	return d
}

// Errorf builds an Error-severity Diagnostic.
func Errorf(kind Kind, format string, args ...any) Diagnostic {
	return New(Error, kind, fmt.Sprintf(format, args...))
}

// Warnf builds a Warning-severity Diagnostic.
func Warnf(kind Kind, format string, args ...any) Diagnostic {
	return New(Warning, kind, fmt.Sprintf(format, args...))
}

// Infof builds an Info-severity Diagnostic.
func Infof(kind Kind, format string, args ...any) Diagnostic {
	return New(Info, kind, fmt.Sprintf(format, args...))
}

// Bag accumulates diagnostics across a multi-stage operation (e.g. one
// recipe's full extraction) and exposes severity-bucketed queries, mirroring
// the aggregate view the Recipe Graph (§4.L) exposes across many recipes.
type Bag struct {
	items []Diagnostic
}

// Add appends one or more diagnostics to the bag.
func (b *Bag) Add(ds ...Diagnostic) {
	b.items = append(b.items, ds...)
}

// All returns every diagnostic added so far, in insertion order.
func (b *Bag) All() []Diagnostic {
	return b.items
}

// HasSeverity reports whether any diagnostic in the bag has severity sev.
func (b *Bag) HasSeverity(sev Severity) bool {
	for _, d := range b.items {
		if d.Severity == sev {
			return true
		}
	}
	return false
}

// CountBySeverity returns a map of severity to count, for all three
// severities (absent severities report zero rather than being omitted).
func (b *Bag) CountBySeverity() map[Severity]int {
	counts := map[Severity]int{Error: 0, Warning: 0, Info: 0}
	for _, d := range b.items {
		counts[d.Severity]++
	}
	return counts
}
