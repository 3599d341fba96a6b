// Package pyir implements the Python IR (spec §4.G): a flat,
// append-only arena of Python operations extracted from inline
// `${@...}` expressions and anonymous Python blocks, with a running
// complexity score that drives execution-tier selection.
package pyir

// OpId indexes Graph.Operations / Graph.ExecutionOrder.
type OpId int

// ValueId indexes a value produced by some Op in the graph's SSA value
// space. Not every Op produces a value (SetVar/AppendVar/... are
// effectful and return an OpId instead).
type ValueId int

// OpKind is the closed set of operation kinds spec §3 enumerates.
type OpKind string

const (
	OpStringLiteral     OpKind = "string_literal"
	OpConcat            OpKind = "concat"
	OpGetVar            OpKind = "get_var"
	OpSetVar            OpKind = "set_var"
	OpAppendVar         OpKind = "append_var"
	OpPrependVar        OpKind = "prepend_var"
	OpDelVar            OpKind = "del_var"
	OpContains          OpKind = "contains"
	OpFilter            OpKind = "filter"
	OpVercmp            OpKind = "vercmp"
	OpLen               OpKind = "len"
	OpStringMethod      OpKind = "string_method"
	OpIndex             OpKind = "index"
	OpSlice             OpKind = "slice"
	OpCompare           OpKind = "compare"
	OpLogical           OpKind = "logical"
	OpNot               OpKind = "not"
	OpConditional       OpKind = "conditional"
	OpListLiteral       OpKind = "list_literal"
	OpListComprehension OpKind = "list_comprehension"
	OpForLoop           OpKind = "for_loop"
	OpIfStmt            OpKind = "if_stmt"
	OpComplexPython     OpKind = "complex_python"
)

// costOf is the fixed complexity cost table for each Op kind (spec
// §4.G: "Each constructor... adds the Op's fixed cost to
// complexity_score"). Only ComplexPython's cost (51) is spec-mandated
// directly, chosen so emitting it alone forces the Embedded-VM tier;
// the rest are assigned by rough cost of interpreting them faithfully
// (see DESIGN.md Open Question resolution).
var costOf = map[OpKind]uint32{
	OpStringLiteral:     1,
	OpConcat:            1,
	OpGetVar:            1,
	OpSetVar:            1,
	OpAppendVar:         1,
	OpPrependVar:        1,
	OpDelVar:            1,
	OpContains:          3,
	OpFilter:            3,
	OpVercmp:            3,
	OpLen:               1,
	OpStringMethod:      2,
	OpIndex:             1,
	OpSlice:             2,
	OpCompare:           2,
	OpLogical:           2,
	OpNot:               1,
	OpConditional:       3,
	OpListLiteral:       2,
	OpListComprehension: 8,
	OpForLoop:           8,
	OpIfStmt:            5,
	OpComplexPython:     51,
}

// Operation is one node in the arena. Which fields are meaningful
// depends on Kind; see the Graph builder methods for the intended
// shape of each kind rather than constructing Operation values by hand.
type Operation struct {
	Kind    OpKind
	Var     string    // target/source variable name (GetVar/SetVar/AppendVar/PrependVar/DelVar/Contains/Filter)
	Literal string    // literal text (StringLiteral), sub-operator symbol (StringMethod/Compare/Logical), or free-text reason (ComplexPython)
	Expand  bool      // GetVar(expand=True)
	Args    []ValueId // operand values, meaning depends on Kind
	Then     ValueId // Contains/Conditional "then" branch value
	Else     ValueId // Contains/Conditional "else" branch value
	Body     []OpId  // nested statement ops (ForLoop body, ListComprehension expr+filter)
	ThenBody []OpId  // IfStmt "then" statement ops
	ElseBody []OpId  // IfStmt "else" statement ops, nil if no else clause
	Result   ValueId // value this Op produces, or -1 if none
}

// Graph is the append-only arena for one Python block or inline
// expression: {operations, execution_order, reads, writes,
// complexity_score} per spec §3.
type Graph struct {
	Operations     []Operation
	ExecutionOrder []OpId
	Reads          []string
	Writes         map[string]ValueId
	ComplexityScore uint32

	nextValue     ValueId
	readSeen      map[string]bool
	valueProducer map[ValueId]OpId
}

// NewGraph creates an empty arena.
func NewGraph() *Graph {
	return &Graph{
		Writes:        map[string]ValueId{},
		readSeen:      map[string]bool{},
		valueProducer: map[ValueId]OpId{},
	}
}

// ProducerOf returns the OpId of the Op whose Result is v. Panics if v
// was never produced by an Op in this graph, which would indicate a
// builder bug rather than malformed input.
func (g *Graph) ProducerOf(v ValueId) OpId {
	id, ok := g.valueProducer[v]
	if !ok {
		panic("pyir: value has no producing operation")
	}
	return id
}

func (g *Graph) allocValue() ValueId {
	id := g.nextValue
	g.nextValue++
	return id
}

// append records op in the arena, updates execution_order, and folds
// in its fixed complexity cost. Returns the new Op's id.
func (g *Graph) append(op Operation) OpId {
	id := OpId(len(g.Operations))
	g.Operations = append(g.Operations, op)
	g.ExecutionOrder = append(g.ExecutionOrder, id)
	g.ComplexityScore += costOf[op.Kind]
	if op.Result >= 0 {
		g.valueProducer[op.Result] = id
	}
	return id
}

func (g *Graph) recordRead(name string) {
	if !g.readSeen[name] {
		g.readSeen[name] = true
		g.Reads = append(g.Reads, name)
	}
}

// Op returns the Operation stored at id.
func (g *Graph) Op(id OpId) Operation { return g.Operations[id] }

// StringLiteral records a literal string and returns its value id.
func (g *Graph) StringLiteral(s string) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpStringLiteral, Literal: s, Result: v})
	return v
}

// Concat joins parts left to right.
func (g *Graph) Concat(parts ...ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpConcat, Args: parts, Result: v})
	return v
}

// GetVar reads name from the snapshot, expanding ${...} references
// first when expand is true.
func (g *Graph) GetVar(name string, expand bool) ValueId {
	g.recordRead(name)
	v := g.allocValue()
	g.append(Operation{Kind: OpGetVar, Var: name, Expand: expand, Result: v})
	return v
}

// SetVar writes value to name, observable to later Ops and to the
// Extractor once execution completes.
func (g *Graph) SetVar(name string, value ValueId) OpId {
	g.Writes[name] = value
	return g.append(Operation{Kind: OpSetVar, Var: name, Args: []ValueId{value}, Result: -1})
}

// AppendVar appends value to name (space-joined at execution time).
func (g *Graph) AppendVar(name string, value ValueId) OpId {
	g.Writes[name] = value
	return g.append(Operation{Kind: OpAppendVar, Var: name, Args: []ValueId{value}, Result: -1})
}

// PrependVar prepends value to name.
func (g *Graph) PrependVar(name string, value ValueId) OpId {
	g.Writes[name] = value
	return g.append(Operation{Kind: OpPrependVar, Var: name, Args: []ValueId{value}, Result: -1})
}

// DelVar removes name from the snapshot.
func (g *Graph) DelVar(name string) OpId {
	return g.append(Operation{Kind: OpDelVar, Var: name, Result: -1})
}

// Contains models `bb.utils.contains(var, item, then, else)`: evaluates
// item ∈ var.split() and yields thenID's value if true, elseID's
// otherwise (values, not branch Ops, since both are already computed —
// the Hybrid executor only picks which one to return).
func (g *Graph) Contains(varName string, item, thenID, elseID ValueId) ValueId {
	g.recordRead(varName)
	v := g.allocValue()
	g.append(Operation{Kind: OpContains, Var: varName, Args: []ValueId{item}, Then: thenID, Else: elseID, Result: v})
	return v
}

// Filter models `bb.utils.filter(var, items, d)`: the intersection of
// var.split() and items.split().
func (g *Graph) Filter(varName string, items ValueId) ValueId {
	g.recordRead(varName)
	v := g.allocValue()
	g.append(Operation{Kind: OpFilter, Var: varName, Args: []ValueId{items}, Result: v})
	return v
}

// Vercmp models `bb.utils.vercmp(a, b)`.
func (g *Graph) Vercmp(a, b ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpVercmp, Args: []ValueId{a, b}, Result: v})
	return v
}

// Len models Python's `len(x)`.
func (g *Graph) Len(x ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpLen, Args: []ValueId{x}, Result: v})
	return v
}

// StringMethod models a method call chained off a string value, e.g.
// `.split()`, `.strip()`, `.replace(a, b)`. op names the method.
func (g *Graph) StringMethod(op string, receiver ValueId, args ...ValueId) ValueId {
	v := g.allocValue()
	all := append([]ValueId{receiver}, args...)
	g.append(Operation{Kind: OpStringMethod, Literal: op, Args: all, Result: v})
	return v
}

// Index models `x[i]`.
func (g *Graph) Index(x, idx ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpIndex, Args: []ValueId{x, idx}, Result: v})
	return v
}

// Slice models `x[lo:hi]`; lo or hi may be -1 to mean "omitted".
func (g *Graph) Slice(x, lo, hi ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpSlice, Args: []ValueId{x, lo, hi}, Result: v})
	return v
}

// Compare models `==`, `!=`, `<`, `>`, `<=`, `>=`.
func (g *Graph) Compare(op string, a, b ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpCompare, Literal: op, Args: []ValueId{a, b}, Result: v})
	return v
}

// Logical models short-circuit `and`/`or`.
func (g *Graph) Logical(op string, a, b ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpLogical, Literal: op, Args: []ValueId{a, b}, Result: v})
	return v
}

// Not models unary `not`.
func (g *Graph) Not(x ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpNot, Args: []ValueId{x}, Result: v})
	return v
}

// Conditional models `then if cond else els`.
func (g *Graph) Conditional(cond, then, els ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpConditional, Args: []ValueId{cond}, Then: then, Else: els, Result: v})
	return v
}

// ListLiteral models `[a, b, c]`.
func (g *Graph) ListLiteral(items ...ValueId) ValueId {
	v := g.allocValue()
	g.append(Operation{Kind: OpListLiteral, Args: items, Result: v})
	return v
}

// ListComprehension models `[expr for loopVar in source if cond]`.
// exprOp/condOp reference nested Ops already appended to the arena
// (built by the caller against the loop variable's transient binding);
// condOp may be -1 when there is no filter clause.
func (g *Graph) ListComprehension(source ValueId, loopVar string, condOp, exprOp OpId) ValueId {
	v := g.allocValue()
	body := []OpId{exprOp}
	if condOp >= 0 {
		body = append(body, condOp)
	}
	g.append(Operation{Kind: OpListComprehension, Var: loopVar, Args: []ValueId{source}, Body: body, Result: v})
	return v
}

// ForLoop models a top-level `for x in d.getVar('V').split(): <op>`
// statement in an anonymous-Python block (as opposed to the
// expression-valued ListComprehension above).
func (g *Graph) ForLoop(source ValueId, loopVar string, body []OpId) OpId {
	return g.append(Operation{Kind: OpForLoop, Var: loopVar, Args: []ValueId{source}, Body: body, Result: -1})
}

// IfStmt models `if cond: <body>` in a block parse, with an optional
// elseBody (nil when absent).
func (g *Graph) IfStmt(cond ValueId, thenBody, elseBody []OpId) OpId {
	return g.append(Operation{Kind: OpIfStmt, Args: []ValueId{cond}, ThenBody: thenBody, ElseBody: elseBody, Result: -1})
}

// ComplexPython emits the untranslatable sentinel (spec §4.G: fixed
// cost 51, forcing the Embedded-VM tier on its own). reason is a short
// human-readable note on why the block/expression could not be
// translated, surfaced in diagnostics by pyparse.
func (g *Graph) ComplexPython(reason string) OpId {
	return g.append(Operation{Kind: OpComplexPython, Literal: reason, Result: -1})
}

// Tier is the three-way (plus Unknown) execution strategy selected for
// a Graph, per spec §4.G.
type Tier string

const (
	TierStatic     Tier = "static"
	TierHybrid     Tier = "hybrid"
	TierEmbeddedVM Tier = "embedded_vm"
	TierUnknown    Tier = "unknown"
)

// SelectTier is the pure function of complexity_score spec §4.G
// defines: 0-3 Static, 4-50 Hybrid, >=51 Embedded VM (or Unknown if the
// VM is disabled for this run).
func SelectTier(complexityScore uint32, embeddedVMEnabled bool) Tier {
	switch {
	case complexityScore <= 3:
		return TierStatic
	case complexityScore <= 50:
		return TierHybrid
	default:
		if embeddedVMEnabled {
			return TierEmbeddedVM
		}
		return TierUnknown
	}
}
