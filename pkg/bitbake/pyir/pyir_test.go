package pyir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraph_StringLiteralAndSetVar(t *testing.T) {
	g := NewGraph()
	lit := g.StringLiteral("arm")
	g.SetVar("FOO", lit)

	assert.Len(t, g.ExecutionOrder, 2)
	assert.Equal(t, ValueId(lit), g.Writes["FOO"])
	assert.Equal(t, costOf[OpStringLiteral]+costOf[OpSetVar], g.ComplexityScore)
}

func TestGraph_GetVarRecordsReadOnce(t *testing.T) {
	g := NewGraph()
	g.GetVar("PN", false)
	g.GetVar("PN", true)
	g.GetVar("PV", false)

	assert.Equal(t, []string{"PN", "PV"}, g.Reads)
}

func TestGraph_ContainsTracksVariableRead(t *testing.T) {
	g := NewGraph()
	item := g.StringLiteral("arm")
	thenV := g.StringLiteral("yes")
	elseV := g.StringLiteral("no")
	g.Contains("DISTRO_FEATURES", item, thenV, elseV)

	assert.Contains(t, g.Reads, "DISTRO_FEATURES")
}

func TestGraph_ComplexPythonForcesCost51(t *testing.T) {
	g := NewGraph()
	g.ComplexPython("unsupported construct: try/except")
	assert.Equal(t, uint32(51), g.ComplexityScore)
}

func TestSelectTier_Boundaries(t *testing.T) {
	assert.Equal(t, TierStatic, SelectTier(0, true))
	assert.Equal(t, TierStatic, SelectTier(3, true))
	assert.Equal(t, TierHybrid, SelectTier(4, true))
	assert.Equal(t, TierHybrid, SelectTier(50, true))
	assert.Equal(t, TierEmbeddedVM, SelectTier(51, true))
	assert.Equal(t, TierUnknown, SelectTier(51, false))
	assert.Equal(t, TierUnknown, SelectTier(1000, false))
}

func TestGraph_ListComprehensionCarriesBody(t *testing.T) {
	g := NewGraph()
	source := g.GetVar("PACKAGECONFIG", true)
	expr := g.StringLiteral("x")
	exprOp := OpId(len(g.Operations) - 1)
	g.ListComprehension(source, "x", -1, exprOp)

	last := g.Op(OpId(len(g.Operations) - 1))
	assert.Equal(t, OpListComprehension, last.Kind)
	assert.Equal(t, []OpId{exprOp}, last.Body)
	_ = expr
}

func TestGraph_IfStmtSeparatesThenAndElseBodies(t *testing.T) {
	g := NewGraph()
	cond := g.StringLiteral("True")
	setOp := g.SetVar("FOO", cond)
	delOp := g.DelVar("BAR")
	g.IfStmt(cond, []OpId{setOp}, []OpId{delOp})

	last := g.Op(OpId(len(g.Operations) - 1))
	assert.Equal(t, []OpId{setOp}, last.ThenBody)
	assert.Equal(t, []OpId{delOp}, last.ElseBody)
}
