package pyparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bbstat/pkg/bitbake/pyir"
)

func TestParseInline_GetVarLiteral(t *testing.T) {
	g, v, diags := ParseInline(`d.getVar('PN')`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpGetVar, op.Kind)
	assert.Equal(t, "PN", op.Var)
	assert.False(t, op.Expand)
}

func TestParseInline_ContainsTernaryAndString(t *testing.T) {
	g, v, diags := ParseInline(`"yes" if bb.utils.contains('DISTRO_FEATURES', 'systemd', '1', '0') == '1' else "no"`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpConditional, op.Kind)
}

func TestParseInline_BooleanAndComparison(t *testing.T) {
	g, v, diags := ParseInline(`d.getVar('PV') == '1.0' and not d.getVar('PN') == ''`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpLogical, op.Kind)
	assert.Equal(t, "and", op.Literal)
}

func TestParseInline_Vercmp(t *testing.T) {
	g, v, diags := ParseInline(`bb.utils.vercmp(d.getVar('PV'), '1.0')`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpVercmp, op.Kind)
}

func TestParseInline_ListComprehension(t *testing.T) {
	g, v, diags := ParseInline(`[x for x in d.getVar('PACKAGECONFIG').split() if x == 'systemd']`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpListComprehension, op.Kind)
	assert.Equal(t, "x", op.Var)
	assert.Len(t, op.Body, 2)
}

func TestParseInline_StringMethodChain(t *testing.T) {
	g, v, diags := ParseInline(`d.getVar('PV').split('.')[0]`)
	require.Empty(t, diags)
	op := g.Op(g.ProducerOf(v))
	assert.Equal(t, pyir.OpIndex, op.Kind)
}

func TestParseInline_ForbiddenKeywordFallsBackToComplexPython(t *testing.T) {
	g, v, diags := ParseInline(`eval('1+1')`)
	require.NotEmpty(t, diags)
	assert.Equal(t, pyir.ValueId(-1), v)
	last := g.Op(pyir.OpId(len(g.Operations) - 1))
	assert.Equal(t, pyir.OpComplexPython, last.Kind)
}

func TestParseInline_UnsupportedSyntaxFallsBackToComplexPython(t *testing.T) {
	g, v, diags := ParseInline(`some_unknown_function(1, 2, 3)`)
	require.NotEmpty(t, diags)
	assert.Equal(t, pyir.ValueId(-1), v)
	last := g.Op(pyir.OpId(len(g.Operations) - 1))
	assert.Equal(t, pyir.OpComplexPython, last.Kind)
}

func TestParseBlock_SimpleSetVar(t *testing.T) {
	g, diags := ParseBlock(`d.setVar('PN', 'widget')`)
	require.Empty(t, diags)
	last := g.Op(g.ExecutionOrder[len(g.ExecutionOrder)-1])
	assert.Equal(t, pyir.OpSetVar, last.Kind)
	assert.Contains(t, g.Writes, "PN")
}

func TestParseBlock_IfContainsSetVar(t *testing.T) {
	g, diags := ParseBlock(`if bb.utils.contains('DISTRO_FEATURES', 'systemd', True, False): d.setVar('INIT_MANAGER', 'systemd')`)
	require.Empty(t, diags)
	last := g.Op(g.ExecutionOrder[len(g.ExecutionOrder)-1])
	assert.Equal(t, pyir.OpIfStmt, last.Kind)
}

func TestParseBlock_ForSplitAppendVar(t *testing.T) {
	g, diags := ParseBlock("for f in d.getVar('PACKAGECONFIG').split(): d.appendVar('EXTRA_OECONF', f)")
	require.Empty(t, diags)
	last := g.Op(g.ExecutionOrder[len(g.ExecutionOrder)-1])
	assert.Equal(t, pyir.OpForLoop, last.Kind)
	assert.Equal(t, "f", last.Var)
}

func TestParseBlock_UnrecognizedLineBecomesComplexPythonForWholeBlock(t *testing.T) {
	g, diags := ParseBlock("d.setVar('PN', 'widget')\nsomething_unrecognized()")
	require.NotEmpty(t, diags)
	require.Len(t, g.Operations, 1)
	assert.Equal(t, pyir.OpComplexPython, g.Operations[0].Kind)
}

func TestParseBlock_ForbiddenKeywordAnywhereBecomesComplexPython(t *testing.T) {
	g, diags := ParseBlock("d.setVar('PN', 'widget')\nimport os")
	require.NotEmpty(t, diags)
	require.Len(t, g.Operations, 1)
	assert.Equal(t, pyir.OpComplexPython, g.Operations[0].Kind)
}

func TestParseBlock_BlankLinesAndCommentsIgnored(t *testing.T) {
	g, diags := ParseBlock("\n# a comment\nd.setVar('PN', 'widget')\n\n")
	require.Empty(t, diags)
	assert.Contains(t, g.Writes, "PN")
}
