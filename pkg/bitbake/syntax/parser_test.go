package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_LosslessRoundTrip(t *testing.T) {
	inputs := []string{
		``,
		"DEPENDS = \"a b c\"\n",
		"DEPENDS:append = \" extra\"\nDEPENDS:append:arm = \" thumb\"\n",
		"inherit autotools pkgconfig\n",
		"include conf/distro/include/common.inc\n",
		"require recipes-core/base.inc\n",
		"export FOO = \"bar\"\nexport BAZ\n",
		"SRC_URI[sha256sum] = \"abc123\"\n",
		"do_compile() {\n\toe_runmake\n}\n",
		"python do_something() {\n    bb.note('hi')\n}\n",
		"python () {\n    d.setVar('X', '1')\n}\n",
		"def get_depends(d):\n    return 'foo'\n\nDEPENDS = \"bar\"\n",
		"# leading comment\nFOO ?= \"x\" # trailing\n",
		"%%% garbage &&&\nFOO = \"ok\"\n",
	}
	for _, in := range inputs {
		tree, _ := Parse([]byte(in))
		assert.Equal(t, in, tree.Text(), "round trip must hold for %q", in)
	}
}

func TestParse_PlainAssignment(t *testing.T) {
	tree, diags := Parse([]byte(`DEPENDS = "a b"` + "\n"))
	require.Empty(t, diags)
	require.Len(t, tree.Root.Children, 1)
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindVariableAssignment, n.Kind)
	data := n.Payload.(AssignmentData)
	assert.Equal(t, "DEPENDS", data.Name)
	assert.Equal(t, OpAssign, data.Operator)
	assert.Equal(t, "a b", data.Value)
	assert.Empty(t, data.OverrideSuffix)
}

func TestParse_OverrideAppendAssignment(t *testing.T) {
	tree, _ := Parse([]byte(`DEPENDS:append:arm = " thumb"` + "\n"))
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindOverrideAssignment, n.Kind)
	data := n.Payload.(AssignmentData)
	assert.Equal(t, "DEPENDS", data.Name)
	assert.Equal(t, OpOverrideAppend, data.Operator)
	assert.Equal(t, []string{"append", "arm"}, data.OverrideSuffix)
	assert.Equal(t, "DEPENDS:append:arm", data.FullName())
	assert.Equal(t, " thumb", data.Value)
}

func TestParse_PlainOverrideWithoutAppendKeyword(t *testing.T) {
	tree, _ := Parse([]byte(`VAR:arm = "armvalue"` + "\n"))
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindOverrideAssignment, n.Kind)
	data := n.Payload.(AssignmentData)
	assert.Equal(t, OpAssign, data.Operator)
	assert.Equal(t, []string{"arm"}, data.OverrideSuffix)
}

func TestParse_EmptyAssignmentProducesDiagnostic(t *testing.T) {
	_, diags := Parse([]byte("FOO =\n"))
	require.NotEmpty(t, diags)
	assert.Equal(t, "empty_assignment", string(diags[0].Kind))
}

func TestParse_VariableFlag(t *testing.T) {
	tree, diags := Parse([]byte(`SRC_URI[sha256sum] = "deadbeef"` + "\n"))
	require.Empty(t, diags)
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindVariableFlag, n.Kind)
	data := n.Payload.(FlagData)
	assert.Equal(t, "SRC_URI", data.Variable)
	assert.Equal(t, "sha256sum", data.Flag)
	assert.Equal(t, "deadbeef", data.Value)
}

func TestParse_Inherit(t *testing.T) {
	tree, _ := Parse([]byte("inherit autotools pkgconfig\n"))
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindInheritStatement, n.Kind)
	assert.Equal(t, []string{"autotools", "pkgconfig"}, n.Payload.(InheritData).Classes)
}

func TestParse_IncludeAndRequire(t *testing.T) {
	tree, _ := Parse([]byte("include conf/distro/include/common.inc\nrequire recipes-core/base.inc\n"))
	inc := tree.Root.Children[0].(*Node)
	require.Equal(t, KindIncludeStatement, inc.Kind)
	assert.Equal(t, "conf/distro/include/common.inc", inc.Payload.(IncludeData).Target)

	req := tree.Root.Children[1].(*Node)
	require.Equal(t, KindRequireStatement, req.Kind)
	assert.Equal(t, "recipes-core/base.inc", req.Payload.(RequireData).Target)
}

func TestParse_ExportBare(t *testing.T) {
	tree, _ := Parse([]byte("export FOO\n"))
	n := tree.Root.Children[0].(*Node)
	assert.Equal(t, KindExportStatement, n.Kind)
	data := n.Payload.(ExportData)
	assert.Equal(t, "FOO", data.Name)
	assert.Nil(t, data.Assignment)
}

func TestParse_ExportWithAssignment(t *testing.T) {
	tree, _ := Parse([]byte(`export FOO = "bar"` + "\n"))
	n := tree.Root.Children[0].(*Node)
	data := n.Payload.(ExportData)
	require.NotNil(t, data.Assignment)
	assert.Equal(t, "bar", data.Assignment.Value)
}

func TestParse_ShellFunctionOpaqueBody(t *testing.T) {
	src := "do_compile() {\n\toe_runmake 'CFLAGS=${CFLAGS}'\n}\n"
	tree, diags := Parse([]byte(src))
	require.Empty(t, diags)
	n := tree.Root.Children[0].(*Node)
	require.Equal(t, KindShellFunction, n.Kind)
	data := n.Payload.(ShellFunctionData)
	assert.Equal(t, "do_compile", data.Name)
	assert.Contains(t, data.Body, "oe_runmake")
	assert.Contains(t, data.Body, "${CFLAGS}")
}

func TestParse_NamedPythonFunction(t *testing.T) {
	src := "python do_something() {\n    bb.note('hi')\n}\n"
	tree, _ := Parse([]byte(src))
	n := tree.Root.Children[0].(*Node)
	require.Equal(t, KindPythonFunction, n.Kind)
	data := n.Payload.(PythonFunctionData)
	assert.Equal(t, "do_something", data.Name)
	assert.False(t, data.Anonymous)
	assert.Contains(t, data.Body, "bb.note")
}

func TestParse_AnonymousPython(t *testing.T) {
	src := "python () {\n    d.setVar('X', '1')\n}\n"
	tree, _ := Parse([]byte(src))
	n := tree.Root.Children[0].(*Node)
	require.Equal(t, KindAnonymousPython, n.Kind)
	data := n.Payload.(PythonFunctionData)
	assert.True(t, data.Anonymous)
}

func TestParse_DefStyleFunction(t *testing.T) {
	src := "def get_depends(d):\n    x = 1\n    return x\n\nDEPENDS = \"bar\"\n"
	tree, _ := Parse([]byte(src))
	require.Len(t, tree.Root.Children, 2)
	fn := tree.Root.Children[0].(*Node)
	require.Equal(t, KindPythonFunction, fn.Kind)
	data := fn.Payload.(PythonFunctionData)
	assert.True(t, data.DefStyle)
	assert.Equal(t, "get_depends", data.Name)
	assert.Contains(t, data.Body, "return x")

	assign := tree.Root.Children[1].(*Node)
	assert.Equal(t, KindVariableAssignment, assign.Kind)
}

func TestParse_RecoversFromGarbageLine(t *testing.T) {
	src := "%%% garbage &&&\nFOO = \"ok\"\n"
	tree, diags := Parse([]byte(src))
	require.NotEmpty(t, diags)
	require.Len(t, tree.Root.Children, 2)
	assert.Equal(t, KindErrorNode, tree.Root.Children[0].(*Node).Kind)
	second := tree.Root.Children[1].(*Node)
	assert.Equal(t, KindVariableAssignment, second.Kind)
}

func TestParse_UnbalancedBraceReportsDiagnostic(t *testing.T) {
	src := "do_compile() {\n\techo hi\n"
	_, diags := Parse([]byte(src))
	require.NotEmpty(t, diags)
	found := false
	for _, d := range diags {
		if d.Kind == "unbalanced_brace" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParse_NeverPanics(t *testing.T) {
	inputs := []string{
		"\x00\x01",
		"FOO[",
		"python",
		"python (",
		"def",
		"export",
		": append",
		"FOO:append:prepend:remove = \"x\"\n",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() {
			Parse([]byte(in))
		})
	}
}
