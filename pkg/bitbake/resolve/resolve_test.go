package resolve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/eval"
	"github.com/kraklabs/bbstat/pkg/bitbake/syntax"
)

// recordingHandler implements Handler and just records what it saw, in
// the order it was called, for assertions.
type recordingHandler struct {
	assignments []syntax.AssignmentData
	inherits    [][]string
	shellFuncs  []string
	pyFuncs     []string
	errors      []string
}

func (h *recordingHandler) HandleAssignment(data syntax.AssignmentData) {
	h.assignments = append(h.assignments, data)
}
func (h *recordingHandler) HandleFlag(syntax.FlagData)       {}
func (h *recordingHandler) HandleInherit(classes []string)   { h.inherits = append(h.inherits, classes) }
func (h *recordingHandler) HandleExport(syntax.ExportData)   {}
func (h *recordingHandler) HandleShellFunction(d syntax.ShellFunctionData) {
	h.shellFuncs = append(h.shellFuncs, d.Name)
}
func (h *recordingHandler) HandlePythonFunction(d syntax.PythonFunctionData) {
	h.pyFuncs = append(h.pyFuncs, d.Name)
}
func (h *recordingHandler) HandleErrorNode(msg string) { h.errors = append(h.errors, msg) }

func memOpener(files map[string]string) Opener {
	return func(path string) ([]byte, error) {
		if content, ok := files[path]; ok {
			return []byte(content), nil
		}
		return nil, fmt.Errorf("no such file: %s", path)
	}
}

func TestWalk_AppliesAssignmentsInOrder(t *testing.T) {
	files := map[string]string{
		"/recipe.bb": "DEPENDS = \"a\"\nDEPENDS += \"b\"\n",
	}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	h := &recordingHandler{}
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{}, h, diags)

	v, _ := ev.GetValue("DEPENDS")
	assert.Equal(t, "a b", v)
	assert.Len(t, h.assignments, 2)
}

func TestWalk_IncludeMergesVariablesAndFunctions(t *testing.T) {
	files := map[string]string{
		"/recipe.bb":          "FOO = \"1\"\ninclude common.inc\nBAR = \"2\"\n",
		"/common.inc":         "BAZ = \"common\"\ndo_extra() {\n\techo hi\n}\n",
	}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	h := &recordingHandler{}
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ResolveIncludes: true}, h, diags)

	foo, _ := ev.GetValue("FOO")
	baz, _ := ev.GetValue("BAZ")
	bar, _ := ev.GetValue("BAR")
	assert.Equal(t, "1", foo)
	assert.Equal(t, "common", baz)
	assert.Equal(t, "2", bar)
	assert.Contains(t, h.shellFuncs, "do_extra")
	assert.Empty(t, diags.All())
}

func TestWalk_MissingIncludeIsWarning(t *testing.T) {
	files := map[string]string{"/recipe.bb": "include nope.inc\n"}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ResolveIncludes: true}, &recordingHandler{}, diags)

	require.Len(t, diags.All(), 1)
	assert.Equal(t, diagnostic.Warning, diags.All()[0].Severity)
	assert.Equal(t, diagnostic.KindIncludeMissing, diags.All()[0].Kind)
}

func TestWalk_MissingRequireIsError(t *testing.T) {
	files := map[string]string{"/recipe.bb": "require nope.inc\n"}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ResolveIncludes: true}, &recordingHandler{}, diags)

	require.Len(t, diags.All(), 1)
	assert.Equal(t, diagnostic.Error, diags.All()[0].Severity)
	assert.Equal(t, diagnostic.KindRequireMissing, diags.All()[0].Kind)
}

func TestWalk_IncludeCycleIsBroken(t *testing.T) {
	files := map[string]string{
		"/a.inc": "include b.inc\nA = \"1\"\n",
		"/b.inc": "include a.inc\nB = \"2\"\n",
	}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/a.inc")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	diags := &diagnostic.Bag{}
	assert.NotPanics(t, func() {
		r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ResolveIncludes: true}, &recordingHandler{}, diags)
	})
	assert.True(t, diags.HasSeverity(diagnostic.Warning))
	b, _ := ev.GetValue("B")
	assert.Equal(t, "2", b)
}

func TestWalk_InheritResolvesBbclass(t *testing.T) {
	files := map[string]string{
		"/recipe.bb":            "inherit autotools\n",
		"/classes/autotools.bbclass": "EXTRA_OECONF = \"--disable-static\"\n",
	}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	h := &recordingHandler{}
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ApplyInherits: true, ClassSearchPaths: []string{"/classes"}}, h, diags)

	v, _ := ev.GetValue("EXTRA_OECONF")
	assert.Equal(t, "--disable-static", v)
	assert.Equal(t, [][]string{{"autotools"}}, h.inherits)
}

func TestWalk_IncludeDisabledSkipsResolution(t *testing.T) {
	files := map[string]string{"/recipe.bb": "include common.inc\nFOO = \"1\"\n"}
	r := New(memOpener(files), 0)
	tree, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)

	ev := eval.New(nil, 0, nil)
	diags := &diagnostic.Bag{}
	r.Walk("/recipe.bb", "/", tree, ev, WalkOptions{ResolveIncludes: false}, &recordingHandler{}, diags)

	foo, _ := ev.GetValue("FOO")
	assert.Equal(t, "1", foo)
	assert.Empty(t, diags.All())
}

func TestParseFile_CachesAcrossCalls(t *testing.T) {
	opens := 0
	files := map[string]string{"/recipe.bb": "FOO = \"1\"\n"}
	r := New(func(path string) ([]byte, error) {
		opens++
		return memOpener(files)(path)
	}, 0)
	_, _, err := r.ParseFile("/recipe.bb")
	require.NoError(t, err)
	_, _, err = r.ParseFile("/recipe.bb")
	require.NoError(t, err)
	assert.Equal(t, 1, opens)
}
