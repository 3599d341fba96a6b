package extract

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bbstat/pkg/bitbake/layer"
	"github.com/kraklabs/bbstat/pkg/bitbake/resolve"
)

func memOpener(files map[string]string) resolve.Opener {
	return func(path string) ([]byte, error) {
		if content, ok := files[path]; ok {
			return []byte(content), nil
		}
		return nil, fmt.Errorf("no such file: %s", path)
	}
}

func TestExtract_BasicAssignmentsAndDepends(t *testing.T) {
	files := map[string]string{
		"/layer/recipes/widget_1.0.bb": "SUMMARY = \"a widget\"\n" +
			"LICENSE = \"MIT\"\n" +
			"DEPENDS = \"foo\"\n" +
			"DEPENDS += \"bar\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/layer/recipes/widget_1.0.bb", KindRecipe, nil)

	assert.Empty(t, rec.ParseDiagnostics)
	assert.Equal(t, "widget", rec.PackageName)
	assert.Equal(t, "1.0", rec.PackageVersion)
	assert.Equal(t, "a widget", rec.Summary)
	assert.Equal(t, "MIT", rec.License)
	assert.Equal(t, []string{"bar", "foo"}, rec.BuildDepends)
}

func TestExtract_SrcUriWithSrcRevAttachment(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "SRC_URI = \"git://example.com/widget.git;branch=main;protocol=https\"\n" +
			"SRCREV = \"abc123\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	require.Len(t, rec.Sources, 1)
	src := rec.Sources[0]
	require.NotNil(t, src.Git)
	assert.Equal(t, "main", src.Git.Branch)
	assert.Equal(t, "https", src.Git.Protocol)
	assert.Equal(t, "abc123", src.Git.SrcRev)
}

func TestExtract_NamedSrcRevAttachesToMatchingEntry(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "SRC_URI = \"git://example.com/widget.git;name=kernel;branch=main\"\n" +
			"SRCREV_kernel = \"def456\"\n" +
			"SRCREV = \"shouldnotapply\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	require.Len(t, rec.Sources, 1)
	assert.Equal(t, "def456", rec.Sources[0].Git.SrcRev)
}

func TestExtract_OverrideDependsOverApproximated(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "DEPENDS = \"base\"\n" +
			"DEPENDS:append:arm = \" arm-only\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{Machine: "qemux86"})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	assert.Contains(t, rec.BuildDepends, "base")
	assert.Contains(t, rec.BuildDepends, "arm-only")
}

func TestExtract_InheritedClassIsApplied(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "inherit mything\n",
		"/classes/mything.bbclass": "SUMMARY = \"from class\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{IncludeSearchPaths: []string{"/classes"}})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	assert.Equal(t, []string{"mything"}, rec.Inherits)
	assert.Equal(t, "from class", rec.Summary)
}

func TestExtract_BbappendMergesIntoRecipe(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb":        "DEPENDS = \"base\"\n",
		"/recipes/widget_1.%.bbappend": "DEPENDS += \"extra\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe,
		[]string{"/recipes/widget_1.%.bbappend"})

	assert.Equal(t, []string{"base", "extra"}, rec.BuildDepends)
}

func TestExtract_AnonymousPythonSetVarMergesIntoSnapshot(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "python __anonymous() {\n" +
			"    d.setVar('SUMMARY', 'set from python')\n" +
			"}\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	require.Len(t, rec.PythonBlocks, 1)
	assert.True(t, rec.PythonBlocks[0].Executed)
	assert.Equal(t, "set from python", rec.Summary)
}

func TestExtract_ChecksumFlagMergesOntoSource(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "SRC_URI = \"https://example.com/widget.tar.gz\"\n" +
			"SRC_URI[sha256sum] = \"deadbeef\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	require.Len(t, rec.Sources, 1)
	assert.Equal(t, "deadbeef", rec.Sources[0].Checksums["sha256sum"])
}

func TestExtract_TaskDependsFlagRecorded(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "do_compile[depends] = \"foo:do_populate_sysroot\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	assert.Equal(t, "foo:do_populate_sysroot", rec.TaskDepends["do_compile"])
}

func TestExtract_InlinePythonExpressionResolvedAfterFolding(t *testing.T) {
	files := map[string]string{
		"/recipes/widget_1.0.bb": "PV = \"1.0\"\n" +
			"SUMMARY = \"widget ${@d.getVar('PV')} ${PV}\"\n",
	}
	e := New(memOpener(files), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/recipes/widget_1.0.bb", KindRecipe, nil)

	assert.Equal(t, "widget 1.0 1.0", rec.Summary)
}

func TestExtract_MissingFileRecordsDiagnosticNotPanic(t *testing.T) {
	e := New(memOpener(map[string]string{}), &layer.BuildContext{})
	rec := e.Extract(context.Background(), "/missing.bb", KindRecipe, nil)

	require.NotEmpty(t, rec.ParseDiagnostics)
	assert.Equal(t, "missing", rec.PackageName)
}
