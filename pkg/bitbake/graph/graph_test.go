package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/uri"
)

func widgetRecipe() *extract.Recipe {
	return &extract.Recipe{
		Path:           "/recipes/widget_1.0.bb",
		Kind:           extract.KindRecipe,
		PackageName:    "widget",
		BuildDepends:   []string{"foo", "bar"},
		RuntimeDepends: []string{"virtual/libc"},
		Provides:       []string{"widget", "virtual/widget"},
		Sources: []uri.SourceUri{
			{URL: "git://example.com/widget.git", Git: &uri.GitParams{SrcRev: "abc123"}},
		},
	}
}

func gadgetRecipe() *extract.Recipe {
	return &extract.Recipe{
		Path:            "/recipes/gadget_2.0.bb",
		Kind:            extract.KindRecipe,
		PackageName:     "gadget",
		RuntimeProvides: []string{"virtual/widget"},
		Sources: []uri.SourceUri{
			{URL: "git://example.com/widget.git", Git: &uri.GitParams{SrcRev: "abc123"}},
		},
	}
}

func TestPublish_AssignsStableIDAcrossRepublish(t *testing.T) {
	g := New()
	id1 := g.Publish(widgetRecipe())
	id2 := g.Publish(widgetRecipe())

	assert.Equal(t, id1, id2)
	assert.Len(t, g.Recipes(), 1)
}

func TestPublish_DistinctRecipesGetDistinctIDs(t *testing.T) {
	g := New()
	id1 := g.Publish(widgetRecipe())
	id2 := g.Publish(gadgetRecipe())

	assert.NotEqual(t, id1, id2)
	assert.Len(t, g.Recipes(), 2)
}

func TestSources_DeduplicatesByUrlAndRev(t *testing.T) {
	g := New()
	g.Publish(widgetRecipe())
	g.Publish(gadgetRecipe())

	sources := g.Sources()
	require.Len(t, sources, 1)
	assert.Len(t, sources[0].ReferencedBy, 2)
}

func TestResolveVirtual_FindsAllProviders(t *testing.T) {
	g := New()
	g.Publish(widgetRecipe())
	g.Publish(gadgetRecipe())

	providers := g.ResolveVirtual("virtual/widget")
	assert.Len(t, providers, 2)
}

func TestResolveVirtual_OwnPackageNameIsImplicitProvider(t *testing.T) {
	g := New()
	id := g.Publish(widgetRecipe())

	providers := g.ResolveVirtual("widget")
	require.Len(t, providers, 1)
	assert.Equal(t, id, providers[0])
}

func TestEdges_OneEdgePerDependencyName(t *testing.T) {
	g := New()
	id := g.Publish(widgetRecipe())

	edges := g.Edges()
	require.Len(t, edges, 3)
	for _, e := range edges {
		assert.Equal(t, id, e.From)
	}
}

func TestEdges_RepublishReplacesPriorEdgesNotAccumulates(t *testing.T) {
	g := New()
	g.Publish(widgetRecipe())
	g.Publish(widgetRecipe())

	assert.Len(t, g.Edges(), 3)
}

func TestRecipeByPath_ResolvesToPublishedID(t *testing.T) {
	g := New()
	id := g.Publish(widgetRecipe())

	got, ok := g.RecipeByPath("/recipes/widget_1.0.bb")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = g.RecipeByPath("/recipes/missing.bb")
	assert.False(t, ok)
}

func TestUnresolvedVirtual_MintsStablePlaceholderUntilProvided(t *testing.T) {
	g := New()

	id1 := g.UnresolvedVirtual("virtual/kernel")
	id2 := g.UnresolvedVirtual("virtual/kernel")
	require.NotEmpty(t, id1)
	assert.Equal(t, id1, id2)

	rec := widgetRecipe()
	rec.PackageName = "linux-mainline"
	rec.Provides = []string{"virtual/kernel"}
	g.Publish(rec)

	assert.Empty(t, g.UnresolvedVirtual("virtual/kernel"))
	providers := g.ResolveVirtual("virtual/kernel")
	require.Len(t, providers, 1)
}

func TestSemverHint_ParsesSemverShapedPV(t *testing.T) {
	g := New()
	rec := widgetRecipe()
	rec.PackageVersion = "1.2.3"
	id := g.Publish(rec)

	v, ok := g.SemverHint(id)
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.String())
}

func TestSemverHint_FalseForUnknownRecipe(t *testing.T) {
	g := New()
	_, ok := g.SemverHint("nonexistent")
	assert.False(t, ok)
}

func TestDiagnostics_AggregatesBySeverityAcrossRecipes(t *testing.T) {
	g := New()
	rec := widgetRecipe()
	rec.ParseDiagnostics = []diagnostic.Diagnostic{
		diagnostic.New(diagnostic.Error, diagnostic.KindParseError, "boom"),
		diagnostic.New(diagnostic.Warning, diagnostic.KindIncludeMissing, "heads up"),
	}
	g.Publish(rec)

	diags := g.Diagnostics()
	assert.Len(t, diags[diagnostic.Error], 1)
	assert.Len(t, diags[diagnostic.Warning], 1)
	assert.Empty(t, diags[diagnostic.Info])
}
