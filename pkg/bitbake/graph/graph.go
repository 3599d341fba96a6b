// Package graph implements the Recipe Graph (spec §4.L): the thin,
// read-mostly output model that stores what the Recipe Extractor (§4.K)
// produces across many files — interned identifiers, de-duplicated
// source URIs, and cross-recipe dependency edges resolved by name. It
// never re-interprets an extracted Recipe's fields.
package graph

import (
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/uri"
)

// RecipeID is an interned, stable identifier for one published recipe.
type RecipeID string

// State is the per-recipe lifecycle spec §4.L enumerates. Transitions
// are one-way within a single extraction run.
type State string

const (
	StateUnparsed    State = "unparsed"
	StateParsed      State = "parsed"
	StateIncluded    State = "included"
	StateLayerMerged State = "layer_merged"
	StateEvaluated   State = "evaluated"
	StateExtracted   State = "extracted"
	StatePublished   State = "published"
)

// SourceKey de-duplicates source URIs by {url, rev}: two SRC_URI
// entries referring to the same VCS ref, even across different
// recipes, collapse to a single SourceNode (spec §4.L).
type SourceKey struct {
	URL string
	Rev string
}

// SourceNode is one de-duplicated source URI, with the set of recipes
// that reference it.
type SourceNode struct {
	Key         SourceKey
	URI         uri.SourceUri
	ReferencedBy []RecipeID
}

// DependencyEdge is a name-resolved, not pointer-resolved, cross-recipe
// relationship: spec §3's "recipes never own each other" invariant
// means an edge only ever names its target, since the same virtual
// package name can be provided by more than one recipe depending on
// the active machine/distro (spec §9's supplemented ResolveVirtual
// feature makes this concrete rather than collapsing to one target).
type DependencyEdge struct {
	From RecipeID
	ToName string
	Kind string // "build", "runtime", "runtime-recommends"
}

// recipeEntry is one published recipe's graph-visible state: the
// extracted Recipe plus its lifecycle stage and interned id.
type recipeEntry struct {
	id    RecipeID
	state State
	rec   *extract.Recipe
}

// Graph holds every recipe a run has published, interned source nodes,
// and the dependency-edge index used for ResolveVirtual lookups. All
// mutation happens through Publish; everything else is read-only
// iteration, matching spec §4.L's "deliberately thin" framing. Writes
// are expected to be serialised by the host (spec §5); Graph itself
// only guards its own maps with a mutex so a host that publishes from
// several extraction goroutines does not need its own lock.
type Graph struct {
	mu        sync.RWMutex
	recipes   map[RecipeID]*recipeEntry
	byPath    map[string]RecipeID
	sources   map[SourceKey]*SourceNode
	edges     []DependencyEdge
	provides  map[string][]RecipeID // package/virtual name -> providing recipes
	virtuals  map[string]RecipeID   // unresolved virtual name -> placeholder id
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		recipes:  map[RecipeID]*recipeEntry{},
		byPath:   map[string]RecipeID{},
		sources:  map[SourceKey]*SourceNode{},
		provides: map[string][]RecipeID{},
		virtuals: map[string]RecipeID{},
	}
}

// Publish interns rec into the graph, de-duplicating its sources and
// indexing its PROVIDES/RPROVIDES names, and returns the RecipeID it
// was assigned. Calling Publish twice for the same path replaces the
// prior entry (re-extraction supersedes, per spec §4.L's one-way state
// machine being scoped to "a single extraction run").
func (g *Graph) Publish(rec *extract.Recipe) RecipeID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, ok := g.byPath[rec.Path]
	if !ok {
		// A fresh recipe gets a run-scoped identifier the same way an
		// UnresolvedVirtual placeholder does: minted once via uuid and
		// never reused for a different path, even if PN later changes.
		id = RecipeID(uuid.NewString())
		g.byPath[rec.Path] = id
	}
	g.recipes[id] = &recipeEntry{id: id, state: StatePublished, rec: rec}

	for _, s := range rec.Sources {
		key := SourceKey{URL: s.URL}
		if s.Git != nil {
			key.Rev = s.Git.SrcRev
		}
		node, ok := g.sources[key]
		if !ok {
			node = &SourceNode{Key: key, URI: s}
			g.sources[key] = node
		}
		node.ReferencedBy = appendUnique(node.ReferencedBy, id)
	}

	for _, name := range append(append([]string(nil), rec.Provides...), rec.RuntimeProvides...) {
		g.provides[name] = appendUnique(g.provides[name], id)
		delete(g.virtuals, name)
	}
	g.provides[rec.PackageName] = appendUnique(g.provides[rec.PackageName], id)
	delete(g.virtuals, rec.PackageName)

	g.edges = removeEdgesFrom(g.edges, id)
	for _, name := range rec.BuildDepends {
		g.edges = append(g.edges, DependencyEdge{From: id, ToName: name, Kind: "build"})
	}
	for _, name := range rec.RuntimeDepends {
		g.edges = append(g.edges, DependencyEdge{From: id, ToName: name, Kind: "runtime"})
	}
	for _, name := range rec.RuntimeRecommends {
		g.edges = append(g.edges, DependencyEdge{From: id, ToName: name, Kind: "runtime-recommends"})
	}

	return id
}

func appendUnique(ids []RecipeID, id RecipeID) []RecipeID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeEdgesFrom(edges []DependencyEdge, id RecipeID) []DependencyEdge {
	out := edges[:0:0]
	for _, e := range edges {
		if e.From != id {
			out = append(out, e)
		}
	}
	return out
}

// Recipe returns the recipe published under id, and whether it exists.
func (g *Graph) Recipe(id RecipeID) (*extract.Recipe, State, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	entry, ok := g.recipes[id]
	if !ok {
		return nil, "", false
	}
	return entry.rec, entry.state, true
}

// SemverHint best-effort parses a published recipe's PV as a semantic
// version (uri.ParseSemverHint), for a host summarizing or diffing
// recipe versions across two graphs. Returns ok=false for a recipe
// that doesn't exist, or whose PV isn't semver-shaped.
func (g *Graph) SemverHint(id RecipeID) (*semver.Version, bool) {
	g.mu.RLock()
	entry, ok := g.recipes[id]
	g.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return uri.ParseSemverHint(entry.rec.PackageVersion)
}

// RecipeByPath looks up a recipe's id by the file path it was
// extracted from.
func (g *Graph) RecipeByPath(path string) (RecipeID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byPath[path]
	return id, ok
}

// Recipes returns every published recipe id, in a stable (sorted)
// order, for deterministic read-only iteration.
func (g *Graph) Recipes() []RecipeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RecipeID, 0, len(g.recipes))
	for id := range g.recipes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Sources returns every de-duplicated source node, in a stable order.
func (g *Graph) Sources() []*SourceNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*SourceNode, 0, len(g.sources))
	for _, s := range g.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.URL != out[j].Key.URL {
			return out[i].Key.URL < out[j].Key.URL
		}
		return out[i].Key.Rev < out[j].Key.Rev
	})
	return out
}

// Edges returns every dependency edge recorded across all published
// recipes, in a stable order.
func (g *Graph) Edges() []DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]DependencyEdge, len(g.edges))
	copy(out, g.edges)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].ToName < out[j].ToName
	})
	return out
}

// ResolveVirtual returns every recipe that provides name, whether via
// its own PN, PROVIDES, or RPROVIDES — spec §9's "resolved by name, not
// by pointer" model made concrete: a virtual package like
// `virtual/kernel` can legitimately resolve to more than one candidate,
// and it is the caller's job (informed by the active machine/distro) to
// pick among them, not the Graph's.
func (g *Graph) ResolveVirtual(name string) []RecipeID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]RecipeID, len(g.provides[name]))
	copy(out, g.provides[name])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnresolvedVirtual mints (or returns the existing) placeholder
// RecipeID standing in for a dependency name no published recipe
// provides yet — e.g. a `DEPENDS` entry naming `virtual/kernel` before
// any BSP layer providing it has been walked. The placeholder is never
// added to Recipes() or Edges(); it exists purely so a caller building
// a dependency-edge visualization has a stable node identity to point
// at before the real provider shows up, and is discarded automatically
// (via Publish's delete(g.virtuals, name)) once one does.
func (g *Graph) UnresolvedVirtual(name string) RecipeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.provides[name]) > 0 {
		return ""
	}
	if id, ok := g.virtuals[name]; ok {
		return id
	}
	id := RecipeID(uuid.NewString())
	g.virtuals[name] = id
	return id
}

// Diagnostics aggregates every published recipe's parse diagnostics,
// bucketed by severity — a supplemented feature (SPEC_FULL.md §6) that
// complements the per-recipe diagnostic list spec.md already mandates,
// giving a host a single pass/fail gate across an entire run.
func (g *Graph) Diagnostics() map[diagnostic.Severity][]diagnostic.Diagnostic {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := map[diagnostic.Severity][]diagnostic.Diagnostic{
		diagnostic.Error:   nil,
		diagnostic.Warning: nil,
		diagnostic.Info:    nil,
	}
	for _, id := range g.sortedIDs() {
		for _, d := range g.recipes[id].rec.ParseDiagnostics {
			out[d.Severity] = append(out[d.Severity], d)
		}
	}
	return out
}

func (g *Graph) sortedIDs() []RecipeID {
	out := make([]RecipeID, 0, len(g.recipes))
	for id := range g.recipes {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
