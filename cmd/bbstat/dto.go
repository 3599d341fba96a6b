// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"github.com/kraklabs/bbstat/pkg/bitbake/diagnostic"
	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/graph"
	"github.com/kraklabs/bbstat/pkg/bitbake/uri"
)

// graphDTO, recipeDTO and sourceDTO are cmd/bbstat's own JSON projections
// of the core library's output types. The core types (extract.Recipe,
// uri.SourceUri, graph.*) deliberately carry no JSON tags — spec §6 says
// consumers may "project to whatever persistence they wish", so the tags
// live here, at the one consumer that happens to be JSON, rather than on
// the library types every other consumer would have to carry them too.
type graphDTO struct {
	Recipes []recipeDTO    `json:"recipes"`
	Sources []sourceDTO    `json:"sources"`
	Edges   []edgeDTO      `json:"edges"`
	Summary diagnosticsDTO `json:"diagnostics"`
}

type recipeDTO struct {
	Path              string                   `json:"path"`
	Kind              string                   `json:"kind"`
	PackageName       string                   `json:"package_name"`
	BasePackageName   string                   `json:"base_package_name"`
	PackageVersion    string                   `json:"package_version"`
	Summary           string                   `json:"summary,omitempty"`
	Description       string                   `json:"description,omitempty"`
	Homepage          string                   `json:"homepage,omitempty"`
	License           string                   `json:"license,omitempty"`
	BuildDepends      []string                 `json:"build_depends,omitempty"`
	RuntimeDepends    []string                 `json:"runtime_depends,omitempty"`
	RuntimeRecommends []string                 `json:"runtime_recommends,omitempty"`
	Provides          []string                 `json:"provides,omitempty"`
	RuntimeProvides   []string                 `json:"runtime_provides,omitempty"`
	Inherits          []string                 `json:"inherits,omitempty"`
	Includes          []string                 `json:"includes,omitempty"`
	ClassExtensions   []string                 `json:"class_extensions,omitempty"`
	Sources           []uriDTO                 `json:"sources,omitempty"`
	Diagnostics       []diagnostic.Diagnostic  `json:"diagnostics,omitempty"`
}

type uriDTO struct {
	Raw       string            `json:"raw"`
	Scheme    string            `json:"scheme"`
	URL       string            `json:"url"`
	Checksums map[string]string `json:"checksums,omitempty"`
	GitRev    string            `json:"git_rev,omitempty"`
}

type sourceDTO struct {
	URL          string   `json:"url"`
	Rev          string   `json:"rev,omitempty"`
	ReferencedBy []string `json:"referenced_by"`
}

type edgeDTO struct {
	From string `json:"from"`
	To   string `json:"to"`
	Kind string `json:"kind"`
}

type diagnosticsDTO struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// graphView converts g into its JSON-serializable projection. IDs are
// carried as their raw string form (graph.RecipeID is a uuid string).
// recipeDTO carries no id, so edgeDTO.From and sourceDTO.ReferencedBy
// cannot be matched to a recipeDTO from this projection alone.
func graphView(g *graph.Graph) graphDTO {
	var out graphDTO
	for _, id := range g.Recipes() {
		rec, _, ok := g.Recipe(id)
		if !ok {
			continue
		}
		out.Recipes = append(out.Recipes, recipeView(rec))
	}
	for _, s := range g.Sources() {
		refs := make([]string, 0, len(s.ReferencedBy))
		for _, id := range s.ReferencedBy {
			refs = append(refs, string(id))
		}
		out.Sources = append(out.Sources, sourceDTO{URL: s.Key.URL, Rev: s.Key.Rev, ReferencedBy: refs})
	}
	for _, e := range g.Edges() {
		out.Edges = append(out.Edges, edgeDTO{From: string(e.From), To: e.ToName, Kind: e.Kind})
	}

	diags := g.Diagnostics()
	out.Summary = diagnosticsDTO{
		Errors:   len(diags[diagnostic.Error]),
		Warnings: len(diags[diagnostic.Warning]),
		Info:     len(diags[diagnostic.Info]),
	}
	return out
}

func recipeView(rec *extract.Recipe) recipeDTO {
	d := recipeDTO{
		Path:              rec.Path,
		Kind:              string(rec.Kind),
		PackageName:       rec.PackageName,
		BasePackageName:   rec.BasePackageName,
		PackageVersion:    rec.PackageVersion,
		Summary:           rec.Summary,
		Description:       rec.Description,
		Homepage:          rec.Homepage,
		License:           rec.License,
		BuildDepends:      rec.BuildDepends,
		RuntimeDepends:    rec.RuntimeDepends,
		RuntimeRecommends: rec.RuntimeRecommends,
		Provides:          rec.Provides,
		RuntimeProvides:   rec.RuntimeProvides,
		Inherits:          rec.Inherits,
		Includes:          rec.Includes,
		ClassExtensions:   rec.ClassExtensions,
		Diagnostics:       rec.ParseDiagnostics,
	}
	for _, s := range rec.Sources {
		d.Sources = append(d.Sources, uriView(s))
	}
	return d
}

func uriView(u uri.SourceUri) uriDTO {
	d := uriDTO{Raw: u.Raw, Scheme: u.Scheme.String(), URL: u.URL, Checksums: u.Checksums}
	if u.Git != nil {
		d.GitRev = u.Git.SrcRev
		if d.GitRev == "" {
			d.GitRev = u.Git.Rev
		}
	}
	return d
}
