// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kraklabs/bbstat/internal/output"
	"github.com/kraklabs/bbstat/internal/ui"
	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/graph"
	"github.com/kraklabs/bbstat/pkg/bitbake/layer"
	"github.com/kraklabs/bbstat/pkg/bitbake/pyvm"
)

// runQuery executes the 'query' CLI command: re-runs the same
// discover-and-extract path 'scan' does, then prints (or, with --json,
// serializes) a single recipe's projected metadata by PN or file path.
// It is deliberately not a persisted lookup against a prior scan's
// output — spec §9's supplemented ResolveVirtual feature and the graph's
// in-memory-only design mean every invocation walks the layers fresh,
// matching the library's "no caller is forced to persist anything"
// framing (spec §6).
func runQuery(args []string, configPath string) {
	fs := pflag.NewFlagSet("query", pflag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	byPath := fs.String("path", "", "Look up a recipe by its file path instead of package name")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bbstat query <package-name> [options]\n       bbstat query --path <recipe.bb> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	pn := ""
	if fs.NArg() > 0 {
		pn = fs.Arg(0)
	}
	if pn == "" && *byPath == "" {
		fmt.Fprintln(os.Stderr, "Error: provide a package name or --path")
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		cfg = DefaultConfig()
	}

	bcLayers, warnings := discoverLayers(cfg.Layers)
	for _, w := range warnings {
		ui.Warning(w)
	}
	bc := layer.NewBuildContext(bcLayers, cfg.Machine, cfg.Distro, cfg.ExtraOverrides)
	bc.IncludeSearchPaths = cfg.SearchPaths

	files, err := walkLayerRoots(cfg.Layers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: walking layers: %v\n", err)
		os.Exit(1)
	}
	appends := appendCandidates(files)

	e := extract.New(fileOpener, bc)
	e.MaxExpansionDepth = cfg.MaxExpansionDepth
	e.EmbeddedVMEnabled = cfg.EnableEmbeddedVM
	if cfg.EnableEmbeddedVM {
		e.VMRunner = pyvm.StarlarkRunner{}
	}

	g := graph.New()
	extractAll(files, appends, e, g, 1)

	id, found := findRecipe(g, pn, *byPath)
	if !found {
		fmt.Fprintf(os.Stderr, "Error: no recipe found matching %q\n", firstNonEmpty(pn, *byPath))
		os.Exit(1)
	}
	rec, _, _ := g.Recipe(id)

	if *jsonOutput {
		output.JSON(recipeView(rec)) //nolint:errcheck
		return
	}
	printRecipe(rec)
}

// findRecipe resolves either a --path lookup (exact, via
// Graph.RecipeByPath) or a package-name lookup (via Graph.Recipes plus a
// linear scan — query is a single-shot CLI invocation, not a hot path, so
// an index here would be premature).
func findRecipe(g *graph.Graph, pn, path string) (graph.RecipeID, bool) {
	if path != "" {
		return g.RecipeByPath(path)
	}
	for _, id := range g.Recipes() {
		rec, _, ok := g.Recipe(id)
		if ok && rec.PackageName == pn {
			return id, true
		}
	}
	return "", false
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func printRecipe(rec *extract.Recipe) {
	ui.Header(rec.PackageName + " " + rec.PackageVersion)
	fmt.Println()
	fmt.Printf("  %s %s\n", ui.Label("Path:"), rec.Path)
	if rec.Summary != "" {
		fmt.Printf("  %s %s\n", ui.Label("Summary:"), rec.Summary)
	}
	if rec.License != "" {
		fmt.Printf("  %s %s\n", ui.Label("License:"), rec.License)
	}
	if len(rec.Inherits) > 0 {
		fmt.Printf("  %s %v\n", ui.Label("Inherits:"), rec.Inherits)
	}
	if len(rec.BuildDepends) > 0 {
		fmt.Printf("  %s %v\n", ui.Label("Depends:"), rec.BuildDepends)
	}
	if len(rec.RuntimeDepends) > 0 {
		fmt.Printf("  %s %v\n", ui.Label("RDepends:"), rec.RuntimeDepends)
	}
	if len(rec.Sources) > 0 {
		fmt.Println()
		ui.SubHeader("Sources:")
		for _, s := range rec.Sources {
			fmt.Printf("  - %s\n", s.Raw)
		}
	}
	if len(rec.ParseDiagnostics) > 0 {
		fmt.Println()
		ui.SubHeader("Diagnostics:")
		for _, d := range rec.ParseDiagnostics {
			fmt.Printf("  %s %s\n", ui.DiagnosticPrefix(string(d.Severity)), d.Message)
		}
	}
}
