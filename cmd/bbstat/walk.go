// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/layer"
)

// fileOpener is the resolve.Opener the CLI host hands to every library
// entry point — the core never reads a file itself (spec §6: "file
// discovery / layer walking ... deliberately out of scope").
func fileOpener(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // G304: path comes from our own directory walk, not user input
}

// discoveredFile is one recipe-shaped file found under a layer root.
type discoveredFile struct {
	Path string
	Kind extract.Kind
}

// kindForExt classifies a path by extension per spec §1/§6's file set
// ({.bb, .bbappend, .bbclass, .inc, .conf}), returning ok=false for
// anything else so the walker can skip it silently.
func kindForExt(path string) (extract.Kind, bool) {
	switch {
	case strings.HasSuffix(path, ".bbappend"):
		return extract.KindAppend, true
	case strings.HasSuffix(path, ".bb"):
		return extract.KindRecipe, true
	case strings.HasSuffix(path, ".bbclass"):
		return extract.KindClass, true
	case strings.HasSuffix(path, ".inc"):
		return extract.KindInclude, true
	case strings.HasSuffix(path, ".conf"):
		return extract.KindConfig, true
	default:
		return "", false
	}
}

// walkLayerRoots recursively discovers every recipe-shaped file under each
// of roots, skipping hidden directories (.git, .bbstat). The conf/
// subtree is walked like any other directory; its .conf files are
// returned as KindConfig entries.
func walkLayerRoots(roots []string) ([]discoveredFile, error) {
	var out []discoveredFile
	for _, root := range roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				base := info.Name()
				if strings.HasPrefix(base, ".") && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			kind, ok := kindForExt(path)
			if !ok {
				return nil
			}
			out = append(out, discoveredFile{Path: path, Kind: kind})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// discoverLayers parses conf/layer.conf under each configured layer root
// (spec §4.F). A root with no conf/layer.conf is skipped with a warning
// rather than aborting the run — a directory of loose recipes with no
// layer identity is still a legitimate single-layer scan target.
func discoverLayers(roots []string) ([]layer.Layer, []string) {
	var layers []layer.Layer
	var warnings []string
	for _, root := range roots {
		confPath := filepath.Join(root, "conf", "layer.conf")
		if _, err := os.Stat(confPath); err != nil {
			warnings = append(warnings, "no conf/layer.conf under "+root+"; treating as an unnamed single layer")
			continue
		}
		l, diags, err := layer.ParseLayerConf(fileOpener, confPath)
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		for _, d := range diags {
			warnings = append(warnings, d.String())
		}
		layers = append(layers, l)
	}
	return layers, warnings
}

// appendCandidates returns the subset of files that are .bbappend, for
// extract.Extractor.Extract's appendCandidates parameter (spec §4.F:
// layer.MatchingAppends filters these down to the ones that actually
// match a given recipe's base name).
func appendCandidates(files []discoveredFile) []string {
	var out []string
	for _, f := range files {
		if f.Kind == extract.KindAppend {
			out = append(out, f.Path)
		}
	}
	return out
}
