// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testingx

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteTree materializes a map of relative-path → file-content under a
// fresh t.TempDir(), returning the directory root. Intended for tests that
// drive cmd/bbstat's real file walker (which opens files through os.ReadFile,
// not an in-memory resolve.Opener) against a throwaway layer tree.
//
// Example:
//
//	root := testingx.WriteTree(t, map[string]string{
//	    "meta-widget/conf/layer.conf":    layerConf,
//	    "meta-widget/recipes-core/widget/widget_1.0.bb": recipeBody,
//	})
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatalf("testingx.WriteTree: mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("testingx.WriteTree: write %s: %v", full, err)
		}
	}
	return root
}

// BasicLayerConf returns a minimal conf/layer.conf body declaring a single
// collection named name at the given priority, matching the BBFILE_*
// variables layer.ParseLayerConf reads (spec §4.F).
func BasicLayerConf(name string, priority int) string {
	return "BBPATH .= \":${LAYERDIR}\"\n" +
		"BBFILE_COLLECTIONS += \"" + name + "\"\n" +
		"BBFILE_PATTERN_" + name + " = \"^${LAYERDIR}/\"\n" +
		"BBFILE_PRIORITY_" + name + " = \"" + strconv.Itoa(priority) + "\"\n"
}
