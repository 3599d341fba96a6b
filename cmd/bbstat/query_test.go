// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/bbstat/pkg/bitbake/extract"
	"github.com/kraklabs/bbstat/pkg/bitbake/graph"
	"github.com/kraklabs/bbstat/pkg/bitbake/layer"
)

func TestFindRecipe_ByPackageNameAndPath(t *testing.T) {
	root := writeSampleLayer(t)
	files, err := walkLayerRoots([]string{filepath.Join(root, "meta-widget")})
	require.NoError(t, err)
	appends := appendCandidates(files)

	bc := layer.NewBuildContext(nil, "", "", nil)
	e := extract.New(fileOpener, bc)
	g := graph.New()
	extractAll(files, appends, e, g, 1)

	id, ok := findRecipe(g, "widget", "")
	require.True(t, ok)
	rec, _, _ := g.Recipe(id)
	assert.Equal(t, "widget", rec.PackageName)

	wantPath := filepath.Join(root, "meta-widget", "recipes-core", "widget", "widget_1.0.bb")
	id2, ok := findRecipe(g, "", wantPath)
	require.True(t, ok)
	assert.Equal(t, id, id2)

	_, ok = findRecipe(g, "does-not-exist", "")
	assert.False(t, ok)
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}
