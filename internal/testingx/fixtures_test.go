// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testingx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTree(t *testing.T) {
	root := WriteTree(t, map[string]string{
		"meta-widget/conf/layer.conf":                    BasicLayerConf("meta-widget", 6),
		"meta-widget/recipes-core/widget/widget_1.0.bb":  "SUMMARY = \"a widget\"\n",
	})

	content, err := os.ReadFile(filepath.Join(root, "meta-widget/conf/layer.conf"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "BBFILE_PRIORITY_meta-widget = \"6\"")

	recipe, err := os.ReadFile(filepath.Join(root, "meta-widget/recipes-core/widget/widget_1.0.bb"))
	require.NoError(t, err)
	assert.Equal(t, "SUMMARY = \"a widget\"\n", string(recipe))
}

func TestBasicLayerConf(t *testing.T) {
	conf := BasicLayerConf("core", 5)
	assert.Contains(t, conf, `BBFILE_COLLECTIONS += "core"`)
	assert.Contains(t, conf, `BBFILE_PRIORITY_core = "5"`)
}
