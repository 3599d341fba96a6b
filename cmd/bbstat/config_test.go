// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []string{"."}, cfg.Layers)
	assert.False(t, cfg.EnableEmbeddedVM)
	assert.Equal(t, 10, cfg.MaxExpansionDepth)
}

func TestSaveAndLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bbstat", "project.yaml")

	cfg := &Config{
		Layers:  []string{"meta", "meta-oe"},
		Machine: "qemuarm64",
		Distro:  "poky",
	}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Layers, loaded.Layers)
	assert.Equal(t, cfg.Machine, loaded.Machine)
	assert.Equal(t, cfg.Distro, loaded.Distro)
}

func TestLoadConfig_EmptyLayersDefaultsToDot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.yaml")
	require.NoError(t, SaveConfig(&Config{}, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, loaded.Layers)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("root", ".bbstat"), ConfigDir("root"))
	assert.Equal(t, filepath.Join("root", ".bbstat", "project.yaml"), ConfigPath("root"))
}
