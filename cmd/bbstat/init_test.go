// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrompt_DefaultOnEmptyInput(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("\n"))
	got := prompt(reader, "Label", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestPrompt_UsesTypedInput(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("typed-value\n"))
	got := prompt(reader, "Label", "fallback")
	assert.Equal(t, "typed-value", got)
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitAndTrim("a, b ,c"))
	assert.Equal(t, []string{"a"}, splitAndTrim("a,,"))
}

func TestCreateInitConfig_AppliesFlags(t *testing.T) {
	cfg := createInitConfig(initFlags{machine: "qemux86-64", distro: "poky", layers: []string{"meta"}})
	assert.Equal(t, "qemux86-64", cfg.Machine)
	assert.Equal(t, "poky", cfg.Distro)
	assert.Equal(t, []string{"meta"}, cfg.Layers)
}

func TestAddToGitignore_AppendsOnce(t *testing.T) {
	dir := t.TempDir()
	gitignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(gitignorePath, []byte("node_modules/\n"), 0o600))

	addToGitignore(dir)
	content, err := os.ReadFile(gitignorePath)
	require.NoError(t, err)
	assert.Contains(t, string(content), ".bbstat/")

	before := string(content)
	addToGitignore(dir)
	after, err := os.ReadFile(gitignorePath)
	require.NoError(t, err)
	assert.Equal(t, before, string(after), "must not duplicate the entry")
}

func TestAddToGitignore_NoGitignoreIsNoop(t *testing.T) {
	dir := t.TempDir()
	addToGitignore(dir)
	_, err := os.Stat(filepath.Join(dir, ".gitignore"))
	assert.True(t, os.IsNotExist(err))
}
