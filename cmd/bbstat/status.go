// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kraklabs/bbstat/internal/output"
	"github.com/kraklabs/bbstat/internal/ui"
)

// StatusResult is the --json shape of 'bbstat status': a cheap,
// extraction-free check of project configuration and layer identity,
// grounded on the teacher's StatusResult/runStatus pair but swapping the
// CozoDB row counts for the things bbstat can say without running a full
// scan. Layers/Warnings mirror discoverLayers' own return shape so a
// caller can tell "no layers configured" apart from "a layer's
// conf/layer.conf failed to parse".
type StatusResult struct {
	ConfigPath string    `json:"config_path"`
	Configured bool      `json:"configured"`
	Layers     []string  `json:"layers"`
	Machine    string    `json:"machine,omitempty"`
	Distro     string    `json:"distro,omitempty"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command: loads project.yaml (if
// any) and reports which layers it names and whether each one's
// conf/layer.conf parses, without running the Extractor at all.
func runStatus(args []string, configPath string) {
	fs := pflag.NewFlagSet("status", pflag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bbstat status [options]\n\nShows configured layers without running a full scan.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	result := &StatusResult{Timestamp: time.Now()}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		result.Configured = false
		result.Error = err.Error()
		if *jsonOutput {
			output.JSON(result) //nolint:errcheck
		} else {
			fmt.Println("No .bbstat/project.yaml found; run 'bbstat init' or pass --layers to 'bbstat scan'.")
		}
		return
	}

	result.Configured = true
	result.ConfigPath = configPath
	if result.ConfigPath == "" {
		result.ConfigPath = ConfigPath(".")
	}
	result.Layers = cfg.Layers
	result.Machine = cfg.Machine
	result.Distro = cfg.Distro

	_, warnings := discoverLayers(cfg.Layers)
	result.Warnings = warnings

	if *jsonOutput {
		output.JSON(result) //nolint:errcheck
		return
	}
	printStatus(result)
}

func printStatus(r *StatusResult) {
	ui.Header("bbstat project status")
	fmt.Println()
	fmt.Printf("  %s %s\n", ui.Label("Config:"), r.ConfigPath)
	fmt.Printf("  %s %d\n", ui.Label("Layers:"), len(r.Layers))
	for _, l := range r.Layers {
		fmt.Printf("    - %s\n", l)
	}
	if r.Machine != "" {
		fmt.Printf("  %s %s\n", ui.Label("Machine:"), r.Machine)
	}
	if r.Distro != "" {
		fmt.Printf("  %s %s\n", ui.Label("Distro:"), r.Distro)
	}
	if len(r.Warnings) > 0 {
		fmt.Println()
		for _, w := range r.Warnings {
			ui.Warning(w)
		}
	}
}
