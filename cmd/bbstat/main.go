// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the bbstat CLI: a static analyzer for BitBake
// metadata that walks configured layers, extracts recipe metadata
// without running bitbake or fetching any source, and reports recipes,
// dependency edges, and diagnostics.
//
// Usage:
//
//	bbstat init                    Create .bbstat/project.yaml configuration
//	bbstat scan [--json]           Walk layers and extract every recipe
//	bbstat status [--json]         Show configured layers without scanning
//	bbstat query <pn> [--json]     Look up one recipe's projected metadata
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	fs := pflag.NewFlagSet("bbstat", pflag.ExitOnError)
	fs.SetInterspersed(false)
	showVersion := fs.Bool("version", false, "Show version and exit")
	configPath := fs.String("config", "", "Path to .bbstat/project.yaml (default: ./.bbstat/project.yaml)")

	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `bbstat - BitBake metadata static analyzer

Usage:
  bbstat <command> [options]

Commands:
  init      Create .bbstat/project.yaml configuration
  scan      Walk configured layers and extract every recipe
  status    Show configured layers without running a full scan
  query     Look up one recipe's projected metadata

Global Options:
  --config   Path to .bbstat/project.yaml
  --version  Show version and exit

Examples:
  bbstat init
  bbstat scan --json
  bbstat query busybox
  bbstat query --path meta/recipes-core/busybox/busybox_1.36.1.bb

`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if *showVersion {
		fmt.Printf("bbstat version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs)
	case "scan":
		runScan(cmdArgs, *configPath)
	case "status":
		runStatus(cmdArgs, *configPath)
	case "query":
		runQuery(cmdArgs, *configPath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		fs.Usage()
		os.Exit(1)
	}
}
