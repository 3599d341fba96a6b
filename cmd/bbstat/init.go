// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

// initFlags holds parsed flags for the 'init' command.
type initFlags struct {
	force          bool
	nonInteractive bool
	machine        string
	distro         string
	layers         []string
}

// runInit creates .bbstat/project.yaml, grounded on the teacher's
// cie init: same force/non-interactive/prompt shape, swapping
// project-id/embedding/LLM prompts for the things a BitBake scan
// actually needs (layer roots, MACHINE, DISTRO).
func runInit(args []string) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot get current directory: %v\n", err)
		os.Exit(1)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	cfg := createInitConfig(flags)
	reader := bufio.NewReader(os.Stdin)

	if !flags.nonInteractive {
		runInteractiveConfig(reader, cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	printInitNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := pflag.NewFlagSet("init", pflag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.machine, "machine", "", "MACHINE value")
	fs.StringVar(&f.distro, "distro", "", "DISTRO value")
	fs.StringSliceVar(&f.layers, "layers", nil, "Layer root directory (repeatable, default: .)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: bbstat init [options]

Creates .bbstat/project.yaml configuration file.

Examples:
  bbstat init                          # Interactive setup
  bbstat init -y --layers meta-oe      # Non-interactive with one layer

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(f initFlags) *Config {
	cfg := DefaultConfig()
	if len(f.layers) > 0 {
		cfg.Layers = f.layers
	}
	if f.machine != "" {
		cfg.Machine = f.machine
	}
	if f.distro != "" {
		cfg.Distro = f.distro
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	fmt.Println("bbstat Project Configuration")
	fmt.Println("=============================")
	fmt.Println()

	layersInput := prompt(reader, "Layer directories (comma-separated)", strings.Join(cfg.Layers, ","))
	if layersInput != "" {
		cfg.Layers = splitAndTrim(layersInput)
	}
	cfg.Machine = prompt(reader, "MACHINE", cfg.Machine)
	cfg.Distro = prompt(reader, "DISTRO", cfg.Distro)
	fmt.Println()
}

func saveInitConfig(cwd, configPath string, cfg *Config) {
	dir := ConfigDir(cwd)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create .bbstat directory: %v\n", err)
		os.Exit(1)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot save configuration: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created %s\n", configPath)
	addToGitignore(cwd)
}

func printInitNextSteps() {
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .bbstat/project.yaml if needed")
	fmt.Println("  2. Run 'bbstat scan' to extract recipe metadata")
	fmt.Println("  3. Run 'bbstat status' to verify layer configuration")
}

// prompt displays an interactive prompt and reads a line from stdin,
// returning defaultValue if the user presses Enter without typing
// anything.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultValue
	}
	return input
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// addToGitignore adds .bbstat/ to the project's .gitignore if present and
// not already listed; it is a no-op, not an error, when .gitignore is
// missing or unwritable.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == ".bbstat/" || line == ".bbstat" || line == "/.bbstat/" || line == "/.bbstat" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n# bbstat configuration\n.bbstat/\n")
	fmt.Println("Added .bbstat/ to .gitignore")
}
