// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package testingx provides test fixtures for bbstat's CLI and integration
// tests: synthetic layer trees written to a real temp directory (for
// exercising the host's file walker and resolve.Opener against the actual
// filesystem, not a map) via WriteTree, plus BasicLayerConf for a minimal
// layer.conf body.
//
// This mirrors the teacher's internal/testing package shape — small
// t.Helper() constructors for synthetic fixtures — adapted from CozoDB-backed entities (files/functions/types) to
// BitBake ones (layers/recipes/includes), since bbstat has no persistence
// layer to seed (spec §1 excludes "persistence to any graph database").
//
// Package-internal pkg/bitbake/* tests keep their own small inline
// resolve.Opener fixtures (an in-memory map is simpler there than a real
// temp directory); this package is for tests that need bytes actually on
// disk, namely cmd/bbstat's walker and end-to-end CLI tests.
package testingx
