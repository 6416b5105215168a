// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/config"
	"github.com/bamachrn/grunt-express-workflow/internal/discover"
	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
	"github.com/bamachrn/grunt-express-workflow/internal/timing"
)

const (
	// maxFailureStatus is the largest failure count reported as exit status.
	maxFailureStatus = 254
	// exitSetupFailure is the exit status used when tests could not be loaded.
	exitSetupFailure = 255
)

// setupFlags finishes cfg after f was parsed: values from the config file and
// the environment are applied and positional arguments replace the spec globs.
func setupFlags(cfg *config.MutableConfig, f *flag.FlagSet) (*config.Config, error) {
	if err := cfg.Load(f); err != nil {
		return nil, err
	}
	if args := f.Args(); len(args) > 0 {
		cfg.Specs = args
	}
	if err := cfg.DeriveDefaults(); err != nil {
		return nil, err
	}
	return cfg.Freeze(), nil
}

// loadTests expands the spec globs of cfg, registers the matched files and
// support files, and drops tests the filters of cfg reject. The returned
// registry has no files if no spec file matched.
func loadTests(ctx context.Context, cfg *config.Config) (*suite.Registry, error) {
	reg := suite.NewRegistry(cfg.SuiteOptions())

	_, st := timing.Start(ctx, "discover")
	files, err := discover.Expand(cfg.Dir(), cfg.Specs())
	st.End()
	if err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "Matched %d spec file(s) with %q", len(files), cfg.Specs())
	if len(files) == 0 {
		return reg, nil
	}

	ctx, st = timing.Start(ctx, "load")
	defer st.End()

	for _, p := range cfg.Require() {
		if err := reg.Require(abs(cfg.Dir(), p)); err != nil {
			return nil, errors.Wrap(err, "failed to load support file")
		}
	}
	for _, p := range files {
		reg.AddFile(abs(cfg.Dir(), p))
	}
	if err := reg.Load(ctx); err != nil {
		return nil, err
	}

	m, err := suite.NewMatcher(cfg.Grep(), cfg.Invert(), cfg.Tags())
	if err != nil {
		return nil, err
	}
	n, err := reg.Select(m, cfg.ForbidOnly())
	if err != nil {
		return nil, err
	}
	logging.Debugf(ctx, "Selected %d test(s) in %d file(s)", n, len(files))
	return reg, nil
}

func abs(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// rel returns p relative to dir if possible.
func rel(dir, p string) string {
	if r, err := filepath.Rel(dir, p); err == nil {
		return r
	}
	return p
}

// exitStatus converts a failure count into an exit status.
func exitStatus(failures int) subcommands.ExitStatus {
	if failures > maxFailureStatus {
		failures = maxFailureStatus
	}
	return subcommands.ExitStatus(failures)
}
