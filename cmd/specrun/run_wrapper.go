// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"

	"github.com/bamachrn/grunt-express-workflow/internal/reporting"
	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
	"github.com/bamachrn/grunt-express-workflow/internal/timing"
)

// runWrapper is a wrapper that allows functions from the runner and reporting
// packages to be stubbed out for testing.
type runWrapper interface {
	// run calls runner.Run.
	run(ctx context.Context, root *suite.Suite, cfg *runner.Config) *runner.Result
	// writeResults calls reporting.WriteResults.
	writeResults(dir string, res *runner.Result, version string, tl *timing.Log) error
}

// realRunWrapper is a runWrapper implementation that calls the real functions.
type realRunWrapper struct{}

func (realRunWrapper) run(ctx context.Context, root *suite.Suite, cfg *runner.Config) *runner.Result {
	return runner.Run(ctx, root, cfg)
}

func (realRunWrapper) writeResults(dir string, res *runner.Result, version string, tl *timing.Log) error {
	return reporting.WriteResults(dir, res, version, tl)
}
