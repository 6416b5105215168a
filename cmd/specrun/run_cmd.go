// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"

	"code.cloudfoundry.org/clock"
	"github.com/google/subcommands"

	"github.com/bamachrn/grunt-express-workflow/internal/config"
	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/reporting"
	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/timing"
)

// runCmd implements subcommands.Command to support running tests.
type runCmd struct {
	cfg     *config.MutableConfig // shared config for running tests
	wrapper runWrapper            // can be set by tests to stub out calls to the runner
	stdout  io.Writer             // where console reporters write
	color   bool                  // colorize console output
	clk     clock.Clock           // time source of the runner and the timing log
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(stdout io.Writer, color bool) *runCmd {
	return &runCmd{
		cfg:     config.NewMutableConfig(),
		wrapper: realRunWrapper{},
		stdout:  stdout,
		color:   color,
		clk:     clock.NewClock(),
	}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run tests" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... [glob]...

Description:
    Runs the tests declared in spec files matched by the globs, or by -spec
    when no glob is given. Globs support "**", "{a,b}" and a leading "!" to
    exclude files matched by earlier globs.

    Exits with the number of failed tests (at most 254), 0 if all tests passed
    or no spec file matched, and 255 if the spec files could not be loaded.
    An interrupted run exits with at least 1.

    Settings are also read from .specrc.{yaml,yml,json} in -dir and from
    SPECRUN_* environment variables. Flags take precedence over both.

Example:
        $ specrun run -reporter dot 'test/**/*.spec.yaml' '!test/slow/**'

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	r.cfg.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := setupFlags(r.cfg, f)
	if err != nil {
		logging.Info(ctx, "Bad configuration: ", err)
		return exitSetupFailure
	}

	tl := timing.NewLog(r.clk)
	ctx = timing.NewContext(ctx, tl)
	ctx, st := timing.Start(ctx, "run")

	if dir := cfg.ResultsDir(); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Info(ctx, "Failed to create results directory: ", err)
			return exitSetupFailure
		}
		// Log the full output of the command to disk.
		fullLog, err := os.Create(filepath.Join(dir, reporting.FullLogFilename))
		if err != nil {
			logging.Info(ctx, err)
			return exitSetupFailure
		}
		defer fullLog.Close()
		ctx = logging.AttachLogger(ctx, logging.NewSinkLogger(logging.LevelDebug, logging.Timestamp|logging.LevelTag, logging.NewWriterSink(fullLog)))
	}

	logging.Debug(ctx, "Command line: ", strings.Join(os.Args, " "))
	if fn := cfg.ConfigFile(); fn != "" {
		logging.Debug(ctx, "Read settings from ", fn)
	}

	reg, err := loadTests(ctx, cfg)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		logging.Debugf(ctx, "%+v", err)
		return exitSetupFailure
	}
	if len(reg.Files()) == 0 {
		logging.Infof(ctx, "Warning: no spec files matched %q in %s", cfg.Specs(), cfg.Dir())
		return subcommands.ExitSuccess
	}

	ectx, est := timing.Start(ctx, "execute")
	res := r.wrapper.run(ectx, reg.Root(), &runner.Config{
		Dir:      cfg.Dir(),
		Shell:    cfg.Shell(),
		Bail:     cfg.Bail(),
		Clock:    r.clk,
		Reporter: reporting.NewConsole(cfg.Reporter(), r.stdout, r.color),
	})
	est.End()
	st.End()

	if dir := cfg.ResultsDir(); dir != "" {
		if err := r.wrapper.writeResults(dir, res, Version, tl); err != nil {
			logging.Info(ctx, "Failed to write results: ", err)
		} else {
			logging.Debug(ctx, "Results saved to ", dir)
		}
	}
	if ctx.Err() != nil {
		logging.Info(ctx, "Run was interrupted")
		if res.Stats.Failures == 0 {
			return subcommands.ExitFailure
		}
	}
	return exitStatus(res.Stats.Failures)
}
