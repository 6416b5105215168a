// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/google/subcommands"

	"github.com/bamachrn/grunt-express-workflow/internal/config"
	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// listCmd implements subcommands.Command to support listing tests.
type listCmd struct {
	files   bool                  // print matched files instead of tests
	pending bool                  // mark pending tests
	cfg     *config.MutableConfig // shared config for listing tests
	stdout  io.Writer             // where to write tests
}

var _ = subcommands.Command(&listCmd{})

// newListCmd returns a new listCmd that will write tests to stdout.
func newListCmd(stdout io.Writer) *listCmd {
	return &listCmd{
		cfg:    config.NewMutableConfig(),
		stdout: stdout,
	}
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list tests" }
func (*listCmd) Usage() string {
	return `Usage: list [flag]... [glob]...

Description:
    Lists the full titles of tests that "run" would execute with the same
    flags, one per line. With -files, the matched spec files are listed
    instead.

Flag:
`
}

func (lc *listCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&lc.files, "files", false, "print matched spec files instead of tests")
	f.BoolVar(&lc.pending, "pending", false, `append " (pending)" to pending tests`)
	lc.cfg.SetFlags(f)
}

func (lc *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := setupFlags(lc.cfg, f)
	if err != nil {
		logging.Info(ctx, "Bad configuration: ", err)
		return exitSetupFailure
	}
	reg, err := loadTests(ctx, cfg)
	if err != nil {
		logging.Info(ctx, "Failed to load tests: ", err)
		return exitSetupFailure
	}

	if err := lc.print(cfg.Dir(), reg); err != nil {
		logging.Info(ctx, "Failed to write tests: ", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// print writes the files or tests of reg to lc.stdout.
func (lc *listCmd) print(dir string, reg *suite.Registry) error {
	if lc.files {
		for _, p := range reg.Files() {
			if _, err := fmt.Fprintln(lc.stdout, rel(dir, p)); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	reg.Root().EachTest(func(t *suite.Test) {
		if err != nil {
			return
		}
		line := t.FullTitle()
		if lc.pending && t.Pending {
			line += " (pending)"
		}
		_, err = fmt.Fprintln(lc.stdout, line)
	})
	return err
}
