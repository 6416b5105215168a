// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config defines the configuration of a specrun invocation.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/command"
	"github.com/bamachrn/grunt-express-workflow/internal/reporting"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

const (
	// DefaultSpec is the glob used when no spec pattern is given.
	DefaultSpec = "test/backend/**/*.spec.{yaml,yml,txtar}"
	// DefaultResultsDir is the default results directory, relative to Dir.
	DefaultResultsDir = "specrun-report"

	defaultTimeout = 2000 * time.Millisecond
	defaultSlow    = 75 * time.Millisecond
)

// MutableConfig is similar to Config, but its fields are mutable.
// Call Freeze to obtain a Config from MutableConfig.
type MutableConfig struct {
	// See Config for descriptions of these fields.

	ConfigFile string
	Dir        string
	Specs      []string
	Require    []string
	Reporter   reporting.Kind
	Timeout    time.Duration
	Slow       time.Duration
	Retries    int
	Bail       bool
	Grep       string
	Invert     bool
	Tags       string
	ForbidOnly bool
	ResultsDir string
	Shell      string
}

// Config contains the configuration for running or listing tests.
// All Config values are frozen and cannot be altered after construction.
type Config struct {
	m *MutableConfig
}

// ConfigFile is the path of the config file that was read, if any.
func (c *Config) ConfigFile() string { return c.m.ConfigFile }

// Dir is the absolute base directory for spec globs and commands.
func (c *Config) Dir() string { return c.m.Dir }

// Specs returns the glob patterns selecting spec files.
func (c *Config) Specs() []string { return append([]string(nil), c.m.Specs...) }

// Require returns support files whose hooks and env apply to every spec.
func (c *Config) Require() []string { return append([]string(nil), c.m.Require...) }

// Reporter is the console reporter kind.
func (c *Config) Reporter() reporting.Kind { return c.m.Reporter }

// Timeout is the default timeout of tests and hooks. Zero disables it.
func (c *Config) Timeout() time.Duration { return c.m.Timeout }

// Slow is the default duration above which a test is reported as slow.
func (c *Config) Slow() time.Duration { return c.m.Slow }

// Retries is the default number of times a failed test is retried.
func (c *Config) Retries() int { return c.m.Retries }

// Bail stops the run after the first failure.
func (c *Config) Bail() bool { return c.m.Bail }

// Grep selects tests by full title.
func (c *Config) Grep() string { return c.m.Grep }

// Invert inverts Grep.
func (c *Config) Invert() bool { return c.m.Invert }

// Tags is a boolean tag expression selecting tests.
func (c *Config) Tags() string { return c.m.Tags }

// ForbidOnly makes "only" marks an error.
func (c *Config) ForbidOnly() bool { return c.m.ForbidOnly }

// ResultsDir is the absolute directory for result files. Empty disables them.
func (c *Config) ResultsDir() string { return c.m.ResultsDir }

// Shell is the interpreter for commands.
func (c *Config) Shell() string { return c.m.Shell }

// SuiteOptions returns the settings of the root suite.
func (c *Config) SuiteOptions() suite.Options {
	return suite.Options{Timeout: c.Timeout(), Slow: c.Slow(), Retries: c.Retries()}
}

// NewMutableConfig returns a new configuration with default values.
func NewMutableConfig() *MutableConfig {
	return &MutableConfig{
		Reporter:   reporting.Spec,
		Timeout:    defaultTimeout,
		Slow:       defaultSlow,
		ResultsDir: DefaultResultsDir,
		Shell:      shell.DefaultShell,
	}
}

// SetFlags adds common run-related flags to f that store values in c.
func (c *MutableConfig) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ConfigFile, "config", "", "config file (default: .specrc.{yaml,yml,json} in -dir)")
	f.StringVar(&c.Dir, "dir", "", "base directory for spec globs and commands (default: current directory)")
	specs := command.RepeatedFlag(func(v string) error {
		c.Specs = append(c.Specs, v)
		return nil
	})
	f.Var(&specs, "spec", fmt.Sprintf("glob selecting spec files; may be repeated (default %q)", DefaultSpec))
	require := command.RepeatedFlag(func(v string) error {
		c.Require = append(c.Require, v)
		return nil
	})
	f.Var(&require, "require", "support file with global hooks and env; may be repeated")

	rf := command.NewEnumFlag(reporting.Kinds, func(v int) { c.Reporter = reporting.Kind(v) }, "spec")
	f.Var(rf, "reporter", fmt.Sprintf("console reporter (%s; default %q)", rf.QuotedValues(), rf.Default()))

	f.Var(command.NewDurationFlag(time.Millisecond, &c.Timeout, defaultTimeout), "timeout",
		"default test timeout in milliseconds or as a duration; 0 disables timeouts")
	f.Var(command.NewDurationFlag(time.Millisecond, &c.Slow, defaultSlow), "slow",
		"default slow test threshold in milliseconds or as a duration")
	f.IntVar(&c.Retries, "retries", 0, "number of times to retry failed tests")
	f.BoolVar(&c.Bail, "bail", false, "stop after the first failure")
	f.StringVar(&c.Grep, "grep", "", "only run tests whose full title matches: /regexp/, a glob with '*', or a substring")
	f.BoolVar(&c.Invert, "invert", false, "invert -grep")
	f.StringVar(&c.Tags, "tags", "", `only run tests whose tags satisfy the expression, e.g. "smoke && !slow"`)
	f.BoolVar(&c.ForbidOnly, "forbidonly", false, "fail if a suite or test is marked only")
	f.StringVar(&c.ResultsDir, "resultsdir", DefaultResultsDir, "directory for result files, relative to -dir; empty disables them")
	f.StringVar(&c.Shell, "shell", shell.DefaultShell, "shell used to run commands")
}

// DeriveDefaults sets default config values to unset members, possibly deriving from
// already set members. It should be called after non-default values are set to c.
func (c *MutableConfig) DeriveDefaults() error {
	if c.Dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return errors.Wrap(err, "failed to get working directory")
		}
		c.Dir = wd
	}
	dir, err := filepath.Abs(c.Dir)
	if err != nil {
		return errors.Wrapf(err, "bad directory %q", c.Dir)
	}
	c.Dir = dir

	if len(c.Specs) == 0 {
		c.Specs = []string{DefaultSpec}
	}
	if c.ResultsDir != "" && !filepath.IsAbs(c.ResultsDir) {
		c.ResultsDir = filepath.Join(c.Dir, c.ResultsDir)
	}
	if c.Shell == "" {
		c.Shell = shell.DefaultShell
	}

	if c.Retries < 0 {
		return errors.Errorf("-retries must be non-negative, got %d", c.Retries)
	}
	if c.Invert && c.Grep == "" {
		return errors.New("-invert requires -grep")
	}
	return nil
}

// Freeze returns a frozen configuration object.
func (c *MutableConfig) Freeze() *Config {
	return &Config{m: c}
}
