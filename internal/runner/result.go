// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runner

import (
	"time"

	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// State is the outcome of a test.
type State string

const (
	Passed  State = "passed"
	Failed  State = "failed"
	Pending State = "pending"
)

// Speed classifies a passing test's duration relative to its slow threshold.
type Speed string

const (
	Fast   Speed = "fast"
	Medium Speed = "medium"
	Slow   Speed = "slow"
)

func speedOf(d, slow time.Duration) Speed {
	switch {
	case slow <= 0:
		return Fast
	case d > slow:
		return Slow
	case d > slow/2:
		return Medium
	default:
		return Fast
	}
}

// TestResult is the outcome of one test.
type TestResult struct {
	Test     *suite.Test
	State    State
	Speed    Speed
	Start    time.Time
	Duration time.Duration
	// Attempts is the number of times the test ran. It is 0 for pending tests.
	Attempts int
	// Err is set for failed tests.
	Err error
	// Output is the output of the last attempt, if the command ran.
	Output *shell.Output
}

// HookResult describes a failed hook.
type HookResult struct {
	// Hook is nil when the suite failed to prepare its fixtures.
	Hook *suite.Hook
	// Test is the test an each-hook ran for.
	Test      *suite.Test
	Title     string
	FullTitle string
	Start     time.Time
	Duration  time.Duration
	Err       error
	Output    *shell.Output
}

// SuiteResult holds the outcome of a suite and its descendants.
type SuiteResult struct {
	Suite    *suite.Suite
	Start    time.Time
	Duration time.Duration
	Tests    []*TestResult
	// Hooks lists hooks that failed.
	Hooks  []*HookResult
	Suites []*SuiteResult
}

// Failure is a failed test or hook, in the order it happened.
type Failure struct {
	Title     string
	FullTitle string
	File      string
	Err       error
	Output    *shell.Output
}

// Stats summarizes a run.
type Stats struct {
	Suites   int
	Tests    int
	Passes   int
	Pending  int
	Failures int
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Result is everything a run produced.
type Result struct {
	Root     *SuiteResult
	Stats    Stats
	Failures []*Failure
}
