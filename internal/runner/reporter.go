// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runner

import (
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// Reporter receives events as the run progresses. Calls are made from a
// single goroutine in execution order.
type Reporter interface {
	// RunStart reports that a run over root with total tests is starting.
	RunStart(root *suite.Suite, total int)
	// SuiteStart reports that s is being entered. It is not called for the root.
	SuiteStart(s *suite.Suite)
	// SuiteEnd reports that s is done.
	SuiteEnd(r *SuiteResult)
	// TestEnd reports a finished or pending test.
	TestEnd(r *TestResult)
	// HookFail reports a failed hook.
	HookFail(r *HookResult)
	// RunEnd reports the final stats.
	RunEnd(r *Result)
}

// NopReporter ignores every event.
type NopReporter struct{}

func (NopReporter) RunStart(*suite.Suite, int) {}
func (NopReporter) SuiteStart(*suite.Suite)    {}
func (NopReporter) SuiteEnd(*SuiteResult)      {}
func (NopReporter) TestEnd(*TestResult)        {}
func (NopReporter) HookFail(*HookResult)       {}
func (NopReporter) RunEnd(*Result)             {}

// MultiReporter fans events out to several reporters.
type MultiReporter []Reporter

func (m MultiReporter) RunStart(root *suite.Suite, total int) {
	for _, r := range m {
		r.RunStart(root, total)
	}
}

func (m MultiReporter) SuiteStart(s *suite.Suite) {
	for _, r := range m {
		r.SuiteStart(s)
	}
}

func (m MultiReporter) SuiteEnd(sr *SuiteResult) {
	for _, r := range m {
		r.SuiteEnd(sr)
	}
}

func (m MultiReporter) TestEnd(tr *TestResult) {
	for _, r := range m {
		r.TestEnd(tr)
	}
}

func (m MultiReporter) HookFail(hr *HookResult) {
	for _, r := range m {
		r.HookFail(hr)
	}
}

func (m MultiReporter) RunEnd(res *Result) {
	for _, r := range m {
		r.RunEnd(res)
	}
}
