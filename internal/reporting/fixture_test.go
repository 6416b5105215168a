// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting_test

import (
	"time"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/expect"
	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/spec"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

var startTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// sample is a run over one file with a passing, a failing and a pending test
// and a failed after hook. Both failures captured some output.
type sample struct {
	res               *runner.Result
	fileSuite, nested *suite.Suite
	pass, fail, pend  *runner.TestResult
	hook              *runner.HookResult
}

func newSample() *sample {
	root := &suite.Suite{Timeout: 2 * time.Second}
	fs := &suite.Suite{Title: "Users", Parent: root, File: "test/users.spec.yaml", Timeout: 2 * time.Second}
	nested := &suite.Suite{Title: "admin", Parent: fs, Timeout: 2 * time.Second}

	newTest := func(s *suite.Suite, title, run string) *suite.Test {
		return &suite.Test{Title: title, Parent: s, Spec: &spec.Test{It: title, Run: run}}
	}
	pass := &runner.TestResult{
		Test:     newTest(fs, "lists", "curl localhost/users"),
		State:    runner.Passed,
		Speed:    runner.Medium,
		Start:    startTime,
		Duration: 50 * time.Millisecond,
		Attempts: 1,
	}
	failErr := &expect.AssertionError{Failures: []expect.Failure{{Message: `stdout does not contain "x"`}}}
	fail := &runner.TestResult{
		Test:     newTest(fs, "creates", "curl -X POST localhost/users"),
		State:    runner.Failed,
		Start:    startTime,
		Duration: 100 * time.Millisecond,
		Attempts: 1,
		Err:      failErr,
		Output: &shell.Output{
			Stdout: []byte("{\"id\":7}\n"),
			Stderr: []byte("warn: slow query\nerror: duplicate key\n"),
		},
	}
	pend := &runner.TestResult{
		Test:  newTest(nested, "deletes", ""),
		State: runner.Pending,
		Start: startTime,
	}
	h := &suite.Hook{Kind: suite.AfterAll, Step: &spec.Step{Run: "./cleanup.sh"}, Parent: nested}
	hookErr := errors.Wrap(&runner.TimeoutError{Timeout: 2 * time.Second}, "cleanup")
	hook := &runner.HookResult{
		Hook:      h,
		Title:     h.Title(nil),
		FullTitle: h.FullTitle(nil),
		Start:     startTime,
		Duration:  10 * time.Millisecond,
		Err:       hookErr,
		Output:    &shell.Output{Stdout: []byte("removing users\n"), Truncated: true},
	}

	res := &runner.Result{
		Root: &runner.SuiteResult{
			Suite:    root,
			Start:    startTime,
			Duration: 1200 * time.Millisecond,
			Suites: []*runner.SuiteResult{{
				Suite:    fs,
				Start:    startTime,
				Duration: 1200 * time.Millisecond,
				Tests:    []*runner.TestResult{pass, fail},
				Suites: []*runner.SuiteResult{{
					Suite:    nested,
					Start:    startTime,
					Duration: 10 * time.Millisecond,
					Tests:    []*runner.TestResult{pend},
					Hooks:    []*runner.HookResult{hook},
				}},
			}},
		},
		Stats: runner.Stats{
			Suites:   2,
			Tests:    3,
			Passes:   1,
			Pending:  1,
			Failures: 2,
			Start:    startTime,
			End:      startTime.Add(1200 * time.Millisecond),
			Duration: 1200 * time.Millisecond,
		},
		Failures: []*runner.Failure{
			{Title: "creates", FullTitle: "Users creates", File: fs.File, Err: failErr, Output: fail.Output},
			{Title: hook.Title, FullTitle: hook.FullTitle, File: fs.File, Err: hookErr, Output: hook.Output},
		},
	}
	return &sample{res: res, fileSuite: fs, nested: nested, pass: pass, fail: fail, pend: pend, hook: hook}
}

// replay sends the sample's events to rep in execution order.
func (s *sample) replay(rep runner.Reporter) {
	rep.RunStart(s.res.Root.Suite, 3)
	rep.SuiteStart(s.fileSuite)
	rep.TestEnd(s.pass)
	rep.TestEnd(s.fail)
	rep.SuiteStart(s.nested)
	rep.TestEnd(s.pend)
	rep.HookFail(s.hook)
	rep.SuiteEnd(s.res.Root.Suites[0].Suites[0])
	rep.SuiteEnd(s.res.Root.Suites[0])
	rep.RunEnd(s.res)
}
