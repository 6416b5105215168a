// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// ResultsJSONFilename is the name of the file written by WriteResultsJSON.
const ResultsJSONFilename = "results.json"

// Report is the top-level object of results.json. Its layout follows the
// mochawesome report format so existing report viewers can read it.
type Report struct {
	Stats   ReportStats    `json:"stats"`
	Results []*ReportSuite `json:"results"`
	Meta    ReportMeta     `json:"meta"`
}

// ReportStats summarizes the run.
type ReportStats struct {
	Suites          int       `json:"suites"`
	Tests           int       `json:"tests"`
	Passes          int       `json:"passes"`
	Pending         int       `json:"pending"`
	Failures        int       `json:"failures"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Duration        int64     `json:"duration"` // milliseconds
	TestsRegistered int       `json:"testsRegistered"`
	PassPercent     float64   `json:"passPercent"`
	PendingPercent  float64   `json:"pendingPercent"`
	Other           int       `json:"other"`
	HasOther        bool      `json:"hasOther"`
	Skipped         int       `json:"skipped"`
	HasSkipped      bool      `json:"hasSkipped"`
}

// ReportMeta identifies the producer of the report.
type ReportMeta struct {
	Specrun ReportVersion `json:"specrun"`
}

// ReportVersion holds a producer version.
type ReportVersion struct {
	Version string `json:"version"`
}

// ReportSuite is a suite and its contents.
type ReportSuite struct {
	UUID        string         `json:"uuid"`
	Title       string         `json:"title"`
	FullFile    string         `json:"fullFile"`
	File        string         `json:"file"`
	BeforeHooks []*ReportTest  `json:"beforeHooks"`
	AfterHooks  []*ReportTest  `json:"afterHooks"`
	Tests       []*ReportTest  `json:"tests"`
	Suites      []*ReportSuite `json:"suites"`
	Passes      []string       `json:"passes"`
	Failures    []string       `json:"failures"`
	Pending     []string       `json:"pending"`
	Skipped     []string       `json:"skipped"`
	Duration    int64          `json:"duration"` // milliseconds
	Root        bool           `json:"root"`
	RootEmpty   bool           `json:"rootEmpty"`
	Timeout     int64          `json:"_timeout"` // milliseconds
}

// ReportTest is a test or a failed hook.
type ReportTest struct {
	Title      string      `json:"title"`
	FullTitle  string      `json:"fullTitle"`
	TimedOut   bool        `json:"timedOut"`
	Duration   int64       `json:"duration"` // milliseconds
	State      string      `json:"state,omitempty"`
	Speed      string      `json:"speed,omitempty"`
	Pass       bool        `json:"pass"`
	Fail       bool        `json:"fail"`
	Pending    bool        `json:"pending"`
	Context    *string     `json:"context"`
	Code       string      `json:"code"`
	Err        ReportError `json:"err"`
	UUID       string      `json:"uuid"`
	ParentUUID string      `json:"parentUUID"`
	IsHook     bool        `json:"isHook"`
	Skipped    bool        `json:"skipped"`
}

// ReportError describes a failure. It is empty for passing tests.
type ReportError struct {
	Message string `json:"message,omitempty"`
	EStack  string `json:"estack,omitempty"`
	Diff    string `json:"diff,omitempty"`
}

// NewReport converts a run result into a Report.
func NewReport(res *runner.Result, version string) *Report {
	st := res.Stats
	rep := &Report{
		Stats: ReportStats{
			Suites:          st.Suites,
			Tests:           st.Tests,
			Passes:          st.Passes,
			Pending:         st.Pending,
			Failures:        st.Failures,
			Start:           st.Start,
			End:             st.End,
			Duration:        st.Duration.Milliseconds(),
			TestsRegistered: st.Tests,
		},
		Meta: ReportMeta{Specrun: ReportVersion{Version: version}},
	}
	if st.Tests > 0 {
		rep.Stats.PassPercent = percent(st.Passes, st.Tests)
		rep.Stats.PendingPercent = percent(st.Pending, st.Tests)
	}
	if res.Root != nil {
		rep.Results = []*ReportSuite{newReportSuite(res.Root)}
	}
	return rep
}

func percent(n, total int) float64 {
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10
}

func newReportSuite(sr *runner.SuiteResult) *ReportSuite {
	s := sr.Suite
	rs := &ReportSuite{
		UUID:        uuid.New().String(),
		Title:       s.Title,
		BeforeHooks: []*ReportTest{},
		AfterHooks:  []*ReportTest{},
		Tests:       []*ReportTest{},
		Suites:      []*ReportSuite{},
		Passes:      []string{},
		Failures:    []string{},
		Pending:     []string{},
		Skipped:     []string{},
		Duration:    sr.Duration.Milliseconds(),
		Root:        s.IsRoot(),
		Timeout:     s.Timeout.Milliseconds(),
	}
	if f := suiteFile(s); f != "" {
		rs.File = f
		if abs, err := filepath.Abs(f); err == nil {
			rs.FullFile = abs
		}
	}
	rs.RootEmpty = rs.Root && len(s.Tests) == 0

	for _, tr := range sr.Tests {
		rt := &ReportTest{
			Title:      tr.Test.Title,
			FullTitle:  tr.Test.FullTitle(),
			Duration:   tr.Duration.Milliseconds(),
			State:      string(tr.State),
			Code:       tr.Test.Spec.Run,
			UUID:       uuid.New().String(),
			ParentUUID: rs.UUID,
		}
		switch tr.State {
		case runner.Passed:
			rt.Pass = true
			rt.Speed = string(tr.Speed)
			rs.Passes = append(rs.Passes, rt.UUID)
		case runner.Failed:
			rt.Fail = true
			rt.TimedOut = isTimeout(tr.Err)
			rt.Err = newReportError(tr.Err)
			rt.Context = newReportContext(tr.Output)
			rs.Failures = append(rs.Failures, rt.UUID)
		case runner.Pending:
			rt.Pending = true
			rt.State = ""
			rs.Pending = append(rs.Pending, rt.UUID)
		}
		rs.Tests = append(rs.Tests, rt)
	}

	for _, hr := range sr.Hooks {
		rt := &ReportTest{
			Title:      hr.Title,
			FullTitle:  hr.FullTitle,
			Duration:   hr.Duration.Milliseconds(),
			State:      string(runner.Failed),
			Fail:       true,
			TimedOut:   isTimeout(hr.Err),
			Err:        newReportError(hr.Err),
			Context:    newReportContext(hr.Output),
			UUID:       uuid.New().String(),
			ParentUUID: rs.UUID,
			IsHook:     true,
		}
		if hr.Hook != nil {
			rt.Code = hr.Hook.Step.Run
		}
		if hr.Hook != nil && (hr.Hook.Kind == suite.AfterAll || hr.Hook.Kind == suite.AfterEach) {
			rs.AfterHooks = append(rs.AfterHooks, rt)
		} else {
			rs.BeforeHooks = append(rs.BeforeHooks, rt)
		}
		rs.Failures = append(rs.Failures, rt.UUID)
	}

	for _, c := range sr.Suites {
		rs.Suites = append(rs.Suites, newReportSuite(c))
	}
	return rs
}

func newReportError(err error) ReportError {
	if err == nil {
		return ReportError{}
	}
	return ReportError{
		Message: err.Error(),
		EStack:  fmt.Sprintf("%+v", err),
		Diff:    Details(err),
	}
}

// ReportContext is an item of a test's context. Report viewers show them
// below the failure.
type ReportContext struct {
	Title string      `json:"title"`
	Value interface{} `json:"value"`
}

// newReportContext returns the JSON encoded context listing the captured
// output of a failed command, or nil if there is none.
func newReportContext(out *shell.Output) *string {
	var items []ReportContext
	for _, s := range out.Streams() {
		items = append(items, ReportContext{Title: s.Name, Value: strings.ToValidUTF8(string(s.Data), "\uFFFD")})
	}
	if len(items) == 0 {
		return nil
	}
	if out.Truncated {
		items = append(items, ReportContext{Title: "truncated", Value: true})
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	c := string(b)
	return &c
}

func isTimeout(err error) bool {
	var te *runner.TimeoutError
	return errors.As(err, &te)
}

func suiteFile(s *suite.Suite) string {
	for ; s != nil; s = s.Parent {
		if s.File != "" {
			return s.File
		}
	}
	return ""
}

// WriteResultsJSON writes res to dir/results.json.
func WriteResultsJSON(dir string, res *runner.Result, version string) error {
	b, err := json.MarshalIndent(NewReport(res, version), "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal results")
	}
	return os.WriteFile(filepath.Join(dir, ResultsJSONFilename), b, 0644)
}
