// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// JUnitXMLFilename is the name of the file written by WriteJUnitXML.
const JUnitXMLFilename = "results.xml"

// testSuites is the top level XML element of JUnit results.
type testSuites struct {
	XMLName   xml.Name     `xml:"testsuites"`
	Name      string       `xml:"name,attr"`
	Tests     int          `xml:"tests,attr"`
	Failures  int          `xml:"failures,attr"`
	Skipped   int          `xml:"skipped,attr"`
	Time      string       `xml:"time,attr"`
	TestSuite []*testSuite `xml:"testsuite"`
}

// testSuite holds the tests of one spec file. Errors are not distinguished
// from failures.
type testSuite struct {
	Name      string      `xml:"name,attr"`
	File      string      `xml:"file,attr,omitempty"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Time      string      `xml:"time,attr"`
	TestCase  []*testCase `xml:"testcase"`
}

// testCase is a test or a failed hook.
type testCase struct {
	Name      string `xml:"name,attr"`
	ClassName string `xml:"classname,attr"`
	Status    string `xml:"status,attr"`         // run or notrun
	Result    string `xml:"result,attr"`         // completed or skipped
	Timestamp string `xml:"timestamp,attr"`      // start time, in ISO8601
	Time      string `xml:"time,attr,omitempty"` // duration in seconds, with a decimal point

	Failure   *failure `xml:"failure,omitempty"`
	Skipped   *skipped `xml:"skipped,omitempty"`
	SystemOut *cdata   `xml:"system-out,omitempty"`
	SystemErr *cdata   `xml:"system-err,omitempty"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type failure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Details string `xml:",cdata"`
}

type skipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// seconds formats d with a decimal point so it is not mistaken for a
// nanosecond count, e.g. "1.0" for one second.
func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// WriteJUnitXML writes res to dir/results.xml in the JUnit XML format. Each
// spec file becomes a testsuite; tests in nested suites are named by their
// titles below the file suite. Failed hooks are reported as failed cases.
func WriteJUnitXML(dir string, res *runner.Result) error {
	ts := &testSuites{
		Name: "specrun",
		Time: seconds(res.Stats.Duration),
	}
	if root := res.Root; root != nil {
		if len(root.Hooks) > 0 {
			js := &testSuite{Name: rootHooksName, Timestamp: isoTime(root.Start), Time: seconds(root.Duration)}
			for _, hr := range root.Hooks {
				addJUnitHook(js, hr, rootHooksName)
			}
			ts.TestSuite = append(ts.TestSuite, js)
		}
		for _, fs := range root.Suites {
			js := &testSuite{
				Name:      fs.Suite.Title,
				File:      fs.Suite.File,
				Timestamp: isoTime(fs.Start),
				Time:      seconds(fs.Duration),
			}
			addJUnitCases(js, fs, fs.Suite.Title)
			ts.TestSuite = append(ts.TestSuite, js)
		}
	}
	for _, js := range ts.TestSuite {
		ts.Tests += js.Tests
		ts.Failures += js.Failures
		ts.Skipped += js.Skipped
	}

	data, err := xml.MarshalIndent(ts, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JUnit results")
	}
	data = append([]byte(xml.Header), data...)
	return os.WriteFile(filepath.Join(dir, JUnitXMLFilename), data, 0644)
}

// rootHooksName names the testsuite holding failed global hooks.
const rootHooksName = "root hooks"

// addJUnitCases appends the tests and failed hooks of sr and its
// descendants to js in execution order. fileTitle is the title of the
// enclosing file suite.
func addJUnitCases(js *testSuite, sr *runner.SuiteResult, fileTitle string) {
	var after []*runner.HookResult
	for _, hr := range sr.Hooks {
		if hr.Hook != nil && hr.Hook.Kind == suite.AfterAll {
			after = append(after, hr)
			continue
		}
		addJUnitHook(js, hr, fileTitle)
	}
	for _, tr := range sr.Tests {
		tc := &testCase{
			Name:      caseName(tr.Test.FullTitle(), fileTitle),
			ClassName: fileTitle,
			Timestamp: isoTime(tr.Start),
			Time:      seconds(tr.Duration),
		}
		js.Tests++
		switch tr.State {
		case runner.Pending:
			tc.Status = "notrun"
			tc.Result = "skipped"
			tc.Skipped = &skipped{Message: "pending"}
			js.Skipped++
		case runner.Failed:
			tc.Status = "run"
			tc.Result = "completed"
			tc.Failure = newFailure(tr.Err)
			tc.SystemOut, tc.SystemErr = systemOutput(tr.Output)
			js.Failures++
		default:
			tc.Status = "run"
			tc.Result = "completed"
		}
		js.TestCase = append(js.TestCase, tc)
	}
	for _, c := range sr.Suites {
		addJUnitCases(js, c, fileTitle)
	}
	for _, hr := range after {
		addJUnitHook(js, hr, fileTitle)
	}
}

func addJUnitHook(js *testSuite, hr *runner.HookResult, fileTitle string) {
	js.Tests++
	js.Failures++
	tc := &testCase{
		Name:      caseName(hr.FullTitle, fileTitle),
		ClassName: fileTitle,
		Status:    "run",
		Result:    "completed",
		Timestamp: isoTime(hr.Start),
		Time:      seconds(hr.Duration),
		Failure:   newFailure(hr.Err),
	}
	tc.SystemOut, tc.SystemErr = systemOutput(hr.Output)
	js.TestCase = append(js.TestCase, tc)
}

// truncatedNote ends captured output that hit the size limit.
const truncatedNote = "(output truncated)\n"

// systemOutput converts the captured streams of a failed command into
// system-out and system-err elements.
func systemOutput(out *shell.Output) (stdout, stderr *cdata) {
	for _, s := range out.Streams() {
		text := xmlText(s.Data)
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		if out.Truncated {
			text += truncatedNote
		}
		if s.Name == "stdout" {
			stdout = &cdata{text}
		} else {
			stderr = &cdata{text}
		}
	}
	return stdout, stderr
}

// xmlText returns b as valid UTF-8 without the control characters XML 1.0
// forbids.
func xmlText(b []byte) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.ToValidUTF8(string(b), "\uFFFD"))
}

func newFailure(err error) *failure {
	f := &failure{Message: err.Error(), Details: err.Error() + "\n" + Details(err)}
	var te *runner.TimeoutError
	if errors.As(err, &te) {
		f.Type = "timeout"
	}
	return f
}

// caseName strips the file suite title from a full title.
func caseName(fullTitle, fileTitle string) string {
	if n := strings.TrimPrefix(fullTitle, fileTitle+" "); n != "" {
		return n
	}
	return fullTitle
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
