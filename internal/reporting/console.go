// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reporting writes run progress to the console and results to files.
package reporting

import (
	"fmt"
	"io"
	"strings"

	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
)

// Kind selects a console reporter.
type Kind int

const (
	// Spec prints the suite hierarchy with a line per test.
	Spec Kind = iota
	// Dot prints a character per test.
	Dot
	// Min prints the summary only.
	Min
	// None prints nothing.
	None
)

// Kinds maps reporter names to kinds.
var Kinds = map[string]int{
	"spec": int(Spec),
	"dot":  int(Dot),
	"min":  int(Min),
	"none": int(None),
}

// NewConsole returns a reporter of kind k writing to w. Output is colored
// with ANSI escapes if color is set.
func NewConsole(k Kind, w io.Writer, color bool) runner.Reporter {
	p := &printer{w: w, color: color}
	switch k {
	case Dot:
		return &dotReporter{printer: p}
	case Min:
		return &minReporter{printer: p}
	case None:
		return runner.NopReporter{}
	default:
		return &specReporter{printer: p}
	}
}

const (
	symbolOK   = "✓"
	symbolDot  = "."
	symbolSkip = ","
)

type printer struct {
	w     io.Writer
	color bool
	nfail int
}

// ANSI color codes.
const (
	colorRed    = 31
	colorGreen  = 32
	colorYellow = 33
	colorCyan   = 36
	colorGray   = 90
)

func (p *printer) paint(code int, s string) string {
	if !p.color {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", code, s)
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format, args...)
}

func speedColor(s runner.Speed) int {
	if s == runner.Slow {
		return colorRed
	}
	return colorYellow
}

// specReporter prints a hierarchical view.
type specReporter struct {
	*printer
	depth int
}

func (r *specReporter) RunStart(*suite.Suite, int) { r.printf("\n") }

func (r *specReporter) SuiteStart(s *suite.Suite) {
	r.depth++
	r.printf("%s%s\n", indent(r.depth), s.Title)
}

func (r *specReporter) SuiteEnd(*runner.SuiteResult) {
	r.depth--
	if r.depth == 0 {
		r.printf("\n")
	}
}

func (r *specReporter) TestEnd(tr *runner.TestResult) {
	pad := indent(r.depth + 1)
	switch tr.State {
	case runner.Passed:
		line := pad + r.paint(colorGreen, symbolOK) + " " + r.paint(colorGray, tr.Test.Title)
		if tr.Speed != runner.Fast {
			line += " " + r.paint(speedColor(tr.Speed), "("+FormatDuration(tr.Duration)+")")
		}
		r.printf("%s\n", line)
	case runner.Pending:
		r.printf("%s%s\n", pad, r.paint(colorCyan, "- "+tr.Test.Title))
	case runner.Failed:
		r.nfail++
		r.printf("%s%s\n", pad, r.paint(colorRed, fmt.Sprintf("%d) %s", r.nfail, tr.Test.Title)))
	}
}

func (r *specReporter) HookFail(hr *runner.HookResult) {
	r.nfail++
	r.printf("%s%s\n", indent(r.depth+1), r.paint(colorRed, fmt.Sprintf("%d) %s", r.nfail, hr.Title)))
}

func (r *specReporter) RunEnd(res *runner.Result) { writeSummary(r.printer, res) }

// dotReporter prints one character per test.
type dotReporter struct {
	*printer
}

func (r *dotReporter) RunStart(*suite.Suite, int)   { r.printf("\n  ") }
func (r *dotReporter) SuiteStart(*suite.Suite)      {}
func (r *dotReporter) SuiteEnd(*runner.SuiteResult) {}

func (r *dotReporter) TestEnd(tr *runner.TestResult) {
	switch tr.State {
	case runner.Passed:
		if tr.Speed == runner.Fast {
			r.printf("%s", r.paint(colorGray, symbolDot))
		} else {
			r.printf("%s", r.paint(speedColor(tr.Speed), symbolDot))
		}
	case runner.Pending:
		r.printf("%s", r.paint(colorCyan, symbolSkip))
	case runner.Failed:
		r.printf("%s", r.paint(colorRed, "!"))
	}
}

func (r *dotReporter) HookFail(*runner.HookResult) { r.printf("%s", r.paint(colorRed, "!")) }

func (r *dotReporter) RunEnd(res *runner.Result) {
	r.printf("\n")
	writeSummary(r.printer, res)
}

// minReporter prints only the summary.
type minReporter struct {
	*printer
}

func (r *minReporter) RunStart(*suite.Suite, int)   {}
func (r *minReporter) SuiteStart(*suite.Suite)      {}
func (r *minReporter) SuiteEnd(*runner.SuiteResult) {}
func (r *minReporter) TestEnd(*runner.TestResult)   {}
func (r *minReporter) HookFail(*runner.HookResult)  {}
func (r *minReporter) RunEnd(res *runner.Result)    { writeSummary(r.printer, res) }

func indent(depth int) string { return strings.Repeat("  ", depth) }
