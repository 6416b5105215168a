// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/expect"
	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
)

// detailPad aligns failure details under the title after "1) ".
const detailPad = "     "

// WriteSummary writes pass, pending and failure counts followed by every
// failure with its details.
func WriteSummary(w io.Writer, res *runner.Result, color bool) {
	writeSummary(&printer{w: w, color: color}, res)
}

func writeSummary(p *printer, res *runner.Result) {
	st := res.Stats
	p.printf("\n%s%s %s\n", indent(1),
		p.paint(colorGreen, fmt.Sprintf("%d passing", st.Passes)),
		p.paint(colorGray, "("+FormatDuration(st.Duration)+")"))
	if st.Pending > 0 {
		p.printf("%s%s\n", indent(1), p.paint(colorCyan, fmt.Sprintf("%d pending", st.Pending)))
	}
	if st.Failures > 0 {
		p.printf("%s%s\n", indent(1), p.paint(colorRed, fmt.Sprintf("%d failing", st.Failures)))
	}
	p.printf("\n")

	for i, f := range res.Failures {
		p.printf("%s%d) %s:\n", indent(1), i+1, f.FullTitle)
		p.printf("%s%s\n", detailPad, p.paint(colorRed, f.Err.Error()))
		if d := Details(f.Err); d != "" {
			for _, l := range strings.Split(strings.TrimRight(d, "\n"), "\n") {
				p.printf("%s%s\n", detailPad, p.paint(colorGray, l))
			}
		}
		writeOutput(p, f.Output)
		p.printf("\n")
	}
}

// outputTailLines is the number of trailing lines of each stream shown for
// a failure.
const outputTailLines = 20

// writeOutput prints the trailing lines of a failed command's output.
func writeOutput(p *printer, out *shell.Output) {
	for _, s := range out.Streams() {
		lines, skipped := shell.Tail(s.Data, outputTailLines)
		if skipped > 0 {
			p.printf("%s%s (last %d of %d lines):\n", detailPad, s.Name, len(lines), len(lines)+skipped)
		} else {
			p.printf("%s%s:\n", detailPad, s.Name)
		}
		for _, l := range lines {
			p.printf("%s  %s\n", detailPad, p.paint(colorGray, l))
		}
	}
	if out != nil && out.Truncated {
		p.printf("%s%s\n", detailPad, p.paint(colorGray, "(output truncated)"))
	}
}

// Details returns the multi-line explanation of err beyond its message, such
// as assertion diffs. It is empty if err carries none.
func Details(err error) string {
	var ae *expect.AssertionError
	if !errors.As(err, &ae) {
		return ""
	}
	for _, f := range ae.Failures {
		if f.Diff != "" {
			return ae.Details()
		}
	}
	return ""
}

// FormatDuration formats d the way humans read short test durations:
// "42ms", "3s" or "2m".
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Round(time.Second)/time.Second))
	default:
		return fmt.Sprintf("%dm", int(d.Round(time.Minute)/time.Minute))
	}
}
