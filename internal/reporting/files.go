// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/timing"
)

const (
	// FullLogFilename is the name of the debug log in the results directory.
	FullLogFilename = "full.txt"
	// TimingFilename is the name of the timing log in the results directory.
	TimingFilename = "timing.json"
)

// WriteResults writes results.json, results.xml and, if tl is non-nil,
// timing.json into dir, creating it as needed.
func WriteResults(dir string, res *runner.Result, version string, tl *timing.Log) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create results directory")
	}
	if err := WriteResultsJSON(dir, res, version); err != nil {
		return err
	}
	if err := WriteJUnitXML(dir, res); err != nil {
		return err
	}
	if tl == nil {
		return nil
	}
	var b bytes.Buffer
	if err := tl.WritePretty(&b); err != nil {
		return errors.Wrap(err, "failed to format timing log")
	}
	return os.WriteFile(filepath.Join(dir, TimingFilename), b.Bytes(), 0644)
}
