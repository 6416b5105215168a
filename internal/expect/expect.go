// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package expect checks command outcomes against spec expectations.
package expect

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/spec"
)

// Failure is one violated expectation.
type Failure struct {
	// Message is a one-line description, e.g. "stdout does not contain \"ok\"".
	Message string
	// Diff is a go-cmp diff for equality checks. It is empty otherwise.
	Diff string
}

// AssertionError lists every expectation a command violated.
type AssertionError struct {
	Failures []Failure
}

func (e *AssertionError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Details returns every failure message followed by its diff, if any.
func (e *AssertionError) Details() string {
	var sb strings.Builder
	for _, f := range e.Failures {
		sb.WriteString(f.Message)
		sb.WriteByte('\n')
		if f.Diff != "" {
			sb.WriteString("(-want +got):\n")
			sb.WriteString(f.Diff)
			if !strings.HasSuffix(f.Diff, "\n") {
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

// Check returns an *AssertionError if out violates e. A nil e only requires
// a zero exit code.
func Check(e *spec.Expect, out *shell.Output) error {
	var fs []Failure
	if want := e.WantExitCode(); out.ExitCode != want {
		msg := fmt.Sprintf("expected exit code %d, got %d", want, out.ExitCode)
		if s := lastLine(out.Stderr); s != "" {
			msg += ": " + s
		}
		fs = append(fs, Failure{Message: msg})
	}
	if e != nil {
		fs = append(fs, checkStream("stdout", e.Stdout, out.Stdout)...)
		fs = append(fs, checkStream("stderr", e.Stderr, out.Stderr)...)
	}
	if len(fs) == 0 {
		return nil
	}
	return &AssertionError{Failures: fs}
}

func checkStream(name string, se *spec.StreamExpect, data []byte) []Failure {
	if se == nil {
		return nil
	}
	got := string(data)
	var fs []Failure

	if se.Equals != nil {
		want := strings.TrimRight(*se.Equals, "\n")
		if g := strings.TrimRight(got, "\n"); g != want {
			fs = append(fs, Failure{
				Message: fmt.Sprintf("%s: expected %q, got %q", name, want, g),
				Diff:    cmp.Diff(strings.Split(want, "\n"), strings.Split(g, "\n")),
			})
		}
	}
	for _, s := range se.Contains {
		if !strings.Contains(got, s) {
			fs = append(fs, Failure{Message: fmt.Sprintf("%s does not contain %q", name, s)})
		}
	}
	for _, s := range se.NotContains {
		if strings.Contains(got, s) {
			fs = append(fs, Failure{Message: fmt.Sprintf("%s unexpectedly contains %q", name, s)})
		}
	}
	for _, re := range se.Regexps() {
		if !re.MatchString(got) {
			fs = append(fs, Failure{Message: fmt.Sprintf("%s does not match /%s/", name, re)})
		}
	}
	if se.JSON != nil {
		if f, ok := checkJSON(name, se.JSON, data); !ok {
			fs = append(fs, f)
		}
	}
	return fs
}

func checkJSON(name string, want interface{}, data []byte) (Failure, bool) {
	var got interface{}
	if err := json.Unmarshal(data, &got); err != nil {
		return Failure{Message: fmt.Sprintf("%s is not valid JSON: %v", name, err)}, false
	}
	w, err := Normalize(want)
	if err != nil {
		return Failure{Message: fmt.Sprintf("%s: bad json expectation: %v", name, err)}, false
	}
	if diff := cmp.Diff(w, got); diff != "" {
		return Failure{Message: fmt.Sprintf("%s JSON mismatch", name), Diff: diff}, false
	}
	return Failure{}, true
}

// Normalize converts a YAML-decoded value into the shape encoding/json
// produces: string-keyed maps and float64 numbers.
func Normalize(v interface{}) (interface{}, error) {
	switch v := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			ks, ok := k.(string)
			if !ok {
				return nil, errors.Errorf("non-string key %v", k)
			}
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			m[ks] = n
		}
		return m, nil
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for k, e := range v {
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			m[k] = n
		}
		return m, nil
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, e := range v {
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			s[i] = n
		}
		return s, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case nil, bool, string, float64:
		return v, nil
	default:
		return nil, errors.Errorf("unsupported value %v of type %T", v, v)
	}
}

// lastLine returns the last non-empty line of b, trimmed.
func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
