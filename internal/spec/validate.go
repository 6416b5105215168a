// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package spec

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

// validateSuite checks s and its descendants and compiles their regular
// expressions. where describes s's position for error messages.
func validateSuite(s *Suite, where string) error {
	if s.Describe == "" {
		return errors.Errorf("%s: missing describe title", where)
	}
	if err := checkTiming(where, s.Timeout, s.Slow, s.Retries); err != nil {
		return err
	}
	hooks := []struct {
		name  string
		steps []*Step
	}{
		{"before", s.Before},
		{"after", s.After},
		{"beforeEach", s.BeforeEach},
		{"afterEach", s.AfterEach},
	}
	for _, h := range hooks {
		for i, st := range h.steps {
			if err := validateStep(st, fmt.Sprintf("%s > %s #%d", where, h.name, i+1)); err != nil {
				return err
			}
		}
	}
	for i, t := range s.Tests {
		tw := fmt.Sprintf("%s > test #%d", where, i+1)
		if t == nil || t.It == "" {
			return errors.Errorf("%s: missing it title", tw)
		}
		tw = fmt.Sprintf("%s > %q", where, t.It)
		if err := checkTiming(tw, t.Timeout, t.Slow, t.Retries); err != nil {
			return err
		}
		if t.Pending() && t.Expect != nil {
			return errors.Errorf("%s: expect given without run", tw)
		}
		if err := validateExpect(t.Expect, tw); err != nil {
			return err
		}
	}
	for i, c := range s.Suites {
		if c == nil {
			return errors.Errorf("%s > suite #%d: empty suite", where, i+1)
		}
		if err := validateSuite(c, fmt.Sprintf("%s > %q", where, c.Describe)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(st *Step, where string) error {
	if st == nil || st.Run == "" {
		return errors.Errorf("%s: missing run command", where)
	}
	if err := checkTiming(where, st.Timeout, nil, nil); err != nil {
		return err
	}
	return validateExpect(st.Expect, where)
}

func validateExpect(e *Expect, where string) error {
	if e == nil {
		return nil
	}
	for name, se := range map[string]*StreamExpect{"stdout": e.Stdout, "stderr": e.Stderr} {
		if se == nil {
			continue
		}
		se.res = nil
		for _, pat := range se.Matches {
			re, err := regexp.Compile(pat)
			if err != nil {
				return errors.Wrapf(err, "%s: bad %s pattern", where, name)
			}
			se.res = append(se.res, re)
		}
	}
	return nil
}

func checkTiming(where string, timeout, slow *Duration, retries *int) error {
	if timeout != nil && *timeout < 0 {
		return errors.Errorf("%s: negative timeout", where)
	}
	if slow != nil && *slow < 0 {
		return errors.Errorf("%s: negative slow threshold", where)
	}
	if retries != nil && *retries < 0 {
		return errors.Errorf("%s: negative retries", where)
	}
	return nil
}
