// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package suite

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/expr"
)

// Matcher selects tests by full title and tags.
type Matcher struct {
	grep   *regexp.Regexp
	invert bool
	tags   *expr.Expr
}

// NewMatcher compiles a Matcher.
//
// grep is matched against full test titles. A pattern enclosed in slashes is a
// regular expression, a pattern containing '*' is a glob that must match the
// whole title, and anything else matches as a substring. invert negates the
// grep match. tags is a boolean tag expression such as "smoke && !slow",
// optionally enclosed in parentheses. Empty patterns match every test.
func NewMatcher(grep string, invert bool, tags string) (*Matcher, error) {
	m := &Matcher{invert: invert}
	if grep != "" {
		re, err := compileGrep(grep)
		if err != nil {
			return nil, err
		}
		m.grep = re
	}
	if tags != "" {
		e, err := expr.New(tags)
		if err != nil {
			return nil, err
		}
		m.tags = e
	}
	return m, nil
}

func compileGrep(pat string) (*regexp.Regexp, error) {
	switch {
	case len(pat) >= 2 && strings.HasPrefix(pat, "/") && strings.HasSuffix(pat, "/"):
		re, err := regexp.Compile(pat[1 : len(pat)-1])
		if err != nil {
			return nil, errors.Wrapf(err, "bad grep pattern %q", pat)
		}
		return re, nil
	case strings.Contains(pat, "*"):
		return expr.GlobRegexp(pat)
	default:
		return regexp.MustCompile(regexp.QuoteMeta(pat)), nil
	}
}

// Match reports whether t is selected.
func (m *Matcher) Match(t *Test) bool {
	if m.grep != nil && m.grep.MatchString(t.FullTitle()) == m.invert {
		return false
	}
	if m.tags != nil && !m.tags.Matches(t.Tags) {
		return false
	}
	return true
}

// HasOnly reports whether s or any of its descendants is marked only.
func (s *Suite) HasOnly() bool {
	if s.Only {
		return true
	}
	for _, t := range s.Tests {
		if t.Only {
			return true
		}
	}
	for _, c := range s.Suites {
		if c.HasOnly() {
			return true
		}
	}
	return false
}

// firstOnly returns the full title of the first only mark under s.
func (s *Suite) firstOnly() string {
	if s.Only {
		return s.FullTitle()
	}
	for _, t := range s.Tests {
		if t.Only {
			return t.FullTitle()
		}
	}
	for _, c := range s.Suites {
		if title := c.firstOnly(); title != "" {
			return title
		}
	}
	return ""
}

// Select removes from the tree every test m rejects. If anything is marked
// only, tests outside the marks are removed first as described for keepOnly.
// Suites left without tests are dropped, except the root. It returns the
// number of tests kept.
//
// With forbidOnly set, an only mark anywhere is an error and the tree is
// left unchanged.
func (r *Registry) Select(m *Matcher, forbidOnly bool) (int, error) {
	if r.root.HasOnly() {
		if forbidOnly {
			return 0, errors.Errorf("only is forbidden but %q is marked only", r.root.firstOnly())
		}
		keepOnly(r.root)
	}
	prune(r.root, m)
	return r.root.Total(), nil
}

// keepOnly narrows s to its only marks and reports whether anything is left.
//
// Tests marked only replace the other tests of their suite and its nested
// suites. Otherwise the suite keeps its child suites marked only, narrowed
// further if they contain marks of their own, and any child suite with marks
// below it.
func keepOnly(s *Suite) bool {
	var tests []*Test
	for _, t := range s.Tests {
		if t.Only {
			tests = append(tests, t)
		}
	}
	if len(tests) > 0 {
		s.Tests = tests
		s.Suites = nil
		return true
	}

	s.Tests = nil
	var suites []*Suite
	for _, c := range s.Suites {
		switch {
		case c.Only:
			if c.marksBelow() {
				keepOnly(c)
			}
			suites = append(suites, c)
		case keepOnly(c):
			suites = append(suites, c)
		}
	}
	s.Suites = suites
	return len(s.Suites) > 0
}

// marksBelow reports whether a test of s or any nested suite is marked only.
func (s *Suite) marksBelow() bool {
	for _, t := range s.Tests {
		if t.Only {
			return true
		}
	}
	for _, c := range s.Suites {
		if c.HasOnly() {
			return true
		}
	}
	return false
}

func prune(s *Suite, m *Matcher) {
	if m != nil {
		var tests []*Test
		for _, t := range s.Tests {
			if m.Match(t) {
				tests = append(tests, t)
			}
		}
		s.Tests = tests
	}

	var suites []*Suite
	for _, c := range s.Suites {
		prune(c, m)
		if !c.Empty() {
			suites = append(suites, c)
		}
	}
	s.Suites = suites
}

// EachTest calls f for every test under s in execution order.
func (s *Suite) EachTest(f func(*Test)) {
	for _, t := range s.Tests {
		f(t)
	}
	for _, c := range s.Suites {
		c.EachTest(f)
	}
}
