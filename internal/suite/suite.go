// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package suite holds the tree of registered suites, hooks and tests that the
// runner executes.
package suite

import (
	"fmt"
	"strings"
	"time"

	"github.com/bamachrn/grunt-express-workflow/internal/spec"
)

// HookKind identifies when a hook runs.
type HookKind int

const (
	// BeforeAll hooks run once before the first test of a suite.
	BeforeAll HookKind = iota
	// AfterAll hooks run once after the last test of a suite.
	AfterAll
	// BeforeEach hooks run before every test in a suite and its descendants.
	BeforeEach
	// AfterEach hooks run after every test in a suite and its descendants.
	AfterEach
)

func (k HookKind) String() string {
	switch k {
	case BeforeAll:
		return "before all"
	case AfterAll:
		return "after all"
	case BeforeEach:
		return "before each"
	case AfterEach:
		return "after each"
	default:
		return fmt.Sprintf("HookKind(%d)", int(k))
	}
}

// Hook is a step attached to a suite.
type Hook struct {
	Kind   HookKind
	Step   *spec.Step
	Parent *Suite
}

// Title returns the hook title in the form `"before each" hook: seed`.
// When t is non-nil the test the hook ran for is appended.
func (h *Hook) Title(t *Test) string {
	title := fmt.Sprintf("%q hook", h.Kind.String())
	if h.Step.Title != "" {
		title += ": " + h.Step.Title
	}
	if t != nil {
		title += fmt.Sprintf(" for %q", t.Title)
	}
	return title
}

// FullTitle returns the hook title prefixed by its suite's full title.
func (h *Hook) FullTitle(t *Test) string {
	return joinTitle(h.Parent.FullTitle(), h.Title(t))
}

// Suite is a node of the test tree. The root suite has no title and holds
// global hooks; its children are the suites of registered files.
type Suite struct {
	Title  string
	Parent *Suite
	// File is the spec file the suite was declared in. It is empty for the root.
	File string
	// Dir is the working directory of the suite relative to its parent's.
	Dir string
	// Fixtures are materialized into a fresh directory before the suite runs.
	Fixtures []*spec.Fixture

	Env     map[string]string
	Tags    []string
	Timeout time.Duration
	Slow    time.Duration
	Retries int
	Skip    bool
	Only    bool

	Before     []*Hook
	After      []*Hook
	BeforeEach []*Hook
	AfterEach  []*Hook

	Tests  []*Test
	Suites []*Suite
}

// IsRoot reports whether s is the root suite.
func (s *Suite) IsRoot() bool { return s.Parent == nil }

// FullTitle returns the titles of s and its non-root ancestors joined by spaces.
func (s *Suite) FullTitle() string {
	if s.IsRoot() {
		return ""
	}
	return joinTitle(s.Parent.FullTitle(), s.Title)
}

// Total returns the number of tests in s and its descendants.
func (s *Suite) Total() int {
	n := len(s.Tests)
	for _, c := range s.Suites {
		n += c.Total()
	}
	return n
}

// Empty reports whether s and its descendants hold no tests.
func (s *Suite) Empty() bool { return s.Total() == 0 }

// Test is a leaf of the test tree.
type Test struct {
	Title  string
	Parent *Suite
	Spec   *spec.Test

	Env     map[string]string
	Tags    []string
	Timeout time.Duration
	Slow    time.Duration
	Retries int
	// Pending is set for skipped tests and tests without a command.
	Pending bool
	Only    bool
}

// FullTitle returns the test title prefixed by its suite's full title.
func (t *Test) FullTitle() string {
	return joinTitle(t.Parent.FullTitle(), t.Title)
}

// File returns the spec file declaring t.
func (t *Test) File() string {
	for s := t.Parent; s != nil; s = s.Parent {
		if s.File != "" {
			return s.File
		}
	}
	return ""
}

func joinTitle(parent, title string) string {
	return strings.TrimSpace(parent + " " + title)
}
