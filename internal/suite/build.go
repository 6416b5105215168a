// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package suite

import (
	"golang.org/x/exp/slices"

	"github.com/bamachrn/grunt-express-workflow/internal/spec"
)

// newSuite converts a declared suite into a node under parent. Timing
// settings and tags are inherited from parent when unset.
func newSuite(parent *Suite, s *spec.Suite, file string) *Suite {
	ns := &Suite{
		Title:   s.Describe,
		Parent:  parent,
		File:    file,
		Dir:     s.Dir,
		Env:     s.Env,
		Tags:    mergeTags(parent.Tags, s.Tags),
		Timeout: parent.Timeout,
		Slow:    parent.Slow,
		Retries: parent.Retries,
		Skip:    parent.Skip || s.Skip,
		Only:    s.Only,
	}
	if s.Timeout != nil {
		ns.Timeout = s.Timeout.D()
	}
	if s.Slow != nil {
		ns.Slow = s.Slow.D()
	}
	if s.Retries != nil {
		ns.Retries = *s.Retries
	}
	ns.Before = newHooks(ns, BeforeAll, s.Before)
	ns.After = newHooks(ns, AfterAll, s.After)
	ns.BeforeEach = newHooks(ns, BeforeEach, s.BeforeEach)
	ns.AfterEach = newHooks(ns, AfterEach, s.AfterEach)
	for _, t := range s.Tests {
		ns.Tests = append(ns.Tests, newTest(ns, t))
	}
	for _, c := range s.Suites {
		ns.Suites = append(ns.Suites, newSuite(ns, c, ""))
	}
	return ns
}

func newTest(parent *Suite, t *spec.Test) *Test {
	nt := &Test{
		Title:   t.It,
		Parent:  parent,
		Spec:    t,
		Env:     t.Env,
		Tags:    mergeTags(parent.Tags, t.Tags),
		Timeout: parent.Timeout,
		Slow:    parent.Slow,
		Retries: parent.Retries,
		Pending: parent.Skip || t.Skip || t.Pending(),
		Only:    t.Only,
	}
	if t.Timeout != nil {
		nt.Timeout = t.Timeout.D()
	}
	if t.Slow != nil {
		nt.Slow = t.Slow.D()
	}
	if t.Retries != nil {
		nt.Retries = *t.Retries
	}
	return nt
}

func newHooks(parent *Suite, kind HookKind, steps []*spec.Step) []*Hook {
	var hs []*Hook
	for _, st := range steps {
		hs = append(hs, &Hook{Kind: kind, Step: st, Parent: parent})
	}
	return hs
}

// mergeTags returns inherited followed by own, without duplicates.
func mergeTags(inherited, own []string) []string {
	if len(own) == 0 {
		return inherited
	}
	tags := slices.Clone(inherited)
	for _, t := range own {
		if !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	return tags
}

// Environ returns the environment declared by s and its ancestors. Values
// from inner suites override outer ones.
func (s *Suite) Environ() map[string]string {
	env := make(map[string]string)
	if s.Parent != nil {
		env = s.Parent.Environ()
	}
	for k, v := range s.Env {
		env[k] = v
	}
	return env
}

// Environ returns the environment for t's command: its suites' env
// overridden by its own.
func (t *Test) Environ() map[string]string {
	env := t.Parent.Environ()
	for k, v := range t.Env {
		env[k] = v
	}
	return env
}
