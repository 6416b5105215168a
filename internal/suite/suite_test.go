// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package suite_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"

	"github.com/bamachrn/grunt-express-workflow/internal/suite"
	"github.com/bamachrn/grunt-express-workflow/testutil"
)

var defaultOpts = suite.Options{Timeout: 2 * time.Second, Slow: 75 * time.Millisecond}

// loadTree writes files into a temporary directory and loads the spec files
// among them in sorted order.
func loadTree(t *testing.T, files map[string]string) *suite.Registry {
	t.Helper()
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, files); err != nil {
		t.Fatal(err)
	}
	var names []string
	for n := range files {
		if strings.Contains(n, ".spec.") {
			names = append(names, n)
		}
	}
	slices.Sort(names)

	r := suite.NewRegistry(defaultOpts)
	for _, n := range names {
		r.AddFile(filepath.Join(td, n))
	}
	if err := r.Load(context.Background()); err != nil {
		t.Fatal("Load failed: ", err)
	}
	return r
}

func titles(s *suite.Suite) []string {
	var ts []string
	s.EachTest(func(t *suite.Test) { ts = append(ts, t.FullTitle()) })
	return ts
}

func TestLoadOrderAndTitles(t *testing.T) {
	r := loadTree(t, map[string]string{
		"a.spec.yaml": `
describe: Alpha
tests:
  - it: one
    run: "true"
suites:
  - describe: nested
    tests:
      - it: two
        run: "true"
`,
		"b.spec.yaml": `
tests:
  - it: three
    run: "true"
`,
	})

	got := titles(r.Root())
	want := []string{"Alpha one", "Alpha nested two", "b three"}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Titles mismatch (-got +want):\n%s", diff)
	}
	if n := r.Root().Total(); n != 3 {
		t.Errorf("Total() = %d; want 3", n)
	}
	if got := r.Root().Suites[1].File; !strings.HasSuffix(got, "b.spec.yaml") {
		t.Errorf("File = %q; want suffix b.spec.yaml", got)
	}
}

func TestLoadInheritance(t *testing.T) {
	r := loadTree(t, map[string]string{
		"x.spec.yaml": `
describe: X
timeout: 5s
retries: 2
tags: [api]
env: {A: outer, B: outer}
suites:
  - describe: inner
    slow: 1s
    skip: true
    tags: [slow, api]
    env: {B: inner}
    tests:
      - it: t
        run: "true"
        timeout: 100
        tags: [smoke]
        env: {C: test}
`,
	})
	inner := r.Root().Suites[0].Suites[0]
	tc := inner.Tests[0]

	if tc.Timeout != 100*time.Millisecond {
		t.Errorf("Timeout = %v; want 100ms", tc.Timeout)
	}
	if tc.Slow != time.Second {
		t.Errorf("Slow = %v; want 1s", tc.Slow)
	}
	if tc.Retries != 2 {
		t.Errorf("Retries = %d; want 2", tc.Retries)
	}
	if !tc.Pending {
		t.Error("Test in skipped suite is not pending")
	}
	if diff := cmp.Diff(tc.Tags, []string{"api", "slow", "smoke"}); diff != "" {
		t.Errorf("Tags mismatch (-got +want):\n%s", diff)
	}
	wantEnv := map[string]string{"A": "outer", "B": "inner", "C": "test"}
	if diff := cmp.Diff(tc.Environ(), wantEnv); diff != "" {
		t.Errorf("Environ mismatch (-got +want):\n%s", diff)
	}
	if r.Root().Suites[0].Slow != defaultOpts.Slow {
		t.Errorf("File suite Slow = %v; want default %v", r.Root().Suites[0].Slow, defaultOpts.Slow)
	}
}

func TestLoadError(t *testing.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		"good.spec.yaml": "tests: [{it: ok, run: 'true'}]",
		"bad.spec.yaml":  "tests: [{it: ok, bogus: 1}]",
	}); err != nil {
		t.Fatal(err)
	}
	r := suite.NewRegistry(defaultOpts)
	r.AddFile(filepath.Join(td, "good.spec.yaml"))
	r.AddFile(filepath.Join(td, "bad.spec.yaml"))
	if err := r.Load(context.Background()); err == nil {
		t.Fatal("Load succeeded for a file with an unknown key")
	}
	if n := len(r.Root().Suites); n != 0 {
		t.Errorf("Root has %d suites after failed Load; want 0", n)
	}
}

func TestLoadMissingFile(t *testing.T) {
	r := suite.NewRegistry(defaultOpts)
	r.AddFile(filepath.Join(testutil.TempDir(t), "missing.spec.yaml"))
	if err := r.Load(context.Background()); err == nil {
		t.Error("Load succeeded for a missing file")
	}
}

func TestLoadIncremental(t *testing.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		"a.spec.yaml": "tests: [{it: one, run: 'true'}]",
		"b.spec.yaml": "tests: [{it: two, run: 'true'}]",
	}); err != nil {
		t.Fatal(err)
	}
	r := suite.NewRegistry(defaultOpts)
	r.AddFile(filepath.Join(td, "a.spec.yaml"))
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	r.AddFile(filepath.Join(td, "b.spec.yaml"))
	if err := r.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(titles(r.Root()), []string{"a one", "b two"}); diff != "" {
		t.Errorf("Titles mismatch (-got +want):\n%s", diff)
	}
	if n := len(r.Files()); n != 2 {
		t.Errorf("Files() returned %d files; want 2", n)
	}
}

func TestRequire(t *testing.T) {
	td := testutil.TempDir(t)
	if err := testutil.WriteFiles(td, map[string]string{
		"globals.yaml": `
env: {PORT: "3000"}
before:
  - title: start server
    run: ./start.sh
afterEach:
  - run: ./reset.sh
`,
		"tests.yaml": "tests: [{it: t, run: 'true'}]",
		"dir.yaml":   "dir: sub\nbefore: [{run: 'true'}]",
	}); err != nil {
		t.Fatal(err)
	}

	r := suite.NewRegistry(defaultOpts)
	if err := r.Require(filepath.Join(td, "globals.yaml")); err != nil {
		t.Fatal("Require failed: ", err)
	}
	root := r.Root()
	if len(root.Before) != 1 || len(root.AfterEach) != 1 {
		t.Fatalf("Root hooks: %d before, %d afterEach; want 1 and 1", len(root.Before), len(root.AfterEach))
	}
	if got, want := root.Before[0].Title(nil), `"before all" hook: start server`; got != want {
		t.Errorf("Hook title = %q; want %q", got, want)
	}
	if diff := cmp.Diff(root.Environ(), map[string]string{"PORT": "3000"}); diff != "" {
		t.Errorf("Environ mismatch (-got +want):\n%s", diff)
	}

	for _, n := range []string{"tests.yaml", "dir.yaml"} {
		if err := r.Require(filepath.Join(td, n)); err == nil {
			t.Errorf("Require(%s) succeeded; want error", n)
		}
	}
}

func TestHookTitle(t *testing.T) {
	r := loadTree(t, map[string]string{
		"h.spec.yaml": `
describe: Users
beforeEach: [{run: 'true'}]
tests: [{it: lists users, run: 'true'}]
`,
	})
	s := r.Root().Suites[0]
	h := s.BeforeEach[0]
	if got, want := h.Title(s.Tests[0]), `"before each" hook for "lists users"`; got != want {
		t.Errorf("Title = %q; want %q", got, want)
	}
	if got, want := h.FullTitle(s.Tests[0]), `Users "before each" hook for "lists users"`; got != want {
		t.Errorf("FullTitle = %q; want %q", got, want)
	}
}
