// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package suite

import (
	"context"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/spec"
)

// Options holds the settings of the root suite, inherited by every suite
// that does not override them.
type Options struct {
	Timeout time.Duration
	Slow    time.Duration
	Retries int
}

// Registry collects spec files and builds the suite tree from them.
type Registry struct {
	root   *Suite
	files  []string
	loaded int // number of files already built into root
}

// NewRegistry returns an empty registry whose root suite uses opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{root: &Suite{
		Timeout: opts.Timeout,
		Slow:    opts.Slow,
		Retries: opts.Retries,
	}}
}

// Root returns the root suite.
func (r *Registry) Root() *Suite { return r.root }

// AddFile queues the spec file at p. It is parsed by the next Load.
func (r *Registry) AddFile(p string) {
	r.files = append(r.files, p)
}

// Files returns every file added so far in registration order.
func (r *Registry) Files() []string {
	return slices.Clone(r.files)
}

// Load parses the queued files and appends one suite per file to the root,
// in registration order. Files are parsed concurrently; the first error
// aborts the load and leaves the tree unchanged.
func (r *Registry) Load(ctx context.Context) error {
	pending := r.files[r.loaded:]
	parsed := make([]*spec.File, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pending {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := spec.ReadFile(p)
			if err != nil {
				return err
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range parsed {
		fs := newSuite(r.root, f.Root, f.Path)
		fs.Fixtures = f.Fixtures
		r.root.Suites = append(r.root.Suites, fs)
		logging.Debugf(ctx, "Loaded %s: %d test(s)", f.Path, fs.Total())
	}
	r.loaded = len(r.files)
	return nil
}

// Require reads the support file at p and attaches its hooks and env to the
// root suite. Support files apply to every registered file and may declare
// nothing else.
func (r *Registry) Require(p string) error {
	f, err := spec.ReadFile(p)
	if err != nil {
		return err
	}
	s := f.Root
	switch {
	case len(s.Tests) > 0 || len(s.Suites) > 0:
		return errors.Errorf("%s: support files may not declare tests or suites", p)
	case len(f.Fixtures) > 0:
		return errors.Errorf("%s: support files may not carry fixtures", p)
	case s.Timeout != nil || s.Slow != nil || s.Retries != nil || s.Dir != "" ||
		len(s.Tags) > 0 || s.Skip || s.Only:
		return errors.Errorf("%s: support files may only declare hooks and env", p)
	}

	root := r.root
	root.Before = append(root.Before, newHooks(root, BeforeAll, s.Before)...)
	root.After = append(root.After, newHooks(root, AfterAll, s.After)...)
	root.BeforeEach = append(root.BeforeEach, newHooks(root, BeforeEach, s.BeforeEach)...)
	root.AfterEach = append(root.AfterEach, newHooks(root, AfterEach, s.AfterEach)...)
	if len(s.Env) > 0 && root.Env == nil {
		root.Env = make(map[string]string)
	}
	for k, v := range s.Env {
		root.Env[k] = v
	}
	return nil
}
