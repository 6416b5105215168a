// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runner executes a suite tree.
//
// Suites run depth-first in registration order and tests one at a time in
// declaration order. Hooks follow BDD conventions: before and after hooks
// wrap a suite, beforeEach and afterEach hooks of every enclosing suite wrap
// each test. A failing hook counts as a single failure and skips the rest of
// the suite that declared it.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/pkg/errors"

	"github.com/bamachrn/grunt-express-workflow/internal/expect"
	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/shell"
	"github.com/bamachrn/grunt-express-workflow/internal/spec"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
	"github.com/bamachrn/grunt-express-workflow/internal/timing"
	"github.com/bamachrn/grunt-express-workflow/internal/usercode"
)

// DefaultGracePeriod is the extra time a command gets after its timeout
// before it is abandoned.
const DefaultGracePeriod = 5 * time.Second

// Environment variables set for every command.
const (
	EnvFile     = "SPECRUN_FILE"
	EnvDir      = "SPECRUN_DIR"
	EnvFixtures = "SPECRUN_FIXTURES"
	EnvTitle    = "SPECRUN_TITLE"
)

// Config contains details about how the runner should run tests.
type Config struct {
	// Dir is the working directory of commands in suites that set no dir.
	// Empty means the current directory.
	Dir string
	// Shell is the interpreter for commands. Empty means shell.DefaultShell.
	Shell string
	// MaxOutput is the number of bytes kept per output stream.
	MaxOutput int
	// Bail stops the run after the first failure.
	Bail bool
	// GracePeriod is the time a command gets after its timeout. Zero means
	// DefaultGracePeriod.
	GracePeriod time.Duration
	// Clock measures durations. nil means the wall clock.
	Clock clock.Clock
	// Reporter receives events. nil means NopReporter.
	Reporter Reporter
}

// scope is the execution environment a suite passes down to its contents.
type scope struct {
	dir      string
	fixtures string
}

type run struct {
	cfg    *Config
	clk    clock.Clock
	rep    Reporter
	sh     *shell.Runner
	res    *Result
	grace  time.Duration
	scopes map[*suite.Suite]scope
	bailed bool
}

// Run runs every test under root and returns the results. Run never fails:
// problems are recorded as test or hook failures. If ctx is canceled the
// current test fails, after hooks of entered suites still run, and nothing
// else is started.
func Run(ctx context.Context, root *suite.Suite, cfg *Config) *Result {
	r := &run{
		cfg:    cfg,
		clk:    cfg.Clock,
		rep:    cfg.Reporter,
		sh:     &shell.Runner{Shell: cfg.Shell, MaxOutput: cfg.MaxOutput},
		res:    &Result{},
		grace:  cfg.GracePeriod,
		scopes: make(map[*suite.Suite]scope),
	}
	if r.clk == nil {
		r.clk = clock.NewClock()
	}
	if r.rep == nil {
		r.rep = NopReporter{}
	}
	if r.grace == 0 {
		r.grace = DefaultGracePeriod
	}

	st := &r.res.Stats
	st.Start = r.clk.Now()
	r.rep.RunStart(root, root.Total())
	r.res.Root, _ = r.runSuite(ctx, root, scope{dir: cfg.Dir})
	st.End = r.clk.Now()
	st.Duration = st.End.Sub(st.Start)
	r.rep.RunEnd(r.res)
	return r.res
}

// stopped reports whether no further tests may start.
func (r *run) stopped(ctx context.Context) bool {
	return r.bailed || ctx.Err() != nil
}

// runSuite runs s. If an each-hook of an ancestor fails, that ancestor is
// returned so callers up to it skip their remaining tests.
func (r *run) runSuite(ctx context.Context, s *suite.Suite, parent scope) (sr *SuiteResult, abort *suite.Suite) {
	sr = &SuiteResult{Suite: s, Start: r.clk.Now()}
	if !s.IsRoot() {
		r.res.Stats.Suites++
		r.rep.SuiteStart(s)
	}
	defer func() {
		sr.Duration = r.clk.Since(sr.Start)
		if !s.IsRoot() {
			r.rep.SuiteEnd(sr)
		}
	}()

	if !hasRunnable(s) {
		for _, t := range s.Tests {
			if r.stopped(ctx) {
				return sr, nil
			}
			r.pending(sr, t)
		}
		for _, c := range s.Suites {
			if r.stopped(ctx) {
				return sr, nil
			}
			cr, _ := r.runSuite(ctx, c, parent)
			sr.Suites = append(sr.Suites, cr)
		}
		return sr, nil
	}

	if s.File != "" {
		var stage *timing.Stage
		ctx, stage = timing.Start(ctx, s.File)
		defer stage.End()
		ctx = logging.WithPrefix(ctx, "["+filepath.Base(s.File)+"] ")
	}

	sc, cleanup, err := r.enter(ctx, s, parent)
	if err != nil {
		r.hookFailed(ctx, sr, &HookResult{
			Title:     `"before all" hook: prepare fixtures`,
			FullTitle: s.FullTitle() + ` "before all" hook: prepare fixtures`,
			Start:     r.clk.Now(),
			Err:       err,
		}, fileOf(s))
		return sr, nil
	}
	defer cleanup()
	r.scopes[s] = sc

	// Hooks of suites that have been entered must run to completion even
	// when the run is interrupted.
	cleanupCtx := context.WithoutCancel(ctx)
	defer r.runHooks(cleanupCtx, sr, s.After, nil)

	if !r.runHooks(ctx, sr, s.Before, nil) {
		return sr, nil
	}
	for _, t := range s.Tests {
		if r.stopped(ctx) {
			return sr, nil
		}
		if a := r.runTest(ctx, sr, t); a != nil {
			if a == s {
				return sr, nil
			}
			return sr, a
		}
	}
	for _, c := range s.Suites {
		if r.stopped(ctx) {
			return sr, nil
		}
		cr, a := r.runSuite(ctx, c, sc)
		sr.Suites = append(sr.Suites, cr)
		if a != nil {
			if a == s {
				return sr, nil
			}
			return sr, a
		}
	}
	return sr, nil
}

// enter prepares the scope of s: a fresh fixture directory for txtar suites
// and the suite's working directory.
func (r *run) enter(ctx context.Context, s *suite.Suite, parent scope) (sc scope, cleanup func(), err error) {
	sc = parent
	cleanup = func() {}
	if len(s.Fixtures) > 0 {
		dir, err := writeFixtures(s.Fixtures)
		if err != nil {
			return sc, nil, err
		}
		logging.Debugf(ctx, "Wrote %d fixture(s) to %s", len(s.Fixtures), dir)
		sc = scope{dir: dir, fixtures: dir}
		cleanup = func() {
			if err := os.RemoveAll(dir); err != nil {
				logging.Infof(ctx, "Failed to remove fixtures: %v", err)
			}
		}
	}
	sc.dir = resolve(sc.dir, s.Dir)
	return sc, cleanup, nil
}

func writeFixtures(fs []*spec.Fixture) (dir string, err error) {
	dir, err = os.MkdirTemp("", "specrun_fixtures.")
	if err != nil {
		return "", errors.Wrap(err, "failed to create fixture directory")
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()
	for _, f := range fs {
		p := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", errors.Wrapf(err, "failed to write fixture %s", f.Name)
		}
		mode := os.FileMode(0644)
		if strings.HasPrefix(string(f.Data), "#!") {
			mode = 0755
		}
		if err := os.WriteFile(p, f.Data, mode); err != nil {
			return "", errors.Wrapf(err, "failed to write fixture %s", f.Name)
		}
	}
	return dir, nil
}

// runTest runs t with the each-hooks of its suites. If an each-hook fails,
// the suite declaring it is returned.
func (r *run) runTest(ctx context.Context, sr *SuiteResult, t *suite.Test) (abort *suite.Suite) {
	if t.Pending {
		r.pending(sr, t)
		return nil
	}

	chain := ancestors(t.Parent)
	tr := &TestResult{Test: t, Start: r.clk.Now()}
	for attempt := 0; ; attempt++ {
		for _, s := range chain {
			for _, h := range s.BeforeEach {
				if !r.runHook(ctx, sr, h, t) {
					return s
				}
			}
		}

		logging.Debugf(ctx, "Running test %q", t.FullTitle())
		tr.Attempts++
		start := r.clk.Now()
		sc := r.scopes[t.Parent]
		cmd := r.command(t.Spec.Run, t.Spec.Stdin, sc, t.Spec.Dir, t.Environ(), t.File(), t.FullTitle())
		tr.Output, tr.Err = r.exec(ctx, t.FullTitle(), t.Timeout, cmd, t.Spec.Expect)
		tr.Duration = r.clk.Since(start)

		final := tr.Err == nil || attempt >= t.Retries || r.stopped(ctx)
		if final {
			r.finishTest(ctx, sr, tr)
		} else {
			logging.Infof(ctx, "Retrying %q (%d/%d): %v", t.FullTitle(), attempt+1, t.Retries, tr.Err)
		}

		cleanupCtx := context.WithoutCancel(ctx)
		for i := len(chain) - 1; i >= 0; i-- {
			for _, h := range chain[i].AfterEach {
				if !r.runHook(cleanupCtx, sr, h, t) {
					if !final {
						r.finishTest(ctx, sr, tr)
					}
					return chain[i]
				}
			}
		}
		if final {
			return nil
		}
	}
}

func (r *run) finishTest(ctx context.Context, sr *SuiteResult, tr *TestResult) {
	st := &r.res.Stats
	st.Tests++
	if tr.Err == nil {
		tr.State = Passed
		tr.Speed = speedOf(tr.Duration, tr.Test.Slow)
		st.Passes++
	} else {
		tr.State = Failed
		st.Failures++
		r.res.Failures = append(r.res.Failures, &Failure{
			Title:     tr.Test.Title,
			FullTitle: tr.Test.FullTitle(),
			File:      tr.Test.File(),
			Err:       tr.Err,
			Output:    tr.Output,
		})
		logging.Debugf(ctx, "Test %q failed: %v", tr.Test.FullTitle(), tr.Err)
		logOutput(ctx, tr.Test.FullTitle(), tr.Output)
		if r.cfg.Bail {
			r.bailed = true
		}
	}
	sr.Tests = append(sr.Tests, tr)
	r.rep.TestEnd(tr)
}

func (r *run) pending(sr *SuiteResult, t *suite.Test) {
	tr := &TestResult{Test: t, State: Pending, Start: r.clk.Now()}
	r.res.Stats.Tests++
	r.res.Stats.Pending++
	sr.Tests = append(sr.Tests, tr)
	r.rep.TestEnd(tr)
}

// runHooks runs hooks in order and stops at the first failure. It reports
// whether all of them passed.
func (r *run) runHooks(ctx context.Context, sr *SuiteResult, hooks []*suite.Hook, t *suite.Test) bool {
	for _, h := range hooks {
		if !r.runHook(ctx, sr, h, t) {
			return false
		}
	}
	return true
}

func (r *run) runHook(ctx context.Context, sr *SuiteResult, h *suite.Hook, t *suite.Test) bool {
	full := h.FullTitle(t)
	file := fileOf(h.Parent)
	env := h.Parent.Environ()
	for k, v := range h.Step.Env {
		env[k] = v
	}
	timeout := h.Parent.Timeout
	if h.Step.Timeout != nil {
		timeout = h.Step.Timeout.D()
	}

	logging.Debugf(ctx, "Running %s", full)
	start := r.clk.Now()
	cmd := r.command(h.Step.Run, h.Step.Stdin, r.scopes[h.Parent], h.Step.Dir, env, file, full)
	out, err := r.exec(ctx, full, timeout, cmd, h.Step.Expect)
	if err == nil {
		return true
	}
	r.hookFailed(ctx, sr, &HookResult{
		Hook:      h,
		Test:      t,
		Title:     h.Title(t),
		FullTitle: full,
		Start:     start,
		Duration:  r.clk.Since(start),
		Err:       err,
		Output:    out,
	}, file)
	return false
}

func (r *run) hookFailed(ctx context.Context, sr *SuiteResult, hr *HookResult, file string) {
	r.res.Stats.Failures++
	r.res.Failures = append(r.res.Failures, &Failure{
		Title:     hr.Title,
		FullTitle: hr.FullTitle,
		File:      file,
		Err:       hr.Err,
		Output:    hr.Output,
	})
	sr.Hooks = append(sr.Hooks, hr)
	logging.Debugf(ctx, "%s failed: %v", hr.FullTitle, hr.Err)
	logOutput(ctx, hr.FullTitle, hr.Output)
	if r.cfg.Bail {
		r.bailed = true
	}
	r.rep.HookFail(hr)
}

// logOutput writes the captured output of a failed command to the debug log.
func logOutput(ctx context.Context, title string, out *shell.Output) {
	for _, s := range out.Streams() {
		logging.Debugf(ctx, "%s of %s:\n%s", s.Name, title, strings.TrimRight(string(s.Data), "\n"))
	}
	if out != nil && out.Truncated {
		logging.Debugf(ctx, "Output of %s was truncated", title)
	}
}

func (r *run) command(script, stdin string, sc scope, dir string, env map[string]string, file, title string) *shell.Command {
	env[EnvTitle] = title
	if file != "" {
		if abs, err := filepath.Abs(file); err == nil {
			file = abs
		}
		env[EnvFile] = file
		env[EnvDir] = filepath.Dir(file)
	}
	if sc.fixtures != "" {
		env[EnvFixtures] = sc.fixtures
	}
	return &shell.Command{
		Script: script,
		Stdin:  stdin,
		Dir:    resolve(sc.dir, dir),
		Env:    env,
	}
}

// exec runs cmd under timeout and checks its outcome against exp.
func (r *run) exec(ctx context.Context, name string, timeout time.Duration, cmd *shell.Command, exp *spec.Expect) (*shell.Output, error) {
	var (
		out  *shell.Output
		rerr error
	)
	err := usercode.SafeCall(ctx, name, timeout, r.grace, func(val interface{}) {
		rerr = errors.Errorf("panic: %v", val)
	}, func(ctx context.Context) {
		o, err := r.sh.Run(ctx, cmd)
		if err == nil {
			err = expect.Check(exp, o)
		}
		out, rerr = o, err
	})
	switch {
	case errors.Is(err, usercode.ErrAbandoned):
		return nil, timeoutError(timeout)
	case err != nil:
		return nil, errors.Wrap(err, "interrupted")
	case rerr == nil:
		return out, nil
	case ctx.Err() != nil:
		return out, errors.Wrap(ctx.Err(), "interrupted")
	case errors.Is(rerr, context.DeadlineExceeded):
		return out, timeoutError(timeout)
	default:
		return out, rerr
	}
}

// TimeoutError is returned for commands that did not finish in time.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout of %dms exceeded", e.Timeout.Milliseconds())
}

func timeoutError(timeout time.Duration) error {
	return &TimeoutError{Timeout: timeout}
}

// hasRunnable reports whether s or its descendants contain a test that is
// not pending.
func hasRunnable(s *suite.Suite) bool {
	for _, t := range s.Tests {
		if !t.Pending {
			return true
		}
	}
	for _, c := range s.Suites {
		if hasRunnable(c) {
			return true
		}
	}
	return false
}

// ancestors returns s and its ancestors, outermost first.
func ancestors(s *suite.Suite) []*suite.Suite {
	var chain []*suite.Suite
	for ; s != nil; s = s.Parent {
		chain = append([]*suite.Suite{s}, chain...)
	}
	return chain
}

func fileOf(s *suite.Suite) string {
	for ; s != nil; s = s.Parent {
		if s.File != "" {
			return s.File
		}
	}
	return ""
}

func resolve(base, p string) string {
	if p == "" {
		return base
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
