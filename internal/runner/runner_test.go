// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package runner_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/slices"

	"github.com/bamachrn/grunt-express-workflow/internal/logging"
	"github.com/bamachrn/grunt-express-workflow/internal/logging/loggingtest"
	"github.com/bamachrn/grunt-express-workflow/internal/runner"
	"github.com/bamachrn/grunt-express-workflow/internal/suite"
	"github.com/bamachrn/grunt-express-workflow/testutil"
)

// recorder is a runner.Reporter that records events as strings.
type recorder struct {
	events []string
}

func (r *recorder) RunStart(root *suite.Suite, total int) {
	r.events = append(r.events, fmt.Sprintf("start %d", total))
}
func (r *recorder) SuiteStart(s *suite.Suite) {
	r.events = append(r.events, "suite "+s.FullTitle())
}
func (r *recorder) SuiteEnd(sr *runner.SuiteResult) {
	r.events = append(r.events, "end "+sr.Suite.FullTitle())
}
func (r *recorder) TestEnd(tr *runner.TestResult) {
	r.events = append(r.events, fmt.Sprintf("%s %s", tr.State, tr.Test.FullTitle()))
}
func (r *recorder) HookFail(hr *runner.HookResult) {
	r.events = append(r.events, "hook "+hr.FullTitle)
}
func (r *recorder) RunEnd(res *runner.Result) {
	r.events = append(r.events, fmt.Sprintf("done %d", res.Stats.Failures))
}

// env is a loaded suite tree with its temporary directory.
type env struct {
	dir  string
	root *suite.Suite
}

// load writes files into a temporary directory, replacing @TMP@ with the
// directory path, and loads the spec files among them in sorted order.
func load(t *testing.T, files map[string]string) *env {
	t.Helper()
	td := testutil.TempDir(t)
	var names []string
	for n, c := range files {
		files[n] = strings.ReplaceAll(c, "@TMP@", td)
		if strings.Contains(n, ".spec.") {
			names = append(names, n)
		}
	}
	if err := testutil.WriteFiles(td, files); err != nil {
		t.Fatal(err)
	}
	slices.Sort(names)

	reg := suite.NewRegistry(suite.Options{Timeout: 10 * time.Second, Slow: 75 * time.Millisecond})
	for _, n := range names {
		reg.AddFile(filepath.Join(td, n))
	}
	if err := reg.Load(context.Background()); err != nil {
		t.Fatal("Load failed: ", err)
	}
	return &env{dir: td, root: reg.Root()}
}

func (e *env) run(ctx context.Context, cfg runner.Config) (*runner.Result, []string) {
	rec := &recorder{}
	cfg.Reporter = rec
	if cfg.Clock == nil {
		cfg.Clock = fakeclock.NewFakeClock(time.Unix(1, 0))
	}
	if cfg.Dir == "" {
		cfg.Dir = e.dir
	}
	res := runner.Run(ctx, e.root, &cfg)
	return res, rec.events
}

func (e *env) readLog(t *testing.T) []string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(e.dir, "log"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Fields(string(b))
}

func TestRunPassFail(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
tests:
  - it: passes
    run: "true"
  - it: fails
    run: exit 1
  - it: is pending
suites:
  - describe: nested
    tests:
      - it: checks output
        run: echo hello
        expect: {stdout: {equals: hello}}
`,
	})
	res, events := e.run(context.Background(), runner.Config{})

	want := []string{
		"start 4",
		"suite A",
		"passed A passes",
		"failed A fails",
		"pending A is pending",
		"suite A nested",
		"passed A nested checks output",
		"end A nested",
		"end A",
		"done 1",
	}
	if diff := cmp.Diff(events, want); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}

	st := res.Stats
	if st.Suites != 2 || st.Tests != 4 || st.Passes != 2 || st.Pending != 1 || st.Failures != 1 {
		t.Errorf("Stats = %+v; want 2 suites, 4 tests, 2 passes, 1 pending, 1 failure", st)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("Got %d failures; want 1", len(res.Failures))
	}
	f := res.Failures[0]
	if f.FullTitle != "A fails" || !strings.HasSuffix(f.File, "a.spec.yaml") {
		t.Errorf("Failure = %q in %q; want %q in a.spec.yaml", f.FullTitle, f.File, "A fails")
	}
	if got, want := f.Err.Error(), "expected exit code 0, got 1"; got != want {
		t.Errorf("Failure error = %q; want %q", got, want)
	}
}

func TestRunEmpty(t *testing.T) {
	e := load(t, nil)
	res, events := e.run(context.Background(), runner.Config{})
	if diff := cmp.Diff(events, []string{"start 0", "done 0"}); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Failures != 0 {
		t.Errorf("Failures = %d; want 0", res.Stats.Failures)
	}
}

const hookOrderSpec = `
describe: outer
env: {LOG: "@TMP@/log"}
before: [{run: echo before-outer >> $LOG}]
after: [{run: echo after-outer >> $LOG}]
beforeEach: [{run: echo beforeEach-outer >> $LOG}]
afterEach: [{run: echo afterEach-outer >> $LOG}]
tests:
  - it: t1
    run: echo t1 >> $LOG
suites:
  - describe: inner
    before: [{run: echo before-inner >> $LOG}]
    after: [{run: echo after-inner >> $LOG}]
    beforeEach: [{run: echo beforeEach-inner >> $LOG}]
    afterEach: [{run: echo afterEach-inner >> $LOG}]
    tests:
      - it: t2
        run: echo t2 >> $LOG
`

func TestRunHookOrder(t *testing.T) {
	e := load(t, map[string]string{"h.spec.yaml": hookOrderSpec})
	res, _ := e.run(context.Background(), runner.Config{})
	if res.Stats.Failures != 0 {
		t.Fatalf("Run failed: %v", res.Failures[0].Err)
	}
	want := []string{
		"before-outer",
		"beforeEach-outer", "t1", "afterEach-outer",
		"before-inner",
		"beforeEach-outer", "beforeEach-inner", "t2", "afterEach-inner", "afterEach-outer",
		"after-inner",
		"after-outer",
	}
	if diff := cmp.Diff(e.readLog(t), want); diff != "" {
		t.Errorf("Execution order mismatch (-got +want):\n%s", diff)
	}
}

func TestRunBeforeAllFailure(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
env: {LOG: "@TMP@/log"}
before: [{title: seed, run: exit 1}]
after: [{run: echo after-A >> $LOG}]
tests:
  - it: t1
    run: echo t1 >> $LOG
suites:
  - describe: nested
    tests: [{it: t2, run: echo t2 >> $LOG}]
`,
		"b.spec.yaml": `
describe: B
env: {LOG: "@TMP@/log"}
tests: [{it: t3, run: echo t3 >> $LOG}]
`,
	})
	res, events := e.run(context.Background(), runner.Config{})

	wantEvents := []string{
		"start 3",
		"suite A",
		`hook A "before all" hook: seed`,
		"end A",
		"suite B",
		"passed B t3",
		"end B",
		"done 1",
	}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(e.readLog(t), []string{"after-A", "t3"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Failures != 1 || res.Stats.Passes != 1 {
		t.Errorf("Stats = %+v; want 1 failure and 1 pass", res.Stats)
	}
}

func TestRunBeforeEachFailure(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
env: {LOG: "@TMP@/log"}
beforeEach: [{run: '[ "$SPECRUN_TITLE" != "A \"before each\" hook for \"t2\"" ]'}]
after: [{run: echo after-A >> $LOG}]
tests:
  - it: t1
    run: echo t1 >> $LOG
suites:
  - describe: nested
    after: [{run: echo after-nested >> $LOG}]
    tests:
      - it: t2
        run: echo t2 >> $LOG
      - it: t3
        run: echo t3 >> $LOG
  - describe: other
    tests: [{it: t4, run: echo t4 >> $LOG}]
`,
	})
	res, events := e.run(context.Background(), runner.Config{})

	wantEvents := []string{
		"start 4",
		"suite A",
		"passed A t1",
		"suite A nested",
		`hook A "before each" hook for "t2"`,
		"end A nested",
		"end A",
		"done 1",
	}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(e.readLog(t), []string{"t1", "after-nested", "after-A"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Failures != 1 {
		t.Errorf("Failures = %d; want 1", res.Stats.Failures)
	}
}

func TestRunAfterEachFailure(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
afterEach: [{run: exit 2}]
tests:
  - it: t1
    run: "true"
  - it: t2
    run: "true"
`,
	})
	res, events := e.run(context.Background(), runner.Config{})
	wantEvents := []string{
		"start 2",
		"suite A",
		"passed A t1",
		`hook A "after each" hook for "t1"`,
		"end A",
		"done 1",
	}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Failures != 1 || res.Stats.Passes != 1 {
		t.Errorf("Stats = %+v; want 1 failure and 1 pass", res.Stats)
	}
}

func TestRunPendingSuiteRunsNoHooks(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
before: [{run: exit 1}]
skip: true
tests:
  - it: t1
    run: exit 1
  - it: t2
`,
	})
	res, events := e.run(context.Background(), runner.Config{})
	wantEvents := []string{
		"start 2",
		"suite A",
		"pending A t1",
		"pending A t2",
		"end A",
		"done 0",
	}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Pending != 2 {
		t.Errorf("Pending = %d; want 2", res.Stats.Pending)
	}
}

func TestRunRetries(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
env: {LOG: "@TMP@/log"}
beforeEach: [{run: echo hook >> $LOG}]
tests:
  - it: flaky
    retries: 2
    run: echo try >> $LOG; [ $(grep -c try $LOG) -ge 2 ]
  - it: broken
    retries: 1
    run: exit 1
`,
	})
	logger := loggingtest.NewLogger(t, logging.LevelInfo)
	res, events := e.run(logger.Attach(context.Background()), runner.Config{})

	wantEvents := []string{"start 2", "suite A", "passed A flaky", "failed A broken", "end A", "done 1"}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(e.readLog(t), []string{"hook", "try", "hook", "try", "hook", "hook"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
	var attempts []int
	for _, tr := range res.Root.Suites[0].Tests {
		attempts = append(attempts, tr.Attempts)
	}
	if diff := cmp.Diff(attempts, []int{2, 2}); diff != "" {
		t.Errorf("Attempts mismatch (-got +want):\n%s", diff)
	}
	wantLogs := []string{
		`[a.spec.yaml] Retrying "A flaky" (1/2): expected exit code 0, got 1`,
		`[a.spec.yaml] Retrying "A broken" (1/1): expected exit code 0, got 1`,
	}
	if diff := cmp.Diff(wantLogs, logger.Logs()); diff != "" {
		t.Errorf("Logs mismatch (-want +got):\n%s", diff)
	}
}

func TestRunBail(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
env: {LOG: "@TMP@/log"}
after: [{run: echo after >> $LOG}]
tests:
  - it: t1
    run: exit 1
  - it: t2
    run: echo t2 >> $LOG
`,
		"b.spec.yaml": `
tests: [{it: t3, run: "true"}]
`,
	})
	res, events := e.run(context.Background(), runner.Config{Bail: true})
	wantEvents := []string{"start 3", "suite A", "failed A t1", "end A", "done 1"}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(e.readLog(t), []string{"after"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
	if res.Stats.Failures != 1 {
		t.Errorf("Failures = %d; want 1", res.Stats.Failures)
	}
}

func TestRunTimeout(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
tests:
  - it: hangs
    timeout: 100
    run: sleep 30
`,
	})
	start := time.Now()
	res, _ := e.run(context.Background(), runner.Config{GracePeriod: time.Second})
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Run took %v", elapsed)
	}
	if len(res.Failures) != 1 {
		t.Fatalf("Got %d failures; want 1", len(res.Failures))
	}
	if got, want := res.Failures[0].Err.Error(), "timeout of 100ms exceeded"; got != want {
		t.Errorf("Error = %q; want %q", got, want)
	}
}

func TestRunCanceled(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
env: {LOG: "@TMP@/log"}
after: [{run: echo after >> $LOG}]
tests:
  - it: t1
    run: touch @TMP@/started; sleep 30
  - it: t2
    run: echo t2 >> $LOG
`,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			if _, err := os.Stat(filepath.Join(e.dir, "started")); err == nil {
				cancel()
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}()

	res, events := e.run(ctx, runner.Config{})
	wantEvents := []string{"start 2", "suite A", "failed A t1", "end A", "done 1"}
	if diff := cmp.Diff(events, wantEvents); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(e.readLog(t), []string{"after"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
	if len(res.Failures) == 1 && !strings.HasPrefix(res.Failures[0].Err.Error(), "interrupted") {
		t.Errorf("Error = %q; want interrupted", res.Failures[0].Err)
	}
}

func TestRunEnv(t *testing.T) {
	e := load(t, map[string]string{
		"sub/a.spec.yaml": `
describe: A
env: {GREETING: hi}
tests:
  - it: sees env
    env: {NAME: bob}
    run: echo "$GREETING $NAME|$SPECRUN_TITLE|$(basename $SPECRUN_FILE)|$(basename $SPECRUN_DIR)|${SPECRUN_FIXTURES:-none}"
    expect:
      stdout: {equals: "hi bob|A sees env|a.spec.yaml|sub|none"}
`,
	})
	res, _ := e.run(context.Background(), runner.Config{})
	if len(res.Failures) > 0 {
		t.Errorf("Test failed: %v", res.Failures[0].Err)
	}
}

func TestRunDir(t *testing.T) {
	e := load(t, map[string]string{
		"work/inner/marker": "",
		"a.spec.yaml": `
describe: A
dir: work
tests:
  - it: runs in suite dir
    run: test -d inner
  - it: runs in test dir
    dir: inner
    run: test -f marker
`,
	})
	res, _ := e.run(context.Background(), runner.Config{})
	for _, f := range res.Failures {
		t.Errorf("%s failed: %v", f.FullTitle, f.Err)
	}
}

func TestRunFixtures(t *testing.T) {
	e := load(t, map[string]string{
		"f.spec.txtar": `describe: F
tests:
  - it: reads fixture
    run: cat data/users.json; echo "$SPECRUN_FIXTURES" > @TMP@/fixtures
    expect:
      stdout: {json: [alice, bob]}
  - it: runs fixture script
    run: ./hello.sh
    expect:
      stdout: {equals: hello}
-- data/users.json --
["alice", "bob"]
-- hello.sh --
#!/bin/sh
echo hello
`,
	})
	res, _ := e.run(context.Background(), runner.Config{})
	for _, f := range res.Failures {
		t.Errorf("%s failed: %v", f.FullTitle, f.Err)
	}

	b, err := os.ReadFile(filepath.Join(e.dir, "fixtures"))
	if err != nil {
		t.Fatal(err)
	}
	dir := strings.TrimSpace(string(b))
	if dir == "" {
		t.Fatal("SPECRUN_FIXTURES was empty")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Fixture directory %s still exists after the run", dir)
	}
}

func TestRunRootHooks(t *testing.T) {
	td := testutil.TempDir(t)
	log := filepath.Join(td, "log")
	if err := testutil.WriteFiles(td, map[string]string{
		"globals.yaml": fmt.Sprintf(`
env: {LOG: %q}
before: [{run: echo global-before >> $LOG}]
afterEach: [{run: echo global-afterEach >> $LOG}]
`, log),
		"a.spec.yaml": "tests: [{it: t1, run: echo t1 >> $LOG}]",
	}); err != nil {
		t.Fatal(err)
	}
	reg := suite.NewRegistry(suite.Options{Timeout: 10 * time.Second})
	if err := reg.Require(filepath.Join(td, "globals.yaml")); err != nil {
		t.Fatal(err)
	}
	reg.AddFile(filepath.Join(td, "a.spec.yaml"))
	if err := reg.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := runner.Run(context.Background(), reg.Root(), &runner.Config{Dir: td})
	if res.Stats.Failures != 0 {
		t.Fatalf("Run failed: %v", res.Failures[0].Err)
	}
	e := &env{dir: td}
	if diff := cmp.Diff(e.readLog(t), []string{"global-before", "t1", "global-afterEach"}); diff != "" {
		t.Errorf("Execution mismatch (-got +want):\n%s", diff)
	}
}

func TestRunFailureOutput(t *testing.T) {
	e := load(t, map[string]string{
		"a.spec.yaml": `
describe: A
tests:
  - it: t
    run: echo DIAG-STDOUT-MARKER; echo first-err >&2; echo last-err >&2; exit 1
`,
	})
	logger := loggingtest.NewLogger(t, logging.LevelDebug)
	res, _ := e.run(logger.Attach(context.Background()), runner.Config{})
	if len(res.Failures) != 1 {
		t.Fatalf("Got %d failures; want 1", len(res.Failures))
	}
	out := res.Failures[0].Output
	if out == nil {
		t.Fatal("Failure has no output")
	}
	if got, want := string(out.Stdout), "DIAG-STDOUT-MARKER\n"; got != want {
		t.Errorf("Stdout = %q; want %q", got, want)
	}
	if got, want := string(out.Stderr), "first-err\nlast-err\n"; got != want {
		t.Errorf("Stderr = %q; want %q", got, want)
	}
	if tr := res.Root.Suites[0].Tests[0]; tr.Output != out {
		t.Errorf("Test output = %v; want the failure's output", tr.Output)
	}

	for _, want := range []string{
		"[a.spec.yaml] stdout of A t:\nDIAG-STDOUT-MARKER",
		"[a.spec.yaml] stderr of A t:\nfirst-err\nlast-err",
	} {
		if !slices.Contains(logger.Logs(), want) {
			t.Errorf("Logs lack %q:\n%s", want, logger.String())
		}
	}
}

// waitFile waits until path exists.
func waitFile(path string) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s was not created", path)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunSpeed(t *testing.T) {
	// Each test blocks until the clock has been advanced by the given amount.
	steps := []struct {
		title   string
		advance time.Duration
	}{
		{"fast", 10 * time.Millisecond},
		{"medium", 50 * time.Millisecond},
		{"slow", 100 * time.Millisecond},
	}
	var tests strings.Builder
	for i, s := range steps {
		fmt.Fprintf(&tests, "  - it: %s\n    run: touch @TMP@/started%d; while [ ! -e @TMP@/go%d ]; do sleep 0.01; done\n", s.title, i, i)
	}
	e := load(t, map[string]string{"a.spec.yaml": "describe: A\ntests:\n" + tests.String()})

	fc := fakeclock.NewFakeClock(time.Unix(1, 0))
	errc := make(chan error, 1)
	go func() {
		errc <- func() error {
			for i, s := range steps {
				if err := waitFile(filepath.Join(e.dir, fmt.Sprintf("started%d", i))); err != nil {
					return err
				}
				fc.Increment(s.advance)
				if err := os.WriteFile(filepath.Join(e.dir, fmt.Sprintf("go%d", i)), nil, 0644); err != nil {
					return err
				}
			}
			return nil
		}()
	}()
	res, _ := e.run(context.Background(), runner.Config{Clock: fc})
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if res.Stats.Failures != 0 {
		t.Fatalf("Run failed: %v", res.Failures[0].Err)
	}

	type speed struct {
		Title    string
		Speed    runner.Speed
		Duration time.Duration
	}
	var got []speed
	for _, tr := range res.Root.Suites[0].Tests {
		got = append(got, speed{tr.Test.Title, tr.Speed, tr.Duration})
	}
	want := []speed{
		{"fast", runner.Fast, 10 * time.Millisecond},
		{"medium", runner.Medium, 50 * time.Millisecond},
		{"slow", runner.Slow, 100 * time.Millisecond},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Speeds mismatch (-got +want):\n%s", diff)
	}
	if got, want := res.Stats.Duration, 160*time.Millisecond; got != want {
		t.Errorf("Run duration = %v; want %v", got, want)
	}
}
