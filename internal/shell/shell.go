// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shell runs spec commands through a POSIX shell.
package shell

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/bamachrn/grunt-express-workflow/internal/logging"
)

const (
	// DefaultShell is the interpreter used when none is configured.
	DefaultShell = "/bin/sh"
	// DefaultMaxOutput is the number of bytes kept per output stream.
	DefaultMaxOutput = 1 << 20

	// waitDelay bounds how long Run waits for descendants that keep the
	// output pipes open after the shell exits.
	waitDelay = 2 * time.Second
)

// Runner runs commands.
type Runner struct {
	// Shell is the interpreter invoked as "<Shell> -c <script>".
	Shell string
	// MaxOutput is the number of bytes kept per stream; excess is dropped.
	MaxOutput int
}

// Command describes one invocation.
type Command struct {
	Script string
	Stdin  string
	// Dir is the working directory. It must exist.
	Dir string
	// Env holds variables added to the runner's own environment.
	Env map[string]string
}

// Output is the result of a finished command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	// Truncated is set when either stream exceeded the runner's MaxOutput.
	Truncated bool
}

// Run runs cmd and waits for it to exit. A non-zero exit code is not an
// error. If ctx is done first, every process in the command's session is
// killed and the partial output is returned along with the context error.
func (r *Runner) Run(ctx context.Context, cmd *Command) (*Output, error) {
	sh := r.Shell
	if sh == "" {
		sh = DefaultShell
	}
	max := r.MaxOutput
	if max <= 0 {
		max = DefaultMaxOutput
	}

	c := exec.Command(sh, "-c", cmd.Script)
	c.Dir = cmd.Dir
	c.Env = Environ(cmd.Env)
	c.Stdin = strings.NewReader(cmd.Stdin)
	stdout := &cappedBuffer{max: max}
	stderr := &cappedBuffer{max: max}
	c.Stdout = stdout
	c.Stderr = stderr
	c.SysProcAttr = &unix.SysProcAttr{Setsid: true}
	c.WaitDelay = waitDelay

	logging.Debugf(ctx, "Running %s in %s", Join(sh, "-c", cmd.Script), cmd.Dir)
	if err := c.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s", sh)
	}

	done := make(chan error, 1)
	go func() { done <- c.Wait() }()

	var werr, cerr error
	select {
	case werr = <-done:
	case <-ctx.Done():
		cerr = ctx.Err()
		logging.Debugf(ctx, "Killing session %d", c.Process.Pid)
		killSession(c.Process.Pid, unix.SIGKILL)
		werr = <-done
	}

	out := &Output{
		Stdout:    stdout.Bytes(),
		Stderr:    stderr.Bytes(),
		ExitCode:  exitCode(c.ProcessState),
		Truncated: stdout.truncated || stderr.truncated,
	}
	if cerr != nil {
		return out, errors.Wrap(cerr, "command interrupted")
	}
	var exitErr *exec.ExitError
	if werr != nil && !errors.As(werr, &exitErr) && !errors.Is(werr, exec.ErrWaitDelay) {
		return out, errors.Wrap(werr, "failed to wait for command")
	}
	return out, nil
}

// exitCode returns the exit status of a finished process, mapping death by
// signal N to 128+N as shells do.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(unix.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

// Environ returns the current process environment followed by extra, with
// extra sorted by key so later entries override earlier ones.
func Environ(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// killSession makes a best-effort attempt to kill all processes in session
// sid. It makes several passes over the running processes and stops once a
// pass finds none.
func killSession(sid int, sig unix.Signal) {
	const maxPasses = 3
	for i := 0; i < maxPasses; i++ {
		pids, err := process.Pids()
		if err != nil {
			return
		}
		n := 0
		for _, pid := range pids {
			pid := int(pid)
			if s, err := unix.Getsid(pid); err == nil && s == sid {
				unix.Kill(pid, sig)
				n++
			}
		}
		if n == 0 {
			return
		}
	}
}

// cappedBuffer keeps the first max bytes written to it and drops the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) Bytes() []byte { return b.buf.Bytes() }
