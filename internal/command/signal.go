// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

const signalChannelSize = 3 // capacity of channel used to intercept signals

var selfName = filepath.Base(os.Args[0])

// InstallSignalHandler intercepts SIGINT and SIGTERM.
//
// The first signal calls interrupt, which is expected to cancel the running
// work so that results can still be reported. A second signal restores the
// terminal state, terminates child processes and exits immediately with
// status 130. out is the stream messages are written to (typically stderr).
func InstallSignalHandler(out io.Writer, interrupt func(sig os.Signal)) {
	var st *term.State
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		st, _ = term.GetState(fd)
	}

	ch := make(chan os.Signal, signalChannelSize)
	go func() {
		sig := <-ch
		fmt.Fprintf(out, "\n%s: Caught %v signal; aborting run\n", selfName, sig)
		interrupt(sig)

		sig = <-ch
		fmt.Fprintf(out, "\n%s: Caught %v signal again; exiting\n", selfName, sig)
		if st != nil {
			term.Restore(fd, st)
		}
		TerminateChildren(out)
		os.Exit(130)
	}()
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
}

// TerminateChildren sends SIGTERM to every direct child of this process.
func TerminateChildren(out io.Writer) {
	procs, err := process.Processes()
	if err != nil {
		fmt.Fprintf(out, "Failed to terminate subprocesses: %v\n", err)
		return
	}

	selfPid := int32(os.Getpid())
	for _, proc := range procs {
		ppid, err := proc.Ppid()
		if err != nil {
			continue
		}
		if ppid == selfPid {
			proc.Terminate()
		}
	}
}
