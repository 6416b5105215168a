// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the specrun executable, which runs shell-based
// spec files and exits with the number of failed tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"github.com/bamachrn/grunt-express-workflow/internal/command"
	"github.com/bamachrn/grunt-express-workflow/internal/logging"
)

// Version is the version info of this command. It is filled in at link time.
var Version = "<unknown>"

// newLogger creates a logging.Logger based on the supplied command-line flags.
func newLogger(verbose, logTime bool) logging.Logger {
	level := logging.LevelInfo
	if verbose {
		level = logging.LevelDebug
	}
	var flags logging.Flags
	if logTime {
		flags |= logging.Timestamp
	}
	return logging.NewSinkLogger(level, flags, logging.NewWriterSink(os.Stderr))
}

// useColor reports whether console output should be colored.
func useColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// doMain implements the main body of the program. It's a separate function so
// that its deferred functions will run before os.Exit makes the program exit
// immediately.
func doMain() int {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newListCmd(os.Stdout), "")
	subcommands.Register(newRunCmd(os.Stdout, useColor()), "")

	version := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "use verbose logging")
	logTime := flag.Bool("logtime", false, "include date/time headers in logs")
	flag.Parse()

	if *version {
		fmt.Printf("specrun version %s\n", Version)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logging.AttachLogger(ctx, newLogger(*verbose, *logTime))

	command.InstallSignalHandler(os.Stderr, func(os.Signal) { cancel() })

	return int(subcommands.Execute(ctx))
}

func main() {
	os.Exit(doMain())
}
