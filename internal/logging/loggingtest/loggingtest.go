// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides logging utilities for unit tests.
package loggingtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bamachrn/grunt-express-workflow/internal/logging"
)

// Entry is a log received by Logger.
type Entry struct {
	Level logging.Level
	Msg   string
}

// Logger is a logging.Logger that records logs in memory and mirrors every
// log, regardless of level, to the test log.
type Logger struct {
	t   *testing.T
	min logging.Level

	mu      sync.Mutex
	entries []Entry
}

// NewLogger creates a new Logger that records logs at level min or above.
func NewLogger(t *testing.T, min logging.Level) *Logger {
	return &Logger{t: t, min: min}
}

// Attach returns ctx with l attached.
func (l *Logger) Attach(ctx context.Context) context.Context {
	return logging.AttachLogger(ctx, l)
}

// Log records a log.
func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.t.Logf("[%s] %s", level, msg)
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg})
}

// Entries returns the recorded logs.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Logs returns the messages of the recorded logs.
func (l *Logger) Logs() []string {
	var msgs []string
	for _, e := range l.Entries() {
		msgs = append(msgs, e.Msg)
	}
	return msgs
}

// String returns the recorded messages as a newline-separated string.
func (l *Logger) String() string {
	return strings.Join(l.Logs(), "\n")
}
