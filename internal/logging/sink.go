// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Flags select the header SinkLogger puts in front of each message.
type Flags int

const (
	// Timestamp adds the UTC time of the entry.
	Timestamp Flags = 1 << iota
	// LevelTag adds the level of the entry.
	LevelTag
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// SinkLogger is a Logger that drops logs below a level, adds a header and
// forwards them to a Sink.
//
// Continuation lines of multi-line messages, such as error stacks, are
// indented to the width of the header.
type SinkLogger struct {
	level Level
	flags Flags
	sink  Sink
}

// NewSinkLogger creates a new SinkLogger forwarding logs at level or above.
func NewSinkLogger(level Level, flags Flags, sink Sink) *SinkLogger {
	return &SinkLogger{level: level, flags: flags, sink: sink}
}

// Log sends a log to the associated sink.
func (l *SinkLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	var head string
	if l.flags&Timestamp != 0 {
		head = ts.UTC().Format(timestampLayout) + " "
	}
	if l.flags&LevelTag != 0 {
		head += fmt.Sprintf("%-5s ", level)
	}
	if head != "" && strings.Contains(msg, "\n") {
		msg = strings.ReplaceAll(strings.TrimRight(msg, "\n"), "\n", "\n"+strings.Repeat(" ", len(head)))
	}
	l.sink.Log(head + msg)
}

// Sink represents a destination of logs, e.g. the console or full.txt.
type Sink interface {
	// Log gets called for a log entry.
	Log(msg string)
}

// WriterSink is a Sink that writes each log as a line to an io.Writer.
// Writes are synchronized. After the first failed write, logs are dropped.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

// NewWriterSink creates a new WriterSink from w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Log writes msg to the underlying io.Writer.
func (s *WriterSink) Log(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, s.err = io.WriteString(s.w, msg)
}

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
