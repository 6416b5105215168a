// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logging provides context-attached loggers used across specrun.
//
// Code never holds a logger directly. Instead a Logger is attached to a
// context.Context with AttachLogger, and messages are emitted with Info, Debug
// and their formatting variants. Logs sent to a context are delivered to every
// logger attached to it or to its ancestors.
package logging

import "time"

// Level indicates a logging level. A larger level value means a log is more
// important.
type Level int

const (
	// LevelDebug is used for details that only go to the full log, such as
	// commands being run and fixture directories.
	LevelDebug Level = iota
	// LevelInfo is used for messages shown on the console.
	LevelInfo
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	default:
		return "UNKNOWN"
	}
}

// Logger consumes logs sent via context.Context.
type Logger interface {
	// Log gets called for a log entry. Implementations must be safe for
	// concurrent use.
	Log(level Level, ts time.Time, msg string)
}

// chain delivers a log to a logger and then to the loggers of enclosing
// contexts.
type chain struct {
	logger Logger
	parent Logger
}

func (c chain) Log(level Level, ts time.Time, msg string) {
	c.logger.Log(level, ts, msg)
	c.parent.Log(level, ts, msg)
}
