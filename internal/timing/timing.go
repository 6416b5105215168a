// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package timing records how long the phases of a run took: discovery,
// loading, and the execution of each spec file.
package timing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
)

// Log is a tree of timed stages.
type Log struct {
	root *Stage
}

// NewLog returns a new Log whose stages read time from clk.
func NewLog(clk clock.Clock) *Log {
	return &Log{root: &Stage{clk: clk}}
}

// StartTop starts and returns a new top-level stage named name.
func (l *Log) StartTop(name string) *Stage {
	return l.root.StartChild(name)
}

// Stages returns the top-level stages.
func (l *Log) Stages() []*Stage {
	return l.root.Children()
}

// WritePretty writes l to w as timing.json: a JSON array with an entry per
// stage holding its duration in seconds, its name and, if it has any, an
// array of its children. Children start on their own lines:
//
//	[[4.000, "run", [
//	         [1.000, "discover"],
//	         [3.000, "execute"]]]]
func (l *Log) WritePretty(w io.Writer) error {
	var b strings.Builder
	b.WriteString("[")
	for i, s := range l.Stages() {
		if i > 0 {
			b.WriteString(",\n ")
		}
		s.format(&b, " ")
	}
	b.WriteString("]\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// Stage is a timed unit of work. Methods are safe on a nil *Stage, which is
// what Start returns when no Log is attached to a context.
type Stage struct {
	clk clock.Clock

	mu       sync.Mutex
	name     string
	start    time.Time
	end      time.Time
	children []*Stage
}

// Name returns the name of s.
func (s *Stage) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// StartChild starts and returns a new stage named name as a child of s. It
// returns nil if s has ended.
func (s *Stage) StartChild(name string) *Stage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end.IsZero() {
		return nil
	}
	c := &Stage{clk: s.clk, name: name, start: s.clk.Now()}
	s.children = append(s.children, c)
	return c
}

// End ends s and any of its descendants still running. Ending a stage twice
// has no effect.
func (s *Stage) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.end.IsZero() {
		return
	}
	for _, c := range s.children {
		c.End()
	}
	s.end = s.clk.Now()
}

// Duration returns how long s took, or has taken so far if it is running.
func (s *Stage) Duration() time.Duration {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	end := s.end
	if end.IsZero() {
		end = s.clk.Now()
	}
	return end.Sub(s.start)
}

// Children returns the stages started under s.
func (s *Stage) Children() []*Stage {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Stage(nil), s.children...)
}

// format appends s to b. Lines of children are indented 8 columns past
// indent, the column s itself starts at.
func (s *Stage) format(b *strings.Builder, indent string) {
	name, _ := json.Marshal(s.Name())
	fmt.Fprintf(b, "[%.3f, %s", s.Duration().Seconds(), name)
	if cs := s.Children(); len(cs) > 0 {
		ci := indent + strings.Repeat(" ", 8)
		b.WriteString(", [")
		for i, c := range cs {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n" + ci)
			c.format(b, ci)
		}
		b.WriteString("]")
	}
	b.WriteString("]")
}

type key int

const (
	logKey key = iota
	stageKey
)

// NewContext returns a new context that carries l. Stages started with Start
// on it become top-level stages of l.
func NewContext(ctx context.Context, l *Log) context.Context {
	ctx = context.WithValue(ctx, logKey, l)
	return context.WithValue(ctx, stageKey, l.root)
}

// FromContext returns the Log and current Stage stored in ctx, if any.
func FromContext(ctx context.Context) (*Log, *Stage, bool) {
	l, ok := ctx.Value(logKey).(*Log)
	if !ok {
		return nil, nil, false
	}
	s, ok := ctx.Value(stageKey).(*Stage)
	if !ok {
		return nil, nil, false
	}
	return l, s, true
}

// Start starts a stage named name under the current stage of ctx and returns
// it along with a context in which it is current. If ctx carries no Log,
// ctx and a nil stage are returned.
func Start(ctx context.Context, name string) (context.Context, *Stage) {
	_, s, ok := FromContext(ctx)
	if !ok {
		return ctx, nil
	}
	c := s.StartChild(name)
	if c == nil {
		return ctx, nil
	}
	return context.WithValue(ctx, stageKey, c), c
}
