// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package spec defines the specification file format.
//
// A specification file describes one root suite using BDD vocabulary:
//
//	describe: Users API
//	timeout: 5s
//	before:
//	  - run: ./scripts/seed.sh
//	tests:
//	  - it: lists users
//	    run: curl -sf localhost:3000/users
//	    expect:
//	      stdout:
//	        contains: [alice]
//	suites:
//	  - describe: when unauthenticated
//	    tests:
//	      - it: rejects writes
//	        run: curl -s -o /dev/null -w '%{http_code}' -X POST localhost:3000/users
//	        expect:
//	          stdout: {equals: "401"}
//
// Files ending in ".txtar" are txtar archives whose comment holds the YAML
// suite and whose members are fixture files.
package spec

import (
	"regexp"
)

// File is a parsed specification file.
type File struct {
	// Path is the path the file was read from.
	Path string
	// Root is the file's top-level suite.
	Root *Suite
	// Fixtures lists files to materialize before the root suite runs.
	// It is empty for plain YAML files.
	Fixtures []*Fixture
}

// Fixture is a file carried in a txtar specification.
type Fixture struct {
	Name string
	Data []byte
}

// Suite is a "describe" block.
type Suite struct {
	Describe   string            `yaml:"describe"`
	Timeout    *Duration         `yaml:"timeout"`
	Slow       *Duration         `yaml:"slow"`
	Retries    *int              `yaml:"retries"`
	Env        map[string]string `yaml:"env"`
	Dir        string            `yaml:"dir"`
	Tags       []string          `yaml:"tags"`
	Skip       bool              `yaml:"skip"`
	Only       bool              `yaml:"only"`
	Before     []*Step           `yaml:"before"`
	After      []*Step           `yaml:"after"`
	BeforeEach []*Step           `yaml:"beforeEach"`
	AfterEach  []*Step           `yaml:"afterEach"`
	Tests      []*Test           `yaml:"tests"`
	Suites     []*Suite          `yaml:"suites"`
}

// Test is an "it" block. A test without a command is pending.
type Test struct {
	It      string            `yaml:"it"`
	Run     string            `yaml:"run"`
	Stdin   string            `yaml:"stdin"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`
	Timeout *Duration         `yaml:"timeout"`
	Slow    *Duration         `yaml:"slow"`
	Retries *int              `yaml:"retries"`
	Skip    bool              `yaml:"skip"`
	Only    bool              `yaml:"only"`
	Tags    []string          `yaml:"tags"`
	Expect  *Expect           `yaml:"expect"`
}

// Pending reports whether t has no command to run.
func (t *Test) Pending() bool { return t.Run == "" }

// Step is a single command run by a hook.
type Step struct {
	Title   string            `yaml:"title"`
	Run     string            `yaml:"run"`
	Stdin   string            `yaml:"stdin"`
	Env     map[string]string `yaml:"env"`
	Dir     string            `yaml:"dir"`
	Timeout *Duration         `yaml:"timeout"`
	Expect  *Expect           `yaml:"expect"`
}

// Expect lists what a command's outcome must satisfy. A nil Expect requires
// exit code 0 only.
type Expect struct {
	ExitCode *int          `yaml:"exitCode"`
	Stdout   *StreamExpect `yaml:"stdout"`
	Stderr   *StreamExpect `yaml:"stderr"`
}

// WantExitCode returns the expected exit code.
func (e *Expect) WantExitCode() int {
	if e == nil || e.ExitCode == nil {
		return 0
	}
	return *e.ExitCode
}

// StreamExpect lists expectations on one output stream.
type StreamExpect struct {
	Equals      *string     `yaml:"equals"`
	Contains    []string    `yaml:"contains"`
	NotContains []string    `yaml:"notContains"`
	Matches     []string    `yaml:"matches"`
	JSON        interface{} `yaml:"json"`

	res []*regexp.Regexp // compiled Matches, filled by validation
}

// Regexps returns the compiled Matches patterns.
func (s *StreamExpect) Regexps() []*regexp.Regexp { return s.res }
