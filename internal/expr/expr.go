// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package expr evaluates boolean expressions over test tags.
package expr

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Expr is a compiled boolean expression over a set of tags.
//
// Expressions consist of the following tokens:
//
//   - Tags, either as bare identifiers (only if they are valid Go
//     identifiers) or as double-quoted strings in which '*' matches any
//     sequence of characters
//   - Binary operators: && (and), || (or)
//   - Unary operator: ! (not)
//   - Grouping: (, )
//
// The syntax is a subset of Go's, so go/parser builds the initial tree which
// is then validated and compiled into matchers.
type Expr struct {
	src  string
	root node
}

type node interface {
	eval(tags map[string]struct{}) bool
}

type andNode struct{ x, y node }

func (n andNode) eval(tags map[string]struct{}) bool { return n.x.eval(tags) && n.y.eval(tags) }

type orNode struct{ x, y node }

func (n orNode) eval(tags map[string]struct{}) bool { return n.x.eval(tags) || n.y.eval(tags) }

type notNode struct{ x node }

func (n notNode) eval(tags map[string]struct{}) bool { return !n.x.eval(tags) }

type tagNode string

func (n tagNode) eval(tags map[string]struct{}) bool {
	_, ok := tags[string(n)]
	return ok
}

type globNode struct{ re *regexp.Regexp }

func (n globNode) eval(tags map[string]struct{}) bool {
	for tag := range tags {
		if n.re.MatchString(tag) {
			return true
		}
	}
	return false
}

// New parses s into an Expr.
func New(s string) (*Expr, error) {
	tree, err := parser.ParseExpr(s)
	if err != nil {
		return nil, errors.Wrapf(err, "bad tag expression %q", s)
	}
	root, err := compile(tree)
	if err != nil {
		return nil, errors.Wrapf(err, "bad tag expression %q", s)
	}
	return &Expr{src: s, root: root}, nil
}

// String returns the source of e.
func (e *Expr) String() string { return e.src }

// Matches reports whether the expression is satisfied by tags.
func (e *Expr) Matches(tags []string) bool {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return e.root.eval(set)
}

func compile(e ast.Expr) (node, error) {
	switch v := e.(type) {
	case *ast.BinaryExpr:
		x, err := compile(v.X)
		if err != nil {
			return nil, err
		}
		y, err := compile(v.Y)
		if err != nil {
			return nil, err
		}
		switch v.Op {
		case token.LAND:
			return andNode{x, y}, nil
		case token.LOR:
			return orNode{x, y}, nil
		}
		return nil, errors.Errorf("invalid binary operator %q", v.Op)
	case *ast.ParenExpr:
		return compile(v.X)
	case *ast.UnaryExpr:
		if v.Op != token.NOT {
			return nil, errors.Errorf("invalid unary operator %q", v.Op)
		}
		x, err := compile(v.X)
		if err != nil {
			return nil, err
		}
		return notNode{x}, nil
	case *ast.Ident:
		return tagNode(v.Name), nil
	case *ast.BasicLit:
		if v.Kind != token.STRING {
			return nil, errors.Errorf("non-string literal %q", v.Value)
		}
		str, err := strconv.Unquote(v.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "bad string literal %s", v.Value)
		}
		if !strings.Contains(str, "*") {
			return tagNode(str), nil
		}
		re, err := GlobRegexp(str)
		if err != nil {
			return nil, err
		}
		return globNode{re}, nil
	default:
		return nil, errors.Errorf("invalid node of type %T", v)
	}
}

// GlobRegexp compiles a pattern in which '*' matches any sequence of
// characters, and every other character matches itself, into an anchored
// regular expression.
func GlobRegexp(glob string) (*regexp.Regexp, error) {
	parts := strings.Split(glob, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(parts, ".*") + "$")
}
