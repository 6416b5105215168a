// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package discover expands glob patterns into the list of specification
// files to run.
package discover

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Expand returns the regular files matched by patterns.
//
// Patterns support "**" to match any number of directories as well as "*",
// "?", character classes and "{a,b}" alternation. They are applied in order;
// a pattern starting with "!" removes the files matched so far by it. Each
// pattern contributes its matches in lexical order, and a file is listed once
// at the position where it was first matched.
//
// Relative patterns are resolved against baseDir and produce paths relative
// to baseDir. Matching nothing is not an error.
func Expand(baseDir string, patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	for _, pat := range patterns {
		exclude := strings.HasPrefix(pat, "!")
		pat = strings.TrimPrefix(pat, "!")
		if pat == "" {
			return nil, errors.New("empty pattern")
		}
		if !doublestar.ValidatePathPattern(pat) {
			return nil, errors.Wrapf(doublestar.ErrBadPattern, "invalid pattern %q", pat)
		}

		if exclude {
			kept := files[:0]
			for _, f := range files {
				if ok, _ := doublestar.PathMatch(filepath.Clean(pat), f); ok {
					delete(seen, f)
					continue
				}
				kept = append(kept, f)
			}
			files = kept
			continue
		}

		matches, err := glob(baseDir, pat)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	return files, nil
}

// glob returns the sorted regular files matching pat.
//
// A relative pattern is matched inside baseDir through an fs.FS rooted at its
// literal leading directories, so metacharacters in baseDir stay literal.
func glob(baseDir, pat string) ([]string, error) {
	if filepath.IsAbs(pat) || baseDir == "" {
		matches, err := doublestar.FilepathGlob(pat, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to expand %q", pat)
		}
		slices.Sort(matches)
		return matches, nil
	}

	prefix, rest := doublestar.SplitPattern(path.Clean(filepath.ToSlash(pat)))
	root := filepath.Join(baseDir, filepath.FromSlash(prefix))
	matches, err := doublestar.Glob(os.DirFS(root), rest, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to expand %q", pat)
	}
	for i, m := range matches {
		matches[i] = filepath.Join(filepath.FromSlash(prefix), filepath.FromSlash(m))
	}
	slices.Sort(matches)
	return matches, nil
}
