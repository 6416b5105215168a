// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shell

import (
	"regexp"
	"strings"
)

// safeRE matches words that need no quoting. A leading '=' triggers
// expansion in zsh, so it is only safe after the first character.
var safeRE = regexp.MustCompile(`^[-\w@%+:,./][-\w@%+:,./=]*$`)

// Quote returns s quoted for a POSIX shell command line. Safe words are
// returned unchanged.
func Quote(s string) string {
	if safeRE.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Join quotes each of args and joins them with spaces.
func Join(args ...string) string {
	qs := make([]string, len(args))
	for i, a := range args {
		qs[i] = Quote(a)
	}
	return strings.Join(qs, " ")
}
