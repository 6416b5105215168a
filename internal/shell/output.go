// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shell

import "strings"

// Stream is one captured output stream of a command.
type Stream struct {
	Name string // "stdout" or "stderr"
	Data []byte
}

// Streams returns the non-empty streams of o, stdout first.
func (o *Output) Streams() []Stream {
	if o == nil {
		return nil
	}
	var ss []Stream
	if len(o.Stdout) > 0 {
		ss = append(ss, Stream{"stdout", o.Stdout})
	}
	if len(o.Stderr) > 0 {
		ss = append(ss, Stream{"stderr", o.Stderr})
	}
	return ss
}

// Tail returns up to n trailing lines of b without line terminators, and the
// number of earlier lines left out.
func Tail(b []byte, n int) (lines []string, skipped int) {
	s := strings.TrimRight(strings.ToValidUTF8(string(b), "�"), "\n")
	if s == "" {
		return nil, 0
	}
	lines = strings.Split(s, "\n")
	if len(lines) > n {
		skipped = len(lines) - n
		lines = lines[skipped:]
	}
	return lines, skipped
}
