// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package spec

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/txtar"
	"gopkg.in/yaml.v2"
)

// ArchiveExt is the extension of txtar specification files.
const ArchiveExt = ".txtar"

// ReadFile reads and parses the specification file at p.
func ReadFile(p string) (*File, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read spec file")
	}
	if filepath.Ext(p) == ArchiveExt {
		return ParseArchive(p, data)
	}
	return Parse(p, data)
}

// Parse parses a YAML specification. name is used as the file path and to
// derive the root suite title when the document has none.
func Parse(name string, data []byte) (*File, error) {
	root, err := decodeSuite(name, data)
	if err != nil {
		return nil, err
	}
	return &File{Path: name, Root: root}, nil
}

// ParseArchive parses a txtar specification. The archive comment is the YAML
// suite and every member is a fixture.
func ParseArchive(name string, data []byte) (*File, error) {
	ar := txtar.Parse(data)
	root, err := decodeSuite(name, ar.Comment)
	if err != nil {
		return nil, err
	}

	f := &File{Path: name, Root: root}
	seen := make(map[string]struct{})
	for _, m := range ar.Files {
		if err := checkFixtureName(m.Name); err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		if _, ok := seen[m.Name]; ok {
			return nil, errors.Errorf("%s: duplicate fixture %q", name, m.Name)
		}
		seen[m.Name] = struct{}{}
		f.Fixtures = append(f.Fixtures, &Fixture{Name: m.Name, Data: m.Data})
	}
	return f, nil
}

func decodeSuite(name string, data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, errors.Wrapf(err, "%s: failed to decode", name)
	}
	if s.Describe == "" {
		s.Describe = DefaultTitle(name)
	}
	if err := validateSuite(&s, s.Describe); err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	return &s, nil
}

// DefaultTitle derives a suite title from a file path by stripping the
// directory and every extension, e.g. "api/users.spec.yaml" becomes "users".
func DefaultTitle(p string) string {
	base := filepath.Base(p)
	if t, _, ok := strings.Cut(base, "."); ok && t != "" {
		return t
	}
	return base
}

// checkFixtureName rejects fixture names that would escape the fixture directory.
func checkFixtureName(n string) error {
	if n == "" {
		return errors.New("empty fixture name")
	}
	if path.IsAbs(n) || filepath.IsAbs(n) {
		return errors.Errorf("fixture %q must be relative", n)
	}
	clean := path.Clean(n)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.Errorf("fixture %q escapes the fixture directory", n)
	}
	return nil
}
