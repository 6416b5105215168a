// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package spec

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Duration is a time.Duration decoded from YAML. Integers and bare numeric
// strings are milliseconds; other strings use time.ParseDuration syntax.
type Duration time.Duration

// D returns d as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v interface{}
	if err := unmarshal(&v); err != nil {
		return err
	}
	switch x := v.(type) {
	case int:
		*d = Duration(time.Duration(x) * time.Millisecond)
	case float64:
		*d = Duration(time.Duration(x * float64(time.Millisecond)))
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*d = Duration(time.Duration(n * float64(time.Millisecond)))
			return nil
		}
		pd, err := time.ParseDuration(s)
		if err != nil {
			return errors.Errorf("invalid duration %q", x)
		}
		*d = Duration(pd)
	default:
		return errors.Errorf("invalid duration %v", v)
	}
	return nil
}
