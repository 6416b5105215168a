// Copyright 2026 The Specrun Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment variables overriding config keys,
	// e.g. SPECRUN_TIMEOUT.
	EnvPrefix = "SPECRUN"
	// FileName is the base name of the config file looked up in -dir.
	FileName = ".specrc"
)

// Keys lists the config file keys. Each key is set by the flag of the same
// name in lowercase and, except for dir, also read from SPECRUN_<KEY>.
// SPECRUN_DIR is reserved for the environment of spec commands.
var Keys = []string{
	"spec",
	"require",
	"reporter",
	"timeout",
	"slow",
	"retries",
	"bail",
	"grep",
	"invert",
	"tags",
	"forbidOnly",
	"resultsDir",
	"shell",
	"dir",
}

// Load applies values from the config file and the environment to keys
// whose flags were not set on f. f must have been populated by SetFlags and
// parsed. Environment variables take precedence over the config file.
func (c *MutableConfig) Load(f *flag.FlagSet) error {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	for _, k := range Keys {
		if k == "dir" {
			continue
		}
		if err := v.BindEnv(k); err != nil {
			return errors.Wrapf(err, "failed to bind %s", k)
		}
	}

	if c.ConfigFile != "" {
		v.SetConfigFile(c.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read %s", c.ConfigFile)
		}
	} else {
		dir := c.Dir
		if dir == "" {
			dir = "."
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return errors.Wrap(err, "failed to read config file")
			}
		} else {
			c.ConfigFile = v.ConfigFileUsed()
		}
	}

	for _, k := range Keys {
		name := strings.ToLower(k)
		if set[name] || !v.IsSet(k) {
			continue
		}
		fl := f.Lookup(name)
		if fl == nil {
			continue
		}
		for _, s := range values(v.Get(k), isList(k)) {
			if err := fl.Value.Set(s); err != nil {
				return errors.Wrapf(err, "bad value %q for %s", s, k)
			}
		}
	}
	return nil
}

func isList(k string) bool { return k == "spec" || k == "require" }

// values converts a config value into flag arguments. Lists come either as
// sequences from the config file or as comma-separated strings from the
// environment.
func values(val interface{}, list bool) []string {
	switch v := val.(type) {
	case []interface{}:
		var ss []string
		for _, e := range v {
			ss = append(ss, fmt.Sprint(e))
		}
		return ss
	case []string:
		return v
	case string:
		if !list {
			return []string{v}
		}
		var ss []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				ss = append(ss, s)
			}
		}
		return ss
	default:
		return []string{fmt.Sprint(v)}
	}
}
