// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides defaults loading for the transient-run CLI.
//
// A defaults file is located via:
//   - TRANSIENT_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. Absent both, the
// zero-value defaults apply. This keeps configuration deterministic
// and auditable with no hidden overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that points at the defaults
// file.
const EnvVar = "TRANSIENT_CONFIG"

// Duration is a time.Duration that unmarshals from YAML strings like
// "250ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds CLI defaults applied when the matching flag is not
// given. The library API takes no configuration from files; this is a
// command-line convenience only.
type Config struct {
	// Slice places units in this resource-control slice by default.
	Slice string `yaml:"slice"`

	// ServiceType is the default unit Type (e.g. "oneshot").
	ServiceType string `yaml:"service_type"`

	// UserMode overrides the "session manager unless root" default.
	UserMode *bool `yaml:"user_mode,omitempty"`

	// PollInterval is the default wait-polling interval.
	PollInterval Duration `yaml:"poll_interval"`

	// Environment entries are exported into every unit, before any
	// --setenv flags.
	Environment map[string]string `yaml:"environment"`
}

// Load reads the defaults file named by TRANSIENT_CONFIG. With the
// variable unset it returns zero-value defaults.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		return &Config{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads and parses a specific defaults file.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
