// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithoutEnvVar(t *testing.T) {
	t.Setenv(EnvVar, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slice != "" || cfg.UserMode != nil || cfg.PollInterval != 0 {
		t.Errorf("expected zero-value defaults, got %+v", cfg)
	}
}

func TestLoadFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transient.yaml")
	content := `
slice: background.slice
service_type: oneshot
user_mode: false
poll_interval: 250ms
environment:
  LANG: C
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Slice != "background.slice" {
		t.Errorf("slice: got %q", cfg.Slice)
	}
	if cfg.ServiceType != "oneshot" {
		t.Errorf("service_type: got %q", cfg.ServiceType)
	}
	if cfg.UserMode == nil || *cfg.UserMode {
		t.Errorf("user_mode: got %v", cfg.UserMode)
	}
	if cfg.PollInterval.Std() != 250*time.Millisecond {
		t.Errorf("poll_interval: got %v", cfg.PollInterval)
	}
	if cfg.Environment["LANG"] != "C" {
		t.Errorf("environment: got %v", cfg.Environment)
	}
}

func TestLoadFromMissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing config file")
	}
}

func TestLoadHonorsEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transient.yaml")
	if err := os.WriteFile(path, []byte("slice: ci.slice\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Slice != "ci.slice" {
		t.Errorf("slice: got %q", cfg.Slice)
	}
}
