// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import "testing"

func TestUnitPath(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"echo.service", "/org/freedesktop/systemd1/unit/echo_2eservice"},
		{"my-job.service", "/org/freedesktop/systemd1/unit/my_2djob_2eservice"},
	}
	for _, tt := range tests {
		u := NewUnit(tt.name, nil, nil)
		if got := string(u.Path()); got != tt.want {
			t.Errorf("Path(%s): got %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestJobPath(t *testing.T) {
	if got := string(jobPath(1527)); got != "/org/freedesktop/systemd1/job/1527" {
		t.Errorf("jobPath(1527): got %s", got)
	}
}

func TestUnitStateBeforeLoad(t *testing.T) {
	u := NewUnit("x.service", nil, nil)
	if u.ActiveState() != "" || u.SubState() != "" {
		t.Error("expected empty state before Load")
	}
}
