// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fdio

import (
	"errors"
	"os"
	"testing"
)

func TestResolveNil(t *testing.T) {
	fd, ok, err := Resolve(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for nil, got fd=%d", fd)
	}
}

func TestResolveInt(t *testing.T) {
	fd, ok, err := Resolve(7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || fd != 7 {
		t.Errorf("expected (7, true), got (%d, %v)", fd, ok)
	}
}

func TestResolveFiler(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open %s: %v", os.DevNull, err)
	}
	defer f.Close()

	fd, ok, err := Resolve(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || fd != int(f.Fd()) {
		t.Errorf("expected (%d, true), got (%d, %v)", int(f.Fd()), fd, ok)
	}
}

func TestResolveRejectsOther(t *testing.T) {
	for _, v := range []any{"stdin", 3.14, struct{}{}, []int{1}} {
		_, _, err := Resolve(v)
		if !errors.Is(err, ErrBadDescriptor) {
			t.Errorf("Resolve(%T): expected ErrBadDescriptor, got %v", v, err)
		}
	}
}
