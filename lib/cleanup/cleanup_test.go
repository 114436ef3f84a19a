// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cleanup

import (
	"errors"
	"testing"
)

func TestRunReverseOrder(t *testing.T) {
	var guard Guard
	var order []int

	for i := 1; i <= 4; i++ {
		i := i
		guard.Register(func() { order = append(order, i) })
	}
	guard.Run()

	want := []int{4, 3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("expected %d actions, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], order[i])
		}
	}
}

func TestRunOnce(t *testing.T) {
	var guard Guard
	count := 0
	guard.Register(func() { count++ })

	guard.Run()
	guard.Run()

	if count != 1 {
		t.Errorf("expected action to run once, ran %d times", count)
	}
}

func TestRunsOnErrorExit(t *testing.T) {
	// The guard must fire for error returns exactly as for normal
	// returns: registration up to the failure point, reverse order.
	var order []string

	failing := func() error {
		var guard Guard
		defer guard.Run()

		guard.Register(func() { order = append(order, "first") })
		guard.Register(func() { order = append(order, "second") })
		return errors.New("setup failed after two registrations")
	}

	if err := failing(); err == nil {
		t.Fatal("expected error from failing()")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("expected [second first], got %v", order)
	}
}

func TestEmptyGuard(t *testing.T) {
	var guard Guard
	guard.Run() // must not panic

	if guard.Len() != 0 {
		t.Errorf("expected empty guard, got %d actions", guard.Len())
	}
}

func TestRegisterAfterRun(t *testing.T) {
	var guard Guard
	ran := false

	guard.Run()
	guard.Register(func() { ran = true })
	guard.Run()

	if !ran {
		t.Error("action registered after a Run should execute on the next Run")
	}
}
