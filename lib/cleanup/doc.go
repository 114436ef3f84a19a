// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cleanup provides a scoped stack of deferred release actions.
//
// A [Guard] collects cleanup closures as resources are acquired and
// runs them in reverse order from a single defer, giving multi-step
// setup code one unconditional teardown path instead of a ladder of
// conditional defers:
//
//	var guard cleanup.Guard
//	defer guard.Run()
//
//	master, follower, err := pty.Open()
//	if err != nil {
//	    return err
//	}
//	guard.Register(func() { master.Close() })
//
// Actions run exactly once; a guard that was already run (for example
// explicitly on a success path) is inert afterwards.
//
// This package has no dependencies outside the standard library.
package cleanup
