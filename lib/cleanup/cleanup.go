// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cleanup

// Guard is a scoped stack of deferred cleanup actions. Actions run in
// reverse registration order when Run is called, typically from a
// single defer at the top of the owning function, so that every exit
// path (normal return, early return, propagated error) releases
// resources in the right order.
//
// Guard is not safe for concurrent use. It is meant to be owned by one
// call frame, the same way a chain of defers would be.
type Guard struct {
	actions []func()
}

// Register pushes an action onto the stack. The action runs during
// Run, after every action registered later than it.
func (g *Guard) Register(action func()) {
	g.actions = append(g.actions, action)
}

// Run executes all registered actions in reverse registration order.
// The stack is consumed: calling Run again is a no-op, so a guard can
// be run early on a success path and still be protected by a defer.
func (g *Guard) Run() {
	actions := g.actions
	g.actions = nil
	for i := len(actions) - 1; i >= 0; i-- {
		actions[i]()
	}
}

// Len reports the number of pending actions. Mostly useful in tests.
func (g *Guard) Len() int {
	return len(g.actions)
}
