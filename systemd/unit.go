// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"

	sdbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/godbus/dbus/v5"
)

// Unit is a live handle on a (transient) service unit. It carries the
// manager connection it was created over and the factory that dialed
// it, so callers can keep operating on the unit after the run call
// returns.
type Unit struct {
	name    string
	client  *Client
	factory *Factory

	// state is the Unit-interface property snapshot from the last
	// Load. Nil until Load has been called.
	state map[string]interface{}
}

// NewUnit returns a handle for the named unit. The unit does not have
// to exist yet; the object path is derived from the name alone.
func NewUnit(name string, client *Client, factory *Factory) *Unit {
	return &Unit{name: name, client: client, factory: factory}
}

// Name returns the unit name, including the ".service" suffix.
func (u *Unit) Name() string {
	return u.name
}

// Path returns the unit's object path on the bus.
func (u *Unit) Path() dbus.ObjectPath {
	return dbus.ObjectPath("/org/freedesktop/systemd1/unit/" + sdbus.PathBusEscape(u.name))
}

// Factory returns the connection factory the unit was created with,
// for callers that need fresh connections for later operations.
func (u *Unit) Factory() *Factory {
	return u.factory
}

// MainPID reads the unit's current main process id. Zero means no
// main process is running.
func (u *Unit) MainPID(ctx context.Context) (uint32, error) {
	prop, err := u.client.ServiceProperty(ctx, u.name, "MainPID")
	if err != nil {
		return 0, err
	}
	pid, ok := prop.Value.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("unit %s: MainPID has type %T, expected uint32", u.name, prop.Value.Value())
	}
	return pid, nil
}

// ExecMainStatus reads the recorded exit status of the unit's main
// process.
func (u *Unit) ExecMainStatus(ctx context.Context) (int32, error) {
	prop, err := u.client.ServiceProperty(ctx, u.name, "ExecMainStatus")
	if err != nil {
		return 0, err
	}
	status, ok := prop.Value.Value().(int32)
	if !ok {
		return 0, fmt.Errorf("unit %s: ExecMainStatus has type %T, expected int32", u.name, prop.Value.Value())
	}
	return status, nil
}

// Load refreshes the handle's Unit-interface property snapshot.
func (u *Unit) Load(ctx context.Context) error {
	state, err := u.client.UnitProperties(ctx, u.name)
	if err != nil {
		return err
	}
	u.state = state
	return nil
}

// ActiveState returns the coarse lifecycle state from the last Load,
// or "" before the first Load.
func (u *Unit) ActiveState() string {
	s, _ := u.state["ActiveState"].(string)
	return s
}

// SubState returns the fine-grained lifecycle state from the last
// Load, or "" before the first Load.
func (u *Unit) SubState() string {
	s, _ := u.state["SubState"].(string)
	return s
}

// Stop enqueues a stop job for the unit. Mode is a systemd job mode,
// normally "replace".
func (u *Unit) Stop(ctx context.Context, mode string) error {
	return u.client.StopUnit(ctx, u.name, mode)
}

// Kill sends a signal to the unit's processes.
func (u *Unit) Kill(ctx context.Context, signal int32) error {
	return u.client.KillUnit(ctx, u.name, signal)
}

// ResetFailed clears the unit's failed state so the name can be
// reused.
func (u *Unit) ResetFailed(ctx context.Context) error {
	return u.client.ResetFailedUnit(ctx, u.name)
}
