// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package systemd

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// OpenMachinePTY allocates a pseudo-terminal inside a machine via the
// host's systemd-machined and returns the master descriptor together
// with the follower path as seen from inside the machine. The
// descriptor arrives over the bus and belongs to the caller.
func OpenMachinePTY(ctx context.Context, machine string) (int, string, error) {
	conn, err := dbus.SystemBusPrivate()
	if err != nil {
		return 0, "", fmt.Errorf("dial system bus: %w", err)
	}
	defer conn.Close()
	if err := conn.Auth(nil); err != nil {
		return 0, "", fmt.Errorf("bus auth: %w", err)
	}
	if err := conn.Hello(); err != nil {
		return 0, "", fmt.Errorf("bus hello: %w", err)
	}

	machined := conn.Object("org.freedesktop.machine1", "/org/freedesktop/machine1")
	var master dbus.UnixFD
	var path string
	call := machined.CallWithContext(ctx,
		"org.freedesktop.machine1.Manager.OpenMachinePTY", 0, machine)
	if call.Err != nil {
		return 0, "", fmt.Errorf("open pty in machine %q: %w", machine, call.Err)
	}
	if err := call.Store(&master, &path); err != nil {
		return 0, "", fmt.Errorf("decode machine pty reply: %w", err)
	}
	return int(master), path, nil
}
