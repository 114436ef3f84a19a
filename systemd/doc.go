// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package systemd wraps the D-Bus surface of the service manager that
// the run orchestrator depends on: dialing the right bus, submitting
// transient units, reading service properties, and watching a unit's
// PropertiesChanged broadcasts through a dedicated monitor connection.
//
// A [Factory] captures the connection target (explicit address,
// machine, or the local system/session manager) and dials fresh
// private connections on demand. Connections are not safe for
// concurrent use; each run invocation gets its own [Client] and, when
// waiting, its own [Monitor]. The factory itself is reusable and
// travels with the returned [Unit] handle so callers can perform later
// lifecycle operations.
//
// The actual wire protocol is github.com/godbus/dbus/v5; manager
// method bindings and property encoding come from
// github.com/coreos/go-systemd/v22/dbus. This package does not
// reimplement either, it only arranges them behind the narrow contract
// the orchestrator needs.
package systemd
