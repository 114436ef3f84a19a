// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Options configures one Run invocation. Only Cmd is required; every
// other field has a documented default.
type Options struct {
	// Cmd is the command to execute, absolute path first. Required.
	Cmd []string

	// StopCmd, StopPostCmd, StartPreCmd, StartPostCmd are additional
	// command lists for the matching ExecStop/ExecStopPost/
	// ExecStartPre/ExecStartPost unit settings.
	StopCmd      []string
	StopPostCmd  []string
	StartPreCmd  []string
	StartPostCmd []string

	// Address is an explicit D-Bus socket address. Takes precedence
	// over Machine and UserMode.
	Address string

	// Machine names a container or VM registered with machined. The
	// unit is created by the machine's service manager.
	Machine string

	// UserMode targets the per-user session manager. Defaults to
	// true when the current user is not root.
	UserMode *bool

	// ServiceType sets the unit Type (e.g. "oneshot", "notify").
	// Empty leaves the manager's default.
	ServiceType string

	// Name is the unit name. When empty a unique name of the form
	// "transient<random>.service" is generated.
	Name string

	// User runs the command as this user. Empty means the manager's
	// default.
	User string

	// Nice sets the scheduling priority. Nil leaves it unset; zero is
	// a valid explicit value.
	Nice *int

	// RuntimeMaxSec limits the unit's runtime in seconds; the manager
	// sends SIGTERM (then SIGKILL) when it elapses. Takes precedence
	// over RuntimeMaxUSec when nonzero.
	RuntimeMaxSec uint64

	// RuntimeMaxUSec is the same limit expressed directly in
	// microseconds, used only when RuntimeMaxSec is zero.
	RuntimeMaxUSec uint64

	// WorkingDirectory for the command. Empty means unset.
	WorkingDirectory string

	// Slice places the unit in a resource-control slice.
	Slice string

	// Env is exported into the unit's environment.
	Env map[string]string

	// Extra carries additional unit properties merged into the built
	// property set. Keys are exact systemd property names; values for
	// ExecStart-class keys must be []ExecCommand and are appended to
	// the corresponding command list rather than replacing it. A nil
	// value removes the built-in entry. Extra wins on any other
	// collision.
	Extra map[string]any

	// Wait blocks until the unit reaches a terminal substate.
	Wait bool

	// WaitPollInterval bounds the multiplex wait and enables the
	// MainPID polling fallback for bus setups where signal delivery
	// is unreliable. Zero means no polling, except under user mode
	// where it defaults to 500ms.
	WaitPollInterval time.Duration

	// RemainAfterExit keeps the unit loaded after the command
	// finishes, so the returned handle stays inspectable.
	RemainAfterExit bool

	// Collect unloads the unit when it is done even if it failed
	// (CollectMode=inactive-or-failed).
	Collect bool

	// RaiseOnFail makes Run return an *ExitError when the command's
	// recorded exit status is nonzero. Meaningful together with Wait.
	RaiseOnFail bool

	// Pty allocates a pseudo-terminal for the unit (inside Machine
	// when one is set) and routes the standard streams to it. When
	// set, PtyMaster and PtyPath are ignored.
	Pty bool

	// PtyMaster is an already-open master descriptor for PtyPath:
	// an int, or a value with an Fd() method. Used for stdin/stdout
	// forwarding; ownership stays with the caller.
	PtyMaster any

	// PtyPath routes the unit's standard streams to this terminal
	// path without allocating one.
	PtyPath string

	// Stdin, Stdout, Stderr attach the unit's standard streams:
	// nil (stream left unset), an integer descriptor, or a value with
	// an Fd() method such as *os.File.
	Stdin  any
	Stdout any
	Stderr any

	// Logger receives debug records about unit submission and
	// completion. Defaults to slog.Default().
	Logger *slog.Logger
}

// userMode resolves the UserMode default: explicit value if set,
// otherwise true iff the current user is not root.
func (o *Options) userMode() bool {
	if o.UserMode != nil {
		return *o.UserMode
	}
	return os.Getuid() != 0
}

// unitName resolves the unit name, generating a unique one when the
// caller did not choose.
func (o *Options) unitName() string {
	if o.Name != "" {
		return o.Name
	}
	id := uuid.New()
	return fmt.Sprintf("transient%x.service", id[:])
}

// pollInterval resolves the wait-polling default: user-mode waits get
// 500ms because per-unit signal subscription is unreliable on some
// session bus configurations.
func (o *Options) pollInterval(userMode bool) time.Duration {
	if o.WaitPollInterval > 0 {
		return o.WaitPollInterval
	}
	if userMode {
		return 500 * time.Millisecond
	}
	return 0
}

// logger returns the configured logger or the process default.
func (o *Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
