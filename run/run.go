// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"

	"github.com/bureau-foundation/transient/lib/cleanup"
	"github.com/bureau-foundation/transient/systemd"
)

// Run launches opts.Cmd as a transient service unit under the
// configured service manager and returns a live handle on it.
//
// With Wait set, Run blocks until the unit reaches a terminal
// substate, forwarding terminal I/O in the meantime when a pty is
// involved. Without Wait it returns as soon as the start job is
// submitted.
//
// Every resource acquired along the way (pty pair, raw terminal mode,
// monitor connection, manager connection) is released on all exit
// paths. Terminal attributes captured before the raw-mode switch are
// restored verbatim.
func Run(ctx context.Context, opts Options) (*systemd.Unit, error) {
	if len(opts.Cmd) == 0 {
		return nil, errors.New("run: command must not be empty")
	}
	logger := opts.logger()

	var guard cleanup.Guard
	defer guard.Run()

	userMode := opts.userMode()
	factory := systemd.NewFactory(systemd.Config{
		Address:  opts.Address,
		Machine:  opts.Machine,
		UserMode: userMode,
	})
	client, err := factory.Client()
	if err != nil {
		return nil, err
	}
	guard.Register(client.Close)

	name := opts.unitName()

	io, err := resolveStreams(&opts)
	if err != nil {
		return nil, err
	}

	// The pty bridge may add TERM, so the unit environment is built
	// on a copy of the caller's map.
	env := make(map[string]string, len(opts.Env)+1)
	for k, v := range opts.Env {
		env[k] = v
	}

	bridge := &ptyBridge{master: -1}
	if opts.Pty || opts.PtyPath != "" {
		bridge, err = setupPTY(ctx, &opts, io, env, &guard)
		if err != nil {
			return nil, err
		}
	}

	props, err := buildProperties(&opts, name, bridge.path, io, env)
	if err != nil {
		return nil, err
	}

	unit := systemd.NewUnit(name, client, factory)

	var monitor *systemd.Monitor
	if opts.Wait {
		monitor, err = factory.Monitor(ctx, []string{systemd.MatchRule(unit.Path())})
		if err != nil {
			return nil, err
		}
		guard.Register(monitor.Close)
	}

	startJob, err := client.StartTransientUnit(ctx, name, "fail", wireProperties(props))
	if err != nil {
		return nil, err
	}
	logger.Debug("transient unit submitted",
		"unit", name, "job", string(startJob), "user_mode", userMode)

	if opts.Wait {
		loop := &eventLoop{
			stdin:        io.stdin,
			stdout:       io.stdout,
			master:       bridge.master,
			stdinActive:  bridge.forwardStdin,
			masterActive: bridge.forwardOutput,
			monitor:      monitor,
			unit:         unit,
			unitPath:     unit.Path(),
			startJob:     startJob,
			pollInterval: opts.pollInterval(userMode),
			logger:       logger,
		}
		if err := loop.run(ctx); err != nil {
			return nil, err
		}
	}

	if opts.RaiseOnFail {
		status, err := unit.ExecMainStatus(ctx)
		if err != nil {
			return nil, err
		}
		if status != 0 {
			return nil, &ExitError{Cmd: opts.Cmd, Status: int(status)}
		}
	}

	if err := unit.Load(ctx); err != nil {
		return nil, err
	}
	return unit, nil
}
