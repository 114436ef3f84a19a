// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"errors"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"

	"github.com/bureau-foundation/transient/lib/fdio"
	"github.com/bureau-foundation/transient/systemd"
)

// ExecCommand is one entry of an ExecStart-class unit setting, the
// systemd a(sasb) shape: executable path, full argv (argv[0]
// included), and whether a failure of this entry is ignored.
type ExecCommand struct {
	Path          string
	Args          []string
	IgnoreFailure bool
}

// Exec converts a plain argv into a single-entry command list. An
// empty argv yields nil.
func Exec(argv []string) []ExecCommand {
	if len(argv) == 0 {
		return nil
	}
	return []ExecCommand{{Path: argv[0], Args: argv}}
}

// streams holds the resolved standard stream descriptors. A stream
// the caller did not supply has ok=false.
type streams struct {
	stdin, stdout, stderr          int
	hasStdin, hasStdout, hasStderr bool
}

// fdioResolve resolves one stream argument, naming the stream in the
// error.
func fdioResolve(stream string, v any) (int, bool, error) {
	fd, ok, err := fdio.Resolve(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", stream, err)
	}
	return fd, ok, nil
}

// resolveStreams normalizes the three stream arguments.
func resolveStreams(opts *Options) (streams, error) {
	var s streams
	var err error
	if s.stdin, s.hasStdin, err = fdioResolve("stdin", opts.Stdin); err != nil {
		return s, err
	}
	if s.stdout, s.hasStdout, err = fdioResolve("stdout", opts.Stdout); err != nil {
		return s, err
	}
	s.stderr, s.hasStderr, err = fdioResolve("stderr", opts.Stderr)
	return s, err
}

// buildProperties assembles the transient unit's property map. Pure
// with respect to I/O: the pty path, streams, and environment are
// inputs, already adjusted by the pty bridge. Entries with a nil
// value are elided before submission.
func buildProperties(opts *Options, name, ptyPath string, io streams, env map[string]string) (map[string]any, error) {
	if len(opts.Cmd) == 0 {
		return nil, errors.New("ExecStart must not be empty")
	}

	// Copy the extra overrides so popping command-list keys does not
	// mutate the caller's map.
	extra := make(map[string]any, len(opts.Extra))
	for k, v := range opts.Extra {
		extra[k] = v
	}

	// Command lists are the caller's argv plus any same-purpose list
	// from the overrides; the override key is consumed so it cannot
	// apply twice in the merge below.
	startCmd, err := mergeExec(Exec(opts.Cmd), extra, "ExecStart")
	if err != nil {
		return nil, err
	}
	stopCmd, err := mergeExec(Exec(opts.StopCmd), extra, "ExecStop")
	if err != nil {
		return nil, err
	}
	stopPostCmd, err := mergeExec(Exec(opts.StopPostCmd), extra, "ExecStopPost")
	if err != nil {
		return nil, err
	}
	startPreCmd, err := mergeExec(Exec(opts.StartPreCmd), extra, "ExecStartPre")
	if err != nil {
		return nil, err
	}
	startPostCmd, err := mergeExec(Exec(opts.StartPostCmd), extra, "ExecStartPost")
	if err != nil {
		return nil, err
	}

	props := map[string]any{
		"Type":             stringOrNil(opts.ServiceType),
		"Description":      "transient: " + name,
		"ExecStartPre":     execOrNil(startPreCmd),
		"ExecStart":        startCmd,
		"ExecStartPost":    execOrNil(startPostCmd),
		"ExecStop":         execOrNil(stopCmd),
		"ExecStopPost":     execOrNil(stopPostCmd),
		"RemainAfterExit":  opts.RemainAfterExit,
		"CollectMode":      collectMode(opts.Collect),
		"WorkingDirectory": stringOrNil(opts.WorkingDirectory),
		"User":             stringOrNil(opts.User),
		"Nice":             niceOrNil(opts.Nice),
		"RuntimeMaxUSec":   runtimeMaxUSec(opts),
		"Environment":      environmentList(env),
		"Slice":            stringOrNil(opts.Slice),
	}

	if ptyPath != "" {
		props["StandardInput"] = "tty"
		props["StandardOutput"] = "tty"
		props["StandardError"] = "tty"
		props["TTYPath"] = ptyPath
	} else {
		if io.hasStdin {
			props["StandardInputFileDescriptor"] = dbus.UnixFD(io.stdin)
		}
		if io.hasStdout {
			props["StandardOutputFileDescriptor"] = dbus.UnixFD(io.stdout)
		}
		if io.hasStderr {
			props["StandardErrorFileDescriptor"] = dbus.UnixFD(io.stderr)
		}
	}

	// Remaining overrides win on collision; the Exec-class keys were
	// consumed above.
	for k, v := range extra {
		props[k] = v
	}

	for k, v := range props {
		if v == nil {
			delete(props, k)
		}
	}
	return props, nil
}

// mergeExec appends the override list for key to cmd and consumes the
// key from the override map.
func mergeExec(cmd []ExecCommand, extra map[string]any, key string) ([]ExecCommand, error) {
	v, ok := extra[key]
	if !ok {
		return cmd, nil
	}
	delete(extra, key)
	if v == nil {
		return cmd, nil
	}
	more, ok := v.([]ExecCommand)
	if !ok {
		return nil, fmt.Errorf("extra property %s: expected []run.ExecCommand, got %T", key, v)
	}
	return append(cmd, more...), nil
}

// runtimeMaxUSec implements the dual-unit contract: seconds win when
// nonzero, otherwise the raw microsecond value applies, otherwise the
// property is absent.
func runtimeMaxUSec(opts *Options) any {
	if opts.RuntimeMaxSec > 0 {
		return opts.RuntimeMaxSec * 1_000_000
	}
	if opts.RuntimeMaxUSec > 0 {
		return opts.RuntimeMaxUSec
	}
	return nil
}

// environmentList serializes the environment map to NAME=VALUE wire
// entries, sorted for deterministic submission. An empty map yields
// nil so the property is elided rather than sent as an empty list.
func environmentList(env map[string]string) any {
	if len(env) == 0 {
		return nil
	}
	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

func collectMode(collect bool) any {
	if collect {
		return "inactive-or-failed"
	}
	return nil
}

func stringOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func niceOrNil(nice *int) any {
	if nice == nil {
		return nil
	}
	return int32(*nice)
}

func execOrNil(cmd []ExecCommand) any {
	if len(cmd) == 0 {
		return nil
	}
	return cmd
}

// execWire is the bus shape of an ExecStart-class value.
type execWire struct {
	Path          string
	Args          []string
	IgnoreFailure bool
}

// wireProperties converts the built map into the property list
// submitted to StartTransientUnit, in sorted key order.
func wireProperties(props map[string]any) []systemd.Property {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]systemd.Property, 0, len(keys))
	for _, k := range keys {
		var value dbus.Variant
		switch v := props[k].(type) {
		case []ExecCommand:
			entries := make([]execWire, len(v))
			for i, c := range v {
				entries[i] = execWire(c)
			}
			value = dbus.MakeVariant(entries)
		default:
			value = dbus.MakeVariant(v)
		}
		out = append(out, systemd.Property{Name: k, Value: value})
	}
	return out
}
