// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"fmt"
	"os"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/transient/lib/cleanup"
	"github.com/bureau-foundation/transient/systemd"
)

// ptyBridge is the resolved terminal side of a run: follower path for
// the unit's TTYPath, master descriptor for forwarding, and which
// directions the event loop must service.
type ptyBridge struct {
	// path is the follower terminal path, "" when no terminal is
	// involved.
	path string

	// master is the master descriptor, -1 when absent.
	master int

	// forwardStdin mirrors "stdin joins the poll set": the caller's
	// stdin was switched to raw mode and is copied to the master.
	forwardStdin bool

	// forwardOutput mirrors "master joins the poll set": master
	// output is copied to the caller's stdout.
	forwardOutput bool

	// masterFile and followerFile pin a locally allocated pair so the
	// descriptors stay open until the guard closes them.
	masterFile, followerFile *os.File
}

// openMachinePTY allocates a pty inside a machine. Swapped in tests.
var openMachinePTY = systemd.OpenMachinePTY

// setupPTY acquires or adopts a terminal pair per the options and
// performs the mode and geometry side effects, registering every undo
// with the guard. env is the unit environment under construction and
// may gain a TERM entry.
func setupPTY(ctx context.Context, opts *Options, io streams, env map[string]string, guard *cleanup.Guard) (*ptyBridge, error) {
	b := &ptyBridge{master: -1}

	switch {
	case opts.Pty && opts.Machine != "":
		master, path, err := openMachinePTY(ctx, opts.Machine)
		if err != nil {
			return nil, err
		}
		// The master was duped into this process over the bus, so it
		// is ours to close.
		guard.Register(func() { unix.Close(master) })
		b.master, b.path = master, path
	case opts.Pty:
		master, follower, err := pty.Open()
		if err != nil {
			return nil, fmt.Errorf("allocate pty: %w", err)
		}
		// Follower registered first so it closes after the master.
		guard.Register(func() { follower.Close() })
		guard.Register(func() { master.Close() })
		b.master = int(master.Fd())
		b.path = follower.Name()
		// Keep the files reachable for the lifetime of the bridge so
		// no finalizer closes the descriptors under the event loop.
		b.masterFile, b.followerFile = master, follower
	case opts.PtyPath != "":
		b.path = opts.PtyPath
		master, ok, err := fdioResolve("pty master", opts.PtyMaster)
		if err != nil {
			return nil, err
		}
		if ok {
			// Supplied externally: ownership stays with the caller.
			b.master = master
		}
	default:
		return b, nil
	}

	if io.hasStdin && b.master >= 0 {
		// Raw mode so input forwards byte-by-byte without echo. The
		// original attributes are restored, flushing pending I/O,
		// whenever the guard runs.
		saved, err := unix.IoctlGetTermios(io.stdin, unix.TCGETS)
		if err != nil {
			return nil, fmt.Errorf("read stdin terminal attributes: %w", err)
		}
		raw := *saved
		makeRaw(&raw)
		if err := unix.IoctlSetTermios(io.stdin, unix.TCSETS, &raw); err != nil {
			return nil, fmt.Errorf("set stdin raw mode: %w", err)
		}
		guard.Register(func() {
			unix.IoctlSetTermios(io.stdin, unix.TCSETSF, saved)
		})
		b.forwardStdin = true
	}

	if io.hasStdout && b.master >= 0 {
		// Forward the calling terminal's TERM unless the caller chose
		// their own.
		if termEnv := os.Getenv("TERM"); termEnv != "" {
			if _, ok := env["TERM"]; !ok {
				env["TERM"] = termEnv
			}
		}
		b.forwardOutput = true

		// Copy the caller's window geometry onto the master so the
		// program in the unit sees the real size.
		winsize, err := unix.IoctlGetWinsize(io.stdout, unix.TIOCGWINSZ)
		if err != nil {
			return nil, fmt.Errorf("read stdout window size: %w", err)
		}
		if err := unix.IoctlSetWinsize(b.master, unix.TIOCSWINSZ, winsize); err != nil {
			return nil, fmt.Errorf("set pty window size: %w", err)
		}
	}

	return b, nil
}

// makeRaw clears the canonical, echo, and signal processing flags,
// matching cfmakeraw(3).
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}
