// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/transient/systemd"
)

// readChunk is the per-read forwarding buffer size. Writes are
// verbatim single writes; partial writes to the counterpart are not
// retried.
const readChunk = 1024

// exitSubStates are the terminal substates that complete a wait.
var exitSubStates = map[string]bool{
	"exited": true,
	"failed": true,
	"dead":   true,
}

// stateSource is the monitor connection as the loop sees it: a
// pollable descriptor plus a one-message pull. *systemd.Monitor
// implements it.
type stateSource interface {
	Descriptor() int
	Process() (*systemd.UnitStateChange, error)
}

// mainPIDReader is the slice of the unit handle the polling fallback
// needs.
type mainPIDReader interface {
	MainPID(ctx context.Context) (uint32, error)
}

// eventLoop multiplexes stdin forwarding, pty output forwarding, and
// completion detection over one bounded poll per iteration. It is
// single-threaded; the only suspension point is the poll itself.
type eventLoop struct {
	// stdin/stdout are the caller's descriptors; master is the pty
	// master. stdinActive and masterActive form the active
	// descriptor set together with the monitor.
	stdin, stdout, master     int
	stdinActive, masterActive bool

	monitor stateSource
	unit    mainPIDReader

	// unitPath and startJob drive the completion predicate.
	unitPath dbus.ObjectPath
	startJob dbus.ObjectPath

	// pollInterval bounds each wait and arms the MainPID fallback.
	// Zero blocks indefinitely on the poll.
	pollInterval time.Duration

	logger *slog.Logger
}

// run drives iterations until the unit completes. With no poll
// interval and no delivered signal it blocks indefinitely, matching
// the documented contract.
func (l *eventLoop) run(ctx context.Context) error {
	for {
		done, err := l.iterate(ctx)
		if err != nil {
			return err
		}
		if done {
			l.logger.Debug("unit completed", "unit_path", string(l.unitPath))
			return nil
		}
	}
}

// iterate performs one bounded multiplex wait and services every
// descriptor that was ready in that wait's snapshot. Descriptor
// removal takes effect on the next iteration.
func (l *eventLoop) iterate(ctx context.Context) (bool, error) {
	var fds []unix.PollFd
	stdinIdx, masterIdx, monitorIdx := -1, -1, -1
	if l.stdinActive {
		stdinIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(l.stdin), Events: unix.POLLIN})
	}
	if l.masterActive {
		masterIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(l.master), Events: unix.POLLIN})
	}
	if l.monitor != nil {
		monitorIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(l.monitor.Descriptor()), Events: unix.POLLIN})
	}

	timeout := -1
	if l.pollInterval > 0 {
		timeout = int(l.pollInterval.Milliseconds())
	}

	ready, err := unix.Poll(fds, timeout)
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, fmt.Errorf("poll: %w", err)
	}

	signaled := func(i int) bool {
		return i >= 0 && fds[i].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
	}

	if signaled(stdinIdx) {
		buf := make([]byte, readChunk)
		n, err := readRetry(l.stdin, buf)
		if err != nil {
			return false, fmt.Errorf("read stdin: %w", err)
		}
		if n > 0 {
			if _, err := unix.Write(l.master, buf[:n]); err != nil {
				return false, fmt.Errorf("write pty master: %w", err)
			}
		}
	}

	if signaled(masterIdx) {
		buf := make([]byte, readChunk)
		n, err := readRetry(l.master, buf)
		if err != nil {
			// The peer side closed; keep monitoring the remaining
			// sources.
			l.masterActive = false
			l.logger.Debug("pty master closed", "error", err)
		} else if n > 0 {
			if _, err := unix.Write(l.stdout, buf[:n]); err != nil {
				return false, fmt.Errorf("write stdout: %w", err)
			}
		}
	}

	if signaled(monitorIdx) {
		change, err := l.monitor.Process()
		if err != nil {
			return false, err
		}
		if change != nil && l.completed(change) {
			return true, nil
		}
	}

	// Fallback for bus setups where per-unit signal delivery is
	// unreliable (typically session-scoped managers): a timed-out
	// wait with a gone main process means the unit is done. This is
	// a heuristic, not a guarantee.
	if l.pollInterval > 0 && ready == 0 {
		pid, err := l.unit.MainPID(ctx)
		if err != nil {
			return false, err
		}
		if pid == 0 {
			return true, nil
		}
	}

	return false, nil
}

// completed reports whether a decoded broadcast ends the wait: right
// unit path, unit property-change interface, a job different from the
// start job, and a terminal substate.
func (l *eventLoop) completed(change *systemd.UnitStateChange) bool {
	return change.Path == l.unitPath &&
		change.Interface == systemd.UnitInterface &&
		change.JobPath != l.startJob &&
		exitSubStates[change.SubState]
}

// readRetry reads into buf, retrying on EINTR.
func readRetry(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
