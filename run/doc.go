// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package run launches commands as transient, supervised service
// units through the service manager's bus API, the way systemd-run
// does, but as a library call.
//
// [Run] composes the unit's property set from [Options], optionally
// allocates and bridges a pseudo-terminal (switching the caller's
// stdin to raw mode for the duration), submits the transient unit,
// and, when waiting, drives a single-threaded event loop that forwards
// terminal I/O while watching the unit's property-change broadcasts
// for a terminal substate. A polling fallback on the unit's main
// process id covers bus configurations where per-unit signal delivery
// is unreliable.
//
// The returned [systemd.Unit] handle stays usable after Run returns:
// it carries its manager connection and a reusable connection factory
// for later lifecycle operations (stop, kill, reset-failed).
//
// Completion is the only way out of a wait; the loop deliberately
// exposes no cancellation token. Callers that need a hard stop
// terminate at the process level.
package run
