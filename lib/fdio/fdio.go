// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fdio resolves loosely-typed stream arguments to file
// descriptors.
//
// Callers of the run API hand over stdin/stdout/stderr in whatever
// form they have: a raw descriptor number, an *os.File, a net.TCPConn,
// or nothing at all. [Resolve] normalizes all of these to an int
// descriptor and rejects everything else with [ErrBadDescriptor].
package fdio

import (
	"errors"
	"fmt"
)

// ErrBadDescriptor is returned (wrapped) when a stream argument is
// neither absent, an integer descriptor, nor a value exposing one.
var ErrBadDescriptor = errors.New("expected nil, an integer file descriptor, or a value with an Fd method")

// Filer is the descriptor-retrieval capability. *os.File and the
// net.*Conn types satisfy it.
type Filer interface {
	Fd() uintptr
}

// Resolve extracts a file descriptor from v.
//
// A nil v means the stream is absent: Resolve returns ok=false and no
// error. An int (or any sized int variant, or uintptr) is returned
// as-is. A value implementing [Filer] contributes its Fd(). Anything
// else fails with an error wrapping [ErrBadDescriptor].
func Resolve(v any) (fd int, ok bool, err error) {
	switch d := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return d, true, nil
	case int32:
		return int(d), true, nil
	case int64:
		return int(d), true, nil
	case uint:
		return int(d), true, nil
	case uint32:
		return int(d), true, nil
	case uintptr:
		return int(d), true, nil
	case Filer:
		return int(d.Fd()), true, nil
	default:
		return 0, false, fmt.Errorf("%w, got %T", ErrBadDescriptor, v)
	}
}
