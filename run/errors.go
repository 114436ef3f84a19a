// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"fmt"
	"strings"
)

// ExitError reports that the launched command finished with a nonzero
// exit status. Returned only when Options.RaiseOnFail is set.
type ExitError struct {
	// Cmd is the command the unit executed.
	Cmd []string

	// Status is the recorded main-process exit status.
	Status int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with status %d", strings.Join(e.Cmd, " "), e.Status)
}

// ExitCode returns the command's exit status, letting CLI wrappers
// propagate it as the process exit code.
func (e *ExitError) ExitCode() int {
	return e.Status
}
