package tools

import (
	"errors"
	"os/exec"
)

// ExitCode maps a Run/Wait error onto a shell-style exit code: 0 for nil, the
// process code for *exec.ExitError, 127 when the binary could not be started
// and 1 otherwise.
func ExitCode(err error) int32 {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return int32(exitErr.ExitCode())
	}
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return 127
	}
	return 1
}
