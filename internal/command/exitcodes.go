// SPDX-License-Identifier: MIT

package command

const (
	exitCodeSuccess     = 0
	exitCodeError       = 1
	exitCodeUsage       = 2
	exitCodeRateLimited = 3
)

// exitError carries a process exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }
