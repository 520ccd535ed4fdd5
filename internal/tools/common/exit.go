package common

import (
	"errors"
	"fmt"
	"io"
)

// Exit codes shared by the tools.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitBackend   = 3
	ExitSignedOut = 4
)

// ExitError carries the process exit code for a failed command. The
// failure has already been reported when it is returned.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps a command error onto a process exit code. Errors that were
// not reported by the command itself, such as flag parsing, are usage errors.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return ExitUsage
}

// Finish reports a command outcome as JSON (ci) or as plain lines, and turns
// a failure into an *ExitError with code.
func Finish(out, errOut io.Writer, ci bool, title string, details []string, err error, code int) error {
	if ci {
		WriteCIResult(out, err == nil, title, details, err)
	} else {
		for _, d := range details {
			fmt.Fprintln(out, d)
		}
		if err != nil {
			fmt.Fprintln(errOut, "error: "+FormatError(err))
		}
	}
	if err != nil {
		return &ExitError{Code: code, Err: err}
	}
	return nil
}
