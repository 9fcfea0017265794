package converter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors carried by Error and Finished events.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrInputMissing indicates the submitted input file does not exist.
	ErrInputMissing = errors.New("file does not exist")

	// ErrUnsupportedRoute indicates the input format, or the pairing of input
	// and target format, cannot be converted.
	ErrUnsupportedRoute = errors.New("unsupported file format")

	// ErrAlreadyInProgress indicates the input is already queued, converting or
	// awaiting its output.
	ErrAlreadyInProgress = errors.New("file is already being converted")

	// ErrToolNotFound indicates the external tool a route needs is not installed.
	// It is reported before any process is launched.
	ErrToolNotFound = errors.New("conversion tool not found")

	// ErrProcessLaunchFailed indicates the tool executable could not be started.
	ErrProcessLaunchFailed = errors.New("failed to start conversion tool")

	// ErrProcessCrashed indicates the tool was terminated by a signal we did not send.
	ErrProcessCrashed = errors.New("conversion tool crashed")

	// ErrProcessExitedNonZero indicates the tool exited with a failure code.
	// The concrete error is an *ExitError carrying the captured output.
	ErrProcessExitedNonZero = errors.New("conversion failed")

	// ErrOutputNotProduced indicates the tool exited cleanly but no output file
	// appeared within the resolver's retries, nor under a similar name.
	ErrOutputNotProduced = errors.New("output file was not created")
)

// ExitError describes a tool that exited with a non-zero code.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		out = fmt.Sprintf("process exited with code %d", e.Code)
	}
	return ErrProcessExitedNonZero.Error() + ": " + out
}

// Unwrap lets errors.Is match ErrProcessExitedNonZero.
func (e *ExitError) Unwrap() error {
	return ErrProcessExitedNonZero
}
