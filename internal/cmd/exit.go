package cmd

import (
	"errors"

	"github.com/polaco8525/postit/internal/googleauth"
)

// Stable exit codes for scripting.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitAuth  = 4
)

// ExitError carries a stable exit code alongside the cause.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exited"
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to its exit code.
func ExitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return exitError
}

// stableExitCode assigns codes by error class so scripts can branch on them.
func stableExitCode(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var authErr *googleauth.AuthenticationError
	if errors.As(err, &authErr) {
		return &ExitError{Code: exitAuth, Err: err}
	}

	return &ExitError{Code: exitError, Err: err}
}

// newUsageError builds a usage error (exit code 2).
func newUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: exitUsage, Err: err}
}
