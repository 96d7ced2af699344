package main

import (
	"errors"
	"fmt"
	"os"
)

var version = "dev"

// Exit codes.
const (
	exitFailure      = 1 // the sync ran and did not fully succeed, or validation failed
	exitCommandError = 2 // bad flags or configuration
)

// exitError carries the process exit code for an error.
type exitError struct {
	Code int
	Err  error
}

func (e *exitError) Error() string { return e.Err.Error() }

func (e *exitError) Unwrap() error { return e.Err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return exitFailure
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
