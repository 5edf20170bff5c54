// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package runner executes host commands and reports their exit status.
package runner

import (
	"fmt"
	"os"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4/exec"
	"github.com/kballard/go-shellquote"
)

// Runner runs a command and returns its result. A non-zero exit code is
// reported in the response, not as an error.
type Runner interface {
	Run(name string, args ...string) (*exec.ExecResponse, error)
}

// ShellRunner runs commands through the shell using juju/utils/exec.
type ShellRunner struct {
	// Dir is the working directory of the commands.
	Dir string
	// Env holds extra environment variables, as KEY=value.
	Env []string
}

// Run implements Runner.
func (r ShellRunner) Run(name string, args ...string) (*exec.ExecResponse, error) {
	command := shellquote.Join(append([]string{name}, args...)...)
	resp, err := exec.RunCommands(exec.RunParams{
		Commands:    command,
		WorkingDir:  r.Dir,
		Environment: append(os.Environ(), r.Env...),
	})
	if err != nil {
		return nil, errors.Annotatef(err, "running %s", name)
	}
	return resp, nil
}

// ExitError is returned by Output when a command exits non-zero.
type ExitError struct {
	Command string
	Code    int
	Stdout  string
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, msg)
}

// ExitCode returns the exit code of the command that caused err, or -1
// if err was not caused by a command exiting non-zero.
func ExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

// IsExitError reports whether err was caused by a command exiting
// non-zero.
func IsExitError(err error) bool {
	return ExitCode(err) >= 0
}

// Output runs the command and returns its standard output. A non-zero
// exit code is returned as an *ExitError.
func Output(r Runner, name string, args ...string) ([]byte, error) {
	resp, err := r.Run(name, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if resp.Code != 0 {
		return nil, &ExitError{
			Command: name,
			Code:    resp.Code,
			Stdout:  string(resp.Stdout),
			Stderr:  string(resp.Stderr),
		}
	}
	return resp.Stdout, nil
}
