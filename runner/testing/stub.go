// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package testing provides a runner.Runner test double.
package testing

import (
	"os"

	"github.com/juju/testing"
	"github.com/juju/utils/v4/exec"
)

// StubRunner records the commands it is asked to run.
type StubRunner struct {
	testing.Stub

	// Responses maps a command name to the responses returned for it,
	// in order. The last response is repeated once the list is
	// exhausted; commands without responses succeed with no output.
	Responses map[string][]*exec.ExecResponse

	// Files records the content of any --file argument at call time,
	// keyed by command name.
	Files map[string]string
}

// NewStubRunner returns an empty StubRunner.
func NewStubRunner() *StubRunner {
	return &StubRunner{
		Responses: make(map[string][]*exec.ExecResponse),
		Files:     make(map[string]string),
	}
}

// Respond queues responses for the named command.
func (r *StubRunner) Respond(name string, responses ...*exec.ExecResponse) {
	r.Responses[name] = append(r.Responses[name], responses...)
}

// Run implements runner.Runner.
func (r *StubRunner) Run(name string, args ...string) (*exec.ExecResponse, error) {
	callArgs := make([]interface{}, len(args))
	for i, arg := range args {
		callArgs[i] = arg
		if arg == "--file" && i+1 < len(args) {
			if data, err := os.ReadFile(args[i+1]); err == nil {
				r.Files[name] = string(data)
			}
		}
	}
	r.AddCall(name, callArgs...)
	if err := r.NextErr(); err != nil {
		return nil, err
	}
	responses := r.Responses[name]
	switch len(responses) {
	case 0:
		return &exec.ExecResponse{}, nil
	case 1:
		return responses[0], nil
	}
	r.Responses[name] = responses[1:]
	return responses[0], nil
}

// Stdout returns a successful response with the given output.
func Stdout(s string) *exec.ExecResponse {
	return &exec.ExecResponse{Stdout: []byte(s)}
}

// Exit returns a response with the given exit code and standard error.
func Exit(code int, stderr string) *exec.ExecResponse {
	return &exec.ExecResponse{Code: code, Stderr: []byte(stderr)}
}
