// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package common holds the init-system independent description of a
// service.
package common

import (
	"github.com/juju/errors"
)

// Conf is responsible for defining services. Its fields
// represent elements of a service configuration.
type Conf struct {
	// Desc is the service's description.
	Desc string
	// Cmd is the command (with arguments) that will be run. It may
	// refer to variables from EnvironmentFile, e.g. $ARGS.
	Cmd string
	// User and Group the command runs as. Empty means root.
	User  string
	Group string
	// EnvironmentFile is a file of KEY=value lines loaded before the
	// command runs.
	EnvironmentFile string
	// Env holds the environment variables that will be set when the
	// command runs.
	Env map[string]string
	// Limit holds the ulimit values that will be set when the command
	// runs, keyed by systemd limit name (e.g. "nofile").
	Limit map[string]string
	// After lists the units the service is ordered after.
	After []string
	// Restart is the restart policy. Defaults to "on-failure".
	Restart string
	// WantedBy is the target that pulls the service in when enabled.
	// Defaults to "multi-user.target".
	WantedBy string
}

// IsZero determines whether or not the conf is a zero value.
func (c Conf) IsZero() bool {
	return c.Desc == "" && c.Cmd == ""
}

// Validate checks the conf's values for correctness.
func (c Conf) Validate() error {
	if c.Desc == "" {
		return errors.New("missing Desc")
	}
	if c.Cmd == "" {
		return errors.New("missing Cmd")
	}
	if c.Group != "" && c.User == "" {
		return errors.New("Group set without User")
	}
	return nil
}
