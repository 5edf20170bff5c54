// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"github.com/juju/errors"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
)

// Exit codes from the shadow utilities.
const (
	groupaddNameInUse = 9
	useraddNameInUse  = 9
	userdelNoUser     = 6
	groupdelNoGroup   = 6
)

func (e *Exporter) ensureUserGroup() error {
	logger.Debugf("creating %s group", Group)
	_, err := runner.Output(e.config.Runner, "groupadd", "--system", Group)
	if err != nil && runner.ExitCode(err) != groupaddNameInUse {
		return errors.Annotatef(err, "creating group %s", Group)
	}

	logger.Debugf("creating %s user", User)
	_, err = runner.Output(e.config.Runner, "useradd",
		"--system", "--no-create-home",
		"--gid", Group,
		"--shell", "/usr/sbin/nologin",
		User,
	)
	if err != nil && runner.ExitCode(err) != useraddNameInUse {
		return errors.Annotatef(err, "creating user %s", User)
	}
	return nil
}

func (e *Exporter) removeUserGroup() error {
	_, err := runner.Output(e.config.Runner, "userdel", User)
	if err != nil && runner.ExitCode(err) != userdelNoUser {
		return errors.Annotatef(err, "removing user %s", User)
	}
	_, err = runner.Output(e.config.Runner, "groupdel", Group)
	if err != nil && runner.ExitCode(err) != groupdelNoGroup {
		return errors.Annotatef(err, "removing group %s", Group)
	}
	return nil
}

// chown recursively hands paths over to the exporter user.
func (e *Exporter) chown(paths ...string) error {
	args := append([]string{"-R", User + ":" + Group}, paths...)
	_, err := runner.Output(e.config.Runner, "chown", args...)
	return errors.Annotate(err, "changing ownership")
}
