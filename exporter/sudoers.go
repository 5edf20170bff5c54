// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
)

// sudoersContent lets the exporter user run the freeipmi tools as root
// without a password.
func sudoersContent() []byte {
	return []byte(User + " ALL = NOPASSWD: " + strings.Join(freeipmiTools, ", ") + "\n")
}

func (e *Exporter) writeSudoers() error {
	logger.Debugf("creating sudoers file for %s", User)
	path := e.config.Layout.SudoersPath()
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Trace(err)
	}

	// A broken sudoers drop-in locks everyone out of sudo, so validate
	// a candidate before putting it in place.
	candidate := path + ".new"
	if err := os.WriteFile(candidate, sudoersContent(), 0440); err != nil {
		return errors.Trace(err)
	}
	defer os.Remove(candidate)
	if _, err := runner.Output(e.config.Runner, "visudo", "-cf", candidate); err != nil {
		return errors.Annotate(err, "validating sudoers file")
	}
	return errors.Trace(utils.AtomicWriteFile(path, sudoersContent(), 0440))
}
