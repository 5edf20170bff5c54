// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"regexp"

	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

var versionRegexp = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Version returns the version of the installed exporter binary.
func (e *Exporter) Version() (version.Number, error) {
	path := e.config.Layout.BinaryPath()
	resp, err := e.config.Runner.Run(path, "--version")
	if err != nil {
		return version.Zero, errors.Trace(err)
	}
	if resp.Code != 0 {
		return version.Zero, errors.Errorf("%s --version exited with code %d", path, resp.Code)
	}
	// Older releases print the version on stderr.
	return parseVersion(string(resp.Stdout) + string(resp.Stderr))
}

func parseVersion(output string) (version.Number, error) {
	match := versionRegexp.FindString(output)
	if match == "" {
		return version.Zero, errors.NotFoundf("version in %q", output)
	}
	v, err := version.Parse(match)
	return v, errors.Trace(err)
}
