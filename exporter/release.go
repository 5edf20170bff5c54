// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"fmt"
	"runtime"

	"github.com/juju/version/v2"
)

const releaseURLFormat = "https://github.com/prometheus-community/ipmi_exporter/releases/download/v%[1]s/ipmi_exporter-%[1]s.linux-%[2]s.tar.gz"

// ReleaseURL returns the download location of the release tarball.
func ReleaseURL(v version.Number, arch string) string {
	return fmt.Sprintf(releaseURLFormat, v.String(), arch)
}

// releaseDir is the top-level directory inside the release tarball.
func releaseDir(v version.Number, arch string) string {
	return fmt.Sprintf("ipmi_exporter-%s.linux-%s", v.String(), arch)
}

// HostArch returns the release architecture matching the running binary.
func HostArch() string {
	return releaseArch(runtime.GOARCH)
}

func releaseArch(goarch string) string {
	switch goarch {
	case "arm":
		return "armv7"
	default:
		return goarch
	}
}
