// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"github.com/dwellir/prometheus-ipmi-exporter-operator/service/common"
)

// ServiceConf returns the systemd service definition for the exporter.
func (l Layout) ServiceConf() common.Conf {
	return common.Conf{
		Desc:            "Prometheus IPMI Exporter",
		Cmd:             l.BinaryPath() + " $ARGS",
		User:            User,
		Group:           Group,
		EnvironmentFile: l.SysconfigPath(),
		After:           []string{"network-online.target"},
	}
}
