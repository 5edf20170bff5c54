// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package charm

import (
	"net"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/version/v2"
)

const (
	ListenAddressKey   = "listen-address"
	ExporterVersionKey = "ipmi-exporter-version"
)

// ExporterSettings is the typed form of the charm configuration.
type ExporterSettings struct {
	// ListenAddress is the host:port the exporter serves metrics on.
	ListenAddress string
	// ExporterVersion is the upstream ipmi_exporter release to install.
	ExporterVersion version.Number

	port int
}

// NewExporterSettings validates settings and returns their typed form.
func NewExporterSettings(settings Settings) (ExporterSettings, error) {
	address := settings.String(ListenAddressKey)
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return ExporterSettings{}, errors.NewNotValid(err, ListenAddressKey)
	}
	if host != "" && net.ParseIP(host) == nil {
		return ExporterSettings{}, errors.NotValidf("%s host %q", ListenAddressKey, host)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return ExporterSettings{}, errors.NotValidf("%s port %q", ListenAddressKey, portStr)
	}
	v, err := version.Parse(settings.String(ExporterVersionKey))
	if err != nil {
		return ExporterSettings{}, errors.NewNotValid(err, ExporterVersionKey)
	}
	return ExporterSettings{
		ListenAddress:   address,
		ExporterVersion: v,
		port:            port,
	}, nil
}

// Port returns the port the exporter listens on.
func (s ExporterSettings) Port() int {
	return s.port
}
