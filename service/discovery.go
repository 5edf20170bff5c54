// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package service

import (
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/service/common"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/service/systemd"
)

var logger = loggo.GetLogger("ipmiexporter.service")

type discoveryCheck struct {
	name      string
	isRunning func() bool
}

var discoveryFuncs = []discoveryCheck{
	{InitSystemSystemd, systemd.IsRunning},
}

// DiscoverInitSystem returns the name of the init system running on the
// local host, or a NotFound error.
func DiscoverInitSystem() (string, error) {
	for _, check := range discoveryFuncs {
		if check.isRunning() {
			logger.Debugf("discovered init system %q from local host", check.name)
			return check.name, nil
		}
	}
	return "", errors.NotFoundf("init system (based on local host)")
}

// DiscoverService returns an interface to a service appropriate for the
// current system. Unit files are written to dataDir.
func DiscoverService(name string, conf common.Conf, dataDir string) (Service, error) {
	initName, err := DiscoverInitSystem()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newService(name, conf, initName, dataDir)
}

func newService(name string, conf common.Conf, initSystem, dataDir string) (Service, error) {
	switch initSystem {
	case InitSystemSystemd:
		svc, err := systemd.NewService(name, conf, dataDir, systemd.NewDBusAPI)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return svc, nil
	}
	return nil, errors.NotFoundf("init system %q", initSystem)
}
