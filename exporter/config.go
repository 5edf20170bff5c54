// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"gopkg.in/yaml.v3"
)

// Module is one ipmi_exporter scrape module.
type Module struct {
	Collectors   []string            `yaml:"collectors"`
	CollectorCmd map[string]string   `yaml:"collector_cmd,omitempty"`
	CustomArgs   map[string][]string `yaml:"custom_args,omitempty"`
	ExcludeIDs   []int64             `yaml:"exclude_sensor_ids,omitempty"`
}

// ModulesConfig is the exporter configuration file.
type ModulesConfig struct {
	Modules map[string]Module `yaml:"modules"`
}

// collectorTools maps each local collector to the freeipmi command it
// runs.
var collectorTools = map[string]string{
	"ipmi":    "/usr/sbin/ipmimonitoring",
	"dcmi":    "/usr/sbin/ipmi-dcmi",
	"bmc":     "/usr/sbin/bmc-info",
	"chassis": "/usr/sbin/ipmi-chassis",
	"sel":     "/usr/sbin/ipmi-sel",
}

// DefaultModules returns the configuration scraping the local BMC. The
// freeipmi tools need root, so each collector runs them through sudo.
func DefaultModules() ModulesConfig {
	collectors := []string{"ipmi", "dcmi", "bmc", "chassis", "sel"}
	module := Module{
		Collectors:   collectors,
		CollectorCmd: make(map[string]string),
		CustomArgs:   make(map[string][]string),
	}
	for _, name := range collectors {
		module.CollectorCmd[name] = "sudo"
		module.CustomArgs[name] = []string{collectorTools[name]}
	}
	return ModulesConfig{
		Modules: map[string]Module{"default": module},
	}
}

// WriteConfig writes the exporter configuration file.
func (e *Exporter) WriteConfig(config ModulesConfig) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Trace(err)
	}
	path := e.config.Layout.ConfigPath()
	logger.Debugf("writing %s", path)
	if err := os.MkdirAll(e.config.Layout.ConfigDir(), 0755); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(utils.AtomicWriteFile(path, data, 0644), "writing %s", path)
}

// ReadConfig reads back the exporter configuration file.
func (e *Exporter) ReadConfig() (ModulesConfig, error) {
	var config ModulesConfig
	data, err := os.ReadFile(e.config.Layout.ConfigPath())
	if os.IsNotExist(err) {
		return config, errors.NotFoundf("exporter config")
	} else if err != nil {
		return config, errors.Trace(err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Annotate(err, "parsing exporter config")
	}
	return config, nil
}
