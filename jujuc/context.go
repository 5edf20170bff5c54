// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package jujuc calls the hook tools the Juju unit agent exposes to a
// running hook.
package jujuc

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/yaml.v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
)

var logger = loggo.GetLogger("ipmiexporter.jujuc")

// Settings holds the content of a relation databag.
type Settings map[string]string

// Context is the view of the unit agent a hook has.
type Context interface {
	// UnitName returns the name of the unit running the hook.
	UnitName() string

	// ConfigGet returns the charm configuration, including keys
	// without values.
	ConfigGet() (map[string]interface{}, error)

	// RelationIds returns the ids of the relations established on the
	// named endpoint.
	RelationIds(name string) ([]string, error)

	// RelationGet returns the settings published by unit (or by the
	// application, if unit is an application name and app is true)
	// on the given relation.
	RelationGet(relationId, unit string, app bool) (Settings, error)

	// RelationSet updates the local unit's settings on the given
	// relation. Empty values delete the key.
	RelationSet(relationId string, settings Settings) error

	// StatusSet sets the workload status of the unit.
	StatusSet(status Status, message string) error

	// ApplicationVersionSet sets the workload version shown in juju status.
	ApplicationVersionSet(version string) error

	// OpenPort opens a port in the unit's firewall, e.g. "9290/tcp".
	OpenPort(port string) error

	// ClosePort closes a previously opened port.
	ClosePort(port string) error

	// OpenedPorts returns the ports opened by the unit.
	OpenedPorts() ([]string, error)

	// Log writes a message to the unit's log in the controller.
	Log(level loggo.Level, message string) error
}

// ToolsContext implements Context by running the hook tool executables.
// A tool exiting non-zero is reported as a *runner.ExitError.
type ToolsContext struct {
	unitName string
	runner   runner.Runner
	tempDir  string
}

// NewToolsContext returns a Context that runs hook tools with runner.
// Relation settings are passed to relation-set through files created in
// tempDir; an empty tempDir uses the system default.
func NewToolsContext(unitName string, r runner.Runner, tempDir string) *ToolsContext {
	return &ToolsContext{
		unitName: unitName,
		runner:   r,
		tempDir:  tempDir,
	}
}

// UnitName implements Context.
func (c *ToolsContext) UnitName() string {
	return c.unitName
}

func (c *ToolsContext) run(tool string, args ...string) ([]byte, error) {
	stdout, err := runner.Output(c.runner, tool, args...)
	return stdout, errors.Trace(err)
}

func (c *ToolsContext) runJSON(out interface{}, tool string, args ...string) error {
	args = append([]string{"--format=json"}, args...)
	stdout, err := c.run(tool, args...)
	if err != nil {
		return errors.Trace(err)
	}
	if len(strings.TrimSpace(string(stdout))) == 0 {
		return nil
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return errors.Annotatef(err, "cannot parse %s output", tool)
	}
	return nil
}

// ConfigGet implements Context.
func (c *ToolsContext) ConfigGet() (map[string]interface{}, error) {
	settings := make(map[string]interface{})
	if err := c.runJSON(&settings, "config-get", "--all"); err != nil {
		return nil, errors.Trace(err)
	}
	return settings, nil
}

// RelationIds implements Context.
func (c *ToolsContext) RelationIds(name string) ([]string, error) {
	var ids []string
	if err := c.runJSON(&ids, "relation-ids", name); err != nil {
		return nil, errors.Annotatef(err, "listing %q relations", name)
	}
	sort.Strings(ids)
	return ids, nil
}

// RelationGet implements Context.
func (c *ToolsContext) RelationGet(relationId, unit string, app bool) (Settings, error) {
	args := []string{"-r", relationId}
	if app {
		args = append(args, "--app")
	}
	args = append(args, "-", unit)
	settings := make(Settings)
	if err := c.runJSON(&settings, "relation-get", args...); err != nil {
		return nil, errors.Annotatef(err, "reading %s settings of %s", relationId, unit)
	}
	return settings, nil
}

// RelationSet implements Context. The settings are written to a YAML
// file and passed with --file so large values survive the command line.
func (c *ToolsContext) RelationSet(relationId string, settings Settings) error {
	if len(settings) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]string(settings))
	if err != nil {
		return errors.Trace(err)
	}
	f, err := os.CreateTemp(c.tempDir, "relation-set-")
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		_ = os.Remove(f.Name())
	}()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	if err := f.Close(); err != nil {
		return errors.Trace(err)
	}
	_, err = c.run("relation-set", "-r", relationId, "--file", filepath.Clean(f.Name()))
	return errors.Annotatef(err, "updating %s settings", relationId)
}

// StatusSet implements Context.
func (c *ToolsContext) StatusSet(status Status, message string) error {
	if err := status.Validate(); err != nil {
		return errors.Trace(err)
	}
	_, err := c.run("status-set", string(status), message)
	return errors.Trace(err)
}

// ApplicationVersionSet implements Context.
func (c *ToolsContext) ApplicationVersionSet(version string) error {
	_, err := c.run("application-version-set", version)
	return errors.Trace(err)
}

// OpenPort implements Context.
func (c *ToolsContext) OpenPort(port string) error {
	_, err := c.run("open-port", port)
	return errors.Trace(err)
}

// ClosePort implements Context.
func (c *ToolsContext) ClosePort(port string) error {
	_, err := c.run("close-port", port)
	return errors.Trace(err)
}

// OpenedPorts implements Context.
func (c *ToolsContext) OpenedPorts() ([]string, error) {
	var ports []string
	if err := c.runJSON(&ports, "opened-ports"); err != nil {
		return nil, errors.Trace(err)
	}
	return ports, nil
}

// Log implements Context.
func (c *ToolsContext) Log(level loggo.Level, message string) error {
	_, err := c.run("juju-log", "-l", jujuLogLevel(level), message)
	return errors.Trace(err)
}

// jujuLogLevel maps loggo levels onto the levels juju-log accepts.
func jujuLogLevel(level loggo.Level) string {
	switch {
	case level <= loggo.DEBUG:
		return "DEBUG"
	case level == loggo.INFO:
		return "INFO"
	case level == loggo.WARNING:
		return "WARNING"
	default:
		return "ERROR"
	}
}
