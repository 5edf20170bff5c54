// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package testing provides an in-memory jujuc.Context.
package testing

import (
	"sort"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
)

// StatusRecord is one status-set call.
type StatusRecord struct {
	Status  jujuc.Status
	Message string
}

// StubContext is a jujuc.Context backed by maps. Relation settings are
// keyed by relation id and then unit or application name.
type StubContext struct {
	testing.Stub

	Unit      string
	Config    map[string]interface{}
	Relations map[string][]string
	Settings  map[string]map[string]jujuc.Settings
	Ports     set.Strings

	Statuses []StatusRecord
	Version  string
	Logs     []string
}

var _ jujuc.Context = (*StubContext)(nil)

// NewStubContext returns an empty StubContext for the unit.
func NewStubContext(unit string) *StubContext {
	return &StubContext{
		Unit:      unit,
		Config:    make(map[string]interface{}),
		Relations: make(map[string][]string),
		Settings:  make(map[string]map[string]jujuc.Settings),
		Ports:     set.NewStrings(),
	}
}

// AddRelation registers a relation on the named endpoint.
func (c *StubContext) AddRelation(name, relationId string) {
	c.Relations[name] = append(c.Relations[name], relationId)
	c.Settings[relationId] = make(map[string]jujuc.Settings)
}

// UnitSettings returns the local unit's settings on the relation.
func (c *StubContext) UnitSettings(relationId string) jujuc.Settings {
	return c.Settings[relationId][c.Unit]
}

// LastStatus returns the most recent status set, if any.
func (c *StubContext) LastStatus() StatusRecord {
	if len(c.Statuses) == 0 {
		return StatusRecord{}
	}
	return c.Statuses[len(c.Statuses)-1]
}

// UnitName is part of jujuc.Context.
func (c *StubContext) UnitName() string {
	return c.Unit
}

// ConfigGet is part of jujuc.Context.
func (c *StubContext) ConfigGet() (map[string]interface{}, error) {
	c.AddCall("ConfigGet")
	if err := c.NextErr(); err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(c.Config))
	for k, v := range c.Config {
		out[k] = v
	}
	return out, nil
}

// RelationIds is part of jujuc.Context.
func (c *StubContext) RelationIds(name string) ([]string, error) {
	c.AddCall("RelationIds", name)
	if err := c.NextErr(); err != nil {
		return nil, err
	}
	ids := append([]string(nil), c.Relations[name]...)
	sort.Strings(ids)
	return ids, nil
}

// RelationGet is part of jujuc.Context.
func (c *StubContext) RelationGet(relationId, unit string, app bool) (jujuc.Settings, error) {
	c.AddCall("RelationGet", relationId, unit, app)
	if err := c.NextErr(); err != nil {
		return nil, err
	}
	units, ok := c.Settings[relationId]
	if !ok {
		return nil, errors.NotFoundf("relation %q", relationId)
	}
	out := make(jujuc.Settings)
	for k, v := range units[unit] {
		out[k] = v
	}
	return out, nil
}

// RelationSet is part of jujuc.Context.
func (c *StubContext) RelationSet(relationId string, settings jujuc.Settings) error {
	c.AddCall("RelationSet", relationId, settings)
	if err := c.NextErr(); err != nil {
		return err
	}
	units, ok := c.Settings[relationId]
	if !ok {
		return errors.NotFoundf("relation %q", relationId)
	}
	current := units[c.Unit]
	if current == nil {
		current = make(jujuc.Settings)
		units[c.Unit] = current
	}
	for k, v := range settings {
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	return nil
}

// StatusSet is part of jujuc.Context.
func (c *StubContext) StatusSet(status jujuc.Status, message string) error {
	c.AddCall("StatusSet", status, message)
	if err := c.NextErr(); err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return errors.Trace(err)
	}
	c.Statuses = append(c.Statuses, StatusRecord{Status: status, Message: message})
	return nil
}

// ApplicationVersionSet is part of jujuc.Context.
func (c *StubContext) ApplicationVersionSet(version string) error {
	c.AddCall("ApplicationVersionSet", version)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Version = version
	return nil
}

// OpenPort is part of jujuc.Context.
func (c *StubContext) OpenPort(port string) error {
	c.AddCall("OpenPort", port)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Ports.Add(port)
	return nil
}

// ClosePort is part of jujuc.Context.
func (c *StubContext) ClosePort(port string) error {
	c.AddCall("ClosePort", port)
	if err := c.NextErr(); err != nil {
		return err
	}
	c.Ports.Remove(port)
	return nil
}

// OpenedPorts is part of jujuc.Context.
func (c *StubContext) OpenedPorts() ([]string, error) {
	c.AddCall("OpenedPorts")
	if err := c.NextErr(); err != nil {
		return nil, err
	}
	return c.Ports.SortedValues(), nil
}

// Log is part of jujuc.Context.
func (c *StubContext) Log(level loggo.Level, message string) error {
	c.Logs = append(c.Logs, level.String()+" "+message)
	return nil
}
