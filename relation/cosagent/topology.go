// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package cosagent

import (
	"regexp"
	"strings"

	"github.com/juju/errors"
)

// Topology identifies where telemetry comes from within the Juju model.
type Topology struct {
	Model       string
	ModelUUID   string
	Application string
	Unit        string
	CharmName   string
}

// Validate returns an error if a required field is missing.
func (t Topology) Validate() error {
	switch {
	case t.Model == "":
		return errors.NotValidf("empty Model")
	case t.ModelUUID == "":
		return errors.NotValidf("empty ModelUUID")
	case t.Application == "":
		return errors.NotValidf("empty Application")
	case t.CharmName == "":
		return errors.NotValidf("empty CharmName")
	}
	return nil
}

// Identifier uniquely names the application across models.
func (t Topology) Identifier() string {
	return strings.Join([]string{t.Model, t.ModelUUID, t.Application}, "_")
}

// Labels returns the topology labels attached to alert rules.
func (t Topology) Labels() map[string]string {
	return map[string]string{
		"juju_model":       t.Model,
		"juju_model_uuid":  t.ModelUUID,
		"juju_application": t.Application,
		"juju_charm":       t.CharmName,
	}
}

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_:]`)

// sanitizeName makes s usable as a rule group name.
func sanitizeName(s string) string {
	return invalidNameChars.ReplaceAllString(s, "_")
}
