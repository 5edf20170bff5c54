// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package cosagent_test

import (
	"testing/fstest"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/relation/cosagent"
)

type rulesSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&rulesSuite{})

var topology = cosagent.Topology{
	Model:       "lab",
	ModelUUID:   "6f8e3a1c-5c2a-4d7e-9b0f-2c1d4e5f6a7b",
	Application: "ipmi",
	Unit:        "ipmi/0",
	CharmName:   "prometheus-ipmi-exporter",
}

const groupsFile = `
groups:
- name: hardware
  rules:
  - alert: CollectorDown
    expr: ipmi_up == 0
    labels:
      severity: warning
`

const singleRule = `
alert: SensorCritical
expr: ipmi_sensor_state == 2
`

func (*rulesSuite) TestLoadGroups(c *gc.C) {
	fsys := fstest.MapFS{"rules/hw.rules": {Data: []byte(groupsFile)}}
	file, err := cosagent.LoadRules(fsys, "rules", topology)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(file.Groups, gc.HasLen, 1)
	group := file.Groups[0]
	c.Check(group.Name, gc.Equals, "lab_6f8e3a1c_5c2a_4d7e_9b0f_2c1d4e5f6a7b_ipmi_hardware_alerts")
	c.Assert(group.Rules, gc.HasLen, 1)
	c.Check(group.Rules[0]["alert"], gc.Equals, "CollectorDown")
	c.Check(group.Rules[0]["labels"], jc.DeepEquals, map[string]interface{}{
		"severity":         "warning",
		"juju_model":       "lab",
		"juju_model_uuid":  "6f8e3a1c-5c2a-4d7e-9b0f-2c1d4e5f6a7b",
		"juju_application": "ipmi",
		"juju_charm":       "prometheus-ipmi-exporter",
	})
}

func (*rulesSuite) TestLoadSingleRule(c *gc.C) {
	fsys := fstest.MapFS{
		"rules/sensor.rule": {Data: []byte(singleRule)},
		"rules/README.md":   {Data: []byte("not a rule")},
	}
	file, err := cosagent.LoadRules(fsys, "rules", topology)
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(file.Groups, gc.HasLen, 1)
	c.Check(file.Groups[0].Name, gc.Matches, ".*_ipmi_sensor_alerts")
	c.Check(file.Groups[0].Rules[0]["expr"], gc.Equals, "ipmi_sensor_state == 2")
}

func (*rulesSuite) TestLoadMissingDir(c *gc.C) {
	file, err := cosagent.LoadRules(fstest.MapFS{}, "rules", topology)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(file.Groups, gc.HasLen, 0)
}

func (*rulesSuite) TestLoadInvalidRule(c *gc.C) {
	fsys := fstest.MapFS{"rules/bad.rules": {Data: []byte("expr: up == 0\n")}}
	_, err := cosagent.LoadRules(fsys, "rules", topology)
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Assert(err, gc.ErrorMatches, "reading rules/bad.rules: rule without alert or record not valid")
}

func (*rulesSuite) TestTopologyValidate(c *gc.C) {
	t := topology
	t.ModelUUID = ""
	c.Assert(t.Validate(), gc.ErrorMatches, "empty ModelUUID not valid")
	c.Assert(topology.Validate(), jc.ErrorIsNil)
}
