// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package jujuc_test

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
	runnertesting "github.com/dwellir/prometheus-ipmi-exporter-operator/runner/testing"
)

type contextSuite struct {
	testing.IsolationSuite

	runner *runnertesting.StubRunner
	ctx    *jujuc.ToolsContext
}

var _ = gc.Suite(&contextSuite{})

func (s *contextSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.runner = runnertesting.NewStubRunner()
	s.ctx = jujuc.NewToolsContext("ipmi-exporter/0", s.runner, c.MkDir())
}

func (s *contextSuite) TestUnitName(c *gc.C) {
	c.Assert(s.ctx.UnitName(), gc.Equals, "ipmi-exporter/0")
}

func (s *contextSuite) TestConfigGet(c *gc.C) {
	s.runner.Respond("config-get",
		runnertesting.Stdout(`{"listen-address":"0.0.0.0:9290","ipmi-exporter-version":"1.8.0","unset":null}`),
	)
	settings, err := s.ctx.ConfigGet()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings, jc.DeepEquals, map[string]interface{}{
		"listen-address":        "0.0.0.0:9290",
		"ipmi-exporter-version": "1.8.0",
		"unset":                 nil,
	})
	s.runner.CheckCall(c, 0, "config-get", "--format=json", "--all")
}

func (s *contextSuite) TestRelationIds(c *gc.C) {
	s.runner.Respond("relation-ids", runnertesting.Stdout(`["prometheus:9","prometheus:3"]`))
	ids, err := s.ctx.RelationIds("prometheus")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ids, jc.DeepEquals, []string{"prometheus:3", "prometheus:9"})
	s.runner.CheckCall(c, 0, "relation-ids", "--format=json", "prometheus")
}

func (s *contextSuite) TestRelationIdsEmptyOutput(c *gc.C) {
	s.runner.Respond("relation-ids", runnertesting.Stdout(""))
	ids, err := s.ctx.RelationIds("prometheus")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ids, gc.HasLen, 0)
}

func (s *contextSuite) TestRelationGet(c *gc.C) {
	s.runner.Respond("relation-get", runnertesting.Stdout(`{"ingress-address":"10.0.0.4","private-address":"10.0.0.4"}`))
	settings, err := s.ctx.RelationGet("prometheus:3", "ipmi-exporter/0", false)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(settings["ingress-address"], gc.Equals, "10.0.0.4")
	s.runner.CheckCall(c, 0, "relation-get", "--format=json", "-r", "prometheus:3", "-", "ipmi-exporter/0")
}

func (s *contextSuite) TestRelationGetApp(c *gc.C) {
	_, err := s.ctx.RelationGet("prometheus:3", "prometheus", true)
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCall(c, 0, "relation-get", "--format=json", "-r", "prometheus:3", "--app", "-", "prometheus")
}

func (s *contextSuite) TestRelationSet(c *gc.C) {
	err := s.ctx.RelationSet("prometheus:3", jujuc.Settings{
		"hostname": "10.0.0.4",
		"port":     "9290",
	})
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCallNames(c, "relation-set")
	args := s.runner.Calls()[0].Args
	c.Assert(args, gc.HasLen, 4)
	c.Check(args[:3], jc.DeepEquals, []interface{}{"-r", "prometheus:3", "--file"})
	c.Check(s.runner.Files["relation-set"], gc.Equals, "hostname: 10.0.0.4\nport: \"9290\"\n")

	// The settings file is removed once the tool has run.
	_, err = os.Stat(args[3].(string))
	c.Check(os.IsNotExist(err), jc.IsTrue)
}

func (s *contextSuite) TestRelationSetNothing(c *gc.C) {
	err := s.ctx.RelationSet("prometheus:3", nil)
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckNoCalls(c)
}

func (s *contextSuite) TestStatusSet(c *gc.C) {
	err := s.ctx.StatusSet(jujuc.StatusActive, "ipmi-exporter started")
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCall(c, 0, "status-set", "active", "ipmi-exporter started")
}

func (s *contextSuite) TestStatusSetInvalid(c *gc.C) {
	err := s.ctx.StatusSet("error", "nope")
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	s.runner.CheckNoCalls(c)
}

func (s *contextSuite) TestToolFailure(c *gc.C) {
	s.runner.Respond("open-port", runnertesting.Exit(2, "ERROR invalid port\n"))
	err := s.ctx.OpenPort("99999/tcp")
	c.Assert(err, gc.ErrorMatches, "open-port exited with code 2: ERROR invalid port")
	c.Check(runner.ExitCode(err), gc.Equals, 2)
}

func (s *contextSuite) TestRunnerError(c *gc.C) {
	s.runner.SetErrors(errors.New("no shell"))
	err := s.ctx.ApplicationVersionSet("1.8.0")
	c.Assert(err, gc.ErrorMatches, "no shell")
	c.Check(runner.IsExitError(err), jc.IsFalse)
}

func (s *contextSuite) TestPorts(c *gc.C) {
	s.runner.Respond("opened-ports", runnertesting.Stdout(`["9290/tcp"]`))
	ports, err := s.ctx.OpenedPorts()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(ports, jc.DeepEquals, []string{"9290/tcp"})

	c.Assert(s.ctx.OpenPort("9291/tcp"), jc.ErrorIsNil)
	c.Assert(s.ctx.ClosePort("9290/tcp"), jc.ErrorIsNil)
	s.runner.CheckCalls(c, []testing.StubCall{
		{FuncName: "opened-ports", Args: []interface{}{"--format=json"}},
		{FuncName: "open-port", Args: []interface{}{"9291/tcp"}},
		{FuncName: "close-port", Args: []interface{}{"9290/tcp"}},
	})
}

func (s *contextSuite) TestLogLevels(c *gc.C) {
	for _, level := range []loggo.Level{loggo.TRACE, loggo.DEBUG, loggo.INFO, loggo.WARNING, loggo.ERROR, loggo.CRITICAL} {
		c.Assert(s.ctx.Log(level, "hello"), jc.ErrorIsNil)
	}
	s.runner.CheckCalls(c, []testing.StubCall{
		{FuncName: "juju-log", Args: []interface{}{"-l", "DEBUG", "hello"}},
		{FuncName: "juju-log", Args: []interface{}{"-l", "DEBUG", "hello"}},
		{FuncName: "juju-log", Args: []interface{}{"-l", "INFO", "hello"}},
		{FuncName: "juju-log", Args: []interface{}{"-l", "WARNING", "hello"}},
		{FuncName: "juju-log", Args: []interface{}{"-l", "ERROR", "hello"}},
		{FuncName: "juju-log", Args: []interface{}{"-l", "ERROR", "hello"}},
	})
}
