// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package apt_test

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/packaging/apt"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
	runnertesting "github.com/dwellir/prometheus-ipmi-exporter-operator/runner/testing"
)

type aptSuite struct {
	testing.IsolationSuite

	runner *runnertesting.StubRunner
	pm     *apt.PackageManager
}

var _ = gc.Suite(&aptSuite{})

var installArgs = []interface{}{
	"--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io", "--assume-yes", "--quiet",
	"install", "freeipmi",
}

func (s *aptSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.runner = runnertesting.NewStubRunner()
	s.pm = apt.NewPackageManager(s.runner, clock.WallClock)
	apt.SetRetry(s.pm, 3, time.Millisecond)
}

func (s *aptSuite) TestInstalled(c *gc.C) {
	s.runner.Respond("dpkg-query", runnertesting.Stdout("installed"))
	installed, err := s.pm.Installed("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsTrue)
	s.runner.CheckCall(c, 0, "dpkg-query", "--show", "--showformat=${db:Status-Status}", "freeipmi")
}

func (s *aptSuite) TestInstalledConfigFilesOnly(c *gc.C) {
	s.runner.Respond("dpkg-query", runnertesting.Stdout("config-files"))
	installed, err := s.pm.Installed("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsFalse)
}

func (s *aptSuite) TestInstalledUnknownPackage(c *gc.C) {
	s.runner.Respond("dpkg-query", runnertesting.Exit(1, "dpkg-query: no packages found matching freeipmi"))
	installed, err := s.pm.Installed("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsFalse)
}

func (s *aptSuite) TestEnsureInstalledSkipsInstalled(c *gc.C) {
	s.runner.Respond("dpkg-query", runnertesting.Stdout("installed"))
	err := s.pm.EnsureInstalled("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCallNames(c, "dpkg-query")
}

func (s *aptSuite) TestEnsureInstalledInstallsMissing(c *gc.C) {
	s.runner.Respond("dpkg-query", runnertesting.Exit(1, ""))
	err := s.pm.EnsureInstalled("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCallNames(c, "dpkg-query", "apt-get")
	s.runner.CheckCall(c, 1, "apt-get", installArgs...)
}

func (s *aptSuite) TestInstallRetriesWhileLocked(c *gc.C) {
	s.runner.Respond("apt-get",
		runnertesting.Exit(100, "E: Could not get lock /var/lib/dpkg/lock-frontend"),
		runnertesting.Exit(100, "E: Could not get lock /var/lib/dpkg/lock-frontend"),
		runnertesting.Stdout(""),
	)
	err := s.pm.Install("freeipmi")
	c.Assert(err, jc.ErrorIsNil)
	s.runner.CheckCallNames(c, "apt-get", "apt-get", "apt-get")
}

func (s *aptSuite) TestInstallGivesUp(c *gc.C) {
	s.runner.Respond("apt-get", runnertesting.Exit(100, "E: Could not get lock"))
	err := s.pm.Install("freeipmi")
	c.Assert(err, gc.ErrorMatches, "installing freeipmi: apt-get exited with code 100: E: Could not get lock")
	c.Check(runner.ExitCode(err), gc.Equals, 100)
	s.runner.CheckCallNames(c, "apt-get", "apt-get", "apt-get")
}

func (s *aptSuite) TestInstallFatal(c *gc.C) {
	s.runner.Respond("apt-get", runnertesting.Exit(1, "E: Unable to locate package freeipmi"))
	err := s.pm.Install("freeipmi")
	c.Assert(err, gc.ErrorMatches, "installing freeipmi: apt-get exited with code 1: E: Unable to locate package freeipmi")
	c.Check(runner.ExitCode(err), gc.Equals, 1)
	s.runner.CheckCallNames(c, "apt-get")
}

func (s *aptSuite) TestInstallNothing(c *gc.C) {
	c.Assert(s.pm.Install(), jc.ErrorIsNil)
	s.runner.CheckNoCalls(c)
}
