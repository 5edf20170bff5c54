// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/version/v2"
	gc "gopkg.in/check.v1"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/exporter"
	runnertesting "github.com/dwellir/prometheus-ipmi-exporter-operator/runner/testing"
)

type exporterSuite struct {
	testing.IsolationSuite

	layout     exporter.Layout
	runner     *runnertesting.StubRunner
	packages   *fakePackages
	service    *fakeService
	downloader *fakeDownloader
	exporter   *exporter.Exporter
}

var _ = gc.Suite(&exporterSuite{})

var v180 = version.MustParse("1.8.0")

func (s *exporterSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.layout = exporter.Layout{Root: c.MkDir()}
	s.runner = runnertesting.NewStubRunner()
	s.packages = &fakePackages{}
	s.service = &fakeService{}
	s.downloader = &fakeDownloader{
		c:       c,
		archive: releaseTarball(c, "ipmi_exporter-1.8.0.linux-amd64", "#!/bin/sh\n"),
	}
	var err error
	s.exporter, err = exporter.New(exporter.Config{
		Layout:     s.layout,
		Runner:     s.runner,
		Packages:   s.packages,
		Service:    s.service,
		Downloader: s.downloader,
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *exporterSuite) install(c *gc.C) error {
	return s.exporter.Install(context.Background(), exporter.InstallArgs{
		Version:       v180,
		Arch:          "amd64",
		ListenAddress: "0.0.0.0:9290",
	})
}

func (s *exporterSuite) TestNewValidatesConfig(c *gc.C) {
	_, err := exporter.New(exporter.Config{
		Layout: s.layout,
		Runner: s.runner,
	})
	c.Assert(err, jc.ErrorIs, errors.NotValid)
	c.Assert(err, gc.ErrorMatches, "nil Packages not valid")
}

func (s *exporterSuite) TestInstall(c *gc.C) {
	err := s.install(c)
	c.Assert(err, jc.ErrorIsNil)

	s.downloader.CheckCall(c, 0, "Download",
		"https://github.com/prometheus-community/ipmi_exporter/releases/download/v1.8.0/ipmi_exporter-1.8.0.linux-amd64.tar.gz")
	s.packages.CheckCall(c, 0, "EnsureInstalled", "freeipmi")
	s.service.CheckCallNames(c, "Install")

	info, err := os.Stat(s.layout.BinaryPath())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(info.Mode().Perm(), gc.Equals, os.FileMode(0755))
	data, err := os.ReadFile(s.layout.BinaryPath())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "#!/bin/sh\n")

	s.runner.CheckCallNames(c, "groupadd", "useradd", "visudo", "chown")
	s.runner.CheckCall(c, 0, "groupadd", "--system", "ipmi_exporter")
	s.runner.CheckCall(c, 1, "useradd",
		"--system", "--no-create-home",
		"--gid", "ipmi_exporter",
		"--shell", "/usr/sbin/nologin",
		"ipmi_exporter",
	)
	s.runner.CheckCall(c, 2, "visudo", "-cf", s.layout.SudoersPath()+".new")
	s.runner.CheckCall(c, 3, "chown", "-R", "ipmi_exporter:ipmi_exporter", s.layout.StateDir())

	c.Check(s.layout.ConfigPath(), jc.IsNonEmptyFile)
	c.Check(s.layout.SysconfigPath(), jc.IsNonEmptyFile)
	c.Check(s.layout.TextfileDir(), jc.IsDirectory)
	c.Check(s.layout.SudoersPath()+".new", jc.DoesNotExist)
	sudoers, err := os.ReadFile(s.layout.SudoersPath())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(sudoers), gc.Equals, string(exporter.SudoersContent()))
}

func (s *exporterSuite) TestInstallToleratesExistingUser(c *gc.C) {
	s.runner.Respond("groupadd", runnertesting.Exit(9, "groupadd: group 'ipmi_exporter' already exists"))
	s.runner.Respond("useradd", runnertesting.Exit(9, "useradd: user 'ipmi_exporter' already exists"))
	err := s.install(c)
	c.Assert(err, jc.ErrorIsNil)
}

func (s *exporterSuite) TestInstallUserError(c *gc.C) {
	s.runner.Respond("useradd", runnertesting.Exit(1, "useradd: cannot lock /etc/passwd"))
	err := s.install(c)
	c.Assert(err, gc.ErrorMatches, `creating user ipmi_exporter: useradd exited with code 1: useradd: cannot lock /etc/passwd`)
	s.service.CheckNoCalls(c)
}

func (s *exporterSuite) TestInstallInvalidSudoers(c *gc.C) {
	s.runner.Respond("visudo", runnertesting.Exit(1, "parse error"))
	err := s.install(c)
	c.Assert(err, gc.ErrorMatches, `validating sudoers file: visudo exited with code 1: parse error`)
	c.Check(s.layout.SudoersPath(), jc.DoesNotExist)
	c.Check(s.layout.SudoersPath()+".new", jc.DoesNotExist)
}

func (s *exporterSuite) TestInstallDownloadError(c *gc.C) {
	s.downloader.SetErrors(errors.New("boom"))
	err := s.install(c)
	c.Assert(err, gc.ErrorMatches, "boom")
	c.Check(s.layout.BinaryPath(), jc.DoesNotExist)
	s.packages.CheckNoCalls(c)
}

func (s *exporterSuite) TestInstallBinaryMissingFromArchive(c *gc.C) {
	s.downloader.archive = releaseTarball(c, "ipmi_exporter-1.7.0.linux-amd64", "#!/bin/sh\n")
	err := s.exporter.InstallBinary(context.Background(), v180, "amd64")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *exporterSuite) TestInstallFreeipmiError(c *gc.C) {
	s.packages.SetErrors(errors.New("apt is broken"))
	err := s.install(c)
	c.Assert(err, gc.ErrorMatches, "installing freeipmi: apt is broken")
}

func (s *exporterSuite) TestUninstall(c *gc.C) {
	c.Assert(s.install(c), jc.ErrorIsNil)
	s.service.ResetCalls()
	s.runner.ResetCalls()

	err := s.exporter.Uninstall(context.Background())
	c.Assert(err, jc.ErrorIsNil)

	s.service.CheckCallNames(c, "Stop", "Remove")
	s.runner.CheckCallNames(c, "userdel", "groupdel")
	for _, path := range []string{
		s.layout.BinaryPath(),
		s.layout.SysconfigPath(),
		s.layout.ConfigPath(),
		s.layout.SudoersPath(),
		s.layout.StateDir(),
	} {
		c.Check(path, jc.DoesNotExist)
	}
	installed, err := s.exporter.Installed()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsFalse)
}

func (s *exporterSuite) TestInstalled(c *gc.C) {
	installed, err := s.exporter.Installed()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsFalse)

	c.Assert(s.install(c), jc.ErrorIsNil)
	installed, err = s.exporter.Installed()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsTrue)
	data, err := os.ReadFile(s.layout.InstalledPath())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), gc.Equals, "1.8.0\n")
}

func (s *exporterSuite) TestInstalledNotRecordedOnFailure(c *gc.C) {
	s.service.SetErrors(errors.New("dbus gone"))
	err := s.install(c)
	c.Assert(err, gc.ErrorMatches, "installing systemd service: dbus gone")
	installed, err := s.exporter.Installed()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(installed, jc.IsFalse)
}

func (s *exporterSuite) TestUninstallNothingInstalled(c *gc.C) {
	s.runner.Respond("userdel", runnertesting.Exit(6, "userdel: user 'ipmi_exporter' does not exist"))
	s.runner.Respond("groupdel", runnertesting.Exit(6, "groupdel: group 'ipmi_exporter' does not exist"))
	err := s.exporter.Uninstall(context.Background())
	c.Assert(err, jc.ErrorIsNil)
}

func (s *exporterSuite) TestUninstallStopError(c *gc.C) {
	s.service.SetErrors(errors.New("dbus gone"))
	err := s.exporter.Uninstall(context.Background())
	c.Assert(err, gc.ErrorMatches, "stopping service: dbus gone")
	s.service.CheckCallNames(c, "Stop")
}

func (s *exporterSuite) TestRunning(c *gc.C) {
	s.service.running = true
	running, err := s.exporter.Running(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(running, jc.IsTrue)
}

func (s *exporterSuite) TestVersion(c *gc.C) {
	s.runner.Respond(s.layout.BinaryPath(), runnertesting.Stdout(
		"ipmi_exporter, version 1.8.0 (branch: HEAD, revision: 8e5b2ad)\n  build user: root@5f8b\n"))
	v, err := s.exporter.Version()
	c.Assert(err, jc.ErrorIsNil)
	c.Check(v, gc.Equals, v180)
	s.runner.CheckCall(c, 0, s.layout.BinaryPath(), "--version")
}

func (s *exporterSuite) TestVersionFailure(c *gc.C) {
	s.runner.Respond(s.layout.BinaryPath(), runnertesting.Exit(127, "not found"))
	_, err := s.exporter.Version()
	c.Assert(err, gc.ErrorMatches, `.*ipmi_exporter --version exited with code 127`)
}

func (s *exporterSuite) TestParseVersion(c *gc.C) {
	v, err := exporter.ParseVersion("ipmi_exporter, version 1.4.0 (branch: HEAD)")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(v, gc.Equals, version.MustParse("1.4.0"))

	_, err = exporter.ParseVersion("ipmi_exporter, version unknown")
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *exporterSuite) TestWriteConfig(c *gc.C) {
	err := s.exporter.WriteConfig(exporter.DefaultModules())
	c.Assert(err, jc.ErrorIsNil)

	config, err := s.exporter.ReadConfig()
	c.Assert(err, jc.ErrorIsNil)
	module, ok := config.Modules["default"]
	c.Assert(ok, jc.IsTrue)
	c.Check(module.Collectors, jc.DeepEquals, []string{"ipmi", "dcmi", "bmc", "chassis", "sel"})
	c.Check(module.CollectorCmd["sel"], gc.Equals, "sudo")
	c.Check(module.CustomArgs["ipmi"], jc.DeepEquals, []string{"/usr/sbin/ipmimonitoring"})
}

func (s *exporterSuite) TestReadConfigMissing(c *gc.C) {
	_, err := s.exporter.ReadConfig()
	c.Assert(err, jc.ErrorIs, errors.NotFound)
}

func (s *exporterSuite) TestRenderSysconfig(c *gc.C) {
	out, err := exporter.RenderSysconfig(exporter.DefaultLayout, "10.0.0.1:9290")
	c.Assert(err, jc.ErrorIsNil)
	c.Check(out, jc.Contains,
		"\nARGS=\"--web.listen-address=10.0.0.1:9290 --config.file=/etc/ipmi_exporter/ipmi_exporter.yaml\"\n")
}

func (s *exporterSuite) TestRenderSysconfigWritesFile(c *gc.C) {
	err := s.exporter.RenderSysconfig(":9999")
	c.Assert(err, jc.ErrorIsNil)
	data, err := os.ReadFile(s.layout.SysconfigPath())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), jc.Contains, "--web.listen-address=:9999 ")
	c.Check(filepath.Dir(s.layout.SysconfigPath()), gc.Equals, s.layout.SysconfigDir())
}

func (s *exporterSuite) TestRenderSysconfigChownError(c *gc.C) {
	s.runner.Respond("chown", runnertesting.Exit(1, "chown: invalid user"))
	err := s.exporter.RenderSysconfig(":9290")
	c.Assert(err, gc.ErrorMatches, "changing ownership: chown exited with code 1: chown: invalid user")
	c.Check(s.layout.SysconfigPath(), jc.DoesNotExist)
}

func (s *exporterSuite) TestServiceConf(c *gc.C) {
	conf := exporter.DefaultLayout.ServiceConf()
	c.Assert(conf.Validate(), jc.ErrorIsNil)
	c.Check(conf.Cmd, gc.Equals, "/usr/bin/ipmi_exporter $ARGS")
	c.Check(conf.EnvironmentFile, gc.Equals, "/etc/sysconfig/ipmi_exporter")
	c.Check(conf.User, gc.Equals, "ipmi_exporter")
}
