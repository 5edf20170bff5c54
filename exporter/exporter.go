// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package exporter installs, configures and checks the upstream
// prometheus-community ipmi_exporter on the local machine.
package exporter

import (
	"context"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"
	"github.com/juju/version/v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
)

var logger = loggo.GetLogger("ipmiexporter.exporter")

// Service controls the init system service running the exporter.
type Service interface {
	Install(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
	Remove(ctx context.Context) error
}

// PackageManager installs host packages.
type PackageManager interface {
	EnsureInstalled(packages ...string) error
}

// Downloader fetches a URL into a temporary file that the caller must
// close and remove.
type Downloader interface {
	Download(ctx context.Context, url string) (*os.File, error)
}

// Config holds the dependencies of an Exporter.
type Config struct {
	Layout     Layout
	Runner     runner.Runner
	Packages   PackageManager
	Service    Service
	Downloader Downloader
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if c.Layout.Root == "" {
		return errors.NotValidf("empty Layout.Root")
	}
	if c.Runner == nil {
		return errors.NotValidf("nil Runner")
	}
	if c.Packages == nil {
		return errors.NotValidf("nil Packages")
	}
	if c.Service == nil {
		return errors.NotValidf("nil Service")
	}
	if c.Downloader == nil {
		return errors.NotValidf("nil Downloader")
	}
	return nil
}

// Exporter manages the ipmi_exporter installation.
type Exporter struct {
	config Config
}

// New returns an Exporter using the given dependencies.
func New(config Config) (*Exporter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Exporter{config: config}, nil
}

// InstallArgs holds the parameters of an installation.
type InstallArgs struct {
	Version       version.Number
	Arch          string
	ListenAddress string
}

// Install downloads the exporter and sets up everything it needs to run
// as a systemd service. It is safe to run again over an existing
// installation.
func (e *Exporter) Install(ctx context.Context, args InstallArgs) error {
	logger.Debugf("installing ipmi_exporter %s", args.Version)
	if err := e.InstallBinary(ctx, args.Version, args.Arch); err != nil {
		return errors.Trace(err)
	}
	if err := e.config.Packages.EnsureInstalled("freeipmi"); err != nil {
		return errors.Annotate(err, "installing freeipmi")
	}
	if err := e.ensureUserGroup(); err != nil {
		return errors.Trace(err)
	}
	if err := e.WriteConfig(DefaultModules()); err != nil {
		return errors.Trace(err)
	}
	if err := e.writeSudoers(); err != nil {
		return errors.Trace(err)
	}
	if err := e.config.Service.Install(ctx); err != nil {
		return errors.Annotate(err, "installing systemd service")
	}
	if err := e.RenderSysconfig(args.ListenAddress); err != nil {
		return errors.Trace(err)
	}
	marker := e.config.Layout.InstalledPath()
	err := utils.AtomicWriteFile(marker, []byte(args.Version.String()+"\n"), 0644)
	return errors.Annotate(err, "recording installation")
}

// Installed reports whether a previous Install ran to completion.
func (e *Exporter) Installed() (bool, error) {
	_, err := os.Stat(e.config.Layout.InstalledPath())
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, errors.Trace(err)
}

// Start starts the exporter service.
func (e *Exporter) Start(ctx context.Context) error {
	return errors.Trace(e.config.Service.Start(ctx))
}

// Restart restarts the exporter service.
func (e *Exporter) Restart(ctx context.Context) error {
	return errors.Trace(e.config.Service.Restart(ctx))
}

// Running reports whether the exporter service is active.
func (e *Exporter) Running(ctx context.Context) (bool, error) {
	running, err := e.config.Service.Running(ctx)
	return running, errors.Trace(err)
}

// Uninstall stops and disables the service, then removes everything
// Install created. Files that are already gone are ignored.
func (e *Exporter) Uninstall(ctx context.Context) error {
	logger.Debugf("uninstalling ipmi_exporter")
	if err := e.config.Service.Stop(ctx); err != nil {
		return errors.Annotate(err, "stopping service")
	}
	if err := e.config.Service.Remove(ctx); err != nil {
		return errors.Annotate(err, "removing service")
	}
	layout := e.config.Layout
	for _, path := range []string{
		layout.BinaryPath(),
		layout.SysconfigPath(),
		layout.ConfigPath(),
		layout.SudoersPath(),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Annotatef(err, "removing %s", path)
		}
	}
	if err := os.RemoveAll(layout.StateDir()); err != nil {
		return errors.Annotatef(err, "removing %s", layout.StateDir())
	}
	return errors.Trace(e.removeUserGroup())
}
