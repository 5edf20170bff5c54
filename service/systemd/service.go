// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package systemd installs and controls services managed by systemd.
package systemd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/utils/v4"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/service/common"
)

var (
	logger = loggo.GetLogger("ipmiexporter.service.systemd")

	isRunningSystemd = util.IsRunningSystemd
)

// IsRunning returns whether or not systemd is the local init system.
func IsRunning() bool {
	return isRunningSystemd()
}

// Service provides visibility into and control over a systemd service.
type Service struct {
	Name     string
	UnitName string
	DirName  string
	Conf     common.Conf

	newDBus DBusAPIFactory
}

// NewService returns a new reference to a systemd service whose unit
// file lives in dataDir.
func NewService(name string, conf common.Conf, dataDir string, newDBus DBusAPIFactory) (*Service, error) {
	if name == "" {
		return nil, errors.NotValidf("empty service name")
	}
	if !conf.IsZero() {
		if err := conf.Validate(); err != nil {
			return nil, errors.Annotatef(err, "invalid conf for service %q", name)
		}
	}
	return &Service{
		Name:     name,
		UnitName: name + ".service",
		DirName:  dataDir,
		Conf:     conf,
		newDBus:  newDBus,
	}, nil
}

// UnitPath returns the path of the unit file.
func (s *Service) UnitPath() string {
	return filepath.Join(s.DirName, s.UnitName)
}

func (s *Service) errorf(err error, msg string, args ...interface{}) error {
	msg += " for service %q"
	args = append(args, s.Name)
	if err == nil {
		err = errors.Errorf(msg, args...)
	} else {
		err = errors.Annotatef(err, msg, args...)
	}
	logger.Errorf("%v", err)
	logger.Debugf("stack trace:\n%s", errors.ErrorStack(err))
	return err
}

func (s *Service) newConn(ctx context.Context) (DBusAPI, error) {
	conn, err := s.newDBus(ctx)
	if err != nil {
		return nil, s.errorf(err, "failed to connect to dbus")
	}
	return conn, nil
}

// Installed returns whether the unit file exists.
func (s *Service) Installed() (bool, error) {
	_, err := os.Stat(s.UnitPath())
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// Exists returns whether the installed unit file matches the conf.
func (s *Service) Exists() (bool, error) {
	if s.Conf.IsZero() {
		return false, s.errorf(nil, "no conf expected")
	}
	want, err := serialize(s.Conf)
	if err != nil {
		return false, errors.Trace(err)
	}
	got, err := os.ReadFile(s.UnitPath())
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	return bytes.Equal(want, got), nil
}

// Running returns whether the unit is loaded and active.
func (s *Service) Running(ctx context.Context) (bool, error) {
	conn, err := s.newConn(ctx)
	if err != nil {
		return false, errors.Trace(err)
	}
	defer conn.Close()

	units, err := conn.ListUnitsByNamesContext(ctx, []string{s.UnitName})
	if err != nil {
		return false, s.errorf(err, "failed to query services from dbus")
	}
	for _, unit := range units {
		if unit.Name == s.UnitName {
			return unit.LoadState == "loaded" && unit.ActiveState == "active", nil
		}
	}
	return false, nil
}

// Install writes the unit file, then links and enables it. Installing a
// unit whose file already matches the conf is a no-op.
func (s *Service) Install(ctx context.Context) error {
	if s.Conf.IsZero() {
		return s.errorf(nil, "missing conf")
	}
	same, err := s.Exists()
	if err != nil {
		return errors.Trace(err)
	}
	if same {
		logger.Debugf("service %q already installed", s.Name)
		return nil
	}
	if err := s.WriteService(ctx); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully installed", s.Name)
	return nil
}

// WriteService writes the systemd unit file for the service and ensures
// that it is enabled by systemd.
func (s *Service) WriteService(ctx context.Context) error {
	data, err := serialize(s.Conf)
	if err != nil {
		return s.errorf(err, "failed to serialize conf")
	}
	if err := os.MkdirAll(s.DirName, 0755); err != nil {
		return errors.Trace(err)
	}
	filename := s.UnitPath()
	if err := utils.AtomicWriteFile(filename, data, 0644); err != nil {
		return s.errorf(err, "failed to write conf file %q", filename)
	}

	// If systemd is not the running init system,
	// then do not attempt to use it for enabling unit files.
	if !IsRunning() {
		return nil
	}

	conn, err := s.newConn(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return s.errorf(err, "dbus daemon reload request failed")
	}
	const runtime, force = false, true
	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{filename}, runtime, force); err != nil {
		return s.errorf(err, "dbus enable request failed")
	}
	return nil
}

// Start starts the service. Starting a running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	running, err := s.Running(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if running {
		logger.Debugf("service %q already running", s.Name)
		return nil
	}
	if err := s.job(ctx, "start", DBusAPI.StartUnitContext); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully started", s.Name)
	return nil
}

// Stop stops the service. Stopping a stopped service is a no-op.
func (s *Service) Stop(ctx context.Context) error {
	running, err := s.Running(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		logger.Debugf("service %q not running", s.Name)
		return nil
	}
	if err := s.job(ctx, "stop", DBusAPI.StopUnitContext); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully stopped", s.Name)
	return nil
}

// Restart restarts the service, starting it if it is not running.
func (s *Service) Restart(ctx context.Context) error {
	if err := s.job(ctx, "restart", DBusAPI.RestartUnitContext); err != nil {
		return errors.Trace(err)
	}
	logger.Debugf("service %q successfully restarted", s.Name)
	return nil
}

type jobFunc func(conn DBusAPI, ctx context.Context, name, mode string, ch chan<- string) (int, error)

func (s *Service) job(ctx context.Context, op string, call jobFunc) error {
	conn, err := s.newConn(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	defer conn.Close()

	statusCh := make(chan string, 1)
	if _, err := call(conn, ctx, s.UnitName, "replace", statusCh); err != nil {
		return s.errorf(err, "dbus %s request failed", op)
	}
	return s.wait(ctx, op, statusCh)
}

func (s *Service) wait(ctx context.Context, op string, statusCh <-chan string) error {
	select {
	case status := <-statusCh:
		if status != "done" {
			return s.errorf(nil, "failed to %s (API status %q)", op, status)
		}
		return nil
	case <-ctx.Done():
		return s.errorf(ctx.Err(), "waiting to %s", op)
	}
}

// Remove disables the service and deletes its unit file. Removing a
// service that is not installed is a no-op.
func (s *Service) Remove(ctx context.Context) error {
	installed, err := s.Installed()
	if err != nil {
		return errors.Trace(err)
	}
	if !installed {
		logger.Debugf("service %q not installed", s.Name)
		return nil
	}

	if IsRunning() {
		conn, err := s.newConn(ctx)
		if err != nil {
			return errors.Trace(err)
		}
		defer conn.Close()

		if _, err := conn.DisableUnitFilesContext(ctx, []string{s.UnitName}, false); err != nil {
			return s.errorf(err, "dbus disable request failed")
		}
		if err := os.Remove(s.UnitPath()); err != nil && !os.IsNotExist(err) {
			return s.errorf(err, "failed to delete service unit file")
		}
		if err := conn.ReloadContext(ctx); err != nil {
			return s.errorf(err, "dbus post-disable daemon reload request failed")
		}
	} else if err := os.Remove(s.UnitPath()); err != nil && !os.IsNotExist(err) {
		return s.errorf(err, "failed to delete service unit file")
	}
	logger.Debugf("service %q successfully removed", s.Name)
	return nil
}
