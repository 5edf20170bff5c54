// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package apt queries and installs Debian packages on the host.
package apt

import (
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/runner"
)

var logger = loggo.GetLogger("ipmiexporter.packaging.apt")

// This is the default apt-get command used in cloud-init, the various
// settings mean that apt won't actually block waiting for a prompt from
// the user.
var aptGetCommand = []string{
	"--option=Dpkg::Options::=--force-confold",
	"--option=Dpkg::options::=--force-unsafe-io", "--assume-yes", "--quiet",
}

// EnvOptions are the environment variables apt-get needs so it does not
// prompt the user.
var EnvOptions = []string{"DEBIAN_FRONTEND=noninteractive", "APT_LISTCHANGES_FRONTEND=none"}

// aptLockedCode is the exit code apt-get returns when it cannot take the
// dpkg lock, usually because unattended-upgrades is running.
const aptLockedCode = 100

// PackageManager installs packages with apt-get.
type PackageManager struct {
	runner   runner.Runner
	clock    clock.Clock
	attempts int
	delay    time.Duration
}

// NewPackageManager returns a PackageManager running commands with r,
// which should carry EnvOptions in its environment.
func NewPackageManager(r runner.Runner, clk clock.Clock) *PackageManager {
	return &PackageManager{
		runner:   r,
		clock:    clk,
		attempts: 30,
		delay:    10 * time.Second,
	}
}

// Installed reports whether pkg is installed.
func (m *PackageManager) Installed(pkg string) (bool, error) {
	out, err := runner.Output(m.runner, "dpkg-query", "--show", "--showformat=${db:Status-Status}", pkg)
	if runner.IsExitError(err) {
		// dpkg-query exits 1 for packages it has never heard of.
		return false, nil
	} else if err != nil {
		return false, errors.Trace(err)
	}
	return strings.TrimSpace(string(out)) == "installed", nil
}

// Install installs the given packages, retrying while the dpkg lock is
// held by another process.
func (m *PackageManager) Install(packages ...string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append(append([]string(nil), aptGetCommand...), "install")
	args = append(args, packages...)
	logger.Infof("installing %s", strings.Join(packages, ", "))
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			_, err := runner.Output(m.runner, "apt-get", args...)
			return err
		},
		IsFatalError: func(err error) bool {
			return runner.ExitCode(err) != aptLockedCode
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("apt-get install attempt %d: %v", attempt, err)
		},
		Attempts: m.attempts,
		Delay:    m.delay,
		Clock:    m.clock,
	})
	if retry.IsAttemptsExceeded(err) {
		err = retry.LastError(err)
	}
	return errors.Annotatef(err, "installing %s", strings.Join(packages, ", "))
}

// EnsureInstalled installs any of the packages that are missing.
func (m *PackageManager) EnsureInstalled(packages ...string) error {
	var missing []string
	for _, pkg := range packages {
		installed, err := m.Installed(pkg)
		if err != nil {
			return errors.Trace(err)
		}
		if installed {
			logger.Debugf("%s already installed", pkg)
			continue
		}
		missing = append(missing, pkg)
	}
	return errors.Trace(m.Install(missing...))
}
