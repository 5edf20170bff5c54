// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package operator implements the charm's response to each hook.
package operator

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/version/v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/charm"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/exporter"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/hook"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/relation/cosagent"
	"github.com/dwellir/prometheus-ipmi-exporter-operator/relation/prometheus"
)

var logger = loggo.GetLogger("ipmiexporter.operator")

// Exporter manages the exporter workload.
type Exporter interface {
	Install(ctx context.Context, args exporter.InstallArgs) error
	Installed() (bool, error)
	InstallBinary(ctx context.Context, v version.Number, arch string) error
	RenderSysconfig(listenAddress string) error
	Start(ctx context.Context) error
	Restart(ctx context.Context) error
	Running(ctx context.Context) (bool, error)
	Uninstall(ctx context.Context) error
	Version() (version.Number, error)
}

// ScrapeTargetProvider publishes the exporter to prometheus.
type ScrapeTargetProvider interface {
	SetHostPort(port int) error
}

// TelemetryProvider publishes scrape jobs, rules and dashboards to
// grafana-agent.
type TelemetryProvider interface {
	Update(endpoints ...cosagent.Endpoint) error
}

// HealthChecker scrapes the exporter listening on listenAddress.
type HealthChecker func(ctx context.Context, listenAddress string) (exporter.Health, error)

// Config holds the dependencies of an Operator.
type Config struct {
	Context     jujuc.Context
	Options     *charm.Config
	Exporter    Exporter
	Prometheus  ScrapeTargetProvider
	COSAgent    TelemetryProvider
	CheckHealth HealthChecker
	// Arch is the release architecture to install.
	Arch string
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if c.Context == nil {
		return errors.NotValidf("nil Context")
	}
	if c.Options == nil {
		return errors.NotValidf("nil Options")
	}
	if c.Exporter == nil {
		return errors.NotValidf("nil Exporter")
	}
	if c.Prometheus == nil {
		return errors.NotValidf("nil Prometheus")
	}
	if c.COSAgent == nil {
		return errors.NotValidf("nil COSAgent")
	}
	if c.CheckHealth == nil {
		return errors.NotValidf("nil CheckHealth")
	}
	if c.Arch == "" {
		return errors.NotValidf("empty Arch")
	}
	return nil
}

// Operator runs hooks for a unit of the charm.
type Operator struct {
	config Config
	ctx    jujuc.Context
}

// New returns an Operator.
func New(config Config) (*Operator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Operator{config: config, ctx: config.Context}, nil
}

type handler func(o *Operator, ctx context.Context, info hook.Info) error

var unitHandlers = map[hook.Kind]handler{
	hook.Install:       (*Operator).install,
	hook.Start:         (*Operator).start,
	hook.Stop:          (*Operator).stop,
	hook.ConfigChanged: (*Operator).configChanged,
	hook.UpgradeCharm:  (*Operator).upgradeCharm,
	hook.UpdateStatus:  (*Operator).updateStatus,
}

var relationHandlers = map[string]map[hook.Kind]handler{
	prometheus.RelationName: {
		hook.RelationCreated: (*Operator).publishScrapeTarget,
		hook.RelationJoined:  (*Operator).publishScrapeTarget,
	},
	cosagent.RelationName: {
		hook.RelationCreated: (*Operator).publishTelemetry,
		hook.RelationJoined:  (*Operator).publishTelemetry,
		hook.RelationChanged: (*Operator).publishTelemetry,
	},
}

// Run handles the hook described by info. Hooks the charm does not
// act on succeed without doing anything.
func (o *Operator) Run(ctx context.Context, info hook.Info) error {
	if err := info.Validate(); err != nil {
		return errors.Trace(err)
	}
	var h handler
	if info.Kind.IsRelation() {
		h = relationHandlers[info.RelationName][info.Kind]
	} else {
		h = unitHandlers[info.Kind]
	}
	if h == nil {
		logger.Debugf("ignoring %s hook", info.Name())
		return nil
	}
	logger.Infof("running %s hook", info.Name())
	return errors.Annotatef(h(o, ctx, info), "%s hook", info.Name())
}

// settings reads and validates the charm configuration. Invalid
// configuration blocks the unit and is reported as ok=false.
func (o *Operator) settings() (_ charm.ExporterSettings, ok bool, _ error) {
	raw, err := o.ctx.ConfigGet()
	if err != nil {
		return charm.ExporterSettings{}, false, errors.Trace(err)
	}
	settings, err := o.config.Options.ValidateSettings(raw)
	if err == nil {
		var s charm.ExporterSettings
		if s, err = charm.NewExporterSettings(settings); err == nil {
			return s, true, nil
		}
	}
	if !errors.Is(err, errors.NotValid) {
		return charm.ExporterSettings{}, false, errors.Trace(err)
	}
	logger.Warningf("invalid configuration: %v", err)
	if err := o.setStatus(jujuc.StatusBlocked, "invalid config: "+err.Error()); err != nil {
		return charm.ExporterSettings{}, false, errors.Trace(err)
	}
	return charm.ExporterSettings{}, false, nil
}

func (o *Operator) setStatus(status jujuc.Status, message string) error {
	logger.Debugf("status %s: %s", status, message)
	return errors.Trace(o.ctx.StatusSet(status, message))
}

func (o *Operator) install(ctx context.Context, _ hook.Info) error {
	if err := o.setStatus(jujuc.StatusMaintenance, "Installing ipmi-exporter"); err != nil {
		return errors.Trace(err)
	}
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.Install(ctx, o.installArgs(settings)); err != nil {
		return errors.Trace(err)
	}
	if err := o.setWorkloadVersion(); err != nil {
		return errors.Trace(err)
	}
	if err := o.reconcilePorts(settings.Port()); err != nil {
		return errors.Trace(err)
	}
	return o.setStatus(jujuc.StatusActive, "ipmi-exporter installed")
}

func (o *Operator) installArgs(settings charm.ExporterSettings) exporter.InstallArgs {
	return exporter.InstallArgs{
		Version:       settings.ExporterVersion,
		Arch:          o.config.Arch,
		ListenAddress: settings.ListenAddress,
	}
}

// ensureInstalled completes an installation that the install hook did
// not finish, or else installs the configured release if it is not
// the one on disk.
func (o *Operator) ensureInstalled(ctx context.Context, settings charm.ExporterSettings) error {
	installed, err := o.config.Exporter.Installed()
	if err != nil {
		return errors.Trace(err)
	}
	if installed {
		return errors.Trace(o.ensureVersion(ctx, settings.ExporterVersion))
	}
	logger.Infof("ipmi-exporter is not installed, installing %s", settings.ExporterVersion)
	if err := o.setStatus(jujuc.StatusMaintenance, "Installing ipmi-exporter"); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.Install(ctx, o.installArgs(settings)); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(o.setWorkloadVersion())
}

func (o *Operator) upgradeCharm(ctx context.Context, _ hook.Info) error {
	if err := o.setStatus(jujuc.StatusMaintenance, "Upgrading ipmi-exporter"); err != nil {
		return errors.Trace(err)
	}
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	if err := o.ensureInstalled(ctx, settings); err != nil {
		return errors.Trace(err)
	}
	if err := o.setWorkloadVersion(); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.COSAgent.Update(endpoint(settings)); err != nil {
		return errors.Trace(err)
	}
	return o.setStatus(jujuc.StatusActive, "ipmi-exporter upgraded")
}

func (o *Operator) configChanged(ctx context.Context, _ hook.Info) error {
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	if err := o.ensureInstalled(ctx, settings); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.RenderSysconfig(settings.ListenAddress); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.Restart(ctx); err != nil {
		return errors.Trace(err)
	}
	if err := o.reconcilePorts(settings.Port()); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Prometheus.SetHostPort(settings.Port()); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.COSAgent.Update(endpoint(settings)); err != nil {
		return errors.Trace(err)
	}
	return o.setStatus(jujuc.StatusActive, "ipmi-exporter configured")
}

// ensureVersion reinstalls the binary when the configured release
// differs from the installed one.
func (o *Operator) ensureVersion(ctx context.Context, want version.Number) error {
	have, err := o.config.Exporter.Version()
	switch {
	case err != nil:
		logger.Infof("installing ipmi_exporter %s (installed version unknown: %v)", want, err)
	case have == want:
		return nil
	default:
		logger.Infof("installing ipmi_exporter %s (have %s)", want, have)
	}
	if err := o.setStatus(jujuc.StatusMaintenance, fmt.Sprintf("Installing ipmi-exporter %s", want)); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.InstallBinary(ctx, want, o.config.Arch); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(o.setWorkloadVersion())
}

func (o *Operator) start(ctx context.Context, _ hook.Info) error {
	installed, err := o.config.Exporter.Installed()
	if err != nil {
		return errors.Trace(err)
	}
	if !installed {
		// config-changed installs once the configuration is valid.
		logger.Infof("ipmi-exporter is not installed, not starting")
		return nil
	}
	if err := o.config.Exporter.Start(ctx); err != nil {
		return errors.Trace(err)
	}
	return o.setStatus(jujuc.StatusActive, "ipmi-exporter started")
}

func (o *Operator) stop(ctx context.Context, _ hook.Info) error {
	if err := o.setStatus(jujuc.StatusMaintenance, "Removing ipmi-exporter"); err != nil {
		return errors.Trace(err)
	}
	if err := o.config.Exporter.Uninstall(ctx); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(o.reconcilePorts(0))
}

func (o *Operator) updateStatus(ctx context.Context, _ hook.Info) error {
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	running, err := o.config.Exporter.Running(ctx)
	if err != nil {
		return errors.Trace(err)
	}
	if !running {
		return o.setStatus(jujuc.StatusBlocked, "ipmi-exporter not running")
	}
	health, err := o.config.CheckHealth(ctx, settings.ListenAddress)
	if err != nil {
		logger.Warningf("health check failed: %v", err)
		return o.setStatus(jujuc.StatusBlocked, "ipmi-exporter not responding")
	}
	if !health.Healthy() {
		return o.setStatus(jujuc.StatusBlocked,
			"ipmi-exporter collectors failing: "+strings.Join(health.DownCollectors, ", "))
	}
	return o.setStatus(jujuc.StatusActive, "ipmi-exporter running")
}

func (o *Operator) publishScrapeTarget(_ context.Context, _ hook.Info) error {
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	return errors.Trace(o.config.Prometheus.SetHostPort(settings.Port()))
}

func (o *Operator) publishTelemetry(_ context.Context, _ hook.Info) error {
	settings, ok, err := o.settings()
	if !ok {
		return errors.Trace(err)
	}
	return errors.Trace(o.config.COSAgent.Update(endpoint(settings)))
}

func (o *Operator) setWorkloadVersion() error {
	v, err := o.config.Exporter.Version()
	if err != nil {
		return errors.Annotate(err, "reading ipmi_exporter version")
	}
	return errors.Trace(o.ctx.ApplicationVersionSet(v.String()))
}

func endpoint(settings charm.ExporterSettings) cosagent.Endpoint {
	return cosagent.Endpoint{Path: exporter.MetricsPath, Port: settings.Port()}
}
