// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package cosagent provides telemetry configuration to grafana-agent
// over the cos_agent interface.
package cosagent

import (
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
)

var logger = loggo.GetLogger("ipmiexporter.relation.cosagent")

const (
	// RelationName is the endpoint grafana-agent relates to.
	RelationName = "grafana-agent"

	// ConfigKey is the unit databag key holding the payload.
	ConfigKey = "config"
)

// Endpoint is a metrics endpoint served on the local host.
type Endpoint struct {
	Path string
	Port int
}

// StaticConfig lists scrape targets.
type StaticConfig struct {
	Targets []string `json:"targets"`
}

// ScrapeJob is a Prometheus scrape job definition.
type ScrapeJob struct {
	JobName       string         `json:"job_name"`
	MetricsPath   string         `json:"metrics_path"`
	StaticConfigs []StaticConfig `json:"static_configs"`
}

// Payload is the data published under ConfigKey.
type Payload struct {
	MetricsAlertRules RuleFile    `json:"metrics_alert_rules"`
	LogAlertRules     RuleFile    `json:"log_alert_rules"`
	Dashboards        []string    `json:"dashboards"`
	MetricsScrapeJobs []ScrapeJob `json:"metrics_scrape_jobs"`
	LogSlots          []string    `json:"log_slots"`
}

// Config holds what a Provider publishes.
type Config struct {
	Topology Topology

	// Assets holds the dashboards and rules, found in
	// DashboardsDir, MetricsRulesDir and LogRulesDir.
	Assets          fs.FS
	DashboardsDir   string
	MetricsRulesDir string
	LogRulesDir     string
}

// Validate returns an error if the config cannot be used.
func (c Config) Validate() error {
	if err := c.Topology.Validate(); err != nil {
		return errors.Annotate(err, "topology")
	}
	if c.Assets == nil {
		return errors.NotValidf("nil Assets")
	}
	return nil
}

// Provider publishes the telemetry configuration.
type Provider struct {
	ctx    jujuc.Context
	config Config
}

// NewProvider returns a Provider publishing through ctx.
func NewProvider(ctx jujuc.Context, config Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Provider{ctx: ctx, config: config}, nil
}

// Payload builds the data scraping the given endpoints.
func (p *Provider) Payload(endpoints ...Endpoint) (Payload, error) {
	metricsRules, err := LoadRules(p.config.Assets, p.config.MetricsRulesDir, p.config.Topology)
	if err != nil {
		return Payload{}, errors.Annotate(err, "loading metrics alert rules")
	}
	logRules, err := LoadRules(p.config.Assets, p.config.LogRulesDir, p.config.Topology)
	if err != nil {
		return Payload{}, errors.Annotate(err, "loading log alert rules")
	}
	dashboards, err := LoadDashboards(p.config.Assets, p.config.DashboardsDir)
	if err != nil {
		return Payload{}, errors.Annotate(err, "loading dashboards")
	}
	return Payload{
		MetricsAlertRules: metricsRules,
		LogAlertRules:     logRules,
		Dashboards:        dashboards,
		MetricsScrapeJobs: p.scrapeJobs(endpoints),
		// The exporter is not a snap, so there are no log slots.
		LogSlots: []string{},
	}, nil
}

func (p *Provider) scrapeJobs(endpoints []Endpoint) []ScrapeJob {
	jobs := make([]ScrapeJob, 0, len(endpoints))
	for i, endpoint := range endpoints {
		name := p.config.Topology.Application + "_default"
		if i > 0 {
			name = fmt.Sprintf("%s_%d", p.config.Topology.Application, i)
		}
		jobs = append(jobs, ScrapeJob{
			JobName:     name,
			MetricsPath: endpoint.Path,
			StaticConfigs: []StaticConfig{{
				Targets: []string{fmt.Sprintf("localhost:%d", endpoint.Port)},
			}},
		})
	}
	return jobs
}

// Update publishes the payload on every grafana-agent relation.
func (p *Provider) Update(endpoints ...Endpoint) error {
	ids, err := p.ctx.RelationIds(RelationName)
	if err != nil {
		return errors.Trace(err)
	}
	if len(ids) == 0 {
		logger.Debugf("no %s relation", RelationName)
		return nil
	}
	payload, err := p.Payload(endpoints...)
	if err != nil {
		return errors.Trace(err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		logger.Debugf("updating cos agent config on %s", id)
		if err := p.ctx.RelationSet(id, jujuc.Settings{ConfigKey: string(data)}); err != nil {
			return errors.Annotatef(err, "relation %s", id)
		}
	}
	return nil
}
