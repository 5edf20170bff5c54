// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package assets holds the dashboards and alert rules shipped to the
// observability stack.
package assets

import "embed"

//go:embed grafana_dashboards prometheus_alert_rules loki_alert_rules
var FS embed.FS

// Directories within FS.
const (
	DashboardsDir   = "grafana_dashboards"
	MetricsRulesDir = "prometheus_alert_rules"
	LogRulesDir     = "loki_alert_rules"
)
