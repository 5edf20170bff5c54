// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// upMetric reports per collector whether the last scrape succeeded.
const upMetric = "ipmi_up"

// Health is the result of scraping the exporter.
type Health struct {
	// Families is the number of metric families served.
	Families int
	// DownCollectors names the collectors reporting a failed scrape.
	DownCollectors []string
}

// Healthy reports whether every collector succeeded.
func (h Health) Healthy() bool {
	return len(h.DownCollectors) == 0
}

// scrapeURL returns the metrics URL for a listen address. A wildcard
// host is reached over loopback.
func scrapeURL(listenAddress string) (string, error) {
	host, port, err := net.SplitHostPort(listenAddress)
	if err != nil {
		return "", errors.NotValidf("listen address %q", listenAddress)
	}
	if host == "" || net.ParseIP(host).IsUnspecified() {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s%s", net.JoinHostPort(host, port), MetricsPath), nil
}

// CheckHealth scrapes the exporter listening on listenAddress.
func CheckHealth(ctx context.Context, client *http.Client, listenAddress string) (Health, error) {
	url, err := scrapeURL(listenAddress)
	if err != nil {
		return Health{}, errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Health{}, errors.Trace(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return Health{}, errors.Annotate(err, "scraping exporter")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Health{}, errors.Errorf("scraping exporter: bad http response %v", resp.Status)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return Health{}, errors.Annotate(err, "parsing metrics")
	}
	if len(families) == 0 {
		return Health{}, errors.NotFoundf("metrics at %s", url)
	}
	return Health{
		Families:       len(families),
		DownCollectors: downCollectors(families[upMetric]),
	}, nil
}

func downCollectors(family *dto.MetricFamily) []string {
	if family == nil {
		return nil
	}
	down := set.NewStrings()
	for _, metric := range family.GetMetric() {
		if metric.GetGauge().GetValue() != 0 {
			continue
		}
		for _, label := range metric.GetLabel() {
			if label.GetName() == "collector" {
				down.Add(label.GetValue())
			}
		}
	}
	if down.IsEmpty() {
		return nil
	}
	return down.SortedValues()
}
