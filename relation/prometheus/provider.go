// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package prometheus publishes the exporter as a scrape target on the
// prometheus relation.
package prometheus

import (
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/jujuc"
)

var logger = loggo.GetLogger("ipmiexporter.relation.prometheus")

const (
	// RelationName is the endpoint prometheus relates to.
	RelationName = "prometheus"

	ingressAddressKey = "ingress-address"
	hostnameKey       = "hostname"
	portKey           = "port"
	metricsPathKey    = "metrics_path"
)

// Provider publishes the scrape target of the local unit.
type Provider struct {
	ctx         jujuc.Context
	metricsPath string
}

// NewProvider returns a Provider publishing targets served on
// metricsPath.
func NewProvider(ctx jujuc.Context, metricsPath string) *Provider {
	return &Provider{ctx: ctx, metricsPath: metricsPath}
}

// SetHostPort writes the unit's address, the exporter port and the
// metrics path to every prometheus relation. Relations where the unit
// has no ingress address yet are skipped.
func (p *Provider) SetHostPort(port int) error {
	ids, err := p.ctx.RelationIds(RelationName)
	if err != nil {
		return errors.Trace(err)
	}
	for _, id := range ids {
		if err := p.setHostPort(id, port); err != nil {
			return errors.Annotatef(err, "relation %s", id)
		}
	}
	return nil
}

func (p *Provider) setHostPort(relationId string, port int) error {
	local, err := p.ctx.RelationGet(relationId, p.ctx.UnitName(), false)
	if err != nil {
		return errors.Trace(err)
	}
	host := local[ingressAddressKey]
	if host == "" {
		logger.Debugf("no ingress address on %s yet", relationId)
		return nil
	}
	logger.Debugf("setting host and port in prometheus %s:%d", host, port)
	return errors.Trace(p.ctx.RelationSet(relationId, jujuc.Settings{
		hostnameKey:    host,
		portKey:        strconv.Itoa(port),
		metricsPathKey: p.metricsPath,
	}))
}
