// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package operator

import (
	"fmt"
	"strings"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// reconcilePorts leaves only the exporter port open. A zero port closes
// every TCP port the unit opened.
func (o *Operator) reconcilePorts(port int) error {
	opened, err := o.ctx.OpenedPorts()
	if err != nil {
		return errors.Trace(err)
	}
	want := set.NewStrings()
	if port != 0 {
		want.Add(fmt.Sprintf("%d/tcp", port))
	}
	have := set.NewStrings()
	for _, p := range opened {
		if strings.HasSuffix(p, "/tcp") {
			have.Add(p)
		}
	}
	for _, p := range have.Difference(want).SortedValues() {
		logger.Debugf("closing port %s", p)
		if err := o.ctx.ClosePort(p); err != nil {
			return errors.Trace(err)
		}
	}
	for _, p := range want.Difference(have).SortedValues() {
		logger.Debugf("opening port %s", p)
		if err := o.ctx.OpenPort(p); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
