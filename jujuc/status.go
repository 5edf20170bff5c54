// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package jujuc

import (
	"github.com/juju/errors"
)

// Status is a workload status a charm may set.
type Status string

const (
	StatusMaintenance Status = "maintenance"
	StatusBlocked     Status = "blocked"
	StatusWaiting     Status = "waiting"
	StatusActive      Status = "active"
)

var validStatus = []Status{
	StatusMaintenance,
	StatusBlocked,
	StatusWaiting,
	StatusActive,
}

// Validate returns an error if the status cannot be set by a charm.
func (s Status) Validate() error {
	for _, valid := range validStatus {
		if s == valid {
			return nil
		}
	}
	return errors.NotValidf("status %q, expected one of %v;", s, validStatus)
}
