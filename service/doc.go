// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// The service package provides abstractions and helpers for interacting
// with the charm-managed services in a host's init system.
package service
