// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package service

import (
	"context"
)

// These are the names of the supported init systems.
const (
	InitSystemSystemd = "systemd"
)

// Service represents a service in the init system running on a host.
type Service interface {
	// Install installs the service and enables it at boot.
	Install(ctx context.Context) error
	// Start starts the service.
	Start(ctx context.Context) error
	// Stop stops the service.
	Stop(ctx context.Context) error
	// Restart restarts the service.
	Restart(ctx context.Context) error
	// Running returns whether the service is active.
	Running(ctx context.Context) (bool, error)
	// Remove disables the service and deletes its definition.
	Remove(ctx context.Context) error
}
