// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"path/filepath"
)

const (
	// ServiceName is the name of the systemd service running the exporter.
	ServiceName = "ipmi_exporter"

	// User and Group the exporter runs as.
	User  = "ipmi_exporter"
	Group = "ipmi_exporter"

	// MetricsPath is the HTTP path the exporter serves metrics on.
	MetricsPath = "/metrics"
)

// freeipmiTools are the freeipmi commands the exporter may run through
// sudo.
var freeipmiTools = []string{
	"/usr/sbin/ipmimonitoring",
	"/usr/sbin/ipmi-sensors",
	"/usr/sbin/ipmi-dcmi",
	"/usr/sbin/ipmi-raw",
	"/usr/sbin/bmc-info",
	"/usr/sbin/ipmi-chassis",
	"/usr/sbin/ipmi-sel",
}

// Layout holds the locations of the files the charm manages on the
// host. Root is prepended to every path, and is "/" in production.
type Layout struct {
	Root string
}

// DefaultLayout is the layout of a real machine.
var DefaultLayout = Layout{Root: "/"}

func (l Layout) path(elem ...string) string {
	return filepath.Join(append([]string{l.Root}, elem...)...)
}

// BinaryPath is where the exporter executable is installed.
func (l Layout) BinaryPath() string {
	return l.path("usr", "bin", "ipmi_exporter")
}

// UnitDir is the directory the systemd unit is written to.
func (l Layout) UnitDir() string {
	return l.path("etc", "systemd", "system")
}

// SysconfigDir holds the environment file read by the unit.
func (l Layout) SysconfigDir() string {
	return l.path("etc", "sysconfig")
}

// SysconfigPath is the environment file read by the unit.
func (l Layout) SysconfigPath() string {
	return filepath.Join(l.SysconfigDir(), "ipmi_exporter")
}

// ConfigDir holds the exporter configuration.
func (l Layout) ConfigDir() string {
	return l.path("etc", "ipmi_exporter")
}

// ConfigPath is the exporter's module configuration file.
func (l Layout) ConfigPath() string {
	return filepath.Join(l.ConfigDir(), "ipmi_exporter.yaml")
}

// StateDir is the exporter's data directory.
func (l Layout) StateDir() string {
	return l.path("var", "lib", "ipmi_exporter")
}

// InstalledPath is written once Install has completed.
func (l Layout) InstalledPath() string {
	return filepath.Join(l.StateDir(), ".installed")
}

// TextfileDir is the directory for textfile collector output.
func (l Layout) TextfileDir() string {
	return filepath.Join(l.StateDir(), "textfile_collector")
}

// SudoersPath is the sudoers drop-in allowing the exporter to run the
// freeipmi tools.
func (l Layout) SudoersPath() string {
	return l.path("etc", "sudoers.d", "ipmi_exporter")
}
