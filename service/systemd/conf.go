// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package systemd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/coreos/go-systemd/v22/unit"
	"github.com/juju/errors"

	"github.com/dwellir/prometheus-ipmi-exporter-operator/service/common"
)

const (
	defaultRestart  = "on-failure"
	defaultWantedBy = "multi-user.target"
)

// serialize renders conf as the content of a systemd unit file.
func serialize(conf common.Conf) ([]byte, error) {
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}

	var opts []*unit.UnitOption
	opts = append(opts, unit.NewUnitOption("Unit", "Description", conf.Desc))
	if len(conf.After) > 0 {
		opts = append(opts, unit.NewUnitOption("Unit", "After", strings.Join(conf.After, " ")))
		opts = append(opts, unit.NewUnitOption("Unit", "Wants", strings.Join(conf.After, " ")))
	}

	if conf.User != "" {
		opts = append(opts, unit.NewUnitOption("Service", "User", conf.User))
	}
	if conf.Group != "" {
		opts = append(opts, unit.NewUnitOption("Service", "Group", conf.Group))
	}
	if conf.EnvironmentFile != "" {
		opts = append(opts, unit.NewUnitOption("Service", "EnvironmentFile", conf.EnvironmentFile))
	}
	for _, key := range sortedKeys(conf.Env) {
		value := fmt.Sprintf("%q", key+"="+conf.Env[key])
		opts = append(opts, unit.NewUnitOption("Service", "Environment", value))
	}
	for _, key := range sortedKeys(conf.Limit) {
		name := "Limit" + strings.ToUpper(key)
		opts = append(opts, unit.NewUnitOption("Service", name, conf.Limit[key]))
	}
	opts = append(opts, unit.NewUnitOption("Service", "ExecStart", conf.Cmd))
	restart := conf.Restart
	if restart == "" {
		restart = defaultRestart
	}
	opts = append(opts, unit.NewUnitOption("Service", "Restart", restart))

	wantedBy := conf.WantedBy
	if wantedBy == "" {
		wantedBy = defaultWantedBy
	}
	opts = append(opts, unit.NewUnitOption("Install", "WantedBy", wantedBy))

	data, err := io.ReadAll(unit.Serialize(opts))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
