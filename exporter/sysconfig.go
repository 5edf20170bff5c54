// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	_ "embed"
	"os"
	"strings"

	"github.com/flosch/pongo2"
	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/kballard/go-shellquote"
)

//go:embed templates/sysconfig.tmpl
var sysconfigTemplate string

var sysconfigTpl = pongo2.Must(pongo2.FromString(sysconfigTemplate))

// exporterArgs returns the command line flags the service passes to the
// exporter.
func (l Layout) exporterArgs(listenAddress string) []string {
	return []string{
		"--web.listen-address=" + listenAddress,
		"--config.file=" + l.ConfigPath(),
	}
}

// renderSysconfig returns the environment file for the listen address.
func (l Layout) renderSysconfig(listenAddress string) (string, error) {
	args := shellquote.Join(l.exporterArgs(listenAddress)...)
	// The value sits inside double quotes in the environment file.
	args = strings.ReplaceAll(args, `"`, `\"`)
	out, err := sysconfigTpl.Execute(pongo2.Context{"args": args})
	if err != nil {
		return "", errors.Annotate(err, "rendering sysconfig")
	}
	return out, nil
}

// RenderSysconfig writes the environment file read by the service and
// prepares the directories the exporter writes to.
func (e *Exporter) RenderSysconfig(listenAddress string) error {
	layout := e.config.Layout
	logger.Debugf("writing %s", layout.SysconfigPath())
	for _, dir := range []string{layout.SysconfigDir(), layout.TextfileDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Trace(err)
		}
	}
	if err := e.chown(layout.StateDir()); err != nil {
		return errors.Trace(err)
	}
	content, err := layout.renderSysconfig(listenAddress)
	if err != nil {
		return errors.Trace(err)
	}
	err = utils.AtomicWriteFile(layout.SysconfigPath(), []byte(content), 0644)
	return errors.Annotatef(err, "writing %s", layout.SysconfigPath())
}
