// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

import (
	"compress/gzip"
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"
	"github.com/juju/utils/v4/tar"
	"github.com/juju/version/v2"
)

// InstallBinary downloads the release tarball for the version and
// architecture and installs the exporter executable from it.
func (e *Exporter) InstallBinary(ctx context.Context, v version.Number, arch string) error {
	url := ReleaseURL(v, arch)
	logger.Debugf("downloading %s", url)
	archive, err := e.config.Downloader.Download(ctx, url)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		_ = archive.Close()
		_ = os.Remove(archive.Name())
	}()

	tmpDir, err := os.MkdirTemp("", "charmtmp")
	if err != nil {
		return errors.Trace(err)
	}
	defer os.RemoveAll(tmpDir)

	gz, err := gzip.NewReader(archive)
	if err != nil {
		return errors.Annotatef(err, "reading %s", url)
	}
	defer gz.Close()
	logger.Debugf("extracting %s to %s", url, tmpDir)
	if err := tar.UntarFiles(gz, tmpDir); err != nil {
		return errors.Annotatef(err, "extracting %s", url)
	}

	source := filepath.Join(tmpDir, releaseDir(v, arch), "ipmi_exporter")
	data, err := os.ReadFile(source)
	if os.IsNotExist(err) {
		return errors.NotFoundf("ipmi_exporter in %s", url)
	} else if err != nil {
		return errors.Trace(err)
	}
	target := e.config.Layout.BinaryPath()
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.Trace(err)
	}
	if err := utils.AtomicWriteFile(target, data, 0755); err != nil {
		return errors.Annotatef(err, "installing %s", target)
	}
	logger.Infof("installed ipmi_exporter %s to %s", v, target)
	return nil
}
