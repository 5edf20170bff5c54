// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package cosagent

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"io/fs"
	"path"

	"github.com/juju/errors"
	"github.com/ulikunitz/xz"
)

// EncodeDashboard compresses a dashboard with xz and encodes it as
// base64, the form grafana-agent expects on the relation.
func EncodeDashboard(dashboard []byte) (string, error) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return "", errors.Trace(err)
	}
	if _, err := w.Write(dashboard); err != nil {
		return "", errors.Trace(err)
	}
	if err := w.Close(); err != nil {
		return "", errors.Trace(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDashboard reverses EncodeDashboard.
func DecodeDashboard(encoded string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Trace(err)
	}
	r, err := xz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errors.Trace(err)
	}
	data, err := io.ReadAll(r)
	return data, errors.Trace(err)
}

// LoadDashboards reads and encodes every .json dashboard below dir,
// rejecting files that are not valid JSON. A missing dir yields no
// dashboards.
func LoadDashboards(fsys fs.FS, dir string) ([]string, error) {
	dashboards := []string{}
	err := fs.WalkDir(fsys, dir, func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(name) != ".json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return errors.Trace(err)
		}
		if !json.Valid(data) {
			return errors.NotValidf("dashboard %s", name)
		}
		encoded, err := EncodeDashboard(data)
		if err != nil {
			return errors.Annotatef(err, "encoding %s", name)
		}
		dashboards = append(dashboards, encoded)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debugf("no dashboards in %s", dir)
		return dashboards, nil
	}
	return dashboards, errors.Trace(err)
}
