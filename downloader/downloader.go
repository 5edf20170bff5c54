// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

// Package downloader fetches release archives over HTTP into temporary
// files.
package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"github.com/juju/retry"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("ipmiexporter.downloader")

// Status represents the status of a completed download.
// It is the receiver's responsibility to close and remove
// the file.
type Status struct {
	// URL holds the downloaded URL.
	URL string
	// Err describes any error encountered while downloading.
	Err error
	// File holds the file that the URL has downloaded to.
	File *os.File
}

// Config holds the settings of a Downloader.
type Config struct {
	// Client performs the requests. Defaults to http.DefaultClient.
	Client *http.Client
	// Clock is used for the delay between attempts.
	Clock clock.Clock
	// Attempts is the number of tries before giving up.
	Attempts int
	// Delay is the initial delay between attempts; it doubles each time.
	Delay time.Duration
	// TempDir is where downloads are written. Defaults to os.TempDir.
	TempDir string
}

// Downloader can download a file from the network.
type Downloader struct {
	config  Config
	current *downloadOne
	done    chan Status
}

// New returns a new Downloader instance.
// Nothing will be downloaded until Start is called.
func New(config Config) *Downloader {
	if config.Client == nil {
		config.Client = http.DefaultClient
	}
	if config.Clock == nil {
		config.Clock = clock.WallClock
	}
	if config.Attempts <= 0 {
		config.Attempts = 5
	}
	if config.Delay <= 0 {
		config.Delay = time.Second
	}
	return &Downloader{
		config: config,
		done:   make(chan Status),
	}
}

// Start requests that the given URL be downloaded.
//
// If Start is called while another download is already in progress, the
// previous download will be cancelled.
func (d *Downloader) Start(ctx context.Context, url string) {
	if d.current != nil {
		d.Stop()
	}
	one := &downloadOne{
		config: d.config,
		url:    url,
		done:   d.done,
	}
	one.tomb.Go(func() error {
		one.run(one.tomb.Context(ctx))
		return nil
	})
	d.current = one
}

// Stop stops any download that's in progress.
func (d *Downloader) Stop() {
	if d.current != nil {
		_ = d.current.stop()
		d.current = nil
	}
}

// Done returns a channel that receives a value when
// a file has been successfully downloaded.
func (d *Downloader) Done() <-chan Status {
	return d.done
}

// Download fetches url and waits for it to complete or for ctx to be
// done. The caller must close and remove the returned file.
func (d *Downloader) Download(ctx context.Context, url string) (*os.File, error) {
	d.Start(ctx, url)
	defer d.Stop()
	select {
	case status := <-d.Done():
		return status.File, status.Err
	case <-ctx.Done():
		return nil, errors.Annotatef(ctx.Err(), "downloading %q", url)
	}
}

// downloadOne runs a single download, retrying failed attempts.
type downloadOne struct {
	tomb   tomb.Tomb
	config Config
	done   chan Status
	url    string
}

func (d *downloadOne) stop() error {
	d.tomb.Kill(nil)
	return d.tomb.Wait()
}

func (d *downloadOne) run(ctx context.Context) {
	var file *os.File
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			var err error
			file, err = d.download(ctx)
			return err
		},
		IsFatalError: func(err error) bool {
			return errors.Is(err, errors.NotFound) || ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Warningf("download attempt %d of %q failed: %v", attempt, d.url, err)
		},
		Attempts:    d.config.Attempts,
		Delay:       d.config.Delay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       d.config.Clock,
		Stop:        d.tomb.Dying(),
	})
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		err = retry.LastError(err)
	}
	err = errors.Annotatef(err, "cannot download %q", d.url)
	status := Status{
		URL:  d.url,
		File: file,
		Err:  err,
	}
	// If we have been interrupted while downloading
	// then don't try to send the status.
	select {
	case <-d.tomb.Dying():
		if file != nil {
			cleanup(file)
		}
		return
	default:
	}
	select {
	case d.done <- status:
	case <-d.tomb.Dying():
		if file != nil {
			cleanup(file)
		}
	}
}

func (d *downloadOne) download(ctx context.Context) (file *os.File, err error) {
	tmpFile, err := os.CreateTemp(d.config.TempDir, "ipmi-exporter-download-")
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err != nil {
			cleanup(tmpFile)
		}
	}()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := d.config.Client.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.NotFoundf("%s", d.url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("bad http response %v", resp.Status)
	}
	n, err := io.Copy(tmpFile, resp.Body)
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("downloaded %s from %s", humanize.IBytes(uint64(n)), d.url)
	if _, err = tmpFile.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Trace(err)
	}
	return tmpFile, nil
}

func cleanup(f *os.File) {
	_ = f.Close()
	if err := os.Remove(f.Name()); err != nil {
		logger.Warningf("cannot remove temporary file: %v", err)
	}
}
