// Copyright 2024 Dwellir AB.
// See LICENSE file for licensing details.

package exporter

var (
	ParseVersion   = parseVersion
	ScrapeURL      = scrapeURL
	ReleaseArch    = releaseArch
	SudoersContent = sudoersContent
)

func RenderSysconfig(l Layout, listenAddress string) (string, error) {
	return l.renderSysconfig(listenAddress)
}
