// Package release finds the newest release an installation is eligible for.
//
// Releases come from a Source: either a YAML release manifest published on an
// HTTP folder (see the packager) or the GitHub Releases API. The Fetcher
// applies the ring gate and the installed version, then maps the chosen
// release's files onto the configured installer assets.
package release
