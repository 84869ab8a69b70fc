// Package version exposes build metadata of the upgrader binaries.
//
// Version, Commit and BuildTime are injected via Go ldflags. Short doubles as
// the installed version the upgrader compares with published releases.
package version
