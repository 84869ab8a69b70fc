// Package config defines the upgrader settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the ring, the release source, the installer assets with
// their trusted signers and the local folders used by a run.
package config
