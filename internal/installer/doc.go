// Package installer runs downloaded installers unattended.
//
// Every installer receives the same fixed silent-install flags plus a
// per-asset log file. In dry-run mode the invocation is built and logged but
// never executed.
package installer
