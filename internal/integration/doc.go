// Package integration runs the packager and the upgrader end to end over HTTP.
package integration
