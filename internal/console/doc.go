// Package console provides the user-facing output, warning and error channels
// of an upgrade run.
package console
