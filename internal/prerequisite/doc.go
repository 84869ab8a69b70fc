// Package prerequisite detects running processes that would conflict with
// installing a new release.
package prerequisite
