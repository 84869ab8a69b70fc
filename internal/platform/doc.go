// Package platform provides the operating system capabilities the upgrade
// pipeline depends on: process enumeration, process execution and scoped
// filesystem operations.
//
// Capabilities bundles them so the orchestrator is parameterized by a platform
// at construction time. OS returns the bundle backed by the running system.
package platform
