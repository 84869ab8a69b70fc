// Package upgrader is the entry point of the upgrade command.
//
// It loads the settings, makes sure only one run is active on the machine,
// wires the release source, downloader, verifier, installer runner and cleanup
// manager over the platform capabilities and hands them to the orchestrator.
package upgrader
