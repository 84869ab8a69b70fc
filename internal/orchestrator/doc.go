// Package orchestrator sequences an upgrade run.
//
// The Orchestrator drives the prerequisite check, the release lookup, the
// download, signature verification, installation and cleanup stages through an
// explicit state machine. Any fatal stage failure ends the run in Failed with
// ReturnCodeGenericError. Cleanup runs for every downloaded installer on every
// path and its failures are reported without changing the return code.
//
// Every collaborator is an interface, so a run is parameterized by the
// components (and the platform capabilities behind them) given to New.
package orchestrator
