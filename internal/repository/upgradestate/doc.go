// Package upgradestate persists the newest release found by the last upgrade
// check, so other commands can tell the user an upgrade is waiting.
package upgradestate
