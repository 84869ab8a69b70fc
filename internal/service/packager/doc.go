// Package packager publishes Scalar releases for the upgrader.
//
// It signs installers with an ed25519 key, computes their checksums and adds
// the release to the manifest served from the update folder. It also creates
// signer key pairs.
package packager
