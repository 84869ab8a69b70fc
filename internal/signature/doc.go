// Package signature checks that a downloaded installer was signed by a
// trusted publisher and that its contents match the signed hash.
//
// A signature is an ed25519 signature over the SHA-256 digest of the file.
// Signer identities map to 32-byte public keys given as hex strings.
package signature
