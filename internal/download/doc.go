// Package download materializes release installers on the local disk.
//
// Installers are written with go-update so a partially transferred or
// corrupted file never appears under its final name. When the release
// publishes a SHA-512 checksum it is verified while writing.
package download
