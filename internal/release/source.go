package release

import (
	"context"
	"regexp"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

// Release is a release as published by a source, before eligibility checks.
type Release struct {
	// Version is the raw version tag.
	Version string
	// Ring is the channel the release is published on.
	Ring upgrade.Ring
	// Files are the downloadable files attached to the release.
	Files []File
}

// File is one downloadable file of a release.
type File struct {
	// Name is the file name.
	Name string
	// URL is the absolute download location.
	URL string
	// Checksum is the optional SHA-512 digest.
	Checksum []byte
	// Signature is the detached signature when the source embeds it.
	Signature []byte
	// SignatureURL locates the detached signature when the source publishes it separately.
	SignatureURL string
}

// Source lists releases from a distribution host.
type Source interface {
	// Name is the human-readable host name used in user messages.
	Name() string
	// ListReleases returns every published release in no particular order.
	ListReleases(ctx context.Context) ([]Release, error)
}

// AssetRule binds a logical installer to the release files.
type AssetRule struct {
	// Name is the logical component name, e.g. "Git".
	Name string
	// Pattern selects the installer file by name.
	Pattern *regexp.Regexp
	// Signer is the identity expected to have signed the installer.
	Signer string
}
