package upgrade

// AssetDescriptor describes one installer required by a release.
type AssetDescriptor struct {
	// Name is the logical component name, e.g. "Git" or "Scalar".
	Name string
	// URL is the remote location of the installer.
	URL string
	// FileName is the local file name to store the installer under.
	FileName string
	// Signer is the identity expected to have signed the installer.
	Signer string
	// Signature is the detached signature bound to the installer contents.
	Signature []byte
	// SignatureURL locates the detached signature when it is not known up front.
	SignatureURL string
	// Checksum is an optional SHA-512 digest checked while writing the file.
	Checksum []byte
}

// ReleaseCandidate is a remote release eligible for installation.
type ReleaseCandidate struct {
	// Version is the release version.
	Version Version
	// Ring is the channel the release is published on.
	Ring Ring
	// Assets are the installers in install order.
	Assets []AssetDescriptor
}

// DownloadedAsset is an installer materialized on the local disk.
type DownloadedAsset struct {
	// Descriptor is the asset the file was downloaded for.
	Descriptor AssetDescriptor
	// Path is the local file location.
	Path string
}

// Name returns the logical component name of the asset.
func (a DownloadedAsset) Name() string {
	return a.Descriptor.Name
}

// InstallerInvocation is a single installer launch.
type InstallerInvocation struct {
	// Path is the installer executable.
	Path string
	// Args are the ordered command-line arguments.
	Args []string
}
