package orchestrator

import (
	"context"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

// PrerequisiteChecker reports running processes that block installation.
type PrerequisiteChecker interface {
	CheckBlockingProcesses(ctx context.Context) ([]string, error)
}

// ReleaseFetcher finds the newest eligible release, nil when up to date.
type ReleaseFetcher interface {
	GetUpgradeCandidate(ctx context.Context, local upgrade.Version, ring upgrade.Ring) (*upgrade.ReleaseCandidate, error)
}

// AssetDownloader materializes installers locally.
type AssetDownloader interface {
	PrepareDownloadDirectory(ctx context.Context) (string, error)
	Download(ctx context.Context, asset upgrade.AssetDescriptor, directory string) (upgrade.DownloadedAsset, error)
}

// SignatureVerifier checks a downloaded installer.
type SignatureVerifier interface {
	Verify(ctx context.Context, asset upgrade.DownloadedAsset) error
}

// InstallerRunner runs a downloaded installer. A non-zero exit code is a failed
// installation even when no error is returned.
type InstallerRunner interface {
	Install(ctx context.Context, asset upgrade.DownloadedAsset) (int, error)
}

// CleanupManager deletes downloaded installers and the download directory of a run.
type CleanupManager interface {
	Delete(ctx context.Context, asset upgrade.DownloadedAsset) error
	DeleteDirectory(ctx context.Context, directory string) error
}

// AvailabilityRecorder remembers the newest release found by the last check.
// A nil candidate means the installation is up to date.
type AvailabilityRecorder interface {
	Record(ctx context.Context, candidate *upgrade.ReleaseCandidate) error
}

// Components are the collaborators of a run. Recorder is optional.
type Components struct {
	Prerequisites PrerequisiteChecker
	Fetcher       ReleaseFetcher
	Downloader    AssetDownloader
	Verifier      SignatureVerifier
	Installer     InstallerRunner
	Cleanup       CleanupManager
	Recorder      AvailabilityRecorder
}

// Settings are the per-installation inputs of a run.
type Settings struct {
	// InstalledVersion is the locally installed version, zero when unknown.
	InstalledVersion upgrade.Version
	// Ring is the configured distribution channel.
	Ring upgrade.Ring
	// RerunCommand is shown to the user when the run is blocked.
	RerunCommand string
}
