package cleanup

import (
	"context"
	"fmt"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/platform"
)

// DirectoryMessage is reported when the download directory of a run cannot be removed.
const DirectoryMessage = "Error deleting download directory."

// Manager deletes downloaded installers and the download directory of a run.
type Manager struct {
	// files removes the installer files and the run directory.
	files platform.FileSystem
}

// NewManager creates a manager over the filesystem capability.
func NewManager(files platform.FileSystem) *Manager {
	return &Manager{files: files}
}

// Delete removes the installer of asset. Failures are returned as
// *upgrade.Error of kind KindCleanup naming the asset.
func (m *Manager) Delete(ctx context.Context, asset upgrade.DownloadedAsset) error {
	if err := m.files.DeleteFile(asset.Path); err != nil {
		message := fmt.Sprintf("Error deleting downloaded %s installer.", asset.Name())

		return upgrade.NewError(upgrade.KindCleanup, asset.Name(), message, err)
	}

	logger.DebugKV(ctx, "Deleted installer", "asset", asset.Name(), "path", asset.Path)

	return nil
}

// DeleteDirectory removes the download directory of a run with anything left
// in it. Failures are returned as *upgrade.Error of kind KindCleanup.
func (m *Manager) DeleteDirectory(ctx context.Context, directory string) error {
	if err := m.files.DeleteDirectory(directory); err != nil {
		return upgrade.NewError(upgrade.KindCleanup, "", DirectoryMessage, err)
	}

	logger.DebugKV(ctx, "Deleted download directory", "path", directory)

	return nil
}
