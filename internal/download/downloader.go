package download

import (
	"context"
	"crypto"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/platform"

	// Ensure SHA512 available for checksum verification.
	_ "crypto/sha512"
)

const (
	// InstallerFileMode is applied to downloaded installers.
	InstallerFileMode os.FileMode = 0o755

	// ChecksumFunction is the hash of published installer checksums.
	ChecksumFunction crypto.Hash = crypto.SHA512

	// RunDirectoryPattern names the per-run directories inside the download directory.
	RunDirectoryPattern = "run-*"

	// maxSignatureBytes bounds the size of a detached signature file.
	maxSignatureBytes = 4 << 10
)

var (
	// errBadHTTPStatus is returned when the server does not answer with 200 OK.
	errBadHTTPStatus = errors.New("unexpected http status")
	// errEmptyDirectory is returned when no download directory is configured.
	errEmptyDirectory = errors.New("download directory is not set")
)

// Downloader fetches installers into a per-run directory.
type Downloader struct {
	// files creates the directory and removes partial files.
	files platform.FileSystem
	// client performs the HTTP requests.
	client *http.Client
	// directory is where installers are stored.
	directory string
	// sourceName names the release host in user messages.
	sourceName string
}

// NewDownloader creates a downloader storing installers in directory.
func NewDownloader(files platform.FileSystem, client *http.Client, directory, sourceName string) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}

	return &Downloader{
		files:      files,
		client:     client,
		directory:  directory,
		sourceName: sourceName,
	}
}

// PrepareDownloadDirectory creates a directory owned by one run inside the
// configured download directory and returns its path. The caller removes it.
// Failures are returned as *upgrade.Error of kind KindDownloadDirectory.
func (d *Downloader) PrepareDownloadDirectory(ctx context.Context) (string, error) {
	runDirectory, err := d.createRunDirectory()
	if err != nil {
		return "", upgrade.NewError(upgrade.KindDownloadDirectory, "", "Error creating download directory", err)
	}

	logger.DebugKV(ctx, "Prepared download directory", "path", runDirectory)

	return runDirectory, nil
}

// createRunDirectory makes sure the parent exists and creates a fresh run directory in it.
func (d *Downloader) createRunDirectory() (string, error) {
	if d.directory == "" {
		return "", errEmptyDirectory
	}

	if err := d.files.CreateDirectory(d.directory); err != nil {
		return "", err
	}

	return d.files.CreateTempDirectory(d.directory, RunDirectoryPattern)
}

// Download stores the installer of asset in directory together with its
// detached signature. Failures are returned as *upgrade.Error of kind
// KindAssetDownload naming the asset.
func (d *Downloader) Download(
	ctx context.Context,
	asset upgrade.AssetDescriptor,
	directory string,
) (upgrade.DownloadedAsset, error) {
	target := filepath.Join(directory, localFileName(asset))

	if err := d.fetchInstaller(ctx, asset, target); err != nil {
		return upgrade.DownloadedAsset{}, d.downloadError(asset, err)
	}

	if len(asset.Signature) == 0 && asset.SignatureURL != "" {
		signature, err := d.fetchSignature(ctx, asset.SignatureURL)
		if err != nil {
			_ = d.files.DeleteFile(target)

			return upgrade.DownloadedAsset{}, d.downloadError(asset, err)
		}

		asset.Signature = signature
	}

	logger.InfoKV(ctx, "Downloaded installer", "asset", asset.Name, "path", target)

	return upgrade.DownloadedAsset{
		Descriptor: asset,
		Path:       target,
	}, nil
}

// fetchInstaller streams the installer into target, verifying the checksum when known.
func (d *Downloader) fetchInstaller(ctx context.Context, asset upgrade.AssetDescriptor, target string) error {
	body, err := d.get(ctx, asset.URL)
	if err != nil {
		return err
	}

	defer func() {
		_ = body.Close()
	}()

	// go-update replaces an existing file, so the target has to exist first.
	placeholder, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_WRONLY, InstallerFileMode)
	if err != nil {
		return fmt.Errorf("create installer file: %w", err)
	}

	if err = placeholder.Close(); err != nil {
		return fmt.Errorf("close installer file: %w", err)
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: InstallerFileMode,
		Checksum:   asset.Checksum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(body, options); err != nil {
		_ = d.files.DeleteFile(target)

		return fmt.Errorf("write installer: %w", err)
	}

	// Windows keeps the replaced placeholder as a hidden file.
	oldFileName := filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".old")
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// fetchSignature downloads a base64-encoded detached signature.
func (d *Downloader) fetchSignature(ctx context.Context, signatureURL string) ([]byte, error) {
	body, err := d.get(ctx, signatureURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = body.Close()
	}()

	encoded, err := io.ReadAll(io.LimitReader(body, maxSignatureBytes))
	if err != nil {
		return nil, fmt.Errorf("read signature: %w", err)
	}

	signature, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}

	return signature, nil
}

// get performs a GET request and returns the body of a 200 OK answer.
func (d *Downloader) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	response, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		_ = response.Body.Close()

		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return response.Body, nil
}

// downloadError tags err as a download failure of asset.
func (d *Downloader) downloadError(asset upgrade.AssetDescriptor, err error) *upgrade.Error {
	message := fmt.Sprintf("Error downloading %s from %s", asset.Name, d.sourceName)

	return upgrade.NewError(upgrade.KindAssetDownload, asset.Name, message, err)
}

// localFileName returns a file name safe to join with the download directory.
func localFileName(asset upgrade.AssetDescriptor) string {
	name := filepath.Base(filepath.Clean("/" + asset.FileName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return asset.Name
	}

	return name
}
