package packager

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/download"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/release"
	"github.com/oshokin/scalar-upgrader/internal/signature"
)

const (
	// SignatureExtension is appended to an installer name for its detached signature.
	SignatureExtension = ".sig"

	// DefaultFileMode is applied to published files.
	DefaultFileMode os.FileMode = 0o644

	// folderPermissions is applied to a created update folder.
	folderPermissions os.FileMode = 0o750
)

var (
	// errNoFiles is returned when nothing is published.
	errNoFiles = errors.New("no installer files provided")
	// errNoFolder is returned when the update folder is not set.
	errNoFolder = errors.New("update folder is not set")
	// errDisabledRing is returned when publishing to the none ring.
	errDisabledRing = errors.New("releases cannot be published to the none ring")
)

// Options contains inputs for the publish entry point.
type Options struct {
	// Folder is the local update folder holding the manifest and installers.
	Folder string
	// Version is the semantic version of the release.
	Version string
	// Ring is the channel the release is published on.
	Ring string
	// KeyPath is the file holding the hex ed25519 private key of the signer.
	KeyPath string
	// Files are the installer paths in install order.
	Files []string
}

// packager adds one release to the manifest of an update folder.
// It is unexported, callers should use Run, which encapsulates setup and validation.
type packager struct {
	// opts are the validated inputs.
	opts *Options
	// version is the parsed release version.
	version upgrade.Version
	// ring is the parsed release ring.
	ring upgrade.Ring
	// key signs the installers.
	key ed25519.PrivateKey
	// manifestPath is where the manifest is stored.
	manifestPath string
}

// Run executes the publishing workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "scalar-packager")

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = pkg.run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newPackager validates the inputs and loads the signing key.
func newPackager(opts *Options) (*packager, error) {
	if opts.Folder == "" {
		return nil, errNoFolder
	}

	if len(opts.Files) == 0 {
		return nil, errNoFiles
	}

	parsedVersion, err := upgrade.ParseVersion(opts.Version)
	if err != nil {
		return nil, err
	}

	ring, err := upgrade.ParseRing(opts.Ring)
	if err != nil {
		return nil, err
	}

	if ring == upgrade.RingNone {
		return nil, errDisabledRing
	}

	encodedKey, err := os.ReadFile(filepath.Clean(opts.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}

	key, err := signature.ParsePrivateKey(string(encodedKey))
	if err != nil {
		return nil, err
	}

	return &packager{
		opts:         opts,
		version:      parsedVersion,
		ring:         ring,
		key:          key,
		manifestPath: filepath.Join(opts.Folder, release.ManifestFilename),
	}, nil
}

// run signs the installers and writes the manifest.
func (p *packager) run(ctx context.Context) error {
	if err := os.MkdirAll(p.opts.Folder, folderPermissions); err != nil {
		return fmt.Errorf("create update folder: %w", err)
	}

	manifest, err := p.loadManifest()
	if err != nil {
		return err
	}

	entry := release.ManifestRelease{
		Version: p.version.String(),
		Ring:    p.ring.String(),
		Files:   make([]release.ManifestFile, 0, len(p.opts.Files)),
	}

	for _, path := range p.opts.Files {
		logger.InfoKV(ctx, "Publishing installer", "path", path)

		file, publishErr := p.publishFile(path)
		if publishErr != nil {
			return publishErr
		}

		entry.Files = append(entry.Files, file)
	}

	p.upsert(ctx, manifest, entry)

	logger.InfoKV(ctx, "Saving release manifest", "path", p.manifestPath)

	contents, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	if err = os.WriteFile(p.manifestPath, contents, DefaultFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	p.printNextSteps(ctx, entry)

	return nil
}

// loadManifest reads the existing manifest, a missing one starts empty.
func (p *packager) loadManifest() (*release.Manifest, error) {
	contents, err := os.ReadFile(p.manifestPath)
	if errors.Is(err, os.ErrNotExist) {
		return new(release.Manifest), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	manifest := new(release.Manifest)
	if err = yaml.Unmarshal(contents, manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return manifest, nil
}

// publishFile copies the installer into the folder, signs it and writes the detached signature.
func (p *packager) publishFile(path string) (release.ManifestFile, error) {
	name := filepath.Base(path)
	target := filepath.Join(p.opts.Folder, name)

	if err := copyFile(path, target); err != nil {
		return release.ManifestFile{}, err
	}

	checksum, err := download.FileChecksum(target)
	if err != nil {
		return release.ManifestFile{}, fmt.Errorf("checksum of %s: %w", name, err)
	}

	signed, err := signature.SignFile(p.key, target)
	if err != nil {
		return release.ManifestFile{}, fmt.Errorf("sign %s: %w", name, err)
	}

	encodedSignature := base64.StdEncoding.EncodeToString(signed)

	if err = os.WriteFile(target+SignatureExtension, []byte(encodedSignature), DefaultFileMode); err != nil {
		return release.ManifestFile{}, fmt.Errorf("write signature of %s: %w", name, err)
	}

	return release.ManifestFile{
		Name:      name,
		Checksum:  base64.StdEncoding.EncodeToString(checksum),
		Signature: encodedSignature,
	}, nil
}

// upsert replaces a release with the same version or adds a new one, newest first.
func (p *packager) upsert(ctx context.Context, manifest *release.Manifest, entry release.ManifestRelease) {
	manifest.Releases = slices.DeleteFunc(manifest.Releases, func(existing release.ManifestRelease) bool {
		existingVersion, err := upgrade.ParseVersion(existing.Version)
		if err != nil || !existingVersion.Equal(p.version) {
			return false
		}

		logger.WarnKV(ctx, "Replacing published release", "version", existing.Version, "ring", existing.Ring)

		return true
	})

	manifest.Releases = append(manifest.Releases, entry)

	slices.SortStableFunc(manifest.Releases, func(a, b release.ManifestRelease) int {
		left, leftErr := upgrade.ParseVersion(a.Version)
		right, rightErr := upgrade.ParseVersion(b.Version)

		switch {
		case leftErr != nil || rightErr != nil:
			return 0
		case left.GreaterThan(right):
			return -1
		case right.GreaterThan(left):
			return 1
		default:
			return 0
		}
	})
}

// printNextSteps logs human-readable guidance for the created files.
func (p *packager) printNextSteps(ctx context.Context, entry release.ManifestRelease) {
	var builder strings.Builder

	builder.WriteString("Release ")
	builder.WriteString(entry.Version)
	builder.WriteString(" is published in the ")
	builder.WriteString(p.ring.DisplayName())
	builder.WriteString(" ring. Serve the folder ")
	builder.WriteString(p.opts.Folder)
	builder.WriteString(" over HTTP, it contains:\n")
	builder.WriteString(release.ManifestFilename)

	for _, file := range entry.Files {
		builder.WriteString(",\n")
		builder.WriteString(file.Name)
		builder.WriteString(",\n")
		builder.WriteString(file.Name + SignatureExtension)
	}

	logger.Info(ctx, builder.String())
}

// copyFile copies source to target unless both name the same file.
func copyFile(source, target string) error {
	sourceInfo, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}

	if targetInfo, statErr := os.Stat(target); statErr == nil && os.SameFile(sourceInfo, targetInfo) {
		return nil
	}

	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(target), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, DefaultFileMode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s: %w", source, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	return nil
}
