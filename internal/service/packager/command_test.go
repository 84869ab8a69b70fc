package packager

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/download"
	"github.com/oshokin/scalar-upgrader/internal/release"
	"github.com/oshokin/scalar-upgrader/internal/signature"
)

// publishFixture holds a signer key and two installers outside the update folder.
type publishFixture struct {
	publicKey string
	keyPath   string
	folder    string
	files     []string
}

// newPublishFixture creates a key pair and installer files in temporary directories.
func newPublishFixture(t *testing.T) *publishFixture {
	t.Helper()

	keyPath := filepath.Join(t.TempDir(), "signer.key")

	publicKey, err := Keygen(context.Background(), keyPath)
	require.NoError(t, err)

	sourceDir := t.TempDir()
	files := []string{
		filepath.Join(sourceDir, "Git-2.40.0-64-bit.exe"),
		filepath.Join(sourceDir, "Scalar-1.2.0.exe"),
	}

	for _, path := range files {
		require.NoError(t, os.WriteFile(path, []byte("contents of "+filepath.Base(path)), 0o600))
	}

	return &publishFixture{
		publicKey: publicKey,
		keyPath:   keyPath,
		folder:    filepath.Join(t.TempDir(), "updates"),
		files:     files,
	}
}

// readManifest loads the manifest written into folder.
func readManifest(t *testing.T, folder string) *release.Manifest {
	t.Helper()

	contents, err := os.ReadFile(filepath.Join(folder, release.ManifestFilename))
	require.NoError(t, err)

	manifest := new(release.Manifest)
	require.NoError(t, yaml.Unmarshal(contents, manifest))

	return manifest
}

// TestKeygen writes a usable private key and refuses to overwrite it.
func TestKeygen(t *testing.T) {
	t.Parallel()

	keyPath := filepath.Join(t.TempDir(), "signer.key")

	publicKey, err := Keygen(context.Background(), keyPath)
	require.NoError(t, err)

	_, err = signature.ParsePublicKey(publicKey)
	require.NoError(t, err)

	encoded, err := os.ReadFile(keyPath)
	require.NoError(t, err)

	_, err = signature.ParsePrivateKey(string(encoded))
	require.NoError(t, err)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	require.Equal(t, privateKeyMode, info.Mode().Perm())

	_, err = Keygen(context.Background(), keyPath)
	require.ErrorIs(t, err, os.ErrExist)

	_, err = Keygen(context.Background(), "")
	require.ErrorIs(t, err, errNoKeyPath)
}

// TestRun_PublishesSignedRelease checks the manifest entries, copies and signatures.
func TestRun_PublishesSignedRelease(t *testing.T) {
	t.Parallel()

	fixture := newPublishFixture(t)

	err := Run(context.Background(), &Options{
		Folder:  fixture.folder,
		Version: "1.2.0",
		Ring:    "Fast",
		KeyPath: fixture.keyPath,
		Files:   fixture.files,
	})
	require.NoError(t, err)

	manifest := readManifest(t, fixture.folder)
	require.Len(t, manifest.Releases, 1)

	published := manifest.Releases[0]
	require.Equal(t, "1.2.0", published.Version)
	require.Equal(t, "fast", published.Ring)
	require.Len(t, published.Files, 2)
	require.Equal(t, "Git-2.40.0-64-bit.exe", published.Files[0].Name)
	require.Equal(t, "Scalar-1.2.0.exe", published.Files[1].Name)

	verifier, err := signature.NewVerifier(map[string]string{"scalar": fixture.publicKey})
	require.NoError(t, err)

	for _, file := range published.Files {
		path := filepath.Join(fixture.folder, file.Name)

		checksum, checksumErr := download.FileChecksum(path)
		require.NoError(t, checksumErr)
		require.Equal(t, base64.StdEncoding.EncodeToString(checksum), file.Checksum)

		detached, readErr := os.ReadFile(path + SignatureExtension)
		require.NoError(t, readErr)
		require.Equal(t, file.Signature, string(detached))

		signed, decodeErr := base64.StdEncoding.DecodeString(file.Signature)
		require.NoError(t, decodeErr)

		asset := upgrade.DownloadedAsset{
			Descriptor: upgrade.AssetDescriptor{Name: file.Name, Signer: "scalar", Signature: signed},
			Path:       path,
		}
		require.NoError(t, verifier.Verify(context.Background(), asset))
	}
}

// TestRun_KeepsReleasesNewestFirst replaces a republished version and orders by version.
func TestRun_KeepsReleasesNewestFirst(t *testing.T) {
	t.Parallel()

	fixture := newPublishFixture(t)

	publish := func(version, ring string) {
		require.NoError(t, Run(context.Background(), &Options{
			Folder:  fixture.folder,
			Version: version,
			Ring:    ring,
			KeyPath: fixture.keyPath,
			Files:   fixture.files,
		}))
	}

	publish("1.0.0", "slow")
	publish("1.10.0", "fast")
	publish("1.2.0", "slow")
	publish("1.10.0", "slow")

	manifest := readManifest(t, fixture.folder)
	require.Len(t, manifest.Releases, 3)
	require.Equal(t, "1.10.0", manifest.Releases[0].Version)
	require.Equal(t, "slow", manifest.Releases[0].Ring)
	require.Equal(t, "1.2.0", manifest.Releases[1].Version)
	require.Equal(t, "1.0.0", manifest.Releases[2].Version)
}

// TestRun_RejectsInvalidOptions covers the input validation.
func TestRun_RejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	fixture := newPublishFixture(t)

	cases := map[string]struct {
		mutate func(opts *Options)
		target error
	}{
		"no folder": {mutate: func(opts *Options) { opts.Folder = "" }, target: errNoFolder},
		"no files":  {mutate: func(opts *Options) { opts.Files = nil }, target: errNoFiles},
		"none ring": {mutate: func(opts *Options) { opts.Ring = "none" }, target: errDisabledRing},
		"no key":    {mutate: func(opts *Options) { opts.KeyPath = filepath.Join(fixture.folder, "x") }, target: os.ErrNotExist},
	}

	for name, tc := range cases {
		tc := tc

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			opts := &Options{
				Folder:  fixture.folder,
				Version: "1.0.0",
				Ring:    "slow",
				KeyPath: fixture.keyPath,
				Files:   fixture.files,
			}
			tc.mutate(opts)

			require.ErrorIs(t, Run(context.Background(), opts), tc.target)
		})
	}

	for _, opts := range []*Options{
		{Folder: fixture.folder, Version: "latest", Ring: "slow", KeyPath: fixture.keyPath, Files: fixture.files},
		{Folder: fixture.folder, Version: "1.0.0", Ring: "medium", KeyPath: fixture.keyPath, Files: fixture.files},
	} {
		require.Error(t, Run(context.Background(), opts))
	}

	_, err := os.Stat(fixture.folder)
	require.ErrorIs(t, err, os.ErrNotExist)
}
