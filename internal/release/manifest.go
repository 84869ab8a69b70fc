package release

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

const (
	// ManifestFilename is the release manifest published next to the installers.
	ManifestFilename = "scalar-releases.yaml"

	// maxManifestBytes bounds the manifest size read from the server.
	maxManifestBytes = 10 << 20
)

var (
	// errBadHTTPStatus is returned when the server does not answer with 200 OK.
	errBadHTTPStatus = errors.New("unexpected http status")
	// errMalformedManifest is returned when a manifest entry cannot be interpreted.
	errMalformedManifest = errors.New("malformed release manifest")
)

// Manifest is the YAML document listing published releases.
type Manifest struct {
	// Releases lists every published release.
	Releases []ManifestRelease `yaml:"releases"`
}

// ManifestRelease describes one release in the manifest.
type ManifestRelease struct {
	// Version is the semantic version of this release.
	Version string `yaml:"version"`
	// Ring is the channel the release is published on.
	Ring string `yaml:"ring"`
	// Files lists the installers of this release.
	Files []ManifestFile `yaml:"files"`
}

// ManifestFile describes one installer in the manifest.
type ManifestFile struct {
	// Name is the installer file name.
	Name string `yaml:"name"`
	// URL is absolute or relative to the manifest folder, defaults to Name.
	URL string `yaml:"url,omitempty"`
	// Checksum is the base64-encoded SHA-512 digest.
	Checksum string `yaml:"checksum"`
	// Signature is the base64-encoded ed25519 signature.
	Signature string `yaml:"signature"`
}

// ManifestSource reads releases from a manifest in an HTTP folder.
type ManifestSource struct {
	// folder is the URL of the folder holding the manifest and installers.
	folder *url.URL
	// client performs the HTTP requests.
	client *http.Client
}

// NewManifestSource creates a source for the manifest stored in folder.
func NewManifestSource(folder string, client *http.Client) (*ManifestSource, error) {
	folderURL, err := url.Parse(folder)
	if err != nil {
		return nil, fmt.Errorf("parse release folder: %w", err)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &ManifestSource{
		folder: folderURL,
		client: client,
	}, nil
}

// Name returns the release server host.
func (s *ManifestSource) Name() string {
	return s.folder.Host
}

// ListReleases downloads and decodes the manifest.
func (s *ManifestSource) ListReleases(ctx context.Context) ([]Release, error) {
	manifestURL := s.resolve(ManifestFilename)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	response, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download manifest: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", manifestURL, response.Status, errBadHTTPStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxManifestBytes))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return s.toReleases(&manifest)
}

// toReleases converts manifest entries into releases with absolute URLs.
func (s *ManifestSource) toReleases(manifest *Manifest) ([]Release, error) {
	releases := make([]Release, 0, len(manifest.Releases))

	for _, entry := range manifest.Releases {
		ring, err := upgrade.ParseRing(entry.Ring)
		if err != nil {
			return nil, fmt.Errorf("release %s: %w: %w", entry.Version, errMalformedManifest, err)
		}

		files := make([]File, 0, len(entry.Files))

		for _, file := range entry.Files {
			converted, err := s.toFile(file)
			if err != nil {
				return nil, fmt.Errorf("release %s: %w", entry.Version, err)
			}

			files = append(files, converted)
		}

		releases = append(releases, Release{
			Version: entry.Version,
			Ring:    ring,
			Files:   files,
		})
	}

	return releases, nil
}

// toFile decodes a manifest file entry.
func (s *ManifestSource) toFile(file ManifestFile) (File, error) {
	checksum, err := base64.StdEncoding.DecodeString(file.Checksum)
	if err != nil {
		return File{}, fmt.Errorf("checksum of %s: %w: %w", file.Name, errMalformedManifest, err)
	}

	signature, err := base64.StdEncoding.DecodeString(file.Signature)
	if err != nil {
		return File{}, fmt.Errorf("signature of %s: %w: %w", file.Name, errMalformedManifest, err)
	}

	location := file.URL
	if location == "" {
		location = file.Name
	}

	return File{
		Name:      file.Name,
		URL:       s.resolve(location),
		Checksum:  checksum,
		Signature: signature,
	}, nil
}

// resolve turns a manifest-relative location into an absolute URL.
func (s *ManifestSource) resolve(location string) string {
	if parsed, err := url.Parse(location); err == nil && parsed.IsAbs() {
		return location
	}

	resolved := *s.folder
	// Use path.Join to normalize duplicate slashes when composing the URL path.
	resolved.Path = path.Join(resolved.Path, location)

	return resolved.String()
}
