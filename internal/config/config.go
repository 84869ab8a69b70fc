package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/signature"
)

// Config holds the upgrader settings of one installation.
type Config struct {
	// Ring is the distribution channel: fast, slow or none.
	Ring string `yaml:"ring"`
	// RingPolicy is inclusive (fast also sees slow) or exact.
	RingPolicy string `yaml:"ring_policy,omitempty"`
	// Source is where releases are published.
	Source Source `yaml:"source"`
	// Assets are the installers of a release in install order.
	Assets []Asset `yaml:"assets"`
	// TrustedSigners maps signer identities to hex ed25519 public keys.
	TrustedSigners map[string]string `yaml:"trusted_signers"`
	// BlockingProcesses are executables that must not run during installation.
	BlockingProcesses []string `yaml:"blocking_processes,omitempty"`
	// DownloadDirectory receives the installers of a run.
	DownloadDirectory string `yaml:"download_dir,omitempty"`
	// LogDirectory receives the installer logs.
	LogDirectory string `yaml:"log_dir,omitempty"`
	// StateFile records the newest available release.
	StateFile string `yaml:"state_file,omitempty"`
	// LockFile prevents concurrent runs.
	LockFile string `yaml:"lock_file,omitempty"`
	// InstalledVersion overrides the version of the running build.
	InstalledVersion string `yaml:"installed_version,omitempty"`
	// Timeout bounds every network request.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// DryRun skips installer execution.
	DryRun bool `yaml:"dry_run,omitempty"`
	// RerunCommand is shown when the run has to be repeated.
	RerunCommand string `yaml:"rerun_command,omitempty"`
}

// Source selects the release host.
type Source struct {
	// Type is "github" or "manifest".
	Type string `yaml:"type"`
	// URL is the manifest folder, or the GitHub API base URL when overridden.
	URL string `yaml:"url,omitempty"`
	// Owner is the GitHub repository owner.
	Owner string `yaml:"owner,omitempty"`
	// Repo is the GitHub repository name.
	Repo string `yaml:"repo,omitempty"`
	// Token is an optional GitHub access token.
	Token string `yaml:"token,omitempty"`
}

// Asset binds a logical installer to release files.
type Asset struct {
	// Name is the component name shown to the user.
	Name string `yaml:"name"`
	// Pattern is a regular expression matching the installer file name.
	Pattern string `yaml:"pattern"`
	// Signer is the identity expected to sign the installer.
	Signer string `yaml:"signer"`
}

const (
	// DefaultConfigFilename is the default filename for upgrader settings.
	DefaultConfigFilename = "scalar-upgrader.yaml"

	// DefaultStateFilename is the default filename for the available release record.
	DefaultStateFilename = "scalar-upgrader-state.json"

	// DefaultLockFilename is the default filename for the run lock.
	DefaultLockFilename = "scalar-upgrader.lock"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// SourceGitHub reads releases from the GitHub Releases API.
	SourceGitHub = "github"

	// SourceManifest reads releases from a YAML manifest in an HTTP folder.
	SourceManifest = "manifest"

	// appDirectory is the per-user folder of the upgrader.
	appDirectory = "scalar-upgrader"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownSource is returned for an unsupported source type.
	errUnknownSource = errors.New("unknown release source type")
	// errSourceIncomplete is returned when the source misses a required field.
	errSourceIncomplete = errors.New("release source is incomplete")
	// errNoAssets is returned when no installer is configured.
	errNoAssets = errors.New("at least one asset must be configured")
	// errInvalidAsset is returned for an asset with missing or duplicate fields.
	errInvalidAsset = errors.New("invalid asset")
	// errUntrustedSigner is returned when an asset signer has no public key.
	errUntrustedSigner = errors.New("asset signer has no trusted key")
)

// Default returns settings for upgrading Scalar and Git from GitHub.
// Trusted signer keys still have to be provided.
func Default() *Config {
	return &Config{
		Ring: upgrade.RingSlow.String(),
		Source: Source{
			Type:  SourceGitHub,
			Owner: "microsoft",
			Repo:  "scalar",
		},
		Assets: []Asset{
			{Name: "Git", Pattern: `(?i)^Git-.*-64-bit\.exe$`, Signer: "git-for-windows"},
			{Name: "Scalar", Pattern: `(?i)^Scalar.*\.exe$`, Signer: "scalar"},
		},
		TrustedSigners: make(map[string]string),
	}
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, the file may carry a token.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if _, err := upgrade.ParseRing(cfg.Ring); err != nil {
		return fmt.Errorf("invalid ring: %w", err)
	}

	if _, err := upgrade.ParseRingPolicy(cfg.RingPolicy); err != nil {
		return fmt.Errorf("invalid ring policy: %w", err)
	}

	if err := validateSource(&cfg.Source); err != nil {
		return err
	}

	if err := validateAssets(cfg.Assets, cfg.TrustedSigners); err != nil {
		return err
	}

	if cfg.InstalledVersion != "" {
		if _, err := upgrade.ParseVersion(cfg.InstalledVersion); err != nil {
			return fmt.Errorf("invalid installed version: %w", err)
		}
	}

	// Set default timeout if not specified.
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	setDefaultPaths(cfg)

	return nil
}

// validateSource checks the fields the source type needs.
func validateSource(source *Source) error {
	if source.Type == "" {
		source.Type = SourceGitHub
	}

	switch source.Type {
	case SourceGitHub:
		if source.Owner == "" || source.Repo == "" {
			return fmt.Errorf("%w: github owner and repo must be provided", errSourceIncomplete)
		}

		if source.URL == "" {
			return nil
		}
	case SourceManifest:
		if source.URL == "" {
			return fmt.Errorf("%w: manifest url must be provided", errSourceIncomplete)
		}
	default:
		return fmt.Errorf("%w: %q", errUnknownSource, source.Type)
	}

	if _, err := url.ParseRequestURI(source.URL); err != nil {
		return fmt.Errorf("invalid source url: %w", err)
	}

	return nil
}

// validateAssets checks names, patterns and signer keys.
func validateAssets(assets []Asset, trustedSigners map[string]string) error {
	if len(assets) == 0 {
		return errNoAssets
	}

	seen := make(map[string]struct{}, len(assets))

	for _, asset := range assets {
		if asset.Name == "" || asset.Pattern == "" || asset.Signer == "" {
			return fmt.Errorf("%w: name, pattern and signer are required", errInvalidAsset)
		}

		if _, duplicate := seen[asset.Name]; duplicate {
			return fmt.Errorf("%w: duplicate name %q", errInvalidAsset, asset.Name)
		}

		seen[asset.Name] = struct{}{}

		if _, err := regexp.Compile(asset.Pattern); err != nil {
			return fmt.Errorf("%w: pattern of %s: %w", errInvalidAsset, asset.Name, err)
		}

		key, found := trustedSigners[asset.Signer]
		if !found {
			return fmt.Errorf("%w: %s", errUntrustedSigner, asset.Signer)
		}

		if _, err := signature.ParsePublicKey(key); err != nil {
			return fmt.Errorf("signer %s: %w", asset.Signer, err)
		}
	}

	return nil
}

// setDefaultPaths places unset files and folders under the user cache directory.
func setDefaultPaths(cfg *Config) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}

	base = filepath.Join(base, appDirectory)

	if cfg.DownloadDirectory == "" {
		cfg.DownloadDirectory = filepath.Join(base, "downloads")
	}

	if cfg.LogDirectory == "" {
		cfg.LogDirectory = filepath.Join(base, "logs")
	}

	if cfg.StateFile == "" {
		cfg.StateFile = filepath.Join(base, DefaultStateFilename)
	}

	if cfg.LockFile == "" {
		cfg.LockFile = filepath.Join(base, DefaultLockFilename)
	}
}
