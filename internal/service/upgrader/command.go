package upgrader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gofrs/flock"

	"github.com/oshokin/scalar-upgrader/internal/cleanup"
	"github.com/oshokin/scalar-upgrader/internal/config"
	"github.com/oshokin/scalar-upgrader/internal/console"
	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/download"
	"github.com/oshokin/scalar-upgrader/internal/installer"
	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/orchestrator"
	"github.com/oshokin/scalar-upgrader/internal/platform"
	"github.com/oshokin/scalar-upgrader/internal/prerequisite"
	"github.com/oshokin/scalar-upgrader/internal/release"
	"github.com/oshokin/scalar-upgrader/internal/repository/upgradestate"
	"github.com/oshokin/scalar-upgrader/internal/signature"
	"github.com/oshokin/scalar-upgrader/internal/version"
)

// errUpgraderRunning indicates that another run holds the lock.
var errUpgraderRunning = errors.New("another upgrade is running now")

// Options are inputs accepted by the upgrader entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Confirm runs the full pipeline, otherwise only availability is checked.
	Confirm bool
	// DryRun skips installer execution, in addition to the configured value.
	DryRun bool
	// Reporter receives user messages, defaults to the standard streams.
	Reporter console.Reporter
	// Capabilities overrides the operating system services.
	Capabilities *platform.Capabilities
}

// runner holds the wiring of a single run.
type runner struct {
	cfg          *config.Config
	caps         platform.Capabilities
	reporter     console.Reporter
	dryRun       bool
	installed    upgrade.Version
	ring         upgrade.Ring
	stateStorage *upgradestate.FileRepository
}

// Run executes an upgrade run and is the public entry point for the CLI.
// It returns upgrade.ErrUpgradeFailed when the run ends in a failure.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "scalar-upgrader")

	r, err := newRunner(opts)
	if err != nil {
		return err
	}

	lock, err := r.acquireLock(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.WarnKV(ctx, "Unable to release the upgrade lock", "error", unlockErr)
		}
	}()

	components, err := r.components()
	if err != nil {
		return fmt.Errorf("initialize upgrade: %w", err)
	}

	o := orchestrator.New(components, orchestrator.Settings{
		InstalledVersion: r.installed,
		Ring:             r.ring,
		RerunCommand:     r.cfg.RerunCommand,
	}, r.reporter)

	var code upgrade.ReturnCode
	if opts.Confirm {
		code = o.Execute(ctx)
	} else {
		code = o.Check(ctx)
	}

	logger.InfoKV(ctx, "Upgrade run finished",
		"state", o.State().String(), "return_code", int(code), "dry_run", r.dryRun, "confirm", opts.Confirm)

	if code == upgrade.ReturnCodeSuccess {
		return nil
	}

	if failure := o.Failure(); failure != nil {
		return fmt.Errorf("%w: %w", upgrade.ErrUpgradeFailed, failure)
	}

	return upgrade.ErrUpgradeFailed
}

// newRunner loads the settings and resolves the run inputs.
func newRunner(opts *Options) (*runner, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:          cfg,
		caps:         platform.OS(),
		reporter:     opts.Reporter,
		dryRun:       opts.DryRun || cfg.DryRun,
		stateStorage: upgradestate.NewFileRepository(cfg.StateFile),
	}

	if opts.Capabilities != nil {
		r.caps = *opts.Capabilities
	}

	if r.reporter == nil {
		r.reporter = console.NewStd()
	}

	// Load validated the ring already.
	r.ring, _ = upgrade.ParseRing(cfg.Ring) //nolint:errcheck // See above.

	installedVersion := cfg.InstalledVersion
	if installedVersion == "" {
		installedVersion = version.Short()
	}

	if r.installed, err = upgrade.ParseVersion(installedVersion); err != nil {
		return nil, fmt.Errorf("detect installed version: %w", err)
	}

	return r, nil
}

// acquireLock takes the machine-wide run lock without waiting.
func (r *runner) acquireLock(ctx context.Context) (*flock.Flock, error) {
	for _, directory := range []string{filepath.Dir(r.cfg.LockFile), filepath.Dir(r.cfg.StateFile), r.cfg.LogDirectory} {
		if err := r.caps.Files.CreateDirectory(directory); err != nil {
			return nil, fmt.Errorf("prepare %s: %w", directory, err)
		}
	}

	lock := flock.New(r.cfg.LockFile)

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", r.cfg.LockFile, err)
	}

	if !locked {
		return nil, errUpgraderRunning
	}

	logger.DebugKV(ctx, "Acquired upgrade lock", "path", r.cfg.LockFile)

	return lock, nil
}

// components builds the pipeline collaborators from the settings.
func (r *runner) components() (orchestrator.Components, error) {
	client := newHTTPClient(r.cfg)

	source, err := newSource(r.cfg, client)
	if err != nil {
		return orchestrator.Components{}, err
	}

	rules, err := assetRules(r.cfg.Assets)
	if err != nil {
		return orchestrator.Components{}, err
	}

	policy, err := upgrade.ParseRingPolicy(r.cfg.RingPolicy)
	if err != nil {
		return orchestrator.Components{}, err
	}

	verifier, err := signature.NewVerifier(r.cfg.TrustedSigners)
	if err != nil {
		return orchestrator.Components{}, err
	}

	return orchestrator.Components{
		Prerequisites: prerequisite.NewChecker(r.caps.Processes, r.cfg.BlockingProcesses),
		Fetcher:       release.NewFetcher(source, upgrade.RingGate{Policy: policy}, rules),
		Downloader:    download.NewDownloader(r.caps.Files, client, r.cfg.DownloadDirectory, source.Name()),
		Verifier:      verifier,
		Installer:     installer.NewRunner(r.caps.Executor, r.cfg.LogDirectory, installer.WithDryRun(r.dryRun)),
		Cleanup:       cleanup.NewManager(r.caps.Files),
		Recorder:      r.stateStorage,
	}, nil
}

// newHTTPClient bounds connection setup and response headers by the configured timeout.
// The body transfer itself is not limited, installers can be large.
func newHTTPClient(cfg *config.Config) *http.Client {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultClient
	}

	transport = transport.Clone()
	transport.TLSHandshakeTimeout = cfg.Timeout
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &http.Client{Transport: transport}
}

// newSource creates the configured release source.
//
//nolint:ireturn // The source type depends on the settings.
func newSource(cfg *config.Config, client *http.Client) (release.Source, error) {
	if cfg.Source.Type == config.SourceManifest {
		return release.NewManifestSource(cfg.Source.URL, client)
	}

	token := cfg.Source.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	options := []release.GitHubOption{
		release.WithHTTPClient(client),
		release.WithToken(token),
		release.WithUserAgent("scalar-upgrader/" + version.Short()),
	}

	if cfg.Source.URL != "" {
		options = append(options, release.WithBaseURL(cfg.Source.URL))
	}

	return release.NewGitHubSource(cfg.Source.Owner, cfg.Source.Repo, options...), nil
}

// assetRules compiles the configured installer patterns.
func assetRules(assets []config.Asset) ([]release.AssetRule, error) {
	rules := make([]release.AssetRule, 0, len(assets))

	for _, asset := range assets {
		pattern, err := regexp.Compile(asset.Pattern)
		if err != nil {
			return nil, fmt.Errorf("asset %s: %w", asset.Name, err)
		}

		rules = append(rules, release.AssetRule{
			Name:    asset.Name,
			Pattern: pattern,
			Signer:  asset.Signer,
		})
	}

	return rules, nil
}
