package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

var (
	errInjected    = errors.New("injected failure")
	errTestRecord  = errors.New("test record error")
	errTestProcess = errors.New("test process list error")
)

// action identifies a pipeline step a test can make fail.
type action int

const (
	actionCreateDownloadDirectory action = iota + 1
	actionGitDownload
	actionScalarDownload
	actionGitVerify
	actionScalarVerify
	actionGitInstall
	actionScalarInstall
	actionGitCleanup
	actionScalarCleanup
	actionDirectoryCleanup
)

// fakePipeline implements every component and records the calls it receives.
type fakePipeline struct {
	// mu protects calls.
	mu sync.Mutex
	// calls holds every component call in order.
	calls []string
	// blocking is returned by CheckBlockingProcesses.
	blocking []string
	// enumerateErr is returned by CheckBlockingProcesses.
	enumerateErr error
	// candidate is returned by GetUpgradeCandidate.
	candidate *upgrade.ReleaseCandidate
	// fetchErr is returned by GetUpgradeCandidate.
	fetchErr error
	// failOn lists the steps that fail.
	failOn []action
	// recorded holds the candidates passed to Record.
	recorded []*upgrade.ReleaseCandidate
	// recordErr is returned by Record.
	recordErr error
	// exitCode is returned by a successful Install.
	exitCode int
}

// newFakePipeline returns a pipeline offering version 2.0.0 with Git and Scalar installers.
func newFakePipeline(failOn ...action) *fakePipeline {
	return &fakePipeline{
		candidate: &upgrade.ReleaseCandidate{
			Version: upgrade.MustParseVersion("2.0.0"),
			Ring:    upgrade.RingSlow,
			Assets: []upgrade.AssetDescriptor{
				{Name: "Git", FileName: "Git-2.0.0.exe", Signer: "git"},
				{Name: "Scalar", FileName: "Scalar-2.0.0.exe", Signer: "scalar"},
			},
		},
		failOn: failOn,
	}
}

// components wires the fake into every slot.
func (p *fakePipeline) components() Components {
	return Components{
		Prerequisites: p,
		Fetcher:       p,
		Downloader:    p,
		Verifier:      p,
		Installer:     p,
		Cleanup:       p,
		Recorder:      p,
	}
}

// Calls returns a copy of the recorded calls.
func (p *fakePipeline) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return slices.Clone(p.calls)
}

// call records a call and reports whether it has to fail.
func (p *fakePipeline) call(name string, step action) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, name)

	return slices.Contains(p.failOn, step)
}

// CheckBlockingProcesses returns the configured process names.
func (p *fakePipeline) CheckBlockingProcesses(context.Context) ([]string, error) {
	p.call("check", 0)

	return p.blocking, p.enumerateErr
}

// GetUpgradeCandidate returns the configured candidate.
func (p *fakePipeline) GetUpgradeCandidate(context.Context, upgrade.Version, upgrade.Ring) (*upgrade.ReleaseCandidate, error) {
	p.call("fetch", 0)

	if p.fetchErr != nil {
		return nil, p.fetchErr
	}

	return p.candidate, nil
}

// PrepareDownloadDirectory fails on actionCreateDownloadDirectory.
func (p *fakePipeline) PrepareDownloadDirectory(context.Context) (string, error) {
	if p.call("prepare", actionCreateDownloadDirectory) {
		return "", upgrade.NewError(upgrade.KindDownloadDirectory, "", "Error creating download directory", errInjected)
	}

	return "downloads", nil
}

// Download fails on the per-asset download action.
func (p *fakePipeline) Download(
	_ context.Context,
	asset upgrade.AssetDescriptor,
	directory string,
) (upgrade.DownloadedAsset, error) {
	if p.call("download:"+asset.Name, stepFor(asset.Name, actionGitDownload, actionScalarDownload)) {
		return upgrade.DownloadedAsset{}, upgrade.NewError(upgrade.KindAssetDownload, asset.Name,
			"Error downloading "+asset.Name+" from GitHub", errInjected)
	}

	return upgrade.DownloadedAsset{
		Descriptor: asset,
		Path:       filepath.Join(directory, asset.FileName),
	}, nil
}

// Verify fails on the per-asset verify action.
func (p *fakePipeline) Verify(_ context.Context, asset upgrade.DownloadedAsset) error {
	if p.call("verify:"+asset.Name(), stepFor(asset.Name(), actionGitVerify, actionScalarVerify)) {
		return upgrade.NewError(upgrade.KindSignature, asset.Name(),
			asset.Name()+" installer verification failed: the hash of the file does not match the hash stored in the digital signature.",
			errInjected)
	}

	return nil
}

// Install fails on the per-asset install action.
func (p *fakePipeline) Install(_ context.Context, asset upgrade.DownloadedAsset) (int, error) {
	if p.call("install:"+asset.Name(), stepFor(asset.Name(), actionGitInstall, actionScalarInstall)) {
		return 1, upgrade.NewError(upgrade.KindInstall, asset.Name(), asset.Name()+" installation failed", errInjected)
	}

	return p.exitCode, nil
}

// Delete fails on the per-asset cleanup action.
func (p *fakePipeline) Delete(_ context.Context, asset upgrade.DownloadedAsset) error {
	if p.call("delete:"+asset.Name(), stepFor(asset.Name(), actionGitCleanup, actionScalarCleanup)) {
		return errInjected
	}

	return nil
}

// DeleteDirectory fails on actionDirectoryCleanup.
func (p *fakePipeline) DeleteDirectory(_ context.Context, directory string) error {
	if p.call("delete:"+directory, actionDirectoryCleanup) {
		return errInjected
	}

	return nil
}

// Record keeps the candidate.
func (p *fakePipeline) Record(_ context.Context, candidate *upgrade.ReleaseCandidate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.recorded = append(p.recorded, candidate)

	return p.recordErr
}

// stepFor picks the Git or Scalar variant of an action.
func stepFor(asset string, git, scalar action) action {
	if asset == "Git" {
		return git
	}

	return scalar
}
