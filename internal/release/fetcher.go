package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
)

// errMissingAsset is returned when the chosen release lacks a required installer.
var errMissingAsset = errors.New("release has no matching installer")

// Fetcher picks the newest eligible release from a source.
type Fetcher struct {
	// source lists published releases.
	source Source
	// gate decides ring eligibility.
	gate upgrade.RingGate
	// rules map release files to installers in install order.
	rules []AssetRule
}

// NewFetcher creates a fetcher over source for the given installer rules.
func NewFetcher(source Source, gate upgrade.RingGate, rules []AssetRule) *Fetcher {
	return &Fetcher{
		source: source,
		gate:   gate,
		rules:  rules,
	}
}

// SourceName returns the name of the underlying release host.
func (f *Fetcher) SourceName() string {
	return f.source.Name()
}

// GetUpgradeCandidate returns the highest release newer than local whose ring
// passes the gate, or nil when the installation is up to date.
// Failures are returned as *upgrade.Error of kind KindRemoteFetch.
func (f *Fetcher) GetUpgradeCandidate(
	ctx context.Context,
	local upgrade.Version,
	ring upgrade.Ring,
) (*upgrade.ReleaseCandidate, error) {
	releases, err := f.source.ListReleases(ctx)
	if err != nil {
		return nil, f.fetchError(err)
	}

	var (
		best        *Release
		bestVersion upgrade.Version
	)

	for i := range releases {
		candidate := &releases[i]

		version, err := upgrade.ParseVersion(candidate.Version)
		if err != nil {
			logger.WarnKV(ctx, "Skipping release with unrecognized version",
				"version", candidate.Version, "ring", candidate.Ring.String(), "error", err)

			continue
		}

		if !f.gate.Eligible(ring, candidate.Ring) || !version.GreaterThan(local) {
			continue
		}

		if best == nil || version.GreaterThan(bestVersion) {
			best, bestVersion = candidate, version
		}
	}

	if best == nil {
		logger.InfoKV(ctx, "No eligible release found", "local", local.String(), "ring", ring.String())

		return nil, nil //nolint:nilnil // No candidate is a regular outcome.
	}

	assets, err := f.selectAssets(best)
	if err != nil {
		return nil, f.fetchError(fmt.Errorf("release %s: %w", best.Version, err))
	}

	logger.InfoKV(ctx, "Found eligible release",
		"version", bestVersion.String(), "ring", best.Ring.String(), "local", local.String())

	return &upgrade.ReleaseCandidate{
		Version: bestVersion,
		Ring:    best.Ring,
		Assets:  assets,
	}, nil
}

// selectAssets maps every rule onto the first matching release file.
func (f *Fetcher) selectAssets(r *Release) ([]upgrade.AssetDescriptor, error) {
	assets := make([]upgrade.AssetDescriptor, 0, len(f.rules))

	for _, rule := range f.rules {
		file, found := findFile(r.Files, rule)
		if !found {
			return nil, fmt.Errorf("%s: %w", rule.Name, errMissingAsset)
		}

		assets = append(assets, upgrade.AssetDescriptor{
			Name:         rule.Name,
			URL:          file.URL,
			FileName:     file.Name,
			Signer:       rule.Signer,
			Signature:    file.Signature,
			SignatureURL: file.SignatureURL,
			Checksum:     file.Checksum,
		})
	}

	return assets, nil
}

// fetchError tags err as a remote fetch failure.
func (f *Fetcher) fetchError(err error) *upgrade.Error {
	return upgrade.NewError(upgrade.KindRemoteFetch, "",
		"Error fetching release information from "+f.source.Name(), err)
}

// findFile returns the first file whose name matches the rule pattern.
func findFile(files []File, rule AssetRule) (File, bool) {
	for _, file := range files {
		if rule.Pattern.MatchString(file.Name) {
			return file, true
		}
	}

	return File{}, false
}
