package release

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

var errTestUnreachable = errors.New("test unreachable")

// staticSource is a Source returning a fixed release list.
type staticSource struct {
	// releases is returned by ListReleases.
	releases []Release
	// err is returned by ListReleases.
	err error
}

// Name returns a fixed host name.
func (*staticSource) Name() string {
	return "GitHub"
}

// ListReleases returns the configured releases.
func (s *staticSource) ListReleases(context.Context) ([]Release, error) {
	return s.releases, s.err
}

// testRules returns the Git and Scalar installer rules.
func testRules() []AssetRule {
	return []AssetRule{
		{Name: "Git", Pattern: regexp.MustCompile(`^Git-.*\.exe$`), Signer: "git"},
		{Name: "Scalar", Pattern: regexp.MustCompile(`^Scalar-.*\.exe$`), Signer: "scalar"},
	}
}

// testRelease builds a release with both installers.
func testRelease(version string, ring upgrade.Ring) Release {
	return Release{
		Version: version,
		Ring:    ring,
		Files: []File{
			{Name: "Scalar-" + version + ".exe", URL: "https://host/scalar-" + version},
			{Name: "Git-" + version + ".exe", URL: "https://host/git-" + version, SignatureURL: "https://host/git.sig"},
		},
	}
}

// TestFetcher_PicksHighestEligible verifies ring gating, version filtering and asset ordering.
func TestFetcher_PicksHighestEligible(t *testing.T) {
	t.Parallel()

	source := &staticSource{
		releases: []Release{
			testRelease("1.5.0", upgrade.RingSlow),
			testRelease("3.0.0", upgrade.RingFast),
			testRelease("2.0.0", upgrade.RingSlow),
			testRelease("0.9.0", upgrade.RingSlow),
		},
	}

	fetcher := NewFetcher(source, upgrade.RingGate{Policy: upgrade.RingPolicyInclusive}, testRules())

	// Slow ring never sees the fast release.
	candidate, err := fetcher.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("1.0.0"), upgrade.RingSlow)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	require.Equal(t, "2.0.0", candidate.Version.String())
	require.Equal(t, upgrade.RingSlow, candidate.Ring)
	require.Len(t, candidate.Assets, 2)
	require.Equal(t, "Git", candidate.Assets[0].Name)
	require.Equal(t, "Git-2.0.0.exe", candidate.Assets[0].FileName)
	require.Equal(t, "https://host/git.sig", candidate.Assets[0].SignatureURL)
	require.Equal(t, "git", candidate.Assets[0].Signer)
	require.Equal(t, "Scalar", candidate.Assets[1].Name)

	// Fast ring sees everything under the inclusive policy.
	candidate, err = fetcher.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("1.0.0"), upgrade.RingFast)
	require.NoError(t, err)
	require.Equal(t, "3.0.0", candidate.Version.String())
}

// TestFetcher_NoCandidate verifies nil is returned when nothing is newer or eligible.
func TestFetcher_NoCandidate(t *testing.T) {
	t.Parallel()

	source := &staticSource{
		releases: []Release{
			testRelease("2.0.0", upgrade.RingSlow),
			testRelease("3.0.0", upgrade.RingFast),
		},
	}

	exact := NewFetcher(source, upgrade.RingGate{Policy: upgrade.RingPolicyExact}, testRules())

	candidate, err := exact.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("3.0.0"), upgrade.RingFast)
	require.NoError(t, err)
	require.Nil(t, candidate)

	// Equal version is not newer.
	candidate, err = exact.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("2.0.0"), upgrade.RingSlow)
	require.NoError(t, err)
	require.Nil(t, candidate)

	// Ring none never upgrades.
	candidate, err = exact.GetUpgradeCandidate(context.Background(), upgrade.Version{}, upgrade.RingNone)
	require.NoError(t, err)
	require.Nil(t, candidate)
}

// TestFetcher_SkipsUnrecognizedVersions ignores stray tags instead of failing the whole check.
func TestFetcher_SkipsUnrecognizedVersions(t *testing.T) {
	t.Parallel()

	source := &staticSource{
		releases: []Release{
			testRelease("nightly", upgrade.RingFast),
			testRelease("2.0.0", upgrade.RingSlow),
			testRelease("two", upgrade.RingSlow),
		},
	}

	fetcher := NewFetcher(source, upgrade.RingGate{}, testRules())

	candidate, err := fetcher.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("1.0.0"), upgrade.RingFast)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	require.Equal(t, "2.0.0", candidate.Version.String())

	// Only unrecognized releases means nothing to install.
	source.releases = []Release{testRelease("nightly", upgrade.RingSlow)}

	candidate, err = fetcher.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("1.0.0"), upgrade.RingSlow)
	require.NoError(t, err)
	require.Nil(t, candidate)
}

// TestFetcher_Failures verifies source errors and missing installers are remote fetch errors.
func TestFetcher_Failures(t *testing.T) {
	t.Parallel()

	incomplete := testRelease("2.0.0", upgrade.RingSlow)
	incomplete.Files = incomplete.Files[:1]

	cases := map[string]*staticSource{
		"unreachable":   {err: errTestUnreachable},
		"missing asset": {releases: []Release{incomplete}},
	}

	for name, source := range cases {
		source := source

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fetcher := NewFetcher(source, upgrade.RingGate{}, testRules())

			_, err := fetcher.GetUpgradeCandidate(context.Background(), upgrade.MustParseVersion("1.0.0"), upgrade.RingSlow)

			var tagged *upgrade.Error

			require.ErrorAs(t, err, &tagged)
			require.Equal(t, upgrade.KindRemoteFetch, tagged.Kind)
			require.Equal(t, "Error fetching release information from GitHub", tagged.Message)
		})
	}
}
