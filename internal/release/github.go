package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

const (
	// defaultPerPage is the number of releases fetched per API page.
	defaultPerPage = 30

	// maxPages is the upper bound on pagination.
	maxPages = 3

	// maxJSONResponseBytes is the upper bound on JSON API response size.
	maxJSONResponseBytes = 10 << 20

	// SignatureSuffix marks a detached signature file attached next to an installer.
	SignatureSuffix = ".sig"

	// defaultGitHubBaseURL is the public GitHub API endpoint.
	defaultGitHubBaseURL = "https://api.github.com"
)

// errUnexpectedStatus is returned when the API answers with a non-200 status.
var errUnexpectedStatus = errors.New("unexpected status")

type (
	// RateLimitError is returned when the GitHub API rate limit is exceeded.
	RateLimitError struct {
		// Limit is the hourly request quota.
		Limit int
		// ResetAt is when the quota is restored.
		ResetAt time.Time
	}

	// githubRelease is the JSON wire format of a GitHub release.
	githubRelease struct {
		TagName    string        `json:"tag_name"`
		Prerelease bool          `json:"prerelease"`
		Draft      bool          `json:"draft"`
		Assets     []githubAsset `json:"assets"`
	}

	// githubAsset is the JSON wire format of a GitHub release asset.
	githubAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}

	// GitHubSource lists releases of a GitHub repository.
	GitHubSource struct {
		httpClient *http.Client
		owner      string
		repo       string
		baseURL    string
		token      string
		userAgent  string
	}

	// GitHubOption configures a GitHubSource during construction.
	GitHubOption func(*GitHubSource)
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("GitHub API rate limit of %d exceeded, resets at %s",
		e.Limit, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHubSource) {
		g.httpClient = c
	}
}

// WithBaseURL overrides the GitHub API base URL.
func WithBaseURL(base string) GitHubOption {
	return func(g *GitHubSource) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithToken sets a personal access token for authenticated requests.
func WithToken(token string) GitHubOption {
	return func(g *GitHubSource) {
		g.token = token
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) GitHubOption {
	return func(g *GitHubSource) {
		g.userAgent = ua
	}
}

// NewGitHubSource creates a source for owner/repo.
func NewGitHubSource(owner, repo string, opts ...GitHubOption) *GitHubSource {
	s := &GitHubSource{
		httpClient: http.DefaultClient,
		owner:      owner,
		repo:       repo,
		baseURL:    defaultGitHubBaseURL,
		userAgent:  "scalar-upgrader",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns "GitHub".
func (*GitHubSource) Name() string {
	return "GitHub"
}

// ListReleases returns published releases. Prereleases are offered on the
// fast ring, regular releases on the slow ring, drafts are skipped.
func (s *GitHubSource) ListReleases(ctx context.Context) ([]Release, error) {
	pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		s.baseURL, s.owner, s.repo, defaultPerPage)

	var all []Release

	for page := 0; page < maxPages && pageURL != ""; page++ {
		raw, next, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("list releases: %w", err)
		}

		for _, gr := range raw {
			if gr.Draft {
				continue
			}

			all = append(all, toRelease(gr))
		}

		pageURL = next
	}

	return all, nil
}

// fetchPage downloads one page of releases and returns the next page URL.
func (s *GitHubSource) fetchPage(ctx context.Context, pageURL string) ([]githubRelease, string, error) {
	resp, err := s.doRequest(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if err = checkRateLimit(resp); err != nil {
		return nil, "", err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w %d", errUnexpectedStatus, resp.StatusCode)
	}

	var raw []githubRelease
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&raw); err != nil {
		return nil, "", fmt.Errorf("decode releases: %w", err)
	}

	return raw, parseLinkHeader(resp.Header.Get("Link")), nil
}

// doRequest executes a GET request with the GitHub API headers.
func (s *GitHubSource) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", s.userAgent)

	// The token only goes to the configured API host.
	if s.token != "" && sameHost(req.URL, s.baseURL) {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// toRelease converts the wire type, pairing installers with their ".sig" siblings.
func toRelease(gr githubRelease) Release {
	signatures := make(map[string]string, len(gr.Assets))

	for _, asset := range gr.Assets {
		if target, ok := strings.CutSuffix(asset.Name, SignatureSuffix); ok {
			signatures[target] = asset.BrowserDownloadURL
		}
	}

	files := make([]File, 0, len(gr.Assets))

	for _, asset := range gr.Assets {
		if strings.HasSuffix(asset.Name, SignatureSuffix) {
			continue
		}

		files = append(files, File{
			Name:         asset.Name,
			URL:          asset.BrowserDownloadURL,
			SignatureURL: signatures[asset.Name],
		})
	}

	ring := upgrade.RingSlow
	if gr.Prerelease {
		ring = upgrade.RingFast
	}

	return Release{
		Version: gr.TagName,
		Ring:    ring,
		Files:   files,
	}
}

// checkRateLimit returns a RateLimitError when the remaining quota is zero.
func checkRateLimit(resp *http.Response) error {
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil || remaining > 0 {
		return nil //nolint:nilerr // Missing or malformed header means no limit information.
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:   limit,
		ResetAt: time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the "next" page URL from a Link header.
func parseLinkHeader(header string) string {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}

		start := strings.Index(part, "<")
		end := strings.Index(part, ">")

		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}

	return ""
}

// sameHost reports whether reqURL targets the host of baseURL.
func sameHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	return strings.EqualFold(reqURL.Host, base.Host)
}
