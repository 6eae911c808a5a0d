// Package github implements the ReleaseClient port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/sync/errgroup"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/pluginsync/internal/cache"
	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
	"github.com/ericfisherdev/pluginsync/internal/metrics"
)

const (
	userAgent = "GitHubReleaseManager/1.0"

	releaseTTL = 15 * time.Minute
	commitTTL  = time.Hour

	// DefaultMaxConcurrency bounds ResolveLatestForMany fan-out.
	DefaultMaxConcurrency = 8
)

// Compile-time interface satisfaction check.
var _ driven.ReleaseClient = (*Client)(nil)

// Client implements the driven.ReleaseClient port using the go-github library.
type Client struct {
	gh             *gh.Client
	plain          *http.Client // Unauthenticated; used for registries and browser downloads.
	exec           *Executor
	releases       cache.Cache[model.Release]
	commits        cache.Cache[string]
	authenticated  bool
	maxConcurrency int
	suffixes       []string
}

// Option configures a Client.
type Option func(*Client)

// WithExecutor replaces the default retrying executor.
func WithExecutor(e *Executor) Option {
	return func(c *Client) { c.exec = e }
}

// WithReleaseCache replaces the default release cache.
func WithReleaseCache(rc cache.Cache[model.Release]) Option {
	return func(c *Client) { c.releases = rc }
}

// WithCommitCache replaces the default commit message cache.
func WithCommitCache(cc cache.Cache[string]) Option {
	return func(c *Client) { c.commits = cc }
}

// WithMaxConcurrency bounds the number of concurrent resolutions. Values below 1
// are ignored.
func WithMaxConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithInstallableSuffixes sets the file suffixes of installable assets.
func WithInstallableSuffixes(suffixes ...string) Option {
	return func(c *Client) {
		if len(suffixes) > 0 {
			c.suffixes = suffixes
		}
	}
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth when token is set)
//
// Asset downloads and registry catalogs go through a separate client without the
// memory cache, which would otherwise keep every downloaded artifact.
func NewClient(token string, opts ...Option) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	plain := github_ratelimit.NewClient(http.DefaultTransport)

	return newClient(gh.NewClient(rateLimitClient), plain, token, opts)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, opts ...Option) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return newClient(client, httpClient, token, opts), nil
}

func newClient(client *gh.Client, plain *http.Client, token string, opts []Option) *Client {
	if token != "" {
		client = client.WithAuthToken(token)
	}
	client.UserAgent = userAgent

	c := &Client{
		gh:             client,
		plain:          plain,
		exec:           NewExecutor(),
		releases:       cache.New[model.Release](),
		commits:        cache.New[string](),
		authenticated:  token != "",
		maxConcurrency: DefaultMaxConcurrency,
		suffixes:       model.DefaultInstallableSuffixes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticated reports whether the client sends a token.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// ResolveLatest returns the newest published release of repo, skipping drafts and,
// unless the repository allows them, pre-releases. Results are cached for 15 minutes
// per owner, repository and pre-release flag. A 404 or 403 yields (nil, nil).
func (c *Client) ResolveLatest(ctx context.Context, repo model.RepositorySpec, bypassCache bool) (*model.Release, error) {
	owner, name, err := model.ParseRepoURL(repo.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", driven.ErrInvalidRepoURL, err)
	}
	fullName := owner + "/" + name
	key := releaseKey(owner, name, repo.AllowPreRelease)

	if bypassCache {
		metrics.ReleaseCacheLookupsTotal.WithLabelValues("bypass").Inc()
	} else if rel, ok := c.releases.Get(key); ok {
		metrics.ReleaseCacheLookupsTotal.WithLabelValues("hit").Inc()
		return &rel, nil
	} else {
		metrics.ReleaseCacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	var (
		releases []*gh.RepositoryRelease
		ghResp   *gh.Response
	)
	resp, err := c.exec.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		var err error
		releases, ghResp, err = c.gh.Repositories.ListReleases(ctx, owner, name, &gh.ListOptions{PerPage: 100})
		return rawResponse(ghResp), err
	})
	countRequest("releases", resp, err)
	if err != nil {
		return nil, classifyError(ctx, "listing releases for "+fullName, resp, err)
	}

	logRateLimit(ghResp, fullName+"/releases", 0, len(releases))

	latest := selectLatest(releases, repo.AllowPreRelease)
	if latest == nil {
		slog.Info("no qualifying release", "repo", fullName, "allow_pre_release", repo.AllowPreRelease)
		return nil, nil
	}

	rel := mapRelease(owner, name, latest, c.suffixes)
	if rel.TargetCommitish != "" {
		msg, err := c.commitMessage(ctx, owner, name, rel.TargetCommitish)
		if err != nil {
			slog.Warn("fetching release commit failed", "repo", fullName, "ref", rel.TargetCommitish, "error", err)
		} else {
			rel.CommitMessage = msg
		}
	}

	c.releases.Put(key, rel, releaseTTL)
	return &rel, nil
}

// commitMessage returns the message of the commit ref points at, cached for an hour.
func (c *Client) commitMessage(ctx context.Context, owner, name, ref string) (string, error) {
	key := strings.ToLower(owner+"/"+name) + "@" + ref
	if msg, ok := c.commits.Get(key); ok {
		return msg, nil
	}

	var (
		commit *gh.RepositoryCommit
		ghResp *gh.Response
	)
	resp, err := c.exec.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		var err error
		commit, ghResp, err = c.gh.Repositories.GetCommit(ctx, owner, name, ref, nil)
		return rawResponse(ghResp), err
	})
	countRequest("commits", resp, err)
	if err != nil {
		return "", fmt.Errorf("getting commit %s: %w", ref, err)
	}

	logRateLimit(ghResp, owner+"/"+name+"/commits", 0, 1)

	msg := commit.GetCommit().GetMessage()
	c.commits.Put(key, msg, commitTTL)
	return msg, nil
}

// ResolveLatestForMany resolves every repository concurrently, bounded by the
// client's concurrency limit. A failing repository is logged and omitted; it never
// cancels the others.
func (c *Client) ResolveLatestForMany(ctx context.Context, repos []model.RepositorySpec) []model.Release {
	slots := make([]*model.Release, len(repos))

	var g errgroup.Group
	g.SetLimit(c.maxConcurrency)

	for i, repo := range repos {
		g.Go(func() error {
			rel, err := c.ResolveLatest(ctx, repo, false)
			if err != nil {
				slog.Warn("resolving latest release failed", "repo", repo.URL, "error", err)
				return nil
			}
			slots[i] = rel
			return nil
		})
	}
	_ = g.Wait()

	results := make([]model.Release, 0, len(repos))
	for _, rel := range slots {
		if rel != nil {
			results = append(results, *rel)
		}
	}
	return results
}

// ValidateRepository reports whether owner/repo exists and is visible with the
// current credentials.
func (c *Client) ValidateRepository(ctx context.Context, owner, repo string) bool {
	resp, err := c.exec.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		_, ghResp, err := c.gh.Repositories.Get(ctx, owner, repo)
		return rawResponse(ghResp), err
	})
	countRequest("repository", resp, err)
	if err != nil {
		slog.Debug("repository validation failed", "repo", owner+"/"+repo, "status", statusOf(resp), "error", err)
		return false
	}
	return true
}

// selectLatest filters out drafts and, unless allowed, pre-releases, then returns
// the release with the newest publish time. Ties keep listing order.
func selectLatest(releases []*gh.RepositoryRelease, allowPreRelease bool) *gh.RepositoryRelease {
	candidates := make([]*gh.RepositoryRelease, 0, len(releases))
	for _, r := range releases {
		if r == nil || r.GetDraft() {
			continue
		}
		if r.GetPrerelease() && !allowPreRelease {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil
	}

	slices.SortStableFunc(candidates, func(a, b *gh.RepositoryRelease) int {
		return b.GetPublishedAt().Compare(a.GetPublishedAt().Time)
	})
	return candidates[0]
}

// mapRelease converts a go-github RepositoryRelease to a domain model Release.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapRelease(owner, name string, r *gh.RepositoryRelease, suffixes []string) model.Release {
	assets := make([]model.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, model.Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			Kind:        model.ClassifyAsset(a.GetName(), suffixes),
			ContentType: a.GetContentType(),
			Size:        int64(a.GetSize()),
			APIURL:      a.GetURL(),
			BrowserURL:  a.GetBrowserDownloadURL(),
			UpdatedAt:   a.GetUpdatedAt().Time,
		})
	}

	return model.Release{
		Owner:           owner,
		Repo:            name,
		TagName:         r.GetTagName(),
		Name:            r.GetName(),
		TargetCommitish: r.GetTargetCommitish(),
		PreRelease:      r.GetPrerelease(),
		Draft:           r.GetDraft(),
		PublishedAt:     r.GetPublishedAt().Time,
		Body:            r.GetBody(),
		HTMLURL:         r.GetHTMLURL(),
		Assets:          assets,
	}
}

// classifyError maps a failed call to the port's error taxonomy. 404 and 403 are
// soft failures and return nil.
func classifyError(ctx context.Context, action string, resp *http.Response, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", action, ctxErr)
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: %w: %w", action, driven.ErrFetchFailed, err)
	}

	switch statusOf(resp) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", action, driven.ErrAuthentication)
	case http.StatusNotFound:
		slog.Warn("repository not found", "action", action)
		return nil
	case http.StatusForbidden:
		slog.Warn("repository access forbidden; the token may lack scope for private repositories", "action", action)
		return nil
	}

	return fmt.Errorf("%s: %w: %w", action, driven.ErrFetchFailed, err)
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func countRequest(endpoint string, resp *http.Response, err error) {
	status := "error"
	if resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	} else if err == nil {
		status = "200"
	}
	metrics.GitHubRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func releaseKey(owner, name string, allowPreRelease bool) string {
	return strings.ToLower(fmt.Sprintf("%s/%s:pre=%t", owner, name, allowPreRelease))
}

func rawResponse(r *gh.Response) *http.Response {
	if r == nil {
		return nil
	}
	return r.Response
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
