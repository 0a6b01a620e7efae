// Package github implements the CIClient and ArtifactStore ports using the
// go-github library, plus loading of the Actions event payload and workflow
// dispatch inputs.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.CIClient      = (*Client)(nil)
	_ driven.ArtifactStore = (*Client)(nil)
)

// Client is bound to the workflow run it executes in: all operations target
// the repository and run id of the enclosing GitHub Actions job.
type Client struct {
	gh           *gh.Client
	owner        string
	repo         string
	runID        int64
	runtimeToken string // Actions results-service JWT, used for artifact uploads.
	resultsURL   string // Actions results-service base URL, trailing slash.
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with token auth)
//
// repository is the "owner/name" form of GITHUB_REPOSITORY; runtimeToken and
// resultsURL come from the Actions runner environment and are only needed for
// artifact uploads.
func NewClient(token, repository string, runID int64, runtimeToken, resultsURL string) (*Client, error) {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return nil, err
	}

	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{
		gh:           client,
		owner:        owner,
		repo:         repo,
		runID:        runID,
		runtimeToken: runtimeToken,
		resultsURL:   normalizeBaseURL(resultsURL),
	}, nil
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server; the results service is pointed at the same server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, repository string, runID int64, runtimeToken string) (*Client, error) {
	owner, repo, err := splitRepo(repository)
	if err != nil {
		return nil, err
	}

	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:           client,
		owner:        owner,
		repo:         repo,
		runID:        runID,
		runtimeToken: runtimeToken,
		resultsURL:   normalizeBaseURL(baseURL),
	}, nil
}

// CancelCurrentRun asks the API to cancel the workflow run this client is
// bound to. The API acknowledges cancelation with 202 Accepted, which
// go-github surfaces as an AcceptedError; that is success here.
func (c *Client) CancelCurrentRun(ctx context.Context) error {
	_, err := c.gh.Actions.CancelWorkflowRunByID(ctx, c.owner, c.repo, c.runID)
	var accepted *gh.AcceptedError
	if err != nil && !errors.As(err, &accepted) {
		return fmt.Errorf("canceling workflow run %d: %w", c.runID, err)
	}

	slog.Info("requested cancelation of current workflow run", "run_id", c.runID)
	return nil
}

// splitRepo splits an "owner/name" repository string into its parts.
func splitRepo(repository string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", repository)
	}
	return owner, repo, nil
}

func normalizeBaseURL(u string) string {
	if u == "" {
		return ""
	}
	return strings.TrimSuffix(u, "/") + "/"
}
