// Package testhub implements the TestHubClient port against the remote
// test-management REST API with basic-auth API access keys.
package testhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.TestHubClient = (*Client)(nil)

const (
	// pageLimit is the read page size. The API caps responses at 1000 rows.
	pageLimit = 1000
	// writeChunkSize bounds bulk create/update payloads.
	writeChunkSize = 100

	requestTimeout = 30 * time.Second
)

// Client talks to one workspace of the remote test-management system.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	apiPath      string
	rootFolderID int64
}

// NewClient creates a client for the given server and workspace. The root
// folder is where auto-discovery folders are created.
func NewClient(baseURL, clientID, clientSecret string, sharedSpaceID, workspaceID, rootFolderID int64) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: requestTimeout},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		apiPath:      fmt.Sprintf("/api/shared_spaces/%d/workspaces/%d", sharedSpaceID, workspaceID),
		rootFolderID: rootFolderID,
	}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, sharedSpaceID, workspaceID, rootFolderID int64) *Client {
	c := NewClient(baseURL, "test-client", "test-secret", sharedSpaceID, workspaceID, rootFolderID)
	c.httpClient = httpClient
	return c
}

// listResponse is the standard collection envelope of the API.
type listResponse[T any] struct {
	TotalCount int `json:"total_count"`
	Data       []T `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, nil, strings.NewReader(string(data)), "application/json", out)
}

func (c *Client) putJSON(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, nil, strings.NewReader(string(data)), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	u := c.baseURL + c.apiPath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

// chunked splits items into writeChunkSize batches.
func chunked[T any](items []T) [][]T {
	var chunks [][]T
	for len(items) > writeChunkSize {
		chunks = append(chunks, items[:writeChunkSize])
		items = items[writeChunkSize:]
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}
