package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	ghAdapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = int64(777)

// newTestClient creates a Client backed by the given httptest handler. The
// runtime token defaults to one carrying valid results-service backend ids.
func newTestClient(t *testing.T, handler http.Handler) (*ghAdapter.Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(
		server.Client(),
		server.URL+"/",
		"owner/repo",
		testRunID,
		makeRuntimeToken(t, "Actions.Results:run-backend-1:job-backend-2"),
	)
	require.NoError(t, err)

	return client, server
}

func TestCancelCurrentRun(t *testing.T) {
	var gotPath string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		// The live API acknowledges cancelation with 202 and an empty body.
		w.WriteHeader(http.StatusAccepted)
	})

	client, _ := newTestClient(t, handler)
	err := client.CancelCurrentRun(context.Background())

	require.NoError(t, err, "202 Accepted should count as success")
	assert.Equal(t, "/repos/owner/repo/actions/runs/777/cancel", gotPath)
}

func TestCancelCurrentRun_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	client, _ := newTestClient(t, handler)
	err := client.CancelCurrentRun(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "canceling workflow run 777")
}

func TestNewClientWithHTTPClient_InvalidRepository(t *testing.T) {
	tests := []struct {
		name       string
		repository string
	}{
		{name: "no slash", repository: "invalid"},
		{name: "empty owner", repository: "/repo"},
		{name: "empty name", repository: "owner/"},
		{name: "empty string", repository: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ghAdapter.NewClientWithHTTPClient(http.DefaultClient, "http://example.invalid/", tc.repository, 1, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid repository")
		})
	}
}
