package github_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	ghAdapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twirpPath = "/twirp/github.actions.results.api.v1.ArtifactService/"

// makeRuntimeToken builds an unsigned JWT carrying the given scp claim, the
// shape the runner exposes as ACTIONS_RUNTIME_TOKEN.
func makeRuntimeToken(t *testing.T, scp string) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	claims, err := json.Marshal(map[string]string{"scp": scp})
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(claims)

	return header + "." + payload + "." + base64.RawURLEncoding.EncodeToString([]byte("sig"))
}

// makeZip builds an in-memory archive from name→content pairs.
func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// readZip expands an archive back into name→content pairs.
func readZip(t *testing.T, archive []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	files := map[string]string{}
	for _, entry := range zr.File {
		r, err := entry.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		files[entry.Name] = string(content)
	}
	return files
}

func TestUpload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "results.xml"), []byte("<results/>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "501"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "501", "run_results.xml"), []byte("<run/>"), 0o644))

	var (
		server   *httptest.Server
		uploaded []byte
	)

	mux := http.NewServeMux()
	mux.HandleFunc(twirpPath+"CreateArtifact", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.NotEmpty(t, r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "run-backend-1", req["workflow_run_backend_id"])
		assert.Equal(t, "job-backend-2", req["workflow_job_run_backend_id"])
		assert.Equal(t, "run-results-501", req["name"])
		assert.Equal(t, float64(4), req["version"])

		json.NewEncoder(w).Encode(map[string]any{
			"ok":                true,
			"signed_upload_url": server.URL + "/blob/run-results-501",
		})
	})
	mux.HandleFunc("/blob/run-results-501", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "BlockBlob", r.Header.Get("x-ms-blob-type"))
		assert.Equal(t, "application/zip", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		uploaded = body
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc(twirpPath+"FinalizeArtifact", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "run-results-501", req["name"])
		assert.Equal(t, strconv.Itoa(len(uploaded)), req["size"])

		hash, ok := req["hash"].(map[string]any)
		require.True(t, ok, "hash should be a wrapped string value")
		assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(uploaded)), hash["value"])

		json.NewEncoder(w).Encode(map[string]any{"ok": true, "artifact_id": "42"})
	})

	client, s := newTestClient(t, mux)
	server = s

	require.NoError(t, client.Upload(context.Background(), "run-results-501", dir))

	require.NotEmpty(t, uploaded, "blob body should have been captured")
	assert.Equal(t, map[string]string{
		"results.xml":         "<results/>",
		"501/run_results.xml": "<run/>",
	}, readZip(t, uploaded))
}

func TestUpload_InvalidRuntimeToken(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected when the runtime token cannot be parsed")
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", "owner/repo", testRunID, "not-a-jwt")
	require.NoError(t, err)

	err = client.Upload(context.Background(), "run-results-501", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a JWT")
}

func TestUpload_ServiceRefusesArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(twirpPath+"CreateArtifact", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false})
	})

	client, _ := newTestClient(t, mux)
	err := client.Upload(context.Background(), "run-results-501", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service refused")
}

func TestDownload(t *testing.T) {
	archive := makeZip(t, map[string]string{
		"results.xml":         "<results/>",
		"501/run_results.xml": "<run/>",
	})

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/actions/artifacts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "run-results-501", r.URL.Query().Get("name"))
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"artifacts": []map[string]any{
				{
					"id":                   int64(1),
					"name":                 "run-results-501",
					"archive_download_url": server.URL + "/download/1",
				},
			},
		})
	})
	mux.HandleFunc("/download/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write(archive)
	})

	client, s := newTestClient(t, mux)
	server = s

	dest := t.TempDir()
	require.NoError(t, client.Download(context.Background(), "run-results-501", dest))

	content, err := os.ReadFile(filepath.Join(dest, "results.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<results/>", string(content))

	content, err = os.ReadFile(filepath.Join(dest, "501", "run_results.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<run/>", string(content))
}

func TestDownload_ArtifactNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/actions/artifacts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"total_count": 0, "artifacts": []any{}})
	})

	client, _ := newTestClient(t, mux)
	err := client.Download(context.Background(), "run-results-501", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), `artifact "run-results-501" not found`)
}

func TestDownload_RejectsEscapingEntries(t *testing.T) {
	archive := makeZip(t, map[string]string{"../evil.txt": "nope"})

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/actions/artifacts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"artifacts": []map[string]any{
				{"id": int64(1), "name": "run-results-501", "archive_download_url": server.URL + "/download/1"},
			},
		})
	})
	mux.HandleFunc("/download/1", func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	})

	client, s := newTestClient(t, mux)
	server = s

	err := client.Download(context.Background(), "run-results-501", t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the target directory")
}
