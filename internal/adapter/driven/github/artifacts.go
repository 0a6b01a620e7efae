package github

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v82/github"
)

// Artifact uploads speak the Actions results-service v4 protocol: a twirp
// CreateArtifact call returns a signed blob URL, the zipped payload is PUT
// there, and FinalizeArtifact seals it with size and digest. Downloads go
// through the plain REST artifact listing instead, because the enclosing run
// is finished by the time results are fetched.

const artifactServicePath = "twirp/github.actions.results.api.v1.ArtifactService/"

type createArtifactRequest struct {
	WorkflowRunBackendID    string `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string `json:"workflow_job_run_backend_id"`
	Name                    string `json:"name"`
	Version                 int    `json:"version"`
}

type createArtifactResponse struct {
	OK              bool   `json:"ok"`
	SignedUploadURL string `json:"signed_upload_url"`
}

type finalizeArtifactRequest struct {
	WorkflowRunBackendID    string     `json:"workflow_run_backend_id"`
	WorkflowJobRunBackendID string     `json:"workflow_job_run_backend_id"`
	Name                    string     `json:"name"`
	Size                    string     `json:"size"`
	Hash                    stringValue `json:"hash"`
}

// stringValue mirrors the protobuf StringValue wrapper in twirp JSON.
type stringValue struct {
	Value string `json:"value"`
}

type finalizeArtifactResponse struct {
	OK         bool   `json:"ok"`
	ArtifactID string `json:"artifact_id"`
}

// Upload zips the contents of dir and stores them as a workflow artifact
// under the given name.
func (c *Client) Upload(ctx context.Context, name, dir string) error {
	ids, err := backendIDsFromToken(c.runtimeToken)
	if err != nil {
		return fmt.Errorf("uploading artifact %q: %w", name, err)
	}

	payload, err := zipDir(dir)
	if err != nil {
		return fmt.Errorf("uploading artifact %q: %w", name, err)
	}

	var created createArtifactResponse
	err = c.twirp(ctx, "CreateArtifact", createArtifactRequest{
		WorkflowRunBackendID:    ids.workflowRun,
		WorkflowJobRunBackendID: ids.jobRun,
		Name:                    name,
		Version:                 4,
	}, &created)
	if err != nil {
		return fmt.Errorf("creating artifact %q: %w", name, err)
	}
	if !created.OK || created.SignedUploadURL == "" {
		return fmt.Errorf("creating artifact %q: service refused the upload", name)
	}

	if err := c.putBlob(ctx, created.SignedUploadURL, payload); err != nil {
		return fmt.Errorf("uploading artifact %q: %w", name, err)
	}

	digest := sha256.Sum256(payload)
	var finalized finalizeArtifactResponse
	err = c.twirp(ctx, "FinalizeArtifact", finalizeArtifactRequest{
		WorkflowRunBackendID:    ids.workflowRun,
		WorkflowJobRunBackendID: ids.jobRun,
		Name:                    name,
		Size:                    strconv.Itoa(len(payload)),
		Hash:                    stringValue{Value: fmt.Sprintf("sha256:%x", digest)},
	}, &finalized)
	if err != nil {
		return fmt.Errorf("finalizing artifact %q: %w", name, err)
	}
	if !finalized.OK {
		return fmt.Errorf("finalizing artifact %q: service refused the artifact", name)
	}

	slog.Info("artifact uploaded", "name", name, "size_bytes", len(payload), "artifact_id", finalized.ArtifactID)
	return nil
}

// Download fetches the newest repository artifact with the given name and
// unpacks it into destDir. The listing is repository-wide, not run-scoped,
// because the consuming job usually belongs to a later run than the one that
// produced the artifact.
func (c *Client) Download(ctx context.Context, name, destDir string) error {
	artifacts, _, err := c.gh.Actions.ListArtifacts(ctx, c.owner, c.repo, &gh.ListArtifactsOptions{
		Name: gh.Ptr(name),
	})
	if err != nil {
		return fmt.Errorf("listing artifacts named %q: %w", name, err)
	}
	if len(artifacts.Artifacts) == 0 {
		return fmt.Errorf("artifact %q not found", name)
	}
	artifact := artifacts.Artifacts[0]

	req, err := c.gh.NewRequest(http.MethodGet, artifact.GetArchiveDownloadURL(), nil)
	if err != nil {
		return fmt.Errorf("building download request for artifact %q: %w", name, err)
	}

	var archive bytes.Buffer
	if _, err := c.gh.Do(ctx, req, &archive); err != nil {
		return fmt.Errorf("downloading artifact %q: %w", name, err)
	}

	if err := unzipTo(archive.Bytes(), destDir); err != nil {
		return fmt.Errorf("unpacking artifact %q: %w", name, err)
	}

	slog.Info("artifact downloaded", "name", name, "size_bytes", archive.Len(), "dest", destDir)
	return nil
}

// twirp posts a JSON request to the results-service ArtifactService.
func (c *Client) twirp(ctx context.Context, method string, body, out any) error {
	if c.resultsURL == "" {
		return fmt.Errorf("results service URL is not configured")
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resultsURL+artifactServicePath+method, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.runtimeToken)

	resp, err := c.gh.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", method, err)
	}
	return nil
}

func (c *Client) putBlob(ctx context.Context, signedURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build blob request: %w", err)
	}
	req.Header.Set("x-ms-blob-type", "BlockBlob")
	req.Header.Set("Content-Type", "application/zip")

	resp, err := c.gh.Client().Do(req)
	if err != nil {
		return fmt.Errorf("blob upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("blob upload: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

type backendIDs struct {
	workflowRun string
	jobRun      string
}

// backendIDsFromToken extracts the results-service backend ids from the
// runtime token. The token is a JWT whose scp claim carries an
// "Actions.Results:<run>:<job>" scope.
func backendIDsFromToken(token string) (backendIDs, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return backendIDs{}, fmt.Errorf("runtime token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return backendIDs{}, fmt.Errorf("failed to decode runtime token claims: %w", err)
	}

	var claims struct {
		Scopes string `json:"scp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return backendIDs{}, fmt.Errorf("failed to decode runtime token claims: %w", err)
	}

	for _, scope := range strings.Fields(claims.Scopes) {
		rest, ok := strings.CutPrefix(scope, "Actions.Results:")
		if !ok {
			continue
		}
		runID, jobID, ok := strings.Cut(rest, ":")
		if !ok || runID == "" || jobID == "" {
			continue
		}
		return backendIDs{workflowRun: runID, jobRun: jobID}, nil
	}
	return backendIDs{}, fmt.Errorf("runtime token carries no Actions.Results scope")
}
