// Package git implements the SCM port by shelling out to the git CLI against
// the local working copy.
package git

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Client runs git commands inside a single working copy.
type Client struct {
	repoDir string
}

// Compile-time check that Client implements the ScmClient port.
var _ driven.ScmClient = (*Client)(nil)

// NewClient creates a client for the working copy at repoDir.
func NewClient(repoDir string) *Client {
	return &Client{repoDir: repoDir}
}

// HeadCommit returns the commit id the working copy is checked out at.
func (c *Client) HeadCommit(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Changes returns the filtered, rename-resolved diff between two commits.
//
// The raw diff is taken without git's own rename detection so that pairing
// stays deterministic: exact content matches between a deleted and an added
// path become moves, and same-path edits keep their old identity only when
// enough lines survived the change.
func (c *Client) Changes(ctx context.Context, tool model.ToolType, oldCommit, newCommit string) ([]model.AffectedFile, error) {
	out, err := c.run(ctx, "diff-tree", "-r", "-z", "--no-renames", "--full-index", oldCommit, newCommit)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", oldCommit, newCommit, err)
	}

	entries, err := parseRawDiff(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff output: %w", err)
	}

	relevant := entries[:0]
	for _, e := range entries {
		if allowedFile(tool, e.path) {
			relevant = append(relevant, e)
		}
	}

	files := resolveChanges(relevant, func(id string) ([]byte, error) {
		return c.blob(ctx, id)
	})

	slog.Debug("scm diff resolved",
		"old", oldCommit, "new", newCommit,
		"raw_entries", len(entries), "affected_files", len(files))
	return files, nil
}

// blob reads raw blob content by id.
func (c *Client) blob(ctx context.Context, id string) ([]byte, error) {
	out, err := c.run(ctx, "cat-file", "blob", id)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = c.repoDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git %s: %s: %w", args[0], msg, err)
		}
		return nil, fmt.Errorf("git %s: %w", args[0], err)
	}
	return out, nil
}
