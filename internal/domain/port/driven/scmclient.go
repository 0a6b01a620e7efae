package driven

import (
	"context"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// ScmClient defines the driven port for source-control queries against the
// local working copy.
type ScmClient interface {
	// Changes returns the filtered, rename-resolved diff between two commits.
	// Only files relevant to the given tool type are reported.
	Changes(ctx context.Context, tool model.ToolType, oldCommit, newCommit string) ([]model.AffectedFile, error)

	// HeadCommit returns the commit id the working copy is checked out at.
	HeadCommit(ctx context.Context) (string, error)
}
