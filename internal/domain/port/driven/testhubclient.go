package driven

import (
	"context"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// TestHubClient defines the driven port for the remote test-management API.
// Read methods page through results transparently; write methods chunk large
// batches and must be safe to retry.
type TestHubClient interface {
	// GetUnitsByRepositoryPaths fetches units whose repository path exactly
	// matches any of the given paths.
	GetUnitsByRepositoryPaths(ctx context.Context, paths []string) ([]model.Unit, error)

	// GetUnitsByPathPrefixes fetches units whose repository path starts with
	// any of the given prefixes.
	GetUnitsByPathPrefixes(ctx context.Context, prefixes []string) ([]model.Unit, error)

	// GetUnitsInFolders fetches units whose parent folder bears any of the
	// given names.
	GetUnitsInFolders(ctx context.Context, folderNames []string) ([]model.Unit, error)

	CreateUnits(ctx context.Context, units []model.UnitCreate) ([]model.Unit, error)
	UpdateUnits(ctx context.Context, updates []model.UnitUpdate) error

	// DetachUnits clears the repository path and the runner link of the given
	// units, reverting them to not-automated without deleting remote history.
	DetachUnits(ctx context.Context, ids []int64) error

	CreateParameters(ctx context.Context, params []model.ParamCreate) error

	// GetFoldersByNames fetches auto-discovery folders by exact name.
	GetFoldersByNames(ctx context.Context, names []string) ([]model.UnitFolder, error)

	// CreateFolders creates folders with the given names under the configured
	// auto-discovery root.
	CreateFolders(ctx context.Context, names []string) ([]model.UnitFolder, error)

	RenameFolder(ctx context.Context, folderID int64, newName string) error

	// GetSuiteData fetches the planned compositions of a suite run, keyed by
	// run id.
	GetSuiteData(ctx context.Context, suiteRunID int64) (map[int64]model.MbtComposition, error)

	// IngestTestResults pushes a complete result report, serialized in the
	// remote system's XML ingestion format.
	IngestTestResults(ctx context.Context, reportXML []byte) error
}
