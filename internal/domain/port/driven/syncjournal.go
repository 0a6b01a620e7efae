package driven

import (
	"context"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// SyncJournal defines the driven port for the local history of discovery
// passes, remote writes and suite executions.
type SyncJournal interface {
	RecordPass(ctx context.Context, pass model.DiscoveryPass) (int64, error)
	RecordOperations(ctx context.Context, passID int64, ops []model.DispatchOperation) error
	RecordExecution(ctx context.Context, exec model.SuiteExecution) error

	RecentPasses(ctx context.Context, limit int) ([]model.DiscoveryPass, error)
	OperationsForPass(ctx context.Context, passID int64) ([]model.DispatchOperation, error)
	RecentExecutions(ctx context.Context, limit int) ([]model.SuiteExecution, error)
}
