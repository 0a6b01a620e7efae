package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SyncJournal = (*JournalRepo)(nil)

// JournalRepo is the SQLite implementation of the SyncJournal port interface.
type JournalRepo struct {
	db *DB
}

// NewJournalRepo creates a new JournalRepo backed by the given DB.
func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// RecordPass inserts a discovery pass record and returns its id.
func (r *JournalRepo) RecordPass(ctx context.Context, pass model.DiscoveryPass) (int64, error) {
	const query = `
		INSERT INTO discovery_passes (started_at, duration_ms, mode, old_commit_id, new_commit_id, test_count, resource_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	startedAt := pass.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		startedAt.UTC(), pass.DurationMS, pass.Mode,
		pass.OldCommitID, pass.NewCommitID, pass.TestCount, pass.ResourceCount,
	)
	if err != nil {
		return 0, fmt.Errorf("record discovery pass: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read discovery pass id: %w", err)
	}
	return id, nil
}

// RecordOperations inserts the dispatch operations of one pass in a single
// transaction.
func (r *JournalRepo) RecordOperations(ctx context.Context, passID int64, ops []model.DispatchOperation) error {
	if len(ops) == 0 {
		return nil
	}

	const query = `
		INSERT INTO dispatch_operations (pass_id, kind, target_path, succeeded, detail, at)
		VALUES (?, ?, ?, ?, ?, ?)`

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin operations tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, op := range ops {
		at := op.At
		if at.IsZero() {
			at = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query, passID, op.Kind, op.TargetPath, op.Succeeded, op.Detail, at.UTC()); err != nil {
			return fmt.Errorf("record %s operation for pass %d: %w", op.Kind, passID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit operations for pass %d: %w", passID, err)
	}
	return nil
}

// RecordExecution inserts a suite execution record.
func (r *JournalRepo) RecordExecution(ctx context.Context, exec model.SuiteExecution) error {
	const query = `
		INSERT INTO suite_executions (suite_run_id, started_at, duration_ms, run_count, status, report_path)
		VALUES (?, ?, ?, ?, ?, ?)`

	startedAt := exec.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		exec.SuiteRunID, startedAt.UTC(), exec.DurationMS, exec.RunCount, exec.Status, exec.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("record execution of suite run %d: %w", exec.SuiteRunID, err)
	}
	return nil
}

// RecentPasses returns the most recent discovery passes, newest first.
func (r *JournalRepo) RecentPasses(ctx context.Context, limit int) ([]model.DiscoveryPass, error) {
	const query = `
		SELECT id, started_at, duration_ms, mode, old_commit_id, new_commit_id, test_count, resource_count
		FROM discovery_passes ORDER BY id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list discovery passes: %w", err)
	}
	defer rows.Close()

	var passes []model.DiscoveryPass
	for rows.Next() {
		var pass model.DiscoveryPass
		var startedAt string
		if err := rows.Scan(&pass.ID, &startedAt, &pass.DurationMS, &pass.Mode,
			&pass.OldCommitID, &pass.NewCommitID, &pass.TestCount, &pass.ResourceCount); err != nil {
			return nil, fmt.Errorf("scan discovery pass: %w", err)
		}
		if pass.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		passes = append(passes, pass)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discovery passes: %w", err)
	}
	return passes, nil
}

// OperationsForPass returns the dispatch operations of one pass in insertion
// order.
func (r *JournalRepo) OperationsForPass(ctx context.Context, passID int64) ([]model.DispatchOperation, error) {
	const query = `
		SELECT id, pass_id, kind, target_path, succeeded, detail, at
		FROM dispatch_operations WHERE pass_id = ? ORDER BY id`

	rows, err := r.db.Reader.QueryContext(ctx, query, passID)
	if err != nil {
		return nil, fmt.Errorf("list operations for pass %d: %w", passID, err)
	}
	defer rows.Close()

	var ops []model.DispatchOperation
	for rows.Next() {
		var op model.DispatchOperation
		var at string
		if err := rows.Scan(&op.ID, &op.PassID, &op.Kind, &op.TargetPath, &op.Succeeded, &op.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan dispatch operation: %w", err)
		}
		if op.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse operation time: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatch operations: %w", err)
	}
	return ops, nil
}

// RecentExecutions returns the most recent suite executions, newest first.
func (r *JournalRepo) RecentExecutions(ctx context.Context, limit int) ([]model.SuiteExecution, error) {
	const query = `
		SELECT id, suite_run_id, started_at, duration_ms, run_count, status, report_path
		FROM suite_executions ORDER BY id DESC LIMIT ?`

	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var execs []model.SuiteExecution
	for rows.Next() {
		var exec model.SuiteExecution
		var startedAt string
		if err := rows.Scan(&exec.ID, &exec.SuiteRunID, &startedAt, &exec.DurationMS,
			&exec.RunCount, &exec.Status, &exec.ReportPath); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		if exec.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		execs = append(execs, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return execs, nil
}

// parseTime tries the datetime formats SQLite hands back depending on how the
// value was bound.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
