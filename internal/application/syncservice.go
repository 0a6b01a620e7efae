package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// ErrSyncInterval is returned when a sync request arrives before the minimum
// interval since the previous sync has elapsed.
var ErrSyncInterval = errors.New("minimum sync interval not elapsed")

// Discoverer produces discovery results from the working copy.
type Discoverer interface {
	FullScan(ctx context.Context) (*model.DiscoveryResult, error)
	IncrementalScan(ctx context.Context, oldCommit, newCommit string) (*model.DiscoveryResult, error)
}

// Reconciler aligns a discovery result with the remote state.
type Reconciler interface {
	Reconcile(ctx context.Context, result *model.DiscoveryResult) (*FolderPlan, error)
}

// Dispatcher performs the remote writes for a reconciled result.
type Dispatcher interface {
	Dispatch(ctx context.Context, result *model.DiscoveryResult, plan *FolderPlan) ([]model.DispatchOperation, error)
}

var (
	_ Discoverer = (*DiscoveryService)(nil)
	_ Reconciler = (*ReconcileService)(nil)
	_ Dispatcher = (*DispatchService)(nil)
)

// SyncService runs one synchronization pass end to end: discovery,
// reconciliation and dispatch, guarded by a minimum interval between passes
// and tracked in the local state files and the journal.
type SyncService struct {
	discovery   Discoverer
	reconcile   Reconciler
	dispatch    Dispatcher
	state       driven.StateStore
	journal     driven.SyncJournal
	ci          driven.CIClient
	minInterval time.Duration
}

// NewSyncService wires one synchronization pipeline. The CI client and the
// journal are optional: without a CI client an interval trip only returns
// ErrSyncInterval, without a journal no history is kept.
func NewSyncService(discovery Discoverer, reconcile Reconciler, dispatch Dispatcher,
	state driven.StateStore, journal driven.SyncJournal, ci driven.CIClient, minInterval time.Duration) *SyncService {
	return &SyncService{
		discovery:   discovery,
		reconcile:   reconcile,
		dispatch:    dispatch,
		state:       state,
		journal:     journal,
		ci:          ci,
		minInterval: minInterval,
	}
}

// Sync synchronizes the repository with the remote system up to targetCommit,
// or up to HEAD when targetCommit is empty. The stored commit only advances
// when every remote write succeeded; a failed pass reruns from the previous
// commit and reconciliation absorbs the writes that already went through.
func (s *SyncService) Sync(ctx context.Context, targetCommit string) error {
	if err := s.guardInterval(ctx); err != nil {
		return err
	}

	lastCommit, err := s.state.LastCommit()
	if err != nil {
		return fmt.Errorf("failed to read last synced commit: %w", err)
	}

	started := time.Now()
	mode := "incremental"
	var result *model.DiscoveryResult
	if lastCommit == "" {
		mode = "full"
		result, err = s.discovery.FullScan(ctx)
	} else {
		result, err = s.discovery.IncrementalScan(ctx, lastCommit, targetCommit)
	}
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	passID := s.recordPass(ctx, started, mode, lastCommit, result)

	if !result.HasChanges() {
		slog.Info("nothing to synchronize", "commit", result.NewCommitID)
		return s.advanceState(result.NewCommitID)
	}

	plan, err := s.reconcile.Reconcile(ctx, result)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	ops, dispatchErr := s.dispatch.Dispatch(ctx, result, plan)
	s.recordOperations(ctx, passID, ops)
	if dispatchErr != nil {
		return fmt.Errorf("dispatch failed: %w", dispatchErr)
	}

	return s.advanceState(result.NewCommitID)
}

// guardInterval enforces the minimum spacing between passes. On a trip it
// cancels the enclosing CI run, so the skipped sync is visible there instead
// of ending as a green no-op build.
func (s *SyncService) guardInterval(ctx context.Context) error {
	if s.minInterval <= 0 {
		return nil
	}
	last, err := s.state.LastSyncTime()
	if err != nil {
		return fmt.Errorf("failed to read last sync time: %w", err)
	}
	if last.IsZero() {
		return nil
	}
	elapsed := time.Since(last)
	if elapsed >= s.minInterval {
		return nil
	}

	slog.Warn("sync requested inside the minimum interval, canceling this run",
		"elapsed", elapsed, "min_interval", s.minInterval)
	if s.ci != nil {
		if err := s.ci.CancelCurrentRun(ctx); err != nil {
			slog.Warn("failed to cancel the ci run", "error", err)
		}
	}
	return ErrSyncInterval
}

func (s *SyncService) recordPass(ctx context.Context, started time.Time, mode, oldCommit string, result *model.DiscoveryResult) int64 {
	if s.journal == nil {
		return 0
	}
	passID, err := s.journal.RecordPass(ctx, model.DiscoveryPass{
		StartedAt:     started.UTC(),
		DurationMS:    time.Since(started).Milliseconds(),
		Mode:          mode,
		OldCommitID:   oldCommit,
		NewCommitID:   result.NewCommitID,
		TestCount:     len(result.Tests),
		ResourceCount: len(result.ResourceFiles),
	})
	if err != nil {
		slog.Warn("failed to journal the discovery pass", "error", err)
		return 0
	}
	return passID
}

func (s *SyncService) recordOperations(ctx context.Context, passID int64, ops []model.DispatchOperation) {
	if s.journal == nil || len(ops) == 0 {
		return
	}
	if err := s.journal.RecordOperations(ctx, passID, ops); err != nil {
		slog.Warn("failed to journal dispatch operations", "error", err)
	}
}

func (s *SyncService) advanceState(commitID string) error {
	if err := s.state.SetLastCommit(commitID); err != nil {
		return fmt.Errorf("failed to store last synced commit: %w", err)
	}
	if err := s.state.SetLastSyncTime(time.Now()); err != nil {
		return fmt.Errorf("failed to store last sync time: %w", err)
	}
	slog.Info("sync state advanced", "commit", commitID)
	return nil
}
