package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/testbridge/internal/mbt"
	"github.com/ericfisherdev/testbridge/internal/results"
)

// ExecutionConfig carries the static inputs of the execution pipeline.
type ExecutionConfig struct {
	// RepoRoot is the working copy the generated scripts reference.
	RepoRoot string

	// WorkDir is the parent directory for per-execution workspaces.
	WorkDir string

	// Build identifies the CI build in the ingested report.
	Build results.BuildContext

	// KeepLongOutput disables stdout/stderr truncation in parsed results.
	KeepLongOutput bool
}

// ExecutionService drives one suite run end to end: it fetches the planned
// compositions, generates the driver scripts, invokes the external launcher,
// parses what the launcher produced and pushes the final report to the
// remote system.
type ExecutionService struct {
	hub       driven.TestHubClient
	launcher  driven.TestLauncher
	artifacts driven.ArtifactStore
	journal   driven.SyncJournal
	cfg       ExecutionConfig
}

// NewExecutionService wires one execution pipeline. The artifact store and
// the journal are optional: without them result directories are not uploaded
// and no history is kept.
func NewExecutionService(hub driven.TestHubClient, launcher driven.TestLauncher,
	artifacts driven.ArtifactStore, journal driven.SyncJournal, cfg ExecutionConfig) *ExecutionService {
	return &ExecutionService{hub: hub, launcher: launcher, artifacts: artifacts, journal: journal, cfg: cfg}
}

// Execute runs one planned suite run. Runs whose composition cannot be
// prepared are skipped and logged; the execution fails only when nothing is
// runnable, the launcher cannot start, or the report cannot be delivered.
func (s *ExecutionService) Execute(ctx context.Context, suiteRunID int64) error {
	started := time.Now()

	compositions, err := s.hub.GetSuiteData(ctx, suiteRunID)
	if err != nil {
		return fmt.Errorf("failed to fetch suite data: %w", err)
	}
	if len(compositions) == 0 {
		return fmt.Errorf("suite run %d has no planned runs", suiteRunID)
	}

	runs := s.prepareRuns(compositions)
	if len(runs) == 0 {
		return fmt.Errorf("suite run %d has no runnable compositions", suiteRunID)
	}

	workspace := filepath.Join(s.cfg.WorkDir, "testbridge-"+uuid.NewString())
	spec := driven.LaunchSpec{Workspace: workspace, Runs: runs}
	if err := writeScripts(spec); err != nil {
		return err
	}

	slog.Info("executing suite run",
		"suite_run_id", suiteRunID, "runs", len(runs), "workspace", workspace)
	launch, err := s.launcher.Launch(ctx, spec)
	if err != nil {
		return fmt.Errorf("launcher failed: %w", err)
	}
	slog.Info("launcher finished", "status", launch.Status, "exit_code", launch.ExitCode)

	reportPath, err := s.writeReport(spec, started)
	if err != nil {
		return err
	}

	s.uploadRunResults(ctx, spec)
	s.recordExecution(ctx, suiteRunID, started, len(runs), launch, reportPath)

	reportXML, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("failed to read report back: %w", err)
	}
	if err := s.hub.IngestTestResults(ctx, reportXML); err != nil {
		return fmt.Errorf("failed to ingest results: %w", err)
	}

	slog.Info("suite run results ingested", "suite_run_id", suiteRunID, "report", reportPath)
	return nil
}

// prepareRuns builds the launch input per composition, in run-id order. A
// composition that cannot be prepared costs only its own run.
func (s *ExecutionService) prepareRuns(compositions map[int64]model.MbtComposition) []model.MbtTestInfo {
	runIDs := make([]int64, 0, len(compositions))
	for id := range compositions {
		runIDs = append(runIDs, id)
	}
	sort.Slice(runIDs, func(i, j int) bool { return runIDs[i] < runIDs[j] })

	runs := make([]model.MbtTestInfo, 0, len(runIDs))
	for _, runID := range runIDs {
		info, err := mbt.BuildTestInfo(s.cfg.RepoRoot, runID, compositions[runID])
		if err != nil {
			slog.Warn("skipping run with unusable composition", "run_id", runID, "error", err)
			continue
		}
		runs = append(runs, info)
	}
	return runs
}

// writeScripts lays the workspace out for the launcher: one directory per
// run with its generated driver script.
func writeScripts(spec driven.LaunchSpec) error {
	for _, run := range spec.Runs {
		dir := spec.RunDir(run.RunID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create run dir: %w", err)
		}
		scriptPath := filepath.Join(dir, driven.ScriptFileName)
		if err := os.WriteFile(scriptPath, []byte(run.Script), 0o644); err != nil {
			return fmt.Errorf("failed to write driver script: %w", err)
		}
	}
	return nil
}

// writeReport parses everything the launcher produced and writes the
// ingestion document next to it. A run without a result tree still reports
// through the aggregated results file, just without step detail.
func (s *ExecutionService) writeReport(spec driven.LaunchSpec, started time.Time) (string, error) {
	f, err := os.Open(spec.ResultsFile())
	if err != nil {
		return "", fmt.Errorf("failed to open launcher results: %w", err)
	}
	defer f.Close()

	suites, err := results.ParseSuites(f, s.cfg.KeepLongOutput)
	if err != nil {
		return "", fmt.Errorf("failed to parse launcher results: %w", err)
	}

	stepsByRun := make(map[int64][]results.StepResult)
	for _, suite := range suites {
		for _, c := range suite.Cases {
			if c.RunID <= 0 {
				continue
			}
			if _, ok := stepsByRun[c.RunID]; ok {
				continue
			}
			steps, err := extractRunSteps(spec.RunResultFile(c.RunID))
			if err != nil {
				slog.Warn("no step detail for run", "run_id", c.RunID, "error", err)
				continue
			}
			stepsByRun[c.RunID] = steps
		}
	}

	report := results.BuildReport(s.cfg.Build, suites, stepsByRun, started)
	data, err := report.Marshal()
	if err != nil {
		return "", err
	}

	reportPath := filepath.Join(spec.Workspace, "test_result.xml")
	if err := os.WriteFile(reportPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return reportPath, nil
}

func extractRunSteps(path string) ([]results.StepResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return results.ExtractSteps(f)
}

// uploadRunResults pushes every per-run result directory to artifact storage
// concurrently. Upload failures are isolated per run; a lost artifact never
// fails the execution.
func (s *ExecutionService) uploadRunResults(ctx context.Context, spec driven.LaunchSpec) {
	if s.artifacts == nil {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, run := range spec.Runs {
		dir := filepath.Dir(spec.RunResultFile(run.RunID))
		if _, err := os.Stat(dir); err != nil {
			slog.Debug("run produced no result directory", "run_id", run.RunID)
			continue
		}
		runID := run.RunID
		g.Go(func() error {
			name := fmt.Sprintf("run-results-%d", runID)
			if err := s.artifacts.Upload(ctx, name, dir); err != nil {
				slog.Warn("failed to upload run results", "run_id", runID, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ExecutionService) recordExecution(ctx context.Context, suiteRunID int64, started time.Time,
	runCount int, launch driven.LaunchResult, reportPath string) {
	if s.journal == nil {
		return
	}
	err := s.journal.RecordExecution(ctx, model.SuiteExecution{
		SuiteRunID: suiteRunID,
		StartedAt:  started.UTC(),
		DurationMS: time.Since(started).Milliseconds(),
		RunCount:   runCount,
		Status:     string(launch.Status),
		ReportPath: reportPath,
	})
	if err != nil {
		slog.Warn("failed to journal the suite execution", "error", err)
	}
}
