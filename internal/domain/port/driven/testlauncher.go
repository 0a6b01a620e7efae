package driven

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// ScriptFileName is the driver script file inside each run directory.
const ScriptFileName = "Script.mts"

// LaunchSpec describes one launcher invocation: the workspace holding the
// generated inputs and the prepared runs to execute. The path methods are the
// layout contract between the executor and the launcher adapter.
type LaunchSpec struct {
	Workspace string
	Runs      []model.MbtTestInfo
}

// RunDir is the per-run directory holding the generated driver script.
func (s LaunchSpec) RunDir(runID int64) string {
	return filepath.Join(s.Workspace, "runs", strconv.FormatInt(runID, 10))
}

// ResultsFile is where the launcher writes its aggregated JUnit-style
// results.
func (s LaunchSpec) ResultsFile() string {
	return filepath.Join(s.Workspace, "results.xml")
}

// ResultsDir is where the launcher writes one result tree per run, in a
// subdirectory named after the run id.
func (s LaunchSpec) ResultsDir() string {
	return filepath.Join(s.Workspace, "results")
}

// RunResultFile is the result tree the launcher writes for one run.
func (s LaunchSpec) RunResultFile(runID int64) string {
	return filepath.Join(s.ResultsDir(), strconv.FormatInt(runID, 10), "run_results.xml")
}

// LaunchResult is what the external launcher reported back.
type LaunchResult struct {
	Status model.LaunchStatus

	// ExitCode is the normalized process exit code, kept for logging.
	ExitCode int
}

// TestLauncher defines the driven port for the external automation-tool
// launcher process.
type TestLauncher interface {
	// Launch writes the launcher inputs for the spec, starts the tool and
	// blocks until it exits. A non-nil error means the process could not run
	// or terminate; tool-reported failures come back in the result status.
	Launch(ctx context.Context, spec LaunchSpec) (LaunchResult, error)
}
