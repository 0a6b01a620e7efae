// Package launcher implements the test-launcher port by driving the external
// automation-tool launcher as a subprocess.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// Launcher exit codes. Anything else maps to LaunchStatusUnknown.
const (
	exitPassed  = 0
	exitFailed  = 1
	exitAborted = 2
)

// Tool runs the external launcher executable.
type Tool struct {
	execPath string
}

var _ driven.TestLauncher = (*Tool)(nil)

// NewTool creates a launcher bound to the given executable path.
func NewTool(execPath string) *Tool {
	return &Tool{execPath: execPath}
}

// Launch writes the manifest and parameter files for the spec, then runs the
// launcher and blocks until it exits. Output is streamed through as it
// arrives and captured for the error path.
func (t *Tool) Launch(ctx context.Context, spec driven.LaunchSpec) (driven.LaunchResult, error) {
	manifestPath := filepath.Join(spec.Workspace, "testlist.xml")
	if err := writeTestList(manifestPath, spec); err != nil {
		return driven.LaunchResult{}, fmt.Errorf("failed to write test list: %w", err)
	}

	propsPath := filepath.Join(spec.Workspace, "launch.properties")
	props := properties{
		RunType:      "MBT",
		TestListFile: manifestPath,
		ResultsFile:  spec.ResultsFile(),
		ResultsDir:   spec.ResultsDir(),
	}
	if err := writeProperties(propsPath, props); err != nil {
		return driven.LaunchResult{}, fmt.Errorf("failed to write parameter file: %w", err)
	}

	if err := os.MkdirAll(spec.ResultsDir(), 0o755); err != nil {
		return driven.LaunchResult{}, fmt.Errorf("failed to create results dir: %w", err)
	}

	slog.Info("starting launcher", "exec", t.execPath, "params", propsPath, "runs", len(spec.Runs))

	cmd := exec.CommandContext(ctx, t.execPath, propsPath)
	cmd.Dir = spec.Workspace

	var stderrBuf bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderrBuf)

	err := cmd.Run()
	if err == nil {
		return driven.LaunchResult{Status: model.LaunchStatusPassed, ExitCode: exitPassed}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return driven.LaunchResult{}, fmt.Errorf("failed to run launcher: %w", err)
	}

	code := normalizeExitCode(exitErr.ExitCode())
	status := statusForExit(code)
	slog.Warn("launcher exited non-zero",
		"exit_code", code, "status", status, "stderr", stderrBuf.String())
	return driven.LaunchResult{Status: status, ExitCode: code}, nil
}

// normalizeExitCode folds unsigned 32-bit exit codes, as reported by Windows
// hosts, back into their signed form.
func normalizeExitCode(code int) int {
	if code > 0x7FFFFFFF {
		code -= 1 << 32
	}
	return code
}

func statusForExit(code int) model.LaunchStatus {
	switch code {
	case exitPassed:
		return model.LaunchStatusPassed
	case exitFailed:
		return model.LaunchStatusFailed
	case exitAborted:
		return model.LaunchStatusAborted
	default:
		return model.LaunchStatusUnknown
	}
}
