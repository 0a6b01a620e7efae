// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// TestHub connection.
	HubURL          string
	HubClientID     string
	HubClientSecret string
	SharedSpaceID   int64
	WorkspaceID     int64
	RootFolderID    int64

	// Working copy under synchronization.
	RepoDir string
	Tool    model.ToolType

	// Sync pipeline.
	StateDir        string
	JournalDBPath   string
	MinSyncInterval time.Duration

	// Execution pipeline.
	LauncherPath   string
	WorkDir        string
	KeepLongOutput bool

	// GitHub Actions runner environment, as provided by the platform.
	GitHubToken      string
	GitHubRepository string
	GitHubRunID      int64
	RuntimeToken     string
	ResultsURL       string
	EventName        string
	EventPath        string
	WorkflowRef      string

	// Identity of this pipeline in result reports.
	CIServerID string
	CIJobID    string
	CIBuildID  string
}

// HasGitHub returns true when the Actions environment provides a token, a
// repository and a run id. Used by the composition root to decide whether to
// create the CI client and artifact store or run without them.
func (c *Config) HasGitHub() bool {
	return c.GitHubToken != "" && c.GitHubRepository != "" && c.GitHubRunID > 0
}

// WorkflowFile resolves GITHUB_WORKFLOW_REF ("owner/name/path@ref") to the
// workflow file path inside the working copy. Empty when the ref is absent or
// names a different repository.
func (c *Config) WorkflowFile() string {
	ref := c.WorkflowRef
	if i := strings.IndexByte(ref, '@'); i >= 0 {
		ref = ref[:i]
	}
	rel, ok := strings.CutPrefix(ref, c.GitHubRepository+"/")
	if !ok || rel == "" || c.GitHubRepository == "" {
		return ""
	}
	return filepath.Join(c.RepoDir, filepath.FromSlash(rel))
}

// Load reads configuration from environment variables and returns a validated
// Config. The TestHub connection (TESTBRIDGE_HUB_URL, TESTBRIDGE_HUB_CLIENT_ID,
// TESTBRIDGE_HUB_CLIENT_SECRET, TESTBRIDGE_HUB_SHARED_SPACE_ID,
// TESTBRIDGE_HUB_WORKSPACE_ID) is required. The GitHub Actions context
// (GITHUB_*, ACTIONS_*) is read as the runner provides it and is optional;
// without it the bridge runs with no CI-run cancelation and no artifact
// persistence. Optional variables with defaults: TESTBRIDGE_TOOL (gui),
// TESTBRIDGE_REPO_DIR (GITHUB_WORKSPACE or "."), TESTBRIDGE_STATE_DIR
// (.testbridge-state), TESTBRIDGE_JOURNAL_DB (testbridge.db),
// TESTBRIDGE_MIN_SYNC_INTERVAL (0, guard disabled), TESTBRIDGE_WORK_DIR
// (system temp dir), TESTBRIDGE_KEEP_LONG_OUTPUT (false),
// TESTBRIDGE_CI_SERVER_ID (github-actions).
func Load() (*Config, error) {
	hubURL, err := requiredEnv("TESTBRIDGE_HUB_URL")
	if err != nil {
		return nil, err
	}
	clientID, err := requiredEnv("TESTBRIDGE_HUB_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requiredEnv("TESTBRIDGE_HUB_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	sharedSpaceID, err := requiredInt64Env("TESTBRIDGE_HUB_SHARED_SPACE_ID")
	if err != nil {
		return nil, err
	}
	workspaceID, err := requiredInt64Env("TESTBRIDGE_HUB_WORKSPACE_ID")
	if err != nil {
		return nil, err
	}
	rootFolderID, err := int64Env("TESTBRIDGE_HUB_ROOT_FOLDER_ID", 0)
	if err != nil {
		return nil, err
	}

	repoDir := os.Getenv("GITHUB_WORKSPACE")
	if repoDir == "" {
		repoDir = "."
	}
	if v, ok := os.LookupEnv("TESTBRIDGE_REPO_DIR"); ok {
		repoDir = v
	}

	tool := model.ToolTypeGUI
	if v, ok := os.LookupEnv("TESTBRIDGE_TOOL"); ok {
		switch t := model.ToolType(strings.ToLower(v)); t {
		case model.ToolTypeGUI, model.ToolTypeMBT:
			tool = t
		default:
			return nil, fmt.Errorf("TESTBRIDGE_TOOL has invalid value %q: expected gui or mbt", v)
		}
	}

	stateDir := ".testbridge-state"
	if v, ok := os.LookupEnv("TESTBRIDGE_STATE_DIR"); ok {
		stateDir = v
	}

	journalDBPath := "testbridge.db"
	if v, ok := os.LookupEnv("TESTBRIDGE_JOURNAL_DB"); ok {
		journalDBPath = v
	}

	var minSyncInterval time.Duration
	if v, ok := os.LookupEnv("TESTBRIDGE_MIN_SYNC_INTERVAL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("TESTBRIDGE_MIN_SYNC_INTERVAL has invalid duration %q: %w", v, err)
		}
		minSyncInterval = parsed
	}

	workDir := os.TempDir()
	if v, ok := os.LookupEnv("TESTBRIDGE_WORK_DIR"); ok {
		workDir = v
	}

	keepLongOutput := false
	if v, ok := os.LookupEnv("TESTBRIDGE_KEEP_LONG_OUTPUT"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("TESTBRIDGE_KEEP_LONG_OUTPUT has invalid value %q: %w", v, err)
		}
		keepLongOutput = parsed
	}

	runID, err := int64Env("GITHUB_RUN_ID", 0)
	if err != nil {
		return nil, err
	}

	ciServerID := "github-actions"
	if v, ok := os.LookupEnv("TESTBRIDGE_CI_SERVER_ID"); ok {
		ciServerID = v
	}

	return &Config{
		HubURL:          hubURL,
		HubClientID:     clientID,
		HubClientSecret: clientSecret,
		SharedSpaceID:   sharedSpaceID,
		WorkspaceID:     workspaceID,
		RootFolderID:    rootFolderID,

		RepoDir: repoDir,
		Tool:    tool,

		StateDir:        stateDir,
		JournalDBPath:   journalDBPath,
		MinSyncInterval: minSyncInterval,

		LauncherPath:   os.Getenv("TESTBRIDGE_LAUNCHER_PATH"),
		WorkDir:        workDir,
		KeepLongOutput: keepLongOutput,

		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		GitHubRepository: os.Getenv("GITHUB_REPOSITORY"),
		GitHubRunID:      runID,
		RuntimeToken:     os.Getenv("ACTIONS_RUNTIME_TOKEN"),
		ResultsURL:       os.Getenv("ACTIONS_RESULTS_URL"),
		EventName:        os.Getenv("GITHUB_EVENT_NAME"),
		EventPath:        os.Getenv("GITHUB_EVENT_PATH"),
		WorkflowRef:      os.Getenv("GITHUB_WORKFLOW_REF"),

		CIServerID: ciServerID,
		CIJobID:    os.Getenv("GITHUB_WORKFLOW"),
		CIBuildID:  os.Getenv("GITHUB_RUN_NUMBER"),
	}, nil
}

func requiredEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return v, nil
}

func requiredInt64Env(key string) (int64, error) {
	v, err := requiredEnv(key)
	if err != nil {
		return 0, err
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}

func int64Env(key string, def int64) (int64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	return parsed, nil
}
