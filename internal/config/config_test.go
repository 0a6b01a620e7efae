package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// allConfigKeys lists every env var that Load() reads.
var allConfigKeys = []string{
	"TESTBRIDGE_HUB_URL",
	"TESTBRIDGE_HUB_CLIENT_ID",
	"TESTBRIDGE_HUB_CLIENT_SECRET",
	"TESTBRIDGE_HUB_SHARED_SPACE_ID",
	"TESTBRIDGE_HUB_WORKSPACE_ID",
	"TESTBRIDGE_HUB_ROOT_FOLDER_ID",
	"TESTBRIDGE_REPO_DIR",
	"TESTBRIDGE_TOOL",
	"TESTBRIDGE_STATE_DIR",
	"TESTBRIDGE_JOURNAL_DB",
	"TESTBRIDGE_MIN_SYNC_INTERVAL",
	"TESTBRIDGE_LAUNCHER_PATH",
	"TESTBRIDGE_WORK_DIR",
	"TESTBRIDGE_KEEP_LONG_OUTPUT",
	"TESTBRIDGE_CI_SERVER_ID",
	"GITHUB_WORKSPACE",
	"GITHUB_TOKEN",
	"GITHUB_REPOSITORY",
	"GITHUB_RUN_ID",
	"GITHUB_RUN_NUMBER",
	"GITHUB_WORKFLOW",
	"GITHUB_WORKFLOW_REF",
	"GITHUB_EVENT_NAME",
	"GITHUB_EVENT_PATH",
	"ACTIONS_RUNTIME_TOKEN",
	"ACTIONS_RESULTS_URL",
}

// isolateConfigEnv saves and unsets all env vars Load() reads so tests don't
// inherit values from the host environment (e.g. an enclosing Actions runner).
// t.Cleanup restores original values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

// setRequiredHubEnv sets the minimal TestHub connection Load() insists on.
func setRequiredHubEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TESTBRIDGE_HUB_URL", "https://hub.example.com")
	t.Setenv("TESTBRIDGE_HUB_CLIENT_ID", "bridge_abc")
	t.Setenv("TESTBRIDGE_HUB_CLIENT_SECRET", "s3cret")
	t.Setenv("TESTBRIDGE_HUB_SHARED_SPACE_ID", "1001")
	t.Setenv("TESTBRIDGE_HUB_WORKSPACE_ID", "2002")
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_HUB_ROOT_FOLDER_ID", "3003")
	t.Setenv("TESTBRIDGE_REPO_DIR", "/srv/checkout")
	t.Setenv("TESTBRIDGE_TOOL", "mbt")
	t.Setenv("TESTBRIDGE_STATE_DIR", "/var/lib/bridge/state")
	t.Setenv("TESTBRIDGE_JOURNAL_DB", "/var/lib/bridge/journal.db")
	t.Setenv("TESTBRIDGE_MIN_SYNC_INTERVAL", "10m")
	t.Setenv("TESTBRIDGE_LAUNCHER_PATH", `C:\tools\launcher.exe`)
	t.Setenv("TESTBRIDGE_WORK_DIR", "/scratch")
	t.Setenv("TESTBRIDGE_KEEP_LONG_OUTPUT", "true")
	t.Setenv("TESTBRIDGE_CI_SERVER_ID", "bridge-instance-1")
	t.Setenv("GITHUB_TOKEN", "ghs_test123")
	t.Setenv("GITHUB_REPOSITORY", "acme/ui-tests")
	t.Setenv("GITHUB_RUN_ID", "123456789")
	t.Setenv("GITHUB_RUN_NUMBER", "42")
	t.Setenv("GITHUB_WORKFLOW", "nightly-sync")
	t.Setenv("GITHUB_WORKFLOW_REF", "acme/ui-tests/.github/workflows/sync.yml@refs/heads/main")
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_EVENT_PATH", "/runner/event.json")
	t.Setenv("ACTIONS_RUNTIME_TOKEN", "jwt-token")
	t.Setenv("ACTIONS_RESULTS_URL", "https://results.actions.example.com/")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "https://hub.example.com", cfg.HubURL)
	assert.Equal(t, "bridge_abc", cfg.HubClientID)
	assert.Equal(t, "s3cret", cfg.HubClientSecret)
	assert.Equal(t, int64(1001), cfg.SharedSpaceID)
	assert.Equal(t, int64(2002), cfg.WorkspaceID)
	assert.Equal(t, int64(3003), cfg.RootFolderID)
	assert.Equal(t, "/srv/checkout", cfg.RepoDir)
	assert.Equal(t, model.ToolTypeMBT, cfg.Tool)
	assert.Equal(t, "/var/lib/bridge/state", cfg.StateDir)
	assert.Equal(t, "/var/lib/bridge/journal.db", cfg.JournalDBPath)
	assert.Equal(t, 10*time.Minute, cfg.MinSyncInterval)
	assert.Equal(t, `C:\tools\launcher.exe`, cfg.LauncherPath)
	assert.Equal(t, "/scratch", cfg.WorkDir)
	assert.True(t, cfg.KeepLongOutput)
	assert.Equal(t, "bridge-instance-1", cfg.CIServerID)
	assert.Equal(t, "ghs_test123", cfg.GitHubToken)
	assert.Equal(t, "acme/ui-tests", cfg.GitHubRepository)
	assert.Equal(t, int64(123456789), cfg.GitHubRunID)
	assert.Equal(t, "jwt-token", cfg.RuntimeToken)
	assert.Equal(t, "https://results.actions.example.com/", cfg.ResultsURL)
	assert.Equal(t, "push", cfg.EventName)
	assert.Equal(t, "/runner/event.json", cfg.EventPath)
	assert.Equal(t, "nightly-sync", cfg.CIJobID)
	assert.Equal(t, "42", cfg.CIBuildID)
	assert.True(t, cfg.HasGitHub())
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.RootFolderID)
	assert.Equal(t, ".", cfg.RepoDir)
	assert.Equal(t, model.ToolTypeGUI, cfg.Tool)
	assert.Equal(t, ".testbridge-state", cfg.StateDir)
	assert.Equal(t, "testbridge.db", cfg.JournalDBPath)
	assert.Equal(t, time.Duration(0), cfg.MinSyncInterval)
	assert.Equal(t, "", cfg.LauncherPath)
	assert.Equal(t, os.TempDir(), cfg.WorkDir)
	assert.False(t, cfg.KeepLongOutput)
	assert.Equal(t, "github-actions", cfg.CIServerID)
	assert.False(t, cfg.HasGitHub())
}

func TestLoad_MissingRequired(t *testing.T) {
	required := []string{
		"TESTBRIDGE_HUB_URL",
		"TESTBRIDGE_HUB_CLIENT_ID",
		"TESTBRIDGE_HUB_CLIENT_SECRET",
		"TESTBRIDGE_HUB_SHARED_SPACE_ID",
		"TESTBRIDGE_HUB_WORKSPACE_ID",
	}
	for _, key := range required {
		t.Run(key, func(t *testing.T) {
			isolateConfigEnv(t)
			setRequiredHubEnv(t)
			os.Unsetenv(key)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidSharedSpaceID(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_HUB_SHARED_SPACE_ID", "not-a-number")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTBRIDGE_HUB_SHARED_SPACE_ID")
}

func TestLoad_InvalidTool(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_TOOL", "selenium")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTBRIDGE_TOOL")
}

func TestLoad_ToolIsCaseInsensitive(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_TOOL", "GUI")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, model.ToolTypeGUI, cfg.Tool)
}

func TestLoad_InvalidMinSyncInterval(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_MIN_SYNC_INTERVAL", "not-a-duration")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTBRIDGE_MIN_SYNC_INTERVAL")
}

func TestLoad_InvalidKeepLongOutput(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("TESTBRIDGE_KEEP_LONG_OUTPUT", "maybe")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TESTBRIDGE_KEEP_LONG_OUTPUT")
}

func TestLoad_InvalidRunID(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("GITHUB_RUN_ID", "abc")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_RUN_ID")
}

// TestLoad_RepoDirPrecedence verifies the working-copy resolution order:
// explicit TESTBRIDGE_REPO_DIR beats the runner's GITHUB_WORKSPACE, which
// beats the current directory.
func TestLoad_RepoDirPrecedence(t *testing.T) {
	isolateConfigEnv(t)
	setRequiredHubEnv(t)
	t.Setenv("GITHUB_WORKSPACE", "/runner/work/repo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/runner/work/repo", cfg.RepoDir)

	t.Setenv("TESTBRIDGE_REPO_DIR", "/elsewhere")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "/elsewhere", cfg.RepoDir)
}

func TestHasGitHub(t *testing.T) {
	full := Config{GitHubToken: "tok", GitHubRepository: "acme/ui-tests", GitHubRunID: 7}
	assert.True(t, full.HasGitHub())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no token", func(c *Config) { c.GitHubToken = "" }},
		{"no repository", func(c *Config) { c.GitHubRepository = "" }},
		{"no run id", func(c *Config) { c.GitHubRunID = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := full
			tt.mutate(&cfg)
			assert.False(t, cfg.HasGitHub())
		})
	}
}

func TestWorkflowFile(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "matching repository",
			cfg: Config{
				RepoDir:          "/srv/checkout",
				GitHubRepository: "acme/ui-tests",
				WorkflowRef:      "acme/ui-tests/.github/workflows/sync.yml@refs/heads/main",
			},
			want: filepath.Join("/srv/checkout", ".github", "workflows", "sync.yml"),
		},
		{
			name: "ref without branch suffix",
			cfg: Config{
				RepoDir:          "/srv/checkout",
				GitHubRepository: "acme/ui-tests",
				WorkflowRef:      "acme/ui-tests/.github/workflows/sync.yml",
			},
			want: filepath.Join("/srv/checkout", ".github", "workflows", "sync.yml"),
		},
		{
			name: "different repository",
			cfg: Config{
				RepoDir:          "/srv/checkout",
				GitHubRepository: "acme/ui-tests",
				WorkflowRef:      "acme/other/.github/workflows/sync.yml@refs/heads/main",
			},
			want: "",
		},
		{
			name: "no ref",
			cfg:  Config{RepoDir: "/srv/checkout", GitHubRepository: "acme/ui-tests"},
			want: "",
		},
		{
			name: "no repository",
			cfg:  Config{RepoDir: "/srv/checkout", WorkflowRef: "/x@refs/heads/main"},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.WorkflowFile())
		})
	}
}
