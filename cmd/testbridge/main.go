package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/urfave/cli/v2"

	gitadapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/git"
	githubadapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/github"
	launcheradapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/launcher"
	sqliteadapter "github.com/ericfisherdev/testbridge/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/testbridge/internal/adapter/driven/statefile"
	"github.com/ericfisherdev/testbridge/internal/adapter/driven/testhub"
	"github.com/ericfisherdev/testbridge/internal/application"
	"github.com/ericfisherdev/testbridge/internal/config"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/testbridge/internal/results"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// stateArtifactName is the workflow artifact carrying the statefile directory
// between CI runs.
const stateArtifactName = "testbridge-sync-state"

// suiteRunInput is the workflow_dispatch input TestHub fills when it triggers
// an execution workflow.
const suiteRunInput = "suiteRunId"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "testbridge",
		Usage:   "Synchronize repository test assets with TestHub and execute planned suite runs",
		Version: versionString(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose (debug) logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Discover test-asset changes and synchronize them with TestHub",
				Action: runSync,
			},
			{
				Name:  "execute",
				Usage: "Execute a planned suite run and report its results",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "suite-run-id",
						Usage: "Suite run to execute (defaults to the workflow_dispatch suiteRunId input)",
					},
				},
				Action: runExecute,
			},
			{
				Name:  "history",
				Usage: "Print recent discovery passes, their remote writes and suite executions from the local journal",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "journal-db",
						Usage:   "Path of the journal database",
						Value:   "testbridge.db",
						EnvVars: []string{"TESTBRIDGE_JOURNAL_DB"},
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of passes and executions to print",
						Value: 10,
					},
				},
				Action: runHistory,
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, c.App.Version)
					return nil
				},
			},
		},
	}
}

func versionString() string {
	if commit != "none" && len(commit) >= 8 {
		return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
	return version
}

func runSync(c *cli.Context) error {
	ctx := c.Context

	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"repo_dir", cfg.RepoDir,
		"tool", cfg.Tool,
		"hub_url", cfg.HubURL,
		"state_dir", cfg.StateDir,
		"min_sync_interval", cfg.MinSyncInterval,
	)

	// 2. Wire the remote and SCM clients.
	hub := newHubClient(cfg)
	scm := gitadapter.NewClient(cfg.RepoDir)

	// 3. Create the GitHub client (nil outside the Actions environment).
	gh, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	var (
		ci        driven.CIClient
		artifacts driven.ArtifactStore
	)
	if gh != nil {
		ci = gh
		artifacts = gh
	}

	// 4. Restore the previous sync state. A missing artifact means this is
	// the first run and discovery falls back to a full scan.
	if artifacts != nil {
		if err := artifacts.Download(ctx, stateArtifactName, cfg.StateDir); err != nil {
			slog.Warn("no previous sync state restored", "error", err)
		}
	}
	state := statefile.NewStore(cfg.StateDir)

	// 5. Open the sync journal and run its migrations.
	db, journal, err := openJournal(cfg.JournalDBPath)
	if err != nil {
		return err
	}
	defer closeDB(db)

	// 6. Resolve the target commit from the triggering event, when there is one.
	event, err := githubadapter.LoadEvent(cfg.EventName, cfg.EventPath)
	if err != nil {
		return err
	}
	targetCommit := ""
	if event.Commits != nil {
		targetCommit = event.Commits.NewCommitID
	}

	// 7. Run the sync pipeline.
	discovery := application.NewDiscoveryService(scm, cfg.RepoDir, cfg.Tool)
	reconcile := application.NewReconcileService(hub)
	dispatch := application.NewDispatchService(hub)
	syncSvc := application.NewSyncService(discovery, reconcile, dispatch, state, journal, ci, cfg.MinSyncInterval)

	if err := syncSvc.Sync(ctx, targetCommit); err != nil {
		return err
	}

	// 8. Persist the advanced sync state for the next run. Skipping on upload
	// failure is safe: the next run restores the previous artifact and resyncs.
	if artifacts != nil {
		if err := artifacts.Upload(ctx, stateArtifactName, cfg.StateDir); err != nil {
			slog.Warn("failed to persist sync state artifact", "error", err)
		}
	}
	return nil
}

func runExecute(c *cli.Context) error {
	ctx := c.Context

	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.LauncherPath == "" {
		return errors.New("TESTBRIDGE_LAUNCHER_PATH environment variable is required to execute suites")
	}

	// 2. Resolve the suite run to execute: the flag wins; workflow_dispatch
	// inputs cover runs triggered from TestHub.
	suiteRunID := c.Int64("suite-run-id")
	if suiteRunID == 0 {
		suiteRunID, err = resolveSuiteRunID(cfg)
		if err != nil {
			return err
		}
	}
	slog.Info("config loaded",
		"repo_dir", cfg.RepoDir,
		"hub_url", cfg.HubURL,
		"launcher", cfg.LauncherPath,
		"suite_run_id", suiteRunID,
	)

	// 3. Wire the clients.
	hub := newHubClient(cfg)
	tool := launcheradapter.NewTool(cfg.LauncherPath)
	gh, err := newGitHubClient(cfg)
	if err != nil {
		return err
	}
	var artifacts driven.ArtifactStore
	if gh != nil {
		artifacts = gh
	}

	// 4. Open the sync journal and run its migrations.
	db, journal, err := openJournal(cfg.JournalDBPath)
	if err != nil {
		return err
	}
	defer closeDB(db)

	// 5. Execute the suite run and report its results.
	svc := application.NewExecutionService(hub, tool, artifacts, journal, application.ExecutionConfig{
		RepoRoot:       cfg.RepoDir,
		WorkDir:        cfg.WorkDir,
		Build:          results.BuildContext{ServerID: cfg.CIServerID, JobID: cfg.CIJobID, BuildID: cfg.CIBuildID},
		KeepLongOutput: cfg.KeepLongOutput,
	})
	return svc.Execute(ctx, suiteRunID)
}

// runHistory prints the local journal, newest first, for debugging a runner.
func runHistory(c *cli.Context) error {
	ctx := c.Context
	limit := c.Int("limit")

	db, journal, err := openJournal(c.String("journal-db"))
	if err != nil {
		return err
	}
	defer closeDB(db)

	passes, err := journal.RecentPasses(ctx, limit)
	if err != nil {
		return err
	}
	w := c.App.Writer
	for _, p := range passes {
		fmt.Fprintf(w, "pass %d  %s  %s  %s..%s  tests=%d resources=%d  %dms\n",
			p.ID, p.StartedAt.Format("2006-01-02 15:04:05"), p.Mode,
			p.OldCommitID, p.NewCommitID, p.TestCount, p.ResourceCount, p.DurationMS)
		ops, err := journal.OperationsForPass(ctx, p.ID)
		if err != nil {
			return err
		}
		for _, op := range ops {
			outcome := "ok"
			if !op.Succeeded {
				outcome = "failed: " + op.Detail
			}
			fmt.Fprintf(w, "  %-13s %s  %s\n", op.Kind, op.TargetPath, outcome)
		}
	}

	execs, err := journal.RecentExecutions(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range execs {
		fmt.Fprintf(w, "execution %d  %s  suite-run=%d  runs=%d  %s  %dms\n",
			e.ID, e.StartedAt.Format("2006-01-02 15:04:05"), e.SuiteRunID,
			e.RunCount, e.Status, e.DurationMS)
	}
	return nil
}

// resolveSuiteRunID reads the suite run id from the workflow_dispatch event,
// merging event inputs over the defaults declared in the workflow file.
func resolveSuiteRunID(cfg *config.Config) (int64, error) {
	event, err := githubadapter.LoadEvent(cfg.EventName, cfg.EventPath)
	if err != nil {
		return 0, err
	}
	if event.Name != "workflow_dispatch" {
		return 0, fmt.Errorf("--suite-run-id is required for %q runs", event.Name)
	}

	declared := map[string]githubadapter.DispatchInput{}
	if wf := cfg.WorkflowFile(); wf != "" {
		declared, err = githubadapter.LoadWorkflowInputs(wf)
		if err != nil {
			return 0, err
		}
	}
	inputs, err := githubadapter.ResolveDispatchInputs(declared, event.DispatchInputs)
	if err != nil {
		return 0, err
	}

	raw, ok := inputs[suiteRunInput]
	if !ok || raw == "" {
		return 0, fmt.Errorf("workflow input %q is missing", suiteRunInput)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("workflow input %q has invalid value %q: %w", suiteRunInput, raw, err)
	}
	return id, nil
}

func newHubClient(cfg *config.Config) *testhub.Client {
	return testhub.NewClient(cfg.HubURL, cfg.HubClientID, cfg.HubClientSecret,
		cfg.SharedSpaceID, cfg.WorkspaceID, cfg.RootFolderID)
}

// newGitHubClient creates the GitHub client when the Actions environment
// provides one, or nil when running outside Actions.
func newGitHubClient(cfg *config.Config) (*githubadapter.Client, error) {
	if !cfg.HasGitHub() {
		slog.Info("no github actions environment, running without ci cancelation and artifact persistence")
		return nil, nil
	}
	gh, err := githubadapter.NewClient(cfg.GitHubToken, cfg.GitHubRepository, cfg.GitHubRunID, cfg.RuntimeToken, cfg.ResultsURL)
	if err != nil {
		return nil, err
	}
	slog.Info("github client created", "repository", cfg.GitHubRepository, "run_id", cfg.GitHubRunID)
	return gh, nil
}

// openJournal opens the sync journal database and runs its migrations.
func openJournal(path string) (*sqliteadapter.DB, *sqliteadapter.JournalRepo, error) {
	db, err := sqliteadapter.NewDB(path)
	if err != nil {
		return nil, nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, sqliteadapter.NewJournalRepo(db), nil
}

func closeDB(db *sqliteadapter.DB) {
	if err := db.Close(); err != nil {
		slog.Error("error closing journal database", "error", err)
	}
}
