package model

// SyncStatus tracks how a locally discovered entity relates to the state
// already synchronized with the remote system.
type SyncStatus string

const (
	SyncStatusNew      SyncStatus = "new"
	SyncStatusModified SyncStatus = "modified"
	SyncStatusDeleted  SyncStatus = "deleted"
	SyncStatusNone     SyncStatus = "none"
)

// ChangeType classifies a single file change reported by the SCM diff.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "add"
	ChangeTypeDelete ChangeType = "delete"
	ChangeTypeEdit   ChangeType = "edit"
)

// ToolType selects the automation-tool flavor driving discovery and execution.
type ToolType string

const (
	// ToolTypeGUI is the classic desktop tool: GUI and API tests, spreadsheet
	// data tables.
	ToolTypeGUI ToolType = "gui"
	// ToolTypeMBT is the model-based-testing variant: GUI actions only, with
	// per-action resource files tracked in the repository.
	ToolTypeMBT ToolType = "mbt"
)

// TestType is the kind of automated test a discovered folder holds.
type TestType string

const (
	TestTypeGUI  TestType = "gui"
	TestTypeAPI  TestType = "api"
	TestTypeNone TestType = "none"
)

// ParamDirection distinguishes action input parameters from output parameters.
type ParamDirection string

const (
	ParamDirectionInput  ParamDirection = "input"
	ParamDirectionOutput ParamDirection = "output"
)

// LaunchStatus is the closed set of outcomes reported by the external
// automation-tool launcher. Exit codes outside the known range map to
// LaunchStatusUnknown rather than failing the pipeline.
type LaunchStatus string

const (
	LaunchStatusPassed  LaunchStatus = "passed"
	LaunchStatusFailed  LaunchStatus = "failed"
	LaunchStatusAborted LaunchStatus = "aborted"
	LaunchStatusUnknown LaunchStatus = "unknown"
)
