package model

import "time"

// DiscoveryPass is the journal record of one discovery run.
type DiscoveryPass struct {
	ID            int64
	StartedAt     time.Time
	DurationMS    int64
	Mode          string // "full" or "incremental"
	OldCommitID   string
	NewCommitID   string
	TestCount     int
	ResourceCount int
}

// Dispatch operation kinds recorded in the journal.
const (
	OperationCreateUnit   = "create_unit"
	OperationUpdateUnit   = "update_unit"
	OperationDetachUnit   = "detach_unit"
	OperationCreateFolder = "create_folder"
	OperationRenameFolder = "rename_folder"
	OperationCreateParam  = "create_param"
)

// DispatchOperation is the journal record of one remote write performed by
// the dispatcher.
type DispatchOperation struct {
	ID         int64
	PassID     int64
	Kind       string
	TargetPath string
	Succeeded  bool
	Detail     string
	At         time.Time
}

// SuiteExecution is the journal record of one executed suite run.
type SuiteExecution struct {
	ID         int64
	SuiteRunID int64
	StartedAt  time.Time
	DurationMS int64
	RunCount   int
	Status     string
	ReportPath string
}
