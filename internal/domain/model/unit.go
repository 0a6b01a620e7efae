package model

// Unit is the remote representation of one discovered action. Optional
// relationships are pointers: nil means the remote entity carries no direct
// link, not an empty one.
type Unit struct {
	ID             int64
	Name           string
	Description    string
	RepositoryPath string

	// Folder is the parent folder the unit lives under.
	Folder *FolderRef

	// TestRunner is set only when a runner is assigned to the unit itself.
	// Runners inherited from a parent folder do not appear here.
	TestRunner *RunnerRef
}

// FolderRef is a reference to a unit folder.
type FolderRef struct {
	ID   int64
	Name string
}

// RunnerRef is a reference to an automation test runner.
type RunnerRef struct {
	ID   int64
	Name string
}

// UnitFolder groups the units of one test under the auto-discovery root.
type UnitFolder struct {
	ID   int64
	Name string
}

// UnitCreate is the payload for creating a remote unit.
type UnitCreate struct {
	Name           string
	Description    string
	RepositoryPath string
	FolderID       int64
}

// UnitUpdate carries the fields to change on an existing remote unit. Empty
// strings leave the remote value untouched; FolderID moves the unit when
// non-nil.
type UnitUpdate struct {
	ID             int64
	Name           string
	RepositoryPath string
	FolderID       *int64
}

// ParamCreate is the payload for creating a unit parameter.
type ParamCreate struct {
	Name         string
	Direction    ParamDirection
	DefaultValue string
	UnitID       int64
}
