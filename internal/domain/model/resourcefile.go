package model

// ScmResourceFile is a non-test asset tracked for synchronization, such as a
// spreadsheet data table living outside any test folder. Paths are repository
// relative and backslash separated.
type ScmResourceFile struct {
	Name         string
	RelativePath string
	SyncStatus   SyncStatus

	// OldRelativePath holds the pre-move path when an edit relocated the
	// file. Empty otherwise.
	OldRelativePath string
}
