package model

// AffectedFile is one entry of a normalized SCM diff between two commits.
// Paths are repository relative with forward slashes, exactly as the SCM
// reports them.
type AffectedFile struct {
	// NewPath is the path after the change. For deletions it is the path the
	// file had before removal.
	NewPath string

	// OldPath is the pre-change path when the change is a detected move or a
	// same-path edit that kept enough content intact to count as the same
	// file. Empty when no prior identity could be established.
	OldPath string

	ChangeType ChangeType

	// Blob ids of the file content before and after the change. The zero id
	// (all zeros) marks a side that does not exist.
	OldBlobID string
	NewBlobID string
}

// IsMove reports whether the edit relocated the file.
func (f *AffectedFile) IsMove() bool {
	return f.ChangeType == ChangeTypeEdit && f.OldPath != "" && f.OldPath != f.NewPath
}
