package model

import (
	"sort"
	"strings"
)

// DiscoveryResult is the snapshot produced by one discovery pass: every test
// and resource file the pass touched, tagged with sync statuses. The filter
// views below never mutate the underlying slices; the reconciler mutates the
// pointed-to entities in place.
type DiscoveryResult struct {
	// NewCommitID is the commit the repository was at when the pass ran.
	NewCommitID string

	// FullSync marks a full-repository scan as opposed to an incremental
	// diff-driven pass. Full results bypass reconciliation.
	FullSync bool

	Tests         []*AutomatedTest
	ResourceFiles []*ScmResourceFile
}

// NewTests returns the tests tagged as newly added.
func (r *DiscoveryResult) NewTests() []*AutomatedTest {
	return r.testsByStatus(SyncStatusNew)
}

// UpdatedTests returns the tests tagged as modified, moves included.
func (r *DiscoveryResult) UpdatedTests() []*AutomatedTest {
	return r.testsByStatus(SyncStatusModified)
}

// DeletedTests returns the tests tagged as deleted.
func (r *DiscoveryResult) DeletedTests() []*AutomatedTest {
	return r.testsByStatus(SyncStatusDeleted)
}

// MovedTests returns the modified tests whose folder was renamed or
// relocated.
func (r *DiscoveryResult) MovedTests() []*AutomatedTest {
	var out []*AutomatedTest
	for _, t := range r.Tests {
		if t.SyncStatus == SyncStatusModified && t.IsMoved {
			out = append(out, t)
		}
	}
	return out
}

func (r *DiscoveryResult) testsByStatus(status SyncStatus) []*AutomatedTest {
	var out []*AutomatedTest
	for _, t := range r.Tests {
		if t.SyncStatus == status {
			out = append(out, t)
		}
	}
	return out
}

// NewResourceFiles returns the resource files tagged as newly added.
func (r *DiscoveryResult) NewResourceFiles() []*ScmResourceFile {
	return r.resourcesByStatus(SyncStatusNew)
}

// UpdatedResourceFiles returns the resource files tagged as modified.
func (r *DiscoveryResult) UpdatedResourceFiles() []*ScmResourceFile {
	return r.resourcesByStatus(SyncStatusModified)
}

// DeletedResourceFiles returns the resource files tagged as deleted.
func (r *DiscoveryResult) DeletedResourceFiles() []*ScmResourceFile {
	return r.resourcesByStatus(SyncStatusDeleted)
}

func (r *DiscoveryResult) resourcesByStatus(status SyncStatus) []*ScmResourceFile {
	var out []*ScmResourceFile
	for _, f := range r.ResourceFiles {
		if f.SyncStatus == status {
			out = append(out, f)
		}
	}
	return out
}

// HasChanges reports whether the pass found anything to synchronize.
func (r *DiscoveryResult) HasChanges() bool {
	return len(r.Tests) > 0 || len(r.ResourceFiles) > 0
}

// Sort orders tests by package and name and resource files by path,
// case-insensitively, so output and dispatch order are deterministic.
func (r *DiscoveryResult) Sort() {
	sort.SliceStable(r.Tests, func(i, j int) bool {
		a, b := r.Tests[i], r.Tests[j]
		if c := compareFold(a.PackageName, b.PackageName); c != 0 {
			return c < 0
		}
		return compareFold(a.Name, b.Name) < 0
	})
	sort.SliceStable(r.ResourceFiles, func(i, j int) bool {
		return compareFold(r.ResourceFiles[i].RelativePath, r.ResourceFiles[j].RelativePath) < 0
	})
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
