// Package application contains the use-case services of the bridge: test
// discovery, reconciliation against the remote system, dispatch of remote
// writes and the suite execution flow.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/testbridge/internal/domain/repopath"
	"github.com/ericfisherdev/testbridge/internal/testasset"
)

// DiscoveryService builds the canonical model of tests, actions and resource
// files from the working copy, either by a full tree walk or from the SCM
// diff between two commits.
type DiscoveryService struct {
	scm      driven.ScmClient
	repoRoot string
	tool     model.ToolType
}

// NewDiscoveryService creates a DiscoveryService over the working copy at
// repoRoot.
func NewDiscoveryService(scm driven.ScmClient, repoRoot string, tool model.ToolType) *DiscoveryService {
	return &DiscoveryService{scm: scm, repoRoot: repoRoot, tool: tool}
}

// FullScan walks the whole working copy and reports every test and resource
// file as new. Test folders are leaves: the walk does not descend into them.
func (s *DiscoveryService) FullScan(ctx context.Context) (*model.DiscoveryResult, error) {
	commitID, err := s.scm.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}

	result := &model.DiscoveryResult{NewCommitID: commitID, FullSync: true}
	if err := s.walk(ctx, "", result); err != nil {
		return nil, err
	}
	result.Sort()

	slog.Info("full discovery scan complete",
		"commit", commitID, "tests", len(result.Tests), "resource_files", len(result.ResourceFiles))
	return result, nil
}

// IncrementalScan builds a result from the SCM diff between two commits. An
// empty newCommit means the current HEAD.
func (s *DiscoveryService) IncrementalScan(ctx context.Context, oldCommit, newCommit string) (*model.DiscoveryResult, error) {
	if newCommit == "" {
		head, err := s.scm.HeadCommit(ctx)
		if err != nil {
			return nil, err
		}
		newCommit = head
	}

	changes, err := s.scm.Changes(ctx, s.tool, oldCommit, newCommit)
	if err != nil {
		return nil, err
	}

	result := &model.DiscoveryResult{NewCommitID: newCommit}
	for _, change := range changes {
		switch testasset.RoleOf(s.tool, change.NewPath) {
		case testasset.RoleTestMain, testasset.RoleManifest:
			s.applyTestChange(change, result)
		case testasset.RoleDataTable:
			s.applyResourceChange(change, result)
		case testasset.RoleActionResource:
			s.applyActionResourceChange(change, result)
		}
	}

	dedupeTests(result)
	dropResourcesInsideTests(result)
	result.Sort()

	slog.Info("incremental discovery scan complete",
		"old", oldCommit, "new", newCommit,
		"changes", len(changes), "tests", len(result.Tests), "resource_files", len(result.ResourceFiles))
	return result, nil
}

// walk visits one directory given by its repository-relative slash path.
func (s *DiscoveryService) walk(ctx context.Context, rel string, result *model.DiscoveryResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	abs := filepath.Join(s.repoRoot, filepath.FromSlash(rel))
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", abs, err)
	}

	if testType := testRootType(entries); testType != model.TestTypeNone {
		s.addTestRoot(rel, testType, result)
		return nil
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		childRel := path.Join(rel, name)
		if entry.IsDir() {
			if err := s.walk(ctx, childRel, result); err != nil {
				return err
			}
			continue
		}
		if testasset.RoleOf(s.tool, childRel) == testasset.RoleDataTable {
			result.ResourceFiles = append(result.ResourceFiles, &model.ScmResourceFile{
				Name:         name,
				RelativePath: repopath.FromSlash(childRel),
				SyncStatus:   model.SyncStatusNew,
			})
		}
	}
	return nil
}

// testRootType classifies a directory by its marker files: a .tsp entry makes
// it a GUI test root, a .st entry an API test root.
func testRootType(entries []os.DirEntry) model.TestType {
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(entry.Name())) {
		case testasset.GUITestMainExt:
			return model.TestTypeGUI
		case testasset.APITestMainExt:
			return model.TestTypeAPI
		}
	}
	return model.TestTypeNone
}

func (s *DiscoveryService) addTestRoot(rel string, testType model.TestType, result *model.DiscoveryResult) {
	key := testKeyFromDir(rel)
	test := s.loadTest(rel, key, testType)
	if test != nil {
		result.Tests = append(result.Tests, test)
	}
}

// applyTestChange handles one changed test main file or action manifest. Add
// and delete are guarded by the current state of the working tree: a squashed
// diff can report an add for a file deleted again later, and the reverse.
func (s *DiscoveryService) applyTestChange(change model.AffectedFile, result *model.DiscoveryResult) {
	testType := testTypeForChange(change.NewPath)
	if testType == model.TestTypeAPI && s.tool == model.ToolTypeMBT {
		slog.Debug("skipping api test change for mbt tool", "path", change.NewPath)
		return
	}

	relDir := path.Dir(change.NewPath)
	key := testKeyFromDir(relDir)
	exists := s.fileExists(change.NewPath)

	switch change.ChangeType {
	case model.ChangeTypeAdd:
		if !exists {
			slog.Debug("ignoring added test file no longer on disk", "path", change.NewPath)
			return
		}
		if test := s.loadTest(relDir, key, testType); test != nil {
			result.Tests = append(result.Tests, test)
		}

	case model.ChangeTypeDelete:
		if exists {
			slog.Debug("ignoring deleted test file still on disk", "path", change.NewPath)
			return
		}
		if s.testMainOnDisk(relDir) {
			slog.Debug("ignoring deleted test file, test main still on disk", "path", change.NewPath)
			return
		}
		result.Tests = append(result.Tests, &model.AutomatedTest{
			Name:        key.Name,
			PackageName: key.PackageName,
			Type:        testType,
			Executable:  false,
			SyncStatus:  model.SyncStatusDeleted,
		})

	case model.ChangeTypeEdit:
		if !exists {
			slog.Debug("ignoring edited test file no longer on disk", "path", change.NewPath)
			return
		}
		test := s.loadTest(relDir, key, testType)
		if test == nil {
			return
		}
		test.SyncStatus = model.SyncStatusModified

		oldPath := change.OldPath
		if oldPath == "" {
			oldPath = change.NewPath
		}
		if oldKey := testKeyFromDir(path.Dir(oldPath)); oldKey != key {
			test.IsMoved = true
			test.OldName = oldKey.Name
			test.OldPackageName = oldKey.PackageName
		}
		result.Tests = append(result.Tests, test)
	}
}

// applyResourceChange handles one changed data-table file, with the same
// working-tree guards as test changes.
func (s *DiscoveryService) applyResourceChange(change model.AffectedFile, result *model.DiscoveryResult) {
	exists := s.fileExists(change.NewPath)
	file := &model.ScmResourceFile{
		Name:         path.Base(change.NewPath),
		RelativePath: repopath.FromSlash(change.NewPath),
	}

	switch change.ChangeType {
	case model.ChangeTypeAdd:
		if !exists {
			return
		}
		file.SyncStatus = model.SyncStatusNew
	case model.ChangeTypeDelete:
		if exists {
			return
		}
		file.SyncStatus = model.SyncStatusDeleted
	case model.ChangeTypeEdit:
		if !exists {
			return
		}
		file.SyncStatus = model.SyncStatusModified
		if change.IsMove() {
			file.OldRelativePath = repopath.FromSlash(change.OldPath)
		}
	default:
		return
	}
	result.ResourceFiles = append(result.ResourceFiles, file)
}

// applyActionResourceChange reacts to a changed per-action resource file by
// re-reading the owning test, so edited logical names and parameters reach
// reconciliation. The resource sits one level below the test folder.
func (s *DiscoveryService) applyActionResourceChange(change model.AffectedFile, result *model.DiscoveryResult) {
	relDir := path.Dir(path.Dir(change.NewPath))
	if relDir == "." || relDir == "/" {
		return
	}

	key := testKeyFromDir(relDir)
	test, err := s.parseGUITest(relDir, key)
	if err != nil {
		// Deleting the whole test also deletes its resources; the test main
		// entry of the same diff carries that case.
		slog.Debug("action resource changed but owning test is not readable",
			"path", change.NewPath, "test", key.Name, "error", err)
		return
	}
	test.SyncStatus = model.SyncStatusModified
	result.Tests = append(result.Tests, test)
}

// loadTest reads the current on-disk state of a test folder. API tests carry
// no actions. The MBT flavor only tracks GUI actions, so API tests are
// dropped entirely there.
func (s *DiscoveryService) loadTest(relDir string, key model.TestKey, testType model.TestType) *model.AutomatedTest {
	if testType == model.TestTypeAPI {
		if s.tool == model.ToolTypeMBT {
			slog.Debug("skipping api test for mbt tool", "test", key.Name, "package", key.PackageName)
			return nil
		}
		return &model.AutomatedTest{
			Name:        key.Name,
			PackageName: key.PackageName,
			Type:        model.TestTypeAPI,
			Executable:  true,
			SyncStatus:  model.SyncStatusNew,
		}
	}

	test, err := s.parseGUITest(relDir, key)
	if err != nil {
		slog.Warn("skipping unreadable test", "test", key.Name, "package", key.PackageName, "error", err)
		return nil
	}
	return test
}

func (s *DiscoveryService) parseGUITest(relDir string, key model.TestKey) (*model.AutomatedTest, error) {
	return testasset.ParseGUITest(filepath.Join(s.repoRoot, filepath.FromSlash(relDir)), key)
}

func (s *DiscoveryService) fileExists(rel string) bool {
	_, err := os.Stat(filepath.Join(s.repoRoot, filepath.FromSlash(rel)))
	return err == nil
}

// testMainOnDisk reports whether the test folder still holds a test main
// file. A deleted manifest alone must not surface a live test as deleted.
func (s *DiscoveryService) testMainOnDisk(relDir string) bool {
	entries, err := os.ReadDir(filepath.Join(s.repoRoot, filepath.FromSlash(relDir)))
	if err != nil {
		return false
	}
	return testRootType(entries) != model.TestTypeNone
}

func testTypeForChange(p string) model.TestType {
	if strings.EqualFold(path.Ext(p), testasset.APITestMainExt) {
		return model.TestTypeAPI
	}
	return model.TestTypeGUI
}

// testKeyFromDir derives the test identity from the repository-relative slash
// path of its folder.
func testKeyFromDir(relDir string) model.TestKey {
	pkg, name := repopath.SplitPrefix(repopath.FromSlash(relDir))
	return model.TestKey{PackageName: pkg, Name: name}
}

// dedupeTests keeps one entry per test identity. The same test surfaces
// through several diff entries, its manifest and its main file for instance,
// and a commit adding a test would otherwise report it new twice. When
// duplicates disagree on status, the stronger one wins: new over deleted over
// modified.
func dedupeTests(result *model.DiscoveryResult) {
	index := make(map[model.TestKey]int)
	kept := result.Tests[:0]
	for _, t := range result.Tests {
		key := t.Key()
		if i, ok := index[key]; ok {
			if statusRank(t.SyncStatus) > statusRank(kept[i].SyncStatus) {
				kept[i] = t
			}
			continue
		}
		index[key] = len(kept)
		kept = append(kept, t)
	}
	result.Tests = kept
}

func statusRank(s model.SyncStatus) int {
	switch s {
	case model.SyncStatusNew:
		return 3
	case model.SyncStatusDeleted:
		return 2
	case model.SyncStatusModified:
		return 1
	default:
		return 0
	}
}

// dropResourcesInsideTests removes resource files living inside a test folder
// already covered by a test-level change, separately for the added and the
// deleted buckets, so one folder move is not reported twice.
func dropResourcesInsideTests(result *model.DiscoveryResult) {
	newPrefixes := testPrefixes(result.NewTests())
	deletedPrefixes := testPrefixes(result.DeletedTests())

	kept := result.ResourceFiles[:0]
	for _, f := range result.ResourceFiles {
		switch f.SyncStatus {
		case model.SyncStatusNew:
			if underAny(f.RelativePath, newPrefixes) {
				continue
			}
		case model.SyncStatusDeleted:
			if underAny(f.RelativePath, deletedPrefixes) {
				continue
			}
		}
		kept = append(kept, f)
	}
	result.ResourceFiles = kept
}

func testPrefixes(tests []*model.AutomatedTest) []string {
	prefixes := make([]string, 0, len(tests))
	for _, t := range tests {
		prefixes = append(prefixes, repopath.Key(t.PathPrefix())+repopath.Separator)
	}
	return prefixes
}

func underAny(rel string, prefixes []string) bool {
	key := repopath.Key(rel)
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
