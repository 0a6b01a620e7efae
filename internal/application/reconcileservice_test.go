package application_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/testbridge/internal/application"
	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// --- Mock implementations ---

type renameCall struct {
	FolderID int64
	NewName  string
}

// mockHubClient serves every service test touching the remote API. Read
// behavior is injected per test; writes are recorded per batch.
type mockHubClient struct {
	unitsByPath    func(paths []string) ([]model.Unit, error)
	unitsByPrefix  func(prefixes []string) ([]model.Unit, error)
	unitsInFolders func(names []string) ([]model.Unit, error)
	foldersByNames func(names []string) ([]model.UnitFolder, error)
	createUnits    func(units []model.UnitCreate) ([]model.Unit, error)
	createFolders  func(names []string) ([]model.UnitFolder, error)
	suiteData      map[int64]model.MbtComposition
	suiteDataErr   error

	createdUnits    [][]model.UnitCreate
	updatedUnits    [][]model.UnitUpdate
	updateErr       error
	detachedIDs     [][]int64
	detachErr       error
	createdParams   [][]model.ParamCreate
	createParamsErr error
	createdFolders  [][]string
	renames         []renameCall
	renameErr       error
	ingested        [][]byte
	ingestErr       error
}

func (m *mockHubClient) GetUnitsByRepositoryPaths(_ context.Context, paths []string) ([]model.Unit, error) {
	if m.unitsByPath == nil {
		return nil, nil
	}
	return m.unitsByPath(paths)
}

func (m *mockHubClient) GetUnitsByPathPrefixes(_ context.Context, prefixes []string) ([]model.Unit, error) {
	if m.unitsByPrefix == nil {
		return nil, nil
	}
	return m.unitsByPrefix(prefixes)
}

func (m *mockHubClient) GetUnitsInFolders(_ context.Context, folderNames []string) ([]model.Unit, error) {
	if m.unitsInFolders == nil {
		return nil, nil
	}
	return m.unitsInFolders(folderNames)
}

func (m *mockHubClient) CreateUnits(_ context.Context, units []model.UnitCreate) ([]model.Unit, error) {
	m.createdUnits = append(m.createdUnits, units)
	if m.createUnits != nil {
		return m.createUnits(units)
	}
	created := make([]model.Unit, len(units))
	for i, u := range units {
		created[i] = model.Unit{
			ID:             int64(1000 + len(m.createdUnits)*100 + i),
			Name:           u.Name,
			RepositoryPath: u.RepositoryPath,
			Folder:         &model.FolderRef{ID: u.FolderID},
		}
	}
	return created, nil
}

func (m *mockHubClient) UpdateUnits(_ context.Context, updates []model.UnitUpdate) error {
	m.updatedUnits = append(m.updatedUnits, updates)
	return m.updateErr
}

func (m *mockHubClient) DetachUnits(_ context.Context, ids []int64) error {
	m.detachedIDs = append(m.detachedIDs, ids)
	return m.detachErr
}

func (m *mockHubClient) CreateParameters(_ context.Context, params []model.ParamCreate) error {
	m.createdParams = append(m.createdParams, params)
	return m.createParamsErr
}

func (m *mockHubClient) GetFoldersByNames(_ context.Context, names []string) ([]model.UnitFolder, error) {
	if m.foldersByNames == nil {
		return nil, nil
	}
	return m.foldersByNames(names)
}

func (m *mockHubClient) CreateFolders(_ context.Context, names []string) ([]model.UnitFolder, error) {
	m.createdFolders = append(m.createdFolders, names)
	if m.createFolders != nil {
		return m.createFolders(names)
	}
	created := make([]model.UnitFolder, len(names))
	for i, name := range names {
		created[i] = model.UnitFolder{ID: int64(500 + i), Name: name}
	}
	return created, nil
}

func (m *mockHubClient) RenameFolder(_ context.Context, folderID int64, newName string) error {
	m.renames = append(m.renames, renameCall{FolderID: folderID, NewName: newName})
	return m.renameErr
}

func (m *mockHubClient) GetSuiteData(_ context.Context, _ int64) (map[int64]model.MbtComposition, error) {
	return m.suiteData, m.suiteDataErr
}

func (m *mockHubClient) IngestTestResults(_ context.Context, reportXML []byte) error {
	m.ingested = append(m.ingested, reportXML)
	return m.ingestErr
}

// --- Fixtures ---

func unitRef(id int64) *int64 { return &id }

func remoteUnit(id int64, path string) model.Unit {
	return model.Unit{ID: id, Name: path, RepositoryPath: path, Folder: &model.FolderRef{ID: 70, Name: "CheckoutTest"}}
}

func TestReconcileFullScanPassesThrough(t *testing.T) {
	hub := &mockHubClient{
		unitsByPrefix: func([]string) ([]model.Unit, error) {
			t.Fatal("full scan must not query the remote side")
			return nil, nil
		},
	}
	result := &model.DiscoveryResult{
		FullSync: true,
		Tests:    []*model.AutomatedTest{{Name: "CheckoutTest", SyncStatus: model.SyncStatusNew}},
	}

	plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, model.SyncStatusNew, result.Tests[0].SyncStatus)
}

func TestReconcileDeletedTest(t *testing.T) {
	hub := &mockHubClient{
		unitsByPrefix: func(prefixes []string) ([]model.Unit, error) {
			assert.Equal(t, []string{`suite\CheckoutTest\`}, prefixes)
			return []model.Unit{
				remoteUnit(11, `suite\CheckoutTest\Action1:Pay`),
				remoteUnit(12, `suite\CheckoutTest\Action2:Refund`),
				remoteUnit(99, `suite\CheckoutTestOld\Action1:Pay`),
			}, nil
		},
	}
	deleted := &model.AutomatedTest{Name: "CheckoutTest", PackageName: "suite", SyncStatus: model.SyncStatusDeleted}
	result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{deleted}}

	_, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, deleted.Actions, 2, "the prefix of a sibling test must not match")
	first := deleted.Actions[0]
	assert.Equal(t, "Action1", first.Name)
	assert.Equal(t, "Pay", first.LogicalName)
	assert.Equal(t, model.SyncStatusDeleted, first.SyncStatus)
	require.NotNil(t, first.UnitID)
	assert.Equal(t, int64(11), *first.UnitID)
}

func TestReconcileAddedTest(t *testing.T) {
	hub := &mockHubClient{
		unitsByPath: func(paths []string) ([]model.Unit, error) {
			assert.Len(t, paths, 3)
			owned := remoteUnit(21, `suite\CheckoutTest\Action1:Pay`)
			owned.TestRunner = &model.RunnerRef{ID: 5, Name: "legacy-runner"}
			return []model.Unit{
				owned,
				remoteUnit(22, `suite\CheckoutTest\Action2:Refund`),
			}, nil
		},
	}
	added := &model.AutomatedTest{
		Name: "CheckoutTest", PackageName: "suite", SyncStatus: model.SyncStatusNew,
		Actions: []model.Action{
			{Name: "Action1", LogicalName: "Pay", RepositoryPath: `suite\CheckoutTest\Action1:Pay`, SyncStatus: model.SyncStatusNew},
			{Name: "Action2", LogicalName: "Refund", RepositoryPath: `suite\CheckoutTest\Action2:Refund`, SyncStatus: model.SyncStatusNew},
			{Name: "Action3", LogicalName: "Cancel", RepositoryPath: `suite\CheckoutTest\Action3:Cancel`, SyncStatus: model.SyncStatusNew},
		},
	}
	result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{added}}

	_, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, added.Actions, 2, "the unit automated elsewhere must drop out")
	assert.Equal(t, "Action2", added.Actions[0].Name)
	assert.Equal(t, model.SyncStatusModified, added.Actions[0].SyncStatus)
	require.NotNil(t, added.Actions[0].UnitID)
	assert.Equal(t, int64(22), *added.Actions[0].UnitID)

	assert.Equal(t, "Action3", added.Actions[1].Name)
	assert.Equal(t, model.SyncStatusNew, added.Actions[1].SyncStatus)
	assert.Nil(t, added.Actions[1].UnitID)
}

func TestReconcileUpdatedTest(t *testing.T) {
	hub := &mockHubClient{
		unitsByPrefix: func(prefixes []string) ([]model.Unit, error) {
			assert.Equal(t, []string{`suite\CheckoutTest\`}, prefixes)
			return []model.Unit{
				remoteUnit(31, `suite\CheckoutTest\Action1:pay`),
				remoteUnit(32, `suite\CheckoutTest\Action2:Refund`),
				remoteUnit(39, `suite\CheckoutTest\Action9:Gone`),
			}, nil
		},
	}
	updated := &model.AutomatedTest{
		Name: "CheckoutTest", PackageName: "suite", SyncStatus: model.SyncStatusModified,
		Actions: []model.Action{
			{Name: "Action1", LogicalName: "Pay", RepositoryPath: `suite\CheckoutTest\Action1:Pay`, SyncStatus: model.SyncStatusNew,
				Params: []model.Param{{Name: "amount", SyncStatus: model.SyncStatusNew}}},
			{Name: "Action2", LogicalName: "RefundFast", RepositoryPath: `suite\CheckoutTest\Action2:RefundFast`, SyncStatus: model.SyncStatusNew},
			{Name: "Action3", LogicalName: "Cancel", RepositoryPath: `suite\CheckoutTest\Action3:Cancel`, SyncStatus: model.SyncStatusNew},
		},
	}
	result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{updated}}

	_, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, updated.Actions, 4)

	unchanged := updated.Actions[0]
	assert.Equal(t, model.SyncStatusNone, unchanged.SyncStatus, "logical names differing only by case are equal")
	require.NotNil(t, unchanged.UnitID)
	assert.Equal(t, int64(31), *unchanged.UnitID)
	assert.Equal(t, model.SyncStatusNone, unchanged.Params[0].SyncStatus, "matched actions never diff parameters")

	renamed := updated.Actions[1]
	assert.Equal(t, model.SyncStatusModified, renamed.SyncStatus)
	require.NotNil(t, renamed.UnitID)
	assert.Equal(t, int64(32), *renamed.UnitID)

	assert.Equal(t, model.SyncStatusNew, updated.Actions[2].SyncStatus)
	assert.Nil(t, updated.Actions[2].UnitID)

	marker := updated.Actions[3]
	assert.Equal(t, "Action9", marker.Name)
	assert.Equal(t, model.SyncStatusDeleted, marker.SyncStatus)
	require.NotNil(t, marker.UnitID)
	assert.Equal(t, int64(39), *marker.UnitID)
}

func TestReconcileMovedTest(t *testing.T) {
	hub := &mockHubClient{
		unitsByPrefix: func(prefixes []string) ([]model.Unit, error) {
			assert.Equal(t, []string{`legacy\OldCheckout\`}, prefixes)
			return []model.Unit{
				remoteUnit(41, `legacy\OldCheckout\Action1:Pay`),
				remoteUnit(49, `legacy\OldCheckout\Action9:Gone`),
			}, nil
		},
	}
	moved := &model.AutomatedTest{
		Name: "CheckoutTest", PackageName: "suite", SyncStatus: model.SyncStatusModified,
		IsMoved: true, OldName: "OldCheckout", OldPackageName: "legacy",
		Actions: []model.Action{
			{Name: "Action1", LogicalName: "Pay", TestName: "CheckoutTest", RepositoryPath: `suite\CheckoutTest\Action1:Pay`, SyncStatus: model.SyncStatusNew,
				Params: []model.Param{{Name: "amount", SyncStatus: model.SyncStatusNew}}},
			{Name: "Action2", LogicalName: "Refund", TestName: "CheckoutTest", RepositoryPath: `suite\CheckoutTest\Action2:Refund`, SyncStatus: model.SyncStatusNew},
		},
	}
	result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{moved}}

	plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
	require.NoError(t, err)

	require.Len(t, moved.Actions, 2, "the action unknown under the old path is only logged")

	matched := moved.Actions[0]
	assert.Equal(t, "Action1", matched.Name)
	assert.Equal(t, model.SyncStatusModified, matched.SyncStatus)
	assert.True(t, matched.IsMoved)
	assert.Equal(t, "OldCheckout", matched.OldTestName)
	assert.Empty(t, matched.Params, "a move drops parameter tracking")
	require.NotNil(t, matched.UnitID)
	assert.Equal(t, int64(41), *matched.UnitID)

	marker := moved.Actions[1]
	assert.Equal(t, "Action9", marker.Name)
	assert.Equal(t, model.SyncStatusDeleted, marker.SyncStatus)

	assert.Equal(t, []string{"CheckoutTest"}, plan.Creates, "no folder info on the remote side, so the new name gets created")
}

func TestReconcileFolderPlan(t *testing.T) {
	movedTest := func() *model.AutomatedTest {
		return &model.AutomatedTest{
			Name: "CheckoutTest", PackageName: "suite", SyncStatus: model.SyncStatusModified,
			IsMoved: true, OldName: "OldCheckout", OldPackageName: "suite",
			Actions: []model.Action{
				{Name: "Action1", LogicalName: "Pay", RepositoryPath: `suite\CheckoutTest\Action1:Pay`, SyncStatus: model.SyncStatusNew},
			},
		}
	}
	oldUnits := []model.Unit{
		{ID: 41, RepositoryPath: `suite\OldCheckout\Action1:Pay`, Folder: &model.FolderRef{ID: 70, Name: "OldCheckout"}},
	}

	t.Run("rename in place for a single-test folder", func(t *testing.T) {
		hub := &mockHubClient{
			unitsByPrefix: func([]string) ([]model.Unit, error) { return oldUnits, nil },
			unitsInFolders: func(names []string) ([]model.Unit, error) {
				assert.Equal(t, []string{"OldCheckout"}, names)
				return oldUnits, nil
			},
		}
		result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{movedTest()}}

		plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
		require.NoError(t, err)

		assert.Equal(t, map[int64]string{70: "CheckoutTest"}, plan.Renames)
		assert.Empty(t, plan.Creates)
		id, ok := plan.FolderID("checkouttest")
		require.True(t, ok)
		assert.Equal(t, int64(70), id)
		id, ok = plan.FolderID("OldCheckout")
		require.True(t, ok)
		assert.Equal(t, int64(70), id)
	})

	t.Run("mixed folder forces a create", func(t *testing.T) {
		mixed := append([]model.Unit{}, oldUnits...)
		mixed = append(mixed, model.Unit{
			ID: 42, RepositoryPath: `suite\OtherTest\Action1:Login`, Folder: &model.FolderRef{ID: 70, Name: "OldCheckout"},
		})
		hub := &mockHubClient{
			unitsByPrefix:  func([]string) ([]model.Unit, error) { return oldUnits, nil },
			unitsInFolders: func([]string) ([]model.Unit, error) { return mixed, nil },
		}
		result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{movedTest()}}

		plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
		require.NoError(t, err)

		assert.Empty(t, plan.Renames, "a folder is renamed, never merged")
		assert.Equal(t, []string{"CheckoutTest"}, plan.Creates)
	})

	t.Run("unit without a repository path blocks the rename", func(t *testing.T) {
		mixed := append([]model.Unit{}, oldUnits...)
		mixed = append(mixed, model.Unit{ID: 43, Folder: &model.FolderRef{ID: 70, Name: "OldCheckout"}})
		hub := &mockHubClient{
			unitsByPrefix:  func([]string) ([]model.Unit, error) { return oldUnits, nil },
			unitsInFolders: func([]string) ([]model.Unit, error) { return mixed, nil },
		}
		result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{movedTest()}}

		plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
		require.NoError(t, err)
		assert.Empty(t, plan.Renames)
		assert.Equal(t, []string{"CheckoutTest"}, plan.Creates)
	})

	t.Run("existing target folder needs no rename", func(t *testing.T) {
		hub := &mockHubClient{
			unitsByPrefix: func([]string) ([]model.Unit, error) { return oldUnits, nil },
			foldersByNames: func(names []string) ([]model.UnitFolder, error) {
				assert.Equal(t, []string{"CheckoutTest"}, names)
				return []model.UnitFolder{{ID: 80, Name: "CheckoutTest"}}, nil
			},
			unitsInFolders: func([]string) ([]model.Unit, error) {
				t.Fatal("no folder inspection needed when the target already exists")
				return nil, nil
			},
		}
		result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{movedTest()}}

		plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
		require.NoError(t, err)

		assert.True(t, plan.Empty())
		id, ok := plan.FolderID("CheckoutTest")
		require.True(t, ok)
		assert.Equal(t, int64(80), id)
	})

	t.Run("package-only move leaves folders alone", func(t *testing.T) {
		moved := movedTest()
		moved.OldName = moved.Name
		moved.OldPackageName = "legacy"
		hub := &mockHubClient{
			unitsByPrefix: func([]string) ([]model.Unit, error) { return nil, nil },
			foldersByNames: func([]string) ([]model.UnitFolder, error) {
				t.Fatal("folder names did not change")
				return nil, nil
			},
		}
		result := &model.DiscoveryResult{Tests: []*model.AutomatedTest{moved}}

		plan, err := application.NewReconcileService(hub).Reconcile(context.Background(), result)
		require.NoError(t, err)
		assert.True(t, plan.Empty())
	})
}
