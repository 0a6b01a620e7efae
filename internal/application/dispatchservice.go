package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
	"github.com/ericfisherdev/testbridge/internal/domain/repopath"
)

// DispatchService pushes a reconciled discovery result to the remote system.
// Writes are ordered new before deleted before modified, so content exists
// before anything links to it. Individual failures are recorded and the run
// keeps going; the first error still surfaces to the caller.
type DispatchService struct {
	hub driven.TestHubClient
}

// NewDispatchService creates a DispatchService writing through the given
// remote API.
func NewDispatchService(hub driven.TestHubClient) *DispatchService {
	return &DispatchService{hub: hub}
}

// Dispatch performs all remote writes for one result. The returned operations
// record every write attempted, failed ones included, and accompany any
// error.
func (s *DispatchService) Dispatch(ctx context.Context, result *model.DiscoveryResult, plan *FolderPlan) ([]model.DispatchOperation, error) {
	if plan == nil {
		plan = NewFolderPlan()
	}
	run := &dispatchRun{hub: s.hub, plan: plan, folders: make(map[string]int64, len(plan.IDByName))}
	for name, id := range plan.IDByName {
		run.folders[name] = id
	}

	run.executePlan(ctx)
	run.dispatchNew(ctx, result)
	run.dispatchDeleted(ctx, result)
	run.dispatchModified(ctx, result)

	slog.Info("dispatch complete", "operations", len(run.ops), "failed", countFailed(run.ops))
	return run.ops, run.firstErr
}

// dispatchRun carries the state of one dispatch: the resolved folder ids, the
// operation log and the first error seen.
type dispatchRun struct {
	hub      driven.TestHubClient
	plan     *FolderPlan
	folders  map[string]int64
	ops      []model.DispatchOperation
	firstErr error
}

func (r *dispatchRun) record(kind, target string, err error, detail string) {
	op := model.DispatchOperation{Kind: kind, TargetPath: target, Succeeded: err == nil, Detail: detail, At: time.Now().UTC()}
	if err != nil {
		op.Detail = err.Error()
		slog.Warn("dispatch operation failed", "kind", kind, "target", target, "error", err)
	}
	r.ops = append(r.ops, op)
}

func (r *dispatchRun) fail(err error) {
	if r.firstErr == nil {
		r.firstErr = err
	}
}

// executePlan applies the folder renames reconciliation planned. A failed
// rename drops the folder from the resolution map, so the affected unit
// updates fall back to keeping their current parent.
func (r *dispatchRun) executePlan(ctx context.Context) {
	ids := make([]int64, 0, len(r.plan.Renames))
	for id := range r.plan.Renames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		newName := r.plan.Renames[id]
		err := r.hub.RenameFolder(ctx, id, newName)
		r.record(model.OperationRenameFolder, newName, err, fmt.Sprintf("folder_id=%d", id))
		if err != nil {
			delete(r.folders, strings.ToLower(newName))
			r.fail(fmt.Errorf("failed to rename folder %d to %s: %w", id, newName, err))
		}
	}
}

// dispatchNew creates folders and units for new actions. Parameter payloads
// are collected against the parent's repository path and re-pointed at the
// real unit id once the bulk creation has returned it.
func (r *dispatchRun) dispatchNew(ctx context.Context, result *model.DiscoveryResult) {
	r.resolveFolders(ctx, r.newFolderNames(result))

	type pendingParam struct {
		parentPath string
		payload    model.ParamCreate
	}
	var creates []model.UnitCreate
	var params []pendingParam

	for _, t := range result.Tests {
		for _, a := range t.Actions {
			if a.SyncStatus != model.SyncStatusNew {
				continue
			}
			folderID, ok := r.folders[strings.ToLower(a.TestName)]
			if !ok {
				r.record(model.OperationCreateUnit, a.RepositoryPath,
					fmt.Errorf("no folder resolved for test %q", a.TestName), "")
				continue
			}
			creates = append(creates, model.UnitCreate{
				Name:           a.LogicalName,
				Description:    a.Description,
				RepositoryPath: a.RepositoryPath,
				FolderID:       folderID,
			})
			for _, p := range a.Params {
				if p.SyncStatus != model.SyncStatusNew {
					continue
				}
				params = append(params, pendingParam{parentPath: a.RepositoryPath, payload: model.ParamCreate{
					Name:         p.Name,
					Direction:    p.Direction,
					DefaultValue: p.DefaultValue,
				}})
			}
		}
	}
	if len(creates) == 0 {
		return
	}

	created, err := r.hub.CreateUnits(ctx, creates)
	if err != nil {
		for _, c := range creates {
			r.record(model.OperationCreateUnit, c.RepositoryPath, err, "")
		}
		r.fail(fmt.Errorf("failed to create units: %w", err))
		return
	}
	ids := make(map[string]int64, len(created))
	for _, u := range created {
		ids[repopath.Key(u.RepositoryPath)] = u.ID
	}
	for _, c := range creates {
		r.record(model.OperationCreateUnit, c.RepositoryPath, nil, fmt.Sprintf("unit_id=%d", ids[repopath.Key(c.RepositoryPath)]))
	}

	pending := params[:0]
	var payloads []model.ParamCreate
	for _, p := range params {
		id, ok := ids[repopath.Key(p.parentPath)]
		if !ok {
			slog.Warn("parameter parent unit was not created, dropping parameter",
				"path", p.parentPath, "param", p.payload.Name)
			continue
		}
		p.payload.UnitID = id
		pending = append(pending, p)
		payloads = append(payloads, p.payload)
	}
	if len(payloads) == 0 {
		return
	}

	err = r.hub.CreateParameters(ctx, payloads)
	for _, p := range pending {
		r.record(model.OperationCreateParam, p.parentPath+"#"+p.payload.Name, err,
			fmt.Sprintf("unit_id=%d", p.payload.UnitID))
	}
	if err != nil {
		r.fail(fmt.Errorf("failed to create parameters: %w", err))
	}
}

// dispatchDeleted detaches the units of deleted actions. Remote entities are
// never destroyed: clearing the repository path and the runner link reverts a
// unit to not-automated while its history stays.
func (r *dispatchRun) dispatchDeleted(ctx context.Context, result *model.DiscoveryResult) {
	var ids []int64
	var paths []string
	for _, t := range result.Tests {
		for _, a := range t.Actions {
			if a.SyncStatus != model.SyncStatusDeleted {
				continue
			}
			if a.UnitID == nil {
				slog.Debug("deleted action has no remote unit, nothing to detach", "path", a.RepositoryPath)
				continue
			}
			ids = append(ids, *a.UnitID)
			paths = append(paths, a.RepositoryPath)
		}
	}
	if len(ids) == 0 {
		return
	}

	err := r.hub.DetachUnits(ctx, ids)
	for i, p := range paths {
		r.record(model.OperationDetachUnit, p, err, fmt.Sprintf("unit_id=%d", ids[i]))
	}
	if err != nil {
		r.fail(fmt.Errorf("failed to detach units: %w", err))
	}
}

// dispatchModified updates matched units with the current name and path. The
// parent folder is re-resolved per action; an unresolved folder means no
// parent change rather than a failed update.
func (r *dispatchRun) dispatchModified(ctx context.Context, result *model.DiscoveryResult) {
	var updates []model.UnitUpdate
	var paths []string
	for _, t := range result.Tests {
		for _, a := range t.Actions {
			if a.SyncStatus != model.SyncStatusModified {
				continue
			}
			if a.UnitID == nil {
				slog.Warn("modified action has no remote unit id, skipping", "path", a.RepositoryPath)
				continue
			}
			update := model.UnitUpdate{ID: *a.UnitID, Name: a.LogicalName, RepositoryPath: a.RepositoryPath}
			if id, ok := r.folders[strings.ToLower(a.TestName)]; ok {
				folderID := id
				update.FolderID = &folderID
			}
			updates = append(updates, update)
			paths = append(paths, a.RepositoryPath)
		}
	}
	if len(updates) == 0 {
		return
	}

	err := r.hub.UpdateUnits(ctx, updates)
	for i, p := range paths {
		r.record(model.OperationUpdateUnit, p, err, fmt.Sprintf("unit_id=%d", updates[i].ID))
	}
	if err != nil {
		r.fail(fmt.Errorf("failed to update units: %w", err))
	}
}

// newFolderNames collects the distinct folder names the new phase must have:
// one per test name carrying new actions, plus the folders the plan wants
// created. Names already resolved by the plan are skipped.
func (r *dispatchRun) newFolderNames(result *model.DiscoveryResult) []string {
	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			return
		}
		seen[key] = true
		if _, ok := r.folders[key]; ok {
			return
		}
		names = append(names, name)
	}
	for _, t := range result.Tests {
		for _, a := range t.Actions {
			if a.SyncStatus == model.SyncStatusNew {
				add(a.TestName)
			}
		}
	}
	for _, name := range r.plan.Creates {
		add(name)
	}
	return names
}

// resolveFolders looks the given names up remotely and creates whatever is
// missing, filling the resolution map as it goes.
func (r *dispatchRun) resolveFolders(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}

	existing, err := r.hub.GetFoldersByNames(ctx, names)
	if err != nil {
		slog.Warn("failed to resolve folders", "error", err)
		r.fail(fmt.Errorf("failed to resolve folders: %w", err))
		return
	}
	for _, f := range existing {
		r.folders[strings.ToLower(f.Name)] = f.ID
	}

	var missing []string
	for _, name := range names {
		if _, ok := r.folders[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}

	created, err := r.hub.CreateFolders(ctx, missing)
	if err != nil {
		for _, name := range missing {
			r.record(model.OperationCreateFolder, name, err, "")
		}
		r.fail(fmt.Errorf("failed to create folders: %w", err))
		return
	}
	for _, f := range created {
		r.folders[strings.ToLower(f.Name)] = f.ID
		r.record(model.OperationCreateFolder, f.Name, nil, fmt.Sprintf("folder_id=%d", f.ID))
	}
}

func countFailed(ops []model.DispatchOperation) int {
	n := 0
	for _, op := range ops {
		if !op.Succeeded {
			n++
		}
	}
	return n
}
