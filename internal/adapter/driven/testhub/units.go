package testhub

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

const (
	unitFields = "id,name,description,repository_path,folder,test_runner"

	typeUnit       = "unit"
	typeUnitFolder = "unit_folder"
)

type refDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

type unitDTO struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	RepositoryPath string  `json:"repository_path,omitempty"`
	Folder         *refDTO `json:"folder,omitempty"`
	TestRunner     *refDTO `json:"test_runner,omitempty"`
}

func mapUnit(d unitDTO) model.Unit {
	u := model.Unit{
		ID:             d.ID,
		Name:           d.Name,
		Description:    d.Description,
		RepositoryPath: d.RepositoryPath,
	}
	if d.Folder != nil {
		u.Folder = &model.FolderRef{ID: d.Folder.ID, Name: d.Folder.Name}
	}
	if d.TestRunner != nil {
		u.TestRunner = &model.RunnerRef{ID: d.TestRunner.ID, Name: d.TestRunner.Name}
	}
	return u
}

// listUnits pages through /units matching query until total_count is reached.
func (c *Client) listUnits(ctx context.Context, query string) ([]model.Unit, error) {
	units := []model.Unit{}
	for {
		var page listResponse[unitDTO]
		if err := c.get(ctx, "/units", listQuery(query, unitFields, len(units)), &page); err != nil {
			return nil, fmt.Errorf("failed to list units (offset %d): %w", len(units), err)
		}
		for _, d := range page.Data {
			units = append(units, mapUnit(d))
		}
		if len(page.Data) == 0 || len(units) >= page.TotalCount {
			return units, nil
		}
	}
}

// GetUnitsByRepositoryPaths returns the units whose repository path exactly
// matches one of the given paths.
func (c *Client) GetUnitsByRepositoryPaths(ctx context.Context, paths []string) ([]model.Unit, error) {
	if len(paths) == 0 {
		return []model.Unit{}, nil
	}
	return c.listUnits(ctx, eqAny("repository_path", paths))
}

// GetUnitsByPathPrefixes returns the units whose repository path starts with
// one of the given prefixes.
func (c *Client) GetUnitsByPathPrefixes(ctx context.Context, prefixes []string) ([]model.Unit, error) {
	if len(prefixes) == 0 {
		return []model.Unit{}, nil
	}
	return c.listUnits(ctx, prefixAny("repository_path", prefixes))
}

// GetUnitsInFolders returns the units whose parent folder carries one of the
// given names.
func (c *Client) GetUnitsInFolders(ctx context.Context, folderNames []string) ([]model.Unit, error) {
	if len(folderNames) == 0 {
		return []model.Unit{}, nil
	}
	return c.listUnits(ctx, eqAny("folder.name", folderNames))
}

// CreateUnits creates the given units in bulk and returns the created
// entities with their server-assigned ids, in request order.
func (c *Client) CreateUnits(ctx context.Context, units []model.UnitCreate) ([]model.Unit, error) {
	created := []model.Unit{}
	for _, chunk := range chunked(units) {
		data := make([]map[string]any, 0, len(chunk))
		for _, u := range chunk {
			data = append(data, map[string]any{
				"name":            u.Name,
				"description":     u.Description,
				"repository_path": u.RepositoryPath,
				"folder":          refDTO{ID: u.FolderID, Type: typeUnitFolder},
			})
		}
		var resp listResponse[unitDTO]
		if err := c.postJSON(ctx, "/units", map[string]any{"data": data}, &resp); err != nil {
			return nil, fmt.Errorf("failed to create %d units: %w", len(chunk), err)
		}
		for _, d := range resp.Data {
			created = append(created, mapUnit(d))
		}
	}
	return created, nil
}

// UpdateUnits applies the given field changes in bulk. Empty fields are left
// untouched on the server.
func (c *Client) UpdateUnits(ctx context.Context, updates []model.UnitUpdate) error {
	for _, chunk := range chunked(updates) {
		data := make([]map[string]any, 0, len(chunk))
		for _, u := range chunk {
			entry := map[string]any{"id": u.ID}
			if u.Name != "" {
				entry["name"] = u.Name
			}
			if u.RepositoryPath != "" {
				entry["repository_path"] = u.RepositoryPath
			}
			if u.FolderID != nil {
				entry["folder"] = refDTO{ID: *u.FolderID, Type: typeUnitFolder}
			}
			data = append(data, entry)
		}
		if err := c.putJSON(ctx, "/units", map[string]any{"data": data}, nil); err != nil {
			return fmt.Errorf("failed to update %d units: %w", len(chunk), err)
		}
	}
	return nil
}

// DetachUnits clears the repository path and runner assignment of the given
// units, leaving them in place for manual cleanup.
func (c *Client) DetachUnits(ctx context.Context, unitIDs []int64) error {
	for _, chunk := range chunked(unitIDs) {
		data := make([]map[string]any, 0, len(chunk))
		for _, id := range chunk {
			// Explicit nulls: the fields must be cleared, not omitted.
			data = append(data, map[string]any{
				"id":              id,
				"repository_path": nil,
				"test_runner":     nil,
			})
		}
		if err := c.putJSON(ctx, "/units", map[string]any{"data": data}, nil); err != nil {
			return fmt.Errorf("failed to detach %d units: %w", len(chunk), err)
		}
	}
	return nil
}

// CreateParameters creates unit parameters in bulk.
func (c *Client) CreateParameters(ctx context.Context, params []model.ParamCreate) error {
	for _, chunk := range chunked(params) {
		data := make([]map[string]any, 0, len(chunk))
		for _, p := range chunk {
			data = append(data, map[string]any{
				"name":          p.Name,
				"direction":     string(p.Direction),
				"default_value": p.DefaultValue,
				"unit":          refDTO{ID: p.UnitID, Type: typeUnit},
			})
		}
		if err := c.postJSON(ctx, "/unit_parameters", map[string]any{"data": data}, nil); err != nil {
			return fmt.Errorf("failed to create %d unit parameters: %w", len(chunk), err)
		}
	}
	return nil
}
