package testhub

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

const folderFields = "id,name"

type folderDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// GetFoldersByNames returns the unit folders carrying one of the given names.
func (c *Client) GetFoldersByNames(ctx context.Context, names []string) ([]model.UnitFolder, error) {
	if len(names) == 0 {
		return []model.UnitFolder{}, nil
	}
	folders := []model.UnitFolder{}
	query := eqAny("name", names)
	for {
		var page listResponse[folderDTO]
		if err := c.get(ctx, "/unit_folders", listQuery(query, folderFields, len(folders)), &page); err != nil {
			return nil, fmt.Errorf("failed to list unit folders (offset %d): %w", len(folders), err)
		}
		for _, d := range page.Data {
			folders = append(folders, model.UnitFolder{ID: d.ID, Name: d.Name})
		}
		if len(page.Data) == 0 || len(folders) >= page.TotalCount {
			return folders, nil
		}
	}
}

// CreateFolders creates unit folders with the given names under the
// configured root folder and returns them with their server-assigned ids.
func (c *Client) CreateFolders(ctx context.Context, names []string) ([]model.UnitFolder, error) {
	created := []model.UnitFolder{}
	for _, chunk := range chunked(names) {
		data := make([]map[string]any, 0, len(chunk))
		for _, name := range chunk {
			data = append(data, map[string]any{
				"name":   name,
				"parent": refDTO{ID: c.rootFolderID, Type: typeUnitFolder},
			})
		}
		var resp listResponse[folderDTO]
		if err := c.postJSON(ctx, "/unit_folders", map[string]any{"data": data}, &resp); err != nil {
			return nil, fmt.Errorf("failed to create %d unit folders: %w", len(chunk), err)
		}
		for _, d := range resp.Data {
			created = append(created, model.UnitFolder{ID: d.ID, Name: d.Name})
		}
	}
	return created, nil
}

// RenameFolder changes the name of a single unit folder.
func (c *Client) RenameFolder(ctx context.Context, folderID int64, newName string) error {
	path := fmt.Sprintf("/unit_folders/%d", folderID)
	if err := c.putJSON(ctx, path, map[string]any{"name": newName}, nil); err != nil {
		return fmt.Errorf("failed to rename folder %d: %w", folderID, err)
	}
	return nil
}
