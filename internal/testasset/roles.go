package testasset

import (
	"path"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// FileRole classifies what part a repository file plays for a tool type.
type FileRole string

const (
	// RoleTestMain marks a test entry file, GUI (.tsp) or API (.st).
	RoleTestMain FileRole = "test_main"
	// RoleManifest marks a per-test action manifest. GUI tool only.
	RoleManifest FileRole = "manifest"
	// RoleDataTable marks a spreadsheet data table. GUI tool only.
	RoleDataTable FileRole = "data_table"
	// RoleActionResource marks a per-action resource file. MBT flavor only.
	RoleActionResource FileRole = "action_resource"
	// RoleNone marks a file the bridge does not track.
	RoleNone FileRole = "none"
)

// Marker extensions for test entry files.
const (
	GUITestMainExt = ".tsp"
	APITestMainExt = ".st"
)

// RoleOf classifies a repository-relative path for the given tool type. The
// match is on the base name only and case-insensitive.
func RoleOf(tool model.ToolType, p string) FileRole {
	base := strings.ToLower(path.Base(strings.ReplaceAll(p, `\`, "/")))
	ext := path.Ext(base)
	if ext == GUITestMainExt || ext == APITestMainExt {
		return RoleTestMain
	}
	switch tool {
	case model.ToolTypeGUI:
		switch {
		case base == strings.ToLower(ManifestFileName):
			return RoleManifest
		case ext == ".xls" || ext == ".xlsx":
			return RoleDataTable
		}
	case model.ToolTypeMBT:
		if base == strings.ToLower(ResourceFileName) {
			return RoleActionResource
		}
	}
	return RoleNone
}
