// Package testasset reads the on-disk assets of automated tests: the per-test
// action manifest and the per-action resource containers. Parsing failures
// are isolated per asset so one corrupt file never sinks a discovery pass.
package testasset

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/repopath"
)

// ParseGUITest reads a GUI test folder into a test entity with its actions
// and parameters. The manifest is mandatory; a broken per-action resource
// only costs that action its description and parameters.
func ParseGUITest(testDir string, key model.TestKey) (*model.AutomatedTest, error) {
	m, err := parseManifest(filepath.Join(testDir, ManifestFileName))
	if err != nil {
		return nil, err
	}

	test := &model.AutomatedTest{
		Name:        key.Name,
		PackageName: key.PackageName,
		Type:        model.TestTypeGUI,
		Executable:  true,
		Description: strings.TrimSpace(m.Description),
		SyncStatus:  model.SyncStatusNew,
	}

	logical := m.logicalNames()
	prefix := test.PathPrefix()
	for _, a := range m.Actions {
		if a.Name == "" || strings.EqualFold(a.Name, rootActionName) {
			continue
		}
		action := model.Action{
			Name:        a.Name,
			LogicalName: a.Name,
			TestName:    key.Name,
			SyncStatus:  model.SyncStatusNew,
		}
		if name, ok := logical[strings.ToLower(a.Name)]; ok {
			action.LogicalName = name
		}
		action.RepositoryPath = repopath.Join(prefix, a.Name, action.LogicalName)

		resourcePath := filepath.Join(testDir, a.Name, ResourceFileName)
		res, err := ParseActionResource(resourcePath)
		if err != nil {
			slog.Warn("action resource unreadable, syncing action without parameters",
				"test", key.Name, "action", a.Name, "error", err)
		} else {
			action.Description = res.Description
			action.Params = res.Params
		}
		test.Actions = append(test.Actions, action)
	}
	return test, nil
}
