// Package mbt prepares model-based test runs for execution: it turns the
// suite composition delivered by the remote system into driver scripts and
// encoded iteration tables the launcher can consume.
package mbt

import (
	"fmt"
	"sort"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
)

// BuildTestInfo assembles everything one run needs: the driver script over
// the composition's units, resolved against the working copy at repoRoot,
// and the base64-encoded iteration table when the composition carries one.
func BuildTestInfo(repoRoot string, runID int64, comp model.MbtComposition) (model.MbtTestInfo, error) {
	if len(comp.Units) == 0 {
		return model.MbtTestInfo{}, fmt.Errorf("run %d: composition has no units", runID)
	}

	units := make([]model.MbtCompositionUnit, len(comp.Units))
	copy(units, comp.Units)
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Order != units[j].Order {
			return units[i].Order < units[j].Order
		}
		return units[i].UnitID < units[j].UnitID
	})

	script, err := buildScript(repoRoot, units, comp.Data)
	if err != nil {
		return model.MbtTestInfo{}, fmt.Errorf("run %d: %w", runID, err)
	}

	info := model.MbtTestInfo{
		RunID:    runID,
		TestName: comp.TestName,
		Script:   script,
		Units:    units,
	}
	if info.TestName == "" {
		info.TestName = fmt.Sprintf("suite-run-test-%d", runID)
	}
	if comp.Data != nil {
		info.EncodedDataTable = EncodeDataTable(*comp.Data)
	}
	return info, nil
}
