package mbt

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ericfisherdev/testbridge/internal/domain/model"
	"github.com/ericfisherdev/testbridge/internal/domain/repopath"
)

// buildScript renders the driver script: one LoadAndRunAction call per
// action-reference unit in composition order, each followed by a guard that
// stops the iteration on failure. Units whose path carries no colon are plain
// file references and render nothing.
// Output parameters land in script variables keyed by parameter
// name; chained inputs read those variables, plain inputs read the data
// table column of the same name.
func buildScript(repoRoot string, units []model.MbtCompositionUnit, data *model.DataTable) (string, error) {
	columns := make(map[string]bool)
	if data != nil {
		for _, p := range data.Parameters {
			columns[p] = true
		}
	}

	var declared []string
	declaredSet := make(map[string]bool)
	var calls strings.Builder

	for _, unit := range units {
		if !strings.Contains(unit.PathInScm, ":") {
			// Plain file reference, an attached table or resource; only
			// action references render calls.
			continue
		}
		ref, err := repopath.Parse(unit.PathInScm)
		if err != nil {
			return "", fmt.Errorf("unit %d: %w", unit.UnitID, err)
		}
		testFolder := filepath.Join(repoRoot, filepath.FromSlash(repopath.ToSlash(ref.TestPath)))

		args := make([]string, 0, len(unit.Parameters))
		for _, p := range unit.Parameters {
			switch {
			case p.Direction == model.ParamDirectionOutput:
				name := scriptVar(p.Name)
				if !declaredSet[name] {
					declaredSet[name] = true
					declared = append(declared, name)
				}
				args = append(args, name)
			case p.OutputParameter != "":
				args = append(args, scriptVar(p.OutputParameter))
			case columns[p.Name]:
				args = append(args, fmt.Sprintf("DataTable(%q, dtGlobalSheet)", p.Name))
			default:
				args = append(args, `""`)
			}
		}

		fmt.Fprintf(&calls, "LoadAndRunAction %q, %q, oneIteration", testFolder, ref.LogicalName)
		for _, a := range args {
			calls.WriteString(", ")
			calls.WriteString(a)
		}
		calls.WriteString("\n")
		calls.WriteString("If Reporter.RunStatus = 1 Then\n\tExitTestIteration\nEnd If\n")
	}

	var b strings.Builder
	for _, name := range declared {
		fmt.Fprintf(&b, "Dim %s\n", name)
	}
	if len(declared) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(calls.String())
	return b.String(), nil
}

// scriptVar derives a legal script identifier from a parameter name.
func scriptVar(name string) string {
	var b strings.Builder
	b.WriteString("p_")
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
