package model

// MbtComposition is the decoded suite-run payload for one planned test run:
// the ordered units to execute and the optional iteration data table. The
// remote system delivers it as base64-encoded JSON per run id.
type MbtComposition struct {
	TestName string               `json:"test_name,omitempty"`
	Units    []MbtCompositionUnit `json:"units"`
	Data     *DataTable           `json:"data,omitempty"`
}

// MbtCompositionUnit is one unit slot inside a composition.
type MbtCompositionUnit struct {
	UnitID     int64          `json:"unit_id"`
	Name       string         `json:"name"`
	Order      int            `json:"order"`
	PathInScm  string         `json:"path_in_scm"`
	Parameters []MbtUnitParam `json:"parameters,omitempty"`
}

// MbtUnitParam wires one unit parameter for a run. OutputParameter names an
// earlier unit's output to chain from; when empty, input values come from the
// data table column of the same name.
type MbtUnitParam struct {
	Name            string         `json:"name"`
	Direction       ParamDirection `json:"direction"`
	OutputParameter string         `json:"output_parameter,omitempty"`
}

// DataTable is the iteration table attached to a composition: one column per
// parameter, one row per iteration.
type DataTable struct {
	Parameters []string   `json:"parameters"`
	Iterations [][]string `json:"iterations"`
}

// MbtTestInfo is the fully prepared input for executing one run: the driver
// script text, the encoded data table and the resolved units.
type MbtTestInfo struct {
	RunID            int64
	TestName         string
	Script           string
	EncodedDataTable string
	Units            []MbtCompositionUnit
}
