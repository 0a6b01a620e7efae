package launcher

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ericfisherdev/testbridge/internal/domain/port/driven"
)

// testList is the multi-test manifest the launcher consumes: one entry per
// prepared run, pointing at the run folder with the generated driver script.
type testList struct {
	XMLName xml.Name    `xml:"test_list"`
	Tests   []testEntry `xml:"test"`
}

type testEntry struct {
	Name       string     `xml:"name,attr"`
	RunID      int64      `xml:"run_id,attr"`
	Folder     string     `xml:"folder,attr"`
	ScriptFile string     `xml:"script_file,attr"`
	DataTable  *dataTable `xml:"data_table,omitempty"`
}

type dataTable struct {
	Encoding string `xml:"encoding,attr"`
	Payload  string `xml:",chardata"`
}

func writeTestList(path string, spec driven.LaunchSpec) error {
	list := testList{}
	for _, run := range spec.Runs {
		entry := testEntry{
			Name:       run.TestName,
			RunID:      run.RunID,
			Folder:     spec.RunDir(run.RunID),
			ScriptFile: filepath.Join(spec.RunDir(run.RunID), driven.ScriptFileName),
		}
		if run.EncodedDataTable != "" {
			entry.DataTable = &dataTable{Encoding: "base64", Payload: run.EncodedDataTable}
		}
		list.Tests = append(list.Tests, entry)
	}

	data, err := xml.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal test list: %w", err)
	}
	data = append([]byte(xml.Header), data...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
