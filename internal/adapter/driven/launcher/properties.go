package launcher

import (
	"fmt"
	"os"
	"strings"
)

// properties is the launcher parameter file content. The launcher reads
// key=value lines; order is fixed so generated files diff cleanly.
type properties struct {
	RunType      string
	TestListFile string
	ResultsFile  string
	ResultsDir   string
}

func writeProperties(path string, p properties) error {
	var b strings.Builder
	fmt.Fprintf(&b, "runType=%s\n", p.RunType)
	fmt.Fprintf(&b, "testListFile=%s\n", p.TestListFile)
	fmt.Fprintf(&b, "resultsFile=%s\n", p.ResultsFile)
	fmt.Fprintf(&b, "resultsDir=%s\n", p.ResultsDir)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
