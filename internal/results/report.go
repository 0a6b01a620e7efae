package results

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Run statuses in the remote ingestion format.
const (
	runStatusPassed  = "Passed"
	runStatusFailed  = "Failed"
	runStatusSkipped = "Skipped"
)

// BuildContext identifies the CI build a report belongs to.
type BuildContext struct {
	ServerID string
	JobID    string
	BuildID  string
}

// TestResultReport is the document the remote system ingests.
type TestResultReport struct {
	XMLName xml.Name  `xml:"test_result"`
	Build   BuildInfo `xml:"build"`
	Runs    []TestRun `xml:"test_runs>test_run"`
}

type BuildInfo struct {
	ServerID string `xml:"server_id,attr"`
	JobID    string `xml:"job_id,attr"`
	BuildID  string `xml:"build_id,attr"`
}

type TestRun struct {
	Name          string       `xml:"name,attr"`
	Package       string       `xml:"package,attr,omitempty"`
	Class         string       `xml:"class,attr,omitempty"`
	Status        string       `xml:"status,attr"`
	Duration      int64        `xml:"duration,attr"`
	Started       int64        `xml:"started,attr"`
	ExternalRunID string       `xml:"external_run_id,attr,omitempty"`
	Error         *RunError    `xml:"error"`
	Steps         []ReportStep `xml:"steps>step"`
}

type RunError struct {
	Type    string `xml:"type,attr,omitempty"`
	Message string `xml:"message,attr,omitempty"`
	Text    string `xml:",chardata"`
}

type ReportStep struct {
	Name         string        `xml:"name,attr"`
	Status       string        `xml:"status,attr"`
	Duration     int64         `xml:"duration,attr"`
	ErrorMessage string        `xml:"error_message,attr,omitempty"`
	Inputs       []ReportParam `xml:"input_parameters>parameter"`
	Outputs      []ReportParam `xml:"output_parameters>parameter"`
}

type ReportParam struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// BuildReport joins parsed suites with per-run step details into the
// ingestion document. stepsByRun is keyed by the external run id; cases
// without a run id, or without a matching entry, report without steps.
func BuildReport(build BuildContext, suites []SuiteResult, stepsByRun map[int64][]StepResult, startedAt time.Time) *TestResultReport {
	report := &TestResultReport{
		Build: BuildInfo{ServerID: build.ServerID, JobID: build.JobID, BuildID: build.BuildID},
	}
	started := startedAt.UnixMilli()

	for _, suite := range suites {
		for _, c := range suite.Cases {
			run := TestRun{
				Name:     c.Name,
				Package:  suite.Name,
				Class:    c.ClassName,
				Status:   runStatus(c.Status),
				Duration: int64(c.DurationSeconds * 1000),
				Started:  started,
			}
			if c.RunID > 0 {
				run.ExternalRunID = fmt.Sprintf("%d", c.RunID)
				for _, s := range stepsByRun[c.RunID] {
					run.Steps = append(run.Steps, ReportStep{
						Name:         s.Name,
						Status:       s.Status,
						Duration:     s.DurationMS,
						ErrorMessage: s.ErrorMessage,
						Inputs:       reportParams(s.Inputs),
						Outputs:      reportParams(s.Outputs),
					})
				}
			}
			if c.Status == CaseStatusFailed || c.Status == CaseStatusError {
				run.Error = &RunError{
					Type:    c.FailureType,
					Message: c.FailureMessage,
					Text:    c.FailureText,
				}
			}
			report.Runs = append(report.Runs, run)
		}
	}
	return report
}

func reportParams(params []StepParam) []ReportParam {
	var out []ReportParam
	for _, p := range params {
		out = append(out, ReportParam{Name: p.Name, Value: p.Value})
	}
	return out
}

func runStatus(s CaseStatus) string {
	switch s {
	case CaseStatusFailed, CaseStatusError:
		return runStatusFailed
	case CaseStatusSkipped:
		return runStatusSkipped
	default:
		return runStatusPassed
	}
}

// Marshal renders the report with the XML prolog.
func (r *TestResultReport) Marshal() ([]byte, error) {
	data, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result report: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}
