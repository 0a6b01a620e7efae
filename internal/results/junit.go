// Package results turns launcher output into the remote system's ingestion
// format: it parses the aggregated JUnit-style results file, extracts step
// details from per-run result trees and assembles the final report XML.
package results

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CaseStatus is the outcome of one test case.
type CaseStatus string

const (
	CaseStatusPassed  CaseStatus = "passed"
	CaseStatusFailed  CaseStatus = "failed"
	CaseStatusError   CaseStatus = "error"
	CaseStatusSkipped CaseStatus = "skipped"
)

// SuiteResult is one merged test suite from the launcher results file.
type SuiteResult struct {
	Name      string
	ID        string
	Timestamp string
	Cases     []CaseResult
}

// CaseResult is one executed test case. RunID links the case back to the
// planned remote run when the launcher tagged it; 0 means untagged.
type CaseResult struct {
	Name            string
	ClassName       string
	RunID           int64
	Status          CaseStatus
	DurationSeconds float64
	FailureType     string
	FailureMessage  string
	FailureText     string
	SystemOut       string
	SystemErr       string
}

// Output larger than this is cut down to a head and a tail unless the caller
// asked to keep long output.
const (
	outputLimitBytes = 4096
	outputHeadBytes  = 2048
	outputTailBytes  = 1536
)

const truncationMarker = "\n... output truncated ...\n"

type suiteKey struct {
	name string
	id   string
}

// ParseSuites reads a JUnit-style results document as a token stream, so
// arbitrarily large files never load as one tree. Suites appearing several
// times under the same (name, id) merge into one, keeping the first
// timestamp and appending cases in document order.
func ParseSuites(r io.Reader, keepLongOutput bool) ([]SuiteResult, error) {
	dec := xml.NewDecoder(r)

	var suites []SuiteResult
	index := make(map[suiteKey]int)
	current := -1

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse results document: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "testsuites":
			// Container element, nothing to keep.
		case "testsuite":
			key := suiteKey{name: attrValue(start, "name"), id: attrValue(start, "id")}
			if idx, ok := index[key]; ok {
				current = idx
				continue
			}
			suites = append(suites, SuiteResult{
				Name:      key.name,
				ID:        key.id,
				Timestamp: attrValue(start, "timestamp"),
			})
			index[key] = len(suites) - 1
			current = len(suites) - 1
		case "testcase":
			if current < 0 {
				return nil, fmt.Errorf("testcase outside of a testsuite at offset %d", dec.InputOffset())
			}
			var c xmlCase
			if err := dec.DecodeElement(&c, &start); err != nil {
				return nil, fmt.Errorf("failed to decode testcase: %w", err)
			}
			suites[current].Cases = append(suites[current].Cases, c.toCaseResult(keepLongOutput))
		default:
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("failed to skip element %s: %w", start.Name.Local, err)
			}
		}
	}
	return suites, nil
}

type xmlCase struct {
	Name      string      `xml:"name,attr"`
	ClassName string      `xml:"classname,attr"`
	Time      string      `xml:"time,attr"`
	RunID     string      `xml:"runId,attr"`
	Failure   *xmlProblem `xml:"failure"`
	Error     *xmlProblem `xml:"error"`
	Skipped   *xmlSkipped `xml:"skipped"`
	SystemOut string      `xml:"system-out"`
	SystemErr string      `xml:"system-err"`
}

type xmlProblem struct {
	Type    string `xml:"type,attr"`
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type xmlSkipped struct {
	Message string `xml:"message,attr"`
}

func (c *xmlCase) toCaseResult(keepLongOutput bool) CaseResult {
	res := CaseResult{
		Name:      c.Name,
		ClassName: c.ClassName,
		Status:    CaseStatusPassed,
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(c.Time), 64); err == nil {
		res.DurationSeconds = d
	}
	if id, err := strconv.ParseInt(strings.TrimSpace(c.RunID), 10, 64); err == nil {
		res.RunID = id
	}

	switch {
	case c.Error != nil:
		res.Status = CaseStatusError
		res.FailureType = c.Error.Type
		res.FailureMessage = c.Error.Message
		res.FailureText = strings.TrimSpace(c.Error.Text)
	case c.Failure != nil:
		res.Status = CaseStatusFailed
		res.FailureType = c.Failure.Type
		res.FailureMessage = c.Failure.Message
		res.FailureText = strings.TrimSpace(c.Failure.Text)
	case c.Skipped != nil:
		res.Status = CaseStatusSkipped
		res.FailureMessage = c.Skipped.Message
	}

	res.SystemOut = strings.TrimSpace(c.SystemOut)
	res.SystemErr = strings.TrimSpace(c.SystemErr)
	if !keepLongOutput {
		res.FailureText = truncateOutput(res.FailureText)
		res.SystemOut = truncateOutput(res.SystemOut)
		res.SystemErr = truncateOutput(res.SystemErr)
	}
	return res
}

// truncateOutput keeps the head and tail of oversized output. Failures tend
// to announce themselves early and summarize late; the middle is the part
// nobody reads.
func truncateOutput(s string) string {
	if len(s) <= outputLimitBytes {
		return s
	}
	return s[:outputHeadBytes] + truncationMarker + s[len(s)-outputTailBytes:]
}

func attrValue(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
