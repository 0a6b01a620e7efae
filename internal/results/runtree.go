package results

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Step statuses carried into the report.
const (
	StepStatusPassed  = "passed"
	StepStatusFailed  = "failed"
	StepStatusWarning = "warning"
)

// StepResult is one executed action extracted from a per-run result tree.
type StepResult struct {
	Name         string
	Status       string
	DurationMS   int64
	ErrorMessage string
	Inputs       []StepParam
	Outputs      []StepParam
}

// StepParam is one action parameter value observed during the run.
type StepParam struct {
	Name  string
	Value string
}

// Node types that group other nodes. Their own description text is never an
// error of its own; error collection reads only final nodes.
var nonFinalNodeTypes = map[string]bool{
	"context":   true,
	"summary":   true,
	"iteration": true,
}

const actionNodeType = "action"

type runTree struct {
	XMLName    xml.Name       `xml:"run_results"`
	Iterations []runIteration `xml:"iteration"`
}

type runIteration struct {
	Index int       `xml:"index,attr"`
	Nodes []runNode `xml:"node"`
}

type runNode struct {
	Type        string     `xml:"type,attr"`
	Name        string     `xml:"name,attr"`
	Status      string     `xml:"status,attr"`
	Duration    int64      `xml:"duration,attr"`
	Description string     `xml:"description"`
	Parameters  []runParam `xml:"parameter"`
	Children    []runNode  `xml:"node"`
}

type runParam struct {
	Name      string `xml:"name,attr"`
	Value     string `xml:"value,attr"`
	Direction string `xml:"direction,attr"`
}

// ExtractSteps reads a per-run result tree and returns one step per action
// node, in document order. The tree nests iterations at the top and action
// nodes directly below them; anything deeper only contributes error detail.
func ExtractSteps(r io.Reader) ([]StepResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read result tree: %w", err)
	}
	var tree runTree
	if err := xml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse result tree: %w", err)
	}

	multiIteration := len(tree.Iterations) > 1
	var steps []StepResult
	for _, it := range tree.Iterations {
		for _, node := range it.Nodes {
			if !strings.EqualFold(node.Type, actionNodeType) {
				continue
			}
			step := StepResult{
				Name:       node.Name,
				Status:     stepStatus(node.Status),
				DurationMS: node.Duration,
			}
			if multiIteration {
				step.Name = fmt.Sprintf("%s (iteration %d)", node.Name, it.Index)
			}
			for _, p := range node.Parameters {
				if strings.EqualFold(p.Direction, "out") {
					step.Outputs = append(step.Outputs, StepParam{Name: p.Name, Value: p.Value})
				} else {
					step.Inputs = append(step.Inputs, StepParam{Name: p.Name, Value: p.Value})
				}
			}
			if step.Status != StepStatusPassed {
				step.ErrorMessage = collectErrors(node)
			}
			steps = append(steps, step)
		}
	}
	return steps, nil
}

func stepStatus(raw string) string {
	switch strings.ToLower(raw) {
	case "failed":
		return StepStatusFailed
	case "warning":
		return StepStatusWarning
	default:
		return StepStatusPassed
	}
}

// collectErrors walks the whole subtree under an action and gathers the
// descriptions of failed and warning final nodes, deduplicated, in document
// order. Messages below the action are prefixed with their node path. The
// path slice is cloned per branch; sharing one across siblings would leak a
// branch's entries into the next.
func collectErrors(root runNode) string {
	seen := make(map[string]bool)
	var messages []string

	var walk func(node runNode, trail []string, isRoot bool)
	walk = func(node runNode, trail []string, isRoot bool) {
		label := trail
		if !isRoot {
			label = append(append([]string(nil), trail...), node.Name)
		}
		failing := strings.EqualFold(node.Status, "failed") || strings.EqualFold(node.Status, "warning")
		if failing && !nonFinalNodeTypes[strings.ToLower(node.Type)] {
			if text := strings.TrimSpace(node.Description); text != "" {
				msg := text
				if len(label) > 0 {
					msg = strings.Join(label, " > ") + ": " + text
				}
				if !seen[msg] {
					seen[msg] = true
					messages = append(messages, msg)
				}
			}
		}
		for _, child := range node.Children {
			walk(child, label, false)
		}
	}
	walk(root, nil, true)

	return strings.Join(messages, "\n")
}
