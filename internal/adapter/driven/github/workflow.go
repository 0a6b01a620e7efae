package github

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DispatchInput is one declared workflow_dispatch input of a workflow file.
type DispatchInput struct {
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
	Required    bool   `yaml:"required"`
}

type triggerSection struct {
	WorkflowDispatch *struct {
		Inputs map[string]DispatchInput `yaml:"inputs"`
	} `yaml:"workflow_dispatch"`
}

// ParseWorkflowInputs extracts the declared workflow_dispatch inputs from a
// workflow YAML document. Workflows without a workflow_dispatch trigger (or
// with scalar/sequence trigger forms, which cannot declare inputs) yield an
// empty map.
func ParseWorkflowInputs(data []byte) (map[string]DispatchInput, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow file: %w", err)
	}
	if len(doc.Content) == 0 {
		return map[string]DispatchInput{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("workflow document is not a mapping")
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		// YAML 1.1 resolves a bare `on` key to the boolean true, so the
		// trigger key surfaces as "true" unless the author quoted it.
		if key.Value != "on" && key.Value != "true" {
			continue
		}
		if value.Kind != yaml.MappingNode {
			break
		}
		var section triggerSection
		if err := value.Decode(&section); err != nil {
			return nil, fmt.Errorf("failed to decode workflow triggers: %w", err)
		}
		if section.WorkflowDispatch == nil || section.WorkflowDispatch.Inputs == nil {
			break
		}
		return section.WorkflowDispatch.Inputs, nil
	}
	return map[string]DispatchInput{}, nil
}

// LoadWorkflowInputs reads a workflow file and extracts its declared
// workflow_dispatch inputs.
func LoadWorkflowInputs(path string) (map[string]DispatchInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return ParseWorkflowInputs(data)
}

// ResolveDispatchInputs merges the inputs provided by a workflow_dispatch
// event over the declared defaults. Declared required inputs that end up
// without a value are a validation error.
func ResolveDispatchInputs(declared map[string]DispatchInput, provided map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(declared))
	for name, input := range declared {
		if input.Default != nil {
			resolved[name] = stringifyInput(input.Default)
		}
	}
	for name, value := range provided {
		resolved[name] = value
	}

	var missing []string
	for name, input := range declared {
		if _, ok := resolved[name]; input.Required && !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required workflow inputs: %s", strings.Join(missing, ", "))
	}
	return resolved, nil
}
