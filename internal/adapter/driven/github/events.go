package github

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	gh "github.com/google/go-github/v82/github"
)

// The zero object id git reports for a created or deleted ref.
const zeroCommitID = "0000000000000000000000000000000000000000"

// CommitRange is the before/after pair of a push event.
type CommitRange struct {
	OldCommitID string
	NewCommitID string
}

// Event is the decoded Actions trigger payload, reduced to what the sync and
// execution flows consume.
type Event struct {
	Name string
	// Commits is set for push events.
	Commits *CommitRange
	// DispatchInputs is set for workflow_dispatch events. Values are
	// stringified the way the runner exposes them.
	DispatchInputs map[string]string
}

// LoadEvent reads and decodes the Actions event payload file. eventName and
// payloadPath are the values of GITHUB_EVENT_NAME and GITHUB_EVENT_PATH.
// Event types other than push and workflow_dispatch decode to a bare Event
// carrying only the name.
func LoadEvent(eventName, payloadPath string) (*Event, error) {
	event := &Event{Name: eventName}
	if eventName != "push" && eventName != "workflow_dispatch" {
		return event, nil
	}

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read event payload: %w", err)
	}

	decoded, err := gh.ParseWebHook(eventName, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s event payload: %w", eventName, err)
	}

	switch e := decoded.(type) {
	case *gh.PushEvent:
		event.Commits = commitRange(e)
	case *gh.WorkflowDispatchEvent:
		inputs, err := dispatchInputs(e)
		if err != nil {
			return nil, err
		}
		event.DispatchInputs = inputs
	}
	return event, nil
}

// commitRange extracts the before/after pair of a push. A zero "before" id
// (branch creation) is normalized to empty so callers fall back to a full
// scan instead of diffing against a nonexistent commit.
func commitRange(e *gh.PushEvent) *CommitRange {
	r := &CommitRange{
		OldCommitID: e.GetBefore(),
		NewCommitID: e.GetAfter(),
	}
	if r.OldCommitID == zeroCommitID {
		r.OldCommitID = ""
	}
	return r
}

// dispatchInputs flattens the workflow_dispatch input map to strings. The API
// delivers booleans and numbers as JSON values even though the runner treats
// every input as text.
func dispatchInputs(e *gh.WorkflowDispatchEvent) (map[string]string, error) {
	inputs := map[string]string{}
	if len(e.Inputs) == 0 {
		return inputs, nil
	}

	dec := json.NewDecoder(bytes.NewReader(e.Inputs))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode workflow_dispatch inputs: %w", err)
	}
	for name, value := range raw {
		inputs[name] = stringifyInput(value)
	}
	return inputs, nil
}

func stringifyInput(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
