package testasset

import (
	"encoding/xml"
	"os"
	"strings"
)

// ManifestFileName is the per-test action manifest the GUI tool maintains.
const ManifestFileName = "Actions.xml"

// rootActionName is the implicit container action every GUI test carries. It
// is not a callable action and never syncs.
const rootActionName = "Action0"

type actionsManifest struct {
	XMLName      xml.Name             `xml:"Actions"`
	Description  string               `xml:"Description,attr"`
	Actions      []manifestAction     `xml:"Action"`
	Dependencies []manifestDependency `xml:"Dependencies>Dependency"`
}

type manifestAction struct {
	Name string `xml:"Name,attr"`
}

type manifestDependency struct {
	Type     string `xml:"Type,attr"`
	Kind     string `xml:"Kind,attr"`
	Scope    string `xml:"Scope,attr"`
	Logical  string `xml:"Logical,attr"`
	Physical string `xml:"Physical,attr"`
}

func parseManifest(path string) (*actionsManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	var m actionsManifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &m, nil
}

// logicalNames maps action names to logical names from the dependency
// entries scoped to the test. Only file dependencies of kind "Action" count.
func (m *actionsManifest) logicalNames() map[string]string {
	names := make(map[string]string)
	for _, d := range m.Dependencies {
		if strings.EqualFold(d.Type, "File") &&
			strings.EqualFold(d.Kind, "Action") &&
			strings.EqualFold(d.Scope, "Test") &&
			d.Physical != "" && d.Logical != "" {
			names[strings.ToLower(d.Physical)] = d.Logical
		}
	}
	return names
}
